package scripttest

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-scripttest/flags"
	"github.com/ethereum/go-ethereum/log"
)

// Config holds the application configuration
type Config struct {
	Files           []string      // Absolute paths of the test files, run in order
	Filter          string        // Test name filter, substring or /regexp/
	SlowThreshold   time.Duration // Interval between slow notifications, 0 disables them
	RunInterval     time.Duration // Interval between test runs
	RunOnce         bool          // Indicates if the service should exit after one test run
	NoColor         bool
	HideStacktraces bool
	CacheSize       int // Number of compiled test files kept between runs
	Log             log.Logger
}

// NewConfig creates a new Config from cli context. Test files given as
// arguments take precedence over the files listed in the project file, and
// flags set explicitly override project file values.
func NewConfig(ctx *cli.Context, log log.Logger, files []string) (*Config, error) {
	if err := flags.CheckFlags(ctx); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}

	project := &ProjectFile{}
	if path := ctx.String(flags.ConfigFile.Name); path != "" {
		var err error
		project, err = LoadProjectFile(path)
		if err != nil {
			return nil, err
		}
	}

	if len(files) == 0 {
		files = project.Files
	}
	if len(files) == 0 {
		return nil, errors.New("at least one test file is required")
	}
	absFiles := make([]string, 0, len(files))
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for test file '%s': %w", file, err)
		}
		absFiles = append(absFiles, abs)
	}

	filter := project.Filter
	if ctx.IsSet(flags.Filter.Name) {
		filter = ctx.String(flags.Filter.Name)
	}
	slowThreshold := ctx.Duration(flags.SlowThreshold.Name)
	if !ctx.IsSet(flags.SlowThreshold.Name) && project.SlowThreshold != "" {
		slowThreshold = project.SlowThresholdDuration()
	}
	noColor := project.NoColor
	if ctx.IsSet(flags.NoColor.Name) {
		noColor = ctx.Bool(flags.NoColor.Name)
	}
	hideStacktraces := project.HideStacktraces
	if ctx.IsSet(flags.HideStacktraces.Name) {
		hideStacktraces = ctx.Bool(flags.HideStacktraces.Name)
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)

	return &Config{
		Files:           absFiles,
		Filter:          filter,
		SlowThreshold:   slowThreshold,
		RunInterval:     runInterval,
		RunOnce:         runInterval == 0,
		NoColor:         noColor,
		HideStacktraces: hideStacktraces,
		CacheSize:       ctx.Int(flags.CacheSize.Name),
		Log:             log,
	}, nil
}

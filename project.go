package scripttest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ProjectFile is the optional project configuration passed with --config.
// YAML and TOML are accepted, selected by file extension.
type ProjectFile struct {
	Files           []string `yaml:"files" toml:"files"`
	Filter          string   `yaml:"filter" toml:"filter"`
	SlowThreshold   string   `yaml:"slow_threshold" toml:"slow_threshold"`
	NoColor         bool     `yaml:"no_color" toml:"no_color"`
	HideStacktraces bool     `yaml:"hide_stacktraces" toml:"hide_stacktraces"`

	slowThreshold time.Duration
}

// SlowThresholdDuration returns the parsed slow_threshold, zero when unset.
func (p *ProjectFile) SlowThresholdDuration() time.Duration {
	return p.slowThreshold
}

// LoadProjectFile reads and validates a project file. Relative entries in
// files are resolved against the directory holding the project file.
func LoadProjectFile(path string) (*ProjectFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project file: %w", err)
	}

	var project ProjectFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&project); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse project file %s: %w", path, err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), &project)
		if err != nil {
			return nil, fmt.Errorf("failed to parse project file %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown keys in project file %s: %v", path, undecoded)
		}
	default:
		return nil, fmt.Errorf("unsupported project file extension %q", ext)
	}

	if project.SlowThreshold != "" {
		d, err := time.ParseDuration(project.SlowThreshold)
		if err != nil {
			return nil, fmt.Errorf("invalid slow_threshold %q: %w", project.SlowThreshold, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("slow_threshold cannot be negative: %s", d)
		}
		project.slowThreshold = d
	}

	base := filepath.Dir(path)
	for i, file := range project.Files {
		if !filepath.IsAbs(file) {
			project.Files[i] = filepath.Join(base, file)
		}
	}
	return &project, nil
}

package flags

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

const EnvVarPrefix = "OP_SCRIPTTEST"

var (
	ConfigFile = &cli.StringFlag{
		Name:    "config",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CONFIG"),
		Usage:   "Path to a project file (eg. 'scripttest.yaml' or 'scripttest.toml')",
	}
	Filter = &cli.StringFlag{
		Name:    "filter",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "FILTER"),
		Usage:   "Run only tests whose name contains this string, or matches it when written as /regexp/",
	}
	SlowThreshold = &cli.DurationFlag{
		Name:    "slow-threshold",
		Value:   60 * time.Second,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SLOW_THRESHOLD"),
		Usage:   "Report a test as slow every time it has been running for this long. Set to 0 to disable.",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUN_INTERVAL"),
		Usage:   "Interval between test runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	NoColor = &cli.BoolFlag{
		Name:    "no-color",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "NO_COLOR"),
		Usage:   "Disable colored output",
	}
	HideStacktraces = &cli.BoolFlag{
		Name:    "hide-stacktraces",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HIDE_STACKTRACES"),
		Usage:   "Print only the error message of failures",
	}
	CacheSize = &cli.IntFlag{
		Name:    "cache-size",
		Value:   128,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CACHE_SIZE"),
		Usage:   "Number of compiled test files kept between runs",
	}
	HealthzAddr = &cli.StringFlag{
		Name:    "healthz.addr",
		Value:   "0.0.0.0:8080",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HEALTHZ_ADDR"),
		Usage:   "Address of the health check server, started together with the metrics server",
	}
)

var optionalFlags = []cli.Flag{
	ConfigFile,
	Filter,
	SlowThreshold,
	RunInterval,
	NoColor,
	HideStacktraces,
	CacheSize,
	HealthzAddr,
}

var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = optionalFlags
}

// CheckFlags validates flag values that urfave/cli cannot check on its own.
func CheckFlags(ctx *cli.Context) error {
	if d := ctx.Duration(SlowThreshold.Name); d < 0 {
		return fmt.Errorf("flag %s cannot be negative: %s", SlowThreshold.Name, d)
	}
	if d := ctx.Duration(RunInterval.Name); d < 0 {
		return fmt.Errorf("flag %s cannot be negative: %s", RunInterval.Name, d)
	}
	if n := ctx.Int(CacheSize.Name); n < 0 {
		return fmt.Errorf("flag %s cannot be negative: %d", CacheSize.Name, n)
	}
	return nil
}

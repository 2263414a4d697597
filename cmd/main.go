package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	scripttest "github.com/ethereum-optimism/infra/op-scripttest"
	"github.com/ethereum-optimism/infra/op-scripttest/flags"
	"github.com/ethereum-optimism/infra/op-scripttest/service"
	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "op-scripttest"
	app.Usage = "JavaScript test runner"
	app.Description = "op-scripttest runs JavaScript test files and reports their results"
	app.ArgsUsage = "FILES..."
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.Action = cliapp.LifecycleCmd(run)
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			cli.HandleExitCoder(cli.Exit(err.Error(), scripttest.ExitCode(err)))
		}
	}

	// Start telemetry
	ctx, shutdown, err := telemetry.SetupOpenTelemetry(
		context.Background(),
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	// Start CLI
	ctx = ctxinterrupt.WithSignalWaiterMain(ctx)
	err = app.RunContext(ctx, os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func run(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
	logCfg := oplog.ReadCLIConfig(ctx)
	log := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
	oplog.SetGlobalLogHandler(log.Handler())
	oplog.SetupDefaults()

	cfg, err := scripttest.NewConfig(ctx, log, ctx.Args().Slice())
	if err != nil {
		// Wrap in RuntimeError to signal this should exit with code 2
		return nil, scripttest.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}
	cfg.Log.Debug("Config", "config", cfg)

	if metricsCfg := opmetrics.ReadCLIConfig(ctx); metricsCfg.Enabled {
		svc := service.New(service.Config{
			HealthzAddr: ctx.String(flags.HealthzAddr.Name),
			MetricsAddr: net.JoinHostPort(metricsCfg.ListenAddr, strconv.Itoa(metricsCfg.ListenPort)),
			Log:         log,
		})
		svc.Start(ctx.Context)
		go func() {
			<-ctx.Context.Done()
			svc.Shutdown()
		}()
	}

	tester, err := scripttest.New(cfg, Version, closeApp)
	if err != nil {
		// Wrap in RuntimeError to signal this should exit with code 2
		return nil, scripttest.NewRuntimeError(fmt.Errorf("failed to create tester: %w", err))
	}
	return tester, nil
}

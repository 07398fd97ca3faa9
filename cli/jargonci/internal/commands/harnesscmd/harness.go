package harnesscmd

import (
	"context"
	"fmt"

	"jargonci/cli/jargonci/internal/cmdregistry"
	"jargonci/cli/jargonci/internal/driver"
	"jargonci/cli/jargonci/internal/harness"
)

// NewDriver builds the driver for a command. Tests replace it.
var NewDriver = func(ctx *cmdregistry.Context, keep bool) harness.Driver {
	s := ctx.Settings
	return driver.New(driver.Options{
		ProjectDir:  s.ProjectDir,
		ComposeFile: s.ComposeFile,
		DryRun:      s.DryRun,
		KeepRunning: keep,
		Defaults:    defaults(ctx),
		Log:         ctx.Log,
	})
}

// Register adds init/run/test/config to the registry.
func Register(r *cmdregistry.Registry) {
	r.Register("init", handleInit)
	r.Register("run", handleRun)
	r.Register("test", handleTest)
	r.Register("config", handleConfig)
}

func defaults(ctx *cmdregistry.Context) harness.Config {
	return harness.Config{
		YAMLSubstitutions:     ctx.Settings.Substitutions,
		ContainerEnvironments: ctx.Settings.ContainerEnvironments,
	}
}

func options(ctx *cmdregistry.Context) harness.Options {
	return harness.Options{Stdout: ctx.Stdout, Diag: ctx.Stderr, Log: ctx.Log}
}

func keepRunning(args []string) bool {
	for _, a := range args {
		if a == "--keep" {
			return true
		}
	}
	return false
}

func handleInit(ctx *cmdregistry.Context) error {
	dir, err := harness.Init(context.Background(), ctx.Settings, options(ctx))
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.Stdout, dir)
	return nil
}

func handleRun(ctx *cmdregistry.Context) error {
	res, err := harness.Run(context.Background(), NewDriver(ctx, keepRunning(ctx.Args)), options(ctx))
	return report(ctx, res, err)
}

func handleTest(ctx *cmdregistry.Context) error {
	if _, err := harness.Init(context.Background(), ctx.Settings, options(ctx)); err != nil {
		return err
	}
	return handleRun(ctx)
}

func handleConfig(ctx *cmdregistry.Context) error {
	merged := driver.Merge(harness.DefaultConfig(), defaults(ctx))
	return harness.PrintConfig(ctx.Stdout, merged)
}

func report(ctx *cmdregistry.Context, res harness.Result, err error) error {
	if err != nil {
		return err
	}
	if ctx.Settings.DryRun {
		return nil
	}
	fmt.Fprintf(ctx.Stdout, "%s (%s) exited with code %d\n", res.Container, res.Service, res.ExitCode)
	for _, out := range res.Outputs {
		fmt.Fprintf(ctx.Stdout, "  output: %s\n", out)
	}
	if !res.Passed() {
		return cmdregistry.ExitCode{Code: res.ExitCode}
	}
	return nil
}

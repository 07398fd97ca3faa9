package composecmd

import (
	"context"

	"jargonci/cli/jargonci/internal/cmdregistry"
	"jargonci/cli/jargonci/internal/compose"
	"jargonci/cli/jargonci/internal/driver"
	"jargonci/cli/jargonci/internal/runner"
)

// Docker runs the docker CLI for these handlers. Tests replace it.
var Docker = func(ctx *cmdregistry.Context) driver.Docker {
	return runner.Docker{DryRun: ctx.Settings.DryRun, Trace: ctx.Stderr}
}

// Register adds compose lifecycle commands to the registry.
func Register(r *cmdregistry.Registry) {
	r.Register("up", handleUp)
	r.Register("down", handleDown)
	r.Register("status", handleStatus)
	r.Register("logs", handleLogs)
}

func composeRun(ctx *cmdregistry.Context, args ...string) error {
	files, err := compose.Files(ctx.Settings.ProjectDir, ctx.Settings.ComposeFile)
	if err != nil {
		return err
	}
	return Docker(ctx).Run(context.Background(), runner.Compose(files, args...)...)
}

func handleUp(ctx *cmdregistry.Context) error {
	return composeRun(ctx, "up", "-d")
}

func handleDown(ctx *cmdregistry.Context) error {
	return composeRun(ctx, "down")
}

func handleStatus(ctx *cmdregistry.Context) error {
	return composeRun(ctx, "ps", "-a")
}

func handleLogs(ctx *cmdregistry.Context) error {
	args := append([]string{"logs"}, ctx.Args...)
	return composeRun(ctx, args...)
}

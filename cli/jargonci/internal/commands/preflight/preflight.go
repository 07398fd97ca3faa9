package preflight

import (
	"context"
	"fmt"

	"jargonci/cli/jargonci/internal/cmdregistry"
	"jargonci/cli/jargonci/internal/compose"
	"jargonci/cli/jargonci/internal/paths"
	"jargonci/cli/jargonci/internal/prehook"
	"jargonci/cli/jargonci/internal/runner"
)

// DockerAvailable is swapped in tests.
var DockerAvailable = runner.Available

// Register adds the preflight command to the registry.
func Register(r *cmdregistry.Registry) {
	r.Register("preflight", handle)
}

func handle(ctx *cmdregistry.Context) error {
	ok := true
	if !DockerAvailable(context.Background()) {
		fmt.Fprintln(ctx.Stderr, "[preflight] docker not available or daemon unreachable")
		ok = false
	} else {
		fmt.Fprintln(ctx.Stdout, "[preflight] docker: OK")
	}

	s := ctx.Settings
	doc, err := compose.Load(s.ComposeFile)
	if err != nil {
		fmt.Fprintln(ctx.Stderr, "[preflight] compose file:", err)
		ok = false
	} else if _, err := doc.Volumes(paths.ClientService); err != nil {
		fmt.Fprintln(ctx.Stderr, "[preflight] compose file:", err)
		ok = false
	} else {
		fmt.Fprintf(ctx.Stdout, "[preflight] compose: OK (%s, services: %v)\n", s.ComposeFile, doc.ServiceNames())
	}

	hook := prehook.Hook{Path: s.PreHookScript}
	switch {
	case !hook.Configured():
		fmt.Fprintln(ctx.Stdout, "[preflight] pre-hook: none configured")
	case hook.Check() != nil:
		fmt.Fprintln(ctx.Stderr, "[preflight]", hook.Check())
		ok = false
	default:
		fmt.Fprintln(ctx.Stdout, "[preflight] pre-hook: OK (", s.PreHookScript, ")")
	}

	if !ok {
		return fmt.Errorf("preflight checks failed")
	}
	return nil
}

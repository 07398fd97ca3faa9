package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"jargonci/cli/jargonci/internal/compose"
	"jargonci/cli/jargonci/internal/config"
	"jargonci/cli/jargonci/internal/paths"
	"jargonci/cli/jargonci/internal/prehook"
)

// Driver is the CI orchestrator the harness hands off to.
type Driver interface {
	// StoreConfig records cfg and returns the merged form the run will use.
	StoreConfig(cfg Config) (Config, error)
	// RunAndWaitOnClientExit starts the project and blocks until the container
	// whose name matches namePattern exits.
	RunAndWaitOnClientExit(ctx context.Context, namePattern string) (Result, error)
}

// Options carries the output streams and logger. Zero values select
// os.Stdout, os.Stderr and the standard logrus logger.
type Options struct {
	Stdout io.Writer
	Diag   io.Writer
	Log    logrus.FieldLogger
	// Exec overrides how the pre-hook is started.
	Exec prehook.Exec
}

func (o Options) withDefaults() Options {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Diag == nil {
		o.Diag = os.Stderr
	}
	if o.Log == nil {
		o.Log = logrus.StandardLogger()
	}
	return o
}

// ClientPatch is the edit Init applies to the compose project.
func ClientPatch() compose.Patch {
	return compose.Patch{
		Service: paths.ClientService,
		Command: paths.BuildCommand,
		Volumes: []string{paths.OutputLogsVolume},
	}
}

// Init runs the pre-hook if configured, injects the build command and output
// volume into the maven service, rewrites the compose file, and returns the
// absolute project directory. Repeated calls append the volume again.
func Init(ctx context.Context, s config.Settings, o Options) (string, error) {
	o = o.withDefaults()
	hook := prehook.Hook{Path: s.PreHookScript, Stdout: o.Stdout, Log: o.Log, Exec: o.Exec}
	if _, err := hook.Run(ctx); err != nil {
		return "", err
	}

	composeFile := s.ComposeFile
	if composeFile == "" {
		composeFile = paths.ComposeFile(s.ProjectDir)
	}
	doc, err := compose.Load(composeFile)
	if err != nil {
		return "", err
	}
	if err := doc.Apply(ClientPatch()); err != nil {
		return "", err
	}
	if err := doc.Write(); err != nil {
		return "", err
	}
	o.Log.WithFields(logrus.Fields{"file": composeFile, "service": paths.ClientService}).Info("compose project prepared")

	dir, err := filepath.Abs(s.ProjectDir)
	if err != nil {
		return "", err
	}
	return dir, nil
}

// Run stores the default configuration with the driver, prints the merged
// result to the diagnostic stream, then waits on the maven client.
func Run(ctx context.Context, d Driver, o Options) (Result, error) {
	o = o.withDefaults()
	merged, err := d.StoreConfig(DefaultConfig())
	if err != nil {
		return Result{}, err
	}
	if err := PrintConfig(o.Diag, merged); err != nil {
		return Result{}, err
	}
	return d.RunAndWaitOnClientExit(ctx, paths.ClientNamePattern)
}

// PrintConfig writes cfg as indented JSON under a banner.
func PrintConfig(w io.Writer, cfg Config) error {
	data, err := json.MarshalIndent(cfg.Normalize(), "", "    ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "----------\nconfig after CI modify pass\n----------\n%s\n", data)
	return err
}

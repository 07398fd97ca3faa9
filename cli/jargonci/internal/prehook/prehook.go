// Package prehook runs the optional preparation script configured for a CI
// run. The script is invoked with no arguments and the inherited environment;
// its stdout is captured and echoed as a labeled report.
package prehook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"jargonci/cli/jargonci/internal/execx"
)

// ErrNotExecutable is returned when a pre-hook is configured but the path
// cannot be executed by this process.
var ErrNotExecutable = errors.New("pre-hook script must be executable")

// Exec runs a command and returns its stdout.
type Exec func(ctx context.Context, name string, args ...string) (string, execx.Result)

// Hook is the optional preparation script run once before the compose file
// is patched.
type Hook struct {
	// Path of the script. Empty means no pre-hook.
	Path   string
	Stdout io.Writer
	Log    logrus.FieldLogger
	// Exec defaults to execx.CaptureStdout.
	Exec Exec
}

// Configured reports whether a script path is set.
func (h Hook) Configured() bool { return strings.TrimSpace(h.Path) != "" }

// Check verifies the configured script is executable. It is a no-op when no
// script is configured.
func (h Hook) Check() error {
	if !h.Configured() {
		return nil
	}
	if !executable(h.Path) {
		return fmt.Errorf("%w: '%s'", ErrNotExecutable, h.Path)
	}
	return nil
}

// Run executes the script if one is configured. It reports whether a
// subprocess was started.
func (h Hook) Run(ctx context.Context) (bool, error) {
	if !h.Configured() {
		return false, nil
	}
	if err := h.Check(); err != nil {
		return false, err
	}
	run := h.Exec
	if run == nil {
		run = execx.CaptureStdout
	}
	out := h.Stdout
	if out == nil {
		out = os.Stdout
	}
	log := h.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	log.WithField("script", h.Path).Debug("running pre-hook")
	stdout, res := run(ctx, h.Path)
	if res.Err != nil {
		log.WithFields(logrus.Fields{"script": h.Path, "code": res.Code}).Error("pre-hook failed")
		return true, fmt.Errorf("pre-hook %s: %w", h.Path, res.Err)
	}
	fmt.Fprintf(out, "PRE_HOOK_SCRIPT '%s' = \n******** Output: ********\n%s\n", h.Path, stdout)
	return true, nil
}

package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"jargonci/cli/jargonci/internal/execx"
)

// ExitError reports a command that ran and exited non-zero.
type ExitError struct {
	Cmd  string
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Cmd, e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

func check(cmd string, res execx.Result) error {
	if res.OK() {
		return nil
	}
	return &ExitError{Cmd: cmd, Code: res.Code, Err: res.Err}
}

// Docker runs the docker CLI. When DryRun is set commands are only printed.
type Docker struct {
	DryRun bool
	// Trace receives dry-run lines; defaults to os.Stderr.
	Trace io.Writer
}

func (d Docker) print(args []string) {
	w := d.Trace
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintln(w, "+ docker "+strings.Join(args, " "))
}

// Run executes docker with args, streaming output to the host.
func (d Docker) Run(ctx context.Context, args ...string) error {
	if d.DryRun {
		d.print(args)
		return nil
	}
	return check(label(args), execx.RunCtx(ctx, "docker", args...))
}

// Output executes docker with args and returns stdout. Dry runs return "".
func (d Docker) Output(ctx context.Context, args ...string) (string, error) {
	if d.DryRun {
		d.print(args)
		return "", nil
	}
	out, res := execx.CaptureStdout(ctx, "docker", args...)
	return out, check(label(args), res)
}

// Compose prefixes docker compose and the given -f arguments.
func Compose(fileArgs []string, args ...string) []string {
	all := make([]string, 0, 1+len(fileArgs)+len(args))
	all = append(all, "compose")
	all = append(all, fileArgs...)
	return append(all, args...)
}

// Runner is anything that can run a docker command.
type Runner interface {
	Run(ctx context.Context, args ...string) error
}

// BestEffort runs args and logs a failure instead of returning it.
func BestEffort(ctx context.Context, r Runner, log logrus.FieldLogger, args ...string) {
	if err := r.Run(ctx, args...); err != nil {
		log.WithError(err).Warnf("%s failed", label(args))
	}
}

// Available reports whether the docker daemon answers `docker version`.
func Available(ctx context.Context) bool {
	_, res := execx.Capture(ctx, "docker", "version")
	return res.OK()
}

func label(args []string) string {
	return "docker " + strings.Join(args, " ")
}

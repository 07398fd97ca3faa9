package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

type Result struct {
	Code int
	Err  error
}

// OK reports whether the command exited zero.
func (r Result) OK() bool { return r.Code == 0 && r.Err == nil }

func trace(name string, args []string) {
	if os.Getenv("JARGONCI_DEBUG") == "1" {
		fmt.Fprintf(os.Stderr, "+ %s\n", strings.Join(append([]string{name}, args...), " "))
	}
}

func result(ctx context.Context, err error) Result {
	code := 0
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			code = ee.ExitCode()
		} else if ctx.Err() == context.DeadlineExceeded {
			code = 124
		} else {
			code = 1
		}
	}
	return Result{Code: code, Err: err}
}

func RunCtx(ctx context.Context, name string, args ...string) Result {
	trace(name, args)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return result(ctx, cmd.Run())
}

// Capture runs a command and returns stdout as string and exit code.
// Stderr is discarded.
func Capture(ctx context.Context, name string, args ...string) (string, Result) {
	trace(name, args)
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	return string(out), result(ctx, err)
}

// CaptureStdout runs a command with no stdin, returns its stdout, and lets
// stderr pass through to the host.
func CaptureStdout(ctx context.Context, name string, args ...string) (string, Result) {
	trace(name, args)
	cmd := exec.CommandContext(ctx, name, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = os.Stderr
	res := result(ctx, cmd.Run())
	return buf.String(), res
}

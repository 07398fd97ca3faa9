package testutil

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"jargonci/cli/jargonci/internal/paths"
)

// CmdResult captures stdout, stderr, and the resulting error from a command execution.
type CmdResult struct {
	Stdout string
	Stderr string
	Err    error
}

// Success reports whether the underlying command exited without error.
func (r CmdResult) Success() bool {
	return r.Err == nil
}

// ExitCode returns the process exit code, or -1 if it did not run.
func (r CmdResult) ExitCode() int {
	if r.Err == nil {
		return 0
	}
	if ee, ok := r.Err.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return -1
}

// Fixture prepares a temporary harness root with a compose project and a
// freshly built jargonci binary.
type Fixture struct {
	t    *testing.T
	root string
	bin  string
}

// NewFixture builds the CLI and lays out <root>/docker-test-framework/4-2 with
// the given compose document. It skips the test when the build fails.
func NewFixture(t *testing.T, composeBody string) *Fixture {
	t.Helper()
	repoRoot, err := findRepoRoot()
	if err != nil {
		t.Skipf("detect repo root: %v", err)
	}
	bin := filepath.Join(t.TempDir(), "jargonci")
	build := exec.Command("go", "build", "-trimpath", "-o", bin, "./cli/jargonci")
	build.Dir = repoRoot
	build.Env = append(os.Environ(), "GO111MODULE=on")
	if out, err := build.CombinedOutput(); err != nil {
		t.Skipf("go build failed: %v\n%s", err, out)
	}
	f := &Fixture{t: t, root: t.TempDir(), bin: bin}
	f.WriteFile(filepath.Join(paths.ProjectSubdir, paths.ComposeFileName), composeBody, 0o644)
	return f
}

// Root returns the temporary harness root.
func (f *Fixture) Root() string { return f.root }

// ProjectDir returns the compose project directory under the root.
func (f *Fixture) ProjectDir() string { return paths.ProjectDir(f.root) }

// ComposeFile returns the compose document path.
func (f *Fixture) ComposeFile() string { return paths.ComposeFile(f.ProjectDir()) }

// WriteFile writes relative to the root and returns the absolute path.
func (f *Fixture) WriteFile(rel, content string, mode os.FileMode) string {
	p := filepath.Join(f.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		f.t.Fatalf("mkdir for %s: %v", rel, err)
	}
	if err := os.WriteFile(p, []byte(content), mode); err != nil {
		f.t.Fatalf("write %s: %v", rel, err)
	}
	if err := os.Chmod(p, mode); err != nil {
		f.t.Fatalf("chmod %s: %v", rel, err)
	}
	return p
}

// ReadFile reads relative to the root.
func (f *Fixture) ReadFile(rel string) string {
	data, err := os.ReadFile(filepath.Join(f.root, filepath.FromSlash(rel)))
	if err != nil {
		f.t.Fatalf("read %s: %v", rel, err)
	}
	return string(data)
}

// Run executes the CLI with JARGONCI_ROOT pointing at the fixture root.
// Extra env entries override the inherited environment.
func (f *Fixture) Run(env map[string]string, args ...string) CmdResult {
	f.t.Helper()
	base := mapFromEnviron(os.Environ())
	for _, k := range []string{"JARGONCI_PROJECT_DIR", "JARGONCI_PRE_HOOK", "JARGONCI_CONFIG", "JARGONCI_DRY_RUN"} {
		delete(base, k)
	}
	base["JARGONCI_ROOT"] = f.root
	for k, v := range env {
		base[k] = v
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.Command(f.bin, args...)
	cmd.Dir = f.root
	cmd.Env = environFromMap(base)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return CmdResult{Stdout: stdout.String(), Stderr: stderr.String(), Err: err}
}

func findRepoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}

func mapFromEnviron(env []string) map[string]string {
	out := make(map[string]string, len(env))
	for _, kv := range env {
		if k, v, ok := strings.Cut(kv, "="); ok {
			out[k] = v
		}
	}
	return out
}

func environFromMap(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

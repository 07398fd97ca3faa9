package driver

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jargonci/cli/jargonci/internal/harness"
)

type fakeDocker struct {
	calls   [][]string
	outputs map[string]string
	fail    map[string]error
}

func key(args []string) string {
	for _, a := range args {
		switch a {
		case "up", "down", "ps", "wait", "cp", "inspect":
			return a
		}
	}
	return strings.Join(args, " ")
}

func (f *fakeDocker) Run(_ context.Context, args ...string) error {
	f.calls = append(f.calls, args)
	return f.fail[key(args)]
}

func (f *fakeDocker) Output(_ context.Context, args ...string) (string, error) {
	f.calls = append(f.calls, args)
	return f.outputs[key(args)], f.fail[key(args)]
}

func (f *fakeDocker) called(verb string) [][]string {
	var out [][]string
	for _, c := range f.calls {
		if key(c) == verb {
			out = append(out, c)
		}
	}
	return out
}

func quiet() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(&bytes.Buffer{})
	return l
}

func newProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	body := "services:\n  maven:\n    image: maven:3\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docker-compose.yml"), []byte(body), 0o644))
	return dir
}

const psLines = `{"ID":"a1","Name":"docker-test-framework-4-2-irods-1","Service":"irods","State":"running","ExitCode":0}
{"ID":"b2","Name":"docker-test-framework-4-2-maven-1","Service":"maven","State":"exited","ExitCode":0}
`

func TestParsePS_LinesAndArray(t *testing.T) {
	list, err := ParsePS(psLines)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "irods", list[0].Service)

	arr := `[{"Name":"z","Service":"maven"},{"Name":"a","Service":"irods"}]`
	list, err = ParsePS(arr)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name, "rows are sorted by name")

	list, err = ParsePS("  \n")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = ParsePS("{not json}\n")
	assert.Error(t, err)
}

func TestMatch_ExactServicePattern(t *testing.T) {
	list, err := ParsePS(psLines + `{"Name":"x-mavenish-1","Service":"mavenish"}` + "\n")
	require.NoError(t, err)
	c, ok := Match(list, regexp.MustCompile("^maven$"))
	require.True(t, ok)
	assert.Equal(t, "maven", c.Service)

	_, ok = Match(list, regexp.MustCompile("^nothing$"))
	assert.False(t, ok)
}

func TestMerge_KeepsStoredValuesAndFillsDefaults(t *testing.T) {
	stored := harness.DefaultConfig()
	stored.YAMLSubstitutions["client_os_image"] = "ubuntu:18.04"
	defaults := harness.Config{
		YAMLSubstitutions:     map[string]string{"client_os_image": "ubuntu:16.04", "python_version": "3"},
		ContainerEnvironments: map[string]map[string]string{"maven": {"TESTS_TO_RUN": ""}},
		ContainerOutputPaths:  map[string]map[string]string{"irods": {"/var/log/irods": "./irods-logs"}},
	}
	merged := Merge(stored, defaults)
	assert.Equal(t, "ubuntu:18.04", merged.YAMLSubstitutions["client_os_image"])
	assert.Equal(t, "3", merged.YAMLSubstitutions["python_version"])
	assert.Contains(t, merged.ContainerEnvironments["maven"], "TESTS_TO_RUN")
	assert.Equal(t, "./maven-client-output", merged.ContainerOutputPaths["maven"]["."])
	assert.Equal(t, "./irods-logs", merged.ContainerOutputPaths["irods"]["/var/log/irods"])
	assert.NotNil(t, merged.ContainerEnvironments["irods"], "output containers get an env entry")
	assert.Empty(t, stored.ContainerEnvironments["maven"], "input must not be modified")
}

func TestStoreConfig_WritesEnvFiles(t *testing.T) {
	dir := newProject(t)
	d := New(Options{
		ProjectDir: dir,
		Log:        quiet(),
		Docker:     &fakeDocker{},
		Defaults: harness.Config{
			YAMLSubstitutions:     map[string]string{"client_os_generic": "ubuntu"},
			ContainerEnvironments: map[string]map[string]string{"maven": {"TESTS_TO_RUN": "IRODSFileTest"}},
		},
	})
	merged, err := d.StoreConfig(harness.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "ubuntu", merged.YAMLSubstitutions["client_os_generic"])

	env, err := godotenv.Read(filepath.Join(dir, ".env"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"client_os_generic": "ubuntu"}, env)

	maven, err := godotenv.Read(filepath.Join(dir, "maven.env"))
	require.NoError(t, err)
	assert.Equal(t, "IRODSFileTest", maven["TESTS_TO_RUN"])
	assert.Equal(t, merged, d.Config())
}

func TestStoreConfig_DryRunWritesNothing(t *testing.T) {
	dir := newProject(t)
	d := New(Options{ProjectDir: dir, DryRun: true, Log: quiet(), Docker: &fakeDocker{}})
	_, err := d.StoreConfig(harness.DefaultConfig())
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, ".env"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestStoreConfig_RejectsPathLikeContainerNames(t *testing.T) {
	d := New(Options{ProjectDir: newProject(t), Log: quiet(), Docker: &fakeDocker{}})
	cfg := harness.DefaultConfig()
	cfg.ContainerEnvironments["../evil"] = map[string]string{}
	_, err := d.StoreConfig(cfg)
	assert.Error(t, err)
}

func TestRunAndWait_HappyPath(t *testing.T) {
	dir := newProject(t)
	fd := &fakeDocker{outputs: map[string]string{
		"ps":      psLines,
		"wait":    "3\n",
		"inspect": "/usr/src/jargon\n",
	}}
	d := New(Options{ProjectDir: dir, Log: quiet(), Docker: fd})
	_, err := d.StoreConfig(harness.DefaultConfig())
	require.NoError(t, err)

	res, err := d.RunAndWaitOnClientExit(context.Background(), "^maven$")
	require.NoError(t, err)
	assert.Equal(t, "docker-test-framework-4-2-maven-1", res.Container)
	assert.Equal(t, "maven", res.Service)
	assert.Equal(t, 3, res.ExitCode)
	assert.False(t, res.Passed())
	assert.Equal(t, []string{filepath.Join(dir, "maven-client-output")}, res.Outputs)

	require.Len(t, fd.called("up"), 1)
	assert.Equal(t, []string{"wait", "docker-test-framework-4-2-maven-1"}, fd.called("wait")[0])
	assert.Equal(t, []string{"cp", "docker-test-framework-4-2-maven-1:/usr/src/jargon", filepath.Join(dir, "maven-client-output")}, fd.called("cp")[0])
	require.Len(t, fd.called("down"), 1, "project is torn down after the client exits")
	assert.Equal(t, "down", fd.calls[len(fd.calls)-1][len(fd.calls[len(fd.calls)-1])-1])
}

func TestRunAndWait_KeepRunning(t *testing.T) {
	fd := &fakeDocker{outputs: map[string]string{"ps": psLines, "wait": "0", "inspect": "/"}}
	d := New(Options{ProjectDir: newProject(t), KeepRunning: true, Log: quiet(), Docker: fd})
	res, err := d.RunAndWaitOnClientExit(context.Background(), "^maven$")
	require.NoError(t, err)
	assert.True(t, res.Passed())
	assert.Empty(t, fd.called("down"))
}

func TestRunAndWait_InvalidPattern(t *testing.T) {
	fd := &fakeDocker{}
	d := New(Options{ProjectDir: newProject(t), Log: quiet(), Docker: fd})
	_, err := d.RunAndWaitOnClientExit(context.Background(), "^(maven$")
	require.Error(t, err)
	assert.Empty(t, fd.calls, "nothing runs for a bad pattern")
}

func TestRunAndWait_NoMatchingContainer(t *testing.T) {
	fd := &fakeDocker{outputs: map[string]string{"ps": psLines}}
	d := New(Options{ProjectDir: newProject(t), Log: quiet(), Docker: fd})
	_, err := d.RunAndWaitOnClientExit(context.Background(), "^gradle$")
	assert.ErrorIs(t, err, ErrNoClientContainer)
	assert.Len(t, fd.called("down"), 1)
}

func TestRunAndWait_UpFailurePropagates(t *testing.T) {
	upErr := errors.New("up failed")
	fd := &fakeDocker{fail: map[string]error{"up": upErr}}
	d := New(Options{ProjectDir: newProject(t), Log: quiet(), Docker: fd})
	_, err := d.RunAndWaitOnClientExit(context.Background(), "^maven$")
	assert.Same(t, upErr, err)
}

func TestRunAndWait_CopyFailureReturnsResult(t *testing.T) {
	fd := &fakeDocker{
		outputs: map[string]string{"ps": psLines, "wait": "0", "inspect": "/work"},
		fail:    map[string]error{"cp": errors.New("no such path")},
	}
	d := New(Options{ProjectDir: newProject(t), Log: quiet(), Docker: fd})
	_, err := d.StoreConfig(harness.DefaultConfig())
	require.NoError(t, err)
	res, err := d.RunAndWaitOnClientExit(context.Background(), "^maven$")
	require.Error(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Empty(t, res.Outputs)
}

func TestRunAndWait_MissingComposeFile(t *testing.T) {
	d := New(Options{ProjectDir: t.TempDir(), Log: quiet(), Docker: &fakeDocker{}})
	_, err := d.RunAndWaitOnClientExit(context.Background(), "^maven$")
	assert.Error(t, err)
}

func TestRunAndWait_DryRun(t *testing.T) {
	fd := &fakeDocker{}
	d := New(Options{ProjectDir: t.TempDir(), DryRun: true, Log: quiet(), Docker: fd})
	res, err := d.RunAndWaitOnClientExit(context.Background(), "^maven$")
	require.NoError(t, err)
	assert.Equal(t, harness.Result{}, res)
	assert.Len(t, fd.called("up"), 1)
	assert.Empty(t, fd.called("wait"))
}

func TestRunAndWait_TeardownFailureIsNotFatal(t *testing.T) {
	fd := &fakeDocker{
		outputs: map[string]string{"ps": psLines, "wait": "0", "inspect": "/"},
		fail:    map[string]error{"down": errors.New("down failed")},
	}
	d := New(Options{ProjectDir: newProject(t), Log: quiet(), Docker: fd})
	res, err := d.RunAndWaitOnClientExit(context.Background(), "^maven$")
	require.NoError(t, err)
	assert.True(t, res.Passed())
	assert.Len(t, fd.called("down"), 1)
}

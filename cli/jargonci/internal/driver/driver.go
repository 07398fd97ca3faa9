package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"jargonci/cli/jargonci/internal/compose"
	"jargonci/cli/jargonci/internal/harness"
	"jargonci/cli/jargonci/internal/paths"
	"jargonci/cli/jargonci/internal/runner"
)

var ErrNoClientContainer = errors.New("no container matches client pattern")

var _ harness.Driver = (*Local)(nil)

// Docker is the slice of the docker CLI the driver needs.
type Docker interface {
	Run(ctx context.Context, args ...string) error
	Output(ctx context.Context, args ...string) (string, error)
}

// Options configures a Local driver.
type Options struct {
	ProjectDir  string
	ComposeFile string
	DryRun      bool
	// KeepRunning skips `docker compose down` after the client exits.
	KeepRunning bool
	// Defaults are merged under the stored config without replacing values.
	Defaults harness.Config
	Log      logrus.FieldLogger
	// Docker defaults to runner.Docker honoring DryRun.
	Docker Docker
}

// Local drives a compose project on the local docker daemon.
type Local struct {
	opts   Options
	docker Docker
	log    logrus.FieldLogger
	config harness.Config
	stored bool
}

// New returns a driver for the project in o.ProjectDir. The compose file
// defaults to docker-compose.yml in that directory.
func New(o Options) *Local {
	if o.ComposeFile == "" {
		o.ComposeFile = paths.ComposeFile(o.ProjectDir)
	}
	d := o.Docker
	if d == nil {
		d = runner.Docker{DryRun: o.DryRun}
	}
	log := o.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Local{
		opts:   o,
		docker: d,
		log:    log.WithField("project", compose.ProjectName(o.ProjectDir)),
		config: harness.Config{}.Normalize(),
	}
}

// Config returns the last merged configuration.
func (l *Local) Config() harness.Config { return l.config.Clone() }

// Merge layers cfg over defaults. Every container with output paths also gets
// an environment entry so its env file exists for compose env_file references.
func Merge(cfg, defaults harness.Config) harness.Config {
	out := cfg.Clone()
	for k, v := range defaults.YAMLSubstitutions {
		if _, ok := out.YAMLSubstitutions[k]; !ok {
			out.YAMLSubstitutions[k] = v
		}
	}
	for name, env := range defaults.ContainerEnvironments {
		dst, ok := out.ContainerEnvironments[name]
		if !ok {
			dst = map[string]string{}
			out.ContainerEnvironments[name] = dst
		}
		for k, v := range env {
			if _, ok := dst[k]; !ok {
				dst[k] = v
			}
		}
	}
	for name, m := range defaults.ContainerOutputPaths {
		dst, ok := out.ContainerOutputPaths[name]
		if !ok {
			dst = map[string]string{}
			out.ContainerOutputPaths[name] = dst
		}
		for k, v := range m {
			if _, ok := dst[k]; !ok {
				dst[k] = v
			}
		}
	}
	for name := range out.ContainerOutputPaths {
		if _, ok := out.ContainerEnvironments[name]; !ok {
			out.ContainerEnvironments[name] = map[string]string{}
		}
	}
	return out
}

// StoreConfig merges defaults, writes .env and <container>.env into the
// project directory, and returns the merged config.
func (l *Local) StoreConfig(cfg harness.Config) (harness.Config, error) {
	merged := Merge(cfg, l.opts.Defaults)
	if err := l.writeEnvFiles(merged); err != nil {
		return harness.Config{}, err
	}
	l.config = merged
	l.stored = true
	return merged.Clone(), nil
}

func (l *Local) writeEnvFiles(cfg harness.Config) error {
	files := map[string]map[string]string{"": cfg.YAMLSubstitutions}
	for name, env := range cfg.ContainerEnvironments {
		if strings.ContainsAny(name, `/\`) || name == "" {
			return fmt.Errorf("invalid container name %q", name)
		}
		files[name] = env
	}
	for name, env := range files {
		target := paths.EnvFile(l.opts.ProjectDir, name)
		if l.opts.DryRun {
			l.log.WithField("file", target).Info("dry-run: skip env file write")
			continue
		}
		if err := godotenv.Write(env, target); err != nil {
			return fmt.Errorf("write %s: %w", target, err)
		}
		l.log.WithFields(logrus.Fields{"file": target, "vars": len(env)}).Debug("env file written")
	}
	return nil
}

// RunAndWaitOnClientExit brings the project up, blocks until the container
// matching namePattern exits, copies configured outputs, and tears the project
// down unless KeepRunning is set.
func (l *Local) RunAndWaitOnClientExit(ctx context.Context, namePattern string) (harness.Result, error) {
	re, err := regexp.Compile(namePattern)
	if err != nil {
		return harness.Result{}, fmt.Errorf("client pattern %q: %w", namePattern, err)
	}
	if !l.stored {
		l.log.Warn("running without a stored config")
	}
	var fileArgs []string
	if l.opts.DryRun {
		fileArgs = []string{"--project-directory", l.opts.ProjectDir, "-p", compose.ProjectName(l.opts.ProjectDir), "-f", l.opts.ComposeFile}
	} else if fileArgs, err = compose.Files(l.opts.ProjectDir, l.opts.ComposeFile); err != nil {
		return harness.Result{}, err
	}

	if err := l.docker.Run(ctx, runner.Compose(fileArgs, "up", "-d")...); err != nil {
		return harness.Result{}, err
	}
	if !l.opts.KeepRunning {
		defer runner.BestEffort(context.Background(), l.docker, l.log, runner.Compose(fileArgs, "down")...)
	}

	out, err := l.docker.Output(ctx, runner.Compose(fileArgs, "ps", "-a", "--format", "json")...)
	if err != nil {
		return harness.Result{}, err
	}
	if l.opts.DryRun {
		return harness.Result{}, nil
	}
	list, err := ParsePS(out)
	if err != nil {
		return harness.Result{}, err
	}
	client, ok := Match(list, re)
	if !ok {
		return harness.Result{}, fmt.Errorf("%w: %s", ErrNoClientContainer, namePattern)
	}

	l.log.WithFields(logrus.Fields{"container": client.Name, "service": client.Service}).Info("waiting on client exit")
	code, err := l.wait(ctx, client.Name)
	if err != nil {
		return harness.Result{}, err
	}
	res := harness.Result{Container: client.Name, Service: client.Service, ExitCode: code}
	l.log.WithFields(logrus.Fields{"container": client.Name, "exit_code": code}).Info("client exited")

	outputs, err := l.copyOutputs(ctx, list)
	res.Outputs = outputs
	return res, err
}

func (l *Local) wait(ctx context.Context, container string) (int, error) {
	out, err := l.docker.Output(ctx, "wait", container)
	if err != nil {
		return 0, err
	}
	lines := strings.Fields(out)
	if len(lines) == 0 {
		return 0, fmt.Errorf("docker wait %s: no exit code", container)
	}
	code, err := strconv.Atoi(lines[len(lines)-1])
	if err != nil {
		return 0, fmt.Errorf("docker wait %s: %w", container, err)
	}
	return code, nil
}

func (l *Local) copyOutputs(ctx context.Context, list []Container) ([]string, error) {
	names := make([]string, 0, len(l.config.ContainerOutputPaths))
	for name := range l.config.ContainerOutputPaths {
		names = append(names, name)
	}
	sort.Strings(names)

	var copied []string
	var errs []error
	for _, name := range names {
		c, ok := byService(list, name)
		if !ok {
			l.log.WithField("service", name).Warn("no container for output paths")
			continue
		}
		mapping := l.config.ContainerOutputPaths[name]
		srcs := make([]string, 0, len(mapping))
		for src := range mapping {
			srcs = append(srcs, src)
		}
		sort.Strings(srcs)
		for _, src := range srcs {
			from, err := l.containerPath(ctx, c.Name, src)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			dst := mapping[src]
			if !filepath.IsAbs(dst) {
				dst = filepath.Join(l.opts.ProjectDir, dst)
			}
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				errs = append(errs, err)
				continue
			}
			if err := l.docker.Run(ctx, "cp", c.Name+":"+from, dst); err != nil {
				errs = append(errs, fmt.Errorf("copy %s:%s: %w", c.Name, from, err))
				continue
			}
			copied = append(copied, dst)
		}
	}
	return copied, errors.Join(errs...)
}

// containerPath resolves src against the container's working directory.
func (l *Local) containerPath(ctx context.Context, container, src string) (string, error) {
	if path.IsAbs(src) {
		return src, nil
	}
	out, err := l.docker.Output(ctx, "inspect", "--format", "{{.Config.WorkingDir}}", container)
	if err != nil {
		return "", err
	}
	wd := strings.TrimSpace(out)
	if wd == "" {
		wd = "/"
	}
	return path.Join(wd, src), nil
}

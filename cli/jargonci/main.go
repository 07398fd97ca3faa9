package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"jargonci/cli/jargonci/internal/cmdregistry"
	composecmd "jargonci/cli/jargonci/internal/commands/composecmd"
	harnesscmd "jargonci/cli/jargonci/internal/commands/harnesscmd"
	preflightcmd "jargonci/cli/jargonci/internal/commands/preflight"
	"jargonci/cli/jargonci/internal/config"
)

func usage(w io.Writer) {
	fmt.Fprint(w, `Usage: jargonci [flags] <command> [args]

Flags:
  --root DIR          harness root (default: parent of the binary dir, or $JARGONCI_ROOT)
  --project-dir DIR   compose project dir (default: <root>/docker-test-framework/4-2)
  --pre-hook PATH     executable run once before the compose file is patched
  --log-level LEVEL   logrus level (default: info)
  --dry-run           print docker commands instead of running them

Commands:
  init                run the pre-hook, patch docker-compose.yml, print the project dir
  run [--keep]        store the run config and wait for the maven client to exit
  test [--keep]       init followed by run; exits with the client exit code
  config              print the merged run config
  up|down|status      docker compose lifecycle for the project
  logs [args]         docker compose logs
  preflight           check docker, compose project and pre-hook
`)
}

func die(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}

type cliArgs struct {
	overrides config.Overrides
	cmd       string
	sub       []string
	help      bool
}

// parseArgs handles global flags anywhere before the command; everything after
// the command is passed to it untouched.
func parseArgs(args []string) (cliArgs, error) {
	var out cliArgs
	value := func(i int, flag string) (string, error) {
		if i+1 >= len(args) {
			return "", fmt.Errorf("%s requires value", flag)
		}
		return args[i+1], nil
	}
	for i := 0; i < len(args); i++ {
		a := args[i]
		if out.cmd != "" {
			out.sub = append(out.sub, a)
			continue
		}
		var err error
		switch a {
		case "--root":
			out.overrides.Root, err = value(i, a)
			i++
		case "--project-dir":
			out.overrides.ProjectDir, err = value(i, a)
			i++
		case "--pre-hook":
			out.overrides.PreHookScript, err = value(i, a)
			i++
		case "--log-level":
			out.overrides.LogLevel, err = value(i, a)
			i++
		case "--dry-run":
			out.overrides.DryRun = true
		case "-h", "--help", "help":
			out.help = true
			return out, nil
		default:
			if strings.HasPrefix(a, "-") {
				return out, fmt.Errorf("unknown flag: %s", a)
			}
			out.cmd = a
		}
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

func setupLogging(level string) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stderr)
	if lvl, err := log.ParseLevel(level); err == nil {
		log.SetLevel(lvl)
	} else {
		log.Warnf("invalid log level %s, defaulting to info", level)
	}
}

func newRegistry() *cmdregistry.Registry {
	registry := cmdregistry.New()
	harnesscmd.Register(registry)
	composecmd.Register(registry)
	preflightcmd.Register(registry)
	return registry
}

func main() {
	parsed, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if parsed.help {
		usage(os.Stdout)
		return
	}
	if parsed.cmd == "" {
		usage(os.Stderr)
		os.Exit(2)
	}

	exe, _ := os.Executable()
	settings, err := config.Load(exe, parsed.overrides)
	if err != nil {
		die(err.Error())
	}
	setupLogging(settings.LogLevel)
	log.WithFields(log.Fields{
		"root":     settings.Root,
		"project":  settings.ProjectDir,
		"pre_hook": settings.PreHookScript,
		"config":   settings.ConfigPath,
		"dry_run":  settings.DryRun,
	}).Debug("settings resolved")

	registry := newRegistry()
	handler, ok := registry.Lookup(parsed.cmd)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s (available: %s)\n", parsed.cmd, strings.Join(registry.Names(), ", "))
		os.Exit(2)
	}
	ctx := &cmdregistry.Context{
		Settings: settings,
		Args:     parsed.sub,
		Exe:      exe,
		Log:      log.StandardLogger(),
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}
	if err := handler(ctx); err != nil {
		var code cmdregistry.ExitCode
		if errors.As(err, &code) {
			os.Exit(code.Code)
		}
		die(err.Error())
	}
}

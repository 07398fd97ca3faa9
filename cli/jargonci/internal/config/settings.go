package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"jargonci/cli/jargonci/internal/paths"
)

// FileName is the optional settings file looked up under the harness root.
const FileName = "jargonci.yaml"

// FileConfig mirrors jargonci.yaml.
type FileConfig struct {
	ProjectDir    string            `yaml:"project_dir"`
	PreHookScript string            `yaml:"pre_hook_script"`
	LogLevel      string            `yaml:"log_level"`
	Env           map[string]string `yaml:"env"`
	// Defaults handed to the driver and merged under whatever the harness
	// stores. They never replace values the harness sets.
	Substitutions         map[string]string            `yaml:"yaml_substitutions"`
	ContainerEnvironments map[string]map[string]string `yaml:"container_environments"`
}

// Settings is resolved once at startup and passed to both harness entry points.
type Settings struct {
	Root        string
	ProjectDir  string
	ComposeFile string
	// PreHookScript is the absolute path of the preparation script. The empty
	// string means no pre-hook is configured.
	PreHookScript string
	LogLevel      string
	DryRun        bool

	Substitutions         map[string]string
	ContainerEnvironments map[string]map[string]string

	// ConfigPath is the settings file that was read, if any.
	ConfigPath string
}

// Overrides carries command-line values. Empty fields defer to the environment,
// then the settings file, then defaults.
type Overrides struct {
	Root          string
	ProjectDir    string
	PreHookScript string
	LogLevel      string
	DryRun        bool
}

// ReadFile parses a settings file. A missing file yields an empty config.
func ReadFile(path string) (FileConfig, error) {
	var cfg FileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Load resolves Settings. A .env file in the working directory is loaded first
// without overriding variables that are already set. Precedence per field:
// override, JARGONCI_* environment, settings file, default.
func Load(exe string, o Overrides) (Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Settings{}, fmt.Errorf("load .env: %w", err)
	}

	root := firstNonEmpty(o.Root, os.Getenv("JARGONCI_ROOT"))
	if root == "" {
		root = paths.DetectRoot(exe)
	}
	root = absClean(root, "")

	cfgPath := firstNonEmpty(os.Getenv("JARGONCI_CONFIG"), filepath.Join(root, FileName))
	fc, err := ReadFile(cfgPath)
	if err != nil {
		return Settings{}, err
	}
	if _, statErr := os.Stat(cfgPath); statErr != nil {
		cfgPath = ""
	}
	for k, v := range fc.Env {
		if _, set := os.LookupEnv(k); !set {
			_ = os.Setenv(k, v)
		}
	}

	s := Settings{
		Root:                  root,
		DryRun:                o.DryRun || os.Getenv("JARGONCI_DRY_RUN") == "1",
		Substitutions:         fc.Substitutions,
		ContainerEnvironments: fc.ContainerEnvironments,
		ConfigPath:            cfgPath,
	}
	s.ProjectDir = absClean(firstNonEmpty(o.ProjectDir, os.Getenv("JARGONCI_PROJECT_DIR"), fc.ProjectDir), root)
	if s.ProjectDir == "" {
		s.ProjectDir = paths.ProjectDir(root)
	}
	s.ComposeFile = paths.ComposeFile(s.ProjectDir)
	s.PreHookScript = absClean(firstNonEmpty(o.PreHookScript, os.Getenv("JARGONCI_PRE_HOOK"), fc.PreHookScript), root)
	s.LogLevel = firstNonEmpty(o.LogLevel, os.Getenv("JARGONCI_LOG_LEVEL"), fc.LogLevel, "info")
	if s.Substitutions == nil {
		s.Substitutions = map[string]string{}
	}
	if s.ContainerEnvironments == nil {
		s.ContainerEnvironments = map[string]map[string]string{}
	}
	return s, nil
}

// absClean makes p absolute relative to base (or the working directory when
// base is empty). Empty input stays empty.
func absClean(p, base string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if !filepath.IsAbs(p) {
		if base != "" {
			p = filepath.Join(base, p)
		} else if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
	}
	return filepath.Clean(p)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

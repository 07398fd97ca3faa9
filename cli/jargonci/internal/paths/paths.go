package paths

import (
	"os"
	"path/filepath"
	"strings"
)

// ProjectSubdir is the compose project location relative to the harness root.
const ProjectSubdir = "docker-test-framework/4-2"

// ComposeFileName is the compose document inside the project directory.
const ComposeFileName = "docker-compose.yml"

// ClientService is the compose service that runs the test suite.
const ClientService = "maven"

// ClientNamePattern matches the client container name exactly.
const ClientNamePattern = "^" + ClientService + "$"

// BuildCommand replaces the client service command. Output of the maven build
// lands in the mounted log directory.
const BuildCommand = `sh -c "cd /usr/src/jargon ; mvn -s settings.xml install >/output_logs/test_output.txt 2>&1"`

// OutputLogsVolume bind-mounts the project dir into the client for build logs.
const OutputLogsVolume = "./:/output_logs:rw"

// ClientOutputDir receives files copied out of the client container.
const ClientOutputDir = "./maven-client-output"

// DetectRoot returns the harness root. JARGONCI_ROOT wins; otherwise the
// binary is expected under <root>/bin/jargonci.
func DetectRoot(exePath string) string {
	if root := strings.TrimSpace(os.Getenv("JARGONCI_ROOT")); root != "" {
		return filepath.Clean(root)
	}
	if exePath == "" {
		if wd, err := os.Getwd(); err == nil {
			return wd
		}
		return "."
	}
	return filepath.Clean(filepath.Join(filepath.Dir(exePath), ".."))
}

// ProjectDir returns the compose project directory under root.
func ProjectDir(root string) string {
	return filepath.Join(root, filepath.FromSlash(ProjectSubdir))
}

// ComposeFile returns the compose document path for a project directory.
func ComposeFile(projectDir string) string {
	return filepath.Join(projectDir, ComposeFileName)
}

// EnvFile returns the env file path the driver writes for a container.
// An empty name selects the compose-level .env file.
func EnvFile(projectDir, container string) string {
	if strings.TrimSpace(container) == "" {
		return filepath.Join(projectDir, ".env")
	}
	return filepath.Join(projectDir, container+".env")
}

package compose

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var projectNameInvalid = regexp.MustCompile(`[^a-z0-9_-]+`)

// ProjectName derives a docker compose project name from the project directory,
// e.g. /ci/docker-test-framework/4-2 -> docker-test-framework-4-2.
func ProjectName(projectDir string) string {
	clean := filepath.Clean(projectDir)
	base := filepath.Base(clean)
	parent := filepath.Base(filepath.Dir(clean))
	name := base
	if parent != "" && parent != "." && parent != string(filepath.Separator) {
		name = parent + "-" + base
	}
	name = projectNameInvalid.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(name, "-_")
}

// Files builds the docker compose arguments that pin the project directory,
// project name and compose file.
func Files(projectDir, composeFile string) ([]string, error) {
	if !fileExists(composeFile) {
		return nil, fmt.Errorf("compose file %s not found", composeFile)
	}
	return []string{
		"--project-directory", projectDir,
		"-p", ProjectName(projectDir),
		"-f", composeFile,
	}, nil
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

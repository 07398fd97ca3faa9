package harness

import (
	"jargonci/cli/jargonci/internal/paths"
)

// Config is the run configuration exchanged with the driver. All three keys
// are always serialized, empty or not.
type Config struct {
	// YAMLSubstitutions end up in the compose .env file.
	YAMLSubstitutions map[string]string `json:"yaml_substitutions" yaml:"yaml_substitutions"`
	// ContainerEnvironments end up in <container>.env files.
	ContainerEnvironments map[string]map[string]string `json:"container_environments" yaml:"container_environments"`
	// ContainerOutputPaths map a path inside the container to a host path.
	ContainerOutputPaths map[string]map[string]string `json:"container_output_paths" yaml:"container_output_paths"`
}

// DefaultConfig returns the configuration the harness stores. Substitutions
// and the maven environment are left empty for the driver to fill; an empty
// TESTS_TO_RUN conventionally runs every test.
func DefaultConfig() Config {
	return Config{
		YAMLSubstitutions: map[string]string{},
		ContainerEnvironments: map[string]map[string]string{
			paths.ClientService: {},
		},
		ContainerOutputPaths: map[string]map[string]string{
			paths.ClientService: {".": paths.ClientOutputDir},
		},
	}
}

// Normalize replaces nil maps so every key serializes as an object.
func (c Config) Normalize() Config {
	if c.YAMLSubstitutions == nil {
		c.YAMLSubstitutions = map[string]string{}
	}
	if c.ContainerEnvironments == nil {
		c.ContainerEnvironments = map[string]map[string]string{}
	}
	if c.ContainerOutputPaths == nil {
		c.ContainerOutputPaths = map[string]map[string]string{}
	}
	return c
}

// Clone deep-copies the configuration.
func (c Config) Clone() Config {
	out := Config{
		YAMLSubstitutions:     cloneFlat(c.YAMLSubstitutions),
		ContainerEnvironments: cloneNested(c.ContainerEnvironments),
		ContainerOutputPaths:  cloneNested(c.ContainerOutputPaths),
	}
	return out.Normalize()
}

func cloneFlat(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneNested(in map[string]map[string]string) map[string]map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]map[string]string, len(in))
	for k, v := range in {
		out[k] = cloneFlat(v)
		if out[k] == nil {
			out[k] = map[string]string{}
		}
	}
	return out
}

// Result is what the driver reports once the client container exits.
type Result struct {
	Container string `json:"container"`
	Service   string `json:"service"`
	ExitCode  int    `json:"exit_code"`
	// Outputs lists host paths that received copied container output.
	Outputs []string `json:"outputs,omitempty"`
}

// Passed reports whether the client exited zero.
func (r Result) Passed() bool { return r.ExitCode == 0 }

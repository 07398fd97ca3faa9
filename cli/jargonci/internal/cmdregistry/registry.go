package cmdregistry

import (
	"fmt"
	"io"
	"sort"

	"github.com/sirupsen/logrus"

	"jargonci/cli/jargonci/internal/config"
)

// Context carries the pre-parsed data and handles that command handlers need.
type Context struct {
	Settings config.Settings
	Args     []string
	Exe      string
	Log      logrus.FieldLogger
	Stdout   io.Writer
	Stderr   io.Writer
}

// ExitCode asks main to exit with Code without printing an error.
type ExitCode struct {
	Code int
}

func (e ExitCode) Error() string { return fmt.Sprintf("exit status %d", e.Code) }

// Handler executes a command given the shared context.
type Handler func(*Context) error

// Registry maps command names to handlers.
type Registry struct {
	commands map[string]Handler
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{commands: make(map[string]Handler)}
}

// Register sets the handler for cmd. It panics if cmd already exists.
func (r *Registry) Register(cmd string, h Handler) {
	if _, exists := r.commands[cmd]; exists {
		panic(fmt.Sprintf("command %s already registered", cmd))
	}
	r.commands[cmd] = h
}

// Lookup returns the handler and whether it exists.
func (r *Registry) Lookup(cmd string) (Handler, bool) {
	h, ok := r.commands[cmd]
	return h, ok
}

// Names lists registered commands, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.commands))
	for name := range r.commands {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

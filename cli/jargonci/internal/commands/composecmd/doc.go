// Package composecmd covers simple docker-compose lifecycle commands such as
// up/down/status/logs for the CI project directory.
//
// Handlers are registered with the CLI command registry so `main.go` stays
// focused on argument parsing.
package composecmd

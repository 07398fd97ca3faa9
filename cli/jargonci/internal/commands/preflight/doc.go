// Package preflight implements the "preflight" host diagnostics command.
// It checks for docker availability, the compose project and its maven
// service, and the pre-hook script when one is configured.
package preflight

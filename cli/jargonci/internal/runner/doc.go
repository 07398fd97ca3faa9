// Package runner centralizes helpers that execute docker and docker compose
// commands for the CI driver.
//
// The wrappers keep consistent dry-run printing and exit handling: a non-zero
// exit becomes an error carrying the exit code instead of terminating the
// process, so the harness decides how to fail.
package runner

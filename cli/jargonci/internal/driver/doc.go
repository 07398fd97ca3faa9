// Package driver is a local CI driver that runs the compose project with the
// docker CLI. It writes the stored configuration to env files, brings the
// project up, waits for the client container and copies its outputs back to
// the host.
package driver

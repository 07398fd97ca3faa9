// Package harness holds the two entry points a CI driver calls for the
// docker-compose test project: Init prepares the compose project and returns
// its directory, Run hands the run configuration to the driver and waits for
// the maven client container to exit.
//
// Both are synchronous and fail fast. Errors from the driver are returned
// unchanged.
package harness

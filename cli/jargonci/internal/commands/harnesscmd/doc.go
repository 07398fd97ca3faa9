// Package harnesscmd registers the CI entry points: init prepares the compose
// project, run hands it to the local driver, test does both, and config shows
// the merged configuration without starting containers.
package harnesscmd

//go:build unix

package prehook

import "golang.org/x/sys/unix"

// executable reports whether the current process may execute path.
func executable(path string) bool {
	return unix.Access(path, unix.X_OK) == nil
}

//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd && !windows

package cli

// IsTerminal conservatively reports false on platforms without terminal
// detection support; diagnostics fall back to plain output.
func IsTerminal(fd uintptr) bool {
	return false
}

//go:build linux

package cli

import "golang.org/x/sys/unix"

// IsTerminal reports whether the file descriptor is attached to a
// terminal, used to decide whether diagnostics are colorized.
func IsTerminal(fd uintptr) bool {
	_, err := unix.IoctlGetTermios(int(fd), unix.TCGETS)
	return err == nil
}

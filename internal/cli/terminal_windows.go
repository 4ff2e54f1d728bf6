//go:build windows

package cli

import "golang.org/x/sys/windows"

// IsTerminal reports whether the handle is attached to a console,
// used to decide whether diagnostics are colorized.
func IsTerminal(fd uintptr) bool {
	var mode uint32
	err := windows.GetConsoleMode(windows.Handle(fd), &mode)
	return err == nil
}

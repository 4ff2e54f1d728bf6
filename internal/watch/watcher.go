// Package watch provides file change notification for the compiler's
// watch mode, built on OS-native notifications via fsnotify.
package watch

import (
	"github.com/fsnotify/fsnotify"
)

// WatchOp is a bitmask of change operations.
type WatchOp uint32

const (
	OpCreate WatchOp = 1 << iota
	OpWrite
	OpRemove
	OpRename
	OpChmod
)

// Event is one observed file change.
type Event struct {
	Path string
	Op   WatchOp
}

// Watcher delivers file change events for registered paths.
type Watcher struct {
	w   *fsnotify.Watcher
	evC chan Event
	erC chan error
}

// New creates a Watcher.
func New() (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	fw := &Watcher{w: w, evC: make(chan Event, 128), erC: make(chan error, 1)}
	go fw.loop()
	return fw, nil
}

func (fw *Watcher) loop() {
	for {
		select {
		case ev, ok := <-fw.w.Events:
			if !ok {
				return
			}
			var op WatchOp
			if ev.Op&fsnotify.Create != 0 {
				op |= OpCreate
			}
			if ev.Op&fsnotify.Write != 0 {
				op |= OpWrite
			}
			if ev.Op&fsnotify.Remove != 0 {
				op |= OpRemove
			}
			if ev.Op&fsnotify.Rename != 0 {
				op |= OpRename
			}
			if ev.Op&fsnotify.Chmod != 0 {
				op |= OpChmod
			}
			fw.evC <- Event{Path: ev.Name, Op: op}
		case err, ok := <-fw.w.Errors:
			if !ok {
				return
			}
			fw.erC <- err
		}
	}
}

// Events returns the change event channel.
func (fw *Watcher) Events() <-chan Event { return fw.evC }

// Errors returns the error channel.
func (fw *Watcher) Errors() <-chan error { return fw.erC }

// Add registers a path for watching.
func (fw *Watcher) Add(name string) error { return fw.w.Add(name) }

// Close stops the watcher.
func (fw *Watcher) Close() error { return fw.w.Close() }

package watcher

import "time"

// EventType classifies what happened to a file in the library folder.
type EventType int

const (
	// EventAdded fires for a file not seen before, once it has settled.
	EventAdded EventType = iota
	// EventModified fires for a known file whose content changed.
	EventModified
	// EventRemoved fires when a file disappears.
	EventRemoved
	// EventMoved fires when a file is renamed within the watched tree.
	EventMoved
)

func (t EventType) String() string {
	switch t {
	case EventAdded:
		return "added"
	case EventModified:
		return "modified"
	case EventRemoved:
		return "removed"
	case EventMoved:
		return "moved"
	default:
		return "unknown"
	}
}

// Event describes one settled file system change. For removals only
// Type and Path are populated; the file is already gone by the time
// the event is read.
type Event struct {
	Type EventType

	// Path is the file's current location.
	Path string

	// OldPath is the previous location, set only for move events.
	OldPath string

	// Inode identifies the file across renames on platforms that have one.
	Inode uint64

	Size    int64
	ModTime time.Time
}

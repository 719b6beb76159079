// Package processor turns file system events from the watcher into
// library mutations.
package processor

import (
	"github.com/shiori-reader/shiori-server/internal/format"
)

// FileType represents the type of file detected by the classifier.
type FileType int

const (
	// FileTypeBook represents files the format detector recognizes.
	FileTypeBook FileType = iota
	// FileTypeIgnored represents everything else (sidecar files, temp
	// files, partial downloads).
	FileTypeIgnored
)

// String returns the string representation of a FileType.
func (ft FileType) String() string {
	switch ft {
	case FileTypeBook:
		return "book"
	case FileTypeIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// classifyFile decides whether a path is worth reacting to. The check
// is extension only; the importer runs full format detection on the
// file contents before anything enters the library.
func classifyFile(path string) FileType {
	if path == "" {
		return FileTypeIgnored
	}
	if format.KnownExtension(path) {
		return FileTypeBook
	}
	return FileTypeIgnored
}

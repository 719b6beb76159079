package watcher

import (
	"path/filepath"
	"strings"
	"time"
)

// Options configures which changes a Watcher reports.
type Options struct {
	// IgnorePatterns are filepath.Match patterns tested against base names.
	IgnorePatterns []string

	// Extensions, when non-empty, restricts file events to paths with one
	// of these extensions (lowercase, with leading dot). Directories are
	// never filtered by extension. Partial downloads and sidecar files in
	// the library folder stay invisible this way.
	Extensions []string

	// SettleDelay is how long a file must stay unchanged before the
	// fallback backend reports it. The inotify backend keys on close
	// instead and does not use it.
	SettleDelay time.Duration

	// IgnoreHidden skips dot-files and anything under dot-directories.
	IgnoreHidden bool
}

func (o *Options) setDefaults() {
	if o.SettleDelay == 0 {
		o.SettleDelay = 100 * time.Millisecond
	}

	// nil means the caller gave no ignore config at all; an explicit empty
	// slice keeps the caller's IgnoreHidden choice.
	if o.IgnorePatterns == nil {
		o.IgnorePatterns = []string{
			".DS_Store",
			"*.tmp",
			"*.temp",
			"*.part",
			"*.crdownload",
			"Thumbs.db",
		}
		o.IgnoreHidden = true
	}
}

// shouldIgnore reports whether a path is excluded from watching entirely.
func (o *Options) shouldIgnore(path string) bool {
	if o.IgnoreHidden {
		parts := strings.Split(filepath.Clean(path), string(filepath.Separator))
		for _, part := range parts {
			if strings.HasPrefix(part, ".") && part != "." && part != ".." {
				return true
			}
		}
	}

	base := filepath.Base(path)
	for _, pattern := range o.IgnorePatterns {
		matched, err := filepath.Match(pattern, base)
		if err == nil && matched {
			return true
		}
	}

	return false
}

// wantsFile reports whether a file path passes the extension filter.
func (o *Options) wantsFile(path string) bool {
	if len(o.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range o.Extensions {
		if ext == want {
			return true
		}
	}
	return false
}

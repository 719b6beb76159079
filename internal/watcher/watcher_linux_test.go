//go:build linux

package watcher

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLinuxBackend(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	opts := Options{}
	opts.setDefaults()

	backend, err := newLinuxBackend(logger, opts)
	require.NoError(t, err)
	require.NotNil(t, backend)

	err = backend.Stop()
	assert.NoError(t, err)
}

func TestLinuxBackend_WatchSeedsExistingFiles(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	opts := Options{}
	opts.setDefaults()

	backend, err := newLinuxBackend(logger, opts)
	require.NoError(t, err)
	defer backend.Stop()

	tmpDir := t.TempDir()
	book := filepath.Join(tmpDir, "voyage.epub")
	require.NoError(t, os.WriteFile(book, []byte("zipped pages"), 0o644))

	require.NoError(t, backend.Watch(tmpDir))

	// Files present before watching count as seen, so a later write to
	// them reports as a modification.
	backend.mu.RLock()
	seen := backend.seen[book]
	backend.mu.RUnlock()
	assert.True(t, seen)
}

func TestLinuxBackend_Channels(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	opts := Options{}
	opts.setDefaults()

	backend, err := newLinuxBackend(logger, opts)
	require.NoError(t, err)
	defer backend.Stop()

	assert.NotNil(t, backend.Events(), "Events channel should not be nil")
	assert.NotNil(t, backend.Errors(), "Errors channel should not be nil")
}

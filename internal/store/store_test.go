package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shiori-reader/shiori-server/internal/domain"
)

func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	// Create temp directory for test database
	tmpDir, err := os.MkdirTemp("", "shiori-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")

	// Create store with noop emitter for testing
	store, err := New(dbPath, nil, NewNoopEmitter())
	require.NoError(t, err)
	require.NotNil(t, store)

	// Return cleanup function
	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}

	return store, cleanup
}

// Helper function to create a test book
func createTestBook(id string) *domain.Book {
	now := time.Now()
	return &domain.Book{
		ID:           id,
		Title:        "Test Book " + id,
		Authors:      []string{"Test Author"},
		Language:     "en",
		Path:         "/test/library/" + id + ".epub",
		Format:       "epub",
		FileSize:     1024000,
		FileHash:     "hash-" + id,
		ChapterCount: 12,
		AddedAt:      now,
		UpdatedAt:    now,
	}
}

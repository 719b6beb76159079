package reader

import (
	"context"

	"github.com/shiori-reader/shiori-server/internal/domain"
)

// Backend is the boundary between the reading pipeline and book storage.
// Implementations open archives, serve chapters and resources, and
// persist reading progress.
type Backend interface {
	// OpenBook prepares a book for reading and returns its metadata.
	// Exactly one live open per book id; a second open for the same id
	// returns the existing metadata.
	OpenBook(ctx context.Context, bookID string) (*domain.BookMetadata, error)

	// CloseBook releases the resources held for an open book. Closing a
	// book that is not open is not an error.
	CloseBook(ctx context.Context, bookID string) error

	// GetChapter returns one navigation unit by spine index.
	GetChapter(ctx context.Context, bookID string, index int) (*domain.Chapter, error)

	// GetResource returns the bytes of a resource referenced from
	// chapter markup, addressed relative to the archive root.
	GetResource(ctx context.Context, bookID, ref string) ([]byte, error)

	// GetProgress returns the persisted reading position, or nil when
	// the book has never been read.
	GetProgress(ctx context.Context, bookID string) (*domain.ReadingProgress, error)

	// SaveProgress persists the reading position. Callers treat this as
	// best effort.
	SaveProgress(ctx context.Context, bookID, location string, progressPercent float64) error
}

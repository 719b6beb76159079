package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/shiori-reader/shiori-server/internal/domain"
	"github.com/shiori-reader/shiori-server/internal/sse"
)

const progressPrefix = "progress:"

var ErrProgressNotFound = errors.New("reading progress not found")

// Progress Operations
//
// Progress is keyed by book ID. The reader owns throttling and debouncing;
// by the time a write reaches the store it is meant to be persisted.

// SaveProgress stores the reading position for a book.
func (s *Store) SaveProgress(ctx context.Context, progress *domain.ReadingProgress) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := []byte(progressPrefix + progress.BookID)
	if err := s.set(key, progress); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}

	if s.logger != nil {
		s.logger.Debug("progress saved",
			"book_id", progress.BookID,
			"location", progress.Location,
			"percent", progress.ProgressPercent)
	}

	s.eventEmitter.Emit(sse.NewProgressUpdatedEvent(progress))
	return nil
}

// GetProgress retrieves the reading position for a book.
func (s *Store) GetProgress(ctx context.Context, bookID string) (*domain.ReadingProgress, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := []byte(progressPrefix + bookID)

	var progress domain.ReadingProgress
	err := s.get(key, &progress)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrProgressNotFound
		}
		return nil, fmt.Errorf("get progress: %w", err)
	}
	return &progress, nil
}

// DeleteProgress removes the reading position for a book.
func (s *Store) DeleteProgress(ctx context.Context, bookID string) error {
	key := []byte(progressPrefix + bookID)

	exists, err := s.exists(key)
	if err != nil {
		return fmt.Errorf("check progress exists: %w", err)
	}
	if !exists {
		return ErrProgressNotFound
	}

	if err := s.delete(key); err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	return nil
}

// RecentProgress returns reading positions ordered by most recently read.
// Used for the "continue reading" shelf; limit <= 0 returns everything.
func (s *Store) RecentProgress(ctx context.Context, limit int) ([]*domain.ReadingProgress, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	all, err := listPrefix[domain.ReadingProgress](s, []byte(progressPrefix))
	if err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].LastRead.After(all[j].LastRead)
	})

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/shiori-reader/shiori-server/internal/domain"
	"github.com/shiori-reader/shiori-server/internal/sse"
)

const (
	annotationPrefix       = "annotation:"
	annotationByBookPrefix = "idx:annotations:book:"
)

var ErrAnnotationNotFound = errors.New("annotation not found")

// Annotation Operations
//
// Index format: "idx:annotations:book:<bookID>:<annotationID>" -> annotationID.
// The annotation ID is part of the index key so one book can hold many annotations.

// CreateAnnotation creates a new annotation with its book index.
func (s *Store) CreateAnnotation(ctx context.Context, annotation *domain.Annotation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := []byte(annotationPrefix + annotation.ID)

	err := s.db.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(annotation)
		if err != nil {
			return fmt.Errorf("marshal annotation: %w", err)
		}

		if err := txn.Set(key, data); err != nil {
			return err
		}

		bookKey := []byte(annotationByBookPrefix + annotation.BookID + ":" + annotation.ID)
		return txn.Set(bookKey, []byte(annotation.ID))
	})
	if err != nil {
		return fmt.Errorf("create annotation: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("annotation created",
			"id", annotation.ID,
			"book_id", annotation.BookID,
			"type", annotation.Type)
	}

	s.eventEmitter.Emit(sse.NewAnnotationCreatedEvent(annotation))
	return nil
}

// GetAnnotation retrieves an annotation by ID.
func (s *Store) GetAnnotation(ctx context.Context, id string) (*domain.Annotation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := []byte(annotationPrefix + id)

	var annotation domain.Annotation
	err := s.get(key, &annotation)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrAnnotationNotFound
		}
		return nil, fmt.Errorf("get annotation: %w", err)
	}
	return &annotation, nil
}

// UpdateAnnotation updates an existing annotation.
// The book an annotation belongs to never changes, so no index maintenance is needed.
func (s *Store) UpdateAnnotation(ctx context.Context, annotation *domain.Annotation) error {
	key := []byte(annotationPrefix + annotation.ID)

	exists, err := s.exists(key)
	if err != nil {
		return fmt.Errorf("check annotation exists: %w", err)
	}
	if !exists {
		return ErrAnnotationNotFound
	}

	if err := s.set(key, annotation); err != nil {
		return fmt.Errorf("update annotation: %w", err)
	}
	return nil
}

// DeleteAnnotation deletes an annotation and its book index.
func (s *Store) DeleteAnnotation(ctx context.Context, id string) error {
	annotation, err := s.GetAnnotation(ctx, id)
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(annotationPrefix + id)); err != nil {
			return err
		}

		bookKey := []byte(annotationByBookPrefix + annotation.BookID + ":" + id)
		return txn.Delete(bookKey)
	})
	if err != nil {
		return fmt.Errorf("delete annotation: %w", err)
	}

	s.eventEmitter.Emit(sse.NewAnnotationDeletedEvent(annotation))
	return nil
}

// GetAnnotationsForBook returns all annotations for a book, oldest first.
func (s *Store) GetAnnotationsForBook(ctx context.Context, bookID string) ([]*domain.Annotation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids, err := s.idsForIndexPrefix([]byte(annotationByBookPrefix + bookID + ":"))
	if err != nil {
		return nil, fmt.Errorf("scan annotations for book %s: %w", bookID, err)
	}

	annotations := make([]*domain.Annotation, 0, len(ids))
	for _, id := range ids {
		annotation, err := s.GetAnnotation(ctx, id)
		if err != nil {
			if errors.Is(err, ErrAnnotationNotFound) {
				// Dangling index entry; skip rather than fail the listing.
				if s.logger != nil {
					s.logger.Warn("dangling annotation index entry", "id", id, "book_id", bookID)
				}
				continue
			}
			return nil, err
		}
		annotations = append(annotations, annotation)
	}

	sort.Slice(annotations, func(i, j int) bool {
		return annotations[i].CreatedAt.Before(annotations[j].CreatedAt)
	})
	return annotations, nil
}

// DeleteAnnotationsForBook removes all annotations for a book.
// Used when a book is deleted from the library.
func (s *Store) DeleteAnnotationsForBook(ctx context.Context, bookID string) error {
	ids, err := s.idsForIndexPrefix([]byte(annotationByBookPrefix + bookID + ":"))
	if err != nil {
		return fmt.Errorf("scan annotations for book %s: %w", bookID, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, id := range ids {
			if err := txn.Delete([]byte(annotationPrefix + id)); err != nil {
				return err
			}
			bookKey := []byte(annotationByBookPrefix + bookID + ":" + id)
			if err := txn.Delete(bookKey); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete annotations for book: %w", err)
	}

	if s.logger != nil && len(ids) > 0 {
		s.logger.Info("annotations deleted with book", "book_id", bookID, "count", len(ids))
	}
	return nil
}

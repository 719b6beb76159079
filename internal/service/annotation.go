package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shiori-reader/shiori-server/internal/domain"
	apperrors "github.com/shiori-reader/shiori-server/internal/errors"
	"github.com/shiori-reader/shiori-server/internal/id"
	"github.com/shiori-reader/shiori-server/internal/sse"
	"github.com/shiori-reader/shiori-server/internal/store"
)

// AnnotationService manages highlights, notes, and bookmarks.
type AnnotationService struct {
	store      *store.Store
	sseManager *sse.Manager
	logger     *slog.Logger
}

// NewAnnotationService creates a new annotation service.
func NewAnnotationService(store *store.Store, sseManager *sse.Manager, logger *slog.Logger) *AnnotationService {
	return &AnnotationService{
		store:      store,
		sseManager: sseManager,
		logger:     logger,
	}
}

// CreateAnnotation validates and persists a new annotation. The book
// must exist and Location must be a well-formed location token.
func (s *AnnotationService) CreateAnnotation(ctx context.Context, annotation *domain.Annotation) (*domain.Annotation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !annotation.Type.Valid() {
		return nil, apperrors.Validationf("unknown annotation type %q", annotation.Type)
	}
	if _, err := domain.ParseLocation(annotation.Location); err != nil {
		return nil, apperrors.Validationf("bad location token %q", annotation.Location)
	}
	if annotation.Type == domain.AnnotationHighlight && annotation.SelectedText == "" {
		return nil, apperrors.Validation("highlight needs selected text")
	}

	exists, err := s.store.BookExists(ctx, annotation.BookID)
	if err != nil {
		return nil, fmt.Errorf("check book: %w", err)
	}
	if !exists {
		return nil, apperrors.NotFoundf("book %s not found", annotation.BookID)
	}

	now := time.Now()
	annotation.ID = id.MustGenerate("anno")
	annotation.CreatedAt = now
	annotation.UpdatedAt = now

	if err := s.store.CreateAnnotation(ctx, annotation); err != nil {
		return nil, fmt.Errorf("create annotation: %w", err)
	}

	s.logger.Info("annotation created",
		"annotation_id", annotation.ID,
		"book_id", annotation.BookID,
		"type", annotation.Type,
	)

	if s.sseManager != nil {
		s.sseManager.Emit(sse.NewAnnotationCreatedEvent(annotation))
	}
	return annotation, nil
}

// GetAnnotation returns one annotation by ID.
func (s *AnnotationService) GetAnnotation(ctx context.Context, annotationID string) (*domain.Annotation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	annotation, err := s.store.GetAnnotation(ctx, annotationID)
	if err != nil {
		return nil, fmt.Errorf("get annotation: %w", err)
	}
	return annotation, nil
}

// ListForBook returns a book's annotations ordered by location.
func (s *AnnotationService) ListForBook(ctx context.Context, bookID string) ([]*domain.Annotation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	annotations, err := s.store.GetAnnotationsForBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("list annotations: %w", err)
	}
	return annotations, nil
}

// UpdateAnnotation persists edits to an annotation's note and color. The
// anchor (type, location, selected text) is immutable.
func (s *AnnotationService) UpdateAnnotation(ctx context.Context, annotationID, note, color string) (*domain.Annotation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	annotation, err := s.store.GetAnnotation(ctx, annotationID)
	if err != nil {
		return nil, fmt.Errorf("get annotation: %w", err)
	}

	annotation.Note = note
	annotation.Color = color
	annotation.UpdatedAt = time.Now()

	if err := s.store.UpdateAnnotation(ctx, annotation); err != nil {
		return nil, fmt.Errorf("update annotation: %w", err)
	}

	s.logger.Info("annotation updated", "annotation_id", annotationID)
	return annotation, nil
}

// DeleteAnnotation removes an annotation.
func (s *AnnotationService) DeleteAnnotation(ctx context.Context, annotationID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	annotation, err := s.store.GetAnnotation(ctx, annotationID)
	if err != nil {
		return fmt.Errorf("get annotation: %w", err)
	}

	if err := s.store.DeleteAnnotation(ctx, annotationID); err != nil {
		return fmt.Errorf("delete annotation: %w", err)
	}

	s.logger.Info("annotation deleted", "annotation_id", annotationID, "book_id", annotation.BookID)

	if s.sseManager != nil {
		s.sseManager.Emit(sse.NewAnnotationDeletedEvent(annotation))
	}
	return nil
}

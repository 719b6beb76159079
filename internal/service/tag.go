package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	tagcolor "github.com/shiori-reader/shiori-server/internal/color"
	"github.com/shiori-reader/shiori-server/internal/domain"
	apperrors "github.com/shiori-reader/shiori-server/internal/errors"
	"github.com/shiori-reader/shiori-server/internal/id"
	"github.com/shiori-reader/shiori-server/internal/sse"
	"github.com/shiori-reader/shiori-server/internal/store"
)

// TagService manages tags and their attachment to books.
type TagService struct {
	store      *store.Store
	sseManager *sse.Manager
	logger     *slog.Logger
}

// NewTagService creates a new tag service.
func NewTagService(store *store.Store, sseManager *sse.Manager, logger *slog.Logger) *TagService {
	return &TagService{
		store:      store,
		sseManager: sseManager,
		logger:     logger,
	}
}

// CreateTag creates a tag. Name identity is the normalized slug, so
// "Slow Burn" and "slow_burn" are the same tag; creating an existing name
// returns the existing tag with ALREADY_EXISTS. Tags created without a
// color get a deterministic one derived from the name.
func (s *TagService) CreateTag(ctx context.Context, name, color string) (*domain.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.Validation("tag name is empty")
	}

	if existing, err := s.store.GetTagByName(ctx, name); err == nil {
		return existing, apperrors.AlreadyExists(fmt.Sprintf("tag %q already exists", name))
	} else if !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("check name: %w", err)
	}

	if color == "" {
		color = tagcolor.ForName(name)
	}

	tag := &domain.Tag{
		ID:        id.MustGenerate("tag"),
		Name:      name,
		Color:     color,
		CreatedAt: time.Now(),
	}

	if err := s.store.CreateTag(ctx, tag); err != nil {
		return nil, fmt.Errorf("create tag: %w", err)
	}

	s.logger.Info("tag created", "tag_id", tag.ID, "name", name)
	return tag, nil
}

// ListTags returns all tags.
func (s *TagService) ListTags(ctx context.Context) ([]*domain.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tags, err := s.store.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

// DeleteTag removes a tag and detaches it from every book carrying it.
func (s *TagService) DeleteTag(ctx context.Context, tagID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := s.store.GetTag(ctx, tagID); err != nil {
		return fmt.Errorf("get tag: %w", err)
	}

	books, err := s.store.AllBooks(ctx)
	if err != nil {
		return fmt.Errorf("list books: %w", err)
	}
	for _, book := range books {
		i := slices.Index(book.TagIDs, tagID)
		if i < 0 {
			continue
		}
		book.TagIDs = slices.Delete(book.TagIDs, i, i+1)
		book.Touch()
		if err := s.store.UpdateBook(ctx, book); err != nil {
			s.logger.Warn("failed to detach tag", "tag_id", tagID, "book_id", book.ID, "error", err)
		}
	}

	if err := s.store.DeleteTag(ctx, tagID); err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}

	s.logger.Info("tag deleted", "tag_id", tagID)
	return nil
}

// TagBook attaches a tag to a book. Tagging twice is a no-op.
func (s *TagService) TagBook(ctx context.Context, bookID, tagID string) (*domain.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := s.store.GetTag(ctx, tagID); err != nil {
		return nil, fmt.Errorf("get tag: %w", err)
	}
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}

	if slices.Contains(book.TagIDs, tagID) {
		return book, nil
	}
	book.TagIDs = append(book.TagIDs, tagID)
	book.Touch()

	if err := s.store.UpdateBook(ctx, book); err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}

	s.logger.Info("book tagged", "book_id", bookID, "tag_id", tagID)

	if s.sseManager != nil {
		s.sseManager.Emit(sse.NewBookUpdatedEvent(book))
	}
	return book, nil
}

// UntagBook detaches a tag from a book.
func (s *TagService) UntagBook(ctx context.Context, bookID, tagID string) (*domain.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}

	i := slices.Index(book.TagIDs, tagID)
	if i < 0 {
		return book, nil
	}
	book.TagIDs = slices.Delete(book.TagIDs, i, i+1)
	book.Touch()

	if err := s.store.UpdateBook(ctx, book); err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}

	s.logger.Info("book untagged", "book_id", bookID, "tag_id", tagID)

	if s.sseManager != nil {
		s.sseManager.Emit(sse.NewBookUpdatedEvent(book))
	}
	return book, nil
}

// TagNames resolves tag IDs to display names, skipping dangling IDs.
func (s *TagService) TagNames(ctx context.Context, tagIDs []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(tagIDs))
	for _, tagID := range tagIDs {
		tag, err := s.store.GetTag(ctx, tagID)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("get tag: %w", err)
		}
		names = append(names, tag.Name)
	}
	return names, nil
}

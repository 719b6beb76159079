package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shiori-reader/shiori-server/internal/domain"
	apperrors "github.com/shiori-reader/shiori-server/internal/errors"
	"github.com/shiori-reader/shiori-server/internal/id"
	"github.com/shiori-reader/shiori-server/internal/sse"
	"github.com/shiori-reader/shiori-server/internal/store"
)

// CollectionService manages user-curated book collections.
type CollectionService struct {
	store      *store.Store
	sseManager *sse.Manager
	logger     *slog.Logger
}

// NewCollectionService creates a new collection service.
func NewCollectionService(store *store.Store, sseManager *sse.Manager, logger *slog.Logger) *CollectionService {
	return &CollectionService{
		store:      store,
		sseManager: sseManager,
		logger:     logger,
	}
}

// CreateCollection creates an empty collection. Names are unique.
func (s *CollectionService) CreateCollection(ctx context.Context, name, description string) (*domain.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.Validation("collection name is empty")
	}

	if existing, err := s.store.GetCollectionByName(ctx, name); err == nil {
		return existing, apperrors.AlreadyExists(fmt.Sprintf("collection %q already exists", name))
	} else if !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("check name: %w", err)
	}

	now := time.Now()
	collection := &domain.Collection{
		ID:          id.MustGenerate("coll"),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.CreateCollection(ctx, collection); err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	s.logger.Info("collection created", "collection_id", collection.ID, "name", name)

	if s.sseManager != nil {
		s.sseManager.Emit(sse.NewCollectionCreatedEvent(collection))
	}
	return collection, nil
}

// GetCollection returns one collection by ID.
func (s *CollectionService) GetCollection(ctx context.Context, collectionID string) (*domain.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	collection, err := s.store.GetCollection(ctx, collectionID)
	if err != nil {
		return nil, fmt.Errorf("get collection: %w", err)
	}
	return collection, nil
}

// ListCollections returns all collections.
func (s *CollectionService) ListCollections(ctx context.Context) ([]*domain.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	collections, err := s.store.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return collections, nil
}

// UpdateCollection renames a collection or changes its description.
func (s *CollectionService) UpdateCollection(ctx context.Context, collectionID string, name, description *string) (*domain.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	collection, err := s.store.GetCollection(ctx, collectionID)
	if err != nil {
		return nil, fmt.Errorf("get collection: %w", err)
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, apperrors.Validation("collection name is empty")
		}
		collection.Name = trimmed
	}
	if description != nil {
		collection.Description = *description
	}

	collection.UpdatedAt = time.Now()
	if err := s.store.UpdateCollection(ctx, collection); err != nil {
		return nil, fmt.Errorf("update collection: %w", err)
	}

	s.logger.Info("collection updated", "collection_id", collectionID, "name", collection.Name)

	if s.sseManager != nil {
		s.sseManager.Emit(sse.NewCollectionUpdatedEvent(collection))
	}
	return collection, nil
}

// DeleteCollection removes a collection. Member books are untouched.
func (s *CollectionService) DeleteCollection(ctx context.Context, collectionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	collection, err := s.store.GetCollection(ctx, collectionID)
	if err != nil {
		return fmt.Errorf("get collection: %w", err)
	}

	if err := s.store.DeleteCollection(ctx, collectionID); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}

	s.logger.Info("collection deleted", "collection_id", collectionID, "name", collection.Name)

	if s.sseManager != nil {
		s.sseManager.Emit(sse.NewCollectionDeletedEvent(collection))
	}
	return nil
}

// AddBook adds a book to a collection. Adding a member twice is a no-op.
func (s *CollectionService) AddBook(ctx context.Context, collectionID, bookID string) (*domain.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	exists, err := s.store.BookExists(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("check book: %w", err)
	}
	if !exists {
		return nil, apperrors.NotFoundf("book %s not found", bookID)
	}

	if err := s.store.AddBookToCollection(ctx, bookID, collectionID); err != nil {
		return nil, fmt.Errorf("add book to collection: %w", err)
	}

	collection, err := s.store.GetCollection(ctx, collectionID)
	if err != nil {
		return nil, fmt.Errorf("get collection: %w", err)
	}

	s.logger.Info("book added to collection", "collection_id", collectionID, "book_id", bookID)

	if s.sseManager != nil {
		s.sseManager.Emit(sse.NewCollectionBookAddedEvent(collection, bookID))
	}
	return collection, nil
}

// RemoveBook removes a book from a collection.
func (s *CollectionService) RemoveBook(ctx context.Context, collectionID, bookID string) (*domain.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.store.RemoveBookFromCollection(ctx, bookID, collectionID); err != nil {
		return nil, fmt.Errorf("remove book from collection: %w", err)
	}

	collection, err := s.store.GetCollection(ctx, collectionID)
	if err != nil {
		return nil, fmt.Errorf("get collection: %w", err)
	}

	s.logger.Info("book removed from collection", "collection_id", collectionID, "book_id", bookID)

	if s.sseManager != nil {
		s.sseManager.Emit(sse.NewCollectionBookRemovedEvent(collection, bookID))
	}
	return collection, nil
}

// CollectionsForBook returns the collections a book belongs to.
func (s *CollectionService) CollectionsForBook(ctx context.Context, bookID string) ([]*domain.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	collections, err := s.store.GetCollectionsForBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("collections for book: %w", err)
	}
	return collections, nil
}

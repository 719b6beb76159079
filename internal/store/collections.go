package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/shiori-reader/shiori-server/internal/domain"
	"github.com/shiori-reader/shiori-server/internal/sse"
)

const collectionPrefix = "collection:"

var (
	ErrCollectionNotFound = errors.New("collection not found")
	ErrCollectionExists   = errors.New("collection already exists")
)

// Collection Operations
//
// Collections embed their ordered book ID list directly, so membership
// queries scan collections rather than maintaining a reverse index.
// Libraries here are personal; collection counts stay small.

// CreateCollection creates a new collection.
// Collection names must be unique (case-insensitive).
func (s *Store) CreateCollection(ctx context.Context, collection *domain.Collection) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	existing, err := s.GetCollectionByName(ctx, collection.Name)
	if err != nil && !errors.Is(err, ErrCollectionNotFound) {
		return fmt.Errorf("check collection name: %w", err)
	}
	if existing != nil {
		return ErrCollectionExists
	}

	key := []byte(collectionPrefix + collection.ID)
	if err := s.set(key, collection); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("collection created", "id", collection.ID, "name", collection.Name)
	}

	s.eventEmitter.Emit(sse.NewCollectionCreatedEvent(collection))
	return nil
}

// GetCollection retrieves a collection by ID.
func (s *Store) GetCollection(ctx context.Context, id string) (*domain.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := []byte(collectionPrefix + id)

	var collection domain.Collection
	err := s.get(key, &collection)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrCollectionNotFound
		}
		return nil, fmt.Errorf("get collection: %w", err)
	}
	return &collection, nil
}

// GetCollectionByName retrieves a collection by name (case-insensitive).
func (s *Store) GetCollectionByName(ctx context.Context, name string) (*domain.Collection, error) {
	collections, err := s.ListCollections(ctx)
	if err != nil {
		return nil, err
	}

	for _, collection := range collections {
		if strings.EqualFold(collection.Name, name) {
			return collection, nil
		}
	}
	return nil, ErrCollectionNotFound
}

// UpdateCollection updates an existing collection.
func (s *Store) UpdateCollection(ctx context.Context, collection *domain.Collection) error {
	key := []byte(collectionPrefix + collection.ID)

	exists, err := s.exists(key)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if !exists {
		return ErrCollectionNotFound
	}

	if err := s.set(key, collection); err != nil {
		return fmt.Errorf("update collection: %w", err)
	}

	s.eventEmitter.Emit(sse.NewCollectionUpdatedEvent(collection))
	return nil
}

// DeleteCollection deletes a collection. Books remain untouched.
func (s *Store) DeleteCollection(ctx context.Context, id string) error {
	collection, err := s.GetCollection(ctx, id)
	if err != nil {
		return err
	}

	if err := s.delete([]byte(collectionPrefix + id)); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("collection deleted", "id", id, "name", collection.Name)
	}

	s.eventEmitter.Emit(sse.NewCollectionDeletedEvent(collection))
	return nil
}

// ListCollections returns all collections sorted by name.
func (s *Store) ListCollections(ctx context.Context) ([]*domain.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	collections, err := listPrefix[domain.Collection](s, []byte(collectionPrefix))
	if err != nil {
		return nil, err
	}

	sort.Slice(collections, func(i, j int) bool {
		return strings.ToLower(collections[i].Name) < strings.ToLower(collections[j].Name)
	})
	return collections, nil
}

// AddBookToCollection appends a book to a collection if not already present.
func (s *Store) AddBookToCollection(ctx context.Context, bookID, collectionID string) error {
	collection, err := s.GetCollection(ctx, collectionID)
	if err != nil {
		return err
	}

	exists, err := s.BookExists(ctx, bookID)
	if err != nil {
		return fmt.Errorf("check book exists: %w", err)
	}
	if !exists {
		return ErrBookNotFound
	}

	if !collection.AddBook(bookID) {
		return nil // already a member
	}

	if err := s.set([]byte(collectionPrefix+collectionID), collection); err != nil {
		return fmt.Errorf("add book to collection: %w", err)
	}

	s.eventEmitter.Emit(sse.NewCollectionBookAddedEvent(collection, bookID))
	return nil
}

// RemoveBookFromCollection removes a book from a collection.
func (s *Store) RemoveBookFromCollection(ctx context.Context, bookID, collectionID string) error {
	collection, err := s.GetCollection(ctx, collectionID)
	if err != nil {
		return err
	}

	if !collection.RemoveBook(bookID) {
		return nil // not a member
	}

	if err := s.set([]byte(collectionPrefix+collectionID), collection); err != nil {
		return fmt.Errorf("remove book from collection: %w", err)
	}

	s.eventEmitter.Emit(sse.NewCollectionBookRemovedEvent(collection, bookID))
	return nil
}

// GetCollectionsForBook returns every collection containing the given book.
func (s *Store) GetCollectionsForBook(ctx context.Context, bookID string) ([]*domain.Collection, error) {
	collections, err := s.ListCollections(ctx)
	if err != nil {
		return nil, err
	}

	var result []*domain.Collection
	for _, collection := range collections {
		if collection.Contains(bookID) {
			result = append(result, collection)
		}
	}
	return result, nil
}

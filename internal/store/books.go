package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/shiori-reader/shiori-server/internal/domain"
	"github.com/shiori-reader/shiori-server/internal/sse"
)

const (
	bookPrefix       = "book:"
	bookByPathPrefix = "idx:books:path:"
	bookByHashPrefix = "idx:books:hash:"
)

var (
	ErrBookNotFound = errors.New("book not found")
	ErrBookExists   = errors.New("book already exists")
)

// Book Operations

// CreateBook creates a new book with its path and content hash indexes.
func (s *Store) CreateBook(ctx context.Context, book *domain.Book) error {
	key := []byte(bookPrefix + book.ID)

	// Check if it already exists
	exists, err := s.exists(key)
	if err != nil {
		return fmt.Errorf("check book exists: %w", err)
	}
	if exists {
		return ErrBookExists
	}

	// Use transaction to create book indices atomically
	err = s.db.Update(func(txn *badger.Txn) error {
		// Save book
		data, err := json.Marshal(book)
		if err != nil {
			return fmt.Errorf("marshal book: %w", err)
		}

		if err := txn.Set(key, data); err != nil {
			return err
		}

		// Create path index
		pathKey := []byte(bookByPathPrefix + book.Path)
		if err := txn.Set(pathKey, []byte(book.ID)); err != nil {
			return err
		}

		// Create content hash index (for detecting moved or duplicated files)
		if book.FileHash != "" {
			hashKey := []byte(bookByHashPrefix + book.FileHash)
			if err := txn.Set(hashKey, []byte(book.ID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create book: %w", err)
	}

	if s.logger != nil {
		s.logger.LogAttrs(ctx, slog.LevelInfo, "book created",
			slog.String("id", book.ID),
			slog.String("title", book.Title),
			slog.String("path", book.Path),
			slog.String("format", book.Format),
		)
	}

	s.eventEmitter.Emit(sse.NewBookCreatedEvent(book))
	s.indexBookAsync(ctx, book)
	return nil
}

// GetBook retrieves a book by ID.
func (s *Store) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := []byte(bookPrefix + id)

	var book domain.Book
	err := s.get(key, &book)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	return &book, nil
}

// GetBookByPath retrieves a book by its absolute file path.
// Used by the filesystem watcher for fast lookups when a file changes.
func (s *Store) GetBookByPath(ctx context.Context, path string) (*domain.Book, error) {
	pathKey := []byte(bookByPathPrefix + path)

	var bookID string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(pathKey)
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			bookID = string(val)
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("get book by path: %w", err)
	}
	return s.GetBook(ctx, bookID)
}

// GetBookByHash retrieves a book by its content hash.
// A hit for a new path means the file was moved or copied, not added.
func (s *Store) GetBookByHash(ctx context.Context, hash string) (*domain.Book, error) {
	hashKey := []byte(bookByHashPrefix + hash)

	var bookID string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(hashKey)
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			bookID = string(val)
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("get book by hash: %w", err)
	}
	return s.GetBook(ctx, bookID)
}

// UpdateBook updates an existing book, keeping its indexes in sync.
func (s *Store) UpdateBook(ctx context.Context, book *domain.Book) error {
	key := []byte(bookPrefix + book.ID)

	// Get old book for index updates
	oldBook, err := s.GetBook(ctx, book.ID)
	if err != nil {
		return err
	}

	// Use transaction to update book and indices atomically
	err = s.db.Update(func(txn *badger.Txn) error {
		book.Touch()
		// Update book
		data, err := json.Marshal(book)
		if err != nil {
			return fmt.Errorf("marshal book: %w", err)
		}

		if err := txn.Set(key, data); err != nil {
			return err
		}

		// Update path index if path changed
		if oldBook.Path != book.Path {
			oldPathKey := []byte(bookByPathPrefix + oldBook.Path)
			if err := txn.Delete(oldPathKey); err != nil {
				return err
			}

			newPathKey := []byte(bookByPathPrefix + book.Path)
			if err := txn.Set(newPathKey, []byte(book.ID)); err != nil {
				return err
			}
		}

		// Update hash index if content changed
		if oldBook.FileHash != book.FileHash {
			if oldBook.FileHash != "" {
				oldHashKey := []byte(bookByHashPrefix + oldBook.FileHash)
				if err := txn.Delete(oldHashKey); err != nil {
					return err
				}
			}
			if book.FileHash != "" {
				newHashKey := []byte(bookByHashPrefix + book.FileHash)
				if err := txn.Set(newHashKey, []byte(book.ID)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("book updated", "id", book.ID, "title", book.Title)
	}

	s.eventEmitter.Emit(sse.NewBookUpdatedEvent(book))
	s.indexBookAsync(ctx, book)
	return nil
}

// DeleteBook deletes a book along with its progress, annotations, shares,
// collection memberships, and indexes.
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	book, err := s.GetBook(ctx, id)
	if err != nil {
		return err
	}

	// Remove from all collections
	collections, err := s.GetCollectionsForBook(ctx, id)
	if err != nil {
		return fmt.Errorf("get collections for book: %w", err)
	}

	for _, coll := range collections {
		if err := s.RemoveBookFromCollection(ctx, id, coll.ID); err != nil {
			return fmt.Errorf("remove from collection %s: %w", coll.ID, err)
		}
	}

	// Delete dependent records
	if err := s.DeleteProgress(ctx, id); err != nil && !errors.Is(err, ErrProgressNotFound) {
		return fmt.Errorf("delete progress: %w", err)
	}
	if err := s.DeleteAnnotationsForBook(ctx, id); err != nil {
		return fmt.Errorf("delete annotations: %w", err)
	}
	if err := s.DeleteSharesForBook(ctx, id); err != nil {
		return fmt.Errorf("delete shares: %w", err)
	}
	if err := s.DeleteBookSettings(ctx, id); err != nil {
		return fmt.Errorf("delete book settings: %w", err)
	}

	// Delete book and indices
	err = s.db.Update(func(txn *badger.Txn) error {
		key := []byte(bookPrefix + id)
		if err := txn.Delete(key); err != nil {
			return err
		}

		pathKey := []byte(bookByPathPrefix + book.Path)
		if err := txn.Delete(pathKey); err != nil {
			return err
		}

		if book.FileHash != "" {
			hashKey := []byte(bookByHashPrefix + book.FileHash)
			if err := txn.Delete(hashKey); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("book deleted", "id", id, "title", book.Title)
	}

	s.eventEmitter.Emit(sse.NewBookDeletedEvent(id))
	if s.searchIndexer != nil {
		go func() {
			if err := s.searchIndexer.DeleteBook(context.WithoutCancel(ctx), id); err != nil && s.logger != nil {
				s.logger.Warn("failed to remove book from search index", "id", id, "error", err)
			}
		}()
	}
	return nil
}

// BookExists checks if a book exists by ID.
func (s *Store) BookExists(ctx context.Context, id string) (bool, error) {
	key := []byte(bookPrefix + id)
	return s.exists(key)
}

// ListBooks returns a page of books ordered by ID.
func (s *Store) ListBooks(ctx context.Context, params PaginationParams) (*PaginatedResult[*domain.Book], error) {
	params.Validate()

	var books []*domain.Book
	var lastKey string
	var hasMore bool

	prefix := []byte(bookPrefix)

	// Decode cursor to get starting key
	startKey, err := DecodeCursor(params.Cursor)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}

	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchSize = params.Limit + 1 // Fetch one extra to check if there are more items

		it := txn.NewIterator(opts)
		defer it.Close()

		if startKey != "" {
			it.Seek([]byte(startKey))
			// Skip the cursor key itself (already returned on the previous page)
			if it.Valid() && string(it.Item().Key()) == startKey {
				it.Next()
			}
		} else {
			it.Seek(prefix)
		}

		count := 0
		for ; it.ValidForPrefix(prefix) && count <= params.Limit; it.Next() {
			item := it.Item()

			if count == params.Limit {
				hasMore = true
				break
			}

			var book domain.Book
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &book)
			})
			if err != nil {
				return fmt.Errorf("unmarshal book %s: %w", item.Key(), err)
			}

			books = append(books, &book)
			lastKey = string(item.Key())
			count++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}

	result := &PaginatedResult[*domain.Book]{
		Items:   books,
		HasMore: hasMore,
	}
	if hasMore {
		result.NextCursor = EncodeCursor(lastKey)
	}
	return result, nil
}

// AllBooks returns every book in the library.
// Used by the scanner and the search reindexer; the API uses ListBooks.
func (s *Store) AllBooks(ctx context.Context) ([]*domain.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return listPrefix[domain.Book](s, []byte(bookPrefix))
}

// indexBookAsync updates the search index without blocking the caller.
func (s *Store) indexBookAsync(ctx context.Context, book *domain.Book) {
	if s.searchIndexer == nil {
		return
	}
	go func() {
		if err := s.searchIndexer.IndexBook(context.WithoutCancel(ctx), book); err != nil && s.logger != nil {
			s.logger.Warn("failed to index book", "id", book.ID, "error", err)
		}
	}()
}

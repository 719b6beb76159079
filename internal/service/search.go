package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shiori-reader/shiori-server/internal/domain"
	apperrors "github.com/shiori-reader/shiori-server/internal/errors"
	"github.com/shiori-reader/shiori-server/internal/search"
	"github.com/shiori-reader/shiori-server/internal/store"
)

// SearchService keeps the bleve index in sync with the library and runs
// queries against it. It implements store.SearchIndexer so the store can
// push index updates on every book write.
type SearchService struct {
	store  *store.Store
	index  *search.SearchIndex
	tags   *TagService
	logger *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(store *store.Store, index *search.SearchIndex, tags *TagService, logger *slog.Logger) *SearchService {
	return &SearchService{
		store:  store,
		index:  index,
		tags:   tags,
		logger: logger,
	}
}

// IndexBook implements store.SearchIndexer. Tag IDs are resolved to
// names so tags are searchable as text.
func (s *SearchService) IndexBook(ctx context.Context, book *domain.Book) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tagNames, err := s.tags.TagNames(ctx, book.TagIDs)
	if err != nil {
		s.logger.Warn("tag resolution failed for indexing", "book_id", book.ID, "error", err)
		tagNames = nil
	}

	if err := s.index.IndexDocument(search.BookToDocument(book, tagNames)); err != nil {
		return fmt.Errorf("index book: %w", err)
	}
	return nil
}

// DeleteBook implements store.SearchIndexer.
func (s *SearchService) DeleteBook(ctx context.Context, bookID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.index.DeleteDocument(bookID); err != nil {
		return fmt.Errorf("remove from index: %w", err)
	}
	return nil
}

// Search runs a library query with filters, facets, and highlighting.
func (s *SearchService) Search(ctx context.Context, params search.SearchParams) (*search.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := s.index.Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return result, nil
}

// DocumentCount returns the number of indexed books.
func (s *SearchService) DocumentCount() (uint64, error) {
	return s.index.DocumentCount()
}

// RebuildIndex drops the index and reindexes every book in the library.
// Used after a mapping version change or on demand.
func (s *SearchService) RebuildIndex(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if err := s.index.Rebuild(); err != nil {
		return 0, fmt.Errorf("rebuild index: %w", err)
	}

	books, err := s.store.AllBooks(ctx)
	if err != nil {
		return 0, fmt.Errorf("list books: %w", err)
	}

	docs := make([]*search.BookDocument, 0, len(books))
	for _, book := range books {
		tagNames, err := s.tags.TagNames(ctx, book.TagIDs)
		if err != nil {
			if apperrors.Is(err, context.Canceled) {
				return 0, err
			}
			tagNames = nil
		}
		docs = append(docs, search.BookToDocument(book, tagNames))
	}

	if err := s.index.IndexDocuments(docs); err != nil {
		return 0, fmt.Errorf("index books: %w", err)
	}

	s.logger.Info("search index rebuilt", "books", len(docs))
	return len(docs), nil
}

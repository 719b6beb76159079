package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBook(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	book := createTestBook("book-1")

	err := store.CreateBook(ctx, book)
	require.NoError(t, err)

	// Creating the same book again fails
	err = store.CreateBook(ctx, book)
	assert.ErrorIs(t, err, ErrBookExists)
}

func TestGetBook(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	book := createTestBook("book-1")
	require.NoError(t, store.CreateBook(ctx, book))

	got, err := store.GetBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, book.ID, got.ID)
	assert.Equal(t, book.Title, got.Title)
	assert.Equal(t, book.Path, got.Path)
	assert.Equal(t, book.Format, got.Format)

	_, err = store.GetBook(ctx, "missing")
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestGetBookByPath(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	book := createTestBook("book-1")
	require.NoError(t, store.CreateBook(ctx, book))

	got, err := store.GetBookByPath(ctx, book.Path)
	require.NoError(t, err)
	assert.Equal(t, book.ID, got.ID)

	_, err = store.GetBookByPath(ctx, "/no/such/file.epub")
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestGetBookByHash(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	book := createTestBook("book-1")
	require.NoError(t, store.CreateBook(ctx, book))

	got, err := store.GetBookByHash(ctx, book.FileHash)
	require.NoError(t, err)
	assert.Equal(t, book.ID, got.ID)

	_, err = store.GetBookByHash(ctx, "unknown-hash")
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestUpdateBook_PathIndexFollows(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	book := createTestBook("book-1")
	require.NoError(t, store.CreateBook(ctx, book))

	oldPath := book.Path
	book.Path = "/test/library/moved.epub"
	require.NoError(t, store.UpdateBook(ctx, book))

	// New path resolves, old path does not
	got, err := store.GetBookByPath(ctx, "/test/library/moved.epub")
	require.NoError(t, err)
	assert.Equal(t, "book-1", got.ID)

	_, err = store.GetBookByPath(ctx, oldPath)
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestUpdateBook_HashIndexFollows(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	book := createTestBook("book-1")
	require.NoError(t, store.CreateBook(ctx, book))

	book.FileHash = "hash-rewritten"
	require.NoError(t, store.UpdateBook(ctx, book))

	got, err := store.GetBookByHash(ctx, "hash-rewritten")
	require.NoError(t, err)
	assert.Equal(t, "book-1", got.ID)

	_, err = store.GetBookByHash(ctx, "hash-book-1")
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestDeleteBook_CascadesDependents(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	book := createTestBook("book-1")
	require.NoError(t, store.CreateBook(ctx, book))

	// Attach progress, an annotation, and a collection membership
	require.NoError(t, store.SaveProgress(ctx, createTestProgress("book-1")))
	require.NoError(t, store.CreateAnnotation(ctx, createTestAnnotation("ann-1", "book-1")))

	coll := createTestCollection("coll-1", "Favorites")
	require.NoError(t, store.CreateCollection(ctx, coll))
	require.NoError(t, store.AddBookToCollection(ctx, "book-1", "coll-1"))

	require.NoError(t, store.DeleteBook(ctx, "book-1"))

	_, err := store.GetBook(ctx, "book-1")
	assert.ErrorIs(t, err, ErrBookNotFound)

	_, err = store.GetProgress(ctx, "book-1")
	assert.ErrorIs(t, err, ErrProgressNotFound)

	annotations, err := store.GetAnnotationsForBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Empty(t, annotations)

	coll, err = store.GetCollection(ctx, "coll-1")
	require.NoError(t, err)
	assert.False(t, coll.Contains("book-1"))
}

func TestListBooks_Pagination(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	for i := range 25 {
		book := createTestBook(fmt.Sprintf("book-%02d", i))
		book.Path = fmt.Sprintf("/test/library/%02d.epub", i)
		book.FileHash = fmt.Sprintf("hash-%02d", i)
		require.NoError(t, store.CreateBook(ctx, book))
	}

	// First page
	page1, err := store.ListBooks(ctx, PaginationParams{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, page1.Items, 10)
	assert.True(t, page1.HasMore)
	assert.NotEmpty(t, page1.NextCursor)

	// Second page resumes after the cursor
	page2, err := store.ListBooks(ctx, PaginationParams{Limit: 10, Cursor: page1.NextCursor})
	require.NoError(t, err)
	assert.Len(t, page2.Items, 10)
	assert.True(t, page2.HasMore)
	assert.NotEqual(t, page1.Items[0].ID, page2.Items[0].ID)

	// Final page
	page3, err := store.ListBooks(ctx, PaginationParams{Limit: 10, Cursor: page2.NextCursor})
	require.NoError(t, err)
	assert.Len(t, page3.Items, 5)
	assert.False(t, page3.HasMore)
	assert.Empty(t, page3.NextCursor)

	// No overlap across pages
	seen := make(map[string]bool)
	for _, b := range page1.Items {
		seen[b.ID] = true
	}
	for _, b := range page2.Items {
		assert.False(t, seen[b.ID])
		seen[b.ID] = true
	}
	for _, b := range page3.Items {
		assert.False(t, seen[b.ID])
	}
}

func TestAllBooks(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	for i := range 3 {
		book := createTestBook(fmt.Sprintf("book-%d", i))
		book.Path = fmt.Sprintf("/test/library/%d.epub", i)
		book.FileHash = fmt.Sprintf("hash-%d", i)
		require.NoError(t, store.CreateBook(ctx, book))
	}

	books, err := store.AllBooks(ctx)
	require.NoError(t, err)
	assert.Len(t, books, 3)
}

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/shiori-reader/shiori-server/internal/errors"
	"github.com/shiori-reader/shiori-server/internal/store"
)

func setupCollections(t *testing.T) (*CollectionService, *store.Store, string) {
	t.Helper()
	library, s := setupLibrary(t)

	book, err := library.ImportBook(context.Background(), writeTestEpub(t, t.TempDir(), "book.epub"))
	require.NoError(t, err)

	return NewCollectionService(s, nil, testLogger()), s, book.ID
}

func TestCreateCollection(t *testing.T) {
	svc, _, _ := setupCollections(t)
	ctx := context.Background()

	coll, err := svc.CreateCollection(ctx, "Sea Stories", "voyages and shipwrecks")
	require.NoError(t, err)
	assert.NotEmpty(t, coll.ID)
	assert.Equal(t, "Sea Stories", coll.Name)

	t.Run("duplicate name returns existing", func(t *testing.T) {
		dup, err := svc.CreateCollection(ctx, "Sea Stories", "")
		assert.True(t, apperrors.Is(err, apperrors.ErrAlreadyExists))
		require.NotNil(t, dup)
		assert.Equal(t, coll.ID, dup.ID)
	})

	t.Run("blank name rejected", func(t *testing.T) {
		_, err := svc.CreateCollection(ctx, "   ", "")
		assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	})
}

func TestCollectionMembership(t *testing.T) {
	svc, _, bookID := setupCollections(t)
	ctx := context.Background()

	coll, err := svc.CreateCollection(ctx, "Favorites", "")
	require.NoError(t, err)

	coll, err = svc.AddBook(ctx, coll.ID, bookID)
	require.NoError(t, err)
	assert.True(t, coll.Contains(bookID))

	// Adding twice does not duplicate.
	coll, err = svc.AddBook(ctx, coll.ID, bookID)
	require.NoError(t, err)
	assert.Len(t, coll.BookIDs, 1)

	// Membership is visible from the book side.
	colls, err := svc.CollectionsForBook(ctx, bookID)
	require.NoError(t, err)
	require.Len(t, colls, 1)
	assert.Equal(t, coll.ID, colls[0].ID)

	coll, err = svc.RemoveBook(ctx, coll.ID, bookID)
	require.NoError(t, err)
	assert.False(t, coll.Contains(bookID))
}

func TestAddBook_UnknownBook(t *testing.T) {
	svc, _, _ := setupCollections(t)
	ctx := context.Background()

	coll, err := svc.CreateCollection(ctx, "Empty", "")
	require.NoError(t, err)

	_, err = svc.AddBook(ctx, coll.ID, "book_missing")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestUpdateCollection(t *testing.T) {
	svc, _, _ := setupCollections(t)
	ctx := context.Background()

	coll, err := svc.CreateCollection(ctx, "Working Title", "")
	require.NoError(t, err)

	name := "Final Title"
	desc := "now with a description"
	updated, err := svc.UpdateCollection(ctx, coll.ID, &name, &desc)
	require.NoError(t, err)
	assert.Equal(t, "Final Title", updated.Name)
	assert.Equal(t, "now with a description", updated.Description)

	blank := " "
	_, err = svc.UpdateCollection(ctx, coll.ID, &blank, nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestDeleteCollection_KeepsBooks(t *testing.T) {
	svc, s, bookID := setupCollections(t)
	ctx := context.Background()

	coll, err := svc.CreateCollection(ctx, "Doomed", "")
	require.NoError(t, err)
	_, err = svc.AddBook(ctx, coll.ID, bookID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCollection(ctx, coll.ID))

	_, err = svc.GetCollection(ctx, coll.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	// The member book survives.
	_, err = s.GetBook(ctx, bookID)
	assert.NoError(t, err)
}

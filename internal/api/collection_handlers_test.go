package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiori-reader/shiori-server/internal/domain"
)

func (ts *testServer) createCollection(t *testing.T, name string) domain.Collection {
	t.Helper()
	rec := ts.doJSON(t, http.MethodPost, "/api/v1/collections/", CreateCollectionRequest{Name: name})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var collection domain.Collection
	decodeData(t, rec, &collection)
	require.NotEmpty(t, collection.ID)
	return collection
}

func TestCollectionCRUD(t *testing.T) {
	ts := setupServer(t)
	collection := ts.createCollection(t, "Night Reads")

	rec := ts.doJSON(t, http.MethodGet, "/api/v1/collections/"+collection.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	newName := "Ferry Stories"
	rec = ts.doJSON(t, http.MethodPatch, "/api/v1/collections/"+collection.ID, UpdateCollectionRequest{Name: &newName})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated domain.Collection
	decodeData(t, rec, &updated)
	assert.Equal(t, "Ferry Stories", updated.Name)

	rec = ts.doJSON(t, http.MethodDelete, "/api/v1/collections/"+collection.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.doJSON(t, http.MethodGet, "/api/v1/collections/"+collection.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateCollection_DuplicateName(t *testing.T) {
	ts := setupServer(t)
	ts.createCollection(t, "Night Reads")

	rec := ts.doJSON(t, http.MethodPost, "/api/v1/collections/", CreateCollectionRequest{Name: "Night Reads"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateCollection_MissingName(t *testing.T) {
	ts := setupServer(t)
	rec := ts.doJSON(t, http.MethodPost, "/api/v1/collections/", CreateCollectionRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCollectionMembership(t *testing.T) {
	ts := setupServer(t)
	bookID := ts.importFixture(t)
	collection := ts.createCollection(t, "Night Reads")

	rec := ts.doJSON(t, http.MethodPut, "/api/v1/collections/"+collection.ID+"/books/"+bookID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var updated domain.Collection
	decodeData(t, rec, &updated)
	assert.Equal(t, []string{bookID}, updated.BookIDs)

	// Membership is visible from the book side too.
	rec = ts.doJSON(t, http.MethodGet, "/api/v1/books/"+bookID+"/collections", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var forBook []domain.Collection
	decodeData(t, rec, &forBook)
	require.Len(t, forBook, 1)
	assert.Equal(t, collection.ID, forBook[0].ID)

	rec = ts.doJSON(t, http.MethodDelete, "/api/v1/collections/"+collection.ID+"/books/"+bookID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	decodeData(t, rec, &updated)
	assert.Empty(t, updated.BookIDs)
}

func TestAddBookToCollection_UnknownBook(t *testing.T) {
	ts := setupServer(t)
	collection := ts.createCollection(t, "Night Reads")

	rec := ts.doJSON(t, http.MethodPut, "/api/v1/collections/"+collection.ID+"/books/book_missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiori-reader/shiori-server/internal/domain"
)

func (ts *testServer) createTag(t *testing.T, name, color string) domain.Tag {
	t.Helper()
	rec := ts.doJSON(t, http.MethodPost, "/api/v1/tags/", CreateTagRequest{Name: name, Color: color})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var tag domain.Tag
	decodeData(t, rec, &tag)
	require.NotEmpty(t, tag.ID)
	return tag
}

func TestCreateAndListTags(t *testing.T) {
	ts := setupServer(t)
	ts.createTag(t, "sci-fi", "#3f51b5")
	ts.createTag(t, "unread", "")

	rec := ts.doJSON(t, http.MethodGet, "/api/v1/tags/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var tags []domain.Tag
	decodeData(t, rec, &tags)
	assert.Len(t, tags, 2)
}

func TestCreateTag_DuplicateName(t *testing.T) {
	ts := setupServer(t)
	ts.createTag(t, "sci-fi", "")

	rec := ts.doJSON(t, http.MethodPost, "/api/v1/tags/", CreateTagRequest{Name: "sci-fi"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateTag_BadColor(t *testing.T) {
	ts := setupServer(t)
	rec := ts.doJSON(t, http.MethodPost, "/api/v1/tags/", CreateTagRequest{Name: "sci-fi", Color: "blue"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTagAndUntagBook(t *testing.T) {
	ts := setupServer(t)
	bookID := ts.importFixture(t)
	tag := ts.createTag(t, "sci-fi", "")

	rec := ts.doJSON(t, http.MethodPut, "/api/v1/books/"+bookID+"/tags/"+tag.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var book domain.Book
	decodeData(t, rec, &book)
	assert.Equal(t, []string{tag.ID}, book.TagIDs)

	// Tagging again is a no-op.
	rec = ts.doJSON(t, http.MethodPut, "/api/v1/books/"+bookID+"/tags/"+tag.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &book)
	assert.Equal(t, []string{tag.ID}, book.TagIDs)

	rec = ts.doJSON(t, http.MethodDelete, "/api/v1/books/"+bookID+"/tags/"+tag.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &book)
	assert.Empty(t, book.TagIDs)
}

func TestDeleteTag_DetachesFromBooks(t *testing.T) {
	ts := setupServer(t)
	bookID := ts.importFixture(t)
	tag := ts.createTag(t, "sci-fi", "")

	rec := ts.doJSON(t, http.MethodPut, "/api/v1/books/"+bookID+"/tags/"+tag.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.doJSON(t, http.MethodDelete, "/api/v1/tags/"+tag.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.doJSON(t, http.MethodGet, "/api/v1/books/"+bookID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var book domain.Book
	decodeData(t, rec, &book)
	assert.Empty(t, book.TagIDs)
}

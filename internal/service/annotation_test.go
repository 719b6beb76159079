package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiori-reader/shiori-server/internal/domain"
	apperrors "github.com/shiori-reader/shiori-server/internal/errors"
)

func annotationFixture(bookID string) *domain.Annotation {
	return &domain.Annotation{
		BookID:       bookID,
		Type:         domain.AnnotationHighlight,
		Location:     "chapter_1:scroll_0.25",
		SelectedText: "open water",
		Color:        "#ffd54f",
	}
}

func setupAnnotations(t *testing.T) (*AnnotationService, string) {
	t.Helper()
	library, s := setupLibrary(t)

	book, err := library.ImportBook(context.Background(), writeTestEpub(t, t.TempDir(), "book.epub"))
	require.NoError(t, err)

	return NewAnnotationService(s, nil, testLogger()), book.ID
}

func TestCreateAnnotation(t *testing.T) {
	svc, bookID := setupAnnotations(t)
	ctx := context.Background()

	anno, err := svc.CreateAnnotation(ctx, annotationFixture(bookID))
	require.NoError(t, err)
	assert.NotEmpty(t, anno.ID)
	assert.False(t, anno.CreatedAt.IsZero())

	got, err := svc.GetAnnotation(ctx, anno.ID)
	require.NoError(t, err)
	assert.Equal(t, "open water", got.SelectedText)
}

func TestCreateAnnotation_Validation(t *testing.T) {
	svc, bookID := setupAnnotations(t)
	ctx := context.Background()

	t.Run("rejects unknown type", func(t *testing.T) {
		bad := annotationFixture(bookID)
		bad.Type = "scribble"
		_, err := svc.CreateAnnotation(ctx, bad)
		assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	})

	t.Run("rejects malformed location", func(t *testing.T) {
		bad := annotationFixture(bookID)
		bad.Location = "page_9"
		_, err := svc.CreateAnnotation(ctx, bad)
		assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	})

	t.Run("rejects highlight without selection", func(t *testing.T) {
		bad := annotationFixture(bookID)
		bad.SelectedText = ""
		_, err := svc.CreateAnnotation(ctx, bad)
		assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	})

	t.Run("rejects unknown book", func(t *testing.T) {
		bad := annotationFixture("book_missing")
		_, err := svc.CreateAnnotation(ctx, bad)
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	})

	t.Run("bookmark needs no selection", func(t *testing.T) {
		mark := &domain.Annotation{
			BookID:   bookID,
			Type:     domain.AnnotationBookmark,
			Location: "chapter_0",
		}
		_, err := svc.CreateAnnotation(ctx, mark)
		assert.NoError(t, err)
	})
}

func TestUpdateAnnotation_NoteAndColorOnly(t *testing.T) {
	svc, bookID := setupAnnotations(t)
	ctx := context.Background()

	anno, err := svc.CreateAnnotation(ctx, annotationFixture(bookID))
	require.NoError(t, err)

	updated, err := svc.UpdateAnnotation(ctx, anno.ID, "the turning point", "#b3e5fc")
	require.NoError(t, err)
	assert.Equal(t, "the turning point", updated.Note)
	assert.Equal(t, "#b3e5fc", updated.Color)
	assert.Equal(t, anno.Location, updated.Location)
	assert.Equal(t, anno.SelectedText, updated.SelectedText)
}

func TestDeleteAnnotation(t *testing.T) {
	svc, bookID := setupAnnotations(t)
	ctx := context.Background()

	anno, err := svc.CreateAnnotation(ctx, annotationFixture(bookID))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteAnnotation(ctx, anno.ID))
	_, err = svc.GetAnnotation(ctx, anno.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	err = svc.DeleteAnnotation(ctx, anno.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestListForBook(t *testing.T) {
	svc, bookID := setupAnnotations(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		fixture := annotationFixture(bookID)
		_, err := svc.CreateAnnotation(ctx, fixture)
		require.NoError(t, err)
	}

	annotations, err := svc.ListForBook(ctx, bookID)
	require.NoError(t, err)
	assert.Len(t, annotations, 3)
}

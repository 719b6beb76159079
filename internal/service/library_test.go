package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/shiori-reader/shiori-server/internal/errors"
)

func TestImportBook_ExtractsMetadata(t *testing.T) {
	svc, _ := setupLibrary(t)
	path := writeTestEpub(t, t.TempDir(), "silent-sea.epub")

	book, err := svc.ImportBook(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "The Silent Sea", book.Title)
	assert.Equal(t, []string{"Mika Tanaka"}, book.Authors)
	assert.Equal(t, "Harbor Press", book.Publisher)
	assert.Equal(t, "en", book.Language)
	assert.Equal(t, "epub", book.Format)
	assert.Equal(t, 3, book.ChapterCount)
	assert.NotEmpty(t, book.FileHash)
	assert.Positive(t, book.FileSize)
}

func TestImportBook_DuplicateByHash(t *testing.T) {
	svc, _ := setupLibrary(t)
	dir := t.TempDir()
	path := writeTestEpub(t, dir, "original.epub")

	first, err := svc.ImportBook(context.Background(), path)
	require.NoError(t, err)

	// Same bytes under a different name is still the same book.
	copyPath := writeTestEpub(t, dir, "copy.epub")
	dup, err := svc.ImportBook(context.Background(), copyPath)
	assert.True(t, apperrors.Is(err, apperrors.ErrAlreadyExists))
	require.NotNil(t, dup)
	assert.Equal(t, first.ID, dup.ID)
}

func TestImportBook_UnknownFormat(t *testing.T) {
	svc, _ := setupLibrary(t)
	path := t.TempDir() + "/mystery.xyz"
	require.NoError(t, os.WriteFile(path, []byte{0x00, 0x01, 0x02, 0x03}, 0o644))

	_, err := svc.ImportBook(context.Background(), path)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnsupportedFormat))
}

func TestDeleteBook_CascadesDependents(t *testing.T) {
	svc, s := setupLibrary(t)
	path := writeTestEpub(t, t.TempDir(), "book.epub")
	ctx := context.Background()

	book, err := svc.ImportBook(ctx, path)
	require.NoError(t, err)

	annotations := NewAnnotationService(s, nil, testLogger())
	anno, err := annotations.CreateAnnotation(ctx, annotationFixture(book.ID))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteBook(ctx, book.ID))

	_, err = s.GetBook(ctx, book.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	_, err = s.GetAnnotation(ctx, anno.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestScanFolder_ImportsAndPrunes(t *testing.T) {
	svc, s := setupLibrary(t)
	dir := t.TempDir()
	ctx := context.Background()

	first := writeTestEpub(t, dir, "one.epub")
	require.NoError(t, os.WriteFile(dir+"/notes.txt", []byte("plain text file"), 0o644))

	result, err := svc.ScanFolder(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Found)
	assert.Equal(t, 2, result.Added)

	// A second scan adds nothing.
	result, err = svc.ScanFolder(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Added)
	assert.Equal(t, 2, result.Skipped)

	// Removing a file prunes its record on the next scan.
	require.NoError(t, os.Remove(first))
	result, err = svc.ScanFolder(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Removed)

	_, err = s.GetBookByPath(ctx, first)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestRemoveBookByPath(t *testing.T) {
	svc, _ := setupLibrary(t)
	path := writeTestEpub(t, t.TempDir(), "book.epub")
	ctx := context.Background()

	book, err := svc.ImportBook(ctx, path)
	require.NoError(t, err)

	require.NoError(t, svc.RemoveBookByPath(ctx, path))
	_, err = svc.GetBook(ctx, book.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	// Unknown paths are silently ignored.
	assert.NoError(t, svc.RemoveBookByPath(ctx, "/nowhere/else.epub"))
}

func TestSyncPath(t *testing.T) {
	svc, _ := setupLibrary(t)
	dir := t.TempDir()
	ctx := context.Background()

	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("first version"), 0o644))

	book, err := svc.SyncPath(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "notes", book.Title)

	// Unchanged contents are a no-op.
	same, err := svc.SyncPath(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, book.FileHash, same.FileHash)

	// Changed contents refresh hash and size in place.
	require.NoError(t, os.WriteFile(path, []byte("second version, longer"), 0o644))
	updated, err := svc.SyncPath(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, book.ID, updated.ID)
	assert.NotEqual(t, book.FileHash, updated.FileHash)
}

func TestRelocateBook(t *testing.T) {
	svc, _ := setupLibrary(t)
	dir := t.TempDir()
	ctx := context.Background()

	oldPath := writeTestEpub(t, dir, "before.epub")
	book, err := svc.ImportBook(ctx, oldPath)
	require.NoError(t, err)

	newPath := filepath.Join(dir, "after.epub")
	require.NoError(t, os.Rename(oldPath, newPath))

	moved, err := svc.RelocateBook(ctx, oldPath, newPath)
	require.NoError(t, err)
	assert.Equal(t, book.ID, moved.ID)
	assert.Equal(t, newPath, moved.Path)

	found, err := svc.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, newPath, found.Path)

	// Relocating an untracked path imports the destination instead.
	orphan := writeTestEpub(t, t.TempDir(), "orphan.epub")
	_, err = svc.RelocateBook(ctx, filepath.Join(dir, "ghost.epub"), orphan)
	assert.Error(t, err) // same bytes as the tracked epub, so a duplicate
	assert.True(t, apperrors.Is(err, apperrors.ErrAlreadyExists))
}

func TestTitleFromFilename(t *testing.T) {
	assert.Equal(t, "War and Peace", titleFromFilename("/books/War_and_Peace.epub"))
	assert.Equal(t, "plain", titleFromFilename("plain.txt"))
}

func TestSortTitle(t *testing.T) {
	assert.Equal(t, "Silent Sea", sortTitle("The Silent Sea"))
	assert.Equal(t, "Wrinkle in Time", sortTitle("A Wrinkle in Time"))
	assert.Equal(t, "Ocean", sortTitle("An Ocean"))
	assert.Equal(t, "Dune", sortTitle("Dune"))
}

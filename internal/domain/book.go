// Package domain contains the core types for the Shiori library: books,
// reading progress, annotations, collections, tags, and shares.
package domain

import "time"

// Book is a single item in the library. The file itself stays on disk at
// Path; the store only holds metadata and reading state.
type Book struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	SortTitle   string   `json:"sort_title,omitempty"`
	Authors     []string `json:"authors,omitempty"`
	Series      string   `json:"series,omitempty"`
	SeriesIdx   float64  `json:"series_index,omitempty"`
	Publisher   string   `json:"publisher,omitempty"`
	ISBN        string   `json:"isbn,omitempty"`
	Language    string   `json:"language,omitempty"`
	Description string   `json:"description,omitempty"`

	Path     string `json:"path"`
	Format   string `json:"format"`
	FileSize int64  `json:"file_size,omitempty"`
	FileHash string `json:"file_hash,omitempty"`

	CoverPath     string `json:"cover_path,omitempty"`
	CoverBlurHash string `json:"cover_blurhash,omitempty"`

	ChapterCount int `json:"chapter_count,omitempty"`

	TagIDs []string `json:"tag_ids,omitempty"`

	AddedAt    time.Time  `json:"added_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	LastOpened *time.Time `json:"last_opened,omitempty"`
}

// Touch updates the modification timestamp.
func (b *Book) Touch() {
	b.UpdatedAt = time.Now()
}

// MarkOpened records that the book was just opened for reading.
func (b *Book) MarkOpened() {
	now := time.Now()
	b.LastOpened = &now
	b.UpdatedAt = now
}

// BookMetadata is what the reader needs to drive navigation: the title and
// how many spine-level chapters the open book has.
type BookMetadata struct {
	Title         string `json:"title"`
	TotalChapters int    `json:"total_chapters"`
}

// Chapter is one backend-addressable navigation unit of a book's content.
// Content is the raw chapter markup as extracted from the archive; it is
// immutable once fetched and may be cached by index.
type Chapter struct {
	Index   int    `json:"index"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// TocEntry is a table-of-contents item pointing at a chapter index.
type TocEntry struct {
	Title    string     `json:"title"`
	Index    int        `json:"index"`
	Children []TocEntry `json:"children,omitempty"`
}

// Package search provides full-text search over the library using Bleve:
// title, author, and series matching with fuzzy and prefix fallbacks, plus
// format and tag filtering.
package search

import (
	"strings"

	"github.com/shiori-reader/shiori-server/internal/domain"
)

// BookDocument is the shape of a book in the Bleve index. Author and
// series names are denormalized into the document so one query covers
// everything a reader would type.
type BookDocument struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Author      string   `json:"author,omitempty"`
	Series      string   `json:"series,omitempty"`
	Publisher   string   `json:"publisher,omitempty"`
	Description string   `json:"description,omitempty"`
	Format      string   `json:"format"`
	Language    string   `json:"language,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	SeriesIndex float64  `json:"series_index,omitempty"`
	AddedAt     int64    `json:"added_at"`
}

// BookToDocument flattens a library book (and its resolved tag names)
// into an indexable document.
func BookToDocument(book *domain.Book, tagNames []string) *BookDocument {
	return &BookDocument{
		ID:          book.ID,
		Title:       book.Title,
		Author:      strings.Join(book.Authors, ", "),
		Series:      book.Series,
		Publisher:   book.Publisher,
		Description: book.Description,
		Format:      book.Format,
		Language:    book.Language,
		Tags:        tagNames,
		SeriesIndex: book.SeriesIdx,
		AddedAt:     book.AddedAt.Unix(),
	}
}

// ToMap converts the document to a map with lowercase field names so
// they match the index mapping; Bleve would otherwise index Go's
// capitalized struct field names.
func (d *BookDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":       d.ID,
		"title":    d.Title,
		"format":   d.Format,
		"added_at": d.AddedAt,
	}

	// Optional fields - only add if non-empty
	if d.Author != "" {
		m["author"] = d.Author
	}
	if d.Series != "" {
		m["series"] = d.Series
	}
	if d.Publisher != "" {
		m["publisher"] = d.Publisher
	}
	if d.Description != "" {
		m["description"] = d.Description
	}
	if d.Language != "" {
		m["language"] = d.Language
	}
	if len(d.Tags) > 0 {
		m["tags"] = d.Tags
	}
	if d.SeriesIndex > 0 {
		m["series_index"] = d.SeriesIndex
	}
	return m
}

package domain

import "time"

// AnnotationType distinguishes highlights from notes and bookmarks.
type AnnotationType string

// Annotation kinds.
const (
	AnnotationHighlight AnnotationType = "highlight"
	AnnotationNote      AnnotationType = "note"
	AnnotationBookmark  AnnotationType = "bookmark"
)

// Valid reports whether t is a known annotation type.
func (t AnnotationType) Valid() bool {
	switch t {
	case AnnotationHighlight, AnnotationNote, AnnotationBookmark:
		return true
	}
	return false
}

// Annotation is a reader-created mark anchored to a location token
// within a book.
type Annotation struct {
	ID           string         `json:"id"`
	BookID       string         `json:"book_id"`
	Type         AnnotationType `json:"type"`
	Location     string         `json:"location"`
	SelectedText string         `json:"selected_text,omitempty"`
	Note         string         `json:"note,omitempty"`
	Color        string         `json:"color,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

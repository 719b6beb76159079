package domain

import (
	"slices"
	"time"
)

// Collection is a user-curated, ordered group of books.
type Collection struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	BookIDs     []string  `json:"book_ids,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Contains reports whether the collection holds the given book.
func (c *Collection) Contains(bookID string) bool {
	return slices.Contains(c.BookIDs, bookID)
}

// AddBook appends a book if not already present and reports whether
// the collection changed.
func (c *Collection) AddBook(bookID string) bool {
	if c.Contains(bookID) {
		return false
	}
	c.BookIDs = append(c.BookIDs, bookID)
	c.UpdatedAt = time.Now()
	return true
}

// RemoveBook removes a book and reports whether the collection changed.
func (c *Collection) RemoveBook(bookID string) bool {
	i := slices.Index(c.BookIDs, bookID)
	if i < 0 {
		return false
	}
	c.BookIDs = slices.Delete(c.BookIDs, i, i+1)
	c.UpdatedAt = time.Now()
	return true
}

// Tag is a label that can be attached to any number of books.
type Tag struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

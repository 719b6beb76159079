// Package sse implements Server-Sent Events for real-time library updates and event broadcasting.
package sse

import (
	"time"

	"github.com/shiori-reader/shiori-server/internal/domain"
)

// Shiori uses SSE for server-to-client notifications only; everything else
// follows a request/response pattern.

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventBookCreated represents a book creation event.
	EventBookCreated EventType = "book.created"
	// EventBookUpdated represents a book update event.
	EventBookUpdated EventType = "book.updated"
	// EventBookDeleted represents a book deletion event.
	EventBookDeleted EventType = "book.deleted"

	// EventScanStarted represents a library scan start event.
	EventScanStarted EventType = "library.scan_started"
	// EventScanComplete represents a library scan completion event.
	EventScanComplete EventType = "library.scan_completed"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"

	// EventProgressUpdated represents a reading progress update.
	// Lets a second open client follow along without polling.
	EventProgressUpdated EventType = "progress.updated"

	// EventAnnotationCreated represents an annotation creation event.
	EventAnnotationCreated EventType = "annotation.created"
	// EventAnnotationDeleted represents an annotation deletion event.
	EventAnnotationDeleted EventType = "annotation.deleted"

	// Collection events
	EventCollectionCreated     EventType = "collection.created"
	EventCollectionUpdated     EventType = "collection.updated"
	EventCollectionDeleted     EventType = "collection.deleted"
	EventCollectionBookAdded   EventType = "collection.book_added"
	EventCollectionBookRemoved EventType = "collection.book_removed"

	// Share events
	EventShareCreated EventType = "share.created"
	EventShareRevoked EventType = "share.revoked"
)

// Event represents an SSE event to be sent to clients.
// The Data field contains the event payload as a JSON object for direct deserialization.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"` // Event-specific data as JSON object
	Type      EventType `json:"type"`
}

// BookEventData is the data payload for book events.
type BookEventData struct {
	Book *domain.Book `json:"book"`
}

// BookDeletedEventData is the data payload for book delete events.
type BookDeletedEventData struct {
	DeletedAt time.Time `json:"deleted_at"`
	BookID    string    `json:"book_id"`
}

// ScanEventData is the data payload for scan lifecycle events.
type ScanEventData struct {
	LibraryPath string `json:"library_path"`
	BooksFound  int    `json:"books_found,omitempty"`
	BooksAdded  int    `json:"books_added,omitempty"`
}

// ProgressEventData is the data payload for progress update events.
type ProgressEventData struct {
	Progress *domain.ReadingProgress `json:"progress"`
}

// AnnotationEventData is the data payload for annotation events.
type AnnotationEventData struct {
	Annotation *domain.Annotation `json:"annotation"`
}

// CollectionEventData is the data payload for collection events.
type CollectionEventData struct {
	Collection *domain.Collection `json:"collection"`
	BookID     string             `json:"book_id,omitempty"`
}

// ShareEventData is the data payload for share events.
type ShareEventData struct {
	Share *domain.Share `json:"share"`
}

// NewBookCreatedEvent creates a book.created event.
func NewBookCreatedEvent(book *domain.Book) Event {
	return Event{
		Type:      EventBookCreated,
		Timestamp: time.Now(),
		Data:      BookEventData{Book: book},
	}
}

// NewBookUpdatedEvent creates a book.updated event.
func NewBookUpdatedEvent(book *domain.Book) Event {
	return Event{
		Type:      EventBookUpdated,
		Timestamp: time.Now(),
		Data:      BookEventData{Book: book},
	}
}

// NewBookDeletedEvent creates a book.deleted event.
func NewBookDeletedEvent(bookID string) Event {
	return Event{
		Type:      EventBookDeleted,
		Timestamp: time.Now(),
		Data: BookDeletedEventData{
			BookID:    bookID,
			DeletedAt: time.Now(),
		},
	}
}

// NewScanStartedEvent creates a library.scan_started event.
func NewScanStartedEvent(libraryPath string) Event {
	return Event{
		Type:      EventScanStarted,
		Timestamp: time.Now(),
		Data:      ScanEventData{LibraryPath: libraryPath},
	}
}

// NewScanCompleteEvent creates a library.scan_completed event.
func NewScanCompleteEvent(libraryPath string, found, added int) Event {
	return Event{
		Type:      EventScanComplete,
		Timestamp: time.Now(),
		Data: ScanEventData{
			LibraryPath: libraryPath,
			BooksFound:  found,
			BooksAdded:  added,
		},
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return Event{
		Type:      EventHeartbeat,
		Timestamp: time.Now(),
		Data:      map[string]string{"status": "alive"},
	}
}

// NewProgressUpdatedEvent creates a progress.updated event.
func NewProgressUpdatedEvent(progress *domain.ReadingProgress) Event {
	return Event{
		Type:      EventProgressUpdated,
		Timestamp: time.Now(),
		Data:      ProgressEventData{Progress: progress},
	}
}

// NewAnnotationCreatedEvent creates an annotation.created event.
func NewAnnotationCreatedEvent(annotation *domain.Annotation) Event {
	return Event{
		Type:      EventAnnotationCreated,
		Timestamp: time.Now(),
		Data:      AnnotationEventData{Annotation: annotation},
	}
}

// NewAnnotationDeletedEvent creates an annotation.deleted event.
func NewAnnotationDeletedEvent(annotation *domain.Annotation) Event {
	return Event{
		Type:      EventAnnotationDeleted,
		Timestamp: time.Now(),
		Data:      AnnotationEventData{Annotation: annotation},
	}
}

// NewCollectionCreatedEvent creates a collection.created event.
func NewCollectionCreatedEvent(collection *domain.Collection) Event {
	return Event{
		Type:      EventCollectionCreated,
		Timestamp: time.Now(),
		Data:      CollectionEventData{Collection: collection},
	}
}

// NewCollectionUpdatedEvent creates a collection.updated event.
func NewCollectionUpdatedEvent(collection *domain.Collection) Event {
	return Event{
		Type:      EventCollectionUpdated,
		Timestamp: time.Now(),
		Data:      CollectionEventData{Collection: collection},
	}
}

// NewCollectionDeletedEvent creates a collection.deleted event.
func NewCollectionDeletedEvent(collection *domain.Collection) Event {
	return Event{
		Type:      EventCollectionDeleted,
		Timestamp: time.Now(),
		Data:      CollectionEventData{Collection: collection},
	}
}

// NewCollectionBookAddedEvent creates a collection.book_added event.
func NewCollectionBookAddedEvent(collection *domain.Collection, bookID string) Event {
	return Event{
		Type:      EventCollectionBookAdded,
		Timestamp: time.Now(),
		Data:      CollectionEventData{Collection: collection, BookID: bookID},
	}
}

// NewCollectionBookRemovedEvent creates a collection.book_removed event.
func NewCollectionBookRemovedEvent(collection *domain.Collection, bookID string) Event {
	return Event{
		Type:      EventCollectionBookRemoved,
		Timestamp: time.Now(),
		Data:      CollectionEventData{Collection: collection, BookID: bookID},
	}
}

// NewShareCreatedEvent creates a share.created event.
func NewShareCreatedEvent(share *domain.Share) Event {
	return Event{
		Type:      EventShareCreated,
		Timestamp: time.Now(),
		Data:      ShareEventData{Share: share},
	}
}

// NewShareRevokedEvent creates a share.revoked event.
func NewShareRevokedEvent(share *domain.Share) Event {
	return Event{
		Type:      EventShareRevoked,
		Timestamp: time.Now(),
		Data:      ShareEventData{Share: share},
	}
}

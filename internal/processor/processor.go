package processor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	apperrors "github.com/shiori-reader/shiori-server/internal/errors"
	"github.com/shiori-reader/shiori-server/internal/service"
	"github.com/shiori-reader/shiori-server/internal/watcher"
)

// EventProcessor reconciles file system events with the library.
//
// Key design principles:
//   - Processes each event immediately (no batching)
//   - Uses per-path locking to deduplicate concurrent events
//   - Non-blocking (TryLock prevents queueing)
//
// The watcher backends already settle writes before emitting, so by the
// time an event arrives the file is safe to read.
type EventProcessor struct {
	library *service.LibraryService
	logger  *slog.Logger

	// pathLocks provides per-path mutexes so a burst of events for
	// the same file results in a single import.
	pathLocks *SyncMap[string, *sync.Mutex]
}

// NewEventProcessor creates a new EventProcessor instance
func NewEventProcessor(library *service.LibraryService, logger *slog.Logger) *EventProcessor {
	return &EventProcessor{
		library:   library,
		logger:    logger,
		pathLocks: NewSyncMap[string, *sync.Mutex](),
	}
}

// ProcessEvent processes a file system event.
//
// Added and modified files are synced into the library, removed files
// drop their library record, and moves carry the record to the new
// path. If the path is already being processed the event is skipped;
// the next event for that path will catch any changes.
func (ep *EventProcessor) ProcessEvent(ctx context.Context, event watcher.Event) error {
	ep.logger.Debug("processing event",
		"type", event.Type.String(),
		"path", event.Path,
	)

	fileType := classifyFile(event.Path)

	// A book renamed to an unrecognized extension is a removal of the
	// old path. Everything else with an ignored target is noise.
	if fileType == FileTypeIgnored {
		if event.Type == watcher.EventMoved && classifyFile(event.OldPath) == FileTypeBook {
			return ep.handleRemoved(ctx, event.OldPath)
		}
		ep.logger.Debug("ignoring file", "path", event.Path)
		return nil
	}

	lock := ep.getPathLock(event.Path)
	if !lock.TryLock() {
		ep.logger.Debug("path already being processed, skipping", "path", event.Path)
		return nil
	}
	defer lock.Unlock()

	switch event.Type {
	case watcher.EventAdded, watcher.EventModified:
		return ep.handleChanged(ctx, event.Path)
	case watcher.EventRemoved:
		return ep.handleRemoved(ctx, event.Path)
	case watcher.EventMoved:
		return ep.handleMoved(ctx, event.OldPath, event.Path)
	default:
		ep.logger.Warn("unknown event type",
			"type", event.Type,
			"path", event.Path,
		)
		return nil
	}
}

// handleChanged syncs an added or modified file into the library. A
// file whose contents already exist under another path is a duplicate,
// not an error.
func (ep *EventProcessor) handleChanged(ctx context.Context, path string) error {
	book, err := ep.library.SyncPath(ctx, path)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrAlreadyExists) {
			ep.logger.Debug("duplicate content, skipping",
				"path", path,
				"existing_id", book.ID,
			)
			return nil
		}
		return fmt.Errorf("sync path: %w", err)
	}

	ep.logger.Info("file synced",
		"path", path,
		"book_id", book.ID,
		"title", book.Title,
	)
	return nil
}

// handleRemoved drops the library record for a deleted file.
func (ep *EventProcessor) handleRemoved(ctx context.Context, path string) error {
	if err := ep.library.RemoveBookByPath(ctx, path); err != nil {
		return fmt.Errorf("remove by path: %w", err)
	}

	ep.logger.Info("file removed", "path", path)
	return nil
}

// handleMoved carries a book record to its new path.
func (ep *EventProcessor) handleMoved(ctx context.Context, oldPath, newPath string) error {
	book, err := ep.library.RelocateBook(ctx, oldPath, newPath)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrAlreadyExists) {
			ep.logger.Debug("duplicate content, skipping", "path", newPath)
			return nil
		}
		return fmt.Errorf("relocate book: %w", err)
	}

	ep.logger.Info("file moved",
		"from", oldPath,
		"to", newPath,
		"book_id", book.ID,
	)
	return nil
}

// getPathLock gets or creates a mutex for the given path.
func (ep *EventProcessor) getPathLock(path string) *sync.Mutex {
	if lock, ok := ep.pathLocks.Load(path); ok {
		return lock
	}

	// LoadOrStore handles the race when multiple goroutines create a
	// lock for the same path simultaneously.
	actual, _ := ep.pathLocks.LoadOrStore(path, &sync.Mutex{})
	return actual
}

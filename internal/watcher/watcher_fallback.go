//go:build !linux

package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// fallbackBackend watches with fsnotify. Write events arrive while a file
// is still being copied, so each file must sit unchanged for SettleDelay
// before it is reported.
type fallbackBackend struct {
	logger  *slog.Logger
	opts    Options
	watcher *fsnotify.Watcher

	pending map[string]*settlingFile
	seen    map[string]bool
	mu      sync.RWMutex

	events chan Event
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup
}

// settlingFile is a file that changed recently and may still be growing.
type settlingFile struct {
	path    string
	size    int64
	modTime time.Time
	timer   *time.Timer
}

func newFallbackBackend(logger *slog.Logger, opts Options) (*fallbackBackend, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	return &fallbackBackend{
		logger:  logger,
		opts:    opts,
		watcher: watcher,
		pending: make(map[string]*settlingFile),
		seen:    make(map[string]bool),
		events:  make(chan Event, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

func (b *fallbackBackend) Watch(path string) error {
	path = filepath.Clean(path)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat watch path: %w", err)
	}

	if info.IsDir() {
		return b.watchDir(path)
	}
	return b.watchFile(path)
}

// watchDir watches a directory tree and records the files already in it,
// so later writes to them report as modifications rather than additions.
func (b *fallbackBackend) watchDir(path string) error {
	return filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			b.logger.Warn("cannot access path", "path", p, "error", err)
			return nil
		}

		if b.opts.shouldIgnore(p) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !info.IsDir() {
			if b.opts.wantsFile(p) {
				b.markSeen(p)
			}
			return nil
		}

		if err := b.watcher.Add(p); err != nil {
			b.logger.Error("cannot add watch", "path", p, "error", err)
			return nil
		}

		b.logger.Debug("watching", "path", p)
		return nil
	})
}

func (b *fallbackBackend) watchFile(path string) error {
	b.markSeen(path)
	return b.watcher.Add(filepath.Dir(path))
}

func (b *fallbackBackend) Start(ctx context.Context) error {
	b.wg.Add(1)
	go b.processEvents(ctx)

	<-ctx.Done()
	return nil
}

func (b *fallbackBackend) processEvents(ctx context.Context) {
	defer b.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case event, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			b.handleFsnotifyEvent(event)
		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			b.errors <- err
		}
	}
}

func (b *fallbackBackend) handleFsnotifyEvent(event fsnotify.Event) {
	path := event.Name

	if b.opts.shouldIgnore(path) {
		return
	}

	// A new subdirectory needs its own watch before books land in it.
	if event.Op&fsnotify.Create != 0 {
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			if err := b.watchDir(path); err != nil {
				b.logger.Warn("cannot watch new directory", "path", path, "error", err)
			}
			return
		}
	}

	if event.Op&fsnotify.Remove != 0 {
		b.cancelPending(path)
		b.emitRemoved(path)
		return
	}

	if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
		b.startSettling(path)
	}
}

func (b *fallbackBackend) emitRemoved(path string) {
	b.mu.Lock()
	known := b.seen[path]
	delete(b.seen, path)
	b.mu.Unlock()

	// Unknown paths were filtered out on the way in; their removal is not
	// interesting either, unless no filter is configured.
	if !known && len(b.opts.Extensions) > 0 {
		return
	}

	b.emitEvent(Event{
		Type: EventRemoved,
		Path: path,
	})
}

// startSettling arms (or re-arms) the settle timer for a changed file.
func (b *fallbackBackend) startSettling(path string) {
	if !b.opts.wantsFile(path) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if pending, exists := b.pending[path]; exists {
		pending.timer.Stop()
	}

	info, err := os.Stat(path)
	if err != nil {
		b.logger.Warn("cannot stat changed file", "path", path, "error", err)
		delete(b.pending, path)
		return
	}

	if info.IsDir() {
		return
	}

	pending := &settlingFile{
		path:    path,
		size:    info.Size(),
		modTime: info.ModTime(),
	}

	pending.timer = time.AfterFunc(b.opts.SettleDelay, func() {
		b.checkSettled(path)
	})

	b.pending[path] = pending
}

// checkSettled fires after SettleDelay. If the file kept changing the
// timer re-arms; once it holds still the event goes out.
func (b *fallbackBackend) checkSettled(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pending, exists := b.pending[path]
	if !exists {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		// Deleted while settling.
		delete(b.pending, path)
		delete(b.seen, path)
		b.emitEvent(Event{
			Type: EventRemoved,
			Path: path,
		})
		return
	}

	if info.Size() != pending.size || info.ModTime() != pending.modTime {
		pending.size = info.Size()
		pending.modTime = info.ModTime()
		pending.timer = time.AfterFunc(b.opts.SettleDelay, func() {
			b.checkSettled(path)
		})
		return
	}

	delete(b.pending, path)

	eventType := EventAdded
	if b.seen[path] {
		eventType = EventModified
	}
	b.seen[path] = true

	b.emitEvent(Event{
		Type:    eventType,
		Path:    path,
		Inode:   getInode(info.Sys()),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	})
}

func (b *fallbackBackend) cancelPending(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if pending, exists := b.pending[path]; exists {
		pending.timer.Stop()
		delete(b.pending, path)
	}
}

func (b *fallbackBackend) markSeen(path string) {
	b.mu.Lock()
	b.seen[path] = true
	b.mu.Unlock()
}

func (b *fallbackBackend) emitEvent(event Event) {
	select {
	case b.events <- event:
	case <-b.done:
	}
}

func (b *fallbackBackend) Events() <-chan Event {
	return b.events
}

func (b *fallbackBackend) Errors() <-chan error {
	return b.errors
}

func (b *fallbackBackend) Stop() error {
	close(b.done)

	b.mu.Lock()
	for _, pending := range b.pending {
		pending.timer.Stop()
	}
	clear(b.pending)
	b.mu.Unlock()

	b.watcher.Close()
	b.wg.Wait()

	close(b.events)
	close(b.errors)

	return nil
}

// newLinuxBackend satisfies the reference in New; non-Linux builds
// never call it.
func newLinuxBackend(_ *slog.Logger, _ Options) (Backend, error) {
	return nil, fmt.Errorf("inotify backend not available on this platform")
}

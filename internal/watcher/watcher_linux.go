//go:build linux

package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// linuxBackend watches with inotify. IN_CLOSE_WRITE means a file is only
// reported after its writer closed it, so half-copied books never reach
// the importer.
type linuxBackend struct {
	logger  *slog.Logger
	watches map[string]int
	wdPaths map[int]string
	seen    map[string]bool
	events  chan Event
	errors  chan error
	done    chan struct{}
	opts    Options
	wg      sync.WaitGroup
	fd      int
	mu      sync.RWMutex
}

func newLinuxBackend(logger *slog.Logger, opts Options) (*linuxBackend, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("inotify init: %w", err)
	}

	return &linuxBackend{
		logger:  logger,
		opts:    opts,
		fd:      fd,
		watches: make(map[string]int),
		wdPaths: make(map[int]string),
		seen:    make(map[string]bool),
		events:  make(chan Event, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

func (b *linuxBackend) Watch(path string) error {
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
// so later close-write events on them report as modifications rather
// than additions.
func (b *linuxBackend) watchDir(path string) error {
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

		if err := b.addWatch(p); err != nil {
			b.logger.Error("cannot add watch", "path", p, "error", err)
		}
		return nil
	})
}

// watchFile watches a single file through its parent directory; inotify
// watches are per directory.
func (b *linuxBackend) watchFile(path string) error {
	b.markSeen(path)
	return b.addWatch(filepath.Dir(path))
}

func (b *linuxBackend) addWatch(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.watches[path]; exists {
		return nil
	}

	// IN_CLOSE_WRITE: writer finished, file is complete.
	// IN_MOVED_TO: file arrived from elsewhere, also complete.
	// IN_CREATE: only interesting for new subdirectories.
	// IN_DELETE / IN_DELETE_SELF / IN_MOVED_FROM: file or tree went away.
	mask := unix.IN_CLOSE_WRITE | unix.IN_MOVED_TO | unix.IN_CREATE | unix.IN_DELETE | unix.IN_DELETE_SELF | unix.IN_MOVED_FROM

	wd, err := unix.InotifyAddWatch(b.fd, path, uint32(mask))
	if err != nil {
		return fmt.Errorf("inotify add watch: %w", err)
	}

	b.watches[path] = wd
	b.wdPaths[wd] = path
	b.logger.Debug("watching", "path", path, "wd", wd)

	return nil
}

func (b *linuxBackend) removeWatch(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wd, exists := b.watches[path]
	if !exists {
		return
	}

	// The directory may already be gone; the kernel drops the watch with it.
	//nolint:gosec // G115: wd is a small non-negative int from inotify
	_, _ = unix.InotifyRmWatch(b.fd, uint32(wd))

	delete(b.watches, path)
	delete(b.wdPaths, wd)
}

func (b *linuxBackend) Start(ctx context.Context) error {
	b.wg.Add(1)
	go b.readEvents(ctx)

	<-ctx.Done()
	return nil
}

func (b *linuxBackend) readEvents(ctx context.Context) {
	defer b.wg.Done()

	buf := make([]byte, unix.SizeofInotifyEvent*100)

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		default:
			n, err := unix.Read(b.fd, buf)
			if err != nil {
				if err == unix.EINTR || err == unix.EAGAIN {
					continue
				}
				b.errors <- fmt.Errorf("read inotify events: %w", err)
				return
			}

			if n < unix.SizeofInotifyEvent {
				continue
			}

			b.parseEvents(buf[:n])
		}
	}
}

func (b *linuxBackend) parseEvents(buf []byte) {
	offset := 0
	for offset < len(buf) {
		//nolint:gosec // G103: required to overlay the inotify wire struct
		event := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
		offset += unix.SizeofInotifyEvent + int(event.Len)

		b.mu.RLock()
		dir, ok := b.wdPaths[int(event.Wd)]
		b.mu.RUnlock()

		if !ok {
			continue
		}

		name := ""
		if event.Len > 0 {
			nameBytes := buf[offset-int(event.Len) : offset]
			name = string(nameBytes[:clen(nameBytes)])
		}

		b.processEvent(filepath.Join(dir, name), event.Mask)
	}
}

func (b *linuxBackend) processEvent(path string, mask uint32) {
	if b.opts.shouldIgnore(path) {
		return
	}

	// A new subdirectory needs its own watch before books land in it.
	if mask&unix.IN_CREATE != 0 {
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			if err := b.watchDir(path); err != nil {
				b.logger.Warn("cannot watch new directory", "path", path, "error", err)
			}
			return
		}
	}

	if mask&(unix.IN_DELETE|unix.IN_MOVED_FROM) != 0 {
		b.emitRemoved(path)
		return
	}

	if mask&unix.IN_DELETE_SELF != 0 {
		b.emitRemoved(path)
		b.removeWatch(path)
		return
	}

	if mask&(unix.IN_CLOSE_WRITE|unix.IN_MOVED_TO) != 0 {
		b.handleFileReady(path)
	}
}

func (b *linuxBackend) emitRemoved(path string) {
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

// handleFileReady reports a complete file, as an addition the first time
// and as a modification afterwards.
func (b *linuxBackend) handleFileReady(path string) {
	if !b.opts.wantsFile(path) {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		b.logger.Warn("cannot stat ready file", "path", path, "error", err)
		return
	}
	if info.IsDir() {
		return
	}

	b.mu.Lock()
	eventType := EventAdded
	if b.seen[path] {
		eventType = EventModified
	}
	b.seen[path] = true
	b.mu.Unlock()

	b.emitEvent(Event{
		Type:    eventType,
		Path:    path,
		Inode:   getInode(info.Sys()),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	})
}

func (b *linuxBackend) markSeen(path string) {
	b.mu.Lock()
	b.seen[path] = true
	b.mu.Unlock()
}

func (b *linuxBackend) emitEvent(event Event) {
	select {
	case b.events <- event:
	case <-b.done:
	}
}

func (b *linuxBackend) Events() <-chan Event {
	return b.events
}

func (b *linuxBackend) Errors() <-chan error {
	return b.errors
}

func (b *linuxBackend) Stop() error {
	close(b.done)
	b.wg.Wait()

	var closeErr error
	if b.fd >= 0 {
		closeErr = unix.Close(b.fd)
	}

	close(b.events)
	close(b.errors)

	return closeErr
}

// clen returns the length of a null-terminated byte slice.
func clen(n []byte) int {
	for i := 0; i < len(n); i++ {
		if n[i] == 0 {
			return i
		}
	}
	return len(n)
}

// newFallbackBackend satisfies the reference in New; the Linux build
// never calls it.
func newFallbackBackend(_ *slog.Logger, _ Options) (Backend, error) {
	return nil, fmt.Errorf("fallback backend not available on linux")
}

package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
)

// Watcher reports settled file changes in the library folder so new and
// updated books can be imported without a rescan.
type Watcher struct {
	backend Backend
	logger  *slog.Logger
}

// New picks the backend for the current platform. On Linux that is
// inotify keyed on IN_CLOSE_WRITE, so a copied book is only reported
// once the writer has closed it. Everywhere else fsnotify with a
// settle delay approximates the same guarantee.
func New(logger *slog.Logger, opts Options) (*Watcher, error) {
	opts.setDefaults()

	var backend Backend
	var err error

	if runtime.GOOS == "linux" {
		backend, err = newLinuxBackend(logger, opts)
		logger.Info("watching library with inotify")
	} else {
		backend, err = newFallbackBackend(logger, opts)
		logger.Info("watching library with fsnotify", "platform", runtime.GOOS)
	}

	if err != nil {
		return nil, fmt.Errorf("create watcher backend: %w", err)
	}

	return &Watcher{
		backend: backend,
		logger:  logger,
	}, nil
}

// Watch registers a file or directory. Directories are watched recursively.
func (w *Watcher) Watch(path string) error {
	return w.backend.Watch(path)
}

// Start blocks delivering events until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	return w.backend.Start(ctx)
}

// Stop releases all watches.
func (w *Watcher) Stop() error {
	return w.backend.Stop()
}

func (w *Watcher) Events() <-chan Event {
	return w.backend.Events()
}

func (w *Watcher) Errors() <-chan error {
	return w.backend.Errors()
}

package providers

import (
	"context"
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/shiori-reader/shiori-server/internal/config"
	"github.com/shiori-reader/shiori-server/internal/format"
	"github.com/shiori-reader/shiori-server/internal/processor"
	"github.com/shiori-reader/shiori-server/internal/service"
	"github.com/shiori-reader/shiori-server/internal/watcher"
)

// ProvideEventProcessor provides the watcher event processor.
func ProvideEventProcessor(i do.Injector) (*processor.EventProcessor, error) {
	library := do.MustInvoke[*service.LibraryService](i)
	log := do.MustInvoke[*slog.Logger](i)

	return processor.NewEventProcessor(library, log), nil
}

// FileWatcherHandle wraps the file watcher with shutdown capability. The
// Watcher is nil when watching is disabled or no library path is
// configured.
type FileWatcherHandle struct {
	*watcher.Watcher
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *FileWatcherHandle) Shutdown() error {
	if h.Watcher == nil {
		return nil
	}
	h.cancel()
	return h.Watcher.Stop()
}

// ProvideFileWatcher provides the library folder watcher.
func ProvideFileWatcher(i do.Injector) (*FileWatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*slog.Logger](i)
	eventProcessor := do.MustInvoke[*processor.EventProcessor](i)

	if !cfg.Library.WatchLibrary || cfg.Library.BookPath == "" {
		log.Info("library watcher disabled",
			"watch_library", cfg.Library.WatchLibrary,
			"book_path", cfg.Library.BookPath,
		)
		return &FileWatcherHandle{}, nil
	}

	w, err := watcher.New(log, watcher.Options{
		Extensions:   format.Extensions(),
		SettleDelay:  cfg.Watcher.SettleDelay,
		IgnoreHidden: true,
	})
	if err != nil {
		return nil, err
	}

	if err := w.Watch(cfg.Library.BookPath); err != nil {
		return nil, err
	}

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		if err := w.Start(ctx); err != nil {
			log.Error("file watcher error", "error", err)
		}
	}()

	// Process events in background
	go func() {
		for {
			select {
			case event := <-w.Events():
				if err := eventProcessor.ProcessEvent(ctx, event); err != nil {
					log.Warn("failed to process event",
						"error", err,
						"type", event.Type,
						"path", event.Path,
					)
				}
			case err := <-w.Errors():
				log.Warn("file watcher error", "error", err)
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("file watcher started", "path", cfg.Library.BookPath)

	return &FileWatcherHandle{
		Watcher: w,
		cancel:  cancel,
	}, nil
}

// RunStartupScan reconciles the library folder with the database in the
// background. Should be called after all services are wired.
func RunStartupScan(i do.Injector) {
	cfg := do.MustInvoke[*config.Config](i)
	library := do.MustInvoke[*service.LibraryService](i)
	log := do.MustInvoke[*slog.Logger](i)

	if cfg.Library.BookPath == "" {
		return
	}

	go func() {
		result, err := library.ScanFolder(context.Background(), cfg.Library.BookPath)
		if err != nil {
			log.Error("startup library scan failed", "error", err)
			return
		}
		log.Info("startup library scan completed",
			"found", result.Found,
			"added", result.Added,
			"skipped", result.Skipped,
			"removed", result.Removed,
		)
	}()
}

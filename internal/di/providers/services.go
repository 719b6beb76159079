package providers

import (
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/shiori-reader/shiori-server/internal/auth"
	"github.com/shiori-reader/shiori-server/internal/config"
	"github.com/shiori-reader/shiori-server/internal/service"
)

// ProvideCoverService provides the cover artwork service.
func ProvideCoverService(i do.Injector) (*service.CoverService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*slog.Logger](i)

	return service.NewCoverService(cfg.Data.BasePath, log)
}

// ProvideLibraryService provides the library service.
func ProvideLibraryService(i do.Injector) (*service.LibraryService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	covers := do.MustInvoke[*service.CoverService](i)
	log := do.MustInvoke[*slog.Logger](i)

	return service.NewLibraryService(storeHandle.Store, covers, sseHandle.Manager, log), nil
}

// ReaderServiceHandle wraps the reader service with shutdown capability.
type ReaderServiceHandle struct {
	*service.ReaderService
}

// Shutdown implements do.Shutdownable.
func (h *ReaderServiceHandle) Shutdown() error {
	return h.Close()
}

// ProvideReaderService provides the reading session service.
func ProvideReaderService(i do.Injector) (*ReaderServiceHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*slog.Logger](i)

	svc, err := service.NewReaderService(storeHandle.Store, sseHandle.Manager, cfg.Reader, log)
	if err != nil {
		return nil, err
	}
	return &ReaderServiceHandle{ReaderService: svc}, nil
}

// ProvideAnnotationService provides the annotation service.
func ProvideAnnotationService(i do.Injector) (*service.AnnotationService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*slog.Logger](i)

	return service.NewAnnotationService(storeHandle.Store, sseHandle.Manager, log), nil
}

// ProvideCollectionService provides the collection service.
func ProvideCollectionService(i do.Injector) (*service.CollectionService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*slog.Logger](i)

	return service.NewCollectionService(storeHandle.Store, sseHandle.Manager, log), nil
}

// ProvideTagService provides the tag service.
func ProvideTagService(i do.Injector) (*service.TagService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*slog.Logger](i)

	return service.NewTagService(storeHandle.Store, sseHandle.Manager, log), nil
}

// ProvideExportService provides the chapter and book export service.
func ProvideExportService(i do.Injector) (*service.ExportService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	readerHandle := do.MustInvoke[*ReaderServiceHandle](i)
	log := do.MustInvoke[*slog.Logger](i)

	return service.NewExportService(storeHandle.Store, readerHandle.ReaderService, log), nil
}

// ProvideShareService provides the share link service.
func ProvideShareService(i do.Injector) (*service.ShareService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	tokens := do.MustInvoke[*auth.TokenService](i)
	log := do.MustInvoke[*slog.Logger](i)

	return service.NewShareService(storeHandle.Store, tokens, cfg.Share, sseHandle.Manager, log), nil
}

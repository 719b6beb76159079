// Package di provides dependency injection configuration for the server.
package di

import (
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/shiori-reader/shiori-server/internal/auth"
	"github.com/shiori-reader/shiori-server/internal/config"
	"github.com/shiori-reader/shiori-server/internal/di/providers"
	"github.com/shiori-reader/shiori-server/internal/processor"
	"github.com/shiori-reader/shiori-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideShareKey)

	// Database layer
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideStore)

	// Search layer
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideSearchService)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenService)

	// Business services
	do.Provide(injector, providers.ProvideCoverService)
	do.Provide(injector, providers.ProvideLibraryService)
	do.Provide(injector, providers.ProvideReaderService)
	do.Provide(injector, providers.ProvideAnnotationService)
	do.Provide(injector, providers.ProvideCollectionService)
	do.Provide(injector, providers.ProvideTagService)
	do.Provide(injector, providers.ProvideExportService)
	do.Provide(injector, providers.ProvideShareService)

	// Workers
	do.Provide(injector, providers.ProvideEventProcessor)
	do.Provide(injector, providers.ProvideFileWatcher)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)
	do.Provide(injector, providers.ProvideMDNSService)

	return injector
}

// Bootstrap initializes all services and returns once the server is
// running. This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	// Invoke core services to trigger initialization
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*slog.Logger](injector)
	_ = do.MustInvoke[providers.ShareKey](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*auth.TokenService](injector)

	// Business services
	_ = do.MustInvoke[*service.CoverService](injector)
	_ = do.MustInvoke[*service.LibraryService](injector)
	_ = do.MustInvoke[*providers.ReaderServiceHandle](injector)
	_ = do.MustInvoke[*service.AnnotationService](injector)
	_ = do.MustInvoke[*service.CollectionService](injector)
	_ = do.MustInvoke[*service.TagService](injector)
	_ = do.MustInvoke[*service.ExportService](injector)
	_ = do.MustInvoke[*service.ShareService](injector)
	_ = do.MustInvoke[*service.SearchService](injector)

	// Workers
	_ = do.MustInvoke[*processor.EventProcessor](injector)
	_ = do.MustInvoke[*providers.FileWatcherHandle](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)
	_ = do.MustInvoke[*providers.MDNSServiceHandle](injector)

	// Reconcile the index and the library folder in the background
	providers.TriggerSearchReindexIfNeeded(injector)
	providers.RunStartupScan(injector)

	return nil
}

package providers

import (
	"context"
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/shiori-reader/shiori-server/internal/config"
	"github.com/shiori-reader/shiori-server/internal/search"
	"github.com/shiori-reader/shiori-server/internal/service"
	"github.com/shiori-reader/shiori-server/internal/store"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.SearchIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the bleve search index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*slog.Logger](i)

	index, err := search.NewSearchIndex(search.Options{
		DataPath: cfg.Data.BasePath,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Info("search index initialized", "documents", docCount)

	return &SearchIndexHandle{SearchIndex: index}, nil
}

// ProvideSearchService provides the search service.
func ProvideSearchService(i do.Injector) (*service.SearchService, error) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tagService := do.MustInvoke[*service.TagService](i)
	log := do.MustInvoke[*slog.Logger](i)

	svc := service.NewSearchService(storeHandle.Store, indexHandle.SearchIndex, tagService, log)

	// Wire to store for automatic indexing
	storeHandle.SetSearchIndexer(svc)

	return svc, nil
}

// TriggerSearchReindexIfNeeded rebuilds an empty index when the library
// is not. Should be called after all services are wired.
func TriggerSearchReindexIfNeeded(i do.Injector) {
	searchService := do.MustInvoke[*service.SearchService](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*slog.Logger](i)

	docCount, _ := searchService.DocumentCount()
	if docCount > 0 {
		return
	}

	ctx := context.Background()
	page, err := storeHandle.ListBooks(ctx, store.PaginationParams{Limit: 1})
	if err != nil || len(page.Items) == 0 {
		return
	}

	log.Info("search index is empty but books exist, triggering initial reindex")

	go func() {
		count, err := searchService.RebuildIndex(context.Background())
		if err != nil {
			log.Error("initial search reindex failed", "error", err)
			return
		}
		log.Info("initial search reindex completed", "documents", count)
	}()
}

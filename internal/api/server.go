// Package api provides the HTTP server and handlers for the Shiori library.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/shiori-reader/shiori-server/internal/service"
	"github.com/shiori-reader/shiori-server/internal/sse"
	"github.com/shiori-reader/shiori-server/internal/store"
	"github.com/shiori-reader/shiori-server/internal/validation"
)

// Services bundles the business-logic dependencies of the server.
type Services struct {
	Library     *service.LibraryService
	Reader      *service.ReaderService
	Annotations *service.AnnotationService
	Collections *service.CollectionService
	Tags        *service.TagService
	Covers      *service.CoverService
	Export      *service.ExportService
	Shares      *service.ShareService
	Search      *service.SearchService
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store        *store.Store
	services     Services
	sseHandler   *sse.Handler
	bookPath     string
	validator    *validation.Validator
	shareLimiter *RateLimiter
	router       *chi.Mux
	logger       *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
// bookPath is the default folder for library scans; it may be empty.
func NewServer(store *store.Store, services Services, sseHandler *sse.Handler, bookPath string, logger *slog.Logger) *Server {
	s := &Server{
		store:        store,
		services:     services,
		sseHandler:   sseHandler,
		bookPath:     bookPath,
		validator:    validation.New(),
		shareLimiter: NewRateLimiter(30, shareRateInterval, 10),
		router:       chi.NewRouter(),
		logger:       logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases handler-owned resources.
func (s *Server) Close() {
	s.shareLimiter.Stop()
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Health check.
	s.router.Get("/health", s.handleHealthCheck)

	// Public share access. Rate limited since these endpoints take
	// passwords from the open network.
	s.router.Route("/share/{token}", func(r chi.Router) {
		r.Use(RateLimitMiddleware(s.shareLimiter, s.logger))
		r.Get("/", s.handleLookupShare)
		r.Post("/access", s.handleAccessShare)
		r.Group(func(r chi.Router) {
			r.Use(s.requireShareSession)
			r.Get("/download", s.handleShareDownload)
		})
	})

	// API v1.
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/events", s.sseHandler.ServeHTTP)

		r.Route("/books", func(r chi.Router) {
			r.Get("/", s.handleListBooks)
			r.Post("/import", s.handleImportBook)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetBook)
				r.Patch("/", s.handleUpdateBook)
				r.Delete("/", s.handleDeleteBook)

				r.Get("/cover", s.handleGetCover)
				r.Get("/thumbnail", s.handleGetThumbnail)

				// Reader pipeline.
				r.Post("/open", s.handleOpenBook)
				r.Post("/close", s.handleCloseBook)
				r.Route("/session", func(r chi.Router) {
					r.Post("/", s.handleOpenSession)
					r.Delete("/", s.handleCloseSession)
					r.Get("/chapters/{index}", s.handleSessionChapter)
					r.Post("/next", s.handleSessionNext)
					r.Post("/prev", s.handleSessionPrev)
				})
				r.Get("/toc", s.handleGetTOC)
				r.Get("/chapters/{index}", s.handleGetChapter)
				r.Get("/chapters/{index}/export", s.handleExportChapter)
				r.Get("/resources/*", s.handleGetResource)
				r.Get("/search", s.handleSearchInBook)
				r.Get("/progress", s.handleGetProgress)
				r.Put("/progress", s.handleSaveProgress)
				r.Get("/settings", s.handleGetBookSettings)
				r.Put("/settings", s.handleSaveBookSettings)
				r.Get("/export", s.handleExportBook)

				r.Get("/annotations", s.handleListAnnotations)
				r.Post("/annotations", s.handleCreateAnnotation)
				r.Get("/collections", s.handleCollectionsForBook)
				r.Put("/tags/{tagID}", s.handleTagBook)
				r.Delete("/tags/{tagID}", s.handleUntagBook)
				r.Get("/shares", s.handleSharesForBook)
			})
		})

		r.Route("/annotations", func(r chi.Router) {
			r.Get("/{id}", s.handleGetAnnotation)
			r.Patch("/{id}", s.handleUpdateAnnotation)
			r.Delete("/{id}", s.handleDeleteAnnotation)
		})

		r.Route("/collections", func(r chi.Router) {
			r.Post("/", s.handleCreateCollection)
			r.Get("/", s.handleListCollections)
			r.Get("/{id}", s.handleGetCollection)
			r.Patch("/{id}", s.handleUpdateCollection)
			r.Delete("/{id}", s.handleDeleteCollection)
			r.Put("/{id}/books/{bookID}", s.handleAddBookToCollection)
			r.Delete("/{id}/books/{bookID}", s.handleRemoveBookFromCollection)
		})

		r.Route("/tags", func(r chi.Router) {
			r.Post("/", s.handleCreateTag)
			r.Get("/", s.handleListTags)
			r.Delete("/{id}", s.handleDeleteTag)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/reader", s.handleGetReaderSettings)
			r.Put("/reader", s.handleSaveReaderSettings)
		})

		r.Route("/search", func(r chi.Router) {
			r.Get("/", s.handleSearchLibrary)
			r.Post("/rebuild", s.handleRebuildIndex)
		})

		r.Route("/shares", func(r chi.Router) {
			r.Post("/", s.handleCreateShare)
			r.Get("/", s.handleListShares)
			r.Delete("/{id}", s.handleRevokeShare)
		})

		r.Post("/library/scan", s.handleScanLibrary)
	})
}

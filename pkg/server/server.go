// Package server provides a public API for embedding the archive holdings
// STAC service in another application.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/auscophub/archive/internal/api"
	"github.com/auscophub/archive/internal/config"
	"github.com/auscophub/archive/internal/holdings"
)

// Options configures the holdings server.
type Options struct {
	// ArchiveRoot is the top of the archive directory tree (required).
	ArchiveRoot string

	// BaseURL is the public-facing URL for self-referential links.
	// Example: "https://api.example.com/stac" or "http://localhost:8080"
	BaseURL string

	// DownloadBaseURL, when set, is prefixed to the relative archive path
	// to form item data asset links.
	DownloadBaseURL string

	// Title is the STAC API title.
	// Default: "Copernicus Australasia Archive"
	Title string

	// Description is the STAC API description.
	Description string

	// DefaultLimit is the default number of items per page.
	// Default: 10
	DefaultLimit int

	// MaxLimit is the maximum number of items per page.
	// Default: 250
	MaxLimit int

	// ReloadInterval is how often the holdings index is rebuilt from the
	// archive tree. Zero disables background reloads.
	ReloadInterval time.Duration

	// Metrics, when not nil, is mounted at /metrics.
	Metrics http.Handler

	// Logger is the slog logger to use.
	// Default: slog.Default()
	Logger *slog.Logger
}

// Server serves the STAC holdings API over a local archive tree.
type Server struct {
	router chi.Router
	index  *holdings.Index
	stop   chan struct{}
}

// New creates a new holdings server, performing the initial index scan.
func New(opts Options) (*Server, error) {
	if opts.ArchiveRoot == "" {
		return nil, fmt.Errorf("archive root is required")
	}
	if opts.Title == "" {
		opts.Title = "Copernicus Australasia Archive"
	}
	if opts.Description == "" {
		opts.Description = "STAC API over the regional Sentinel zipfile archive"
	}
	if opts.DefaultLimit == 0 {
		opts.DefaultLimit = 10
	}
	if opts.MaxLimit == 0 {
		opts.MaxLimit = 250
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	cfg := &config.Config{}
	cfg.Storage.Root = opts.ArchiveRoot
	cfg.STAC.Version = "1.0.0"
	cfg.STAC.BaseURL = opts.BaseURL
	cfg.STAC.Title = opts.Title
	cfg.STAC.Description = opts.Description
	cfg.STAC.DownloadBaseURL = opts.DownloadBaseURL
	cfg.STAC.DefaultLimit = opts.DefaultLimit
	cfg.STAC.MaxLimit = opts.MaxLimit

	index := holdings.NewIndex(opts.ArchiveRoot, opts.Logger)
	if err := index.Reload(); err != nil {
		return nil, fmt.Errorf("initial index scan failed: %w", err)
	}

	handlers := api.NewHandlers(cfg, index, opts.Logger)
	router := api.NewRouter(handlers, opts.Logger, opts.Metrics)

	s := &Server{
		router: router,
		index:  index,
		stop:   make(chan struct{}),
	}

	if opts.ReloadInterval > 0 {
		go s.reloadLoop(opts.ReloadInterval, opts.Logger)
	}

	return s, nil
}

func (s *Server) reloadLoop(interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if err := s.index.Reload(); err != nil {
				logger.Error("holdings reload failed", "error", err)
			}
		}
	}
}

// Router returns the chi.Router for mounting in another application.
func (s *Server) Router() chi.Router {
	return s.router
}

// Index returns the underlying holdings index.
func (s *Server) Index() *holdings.Index {
	return s.index
}

// Close stops the background reload goroutine.
func (s *Server) Close() {
	close(s.stop)
}

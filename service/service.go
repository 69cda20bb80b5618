// Package service wires the document operations to their transports: the
// HTTP routes /read-docx and /merge-docx, and the MCP tools docx_read and
// docx_merge.
package service

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/docxsvc/docxmerge"
	"github.com/hazyhaar/docxsvc/docxread"
	"github.com/hazyhaar/docxsvc/fetch"
	"github.com/hazyhaar/docxsvc/observability"
)

// Fetcher downloads documents and templates referenced by URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Result, error)
}

// Config holds the collaborators of a Service. Reader and Merger are
// required. Fetcher may be nil, in which case URL inputs fail as fetch
// errors. Metrics may be nil.
type Config struct {
	Reader  *docxread.Reader
	Merger  *docxmerge.Merger
	Fetcher Fetcher
	Metrics *observability.Metrics
	Logger  *slog.Logger

	// MultipartMemory is the in-memory threshold for multipart parsing;
	// larger parts spool to temp files. Default: 8 MiB.
	MultipartMemory int64
}

// Service serves the read and merge operations.
type Service struct {
	reader  *docxread.Reader
	merger  *docxmerge.Merger
	fetcher Fetcher
	metrics *observability.Metrics
	logger  *slog.Logger
	memory  int64
}

// New creates a Service.
func New(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MultipartMemory <= 0 {
		cfg.MultipartMemory = 8 << 20
	}
	return &Service{
		reader:  cfg.Reader,
		merger:  cfg.Merger,
		fetcher: cfg.Fetcher,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		memory:  cfg.MultipartMemory,
	}
}

// RegisterHTTP mounts the document routes and /healthz on r.
func (s *Service) RegisterHTTP(r chi.Router) {
	r.Post("/read-docx", s.handleRead)
	r.Post("/merge-docx", s.handleMerge)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

func (s *Service) fetch(ctx context.Context, url string) (*fetch.Result, error) {
	if s.fetcher == nil {
		return nil, &fetch.NetworkError{Err: errNoFetcher}
	}
	return s.fetcher.Fetch(ctx, url)
}

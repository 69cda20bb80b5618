// Package docxmerge renders a JSON context into a .docx template.
//
// The template comes from, in order of precedence: a template_url carried
// by the context itself, template bytes supplied by the caller, or the
// configured default template.
//
// Usage:
//
//	m := docxmerge.New(docxmerge.Config{DefaultTemplate: assets.DefaultTemplate}, fetcher)
//	out, err := m.Merge(ctx, []byte(`{"name":"Alice","done":true}`), nil)
package docxmerge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hazyhaar/docxsvc/fetch"
)

var (
	// ErrInvalidContext: the context is not a JSON object.
	ErrInvalidContext = errors.New("docxmerge: invalid context")
	// ErrTemplateFetch: the template_url of the context could not be fetched.
	ErrTemplateFetch = errors.New("docxmerge: template fetch failed")
	// ErrRender: the template could not be opened, parsed or executed, or a
	// placeholder has no matching context key.
	ErrRender = errors.New("docxmerge: render failed")
	// ErrNoTemplate: nothing supplied and no default configured.
	ErrNoTemplate = errors.New("docxmerge: no template available")
)

// Fetcher downloads templates referenced by URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Result, error)
}

// Config configures a Merger.
type Config struct {
	// DefaultTemplatePath is read on every merge that needs the default
	// template. Takes precedence over DefaultTemplate.
	DefaultTemplatePath string
	// DefaultTemplate is used when DefaultTemplatePath is empty.
	DefaultTemplate []byte
	Logger          *slog.Logger
}

// Source tells where the template of a merge came from.
type Source string

const (
	SourceURL      Source = "url"
	SourceSupplied Source = "supplied"
	SourceDefault  Source = "default"
)

// Merger renders contexts into templates. It is safe for concurrent use.
type Merger struct {
	cfg     Config
	fetcher Fetcher
}

// New creates a Merger. fetcher may be nil, in which case contexts carrying
// a template_url fail with ErrTemplateFetch.
func New(cfg Config, fetcher Fetcher) *Merger {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Merger{cfg: cfg, fetcher: fetcher}
}

// Merge parses contextJSON, resolves the template, and returns the rendered
// document.
func (m *Merger) Merge(ctx context.Context, contextJSON []byte, template []byte) ([]byte, error) {
	data, err := ParseContext(contextJSON)
	if err != nil {
		return nil, err
	}

	tpl, src, err := m.resolveTemplate(ctx, data, template)
	if err != nil {
		return nil, err
	}

	Sanitize(data)

	start := time.Now()
	out, err := Render(tpl, data)
	if err != nil {
		m.cfg.Logger.Warn("docxmerge: render failed", "source", src, "error", err)
		return nil, err
	}
	m.cfg.Logger.Debug("docxmerge: rendered",
		"source", src,
		"keys", len(data),
		"template_bytes", len(tpl),
		"output_bytes", len(out),
		"duration", time.Since(start),
	)
	return out, nil
}

// ResolveSource reports which template Merge would use, without fetching.
func ResolveSource(data map[string]any, template []byte) Source {
	switch {
	case TemplateURL(data) != "":
		return SourceURL
	case len(template) > 0:
		return SourceSupplied
	default:
		return SourceDefault
	}
}

func (m *Merger) resolveTemplate(ctx context.Context, data map[string]any, supplied []byte) ([]byte, Source, error) {
	src := ResolveSource(data, supplied)
	switch src {
	case SourceURL:
		u := TemplateURL(data)
		if m.fetcher == nil {
			return nil, src, fmt.Errorf("%w: no fetcher configured", ErrTemplateFetch)
		}
		res, err := m.fetcher.Fetch(ctx, u)
		if err != nil {
			return nil, src, fmt.Errorf("%w: %v", ErrTemplateFetch, err)
		}
		if len(res.Body) == 0 {
			return nil, src, fmt.Errorf("%w: empty body from %s", ErrTemplateFetch, u)
		}
		return res.Body, src, nil
	case SourceSupplied:
		return supplied, src, nil
	default:
		tpl, err := m.defaultTemplate()
		return tpl, src, err
	}
}

func (m *Merger) defaultTemplate() ([]byte, error) {
	if m.cfg.DefaultTemplatePath != "" {
		data, err := os.ReadFile(m.cfg.DefaultTemplatePath)
		if err != nil {
			return nil, fmt.Errorf("read default template: %w", err)
		}
		return data, nil
	}
	if len(m.cfg.DefaultTemplate) == 0 {
		return nil, ErrNoTemplate
	}
	return m.cfg.DefaultTemplate, nil
}

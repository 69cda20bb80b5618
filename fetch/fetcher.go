// Package fetch downloads remote documents and templates.
//
// A Fetcher makes exactly one attempt per call. Failures come back as one of
// three kinds so that callers can map them without string matching:
// ErrInvalidScheme, *HTTPError and *NetworkError.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"

	"github.com/hazyhaar/docxsvc/horosafe"
)

// ErrInvalidScheme is returned for URLs that do not start with http:// or https://.
var ErrInvalidScheme = errors.New("fetch: invalid URL scheme, must be http or https")

// HTTPError reports a response whose status is outside 2xx.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string { return fmt.Sprintf("HTTP %d", e.StatusCode) }

// NetworkError wraps connection, timeout and body read failures.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

// Result is a successful download.
type Result struct {
	URL         string
	Body        []byte
	StatusCode  int
	ContentType string // Content-Type response header
	Detected    string // MIME type sniffed from Body
}

// Config configures the fetcher.
type Config struct {
	Timeout   time.Duration // whole request, body included. Default: 15s.
	MaxBytes  int64         // max body size. Default: 50 MiB.
	UserAgent string
	// BlockPrivate rejects URLs (and redirect targets) that resolve to
	// private or loopback addresses.
	BlockPrivate bool
	Logger       *slog.Logger
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 50 << 20
	}
	if c.UserAgent == "" {
		c.UserAgent = "docxsvc/1.0"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Fetcher performs single-attempt HTTP GETs.
type Fetcher struct {
	client *resty.Client
	cfg    Config
}

// New creates a Fetcher. Redirects are followed up to 5 hops and every hop
// is re-validated.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	f := &Fetcher{cfg: cfg}
	f.client = resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetLogger(restyLogger{cfg.Logger}).
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (%d)", len(via))
			}
			if err := f.validate(req.URL.String()); err != nil {
				return fmt.Errorf("redirect blocked: %w", err)
			}
			return nil
		}))
	return f
}

// Fetch downloads rawURL and returns its body.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	if err := f.validate(rawURL); err != nil {
		if errors.Is(err, horosafe.ErrUnsafeScheme) {
			return nil, ErrInvalidScheme
		}
		return nil, &NetworkError{Err: err}
	}

	start := time.Now()
	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(rawURL)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	body := resp.RawBody()
	defer body.Close()

	if !resp.IsSuccess() {
		f.cfg.Logger.Debug("fetch: non-success status", "url", rawURL, "status", resp.StatusCode())
		return nil, &HTTPError{StatusCode: resp.StatusCode()}
	}

	data, err := horosafe.LimitedReadAll(body, f.cfg.MaxBytes)
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("read body: %w", err)}
	}

	res := &Result{
		URL:         rawURL,
		Body:        data,
		StatusCode:  resp.StatusCode(),
		ContentType: resp.Header().Get("Content-Type"),
		Detected:    mimetype.Detect(data).String(),
	}
	f.cfg.Logger.Debug("fetch: done",
		"url", rawURL,
		"status", res.StatusCode,
		"bytes", len(data),
		"content_type", res.ContentType,
		"detected", res.Detected,
		"duration", time.Since(start),
	)
	return res, nil
}

func (f *Fetcher) validate(rawURL string) error {
	if f.cfg.BlockPrivate {
		return horosafe.ValidatePublicURL(rawURL)
	}
	return horosafe.CheckScheme(rawURL)
}

// restyLogger routes resty's internal messages to slog.
type restyLogger struct{ l *slog.Logger }

func (r restyLogger) Errorf(format string, v ...any) {
	r.l.Error("resty: " + fmt.Sprintf(format, v...))
}

func (r restyLogger) Warnf(format string, v ...any) {
	r.l.Warn("resty: " + fmt.Sprintf(format, v...))
}

func (r restyLogger) Debugf(format string, v ...any) {
	r.l.Debug("resty: " + fmt.Sprintf(format, v...))
}

package observability

import (
	"context"
	"errors"

	"github.com/hazyhaar/docxsvc/fetch"
	"github.com/hazyhaar/docxsvc/horosafe"
)

// Fetch outcomes.
const (
	FetchOK            = "ok"
	FetchInvalidScheme = "invalid_scheme"
	FetchBlocked       = "blocked"
	FetchHTTPError     = "http_error"
	FetchNetworkError  = "network_error"
)

// Fetcher is the download capability shared by the handlers and the merger.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Result, error)
}

// InstrumentFetcher returns f wrapped so that every call is counted by
// outcome. With a nil receiver f is returned unchanged.
func (m *Metrics) InstrumentFetcher(f Fetcher) Fetcher {
	if m == nil || f == nil {
		return f
	}
	return &countingFetcher{next: f, m: m}
}

type countingFetcher struct {
	next Fetcher
	m    *Metrics
}

func (c *countingFetcher) Fetch(ctx context.Context, url string) (*fetch.Result, error) {
	res, err := c.next.Fetch(ctx, url)
	c.m.ObserveFetch(FetchOutcome(err))
	return res, err
}

// FetchOutcome classifies a fetch error into an outcome label.
func FetchOutcome(err error) string {
	var httpErr *fetch.HTTPError
	switch {
	case err == nil:
		return FetchOK
	case errors.Is(err, fetch.ErrInvalidScheme):
		return FetchInvalidScheme
	case errors.Is(err, horosafe.ErrSSRF):
		return FetchBlocked
	case errors.As(err, &httpErr):
		return FetchHTTPError
	default:
		return FetchNetworkError
	}
}

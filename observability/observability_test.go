package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hazyhaar/docxsvc/fetch"
	"github.com/hazyhaar/docxsvc/horosafe"
)

func TestMiddleware_CountsByRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"1", "2", "3"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/items/"+id, nil))
	}

	got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/items/{id}", "418"))
	if got != 3 {
		t.Errorf("requests: got %v, want 3", got)
	}
	if n := testutil.CollectAndCount(m.duration); n != 1 {
		t.Errorf("duration series: got %d, want 1", n)
	}
	if v := testutil.ToFloat64(m.inFlight); v != 0 {
		t.Errorf("in flight after requests: got %v", v)
	}
}

func TestMiddleware_ImplicitOK(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/healthz", nil))

	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/healthz", "200")); got != 1 {
		t.Errorf("got %v, want 1", got)
	}
}

func TestHandler_Exposition(t *testing.T) {
	m := New()
	m.ObserveOperation("read", ResultSuccess)
	m.ObserveFetch(FetchOK)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(w.Body)

	for _, want := range []string{
		`docxsvc_operations_total{operation="read",result="success"} 1`,
		`docxsvc_fetches_total{outcome="ok"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveOperation("merge", ResultError)
	m.ObserveFetch(FetchOK)

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("got %d", w.Code)
	}

	w = httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("nil handler: got %d, want 503", w.Code)
	}
}

func TestFetchOutcome(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, FetchOK},
		{fetch.ErrInvalidScheme, FetchInvalidScheme},
		{&fetch.NetworkError{Err: fmt.Errorf("x: %w", horosafe.ErrSSRF)}, FetchBlocked},
		{&fetch.HTTPError{StatusCode: 404}, FetchHTTPError},
		{&fetch.NetworkError{Err: errors.New("connection refused")}, FetchNetworkError},
	}
	for _, tc := range cases {
		if got := FetchOutcome(tc.err); got != tc.want {
			t.Errorf("FetchOutcome(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

type stubFetcher struct{ err error }

func (s stubFetcher) Fetch(ctx context.Context, url string) (*fetch.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &fetch.Result{URL: url, Body: []byte("x"), StatusCode: 200}, nil
}

func TestInstrumentFetcher(t *testing.T) {
	m := New()
	ok := m.InstrumentFetcher(stubFetcher{})
	bad := m.InstrumentFetcher(stubFetcher{err: &fetch.HTTPError{StatusCode: 500}})

	ok.Fetch(context.Background(), "https://a/x.docx")
	ok.Fetch(context.Background(), "https://a/y.docx")
	bad.Fetch(context.Background(), "https://a/z.docx")

	if got := testutil.ToFloat64(m.fetches.WithLabelValues(FetchOK)); got != 2 {
		t.Errorf("ok: got %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.fetches.WithLabelValues(FetchHTTPError)); got != 1 {
		t.Errorf("http_error: got %v, want 1", got)
	}

	var nilM *Metrics
	f := stubFetcher{}
	if nilM.InstrumentFetcher(f) != Fetcher(f) {
		t.Error("nil metrics should return the fetcher unchanged")
	}
}

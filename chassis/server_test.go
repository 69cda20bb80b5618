package chassis

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/docxsvc/observability"
)

type fakeService struct {
	tools int
}

func (f *fakeService) RegisterHTTP(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("pong")) })
	r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })
	r.Post("/echo", func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		w.Write(b)
	})
}

func (f *fakeService) RegisterMCP(srv *mcp.Server) {
	f.tools++
	srv.AddTool(&mcp.Tool{
		Name:        "ping",
		Description: "Reply pong.",
		InputSchema: map[string]any{"type": "object"},
	}, func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: "pong"}}}, nil
	})
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
	return w
}

func TestRegisterService(t *testing.T) {
	s := New(Config{})
	svc := &fakeService{}
	if err := s.RegisterService("fake", svc); err != nil {
		t.Fatal(err)
	}
	if err := s.RegisterService("fake", svc); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if svc.tools != 0 {
		t.Error("MCP tools registered although MCP is disabled")
	}
	if w := get(t, s.Handler(), "/mcp"); w.Code != http.StatusNotFound {
		t.Errorf("/mcp without MCP: got %d, want 404", w.Code)
	}

	w := get(t, s.Handler(), "/ping")
	if w.Body.String() != "pong" {
		t.Errorf("ping: %q", w.Body.String())
	}
	if w.Header().Get("X-Trace-ID") == "" {
		t.Error("shield stack not applied")
	}
}

func TestRecoverer(t *testing.T) {
	s := New(Config{})
	s.RegisterService("fake", &fakeService{})
	if w := get(t, s.Handler(), "/boom"); w.Code != http.StatusInternalServerError {
		t.Errorf("panic: got %d, want 500", w.Code)
	}
}

func TestMaxBody(t *testing.T) {
	s := New(Config{MaxBodyBytes: 8})
	s.RegisterService("fake", &fakeService{})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest("POST", "/echo", strings.NewReader("0123456789abcdef")))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("got %d, want 413", w.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	s := New(Config{Metrics: observability.New()})
	s.RegisterService("fake", &fakeService{})
	get(t, s.Handler(), "/ping")

	w := get(t, s.Handler(), "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `docxsvc_http_requests_total{method="GET",route="/ping",status_code="200"} 1`) {
		t.Errorf("request not counted:\n%s", w.Body.String())
	}

	if w := get(t, New(Config{}).Handler(), "/metrics"); w.Code != http.StatusNotFound {
		t.Errorf("metrics without collectors: got %d, want 404", w.Code)
	}
}

func TestMCPOverHTTP(t *testing.T) {
	// WHAT: tools registered through the chassis are reachable at /mcp.
	// WHY: the streamable HTTP endpoint is the only MCP transport served.
	s := New(Config{MCP: &mcp.Implementation{Name: "chassis-test", Version: "0.1.0"}})
	svc := &fakeService{}
	s.RegisterService("fake", svc)
	if svc.tools != 1 {
		t.Fatalf("tools registered %d times", svc.tools)
	}

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx := context.Background()
	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "0.1.0"}, nil)
	session, err := client.Connect(ctx, &mcp.StreamableClientTransport{Endpoint: ts.URL + "/mcp"}, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer session.Close()

	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "ping", Arguments: map[string]any{}})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if tc, ok := res.Content[0].(*mcp.TextContent); !ok || tc.Text != "pong" {
		t.Errorf("unexpected result: %+v", res.Content)
	}
}

func TestServe_GracefulShutdown(t *testing.T) {
	s := New(Config{ShutdownTimeout: 2 * time.Second})
	s.RegisterService("fake", &fakeService{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/ping")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "pong" {
		t.Errorf("body: %q", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestListenAndServe_BadAddr(t *testing.T) {
	s := New(Config{Addr: "256.0.0.1:99999"})
	if err := s.ListenAndServe(context.Background()); err == nil {
		t.Fatal("expected listen error")
	}
}

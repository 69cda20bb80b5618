package kit

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// tag returns a middleware that records its name around the call.
func tag(name string, log *[]string) Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			*log = append(*log, "+"+name)
			resp, err := next(ctx, req)
			*log = append(*log, "-"+name)
			return resp, err
		}
	}
}

func TestChain_FirstIsOutermost(t *testing.T) {
	var log []string
	base := func(_ context.Context, req any) (any, error) {
		log = append(log, "call")
		return req, nil
	}

	ep := Chain(tag("outer", &log), tag("inner", &log))(base)
	resp, err := ep(context.Background(), 42)
	if err != nil {
		t.Fatal(err)
	}
	if resp != 42 {
		t.Fatalf("response: got %v", resp)
	}
	if got := strings.Join(log, " "); got != "+outer +inner call -inner -outer" {
		t.Fatalf("order: %s", got)
	}
}

func TestChain_Empty(t *testing.T) {
	base := func(_ context.Context, req any) (any, error) { return req, nil }
	resp, _ := Chain()(base)(context.Background(), "same")
	if resp != "same" {
		t.Fatalf("got %v", resp)
	}
}

func TestChain_ErrorPassesThrough(t *testing.T) {
	errFail := errors.New("fail")
	var log []string
	base := func(context.Context, any) (any, error) { return nil, errFail }

	_, err := Chain(tag("m", &log))(base)(context.Background(), nil)
	if !errors.Is(err, errFail) {
		t.Fatalf("error: got %v, want %v", err, errFail)
	}
	if len(log) != 2 {
		t.Fatalf("middleware should still unwind, log=%v", log)
	}
}

func TestTransport(t *testing.T) {
	if v := GetTransport(context.Background()); v != "http" {
		t.Fatalf("default transport: got %q, want http", v)
	}
	if v := GetTransport(WithTransport(context.Background(), "mcp")); v != "mcp" {
		t.Fatalf("transport: got %q", v)
	}
}

package kit

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testMCPImpl = &mcp.Implementation{Name: "kit-test", Version: "0.1.0"}

type echoReq struct {
	Msg string `json:"msg"`
}

func session(t *testing.T, register func(*mcp.Server)) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testMCPImpl, nil)
	register(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	s, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func echoTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "echo",
		Description: "Echo a message.",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{"msg": map[string]any{"type": "string"}}},
	}
}

func TestRegisterMCPTool_JSONResult(t *testing.T) {
	var transport string
	s := session(t, func(srv *mcp.Server) {
		RegisterMCPTool(srv, echoTool(), func(ctx context.Context, req any) (any, error) {
			transport = GetTransport(ctx)
			return map[string]string{"msg": req.(*echoReq).Msg}, nil
		}, DecodeJSON[echoReq]())
	})

	res, err := s.CallTool(context.Background(), &mcp.CallToolParams{Name: "echo", Arguments: map[string]any{"msg": "hi"}})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if err := res.GetError(); err != nil {
		t.Fatalf("tool error: %v", err)
	}
	tc, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatal("expected TextContent")
	}
	if tc.Text != `{"msg":"hi"}` {
		t.Errorf("got %s", tc.Text)
	}
	if transport != "mcp" {
		t.Errorf("transport: got %q, want mcp", transport)
	}
}

func TestRegisterMCPTool_EndpointError(t *testing.T) {
	s := session(t, func(srv *mcp.Server) {
		RegisterMCPTool(srv, echoTool(), func(ctx context.Context, req any) (any, error) {
			return nil, errors.New("boom")
		}, DecodeJSON[echoReq]())
	})

	res, err := s.CallTool(context.Background(), &mcp.CallToolParams{Name: "echo", Arguments: map[string]any{"msg": "x"}})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected IsError result")
	}
	tc := res.Content[0].(*mcp.TextContent)
	if !strings.Contains(tc.Text, "boom") {
		t.Errorf("error text: %q", tc.Text)
	}
}

package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/docxsvc/docxread"
	"github.com/hazyhaar/docxsvc/idgen"
	"github.com/hazyhaar/docxsvc/kit"
	"github.com/hazyhaar/docxsvc/observability"
	"github.com/hazyhaar/docxsvc/shield"
)

// newCallID names tool calls that arrive without a trace ID (stdio, or an
// MCP session detached from its HTTP request).
var newCallID = idgen.Prefixed("call_", idgen.NanoID(12))

// RegisterMCP registers the docx tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerReadTool(srv)
	s.registerMergeTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	sch := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sch["required"] = required
	}
	return sch
}

// traced wraps decode so that every tool call runs under a trace ID.
func traced(decode kit.MCPDecoder) kit.MCPDecoder {
	return func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		res, err := decode(req)
		if err != nil {
			return nil, err
		}
		res.EnrichCtx = func(ctx context.Context) context.Context {
			if shield.GetTraceID(ctx) != "" {
				return ctx
			}
			return shield.WithTraceID(ctx, newCallID())
		}
		return res, nil
	}
}

// observe logs and counts every tool call under op.
func (s *Service) observe(op string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			result := observability.ResultSuccess
			if env, ok := resp.(docxread.Envelope); err != nil || (ok && !env.OK()) {
				result = observability.ResultError
			}
			s.metrics.ObserveOperation(op, result)
			s.logger.Info("service: tool call",
				"tool", "docx_"+op,
				"trace_id", shield.GetTraceID(ctx),
				"transport", kit.GetTransport(ctx),
				"result", result,
				"duration", time.Since(start),
				"error", err,
			)
			return resp, err
		}
	}
}

// --- read ---

type readReq struct {
	URL           string `json:"url,omitempty"`
	ContentBase64 string `json:"content_base64,omitempty"`
}

func (s *Service) registerReadTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "docx_read",
		Description: "Extract all text from a .docx document: body paragraphs first, then table cells row by row.",
		InputSchema: inputSchema(map[string]any{
			"url":            map[string]any{"type": "string", "description": "http(s) URL of the document"},
			"content_base64": map[string]any{"type": "string", "description": "Document bytes, base64-encoded"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*readReq)
		content, err := s.toolDocument(ctx, r.URL, r.ContentBase64, true)
		if err != nil {
			return nil, err
		}
		return s.reader.Read(content), nil
	}

	kit.RegisterMCPTool(srv, tool, kit.Chain(s.observe("read"))(endpoint), traced(kit.DecodeJSON[readReq]()))
}

// --- merge ---

type mergeReq struct {
	Context        json.RawMessage `json:"context"`
	TemplateURL    string          `json:"template_url,omitempty"`
	TemplateBase64 string          `json:"template_base64,omitempty"`
}

type mergeResp struct {
	Filename      string `json:"filename"`
	MimeType      string `json:"mime_type"`
	Size          int    `json:"size"`
	ContentBase64 string `json:"content_base64"`
}

func (s *Service) registerMergeTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "docx_merge",
		Description: "Render a JSON context into a .docx template and return the document base64-encoded. Without a template the bundled default is used.",
		InputSchema: inputSchema(map[string]any{
			"context":         map[string]any{"description": "Merge context: a JSON object, or a string holding one"},
			"template_url":    map[string]any{"type": "string", "description": "http(s) URL of the template"},
			"template_base64": map[string]any{"type": "string", "description": "Template bytes, base64-encoded"},
		}, []string{"context"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*mergeReq)
		contextJSON, err := unwrapContext(r.Context)
		if err != nil {
			return nil, err
		}
		var template []byte
		if r.TemplateURL != "" || r.TemplateBase64 != "" {
			template, err = s.toolDocument(ctx, r.TemplateURL, r.TemplateBase64, false)
			if err != nil {
				return nil, err
			}
		}
		out, err := s.merger.Merge(ctx, contextJSON, template)
		if err != nil {
			return nil, err
		}
		return mergeResp{
			Filename:      mergedFilename,
			MimeType:      docxMIME,
			Size:          len(out),
			ContentBase64: base64.StdEncoding.EncodeToString(out),
		}, nil
	}

	kit.RegisterMCPTool(srv, tool, kit.Chain(s.observe("merge"))(endpoint), traced(kit.DecodeJSON[mergeReq]()))
}

// toolDocument resolves document bytes from exactly one of url or b64.
// With checkType the fetched document must look like a .docx.
func (s *Service) toolDocument(ctx context.Context, url, b64 string, checkType bool) ([]byte, error) {
	switch {
	case url != "" && b64 != "":
		return nil, errors.New("give either a URL or base64 content, not both")
	case b64 != "":
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
		if err != nil {
			return nil, fmt.Errorf("invalid base64: %w", err)
		}
		if len(data) == 0 {
			return nil, errors.New(msgNoBytes)
		}
		return data, nil
	case url != "":
		res, err := s.fetch(ctx, url)
		if err != nil {
			return nil, errors.New(fetchMessage("Failed to fetch file", err))
		}
		if checkType && !looksLikeDocx(res.ContentType, url) {
			return nil, errors.New(msgNotDocx)
		}
		if len(res.Body) == 0 {
			return nil, errors.New(msgNoBytes)
		}
		return res.Body, nil
	default:
		return nil, errors.New("one of url or content_base64 is required")
	}
}

// unwrapContext accepts the context as a JSON object or as a JSON string
// holding the object text.
func unwrapContext(raw json.RawMessage) ([]byte, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, errors.New(msgNoContext)
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if strings.TrimSpace(s) == "" {
			return nil, errors.New(msgNoContext)
		}
		return []byte(s), nil
	}
	return raw, nil
}

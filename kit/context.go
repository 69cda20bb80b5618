package kit

import "context"

type contextKey string

// TransportKey marks which surface a call came in on.
const TransportKey contextKey = "kit_transport"

// WithTransport records the transport name ("http", "mcp") in ctx.
func WithTransport(ctx context.Context, transport string) context.Context {
	return context.WithValue(ctx, TransportKey, transport)
}

// GetTransport returns the transport recorded in ctx, "http" when unset.
func GetTransport(ctx context.Context) string {
	if v, ok := ctx.Value(TransportKey).(string); ok {
		return v
	}
	return "http"
}

// Package kit is the transport-neutral endpoint layer: an operation is an
// Endpoint, cross-cutting behaviour is a Middleware, and transports (MCP
// here) adapt endpoints to their own calling convention.
package kit

import "context"

// Endpoint is a single operation taking a decoded request.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware decorates an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares so that the first one is outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

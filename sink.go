package lambdaroute

import (
	"context"
)

// Sink receives payloads the router cannot classify or route, for example a
// web framework adapter serving API Gateway requests. The payload is passed
// verbatim.
type Sink interface {
	Handle(ctx context.Context, raw []byte) (Result, error)
}

// SinkFunc is a function adapter for Sink.
type SinkFunc func(ctx context.Context, raw []byte) (Result, error)

// Handle implements the Sink interface.
func (f SinkFunc) Handle(ctx context.Context, raw []byte) (Result, error) {
	return f(ctx, raw)
}

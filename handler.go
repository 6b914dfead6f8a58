package lambdaroute

import (
	"context"
)

// Handler processes a typed trigger event and returns a response.
//
// The type parameter E is the typed event, e.g. *SQSEvent[Order]. The router
// classifies the payload, decodes the user payload embedded in it and calls
// Handle exactly once per matched invocation.
//
// Example:
//
//	type OrderHandler struct {
//	    orders OrderStore
//	}
//
//	func (h *OrderHandler) Handle(ctx context.Context, e *lambdaroute.SQSEvent[Order]) (*lambdaroute.Response, error) {
//	    for _, rec := range e.Records {
//	        if rec.Err != nil {
//	            continue
//	        }
//	        if err := h.orders.Save(ctx, rec.Payload); err != nil {
//	            return nil, err
//	        }
//	    }
//	    return &lambdaroute.Response{StatusCode: 200}, nil
//	}
type Handler[E any] interface {
	Handle(ctx context.Context, event E) (*Response, error)
}

// HandlerFunc is a function adapter for Handler:
//
//	lambdaroute.RegisterSNS(r, "alerts", lambdaroute.HandlerFunc[*lambdaroute.SNSEvent[Alert]](
//	    func(ctx context.Context, e *lambdaroute.SNSEvent[Alert]) (*lambdaroute.Response, error) {
//	        return &lambdaroute.Response{StatusCode: 200}, nil
//	    },
//	))
type HandlerFunc[E any] func(ctx context.Context, event E) (*Response, error)

// Handle implements the Handler interface.
func (f HandlerFunc[E]) Handle(ctx context.Context, event E) (*Response, error) {
	return f(ctx, event)
}

// RawHandler processes the untouched envelope as a generic map and returns
// a response map. The returned map must carry a statusCode; everything else
// is passed back to the platform unchanged.
type RawHandler interface {
	HandleRaw(ctx context.Context, event map[string]any) (map[string]any, error)
}

// RawHandlerFunc is a function adapter for RawHandler.
type RawHandlerFunc func(ctx context.Context, event map[string]any) (map[string]any, error)

// HandleRaw implements the RawHandler interface.
func (f RawHandlerFunc) HandleRaw(ctx context.Context, event map[string]any) (map[string]any, error) {
	return f(ctx, event)
}

package lambdaroute

import (
	"context"
	"time"
)

// OnParseFunc is called after a payload is classified.
// Use this to enrich the context with logging fields or trace spans.
// The returned context is used for the rest of the invocation.
type OnParseFunc func(ctx context.Context, kind Kind, key string) context.Context

// OnDispatchFunc is called just before the handler executes.
type OnDispatchFunc func(ctx context.Context, kind Kind, key string)

// OnSuccessFunc is called after the handler returned a response that was
// normalized successfully.
type OnSuccessFunc func(ctx context.Context, kind Kind, key string, status int, duration time.Duration)

// OnFailureFunc is called after the handler failed, returned an invalid
// response or panicked.
type OnFailureFunc func(ctx context.Context, kind Kind, key string, err error, duration time.Duration)

// OnUnmatchedFunc is called when the payload matches no trigger shape.
type OnUnmatchedFunc func(ctx context.Context, raw []byte)

// OnNoHandlerFunc is called when no handler is registered for the routing key.
type OnNoHandlerFunc func(ctx context.Context, kind Kind, key string)

// OnDecodeErrorFunc is called once per payload that fails to decode.
type OnDecodeErrorFunc func(ctx context.Context, kind Kind, key string, err error)

// hooks holds all configured hook functions.
type hooks struct {
	onParse       []OnParseFunc
	onDispatch    []OnDispatchFunc
	onSuccess     []OnSuccessFunc
	onFailure     []OnFailureFunc
	onUnmatched   []OnUnmatchedFunc
	onNoHandler   []OnNoHandlerFunc
	onDecodeError []OnDecodeErrorFunc
}

// WithOnParse adds a hook called after a payload is classified.
// Multiple hooks are called in order, with context chaining through each.
//
// Example:
//
//	lambdaroute.WithOnParse(func(ctx context.Context, kind lambdaroute.Kind, key string) context.Context {
//	    return logx.WithCtx(ctx, slog.String("kind", kind.String()))
//	})
func WithOnParse(fn OnParseFunc) Option {
	return func(r *Router) {
		r.hooks.onParse = append(r.hooks.onParse, fn)
	}
}

// WithOnDispatch adds a hook called just before the handler executes.
// Multiple hooks are called in order.
func WithOnDispatch(fn OnDispatchFunc) Option {
	return func(r *Router) {
		r.hooks.onDispatch = append(r.hooks.onDispatch, fn)
	}
}

// WithOnSuccess adds a hook called after the handler completes successfully.
// Multiple hooks are called in order.
//
// Example:
//
//	lambdaroute.WithOnSuccess(func(ctx context.Context, kind lambdaroute.Kind, key string, status int, d time.Duration) {
//	    metrics.Timing("dispatch.success", d, "kind:"+kind.String())
//	})
func WithOnSuccess(fn OnSuccessFunc) Option {
	return func(r *Router) {
		r.hooks.onSuccess = append(r.hooks.onSuccess, fn)
	}
}

// WithOnFailure adds a hook called after the handler fails.
// Multiple hooks are called in order.
func WithOnFailure(fn OnFailureFunc) Option {
	return func(r *Router) {
		r.hooks.onFailure = append(r.hooks.onFailure, fn)
	}
}

// WithOnUnmatched adds a hook called when a payload matches no trigger shape.
// The hook runs before the payload is handed to the fallback sink.
func WithOnUnmatched(fn OnUnmatchedFunc) Option {
	return func(r *Router) {
		r.hooks.onUnmatched = append(r.hooks.onUnmatched, fn)
	}
}

// WithOnNoHandler adds a hook called when no handler is registered for the
// routing key. The hook runs before the payload is handed to the fallback
// sink.
func WithOnNoHandler(fn OnNoHandlerFunc) Option {
	return func(r *Router) {
		r.hooks.onNoHandler = append(r.hooks.onNoHandler, fn)
	}
}

// WithOnDecodeError adds a hook called for every payload that fails to
// decode, including records of a batch that is still dispatched.
func WithOnDecodeError(fn OnDecodeErrorFunc) Option {
	return func(r *Router) {
		r.hooks.onDecodeError = append(r.hooks.onDecodeError, fn)
	}
}

func (r *Router) callOnParse(ctx context.Context, kind Kind, key string) context.Context {
	for _, fn := range r.hooks.onParse {
		ctx = fn(ctx, kind, key)
	}
	return ctx
}

func (r *Router) callOnDispatch(ctx context.Context, kind Kind, key string) {
	for _, fn := range r.hooks.onDispatch {
		fn(ctx, kind, key)
	}
}

func (r *Router) callOnSuccess(ctx context.Context, kind Kind, key string, status int, d time.Duration) {
	for _, fn := range r.hooks.onSuccess {
		fn(ctx, kind, key, status, d)
	}
}

func (r *Router) callOnFailure(ctx context.Context, kind Kind, key string, err error, d time.Duration) {
	for _, fn := range r.hooks.onFailure {
		fn(ctx, kind, key, err, d)
	}
}

func (r *Router) callOnUnmatched(ctx context.Context, raw []byte) {
	for _, fn := range r.hooks.onUnmatched {
		fn(ctx, raw)
	}
}

func (r *Router) callOnNoHandler(ctx context.Context, kind Kind, key string) {
	for _, fn := range r.hooks.onNoHandler {
		fn(ctx, kind, key)
	}
}

func (r *Router) callOnDecodeError(ctx context.Context, kind Kind, key string, err error) {
	for _, fn := range r.hooks.onDecodeError {
		fn(ctx, kind, key, err)
	}
}

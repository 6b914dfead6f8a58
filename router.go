package lambdaroute

import (
	"context"
	"encoding/json"
	"maps"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/joomcode/errorx"
	"go.uber.org/zap"
)

// Router classifies Lambda payloads and dispatches them to registered
// handlers.
//
// Usage:
//  1. Create a router with New
//  2. Register handlers with RegisterSQS, RegisterSNS, RegisterEventBridge,
//     RegisterDirectInvocation, RegisterS3 or RegisterRaw
//  3. Serve it with lambda.Start(router), or call Dispatch directly
//
// Router is safe for concurrent use once dispatching has started. The
// registry is sealed on the first dispatch and later registrations fail
// with ErrRegistrySealed.
type Router struct {
	registry       *Registry
	sink           Sink
	logger         *zap.Logger
	defaultHeaders map[string]string
	hooks          hooks

	sealed atomic.Bool
}

// Option configures a Router.
type Option func(*Router)

// New creates a Router with the given options.
//
// Example:
//
//	r := lambdaroute.New(
//	    lambdaroute.WithLogger(logger),
//	    lambdaroute.WithSink(httpsink.New(engine)),
//	)
func New(opts ...Option) *Router {
	r := &Router{
		registry:       NewRegistry(),
		logger:         zap.NewNop(),
		defaultHeaders: DefaultHeaders,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithSink sets the fallback sink that receives payloads which match no
// trigger shape or have no registered handler. Without a sink those
// payloads get a 404 result.
func WithSink(s Sink) Option {
	return func(r *Router) {
		r.sink = s
	}
}

// WithLogger sets the logger. The default logger discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithDefaultHeaders replaces DefaultHeaders for this router.
func WithDefaultHeaders(h map[string]string) Option {
	return func(r *Router) {
		r.defaultHeaders = maps.Clone(h)
	}
}

// Lookup returns the handler entry registered for kind and key.
func (r *Router) Lookup(kind Kind, key string) (*Entry, error) {
	return r.registry.Lookup(kind, key)
}

// Entries returns all registered entries ordered by kind and key.
func (r *Router) Entries() []*Entry {
	return r.registry.Entries()
}

// Invoke implements the lambda.Handler interface from
// github.com/aws/aws-lambda-go/lambda, so a Router can be passed straight to
// lambda.Start. It never returns a dispatch error; failures are encoded in
// the returned response.
func (r *Router) Invoke(ctx context.Context, payload []byte) ([]byte, error) {
	return json.Marshal(r.Dispatch(ctx, payload))
}

// Dispatch classifies raw, routes it to its handler and returns the
// normalized response.
//
// The processing flow:
//  1. Classify the payload into exactly one trigger kind
//  2. Look up the handler by kind and routing key
//  3. Decode each embedded payload into the handler's payload type
//  4. Call the handler
//  5. Normalize its response
//
// Payloads that cannot be classified or routed go to the fallback sink, or
// get a 404 result. Decode failures get a 400 result, handler failures a
// 500 result. Dispatch never panics.
func (r *Router) Dispatch(ctx context.Context, raw []byte) (result Result) {
	r.sealed.Store(true)

	var (
		kind  Kind
		key   string
		start time.Time
	)
	defer func() {
		p := recover()
		if p == nil {
			return
		}
		err := ErrInternal.New("panic while dispatching: %v", p).
			WithProperty(PropertyKind, kind).
			WithProperty(PropertyKey, key)
		r.logger.Error("dispatch panicked",
			zap.String("kind", kind.String()),
			zap.String("key", key),
			zap.Any("panic", p),
			zap.Stack("stack"),
		)
		if !start.IsZero() {
			r.callOnFailure(ctx, kind, key, err, time.Since(start))
		}
		result = r.errorResult(kind, key, http.StatusInternalServerError, err)
	}()

	env, err := Classify(raw)
	if err != nil {
		r.logger.Warn("payload matched no trigger", zap.Error(err))
		r.callOnUnmatched(ctx, raw)
		return r.fallback(ctx, raw, "", "", err)
	}
	kind, key = env.Kind, env.Key

	ctx = r.callOnParse(ctx, kind, key)
	r.logger.Debug("classified payload",
		zap.String("kind", kind.String()),
		zap.String("key", key),
		zap.Int("payloads", len(env.Payloads)),
	)

	entry, err := r.registry.Lookup(kind, key)
	if err != nil {
		r.logger.Warn("no handler registered",
			zap.String("kind", kind.String()),
			zap.String("key", key),
		)
		r.callOnNoHandler(ctx, kind, key)
		return r.fallback(ctx, raw, kind, key, err)
	}

	r.callOnDispatch(ctx, kind, key)

	start = time.Now()
	result, err = r.invoke(ctx, entry, env)
	duration := time.Since(start)

	if errorx.IsOfType(err, ErrDecode) {
		return r.errorResult(kind, key, http.StatusBadRequest, err)
	}
	if err != nil {
		r.logger.Error("handler failed",
			zap.String("kind", kind.String()),
			zap.String("key", key),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		r.callOnFailure(ctx, kind, key, err, duration)
		return r.errorResult(kind, key, http.StatusInternalServerError, err)
	}

	r.callOnSuccess(ctx, kind, key, result.StatusCode, duration)
	return result
}

// invoke runs the entry's handler against env.
func (r *Router) invoke(ctx context.Context, e *Entry, env *Envelope) (Result, error) {
	if e.Raw {
		var event map[string]any
		if err := json.Unmarshal(env.Raw, &event); err != nil {
			return Result{}, ErrInternal.Wrap(err, "cannot decode envelope as a map")
		}
		out, err := e.invokeRaw.HandleRaw(ctx, event)
		if err != nil {
			return Result{}, ErrHandler.Wrap(err, "raw handler failed")
		}
		return NormalizeRaw(out)
	}

	payloads, err := r.decodePayloads(ctx, e, env)
	if err != nil {
		return Result{}, err
	}
	res, err := e.invoke(ctx, env, payloads)
	if errorx.IsOfType(err, ErrDecode) {
		return Result{}, err
	}
	if err != nil {
		return Result{}, ErrHandler.Wrap(err, "handler failed")
	}
	return normalize(env.Kind, res, r.defaultHeaders)
}

// decodePayloads decodes every payload location of env. A failure aborts
// the invocation for single-record kinds, or when every record of a batch
// failed; otherwise the failure is attached to its record.
func (r *Router) decodePayloads(ctx context.Context, e *Entry, env *Envelope) ([]decoded, error) {
	out := make([]decoded, len(env.Payloads))
	var (
		failed   int
		firstErr error
	)
	for i, p := range env.Payloads {
		v, err := Decode(p, e.Payload)
		if err != nil {
			err = withProperty(err, PropertyRecord, i)
			err = withProperty(err, PropertyKind, env.Kind)
			err = withProperty(err, PropertyKey, env.Key)
			r.logger.Warn("payload failed to decode",
				zap.String("kind", env.Kind.String()),
				zap.String("key", env.Key),
				zap.Int("record", i),
				zap.String("target", e.Payload.String()),
				zap.Error(err),
			)
			r.callOnDecodeError(ctx, env.Kind, env.Key, err)
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
		out[i] = decoded{value: v, err: err}
	}
	if failed > 0 && (!env.Kind.Batched() || failed == len(out)) {
		return nil, firstErr
	}
	return out, nil
}

// fallback hands raw to the sink, or builds a 404 result when there is none.
func (r *Router) fallback(ctx context.Context, raw []byte, kind Kind, key string, cause error) Result {
	if r.sink == nil {
		return r.errorResult(kind, key, http.StatusNotFound, cause)
	}
	res, err := r.sink.Handle(ctx, raw)
	if err != nil {
		err = ErrSink.Wrap(err, "fallback sink failed")
		r.logger.Error("fallback sink failed",
			zap.String("kind", kind.String()),
			zap.String("key", key),
			zap.Error(err),
		)
		return r.errorResult(kind, key, http.StatusBadGateway, err)
	}
	return res
}

// errorResult builds the response for a failed dispatch. The body names the
// error type so callers can tell bad input from handler bugs.
func (r *Router) errorResult(kind Kind, key string, status int, err error) Result {
	body := map[string]any{
		"error":   errorName(err),
		"message": errorMessage(err),
	}
	if kind != "" {
		body["kind"] = kind.String()
	}
	if key != "" {
		body["key"] = key
	}
	if rec, ok := errorx.ExtractProperty(err, PropertyRecord); ok {
		body["record"] = rec
	}
	encoded, encErr := encodeBody(kind, body)
	if encErr != nil {
		encoded = errorMessage(err)
	}
	return Result{
		StatusCode: status,
		Headers:    maps.Clone(r.defaultHeaders),
		Body:       encoded,
	}
}

func withProperty(err error, p errorx.Property, v any) error {
	if e := errorx.Cast(err); e != nil {
		return e.WithProperty(p, v)
	}
	return err
}

package lambdaroute

import (
	"context"
	"sort"

	"github.com/joomcode/errorx"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"
)

// invoker wraps a typed handler so handlers for different event types can
// share one registry.
type invoker func(ctx context.Context, env *Envelope, payloads []decoded) (*Response, error)

// Entry is one registered handler. Entries are created at registration time
// and never change afterwards.
type Entry struct {
	// Kind is the trigger kind the handler serves.
	Kind Kind

	// Key is the routing key the handler serves.
	Key string

	// Payload is the type embedded payloads are decoded into.
	Payload PayloadType

	// Raw is set when the handler works on generic maps instead of typed
	// events.
	Raw bool

	invoke    invoker
	invokeRaw RawHandler
}

// RegisterOption configures a registration.
type RegisterOption func(*Entry)

// WithSchema validates every payload against s before it is bound to the
// handler's payload type.
//
// Example:
//
//	schema, err := lambdaroute.CompileSchema("order.json", orderSchema)
//	if err != nil {
//	    return err
//	}
//	lambdaroute.RegisterSQS(r, "orders", h, lambdaroute.WithSchema(schema))
func WithSchema(s *jsonschema.Schema) RegisterOption {
	return func(e *Entry) {
		e.Payload = e.Payload.WithSchema(s)
	}
}

type route struct {
	kind Kind
	key  string
}

// Registry maps a kind and routing key to exactly one Entry.
//
// Registry is not safe for concurrent writes. Routers only write to it
// during warm-up and seal it on the first dispatch, after which concurrent
// reads are safe.
type Registry struct {
	entries map[route]*Entry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[route]*Entry)}
}

// Register adds e. It fails with ErrDuplicateRegistration if a handler is
// already registered for the same kind and key.
func (r *Registry) Register(e *Entry) error {
	if !e.Kind.valid() {
		return errorx.IllegalArgument.New("unknown trigger kind %q", e.Kind)
	}
	if e.Key == "" {
		return errorx.IllegalArgument.New("%s handler needs a routing key", e.Kind)
	}
	k := route{kind: e.Kind, key: e.Key}
	if _, ok := r.entries[k]; ok {
		return ErrDuplicateRegistration.New("a %s handler for %q is already registered", e.Kind, e.Key).
			WithProperty(PropertyKind, e.Kind).
			WithProperty(PropertyKey, e.Key)
	}
	r.entries[k] = e
	return nil
}

// Lookup returns the entry for kind and key, or an ErrNotFound error.
func (r *Registry) Lookup(kind Kind, key string) (*Entry, error) {
	e, ok := r.entries[route{kind: kind, key: key}]
	if !ok {
		return nil, ErrNotFound.New("no %s handler registered for %q", kind, key).
			WithProperty(PropertyKind, kind).
			WithProperty(PropertyKey, key)
	}
	return e, nil
}

// Entries returns all entries ordered by kind and key.
func (r *Registry) Entries() []*Entry {
	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Len returns the number of registered entries.
func (r *Registry) Len() int {
	return len(r.entries)
}

// register adds e to the router's registry unless dispatching has started.
func (r *Router) register(e *Entry, opts []RegisterOption) (*Entry, error) {
	for _, opt := range opts {
		opt(e)
	}
	if r.sealed.Load() {
		return nil, ErrRegistrySealed.New("cannot register %s handler for %q after dispatching started", e.Kind, e.Key).
			WithProperty(PropertyKind, e.Kind).
			WithProperty(PropertyKey, e.Key)
	}
	if err := r.registry.Register(e); err != nil {
		return nil, err
	}
	r.logger.Debug("registered handler",
		zap.String("kind", e.Kind.String()),
		zap.String("key", e.Key),
		zap.String("payload", e.Payload.String()),
		zap.Bool("raw", e.Raw),
	)
	return e, nil
}

// RegisterSQS registers h for messages read from the named queue. Message
// bodies are decoded into T.
//
// This is a package-level function (not a method) due to Go generics limitations:
// methods cannot have type parameters independent of the receiver.
//
// Example:
//
//	lambdaroute.RegisterSQS(r, "orders", &OrderHandler{orders: store})
func RegisterSQS[T any](r *Router, queue string, h Handler[*SQSEvent[T]], opts ...RegisterOption) (*Entry, error) {
	return r.register(&Entry{
		Kind:    KindSQS,
		Key:     queue,
		Payload: TypeOf[T](),
		invoke: func(ctx context.Context, env *Envelope, payloads []decoded) (*Response, error) {
			return h.Handle(ctx, newSQSEvent[T](env, payloads))
		},
	}, opts)
}

// RegisterSNS registers h for notifications published to the named topic.
// Messages are decoded into T.
func RegisterSNS[T any](r *Router, topic string, h Handler[*SNSEvent[T]], opts ...RegisterOption) (*Entry, error) {
	return r.register(&Entry{
		Kind:    KindSNS,
		Key:     topic,
		Payload: TypeOf[T](),
		invoke: func(ctx context.Context, env *Envelope, payloads []decoded) (*Response, error) {
			return h.Handle(ctx, newSNSEvent[T](env, payloads))
		},
	}, opts)
}

// RegisterEventBridge registers h for events whose first resource is the
// named resource, e.g. the rule name of a scheduled event. The detail is
// decoded into T.
func RegisterEventBridge[T any](r *Router, resource string, h Handler[*EventBridgeEvent[T]], opts ...RegisterOption) (*Entry, error) {
	return r.register(&Entry{
		Kind:    KindEventBridge,
		Key:     resource,
		Payload: TypeOf[T](),
		invoke: func(ctx context.Context, env *Envelope, payloads []decoded) (*Response, error) {
			ev, err := newEventBridgeEvent[T](env, payloads)
			if err != nil {
				return nil, err
			}
			return h.Handle(ctx, ev)
		},
	}, opts)
}

// RegisterDirectInvocation registers h for direct invocations carrying the
// named trigger. The body is decoded into T.
func RegisterDirectInvocation[T any](r *Router, trigger string, h Handler[*DirectInvocationEvent[T]], opts ...RegisterOption) (*Entry, error) {
	return r.register(&Entry{
		Kind:    KindDirectInvocation,
		Key:     trigger,
		Payload: TypeOf[T](),
		invoke: func(ctx context.Context, env *Envelope, payloads []decoded) (*Response, error) {
			ev, err := newDirectInvocationEvent[T](env, payloads)
			if err != nil {
				return nil, err
			}
			return h.Handle(ctx, ev)
		},
	}, opts)
}

// RegisterS3 registers h for S3 notifications with the given event name,
// e.g. "ObjectCreated:Put".
func RegisterS3(r *Router, eventName string, h Handler[*S3Event]) (*Entry, error) {
	return r.register(&Entry{
		Kind: KindS3,
		Key:  eventName,
		invoke: func(ctx context.Context, env *Envelope, _ []decoded) (*Response, error) {
			return h.Handle(ctx, newS3Event(env))
		},
	}, nil)
}

// RegisterRaw registers h in raw mode: it receives the whole envelope as a
// generic map and returns a generic response map.
//
// Example:
//
//	lambdaroute.RegisterRaw(r, lambdaroute.KindSNS, "audit", lambdaroute.RawHandlerFunc(
//	    func(ctx context.Context, event map[string]any) (map[string]any, error) {
//	        return map[string]any{"statusCode": 200}, nil
//	    },
//	))
func RegisterRaw(r *Router, kind Kind, key string, h RawHandler) (*Entry, error) {
	return r.register(&Entry{
		Kind:      kind,
		Key:       key,
		Raw:       true,
		invokeRaw: h,
	}, nil)
}

// Must panics if err is non-nil. Use it when wiring handlers at startup so a
// duplicate registration stops the process before it serves anything.
//
//	lambdaroute.Must(lambdaroute.RegisterSQS(r, "orders", h))
func Must(e *Entry, err error) *Entry {
	if err != nil {
		panic(err)
	}
	return e
}

// Package schemas loads JSON Schema documents for lambdaroute.WithSchema
// from Redis.
package schemas

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/joomcode/errorx"
	"github.com/redis/go-redis/v9"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/bjaus/lambdaroute"
)

var (
	Errors = errorx.NewNamespace("schemas")

	ErrSchemaMissing = Errors.NewType("missing", errorx.NotFound())
	ErrSchemaInvalid = Errors.NewType("invalid")
	ErrBackend       = Errors.NewType("backend")
)

// Getter is the subset of *redis.Client a RedisSource reads through.
type Getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisOptions configures NewRedisSource.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	Namespace string
	Timeout   time.Duration
}

// RedisSource resolves schema references to compiled schemas stored under
// "<namespace>:<ref>" keys. Compiled schemas are cached for the lifetime of
// the source.
type RedisSource struct {
	rdb       Getter
	namespace string
	timeout   time.Duration
	cache     sync.Map
}

// NewRedisSource connects to the Redis server described by o. The
// connection is established lazily on the first Load.
func NewRedisSource(o RedisOptions) *RedisSource {
	rdb := redis.NewClient(&redis.Options{
		Addr:         o.Addr,
		Password:     o.Password,
		DB:           o.DB,
		DialTimeout:  o.Timeout,
		ReadTimeout:  o.Timeout,
		WriteTimeout: o.Timeout,
	})
	return newSource(rdb, o.Namespace, o.Timeout)
}

func newSource(rdb Getter, namespace string, timeout time.Duration) *RedisSource {
	if strings.TrimSpace(namespace) == "" {
		namespace = "schema"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RedisSource{
		rdb:       rdb,
		namespace: namespace,
		timeout:   timeout,
	}
}

// Key returns the Redis key holding ref.
func (s *RedisSource) Key(ref string) string {
	return s.namespace + ":" + ref
}

// Load returns the compiled schema for ref.
func (s *RedisSource) Load(ctx context.Context, ref string) (*jsonschema.Schema, error) {
	if ref == "" {
		return nil, errorx.IllegalArgument.New("schema reference is empty")
	}
	key := s.Key(ref)
	if v, ok := s.cache.Load(key); ok {
		return v.(*jsonschema.Schema), nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc, err := s.rdb.Get(ctx, key).Bytes()
	switch {
	case err == redis.Nil:
		return nil, ErrSchemaMissing.New("schema %q not found in redis", key)
	case err != nil:
		return nil, ErrBackend.Wrap(err, "cannot read schema %q", key)
	case len(doc) == 0:
		return nil, ErrSchemaMissing.New("schema %q is empty", key)
	}

	schema, err := lambdaroute.CompileSchema(ref, doc)
	if err != nil {
		return nil, ErrSchemaInvalid.Wrap(err, "cannot compile schema %q", key)
	}
	actual, _ := s.cache.LoadOrStore(key, schema)
	return actual.(*jsonschema.Schema), nil
}

// Invalidate drops cached schemas. With no refs the whole cache is cleared.
func (s *RedisSource) Invalidate(refs ...string) {
	if len(refs) == 0 {
		s.cache.Range(func(k, _ any) bool {
			s.cache.Delete(k)
			return true
		})
		return
	}
	for _, ref := range refs {
		s.cache.Delete(s.Key(ref))
	}
}

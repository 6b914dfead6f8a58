// Package metrics exposes router activity as Prometheus metrics.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bjaus/lambdaroute"
)

// Outcome label values of the dispatch counter.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeNoRoute = "no_handler"
)

// Collector records router activity. Create one per registry with New and
// pass Options to lambdaroute.New.
type Collector struct {
	dispatched   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	unmatched    prometheus.Counter
	decodeErrors *prometheus.CounterVec
}

// New registers the router metrics with reg. Passing nil uses the default
// Prometheus registerer.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Collector{
		dispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lambdaroute",
			Name:      "dispatch_total",
			Help:      "Routed invocations by trigger kind, routing key and outcome.",
		}, []string{"kind", "key", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lambdaroute",
			Name:      "dispatch_duration_seconds",
			Help:      "Handler execution time by trigger kind and routing key.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind", "key"}),
		unmatched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lambdaroute",
			Name:      "unmatched_total",
			Help:      "Payloads that matched no trigger shape.",
		}),
		decodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lambdaroute",
			Name:      "decode_errors_total",
			Help:      "Embedded payloads that failed to decode.",
		}, []string{"kind", "key"}),
	}
}

// Options returns the router hooks that feed the collector.
func (c *Collector) Options() []lambdaroute.Option {
	return []lambdaroute.Option{
		lambdaroute.WithOnSuccess(func(_ context.Context, kind lambdaroute.Kind, key string, _ int, d time.Duration) {
			c.dispatched.WithLabelValues(kind.String(), key, OutcomeSuccess).Inc()
			c.duration.WithLabelValues(kind.String(), key).Observe(d.Seconds())
		}),
		lambdaroute.WithOnFailure(func(_ context.Context, kind lambdaroute.Kind, key string, _ error, d time.Duration) {
			c.dispatched.WithLabelValues(kind.String(), key, OutcomeFailure).Inc()
			c.duration.WithLabelValues(kind.String(), key).Observe(d.Seconds())
		}),
		lambdaroute.WithOnNoHandler(func(_ context.Context, kind lambdaroute.Kind, key string) {
			c.dispatched.WithLabelValues(kind.String(), key, OutcomeNoRoute).Inc()
		}),
		lambdaroute.WithOnUnmatched(func(context.Context, []byte) {
			c.unmatched.Inc()
		}),
		lambdaroute.WithOnDecodeError(func(_ context.Context, kind lambdaroute.Kind, key string, _ error) {
			c.decodeErrors.WithLabelValues(kind.String(), key).Inc()
		}),
	}
}

// Package kafkasink forwards payloads a lambdaroute.Router cannot route to a
// Kafka dead-letter topic.
package kafkasink

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/joomcode/errorx"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/bjaus/lambdaroute"
)

// Header names set on every forwarded message.
const (
	HeaderKind       = "lambdaroute-kind"
	HeaderKey        = "lambdaroute-key"
	HeaderReceivedAt = "lambdaroute-received-at"
)

// Producer is the subset of *kafka.Writer the sink needs.
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewWriter returns a writer for topic that waits for all in-sync replicas.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    10,
		RequiredAcks: kafka.RequireAll,
	}
}

// Sink writes each payload it receives to a Kafka topic and answers with
// 202 Accepted. Payloads that still classify carry their kind and routing
// key as headers and use the routing key as message key.
type Sink struct {
	producer Producer
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Sink.
type Option func(*Sink)

// WithLogger sets the logger. The default logger discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Sink) {
		if l != nil {
			s.logger = l
		}
	}
}

// New returns a Sink writing to p.
func New(p Producer, opts ...Option) *Sink {
	s := &Sink{
		producer: p,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle implements lambdaroute.Sink.
func (s *Sink) Handle(ctx context.Context, raw []byte) (lambdaroute.Result, error) {
	id := uuid.New()
	msg := kafka.Message{
		Key:   []byte(id.String()),
		Value: raw,
		Headers: []kafka.Header{
			{Key: HeaderReceivedAt, Value: []byte(s.now().UTC().Format(time.RFC3339Nano))},
		},
	}
	if env, err := lambdaroute.Classify(raw); err == nil {
		msg.Key = []byte(env.Key)
		msg.Headers = append(msg.Headers,
			kafka.Header{Key: HeaderKind, Value: []byte(env.Kind)},
			kafka.Header{Key: HeaderKey, Value: []byte(env.Key)},
		)
	}

	if err := s.producer.WriteMessages(ctx, msg); err != nil {
		return lambdaroute.Result{}, errorx.ExternalError.Wrap(err, "cannot forward payload %s to kafka", id)
	}
	s.logger.Info("forwarded payload to dead-letter topic",
		zap.String("id", id.String()),
		zap.String("message_key", string(msg.Key)),
		zap.Int("bytes", len(raw)),
	)

	body, _ := json.Marshal(map[string]string{"forwarded": id.String()})
	return lambdaroute.Result{
		StatusCode: http.StatusAccepted,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}, nil
}

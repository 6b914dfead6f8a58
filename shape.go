package lambdaroute

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
)

// Kind identifies the trigger that produced a payload.
type Kind string

const (
	KindDirectInvocation Kind = "direct_invocation"
	KindEventBridge      Kind = "event_bridge"
	KindSQS              Kind = "sqs"
	KindSNS              Kind = "sns"
	KindS3               Kind = "s3"
)

// Kinds lists every supported kind in classification order.
var Kinds = []Kind{KindSQS, KindSNS, KindS3, KindEventBridge, KindDirectInvocation}

func (k Kind) String() string { return string(k) }

// Batched reports whether the kind delivers a list of records. A decode
// failure in one record of a batched kind does not fail the whole invocation.
func (k Kind) Batched() bool {
	switch k {
	case KindSQS, KindSNS, KindS3:
		return true
	default:
		return false
	}
}

func (k Kind) valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Envelope is a payload that matched exactly one trigger shape.
type Envelope struct {
	// Kind is the matched trigger kind.
	Kind Kind

	// Key is the routing key: queue name, topic name, resource name,
	// event name or trigger name depending on Kind.
	Key string

	// Raw is the payload exactly as received.
	Raw json.RawMessage

	// Event is the parsed platform struct: *events.SQSEvent,
	// *events.SNSEvent, *events.S3Event, *events.CloudWatchEvent or
	// *DirectInvocationEnvelope.
	Event any

	// Payloads holds the raw JSON at each user payload location, one per
	// record for batched kinds. String values are kept quoted.
	Payloads []json.RawMessage
}

// DirectInvocationTimeLayout is the layout of a direct invocation time_stamp.
const DirectInvocationTimeLayout = "2006/01/02 15:04:05"

// DirectInvocationEnvelope is the wire shape of a direct invocation.
type DirectInvocationEnvelope struct {
	DirectInvocation DirectInvocation `json:"direct_invocation"`
	TimeStamp        string           `json:"time_stamp,omitempty"`
	Source           string           `json:"source,omitempty"`
}

// DirectInvocation is the detail block of a direct invocation.
type DirectInvocation struct {
	Trigger string          `json:"trigger"`
	Body    json.RawMessage `json:"body,omitempty"`
	Meta    string          `json:"meta,omitempty"`
}

// Time parses TimeStamp. A missing timestamp yields the zero time.
func (e *DirectInvocationEnvelope) Time() (time.Time, error) {
	if e.TimeStamp == "" {
		return time.Time{}, nil
	}
	return time.Parse(DirectInvocationTimeLayout, e.TimeStamp)
}

type shape struct {
	kind  Kind
	disc  Discriminator
	parse func(raw []byte) (*Envelope, error)
}

// shapes is checked in order. Record based shapes come first since their
// discriminating fields are the most specific; direct invocation only needs
// a trigger name and is checked last.
var shapes = []shape{
	{
		kind: KindSQS,
		disc: Every("Records", And(
			FieldEquals("eventSource", "aws:sqs"),
			HasString("eventSourceARN"),
			HasFields("body"),
		)),
		parse: parseSQS,
	},
	{
		kind: KindSNS,
		disc: Every("Records", And(
			FieldEquals("EventSource", "aws:sns"),
			HasString("Sns.TopicArn"),
			HasFields("Sns.Message"),
		)),
		parse: parseSNS,
	},
	{
		kind: KindS3,
		disc: Every("Records", And(
			FieldEquals("eventSource", "aws:s3"),
			HasString("eventName"),
			IsObject("s3"),
		)),
		parse: parseS3,
	},
	{
		kind: KindEventBridge,
		disc: And(
			HasString("source", "detail-type", "resources.0"),
			HasFields("detail"),
		),
		parse: parseEventBridge,
	},
	{
		kind:  KindDirectInvocation,
		disc:  HasString("direct_invocation.trigger"),
		parse: parseDirectInvocation,
	},
}

// Classify determines which trigger produced raw and parses it. Payloads
// that match no shape, or that match a shape but fail to parse, return an
// ErrUnmatched error.
func Classify(raw []byte) (*Envelope, error) {
	view, err := Inspect(raw)
	if err != nil {
		return nil, ErrUnmatched.Wrap(err, "payload is not a JSON document")
	}
	for _, s := range shapes {
		if !s.disc.Match(view) {
			continue
		}
		env, err := s.parse(raw)
		if err != nil {
			return nil, ErrUnmatched.Wrap(err, "payload has the %s shape but does not parse", s.kind).
				WithProperty(PropertyKind, s.kind)
		}
		return env, nil
	}
	return nil, ErrUnmatched.New("payload matches no known trigger shape")
}

// Matches reports whether raw has the structural shape of kind. It never
// parses the payload.
func Matches(kind Kind, raw []byte) bool {
	view, err := Inspect(raw)
	if err != nil {
		return false
	}
	for _, s := range shapes {
		if s.kind == kind {
			return s.disc.Match(view)
		}
	}
	return false
}

func parseSQS(raw []byte) (*Envelope, error) {
	var ev events.SQSEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, err
	}
	payloads := make([]json.RawMessage, len(ev.Records))
	for i, rec := range ev.Records {
		payloads[i] = quote(rec.Body)
	}
	return &Envelope{
		Kind:     KindSQS,
		Key:      lastSegment(ev.Records[0].EventSourceARN, ":"),
		Raw:      raw,
		Event:    &ev,
		Payloads: payloads,
	}, nil
}

func parseSNS(raw []byte) (*Envelope, error) {
	var ev events.SNSEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, err
	}
	payloads := make([]json.RawMessage, len(ev.Records))
	for i, rec := range ev.Records {
		payloads[i] = quote(rec.SNS.Message)
	}
	return &Envelope{
		Kind:     KindSNS,
		Key:      lastSegment(ev.Records[0].SNS.TopicArn, ":"),
		Raw:      raw,
		Event:    &ev,
		Payloads: payloads,
	}, nil
}

func parseS3(raw []byte) (*Envelope, error) {
	var ev events.S3Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, err
	}
	return &Envelope{
		Kind:  KindS3,
		Key:   ev.Records[0].EventName,
		Raw:   raw,
		Event: &ev,
	}, nil
}

func parseEventBridge(raw []byte) (*Envelope, error) {
	var ev events.CloudWatchEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(ev.ID); err != nil {
		return nil, err
	}
	return &Envelope{
		Kind:     KindEventBridge,
		Key:      lastSegment(ev.Resources[0], "/"),
		Raw:      raw,
		Event:    &ev,
		Payloads: []json.RawMessage{ev.Detail},
	}, nil
}

func parseDirectInvocation(raw []byte) (*Envelope, error) {
	var ev DirectInvocationEnvelope
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, err
	}
	if _, err := ev.Time(); err != nil {
		return nil, err
	}
	return &Envelope{
		Kind:     KindDirectInvocation,
		Key:      ev.DirectInvocation.Trigger,
		Raw:      raw,
		Event:    &ev,
		Payloads: []json.RawMessage{ev.DirectInvocation.Body},
	}, nil
}

// lastSegment returns the part of s after the last sep, or s itself.
func lastSegment(s, sep string) string {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[i+len(sep):]
	}
	return s
}

func quote(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

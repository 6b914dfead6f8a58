package lambdaroute

import (
	"encoding/json"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
)

// SQSEvent is an SQS batch whose message bodies were decoded into T.
type SQSEvent[T any] struct {
	Records []SQSRecord[T] `json:"Records"`
}

// SQSRecord is one SQS message. Payload holds the decoded body; Err is set
// instead when the body could not be decoded.
type SQSRecord[T any] struct {
	events.SQSMessage
	Payload T     `json:"payload"`
	Err     error `json:"-"`
}

// QueueName returns the name of the queue the batch was read from.
func (e *SQSEvent[T]) QueueName() string {
	if len(e.Records) == 0 {
		return ""
	}
	return lastSegment(e.Records[0].EventSourceARN, ":")
}

// SNSEvent is an SNS notification batch whose messages were decoded into T.
type SNSEvent[T any] struct {
	Records []SNSRecord[T] `json:"Records"`
}

// SNSRecord is one SNS record. Payload holds the decoded message; Err is set
// instead when the message could not be decoded.
type SNSRecord[T any] struct {
	events.SNSEventRecord
	Payload T     `json:"payload"`
	Err     error `json:"-"`
}

// TopicName returns the name of the topic the notification was published to.
func (e *SNSEvent[T]) TopicName() string {
	if len(e.Records) == 0 {
		return ""
	}
	return lastSegment(e.Records[0].SNS.TopicArn, ":")
}

// EventBridgeEvent is an EventBridge event whose detail was decoded into T.
type EventBridgeEvent[T any] struct {
	events.CloudWatchEvent
	EventID uuid.UUID `json:"-"`
	Payload T         `json:"payload"`
}

// ResourceName returns the last path segment of the first resource ARN.
func (e *EventBridgeEvent[T]) ResourceName() string {
	if len(e.Resources) == 0 {
		return ""
	}
	return lastSegment(e.Resources[0], "/")
}

// DirectInvocationEvent is a direct invocation whose body was decoded into T.
type DirectInvocationEvent[T any] struct {
	Trigger   string          `json:"trigger"`
	Meta      string          `json:"meta,omitempty"`
	Source    string          `json:"source,omitempty"`
	TimeStamp time.Time       `json:"time_stamp"`
	Body      json.RawMessage `json:"body,omitempty"`
	Payload   T               `json:"payload"`
}

// S3Event is an S3 notification batch. S3 records carry no user payload.
type S3Event struct {
	events.S3Event
}

// EventName returns the event name of the first record.
func (e *S3Event) EventName() string {
	if len(e.Records) == 0 {
		return ""
	}
	return e.Records[0].EventName
}

// decoded is the outcome of decoding one payload location.
type decoded struct {
	value any
	err   error
}

func payloadAs[T any](d decoded) (T, error) {
	var zero T
	if d.err != nil {
		return zero, d.err
	}
	if d.value == nil {
		return zero, nil
	}
	v, ok := d.value.(T)
	if !ok {
		return zero, ErrDecode.New("decoded payload has type %T", d.value).
			WithProperty(PropertyTarget, TypeOf[T]().String())
	}
	return v, nil
}

func newSQSEvent[T any](env *Envelope, payloads []decoded) *SQSEvent[T] {
	src := env.Event.(*events.SQSEvent)
	out := &SQSEvent[T]{Records: make([]SQSRecord[T], len(src.Records))}
	for i, rec := range src.Records {
		out.Records[i].SQSMessage = rec
		out.Records[i].Payload, out.Records[i].Err = payloadAs[T](payloads[i])
	}
	return out
}

func newSNSEvent[T any](env *Envelope, payloads []decoded) *SNSEvent[T] {
	src := env.Event.(*events.SNSEvent)
	out := &SNSEvent[T]{Records: make([]SNSRecord[T], len(src.Records))}
	for i, rec := range src.Records {
		out.Records[i].SNSEventRecord = rec
		out.Records[i].Payload, out.Records[i].Err = payloadAs[T](payloads[i])
	}
	return out
}

func newEventBridgeEvent[T any](env *Envelope, payloads []decoded) (*EventBridgeEvent[T], error) {
	src := env.Event.(*events.CloudWatchEvent)
	out := &EventBridgeEvent[T]{CloudWatchEvent: *src}
	// Classify already rejected events with a malformed id.
	out.EventID, _ = uuid.Parse(src.ID)
	var err error
	out.Payload, err = payloadAs[T](payloads[0])
	return out, err
}

func newDirectInvocationEvent[T any](env *Envelope, payloads []decoded) (*DirectInvocationEvent[T], error) {
	src := env.Event.(*DirectInvocationEnvelope)
	ts, _ := src.Time()
	out := &DirectInvocationEvent[T]{
		Trigger:   src.DirectInvocation.Trigger,
		Meta:      src.DirectInvocation.Meta,
		Source:    src.Source,
		TimeStamp: ts,
		Body:      src.DirectInvocation.Body,
	}
	var err error
	out.Payload, err = payloadAs[T](payloads[0])
	return out, err
}

func newS3Event(env *Envelope) *S3Event {
	return &S3Event{S3Event: *env.Event.(*events.S3Event)}
}

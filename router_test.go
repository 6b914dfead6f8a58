package lambdaroute

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joomcode/errorx"
)

type recordingHandler[E any] struct {
	mu     sync.Mutex
	calls  int
	event  E
	res    *Response
	err    error
	panics bool
}

func (h *recordingHandler[E]) Handle(ctx context.Context, e E) (*Response, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	h.event = e
	if h.panics {
		panic("boom")
	}
	if h.res == nil && h.err == nil {
		return &Response{StatusCode: http.StatusOK, Body: map[string]any{"ok": true}}, nil
	}
	return h.res, h.err
}

func errorBody(t *testing.T, res Result) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal([]byte(res.BodyString()), &body); err != nil {
		t.Fatalf("body %q is not JSON: %v", res.BodyString(), err)
	}
	return body
}

func TestRouter_Dispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("sqs round trip", func(t *testing.T) {
		r := New()
		h := &recordingHandler[*SQSEvent[thing]]{}
		Must(RegisterSQS(r, "MyQueue", h))

		res := r.Dispatch(ctx, fixture(t, "sqs.json"))

		if res.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d (%v)", res.StatusCode, http.StatusOK, res.Body)
		}
		if res.Body != `{"ok":true}` {
			t.Errorf("body = %v, want serialized JSON", res.Body)
		}
		if h.calls != 1 {
			t.Fatalf("handler called %d times, want 1", h.calls)
		}
		if got := h.event.QueueName(); got != "MyQueue" {
			t.Errorf("QueueName() = %q, want %q", got, "MyQueue")
		}
		if len(h.event.Records) != 2 {
			t.Fatalf("records = %d, want 2", len(h.event.Records))
		}
		for i, want := range []string{"x", "y"} {
			rec := h.event.Records[i]
			if rec.Err != nil {
				t.Errorf("record %d: unexpected error: %v", i, rec.Err)
			}
			if rec.Payload.Thing != want {
				t.Errorf("record %d: payload = %q, want %q", i, rec.Payload.Thing, want)
			}
		}
		if h.event.Records[0].MessageId != "059f36b4-87a3-44ab-83d2-661975830a7d" {
			t.Errorf("message id = %q", h.event.Records[0].MessageId)
		}
	})

	t.Run("sns round trip", func(t *testing.T) {
		type alert struct {
			Severity string `json:"severity"`
			Message  string `json:"message"`
		}
		r := New()
		h := &recordingHandler[*SNSEvent[alert]]{}
		Must(RegisterSNS(r, "alerts", h))

		res := r.Dispatch(ctx, fixture(t, "sns.json"))

		if res.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d (%v)", res.StatusCode, http.StatusOK, res.Body)
		}
		if got := h.event.TopicName(); got != "alerts" {
			t.Errorf("TopicName() = %q, want %q", got, "alerts")
		}
		if got := h.event.Records[0].Payload; got.Severity != "high" || got.Message != "disk full" {
			t.Errorf("payload = %+v", got)
		}
	})

	t.Run("event bridge round trip", func(t *testing.T) {
		r := New()
		h := &recordingHandler[*EventBridgeEvent[thing]]{}
		Must(RegisterEventBridge(r, "my-rule", h))

		res := r.Dispatch(ctx, fixture(t, "eventbridge.json"))

		if res.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d (%v)", res.StatusCode, http.StatusOK, res.Body)
		}
		if got := h.event.EventID.String(); got != "89d1a02d-5ec7-412e-82f5-13505f849b41" {
			t.Errorf("EventID = %q", got)
		}
		if got := h.event.ResourceName(); got != "my-rule" {
			t.Errorf("ResourceName() = %q, want %q", got, "my-rule")
		}
		if h.event.Payload.Thing != "x" {
			t.Errorf("payload = %+v", h.event.Payload)
		}
		if h.event.DetailType != "Scheduled Event" {
			t.Errorf("DetailType = %q", h.event.DetailType)
		}
	})

	t.Run("direct invocation keeps structured body", func(t *testing.T) {
		r := New()
		h := &recordingHandler[*DirectInvocationEvent[thing]]{
			res: &Response{StatusCode: http.StatusOK, Body: map[string]any{"report": "ready"}},
		}
		Must(RegisterDirectInvocation(r, "generate-report", h))

		res := r.Dispatch(ctx, fixture(t, "direct_invocation.json"))

		if res.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d (%v)", res.StatusCode, http.StatusOK, res.Body)
		}
		body, ok := res.Body.(map[string]any)
		if !ok || body["report"] != "ready" {
			t.Errorf("body = %#v, want structured map", res.Body)
		}
		ev := h.event
		if ev.Trigger != "generate-report" || ev.Meta != "nightly" || ev.Source != "scheduler" {
			t.Errorf("event = %+v", ev)
		}
		if !ev.TimeStamp.Equal(time.Date(2024, 2, 18, 22, 0, 0, 0, time.UTC)) {
			t.Errorf("TimeStamp = %v", ev.TimeStamp)
		}
		if ev.Payload.Thing != "x" {
			t.Errorf("payload = %+v", ev.Payload)
		}
	})

	t.Run("s3 round trip", func(t *testing.T) {
		r := New()
		h := &recordingHandler[*S3Event]{}
		Must(RegisterS3(r, "ObjectCreated:Put", h))

		res := r.Dispatch(ctx, fixture(t, "s3.json"))

		if res.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d (%v)", res.StatusCode, http.StatusOK, res.Body)
		}
		if got := h.event.EventName(); got != "ObjectCreated:Put" {
			t.Errorf("EventName() = %q", got)
		}
		if got := h.event.Records[0].S3.Bucket.Name; got != "uploads" {
			t.Errorf("bucket = %q, want %q", got, "uploads")
		}
	})

	t.Run("untyped payloads", func(t *testing.T) {
		r := New()
		h := &recordingHandler[*SQSEvent[any]]{}
		Must(RegisterSQS(r, "MyQueue", h))

		r.Dispatch(ctx, fixture(t, "sqs.json"))

		got, ok := h.event.Records[0].Payload.(map[string]any)
		if !ok || got["thing"] != "x" {
			t.Errorf("payload = %#v, want map", h.event.Records[0].Payload)
		}
	})
}

func TestRouter_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("no handler without sink is 404", func(t *testing.T) {
		r := New()

		res := r.Dispatch(ctx, fixture(t, "sqs.json"))

		if res.StatusCode != http.StatusNotFound {
			t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
		}
		body := errorBody(t, res)
		if body["error"] != "not_found" || body["kind"] != "sqs" || body["key"] != "MyQueue" {
			t.Errorf("body = %v", body)
		}
	})

	t.Run("unmatched without sink is 404", func(t *testing.T) {
		r := New()

		res := r.Dispatch(ctx, []byte(`{}`))

		if res.StatusCode != http.StatusNotFound {
			t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
		}
		body := errorBody(t, res)
		if body["error"] != "unmatched" {
			t.Errorf("error = %v, want unmatched", body["error"])
		}
		if _, ok := body["kind"]; ok {
			t.Error("unmatched result should carry no kind")
		}
	})

	t.Run("invalid JSON is unmatched", func(t *testing.T) {
		res := New().Dispatch(ctx, []byte(`not json`))

		if res.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
		}
	})

	t.Run("sink receives raw payload", func(t *testing.T) {
		var got [][]byte
		sink := SinkFunc(func(ctx context.Context, raw []byte) (Result, error) {
			got = append(got, raw)
			return Result{StatusCode: http.StatusTeapot, Body: "sink"}, nil
		})
		r := New(WithSink(sink))

		unmatched := fixture(t, "apigw_v1.json")
		noHandler := fixture(t, "sqs.json")
		res1 := r.Dispatch(ctx, unmatched)
		res2 := r.Dispatch(ctx, noHandler)

		if res1.StatusCode != http.StatusTeapot || res2.StatusCode != http.StatusTeapot {
			t.Errorf("statuses = %d, %d, want sink result", res1.StatusCode, res2.StatusCode)
		}
		if len(got) != 2 || string(got[0]) != string(unmatched) || string(got[1]) != string(noHandler) {
			t.Error("sink should receive payloads verbatim")
		}
	})

	t.Run("sink error is 502", func(t *testing.T) {
		sink := SinkFunc(func(ctx context.Context, raw []byte) (Result, error) {
			return Result{}, errors.New("upstream down")
		})
		r := New(WithSink(sink))

		res := r.Dispatch(ctx, []byte(`{}`))

		if res.StatusCode != http.StatusBadGateway {
			t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadGateway)
		}
		body := errorBody(t, res)
		if body["error"] != "sink" || !strings.Contains(body["message"].(string), "upstream down") {
			t.Errorf("body = %v", body)
		}
	})

	t.Run("partial batch still dispatches", func(t *testing.T) {
		var decodeErrors int
		r := New(WithOnDecodeError(func(ctx context.Context, kind Kind, key string, err error) {
			decodeErrors++
		}))
		h := &recordingHandler[*SQSEvent[thing]]{}
		Must(RegisterSQS(r, "MyQueue", h))

		res := r.Dispatch(ctx, fixture(t, "sqs_partial.json"))

		if res.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d (%v)", res.StatusCode, http.StatusOK, res.Body)
		}
		if h.calls != 1 {
			t.Fatalf("handler called %d times, want 1", h.calls)
		}
		if h.event.Records[0].Err != nil || h.event.Records[0].Payload.Thing != "x" {
			t.Errorf("record 0 = %+v", h.event.Records[0])
		}
		if !errorx.IsOfType(h.event.Records[1].Err, ErrDecode) {
			t.Errorf("record 1 error = %v, want decode error", h.event.Records[1].Err)
		}
		if rec, _ := errorx.ExtractProperty(h.event.Records[1].Err, PropertyRecord); rec != 1 {
			t.Errorf("record property = %v, want 1", rec)
		}
		if decodeErrors != 1 {
			t.Errorf("decode error hook called %d times, want 1", decodeErrors)
		}
	})

	t.Run("batch where every record fails is 400", func(t *testing.T) {
		r := New()
		h := &recordingHandler[*SQSEvent[thing]]{}
		Must(RegisterSQS(r, "MyQueue", h))

		res := r.Dispatch(ctx, fixture(t, "sqs_bad.json"))

		if res.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
		}
		if h.calls != 0 {
			t.Error("handler should not be called")
		}
		body := errorBody(t, res)
		if body["error"] != "decode" || body["record"] != float64(0) {
			t.Errorf("body = %v", body)
		}
	})

	t.Run("single payload decode failure is 400", func(t *testing.T) {
		r := New()
		h := &recordingHandler[*DirectInvocationEvent[checkedThing]]{}
		Must(RegisterDirectInvocation(r, "generate-report", h))

		raw := []byte(`{"direct_invocation": {"trigger": "generate-report", "body": {"thing": ""}}}`)
		res := r.Dispatch(ctx, raw)

		if res.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
		}
		if h.calls != 0 {
			t.Error("handler should not be called")
		}
		body, ok := res.Body.(map[string]any)
		if !ok || body["error"] != "decode" {
			t.Errorf("body = %#v, want structured decode error", res.Body)
		}
	})

	t.Run("handler error is 500", func(t *testing.T) {
		r := New()
		h := &recordingHandler[*SQSEvent[thing]]{err: errors.New("database unavailable")}
		Must(RegisterSQS(r, "MyQueue", h))

		res := r.Dispatch(ctx, fixture(t, "sqs.json"))

		if res.StatusCode != http.StatusInternalServerError {
			t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusInternalServerError)
		}
		body := errorBody(t, res)
		if body["error"] != "handler" || !strings.Contains(body["message"].(string), "database unavailable") {
			t.Errorf("body = %v", body)
		}
	})

	t.Run("invalid handler result is 500", func(t *testing.T) {
		r := New()
		h := &recordingHandler[*SQSEvent[thing]]{res: &Response{Body: "no status"}}
		Must(RegisterSQS(r, "MyQueue", h))

		res := r.Dispatch(ctx, fixture(t, "sqs.json"))

		if res.StatusCode != http.StatusInternalServerError {
			t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusInternalServerError)
		}
		if body := errorBody(t, res); body["error"] != "invalid_handler_result" {
			t.Errorf("error = %v, want invalid_handler_result", body["error"])
		}
	})

	t.Run("handler panic is recovered", func(t *testing.T) {
		var failures int
		r := New(WithOnFailure(func(ctx context.Context, kind Kind, key string, err error, d time.Duration) {
			failures++
		}))
		h := &recordingHandler[*SQSEvent[thing]]{panics: true}
		Must(RegisterSQS(r, "MyQueue", h))

		res := r.Dispatch(ctx, fixture(t, "sqs.json"))

		if res.StatusCode != http.StatusInternalServerError {
			t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusInternalServerError)
		}
		if body := errorBody(t, res); body["error"] != "internal" {
			t.Errorf("error = %v, want internal", body["error"])
		}
		if failures != 1 {
			t.Errorf("failure hook called %d times, want 1", failures)
		}
	})
}

func TestRouter_RawMode(t *testing.T) {
	ctx := context.Background()

	t.Run("passes envelope and response through", func(t *testing.T) {
		var got map[string]any
		r := New()
		Must(RegisterRaw(r, KindSNS, "alerts", RawHandlerFunc(func(ctx context.Context, event map[string]any) (map[string]any, error) {
			got = event
			return map[string]any{"statusCode": "202", "custom": []any{"a"}}, nil
		})))

		out, err := r.Invoke(ctx, fixture(t, "sns.json"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, ok := got["Records"].([]any); !ok {
			t.Errorf("handler event = %v, want Records list", got)
		}
		if string(out) != `{"custom":["a"],"statusCode":"202"}` {
			t.Errorf("output = %s", out)
		}
	})

	t.Run("missing status code is 500", func(t *testing.T) {
		r := New()
		Must(RegisterRaw(r, KindSNS, "alerts", RawHandlerFunc(func(ctx context.Context, event map[string]any) (map[string]any, error) {
			return map[string]any{"body": "x"}, nil
		})))

		res := r.Dispatch(ctx, fixture(t, "sns.json"))

		if res.StatusCode != http.StatusInternalServerError {
			t.Errorf("status = %d, want %d", res.StatusCode, http.StatusInternalServerError)
		}
	})

	t.Run("handler error is 500", func(t *testing.T) {
		r := New()
		Must(RegisterRaw(r, KindSNS, "alerts", RawHandlerFunc(func(ctx context.Context, event map[string]any) (map[string]any, error) {
			return nil, errors.New("nope")
		})))

		res := r.Dispatch(ctx, fixture(t, "sns.json"))

		if body := errorBody(t, res); body["error"] != "handler" {
			t.Errorf("error = %v, want handler", body["error"])
		}
	})
}

func TestRouter_Invoke(t *testing.T) {
	r := New(WithDefaultHeaders(map[string]string{"Content-Type": "text/plain"}))
	Must(RegisterSQS(r, "MyQueue", HandlerFunc[*SQSEvent[thing]](func(ctx context.Context, e *SQSEvent[thing]) (*Response, error) {
		return &Response{StatusCode: http.StatusCreated, Body: "created"}, nil
	})))

	out, err := r.Invoke(context.Background(), fixture(t, "sqs.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if got["statusCode"] != float64(http.StatusCreated) || got["body"] != "created" || got["isBase64Encoded"] != false {
		t.Errorf("output = %s", out)
	}
	headers, _ := got["headers"].(map[string]any)
	if headers["Content-Type"] != "text/plain" {
		t.Errorf("headers = %v, want router defaults", headers)
	}
}

func TestRouter_Lookup(t *testing.T) {
	r := New()
	Must(RegisterSQS(r, "MyQueue", &recordingHandler[*SQSEvent[thing]]{}))

	if _, err := r.Lookup(KindSQS, "MyQueue"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := r.Lookup(KindSNS, "MyQueue"); !errorx.IsOfType(err, ErrNotFound) {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestRouter_ConcurrentDispatch(t *testing.T) {
	r := New()
	h := &recordingHandler[*SQSEvent[thing]]{}
	Must(RegisterSQS(r, "MyQueue", h))
	raw := fixture(t, "sqs.json")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if res := r.Dispatch(context.Background(), raw); res.StatusCode != http.StatusOK {
				t.Errorf("status = %d, want %d", res.StatusCode, http.StatusOK)
			}
		}()
	}
	wg.Wait()

	if h.calls != 20 {
		t.Errorf("handler called %d times, want 20", h.calls)
	}
}

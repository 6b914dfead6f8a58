package lambdaroute

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"strconv"
)

// DefaultHeaders are attached to typed responses that set no headers.
var DefaultHeaders = map[string]string{
	"Access-Control-Allow-Origin":      "*",
	"Access-Control-Allow-Headers":     "*",
	"Access-Control-Allow-Credentials": "true",
	"Content-Type":                     "application/json",
	"X-Requested-With":                 "*",
}

// Response is what a typed handler returns.
type Response struct {
	StatusCode      int
	Body            any
	Headers         map[string]string
	IsBase64Encoded bool
}

// Result is the normalized response returned to the platform. It marshals
// to {"statusCode", "headers", "body", "isBase64Encoded"}; results of raw
// handlers marshal to the handler's map verbatim.
type Result struct {
	StatusCode      int
	Headers         map[string]string
	Body            any
	IsBase64Encoded bool

	raw map[string]any
}

// Raw returns the map a raw handler returned, or nil for typed results.
func (r Result) Raw() map[string]any { return r.raw }

// BodyString returns the body when it is a string.
func (r Result) BodyString() string {
	s, _ := r.Body.(string)
	return s
}

type resultJSON struct {
	StatusCode      int               `json:"statusCode"`
	Headers         map[string]string `json:"headers,omitempty"`
	Body            any               `json:"body"`
	IsBase64Encoded bool              `json:"isBase64Encoded"`
}

// MarshalJSON implements json.Marshaler.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.raw != nil {
		return json.Marshal(r.raw)
	}
	return json.Marshal(resultJSON{
		StatusCode:      r.StatusCode,
		Headers:         r.Headers,
		Body:            r.Body,
		IsBase64Encoded: r.IsBase64Encoded,
	})
}

// Normalize converts a typed handler response into a Result for kind.
// Direct invocations keep structured bodies; every other kind gets the body
// as a string. Responses without a status code are rejected with
// ErrInvalidHandlerResult.
func Normalize(kind Kind, res *Response) (Result, error) {
	return normalize(kind, res, DefaultHeaders)
}

func normalize(kind Kind, res *Response, defaultHeaders map[string]string) (Result, error) {
	if res == nil {
		return Result{}, ErrInvalidHandlerResult.New("handler returned a nil response").
			WithProperty(PropertyKind, kind)
	}
	if res.StatusCode <= 0 {
		return Result{}, ErrInvalidHandlerResult.New("handler response has no status code").
			WithProperty(PropertyKind, kind)
	}
	body, err := encodeBody(kind, res.Body)
	if err != nil {
		return Result{}, ErrInvalidHandlerResult.Wrap(err, "handler response body cannot be serialized").
			WithProperty(PropertyKind, kind)
	}
	headers := res.Headers
	if headers == nil {
		headers = defaultHeaders
	}
	return Result{
		StatusCode:      res.StatusCode,
		Headers:         maps.Clone(headers),
		Body:            body,
		IsBase64Encoded: res.IsBase64Encoded,
	}, nil
}

func encodeBody(kind Kind, body any) (any, error) {
	if kind == KindDirectInvocation {
		if _, err := json.Marshal(body); err != nil {
			return nil, err
		}
		return body, nil
	}
	switch b := body.(type) {
	case nil:
		return "", nil
	case string:
		return b, nil
	case []byte:
		return string(b), nil
	case json.RawMessage:
		return string(b), nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// NormalizeRaw validates the map returned by a raw handler. The map must
// contain a statusCode that is an integer or a numeric string; it is
// otherwise passed through unchanged.
func NormalizeRaw(m map[string]any) (Result, error) {
	if m == nil {
		return Result{}, ErrInvalidHandlerResult.New("raw handler returned a nil map")
	}
	v, ok := m["statusCode"]
	if !ok {
		return Result{}, ErrInvalidHandlerResult.New("raw handler result has no statusCode")
	}
	code, err := statusCode(v)
	if err != nil {
		return Result{}, ErrInvalidHandlerResult.Wrap(err, "raw handler result has an invalid statusCode").
			WithProperty(PropertyValue, v)
	}
	if _, err := json.Marshal(m); err != nil {
		return Result{}, ErrInvalidHandlerResult.Wrap(err, "raw handler result cannot be serialized")
	}
	res := Result{
		StatusCode: code,
		Headers:    rawHeaders(m["headers"]),
		Body:       m["body"],
		raw:        m,
	}
	res.IsBase64Encoded, _ = m["isBase64Encoded"].(bool)
	return res, nil
}

func statusCode(v any) (int, error) {
	var code int
	switch s := v.(type) {
	case int:
		code = s
	case int32:
		code = int(s)
	case int64:
		code = int(s)
	case float64:
		if s != math.Trunc(s) {
			return 0, fmt.Errorf("status %v is not an integer", s)
		}
		code = int(s)
	case json.Number:
		n, err := strconv.Atoi(s.String())
		if err != nil {
			return 0, err
		}
		code = n
	case string:
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, err
		}
		code = n
	default:
		return 0, fmt.Errorf("status has type %T", v)
	}
	if code <= 0 {
		return 0, fmt.Errorf("status %d is not positive", code)
	}
	return code, nil
}

func rawHeaders(v any) map[string]string {
	switch h := v.(type) {
	case map[string]string:
		return h
	case map[string]any:
		out := make(map[string]string, len(h))
		for k, val := range h {
			out[k] = fmt.Sprint(val)
		}
		return out
	default:
		return nil
	}
}

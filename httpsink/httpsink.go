// Package httpsink forwards API Gateway proxy payloads to an http.Handler,
// such as a gin engine, when they reach a lambdaroute.Router as unmatched
// payloads.
package httpsink

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/tidwall/gjson"

	"github.com/bjaus/lambdaroute"
)

// Sink replays API Gateway REST (v1) and HTTP API (v2) proxy events against
// an http.Handler. Payloads that are not proxy events go to the fallback
// sink when one is set and get a 404 result otherwise.
type Sink struct {
	v1       *httpadapter.HandlerAdapter
	v2       *httpadapter.HandlerAdapterV2
	fallback lambdaroute.Sink
}

// Option configures a Sink.
type Option func(*Sink)

// WithFallback hands payloads that are not proxy events to next.
func WithFallback(next lambdaroute.Sink) Option {
	return func(s *Sink) {
		s.fallback = next
	}
}

// New returns a Sink serving h.
//
// Example:
//
//	engine := gin.New()
//	engine.GET("/health", health)
//	r := lambdaroute.New(lambdaroute.WithSink(httpsink.New(engine)))
func New(h http.Handler, opts ...Option) *Sink {
	s := &Sink{
		v1: httpadapter.New(h),
		v2: httpadapter.NewV2(h),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle implements lambdaroute.Sink.
func (s *Sink) Handle(ctx context.Context, raw []byte) (lambdaroute.Result, error) {
	switch {
	case isV2(raw):
		var req events.APIGatewayV2HTTPRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return lambdaroute.Result{}, err
		}
		res, err := s.v2.ProxyWithContext(ctx, req)
		if err != nil {
			return lambdaroute.Result{}, err
		}
		return lambdaroute.Result{
			StatusCode:      res.StatusCode,
			Headers:         flatten(res.Headers, res.MultiValueHeaders),
			Body:            res.Body,
			IsBase64Encoded: res.IsBase64Encoded,
		}, nil

	case isV1(raw):
		var req events.APIGatewayProxyRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return lambdaroute.Result{}, err
		}
		res, err := s.v1.ProxyWithContext(ctx, req)
		if err != nil {
			return lambdaroute.Result{}, err
		}
		return lambdaroute.Result{
			StatusCode:      res.StatusCode,
			Headers:         flatten(res.Headers, res.MultiValueHeaders),
			Body:            res.Body,
			IsBase64Encoded: res.IsBase64Encoded,
		}, nil
	}

	if s.fallback != nil {
		return s.fallback.Handle(ctx, raw)
	}
	return lambdaroute.Result{
		StatusCode: http.StatusNotFound,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       `{"error":"unmatched","message":"payload is not an API Gateway proxy event"}`,
	}, nil
}

// flatten merges multi-value headers into a single-value map, joining
// repeated values with commas.
func flatten(single map[string]string, multi map[string][]string) map[string]string {
	out := make(map[string]string, len(single)+len(multi))
	for k, v := range single {
		out[k] = v
	}
	for k, vs := range multi {
		if _, ok := out[k]; !ok {
			out[k] = strings.Join(vs, ",")
		}
	}
	return out
}

func isV1(raw []byte) bool {
	m := gjson.GetBytes(raw, "httpMethod")
	return m.Type == gjson.String && m.String() != ""
}

func isV2(raw []byte) bool {
	if gjson.GetBytes(raw, "version").String() != "2.0" {
		return false
	}
	m := gjson.GetBytes(raw, "requestContext.http.method")
	return m.Type == gjson.String && m.String() != ""
}

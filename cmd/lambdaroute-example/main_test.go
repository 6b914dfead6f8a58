package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bjaus/lambdaroute"
	"github.com/bjaus/lambdaroute/httpsink"
	"github.com/bjaus/lambdaroute/internal/config"
	"github.com/bjaus/lambdaroute/kafkasink"
)

func testConfig() config.Config {
	return config.Config{
		LogLevel:       "debug",
		Metrics:        true,
		HTTPFallback:   true,
		OrdersQueue:    "MyQueue",
		AlertsTopic:    "alerts",
		NightlyRule:    "my-rule",
		ReportTrigger:  "generate-report",
		OrderSchemaRef: "order.schema.json",
	}
}

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("..", "..", "testdata", name))
	require.NoError(t, err)
	return raw
}

func TestBuild(t *testing.T) {
	r, err := build(testConfig(), zap.NewNop(), prometheus.NewRegistry())
	require.NoError(t, err)

	entries := r.Entries()
	require.Len(t, entries, 5)

	_, err = r.Lookup(lambdaroute.KindSQS, "MyQueue")
	assert.NoError(t, err)
	_, err = r.Lookup(lambdaroute.KindS3, "ObjectCreated:Put")
	assert.NoError(t, err)
}

func TestBuildServesHealthThroughSink(t *testing.T) {
	r, err := build(testConfig(), zap.NewNop(), prometheus.NewRegistry())
	require.NoError(t, err)

	res := r.Dispatch(context.Background(), fixture(t, "apigw_v2.json"))

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, res.BodyString())
}

func TestBuildWithoutFallback(t *testing.T) {
	conf := testConfig()
	conf.HTTPFallback = false
	conf.Metrics = false
	r, err := build(conf, zap.NewNop(), nil)
	require.NoError(t, err)

	res := r.Dispatch(context.Background(), fixture(t, "apigw_v1.json"))

	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestBuildWithoutAnyFallback(t *testing.T) {
	conf := testConfig()
	conf.HTTPFallback = false

	if sink := fallback(conf, zap.NewNop()); sink != nil {
		t.Fatalf("fallback() = %T, want nil", sink)
	}
}

func TestBuildChainsDeadLetterBehindHTTP(t *testing.T) {
	conf := testConfig()
	conf.DLQBrokers = []string{"localhost:9092"}

	sink := fallback(conf, zap.NewNop())

	assert.IsType(t, &httpsink.Sink{}, sink)

	conf.HTTPFallback = false
	assert.IsType(t, &kafkasink.Sink{}, fallback(conf, zap.NewNop()))
}

func TestBuildFailsWhenSchemaStoreIsDown(t *testing.T) {
	conf := testConfig()
	conf.SchemaRedisAddr = "127.0.0.1:1"
	conf.SchemaRedisTimeout = 50 * time.Millisecond

	_, err := build(conf, zap.NewNop(), prometheus.NewRegistry())

	assert.Error(t, err)
}

func TestOrdersAreValidatedAgainstSchema(t *testing.T) {
	r, err := build(testConfig(), zap.NewNop(), prometheus.NewRegistry())
	require.NoError(t, err)

	batch := []byte(`{"Records": [
		{"messageId": "1", "eventSource": "aws:sqs", "eventSourceARN": "arn:aws:sqs:us-east-2:123456789012:MyQueue", "body": "{\"id\":\"A-1\",\"total\":5}"},
		{"messageId": "2", "eventSource": "aws:sqs", "eventSourceARN": "arn:aws:sqs:us-east-2:123456789012:MyQueue", "body": "{\"id\":\"A-2\",\"total\":-1}"}
	]}`)
	res := r.Dispatch(context.Background(), batch)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body struct {
		Accepted []string `json:"accepted"`
		Rejected []string `json:"rejected"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.BodyString()), &body))
	assert.Equal(t, []string{"A-1"}, body.Accepted)
	assert.Equal(t, []string{"2"}, body.Rejected)
}

func TestReportTrigger(t *testing.T) {
	r, err := build(testConfig(), zap.NewNop(), prometheus.NewRegistry())
	require.NoError(t, err)

	raw := []byte(`{"direct_invocation": {"trigger": "generate-report", "body": {"from": "2024-01-01", "to": "2024-01-31"}}}`)
	res := r.Dispatch(context.Background(), raw)

	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, map[string]any{"trigger": "generate-report", "from": "2024-01-01", "to": "2024-01-31"}, res.Body)
}

package main

import (
	"context"
	"log"
	"net/http"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/bjaus/lambdaroute"
	"github.com/bjaus/lambdaroute/httpsink"
	"github.com/bjaus/lambdaroute/internal/config"
	"github.com/bjaus/lambdaroute/kafkasink"
	"github.com/bjaus/lambdaroute/metrics"
	"github.com/bjaus/lambdaroute/schemas"
)

var orderSchema = []byte(`{
	"type": "object",
	"required": ["id", "total"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"total": {"type": "integer", "minimum": 0}
	}
}`)

func main() {
	conf, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := conf.Logger()
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	router, err := build(conf, logger, prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatal("wire router", zap.Error(err))
	}
	for _, e := range router.Entries() {
		logger.Info("route", zap.String("kind", e.Kind.String()), zap.String("key", e.Key), zap.Bool("raw", e.Raw))
	}

	lambda.Start(router)
}

// build wires the router. Registration errors, including duplicate routes,
// stop the function before it serves anything.
func build(conf config.Config, logger *zap.Logger, reg prometheus.Registerer) (*lambdaroute.Router, error) {
	opts := []lambdaroute.Option{lambdaroute.WithLogger(logger)}
	if conf.Metrics {
		opts = append(opts, metrics.New(reg).Options()...)
	}
	if sink := fallback(conf, logger); sink != nil {
		opts = append(opts, lambdaroute.WithSink(sink))
	}
	r := lambdaroute.New(opts...)

	schema, err := loadOrderSchema(conf)
	if err != nil {
		return nil, err
	}

	orders := &orderHandler{logger: logger}
	if _, err := lambdaroute.RegisterSQS(r, conf.OrdersQueue, orders, lambdaroute.WithSchema(schema)); err != nil {
		return nil, err
	}
	if _, err := lambdaroute.RegisterSNS(r, conf.AlertsTopic, lambdaroute.HandlerFunc[*lambdaroute.SNSEvent[alert]](handleAlerts(logger))); err != nil {
		return nil, err
	}
	if _, err := lambdaroute.RegisterEventBridge(r, conf.NightlyRule, lambdaroute.HandlerFunc[*lambdaroute.EventBridgeEvent[any]](handleNightly(logger))); err != nil {
		return nil, err
	}
	if _, err := lambdaroute.RegisterDirectInvocation(r, conf.ReportTrigger, lambdaroute.HandlerFunc[*lambdaroute.DirectInvocationEvent[reportRequest]](handleReport)); err != nil {
		return nil, err
	}
	if _, err := lambdaroute.RegisterRaw(r, lambdaroute.KindS3, "ObjectCreated:Put", lambdaroute.RawHandlerFunc(handleUpload(logger))); err != nil {
		return nil, err
	}
	return r, nil
}

// fallback chains the HTTP adapter in front of the dead-letter topic. Either
// may be disabled.
func fallback(conf config.Config, logger *zap.Logger) lambdaroute.Sink {
	var dlq lambdaroute.Sink
	if len(conf.DLQBrokers) > 0 {
		w := kafkasink.NewWriter(conf.DLQBrokers, conf.DLQTopic)
		dlq = kafkasink.New(w, kafkasink.WithLogger(logger.Named("dlq")))
	}
	if !conf.HTTPFallback {
		return dlq
	}
	var opts []httpsink.Option
	if dlq != nil {
		opts = append(opts, httpsink.WithFallback(dlq))
	}
	return httpsink.New(engine(logger), opts...)
}

func loadOrderSchema(conf config.Config) (*jsonschema.Schema, error) {
	if conf.SchemaRedisAddr == "" {
		return lambdaroute.CompileSchema(conf.OrderSchemaRef, orderSchema)
	}
	src := schemas.NewRedisSource(schemas.RedisOptions{
		Addr:      conf.SchemaRedisAddr,
		Namespace: conf.SchemaRedisNamespace,
		Timeout:   conf.SchemaRedisTimeout,
	})
	return src.Load(context.Background(), conf.OrderSchemaRef)
}

func engine(logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	e := gin.New()
	e.Use(gin.Recovery())
	e.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	e.GET("/metrics", metricsHandler())
	e.NoRoute(func(c *gin.Context) {
		logger.Debug("no http route", zap.String("path", c.Request.URL.Path))
		c.JSON(http.StatusNotFound, gin.H{"message": "route not found"})
	})
	return e
}

func metricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()

	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

type order struct {
	ID    string `json:"id"`
	Total int    `json:"total"`
}

type orderHandler struct {
	logger *zap.Logger
}

func (h *orderHandler) Handle(ctx context.Context, e *lambdaroute.SQSEvent[order]) (*lambdaroute.Response, error) {
	var (
		accepted []string
		rejected []string
	)
	for _, rec := range e.Records {
		if rec.Err != nil {
			rejected = append(rejected, rec.MessageId)
			continue
		}
		h.logger.Info("order received", zap.String("id", rec.Payload.ID), zap.Int("total", rec.Payload.Total))
		accepted = append(accepted, rec.Payload.ID)
	}
	return &lambdaroute.Response{
		StatusCode: http.StatusOK,
		Body:       map[string]any{"accepted": accepted, "rejected": rejected},
	}, nil
}

type alert struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

func handleAlerts(logger *zap.Logger) func(context.Context, *lambdaroute.SNSEvent[alert]) (*lambdaroute.Response, error) {
	return func(ctx context.Context, e *lambdaroute.SNSEvent[alert]) (*lambdaroute.Response, error) {
		for _, rec := range e.Records {
			if rec.Err != nil {
				logger.Warn("unreadable alert", zap.String("message_id", rec.SNS.MessageID), zap.Error(rec.Err))
				continue
			}
			logger.Info("alert", zap.String("severity", rec.Payload.Severity), zap.String("message", rec.Payload.Message))
		}
		return &lambdaroute.Response{StatusCode: http.StatusAccepted}, nil
	}
}

func handleNightly(logger *zap.Logger) func(context.Context, *lambdaroute.EventBridgeEvent[any]) (*lambdaroute.Response, error) {
	return func(ctx context.Context, e *lambdaroute.EventBridgeEvent[any]) (*lambdaroute.Response, error) {
		logger.Info("nightly run", zap.String("event_id", e.EventID.String()), zap.Time("time", e.Time))
		return &lambdaroute.Response{StatusCode: http.StatusOK, Body: "scheduled"}, nil
	}
}

type reportRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func handleReport(ctx context.Context, e *lambdaroute.DirectInvocationEvent[reportRequest]) (*lambdaroute.Response, error) {
	return &lambdaroute.Response{
		StatusCode: http.StatusOK,
		Body: map[string]any{
			"trigger": e.Trigger,
			"from":    e.Payload.From,
			"to":      e.Payload.To,
		},
	}, nil
}

func handleUpload(logger *zap.Logger) func(context.Context, map[string]any) (map[string]any, error) {
	return func(ctx context.Context, event map[string]any) (map[string]any, error) {
		records, _ := event["Records"].([]any)
		logger.Info("objects uploaded", zap.Int("records", len(records)))
		return map[string]any{"statusCode": http.StatusNoContent}, nil
	}
}

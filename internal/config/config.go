// Package config loads the example function's settings from the environment.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const AppConfPrefix = "LAMBDAROUTE"

// Config holds the settings of the example function. Every field is read
// from a LAMBDAROUTE_ prefixed environment variable, e.g.
// LAMBDAROUTE_LOG_LEVEL.
type Config struct {
	LogLevel       string `split_words:"true" default:"info"`
	DevLogging     bool   `split_words:"true" default:"false"`
	Metrics        bool   `default:"true"`
	HTTPFallback   bool   `envconfig:"HTTP_FALLBACK" default:"true"`
	OrdersQueue    string `split_words:"true" default:"orders"`
	AlertsTopic    string `split_words:"true" default:"alerts"`
	NightlyRule    string `split_words:"true" default:"nightly-report"`
	ReportTrigger  string `split_words:"true" default:"generate-report"`
	OrderSchemaRef string `split_words:"true" default:"order.schema.json"`

	// SchemaRedisAddr, when set, makes the function load OrderSchemaRef
	// from Redis instead of using the built-in document.
	SchemaRedisAddr      string        `split_words:"true"`
	SchemaRedisNamespace string        `split_words:"true" default:"schema"`
	SchemaRedisTimeout   time.Duration `split_words:"true" default:"5s"`

	// DLQBrokers, when set, forwards payloads nothing handles to DLQTopic.
	DLQBrokers []string `envconfig:"DLQ_BROKERS"`
	DLQTopic   string   `envconfig:"DLQ_TOPIC" default:"lambdaroute-dlq"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var conf Config
	err := envconfig.Process(AppConfPrefix, &conf)

	return conf, err
}

// Logger builds a zap logger for the configured level and mode.
func (c Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.DevLogging {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

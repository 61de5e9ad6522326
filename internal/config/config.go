// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
)

// Config holds all engine configuration.
type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Storage StorageConfig
	Blob    BlobConfig
	Metrics MetricsConfig
	Tracing TracingConfig
}

// StorageConfig selects the StorageProvider backing client transactions.
type StorageConfig struct {
	// Driver is one of memory, sqlite, postgres.
	Driver      string `env:"UOW_STORAGE_DRIVER" envDefault:"memory"`
	SQLitePath  string `env:"UOW_SQLITE_PATH"    envDefault:"unitofwork.db"`
	PostgresDSN string `env:"UOW_POSTGRES_DSN"   envDefault:"postgres://localhost/unitofwork?sslmode=disable"`
}

// BlobConfig selects where transaction snapshots are archived.
type BlobConfig struct {
	// Driver is one of fs, s3, memory.
	Driver string `env:"UOW_BLOB_DRIVER"  envDefault:"fs"`
	FSRoot string `env:"UOW_BLOB_FS_ROOT" envDefault:"./blobdata"`
	S3     S3Config
}

// S3Config holds S3 / MinIO connection settings. Credentials fall back to the
// default AWS chain when AccessKeyID is empty.
type S3Config struct {
	Bucket          string `env:"UOW_BLOB_S3_BUCKET"`
	Region          string `env:"UOW_BLOB_S3_REGION"     envDefault:"us-east-1"`
	Endpoint        string `env:"UOW_BLOB_S3_ENDPOINT"`
	PathStyle       bool   `env:"UOW_BLOB_S3_PATH_STYLE" envDefault:"false"`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	SessionToken    string `env:"AWS_SESSION_TOKEN"`
}

// MetricsConfig selects the metrics recorder.
type MetricsConfig struct {
	// Backend is one of none, expvar, prometheus.
	Backend   string `env:"UOW_METRICS"           envDefault:"none"`
	Namespace string `env:"UOW_METRICS_NAMESPACE" envDefault:"unitofwork"`
}

// TracingConfig selects the tracer.
type TracingConfig struct {
	// Backend is one of none, json, otel.
	Backend     string `env:"UOW_TRACING"       envDefault:"none"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"unitofwork"`
}

var allowed = map[string][]string{
	"UOW_STORAGE_DRIVER": {"memory", "sqlite", "postgres"},
	"UOW_BLOB_DRIVER":    {"fs", "s3", "memory"},
	"UOW_METRICS":        {"none", "expvar", "prometheus"},
	"UOW_TRACING":        {"none", "json", "otel"},
}

// Validate rejects unknown backend names and incomplete S3 settings.
func (c *Config) Validate() error {
	values := map[string]string{
		"UOW_STORAGE_DRIVER": c.Storage.Driver,
		"UOW_BLOB_DRIVER":    c.Blob.Driver,
		"UOW_METRICS":        c.Metrics.Backend,
		"UOW_TRACING":        c.Tracing.Backend,
	}
	for _, key := range []string{"UOW_STORAGE_DRIVER", "UOW_BLOB_DRIVER", "UOW_METRICS", "UOW_TRACING"} {
		if !contains(allowed[key], values[key]) {
			return fmt.Errorf("%s: unsupported value %q (want one of %v)", key, values[key], allowed[key])
		}
	}
	if c.Blob.Driver == "s3" && c.Blob.S3.Bucket == "" {
		return fmt.Errorf("UOW_BLOB_S3_BUCKET required for s3 driver")
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// Parse reads configuration from the process environment.
func Parse() (*Config, error) {
	return parse(env.Options{})
}

// ParseEnvironment reads configuration from the supplied variables only.
func ParseEnvironment(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewConfig parses the environment and logs the selected backends.
func NewConfig(log *slog.Logger) (*Config, error) {
	cfg, err := Parse()
	if err != nil {
		return nil, err
	}
	log.Info("configuration loaded",
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.String("blob_driver", cfg.Blob.Driver),
		slog.String("metrics", cfg.Metrics.Backend),
		slog.String("tracing", cfg.Tracing.Backend),
	)
	return cfg, nil
}

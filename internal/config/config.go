// Package config loads pipeline configuration from the environment, an
// optional .env file, and an optional YAML overlay.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// S3SSEConfig configures server-side encryption for objects written to S3.
type S3SSEConfig struct {
	// Mode is one of "", "sse-s3", "sse-kms".
	Mode     string `yaml:"mode"`
	KMSKeyID string `yaml:"kms_key_id"`
}

// S3Config configures the S3-compatible object store backend.
type S3Config struct {
	Bucket                string      `yaml:"bucket"`
	Region                string      `yaml:"region"`
	Endpoint              string      `yaml:"endpoint"`
	Prefix                string      `yaml:"prefix"`
	AccessKey             string      `yaml:"access_key"`
	SecretKey             string      `yaml:"secret_key"`
	UsePathStyle          bool        `yaml:"use_path_style"`
	TLSInsecureSkipVerify bool        `yaml:"tls_insecure_skip_verify"`
	SSE                   S3SSEConfig `yaml:"sse"`
}

// ObjectStoreConfig selects and configures the object storage backend used
// by the model ingester to load vocabulary/matrix packages.
type ObjectStoreConfig struct {
	// Backend is "memory" or "s3".
	Backend string   `yaml:"backend"`
	S3      S3Config `yaml:"s3"`
}

// FlusherConfig configures the async flusher worker pool.
type FlusherConfig struct {
	Workers         int `yaml:"workers"`
	QueueCapacity   int `yaml:"queue_capacity"`
	DeadlockRetries int `yaml:"deadlock_retries"`
}

// IngesterConfig configures the text ingester's batching policy.
type IngesterConfig struct {
	BatchThreshold int `yaml:"batch_threshold"`
}

// ModelConfig configures the model ingester's KNN search.
type ModelConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	MaxNeighbors        int     `yaml:"max_neighbors"`
	BaseRating          float64 `yaml:"base_rating"`
}

// TextConfig configures the text ingester's rating policy.
type TextConfig struct {
	BaseRating float64 `yaml:"base_rating"`
}

// PostgresConfig configures the relational store connection.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// LoggingConfig configures the ambient structured logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

// ObsConfig configures OpenTelemetry tracing and metrics export.
type ObsConfig struct {
	Enabled        bool   `yaml:"enabled"`
	OTLP           string `yaml:"otlp_endpoint"`
	Insecure       bool   `yaml:"insecure"`
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	Environment    string `yaml:"environment"`
}

// Config aggregates every recognized configuration option for the pipeline.
type Config struct {
	Postgres    PostgresConfig    `yaml:"postgres"`
	Flusher     FlusherConfig     `yaml:"flusher"`
	Ingester    IngesterConfig    `yaml:"ingester"`
	Model       ModelConfig       `yaml:"model"`
	Text        TextConfig        `yaml:"text"`
	ObjectStore ObjectStoreConfig `yaml:"object_store"`
	Logging     LoggingConfig     `yaml:"logging"`
	OTel        ObsConfig         `yaml:"otel"`
}

// Default returns a Config populated with every documented default value.
func Default() Config {
	return Config{
		Flusher: FlusherConfig{
			Workers:         3,
			QueueCapacity:   16,
			DeadlockRetries: 4,
		},
		Ingester: IngesterConfig{
			BatchThreshold: 100_000,
		},
		Model: ModelConfig{
			SimilarityThreshold: 0.40,
			MaxNeighbors:        64,
			BaseRating:          1200.0,
		},
		Text: TextConfig{
			BaseRating: 1500.0,
		},
		ObjectStore: ObjectStoreConfig{
			Backend: "memory",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		OTel: ObsConfig{
			ServiceName: "substrate",
		},
	}
}

// Load builds a Config from, in increasing priority: documented defaults,
// an optional .env file merged into the process environment, individual
// environment variables, and an optional YAML file named by SUBSTRATE_CONFIG.
func Load() (Config, error) {
	cfg := Default()

	_ = godotenv.Overload()

	overlayEnv(&cfg)

	if path := os.Getenv("SUBSTRATE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %q: %w", path, err)
		}
	}

	if cfg.Postgres.DSN == "" {
		return Config{}, fmt.Errorf("postgres DSN is required (set POSTGRES_DSN or postgres.dsn)")
	}
	return cfg, nil
}

func overlayEnv(cfg *Config) {
	str(&cfg.Postgres.DSN, "POSTGRES_DSN")

	intVal(&cfg.Flusher.Workers, "FLUSHER_WORKERS")
	intVal(&cfg.Flusher.QueueCapacity, "FLUSHER_QUEUE_CAPACITY")
	intVal(&cfg.Flusher.DeadlockRetries, "FLUSHER_DEADLOCK_RETRIES")

	intVal(&cfg.Ingester.BatchThreshold, "INGESTER_BATCH_THRESHOLD")

	floatVal(&cfg.Model.SimilarityThreshold, "MODEL_SIMILARITY_THRESHOLD")
	intVal(&cfg.Model.MaxNeighbors, "MODEL_MAX_NEIGHBORS")
	floatVal(&cfg.Model.BaseRating, "MODEL_BASE_RATING")

	floatVal(&cfg.Text.BaseRating, "TEXT_BASE_RATING")

	str(&cfg.ObjectStore.Backend, "OBJECT_STORE_BACKEND")
	str(&cfg.ObjectStore.S3.Bucket, "S3_BUCKET")
	str(&cfg.ObjectStore.S3.Region, "S3_REGION")
	str(&cfg.ObjectStore.S3.Endpoint, "S3_ENDPOINT")
	str(&cfg.ObjectStore.S3.Prefix, "S3_PREFIX")
	str(&cfg.ObjectStore.S3.AccessKey, "S3_ACCESS_KEY")
	str(&cfg.ObjectStore.S3.SecretKey, "S3_SECRET_KEY")
	boolVal(&cfg.ObjectStore.S3.UsePathStyle, "S3_USE_PATH_STYLE")

	str(&cfg.Logging.Level, "LOG_LEVEL")
	str(&cfg.Logging.Path, "LOG_PATH")

	boolVal(&cfg.OTel.Enabled, "OTEL_ENABLED")
	str(&cfg.OTel.OTLP, "OTEL_EXPORTER_OTLP_ENDPOINT")
	boolVal(&cfg.OTel.Insecure, "OTEL_INSECURE")
	str(&cfg.OTel.ServiceName, "OTEL_SERVICE_NAME")
}

func str(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = v
	}
}

func intVal(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func floatVal(dst *float64, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func boolVal(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

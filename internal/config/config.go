package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Provider selection. The embedding provider's model identity is
	// stamped onto every stored vector.
	EmbeddingProvider string `envconfig:"EMBEDDING_PROVIDER" default:"openai"`
	OpenAIAPIKey      string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL     string `envconfig:"OPENAI_BASE_URL"`

	// Retrieval defaults.
	MinSimilarity float64 `envconfig:"MIN_SIMILARITY" default:"0.7"`

	// Ingestion.
	IngestWorkers int `envconfig:"INGEST_WORKERS" default:"4"`

	// Background jobs.
	StaleValidationAge   time.Duration `envconfig:"STALE_VALIDATION_AGE" default:"168h"`
	StalePollInterval    time.Duration `envconfig:"STALE_POLL_INTERVAL" default:"1h"`
	ReembedBatchSize     int           `envconfig:"REEMBED_BATCH_SIZE" default:"50"`
	ReembedPollInterval  time.Duration `envconfig:"REEMBED_POLL_INTERVAL" default:"10m"`
	ReembedWorkerEnabled bool          `envconfig:"REEMBED_WORKER_ENABLED" default:"false"`

	// S3 bulk-ingestion source.
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"noesis-ingest"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	// Bootstrap: create an initial admin API key on startup
	InitOrgID  string `envconfig:"INIT_ORG_ID"`
	InitAPIKey string `envconfig:"INIT_API_KEY"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("NOESIS", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"vecdb"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"vecdb"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	EnableAPI             bool `envconfig:"ENABLE_API" default:"true"`
	EnableParseWorker     bool `envconfig:"ENABLE_PARSE_WORKER" default:"false"`
	EnableVectorizeWorker bool `envconfig:"ENABLE_VECTORIZE_WORKER" default:"false"`
	EnableOrchestrator    bool `envconfig:"ENABLE_ORCHESTRATOR" default:"false"`

	PipelineConcurrency int    `envconfig:"PIPELINE_CONCURRENCY" default:"50"`
	MigrationPath       string `envconfig:"MIGRATION_PATH" default:"file://migrations"`
	GeminiAPIKey        string `envconfig:"GEMINI_API_KEY"`
	NSQMaxMsgSize       int64  `envconfig:"NSQ_MAX_MSG_SIZE" default:"10485760"` // 10MB

	// Embedding provider limits
	EmbedRequestsPerMinute int `envconfig:"EMBED_REQUESTS_PER_MINUTE" default:"120"`
	EmbedMaxRetries        int `envconfig:"EMBED_MAX_RETRIES" default:"5"`

	// Server
	ServerPort      int   `envconfig:"SERVER_PORT" default:"8081"`
	MaxUploadSizeMB int64 `envconfig:"MAX_UPLOAD_SIZE_MB" default:"512"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Try loading .env from current dir and repo root.
	// Ignore errors, as env vars might be set in the shell.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	rootEnv := filepath.Join(cwd, "../../.env")
	_ = godotenv.Load(rootEnv)

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.PipelineConcurrency <= 0 {
		return fmt.Errorf("%w: PIPELINE_CONCURRENCY must be positive", ErrMissingRequired)
	}
	return nil
}

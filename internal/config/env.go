package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	StorageS3    = "s3"
	StorageLocal = "local"

	VectorPgvector = "pgvector"
	VectorChromem  = "chromem"

	SeedsDatabase = "database"
	SeedsEnv      = "env"
)

type Config struct {
	Port           string   `env:"PORT" envDefault:"8080"`
	Debug          bool     `env:"DEBUG" envDefault:"false"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`

	StorageBackend  string `env:"STORAGE_BACKEND" envDefault:"s3"`
	AwsAccessKey    string `env:"AWS_ACCESS_KEY"`
	AwsSecretKey    string `env:"AWS_SECRET_KEY"`
	AwsRegion       string `env:"AWS_REGION" envDefault:"us-east-2"`
	BucketName      string `env:"BUCKET_NAME"`
	StoragePrefix   string `env:"STORAGE_PREFIX"`
	LocalStorageDir string `env:"LOCAL_STORAGE_DIR" envDefault:"./data"`

	VectorBackend  string `env:"VECTOR_BACKEND" envDefault:"pgvector"`
	DatabaseURL    string `env:"DATABASE_URL"`
	SslCertPath    string `env:"SSL_CERT_PATH"`
	CollectionName string `env:"COLLECTION_NAME" envDefault:"iskobot_documents"`
	ChromemPath    string `env:"CHROMEM_PATH"`

	AIAPIKey   string `env:"GEMINI_API_KEY"`
	EmbedModel string `env:"EMBED_MODEL" envDefault:"text-embedding-004"`

	SeedSource string   `env:"SEED_SOURCE" envDefault:"database"`
	SeedURLs   []string `env:"SEED_URLS" envSeparator:","`

	MaxPagesPerSite int           `env:"MAX_PAGES_PER_SITE" envDefault:"100"`
	CrawlDelay      time.Duration `env:"CRAWL_DELAY" envDefault:"1s"`
	FetchTimeout    time.Duration `env:"FETCH_TIMEOUT" envDefault:"15s"`
	RespectRobots   bool          `env:"RESPECT_ROBOTS" envDefault:"true"`
	UserAgent       string        `env:"USER_AGENT" envDefault:"RAGBot/1.0 (Educational Purpose)"`

	ChunkSize    int `env:"CHUNK_SIZE" envDefault:"1000"`
	ChunkOverlap int `env:"CHUNK_OVERLAP" envDefault:"100"`

	EmbedBatchSize  int           `env:"EMBED_BATCH_SIZE" envDefault:"5"`
	EmbedBatchDelay time.Duration `env:"EMBED_BATCH_DELAY" envDefault:"2s"`

	RetryMaxAttempts int           `env:"RETRY_MAX_ATTEMPTS" envDefault:"5"`
	RetryMultiplier  time.Duration `env:"RETRY_MULTIPLIER" envDefault:"2s"`
	RetryMinWait     time.Duration `env:"RETRY_MIN_WAIT" envDefault:"4s"`
	RetryMaxWait     time.Duration `env:"RETRY_MAX_WAIT" envDefault:"60s"`

	WriteBatchSize  int           `env:"WRITE_BATCH_SIZE" envDefault:"20"`
	ClearCollection bool          `env:"CLEAR_COLLECTION" envDefault:"true"`
	StreamInterval  time.Duration `env:"STREAM_INTERVAL" envDefault:"500ms"`
}

// LoadConfig reads .env (if present) and the process environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load parses configuration from the given variables only, ignoring the
// process environment.
func Load(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings required by the selected backends.
func (c *Config) Validate() error {
	var errs []error

	switch c.StorageBackend {
	case StorageS3:
		if c.BucketName == "" {
			errs = append(errs, errors.New("BUCKET_NAME not set"))
		}
		if c.AwsRegion == "" {
			errs = append(errs, errors.New("AWS_REGION not set"))
		}
	case StorageLocal:
		if c.LocalStorageDir == "" {
			errs = append(errs, errors.New("LOCAL_STORAGE_DIR not set"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend))
	}

	switch c.VectorBackend {
	case VectorPgvector:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL not set"))
		}
	case VectorChromem:
	default:
		errs = append(errs, fmt.Errorf("unknown VECTOR_BACKEND %q", c.VectorBackend))
	}

	switch c.SeedSource {
	case SeedsDatabase:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("SEED_SOURCE=database requires DATABASE_URL"))
		}
	case SeedsEnv:
	default:
		errs = append(errs, fmt.Errorf("unknown SEED_SOURCE %q", c.SeedSource))
	}

	if c.AIAPIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY not set"))
	}
	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || (c.ChunkOverlap > 0 && c.ChunkOverlap+1 >= c.ChunkSize) {
		errs = append(errs, fmt.Errorf("invalid chunking: size=%d overlap=%d", c.ChunkSize, c.ChunkOverlap))
	}
	if c.EmbedBatchSize <= 0 || c.WriteBatchSize <= 0 {
		errs = append(errs, errors.New("batch sizes must be positive"))
	}
	if c.RetryMaxAttempts <= 0 {
		errs = append(errs, errors.New("RETRY_MAX_ATTEMPTS must be positive"))
	}
	if c.MaxPagesPerSite <= 0 {
		errs = append(errs, errors.New("MAX_PAGES_PER_SITE must be positive"))
	}

	return errors.Join(errs...)
}

// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Indexer, Retrieval, Session, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Indexer   IndexerConfig   `yaml:"indexer"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Session   SessionConfig   `yaml:"session"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds the session RPC server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters. An empty Host
// disables the document catalog.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// Enabled reports whether a catalog database is configured.
func (p PostgresConfig) Enabled() bool {
	return p.Host != ""
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings. No brokers disables
// rebuild notifications.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexRebuilt string `yaml:"indexRebuilt"`
}

// RedisConfig holds Redis connection parameters for the session store.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	PoolSize  int    `yaml:"poolSize"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// IndexerConfig controls where the corpus is read from, where index
// generations are written, and how documents are chunked.
type IndexerConfig struct {
	DataDir           string `yaml:"dataDir"`
	CorpusDir         string `yaml:"corpusDir"`
	ChunkSize         int    `yaml:"chunkSize"`
	ChunkOverlap      int    `yaml:"chunkOverlap"`
	EmbedBatchSize    int    `yaml:"embedBatchSize"`
	GenerationsToKeep int    `yaml:"generationsToKeep"`
}

// EmbeddingConfig selects the dense embedding backend. Provider "none"
// builds and serves lexical-only indexes; "hash" is a local deterministic
// embedder for offline runs.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	APIKey     string `yaml:"apiKey"`
	BaseURL    string `yaml:"baseUrl"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// RetrievalConfig controls hybrid retrieval and its fusion weights.
type RetrievalConfig struct {
	TopK            int           `yaml:"topK"`
	CandidatePool   int           `yaml:"candidatePool"`
	RRFK            int           `yaml:"rrfK"`
	LexicalWeight   float64       `yaml:"lexicalWeight"`
	DenseWeight     float64       `yaml:"denseWeight"`
	ExternalTimeout time.Duration `yaml:"externalTimeout"`
	CacheSize       int           `yaml:"cacheSize"`
}

// SessionConfig controls curation sessions.
type SessionConfig struct {
	Store               string        `yaml:"store"`
	CitationCap         int           `yaml:"citationCap"`
	ExcerptLength       int           `yaml:"excerptLength"`
	AmbiguityMinSupport float64       `yaml:"ambiguityMinSupport"`
	MaxItems            int           `yaml:"maxItems"`
	IdleTTL             time.Duration `yaml:"idleTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls span logging for retrieval calls.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.topK must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.LexicalWeight < 0 || c.Retrieval.DenseWeight < 0 {
		return fmt.Errorf("retrieval weights must be non-negative")
	}
	if c.Session.AmbiguityMinSupport <= 0 || c.Session.AmbiguityMinSupport > 1 {
		return fmt.Errorf("session.ambiguityMinSupport must be in (0,1], got %v", c.Session.AmbiguityMinSupport)
	}
	if c.Indexer.ChunkSize <= 0 {
		return fmt.Errorf("indexer.chunkSize must be positive, got %d", c.Indexer.ChunkSize)
	}
	switch c.Embedding.Provider {
	case "none", "openai", "hash":
	default:
		return fmt.Errorf("embedding.provider must be none, openai or hash, got %q", c.Embedding.Provider)
	}
	if c.Embedding.Provider == "hash" && c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive for the hash provider")
	}
	switch c.Session.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("session.store must be memory or redis, got %q", c.Session.Store)
	}
	return nil
}

// defaultConfig returns a Config with defaults suitable for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            9400,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Port:            5432,
			Database:        "etp",
			User:            "etp",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			ConsumerGroup: "etp-curator",
			Topics: KafkaTopics{
				IndexRebuilt: "etp.index-rebuilt",
			},
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			KeyPrefix: "etp:session:",
		},
		Indexer: IndexerConfig{
			DataDir:           "data/index",
			CorpusDir:         "data/corpus",
			ChunkSize:         1000,
			ChunkOverlap:      200,
			EmbedBatchSize:    64,
			GenerationsToKeep: 2,
		},
		Embedding: EmbeddingConfig{
			Provider: "none",
			Model:    "text-embedding-3-small",
		},
		Retrieval: RetrievalConfig{
			TopK:            5,
			CandidatePool:   50,
			RRFK:            60,
			LexicalWeight:   1.0,
			DenseWeight:     1.0,
			ExternalTimeout: 8 * time.Second,
			CacheSize:       512,
		},
		Session: SessionConfig{
			Store:               "memory",
			CitationCap:         3,
			ExcerptLength:       200,
			AmbiguityMinSupport: 0.25,
			MaxItems:            12,
			IdleTTL:             2 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads ETP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ETP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ETP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("ETP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("ETP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("ETP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("ETP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("ETP_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("ETP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("ETP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("ETP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("ETP_DATA_DIR"); v != "" {
		cfg.Indexer.DataDir = v
	}
	if v := os.Getenv("ETP_CORPUS_DIR"); v != "" {
		cfg.Indexer.CorpusDir = v
	}
	if v := os.Getenv("ETP_EMBEDDINGS_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("ETP_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("ETP_EMBEDDING_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Embedding.Dimensions = n
		}
	}
	if v := os.Getenv("ETP_RAG_TOPK"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			cfg.Retrieval.TopK = k
		}
	}
	if v := os.Getenv("ETP_EXTERNAL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Retrieval.ExternalTimeout = d
		}
	}
	if v := os.Getenv("ETP_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Retrieval.CacheSize = n
		}
	}
	if v := os.Getenv("ETP_CITATION_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Session.CitationCap = n
		}
	}
	if v := os.Getenv("ETP_AMBIGUITY_MIN_SUPPORT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Session.AmbiguityMinSupport = f
		}
	}
	if v := os.Getenv("ETP_SESSION_STORE"); v != "" {
		cfg.Session.Store = v
	}
	if v := os.Getenv("ETP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ETP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

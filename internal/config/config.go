package config

import (
	"fmt"
	"time"

	esengine "github.com/travelbooking/search/internal/engine/elasticsearch"
	pkgconfig "github.com/travelbooking/search/pkg/config"
	"github.com/travelbooking/search/pkg/database"
	"github.com/travelbooking/search/pkg/httpclient"
	"github.com/travelbooking/search/pkg/tracing"
)

// Search engine backends selectable with SEARCH_ENGINE.
const (
	EngineElasticsearch = "elasticsearch"
	EngineMemory        = "memory"
)

// Config holds all configuration for the search service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort           int      `env:"SEARCH_HTTP_PORT" envDefault:"8010"`
	RequestTimeoutSecs int      `env:"SEARCH_REQUEST_TIMEOUT_SECONDS" envDefault:"30"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	SearchCacheMaxAge  int      `env:"SEARCH_CACHE_MAX_AGE_SECONDS" envDefault:"0"`

	// Search engine selection (elasticsearch or memory)
	SearchEngine string `env:"SEARCH_ENGINE" envDefault:"elasticsearch"`

	// Elasticsearch
	ElasticsearchURLs        []string `env:"ELASTICSEARCH_URL" envDefault:"http://localhost:9200" envSeparator:","`
	ElasticsearchUsername    string   `env:"ELASTICSEARCH_USERNAME"`
	ElasticsearchPassword    string   `env:"ELASTICSEARCH_PASSWORD"`
	ElasticsearchIndexPrefix string   `env:"ELASTICSEARCH_INDEX_PREFIX" envDefault:"travel"`
	AutocompleteMinGram      int      `env:"AUTOCOMPLETE_MIN_GRAM" envDefault:"2"`
	AutocompleteMaxGram      int      `env:"AUTOCOMPLETE_MAX_GRAM" envDefault:"20"`

	// Circuit breaker around the Elasticsearch transport
	ESBreakerTimeoutSecs  int     `env:"ES_BREAKER_TIMEOUT_SECONDS" envDefault:"30"`
	ESBreakerFailureRatio float64 `env:"ES_BREAKER_FAILURE_RATIO" envDefault:"0.5"`
	ESBreakerMinRequests  uint32  `env:"ES_BREAKER_MIN_REQUESTS" envDefault:"5"`

	// PostgreSQL
	PostgresHost  string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort  int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser  string `env:"POSTGRES_USER" envDefault:"travel"`
	PostgresPass  string `env:"POSTGRES_PASSWORD" envDefault:"travel_secret"`
	PostgresDB    string `env:"POSTGRES_DB" envDefault:"travel"`
	PostgresSSL   string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	RunMigrations bool   `env:"POSTGRES_RUN_MIGRATIONS" envDefault:"false"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`

	// Redis (event idempotency)
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaEnabled        bool     `env:"KAFKA_ENABLED" envDefault:"true"`
	KafkaBrokers        []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaGroupID        string   `env:"KAFKA_GROUP_ID" envDefault:"search-service"`
	KafkaDLQEnabled     bool     `env:"KAFKA_DLQ_ENABLED" envDefault:"true"`
	IdempotencyTTLHours int      `env:"EVENT_IDEMPOTENCY_TTL_HOURS" envDefault:"24"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load search config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	switch c.SearchEngine {
	case EngineElasticsearch:
		if len(c.ElasticsearchURLs) == 0 {
			return fmt.Errorf("ELASTICSEARCH_URL is required")
		}
	case EngineMemory:
	default:
		return fmt.Errorf("SEARCH_ENGINE must be %q or %q, got %q", EngineElasticsearch, EngineMemory, c.SearchEngine)
	}
	if c.AutocompleteMinGram < 1 || c.AutocompleteMaxGram < c.AutocompleteMinGram {
		return fmt.Errorf("invalid autocomplete gram range: %d..%d", c.AutocompleteMinGram, c.AutocompleteMaxGram)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	if c.ESBreakerFailureRatio <= 0 || c.ESBreakerFailureRatio > 1.0 {
		return fmt.Errorf("ES_BREAKER_FAILURE_RATIO must be in (0, 1], got %f", c.ESBreakerFailureRatio)
	}
	return nil
}

// Postgres returns the pool configuration for the relational store. The
// search service only reads, so sessions are opened read-only.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
		ReadOnly:        !c.RunMigrations,
	}
}

// Redis returns the Redis client configuration.
func (c *Config) Redis() database.RedisConfig {
	rc := database.DefaultRedisConfig()
	rc.Host = c.RedisHost
	rc.Port = c.RedisPort
	rc.Password = c.RedisPassword
	rc.DB = c.RedisDB
	return rc
}

// Elasticsearch returns the engine configuration without a transport.
func (c *Config) Elasticsearch() esengine.Config {
	return esengine.Config{
		Addresses:   c.ElasticsearchURLs,
		Username:    c.ElasticsearchUsername,
		Password:    c.ElasticsearchPassword,
		IndexPrefix: c.ElasticsearchIndexPrefix,
		MinGram:     c.AutocompleteMinGram,
		MaxGram:     c.AutocompleteMaxGram,
	}
}

// Breaker returns the circuit breaker settings for the Elasticsearch transport.
func (c *Config) Breaker() httpclient.CircuitBreakerConfig {
	bc := httpclient.DefaultCircuitBreakerConfig("elasticsearch")
	bc.Timeout = time.Duration(c.ESBreakerTimeoutSecs) * time.Second
	bc.FailureRatio = c.ESBreakerFailureRatio
	bc.MinRequests = c.ESBreakerMinRequests
	return bc
}

// Tracing returns the OpenTelemetry configuration.
func (c *Config) Tracing() tracing.Config {
	tc := tracing.DefaultConfig("search-service")
	tc.Environment = c.Environment
	tc.Enabled = c.OTELEnabled
	tc.OTLPEndpoint = c.OTELEndpoint
	tc.SampleRate = c.OTELSampleRate
	return tc
}

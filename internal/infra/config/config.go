// Package config provides application-wide configuration loaded from env vars.
// All fields have safe defaults so the binary runs locally without any env setup;
// provider keys and account passwords stay empty until set.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds runtime configuration for OpenFreeAI.
type Config struct {
	// HTTP
	HTTPHost string `env:"OFA_HTTP_HOST" envDefault:"0.0.0.0"` // OFA_HTTP_HOST — default: "0.0.0.0"
	HTTPPort int    `env:"OFA_HTTP_PORT" envDefault:"5000"`    // OFA_HTTP_PORT — default: 5000

	// Client
	ServerURL string `env:"OFA_SERVER_URL" envDefault:"http://localhost:5000"` // OFA_SERVER_URL — default: "http://localhost:5000" (ask)

	// Relational store (catalog, history, usage)
	DBPath string `env:"OFA_DB_PATH" envDefault:"data/openfreeai.db"` // OFA_DB_PATH — default: "data/openfreeai.db"

	// Broker
	RedisHost      string        `env:"REDIS_HOST" envDefault:"localhost"`        // REDIS_HOST — default: "localhost"
	RedisPort      int           `env:"REDIS_PORT" envDefault:"6379"`             // REDIS_PORT — default: 6379
	RedisPassword  string        `env:"REDIS_PASSWORD"`                           // REDIS_PASSWORD — default: none
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`                  // REDIS_DB — default: 0
	QueueName      string        `env:"OFA_QUEUE_NAME" envDefault:"prompts"`      // OFA_QUEUE_NAME — default: "prompts"
	KeyPrefix      string        `env:"OFA_KEY_PREFIX" envDefault:"ofa"`          // OFA_KEY_PREFIX — default: "ofa"
	JobTTL         time.Duration `env:"OFA_JOB_TTL" envDefault:"24h"`             // OFA_JOB_TTL — default: 24h
	DequeueTimeout time.Duration `env:"OFA_DEQUEUE_TIMEOUT" envDefault:"5s"`      // OFA_DEQUEUE_TIMEOUT — default: 5s
	Concurrency    int           `env:"OFA_WORKER_CONCURRENCY" envDefault:"4"`    // OFA_WORKER_CONCURRENCY — default: 4

	// LLM
	LLMBaseURL    string        `env:"LLM_BASE_URL" envDefault:"https://openrouter.ai/api/v1"` // LLM_BASE_URL — default: OpenRouter
	LLMAPIKey     string        `env:"OPENAI_API_KEY"`                                         // OPENAI_API_KEY — default: none
	LLMTimeout    time.Duration `env:"OFA_LLM_TIMEOUT" envDefault:"60s"`                       // OFA_LLM_TIMEOUT — default: 60s
	OllamaBaseURL string        `env:"OLLAMA_BASE_URL" envDefault:"http://localhost:11434"`    // OLLAMA_BASE_URL — default: "http://localhost:11434"
	GeminiAPIKey  string        `env:"GEMINI_API_KEY"`                                         // GEMINI_API_KEY — default: none (gemini/ models disabled)

	// Retry
	RetryMaxAttempts int           `env:"OFA_RETRY_MAX_ATTEMPTS" envDefault:"5"`  // OFA_RETRY_MAX_ATTEMPTS — default: 5
	RetryBaseDelay   time.Duration `env:"OFA_RETRY_BASE_DELAY" envDefault:"1s"`   // OFA_RETRY_BASE_DELAY — default: 1s
	RetryMaxDelay    time.Duration `env:"OFA_RETRY_MAX_DELAY" envDefault:"30s"`   // OFA_RETRY_MAX_DELAY — default: 30s
	RetryJitter      float64       `env:"OFA_RETRY_JITTER" envDefault:"0.5"`      // OFA_RETRY_JITTER — default: 0.5

	// Auth
	JWTSecret     string        `env:"JWT_SECRET"`                // JWT_SECRET — default: random per process
	JWTExpiry     time.Duration `env:"JWT_EXPIRY" envDefault:"2h"` // JWT_EXPIRY — default: 2h
	AdminPassword string        `env:"OFA_ADMIN_PASSWORD"`        // OFA_ADMIN_PASSWORD — default: none (admin disabled)
	UserPassword  string        `env:"OFA_USER_PASSWORD"`         // OFA_USER_PASSWORD — default: none (user disabled)

	// Logging
	LogLevel  string `env:"OFA_LOG_LEVEL" envDefault:"info"`  // OFA_LOG_LEVEL — default: "info"
	LogFormat string `env:"OFA_LOG_FORMAT" envDefault:"text"` // OFA_LOG_FORMAT — default: "text" ("json")
}

// Load reads an optional .env file, then the environment, and validates.
func Load() (Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()
	return Parse()
}

// Parse reads the environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges that env parsing cannot express.
func (c Config) Validate() error {
	var errs []error
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		errs = append(errs, errors.New("OFA_HTTP_PORT must be between 1 and 65535"))
	}
	if c.RedisPort <= 0 || c.RedisPort > 65535 {
		errs = append(errs, errors.New("REDIS_PORT must be between 1 and 65535"))
	}
	if c.Concurrency < 1 {
		errs = append(errs, errors.New("OFA_WORKER_CONCURRENCY must be at least 1"))
	}
	if c.JobTTL <= 0 {
		errs = append(errs, errors.New("OFA_JOB_TTL must be positive"))
	}
	if c.DequeueTimeout <= 0 {
		errs = append(errs, errors.New("OFA_DEQUEUE_TIMEOUT must be positive"))
	}
	if c.RetryMaxAttempts < 1 {
		errs = append(errs, errors.New("OFA_RETRY_MAX_ATTEMPTS must be at least 1"))
	}
	if c.RetryJitter < 0 || c.RetryJitter > 1 {
		errs = append(errs, errors.New("OFA_RETRY_JITTER must be within [0,1]"))
	}
	if c.JWTExpiry <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRY must be positive"))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("OFA_LOG_FORMAT %q must be text or json", c.LogFormat))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %w", errors.Join(errs...))
	}
	return nil
}

// RedisAddr is host:port for the broker.
func (c Config) RedisAddr() string {
	return net.JoinHostPort(c.RedisHost, strconv.Itoa(c.RedisPort))
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"

	"github.com/zoumson/OpenFreeAI/internal/api/handlers"
	"github.com/zoumson/OpenFreeAI/internal/domain/catalog"
	"github.com/zoumson/OpenFreeAI/internal/domain/history"
	"github.com/zoumson/OpenFreeAI/internal/domain/job"
	"github.com/zoumson/OpenFreeAI/internal/infra/config"
	"github.com/zoumson/OpenFreeAI/internal/infra/eventbus"
	"github.com/zoumson/OpenFreeAI/internal/infra/llm"
	"github.com/zoumson/OpenFreeAI/internal/infra/metrics"
	"github.com/zoumson/OpenFreeAI/internal/infra/redisstore"
	"github.com/zoumson/OpenFreeAI/internal/infra/sqlite"
	"github.com/zoumson/OpenFreeAI/internal/server"
)

// stderr receives logs and command errors; stdout stays free for command
// output and the MCP protocol.
var stderr io.Writer = os.Stderr

// fail reports err and returns exit code 1.
func fail(err error) int {
	fmt.Fprintln(stderr, "error:", err) //nolint:errcheck
	return 1
}

func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ensureDataDir creates the parent directory of a database file.
func ensureDataDir(path string) error {
	if path == sqlite.MemoryPath {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	return nil
}

// openDB creates the parent directory when needed and applies migrations.
func openDB(ctx context.Context, path string) (*bun.DB, error) {
	if err := ensureDataDir(path); err != nil {
		return nil, err
	}
	return sqlite.OpenMigrated(ctx, path)
}

// env holds the connections shared by the long-running commands.
type env struct {
	cfg     config.Config
	logger  *slog.Logger
	db      *bun.DB
	redis   *redis.Client
	store   *redisstore.Store
	catalog *catalog.Service
	history *history.Repository
	metrics *metrics.Collector
}

func newEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, stderr)
	slog.SetDefault(logger)

	db, err := openDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}

	client := redisstore.NewClient(cfg.RedisAddr(), cfg.RedisPassword, cfg.RedisDB)
	store := redisstore.New(client, redisstore.Options{
		Prefix:       cfg.KeyPrefix,
		Queue:        cfg.QueueName,
		TTL:          cfg.JobTTL,
		BlockTimeout: cfg.DequeueTimeout,
	})
	if err := store.Ping(ctx); err != nil {
		_ = client.Close()
		_ = db.Close()
		return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr(), err)
	}

	return &env{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		redis:   client,
		store:   store,
		catalog: catalog.NewService(db),
		history: history.NewRepository(db),
		metrics: metrics.NewCollector(),
	}, nil
}

func (e *env) Close() {
	if err := errors.Join(e.redis.Close(), e.db.Close()); err != nil {
		e.logger.Warn("close connections", "error", err)
	}
}

// newCompleter routes ollama/ and gemini/ ids to their providers and every
// other id to the OpenAI-compatible endpoint, under the retry policy.
func (e *env) newCompleter(ctx context.Context) (job.Completer, func(), error) {
	router := llm.NewRouter(llm.NewOpenAIProvider(e.cfg.LLMBaseURL, e.cfg.LLMAPIKey, e.cfg.LLMTimeout))
	router.Register("ollama", llm.NewOllamaProvider(e.cfg.OllamaBaseURL, e.cfg.LLMTimeout))

	cleanup := func() {}
	if e.cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGeminiProvider(ctx, e.cfg.GeminiAPIKey)
		if err != nil {
			return nil, nil, err
		}
		router.Register("gemini", gemini)
		cleanup = func() { _ = gemini.Close() }
	}
	if e.cfg.LLMAPIKey == "" {
		e.logger.Warn("OPENAI_API_KEY is not set; requests to the default endpoint will likely be rejected")
	}

	policy := llm.RetryPolicy{
		MaxAttempts: e.cfg.RetryMaxAttempts,
		BaseDelay:   e.cfg.RetryBaseDelay,
		MaxDelay:    e.cfg.RetryMaxDelay,
		Multiplier:  2,
		Jitter:      e.cfg.RetryJitter,
	}
	if err := policy.Validate(); err != nil {
		cleanup()
		return nil, nil, err
	}
	completer := llm.NewRetryingCompleter(router, policy,
		llm.WithRetryLogger(e.logger),
		llm.WithRetryHook(e.metrics.RecordRetry),
	)
	return completer, cleanup, nil
}

// newMetricsServer exposes /metrics and /health for processes that do not
// run the API, such as a standalone worker.
func (e *env) newMetricsServer(addr string) (*server.Server, error) {
	host, rawPort, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("metrics address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(rawPort)
	if err != nil || port < 0 || port > 65535 {
		return nil, fmt.Errorf("metrics address %q: invalid port", addr)
	}

	r := chi.NewRouter()
	r.Get("/health", handlers.Health)
	r.Handle("/metrics", e.metrics.Handler())

	cfg := server.DefaultConfig()
	cfg.Host, cfg.Port = host, port
	return server.NewServer(r, cfg, e.logger), nil
}

// dropRecorder counts events the bus could not deliver.
type dropRecorder interface {
	RecordDropped(topic string)
}

// dropHook counts and logs every event a slow subscriber misses. A dropped
// job.completed event is a history row that will never be written.
func dropHook(logger *slog.Logger, m dropRecorder) func(topic string) {
	return func(topic string) {
		m.RecordDropped(topic)
		logger.Warn("event dropped; subscriber is behind", "topic", topic)
	}
}

// pipeline is a worker pool plus the history recorder fed by its events.
type pipeline struct {
	worker   *job.Worker
	bus      *eventbus.Bus
	events   <-chan eventbus.Event
	recorder *history.Recorder
	cleanup  func()
}

func (e *env) newPipeline(ctx context.Context) (*pipeline, error) {
	completer, cleanup, err := e.newCompleter(ctx)
	if err != nil {
		return nil, err
	}
	bus := eventbus.New(eventbus.WithDropHook(dropHook(e.logger, e.metrics)))
	events := bus.Subscribe(job.TopicCompleted)

	worker := job.NewWorker(e.store, e.store, e.catalog, completer, job.WorkerConfig{
		Concurrency: e.cfg.Concurrency,
		Logger:      e.logger,
		Metrics:     e.metrics,
		Events:      bus,
	})
	return &pipeline{
		worker:   worker,
		bus:      bus,
		events:   events,
		recorder: history.NewRecorder(e.history, e.logger),
		cleanup:  cleanup,
	}, nil
}

// runWorker runs the pool until ctx is done. The recorder drains every
// completion published before the bus closes.
func (p *pipeline) runWorker(ctx context.Context) error {
	defer p.bus.Close()
	return p.worker.Run(ctx)
}

// runRecorder returns once the bus is closed.
func (p *pipeline) runRecorder(ctx context.Context) error {
	p.recorder.Run(context.WithoutCancel(ctx), p.events)
	return nil
}

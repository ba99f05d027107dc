// No t.Parallel() — env vars are process-global and not thread-safe.
package config

import (
	"strings"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	for _, key := range []string{"OFA_HTTP_PORT", "REDIS_HOST", "OFA_JOB_TTL", "LLM_BASE_URL", "OFA_RETRY_JITTER", "OFA_LOG_FORMAT", "OFA_SERVER_URL"} {
		t.Setenv(key, "")
	}

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.HTTPPort != 5000 {
		t.Errorf("HTTPPort = %d; want 5000", cfg.HTTPPort)
	}
	if cfg.RedisAddr() != "localhost:6379" {
		t.Errorf("RedisAddr = %q; want localhost:6379", cfg.RedisAddr())
	}
	if cfg.JobTTL != 24*time.Hour {
		t.Errorf("JobTTL = %v; want 24h", cfg.JobTTL)
	}
	if cfg.LLMBaseURL != "https://openrouter.ai/api/v1" {
		t.Errorf("LLMBaseURL = %q", cfg.LLMBaseURL)
	}
	if cfg.RetryMaxAttempts != 5 || cfg.RetryBaseDelay != time.Second || cfg.RetryJitter != 0.5 {
		t.Errorf("retry defaults = %d/%v/%v", cfg.RetryMaxAttempts, cfg.RetryBaseDelay, cfg.RetryJitter)
	}
	if cfg.ServerURL != "http://localhost:5000" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.QueueName != "prompts" || cfg.KeyPrefix != "ofa" {
		t.Errorf("queue/prefix = %q/%q", cfg.QueueName, cfg.KeyPrefix)
	}
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("OFA_HTTP_PORT", "8081")
	t.Setenv("REDIS_HOST", "redis.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("OFA_WORKER_CONCURRENCY", "16")
	t.Setenv("OFA_JOB_TTL", "90m")
	t.Setenv("OFA_LOG_FORMAT", "json")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.HTTPPort != 8081 {
		t.Errorf("HTTPPort = %d; want 8081", cfg.HTTPPort)
	}
	if cfg.RedisAddr() != "redis.internal:6380" {
		t.Errorf("RedisAddr = %q", cfg.RedisAddr())
	}
	if cfg.Concurrency != 16 {
		t.Errorf("Concurrency = %d; want 16", cfg.Concurrency)
	}
	if cfg.JobTTL != 90*time.Minute {
		t.Errorf("JobTTL = %v; want 90m", cfg.JobTTL)
	}
}

func TestParse_InvalidValues(t *testing.T) {
	t.Setenv("OFA_WORKER_CONCURRENCY", "0")
	t.Setenv("OFA_RETRY_JITTER", "2")

	_, err := Parse()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"OFA_WORKER_CONCURRENCY", "OFA_RETRY_JITTER"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err.Error(), want)
		}
	}
}

func TestParse_MalformedDuration(t *testing.T) {
	t.Setenv("OFA_JOB_TTL", "tomorrow")

	if _, err := Parse(); err == nil {
		t.Fatal("expected parse error for malformed duration")
	}
}

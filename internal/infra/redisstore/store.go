// Package redisstore keeps job records and the work queue in Redis.
//
// Layout:
//   - <prefix>:job:<id>      hash with the record fields, expiring after TTL
//   - <prefix>:queue:<name>  list of pending job ids (RPUSH / BLPOP)
//
// Status transitions run as Lua scripts so each one is a single atomic
// compare-and-set on the record's status field.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zoumson/OpenFreeAI/internal/domain/job"
)

// Options configures key naming and timing.
type Options struct {
	Prefix       string        // default "ofa"
	Queue        string        // default "prompts"
	TTL          time.Duration // record retention, default 24h
	BlockTimeout time.Duration // BLPOP wait, default 5s
}

func (o Options) withDefaults() Options {
	if o.Prefix == "" {
		o.Prefix = "ofa"
	}
	if o.Queue == "" {
		o.Queue = "prompts"
	}
	if o.TTL <= 0 {
		o.TTL = 24 * time.Hour
	}
	if o.BlockTimeout <= 0 {
		o.BlockTimeout = 5 * time.Second
	}
	return o
}

// Store implements job.Store and job.Queue.
type Store struct {
	client *redis.Client
	opts   Options
}

var (
	_ job.Store = (*Store)(nil)
	_ job.Queue = (*Store)(nil)
)

// New wraps an existing client. The caller owns the client.
func New(client *redis.Client, opts Options) *Store {
	return &Store{client: client, opts: opts.withDefaults()}
}

// NewClient builds a go-redis client for addr.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) jobKey(id string) string {
	return fmt.Sprintf("%s:job:%s", s.opts.Prefix, id)
}

func (s *Store) queueKey() string {
	return fmt.Sprintf("%s:queue:%s", s.opts.Prefix, s.opts.Queue)
}

// Enqueue writes every record and pushes their ids in one MULTI/EXEC.
func (s *Store) Enqueue(ctx context.Context, records []*job.Record) error {
	if len(records) == 0 {
		return nil
	}
	ids := make([]any, len(records))
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, r := range records {
			key := s.jobKey(r.ID)
			pipe.HSet(ctx, key, encode(r))
			pipe.Expire(ctx, key, s.opts.TTL)
			ids[i] = r.ID
		}
		pipe.RPush(ctx, s.queueKey(), ids...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redisstore enqueue: %w", err)
	}
	return nil
}

// Get loads one record.
func (s *Store) Get(ctx context.Context, id string) (*job.Record, error) {
	fields, err := s.client.HGetAll(ctx, s.jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore get %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, job.ErrJobNotFound
	}
	return decode(id, fields)
}

// GetMany loads records in one pipelined round trip.
func (s *Store) GetMany(ctx context.Context, ids []string) ([]*job.Record, error) {
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.jobKey(id))
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redisstore get many: %w", err)
	}

	out := make([]*job.Record, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		rec, decodeErr := decode(ids[i], fields)
		if decodeErr != nil {
			return nil, decodeErr
		}
		out[i] = rec
	}
	return out, nil
}

// Claim moves PENDING → STARTED.
func (s *Store) Claim(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := claimScript.Run(ctx, s.client, []string{s.jobKey(id)},
		string(job.StatusPending), string(job.StatusStarted), formatTime(at),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redisstore claim %s: %w", id, err)
	}
	return scriptResult(res)
}

// Finish moves STARTED → SUCCESS|FAILURE and refreshes the record's TTL.
func (s *Store) Finish(ctx context.Context, id string, out job.Outcome) (bool, error) {
	if !out.Status.Terminal() {
		return false, fmt.Errorf("redisstore finish %s: %s is not a terminal status", id, out.Status)
	}
	payloadField, payload := fieldResult, out.Result
	if out.Status == job.StatusFailure {
		payloadField, payload = fieldError, out.Error
	}
	completedAt := out.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now().UTC()
	}

	res, err := finishScript.Run(ctx, s.client, []string{s.jobKey(id)},
		string(job.StatusStarted),
		string(out.Status),
		payloadField, payload,
		out.ResolvedModel,
		formatTime(completedAt),
		int64(s.opts.TTL/time.Second),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redisstore finish %s: %w", id, err)
	}
	return scriptResult(res)
}

// Dequeue pops the next id, waiting at most BlockTimeout.
func (s *Store) Dequeue(ctx context.Context) (string, error) {
	res, err := s.client.BLPop(ctx, s.opts.BlockTimeout, s.queueKey()).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redisstore dequeue: %w", err)
	}
	// BLPOP replies [key, value].
	if len(res) != 2 {
		return "", fmt.Errorf("redisstore dequeue: unexpected reply %v", res)
	}
	return res[1], nil
}

// QueueLength reports how many ids wait in the queue.
func (s *Store) QueueLength(ctx context.Context) (int64, error) {
	return s.client.LLen(ctx, s.queueKey()).Result()
}

func scriptResult(res int) (bool, error) {
	switch res {
	case 1:
		return true, nil
	case 0:
		return false, nil
	default:
		return false, job.ErrJobNotFound
	}
}

// ─── encoding ────────────────────────────────────────────────────────────────

const (
	fieldID            = "id"
	fieldPrompt        = "prompt"
	fieldModel         = "model"
	fieldModelIndex    = "model_index"
	fieldStream        = "stream"
	fieldStatus        = "status"
	fieldResult        = "result"
	fieldError         = "error"
	fieldResolvedModel = "resolved_model"
	fieldCreatedAt     = "created_at"
	fieldStartedAt     = "started_at"
	fieldCompletedAt   = "completed_at"
)

func encode(r *job.Record) map[string]any {
	m := map[string]any{
		fieldID:        r.ID,
		fieldPrompt:    r.Prompt,
		fieldModel:     r.Model,
		fieldStream:    strconv.FormatBool(r.Stream),
		fieldStatus:    string(r.Status),
		fieldCreatedAt: formatTime(r.CreatedAt),
	}
	if r.ModelIndex != nil {
		m[fieldModelIndex] = strconv.Itoa(*r.ModelIndex)
	}
	return m
}

func decode(id string, f map[string]string) (*job.Record, error) {
	status := job.Status(f[fieldStatus])
	if !status.Valid() {
		return nil, fmt.Errorf("redisstore decode %s: invalid status %q", id, f[fieldStatus])
	}
	r := &job.Record{
		ID:            id,
		Prompt:        f[fieldPrompt],
		Model:         f[fieldModel],
		Status:        status,
		ResolvedModel: f[fieldResolvedModel],
		CreatedAt:     parseTime(f[fieldCreatedAt]),
		StartedAt:     parseTime(f[fieldStartedAt]),
		CompletedAt:   parseTime(f[fieldCompletedAt]),
	}
	if v, ok := f[fieldModelIndex]; ok && v != "" {
		idx, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("redisstore decode %s: model_index: %w", id, err)
		}
		r.ModelIndex = &idx
	}
	r.Stream, _ = strconv.ParseBool(f[fieldStream])

	switch status {
	case job.StatusSuccess:
		r.Result = f[fieldResult]
	case job.StatusFailure:
		r.Error = f[fieldError]
	}
	return r, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

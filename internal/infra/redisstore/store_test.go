package redisstore_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoumson/OpenFreeAI/internal/domain/job"
	"github.com/zoumson/OpenFreeAI/internal/infra/redisstore"
)

func newTestStore(t *testing.T) (*redisstore.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisstore.NewClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })
	return redisstore.New(client, redisstore.Options{
		Prefix:       "test",
		Queue:        "prompts",
		TTL:          time.Hour,
		BlockTimeout: 50 * time.Millisecond,
	}), mr
}

func pending(id, model string) *job.Record {
	return &job.Record{
		ID:        id,
		Prompt:    "Hello",
		Model:     model,
		Status:    job.StatusPending,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestStore_EnqueueAndGet(t *testing.T) {
	t.Parallel()

	s, mr := newTestStore(t)
	ctx := context.Background()
	idx := 2
	withIndex := pending("j2", "")
	withIndex.ModelIndex = &idx
	withIndex.Stream = true

	require.NoError(t, s.Enqueue(ctx, []*job.Record{pending("j1", "a"), withIndex}))

	got, err := s.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, "a", got.Model)
	assert.Equal(t, job.StatusPending, got.Status)
	assert.Nil(t, got.ModelIndex)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), got.CreatedAt)

	got2, err := s.Get(ctx, "j2")
	require.NoError(t, err)
	require.NotNil(t, got2.ModelIndex)
	assert.Equal(t, 2, *got2.ModelIndex)
	assert.True(t, got2.Stream)

	n, err := s.QueueLength(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	ttl := mr.TTL("test:job:j1")
	assert.Greater(t, ttl, time.Duration(0))
}

func TestStore_Get_Unknown(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, job.ErrJobNotFound))
}

func TestStore_GetMany_PreservesOrderWithGaps(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Enqueue(ctx, []*job.Record{pending("j1", "a"), pending("j2", "b")}))

	recs, err := s.GetMany(ctx, []string{"j2", "nope", "j1"})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "b", recs[0].Model)
	assert.Nil(t, recs[1])
	assert.Equal(t, "a", recs[2].Model)
}

func TestStore_ClaimAndFinish(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Enqueue(ctx, []*job.Record{pending("j1", "a")}))

	ok, err := s.Claim(ctx, "j1", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Claim(ctx, "j1", time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "second claim must be refused")

	ok, err = s.Finish(ctx, "j1", job.Outcome{Status: job.StatusSuccess, Result: "done", ResolvedModel: "a"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Finish(ctx, "j1", job.Outcome{Status: job.StatusFailure, Error: "late"})
	require.NoError(t, err)
	assert.False(t, ok, "terminal status must not change")

	got, err := s.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, job.StatusSuccess, got.Status)
	assert.Equal(t, "done", got.Result)
	assert.Empty(t, got.Error)
	assert.False(t, got.StartedAt.IsZero())
	assert.False(t, got.CompletedAt.IsZero())
}

func TestStore_Finish_RequiresStarted(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Enqueue(ctx, []*job.Record{pending("j1", "a")}))

	ok, err := s.Finish(ctx, "j1", job.Outcome{Status: job.StatusFailure, Error: "x"})
	require.NoError(t, err)
	assert.False(t, ok, "PENDING cannot jump to a terminal state")

	_, err = s.Finish(ctx, "j1", job.Outcome{Status: job.StatusStarted})
	assert.Error(t, err)

	_, err = s.Claim(ctx, "ghost", time.Now())
	assert.True(t, errors.Is(err, job.ErrJobNotFound))
}

func TestStore_FailureStoresErrorOnly(t *testing.T) {
	t.Parallel()

	s, mr := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Enqueue(ctx, []*job.Record{pending("j1", "a")}))
	_, err := s.Claim(ctx, "j1", time.Now())
	require.NoError(t, err)
	_, err = s.Finish(ctx, "j1", job.Outcome{Status: job.StatusFailure, Error: "rate limited"})
	require.NoError(t, err)

	assert.Equal(t, "rate limited", mr.HGet("test:job:j1", "error"))
	assert.Empty(t, mr.HGet("test:job:j1", "result"))
}

func TestStore_Dequeue(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()

	id, err := s.Dequeue(ctx)
	require.NoError(t, err)
	assert.Empty(t, id, "empty queue times out with no id")

	require.NoError(t, s.Enqueue(ctx, []*job.Record{pending("j1", "a"), pending("j2", "b")}))
	first, err := s.Dequeue(ctx)
	require.NoError(t, err)
	second, err := s.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"j1", "j2"}, []string{first, second})
}

func TestStore_RecordsExpire(t *testing.T) {
	t.Parallel()

	s, mr := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Enqueue(ctx, []*job.Record{pending("j1", "a")}))

	mr.FastForward(2 * time.Hour)

	_, err := s.Get(ctx, "j1")
	assert.True(t, errors.Is(err, job.ErrJobNotFound))
}

func TestStore_EndToEndFanOut(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()
	catalog := staticCatalog{"a", "b", "c"}
	dispatcher := job.NewDispatcher(s, catalog, nil)
	poller := job.NewPoller(s)

	ids, err := dispatcher.Submit(ctx, job.Submission{Prompt: "Hello", Selection: job.ByNames{Names: []string{"a", "b"}}})
	require.NoError(t, err)

	snaps, err := poller.Poll(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, job.StatusPending, snaps[0].Status)
	assert.Equal(t, job.StatusPending, snaps[1].Status)

	worker := job.NewWorker(s, s, catalog, prefixCompleter("Hi from "), job.WorkerConfig{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	for range ids {
		id, err := s.Dequeue(ctx)
		require.NoError(t, err)
		worker.Process(ctx, id)
	}

	snaps, err = poller.Poll(ctx, append(ids, "does-not-exist"))
	require.NoError(t, err)
	assert.Equal(t, job.StatusSuccess, snaps[0].Status)
	assert.Equal(t, "Hi from a", snaps[0].ResultText())
	assert.Equal(t, job.StatusSuccess, snaps[1].Status)
	assert.Equal(t, "Hi from b", snaps[1].ResultText())
	assert.Equal(t, job.StatusNotFound, snaps[2].Status)

	_, err = dispatcher.Submit(ctx, job.Submission{Prompt: "Hello", Selection: job.ByNames{Names: []string{"a", "x"}}})
	var nf *job.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, []string{"x"}, nf.Names)

	n, err := s.QueueLength(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "rejected batch must not enqueue anything")
}

type staticCatalog []string

func (c staticCatalog) ListModels(context.Context) ([]string, error) { return c, nil }

func (c staticCatalog) Exists(_ context.Context, name string) (bool, error) {
	for _, m := range c {
		if m == name {
			return true, nil
		}
	}
	return false, nil
}

type prefixCompleter string

func (p prefixCompleter) Complete(_ context.Context, model, _ string, _ bool) (string, error) {
	return strings.TrimSpace(string(p)) + " " + model, nil
}

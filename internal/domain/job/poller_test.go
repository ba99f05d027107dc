package job

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoller_Poll_ScenarioFanOut(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture(echoCompleter(), "a", "b", "c")
	ids, err := f.dispatcher.Submit(context.Background(), Submission{
		Prompt:    "Hello",
		Selection: ByNames{Names: []string{"a", "b"}},
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	poller := NewPoller(f.store)
	before, err := poller.Poll(context.Background(), ids)
	require.NoError(t, err)
	for _, s := range before {
		assert.Equal(t, StatusPending, s.Status)
		assert.Nil(t, s.Result)
	}
	assert.False(t, Summarize(before).Done)

	for _, id := range ids {
		f.worker.Process(context.Background(), id)
	}

	after, err := poller.Poll(context.Background(), ids)
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, Snapshot{ID: ids[0], Status: StatusSuccess, Model: "a", Result: strPtr("Hi from a")}, stripTimes(after[0]))
	assert.Equal(t, Snapshot{ID: ids[1], Status: StatusSuccess, Model: "b", Result: strPtr("Hi from b")}, stripTimes(after[1]))
	assert.Equal(t, Summary{Total: 2, Success: 2, Done: true}, Summarize(after))

	again, err := poller.Poll(context.Background(), ids)
	require.NoError(t, err)
	assert.Equal(t, after, again, "terminal reads are stable")
}

func TestPoller_Poll_UnknownIDIsNotFound(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture(echoCompleter(), "a")
	id := f.submit(t, ByName{Name: "a"})

	snaps, err := NewPoller(f.store).Poll(context.Background(), []string{"does-not-exist", id})
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, Snapshot{ID: "does-not-exist", Status: StatusNotFound}, snaps[0])
	assert.Equal(t, StatusPending, snaps[1].Status)

	sum := Summarize(snaps)
	assert.Equal(t, 1, sum.NotFound)
	assert.False(t, sum.Done)
}

func TestPoller_Poll_EmptyInput(t *testing.T) {
	t.Parallel()

	snaps, err := NewPoller(newMemStore()).Poll(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, snaps)
	assert.True(t, Summarize(snaps).Done)
}

func TestPoller_Get(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture(&fakeCompleter{fn: func(string, string, bool) (string, error) {
		return "", errors.New("bad request")
	}}, "a")
	id := f.submit(t, ByName{Name: "a"})
	f.worker.Process(context.Background(), id)

	p := NewPoller(f.store)
	snap, err := p.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailure, snap.Status)
	assert.Contains(t, snap.Error, "bad request")
	assert.Nil(t, snap.Result)
	assert.NotNil(t, snap.CompletedAt)

	missing, err := p.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrJobNotFound))
	assert.Equal(t, StatusNotFound, missing.Status)
}

func TestSnapshotOf_HidesFieldsOfOtherStates(t *testing.T) {
	t.Parallel()

	// A running record never exposes result or error even if the store had them.
	rec := &Record{ID: "j", Status: StatusStarted, Result: "partial", Error: "x", Model: "m"}
	snap := SnapshotOf("j", rec)
	assert.Nil(t, snap.Result)
	assert.Empty(t, snap.Error)
	assert.Equal(t, "m", snap.Model)
}

func stripTimes(s Snapshot) Snapshot {
	s.CreatedAt = nil
	s.CompletedAt = nil
	return s
}

func TestSnapshotOf_EmptySuccessKeepsResult(t *testing.T) {
	t.Parallel()

	snap := SnapshotOf("j", &Record{ID: "j", Status: StatusSuccess, Model: "m", Result: ""})
	require.NotNil(t, snap.Result, "SUCCESS always carries a result")
	assert.Equal(t, "", *snap.Result)

	body, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"result":""`)

	failed, err := json.Marshal(SnapshotOf("k", &Record{ID: "k", Status: StatusFailure, Error: "boom"}))
	require.NoError(t, err)
	assert.NotContains(t, string(failed), `"result"`)
}

func strPtr(s string) *string { return &s }

package job

import (
	"context"
	"errors"
	"sync"
	"time"
)

// memStore is an in-memory Store + Queue with the same CAS rules as the Redis store.
type memStore struct {
	mu       sync.Mutex
	records  map[string]*Record
	queue    []string
	failNext error
}

func newMemStore() *memStore {
	return &memStore{records: map[string]*Record{}}
}

func (s *memStore) Enqueue(_ context.Context, records []*Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	for _, r := range records {
		cp := *r
		s.records[r.ID] = &cp
		s.queue = append(s.queue, r.ID)
	}
	return nil
}

func (s *memStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) GetMany(ctx context.Context, ids []string) ([]*Record, error) {
	out := make([]*Record, len(ids))
	for i, id := range ids {
		r, err := s.Get(ctx, id)
		if err != nil && !errors.Is(err, ErrJobNotFound) {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func (s *memStore) Claim(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return false, ErrJobNotFound
	}
	if r.Status != StatusPending {
		return false, nil
	}
	r.Status = StatusStarted
	r.StartedAt = at
	return true, nil
}

func (s *memStore) Finish(_ context.Context, id string, out Outcome) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return false, ErrJobNotFound
	}
	if r.Status != StatusStarted {
		return false, nil
	}
	r.Status = out.Status
	r.ResolvedModel = out.ResolvedModel
	r.CompletedAt = out.CompletedAt
	if out.Status == StatusSuccess {
		r.Result = out.Result
	} else {
		r.Error = out.Error
	}
	return true, nil
}

func (s *memStore) Dequeue(ctx context.Context) (string, error) {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Millisecond):
			return "", nil
		}
	}
	defer s.mu.Unlock()
	id := s.queue[0]
	s.queue = s.queue[1:]
	return id, nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// fakeCatalog is an ordered model list that counts lookups.
type fakeCatalog struct {
	mu      sync.Mutex
	models  []string
	lookups int
	err     error
}

func (c *fakeCatalog) ListModels(context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups++
	if c.err != nil {
		return nil, c.err
	}
	return append([]string(nil), c.models...), nil
}

func (c *fakeCatalog) Exists(_ context.Context, name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups++
	if c.err != nil {
		return false, c.err
	}
	for _, m := range c.models {
		if m == name {
			return true, nil
		}
	}
	return false, nil
}

// fakeCompleter answers from a function and records calls.
type fakeCompleter struct {
	mu    sync.Mutex
	fn    func(model, prompt string, stream bool) (string, error)
	calls []string
}

func (f *fakeCompleter) Complete(_ context.Context, model, prompt string, stream bool) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, model)
	f.mu.Unlock()
	return f.fn(model, prompt, stream)
}

func echoCompleter() *fakeCompleter {
	return &fakeCompleter{fn: func(model, _ string, _ bool) (string, error) {
		return "Hi from " + model, nil
	}}
}

// recordingBus captures published events.
type recordingBus struct {
	mu     sync.Mutex
	events []any
}

func (b *recordingBus) Publish(_ string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, payload)
}

// countingMetrics records calls for assertions.
type countingMetrics struct {
	mu        sync.Mutex
	submitted int
	finished  map[string]int
}

func (m *countingMetrics) RecordSubmitted(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitted += n
}

func (m *countingMetrics) RecordFinished(status, _ string, _ time.Duration, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finished == nil {
		m.finished = map[string]int{}
	}
	m.finished[status]++
}

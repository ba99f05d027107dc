// Package job implements the asynchronous prompt job lifecycle:
// submission (Dispatcher), execution (Worker) and status read-back (Poller).
//
// A job is one prompt against one model. Records live in a Store owned by the
// broker; this package only describes them and drives their transitions.
package job

import (
	"context"
	"time"
)

// Status is the lifecycle state of a job record.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusStarted Status = "STARTED"
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"

	// StatusNotFound is never stored. Poll reports it for ids the store does not know.
	StatusNotFound Status = "NOT_FOUND"
)

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// Valid reports whether s is one of the four stored states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusStarted, StatusSuccess, StatusFailure:
		return true
	}
	return false
}

// CanTransition reports whether from → to is an edge of the state machine.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusStarted
	case StatusStarted:
		return to.Terminal()
	default:
		return false
	}
}

// Record is the stored unit of work.
// Prompt, Model, ModelIndex and Stream are fixed at creation.
type Record struct {
	ID     string
	Prompt string
	// Model is empty when the job was submitted by catalog index; the worker
	// resolves ModelIndex at execution time and reports it as ResolvedModel.
	Model      string
	ModelIndex *int
	Stream     bool

	Status        Status
	Result        string // set only when Status == SUCCESS
	Error         string // set only when Status == FAILURE
	ResolvedModel string

	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// DisplayModel returns the model that ran (or will run) the job, when known.
func (r *Record) DisplayModel() string {
	if r.Model != "" {
		return r.Model
	}
	return r.ResolvedModel
}

// Outcome is the terminal write a worker applies to a STARTED record.
type Outcome struct {
	Status        Status // SUCCESS or FAILURE
	Result        string
	Error         string
	ResolvedModel string
	CompletedAt   time.Time
}

func succeeded(model, text string, at time.Time) Outcome {
	return Outcome{Status: StatusSuccess, Result: text, ResolvedModel: model, CompletedAt: at}
}

func failed(model, msg string, at time.Time) Outcome {
	return Outcome{Status: StatusFailure, Error: msg, ResolvedModel: model, CompletedAt: at}
}

// ─── collaborators ───────────────────────────────────────────────────────────

// Store holds job records keyed by id.
type Store interface {
	// Enqueue creates every record as PENDING and queues their ids, all or nothing.
	Enqueue(ctx context.Context, records []*Record) error
	// Get returns ErrJobNotFound for unknown or expired ids.
	Get(ctx context.Context, id string) (*Record, error)
	// GetMany returns one entry per id, nil where the record does not exist.
	GetMany(ctx context.Context, ids []string) ([]*Record, error)
	// Claim moves PENDING → STARTED. It reports false when the record is in any other state.
	Claim(ctx context.Context, id string, at time.Time) (bool, error)
	// Finish moves STARTED → SUCCESS|FAILURE. It reports false when the record is not STARTED.
	Finish(ctx context.Context, id string, outcome Outcome) (bool, error)
}

// Queue hands queued job ids to workers.
type Queue interface {
	// Dequeue blocks for a bounded time; it returns "" with a nil error when nothing arrived.
	Dequeue(ctx context.Context) (string, error)
}

// Catalog is the read-only view of known models.
type Catalog interface {
	ListModels(ctx context.Context) ([]string, error)
	Exists(ctx context.Context, name string) (bool, error)
}

// Completer calls the remote completion service. Stream asks for chunked
// delivery; the returned text is always the fully assembled response.
type Completer interface {
	Complete(ctx context.Context, model, prompt string, stream bool) (string, error)
}

// Publisher receives completion notifications (history, audit).
type Publisher interface {
	Publish(topic string, payload any)
}

// Metrics records lifecycle counters.
type Metrics interface {
	RecordSubmitted(count int)
	RecordFinished(status, model string, elapsed time.Duration, resultChars int)
}

type noopMetrics struct{}

func (noopMetrics) RecordSubmitted(int)                                {}
func (noopMetrics) RecordFinished(string, string, time.Duration, int) {}

// TopicCompleted is published with a Completion payload after every SUCCESS.
const TopicCompleted = "job.completed"

// Completion is the payload of TopicCompleted.
type Completion struct {
	JobID       string
	Model       string
	Prompt      string
	Result      string
	Streamed    bool
	CompletedAt time.Time
}

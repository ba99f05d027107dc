package job

import (
	"context"
	"fmt"
	"time"
)

// Snapshot is the caller-facing view of one job at one instant. Result is
// non-nil exactly when Status is SUCCESS, even for an empty completion.
type Snapshot struct {
	ID          string     `json:"id"`
	Status      Status     `json:"status"`
	Model       string     `json:"model,omitempty"`
	Result      *string    `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// SnapshotOf projects a record. A nil record becomes NOT_FOUND.
func SnapshotOf(id string, rec *Record) Snapshot {
	if rec == nil {
		return Snapshot{ID: id, Status: StatusNotFound}
	}
	s := Snapshot{
		ID:     rec.ID,
		Status: rec.Status,
		Model:  rec.DisplayModel(),
	}
	switch rec.Status {
	case StatusSuccess:
		result := rec.Result
		s.Result = &result
	case StatusFailure:
		s.Error = rec.Error
	}
	if !rec.CreatedAt.IsZero() {
		t := rec.CreatedAt
		s.CreatedAt = &t
	}
	if !rec.CompletedAt.IsZero() {
		t := rec.CompletedAt
		s.CompletedAt = &t
	}
	return s
}

// ResultText returns the result, or "" when there is none.
func (s Snapshot) ResultText() string {
	if s.Result == nil {
		return ""
	}
	return *s.Result
}

// Summary aggregates a poll over a fan-out request.
type Summary struct {
	Total    int  `json:"total"`
	Pending  int  `json:"pending"`
	Started  int  `json:"started"`
	Success  int  `json:"success"`
	Failure  int  `json:"failure"`
	NotFound int  `json:"not_found"`
	Done     bool `json:"done"`
}

// Summarize counts statuses. Done is true once no entry can still change,
// which treats NOT_FOUND as settled.
func Summarize(snaps []Snapshot) Summary {
	sum := Summary{Total: len(snaps)}
	for _, s := range snaps {
		switch s.Status {
		case StatusPending:
			sum.Pending++
		case StatusStarted:
			sum.Started++
		case StatusSuccess:
			sum.Success++
		case StatusFailure:
			sum.Failure++
		default:
			sum.NotFound++
		}
	}
	sum.Done = sum.Pending == 0 && sum.Started == 0
	return sum
}

// Poller reads job state back. It never blocks waiting for a transition.
type Poller struct {
	store Store
}

// NewPoller wires a Poller over store.
func NewPoller(store Store) *Poller {
	return &Poller{store: store}
}

// Poll returns one snapshot per id in input order. Unknown ids are NOT_FOUND;
// only a store failure produces an error.
func (p *Poller) Poll(ctx context.Context, ids []string) ([]Snapshot, error) {
	if len(ids) == 0 {
		return []Snapshot{}, nil
	}
	records, err := p.store.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("poll jobs: %w", err)
	}
	out := make([]Snapshot, len(ids))
	for i, id := range ids {
		var rec *Record
		if i < len(records) {
			rec = records[i]
		}
		out[i] = SnapshotOf(id, rec)
	}
	return out, nil
}

// Get returns one snapshot or ErrJobNotFound.
func (p *Poller) Get(ctx context.Context, id string) (Snapshot, error) {
	rec, err := p.store.Get(ctx, id)
	if err != nil {
		return Snapshot{ID: id, Status: StatusNotFound}, err
	}
	return SnapshotOf(id, rec), nil
}

package job

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Submission is one caller request: a prompt and where to send it.
type Submission struct {
	Prompt    string
	Selection Selection // nil means DefaultSelection
	Stream    bool
}

// Dispatcher validates submissions and enqueues one record per resolved model.
type Dispatcher struct {
	store   Store
	catalog Catalog
	metrics Metrics
	now     func() time.Time
	newID   func() string
}

// NewDispatcher wires a Dispatcher. metrics may be nil.
func NewDispatcher(store Store, catalog Catalog, metrics Metrics) *Dispatcher {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Dispatcher{
		store:   store,
		catalog: catalog,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   newJobID,
	}
}

// newJobID prefers time-ordered v7 ids and falls back to v4.
func newJobID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// target is one resolved destination of a submission.
type target struct {
	model string
	index *int
}

// Submit returns the new job ids in the order of the resolved models.
// Errors: *ValidationError for an empty prompt or empty model list,
// *NotFoundError when any named model is missing (nothing is enqueued).
func (d *Dispatcher) Submit(ctx context.Context, sub Submission) ([]string, error) {
	if strings.TrimSpace(sub.Prompt) == "" {
		return nil, &ValidationError{Field: "prompt", Reason: "must not be empty"}
	}

	sel := sub.Selection
	if sel == nil {
		sel = DefaultSelection()
	}
	targets, err := d.resolve(ctx, sel)
	if err != nil {
		return nil, err
	}

	now := d.now()
	records := make([]*Record, len(targets))
	ids := make([]string, len(targets))
	for i, t := range targets {
		records[i] = &Record{
			ID:         d.newID(),
			Prompt:     sub.Prompt,
			Model:      t.model,
			ModelIndex: t.index,
			Stream:     sub.Stream,
			Status:     StatusPending,
			CreatedAt:  now,
		}
		ids[i] = records[i].ID
	}

	if err := d.store.Enqueue(ctx, records); err != nil {
		return nil, fmt.Errorf("enqueue jobs: %w", err)
	}
	d.metrics.RecordSubmitted(len(records))
	return ids, nil
}

// resolve turns a Selection into targets. Names are checked against the
// catalog; a bare index is passed through unchecked.
func (d *Dispatcher) resolve(ctx context.Context, sel Selection) ([]target, error) {
	switch s := sel.(type) {
	case ByIndex:
		idx := s.Index
		return []target{{index: &idx}}, nil

	case ByName:
		if s.Name == "" {
			return nil, &ValidationError{Field: "model_name", Reason: "must not be empty"}
		}
		if err := d.requireModels(ctx, []string{s.Name}); err != nil {
			return nil, err
		}
		return []target{{model: s.Name}}, nil

	case ByNames:
		if len(s.Names) == 0 {
			return nil, &ValidationError{Field: "models", Reason: "must name at least one model"}
		}
		if err := d.requireModels(ctx, s.Names); err != nil {
			return nil, err
		}
		out := make([]target, len(s.Names))
		for i, name := range s.Names {
			out[i] = target{model: name}
		}
		return out, nil

	default:
		return nil, &ValidationError{Field: "selection", Reason: fmt.Sprintf("unsupported selection %T", sel)}
	}
}

// requireModels fails with a *NotFoundError listing every missing name.
func (d *Dispatcher) requireModels(ctx context.Context, names []string) error {
	var missing []string
	for _, name := range names {
		ok, err := d.catalog.Exists(ctx, name)
		if err != nil {
			return fmt.Errorf("lookup model %q: %w", name, err)
		}
		if !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &NotFoundError{Names: missing}
	}
	return nil
}

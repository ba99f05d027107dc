// Package history records completed prompts and per-model usage.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// PromptRecord is one successful completion.
type PromptRecord struct {
	bun.BaseModel `bun:"table:prompt_record,alias:p"`

	ID             int64     `bun:",pk,autoincrement" json:"id"`
	JobID          string    `bun:"job_id,unique,notnull" json:"job_id"`
	PromptText     string    `bun:"prompt_text,notnull" json:"prompt"`
	CompletionText string    `bun:"completion_text,notnull" json:"completion"`
	ModelName      string    `bun:"model_name,notnull" json:"model"`
	Streamed       bool      `bun:",notnull" json:"streamed"`
	CreatedAt      time.Time `bun:",notnull" json:"timestamp"`
}

// ModelUsage is a running token counter.
type ModelUsage struct {
	bun.BaseModel `bun:"table:model_usage,alias:u"`

	ModelName string    `bun:"model_name,pk"`
	Tokens    int64     `bun:",notnull"`
	UpdatedAt time.Time `bun:",notnull"`
}

// Query filters List.
type Query struct {
	Limit     int    // clamped to [1, MaxLimit]; 0 means DefaultLimit
	ModelName string // exact match when set
}

func (q Query) limit() int {
	switch {
	case q.Limit <= 0:
		return DefaultLimit
	case q.Limit > MaxLimit:
		return MaxLimit
	default:
		return q.Limit
	}
}

// Repository persists history and usage with bun.
type Repository struct {
	db  *bun.DB
	now func() time.Time
}

// NewRepository creates a Repository over a migrated database.
func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Save stores rec and adds tokens to its model's usage in one transaction.
// A record whose job id was already saved is ignored and reports false.
func (r *Repository) Save(ctx context.Context, rec *PromptRecord, tokens int64) (bool, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now()
	}
	saved := false
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewInsert().
			Model(rec).
			On("CONFLICT (job_id) DO NOTHING").
			Returning("NULL").
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		saved = true
		return addUsage(ctx, tx, rec.ModelName, tokens, r.now())
	})
	if err != nil {
		return false, fmt.Errorf("history save %s: %w", rec.JobID, err)
	}
	return saved, nil
}

// List returns records newest first.
func (r *Repository) List(ctx context.Context, q Query) ([]PromptRecord, error) {
	rows := []PromptRecord{}
	sel := r.db.NewSelect().Model(&rows).Order("id DESC").Limit(q.limit())
	if q.ModelName != "" {
		sel = sel.Where("model_name = ?", q.ModelName)
	}
	if err := sel.Scan(ctx); err != nil {
		return nil, fmt.Errorf("history list: %w", err)
	}
	return rows, nil
}

// AddUsage adds tokens to model's counter.
func (r *Repository) AddUsage(ctx context.Context, model string, tokens int64) error {
	if err := addUsage(ctx, r.db, model, tokens, r.now()); err != nil {
		return fmt.Errorf("history usage %s: %w", model, err)
	}
	return nil
}

// Usage returns every model's counter.
func (r *Repository) Usage(ctx context.Context) (map[string]int64, error) {
	var rows []ModelUsage
	if err := r.db.NewSelect().Model(&rows).Order("model_name ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("history usage: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, u := range rows {
		out[u.ModelName] = u.Tokens
	}
	return out, nil
}

// ResetUsage zeroes one model's counter, or all counters when model is empty.
// It returns how many counters were reset.
func (r *Repository) ResetUsage(ctx context.Context, model string) (int, error) {
	upd := r.db.NewUpdate().
		Model((*ModelUsage)(nil)).
		Set("tokens = 0").
		Set("updated_at = ?", r.now())
	if model != "" {
		upd = upd.Where("model_name = ?", model)
	} else {
		upd = upd.Where("1 = 1")
	}
	res, err := upd.Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("history reset usage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("history reset usage: %w", err)
	}
	return int(n), nil
}

func addUsage(ctx context.Context, db bun.IDB, model string, tokens int64, at time.Time) error {
	_, err := db.NewInsert().
		Model(&ModelUsage{ModelName: model, Tokens: tokens, UpdatedAt: at}).
		On("CONFLICT (model_name) DO UPDATE").
		Set("tokens = tokens + EXCLUDED.tokens").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

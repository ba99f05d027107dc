package catalog

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/uptrace/bun"
)

// Service stores the catalog in the llm_model table.
type Service struct {
	db  *bun.DB
	now func() time.Time
}

// NewService creates a Service over a migrated database.
func NewService(db *bun.DB) *Service {
	return &Service{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Add inserts provider/model:tag. It reports false when the model already exists.
func (s *Service) Add(ctx context.Context, provider, model, tag string) (bool, error) {
	m, err := newModel(provider, model, tag, s.now())
	if err != nil {
		return false, err
	}
	return insertModel(ctx, s.db, m)
}

// AddFull inserts a model given as provider/model[:tag].
func (s *Service) AddFull(ctx context.Context, full string) (bool, error) {
	provider, model, tag, err := ParseFullModel(full)
	if err != nil {
		return false, err
	}
	return s.Add(ctx, provider, model, tag)
}

// BulkAdd inserts every entry in one transaction, providers in sorted order,
// and returns how many were new. An invalid entry rolls the batch back.
func (s *Service) BulkAdd(ctx context.Context, batch Batch) (int, error) {
	providers := make([]string, 0, len(batch))
	for p := range batch {
		providers = append(providers, p)
	}
	sort.Strings(providers)

	count := 0
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		at := s.now()
		for _, p := range providers {
			for _, e := range batch[p] {
				m, err := newModel(p, e.Model, e.Tag, at)
				if err != nil {
					return fmt.Errorf("provider %q: %w", p, err)
				}
				added, err := insertModel(ctx, tx, m)
				if err != nil {
					return err
				}
				if added {
					count++
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("catalog bulk add: %w", err)
	}
	return count, nil
}

// LoadFile reads a JSON or YAML catalog file and bulk-adds it.
func (s *Service) LoadFile(ctx context.Context, path string) (int, error) {
	batch, err := ReadFile(path)
	if err != nil {
		return 0, err
	}
	return s.BulkAdd(ctx, batch)
}

// ListModels returns full model ids in insertion order. Index-based selection
// depends on this order being stable.
func (s *Service) ListModels(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.NewSelect().
		Model((*Model)(nil)).
		Column("full_model").
		Order("id ASC").
		Scan(ctx, &names)
	if err != nil {
		return nil, fmt.Errorf("catalog list: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// Models returns the full rows in insertion order.
func (s *Service) Models(ctx context.Context) ([]Model, error) {
	var rows []Model
	if err := s.db.NewSelect().Model(&rows).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("catalog models: %w", err)
	}
	return rows, nil
}

// Grouped lists models by provider.
func (s *Service) Grouped(ctx context.Context) (map[string][]Variant, error) {
	rows, err := s.Models(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]Variant)
	for _, m := range rows {
		out[m.Provider] = append(out[m.Provider], Variant{ModelName: m.ModelName, Tag: m.Tag})
	}
	return out, nil
}

// Exists reports whether full is in the catalog.
func (s *Service) Exists(ctx context.Context, full string) (bool, error) {
	ok, err := s.db.NewSelect().
		Model((*Model)(nil)).
		Where("full_model = ?", full).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("catalog exists: %w", err)
	}
	return ok, nil
}

// Remove deletes one model and reports whether it was present.
func (s *Service) Remove(ctx context.Context, full string) (bool, error) {
	res, err := s.db.NewDelete().
		Model((*Model)(nil)).
		Where("full_model = ?", full).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("catalog remove: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("catalog remove: %w", err)
	}
	return n > 0, nil
}

// Clear deletes every model and returns how many were removed.
func (s *Service) Clear(ctx context.Context) (int, error) {
	res, err := s.db.NewDelete().
		Model((*Model)(nil)).
		Where("1 = 1").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("catalog clear: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("catalog clear: %w", err)
	}
	return int(n), nil
}

// insertModel ignores duplicates on full_model and reports whether a row was written.
func insertModel(ctx context.Context, db bun.IDB, m *Model) (bool, error) {
	res, err := db.NewInsert().
		Model(m).
		On("CONFLICT (full_model) DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("catalog add %s: %w", m.FullModel, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("catalog add %s: %w", m.FullModel, err)
	}
	return n > 0, nil
}

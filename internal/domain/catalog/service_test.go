package catalog_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoumson/OpenFreeAI/internal/domain/catalog"
	"github.com/zoumson/OpenFreeAI/internal/domain/job"
	"github.com/zoumson/OpenFreeAI/internal/infra/sqlite"
)

var _ job.Catalog = (*catalog.Service)(nil)

func newService(t *testing.T) *catalog.Service {
	t.Helper()
	db, err := sqlite.OpenMigrated(context.Background(), sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return catalog.NewService(db)
}

func TestService_AddAndList(t *testing.T) {
	t.Parallel()

	s := newService(t)
	ctx := context.Background()

	added, err := s.Add(ctx, "qwen", "qwen3-coder", "free")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.Add(ctx, "qwen", "qwen3-coder", "free")
	require.NoError(t, err)
	assert.False(t, added, "duplicate full_model is skipped")

	added, err = s.AddFull(ctx, "openai/gpt-oss-20b:free")
	require.NoError(t, err)
	assert.True(t, added)

	_, err = s.Add(ctx, "local", "llama3", "")
	require.NoError(t, err)

	models, err := s.ListModels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"qwen/qwen3-coder:free", "openai/gpt-oss-20b:free", "local/llama3"}, models)

	ok, err := s.Exists(ctx, "local/llama3")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Exists(ctx, "local/llama3:")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_Add_Invalid(t *testing.T) {
	t.Parallel()

	s := newService(t)
	_, err := s.Add(context.Background(), "", "x", "")
	assert.True(t, errors.Is(err, catalog.ErrInvalidModel))

	_, err = s.AddFull(context.Background(), "no-slash")
	assert.True(t, errors.Is(err, catalog.ErrInvalidModel))
}

func TestService_EmptyCatalog(t *testing.T) {
	t.Parallel()

	s := newService(t)
	models, err := s.ListModels(context.Background())
	require.NoError(t, err)
	assert.Empty(t, models)
	assert.NotNil(t, models)
}

func TestService_BulkAdd_SortedProvidersAndCount(t *testing.T) {
	t.Parallel()

	s := newService(t)
	ctx := context.Background()
	_, err := s.AddFull(ctx, "z-ai/glm-4.5-air:free")
	require.NoError(t, err)

	count, err := s.BulkAdd(ctx, catalog.Batch{
		"z-ai":   {{Model: "glm-4.5-air", Tag: "free"}},
		"qwen":   {{Model: "qwen3-coder", Tag: "free"}},
		"google": {{Model: "gemma-3n-e2b-it", Tag: "free"}, {Model: "gemini-pro"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, count, "existing z-ai model is not counted")

	models, err := s.ListModels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"z-ai/glm-4.5-air:free",
		"google/gemma-3n-e2b-it:free",
		"google/gemini-pro",
		"qwen/qwen3-coder:free",
	}, models)
}

func TestService_BulkAdd_InvalidEntryRollsBack(t *testing.T) {
	t.Parallel()

	s := newService(t)
	ctx := context.Background()
	_, err := s.BulkAdd(ctx, catalog.Batch{
		"a": {{Model: "ok"}},
		"b": {{Model: ""}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, catalog.ErrInvalidModel))

	models, err := s.ListModels(ctx)
	require.NoError(t, err)
	assert.Empty(t, models)
}

func TestService_Grouped(t *testing.T) {
	t.Parallel()

	s := newService(t)
	ctx := context.Background()
	_, err := s.BulkAdd(ctx, catalog.Batch{
		"qwen":   {{Model: "qwen3-coder", Tag: "free"}},
		"google": {{Model: "gemma", Tag: "free"}, {Model: "gemini-pro"}},
	})
	require.NoError(t, err)

	grouped, err := s.Grouped(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string][]catalog.Variant{
		"google": {{ModelName: "gemma", Tag: "free"}, {ModelName: "gemini-pro"}},
		"qwen":   {{ModelName: "qwen3-coder", Tag: "free"}},
	}, grouped)
}

func TestService_RemoveAndClear(t *testing.T) {
	t.Parallel()

	s := newService(t)
	ctx := context.Background()
	_, err := s.BulkAdd(ctx, catalog.Batch{"p": {{Model: "a"}, {Model: "b"}, {Model: "c"}}})
	require.NoError(t, err)

	removed, err := s.Remove(ctx, "p/b")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = s.Remove(ctx, "p/b")
	require.NoError(t, err)
	assert.False(t, removed)

	n, err := s.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	models, err := s.ListModels(ctx)
	require.NoError(t, err)
	assert.Empty(t, models)
}

func TestService_LoadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "models.json")
	yamlPath := filepath.Join(dir, "models.yaml")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"qwen":[{"model":"qwen3-coder","tag":"free"}],"moonshotai":[{"model":"kimi-k2","tag":"free"}]}`), 0o600))
	require.NoError(t, os.WriteFile(yamlPath, []byte("ollama:\n  - model: llama3.2\n    tag: 3b\n  - model: qwen3-coder\n    tag: free\n"), 0o600))

	s := newService(t)
	ctx := context.Background()

	n, err := s.LoadFile(ctx, jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.LoadFile(ctx, yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	models, err := s.ListModels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"moonshotai/kimi-k2:free", "qwen/qwen3-coder:free", "ollama/llama3.2:3b", "ollama/qwen3-coder:free"}, models)

	_, err = s.LoadFile(ctx, filepath.Join(dir, "models.txt"))
	assert.Error(t, err)
	_, err = s.LoadFile(ctx, filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestDecode_Malformed(t *testing.T) {
	t.Parallel()

	_, err := catalog.Decode(strings.NewReader(`{"qwen": "not a list"}`), catalog.FormatJSON)
	assert.Error(t, err)

	batch, err := catalog.Decode(strings.NewReader(""), catalog.FormatYAML)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestFullModel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "qwen/qwen3-coder:free", catalog.FullModel("qwen", "qwen3-coder", "free"))
	assert.Equal(t, "ollama/llama3", catalog.FullModel("ollama", "llama3", ""))

	p, m, tag, err := catalog.ParseFullModel("cognitivecomputations/dolphin-mistral-24b-venice-edition:free")
	require.NoError(t, err)
	assert.Equal(t, []string{"cognitivecomputations", "dolphin-mistral-24b-venice-edition", "free"}, []string{p, m, tag})
}

// Package catalog keeps the list of models jobs may target.
package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// ErrInvalidModel is returned for entries without a provider or model name.
var ErrInvalidModel = errors.New("invalid model")

// Model is one catalog row. FullModel is the identifier jobs refer to.
type Model struct {
	bun.BaseModel `bun:"table:llm_model,alias:m"`

	ID        int64     `bun:",pk,autoincrement" json:"id"`
	Provider  string    `bun:",notnull" json:"provider"`
	ModelName string    `bun:"model_name,notnull" json:"model_name"`
	Tag       string    `bun:",notnull" json:"tag"`
	FullModel string    `bun:"full_model,unique,notnull" json:"full_model"`
	CreatedAt time.Time `bun:",nullzero,notnull" json:"created_at"`
}

// Entry is one model of a provider in a catalog file.
type Entry struct {
	Model string `json:"model" yaml:"model"`
	Tag   string `json:"tag,omitempty" yaml:"tag,omitempty"`
}

// Batch maps provider → models, the shape of catalog files and load requests.
type Batch map[string][]Entry

// Variant is a grouped listing item.
type Variant struct {
	ModelName string `json:"model_name"`
	Tag       string `json:"tag"`
}

// FullModel joins the parts as provider/model:tag, dropping ":" for an empty tag.
func FullModel(provider, model, tag string) string {
	if tag == "" {
		return provider + "/" + model
	}
	return provider + "/" + model + ":" + tag
}

// ParseFullModel splits provider/model[:tag].
func ParseFullModel(full string) (provider, model, tag string, err error) {
	provider, rest, ok := strings.Cut(strings.TrimSpace(full), "/")
	if !ok || provider == "" || rest == "" {
		return "", "", "", fmt.Errorf("%w: %q is not provider/model[:tag]", ErrInvalidModel, full)
	}
	model, tag, _ = strings.Cut(rest, ":")
	if model == "" {
		return "", "", "", fmt.Errorf("%w: %q has an empty model name", ErrInvalidModel, full)
	}
	return provider, model, tag, nil
}

func newModel(provider, model, tag string, at time.Time) (*Model, error) {
	provider = strings.TrimSpace(provider)
	model = strings.TrimSpace(model)
	tag = strings.TrimSpace(tag)
	if provider == "" || model == "" {
		return nil, fmt.Errorf("%w: provider and model are required", ErrInvalidModel)
	}
	return &Model{
		Provider:  provider,
		ModelName: model,
		Tag:       tag,
		FullModel: FullModel(provider, model, tag),
		CreatedAt: at,
	}, nil
}

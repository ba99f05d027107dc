package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for catalog files that are neither JSON nor YAML.
var ErrUnsupportedFormat = errors.New("unsupported catalog format")

// Format is a catalog file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf picks the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("catalog: %w %q (want .json, .yaml or .yml)", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// ReadFile decodes a catalog file.
func ReadFile(path string) (Batch, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	defer f.Close() //nolint:errcheck
	batch, err := Decode(f, format)
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", path, err)
	}
	return batch, nil
}

// Decode parses provider → [{model, tag}] from r.
func Decode(r io.Reader, format Format) (Batch, error) {
	var batch Batch
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&batch); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&batch); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
	if batch == nil {
		batch = Batch{}
	}
	return batch, nil
}

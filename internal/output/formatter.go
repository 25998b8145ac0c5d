package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "github.com/rohankatakam/gitcinema/internal/errors"
)

// Formatter renders command results
type Formatter interface {
	Format(w io.Writer, v interface{}) error
}

// Mode selects the output representation
type Mode string

const (
	ModeTable Mode = "table" // Human-readable tables (default)
	ModeJSON  Mode = "json"  // Indented JSON
	ModeYAML  Mode = "yaml"  // YAML with the JSON field names
)

// ParseMode resolves a --output flag value
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeTable, ModeJSON, ModeYAML:
		return m, nil
	case "":
		return ModeTable, nil
	default:
		return "", apperrors.ValidationErrorf("unknown output format %q (want table, json or yaml)", s)
	}
}

// NewFormatter creates the formatter for mode
func NewFormatter(mode Mode, useColor bool) Formatter {
	switch mode {
	case ModeJSON:
		return &JSONFormatter{}
	case ModeYAML:
		return &YAMLFormatter{}
	default:
		return &TableFormatter{Color: useColor}
	}
}

// JSONFormatter writes indented JSON
type JSONFormatter struct{}

func (f *JSONFormatter) Format(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// YAMLFormatter writes YAML. Values go through JSON first so field names,
// omitempty and raw JSON documents match the json mode.
type YAMLFormatter struct{}

func (f *YAMLFormatter) Format(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("convert result to yaml: %w", err)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

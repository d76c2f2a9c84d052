// Package serializer writes listing output as comma-joined text, JSON or YAML.
package serializer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/agnivade/levenshtein"
	"gopkg.in/yaml.v3"
)

// Format is an output format.
type Format string

const (
	// FormatText writes one comma-joined line per row.
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// suggestDistance is the largest edit distance for which ParseFormat
// suggests a known format.
const suggestDistance = 2

// SupportedFormats returns the names of all formats.
func SupportedFormats() []string {
	return []string{string(FormatText), string(FormatJSON), string(FormatYAML)}
}

// IsUnknown reports whether f is not a supported format.
func (f Format) IsUnknown() bool {
	switch f {
	case FormatText, FormatJSON, FormatYAML:
		return false
	default:
		return true
	}
}

// ParseFormat returns the Format named s. An unknown name yields an error
// that suggests the closest supported format when one is near.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if !f.IsUnknown() {
		return f, nil
	}

	best, bestDist := "", suggestDistance+1
	for _, name := range SupportedFormats() {
		if d := levenshtein.ComputeDistance(string(f), name); d < bestDist {
			best, bestDist = name, d
		}
	}
	if best != "" {
		return "", fmt.Errorf("unknown output format %q, did you mean %q?", s, best)
	}
	return "", fmt.Errorf("unknown output format %q, supported: %s", s, strings.Join(SupportedFormats(), ", "))
}

// Row is a record with a fixed column order for text output.
type Row interface {
	Fields() []string
}

// Serializer writes data in a format.
type Serializer interface {
	Serialize(ctx context.Context, data any) error
	Format() Format
}

var _ Serializer = (*Writer)(nil)

// Writer serializes to an io.Writer.
type Writer struct {
	format Format
	output io.Writer
	closer io.Closer
}

// NewWriter returns a Writer for output. Unknown formats fall back to JSON.
// A nil output writes to stdout.
func NewWriter(format Format, output io.Writer) *Writer {
	if format.IsUnknown() {
		format = FormatJSON
	}
	if output == nil {
		output = os.Stdout
	}
	return &Writer{
		format: format,
		output: output,
	}
}

// NewStdoutWriter returns a Writer to stdout.
func NewStdoutWriter(format Format) *Writer {
	return NewWriter(format, os.Stdout)
}

// NewFileWriterOrStdout returns a Writer to the file at path, or to stdout
// when path is empty or "-". The caller must Close the returned Writer.
func NewFileWriterOrStdout(format Format, path string) (*Writer, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == StdoutURI {
		return NewStdoutWriter(format), nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	w := NewWriter(format, f)
	w.closer = f
	return w, nil
}

// Format returns the writer's effective format.
func (w *Writer) Format() Format {
	return w.format
}

// Serialize writes data. Text output accepts a Row or a slice of Rows.
func (w *Writer) Serialize(ctx context.Context, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch w.format {
	case FormatText:
		return w.serializeText(data)
	case FormatYAML:
		enc := yaml.NewEncoder(w.output)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return fmt.Errorf("failed to serialize to yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w.output)
		enc.SetIndent("", "  ")
		if err := enc.Encode(data); err != nil {
			return fmt.Errorf("failed to serialize to json: %w", err)
		}
		return nil
	}
}

func (w *Writer) serializeText(data any) error {
	if r, ok := data.(Row); ok {
		return w.writeRow(r)
	}

	v := reflect.ValueOf(data)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return fmt.Errorf("text output requires rows, got %T", data)
	}
	for i := range v.Len() {
		r, ok := v.Index(i).Interface().(Row)
		if !ok {
			return fmt.Errorf("text output requires rows, got %s", v.Index(i).Type())
		}
		if err := w.writeRow(r); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeRow(r Row) error {
	if _, err := fmt.Fprintln(w.output, strings.Join(r.Fields(), ", ")); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	return nil
}

// Close closes the output file if the Writer owns one. It is safe to call
// more than once.
func (w *Writer) Close() error {
	if w.closer == nil {
		return nil
	}
	err := w.closer.Close()
	w.closer = nil
	return err
}

package report

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/cametumbling/sitecrawl/internal/crawler"
)

// JSONWriter outputs the crawl Response as JSON.
type JSONWriter struct {
	baseWriter
	indent string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithPrettyPrint enables two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = "  "
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write implements Writer.
func (w *JSONWriter) Write(result *crawler.Result) error {
	enc := json.NewEncoder(w.output)
	if w.indent != "" {
		enc.SetIndent("", w.indent)
	}
	return enc.Encode(NewResponse(result))
}

// YAMLWriter outputs the crawl Response as YAML.
type YAMLWriter struct {
	baseWriter
}

// NewYAMLWriter creates a YAMLWriter that outputs to the given writer.
func NewYAMLWriter(output io.Writer) *YAMLWriter {
	return &YAMLWriter{baseWriter: newBaseWriter(output)}
}

// Write implements Writer.
func (w *YAMLWriter) Write(result *crawler.Result) error {
	enc := yaml.NewEncoder(w.output)
	enc.SetIndent(2)
	if err := enc.Encode(NewResponse(result)); err != nil {
		return err
	}
	return enc.Close()
}

// Package report renders crawl results for people and tools.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/cametumbling/sitecrawl/internal/crawler"
)

// Format names an output format.
type Format string

// Supported formats.
const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// Formats lists every supported format.
var Formats = []Format{FormatText, FormatJSON, FormatYAML, FormatMarkdown}

// ParseFormat accepts a format name case-insensitively. "md" and "yml" are
// accepted as aliases.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want one of %v)", name, Formats)
	}
}

// Writer renders one crawl result.
type Writer interface {
	Write(result *crawler.Result) error
}

// New returns the Writer for format.
func New(format Format, output io.Writer) (Writer, error) {
	switch format {
	case FormatText:
		return NewTextWriter(output), nil
	case FormatJSON:
		return NewJSONWriter(output), nil
	case FormatYAML:
		return NewYAMLWriter(output), nil
	case FormatMarkdown:
		return NewMarkdownWriter(output), nil
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}

// Page is the serialized form of a PageRecord.
type Page struct {
	URL      string   `json:"url" yaml:"url"`
	Children []string `json:"children" yaml:"children"`
}

// Response is the crawl response body: the number of pages and each page
// with its links.
type Response struct {
	PageCount int    `json:"pageCount" yaml:"pageCount"`
	Pages     []Page `json:"pages" yaml:"pages"`
}

// NewResponse flattens a result into a Response.
func NewResponse(result *crawler.Result) Response {
	pages := make([]Page, 0, len(result.Pages))
	for _, p := range result.Pages {
		links := p.Links()
		children := make([]string, len(links))
		for i, link := range links {
			children[i] = link.String()
		}
		pages = append(pages, Page{URL: p.URL().String(), Children: children})
	}
	return Response{PageCount: len(pages), Pages: pages}
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

package report

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/cametumbling/sitecrawl/internal/crawler"
)

// TextWriter prints each page followed by its links, one per line.
type TextWriter struct {
	baseWriter
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer) *TextWriter {
	return &TextWriter{baseWriter: newBaseWriter(output)}
}

// Write implements Writer.
func (w *TextWriter) Write(result *crawler.Result) error {
	bw := bufio.NewWriter(w.output)

	for _, page := range result.Pages {
		fmt.Fprintf(bw, "Visited: %s\n", page.URL())
		fmt.Fprintf(bw, "Links found:\n")
		for _, link := range page.Links() {
			fmt.Fprintf(bw, "%s\n", link)
		}
		fmt.Fprintln(bw)
	}

	status := "complete"
	switch {
	case result.TimedOut:
		status = "timed out (partial results)"
	case result.Partial:
		status = "interrupted (partial results)"
	}
	fmt.Fprintf(bw, "Crawled %d pages from %s in %s: %d failed, %d unique URLs seen, %s\n",
		len(result.Pages), result.Root, result.Duration().Round(time.Millisecond), result.Stats.Failed, result.Seen, status)

	return bw.Flush()
}

package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"

	"github.com/cametumbling/sitecrawl/internal/crawler"
)

// MarkdownWriter outputs a GitHub Flavored Markdown report: a summary table,
// a status alert and one table row per page.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write implements Writer.
func (w *MarkdownWriter) Write(result *crawler.Result) error {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, result)
	w.writeStatus(md, result)
	w.writePages(md, result)

	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by sitecrawl*")

	return md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, result *crawler.Result) {
	md.H1("Crawl Report")
	md.PlainText("")

	rows := [][]string{
		{"Root", "`" + result.Root.String() + "`"},
		{"Started", result.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"Duration", result.Duration().Round(time.Millisecond).String()},
		{"Pages", strconv.Itoa(len(result.Pages))},
		{"Unique URLs seen", strconv.Itoa(result.Seen)},
		{"Failed", strconv.FormatInt(result.Stats.Failed, 10)},
	}
	if result.ID != "" {
		rows = append([][]string{{"Session", "`" + result.ID + "`"}}, rows...)
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeStatus(md *markdown.Markdown, result *crawler.Result) {
	switch {
	case result.TimedOut:
		md.Warningf("Session timed out; %d pages collected before the deadline.", len(result.Pages))
	case result.Partial:
		md.Cautionf("Crawl interrupted; %d pages collected.", len(result.Pages))
	case result.Stats.Failed > 0:
		md.Note(fmt.Sprintf("%d pages could not be fetched.", result.Stats.Failed))
	default:
		md.Tip("Crawl completed without failures.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writePages(md *markdown.Markdown, result *crawler.Result) {
	md.H2("Pages")
	md.PlainText("")

	if len(result.Pages) == 0 {
		md.PlainText("No pages were fetched.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(result.Pages))
	for _, page := range result.Pages {
		internal, external := 0, 0
		for _, link := range page.Links() {
			if link.SameHost(result.Root) {
				internal++
			} else {
				external++
			}
		}
		rows = append(rows, []string{
			page.URL().String(),
			strconv.Itoa(internal),
			strconv.Itoa(external),
		})
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Same-host links", "External links"},
		Rows:   rows,
	})
	md.PlainText("")
}

package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cametumbling/sitecrawl/internal/crawler"
	"github.com/cametumbling/sitecrawl/internal/report"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <url>",
		Short: "Crawl a site and print every page with its links",
		Long: `Crawl visits every page on the host of <url> that can be reached by
following links, fetching each page at most once.

Interrupting the crawl (Ctrl+C) or hitting the session timeout stops
dispatching new pages; the pages collected so far are still reported.

Examples:
  # Plain text report on stdout
  sitecrawl crawl https://example.com

  # Markdown report written to a file
  sitecrawl crawl https://example.com --format markdown -o report.md

  # Archive the crawl for later inspection with "sitecrawl show"
  sitecrawl crawl https://example.com --save`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd, a, args[0])
		},
	}

	cmd.Flags().StringP("format", "f", string(report.FormatText), "report format: text, json, yaml, markdown")
	cmd.Flags().StringP("output", "o", "", "write the report to this file instead of stdout")
	cmd.Flags().Bool("pretty", false, "indent JSON output")
	cmd.Flags().Bool("save", false, "store the crawl in the archive")

	return cmd
}

func runCrawl(cmd *cobra.Command, a *app, rootURL string) error {
	formatName, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")
	pretty, _ := cmd.Flags().GetBool("pretty")
	save, _ := cmd.Flags().GetBool("save")

	format, err := report.ParseFormat(formatName)
	if err != nil {
		return err
	}

	session, err := a.newSession()
	if err != nil {
		return err
	}
	outputLog, err := a.openOutputLog()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := session.Crawl(ctx, rootURL)
	if err != nil {
		return err
	}
	if result.Partial {
		a.logger.Warn("crawl stopped early, report is partial",
			"session", result.ID,
			"timed_out", result.TimedOut,
			"pages", len(result.Pages),
		)
	}

	if err := outputLog.Write(report.NewResponse(result)); err != nil {
		a.logger.Warn("failed to write output log", "error", err)
	}

	if save {
		db, err := a.openArchive()
		if err != nil {
			return err
		}
		if err := db.SaveCrawl(cmd.Context(), result); err != nil {
			return err
		}
		a.logger.Info("crawl archived", "session", result.ID, "path", db.Path())
	}

	return writeReport(cmd, format, outputPath, pretty, result)
}

// writeReport renders result to outputPath, or to the command's stdout if
// outputPath is empty.
func writeReport(cmd *cobra.Command, format report.Format, outputPath string, pretty bool, result *crawler.Result) error {
	var out io.Writer = cmd.OutOrStdout()
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	var w report.Writer
	if format == report.FormatJSON && pretty {
		w = report.NewJSONWriter(out, report.WithPrettyPrint())
	} else {
		var err error
		if w, err = report.New(format, out); err != nil {
			return err
		}
	}
	if err := w.Write(result); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

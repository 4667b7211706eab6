package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cametumbling/sitecrawl/internal/database"
	"github.com/cametumbling/sitecrawl/internal/report"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived crawls, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, a)
		},
	}

	cmd.Flags().IntP("limit", "n", 20, "maximum number of crawls to list (0 = all)")
	cmd.Flags().StringP("format", "f", "table", "output format: table, json, yaml")

	return cmd
}

func runHistory(cmd *cobra.Command, a *app) error {
	limit, _ := cmd.Flags().GetInt("limit")
	format, _ := cmd.Flags().GetString("format")

	db, err := a.openArchive()
	if err != nil {
		return err
	}
	summaries, err := db.ListCrawls(cmd.Context(), limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch format {
	case "table":
		return writeHistoryTable(cmd, summaries)
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(summaries)
	default:
		return fmt.Errorf("unknown history format %q", format)
	}
}

func writeHistoryTable(cmd *cobra.Command, summaries []database.CrawlSummary) error {
	if len(summaries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No crawls archived.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tROOT\tSTARTED\tDURATION\tPAGES\tFAILED\tSTATUS")
	for _, s := range summaries {
		status := "complete"
		switch {
		case s.TimedOut:
			status = "timed out"
		case s.Partial:
			status = "interrupted"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			s.ID,
			s.Root,
			s.StartedAt.Local().Format(time.DateTime),
			s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond),
			s.PageCount,
			s.Failed,
			status,
		)
	}
	return tw.Flush()
}

// NewShowCmd creates the show command.
func NewShowCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print the report of an archived crawl",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatName, _ := cmd.Flags().GetString("format")
			outputPath, _ := cmd.Flags().GetString("output")
			pretty, _ := cmd.Flags().GetBool("pretty")

			format, err := report.ParseFormat(formatName)
			if err != nil {
				return err
			}
			db, err := a.openArchive()
			if err != nil {
				return err
			}
			result, err := db.LoadCrawl(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeReport(cmd, format, outputPath, pretty, result)
		},
	}

	cmd.Flags().StringP("format", "f", string(report.FormatText), "report format: text, json, yaml, markdown")
	cmd.Flags().StringP("output", "o", "", "write the report to this file instead of stdout")
	cmd.Flags().Bool("pretty", false, "indent JSON output")

	return cmd
}

// NewDeleteCmd creates the delete command.
func NewDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Remove crawls from the archive",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openArchive()
			if err != nil {
				return err
			}
			for _, id := range args {
				if err := db.DeleteCrawl(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
			}
			return nil
		},
	}
}

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/cametumbling/sitecrawl/internal/api"
	"github.com/cametumbling/sitecrawl/internal/crawler"
	"github.com/cametumbling/sitecrawl/internal/metrics"
)

// NewServeCmd creates the serve command.
func NewServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the crawl HTTP API",
		Long: `Serve exposes crawling over HTTP.

Endpoints:
  POST /api/v1/crawl        {"domain": "https://example.com"}
  GET  /api/v1/crawls       archived crawls, newest first (?limit=N)
  GET  /api/v1/crawls/{id}  one archived crawl
  GET  /metrics             Prometheus metrics
  GET  /health              liveness probe`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, a)
		},
	}

	cmd.Flags().String("addr", "", "listen address (default from config, :8080)")
	cmd.Flags().Bool("no-archive", false, "do not store crawls")
	_ = a.v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func runServe(cmd *cobra.Command, a *app) error {
	noArchive, _ := cmd.Flags().GetBool("no-archive")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder, err := metrics.New(reg)
	if err != nil {
		return err
	}

	session, err := a.newSession(crawler.WithRecorder(recorder))
	if err != nil {
		return err
	}
	outputLog, err := a.openOutputLog()
	if err != nil {
		return err
	}

	opts := []api.Option{
		api.WithOutputLog(outputLog),
		api.WithMetrics(metrics.Handler(reg)),
		api.WithLogger(a.logger),
	}
	if !noArchive {
		db, err := a.openArchive()
		if err != nil {
			return err
		}
		opts = append(opts, api.WithArchive(db))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return api.NewServer(session, opts...).ListenAndServe(ctx, a.cfg.Server.Addr, api.ServeConfig{
		ReadHeaderTimeout: a.cfg.Server.ReadHeaderTimeout,
		ShutdownTimeout:   a.cfg.Server.ShutdownTimeout,
	})
}

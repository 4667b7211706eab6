package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cametumbling/sitecrawl/internal/config"
	"github.com/cametumbling/sitecrawl/internal/crawler"
	"github.com/cametumbling/sitecrawl/internal/database"
	"github.com/cametumbling/sitecrawl/internal/logging"
	"github.com/cametumbling/sitecrawl/internal/platform/htmlparser"
	"github.com/cametumbling/sitecrawl/internal/platform/httpclient"
)

// skipConfig marks commands that run without loading configuration.
const skipConfig = "sitecrawl/skip-config"

// app carries state shared by every command of one invocation.
type app struct {
	v          *viper.Viper
	configFile string
	cfg        *config.Config
	logger     *slog.Logger
	closers    []io.Closer
}

// NewRootCmd creates the root command for sitecrawl.
func NewRootCmd() *cobra.Command {
	cmd, _ := newRootCmd()
	return cmd
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{v: viper.New()}
	d := config.Default()

	cmd := &cobra.Command{
		Use:   "sitecrawl",
		Short: "Concurrent single-host web crawler",
		Long: `sitecrawl visits every page reachable from a root URL without leaving its
host and records the links found on each page.

Configuration is read from sitecrawl.yaml in the working directory or the
XDG config directory, then from SITECRAWL_* environment variables, then
from flags.`,
		Version:           getVersion(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default ./sitecrawl.yaml or "+config.DefaultPath()+")")
	pf.String("log-level", d.Log.Level, "log level: debug, info, warn, error")
	pf.String("log-format", d.Log.Format, "log format: text, json")
	pf.String("log-file", "", "also write logs to this rotated file")
	pf.String("data-dir", d.Storage.Dir, "directory holding the crawl archive")
	pf.IntP("concurrency", "c", d.Crawl.Concurrency, "number of concurrent fetches")
	pf.Duration("task-timeout", d.Crawl.TaskTimeout, "time limit for one page")
	pf.Duration("session-timeout", d.Crawl.SessionTimeout, "time limit for a whole crawl")
	pf.Duration("http-timeout", d.HTTP.Timeout, "HTTP request timeout")
	pf.String("user-agent", d.HTTP.UserAgent, "User-Agent header sent with every request")

	bindings := map[string]string{
		"log.level":             "log-level",
		"log.format":            "log-format",
		"log.file":              "log-file",
		"storage.dir":           "data-dir",
		"crawl.concurrency":     "concurrency",
		"crawl.task_timeout":    "task-timeout",
		"crawl.session_timeout": "session-timeout",
		"http.timeout":          "http-timeout",
		"http.user_agent":       "user-agent",
	}
	if err := bindFlags(a.v, pf, bindings); err != nil {
		panic(err)
	}

	cmd.AddCommand(NewCrawlCmd(a))
	cmd.AddCommand(NewServeCmd(a))
	cmd.AddCommand(NewHistoryCmd(a))
	cmd.AddCommand(NewShowCmd(a))
	cmd.AddCommand(NewDeleteCmd(a))
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd, a
}

// bindFlags binds each config key to the named flag.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, bindings map[string]string) error {
	for key, name := range bindings {
		flag := fs.Lookup(name)
		if flag == nil {
			return fmt.Errorf("binding %s: no flag named %q", key, name)
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("binding %s: %w", key, err)
		}
	}
	return nil
}

// Execute runs the root command.
func Execute() {
	cmd, a := newRootCmd()
	err := cmd.Execute()
	if closeErr := a.close(); closeErr != nil {
		fmt.Fprintln(os.Stderr, "Error:", closeErr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations[skipConfig] == "true" {
		return nil
	}

	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, closer, err := logging.New(cmd.ErrOrStderr(), logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	a.logger = logger
	a.closers = append(a.closers, closer)
	slog.SetDefault(logger)

	logger.Debug("configuration loaded", "file", a.v.ConfigFileUsed())
	return nil
}

// close releases the archive, output log and log file opened by commands.
func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// newSession wires the HTTP fetcher and HTML parser into a crawl session.
func (a *app) newSession(opts ...crawler.SessionOption) (*crawler.Session, error) {
	fetcher := crawler.NewLinkFetcher(httpclient.New(a.cfg.HTTPClientConfig()), htmlparser.Parser{})
	opts = append([]crawler.SessionOption{crawler.WithLogger(a.logger)}, opts...)
	return crawler.NewSession(fetcher, a.cfg.CrawlOptions(), opts...)
}

// openArchive opens the crawl archive; it is released by close.
func (a *app) openArchive() (*database.ResultDB, error) {
	db, err := database.Open(a.cfg.Storage.Dir)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db)
	return db, nil
}

// openOutputLog opens the crawl output log, or a discarding one if no
// output file is configured.
func (a *app) openOutputLog() (*logging.OutputLog, error) {
	if a.cfg.Log.OutputFile == "" {
		return logging.NewOutputLog(nil), nil
	}
	out, closer, err := logging.OpenOutputLog(a.cfg.Log.OutputFile, a.cfg.Log.MaxSizeMB, a.cfg.Log.MaxBackups, a.cfg.Log.MaxAgeDays)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closer)
	return out, nil
}

// Package config loads and validates sitecrawl configuration.
//
// Values are layered: built-in defaults, then a YAML file, then SITECRAWL_*
// environment variables, then command-line flags bound by the caller.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"

	"github.com/cametumbling/sitecrawl/internal/crawler"
	"github.com/cametumbling/sitecrawl/internal/platform/httpclient"
)

// AppName is used for XDG directory paths and the config file name.
const AppName = "sitecrawl"

// Config is the complete sitecrawl configuration.
type Config struct {
	Crawl   CrawlConfig   `mapstructure:"crawl" yaml:"crawl"`
	HTTP    HTTPConfig    `mapstructure:"http" yaml:"http"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
}

// CrawlConfig controls the crawl engine.
type CrawlConfig struct {
	// Concurrency is the worker pool size.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency" validate:"min=1,max=256"`
	// TaskTimeout bounds one page fetch and parse.
	TaskTimeout time.Duration `mapstructure:"task_timeout" yaml:"task_timeout" validate:"gt=0"`
	// SessionTimeout bounds a whole crawl.
	SessionTimeout time.Duration `mapstructure:"session_timeout" yaml:"session_timeout" validate:"gt=0"`
	// PollInterval is how long the coordinator waits on an empty queue.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval" validate:"gt=0"`
	// ShutdownGrace bounds the wait for straggling tasks at the end.
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace" yaml:"shutdown_grace" validate:"gt=0"`
}

// HTTPConfig controls the page fetcher.
type HTTPConfig struct {
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
	UserAgent   string        `mapstructure:"user_agent" yaml:"user_agent" validate:"required"`
	MaxBodySize int64         `mapstructure:"max_body_size" yaml:"max_body_size" validate:"gt=0"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr              string        `mapstructure:"addr" yaml:"addr" validate:"required,hostname_port"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gt=0"`
}

// LogConfig controls the process logger and the crawl output log.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
	// File, if set, receives a rotated copy of the process log.
	File string `mapstructure:"file" yaml:"file"`
	// OutputFile, if set, receives every crawl response as a JSON line.
	OutputFile string `mapstructure:"output_file" yaml:"output_file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days" validate:"gte=0"`
}

// StorageConfig controls the crawl archive.
type StorageConfig struct {
	// Dir holds the SQLite database.
	Dir string `mapstructure:"dir" yaml:"dir" validate:"required"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Crawl: CrawlConfig{
			Concurrency:    crawler.DefaultConcurrency,
			TaskTimeout:    crawler.DefaultTaskTimeout,
			SessionTimeout: crawler.DefaultSessionTimeout,
			PollInterval:   crawler.DefaultPollInterval,
			ShutdownGrace:  crawler.DefaultShutdownGrace,
		},
		HTTP: HTTPConfig{
			Timeout:     httpclient.DefaultTimeout,
			UserAgent:   httpclient.DefaultUserAgent,
			MaxBodySize: httpclient.DefaultMaxBodySize,
		},
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			OutputFile: filepath.Join(XDGStateDir(), "output.log"),
			MaxSizeMB:  5,
			MaxBackups: 3,
			MaxAgeDays: 30,
		},
		Storage: StorageConfig{
			Dir: XDGDataDir(),
		},
	}
}

// XDGDataDir returns the data directory, e.g. ~/.local/share/sitecrawl.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the config directory, e.g. ~/.config/sitecrawl.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGStateDir returns the state directory, e.g. ~/.local/state/sitecrawl.
func XDGStateDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the timeout ordering
// http.timeout < crawl.task_timeout < crawl.session_timeout.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.HTTP.Timeout >= c.Crawl.TaskTimeout {
		return fmt.Errorf("%w: http.timeout %v must be less than crawl.task_timeout %v",
			ErrTimeoutOrder, c.HTTP.Timeout, c.Crawl.TaskTimeout)
	}
	if c.Crawl.TaskTimeout >= c.Crawl.SessionTimeout {
		return fmt.Errorf("%w: crawl.task_timeout %v must be less than crawl.session_timeout %v",
			ErrTimeoutOrder, c.Crawl.TaskTimeout, c.Crawl.SessionTimeout)
	}
	return nil
}

// CrawlOptions converts the crawl section to session options.
func (c *Config) CrawlOptions() crawler.Options {
	return crawler.Options{
		Concurrency:    c.Crawl.Concurrency,
		TaskTimeout:    c.Crawl.TaskTimeout,
		SessionTimeout: c.Crawl.SessionTimeout,
		PollInterval:   c.Crawl.PollInterval,
		ShutdownGrace:  c.Crawl.ShutdownGrace,
	}
}

// HTTPClientConfig converts the http section to fetcher settings.
func (c *Config) HTTPClientConfig() httpclient.Config {
	return httpclient.Config{
		Timeout:     c.HTTP.Timeout,
		UserAgent:   c.HTTP.UserAgent,
		MaxBodySize: c.HTTP.MaxBodySize,
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileName is the config file name searched for without an extension.
const FileName = AppName

// SetDefaults registers every default on v so that environment variables
// can override keys that no config file mentions.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("crawl.concurrency", d.Crawl.Concurrency)
	v.SetDefault("crawl.task_timeout", d.Crawl.TaskTimeout)
	v.SetDefault("crawl.session_timeout", d.Crawl.SessionTimeout)
	v.SetDefault("crawl.poll_interval", d.Crawl.PollInterval)
	v.SetDefault("crawl.shutdown_grace", d.Crawl.ShutdownGrace)

	v.SetDefault("http.timeout", d.HTTP.Timeout)
	v.SetDefault("http.user_agent", d.HTTP.UserAgent)
	v.SetDefault("http.max_body_size", d.HTTP.MaxBodySize)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_header_timeout", d.Server.ReadHeaderTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.output_file", d.Log.OutputFile)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)

	v.SetDefault("storage.dir", d.Storage.Dir)
}

// Load reads configuration into a validated Config. If configFile is empty,
// sitecrawl.yaml is searched for in the working directory and then in the
// XDG config directory; a missing file is not an error. An explicit
// configFile must exist.
//
// Flags must already be bound on v by the caller.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(XDGConfigDir())
	}

	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WriteDefault writes the default configuration as YAML to path, creating
// its directory. An existing file is only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("encoding default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// DefaultPath is where init writes the config file.
func DefaultPath() string {
	return filepath.Join(XDGConfigDir(), FileName+".yaml")
}

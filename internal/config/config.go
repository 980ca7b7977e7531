// Package config loads vmtop settings from flags, VMTOP_* environment
// variables and an optional YAML file through viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/jondoveston/vmtop/internal/source"
)

// EnvPrefix is prepended (upper-cased) to every key for environment lookup.
const EnvPrefix = "vmtop"

// Config holds every runtime setting.
type Config struct {
	BaseURL         string        `mapstructure:"base_url"`
	Resource        string        `mapstructure:"resource"`
	Source          string        `mapstructure:"source"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxConcurrency  int           `mapstructure:"max_concurrency"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`

	PrometheusURL    string        `mapstructure:"prometheus_url"`
	PrometheusJob    string        `mapstructure:"prometheus_job"`
	PrometheusWindow time.Duration `mapstructure:"prometheus_window"`
	PrometheusStep   time.Duration `mapstructure:"prometheus_step"`

	NodeExporterURLs []string `mapstructure:"node_exporter_url"`

	ListenAddr string `mapstructure:"listen_addr"`

	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`
	LogFile  string `mapstructure:"log_file"`
}

var defaults = map[string]any{
	"base_url":          "http://127.0.0.1:5000",
	"resource":          "vm",
	"source":            source.BackendHTTP,
	"timeout":           5 * time.Second,
	"max_concurrency":   0,
	"refresh_interval":  5 * time.Second,
	"prometheus_url":    "",
	"prometheus_job":    "node_exporter",
	"prometheus_window": 10 * time.Minute,
	"prometheus_step":   15 * time.Second,
	"node_exporter_url": []string{},
	"listen_addr":       "127.0.0.1:8080",
	"log_level":         "info",
	"log_json":          false,
	"log_file":          "",
}

// Keys returns every configuration key, sorted.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Setup registers defaults and environment bindings on v.
func Setup(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for _, k := range Keys() {
		v.SetDefault(k, defaults[k])
		// explicit binding so Unmarshal sees env-only values
		if err := v.BindEnv(k); err != nil {
			return fmt.Errorf("failed to bind %s: %w", k, err)
		}
	}
	return nil
}

// Load reads the optional config file and decodes v into a validated Config.
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Source = strings.ToLower(strings.TrimSpace(cfg.Source))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := validateURL("base_url", c.BaseURL); err != nil {
		return err
	}
	if strings.ContainsAny(c.Resource, "/?#") {
		return fmt.Errorf("resource %q must be a plain path segment", c.Resource)
	}
	if !slices.Contains(source.Backends, c.Source) {
		return fmt.Errorf("unsupported source %q (want one of %s)", c.Source, strings.Join(source.Backends, ", "))
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be > 0")
	}
	if c.MaxConcurrency < 0 {
		return errors.New("max_concurrency must be >= 0")
	}
	if c.RefreshInterval <= 0 {
		return errors.New("refresh_interval must be > 0")
	}
	if c.PrometheusURL != "" {
		if err := validateURL("prometheus_url", c.PrometheusURL); err != nil {
			return err
		}
	}
	if c.PrometheusWindow <= 0 || c.PrometheusStep <= 0 {
		return errors.New("prometheus_window and prometheus_step must be > 0")
	}
	if c.PrometheusStep > c.PrometheusWindow {
		return errors.New("prometheus_step must not exceed prometheus_window")
	}
	for _, raw := range c.NodeExporterURLs {
		if err := validateURL("node_exporter_url", raw); err != nil {
			return err
		}
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		return errors.New("listen_addr is required")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	return nil
}

// SourceOptions maps the config onto backend options.
func (c Config) SourceOptions() source.Options {
	return source.Options{
		Backend: c.Source,
		HTTP: source.HTTPOptions{
			BaseURL:  c.BaseURL,
			Resource: c.Resource,
			Timeout:  c.Timeout,
		},
		Prometheus: source.PrometheusOptions{
			URL:     c.PrometheusURL,
			Job:     c.PrometheusJob,
			Window:  c.PrometheusWindow,
			Step:    c.PrometheusStep,
			Timeout: c.Timeout,
		},
		NodeExporter: source.NodeExporterOptions{
			URLs:    c.NodeExporterURLs,
			Timeout: c.Timeout,
		},
	}
}

func validateURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid %s %q: scheme must be http or https", key, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid %s %q: missing host", key, raw)
	}
	return nil
}

// Package config loads pipeline and serving configuration from a YAML
// file with environment variable overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/campaignlens/campaignlens/internal/logging"
	"github.com/campaignlens/campaignlens/internal/sizeclass"
)

// DefaultPath is the config file consulted when none is given.
const DefaultPath = "campaignlens.yaml"

type Config struct {
	Source    SourceConfig     `yaml:"source"`
	Output    OutputConfig     `yaml:"output"`
	Filter    FilterConfig     `yaml:"filter"`
	SizeRules []sizeclass.Rule `yaml:"size_rules"`
	Insights  InsightsConfig   `yaml:"insights"`
	Server    ServerConfig     `yaml:"server"`
	Catalog   CatalogConfig    `yaml:"catalog"`
	Notify    NotifyConfig     `yaml:"notify"`
	RunLog    RunLogConfig     `yaml:"runlog"`
	Snapshot  SnapshotConfig   `yaml:"snapshot"`
	Logging   logging.Config   `yaml:"logging"`
}

// SourceConfig locates the raw campaign export. Path accepts a local
// file path or a gs:// / s3:// object URI.
type SourceConfig struct {
	Path string `yaml:"path"`
}

// OutputConfig controls where the cleaned dataset is published.
type OutputConfig struct {
	Backend  string `yaml:"backend"` // "local" | "gcs" | "s3"
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	LocalDir string `yaml:"local_dir"`
	Endpoint string `yaml:"endpoint"` // custom S3 endpoint (B2/R2/MinIO)
	Region   string `yaml:"region"`
	Dataset  string `yaml:"dataset"`
	Version  string `yaml:"version"`
}

// FilterConfig is the optional denylist row filter. Rows whose free-text
// column contains any of the terms are dropped before derivation.
type FilterConfig struct {
	Enabled bool     `yaml:"enabled"`
	Column  string   `yaml:"column"`
	Terms   []string `yaml:"terms"`
}

// InsightsConfig configures the narrative collaborator. An empty APIKey
// makes the client permanently unavailable; there is no runtime flag.
type InsightsConfig struct {
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	Endpoint       string `yaml:"endpoint"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type ServerConfig struct {
	Addr                  string `yaml:"addr"`
	SessionTTLSeconds     int    `yaml:"session_ttl_seconds"`
	ReloadIntervalSeconds int    `yaml:"reload_interval_seconds"`
	CORSOrigin            string `yaml:"cors_origin"`
}

type CatalogConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
	Namespace   string `yaml:"namespace"`
}

type NotifyConfig struct {
	Mode     string `yaml:"mode"` // "none" | "file" | "http"
	Path     string `yaml:"path"`
	Endpoint string `yaml:"endpoint"`
}

type RunLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type SnapshotConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Path: "data/marketing_campaign_data.csv",
		},
		Output: OutputConfig{
			Backend:  "local",
			LocalDir: "./assets",
			Dataset:  "marketing_data",
			Version:  "v1",
		},
		Filter: FilterConfig{
			Enabled: false,
			Column:  "description",
			Terms:   []string{"adjustment", "discount", "bank charges"},
		},
		Insights: InsightsConfig{
			Model:          "gemini-1.5-flash-latest",
			Endpoint:       "https://generativelanguage.googleapis.com/v1beta",
			TimeoutSeconds: 15,
		},
		Server: ServerConfig{
			Addr:                  ":8080",
			SessionTTLSeconds:     3600,
			ReloadIntervalSeconds: 30,
			CORSOrigin:            "*",
		},
		Catalog: CatalogConfig{
			Namespace: "default",
		},
		Notify: NotifyConfig{
			Mode: "none",
		},
		RunLog: RunLogConfig{
			Enabled: true,
			Dir:     "runlog",
		},
		Logging: logging.Config{
			Format: "text",
			Level:  "info",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at
// path (or DefaultPath when present), then environment overrides.
// A .env file is honored when one exists.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found")
	}

	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad is Load for embedding contexts where a config error leaves
// nothing to do. The CLI proper uses Load so exit codes stay accurate.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	return cfg
}

// applyEnv overlays environment variables onto the config.
func applyEnv(cfg *Config) {
	cfg.Source.Path = getenvDefault("SOURCE_PATH", cfg.Source.Path)

	cfg.Output.Backend = getenvDefault("OUTPUT_BACKEND", cfg.Output.Backend)
	cfg.Output.Bucket = getenvDefault("OUTPUT_BUCKET", cfg.Output.Bucket)
	cfg.Output.Prefix = getenvDefault("OUTPUT_PREFIX", cfg.Output.Prefix)
	cfg.Output.LocalDir = getenvDefault("OUTPUT_DIR", cfg.Output.LocalDir)
	cfg.Output.Endpoint = getenvDefault("OUTPUT_S3_ENDPOINT", cfg.Output.Endpoint)
	cfg.Output.Region = getenvDefault("OUTPUT_S3_REGION", cfg.Output.Region)
	cfg.Output.Dataset = getenvDefault("DATASET_NAME", cfg.Output.Dataset)
	cfg.Output.Version = getenvDefault("DATASET_VERSION", cfg.Output.Version)

	cfg.Filter.Enabled = getenvBool("FILTER_ENABLED", cfg.Filter.Enabled)
	cfg.Filter.Column = getenvDefault("FILTER_COLUMN", cfg.Filter.Column)
	if v := os.Getenv("FILTER_TERMS"); v != "" {
		cfg.Filter.Terms = splitList(v)
	}

	cfg.Insights.APIKey = getenvDefault("GEMINI_API_KEY", cfg.Insights.APIKey)
	cfg.Insights.Model = getenvDefault("INSIGHTS_MODEL", cfg.Insights.Model)
	cfg.Insights.Endpoint = getenvDefault("INSIGHTS_ENDPOINT", cfg.Insights.Endpoint)
	cfg.Insights.TimeoutSeconds = getenvInt("INSIGHTS_TIMEOUT_SECONDS", cfg.Insights.TimeoutSeconds)

	cfg.Server.Addr = getenvDefault("SERVER_ADDR", cfg.Server.Addr)
	cfg.Server.SessionTTLSeconds = getenvInt("SESSION_TTL_SECONDS", cfg.Server.SessionTTLSeconds)
	cfg.Server.ReloadIntervalSeconds = getenvInt("RELOAD_INTERVAL_SECONDS", cfg.Server.ReloadIntervalSeconds)
	cfg.Server.CORSOrigin = getenvDefault("CORS_ORIGIN", cfg.Server.CORSOrigin)

	cfg.Catalog.PostgresDSN = getenvDefault("CATALOG_DSN", cfg.Catalog.PostgresDSN)
	cfg.Catalog.Namespace = getenvDefault("CATALOG_NAMESPACE", cfg.Catalog.Namespace)

	cfg.Notify.Mode = getenvDefault("NOTIFY_MODE", cfg.Notify.Mode)
	cfg.Notify.Path = getenvDefault("NOTIFY_PATH", cfg.Notify.Path)
	cfg.Notify.Endpoint = getenvDefault("NOTIFY_ENDPOINT", cfg.Notify.Endpoint)

	cfg.RunLog.Enabled = getenvBool("RUNLOG_ENABLED", cfg.RunLog.Enabled)
	cfg.RunLog.Dir = getenvDefault("RUNLOG_DIR", cfg.RunLog.Dir)

	cfg.Snapshot.Enabled = getenvBool("SNAPSHOT_ENABLED", cfg.Snapshot.Enabled)

	cfg.Logging.Format = getenvDefault("LOG_FORMAT", cfg.Logging.Format)
	cfg.Logging.Level = getenvDefault("LOG_LEVEL", cfg.Logging.Level)
}

// Validate checks enum-ish fields and cross-field requirements.
func (c *Config) Validate() error {
	switch c.Output.Backend {
	case "local", "gcs", "s3":
	default:
		return fmt.Errorf("invalid output backend %q (use local, gcs, or s3)", c.Output.Backend)
	}
	if c.Output.Backend != "local" && c.Output.Bucket == "" {
		return fmt.Errorf("output backend %q requires a bucket", c.Output.Backend)
	}
	if c.Output.Dataset == "" {
		return fmt.Errorf("output dataset name must not be empty")
	}

	switch c.Notify.Mode {
	case "", "none", "file", "http":
	default:
		return fmt.Errorf("invalid notify mode %q (use none, file, or http)", c.Notify.Mode)
	}
	if c.Notify.Mode == "file" && c.Notify.Path == "" {
		return fmt.Errorf("notify mode file requires a path")
	}
	if c.Notify.Mode == "http" && c.Notify.Endpoint == "" {
		return fmt.Errorf("notify mode http requires an endpoint")
	}

	if c.Server.SessionTTLSeconds <= 0 {
		return fmt.Errorf("session TTL must be positive, got %d", c.Server.SessionTTLSeconds)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level %q (use debug, info, warn, or error)", c.Logging.Level)
	}

	if len(c.SizeRules) > 0 {
		if _, err := sizeclass.NewTable(c.SizeRules); err != nil {
			return fmt.Errorf("size_rules: %w", err)
		}
	}
	return nil
}

// SizeTable returns the configured rule table, or the default set when
// no rules are configured. Validate has already vetted the rules.
func (c *Config) SizeTable() *sizeclass.Table {
	if len(c.SizeRules) == 0 {
		return sizeclass.DefaultTable()
	}
	table, err := sizeclass.NewTable(c.SizeRules)
	if err != nil {
		return sizeclass.DefaultTable()
	}
	return table
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getenvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return def
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

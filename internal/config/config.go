// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// DefaultFTPHost is the partner server the export jobs deliver to.
const DefaultFTPHost = "smartkb.mixh.jp"

// SinkConfig holds destination and credential settings for exported files.
type SinkConfig struct {
	URL string // ftp://host/dir, file:///path, s3://bucket/prefix, gs://bucket/prefix, az://container/prefix

	// FTP credentials: literal values or Secret Manager resource IDs
	// (projects/<p>/secrets/<name>).
	User     string
	Password string

	// S3 fields are nil when not configured.
	S3KeyID    *string
	S3Secret   *string
	S3Endpoint *string
	S3Region   *string

	GCSKeyFile       string
	AzureAccountName string
	AzureAccountKey  string
}

// Scheme returns the URL scheme of the sink ("ftp", "file", ...).
func (s *SinkConfig) Scheme() string {
	u, err := url.Parse(s.URL)
	if err != nil {
		return ""
	}
	return u.Scheme
}

// HasS3Credentials returns true if static S3 credentials are set.
func (s *SinkConfig) HasS3Credentials() bool {
	return s.S3KeyID != nil && s.S3Secret != nil
}

// Config holds the runtime configuration of the CLI and the export server.
type Config struct {
	ProjectDir    string // directory holding workflow_settings.yaml or dataform.json
	ConfigDir     string // directory holding declarative YAML documents
	MetaDBPath    string // path to SQLite metadata file (declarations, export state)
	WarehousePath string // DuckDB database file; empty opens an in-memory warehouse
	ProjectID     string // warehouse catalog that export tables live in (optional)
	DatasetID     string // warehouse schema of export tables, e.g. kolbi_analysis or kolbi_analysis_stg
	ListenAddr    string // HTTP listen address (default ":8080")
	LogLevel      string // log level: debug, info, warn, error (default "info")
	LogFormat     string // log format: text (default) or json
	Env           string // environment: "development" (default) or "production"

	SchedulerEnabled bool
	APIToken         string // bearer token required on /v1 routes; empty disables auth
	StrictSources    bool   // fail declaration when a source table is missing from the warehouse

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 5)
	RateLimitBurst int     // burst capacity (default 10)

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	Sink SinkConfig

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger from LogLevel and LogFormat.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		ProjectDir:       os.Getenv("PROJECT_DIR"),
		ConfigDir:        os.Getenv("CONFIG_DIR"),
		MetaDBPath:       os.Getenv("META_DB_PATH"),
		WarehousePath:    os.Getenv("WAREHOUSE_PATH"),
		ProjectID:        os.Getenv("PROJECT_ID"),
		DatasetID:        os.Getenv("DATASET_ID"),
		ListenAddr:       os.Getenv("LISTEN_ADDR"),
		LogLevel:         os.Getenv("LOG_LEVEL"),
		LogFormat:        os.Getenv("LOG_FORMAT"),
		Env:              os.Getenv("ENV"),
		SchedulerEnabled: parseBoolEnvDefault("SCHEDULER_ENABLED", false),
		APIToken:         os.Getenv("API_TOKEN"),
		StrictSources:    parseBoolEnvDefault("STRICT_SOURCES", false),
	}

	// Rate limiting
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}

	// CORS
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORSAllowedOrigins = compactNonEmpty(splitTrim(v))
	}

	cfg.Sink = SinkConfig{
		URL:              os.Getenv("SINK_URL"),
		User:             os.Getenv("SECRET_USER"),
		Password:         os.Getenv("SECRET_PASS"),
		GCSKeyFile:       os.Getenv("GCS_KEY_FILE"),
		AzureAccountName: os.Getenv("AZURE_ACCOUNT_NAME"),
		AzureAccountKey:  os.Getenv("AZURE_ACCOUNT_KEY"),
	}
	if v := os.Getenv("KEY_ID"); v != "" {
		cfg.Sink.S3KeyID = &v
	}
	if v := os.Getenv("SECRET"); v != "" {
		cfg.Sink.S3Secret = &v
	}
	if v := os.Getenv("ENDPOINT"); v != "" {
		cfg.Sink.S3Endpoint = &v
	}
	if v := os.Getenv("REGION"); v != "" {
		cfg.Sink.S3Region = &v
	}

	// Defaults
	if cfg.ProjectDir == "" {
		cfg.ProjectDir = "."
	}
	if cfg.ConfigDir == "" {
		cfg.ConfigDir = "./kolbi-config"
	}
	if cfg.MetaDBPath == "" {
		cfg.MetaDBPath = "kolbi_meta.sqlite"
	}
	if cfg.DatasetID == "" {
		cfg.DatasetID = "kolbi_analysis"
		cfg.Warnings = append(cfg.Warnings, "DATASET_ID not set, exporting from kolbi_analysis")
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 5
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 10
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}
	if cfg.Sink.URL == "" {
		host := os.Getenv("FTP_HOST")
		if host == "" {
			host = DefaultFTPHost
		}
		cfg.Sink.URL = "ftp://" + host
		if dir := strings.Trim(os.Getenv("FTP_DIRECTORY"), "/"); dir != "" {
			cfg.Sink.URL += "/" + dir
		}
	}
	if _, err := url.Parse(cfg.Sink.URL); err != nil {
		return nil, fmt.Errorf("SINK_URL: %w", err)
	}
	if cfg.Sink.Scheme() == "ftp" && (cfg.Sink.User == "" || cfg.Sink.Password == "") {
		cfg.Warnings = append(cfg.Warnings, "SECRET_USER/SECRET_PASS not set, FTP login will be anonymous")
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
		if cfg.Sink.Scheme() == "ftp" && (cfg.Sink.User == "" || cfg.Sink.Password == "") {
			return nil, fmt.Errorf("SECRET_USER and SECRET_PASS must be set in production (ENV=production)")
		}
		if cfg.APIToken == "" {
			return nil, fmt.Errorf("API_TOKEN must be set in production (ENV=production)")
		}
		if os.Getenv("DATASET_ID") == "" {
			return nil, fmt.Errorf("DATASET_ID must be set in production (ENV=production)")
		}
	}

	return cfg, nil
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return defaultVal
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	return defaultVal
}

func splitTrim(v string) []string {
	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables that are unset or empty in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(strings.TrimPrefix(line, "export "), "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		// A non-empty environment value wins over the file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

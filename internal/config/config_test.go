package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"PROJECT_DIR", "CONFIG_DIR", "META_DB_PATH", "WAREHOUSE_PATH", "PROJECT_ID", "DATASET_ID",
	"LISTEN_ADDR", "LOG_LEVEL", "LOG_FORMAT", "ENV", "SCHEDULER_ENABLED", "API_TOKEN", "STRICT_SOURCES",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "CORS_ALLOWED_ORIGINS",
	"SINK_URL", "SECRET_USER", "SECRET_PASS", "FTP_HOST", "FTP_DIRECTORY",
	"KEY_ID", "SECRET", "ENDPOINT", "REGION", "GCS_KEY_FILE", "AZURE_ACCOUNT_NAME", "AZURE_ACCOUNT_KEY",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.ProjectDir)
	assert.Equal(t, "./kolbi-config", cfg.ConfigDir)
	assert.Equal(t, "kolbi_meta.sqlite", cfg.MetaDBPath)
	assert.Equal(t, "kolbi_analysis", cfg.DatasetID)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "ftp://"+DefaultFTPHost, cfg.Sink.URL)
	assert.Equal(t, "ftp", cfg.Sink.Scheme())
	assert.InDelta(t, 5.0, cfg.RateLimitRPS, 0.001)
	assert.Equal(t, 10, cfg.RateLimitBurst)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.SchedulerEnabled)
	assert.Nil(t, cfg.Sink.S3KeyID)
	assert.False(t, cfg.Sink.HasS3Credentials())
	assert.Len(t, cfg.Warnings, 2)
}

func TestLoadFromEnv_FTPDirectory(t *testing.T) {
	clearEnv(t)
	t.Setenv("FTP_HOST", "ftp.example.jp")
	t.Setenv("FTP_DIRECTORY", "/kolbi/in/")
	t.Setenv("SECRET_USER", "projects/p/secrets/ftp-user")
	t.Setenv("SECRET_PASS", "projects/p/secrets/ftp-pass")
	t.Setenv("DATASET_ID", "kolbi_analysis_stg")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "ftp://ftp.example.jp/kolbi/in", cfg.Sink.URL)
	assert.Equal(t, "projects/p/secrets/ftp-user", cfg.Sink.User)
	assert.Empty(t, cfg.Warnings)
}

func TestLoadFromEnv_S3Sink(t *testing.T) {
	clearEnv(t)
	t.Setenv("SINK_URL", "s3://exports/keiba")
	t.Setenv("KEY_ID", "testkey")
	t.Setenv("SECRET", "testsecret")
	t.Setenv("ENDPOINT", "fsn1.your-objectstorage.com")
	t.Setenv("REGION", "fsn1")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "s3", cfg.Sink.Scheme())
	assert.True(t, cfg.Sink.HasS3Credentials())
	require.NotNil(t, cfg.Sink.S3Endpoint)
	assert.Equal(t, "fsn1.your-objectstorage.com", *cfg.Sink.S3Endpoint)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "4")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("SCHEDULER_ENABLED", "yes")
	t.Setenv("STRICT_SOURCES", "1")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.InDelta(t, 2.5, cfg.RateLimitRPS, 0.001)
	assert.Equal(t, 4, cfg.RateLimitBurst)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.SchedulerEnabled)
	assert.True(t, cfg.StrictSources)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoadFromEnv_Production(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "wildcard cors",
			env:     map[string]string{},
			wantErr: "CORS wildcard",
		},
		{
			name:    "missing ftp credentials",
			env:     map[string]string{"CORS_ALLOWED_ORIGINS": "https://kolbi.example"},
			wantErr: "SECRET_USER and SECRET_PASS",
		},
		{
			name: "missing api token",
			env: map[string]string{
				"CORS_ALLOWED_ORIGINS": "https://kolbi.example",
				"SECRET_USER":          "u", "SECRET_PASS": "p",
			},
			wantErr: "API_TOKEN",
		},
		{
			name: "complete",
			env: map[string]string{
				"CORS_ALLOWED_ORIGINS": "https://kolbi.example",
				"SECRET_USER":          "u", "SECRET_PASS": "p",
				"API_TOKEN": "t", "DATASET_ID": "kolbi_analysis",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("ENV", "production")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := LoadFromEnv()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, cfg.IsProduction())
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATASET_ID", "from-env")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(`# comment
export FTP_HOST="ftp.example.jp"
DATASET_ID=from-file
SECRET_USER='kolbi'

not a pair
`), 0o600))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "ftp.example.jp", os.Getenv("FTP_HOST"))
	assert.Equal(t, "kolbi", os.Getenv("SECRET_USER"))
	assert.Equal(t, "from-env", os.Getenv("DATASET_ID"))

	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestLoadDotEnv_EmptyEnvTakesFileValue(t *testing.T) {
	clearEnv(t)
	t.Setenv("SINK_URL", "")
	t.Setenv("LOG_LEVEL", "warn")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SINK_URL=file:///tmp/out\nLOG_LEVEL=debug\n"), 0o600))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "file:///tmp/out", os.Getenv("SINK_URL"))
	assert.Equal(t, "warn", os.Getenv("LOG_LEVEL"))
}

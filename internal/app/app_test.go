package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartkeiba/internal/config"
	"smartkeiba/internal/domain"
)

const workflowSettings = `defaultProject: smartkeiba
defaultDataset: kolbi_analysis
vars:
  source_schema: kolbi_keiba
  source_schema_stg: kolbi_keiba_stg
`

const sourceSet = `apiVersion: kolbi/v1
kind: SourceSet
metadata:
  name: keiba
spec:
  variant: staged
  database: smartkeiba
`

const exportJobs = `apiVersion: kolbi/v1
kind: ExportJobList
jobs:
  - name: schedules
    table: schedule
    key_column: id
    fields: [id, name]
    date_column: id
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("KOLBI_SOURCE_SCHEMA", "")
	t.Setenv("KOLBI_SOURCE_SCHEMA_STG", "")
	t.Setenv("KOLBI_DEFAULT_SCHEMA", "")

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "workflow_settings.yaml"), workflowSettings)
	writeFile(t, filepath.Join(root, "kolbi-config", "sources", "keiba.yaml"), sourceSet)
	writeFile(t, filepath.Join(root, "kolbi-config", "exports", "jobs.yaml"), exportJobs)
	out := filepath.Join(root, "out")
	require.NoError(t, os.MkdirAll(out, 0o755))

	return &config.Config{
		ProjectDir: root,
		ConfigDir:  filepath.Join(root, "kolbi-config"),
		MetaDBPath: filepath.Join(root, "meta.sqlite"),
		DatasetID:  "kolbi_analysis",
		Sink:       config.SinkConfig{URL: "file://" + filepath.ToSlash(out)},
	}
}

func TestNew_WiresServices(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	a, err := New(ctx, cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	jobs := a.Exports.Jobs()
	require.Len(t, jobs, 3)
	assert.Equal(t, "schedules", jobs[0].Name)
	assert.Equal(t, []string{"id", "name"}, jobs[0].Fields)

	decls, err := a.Sources.Declare(ctx)
	require.NoError(t, err)
	assert.Len(t, decls, 5)

	stored, err := a.SourceRepo.ListDeclarations(ctx, "keiba")
	require.NoError(t, err)
	assert.Len(t, stored, 5)
	for _, d := range stored {
		assert.Equal(t, "kolbi_keiba", d.Schema)
		assert.Equal(t, "smartkeiba", d.Database)
	}
}

func TestNew_ExportToFileSink(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	a, err := New(ctx, cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	for _, stmt := range []string{
		`CREATE SCHEMA kolbi_analysis`,
		`CREATE TABLE kolbi_analysis.schedule (id VARCHAR, name VARCHAR)`,
		`INSERT INTO kolbi_analysis.schedule VALUES ('20240302', 'b'), ('20240301', 'a')`,
	} {
		_, err := a.Warehouse.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}

	res, err := a.Exports.Run(ctx, "schedules", domain.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 2, res.RowsExported)
	require.Equal(t, []string{"schedule_20240301_20240302.csv"}, res.Files)

	data, err := os.ReadFile(filepath.Join(cfg.ProjectDir, "out", res.Files[0]))
	require.NoError(t, err)
	assert.Equal(t, "id,name\r\n20240301,a\r\n20240302,b\r\n", string(data))

	res, err = a.Exports.Run(ctx, "schedules", domain.TriggerManual)
	require.NoError(t, err)
	assert.True(t, res.NoUpdates())
}

func TestLoadProject_InvalidDeclarations(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.ConfigDir, "sources", "bad.yaml"), `apiVersion: kolbi/v1
kind: SourceSet
metadata:
  name: bad
spec:
  variant: literal
`)

	_, err := LoadProject(cfg)
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, err.Error(), "literal_schema")
}

func TestNew_BadSinkClosesStores(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sink.URL = "gopher://nowhere"

	_, err := New(context.Background(), cfg, slog.New(slog.DiscardHandler))
	var cerr *domain.ConfigurationError
	require.True(t, errors.As(err, &cerr))
}

func TestNewSources_DoesNotOpenSink(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sink.URL = "gopher://nowhere"
	ctx := context.Background()

	a, err := NewSources(ctx, cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	assert.Nil(t, a.Exports)
	assert.Nil(t, a.Scheduler)

	decls, err := a.Sources.Declare(ctx)
	require.NoError(t, err)
	assert.Len(t, decls, 5)

	stored, err := a.SourceRepo.ListDeclarations(ctx, "keiba")
	require.NoError(t, err)
	assert.Len(t, stored, 5)
}

func TestRouter_ServesAPI(t *testing.T) {
	cfg := testConfig(t)
	cfg.APIToken = "s3cret"
	ctx := context.Background()

	a, err := New(ctx, cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	srv := httptest.NewServer(a.Router(ctx, cfg, slog.New(slog.DiscardHandler)))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/v1/exports")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/exports", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServe_StopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.SchedulerEnabled = true

	a, err := New(context.Background(), cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, cfg, slog.New(slog.DiscardHandler)) }()
	cancel()
	require.NoError(t, <-done)
}

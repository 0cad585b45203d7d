package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartkeiba/internal/domain"
	"smartkeiba/internal/middleware"
)

type fakeSources struct {
	decls []domain.SourceDeclaration
	err   error
}

func (f *fakeSources) Resolve(context.Context) ([]domain.SourceDeclaration, error) { return f.decls, f.err }
func (f *fakeSources) Declare(context.Context) ([]domain.SourceDeclaration, error) { return f.decls, f.err }

type fakeExports struct {
	results map[string]*domain.ExportResult
	errs    map[string]error
	runs    []domain.ExportRun
	trigger string
	limit   int
}

func (f *fakeExports) Jobs() []domain.ExportJob {
	return []domain.ExportJob{{Name: "schedules", Table: "schedule"}}
}

func (f *fakeExports) Run(_ context.Context, name, trigger string) (*domain.ExportResult, error) {
	f.trigger = trigger
	if err, ok := f.errs[name]; ok {
		return nil, err
	}
	if res, ok := f.results[name]; ok {
		return res, nil
	}
	return nil, domain.ErrNotFound("export job %q not found", name)
}

func (f *fakeExports) RunAll(ctx context.Context, trigger string) ([]*domain.ExportResult, error) {
	var out []*domain.ExportResult
	var errs []error
	for name := range f.results {
		res, _ := f.Run(ctx, name, trigger)
		out = append(out, res)
	}
	for name, err := range f.errs {
		errs = append(errs, errors.New(name+": "+err.Error()))
	}
	return out, errors.Join(errs...)
}

func (f *fakeExports) Runs(_ context.Context, job string, limit int) ([]domain.ExportRun, error) {
	f.limit = limit
	if job == "missing" {
		return nil, domain.ErrNotFound("export job %q not found", job)
	}
	return f.runs, nil
}

func (f *fakeExports) States(_ context.Context, job string, limit int) ([]domain.ExportState, error) {
	f.limit = limit
	return []domain.ExportState{{Job: job, Key: "20240301", ContentHash: "abc"}}, nil
}

func newTestServer(t *testing.T, sources SourceService, exports ExportService, token string) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv := httptest.NewServer(NewRouter(ctx, NewHandler(sources, exports, logger), RouterConfig{
		AllowedOrigins: []string{"*"},
		RateLimit:      middleware.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
		APIToken:       token,
	}, logger))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, token string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

func TestRunExport(t *testing.T) {
	exports := &fakeExports{
		results: map[string]*domain.ExportResult{
			"schedules": {RunID: "r1", Job: "schedules", RowsExported: 2, Files: []string{"schedule_20240301_20240302.csv"}},
			"races":     {RunID: "r2", Job: "races"},
		},
		errs: map[string]error{
			"race_uma_details": &domain.UploadError{File: "race_uma_details_20240301_20240301_part001.csv", Err: errors.New("connection refused")},
			"busy":             domain.ErrConflict("export job %q is already running", "busy"),
		},
	}
	srv := newTestServer(t, &fakeSources{}, exports, "")

	tests := []struct {
		job     string
		status  int
		message string
	}{
		{job: "schedules", status: http.StatusOK, message: "exported 2 rows"},
		{job: "races", status: http.StatusOK, message: "no updates"},
		{job: "race_uma_details", status: http.StatusInternalServerError, message: "upload race_uma_details_20240301_20240301_part001.csv: connection refused"},
		{job: "busy", status: http.StatusConflict},
		{job: "unknown", status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.job, func(t *testing.T) {
			resp, body := do(t, http.MethodPost, srv.URL+"/v1/exports/"+tt.job, "")
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
			assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))
			if tt.message != "" {
				assert.Equal(t, tt.message, body["message"])
			}
		})
	}
	assert.Equal(t, domain.TriggerHTTP, exports.trigger)

	_, body := do(t, http.MethodPost, srv.URL+"/v1/exports/schedules", "")
	assert.Equal(t, "r1", body["run_id"])
	assert.EqualValues(t, 2, body["rows_exported"])
}

func TestRunAllExports(t *testing.T) {
	exports := &fakeExports{
		results: map[string]*domain.ExportResult{"schedules": {Job: "schedules", RowsExported: 1}},
		errs:    map[string]error{"races": errors.New("boom")},
	}
	srv := newTestServer(t, &fakeSources{}, exports, "")

	resp, body := do(t, http.MethodPost, srv.URL+"/v1/exports", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Len(t, body["results"], 1)
	require.Len(t, body["errors"], 1)
	assert.True(t, strings.Contains(body["errors"].([]interface{})[0].(string), "boom"))
}

func TestSources(t *testing.T) {
	decls := []domain.SourceDeclaration{{
		SourceSet:       "keiba",
		SourceTableSpec: domain.SourceTableSpec{LogicalName: "kol_den1", Schema: "kolbi_keiba", PhysicalName: "kol_den1"},
	}}
	srv := newTestServer(t, &fakeSources{decls: decls}, &fakeExports{}, "")

	resp, body := do(t, http.MethodGet, srv.URL+"/v1/sources", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body["sources"], 1)
	first := body["sources"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "kol_den1", first["logical_name"])
	assert.Equal(t, "kolbi_keiba", first["schema"])

	resp, _ = do(t, http.MethodPost, srv.URL+"/v1/sources/declare", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSources_ConfigurationError(t *testing.T) {
	srv := newTestServer(t, &fakeSources{err: domain.ErrConfiguration("source_schema", "project variable is not set")}, &fakeExports{}, "")

	resp, body := do(t, http.MethodGet, srv.URL+"/v1/sources", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body["message"], "source_schema")
	assert.EqualValues(t, 500, body["code"])
}

func TestRunsAndState(t *testing.T) {
	exports := &fakeExports{runs: []domain.ExportRun{{ID: "r1", Job: "races", Status: domain.ExportStatusSucceeded}}}
	srv := newTestServer(t, &fakeSources{}, exports, "")

	resp, body := do(t, http.MethodGet, srv.URL+"/v1/exports/races/runs?limit=5", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["runs"], 1)
	assert.Equal(t, 5, exports.limit)

	resp, _ = do(t, http.MethodGet, srv.URL+"/v1/exports/missing/runs", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.URL+"/v1/exports/races/runs?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, http.MethodGet, srv.URL+"/v1/exports/races/state", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["state"], 1)

	resp, _ = do(t, http.MethodGet, srv.URL+"/v1/runs", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthAndHealth(t *testing.T) {
	srv := newTestServer(t, &fakeSources{}, &fakeExports{}, "s3cret")

	resp, body := do(t, http.MethodGet, srv.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	resp, _ = do(t, http.MethodGet, srv.URL+"/v1/exports", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = do(t, http.MethodGet, srv.URL+"/v1/exports", "s3cret")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["jobs"], 1)
}

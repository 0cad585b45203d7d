// Package api serves the HTTP interface of the export server.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"smartkeiba/internal/domain"
)

// SourceService resolves and declares source tables.
type SourceService interface {
	Resolve(ctx context.Context) ([]domain.SourceDeclaration, error)
	Declare(ctx context.Context) ([]domain.SourceDeclaration, error)
}

// ExportService runs export jobs.
type ExportService interface {
	Jobs() []domain.ExportJob
	Run(ctx context.Context, name, trigger string) (*domain.ExportResult, error)
	RunAll(ctx context.Context, trigger string) ([]*domain.ExportResult, error)
	Runs(ctx context.Context, job string, limit int) ([]domain.ExportRun, error)
	States(ctx context.Context, job string, limit int) ([]domain.ExportState, error)
}

// Handler implements the HTTP endpoints.
type Handler struct {
	sources SourceService
	exports ExportService
	logger  *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(sources SourceService, exports ExportService, logger *slog.Logger) *Handler {
	return &Handler{sources: sources, exports: exports, logger: logger}
}

// ExportResponse is the body of a successful export trigger.
type ExportResponse struct {
	*domain.ExportResult
	Message string `json:"message"`
}

func exportResponse(res *domain.ExportResult) ExportResponse {
	msg := fmt.Sprintf("exported %d rows", res.RowsExported)
	if res.NoUpdates() {
		msg = "no updates"
	}
	return ExportResponse{ExportResult: res, Message: msg}
}

// RunAllResponse is the body of POST /v1/exports.
type RunAllResponse struct {
	Results []ExportResponse `json:"results"`
	Errors  []string         `json:"errors,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listSources(w http.ResponseWriter, r *http.Request) {
	decls, err := h.sources.Resolve(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sources": decls})
}

func (h *Handler) declareSources(w http.ResponseWriter, r *http.Request) {
	decls, err := h.sources.Declare(r.Context())
	if err != nil {
		h.logger.Error("declare sources failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sources": decls})
}

func (h *Handler) listJobs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": h.exports.Jobs()})
}

func (h *Handler) runExport(w http.ResponseWriter, r *http.Request) {
	job := chi.URLParam(r, "job")
	res, err := h.exports.Run(r.Context(), job, domain.TriggerHTTP)
	if err != nil {
		h.logger.Error("export failed", "job", job, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exportResponse(res))
}

func (h *Handler) runAllExports(w http.ResponseWriter, r *http.Request) {
	results, err := h.exports.RunAll(r.Context(), domain.TriggerHTTP)
	body := RunAllResponse{Results: make([]ExportResponse, 0, len(results))}
	for _, res := range results {
		body.Results = append(body.Results, exportResponse(res))
	}
	if err != nil {
		h.logger.Error("export run failed", "error", err)
		body.Errors = append(body.Errors, err.Error())
		writeJSON(w, http.StatusInternalServerError, body)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	runs, err := h.exports.Runs(r.Context(), chi.URLParam(r, "job"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

func (h *Handler) listState(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	states, err := h.exports.States(r.Context(), chi.URLParam(r, "job"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"state": states})
}

func limitParam(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, domain.ErrValidation("limit must be a non-negative integer, got %q", v)
	}
	return n, nil
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"smartkeiba/internal/domain"
)

// Compile-time check.
var _ domain.ExportRunRepository = (*ExportRunRepo)(nil)

// ExportRunRepo records export run history in SQLite.
type ExportRunRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewExportRunRepo creates a new ExportRunRepo.
func NewExportRunRepo(db *sql.DB) *ExportRunRepo {
	return &ExportRunRepo{db: db, now: time.Now}
}

// CreateRun inserts a new run. ID and StartedAt are filled in when empty.
func (r *ExportRunRepo) CreateRun(ctx context.Context, run *domain.ExportRun) (*domain.ExportRun, error) {
	out := *run
	if out.ID == "" {
		out.ID = domain.NewID()
	}
	if out.StartedAt.IsZero() {
		out.StartedAt = r.now()
	}
	out.StartedAt = out.StartedAt.UTC().Truncate(time.Second)
	if out.Status == "" {
		out.Status = domain.ExportStatusRunning
	}
	if out.Files == nil {
		out.Files = []string{}
	}
	files, err := json.Marshal(out.Files)
	if err != nil {
		return nil, fmt.Errorf("marshal files: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO export_runs (id, job, status, trigger_type, rows_exported, files, error_message, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		out.ID, out.Job, out.Status, out.Trigger, out.RowsExported, string(files),
		nullStringPtr(out.ErrorMessage), formatTime(out.StartedAt))
	if err != nil {
		return nil, mapDBError(err)
	}
	return &out, nil
}

// FinishRun sets the terminal status and outcome of a run.
func (r *ExportRunRepo) FinishRun(ctx context.Context, id, status string, rows int64, files []string, errorMsg *string, finishedAt time.Time) error {
	if files == nil {
		files = []string{}
	}
	data, err := json.Marshal(files)
	if err != nil {
		return fmt.Errorf("marshal files: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE export_runs
		SET status = ?, rows_exported = ?, files = ?, error_message = ?, finished_at = ?
		WHERE id = ?`,
		status, rows, string(data), nullStringPtr(errorMsg), formatTime(finishedAt), id)
	if err != nil {
		return mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound("export run %q not found", id)
	}
	return nil
}

// ListRuns returns the latest runs of job, newest first. An empty job lists
// runs of every job.
func (r *ExportRunRepo) ListRuns(ctx context.Context, job string, limit int) ([]domain.ExportRun, error) {
	if limit <= 0 {
		limit = domain.DefaultListLimit
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, job, status, trigger_type, rows_exported, files, error_message, started_at, finished_at
		FROM export_runs
		WHERE ? = '' OR job = ?
		ORDER BY started_at DESC, id DESC
		LIMIT ?`, job, job, limit)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.ExportRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

func scanRun(rows *sql.Rows) (*domain.ExportRun, error) {
	var (
		run        domain.ExportRun
		files      string
		errMsg     sql.NullString
		startedAt  string
		finishedAt sql.NullString
	)
	if err := rows.Scan(&run.ID, &run.Job, &run.Status, &run.Trigger, &run.RowsExported,
		&files, &errMsg, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(files), &run.Files); err != nil {
		return nil, fmt.Errorf("decode files of run %s: %w", run.ID, err)
	}
	run.ErrorMessage = stringPtrFromNull(errMsg)
	run.StartedAt = parseTime(startedAt)
	if finishedAt.Valid {
		t := parseTime(finishedAt.String)
		run.FinishedAt = &t
	}
	return &run, nil
}

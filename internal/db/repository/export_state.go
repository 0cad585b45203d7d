package repository

import (
	"context"
	"database/sql"
	"fmt"

	"smartkeiba/internal/domain"
)

// Compile-time check.
var _ domain.ExportStateRepository = (*ExportStateRepo)(nil)

// ExportStateRepo stores per-row content hashes of export jobs.
type ExportStateRepo struct {
	db *sql.DB
}

// NewExportStateRepo creates a new ExportStateRepo.
func NewExportStateRepo(db *sql.DB) *ExportStateRepo {
	return &ExportStateRepo{db: db}
}

// LoadHashes returns row key -> content hash for job.
func (r *ExportStateRepo) LoadHashes(ctx context.Context, job string) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT row_key, content_hash FROM export_state WHERE job = ?`, job)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close() //nolint:errcheck

	hashes := make(map[string]string)
	for rows.Next() {
		var key, hash string
		if err := rows.Scan(&key, &hash); err != nil {
			return nil, err
		}
		hashes[key] = hash
	}
	return hashes, rows.Err()
}

// MergeStates upserts states in one transaction: existing keys get the new
// hash and timestamp, new keys are inserted.
func (r *ExportStateRepo) MergeStates(ctx context.Context, job string, states []domain.ExportState) (err error) {
	if len(states) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO export_state (job, row_key, content_hash, exported_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (job, row_key) DO UPDATE SET
			content_hash = excluded.content_hash,
			exported_at  = excluded.exported_at`)
	if err != nil {
		return fmt.Errorf("prepare merge: %w", err)
	}
	defer stmt.Close() //nolint:errcheck

	for _, s := range states {
		if _, err = stmt.ExecContext(ctx, job, s.Key, s.ContentHash, formatTime(s.ExportedAt)); err != nil {
			return fmt.Errorf("merge state %s: %w", s.Key, mapDBError(err))
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListStates returns the most recently exported rows of job.
func (r *ExportStateRepo) ListStates(ctx context.Context, job string, limit int) ([]domain.ExportState, error) {
	if limit <= 0 {
		limit = domain.DefaultListLimit
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT row_key, content_hash, exported_at
		FROM export_state
		WHERE job = ?
		ORDER BY exported_at DESC, row_key
		LIMIT ?`, job, limit)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.ExportState
	for rows.Next() {
		var (
			s  domain.ExportState
			at string
		)
		if err := rows.Scan(&s.Key, &s.ContentHash, &at); err != nil {
			return nil, err
		}
		s.Job = job
		s.ExportedAt = parseTime(at)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Package export ships changed warehouse rows as CSV files to a sink and
// remembers what was shipped so the next run only sends the delta.
package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"smartkeiba/internal/domain"
)

// Exporter runs export jobs against one warehouse, state store and sink.
type Exporter struct {
	warehouse domain.Warehouse
	state     domain.ExportStateRepository
	sink      domain.Sink
	logger    *slog.Logger
	now       func() time.Time
}

// NewExporter creates an Exporter.
func NewExporter(w domain.Warehouse, state domain.ExportStateRepository, sink domain.Sink, logger *slog.Logger) *Exporter {
	return &Exporter{warehouse: w, state: state, sink: sink, logger: logger, now: time.Now}
}

// pending is a changed row waiting to be shipped.
type pending struct {
	row  domain.Row
	key  string
	date string
	hash string
}

// Run exports the rows of job whose content changed since the last
// successful run. State is only written after every file was delivered.
func (e *Exporter) Run(ctx context.Context, job domain.ExportJob) (*domain.ExportResult, error) {
	previous, err := e.state.LoadHashes(ctx, job.Name)
	if err != nil {
		return nil, fmt.Errorf("load state of %s: %w", job.Name, err)
	}

	q := domain.RowQuery{
		Schema:  job.Schema,
		Table:   job.Table,
		Columns: job.Fields,
		OrderBy: []string{job.KeyColumn},
	}
	if job.Mode == domain.ExportModeStreaming {
		q.HashColumns = job.HashFields()
		q.OrderBy = []string{job.DateColumn, job.KeyColumn}
	}

	e.logger.Info("querying export source", "job", job.Name, "table", job.Table, "mode", job.Mode)
	it, err := e.warehouse.StreamRows(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", job.Table, err)
	}
	defer it.Close()

	var (
		shipped []pending
		files   []string
	)
	if job.Mode == domain.ExportModeStreaming {
		shipped, files, err = e.runStreaming(ctx, job, it, previous)
	} else {
		shipped, files, err = e.runBatch(ctx, job, it, previous)
	}
	if err != nil {
		return nil, err
	}

	result := &domain.ExportResult{Job: job.Name, RowsExported: len(shipped), Files: files}
	if len(shipped) == 0 {
		e.logger.Info("no updates to export", "job", job.Name)
		return result, nil
	}

	exportedAt := e.now().UTC()
	states := make([]domain.ExportState, 0, len(shipped))
	for _, p := range shipped {
		states = append(states, domain.ExportState{
			Job: job.Name, Key: p.key, ContentHash: p.hash, ExportedAt: exportedAt,
		})
	}
	if err := e.state.MergeStates(ctx, job.Name, states); err != nil {
		return nil, fmt.Errorf("update state of %s: %w", job.Name, err)
	}
	e.logger.Info("export finished", "job", job.Name, "rows", len(shipped), "files", len(files))
	return result, nil
}

// runBatch hashes rows in process, collects every change, then names the
// files after the date range of the whole delta.
func (e *Exporter) runBatch(ctx context.Context, job domain.ExportJob, it domain.RowIterator, previous map[string]string) ([]pending, []string, error) {
	hashFields := job.HashFields()
	var updates []pending
	for it.Next() {
		p, err := e.pendingRow(job, it.Row())
		if err != nil {
			return nil, nil, err
		}
		p.hash = RowHash(p.row, hashFields)
		if previous[p.key] == p.hash {
			continue
		}
		updates = append(updates, p)
	}
	if err := it.Err(); err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", job.Table, err)
	}
	if len(updates) == 0 {
		return nil, nil, nil
	}

	minDate, maxDate := updates[0].date, updates[0].date
	for _, p := range updates[1:] {
		if p.date < minDate {
			minDate = p.date
		}
		if p.date > maxDate {
			maxDate = p.date
		}
	}

	size := job.EffectiveChunkSize()
	total := (len(updates) + size - 1) / size
	files := make([]string, 0, total)
	for part := 1; part <= total; part++ {
		lo := (part - 1) * size
		hi := min(lo+size, len(updates))
		name := FileName(job.Prefix(), minDate, maxDate, part, total, false)
		if err := e.upload(ctx, job, name, updates[lo:hi]); err != nil {
			return nil, nil, err
		}
		files = append(files, name)
	}
	return updates, files, nil
}

// runStreaming relies on the warehouse hash and uploads each chunk as soon
// as it fills. Every file is named after its own date range.
func (e *Exporter) runStreaming(ctx context.Context, job domain.ExportJob, it domain.RowIterator, previous map[string]string) ([]pending, []string, error) {
	size := job.EffectiveChunkSize()
	var (
		shipped []pending
		chunk   []pending
		files   []string
	)
	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		minDate, maxDate := chunk[0].date, chunk[0].date
		for _, p := range chunk[1:] {
			minDate = min(minDate, p.date)
			maxDate = max(maxDate, p.date)
		}
		name := FileName(job.Prefix(), minDate, maxDate, len(files)+1, 0, true)
		if err := e.upload(ctx, job, name, chunk); err != nil {
			return err
		}
		files = append(files, name)
		shipped = append(shipped, chunk...)
		chunk = nil
		return nil
	}

	for it.Next() {
		row := it.Row()
		hash, _ := row[domain.HashColumn].(string)
		if hash == "" {
			return nil, nil, fmt.Errorf("row of %s has no %s", job.Table, domain.HashColumn)
		}
		p, err := e.pendingRow(job, row)
		if err != nil {
			return nil, nil, err
		}
		if previous[p.key] == hash {
			continue
		}
		p.hash = hash
		chunk = append(chunk, p)
		if len(chunk) >= size {
			if err := flush(); err != nil {
				return nil, nil, err
			}
		}
	}
	if err := it.Err(); err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", job.Table, err)
	}
	if err := flush(); err != nil {
		return nil, nil, err
	}
	return shipped, files, nil
}

func (e *Exporter) pendingRow(job domain.ExportJob, row domain.Row) (pending, error) {
	key, err := keyString(row[job.KeyColumn])
	if err != nil {
		return pending{}, fmt.Errorf("%s.%s: %w", job.Table, job.KeyColumn, err)
	}
	date, err := DateKey(row[job.DateColumn], job.DateLayout)
	if err != nil {
		return pending{}, fmt.Errorf("%s.%s of %s: %w", job.Table, job.DateColumn, key, err)
	}
	values := make(domain.Row, len(job.Fields))
	for _, f := range job.Fields {
		values[f] = row[f]
	}
	return pending{row: values, key: key, date: date}, nil
}

func (e *Exporter) upload(ctx context.Context, job domain.ExportJob, name string, chunk []pending) error {
	rows := make([]domain.Row, len(chunk))
	for i, p := range chunk {
		rows[i] = p.row
	}
	data, err := RenderCSV(job.Fields, rows)
	if err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}

	e.logger.Info("uploading export file", "job", job.Name, "file", name, "rows", len(chunk), "sink", e.sink.String())
	if err := e.sink.Put(ctx, remoteName(job.SinkDirectory, name), bytes.NewReader(data)); err != nil {
		e.logger.Error("upload failed", "job", job.Name, "file", name, "error", err)
		return &domain.UploadError{File: name, Err: err}
	}
	return nil
}

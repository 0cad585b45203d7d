package export

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"smartkeiba/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type sliceIterator struct {
	rows []domain.Row
	pos  int
	err  error
}

func (it *sliceIterator) Next() bool {
	if it.pos >= len(it.rows) {
		return false
	}
	it.pos++
	return true
}

func (it *sliceIterator) Row() domain.Row { return it.rows[it.pos-1] }
func (it *sliceIterator) Err() error      { return it.err }
func (it *sliceIterator) Close() error    { return nil }

// fakeWarehouse serves fixed rows. When the query asks for a hash it adds
// one computed in process.
type fakeWarehouse struct {
	mu      sync.Mutex
	rows    []domain.Row
	iterErr error
	queries []domain.RowQuery
}

func (w *fakeWarehouse) StreamRows(_ context.Context, q domain.RowQuery) (domain.RowIterator, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.queries = append(w.queries, q)
	out := make([]domain.Row, 0, len(w.rows))
	for _, r := range w.rows {
		row := make(domain.Row, len(q.Columns)+1)
		for _, c := range q.Columns {
			row[c] = r[c]
		}
		if len(q.HashColumns) > 0 {
			row[domain.HashColumn] = RowHash(r, q.HashColumns)[:32]
		}
		out = append(out, row)
	}
	return &sliceIterator{rows: out, err: w.iterErr}, nil
}

type memState struct {
	mu     sync.Mutex
	hashes map[string]map[string]string
	merges int
}

func newMemState() *memState {
	return &memState{hashes: map[string]map[string]string{}}
}

func (s *memState) LoadHashes(_ context.Context, job string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]string{}
	for k, v := range s.hashes[job] {
		out[k] = v
	}
	return out, nil
}

func (s *memState) MergeStates(_ context.Context, job string, states []domain.ExportState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.merges++
	if s.hashes[job] == nil {
		s.hashes[job] = map[string]string{}
	}
	for _, st := range states {
		s.hashes[job][st.Key] = st.ContentHash
	}
	return nil
}

func (s *memState) ListStates(_ context.Context, job string, limit int) ([]domain.ExportState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ExportState
	for k, v := range s.hashes[job] {
		out = append(out, domain.ExportState{Job: job, Key: k, ContentHash: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memRuns struct {
	mu   sync.Mutex
	runs []domain.ExportRun
}

func (r *memRuns) CreateRun(_ context.Context, run *domain.ExportRun) (*domain.ExportRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *run
	cp.ID = domain.NewID()
	cp.Status = domain.ExportStatusRunning
	r.runs = append(r.runs, cp)
	return &cp, nil
}

func (r *memRuns) FinishRun(_ context.Context, id, status string, rows int64, files []string, errorMsg *string, finishedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.runs {
		if r.runs[i].ID == id {
			r.runs[i].Status = status
			r.runs[i].RowsExported = rows
			r.runs[i].Files = files
			r.runs[i].ErrorMessage = errorMsg
			r.runs[i].FinishedAt = &finishedAt
			return nil
		}
	}
	return domain.ErrNotFound("run %s", id)
}

func (r *memRuns) ListRuns(_ context.Context, job string, _ int) ([]domain.ExportRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ExportRun
	for i := len(r.runs) - 1; i >= 0; i-- {
		if job == "" || r.runs[i].Job == job {
			out = append(out, r.runs[i])
		}
	}
	return out, nil
}

// memSink keeps uploaded files. failAt makes the n-th Put (1-based) fail.
type memSink struct {
	mu     sync.Mutex
	files  map[string]string
	order  []string
	puts   int
	failAt int
}

func newMemSink() *memSink { return &memSink{files: map[string]string{}} }

func (s *memSink) Put(_ context.Context, name string, r io.Reader) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.failAt > 0 && s.puts == s.failAt {
		return errors.New("550 permission denied")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.files[name] = string(data)
	s.order = append(s.order, name)
	return nil
}

func (s *memSink) String() string { return "mem://" }

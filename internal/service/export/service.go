package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"smartkeiba/internal/domain"
)

// Service runs named export jobs and records every run.
type Service struct {
	exporter *Exporter
	state    domain.ExportStateRepository
	runs     domain.ExportRunRepository
	logger   *slog.Logger
	now      func() time.Time

	order []string
	jobs  map[string]domain.ExportJob
	locks map[string]*sync.Mutex
}

// NewService creates a Service over jobs. A later job replaces an earlier
// one with the same name.
func NewService(
	exporter *Exporter,
	state domain.ExportStateRepository,
	runs domain.ExportRunRepository,
	jobs []domain.ExportJob,
	logger *slog.Logger,
) *Service {
	s := &Service{
		exporter: exporter,
		state:    state,
		runs:     runs,
		logger:   logger,
		now:      time.Now,
		jobs:     make(map[string]domain.ExportJob, len(jobs)),
		locks:    make(map[string]*sync.Mutex, len(jobs)),
	}
	for _, j := range MergeJobs(nil, jobs) {
		s.order = append(s.order, j.Name)
		s.jobs[j.Name] = j
		s.locks[j.Name] = &sync.Mutex{}
	}
	return s
}

// Jobs returns the configured jobs in registration order.
func (s *Service) Jobs() []domain.ExportJob {
	out := make([]domain.ExportJob, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.jobs[name])
	}
	return out
}

// Job returns the named job.
func (s *Service) Job(name string) (domain.ExportJob, error) {
	j, ok := s.jobs[name]
	if !ok {
		return domain.ExportJob{}, domain.ErrNotFound("export job %q not found", name)
	}
	return j, nil
}

// Run executes one job. A job already running in this process yields a
// ConflictError.
func (s *Service) Run(ctx context.Context, name, trigger string) (*domain.ExportResult, error) {
	job, err := s.Job(name)
	if err != nil {
		return nil, err
	}
	lock := s.locks[name]
	if !lock.TryLock() {
		return nil, domain.ErrConflict("export job %q is already running", name)
	}
	defer lock.Unlock()

	run, err := s.runs.CreateRun(ctx, &domain.ExportRun{
		Job:       name,
		Trigger:   trigger,
		StartedAt: s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("record run of %s: %w", name, err)
	}

	result, runErr := s.exporter.Run(ctx, job)

	status := domain.ExportStatusSucceeded
	var (
		rows   int64
		files  []string
		errMsg *string
	)
	switch {
	case runErr != nil:
		status = domain.ExportStatusFailed
		msg := runErr.Error()
		errMsg = &msg
	case result.NoUpdates():
		status = domain.ExportStatusNoUpdates
	default:
		rows = int64(result.RowsExported)
		files = result.Files
	}
	// Record the outcome even when ctx was cancelled.
	finishCtx := context.WithoutCancel(ctx)
	if err := s.runs.FinishRun(finishCtx, run.ID, status, rows, files, errMsg, s.now()); err != nil {
		s.logger.Error("failed to record export run", "job", name, "run_id", run.ID, "error", err)
	}

	if runErr != nil {
		return nil, runErr
	}
	result.RunID = run.ID
	return result, nil
}

// RunAll executes every job concurrently. Every job runs even when others
// fail; the returned error joins all failures.
func (s *Service) RunAll(ctx context.Context, trigger string) ([]*domain.ExportResult, error) {
	results := make([]*domain.ExportResult, len(s.order))
	errs := make([]error, len(s.order))

	var g errgroup.Group
	for i, name := range s.order {
		g.Go(func() error {
			res, err := s.Run(ctx, name, trigger)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", name, err)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*domain.ExportResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, errors.Join(errs...)
}

// Runs lists the recorded runs of job, newest first. An empty job lists
// runs of every job.
func (s *Service) Runs(ctx context.Context, job string, limit int) ([]domain.ExportRun, error) {
	if job != "" {
		if _, err := s.Job(job); err != nil {
			return nil, err
		}
	}
	if limit <= 0 {
		limit = domain.DefaultListLimit
	}
	return s.runs.ListRuns(ctx, job, limit)
}

// States lists the most recently exported rows of job.
func (s *Service) States(ctx context.Context, job string, limit int) ([]domain.ExportState, error) {
	if _, err := s.Job(job); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = domain.DefaultListLimit
	}
	return s.state.ListStates(ctx, job, limit)
}

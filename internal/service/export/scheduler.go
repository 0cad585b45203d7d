package export

import (
	"context"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"smartkeiba/internal/domain"
)

// JobRunner is the part of Service the scheduler drives.
type JobRunner interface {
	Jobs() []domain.ExportJob
	Run(ctx context.Context, name, trigger string) (*domain.ExportResult, error)
}

// Scheduler manages cron-based export execution.
type Scheduler struct {
	cron    *cron.Cron
	runner  JobRunner
	logger  *slog.Logger
	mu      sync.Mutex
	entries map[string]cron.EntryID // job name → cron entry
}

// NewScheduler creates a new export scheduler.
func NewScheduler(runner JobRunner, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		runner:  runner,
		logger:  logger,
		entries: make(map[string]cron.EntryID),
	}
}

// Start adds every job with a schedule and starts the cron scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.loadSchedules(ctx)
	s.mu.Unlock()
	s.cron.Start()
	s.logger.Info("export scheduler started", "jobs", len(s.entries))
	return nil
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("export scheduler stopped")
}

// Reload clears all cron entries and reloads them from the runner.
func (s *Scheduler) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entryID := range s.entries {
		s.cron.Remove(entryID)
	}
	s.entries = make(map[string]cron.EntryID)
	s.loadSchedules(ctx)
	return nil
}

func (s *Scheduler) loadSchedules(ctx context.Context) {
	for _, job := range s.runner.Jobs() {
		if job.Schedule == "" {
			continue
		}
		name := job.Name
		schedule := job.Schedule

		entryID, err := s.cron.AddFunc(schedule, func() {
			runCtx := context.WithoutCancel(ctx)
			res, runErr := s.runner.Run(runCtx, name, domain.TriggerScheduled)
			if runErr != nil {
				s.logger.Warn("scheduled export failed",
					"job", name,
					"error", runErr,
				)
				return
			}
			s.logger.Info("scheduled export finished", "job", name, "rows", res.RowsExported)
		})
		if err != nil {
			s.logger.Warn("invalid cron schedule",
				"job", name,
				"schedule", schedule,
				"error", err,
			)
			continue
		}

		s.entries[name] = entryID
		s.logger.Info("scheduled export job", "job", name, "schedule", schedule)
	}
}

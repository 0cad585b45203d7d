// Package app wires configuration, stores and services into a runnable
// application shared by the server and the CLI.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"smartkeiba/internal/config"
	internaldb "smartkeiba/internal/db"
	"smartkeiba/internal/db/repository"
	"smartkeiba/internal/declarative"
	"smartkeiba/internal/domain"
	"smartkeiba/internal/secrets"
	"smartkeiba/internal/service/export"
	"smartkeiba/internal/service/sources"
	"smartkeiba/internal/sink"
	"smartkeiba/internal/warehouse"
)

// Project is the declarative part of the application: project settings
// plus the documents of the config directory.
type Project struct {
	Settings     *config.ProjectConfig
	Declarations *declarative.Declarations
}

// LoadProject reads project settings and declarative documents and
// validates them. Validation problems are reported together in one
// ValidationError.
func LoadProject(cfg *config.Config) (*Project, error) {
	settings, err := config.LoadProject(cfg.ProjectDir)
	if err != nil {
		return nil, err
	}
	decls, err := declarative.LoadDirectory(cfg.ConfigDir)
	if err != nil {
		return nil, err
	}
	if errs := declarative.Validate(decls); len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.Error())
		}
		return nil, domain.ErrValidation("invalid configuration in %s:\n  %s", cfg.ConfigDir, strings.Join(msgs, "\n  "))
	}
	return &Project{Settings: settings, Declarations: decls}, nil
}

// App holds the fully wired application.
type App struct {
	Project    *Project
	Store      *internaldb.Store
	Warehouse  *sql.DB
	SourceRepo *repository.SourceDeclarationRepo
	Sources    *sources.Service
	Exports    *export.Service
	Scheduler  *export.Scheduler
}

// NewSources opens the metadata store and the warehouse and wires the
// source declaration service only. Exports and Scheduler stay nil and no
// sink or credential is touched.
func NewSources(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	project, err := LoadProject(cfg)
	if err != nil {
		return nil, err
	}

	store, err := internaldb.Open(ctx, cfg.MetaDBPath, 4)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	duck, err := warehouse.OpenDuckDB(ctx, cfg.WarehousePath)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	a := &App{Project: project, Store: store, Warehouse: duck}

	a.SourceRepo = repository.NewSourceDeclarationRepo(store.Write)
	verifier := warehouse.NewVerifier(duck, cfg.StrictSources, logger.With("component", "verifier"))
	a.Sources = sources.NewService(
		project.Settings, project.Declarations.SourceSets,
		logger.With("component", "sources"),
		verifier, a.SourceRepo,
	)
	return a, nil
}

// New opens the metadata store and the warehouse and wires every service.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a, err := NewSources(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	project := a.Project
	stateRepo := repository.NewExportStateRepo(a.Store.Write)
	runRepo := repository.NewExportRunRepo(a.Store.Write)

	// === Exports ===
	resolver := secrets.NewResolver(secrets.NewSecretManager())
	dest, err := sink.Open(ctx, cfg.Sink, resolver, logger.With("component", "sink"))
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	reader := warehouse.NewDuckDB(a.Warehouse, cfg.ProjectID, cfg.DatasetID)
	exporter := export.NewExporter(reader, stateRepo, dest, logger.With("component", "exporter"))
	jobs := export.MergeJobs(export.DefaultJobs(), project.Declarations.Jobs())
	a.Exports = export.NewService(exporter, stateRepo, runRepo, jobs, logger.With("component", "export"))
	a.Scheduler = export.NewScheduler(a.Exports, logger.With("component", "scheduler"))

	logger.Info("application ready",
		"source_sets", len(project.Declarations.SourceSets),
		"export_jobs", len(jobs),
		"sink", dest.String(),
	)
	return a, nil
}

// Close releases the warehouse and the metadata store.
func (a *App) Close() error {
	return errors.Join(a.Warehouse.Close(), a.Store.Close())
}

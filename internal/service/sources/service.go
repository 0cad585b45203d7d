package sources

import (
	"context"
	"fmt"
	"log/slog"

	"smartkeiba/internal/config"
	"smartkeiba/internal/declarative"
	"smartkeiba/internal/domain"
)

// Flusher is implemented by declarers that buffer declarations and write
// them out once all tables have been declared.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Service resolves every configured source set and hands the resulting
// specs to the declarers.
type Service struct {
	project   *config.ProjectConfig
	sets      []declarative.SourceSetResource
	declarers []domain.Declarer
	logger    *slog.Logger
}

// NewService creates a new Service.
func NewService(project *config.ProjectConfig, sets []declarative.SourceSetResource, logger *slog.Logger, declarers ...domain.Declarer) *Service {
	return &Service{
		project:   project,
		sets:      sets,
		declarers: declarers,
		logger:    logger,
	}
}

// Sets returns the configured source set names in load order.
func (s *Service) Sets() []string {
	out := make([]string, 0, len(s.sets))
	for _, set := range s.sets {
		out = append(out, set.Name)
	}
	return out
}

// Resolve resolves all source sets through one registry. A table declared
// by two sets at different locations is a ConflictError; declaring it at
// the same location twice yields it once, attributed to the first set.
func (s *Service) Resolve(_ context.Context) ([]domain.SourceDeclaration, error) {
	if len(s.sets) == 0 {
		return nil, domain.ErrConfiguration("sources", "no source sets configured")
	}

	reg := NewRegistry()
	owner := make(map[string]string)
	for _, set := range s.sets {
		specs, err := s.resolveSet(set)
		if err != nil {
			return nil, err
		}
		for _, spec := range specs {
			if err := reg.Add(spec); err != nil {
				return nil, fmt.Errorf("source set %q: %w", set.Name, err)
			}
			if _, ok := owner[spec.LogicalName]; !ok {
				owner[spec.LogicalName] = set.Name
			}
		}
	}

	specs := reg.Specs()
	out := make([]domain.SourceDeclaration, 0, len(specs))
	for _, spec := range specs {
		out = append(out, domain.SourceDeclaration{SourceTableSpec: spec, SourceSet: owner[spec.LogicalName]})
	}
	return out, nil
}

func (s *Service) resolveSet(set declarative.SourceSetResource) ([]domain.SourceTableSpec, error) {
	dc, err := NewDeploymentContext(s.project, set)
	if err != nil {
		return nil, err
	}
	specs, err := ResolveSources(dc)
	if err != nil {
		return nil, fmt.Errorf("source set %q: %w", set.Name, err)
	}
	return specs, nil
}

// Declare resolves the sources and calls every declarer once per table.
// Resolution errors stop before any declarer is called.
func (s *Service) Declare(ctx context.Context) ([]domain.SourceDeclaration, error) {
	decls, err := s.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	for _, d := range s.declarers {
		for _, decl := range decls {
			if err := d.Declare(ctx, decl.SourceSet, decl.SourceTableSpec); err != nil {
				return nil, fmt.Errorf("declare %s: %w", decl.LogicalName, err)
			}
		}
		if f, ok := d.(Flusher); ok {
			if err := f.Flush(ctx); err != nil {
				return nil, fmt.Errorf("flush declarations: %w", err)
			}
		}
	}

	for _, decl := range decls {
		s.logger.Info("declared source",
			"set", decl.SourceSet, "table", decl.LogicalName, "location", decl.QualifiedName())
	}
	return decls, nil
}

// Plan compares each set's resolved specs with the declarations persisted
// in repo. Sets that fail to resolve show up as plan errors.
func (s *Service) Plan(ctx context.Context, repo domain.SourceDeclarationRepository) (*declarative.Plan, error) {
	desired := make(map[string][]domain.SourceTableSpec, len(s.sets))
	failed := make(map[string]error)
	for _, set := range s.sets {
		specs, err := s.resolveSet(set)
		if err != nil {
			failed[set.Name] = err
			continue
		}
		desired[set.Name] = specs
	}

	actual, err := repo.ListDeclarations(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list declarations: %w", err)
	}
	return declarative.Diff(desired, actual, failed), nil
}

// Apply executes a plan against repo. A plan with errors is rejected.
func (s *Service) Apply(ctx context.Context, repo domain.SourceDeclarationRepository, plan *declarative.Plan) error {
	if len(plan.Errors) > 0 {
		return domain.ErrValidation("plan has %d error(s); fix them before applying", len(plan.Errors))
	}
	for _, a := range plan.Actions {
		switch a.Operation {
		case declarative.OpCreate, declarative.OpUpdate:
			if err := repo.Declare(ctx, a.SourceSet, *a.Desired); err != nil {
				return fmt.Errorf("%s %s/%s: %w", a.Operation, a.SourceSet, a.ResourceName, err)
			}
		case declarative.OpDelete:
			if err := repo.DeleteDeclaration(ctx, a.SourceSet, a.ResourceName); err != nil {
				return fmt.Errorf("delete %s/%s: %w", a.SourceSet, a.ResourceName, err)
			}
		}
		s.logger.Info("applied source change",
			"operation", a.Operation.String(), "set", a.SourceSet, "table", a.ResourceName)
	}
	return nil
}

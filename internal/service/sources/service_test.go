package sources

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartkeiba/internal/config"
	"smartkeiba/internal/declarative"
	"smartkeiba/internal/domain"
)

type recordingDeclarer struct {
	calls   []string
	flushed int
	failOn  string
}

func (r *recordingDeclarer) Declare(_ context.Context, set string, spec domain.SourceTableSpec) error {
	if spec.LogicalName == r.failOn {
		return errors.New("boom")
	}
	r.calls = append(r.calls, set+":"+spec.QualifiedName())
	return nil
}

func (r *recordingDeclarer) Flush(context.Context) error {
	r.flushed++
	return nil
}

type memRepo struct {
	decls map[string]domain.SourceDeclaration
}

func newMemRepo() *memRepo { return &memRepo{decls: map[string]domain.SourceDeclaration{}} }

func (m *memRepo) Declare(_ context.Context, set string, spec domain.SourceTableSpec) error {
	m.decls[set+"/"+spec.LogicalName] = domain.SourceDeclaration{SourceTableSpec: spec, SourceSet: set}
	return nil
}

func (m *memRepo) ListDeclarations(_ context.Context, set string) ([]domain.SourceDeclaration, error) {
	var out []domain.SourceDeclaration
	for _, d := range m.decls {
		if set == "" || d.SourceSet == set {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memRepo) DeleteDeclaration(_ context.Context, set, name string) error {
	delete(m.decls, set+"/"+name)
	return nil
}

func (m *memRepo) DeleteSet(_ context.Context, set string) error {
	for k, d := range m.decls {
		if d.SourceSet == set {
			delete(m.decls, k)
		}
	}
	return nil
}

var _ domain.SourceDeclarationRepository = (*memRepo)(nil)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func stagingProject() *config.ProjectConfig {
	return &config.ProjectConfig{
		DefaultSchema: "kolbi_analysis_stg",
		Vars: map[string]string{
			config.VarSourceSchema:    "kolbi_keiba",
			config.VarSourceSchemaStg: "kolbi_keiba_stg",
		},
	}
}

func sourceSet(name, variant string, mutate ...func(*declarative.SourceSetSpec)) declarative.SourceSetResource {
	r := declarative.SourceSetResource{Name: name, Spec: declarative.SourceSetSpec{Variant: variant}}
	for _, m := range mutate {
		m(&r.Spec)
	}
	return r
}

func TestNewDeploymentContext_Variants(t *testing.T) {
	project := stagingProject()

	dc, err := NewDeploymentContext(project, sourceSet("a", "staged"))
	require.NoError(t, err)
	assert.Equal(t, "kolbi_keiba", dc.SourceSchemaProd)
	assert.Equal(t, "kolbi_keiba_stg", dc.SourceSchemaStaging)
	assert.Equal(t, "kolbi_analysis_stg", dc.DefaultSchemaIndicator)

	dc, err = NewDeploymentContext(project, sourceSet("b", "single"))
	require.NoError(t, err)
	assert.Equal(t, "kolbi_keiba", dc.SourceSchemaProd)
	assert.Empty(t, dc.SourceSchemaStaging, "single variant ignores the staging variable")

	dc, err = NewDeploymentContext(project, sourceSet("c", "literal", func(s *declarative.SourceSetSpec) { s.LiteralSchema = "kodb" }))
	require.NoError(t, err)
	assert.Empty(t, dc.SourceSchemaProd)
	assert.Equal(t, "kodb", dc.LiteralSchema)

	_, err = NewDeploymentContext(project, sourceSet("d", "literal"))
	var cfgErr *domain.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "literal_schema", cfgErr.Field)

	_, err = NewDeploymentContext(project, sourceSet("e", "both"))
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "variant", cfgErr.Field)
}

func TestNewDeploymentContext_NilProject(t *testing.T) {
	dc, err := NewDeploymentContext(nil, sourceSet("a", "staged"))
	require.NoError(t, err)
	_, err = ResolveSources(dc)
	var cfgErr *domain.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestService_DeclareStaging(t *testing.T) {
	rec := &recordingDeclarer{}
	svc := NewService(stagingProject(), []declarative.SourceSetResource{
		sourceSet("keiba", "staged", func(s *declarative.SourceSetSpec) { s.Database = "smartkeiba" }),
	}, discardLogger(), rec)

	decls, err := svc.Declare(context.Background())
	require.NoError(t, err)
	require.Len(t, decls, 5)
	assert.Equal(t, []string{
		"keiba:smartkeiba.kolbi_keiba_stg.kol_den1",
		"keiba:smartkeiba.kolbi_keiba_stg.kol_den2",
		"keiba:smartkeiba.kolbi_keiba_stg.kol_sei1",
		"keiba:smartkeiba.kolbi_keiba_stg.kol_sei2",
		"keiba:smartkeiba.kolbi_keiba_stg.kol_ket",
	}, rec.calls)
	assert.Equal(t, 1, rec.flushed)
}

func TestService_ResolveConflictAcrossSets(t *testing.T) {
	svc := NewService(stagingProject(), []declarative.SourceSetResource{
		sourceSet("a", "staged"),
		sourceSet("b", "single"),
	}, discardLogger())

	_, err := svc.Resolve(context.Background())
	var conflict *domain.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Contains(t, err.Error(), `source set "b"`)
}

func TestService_ResolveIdenticalSetsMerge(t *testing.T) {
	svc := NewService(stagingProject(), []declarative.SourceSetResource{
		sourceSet("a", "single"),
		sourceSet("b", "literal", func(s *declarative.SourceSetSpec) {
			s.LiteralSchema = "kolbi_keiba"
			s.TableSet = "legacy"
		}),
	}, discardLogger())

	decls, err := svc.Resolve(context.Background())
	require.NoError(t, err)
	require.Len(t, decls, 5)
	for _, d := range decls {
		assert.Equal(t, "a", d.SourceSet)
	}
}

func TestService_ResolveNoSets(t *testing.T) {
	_, err := NewService(stagingProject(), nil, discardLogger()).Resolve(context.Background())
	var cfgErr *domain.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestService_DeclareStopsOnResolveError(t *testing.T) {
	rec := &recordingDeclarer{}
	svc := NewService(&config.ProjectConfig{}, []declarative.SourceSetResource{sourceSet("a", "single")}, discardLogger(), rec)

	_, err := svc.Declare(context.Background())
	require.Error(t, err)
	assert.Empty(t, rec.calls)
	assert.Zero(t, rec.flushed)
}

func TestService_DeclarerError(t *testing.T) {
	rec := &recordingDeclarer{failOn: domain.TableKolSei1}
	svc := NewService(stagingProject(), []declarative.SourceSetResource{sourceSet("a", "staged")}, discardLogger(), rec)

	_, err := svc.Declare(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declare kol_sei1")
	assert.Len(t, rec.calls, 2)
}

func TestService_PlanAndApply(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	require.NoError(t, repo.Declare(ctx, "old", domain.SourceTableSpec{LogicalName: "kol_den1", Schema: "x", PhysicalName: "kol_den1"}))

	svc := NewService(stagingProject(), []declarative.SourceSetResource{sourceSet("keiba", "single")}, discardLogger())
	plan, err := svc.Plan(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, declarative.PlanSummary{Creates: 5, Deletes: 1}, plan.Summary())

	require.NoError(t, svc.Apply(ctx, repo, plan))
	got, err := repo.ListDeclarations(ctx, "")
	require.NoError(t, err)
	assert.Len(t, got, 5)

	plan, err = svc.Plan(ctx, repo)
	require.NoError(t, err)
	assert.False(t, plan.HasChanges())
}

func TestService_ApplyRejectsPlanErrors(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := NewService(&config.ProjectConfig{}, []declarative.SourceSetResource{sourceSet("keiba", "single")}, discardLogger())

	plan, err := svc.Plan(ctx, repo)
	require.NoError(t, err)
	require.Len(t, plan.Errors, 1)

	err = svc.Apply(ctx, repo, plan)
	var verr *domain.ValidationError
	assert.True(t, errors.As(err, &verr))
}

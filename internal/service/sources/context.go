package sources

import (
	"smartkeiba/internal/config"
	"smartkeiba/internal/declarative"
	"smartkeiba/internal/domain"
)

// NewDeploymentContext builds the resolution inputs of one source set from
// project configuration. Only the inputs the set's variant uses are copied,
// so a single-variable set never sees source_schema_stg and a literal set
// never sees either variable.
func NewDeploymentContext(project *config.ProjectConfig, set declarative.SourceSetResource) (domain.DeploymentContext, error) {
	dc := domain.DeploymentContext{
		Database:      set.Spec.Database,
		LiteralSchema: set.Spec.LiteralSchema,
		TableSet:      domain.TableSet(set.Spec.TableSet),
	}

	switch domain.Variant(set.Spec.Variant) {
	case domain.VariantLiteral:
		if dc.LiteralSchema == "" {
			return domain.DeploymentContext{}, domain.ErrConfiguration("literal_schema",
				"source set %q uses the literal variant without a literal_schema", set.Name)
		}
	case domain.VariantSingle:
		dc.SourceSchemaProd = project.Var(config.VarSourceSchema)
	case domain.VariantStaged:
		dc.SourceSchemaProd = project.Var(config.VarSourceSchema)
		dc.SourceSchemaStaging = project.Var(config.VarSourceSchemaStg)
		dc.StagingMarker = set.Spec.StagingMarker
		if project != nil {
			dc.DefaultSchemaIndicator = project.DefaultSchema
		}
	default:
		return domain.DeploymentContext{}, domain.ErrConfiguration("variant",
			"source set %q has unknown variant %q", set.Name, set.Spec.Variant)
	}
	return dc, nil
}

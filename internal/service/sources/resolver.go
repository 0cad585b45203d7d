// Package sources resolves and declares the external KODB source tables.
package sources

import (
	"smartkeiba/internal/domain"
)

// ResolveSchema picks the schema for a deployment context.
//
//   - both production and staging variables present: staging when the
//     default-schema indicator equals the staging marker, production otherwise
//   - only the production variable present: production
//   - no variable present: the literal fallback
func ResolveSchema(dc domain.DeploymentContext) (string, error) {
	switch {
	case dc.SourceSchemaProd != "" && dc.SourceSchemaStaging != "":
		if dc.IsStaging() {
			return dc.SourceSchemaStaging, nil
		}
		return dc.SourceSchemaProd, nil
	case dc.SourceSchemaProd != "":
		return dc.SourceSchemaProd, nil
	case dc.SourceSchemaStaging != "":
		return "", domain.ErrConfiguration("source_schema", "source_schema_stg is set but source_schema is missing")
	case dc.LiteralSchema != "":
		return dc.LiteralSchema, nil
	default:
		return "", domain.ErrConfiguration("source_schema", "no schema variable and no literal fallback configured")
	}
}

// ResolveSources returns one spec per table of the context's table set, all
// sharing the resolved schema and database. It is a pure function: the same
// context always yields the same specs, and on error no specs are returned.
func ResolveSources(dc domain.DeploymentContext) ([]domain.SourceTableSpec, error) {
	schema, err := ResolveSchema(dc)
	if err != nil {
		return nil, err
	}
	tables, err := dc.TableSet.Tables()
	if err != nil {
		return nil, err
	}

	reg := NewRegistry()
	for _, name := range tables {
		if err := reg.Add(domain.SourceTableSpec{
			LogicalName:  name,
			Database:     dc.Database,
			Schema:       schema,
			PhysicalName: name,
		}); err != nil {
			return nil, err
		}
	}
	return reg.Specs(), nil
}

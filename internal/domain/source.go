package domain

import (
	"fmt"
	"strings"
)

// Logical names of the KODB source tables.
const (
	TableKolDen1 = "kol_den1" // race card: race information
	TableKolDen2 = "kol_den2" // race card: horse information
	TableKolSei1 = "kol_sei1" // results: race information
	TableKolSei2 = "kol_sei2" // results: horse information
	TableKolKet  = "kol_ket"  // pedigree
)

// DefaultStagingMarker is the default-schema indicator of the staging
// environment.
const DefaultStagingMarker = "kolbi_analysis_stg"

// TableSet names a fixed, ordered list of logical source tables.
type TableSet string

// Known table sets.
const (
	TableSetFull   TableSet = "full"
	TableSetLegacy TableSet = "legacy" // historical subset without kol_ket
)

// Tables returns the logical table names of the set in declaration order.
// The returned slice is a fresh copy.
func (s TableSet) Tables() ([]string, error) {
	switch s {
	case TableSetFull, "":
		return []string{TableKolDen1, TableKolDen2, TableKolSei1, TableKolSei2, TableKolKet}, nil
	case TableSetLegacy:
		return []string{TableKolDen1, TableKolDen2, TableKolSei1, TableKolSei2}, nil
	default:
		return nil, ErrConfiguration("table_set", "unknown table set %q (expected %q or %q)", string(s), TableSetFull, TableSetLegacy)
	}
}

// Variant selects how the schema of a source set is obtained from project
// configuration. Exactly one variant is active per source set.
type Variant string

// Known variants.
const (
	// VariantLiteral uses a schema name written in the declaration itself.
	VariantLiteral Variant = "literal"
	// VariantSingle reads the single source_schema variable.
	VariantSingle Variant = "single"
	// VariantStaged reads source_schema and source_schema_stg and picks one
	// by comparing the default-schema indicator with the staging marker.
	VariantStaged Variant = "staged"
)

// Valid reports whether v is a known variant.
func (v Variant) Valid() bool {
	switch v {
	case VariantLiteral, VariantSingle, VariantStaged:
		return true
	}
	return false
}

// SourceTableSpec describes one logical external table.
type SourceTableSpec struct {
	LogicalName  string `json:"logical_name" yaml:"logical_name"`
	Database     string `json:"database,omitempty" yaml:"database,omitempty"` // empty: platform default
	Schema       string `json:"schema" yaml:"schema"`
	PhysicalName string `json:"physical_name" yaml:"physical_name"`
}

// SameLocation reports whether two specs point at the same physical table.
func (s SourceTableSpec) SameLocation(o SourceTableSpec) bool {
	return s.Database == o.Database && s.Schema == o.Schema && s.PhysicalName == o.PhysicalName
}

// QualifiedName returns the dotted database.schema.table path.
func (s SourceTableSpec) QualifiedName() string {
	parts := make([]string, 0, 3)
	if s.Database != "" {
		parts = append(parts, s.Database)
	}
	parts = append(parts, s.Schema, s.PhysicalName)
	return strings.Join(parts, ".")
}

func (s SourceTableSpec) String() string {
	return fmt.Sprintf("%s -> %s", s.LogicalName, s.QualifiedName())
}

// DeploymentContext holds the resolved inputs controlling schema selection
// for one pipeline run. It is built once from configuration and then passed
// explicitly; nothing reads ambient configuration after that.
type DeploymentContext struct {
	SourceSchemaProd       string
	SourceSchemaStaging    string // optional
	DefaultSchemaIndicator string
	StagingMarker          string // empty means DefaultStagingMarker
	LiteralSchema          string // fallback when no variable is present
	Database               string // applied to every spec, optional
	TableSet               TableSet
}

// Marker returns the effective staging marker.
func (c DeploymentContext) Marker() string {
	if c.StagingMarker == "" {
		return DefaultStagingMarker
	}
	return c.StagingMarker
}

// IsStaging reports whether the indicator selects the staging environment.
func (c DeploymentContext) IsStaging() bool {
	return c.DefaultSchemaIndicator == c.Marker()
}

// SourceDeclaration is a persisted SourceTableSpec with bookkeeping.
type SourceDeclaration struct {
	SourceTableSpec
	SourceSet  string `json:"source_set"`
	DeclaredAt string `json:"declared_at"`
}

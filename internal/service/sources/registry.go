package sources

import (
	"smartkeiba/internal/domain"
)

// Registry collects source specs and enforces that each logical name maps
// to exactly one physical location. It is not safe for concurrent use.
type Registry struct {
	order []string
	specs map[string]domain.SourceTableSpec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]domain.SourceTableSpec)}
}

// Add registers spec. Re-adding an identical spec is a no-op; adding the
// same logical name with a different location fails with a ConflictError.
func (r *Registry) Add(spec domain.SourceTableSpec) error {
	if spec.LogicalName == "" {
		return domain.ErrValidation("source table has no logical name")
	}
	if spec.PhysicalName == "" {
		spec.PhysicalName = spec.LogicalName
	}
	if existing, ok := r.specs[spec.LogicalName]; ok {
		if existing.SameLocation(spec) {
			return nil
		}
		return domain.ErrConflict("source %q declared as %s and %s",
			spec.LogicalName, existing.QualifiedName(), spec.QualifiedName())
	}
	r.specs[spec.LogicalName] = spec
	r.order = append(r.order, spec.LogicalName)
	return nil
}

// Lookup returns the spec registered under name.
func (r *Registry) Lookup(name string) (domain.SourceTableSpec, bool) {
	s, ok := r.specs[name]
	return s, ok
}

// Len returns the number of registered specs.
func (r *Registry) Len() int { return len(r.order) }

// Specs returns the registered specs in insertion order.
func (r *Registry) Specs() []domain.SourceTableSpec {
	out := make([]domain.SourceTableSpec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.specs[name])
	}
	return out
}

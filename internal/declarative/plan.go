package declarative

import (
	"sort"

	"smartkeiba/internal/domain"
)

// Action represents a single planned change.
type Action struct {
	Operation    Operation
	ResourceKind ResourceKind
	SourceSet    string
	ResourceName string                  // logical table name
	Desired      *domain.SourceTableSpec // nil for Delete
	Actual       *domain.SourceTableSpec // nil for Create
	Changes      []FieldDiff
}

// FieldDiff describes a single field change within an Update action.
type FieldDiff struct {
	Field    string `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

// Plan is an ordered list of actions.
type Plan struct {
	Actions []Action
	Errors  []PlanError
}

// PlanError represents a non-actionable issue found during planning.
type PlanError struct {
	SourceSet string `json:"source_set"`
	Message   string `json:"message"`
}

// Summary returns counts of creates, updates, deletes, and errors.
func (p *Plan) Summary() PlanSummary {
	var s PlanSummary
	for _, a := range p.Actions {
		switch a.Operation {
		case OpCreate:
			s.Creates++
		case OpUpdate:
			s.Updates++
		case OpDelete:
			s.Deletes++
		}
	}
	s.Errors = len(p.Errors)
	return s
}

// HasChanges returns true if the plan has any actions or errors.
func (p *Plan) HasChanges() bool {
	return len(p.Actions) > 0 || len(p.Errors) > 0
}

// PlanSummary holds counts of planned operations.
type PlanSummary struct {
	Creates int `json:"creates"`
	Updates int `json:"updates"`
	Deletes int `json:"deletes"`
	Errors  int `json:"errors"`
}

// SortActions orders creates and updates before deletes, then by source
// set and logical name.
func (p *Plan) SortActions() {
	sort.SliceStable(p.Actions, func(i, j int) bool {
		ai, aj := p.Actions[i], p.Actions[j]

		iIsDelete := ai.Operation == OpDelete
		jIsDelete := aj.Operation == OpDelete
		if iIsDelete != jIsDelete {
			return !iIsDelete
		}
		if ai.SourceSet != aj.SourceSet {
			return ai.SourceSet < aj.SourceSet
		}
		return ai.ResourceName < aj.ResourceName
	})
}

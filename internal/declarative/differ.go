package declarative

import (
	"sort"

	"smartkeiba/internal/domain"
)

// Diff compares the resolved specs of each source set with what is
// persisted and returns the actions that bring the store in line.
// Sets present in actual but missing from desired are deleted table by
// table. Sets listed in resolveErrs failed to resolve; they are reported as
// plan errors and their persisted tables are left alone.
func Diff(desired map[string][]domain.SourceTableSpec, actual []domain.SourceDeclaration, resolveErrs map[string]error) *Plan {
	plan := &Plan{}

	current := make(map[string]map[string]domain.SourceTableSpec)
	for _, d := range actual {
		if current[d.SourceSet] == nil {
			current[d.SourceSet] = make(map[string]domain.SourceTableSpec)
		}
		current[d.SourceSet][d.LogicalName] = d.SourceTableSpec
	}

	for set, err := range resolveErrs {
		plan.Errors = append(plan.Errors, PlanError{SourceSet: set, Message: err.Error()})
	}

	for set, specs := range desired {
		have := current[set]
		want := make(map[string]bool, len(specs))
		for i := range specs {
			spec := specs[i]
			want[spec.LogicalName] = true
			old, ok := have[spec.LogicalName]
			if !ok {
				plan.Actions = append(plan.Actions, Action{
					Operation:    OpCreate,
					ResourceKind: KindSourceTable,
					SourceSet:    set,
					ResourceName: spec.LogicalName,
					Desired:      &spec,
				})
				continue
			}
			if changes := diffSpec(old, spec); len(changes) > 0 {
				prev := old
				plan.Actions = append(plan.Actions, Action{
					Operation:    OpUpdate,
					ResourceKind: KindSourceTable,
					SourceSet:    set,
					ResourceName: spec.LogicalName,
					Desired:      &spec,
					Actual:       &prev,
					Changes:      changes,
				})
			}
		}
		for name, old := range have {
			if !want[name] {
				prev := old
				plan.Actions = append(plan.Actions, deleteAction(set, name, &prev))
			}
		}
	}

	for set, have := range current {
		if _, ok := desired[set]; ok {
			continue
		}
		if _, failed := resolveErrs[set]; failed {
			continue
		}
		for name, old := range have {
			prev := old
			plan.Actions = append(plan.Actions, deleteAction(set, name, &prev))
		}
	}

	plan.SortActions()
	sortPlanErrors(plan.Errors)
	return plan
}

func deleteAction(set, name string, actual *domain.SourceTableSpec) Action {
	return Action{
		Operation:    OpDelete,
		ResourceKind: KindSourceTable,
		SourceSet:    set,
		ResourceName: name,
		Actual:       actual,
	}
}

func diffSpec(old, desired domain.SourceTableSpec) []FieldDiff {
	var diffs []FieldDiff
	if old.Database != desired.Database {
		diffs = append(diffs, FieldDiff{Field: "database", OldValue: old.Database, NewValue: desired.Database})
	}
	if old.Schema != desired.Schema {
		diffs = append(diffs, FieldDiff{Field: "schema", OldValue: old.Schema, NewValue: desired.Schema})
	}
	if old.PhysicalName != desired.PhysicalName {
		diffs = append(diffs, FieldDiff{Field: "physical_name", OldValue: old.PhysicalName, NewValue: desired.PhysicalName})
	}
	return diffs
}

func sortPlanErrors(errs []PlanError) {
	sort.Slice(errs, func(i, j int) bool { return errs[i].SourceSet < errs[j].SourceSet })
}

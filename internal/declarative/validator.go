package declarative

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/robfig/cron/v3"

	"smartkeiba/internal/domain"
)

// ValidationError represents a single validation problem.
type ValidationError struct {
	Path    string // e.g. "sources/keiba.yaml" or "job[schedules]"
	Message string
}

func (e ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// identifierPattern restricts names that end up in SQL identifiers and file names.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validMode reports whether m names an export mode; empty means batch.
func validMode(m string) bool {
	switch domain.ExportMode(m) {
	case "", domain.ExportModeBatch, domain.ExportModeStreaming:
		return true
	}
	return false
}

// Validate checks the declarations for structural correctness.
// It returns a list of all validation errors (does not stop at first error).
func Validate(decls *Declarations) []ValidationError {
	var errs []ValidationError

	// 1. Validate source sets.
	validateSourceSets(decls.SourceSets, &errs)

	// 2. Validate export jobs.
	validateExportJobs(decls.ExportJobs, &errs)

	return errs
}

func validateSourceSets(sets []SourceSetResource, errs *[]ValidationError) {
	seen := make(map[string]bool, len(sets))
	for _, s := range sets {
		path := fmt.Sprintf("source_set[%s]", s.Name)
		if s.FilePath != "" {
			path = s.FilePath
		}

		if s.Name == "" {
			*errs = append(*errs, ValidationError{Path: path, Message: "metadata.name is required"})
		} else if seen[s.Name] {
			*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("duplicate source set %q", s.Name)})
		}
		seen[s.Name] = true

		variant := domain.Variant(s.Spec.Variant)
		switch {
		case s.Spec.Variant == "":
			*errs = append(*errs, ValidationError{Path: path, Message: "spec.variant is required (literal, single or staged)"})
		case !variant.Valid():
			*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("unknown variant %q (literal, single or staged)", s.Spec.Variant)})
		case variant == domain.VariantLiteral && s.Spec.LiteralSchema == "":
			*errs = append(*errs, ValidationError{Path: path, Message: "spec.literal_schema is required for the literal variant"})
		}

		if variant != domain.VariantStaged && s.Spec.StagingMarker != "" {
			*errs = append(*errs, ValidationError{Path: path, Message: "spec.staging_marker only applies to the staged variant"})
		}

		if _, err := domain.TableSet(s.Spec.TableSet).Tables(); err != nil {
			*errs = append(*errs, ValidationError{Path: path, Message: err.Error()})
		}
	}
}

func validateExportJobs(jobs []ExportJobResource, errs *[]ValidationError) {
	seen := make(map[string]bool, len(jobs))
	for _, r := range jobs {
		j := r.Spec
		path := fmt.Sprintf("job[%s]", j.Name)

		if j.Name == "" {
			*errs = append(*errs, ValidationError{Path: r.FilePath, Message: "job name is required"})
			continue
		}
		if !identifierPattern.MatchString(j.Name) {
			*errs = append(*errs, ValidationError{Path: path, Message: "name must match [A-Za-z_][A-Za-z0-9_]*"})
		}
		if seen[j.Name] {
			*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("duplicate export job %q", j.Name)})
		}
		seen[j.Name] = true

		if j.Table == "" {
			*errs = append(*errs, ValidationError{Path: path, Message: "table is required"})
		}
		if len(j.Fields) == 0 {
			*errs = append(*errs, ValidationError{Path: path, Message: "fields must not be empty"})
		}

		fields := make(map[string]bool, len(j.Fields))
		for _, f := range j.Fields {
			if fields[f] {
				*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("duplicate field %q", f)})
			}
			fields[f] = true
		}

		switch {
		case j.KeyColumn == "":
			*errs = append(*errs, ValidationError{Path: path, Message: "key_column is required"})
		case !fields[j.KeyColumn]:
			*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("key_column %q is not in fields", j.KeyColumn)})
		}
		switch {
		case j.DateColumn == "":
			*errs = append(*errs, ValidationError{Path: path, Message: "date_column is required"})
		case !fields[j.DateColumn]:
			*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("date_column %q is not in fields", j.DateColumn)})
		}
		for _, f := range j.HashExclude {
			if !fields[f] {
				*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("hash_exclude column %q is not in fields", f)})
			}
			if f == j.KeyColumn {
				*errs = append(*errs, ValidationError{Path: path, Message: "key_column cannot be excluded from the hash"})
			}
		}

		if !validMode(j.Mode) {
			*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("unknown mode %q (batch or streaming)", j.Mode)})
		}
		if j.ChunkSize < 0 {
			*errs = append(*errs, ValidationError{Path: path, Message: "chunk_size must be positive"})
		}
		if j.FilePrefix != "" && strings.ContainsAny(j.FilePrefix, `/\`) {
			*errs = append(*errs, ValidationError{Path: path, Message: "file_prefix must not contain path separators"})
		}
		if j.Schedule != "" {
			if _, err := cron.ParseStandard(j.Schedule); err != nil {
				*errs = append(*errs, ValidationError{Path: path, Message: fmt.Sprintf("invalid schedule %q: %v", j.Schedule, err)})
			}
		}
	}
}

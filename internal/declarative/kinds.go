package declarative

// ResourceKind identifies a type of declared resource.
type ResourceKind int

// Resource kind constants.
const (
	KindSourceTable ResourceKind = iota
)

// String returns a human-readable kebab-case name for the resource kind.
func (k ResourceKind) String() string {
	switch k {
	case KindSourceTable:
		return "source-table"
	default:
		return "unknown"
	}
}

// Operation represents a planned change type.
type Operation int

const (
	// OpCreate indicates a resource should be created.
	OpCreate Operation = iota
	// OpUpdate indicates a resource should be updated.
	OpUpdate
	// OpDelete indicates a resource should be deleted.
	OpDelete
)

// String returns the operation name.
func (o Operation) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Known Kind strings used in YAML documents.
const (
	KindNameSourceSet     = "SourceSet"
	KindNameExportJobList = "ExportJobList"
)

// SupportedAPIVersion is the current API version for YAML documents.
const SupportedAPIVersion = "kolbi/v1"

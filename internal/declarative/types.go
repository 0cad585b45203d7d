package declarative

import "smartkeiba/internal/domain"

// Document is the generic envelope parsed first to determine Kind.
type Document struct {
	APIVersion string `yaml:"apiVersion"`
	Kind       string `yaml:"kind"`
}

// ObjectMeta holds common metadata for named resources.
type ObjectMeta struct {
	Name string `yaml:"name"`
}

// SourceSetDoc declares one set of external source tables and the single
// variant used to resolve its schema.
type SourceSetDoc struct {
	APIVersion string        `yaml:"apiVersion"`
	Kind       string        `yaml:"kind"`
	Metadata   ObjectMeta    `yaml:"metadata"`
	Spec       SourceSetSpec `yaml:"spec"`
}

// SourceSetSpec holds the resolution settings of a source set.
type SourceSetSpec struct {
	Variant       string `yaml:"variant"`                  // literal, single, staged
	Database      string `yaml:"database,omitempty"`       // fixed database, e.g. smartkeiba
	LiteralSchema string `yaml:"literal_schema,omitempty"` // required for literal, fallback otherwise
	StagingMarker string `yaml:"staging_marker,omitempty"` // default kolbi_analysis_stg
	TableSet      string `yaml:"table_set,omitempty"`      // full (default) or legacy
}

// SourceSetResource is a loaded SourceSet with its origin.
type SourceSetResource struct {
	Name     string
	FilePath string
	Spec     SourceSetSpec
}

// ExportJobListDoc declares delta export jobs.
type ExportJobListDoc struct {
	APIVersion string          `yaml:"apiVersion"`
	Kind       string          `yaml:"kind"`
	Jobs       []ExportJobSpec `yaml:"jobs"`
}

// ExportJobSpec describes a single export job.
type ExportJobSpec struct {
	Name        string   `yaml:"name"`
	Schema      string   `yaml:"schema,omitempty"`
	Table       string   `yaml:"table"`
	KeyColumn   string   `yaml:"key_column"`
	Fields      []string `yaml:"fields"`
	HashExclude []string `yaml:"hash_exclude,omitempty"`
	DateColumn  string   `yaml:"date_column"`
	DateLayout  string   `yaml:"date_layout,omitempty"`
	ChunkSize   int      `yaml:"chunk_size,omitempty"`
	Mode        string   `yaml:"mode,omitempty"` // batch (default) or streaming
	FilePrefix  string   `yaml:"file_prefix,omitempty"`
	Schedule    string   `yaml:"schedule,omitempty"`
	Directory   string   `yaml:"directory,omitempty"`
}

// ToDomain converts the spec into a domain export job.
func (s ExportJobSpec) ToDomain() domain.ExportJob {
	mode := domain.ExportMode(s.Mode)
	if mode == "" {
		mode = domain.ExportModeBatch
	}
	return domain.ExportJob{
		Name:          s.Name,
		Schema:        s.Schema,
		Table:         s.Table,
		KeyColumn:     s.KeyColumn,
		Fields:        append([]string(nil), s.Fields...),
		HashExclude:   append([]string(nil), s.HashExclude...),
		DateColumn:    s.DateColumn,
		DateLayout:    s.DateLayout,
		ChunkSize:     s.ChunkSize,
		Mode:          mode,
		FilePrefix:    s.FilePrefix,
		Schedule:      s.Schedule,
		SinkDirectory: s.Directory,
	}
}

// ExportJobResource is a loaded export job with its origin.
type ExportJobResource struct {
	FilePath string
	Spec     ExportJobSpec
}

// Declarations is everything loaded from a configuration directory.
type Declarations struct {
	SourceSets []SourceSetResource
	ExportJobs []ExportJobResource
}

// Jobs returns the declared export jobs as domain values.
func (d *Declarations) Jobs() []domain.ExportJob {
	out := make([]domain.ExportJob, 0, len(d.ExportJobs))
	for _, j := range d.ExportJobs {
		out = append(out, j.Spec.ToDomain())
	}
	return out
}

package domain

import "time"

// ExportMode controls how changed rows are detected and delivered.
type ExportMode string

// Export modes.
const (
	// ExportModeBatch hashes rows in process, collects every changed row and
	// names files after the global date range.
	ExportModeBatch ExportMode = "batch"
	// ExportModeStreaming hashes rows in the warehouse and uploads each chunk
	// as soon as it fills. File names always carry a part number.
	ExportModeStreaming ExportMode = "streaming"
)

// DefaultChunkSize is the number of rows per exported CSV file.
const DefaultChunkSize = 1000

// DefaultListLimit caps history and state listings when no limit is given.
const DefaultListLimit = 100

// ExportJob describes one delta export of a warehouse table.
type ExportJob struct {
	Name          string     `json:"name"`
	Schema        string     `json:"schema,omitempty"` // empty: warehouse default schema
	Table         string     `json:"table"`
	KeyColumn     string     `json:"key_column"`
	Fields        []string   `json:"fields"`
	HashExclude   []string   `json:"hash_exclude,omitempty"`
	DateColumn    string     `json:"date_column"`
	DateLayout    string     `json:"date_layout,omitempty"` // Go layout; empty means the value is already YYYYMMDD
	ChunkSize     int        `json:"chunk_size"`
	Mode          ExportMode `json:"mode"`
	FilePrefix    string     `json:"file_prefix,omitempty"` // empty: Table
	Schedule      string     `json:"schedule,omitempty"`    // cron expression
	SinkDirectory string     `json:"sink_directory,omitempty"`
}

// Prefix returns the file name prefix of exported files.
func (j ExportJob) Prefix() string {
	if j.FilePrefix != "" {
		return j.FilePrefix
	}
	return j.Table
}

// EffectiveChunkSize returns ChunkSize or DefaultChunkSize when unset.
func (j ExportJob) EffectiveChunkSize() int {
	if j.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return j.ChunkSize
}

// HashFields returns Fields minus HashExclude, preserving order.
func (j ExportJob) HashFields() []string {
	if len(j.HashExclude) == 0 {
		return append([]string(nil), j.Fields...)
	}
	skip := make(map[string]bool, len(j.HashExclude))
	for _, f := range j.HashExclude {
		skip[f] = true
	}
	out := make([]string, 0, len(j.Fields))
	for _, f := range j.Fields {
		if !skip[f] {
			out = append(out, f)
		}
	}
	return out
}

// ExportState is the last exported content hash of one row.
type ExportState struct {
	Job         string    `json:"job"`
	Key         string    `json:"key"`
	ContentHash string    `json:"content_hash"`
	ExportedAt  time.Time `json:"exported_at"`
}

// Export run statuses.
const (
	ExportStatusRunning   = "RUNNING"
	ExportStatusSucceeded = "SUCCEEDED"
	ExportStatusNoUpdates = "NO_UPDATES"
	ExportStatusFailed    = "FAILED"
)

// ExportRun records one execution of an export job.
type ExportRun struct {
	ID           string     `json:"id"`
	Job          string     `json:"job"`
	Status       string     `json:"status"`
	Trigger      string     `json:"trigger"`
	RowsExported int64      `json:"rows_exported"`
	Files        []string   `json:"files"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// Export triggers.
const (
	TriggerManual    = "MANUAL"
	TriggerScheduled = "SCHEDULED"
	TriggerHTTP      = "HTTP"
)

// ExportResult summarizes a finished export.
type ExportResult struct {
	RunID        string   `json:"run_id"`
	Job          string   `json:"job"`
	RowsExported int      `json:"rows_exported"`
	Files        []string `json:"files"`
}

// NoUpdates reports whether the run found nothing to export.
func (r *ExportResult) NoUpdates() bool { return r.RowsExported == 0 }

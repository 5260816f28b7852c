package types

// ExportParams is the input of the remote export workflow.
type ExportParams struct {
	RequestURI string // file:// or s3:// JSON document {data, columns, fileName, title}
	OutputURI  string // directory prefix the artifact is saved under (same schemes)
	FileName   string // base name; empty means the configured default
	Title      string
	ChunkSize  int
	Renderer   string // "pdf"|"chromium"
	// Optional relative subdirectory under scratch root where this workflow writes temp files.
	// If empty, activities use the workflow run id.
	ScratchSubdir string
	// If true, workflow will skip cleaning up the scratch subdir after completion/failure.
	KeepScratch bool
}

// ProcessResult points at the formatted rows written by the process phase.
type ProcessResult struct {
	FormattedURI string
	Columns      []ColumnSpec
	Rows         int
	FileName     string
	Title        string
}

type RenderParams struct {
	Process   ProcessResult
	OutputURI string
	ChunkSize int
	Renderer  string
	// ScratchSubdir receives the badger spool.
	ScratchSubdir string
}

// ExportOutcome references a persisted ExportResult instead of carrying its bytes.
type ExportOutcome struct {
	Name      string `json:"name"`
	URI       string `json:"uri"`
	Archive   bool   `json:"archive"`
	Chunks    int    `json:"chunks"`
	SizeBytes int64  `json:"size_bytes"`
}

// WorkflowMessage is one entry of the workflow's message log.
type WorkflowMessage struct {
	Type    string         `json:"type"`
	Outcome *ExportOutcome `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// CleanupParams instructs the cleanup activity which subdir to remove.
type CleanupParams struct {
	ScratchSubdir string
}

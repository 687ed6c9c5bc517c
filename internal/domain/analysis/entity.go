package analysis

import (
	"time"
)

// ID tipe untuk analysis task
type TaskID string

// MediaKind enum
type MediaKind string

const (
	MediaTabular MediaKind = "tabular"
	MediaText    MediaKind = "text"
	MediaImage   MediaKind = "image"
	MediaPDF     MediaKind = "pdf"
	MediaBinary  MediaKind = "binary"
)

// Status enum
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// AttachmentRef is one uploaded file, owned by a single AnalysisRequest.
// Decoded is populated lazily by the file context builder.
type AttachmentRef struct {
	Identifier string
	Filename   string
	Kind       MediaKind
	Data       []byte
	Decoded    any
}

// AnalysisRequest is immutable once created at intake.
type AnalysisRequest struct {
	TaskID      TaskID
	Question    string
	Attachments []AttachmentRef
	ReceivedAt  time.Time
}

// Frame is the decoded form of a tabular attachment.
type Frame struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// ImageInfo is the decoded form of an image attachment.
type ImageInfo struct {
	Format string
	Width  int
	Height int
	Data   []byte
}

// FileSummary describes one decoded binding for the generation prompt.
type FileSummary struct {
	Identifier string    `json:"id"`
	Kind       MediaKind `json:"kind"`
	Filename   string    `json:"filename"`
	Columns    []string  `json:"columns,omitempty"`
	RowCount   int       `json:"row_count,omitempty"`
	Chars      int       `json:"chars,omitempty"`
	Width      int       `json:"width,omitempty"`
	Height     int       `json:"height,omitempty"`
	SizeBytes  int       `json:"size_bytes,omitempty"`
}

// ExecutionContext carries the decoded bindings for exactly one request.
// It is never reused across requests.
type ExecutionContext struct {
	Bindings map[string]any
	Manifest []FileSummary
}

// GeneratedProgram is the opaque analysis code produced for one request.
// The system never parses it beyond size/empty checks.
type GeneratedProgram struct {
	Source      string
	GeneratedAt time.Time
}

// Prompt is the assembled generation request payload.
type Prompt struct {
	System string
	User   string
}

// ResponseEnvelope is the only externally visible record of a request's
// outcome besides the audit entry.
type ResponseEnvelope struct {
	TaskID        TaskID  `json:"task_id"`
	Status        Status  `json:"status"`
	Result        any     `json:"result"`
	Error         string  `json:"error,omitempty"`
	ExecutionTime float64 `json:"execution_time"`
}

// AuditRecord is the append-only persistence entry, one per attempt.
type AuditRecord struct {
	ID            string    `json:"id"`
	TaskID        TaskID    `json:"task_id"`
	Attempt       int       `json:"attempt"`
	Question      string    `json:"question"`
	Files         []string  `json:"files"`
	Status        Status    `json:"status"`
	ErrorDetail   string    `json:"error_detail,omitempty"`
	GeneratedCode string    `json:"generated_code,omitempty"`
	ArtifactURL   string    `json:"artifact_url,omitempty"`
	ExecutionTime float64   `json:"execution_time"`
	CreatedAt     time.Time `json:"created_at"`
}

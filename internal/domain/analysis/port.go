package analysis

import (
	"context"
	"encoding/json"
)

// Repository port (interface untuk persistence). Append-only: the request
// path only writes; reads serve the task lookup endpoints.
type Repository interface {
	Save(ctx context.Context, rec *AuditRecord) error
	Get(ctx context.Context, id TaskID) (*AuditRecord, error)
	Latest(ctx context.Context, limit int) ([]*AuditRecord, error)
}

// ContextBuilder decodes attachments into a fresh ExecutionContext.
// Failed decodes are returned alongside, never silently substituted.
type ContextBuilder interface {
	Build(attachments []AttachmentRef) (*ExecutionContext, []*DecodeError)
}

// PromptBuilder assembles the generation request payload. Pure.
type PromptBuilder interface {
	Build(question string, manifest []FileSummary) Prompt
}

// Generator port for the external code-generation service. The call must
// honour ctx cancellation; retry policy belongs to the orchestrator.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (GeneratedProgram, error)
}

// Sandbox port (interface untuk eksekusi program). The wall-clock budget
// arrives as the ctx deadline; an expired deadline must terminate the
// execution unit, not just stop waiting on it. The returned error covers
// host-side failures only — program faults and timeouts are outcomes.
type Sandbox interface {
	Execute(ctx context.Context, program GeneratedProgram, env *ExecutionContext) (ExecutionOutcome, error)
}

// Normalizer converts a success payload into a transport-safe value.
type Normalizer interface {
	Normalize(raw json.RawMessage) (any, error)
}

// ArtifactStore port (interface untuk penyimpanan artefak).
type ArtifactStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

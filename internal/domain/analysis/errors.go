package analysis

import (
	"errors"
	"fmt"
)

// ErrDeadlineExceeded indicates the overall request budget was exhausted.
// It supersedes every other in-flight error.
var ErrDeadlineExceeded = errors.New("analysis deadline exceeded")

// DecodeError is attachment-local and never fatal to the request.
type DecodeError struct {
	Identifier string
	Kind       MediaKind
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s (%s): %v", e.Identifier, e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// GenerationError covers code-generation failures. Transient errors
// (rate limit, transport) may be retried by the orchestrator; terminal
// errors (quota, auth, empty response) are not.
type GenerationError struct {
	Reason    string
	Transient bool
	Err       error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("code generation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("code generation failed: %s", e.Reason)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// NormalizationError indicates the execution result has an unsupported
// shape. It is reported as an execution error, never silently stringified.
type NormalizationError struct {
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("result normalization failed: %s", e.Reason)
}

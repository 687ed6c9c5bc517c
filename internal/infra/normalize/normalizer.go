package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	domain "github.com/arkananta/data-analyst-agent/internal/domain/analysis"
)

// MaxDepth bounds recursive normalization so pathological nesting from
// generated code cannot degrade the response.
const MaxDepth = 8

// Normalizer maps a success payload onto the small set of transport-safe
// shapes: scalar, string (including data-URI images), mapping, sequence.
type Normalizer struct{}

func NewNormalizer() *Normalizer { return &Normalizer{} }

// Normalize decodes the raw result and walks it depth-first. Anything that
// is not representable fails with NormalizationError — silent coercion
// would hide generated-code bugs from the caller.
func (n *Normalizer) Normalize(raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &domain.NormalizationError{Reason: "empty result payload"}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		// python can emit NaN/Infinity, which is not valid JSON
		return nil, &domain.NormalizationError{Reason: "result is not transport-safe JSON: " + err.Error()}
	}

	return walk(value, 0)
}

// IsImageDataURI reports whether a normalized string is an embedded image.
func IsImageDataURI(s string) bool {
	return strings.HasPrefix(s, "data:image/")
}

func walk(value any, depth int) (any, error) {
	if depth > MaxDepth {
		return nil, &domain.NormalizationError{Reason: fmt.Sprintf("result nesting exceeds depth %d", MaxDepth)}
	}

	switch v := value.(type) {
	case nil, bool, string, json.Number:
		return v, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			norm, err := walk(item, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = norm
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			norm, err := walk(item, depth+1)
			if err != nil {
				return nil, err
			}
			out[key] = norm
		}
		return out, nil
	default:
		return nil, &domain.NormalizationError{Reason: fmt.Sprintf("unsupported result type %T", value)}
	}
}

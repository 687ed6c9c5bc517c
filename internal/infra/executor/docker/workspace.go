package docker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	domain "github.com/arkananta/data-analyst-agent/internal/domain/analysis"
)

// manifestEntry tells the harness where each binding lives and how to load it.
type manifestEntry struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	File string `json:"file"`
}

// writeWorkspace lays out the per-task directory the container mounts:
// harness.py, user_code.py, manifest.json and one file per binding.
func writeWorkspace(workDir string, program domain.GeneratedProgram, env *domain.ExecutionContext) error {
	if err := os.WriteFile(filepath.Join(workDir, "harness.py"), []byte(harnessSource), 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(workDir, "user_code.py"), []byte(program.Source), 0o644); err != nil {
		return err
	}

	filesDir := filepath.Join(workDir, "files")
	if err := os.Mkdir(filesDir, 0o755); err != nil {
		return err
	}

	entries := make([]manifestEntry, 0, len(env.Manifest))
	for _, summary := range env.Manifest {
		value, ok := env.Bindings[summary.Identifier]
		if !ok {
			continue
		}
		name, data, err := bindingFile(summary, value)
		if err != nil {
			return fmt.Errorf("binding %s: %w", summary.Identifier, err)
		}
		if err := os.WriteFile(filepath.Join(filesDir, name), data, 0o644); err != nil {
			return err
		}
		entries = append(entries, manifestEntry{
			ID:   summary.Identifier,
			Kind: string(summary.Kind),
			File: name,
		})
	}

	manifest, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(workDir, "manifest.json"), manifest, 0o644)
}

// bindingFile serializes one decoded value for the harness: tabular frames
// as JSON, text as UTF-8, everything else as raw bytes.
func bindingFile(summary domain.FileSummary, value any) (string, []byte, error) {
	switch v := value.(type) {
	case *domain.Frame:
		data, err := json.Marshal(v)
		if err != nil {
			return "", nil, err
		}
		return summary.Identifier + ".json", data, nil
	case string:
		return summary.Identifier + ".txt", []byte(v), nil
	case *domain.ImageInfo:
		name := summary.Identifier
		if v.Format != "" {
			name += "." + v.Format
		} else {
			name += ".bin"
		}
		return name, v.Data, nil
	case []byte:
		return summary.Identifier + ".bin", v, nil
	default:
		return "", nil, fmt.Errorf("unsupported binding type %T", value)
	}
}

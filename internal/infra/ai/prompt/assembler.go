package prompt

import (
	"fmt"
	"strings"

	domain "github.com/arkananta/data-analyst-agent/internal/domain/analysis"
)

// Assembler builds the generation request payload. It is a pure function of
// the question and the file manifest: same input, same prompt.
type Assembler struct{}

func NewAssembler() *Assembler { return &Assembler{} }

// systemPrompt describes the fixed capability surface of the sandbox. It is
// the contract the generated program must follow.
const systemPrompt = `You are an expert data analyst. Generate Python code to answer data analysis questions.

IMPORTANT RULES:
1. Always store the final answer in a variable called 'result'.
2. A mapping called 'files' is available: it maps each file identifier to its decoded value.
   Tabular files are dicts with keys "columns" (list of column names) and "rows" (list of rows,
   each a list of strings). Text and PDF files are plain strings. Images are raw bytes.
3. To return a chart, call plot_to_data_uri() after drawing with matplotlib; it returns a
   base64 data-URI string. Assign that string to 'result'.
4. Only use the provided bindings and helpers. There is no network access and no filesystem
   beyond the working directory.
5. The value assigned to 'result' must be JSON-serializable: a number, string, boolean,
   list, or dict.
6. Respond with the code only. Do not explain it.

Available libraries: pandas (pd), numpy (np), matplotlib.pyplot (plt), json.
Available helpers: plot_to_data_uri().`

// Build assembles the prompt deterministically from the question and the
// manifest of decoded files.
func (a *Assembler) Build(question string, manifest []domain.FileSummary) domain.Prompt {
	var sb strings.Builder
	sb.WriteString("Generate Python code to answer this question:\n")
	sb.WriteString(question)
	sb.WriteString("\n\nThe code must store the final answer in a variable called 'result'.\n")

	if len(manifest) == 0 {
		sb.WriteString("\nNo files were provided.\n")
	} else {
		sb.WriteString("\nAvailable files:\n")
		for _, f := range manifest {
			sb.WriteString(describe(f))
		}
	}

	return domain.Prompt{System: systemPrompt, User: sb.String()}
}

func describe(f domain.FileSummary) string {
	switch f.Kind {
	case domain.MediaTabular:
		return fmt.Sprintf("- files[%q]: table from %s, %d rows, columns: %s\n",
			f.Identifier, f.Filename, f.RowCount, strings.Join(f.Columns, ", "))
	case domain.MediaText, domain.MediaPDF:
		return fmt.Sprintf("- files[%q]: text from %s, %d characters\n",
			f.Identifier, f.Filename, f.Chars)
	case domain.MediaImage:
		return fmt.Sprintf("- files[%q]: image from %s, %dx%d pixels (raw bytes)\n",
			f.Identifier, f.Filename, f.Width, f.Height)
	default:
		return fmt.Sprintf("- files[%q]: raw bytes from %s, %d bytes\n",
			f.Identifier, f.Filename, f.SizeBytes)
	}
}

package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/arkananta/data-analyst-agent/internal/domain/analysis"
)

func TestBuildDeterministic(t *testing.T) {
	a := NewAssembler()
	manifest := []domain.FileSummary{
		{Identifier: "sales_csv", Filename: "sales.csv", Kind: domain.MediaTabular, RowCount: 10, Columns: []string{"month", "total"}},
		{Identifier: "notes_txt", Filename: "notes.txt", Kind: domain.MediaText, Chars: 1200},
	}

	p1 := a.Build("What is the total per month?", manifest)
	p2 := a.Build("What is the total per month?", manifest)
	assert.Equal(t, p1, p2)
}

func TestBuildMentionsEveryFile(t *testing.T) {
	a := NewAssembler()
	manifest := []domain.FileSummary{
		{Identifier: "sales_csv", Filename: "sales.csv", Kind: domain.MediaTabular, RowCount: 3, Columns: []string{"a", "b"}},
		{Identifier: "report_pdf", Filename: "report.pdf", Kind: domain.MediaPDF, Chars: 900},
		{Identifier: "chart_png", Filename: "chart.png", Kind: domain.MediaImage, Width: 640, Height: 480},
		{Identifier: "blob_bin", Filename: "blob.bin", Kind: domain.MediaBinary, SizeBytes: 128},
	}

	p := a.Build("Summarize.", manifest)
	assert.Contains(t, p.User, `files["sales_csv"]`)
	assert.Contains(t, p.User, "columns: a, b")
	assert.Contains(t, p.User, `files["report_pdf"]`)
	assert.Contains(t, p.User, `files["chart_png"]`)
	assert.Contains(t, p.User, "640x480")
	assert.Contains(t, p.User, `files["blob_bin"]`)
	assert.Contains(t, p.User, "Summarize.")
}

func TestBuildNoFiles(t *testing.T) {
	p := NewAssembler().Build("What is 2 + 2?", nil)
	assert.Contains(t, p.User, "No files were provided")
	require.NotEmpty(t, p.System)
	assert.Contains(t, p.System, "'result'")
	assert.Contains(t, p.System, "plot_to_data_uri")
}

package files

import (
	"bytes"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/arkananta/data-analyst-agent/internal/domain/analysis"
)

func TestDecodeCSV(t *testing.T) {
	data := []byte("name,age\nAndi,30\nBudi,25\n")
	att := domain.AttachmentRef{
		Identifier: "people_csv",
		Filename:   "people.csv",
		Kind:       domain.MediaTabular,
		Data:       data,
	}

	env, failed := NewBuilder().Build([]domain.AttachmentRef{att})
	require.Empty(t, failed)
	require.Len(t, env.Manifest, 1)

	frame, ok := env.Bindings["people_csv"].(*domain.Frame)
	require.True(t, ok)
	assert.Equal(t, []string{"name", "age"}, frame.Columns)
	require.Len(t, frame.Rows, 2)
	assert.Equal(t, []string{"Andi", "30"}, frame.Rows[0])

	assert.Equal(t, 2, env.Manifest[0].RowCount)
	assert.Equal(t, []string{"name", "age"}, env.Manifest[0].Columns)
}

func TestDecodeTSV(t *testing.T) {
	data := []byte("a\tb\n1\t2\n")
	frame, err := decodeTabular("data.tsv", data)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, frame.Columns)
	assert.Equal(t, [][]string{{"1", "2"}}, frame.Rows)
}

func TestDecodeCSVMalformed(t *testing.T) {
	// unbalanced quote makes the reader bail
	data := []byte("a,b\n\"oops,2\n")
	att := domain.AttachmentRef{
		Identifier: "bad_csv",
		Filename:   "bad.csv",
		Kind:       domain.MediaTabular,
		Data:       data,
	}

	env, failed := NewBuilder().Build([]domain.AttachmentRef{att})
	require.Len(t, failed, 1)
	assert.Equal(t, "bad_csv", failed[0].Identifier)
	assert.Empty(t, env.Bindings)
	assert.Empty(t, env.Manifest)
}

func TestDecodeFailureDoesNotBlockOthers(t *testing.T) {
	good := domain.AttachmentRef{
		Identifier: "ok_csv",
		Filename:   "ok.csv",
		Kind:       domain.MediaTabular,
		Data:       []byte("x\n1\n"),
	}
	bad := domain.AttachmentRef{
		Identifier: "broken_png",
		Filename:   "broken.png",
		Kind:       domain.MediaImage,
		Data:       []byte("not an image"),
	}

	env, failed := NewBuilder().Build([]domain.AttachmentRef{bad, good})
	require.Len(t, failed, 1)
	assert.Equal(t, "broken_png", failed[0].Identifier)
	assert.Contains(t, env.Bindings, "ok_csv")
	assert.NotContains(t, env.Bindings, "broken_png")
}

func TestDecodeText(t *testing.T) {
	att := domain.AttachmentRef{
		Identifier: "notes_txt",
		Filename:   "notes.txt",
		Kind:       domain.MediaText,
		Data:       []byte("hello\x00 world \xff\xfe"),
	}

	env, failed := NewBuilder().Build([]domain.AttachmentRef{att})
	require.Empty(t, failed)

	text, ok := env.Bindings["notes_txt"].(string)
	require.True(t, ok)
	assert.NotContains(t, text, "\x00")
	assert.Contains(t, text, "hello")
	assert.Contains(t, text, "�")
}

func TestDecodeTextTruncates(t *testing.T) {
	big := strings.Repeat("a", MaxTextChars+100)
	text := sanitizeText([]byte(big))
	assert.Len(t, text, MaxTextChars)
}

func TestDecodeImage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 3))))

	att := domain.AttachmentRef{
		Identifier: "chart_png",
		Filename:   "chart.png",
		Kind:       domain.MediaImage,
		Data:       buf.Bytes(),
	}

	env, failed := NewBuilder().Build([]domain.AttachmentRef{att})
	require.Empty(t, failed)

	info, ok := env.Bindings["chart_png"].(*domain.ImageInfo)
	require.True(t, ok)
	assert.Equal(t, "png", info.Format)
	assert.Equal(t, 4, info.Width)
	assert.Equal(t, 3, info.Height)
	assert.Equal(t, 4, env.Manifest[0].Width)
}

func TestExtractPDFTextGarbage(t *testing.T) {
	// malformed input must come back empty, never panic
	assert.Equal(t, "", extractPDFText([]byte("definitely not a pdf")))
}

func TestDecodeBinaryPassthrough(t *testing.T) {
	raw := []byte{0x00, 0x01, 0x02}
	att := domain.AttachmentRef{
		Identifier: "blob_bin",
		Filename:   "blob.bin",
		Kind:       domain.MediaBinary,
		Data:       raw,
	}

	env, failed := NewBuilder().Build([]domain.AttachmentRef{att})
	require.Empty(t, failed)
	assert.Equal(t, raw, env.Bindings["blob_bin"])
}

func TestDetectKind(t *testing.T) {
	cases := map[string]domain.MediaKind{
		"sales.csv":   domain.MediaTabular,
		"sales.TSV":   domain.MediaTabular,
		"book.xlsx":   domain.MediaTabular,
		"readme.md":   domain.MediaText,
		"data.json":   domain.MediaText,
		"photo.JPG":   domain.MediaImage,
		"report.pdf":  domain.MediaPDF,
		"archive.zip": domain.MediaBinary,
		"noext":       domain.MediaBinary,
	}
	for name, want := range cases {
		assert.Equal(t, want, DetectKind(name), name)
	}
}

func TestIdentifier(t *testing.T) {
	assert.Equal(t, "sales_2024_csv", Identifier("sales-2024.csv"))
	assert.Equal(t, "f_2024_report_pdf", Identifier("2024 report.pdf"))
	assert.Equal(t, "file", Identifier("???"))
	assert.Equal(t, "data_csv", Identifier("DATA.CSV"))
}

func TestUniqueIdentifier(t *testing.T) {
	taken := make(map[string]bool)
	assert.Equal(t, "data_csv", UniqueIdentifier("data.csv", taken))
	assert.Equal(t, "data_csv_2", UniqueIdentifier("data.csv", taken))
	assert.Equal(t, "data_csv_3", UniqueIdentifier("data.csv", taken))
}

func TestNormalizeWhitespace(t *testing.T) {
	assert.Equal(t, "a b\nc", normalizeWhitespace("a   b\n\n  c"))
}

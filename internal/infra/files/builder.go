package files

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	domain "github.com/arkananta/data-analyst-agent/internal/domain/analysis"
)

const (
	// MaxTextChars caps extracted text so one attachment cannot blow up
	// the prompt or the sandbox workspace.
	MaxTextChars = 1024 * 1024

	// MaxPDFPages limits how many pages are extracted per document.
	MaxPDFPages = 100
)

// Builder decodes AttachmentRefs into a fresh ExecutionContext per request.
type Builder struct{}

func NewBuilder() *Builder { return &Builder{} }

// Build decodes every attachment. Failed decodes are collected and excluded
// from the bindings; a request with zero decoded attachments still proceeds.
func (b *Builder) Build(attachments []domain.AttachmentRef) (*domain.ExecutionContext, []*domain.DecodeError) {
	env := &domain.ExecutionContext{
		Bindings: make(map[string]any, len(attachments)),
	}
	var failed []*domain.DecodeError

	for i := range attachments {
		att := &attachments[i]
		summary, err := b.decode(att)
		if err != nil {
			failed = append(failed, err)
			continue
		}
		env.Bindings[att.Identifier] = att.Decoded
		env.Manifest = append(env.Manifest, summary)
	}
	return env, failed
}

func (b *Builder) decode(att *domain.AttachmentRef) (domain.FileSummary, *domain.DecodeError) {
	summary := domain.FileSummary{
		Identifier: att.Identifier,
		Kind:       att.Kind,
		Filename:   att.Filename,
		SizeBytes:  len(att.Data),
	}

	switch att.Kind {
	case domain.MediaTabular:
		frame, err := decodeTabular(att.Filename, att.Data)
		if err != nil {
			return summary, &domain.DecodeError{Identifier: att.Identifier, Kind: domain.MediaTabular, Err: err}
		}
		att.Decoded = frame
		summary.Columns = frame.Columns
		summary.RowCount = len(frame.Rows)

	case domain.MediaText:
		// Invalid encoding is replaced/truncated, never fatal.
		text := sanitizeText(att.Data)
		att.Decoded = text
		summary.Chars = len(text)

	case domain.MediaPDF:
		// Extraction failure yields an empty string, not an error;
		// documents vary too much to treat it as request-fatal.
		text := extractPDFText(att.Data)
		att.Decoded = text
		summary.Chars = len(text)

	case domain.MediaImage:
		info, err := decodeImage(att.Data)
		if err != nil {
			return summary, &domain.DecodeError{Identifier: att.Identifier, Kind: domain.MediaImage, Err: err}
		}
		att.Decoded = info
		summary.Width = info.Width
		summary.Height = info.Height

	default:
		att.Decoded = att.Data
	}

	return summary, nil
}

// decodeTabular parses CSV directly and XLSX via excelize. The first row is
// taken as the header.
func decodeTabular(filename string, data []byte) (*domain.Frame, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".xlsx" {
		return decodeXLSX(data)
	}
	sep := ','
	if ext == ".tsv" {
		sep = '\t'
	}
	return decodeCSV(data, sep)
}

func decodeCSV(data []byte, sep rune) (*domain.Frame, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sep
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	frame := &domain.Frame{Columns: header}
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(frame.Rows)+2, err)
		}
		frame.Rows = append(frame.Rows, row)
	}
	return frame, nil
}

func decodeXLSX(data []byte) (*domain.Frame, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	width := len(rows[0])
	frame := &domain.Frame{Columns: rows[0]}
	for _, row := range rows[1:] {
		// excelize trims trailing empty cells; pad to header width
		for len(row) < width {
			row = append(row, "")
		}
		frame.Rows = append(frame.Rows, row[:width])
	}
	return frame, nil
}

func decodeImage(data []byte) (*domain.ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unsupported image: %w", err)
	}
	return &domain.ImageInfo{
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
		Data:   data,
	}, nil
}

// extractPDFText is best-effort: unreadable documents or pages produce
// empty output instead of an error.
func extractPDFText(data []byte) string {
	defer func() {
		// ledongthuc/pdf panics on some malformed xref tables
		_ = recover()
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}

	pages := reader.NumPage()
	if pages > MaxPDFPages {
		pages = MaxPDFPages
	}

	var sb strings.Builder
	for n := 1; n <= pages; n++ {
		page := reader.Page(n)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(normalizeWhitespace(text))
		sb.WriteString("\n")
		if sb.Len() > MaxTextChars {
			break
		}
	}
	return truncate(strings.TrimSpace(sb.String()), MaxTextChars)
}

func sanitizeText(data []byte) string {
	text := strings.ToValidUTF8(string(data), "�")
	text = strings.ReplaceAll(text, "\x00", "")
	return truncate(text, MaxTextChars)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func normalizeWhitespace(text string) string {
	var sb strings.Builder
	lastWasSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				if r == '\n' {
					sb.WriteRune('\n')
				} else {
					sb.WriteRune(' ')
				}
				lastWasSpace = true
			}
			continue
		}
		sb.WriteRune(r)
		lastWasSpace = false
	}
	return sb.String()
}

var identifierPattern = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// DetectKind classifies an attachment by filename extension.
func DetectKind(filename string) domain.MediaKind {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".tsv", ".xlsx":
		return domain.MediaTabular
	case ".txt", ".md", ".json", ".log":
		return domain.MediaText
	case ".png", ".jpg", ".jpeg", ".gif":
		return domain.MediaImage
	case ".pdf":
		return domain.MediaPDF
	default:
		return domain.MediaBinary
	}
}

// Identifier derives a stable binding name from the original filename,
// e.g. "sales-2024.csv" becomes "sales_2024_csv".
func Identifier(filename string) string {
	id := identifierPattern.ReplaceAllString(filename, "_")
	id = strings.Trim(id, "_")
	if id == "" {
		id = "file"
	}
	if id[0] >= '0' && id[0] <= '9' {
		id = "f_" + id
	}
	return strings.ToLower(id)
}

// UniqueIdentifier suffixes the identifier when it collides with one
// already taken within the same request.
func UniqueIdentifier(filename string, taken map[string]bool) string {
	id := Identifier(filename)
	if !taken[id] {
		taken[id] = true
		return id
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d", id, n)
		if !taken[candidate] {
			taken[candidate] = true
			return candidate
		}
	}
}

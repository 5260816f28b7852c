package render

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/yourorg/table-export/internal/types"
)

// HeaderColor is the fill of the table header row (#6366F1).
var HeaderColor = [3]int{0x63, 0x66, 0xF1}

const (
	landscapeAbove = 6
	margin         = 10.0
	ellipsis       = "..."
)

// fixedDate keeps output byte-stable across runs.
var fixedDate = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Table renders a chunk as a native PDF table. The zero value is ready to use.
type Table struct {
	Title    string
	PageSize string  // default "A4"
	FontSize float64 // default 8
	// Uncompressed disables stream compression; useful for inspecting output.
	Uncompressed bool
	CreatedAt    time.Time
}

func (t *Table) Render(ctx context.Context, rows types.Chunk, cols []types.ColumnSpec) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pageSize := t.PageSize
	if pageSize == "" {
		pageSize = "A4"
	}
	fontSize := t.FontSize
	if fontSize <= 0 {
		fontSize = 8
	}
	orientation := "P"
	if len(cols) > landscapeAbove {
		orientation = "L"
	}
	created := t.CreatedAt
	if created.IsZero() {
		created = fixedDate
	}

	pdf := fpdf.New(orientation, "mm", pageSize, "")
	pdf.SetCompression(!t.Uncompressed)
	pdf.SetCreationDate(created)
	pdf.SetModificationDate(created)
	pdf.SetCreator("table-export", true)
	if t.Title != "" {
		pdf.SetTitle(t.Title, true)
	}
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	colW := 0.0
	if len(cols) > 0 {
		colW = (pageW - 2*margin) / float64(len(cols))
	}
	rowH := fontSize * 0.6

	pdf.SetHeaderFunc(func() {
		if pdf.PageNo() == 1 && t.Title != "" {
			pdf.SetFont("Helvetica", "B", fontSize+4)
			pdf.CellFormat(0, rowH*2, tr(t.Title), "", 1, "L", false, 0, "")
			pdf.Ln(rowH / 2)
		}
		if len(cols) == 0 {
			return
		}
		pdf.SetFont("Helvetica", "B", fontSize)
		pdf.SetFillColor(HeaderColor[0], HeaderColor[1], HeaderColor[2])
		pdf.SetTextColor(255, 255, 255)
		pdf.SetDrawColor(HeaderColor[0], HeaderColor[1], HeaderColor[2])
		for _, c := range cols {
			pdf.CellFormat(colW, rowH, fit(pdf, tr(c.Label), colW), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
	})

	pdf.AddPage()
	pdf.SetFont("Helvetica", "", fontSize)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetDrawColor(210, 210, 220)
	pdf.SetFillColor(245, 245, 250)
	for i, row := range rows {
		if i%500 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for _, c := range cols {
			pdf.CellFormat(colW, rowH, fit(pdf, tr(row[c.Key]), colW), "1", 0, "L", i%2 == 1, 0, "")
		}
		pdf.Ln(-1)
	}

	if pdf.Err() {
		return nil, fmt.Errorf("pdf: %w", pdf.Error())
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf output: %w", err)
	}
	return buf.Bytes(), nil
}

// fit truncates s with an ellipsis so it fits into a cell of width w.
// s is already translated to the single-byte core font encoding.
func fit(pdf *fpdf.Fpdf, s string, w float64) string {
	avail := w - 2 // cell padding on both sides
	if pdf.GetStringWidth(s) <= avail {
		return s
	}
	for n := len(s) - 1; n > 0; n-- {
		if pdf.GetStringWidth(s[:n]+ellipsis) <= avail {
			return s[:n] + ellipsis
		}
	}
	return ""
}

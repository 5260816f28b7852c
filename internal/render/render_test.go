package render

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/yourorg/table-export/internal/types"
)

func sampleCols(n int) []types.ColumnSpec {
	out := make([]types.ColumnSpec, n)
	for i := range out {
		out[i] = types.ColumnSpec{Key: fmt.Sprintf("c%d", i), Label: fmt.Sprintf("Col %d", i)}
	}
	return out
}

func sampleRows(n int, cols []types.ColumnSpec) types.Chunk {
	rows := make(types.Chunk, n)
	for i := range rows {
		r := types.FormattedRow{}
		for _, c := range cols {
			r[c.Key] = fmt.Sprintf("%s-r%d", c.Key, i)
		}
		rows[i] = r
	}
	return rows
}

func TestTableRendersHeaderAndRows(t *testing.T) {
	cols := []types.ColumnSpec{{Key: "name", Label: "Name"}, {Key: "amount", Label: "Amount"}}
	rows := types.Chunk{{"name": "Ann", "amount": "3.14"}}
	r := &Table{Uncompressed: true, Title: "Quarterly"}
	out, err := r.Render(context.Background(), rows, cols)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Fatalf("output is not a PDF: %q", out[:min(len(out), 16)])
	}
	for _, want := range []string{"(Name)", "(Amount)", "(Ann)", "(3.14)", "(Quarterly)"} {
		if !bytes.Contains(out, []byte(want)) {
			t.Fatalf("output missing %s", want)
		}
	}
}

func TestTableDeterministic(t *testing.T) {
	cols := sampleCols(3)
	rows := sampleRows(20, cols)
	a, err := (&Table{}).Render(context.Background(), rows, cols)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := (&Table{}).Render(context.Background(), rows, cols)
	if !bytes.Equal(a, b) {
		t.Fatalf("two renders of the same chunk differ")
	}
}

func TestTableRepeatsHeaderPerPage(t *testing.T) {
	cols := sampleCols(2)
	rows := sampleRows(300, cols)
	out, err := (&Table{Uncompressed: true}).Render(context.Background(), rows, cols)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pages := bytes.Count(out, []byte("/Type /Page\n"))
	headers := bytes.Count(out, []byte("(Col 0)"))
	if pages < 2 {
		t.Fatalf("expected several pages for 300 rows, got %d", pages)
	}
	if headers != pages {
		t.Fatalf("header drawn %d times on %d pages", headers, pages)
	}
}

func TestTableEmptyChunk(t *testing.T) {
	out, err := (&Table{Uncompressed: true}).Render(context.Background(), nil, sampleCols(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Contains(out, []byte("(Col 1)")) {
		t.Fatalf("header-only document expected")
	}
}

func TestTableTruncatesLongCells(t *testing.T) {
	cols := sampleCols(7)
	long := strings.Repeat("wide ", 60)
	rows := types.Chunk{{"c0": long}}
	out, err := (&Table{Uncompressed: true}).Render(context.Background(), rows, cols)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bytes.Contains(out, []byte(long)) {
		t.Fatalf("long cell was not truncated")
	}
	if !bytes.Contains(out, []byte("...)")) {
		t.Fatalf("expected ellipsis in truncated cell")
	}
}

func TestTableCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (&Table{}).Render(ctx, nil, sampleCols(1)); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestHTMLEscapesAndOrders(t *testing.T) {
	cols := []types.ColumnSpec{{Key: "b", Label: "B"}, {Key: "a", Label: "A"}}
	doc, err := HTML("T", types.Chunk{{"a": "1", "b": "<x>"}}, cols)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(doc, "<td>&lt;x&gt;</td><td>1</td>") {
		t.Fatalf("cells not escaped or out of order:\n%s", doc)
	}
	if !strings.Contains(doc, "#6366F1") {
		t.Fatalf("header color missing")
	}
}

func TestNew(t *testing.T) {
	r, err := New("", Options{Title: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tb, ok := r.(*Table); !ok || tb.Title != "x" {
		t.Fatalf("default renderer = %T", r)
	}
	if _, err := New("chromium", Options{}); err != nil {
		t.Fatalf("chromium: %v", err)
	}
	if _, err := New("docx", Options{}); err == nil {
		t.Fatalf("expected error for unknown renderer")
	}
	if err := Close(r); err != nil {
		t.Fatalf("close: %v", err)
	}
}

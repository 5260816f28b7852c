package rowsource

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	iopkg "github.com/yourorg/table-export/internal/iopkg"
	"github.com/yourorg/table-export/internal/normalize"
	"github.com/yourorg/table-export/internal/types"
)

var ErrUnsupported = errors.New("unsupported input format")

// Table is a decoded input: a header (column keys in display order) and rows
// keyed by header. Descriptors is set when the input carried its own columns.
type Table struct {
	Header      []string
	Rows        []types.Row
	Descriptors []types.ColumnDescriptor
	FileName    string
	Title       string
}

// Columns returns the input's own descriptors or Plain ones built from the header.
func (t Table) Columns() []types.ColumnDescriptor {
	if len(t.Descriptors) > 0 {
		return t.Descriptors
	}
	return normalize.Header(t.Header)
}

// Read loads uri (file:// or s3://) and decodes it by extension.
func Read(ctx context.Context, uri string) (Table, error) {
	b, err := iopkg.ReadFile(ctx, uri)
	if err != nil {
		return Table{}, err
	}
	return Parse(uri, b)
}

// Parse decodes b according to name's extension.
func Parse(name string, b []byte) (Table, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".json":
		return ReadJSON(b)
	case ".csv", ".tsv", ".txt":
		return ReadCSV(bytes.NewReader(b))
	case ".xlsx", ".xlsm":
		return ReadXLSX(b)
	case ".xls":
		return ReadXLS(b)
	default:
		return Table{}, fmt.Errorf("%s: %w", name, ErrUnsupported)
	}
}

// ReadJSON accepts either an array of row objects or a worker request
// document {"data": [...], "columns": [...]}. Numbers stay json.Number.
// Without explicit columns the header is the sorted union of row keys.
func ReadJSON(b []byte) (Table, error) {
	trimmed := bytes.TrimSpace(b)
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var t Table
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var doc struct {
			Data     []types.Row              `json:"data"`
			Columns  []types.ColumnDescriptor `json:"columns"`
			FileName string                   `json:"fileName"`
			Title    string                   `json:"title"`
		}
		if err := dec.Decode(&doc); err != nil {
			return Table{}, fmt.Errorf("decode json: %w", err)
		}
		t = Table{Rows: doc.Data, Descriptors: doc.Columns, FileName: doc.FileName, Title: doc.Title}
	} else if err := dec.Decode(&t.Rows); err != nil {
		return Table{}, fmt.Errorf("decode json: %w", err)
	}

	if len(t.Descriptors) > 0 {
		for _, d := range t.Descriptors {
			t.Header = append(t.Header, d.AccessorKey)
		}
		return t, nil
	}
	seen := map[string]bool{}
	for _, r := range t.Rows {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				t.Header = append(t.Header, k)
			}
		}
	}
	sort.Strings(t.Header)
	return t, nil
}

// ReadCSV reads a delimited file whose first record is the header. The
// delimiter (comma, tab or semicolon) is detected from the first 4KB.
// Empty cells are treated as missing values.
func ReadCSV(r io.Reader) (Table, error) {
	br := bufio.NewReader(r)
	sample, _ := br.Peek(4096)
	cr := csv.NewReader(br)
	cr.Comma = detectDelimiter(sample)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var t Table
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("read csv: %w", err)
		}
		if t.Header == nil {
			t.Header = trimAll(rec)
			continue
		}
		if isBlank(rec) {
			continue
		}
		t.Rows = append(t.Rows, toRow(t.Header, rec))
	}
	return t, nil
}

func detectDelimiter(b []byte) rune {
	// only the first line decides; data cells may contain commas
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		b = b[:i]
	}
	cComma := bytes.Count(b, []byte{','})
	cTab := bytes.Count(b, []byte{'\t'})
	cSemi := bytes.Count(b, []byte{';'})
	if cTab > cComma && cTab > cSemi {
		return '\t'
	}
	if cSemi > cComma {
		return ';'
	}
	return ','
}

// ReadXLSX reads the first sheet; its first row is the header.
func ReadXLSX(b []byte) (Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		return Table{}, err
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, nil
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		return Table{}, err
	}
	defer rows.Close()

	var t Table
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return Table{}, err
		}
		if t.Header == nil {
			if isBlank(cols) {
				continue
			}
			t.Header = trimAll(cols)
			continue
		}
		if isBlank(cols) {
			continue
		}
		t.Rows = append(t.Rows, toRow(t.Header, cols))
	}
	return t, rows.Error()
}

// ReadXLS reads the first sheet of a legacy workbook; its first row is the header.
func ReadXLS(b []byte) (Table, error) {
	wb, err := xls.OpenReader(bytes.NewReader(b), "utf-8")
	if err != nil {
		return Table{}, err
	}
	if wb.NumSheets() == 0 {
		return Table{}, nil
	}
	sh := wb.GetSheet(0)
	if sh == nil {
		return Table{}, nil
	}
	var t Table
	for i := 0; i <= int(sh.MaxRow); i++ {
		row := sh.Row(i)
		if row == nil {
			continue
		}
		rec := make([]string, 0, row.LastCol()+1)
		for c := 0; c <= row.LastCol(); c++ {
			rec = append(rec, row.Col(c))
		}
		if isBlank(rec) {
			continue
		}
		if t.Header == nil {
			t.Header = trimAll(rec)
			continue
		}
		t.Rows = append(t.Rows, toRow(t.Header, rec))
	}
	return t, nil
}

func toRow(header, rec []string) types.Row {
	row := make(types.Row, len(header))
	for i, h := range header {
		if h == "" {
			continue
		}
		if i >= len(rec) || strings.TrimSpace(rec[i]) == "" {
			row[h] = nil
			continue
		}
		row[h] = strings.TrimSpace(rec[i])
	}
	return row
}

func trimAll(rec []string) []string {
	out := make([]string, len(rec))
	for i, s := range rec {
		out[i] = strings.TrimSpace(strings.TrimPrefix(s, "\uFEFF"))
	}
	return out
}

func isBlank(rec []string) bool {
	for _, s := range rec {
		if strings.TrimSpace(s) != "" {
			return false
		}
	}
	return true
}

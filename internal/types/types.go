package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Missing stands in for a null or absent source value in a FormattedRow.
const Missing = "-"

// Row is one raw input record. Rows are read-only.
type Row map[string]any

// FormattedRow maps ColumnSpec.Key to a display string.
type FormattedRow map[string]string

// Chunk is a contiguous, ordered slice of formatted rows.
type Chunk []FormattedRow

type FormatKind int

const (
	FormatPlain FormatKind = iota
	FormatDecimal
	FormatDate
)

func (k FormatKind) String() string {
	switch k {
	case FormatDecimal:
		return "decimal"
	case FormatDate:
		return "date"
	default:
		return "plain"
	}
}

// FormatRule is a tagged variant: Precision applies to FormatDecimal,
// Pattern to FormatDate.
type FormatRule struct {
	Kind      FormatKind `json:"kind"`
	Precision int        `json:"precision,omitempty"`
	Pattern   string     `json:"pattern,omitempty"`
}

const (
	DefaultPrecision   = 2
	DefaultDatePattern = "DD.MM.YYYY"
)

func Plain() FormatRule { return FormatRule{Kind: FormatPlain} }

func Decimal(precision int) FormatRule {
	return FormatRule{Kind: FormatDecimal, Precision: precision}
}

func Date(pattern string) FormatRule {
	if pattern == "" {
		pattern = DefaultDatePattern
	}
	return FormatRule{Kind: FormatDate, Pattern: pattern}
}

// ColumnSpec is a normalized column: Key selects the row value, Label is the
// document header.
type ColumnSpec struct {
	Key    string     `json:"key"`
	Label  string     `json:"label"`
	Format FormatRule `json:"format"`
}

// ColumnDescriptor is the user-facing column shape produced by table/grid
// components.
type ColumnDescriptor struct {
	AccessorKey string     `json:"accessorKey"`
	Header      string     `json:"header"`
	Format      FormatHint `json:"format,omitempty"`
}

// FormatHint captures the loose format shapes grids emit:
//
//	"decimal" | "date" | {"date": "YYYY-MM-DD"} | {"number": {"toFixed": 3}} | {"decimal": 3}
//
// Anything else is kept as Unknown and normalizes to plain.
type FormatHint struct {
	Name        string `json:"name,omitempty"`
	DatePattern string `json:"date,omitempty"`
	Precision   *int   `json:"precision,omitempty"`
	Unknown     bool   `json:"-"`
}

func (h FormatHint) IsZero() bool {
	return h.Name == "" && h.DatePattern == "" && h.Precision == nil
}

func (h *FormatHint) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*h = FormatHint{}
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		h.Name = strings.ToLower(strings.TrimSpace(s))
		return nil
	}
	if b[0] != '{' {
		h.Unknown = true
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("format hint: %w", err)
	}
	if raw, ok := obj["date"]; ok {
		var pattern string
		if err := json.Unmarshal(raw, &pattern); err != nil {
			return fmt.Errorf("format hint date pattern: %w", err)
		}
		h.Name = "date"
		h.DatePattern = pattern
		return nil
	}
	if raw, ok := obj["number"]; ok {
		var num struct {
			ToFixed *int `json:"toFixed"`
		}
		if err := json.Unmarshal(raw, &num); err != nil {
			return fmt.Errorf("format hint number: %w", err)
		}
		h.Name = "decimal"
		h.Precision = num.ToFixed
		return nil
	}
	if raw, ok := obj["decimal"]; ok {
		var p int
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("format hint decimal precision: %w", err)
		}
		h.Name = "decimal"
		h.Precision = &p
		return nil
	}
	h.Unknown = true
	return nil
}

func (h FormatHint) MarshalJSON() ([]byte, error) {
	switch {
	case h.IsZero():
		return []byte("null"), nil
	case h.Name == "date" && h.DatePattern != "":
		return json.Marshal(map[string]string{"date": h.DatePattern})
	case h.Name == "decimal" && h.Precision != nil:
		return json.Marshal(map[string]any{"number": map[string]int{"toFixed": *h.Precision}})
	default:
		return json.Marshal(h.Name)
	}
}

// Artifact is one rendered chunk. Index is 1-based.
type Artifact struct {
	Index int
	Data  []byte
}

// ExportResult is a single PDF when Chunks == 1, otherwise a zip archive of
// chunk_<i>.pdf members.
type ExportResult struct {
	Name    string `json:"name"`
	Archive bool   `json:"archive"`
	Chunks  int    `json:"chunks"`
	Data    []byte `json:"data"`
}

func (r ExportResult) Extension() string {
	if r.Archive {
		return ".zip"
	}
	return ".pdf"
}

func (r ExportResult) ContentType() string {
	if r.Archive {
		return "application/zip"
	}
	return "application/pdf"
}

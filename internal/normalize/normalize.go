package normalize

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yourorg/table-export/internal/types"
)

var (
	// ErrEmptyKey indicates a column has no accessor key.
	ErrEmptyKey = errors.New("empty column key")
	// ErrDuplicateKey indicates two columns select the same row value.
	ErrDuplicateKey = errors.New("duplicate column key")
	// ErrInvalidFormat indicates a format hint that cannot be honored.
	ErrInvalidFormat = errors.New("invalid column format")
)

const maxPrecision = 100

// Columns converts grid column descriptors into ColumnSpecs, preserving order.
// The key is copied verbatim; an empty header falls back to the key.
// Unknown or absent format hints become Plain.
func Columns(cols []types.ColumnDescriptor) ([]types.ColumnSpec, error) {
	out := make([]types.ColumnSpec, 0, len(cols))
	seen := make(map[string]int, len(cols))
	for i, c := range cols {
		if c.AccessorKey == "" {
			return nil, fmt.Errorf("column %d: %w", i, ErrEmptyKey)
		}
		if prev, ok := seen[c.AccessorKey]; ok {
			return nil, fmt.Errorf("column %d %q (first at %d): %w", i, c.AccessorKey, prev, ErrDuplicateKey)
		}
		seen[c.AccessorKey] = i

		rule, err := Rule(c.Format)
		if err != nil {
			return nil, fmt.Errorf("column %d %q: %w", i, c.AccessorKey, err)
		}
		label := c.Header
		if strings.TrimSpace(label) == "" {
			label = c.AccessorKey
		}
		out = append(out, types.ColumnSpec{Key: c.AccessorKey, Label: label, Format: rule})
	}
	return out, nil
}

// Rule maps a single format hint to its FormatRule.
func Rule(h types.FormatHint) (types.FormatRule, error) {
	if h.Unknown {
		return types.Plain(), nil
	}
	switch h.Name {
	case "decimal", "number":
		p := types.DefaultPrecision
		if h.Precision != nil {
			p = *h.Precision
		}
		if p < 0 || p > maxPrecision {
			return types.FormatRule{}, fmt.Errorf("precision %d: %w", p, ErrInvalidFormat)
		}
		return types.Decimal(p), nil
	case "date":
		return types.Date(h.DatePattern), nil
	default:
		return types.Plain(), nil
	}
}

// Header builds Plain descriptors from a header row, e.g. the first line of a CSV.
func Header(header []string) []types.ColumnDescriptor {
	out := make([]types.ColumnDescriptor, 0, len(header))
	for _, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		out = append(out, types.ColumnDescriptor{AccessorKey: h, Header: h})
	}
	return out
}

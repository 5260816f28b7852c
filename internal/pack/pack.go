package pack

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/yourorg/table-export/internal/types"
)

// DefaultBaseName is used when the caller supplies no file name.
const DefaultBaseName = "Document"

var ErrNoArtifacts = errors.New("no artifacts to package")

var memberTime = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Name returns the output file name for base. A single document keeps a
// trailing ".pdf" (any case) instead of doubling it; an archive replaces it.
func Name(base string, archive bool) string {
	base = strings.TrimSpace(base)
	if base == "" {
		base = DefaultBaseName
	}
	hasPDF := strings.HasSuffix(strings.ToLower(base), ".pdf")
	if archive {
		if hasPDF {
			base = base[:len(base)-len(".pdf")]
		}
		if base == "" {
			base = DefaultBaseName
		}
		return base + ".zip"
	}
	if hasPDF {
		return base
	}
	return base + ".pdf"
}

// MemberName names the i-th (1-based) document inside an archive.
func MemberName(i int) string {
	return fmt.Sprintf("chunk_%d.pdf", i)
}

// Package turns the spooled artifacts into the final ExportResult: exactly one
// artifact is returned as-is, more than one are zipped in index order.
func Package(base string, spool Spool) (types.ExportResult, error) {
	n := spool.Len()
	switch {
	case n == 0:
		return types.ExportResult{}, ErrNoArtifacts
	case n == 1:
		var res types.ExportResult
		err := spool.Each(func(a types.Artifact) error {
			res = types.ExportResult{Name: Name(base, false), Chunks: 1, Data: a.Data}
			return nil
		})
		return res, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	err := spool.Each(func(a types.Artifact) error {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     MemberName(a.Index),
			Method:   zip.Deflate,
			Modified: memberTime,
		})
		if err != nil {
			return fmt.Errorf("create member %d: %w", a.Index, err)
		}
		if _, err := w.Write(a.Data); err != nil {
			return fmt.Errorf("write member %d: %w", a.Index, err)
		}
		return nil
	})
	if err != nil {
		_ = zw.Close()
		return types.ExportResult{}, err
	}
	if err := zw.Close(); err != nil {
		return types.ExportResult{}, fmt.Errorf("close archive: %w", err)
	}
	return types.ExportResult{
		Name:    Name(base, true),
		Archive: true,
		Chunks:  n,
		Data:    buf.Bytes(),
	}, nil
}

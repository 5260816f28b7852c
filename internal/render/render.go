package render

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/yourorg/table-export/internal/types"
)

// Renderer turns one chunk into one self-contained document.
type Renderer interface {
	Render(ctx context.Context, rows types.Chunk, cols []types.ColumnSpec) ([]byte, error)
}

const (
	KindPDF      = "pdf"
	KindChromium = "chromium"
)

// Options are shared by all renderers.
type Options struct {
	Title string
}

// New returns the renderer registered under kind. The caller closes it when
// it implements io.Closer.
func New(kind string, opts Options) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindPDF:
		return &Table{Title: opts.Title}, nil
	case KindChromium:
		return &Chromium{Title: opts.Title}, nil
	default:
		return nil, fmt.Errorf("unknown renderer %q", kind)
	}
}

// Close releases r if it holds resources.
func Close(r Renderer) error {
	if c, ok := r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

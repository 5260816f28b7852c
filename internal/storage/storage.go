package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sink persists a finished export and returns where it went.
type Sink interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// New picks a sink for a file:// (or bare path) or s3:// output prefix.
func New(ctx context.Context, outputURI string) (Sink, error) {
	switch {
	case strings.HasPrefix(outputURI, "s3://"):
		return NewS3Sink(ctx, outputURI)
	case strings.HasPrefix(outputURI, "file://"), !strings.Contains(outputURI, "://"):
		return &FileSink{Dir: strings.TrimPrefix(outputURI, "file://")}, nil
	default:
		return nil, fmt.Errorf("unsupported output uri: %s", outputURI)
	}
}

// FileSink writes results into a local directory.
type FileSink struct {
	Dir string
}

func (s *FileSink) Save(_ context.Context, name string, data []byte) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	p := filepath.Join(s.Dir, name)
	// write then rename so readers never see a partial file
	tmp := p + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return "file://" + p, nil
}

var errBadName = errors.New("invalid output name")

func checkName(name string) error {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return fmt.Errorf("%q: %w", name, errBadName)
	}
	return nil
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".zip":
		return "application/zip"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

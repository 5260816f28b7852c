package activities

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/yourorg/table-export/internal/export"
	iopkg "github.com/yourorg/table-export/internal/iopkg"
	"github.com/yourorg/table-export/internal/storage"
)

// Application error types surfaced to the workflow.
const (
	ErrTypeProcess = "ProcessError"
	ErrTypeExport  = "ExportError"
)

type Config struct {
	ScratchDir string
	// StagingURI is a shared file:// or s3:// prefix for formatted rows.
	// Empty keeps them on local scratch, which only works when every
	// activity of a workflow runs on the same host.
	StagingURI string
	// Export is the coordinator template; ChunkSize and RendererKind are
	// overridden per workflow when set in the params.
	Export export.Config
	// NewSink resolves an output prefix; defaults to storage.New.
	NewSink func(ctx context.Context, outputURI string) (storage.Sink, error)
}

type Activities struct {
	cfg Config
}

func New(cfg Config) *Activities {
	if cfg.NewSink == nil {
		cfg.NewSink = storage.New
	}
	return &Activities{cfg: cfg}
}

func (a *Activities) coordinator(chunkSize int, renderer string) *export.Coordinator {
	c := a.cfg.Export
	if chunkSize > 0 {
		c.ChunkSize = chunkSize
	}
	if renderer != "" {
		c.RendererKind = renderer
	}
	return export.New(c)
}

// formattedURI locates the formatted rows of one workflow.
func (a *Activities) formattedURI(sub string) string {
	if a.cfg.StagingURI != "" {
		return iopkg.Join(a.cfg.StagingURI, filepath.ToSlash(filepath.Clean(sub))+"/formatted.json")
	}
	return "file://" + a.scratch(sub, "formatted.json")
}

func (a *Activities) scratch(sub string, name string) string {
	return filepath.Join(a.cfg.ScratchDir, filepath.Clean(sub), name)
}

// appError turns a core failure into a non-retryable application error typed
// by phase. Exports are not resumable, so retrying cannot help.
func appError(err error, fallback string) error {
	if err == nil {
		return nil
	}
	typ := fallback
	switch export.PhaseOf(err) {
	case export.PhaseProcess:
		typ = ErrTypeProcess
	case export.PhaseExport:
		typ = ErrTypeExport
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), typ, err)
}

// decodeJSON decodes with numbers preserved as json.Number.
func decodeJSON(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

var errInvalidSubdir = errors.New("invalid scratch subdir")

// Registrar is satisfied by a Temporal worker and by the test environments.
type Registrar interface {
	RegisterActivityWithOptions(a interface{}, options activity.RegisterOptions)
}

// Register registers every activity under the names the workflow executes.
func (a *Activities) Register(r Registrar) {
	r.RegisterActivityWithOptions(a.ProcessRows, activity.RegisterOptions{Name: "Activities.ProcessRows"})
	r.RegisterActivityWithOptions(a.RenderAndPackage, activity.RegisterOptions{Name: "Activities.RenderAndPackage"})
	r.RegisterActivityWithOptions(a.CleanupScratch, activity.RegisterOptions{Name: "Activities.CleanupScratch"})
}

package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	iopkg "github.com/yourorg/table-export/internal/iopkg"
	"github.com/yourorg/table-export/internal/pack"
	"github.com/yourorg/table-export/internal/types"
)

// RenderAndPackage renders the formatted rows chunk by chunk into a badger
// spool on scratch, packages the result and saves it through the sink.
func (a *Activities) RenderAndPackage(ctx context.Context, p types.RenderParams) (types.ExportOutcome, error) {
	logger := activity.GetLogger(ctx)

	raw, err := iopkg.ReadFile(ctx, p.Process.FormattedURI)
	if err != nil {
		return types.ExportOutcome{}, appError(fmt.Errorf("read formatted rows: %w", err), ErrTypeExport)
	}
	var doc formattedDoc
	if err := decodeJSON(raw, &doc); err != nil {
		return types.ExportOutcome{}, appError(err, ErrTypeExport)
	}

	if _, err := checkSubdir(p.ScratchSubdir); err != nil {
		return types.ExportOutcome{}, appError(err, ErrTypeExport)
	}
	spool, err := pack.OpenBadgerSpool(a.scratch(p.ScratchSubdir, "spool.badger"))
	if err != nil {
		return types.ExportOutcome{}, appError(err, ErrTypeExport)
	}
	defer spool.Close()

	coord := a.coordinator(p.ChunkSize, p.Renderer)
	progress := func(i, n int) {
		activity.RecordHeartbeat(ctx, map[string]any{"chunk": i, "of": n})
		logger.Debug("Rendered chunk", "chunk", i, "of", n)
	}
	if err := coord.Render(ctx, doc.Columns, doc.Rows, p.Process.Title, spool, progress); err != nil {
		return types.ExportOutcome{}, appError(err, ErrTypeExport)
	}
	res, err := coord.Package(p.Process.FileName, spool)
	if err != nil {
		return types.ExportOutcome{}, appError(err, ErrTypeExport)
	}

	sink, err := a.cfg.NewSink(ctx, p.OutputURI)
	if err != nil {
		return types.ExportOutcome{}, appError(fmt.Errorf("output %s: %w", p.OutputURI, err), ErrTypeExport)
	}
	uri, err := sink.Save(ctx, res.Name, res.Data)
	if err != nil {
		return types.ExportOutcome{}, appError(fmt.Errorf("save %s: %w", res.Name, err), ErrTypeExport)
	}

	logger.Info("Export saved", "uri", uri, "chunks", res.Chunks, "bytes", len(res.Data))
	return types.ExportOutcome{
		Name:      res.Name,
		URI:       uri,
		Archive:   res.Archive,
		Chunks:    res.Chunks,
		SizeBytes: int64(len(res.Data)),
	}, nil
}

package activities

import (
	"context"
	"encoding/json"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/yourorg/table-export/internal/bridge"
	"github.com/yourorg/table-export/internal/export"
	iopkg "github.com/yourorg/table-export/internal/iopkg"
	"github.com/yourorg/table-export/internal/types"
)

type formattedDoc struct {
	Columns []types.ColumnSpec   `json:"columns"`
	Rows    []types.FormattedRow `json:"rows"`
}

// ProcessRows loads the request document, normalizes its columns and formats
// every row into the workflow's scratch subdir.
func (a *Activities) ProcessRows(ctx context.Context, p types.ExportParams) (types.ProcessResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Loading export request", "requestURI", p.RequestURI)

	raw, err := iopkg.ReadFile(ctx, p.RequestURI)
	if err != nil {
		return types.ProcessResult{}, appError(fmt.Errorf("read request: %w", err), ErrTypeProcess)
	}
	var req bridge.Request
	if err := decodeJSON(raw, &req); err != nil {
		return types.ProcessResult{}, appError(fmt.Errorf("request %s: %w", p.RequestURI, err), ErrTypeProcess)
	}
	fileName := p.FileName
	if fileName == "" {
		fileName = req.FileName
	}
	title := p.Title
	if title == "" {
		title = req.Title
	}

	if _, err := checkSubdir(p.ScratchSubdir); err != nil {
		return types.ProcessResult{}, appError(err, ErrTypeProcess)
	}

	coord := a.coordinator(p.ChunkSize, p.Renderer)
	cols, rows, err := coord.Process(export.Request{Rows: req.Data, Columns: req.Columns})
	if err != nil {
		return types.ProcessResult{}, appError(err, ErrTypeProcess)
	}
	activity.RecordHeartbeat(ctx, len(rows))

	out := a.formattedURI(p.ScratchSubdir)
	b, err := json.Marshal(formattedDoc{Columns: cols, Rows: rows})
	if err != nil {
		return types.ProcessResult{}, err
	}
	if err := iopkg.WriteFile(ctx, out, b); err != nil {
		return types.ProcessResult{}, appError(fmt.Errorf("stage %s: %w", out, err), ErrTypeProcess)
	}

	logger.Info("Formatted export rows", "rows", len(rows), "columns", len(cols), "uri", out)
	return types.ProcessResult{
		FormattedURI: out,
		Columns:      cols,
		Rows:         len(rows),
		FileName:     fileName,
		Title:        title,
	}, nil
}

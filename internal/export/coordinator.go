package export

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/table-export/internal/chunk"
	"github.com/yourorg/table-export/internal/format"
	"github.com/yourorg/table-export/internal/metrics"
	"github.com/yourorg/table-export/internal/normalize"
	"github.com/yourorg/table-export/internal/pack"
	"github.com/yourorg/table-export/internal/render"
	"github.com/yourorg/table-export/internal/types"
)

type State int

const (
	StateIdle State = iota
	StateProcessing
	StateRendering
	StatePackaging
	StateDone
	StateError
)

func (s State) String() string {
	switch s {
	case StateProcessing:
		return "processing"
	case StateRendering:
		return "rendering"
	case StatePackaging:
		return "packaging"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

// Event is a single state transition. Result is set on StateDone, Err on StateError.
type Event struct {
	State  State
	Result *types.ExportResult
	Err    *Error
}

type Observer interface {
	Observe(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// Request is one export: raw rows plus the grid's column descriptors.
type Request struct {
	Rows     []types.Row
	Columns  []types.ColumnDescriptor
	FileName string
	Title    string
}

type Config struct {
	ChunkSize int
	// ProcessDelay defers processing after StateProcessing is reported.
	// It is the only span a canceled context interrupts in Run.
	ProcessDelay time.Duration
	BaseName     string
	// RendererKind selects a per-request renderer when Renderer is nil.
	RendererKind string
	Renderer     render.Renderer
	Location     *time.Location
	NewSpool     func() (pack.Spool, error)
	Logger       *zap.Logger
}

// Coordinator drives Normalizer, Formatter, Chunker, Renderer and Packager
// through the export state machine.
type Coordinator struct {
	cfg       Config
	formatter *format.Formatter
	log       *zap.Logger
}

func New(cfg Config) *Coordinator {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = chunk.DefaultSize
	}
	if cfg.BaseName == "" {
		cfg.BaseName = pack.DefaultBaseName
	}
	if cfg.NewSpool == nil {
		cfg.NewSpool = func() (pack.Spool, error) { return pack.NewMemorySpool(), nil }
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Coordinator{cfg: cfg, formatter: format.New(cfg.Location), log: cfg.Logger}
}

func (c *Coordinator) Config() Config { return c.cfg }

// Export runs the whole pipeline on the caller's goroutine.
func (c *Coordinator) Export(ctx context.Context, req Request) (types.ExportResult, error) {
	return c.Run(ctx, req, nil)
}

// Run executes one export, reporting each transition to obs exactly once.
// Once ProcessDelay has elapsed the export runs to completion even if ctx is
// canceled.
func (c *Coordinator) Run(ctx context.Context, req Request, obs Observer) (types.ExportResult, error) {
	return c.run(ctx, req, obs, true)
}

// RunAbortable is Run for a background worker: canceling ctx stops the export
// between pipeline steps and between chunks, failing it with ctx.Err().
func (c *Coordinator) RunAbortable(ctx context.Context, req Request, obs Observer) (types.ExportResult, error) {
	return c.run(ctx, req, obs, false)
}

func (c *Coordinator) run(ctx context.Context, req Request, obs Observer, detach bool) (types.ExportResult, error) {
	emit := func(e Event) {
		if obs != nil {
			obs.Observe(e)
		}
	}
	fail := func(err error) (types.ExportResult, error) {
		e, ok := err.(*Error)
		if !ok {
			e = &Error{Phase: PhaseExport, Err: err}
		}
		metrics.ExportsFailed.WithLabelValues(string(e.Phase)).Inc()
		c.log.Warn("export failed", zap.String("phase", string(e.Phase)), zap.Error(e.Err))
		emit(Event{State: StateError, Err: e})
		return types.ExportResult{}, e
	}

	start := time.Now()
	c.log.Info("export started", zap.Int("rows", len(req.Rows)), zap.Int("columns", len(req.Columns)))
	emit(Event{State: StateProcessing})

	if c.cfg.ProcessDelay > 0 {
		t := time.NewTimer(c.cfg.ProcessDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return fail(&Error{Phase: PhaseProcess, Err: ctx.Err()})
		case <-t.C:
		}
	}
	if detach {
		ctx = context.WithoutCancel(ctx)
	}

	cols, rows, err := c.Process(req)
	if err != nil {
		return fail(err)
	}
	if err := ctx.Err(); err != nil {
		return fail(&Error{Phase: PhaseExport, Err: err})
	}

	emit(Event{State: StateRendering})
	spool, err := c.cfg.NewSpool()
	if err != nil {
		return fail(&Error{Phase: PhaseExport, Err: fmt.Errorf("%w: %w", ErrPackaging, err)})
	}
	defer spool.Close()
	if err := c.Render(ctx, cols, rows, req.Title, spool, nil); err != nil {
		return fail(err)
	}

	emit(Event{State: StatePackaging})
	res, err := c.Package(req.FileName, spool)
	if err != nil {
		return fail(err)
	}

	c.log.Info("export done",
		zap.String("name", res.Name),
		zap.Int("chunks", res.Chunks),
		zap.Int("bytes", len(res.Data)),
		zap.Duration("took", time.Since(start)),
	)
	emit(Event{State: StateDone, Result: &res})
	return res, nil
}

// Process normalizes the columns and formats every row.
func (c *Coordinator) Process(req Request) ([]types.ColumnSpec, []types.FormattedRow, error) {
	cols, err := normalize.Columns(req.Columns)
	if err != nil {
		return nil, nil, &Error{Phase: PhaseProcess, Err: fmt.Errorf("%w: %w", ErrInvalidColumns, err)}
	}
	rows, err := c.formatter.Rows(req.Rows, cols)
	if err != nil {
		return nil, nil, &Error{Phase: PhaseProcess, Err: err}
	}
	metrics.RowsFormatted.Add(float64(len(rows)))
	return cols, rows, nil
}

// Render chunks rows and renders each chunk, in order, into spool.
// progress, when set, is called after each chunk with its 1-based index.
// A canceled ctx stops it before the next chunk.
func (c *Coordinator) Render(ctx context.Context, cols []types.ColumnSpec, rows []types.FormattedRow, title string, spool pack.Spool, progress func(i, n int)) error {
	chunks, err := chunk.Split(rows, c.cfg.ChunkSize)
	if err != nil {
		return &Error{Phase: PhaseExport, Err: fmt.Errorf("%w: %w", ErrRender, err)}
	}
	r := c.cfg.Renderer
	if r == nil {
		r, err = render.New(c.cfg.RendererKind, render.Options{Title: title})
		if err != nil {
			return &Error{Phase: PhaseExport, Err: fmt.Errorf("%w: %w", ErrRender, err)}
		}
		defer render.Close(r)
	}
	for i, ch := range chunks {
		if err := ctx.Err(); err != nil {
			return &Error{Phase: PhaseExport, Err: fmt.Errorf("chunk %d: %w", i+1, err)}
		}
		data, err := r.Render(ctx, types.Chunk(ch), cols)
		if err != nil {
			return &Error{Phase: PhaseExport, Err: fmt.Errorf("%w: chunk %d: %w", ErrRender, i+1, err)}
		}
		if err := spool.Put(types.Artifact{Index: i + 1, Data: data}); err != nil {
			return &Error{Phase: PhaseExport, Err: fmt.Errorf("%w: %w", ErrPackaging, err)}
		}
		metrics.ChunksRendered.Inc()
		metrics.ArtifactBytes.Add(float64(len(data)))
		c.log.Debug("chunk rendered", zap.Int("chunk", i+1), zap.Int("of", len(chunks)), zap.Int("rows", len(ch)))
		if progress != nil {
			progress(i+1, len(chunks))
		}
	}
	return nil
}

// Package builds the final result from spool. An empty name falls back to
// the configured base name.
func (c *Coordinator) Package(name string, spool pack.Spool) (types.ExportResult, error) {
	if name == "" {
		name = c.cfg.BaseName
	}
	res, err := pack.Package(name, spool)
	if err != nil {
		return types.ExportResult{}, &Error{Phase: PhaseExport, Err: fmt.Errorf("%w: %w", ErrPackaging, err)}
	}
	metrics.ExportsCompleted.WithLabelValues(strconv.FormatBool(res.Archive)).Inc()
	return res, nil
}

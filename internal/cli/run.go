package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	"go.uber.org/zap"

	"github.com/yourorg/table-export/internal/bridge"
	"github.com/yourorg/table-export/internal/config"
	"github.com/yourorg/table-export/internal/export"
	iopkg "github.com/yourorg/table-export/internal/iopkg"
	"github.com/yourorg/table-export/internal/rowsource"
	"github.com/yourorg/table-export/internal/storage"
	"github.com/yourorg/table-export/internal/types"
	"github.com/yourorg/table-export/internal/workflow"
)

const (
	modeInline   = "inline"
	modeBridge   = "bridge"
	modeWorkflow = "workflow"
)

var (
	runIn        string
	runColumns   string
	runName      string
	runTitle     string
	runMode      string
	runOut       string
	runRenderer  string
	runChunkSize int
	runTimeout   time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Export a row file",
	Long: `Export the rows of a JSON, CSV, XLSX or XLS file.

Without --columns every header cell becomes a plain column. A JSON input of
the form {"data": [...], "columns": [...]} carries its own columns.

Modes:
  inline    run the export on this goroutine; it finishes once rendering starts (default)
  bridge    run the export on a background worker; --timeout aborts it mid-render
  workflow  start the export workflow on the Temporal task queue and wait

Examples:
  exporter run --in rows.csv --name ledger
  exporter run --in s3://bucket/rows.xlsx --columns cols.json --out s3://bucket/exports
  exporter run --in request.json --mode workflow --chunk-size 1000`,
	RunE: runExport,
}

func init() {
	runCmd.Flags().StringVarP(&runIn, "in", "i", "", "input file (path, file:// or s3://)")
	runCmd.Flags().StringVarP(&runColumns, "columns", "c", "", "JSON file with column descriptors")
	runCmd.Flags().StringVarP(&runName, "name", "n", "", "output base name")
	runCmd.Flags().StringVar(&runTitle, "title", "", "title printed above the table")
	runCmd.Flags().StringVarP(&runMode, "mode", "m", modeInline, "inline, bridge or workflow")
	runCmd.Flags().StringVarP(&runOut, "out", "o", "", "output prefix (defaults to OUTPUT_URI)")
	runCmd.Flags().StringVar(&runRenderer, "renderer", "", "pdf or chromium (defaults to EXPORT_RENDERER)")
	runCmd.Flags().IntVar(&runChunkSize, "chunk-size", 0, "rows per document (defaults to EXPORT_CHUNK_SIZE)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "give up after this long (0 waits forever)")
	_ = runCmd.MarkFlagRequired("in")
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runTimeout)
		defer cancel()
	}
	if runChunkSize < 0 {
		return fmt.Errorf("chunk size must not be negative")
	}

	tbl, err := rowsource.Read(ctx, runIn)
	if err != nil {
		return fmt.Errorf("read %s: %w", runIn, err)
	}
	cols := tbl.Columns()
	if runColumns != "" {
		b, err := iopkg.ReadFile(ctx, runColumns)
		if err != nil {
			return fmt.Errorf("read columns: %w", err)
		}
		cols = nil
		if err := json.Unmarshal(b, &cols); err != nil {
			return fmt.Errorf("decode columns: %w", err)
		}
	}

	req := bridge.Request{
		Data:     tbl.Rows,
		Columns:  cols,
		FileName: firstNonEmpty(runName, tbl.FileName),
		Title:    firstNonEmpty(runTitle, tbl.Title, cfg.Export.Title),
	}
	out := firstNonEmpty(runOut, cfg.Storage.OutputURI)
	log.Info("export requested", zap.String("in", runIn), zap.Int("rows", len(req.Data)), zap.Int("columns", len(cols)), zap.String("mode", runMode))

	switch runMode {
	case modeInline:
		return runInline(ctx, req, out)
	case modeBridge:
		return runBridge(ctx, req, out)
	case modeWorkflow:
		return runWorkflow(ctx, req, out)
	default:
		return fmt.Errorf("unknown mode %q", runMode)
	}
}

var exportNew = export.New

func coordinator() *export.Coordinator {
	ec := cfg.CoordinatorConfig(log)
	if runChunkSize > 0 {
		ec.ChunkSize = runChunkSize
	}
	if runRenderer != "" {
		ec.RendererKind = runRenderer
	}
	return exportNew(ec)
}

func logMessage(busy *bridge.Indicator, m bridge.Message) {
	busy.Observe(m)
	log.Info("export message", zap.String("type", string(m.Type)), zap.Bool("busy", busy.Busy()), zap.String("error", m.Error))
}

// runInline drives the coordinator directly on this goroutine.
func runInline(ctx context.Context, req bridge.Request, out string) error {
	var busy bridge.Indicator
	start := time.Now()
	res, err := coordinator().Run(ctx, export.Request{
		Rows:     req.Data,
		Columns:  req.Columns,
		FileName: req.FileName,
		Title:    req.Title,
	}, export.ObserverFunc(func(e export.Event) {
		if m, ok := bridge.FromEvent(e); ok {
			logMessage(&busy, m)
		}
	}))
	if err != nil {
		return err
	}
	return save(ctx, res, out, start)
}

// runBridge hands the export to a background worker and follows its messages.
func runBridge(ctx context.Context, req bridge.Request, out string) error {
	w := bridge.NewWorker(coordinator(), log)

	var busy bridge.Indicator
	start := time.Now()
	res, err := bridge.Collect(ctx, w.Start(ctx, req), func(m bridge.Message) { logMessage(&busy, m) })
	if err != nil {
		return err
	}
	return save(ctx, res, out, start)
}

func save(ctx context.Context, res types.ExportResult, out string, start time.Time) error {
	sink, err := storage.New(ctx, out)
	if err != nil {
		return err
	}
	uri, err := sink.Save(ctx, res.Name, res.Data)
	if err != nil {
		return fmt.Errorf("save %s: %w", res.Name, err)
	}
	log.Info("export saved",
		zap.String("uri", uri),
		zap.Bool("archive", res.Archive),
		zap.Int("chunks", res.Chunks),
		zap.Int("bytes", len(res.Data)),
		zap.Duration("took", time.Since(start)))
	return nil
}

// workflowClient is the part of client.Client workflow mode uses.
type workflowClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	QueryWorkflow(ctx context.Context, workflowID string, runID string, queryType string, args ...interface{}) (converter.EncodedValue, error)
	Close()
}

var dialTemporal = func(c *config.Config) (workflowClient, error) {
	return client.Dial(client.Options{HostPort: c.Temporal.Address, Namespace: c.Temporal.Namespace})
}

func runWorkflow(ctx context.Context, req bridge.Request, out string) error {
	tc, err := dialTemporal(cfg)
	if err != nil {
		return fmt.Errorf("temporal client: %w", err)
	}
	defer tc.Close()

	id := "export-" + uuid.NewString()
	doc, err := json.Marshal(req)
	if err != nil {
		return err
	}
	reqURI := iopkg.Join(cfg.Storage.RequestURI, id+".json")
	if err := iopkg.WriteFile(ctx, reqURI, doc); err != nil {
		return fmt.Errorf("store request: %w", err)
	}

	params := types.ExportParams{
		RequestURI: reqURI,
		OutputURI:  out,
		FileName:   req.FileName,
		Title:      req.Title,
		ChunkSize:  runChunkSize,
		Renderer:   runRenderer,
	}
	run, err := tc.ExecuteWorkflow(ctx, client.StartWorkflowOptions{ID: id, TaskQueue: cfg.Temporal.TaskQueue}, workflow.ExportWorkflow, params)
	if err != nil {
		return fmt.Errorf("start workflow: %w", err)
	}
	log.Info("workflow started", zap.String("workflow_id", run.GetID()), zap.String("run_id", run.GetRunID()))

	var outcome types.ExportOutcome
	runErr := run.Get(ctx, &outcome)

	// the message log survives completion, so print it either way
	if val, err := tc.QueryWorkflow(ctx, run.GetID(), run.GetRunID(), workflow.QueryMessages); err == nil && val.HasValue() {
		var msgs []types.WorkflowMessage
		if val.Get(&msgs) == nil {
			for _, m := range msgs {
				log.Info("export message", zap.String("type", m.Type), zap.String("error", m.Error))
			}
		}
	}
	if runErr != nil {
		return fmt.Errorf("workflow %s: %w", run.GetID(), runErr)
	}
	log.Info("export saved",
		zap.String("uri", outcome.URI),
		zap.Bool("archive", outcome.Archive),
		zap.Int("chunks", outcome.Chunks),
		zap.Int64("bytes", outcome.SizeBytes))
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

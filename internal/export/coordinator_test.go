package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yourorg/table-export/internal/metrics"
	"github.com/yourorg/table-export/internal/pack"
	"github.com/yourorg/table-export/internal/types"
)

// stubRenderer records chunk sizes and emits a tiny fake document.
type stubRenderer struct {
	mu    sync.Mutex
	sizes []int
	fail  int // 1-based chunk to fail on
}

func (s *stubRenderer) Render(_ context.Context, rows types.Chunk, cols []types.ColumnSpec) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sizes = append(s.sizes, len(rows))
	if s.fail == len(s.sizes) {
		return nil, errors.New("boom")
	}
	return []byte(fmt.Sprintf("%%PDF chunk %d rows %d", len(s.sizes), len(rows))), nil
}

func columns() []types.ColumnDescriptor {
	return []types.ColumnDescriptor{
		{AccessorKey: "name", Header: "Name"},
		{AccessorKey: "amount", Header: "Amount", Format: types.FormatHint{Name: "decimal"}},
	}
}

func rows(n int) []types.Row {
	out := make([]types.Row, n)
	for i := range out {
		out[i] = types.Row{"name": fmt.Sprintf("r%d", i), "amount": i}
	}
	return out
}

func record(events *[]State) Observer {
	return ObserverFunc(func(e Event) { *events = append(*events, e.State) })
}

func TestSmallExportIsSinglePDF(t *testing.T) {
	c := New(Config{})
	var events []State
	res, err := c.Run(context.Background(), Request{Rows: rows(3), Columns: columns(), FileName: "report"}, record(&events))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Archive || res.Name != "report.pdf" || res.Chunks != 1 {
		t.Fatalf("res=%+v", res)
	}
	if !bytes.HasPrefix(res.Data, []byte("%PDF-")) {
		t.Fatalf("result is not a PDF")
	}
	want := []State{StateProcessing, StateRendering, StatePackaging, StateDone}
	if !slices.Equal(events, want) {
		t.Fatalf("events=%v; want %v", events, want)
	}
}

func TestLargeExportIsArchive(t *testing.T) {
	r := &stubRenderer{}
	c := New(Config{Renderer: r})
	res, err := c.Export(context.Background(), Request{Rows: rows(12000), Columns: columns(), FileName: "report"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(r.sizes, []int{5000, 5000, 2000}) {
		t.Fatalf("chunk sizes=%v", r.sizes)
	}
	if !res.Archive || res.Name != "report.zip" || res.Chunks != 3 {
		t.Fatalf("res=%+v", res)
	}
	zr, err := zip.NewReader(bytes.NewReader(res.Data), int64(len(res.Data)))
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	if !slices.Equal(names, []string{"chunk_1.pdf", "chunk_2.pdf", "chunk_3.pdf"}) {
		t.Fatalf("members=%v", names)
	}
}

func TestEmptyExport(t *testing.T) {
	r := &stubRenderer{}
	res, err := New(Config{Renderer: r}).Export(context.Background(), Request{Columns: columns()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Archive || res.Name != "Document.pdf" || !slices.Equal(r.sizes, []int{0}) {
		t.Fatalf("res=%+v sizes=%v", res, r.sizes)
	}
}

func TestFormattingFailure(t *testing.T) {
	var events []State
	req := Request{Rows: []types.Row{{"name": "x", "amount": "abc"}}, Columns: columns()}
	_, err := New(Config{Renderer: &stubRenderer{}}).Run(context.Background(), req, record(&events))
	if !errors.Is(err, ErrFormatting) || PhaseOf(err) != PhaseProcess {
		t.Fatalf("err=%v phase=%q", err, PhaseOf(err))
	}
	if !slices.Equal(events, []State{StateProcessing, StateError}) {
		t.Fatalf("events=%v", events)
	}
}

func TestInvalidColumns(t *testing.T) {
	cols := []types.ColumnDescriptor{{AccessorKey: "a"}, {AccessorKey: "a"}}
	_, err := New(Config{}).Export(context.Background(), Request{Columns: cols})
	if !errors.Is(err, ErrInvalidColumns) || PhaseOf(err) != PhaseProcess {
		t.Fatalf("err=%v", err)
	}
}

func TestRenderFailure(t *testing.T) {
	var events []State
	r := &stubRenderer{fail: 2}
	c := New(Config{Renderer: r, ChunkSize: 2})
	res, err := c.Run(context.Background(), Request{Rows: rows(5), Columns: columns()}, record(&events))
	if !errors.Is(err, ErrRender) || PhaseOf(err) != PhaseExport {
		t.Fatalf("err=%v", err)
	}
	if res.Data != nil {
		t.Fatalf("partial result returned")
	}
	if !slices.Equal(events, []State{StateProcessing, StateRendering, StateError}) {
		t.Fatalf("events=%v", events)
	}
	if len(r.sizes) != 2 {
		t.Fatalf("rendering continued after failure: %v", r.sizes)
	}
}

type failingSpool struct{ pack.Spool }

func (failingSpool) Put(types.Artifact) error { return nil }
func (failingSpool) Len() int                 { return 0 }
func (failingSpool) Close() error             { return nil }

func TestPackagingFailure(t *testing.T) {
	c := New(Config{
		Renderer: &stubRenderer{},
		NewSpool: func() (pack.Spool, error) { return failingSpool{}, nil },
	})
	var events []State
	_, err := c.Run(context.Background(), Request{Rows: rows(1), Columns: columns()}, record(&events))
	if !errors.Is(err, ErrPackaging) || !errors.Is(err, pack.ErrNoArtifacts) {
		t.Fatalf("err=%v", err)
	}
	if !slices.Equal(events, []State{StateProcessing, StateRendering, StatePackaging, StateError}) {
		t.Fatalf("events=%v", events)
	}
}

func TestCancelDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &stubRenderer{}
	c := New(Config{Renderer: r, ProcessDelay: time.Hour})
	var events []State
	obs := ObserverFunc(func(e Event) {
		events = append(events, e.State)
		if e.State == StateProcessing {
			cancel()
		}
	})
	_, err := c.Run(ctx, Request{Rows: rows(1), Columns: columns()}, obs)
	if !errors.Is(err, context.Canceled) || PhaseOf(err) != PhaseProcess {
		t.Fatalf("err=%v", err)
	}
	if len(r.sizes) != 0 {
		t.Fatalf("rendered after cancellation")
	}
	if !slices.Equal(events, []State{StateProcessing, StateError}) {
		t.Fatalf("events=%v", events)
	}
}

func TestCancelDuringRender(t *testing.T) {
	cancelOnRender := func(cancel context.CancelFunc, events *[]State) Observer {
		return ObserverFunc(func(e Event) {
			*events = append(*events, e.State)
			if e.State == StateRendering {
				cancel()
			}
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &stubRenderer{}
	c := New(Config{Renderer: r, ChunkSize: 1})
	var events []State
	if _, err := c.Run(ctx, Request{Rows: rows(3), Columns: columns()}, cancelOnRender(cancel, &events)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(r.sizes) != 3 || events[len(events)-1] != StateDone {
		t.Fatalf("Run rendered %d chunks, events=%v", len(r.sizes), events)
	}

	ctx, cancel = context.WithCancel(context.Background())
	r = &stubRenderer{}
	c = New(Config{Renderer: r, ChunkSize: 1})
	events = nil
	_, err := c.RunAbortable(ctx, Request{Rows: rows(3), Columns: columns()}, cancelOnRender(cancel, &events))
	if !errors.Is(err, context.Canceled) || PhaseOf(err) != PhaseExport {
		t.Fatalf("err=%v", err)
	}
	if len(r.sizes) != 0 {
		t.Fatalf("rendered %d chunks after cancellation", len(r.sizes))
	}
	if !slices.Equal(events, []State{StateProcessing, StateRendering, StateError}) {
		t.Fatalf("events=%v", events)
	}
}

func TestRowsNotMutated(t *testing.T) {
	in := rows(2)
	if _, err := New(Config{Renderer: &stubRenderer{}}).Export(context.Background(), Request{Rows: in, Columns: columns()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in[1]["amount"] != 1 {
		t.Fatalf("row mutated: %v", in[1])
	}
}

func TestBadgerSpoolConfig(t *testing.T) {
	dir := t.TempDir()
	c := New(Config{
		Renderer:  &stubRenderer{},
		ChunkSize: 1,
		NewSpool:  func() (pack.Spool, error) { return pack.OpenBadgerSpool(dir + "/spool") },
	})
	res, err := c.Export(context.Background(), Request{Rows: rows(3), Columns: columns(), FileName: "x.pdf"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Name != "x.zip" || res.Chunks != 3 {
		t.Fatalf("res=%+v", res)
	}
}

func TestMetricsCounted(t *testing.T) {
	rowsBefore := testutil.ToFloat64(metrics.RowsFormatted)
	chunksBefore := testutil.ToFloat64(metrics.ChunksRendered)
	archivesBefore := testutil.ToFloat64(metrics.ExportsCompleted.WithLabelValues("true"))
	failedBefore := testutil.ToFloat64(metrics.ExportsFailed.WithLabelValues("process"))

	c := New(Config{ChunkSize: 2, Renderer: &stubRenderer{}})
	if _, err := c.Export(context.Background(), Request{Rows: rows(5), Columns: columns()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := []types.Row{{"name": "x", "amount": "many"}}
	if _, err := c.Export(context.Background(), Request{Rows: bad, Columns: columns()}); err == nil {
		t.Fatalf("expected formatting error")
	}

	if d := testutil.ToFloat64(metrics.RowsFormatted) - rowsBefore; d != 5 {
		t.Fatalf("rows formatted delta=%v", d)
	}
	if d := testutil.ToFloat64(metrics.ChunksRendered) - chunksBefore; d != 3 {
		t.Fatalf("chunks rendered delta=%v", d)
	}
	if d := testutil.ToFloat64(metrics.ExportsCompleted.WithLabelValues("true")) - archivesBefore; d != 1 {
		t.Fatalf("archives delta=%v", d)
	}
	if d := testutil.ToFloat64(metrics.ExportsFailed.WithLabelValues("process")) - failedBefore; d != 1 {
		t.Fatalf("failed delta=%v", d)
	}
}

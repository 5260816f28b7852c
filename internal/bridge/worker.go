package bridge

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/yourorg/table-export/internal/export"
	"github.com/yourorg/table-export/internal/types"
)

type MessageType string

const (
	ProcessStart MessageType = "data-process-start"
	ProcessError MessageType = "data-process-error"
	ExportStart  MessageType = "data-export-start"
	ExportError  MessageType = "data-export-error"
	ExportDone   MessageType = "data-export-done"
	// ChannelError reports a failure of the worker itself rather than of an export phase.
	ChannelError MessageType = "channel-error"
)

// Message is one worker event. Result is set only on ExportDone.
type Message struct {
	Type   MessageType         `json:"type"`
	Result *types.ExportResult `json:"data,omitempty"`
	Error  string              `json:"error,omitempty"`
	Err    error               `json:"-"`
}

// Terminal reports whether no further messages follow m for this export.
func (m Message) Terminal() bool {
	switch m.Type {
	case ProcessError, ExportError, ExportDone, ChannelError:
		return true
	}
	return false
}

// Request is what the caller posts to the worker. Title corresponds to the
// document meta shown above the table.
type Request struct {
	Data     []types.Row              `json:"data"`
	Columns  []types.ColumnDescriptor `json:"columns"`
	FileName string                   `json:"fileName,omitempty"`
	Title    string                   `json:"title,omitempty"`
}

// FromEvent maps a coordinator transition onto the wire protocol. Packaging
// has no message of its own.
func FromEvent(e export.Event) (Message, bool) {
	switch e.State {
	case export.StateProcessing:
		return Message{Type: ProcessStart}, true
	case export.StateRendering:
		return Message{Type: ExportStart}, true
	case export.StateDone:
		return Message{Type: ExportDone, Result: e.Result}, true
	case export.StateError:
		t := ExportError
		if e.Err != nil && e.Err.Phase == export.PhaseProcess {
			t = ProcessError
		}
		m := Message{Type: t}
		if e.Err != nil {
			m.Err = e.Err
			m.Error = e.Err.Error()
		}
		return m, true
	}
	return Message{}, false
}

// messageBuffer covers start, start, terminal plus a channel error.
const messageBuffer = 4

// Worker runs exports off the caller's goroutine.
type Worker struct {
	coord *export.Coordinator
	log   *zap.Logger
}

func NewWorker(coord *export.Coordinator, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{coord: coord, log: log}
}

// Start posts req to a fresh worker goroutine. The rows are copied so the
// caller may reuse its slice immediately. Terminate on the returned channel
// aborts the export before its next chunk.
func (w *Worker) Start(ctx context.Context, req Request) *Channel[Message] {
	own := export.Request{
		Rows:     copyRows(req.Data),
		Columns:  append([]types.ColumnDescriptor(nil), req.Columns...),
		FileName: req.FileName,
		Title:    req.Title,
	}
	return Spawn(ctx, messageBuffer, func(ctx context.Context, emit func(Message)) {
		_, _ = w.coord.RunAbortable(ctx, own, export.ObserverFunc(func(e export.Event) {
			if m, ok := FromEvent(e); ok {
				emit(m)
			}
		}))
	}, func(r any) Message {
		w.log.Error("export worker panicked", zap.Any("panic", r))
		err := fmt.Errorf("%w: %v", export.ErrChannel, r)
		return Message{Type: ChannelError, Error: err.Error(), Err: err}
	})
}

func copyRows(rows []types.Row) []types.Row {
	if rows == nil {
		return nil
	}
	out := make([]types.Row, len(rows))
	for i, r := range rows {
		out[i] = maps.Clone(r)
	}
	return out
}

// Collect reads ch up to its terminal message, terminates it, and returns
// the result or the error carried by the terminal message. observe, when
// set, sees every message in order.
func Collect(ctx context.Context, ch *Channel[Message], observe func(Message)) (types.ExportResult, error) {
	defer ch.Terminate()
	for {
		select {
		case <-ctx.Done():
			return types.ExportResult{}, ctx.Err()
		case m, ok := <-ch.Messages():
			if !ok {
				return types.ExportResult{}, fmt.Errorf("%w: closed before a terminal message", export.ErrChannel)
			}
			if observe != nil {
				observe(m)
			}
			if !m.Terminal() {
				continue
			}
			switch {
			case m.Type == ExportDone && m.Result != nil:
				return *m.Result, nil
			case m.Err != nil:
				return types.ExportResult{}, m.Err
			case m.Type == ProcessError:
				return types.ExportResult{}, &export.Error{Phase: export.PhaseProcess, Err: errors.New(m.Error)}
			case m.Type == ChannelError:
				return types.ExportResult{}, fmt.Errorf("%w: %s", export.ErrChannel, m.Error)
			default:
				return types.ExportResult{}, &export.Error{Phase: export.PhaseExport, Err: errors.New(m.Error)}
			}
		}
	}
}

// Indicator derives a busy flag from the message stream alone: set on
// ProcessStart, cleared on any terminal message.
type Indicator struct {
	busy atomic.Bool
}

func (i *Indicator) Observe(m Message) {
	switch {
	case m.Type == ProcessStart:
		i.busy.Store(true)
	case m.Terminal():
		i.busy.Store(false)
	}
}

func (i *Indicator) Busy() bool { return i.busy.Load() }

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourorg/table-export/internal/bridge"
	"github.com/yourorg/table-export/internal/storage"
	"github.com/yourorg/table-export/internal/types"
)

// ExportHandler runs exports in-process through the worker bridge and
// streams the worker's messages to the client as server-sent events.
type ExportHandler struct {
	worker    *bridge.Worker
	outputURI string
	newSink   func(ctx context.Context, uri string) (storage.Sink, error)
	log       *zap.Logger
}

func NewExportHandler(worker *bridge.Worker, outputURI string, log *zap.Logger) *ExportHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExportHandler{worker: worker, outputURI: outputURI, newSink: storage.New, log: log}
}

// CreateExport accepts a bridge.Request body and streams one event per
// worker message. The done event carries where the artifact was saved.
func (h *ExportHandler) CreateExport(c *gin.Context) {
	var req bridge.Request
	if err := decodeJSON(c.Request.Body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.stream(c, req)
}

func (h *ExportHandler) stream(c *gin.Context, req bridge.Request) {
	id := uuid.NewString()
	log := h.log.With(zap.String("export_id", id), zap.Int("rows", len(req.Data)))
	ctx := c.Request.Context()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Export-ID", id)
	c.Status(http.StatusOK)

	ch := h.worker.Start(ctx, req)
	defer ch.Terminate()
	for {
		select {
		case <-ctx.Done():
			log.Info("client went away")
			return
		case m, ok := <-ch.Messages():
			if !ok {
				return
			}
			ev := h.event(ctx, m, log)
			c.SSEvent(ev.Type, ev)
			c.Writer.Flush()
			if m.Terminal() {
				return
			}
		}
	}
}

// event converts a worker message for the wire. On ExportDone the artifact is
// saved first; a failed save is reported as an export error.
func (h *ExportHandler) event(ctx context.Context, m bridge.Message, log *zap.Logger) types.WorkflowMessage {
	ev := types.WorkflowMessage{Type: string(m.Type), Error: m.Error}
	if m.Type != bridge.ExportDone || m.Result == nil {
		if m.Terminal() {
			log.Warn("export failed", zap.String("type", ev.Type), zap.String("error", m.Error))
		}
		return ev
	}

	res := m.Result
	sink, err := h.newSink(ctx, h.outputURI)
	if err == nil {
		var uri string
		if uri, err = sink.Save(ctx, res.Name, res.Data); err == nil {
			log.Info("export saved", zap.String("uri", uri), zap.Int("chunks", res.Chunks))
			ev.Outcome = &types.ExportOutcome{
				Name:      res.Name,
				URI:       uri,
				Archive:   res.Archive,
				Chunks:    res.Chunks,
				SizeBytes: int64(len(res.Data)),
			}
			return ev
		}
	}
	log.Error("save export", zap.String("name", res.Name), zap.Error(err))
	return types.WorkflowMessage{Type: string(bridge.ExportError), Error: err.Error()}
}

func decodeJSON(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return dec.Decode(v)
}

func decodeJSONBytes(b []byte, v any) error {
	return decodeJSON(bytes.NewReader(b), v)
}

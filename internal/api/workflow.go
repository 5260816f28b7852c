package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	"go.uber.org/zap"

	"github.com/yourorg/table-export/internal/bridge"
	iopkg "github.com/yourorg/table-export/internal/iopkg"
	"github.com/yourorg/table-export/internal/types"
	"github.com/yourorg/table-export/internal/workflow"
)

// WorkflowClient is the part of client.Client the handlers use.
type WorkflowClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	QueryWorkflow(ctx context.Context, workflowID string, runID string, queryType string, args ...interface{}) (converter.EncodedValue, error)
}

type WorkflowHandler struct {
	temporalClient WorkflowClient
	taskQueue      string
	requestURI     string
	outputURI      string
	writeFile      func(ctx context.Context, uri string, data []byte) error
	log            *zap.Logger
}

// NewWorkflowHandler stores request documents under requestURI and asks the
// workflow to save artifacts under outputURI.
func NewWorkflowHandler(c WorkflowClient, taskQueue, requestURI, outputURI string, log *zap.Logger) *WorkflowHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WorkflowHandler{
		temporalClient: c,
		taskQueue:      taskQueue,
		requestURI:     requestURI,
		outputURI:      outputURI,
		writeFile:      iopkg.WriteFile,
		log:            log,
	}
}

type StartExportRequest struct {
	bridge.Request
	ChunkSize   int    `json:"chunkSize,omitempty"`
	Renderer    string `json:"renderer,omitempty"`
	KeepScratch bool   `json:"keepScratch,omitempty"`
}

type StartWorkflowResponse struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
	RequestURI string `json:"request_uri"`
}

// StartExportWorkflow persists the request document and starts ExportWorkflow.
func (h *WorkflowHandler) StartExportWorkflow(c *gin.Context) {
	var req StartExportRequest
	if err := decodeJSON(c.Request.Body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ChunkSize < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chunkSize must not be negative"})
		return
	}

	id := "export-" + uuid.NewString()
	doc, err := json.Marshal(req.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	reqURI := iopkg.Join(h.requestURI, id+".json")
	if err := h.writeFile(c.Request.Context(), reqURI, doc); err != nil {
		h.log.Error("store export request", zap.String("uri", reqURI), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store request: " + err.Error()})
		return
	}

	params := types.ExportParams{
		RequestURI:  reqURI,
		OutputURI:   h.outputURI,
		FileName:    req.FileName,
		Title:       req.Title,
		ChunkSize:   req.ChunkSize,
		Renderer:    req.Renderer,
		KeepScratch: req.KeepScratch,
	}
	options := client.StartWorkflowOptions{
		ID:        id,
		TaskQueue: h.taskQueue,
	}
	run, err := h.temporalClient.ExecuteWorkflow(c.Request.Context(), options, workflow.ExportWorkflow, params)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start workflow: " + err.Error()})
		return
	}
	h.log.Info("export workflow started", zap.String("workflow_id", run.GetID()), zap.Int("rows", len(req.Data)))

	c.JSON(http.StatusAccepted, StartWorkflowResponse{
		WorkflowID: run.GetID(),
		RunID:      run.GetRunID(),
		RequestURI: reqURI,
	})
}

// GetWorkflowMessages returns the workflow's message log so far.
func (h *WorkflowHandler) GetWorkflowMessages(c *gin.Context) {
	workflowID := c.Param("id")
	if workflowID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "workflow id is required"})
		return
	}

	val, err := h.temporalClient.QueryWorkflow(c.Request.Context(), workflowID, "", workflow.QueryMessages)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to query workflow: " + err.Error()})
		return
	}
	var msgs []types.WorkflowMessage
	if val != nil && val.HasValue() {
		if err := val.Get(&msgs); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	done := false
	for _, m := range msgs {
		done = done || bridge.Message{Type: bridge.MessageType(m.Type)}.Terminal()
	}
	c.JSON(http.StatusOK, gin.H{
		"workflow_id": workflowID,
		"messages":    msgs,
		"done":        done,
	})
}

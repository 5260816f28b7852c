package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/yourorg/table-export/internal/bridge"
	"github.com/yourorg/table-export/internal/types"
)

// QueryMessages returns the workflow's message log ([]types.WorkflowMessage).
const QueryMessages = "messages"

// ExportWorkflow runs one export remotely. Its message log mirrors the worker
// protocol: process start, export start, then exactly one terminal message.
func ExportWorkflow(ctx workflow.Context, p types.ExportParams) (types.ExportOutcome, error) {
	var messages []types.WorkflowMessage
	if err := workflow.SetQueryHandler(ctx, QueryMessages, func() ([]types.WorkflowMessage, error) {
		return messages, nil
	}); err != nil {
		return types.ExportOutcome{}, err
	}
	post := func(t bridge.MessageType, out *types.ExportOutcome, err error) {
		m := types.WorkflowMessage{Type: string(t), Outcome: out}
		if err != nil {
			m.Error = err.Error()
		}
		messages = append(messages, m)
	}

	// Exports are not resumable; a failed attempt is final.
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Hour,
		HeartbeatTimeout:    5 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	if p.ScratchSubdir == "" {
		p.ScratchSubdir = workflow.GetInfo(ctx).WorkflowExecution.ID
	}
	if !p.KeepScratch {
		defer func() {
			dctx, _ := workflow.NewDisconnectedContext(ctx)
			cleanupAO := ao
			cleanupAO.StartToCloseTimeout = 5 * time.Minute
			cleanupAO.RetryPolicy = &temporal.RetryPolicy{MaximumAttempts: 3}
			dctx = workflow.WithActivityOptions(dctx, cleanupAO)
			err := workflow.ExecuteActivity(dctx, "Activities.CleanupScratch", types.CleanupParams{ScratchSubdir: p.ScratchSubdir}).Get(dctx, nil)
			if err != nil {
				workflow.GetLogger(ctx).Warn("scratch cleanup failed", "subdir", p.ScratchSubdir, "error", err)
			}
		}()
	}

	post(bridge.ProcessStart, nil, nil)
	var pr types.ProcessResult
	if err := workflow.ExecuteActivity(ctx, "Activities.ProcessRows", p).Get(ctx, &pr); err != nil {
		post(bridge.ProcessError, nil, err)
		return types.ExportOutcome{}, err
	}

	post(bridge.ExportStart, nil, nil)
	rp := types.RenderParams{
		Process:       pr,
		OutputURI:     p.OutputURI,
		ChunkSize:     p.ChunkSize,
		Renderer:      p.Renderer,
		ScratchSubdir: p.ScratchSubdir,
	}
	var out types.ExportOutcome
	if err := workflow.ExecuteActivity(ctx, "Activities.RenderAndPackage", rp).Get(ctx, &out); err != nil {
		post(bridge.ExportError, nil, err)
		return types.ExportOutcome{}, err
	}

	post(bridge.ExportDone, &out, nil)
	return out, nil
}

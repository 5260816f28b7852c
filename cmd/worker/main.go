package main

import (
	"log"
	"os"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/yourorg/table-export/internal/activities"
	"github.com/yourorg/table-export/internal/config"
	"github.com/yourorg/table-export/internal/metrics"
	"github.com/yourorg/table-export/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config:", err)
	}
	// Ensure scratch dir exists and is writable
	_ = os.MkdirAll(cfg.Storage.ScratchDir, 0o777)

	zl := config.NewLogger(cfg.Log.Level)
	defer zl.Sync()

	metrics.Init()
	go func() {
		if err := metrics.Serve(cfg.Metrics.Addr); err != nil {
			zl.Warn("metrics server stopped", zap.Error(err))
		}
	}()

	c, err := client.Dial(client.Options{HostPort: cfg.Temporal.Address, Namespace: cfg.Temporal.Namespace})
	if err != nil {
		zl.Fatal("temporal client", zap.Error(err))
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	acts := activities.New(activities.Config{
		ScratchDir: cfg.Storage.ScratchDir,
		StagingURI: cfg.Storage.StagingURI,
		Export:     cfg.CoordinatorConfig(zl),
	})
	acts.Register(w)
	w.RegisterWorkflow(workflow.ExportWorkflow)

	zl.Info("worker started",
		zap.String("namespace", cfg.Temporal.Namespace),
		zap.String("taskQueue", cfg.Temporal.TaskQueue),
		zap.String("scratch", cfg.Storage.ScratchDir),
		zap.String("metrics", cfg.Metrics.Addr))
	if err := w.Run(worker.InterruptCh()); err != nil {
		zl.Fatal("worker failed", zap.Error(err))
	}
}

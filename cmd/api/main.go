package main

import (
	"log"
	"strconv"

	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/yourorg/table-export/internal/api"
	"github.com/yourorg/table-export/internal/bridge"
	"github.com/yourorg/table-export/internal/config"
	"github.com/yourorg/table-export/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config:", err)
	}
	zl := config.NewLogger(cfg.Log.Level)
	defer zl.Sync()

	metrics.Init()
	go func() {
		if err := metrics.Serve(cfg.Metrics.Addr); err != nil {
			zl.Warn("metrics server stopped", zap.Error(err))
		}
	}()

	worker := bridge.NewWorker(cfg.Coordinator(zl), zl)
	exports := api.NewExportHandler(worker, cfg.Storage.OutputURI, zl)

	var workflows *api.WorkflowHandler
	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.Address,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		// in-process exports still work without Temporal
		zl.Warn("temporal unavailable, workflow routes disabled", zap.Error(err))
	} else {
		defer temporalClient.Close()
		workflows = api.NewWorkflowHandler(temporalClient, cfg.Temporal.TaskQueue, cfg.Storage.RequestURI, cfg.Storage.OutputURI, zl)
	}

	r := api.NewRouter(exports, workflows)
	addr := ":" + strconv.Itoa(cfg.API.Port)
	zl.Info("server starting", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		zl.Fatal("server failed", zap.Error(err))
	}
}

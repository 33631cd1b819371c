package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yungbote/perfinsight-backend/internal/app"
	"github.com/yungbote/perfinsight-backend/internal/jobs/pipeline/evidence_index"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to init app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	if a.Clients.Vector == nil {
		a.Log.Warn("no vector provider configured; nothing to index")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.RunJob(ctx, evidence_index.JobType, a.Cfg.Scheduler.IndexTimeout); err != nil {
		a.Log.Error("evidence indexing failed", "error", err)
		a.Close()
		os.Exit(1)
	}
}

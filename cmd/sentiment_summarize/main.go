package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yungbote/perfinsight-backend/internal/app"
	"github.com/yungbote/perfinsight-backend/internal/jobs/pipeline/sentiment_summarize"
)

// Runs one sentiment summarization pass and exits. Used by external schedulers when the in-process
// scheduler is disabled.
func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to init app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.RunJob(ctx, sentiment_summarize.JobType, a.Cfg.Scheduler.SummarizeTimeout); err != nil {
		a.Log.Error("sentiment summarization failed", "error", err)
		a.Close()
		os.Exit(1)
	}
}

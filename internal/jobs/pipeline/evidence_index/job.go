package evidence_index

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/perfinsight-backend/internal/modules/reviewgen"
	"github.com/yungbote/perfinsight-backend/internal/platform/dbctx"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
)

const JobType = "evidence_index"

type ReceiverLister interface {
	ReceiverIDsSince(dbc dbctx.Context, since time.Time) ([]uuid.UUID, error)
}

type Indexer interface {
	IndexEmployeeEvidence(ctx context.Context, in reviewgen.IndexInput) (reviewgen.IndexOutput, error)
}

// Job refreshes the retrieval index for employees who received feedback inside the lookback.
type Job struct {
	Log      *logger.Logger
	Feedback ReceiverLister
	Indexer  Indexer
	Lookback time.Duration
	Workers  int
	Now      func() time.Time
}

func (j *Job) Type() string { return JobType }

func (j *Job) Run(ctx context.Context) error {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	lookback := j.Lookback
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	workers := j.Workers
	if workers <= 0 {
		workers = 4
	}
	at := now().UTC()
	ids, err := j.Feedback.ReceiverIDsSince(dbctx.Context{Ctx: ctx}, at.Add(-lookback))
	if err != nil {
		return fmt.Errorf("list feedback receivers: %w", err)
	}

	var (
		mu       sync.Mutex
		upserted int
		failed   int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			out, err := j.Indexer.IndexEmployeeEvidence(gctx, reviewgen.IndexInput{EmployeeID: id, Now: at})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				if j.Log != nil {
					j.Log.Warn("evidence indexing failed; skipping", "employee_id", id, "error", err)
				}
				return nil
			}
			upserted += out.Upserted
			return nil
		})
	}
	_ = g.Wait()
	if j.Log != nil {
		j.Log.Info("evidence index run", "employees", len(ids), "upserted", upserted, "failed", failed)
	}
	if len(ids) > 0 && failed == len(ids) {
		return fmt.Errorf("evidence indexing failed for all %d employees", failed)
	}
	return ctx.Err()
}

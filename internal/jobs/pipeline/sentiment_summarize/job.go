package sentiment_summarize

import (
	"context"
	"time"

	"github.com/yungbote/perfinsight-backend/internal/domain/sentiment"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
	"github.com/yungbote/perfinsight-backend/internal/services"
)

const JobType = "sentiment_summarize"

type Summarizer interface {
	SummarizeRecent(ctx context.Context, since time.Time, period string) (*services.SummarizeRecentResult, error)
}

// Job summarizes every employee with feedback analyzed inside the lookback and raises shift alerts.
type Job struct {
	Log      *logger.Logger
	Svc      Summarizer
	Lookback time.Duration
	Period   string
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
	period := j.Period
	if period == "" {
		period = sentiment.PeriodWeek
	}
	res, err := j.Svc.SummarizeRecent(ctx, now().UTC().Add(-lookback), period)
	if res != nil && j.Log != nil {
		j.Log.Info("sentiment summarization run", "employees", res.Employees, "alerts", len(res.Alerts), "failed", res.Failed)
	}
	return err
}

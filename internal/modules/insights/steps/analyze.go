package steps

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/perfinsight-backend/internal/data/repos"
	domainagg "github.com/yungbote/perfinsight-backend/internal/domain/aggregates"
	"github.com/yungbote/perfinsight-backend/internal/domain/performance"
	"github.com/yungbote/perfinsight-backend/internal/domain/sentiment"
	"github.com/yungbote/perfinsight-backend/internal/observability"
	"github.com/yungbote/perfinsight-backend/internal/platform/dbctx"
	"github.com/yungbote/perfinsight-backend/internal/platform/httpx"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
)

type AnalyzeDeps struct {
	Log        *logger.Logger
	Classifier Classifier

	Feedback  repos.FeedbackRepo
	Analyses  repos.AnalysisRepo
	Employees repos.EmployeeRepo

	// Alerts is optional; without it analysis only persists results.
	Alerts domainagg.SentimentAlertAggregate
	Gate   Gate
	Notify AlertNotifier

	Config Config
}

type AnalyzeInput struct {
	FeedbackID uuid.UUID
	Now        time.Time
}

type AnalyzeOutput struct {
	Result sentiment.Result            `json:"result"`
	Alerts []*sentiment.SentimentAlert `json:"alerts"`
}

// Analyze classifies one feedback item, stores the result and raises any per-item alerts.
func Analyze(ctx context.Context, deps AnalyzeDeps, in AnalyzeInput) (AnalyzeOutput, error) {
	var out AnalyzeOutput
	if deps.Classifier == nil || deps.Feedback == nil || deps.Analyses == nil {
		return out, fmt.Errorf("analyze: missing deps")
	}
	cfg := deps.Config.WithDefaults()
	dbc := dbctx.Context{Ctx: ctx}

	fb, err := deps.Feedback.GetByID(dbc, in.FeedbackID)
	if err != nil {
		return out, fmt.Errorf("analyze: load feedback: %w", err)
	}
	if fb == nil {
		return out, &performance.NotFoundError{Kind: "feedback", ID: in.FeedbackID}
	}

	callCtx, cancel := context.WithTimeout(ctx, cfg.ClassifyTimeout)
	var cls Classification
	err = httpx.RetryOnce(callCtx, cfg.RetryBackoff, func(ctx context.Context) error {
		c, err := deps.Classifier.Classify(ctx, fb.Text)
		if err != nil {
			return err
		}
		cls = c
		return nil
	})
	cancel()
	if err != nil {
		observability.Current().IncSentimentAnalysis("failed")
		return out, err
	}

	res := sentiment.Result{
		FeedbackID:     fb.ID,
		Tone:           cls.Tone,
		SentimentScore: cls.SentimentScore,
		QualityScore:   cls.QualityScore,
		Specificity:    cls.Specificity,
		Actionability:  cls.Actionability,
		BiasIndicators: mergeIndicators(cls.BiasIndicators, DetectBiasKeywords(fb.Text, cfg.BiasKeywords)),
		Keywords:       cls.Keywords,
	}
	if res.Keywords == nil {
		res.Keywords = []string{}
	}

	now := in.Now.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}
	if err := deps.Analyses.Upsert(dbc, &sentiment.FeedbackAnalysis{
		FeedbackID:        fb.ID,
		OrgID:             fb.OrgID,
		EmployeeID:        fb.ReceiverID,
		Tone:              res.Tone,
		SentimentScore:    res.SentimentScore,
		QualityScore:      res.QualityScore,
		Specificity:       res.Specificity,
		Actionability:     res.Actionability,
		BiasIndicators:    sentiment.EncodeStrings(res.BiasIndicators),
		Keywords:          sentiment.EncodeStrings(res.Keywords),
		FeedbackCreatedAt: fb.CreatedAt.UTC(),
		AnalyzedAt:        now,
	}); err != nil {
		observability.Current().IncSentimentAnalysis("failed")
		return out, fmt.Errorf("analyze: store result: %w", err)
	}
	observability.Current().IncSentimentAnalysis("succeeded")
	out.Result = res

	if deps.Alerts != nil {
		created, err := RaiseAlerts(ctx, RaiseDeps{
			Log:       deps.Log,
			Alerts:    deps.Alerts,
			Employees: deps.Employees,
			Gate:      deps.Gate,
			Notify:    deps.Notify,
			Config:    cfg,
		}, RaiseInput{
			OrgID:      fb.OrgID,
			EmployeeID: fb.ReceiverID,
			Candidates: ItemAlerts(res, cfg),
			At:         now,
		})
		if err != nil {
			return out, err
		}
		out.Alerts = created
	}
	return out, nil
}

type BatchOutput struct {
	Results []sentiment.Result          `json:"results"`
	Alerts  []*sentiment.SentimentAlert `json:"alerts"`
	Failed  []uuid.UUID                 `json:"failed"`
}

// AnalyzeBatch fans Analyze out over the ids. Per-item failures are logged and skipped; when the
// failure rate exceeds the threshold the batch returns one *BatchAnalysisError alongside the partial
// output.
func AnalyzeBatch(ctx context.Context, deps AnalyzeDeps, ids []uuid.UUID, now time.Time) (BatchOutput, error) {
	out := BatchOutput{Results: []sentiment.Result{}, Failed: []uuid.UUID{}}
	ids = dedupeIDs(ids)
	if len(ids) == 0 {
		return out, nil
	}
	cfg := deps.Config.WithDefaults()

	type itemOutcome struct {
		out AnalyzeOutput
		err error
	}
	outcomes := make([]itemOutcome, len(ids))
	var firstErr error
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.BatchWorkers)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			res, err := Analyze(gctx, deps, AnalyzeInput{FeedbackID: id, Now: now})
			outcomes[i] = itemOutcome{out: res, err: err}
			if err != nil {
				if deps.Log != nil {
					deps.Log.Warn("feedback analysis failed; skipping", "feedback_id", id, "error", err)
				}
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	for i, o := range outcomes {
		if o.err != nil {
			out.Failed = append(out.Failed, ids[i])
			continue
		}
		out.Results = append(out.Results, o.out.Result)
		out.Alerts = append(out.Alerts, o.out.Alerts...)
	}
	rate := float64(len(out.Failed)) / float64(len(ids))
	if rate > cfg.BatchFailureThreshold {
		return out, &sentiment.BatchAnalysisError{
			Total:     len(ids),
			Failed:    len(out.Failed),
			Threshold: cfg.BatchFailureThreshold,
			FirstErr:  firstErr,
		}
	}
	return out, nil
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

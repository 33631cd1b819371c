package insights

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/perfinsight-backend/internal/data/repos"
	domainagg "github.com/yungbote/perfinsight-backend/internal/domain/aggregates"
	"github.com/yungbote/perfinsight-backend/internal/domain/sentiment"
	"github.com/yungbote/perfinsight-backend/internal/modules/insights/steps"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
)

type UsecasesDeps struct {
	Log *logger.Logger

	Classifier steps.Classifier

	Feedback  repos.FeedbackRepo
	Analyses  repos.AnalysisRepo
	Employees repos.EmployeeRepo

	Alerts domainagg.SentimentAlertAggregate
	Gate   steps.Gate
	Notify steps.AlertNotifier

	Config steps.Config
}

type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases {
	deps.Config = deps.Config.WithDefaults()
	return Usecases{deps: deps}
}

func (u Usecases) WithLog(log *logger.Logger) Usecases {
	u.deps.Log = log
	return u
}

func (u Usecases) Config() steps.Config { return u.deps.Config }

type (
	Config = steps.Config

	Classification = steps.Classification
	Classifier     = steps.Classifier

	AnalyzeInput  = steps.AnalyzeInput
	AnalyzeOutput = steps.AnalyzeOutput
	BatchOutput   = steps.BatchOutput

	SummarizeInput = steps.SummarizeInput

	AlertCandidate = steps.AlertCandidate
)

func DefaultConfig() Config { return steps.DefaultConfig() }

func NewLLMClassifier(ai steps.JSONGenerator, log *logger.Logger) Classifier {
	return steps.NewLLMClassifier(ai, log)
}

func (u Usecases) analyzeDeps() steps.AnalyzeDeps {
	return steps.AnalyzeDeps{
		Log:        u.deps.Log,
		Classifier: u.deps.Classifier,
		Feedback:   u.deps.Feedback,
		Analyses:   u.deps.Analyses,
		Employees:  u.deps.Employees,
		Alerts:     u.deps.Alerts,
		Gate:       u.deps.Gate,
		Notify:     u.deps.Notify,
		Config:     u.deps.Config,
	}
}

func (u Usecases) Analyze(ctx context.Context, in AnalyzeInput) (AnalyzeOutput, error) {
	return steps.Analyze(ctx, u.analyzeDeps(), in)
}

func (u Usecases) AnalyzeBatch(ctx context.Context, ids []uuid.UUID, now time.Time) (BatchOutput, error) {
	return steps.AnalyzeBatch(ctx, u.analyzeDeps(), ids, now)
}

func (u Usecases) Summarize(ctx context.Context, in SummarizeInput) (sentiment.Trend, error) {
	return steps.Summarize(ctx, steps.SummarizeDeps{
		Analyses: u.deps.Analyses,
		Config:   u.deps.Config,
	}, in)
}

// RaiseShiftAlert raises a sentiment_shift alert when the trend calls for one.
func (u Usecases) RaiseShiftAlert(ctx context.Context, orgID uuid.UUID, trend sentiment.Trend, at time.Time) ([]*sentiment.SentimentAlert, error) {
	cand := steps.ShiftAlert(trend, u.deps.Config)
	if cand == nil {
		return nil, nil
	}
	return steps.RaiseAlerts(ctx, steps.RaiseDeps{
		Log:       u.deps.Log,
		Alerts:    u.deps.Alerts,
		Employees: u.deps.Employees,
		Gate:      u.deps.Gate,
		Notify:    u.deps.Notify,
		Config:    u.deps.Config,
	}, steps.RaiseInput{
		OrgID:      orgID,
		EmployeeID: trend.EmployeeID,
		Candidates: []steps.AlertCandidate{*cand},
		At:         at,
	})
}

func GateKey(employeeID uuid.UUID, alertType string) string {
	return steps.GateKey(employeeID, alertType)
}

package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/perfinsight-backend/internal/data/repos"
	domainagg "github.com/yungbote/perfinsight-backend/internal/domain/aggregates"
	types "github.com/yungbote/perfinsight-backend/internal/domain/performance"
	"github.com/yungbote/perfinsight-backend/internal/domain/sentiment"
	"github.com/yungbote/perfinsight-backend/internal/modules/insights"
	"github.com/yungbote/perfinsight-backend/internal/platform/dbctx"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
)

// Gate is the cross-process alert cooldown gate; acknowledging an alert reopens it.
type Gate interface {
	ReleaseGate(ctx context.Context, key string) error
}

type SummarizeRecentResult struct {
	Employees int                         `json:"employees"`
	Alerts    []*sentiment.SentimentAlert `json:"alerts"`
	Failed    int                         `json:"failed"`
}

type SentimentService interface {
	Analyze(ctx context.Context, actorID, feedbackID uuid.UUID) (*insights.AnalyzeOutput, error)
	AnalyzeBatch(ctx context.Context, actorID uuid.UUID, feedbackIDs []uuid.UUID) (*insights.BatchOutput, error)
	Summarize(ctx context.Context, actorID, employeeID uuid.UUID, period string) (*sentiment.Trend, error)
	ListAlerts(ctx context.Context, actorID, employeeID uuid.UUID, includeAcknowledged bool) ([]*sentiment.SentimentAlert, error)
	Acknowledge(ctx context.Context, actorID, alertID uuid.UUID) (*sentiment.SentimentAlert, error)
	// SummarizeRecent is the scheduled pass: it summarizes every employee analyzed since the cutoff and
	// raises sentiment_shift alerts. It runs without an actor.
	SummarizeRecent(ctx context.Context, since time.Time, period string) (*SummarizeRecentResult, error)
}

type SentimentServiceDeps struct {
	Log     *logger.Logger
	Monitor insights.Usecases

	Employees repos.EmployeeRepo
	Feedback  repos.FeedbackRepo
	Alerts    repos.AlertRepo
	Analyses  repos.AnalysisRepo
	AlertAgg  domainagg.SentimentAlertAggregate
	Gate      Gate

	Access AccessPolicy
	Now    func() time.Time
}

type sentimentService struct {
	deps SentimentServiceDeps
	log  *logger.Logger
}

func NewSentimentService(deps SentimentServiceDeps) SentimentService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &sentimentService{
		deps: deps,
		log:  deps.Log.With("service", "SentimentService"),
	}
}

func (s *sentimentService) now() time.Time { return s.deps.Now().UTC() }

func (s *sentimentService) require(ctx context.Context, actorID, employeeID uuid.UUID, manage bool) error {
	if s.deps.Access == nil {
		return &types.InsufficientScopeError{ActorID: actorID, EmployeeID: employeeID}
	}
	check := s.deps.Access.CanRead
	if manage {
		check = s.deps.Access.CanManage
	}
	ok, err := check(ctx, actorID, employeeID)
	if err != nil {
		return err
	}
	if !ok {
		return &types.InsufficientScopeError{ActorID: actorID, EmployeeID: employeeID}
	}
	return nil
}

func (s *sentimentService) Analyze(ctx context.Context, actorID, feedbackID uuid.UUID) (*insights.AnalyzeOutput, error) {
	fb, err := s.deps.Feedback.GetByID(dbctx.Context{Ctx: ctx}, feedbackID)
	if err != nil {
		return nil, err
	}
	if fb == nil {
		return nil, &types.NotFoundError{Kind: "feedback", ID: feedbackID}
	}
	if err := s.require(ctx, actorID, fb.ReceiverID, true); err != nil {
		return nil, err
	}
	out, err := s.deps.Monitor.Analyze(ctx, insights.AnalyzeInput{FeedbackID: feedbackID, Now: s.now()})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *sentimentService) AnalyzeBatch(ctx context.Context, actorID uuid.UUID, feedbackIDs []uuid.UUID) (*insights.BatchOutput, error) {
	if len(feedbackIDs) == 0 {
		return nil, &types.ValidationError{Field: "feedback_ids", Message: "at least one id is required"}
	}
	items, err := s.deps.Feedback.GetByIDs(dbctx.Context{Ctx: ctx}, feedbackIDs)
	if err != nil {
		return nil, err
	}
	checked := map[uuid.UUID]bool{}
	for _, fb := range items {
		if fb == nil || checked[fb.ReceiverID] {
			continue
		}
		if err := s.require(ctx, actorID, fb.ReceiverID, true); err != nil {
			return nil, err
		}
		checked[fb.ReceiverID] = true
	}
	// Ids that do not resolve still go through the batch and count as failures.
	out, err := s.deps.Monitor.AnalyzeBatch(ctx, feedbackIDs, s.now())
	s.log.Info("feedback batch analyzed", "total", len(feedbackIDs), "failed", len(out.Failed), "alerts", len(out.Alerts))
	return &out, err
}

func (s *sentimentService) Summarize(ctx context.Context, actorID, employeeID uuid.UUID, period string) (*sentiment.Trend, error) {
	if period == "" {
		period = sentiment.PeriodMonth
	}
	if !sentiment.IsValidPeriod(period) {
		return nil, &types.ValidationError{Field: "period", Message: fmt.Sprintf("unknown period %q", period)}
	}
	if err := s.require(ctx, actorID, employeeID, true); err != nil {
		return nil, err
	}
	trend, err := s.deps.Monitor.Summarize(ctx, insights.SummarizeInput{EmployeeID: employeeID, Period: period, Now: s.now()})
	if err != nil {
		return nil, err
	}
	return &trend, nil
}

func (s *sentimentService) ListAlerts(ctx context.Context, actorID, employeeID uuid.UUID, includeAcknowledged bool) ([]*sentiment.SentimentAlert, error) {
	if err := s.require(ctx, actorID, employeeID, true); err != nil {
		return nil, err
	}
	return s.deps.Alerts.ListByEmployee(dbctx.Context{Ctx: ctx}, employeeID, includeAcknowledged)
}

func (s *sentimentService) Acknowledge(ctx context.Context, actorID, alertID uuid.UUID) (*sentiment.SentimentAlert, error) {
	alert, err := s.deps.Alerts.GetByID(dbctx.Context{Ctx: ctx}, alertID)
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, &types.NotFoundError{Kind: "sentiment_alert", ID: alertID}
	}
	if err := s.require(ctx, actorID, alert.EmployeeID, true); err != nil {
		return nil, err
	}
	if s.deps.AlertAgg == nil {
		return nil, fmt.Errorf("sentiment alert aggregate not configured")
	}
	res, err := s.deps.AlertAgg.Acknowledge(ctx, domainagg.AcknowledgeAlertInput{
		AlertID: alertID,
		ActorID: actorID,
		At:      s.now(),
	})
	if err != nil {
		if domainagg.IsCode(err, domainagg.CodeNotFound) {
			return nil, &types.NotFoundError{Kind: "sentiment_alert", ID: alertID}
		}
		return nil, err
	}
	if res.Changed && s.deps.Gate != nil {
		if err := s.deps.Gate.ReleaseGate(ctx, insights.GateKey(alert.EmployeeID, alert.Type)); err != nil {
			s.log.Warn("failed to reopen alert gate", "alert_id", alertID, "error", err)
		}
	}
	return res.Alert, nil
}

func (s *sentimentService) SummarizeRecent(ctx context.Context, since time.Time, period string) (*SummarizeRecentResult, error) {
	if period == "" {
		period = sentiment.PeriodWeek
	}
	if !sentiment.IsValidPeriod(period) {
		return nil, &types.ValidationError{Field: "period", Message: fmt.Sprintf("unknown period %q", period)}
	}
	dbc := dbctx.Context{Ctx: ctx}
	ids, err := s.deps.Analyses.EmployeeIDsAnalyzedSince(dbc, since)
	if err != nil {
		return nil, fmt.Errorf("list analyzed employees: %w", err)
	}
	out := &SummarizeRecentResult{Employees: len(ids), Alerts: []*sentiment.SentimentAlert{}}
	if len(ids) == 0 {
		return out, nil
	}
	employees, err := s.deps.Employees.GetByIDs(dbc, ids)
	if err != nil {
		return nil, fmt.Errorf("load employees: %w", err)
	}
	orgOf := make(map[uuid.UUID]uuid.UUID, len(employees))
	for _, e := range employees {
		orgOf[e.ID] = e.OrgID
	}

	now := s.now()
	cfg := s.deps.Monitor.Config()
	var (
		mu       sync.Mutex
		firstErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.BatchWorkers)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			alerts, err := s.summarizeOne(gctx, id, orgOf[id], period, now)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				out.Failed++
				if firstErr == nil {
					firstErr = err
				}
				s.log.Warn("sentiment summarization failed; skipping", "employee_id", id, "error", err)
				return nil
			}
			out.Alerts = append(out.Alerts, alerts...)
			return nil
		})
	}
	_ = g.Wait()
	s.log.Info("sentiment summarization finished", "employees", out.Employees, "alerts", len(out.Alerts), "failed", out.Failed)
	if err := ctx.Err(); err != nil {
		return out, err
	}
	if rate := float64(out.Failed) / float64(out.Employees); rate > cfg.BatchFailureThreshold {
		return out, &sentiment.BatchAnalysisError{
			Total:     out.Employees,
			Failed:    out.Failed,
			Threshold: cfg.BatchFailureThreshold,
			FirstErr:  firstErr,
		}
	}
	return out, nil
}

func (s *sentimentService) summarizeOne(ctx context.Context, employeeID, orgID uuid.UUID, period string, now time.Time) ([]*sentiment.SentimentAlert, error) {
	trend, err := s.deps.Monitor.Summarize(ctx, insights.SummarizeInput{EmployeeID: employeeID, Period: period, Now: now})
	if err != nil {
		return nil, err
	}
	return s.deps.Monitor.RaiseShiftAlert(ctx, orgID, trend, now)
}

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/perfinsight-backend/internal/data/aggregates"
	aggtestutil "github.com/yungbote/perfinsight-backend/internal/data/aggregates/testutil"
	"github.com/yungbote/perfinsight-backend/internal/data/repos"
	"github.com/yungbote/perfinsight-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/perfinsight-backend/internal/domain/aggregates"
	types "github.com/yungbote/perfinsight-backend/internal/domain/performance"
	"github.com/yungbote/perfinsight-backend/internal/domain/sentiment"
	"github.com/yungbote/perfinsight-backend/internal/modules/insights"
	"github.com/yungbote/perfinsight-backend/internal/platform/dbctx"
)

type sentimentFixture struct {
	svc      SentimentService
	set      repos.Set
	agg      domainagg.SentimentAlertAggregate
	gate     *recordingGate
	notify   *recordingNotifier
	manager  *types.Employee
	employee *types.Employee
	peer     *types.Employee
	now      time.Time
}

func newSentimentFixture(t *testing.T, db *gorm.DB) sentimentFixture {
	t.Helper()
	ctx := context.Background()
	log := testutil.Logger(t)
	set := repos.NewSet(db, log)
	orgID := uuid.New()
	manager := testutil.SeedEmployee(t, ctx, db, orgID, nil, types.RoleManager)
	employee := testutil.SeedEmployee(t, ctx, db, orgID, testutil.PtrUUID(manager.ID), types.RoleEmployee)
	peer := testutil.SeedEmployee(t, ctx, db, orgID, testutil.PtrUUID(manager.ID), types.RoleEmployee)

	agg := aggregates.NewSentimentAlertAggregate(aggregates.SentimentAlertAggregateDeps{
		Base:   aggregates.BaseDeps{DB: db, Log: log},
		Alerts: set.Alerts,
	})
	notify := &recordingNotifier{}
	gate := &recordingGate{}
	now := time.Now().UTC()
	monitor := insights.New(insights.UsecasesDeps{
		Log:       log,
		Feedback:  set.Feedback,
		Analyses:  set.Analyses,
		Employees: set.Employees,
		Alerts:    agg,
		Notify:    notify,
	})
	svc := NewSentimentService(SentimentServiceDeps{
		Log:       log,
		Monitor:   monitor,
		Employees: set.Employees,
		Feedback:  set.Feedback,
		Alerts:    set.Alerts,
		Analyses:  set.Analyses,
		AlertAgg:  agg,
		Gate:      gate,
		Access:    NewAccessPolicy(log, set.Employees),
		Now:       func() time.Time { return now },
	})
	return sentimentFixture{
		svc:      svc,
		set:      set,
		agg:      agg,
		gate:     gate,
		notify:   notify,
		manager:  manager,
		employee: employee,
		peer:     peer,
		now:      now,
	}
}

func TestSentimentServiceAcknowledgeReopensGate(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	fx := newSentimentFixture(t, db)

	raised, err := fx.agg.Raise(ctx, domainagg.RaiseAlertInput{
		OrgID:      fx.employee.OrgID,
		EmployeeID: fx.employee.ID,
		Type:       sentiment.AlertTypeBiasDetected,
		Severity:   sentiment.SeverityMedium,
		Message:    "gendered language",
		Cooldown:   7 * 24 * time.Hour,
		At:         fx.now,
	})
	if err != nil || !raised.Created {
		t.Fatalf("Raise: created=%v err=%v", raised.Created, err)
	}

	if _, err := fx.svc.Acknowledge(ctx, fx.peer.ID, raised.Alert.ID); !types.IsInsufficientScope(err) {
		t.Fatalf("peer acknowledge: want InsufficientScopeError got=%v", err)
	}
	alert, err := fx.svc.Acknowledge(ctx, fx.manager.ID, raised.Alert.ID)
	if err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if !alert.Acknowledged {
		t.Fatalf("acknowledged: want=true got=false")
	}
	want := insights.GateKey(fx.employee.ID, sentiment.AlertTypeBiasDetected)
	if len(fx.gate.released) != 1 || fx.gate.released[0] != want {
		t.Fatalf("released gates: want=[%s] got=%v", want, fx.gate.released)
	}

	if _, err := fx.svc.Acknowledge(ctx, fx.manager.ID, raised.Alert.ID); err != nil {
		t.Fatalf("second acknowledge: %v", err)
	}
	if len(fx.gate.released) != 1 {
		t.Fatalf("repeat acknowledge released gate again: got=%v", fx.gate.released)
	}

	open, err := fx.svc.ListAlerts(ctx, fx.manager.ID, fx.employee.ID, false)
	if err != nil || len(open) != 0 {
		t.Fatalf("open alerts: want=0 got=%d err=%v", len(open), err)
	}
	all, err := fx.svc.ListAlerts(ctx, fx.manager.ID, fx.employee.ID, true)
	if err != nil || len(all) != 1 {
		t.Fatalf("all alerts: want=1 got=%d err=%v", len(all), err)
	}

	if _, err := fx.svc.Acknowledge(ctx, fx.manager.ID, uuid.New()); !types.IsNotFound(err) {
		t.Fatalf("unknown alert: want NotFoundError got=%v", err)
	}
}

func TestSentimentServiceSummarizeRecentRaisesShiftAlert(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	fx := newSentimentFixture(t, db)

	for i, quality := range []float64{70, 72, 55} {
		at := fx.now.AddDate(0, 0, -7*(2-i)).Add(-time.Minute)
		if err := fx.set.Analyses.Upsert(dbctx.Context{Ctx: ctx}, &sentiment.FeedbackAnalysis{
			FeedbackID:        uuid.New(),
			OrgID:             fx.employee.OrgID,
			EmployeeID:        fx.employee.ID,
			Tone:              sentiment.ToneNeutral,
			SentimentScore:    65,
			QualityScore:      quality,
			BiasIndicators:    sentiment.EncodeStrings(nil),
			Keywords:          sentiment.EncodeStrings([]string{"delivery"}),
			FeedbackCreatedAt: at,
			AnalyzedAt:        fx.now,
		}); err != nil {
			t.Fatalf("seed analysis: %v", err)
		}
	}

	res, err := fx.svc.SummarizeRecent(ctx, fx.now.Add(-24*time.Hour), sentiment.PeriodWeek)
	if err != nil {
		t.Fatalf("SummarizeRecent: %v", err)
	}
	if res.Employees != 1 || res.Failed != 0 {
		t.Fatalf("summary counts: want employees=1 failed=0 got=%+v", res)
	}
	if len(res.Alerts) != 1 || res.Alerts[0].Type != sentiment.AlertTypeSentimentShift {
		t.Fatalf("alerts: want one sentiment_shift got=%+v", res.Alerts)
	}
	if len(fx.notify.alertTo) != 1 || fx.notify.alertTo[0] != fx.manager.ID {
		t.Fatalf("alert recipients: want=[%s] got=%v", fx.manager.ID, fx.notify.alertTo)
	}

	again, err := fx.svc.SummarizeRecent(ctx, fx.now.Add(-24*time.Hour), sentiment.PeriodWeek)
	if err != nil {
		t.Fatalf("second SummarizeRecent: %v", err)
	}
	if len(again.Alerts) != 0 {
		t.Fatalf("cooldown: want no new alerts got=%d", len(again.Alerts))
	}

	trend, err := fx.svc.Summarize(ctx, fx.manager.ID, fx.employee.ID, sentiment.PeriodWeek)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if trend.Direction != sentiment.TrendDeclining {
		t.Fatalf("direction: want=declining got=%s", trend.Direction)
	}
}

type failingAlertAggregate struct{ err error }

func (failingAlertAggregate) Contract() domainagg.Contract {
	return domainagg.SentimentAlertAggregateContract
}

func (a failingAlertAggregate) Raise(context.Context, domainagg.RaiseAlertInput) (domainagg.RaiseAlertResult, error) {
	return domainagg.RaiseAlertResult{}, a.err
}

func (a failingAlertAggregate) Acknowledge(context.Context, domainagg.AcknowledgeAlertInput) (domainagg.AcknowledgeAlertResult, error) {
	return domainagg.AcknowledgeAlertResult{}, a.err
}

func TestSentimentServiceSummarizeRecentFailsBatchOverThreshold(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	fx := newSentimentFixture(t, db)
	log := testutil.Logger(t)

	for _, emp := range []*types.Employee{fx.employee, fx.peer} {
		for i, quality := range []float64{75, 75, 50} {
			at := fx.now.AddDate(0, 0, -7*(2-i)).Add(-time.Minute)
			if err := fx.set.Analyses.Upsert(dbctx.Context{Ctx: ctx}, &sentiment.FeedbackAnalysis{
				FeedbackID:        uuid.New(),
				OrgID:             emp.OrgID,
				EmployeeID:        emp.ID,
				Tone:              sentiment.ToneNeutral,
				SentimentScore:    65,
				QualityScore:      quality,
				BiasIndicators:    sentiment.EncodeStrings(nil),
				Keywords:          sentiment.EncodeStrings(nil),
				FeedbackCreatedAt: at,
				AnalyzedAt:        fx.now,
			}); err != nil {
				t.Fatalf("seed analysis: %v", err)
			}
		}
	}

	storeDown := errors.New("alert store unavailable")
	monitor := insights.New(insights.UsecasesDeps{
		Log:       log,
		Analyses:  fx.set.Analyses,
		Employees: fx.set.Employees,
		Alerts:    failingAlertAggregate{err: storeDown},
	})
	svc := NewSentimentService(SentimentServiceDeps{
		Log:       log,
		Monitor:   monitor,
		Employees: fx.set.Employees,
		Analyses:  fx.set.Analyses,
		Access:    NewAccessPolicy(log, fx.set.Employees),
		Now:       func() time.Time { return fx.now },
	})

	res, err := svc.SummarizeRecent(ctx, fx.now.Add(-24*time.Hour), sentiment.PeriodWeek)
	var batchErr *sentiment.BatchAnalysisError
	if !errors.As(err, &batchErr) {
		t.Fatalf("SummarizeRecent: want BatchAnalysisError got=%v", err)
	}
	if batchErr.Total != 2 || batchErr.Failed != 2 || batchErr.Threshold != monitor.Config().BatchFailureThreshold {
		t.Fatalf("batch error: want total=2 failed=2 threshold=%v got=%+v", monitor.Config().BatchFailureThreshold, batchErr)
	}
	if !errors.Is(err, storeDown) {
		t.Fatalf("first cause: want=%v got=%v", storeDown, batchErr.FirstErr)
	}
	if res == nil || res.Employees != 2 || res.Failed != 2 || len(res.Alerts) != 0 {
		t.Fatalf("partial result: want employees=2 failed=2 alerts=0 got=%+v", res)
	}
}

func TestSentimentServiceRequiresManagerScope(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	fx := newSentimentFixture(t, db)
	fb := testutil.SeedFeedback(t, ctx, db, fx.employee.OrgID, fx.manager.ID, fx.employee.ID, "Solid quarter.", fx.now)

	if _, err := fx.svc.Analyze(ctx, fx.peer.ID, fb.ID); !types.IsInsufficientScope(err) {
		t.Fatalf("peer analyze: want InsufficientScopeError got=%v", err)
	}
	if _, err := fx.svc.Summarize(ctx, fx.employee.ID, fx.employee.ID, ""); !types.IsInsufficientScope(err) {
		t.Fatalf("self summarize: want InsufficientScopeError got=%v", err)
	}
	if _, err := fx.svc.Summarize(ctx, fx.manager.ID, fx.employee.ID, "fortnight"); !types.IsValidation(err) {
		t.Fatalf("unknown period: want ValidationError got=%v", err)
	}
	if _, err := fx.svc.Analyze(ctx, fx.manager.ID, uuid.New()); !types.IsNotFound(err) {
		t.Fatalf("unknown feedback: want NotFoundError got=%v", err)
	}
	if _, err := fx.svc.AnalyzeBatch(ctx, fx.manager.ID, nil); !types.IsValidation(err) {
		t.Fatalf("empty batch: want ValidationError got=%v", err)
	}
}

func TestSentimentServiceAcknowledgeKeepsGateOnWriteFailure(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	fx := newSentimentFixture(t, db)

	raised, err := fx.agg.Raise(ctx, domainagg.RaiseAlertInput{
		OrgID:      fx.employee.OrgID,
		EmployeeID: fx.employee.ID,
		Type:       sentiment.AlertTypeConcerningFeedback,
		Severity:   sentiment.SeverityHigh,
		Message:    "hostile wording",
		Cooldown:   24 * time.Hour,
		At:         fx.now,
	})
	if err != nil {
		t.Fatalf("Raise: %v", err)
	}

	runner := &aggtestutil.InjectedTxRunner{FailBegin: errors.New("connection reset")}
	hooks := &aggtestutil.HooksRecorder{}
	failing := aggregates.NewSentimentAlertAggregate(aggregates.SentimentAlertAggregateDeps{
		Base:   aggregates.BaseDeps{DB: db, Log: testutil.Logger(t), Runner: runner, Hooks: hooks},
		Alerts: fx.set.Alerts,
	})
	gate := &recordingGate{}
	svc := NewSentimentService(SentimentServiceDeps{
		Log:       testutil.Logger(t),
		Employees: fx.set.Employees,
		Feedback:  fx.set.Feedback,
		Alerts:    fx.set.Alerts,
		Analyses:  fx.set.Analyses,
		AlertAgg:  failing,
		Gate:      gate,
		Access:    NewAccessPolicy(testutil.Logger(t), fx.set.Employees),
	})

	if _, err := svc.Acknowledge(ctx, fx.manager.ID, raised.Alert.ID); err == nil {
		t.Fatalf("Acknowledge: expected error from failed transaction")
	}
	if len(gate.released) != 0 {
		t.Fatalf("gate released despite failure: %v", gate.released)
	}
	if runner.BeginCalls != 1 || runner.CommitCalls != 0 {
		t.Fatalf("tx calls: begin=%d commit=%d", runner.BeginCalls, runner.CommitCalls)
	}
	if len(hooks.Operations) != 1 || hooks.Operations[0].Status == "success" {
		t.Fatalf("hook operations: got=%+v", hooks.Operations)
	}

	row, err := fx.set.Alerts.GetByID(dbctx.Context{Ctx: ctx}, raised.Alert.ID)
	if err != nil || row == nil || row.Acknowledged {
		t.Fatalf("alert row after failed ack: row=%+v err=%v", row, err)
	}
}

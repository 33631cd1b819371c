package steps

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/perfinsight-backend/internal/data/aggregates"
	"github.com/yungbote/perfinsight-backend/internal/data/repos"
	"github.com/yungbote/perfinsight-backend/internal/data/repos/testutil"
	"github.com/yungbote/perfinsight-backend/internal/domain/performance"
	"github.com/yungbote/perfinsight-backend/internal/domain/sentiment"
	"github.com/yungbote/perfinsight-backend/internal/platform/dbctx"
)

type analyzeFixture struct {
	set      repos.Set
	deps     AnalyzeDeps
	gate     *fakeGate
	notify   *fakeNotifier
	manager  *performance.Employee
	employee *performance.Employee
}

func newAnalyzeFixture(t *testing.T, db *gorm.DB, cls Classifier) analyzeFixture {
	t.Helper()
	ctx := context.Background()
	log := testutil.Logger(t)
	set := repos.NewSet(db, log)
	orgID := uuid.New()
	manager := testutil.SeedEmployee(t, ctx, db, orgID, nil, performance.RoleManager)
	employee := testutil.SeedEmployee(t, ctx, db, orgID, testutil.PtrUUID(manager.ID), performance.RoleEmployee)
	gate := &fakeGate{}
	notify := &fakeNotifier{}
	return analyzeFixture{
		set: set,
		deps: AnalyzeDeps{
			Log:        log,
			Classifier: cls,
			Feedback:   set.Feedback,
			Analyses:   set.Analyses,
			Employees:  set.Employees,
			Alerts: aggregates.NewSentimentAlertAggregate(aggregates.SentimentAlertAggregateDeps{
				Base:   aggregates.BaseDeps{DB: db, Log: log},
				Alerts: set.Alerts,
			}),
			Gate:   gate,
			Notify: notify,
			Config: DefaultConfig(),
		},
		gate:     gate,
		notify:   notify,
		manager:  manager,
		employee: employee,
	}
}

func TestAnalyzeStoresResultAndRaisesBiasAlert(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	fx := newAnalyzeFixture(t, db, &scriptedClassifier{deflt: neutral(55)})
	now := time.Now().UTC()
	fb := testutil.SeedFeedback(t, ctx, db, fx.employee.OrgID, fx.manager.ID, fx.employee.ID,
		"Ships on time but can be bossy when reviewing pull requests.", now.Add(-time.Hour))

	out, err := Analyze(ctx, fx.deps, AnalyzeInput{FeedbackID: fb.ID, Now: now})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(out.Result.BiasIndicators) != 1 || out.Result.BiasIndicators[0] != "bossy" {
		t.Fatalf("bias indicators: got=%v", out.Result.BiasIndicators)
	}

	row, err := fx.set.Analyses.GetByFeedbackID(dbctx.Context{Ctx: ctx}, fb.ID)
	if err != nil || row == nil {
		t.Fatalf("stored analysis: row=%v err=%v", row, err)
	}
	if row.EmployeeID != fx.employee.ID || row.SentimentScore != 55 {
		t.Fatalf("stored analysis: employee=%s score=%v", row.EmployeeID, row.SentimentScore)
	}

	if len(out.Alerts) != 1 || out.Alerts[0].Type != sentiment.AlertTypeBiasDetected {
		t.Fatalf("alerts: want one bias_detected got=%v", out.Alerts)
	}
	if len(fx.notify.sent) != 1 || fx.notify.sent[0].recipient != fx.manager.ID {
		t.Fatalf("notify: want manager got=%+v", fx.notify.sent)
	}
	if fx.gate.acquired[0] != GateKey(fx.employee.ID, sentiment.AlertTypeBiasDetected) {
		t.Fatalf("gate key: got=%s", fx.gate.acquired[0])
	}
}

func TestAnalyzeDeduplicatesAlertsWithinCooldown(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	fx := newAnalyzeFixture(t, db, &scriptedClassifier{deflt: neutral(55)})
	now := time.Now().UTC()

	texts := []string{
		"Too emotional in planning meetings.",
		"Gets emotional when priorities change.",
		"Became emotional during the incident review.",
	}
	var ids []uuid.UUID
	for i, text := range texts {
		fb := testutil.SeedFeedback(t, ctx, db, fx.employee.OrgID, fx.manager.ID, fx.employee.ID, text, now.Add(time.Duration(-3+i)*time.Hour))
		ids = append(ids, fb.ID)
	}

	first, err := Analyze(ctx, fx.deps, AnalyzeInput{FeedbackID: ids[0], Now: now})
	if err != nil || len(first.Alerts) != 1 {
		t.Fatalf("first: alerts=%d err=%v", len(first.Alerts), err)
	}

	second, err := Analyze(ctx, fx.deps, AnalyzeInput{FeedbackID: ids[1], Now: now.Add(time.Hour)})
	if err != nil || len(second.Alerts) != 0 {
		t.Fatalf("gated: alerts=%d err=%v", len(second.Alerts), err)
	}

	// Without the gate the database still holds the line.
	fx.deps.Gate = nil
	third, err := Analyze(ctx, fx.deps, AnalyzeInput{FeedbackID: ids[2], Now: now.Add(2 * time.Hour)})
	if err != nil || len(third.Alerts) != 0 {
		t.Fatalf("db dedup: alerts=%d err=%v", len(third.Alerts), err)
	}

	stored, err := fx.set.Alerts.ListByEmployee(dbctx.Context{Ctx: ctx}, fx.employee.ID, true)
	if err != nil {
		t.Fatalf("ListByEmployee: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("stored alerts: want=1 got=%d", len(stored))
	}
	if len(fx.notify.sent) != 1 {
		t.Fatalf("notifications: want=1 got=%d", len(fx.notify.sent))
	}
}

func TestAnalyzeMissingFeedback(t *testing.T) {
	db := testutil.DB(t)
	fx := newAnalyzeFixture(t, db, &scriptedClassifier{deflt: neutral(50)})
	_, err := Analyze(context.Background(), fx.deps, AnalyzeInput{FeedbackID: uuid.New()})
	if !performance.IsNotFound(err) {
		t.Fatalf("want NotFoundError got=%v", err)
	}
}

func TestAnalyzeRetriesTransientClassifierFailureOnce(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	cls := &flakyClassifier{errs: []error{statusErr(503)}, cls: neutral(65)}
	fx := newAnalyzeFixture(t, db, cls)
	fx.deps.Config.RetryBackoff = time.Millisecond
	fb := testutil.SeedFeedback(t, ctx, db, fx.employee.OrgID, fx.manager.ID, fx.employee.ID, "Clear design docs.", time.Now().UTC())

	out, err := Analyze(ctx, fx.deps, AnalyzeInput{FeedbackID: fb.ID})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if cls.calls != 2 {
		t.Fatalf("classify calls: want=2 got=%d", cls.calls)
	}
	if out.Result.SentimentScore != 65 {
		t.Fatalf("sentiment: want=65 got=%v", out.Result.SentimentScore)
	}

	cls = &flakyClassifier{errs: []error{statusErr(503), statusErr(502)}, cls: neutral(65)}
	fx.deps.Classifier = cls
	if _, err := Analyze(ctx, fx.deps, AnalyzeInput{FeedbackID: fb.ID}); err == nil {
		t.Fatalf("two transient failures: want error")
	}
	if cls.calls != 2 {
		t.Fatalf("classify calls after exhausting retry: want=2 got=%d", cls.calls)
	}

	cls = &flakyClassifier{errs: []error{statusErr(400)}, cls: neutral(65)}
	fx.deps.Classifier = cls
	if _, err := Analyze(ctx, fx.deps, AnalyzeInput{FeedbackID: fb.ID}); err == nil {
		t.Fatalf("client error: want error")
	}
	if cls.calls != 1 {
		t.Fatalf("classify calls on 400: want=1 got=%d", cls.calls)
	}
}

func TestAnalyzeBatchFailureThreshold(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	cls := &scriptedClassifier{deflt: neutral(70), failing: map[string]bool{"[fail]": true}}
	fx := newAnalyzeFixture(t, db, cls)
	fx.deps.Alerts = nil
	now := time.Now().UTC()

	seed := func(texts ...string) []uuid.UUID {
		var ids []uuid.UUID
		for _, text := range texts {
			ids = append(ids, testutil.SeedFeedback(t, ctx, db, fx.employee.OrgID, fx.manager.ID, fx.employee.ID, text, now).ID)
		}
		return ids
	}

	half := seed("solid design doc", "[fail] unreadable")
	out, err := AnalyzeBatch(ctx, fx.deps, half, now)
	if err != nil {
		t.Fatalf("at threshold: want no error got=%v", err)
	}
	if len(out.Results) != 1 || len(out.Failed) != 1 || out.Failed[0] != half[1] {
		t.Fatalf("at threshold: results=%d failed=%v", len(out.Results), out.Failed)
	}

	most := seed("great mentoring", "[fail] a", "[fail] b")
	out, err = AnalyzeBatch(ctx, fx.deps, append(most, most[0]), now)
	var batchErr *sentiment.BatchAnalysisError
	if !errors.As(err, &batchErr) {
		t.Fatalf("over threshold: want BatchAnalysisError got=%v", err)
	}
	if batchErr.Total != 3 || batchErr.Failed != 2 {
		t.Fatalf("batch error: total=%d failed=%d", batchErr.Total, batchErr.Failed)
	}
	if len(out.Results) != 1 {
		t.Fatalf("partial results: want=1 got=%d", len(out.Results))
	}
}

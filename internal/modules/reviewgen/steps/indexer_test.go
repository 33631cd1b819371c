package steps

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/perfinsight-backend/internal/data/repos"
	"github.com/yungbote/perfinsight-backend/internal/data/repos/testutil"
	types "github.com/yungbote/perfinsight-backend/internal/domain/performance"
	"github.com/yungbote/perfinsight-backend/internal/platform/dbctx"
)

func TestIndexEmployeeEvidenceUpsertsWithMetadata(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	orgID := uuid.New()
	manager := testutil.SeedEmployee(t, ctx, db, orgID, nil, types.RoleManager)
	emp := testutil.SeedEmployee(t, ctx, db, orgID, &manager.ID, types.RoleEmployee)
	fb := testutil.SeedFeedback(t, ctx, db, orgID, manager.ID, emp.ID, "Owned the migration end to end.", now.AddDate(0, -1, 0))
	okr := testutil.SeedOkr(t, ctx, db, orgID, emp.ID, "Cut build times", now.AddDate(0, -3, 0), now.AddDate(0, 3, 0))

	set := repos.NewSet(db, testutil.Logger(t))
	vec := &fakeVectorStore{}
	cfg := DefaultConfig()
	cfg.Retrieval.IndexBatchSize = 1

	out, err := IndexEmployeeEvidence(ctx, IndexDeps{
		Log:       testutil.Logger(t),
		AI:        &fakeEmbedder{},
		Vec:       vec,
		Employees: set.Employees,
		Okrs:      set.Okrs,
		Feedback:  set.Feedback,
		Reviews:   set.Reviews,
		Cycles:    set.ReviewCycles,
		Config:    cfg,
	}, IndexInput{EmployeeID: emp.ID, Now: now})
	if err != nil {
		t.Fatalf("IndexEmployeeEvidence: %v", err)
	}
	if out.Upserted != 2 || out.BySource[types.SourceTypeFeedback] != 1 || out.BySource[types.SourceTypeOkr] != 1 {
		t.Fatalf("output: got=%+v", out)
	}
	if vec.lastNS != orgID.String() {
		t.Fatalf("namespace: want=%s got=%s", orgID, vec.lastNS)
	}
	v, ok := vec.upserted["feedback:"+fb.ID.String()]
	if !ok {
		t.Fatalf("feedback vector missing: %v", vec.upserted)
	}
	for key, want := range map[string]string{
		"org_id":      orgID.String(),
		"employee_id": emp.ID.String(),
		"source_type": types.SourceTypeFeedback,
		"source_id":   fb.ID.String(),
		"text":        fb.Text,
	} {
		if v.Metadata[key] != want {
			t.Fatalf("metadata %s: want=%q got=%v", key, want, v.Metadata[key])
		}
	}
	if _, ok := vec.upserted["okr:"+okr.ID.String()]; !ok {
		t.Fatalf("okr vector missing")
	}
}

func TestIndexEmployeeEvidencePrunesVectorsOfDeletedSources(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	orgID := uuid.New()
	manager := testutil.SeedEmployee(t, ctx, db, orgID, nil, types.RoleManager)
	emp := testutil.SeedEmployee(t, ctx, db, orgID, &manager.ID, types.RoleEmployee)
	fb := testutil.SeedFeedback(t, ctx, db, orgID, manager.ID, emp.ID, "Great incident write-up.", now.AddDate(0, -1, 0))
	okr := testutil.SeedOkr(t, ctx, db, orgID, emp.ID, "Reduce pager load", now.AddDate(0, -3, 0), now.AddDate(0, 3, 0))

	set := repos.NewSet(db, testutil.Logger(t))
	vec := &fakeVectorStore{}
	deps := IndexDeps{
		Log:       testutil.Logger(t),
		AI:        &fakeEmbedder{},
		Vec:       vec,
		Employees: set.Employees,
		Okrs:      set.Okrs,
		Feedback:  set.Feedback,
		Reviews:   set.Reviews,
		Cycles:    set.ReviewCycles,
		Indexed:   set.Indexed,
		Config:    DefaultConfig(),
	}

	first, err := IndexEmployeeEvidence(ctx, deps, IndexInput{EmployeeID: emp.ID, Now: now})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Upserted != 2 || first.Deleted != 0 {
		t.Fatalf("first run: got=%+v", first)
	}
	ledger, err := set.Indexed.ListByEmployee(dbctx.Context{Ctx: ctx}, emp.ID)
	if err != nil || len(ledger) != 2 {
		t.Fatalf("ledger after first run: want=2 got=%d err=%v", len(ledger), err)
	}

	if err := db.WithContext(ctx).Where("id = ?", fb.ID).Delete(&types.Feedback{}).Error; err != nil {
		t.Fatalf("delete feedback: %v", err)
	}
	second, err := IndexEmployeeEvidence(ctx, deps, IndexInput{EmployeeID: emp.ID, Now: now})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Upserted != 1 || second.Deleted != 1 {
		t.Fatalf("second run: got=%+v", second)
	}
	if len(vec.deleted) != 1 || vec.deleted[0] != "feedback:"+fb.ID.String() {
		t.Fatalf("deleted vectors: got=%v", vec.deleted)
	}
	if _, ok := vec.upserted["okr:"+okr.ID.String()]; !ok {
		t.Fatalf("okr vector should remain")
	}
	ledger, err = set.Indexed.ListByEmployee(dbctx.Context{Ctx: ctx}, emp.ID)
	if err != nil || len(ledger) != 1 || ledger[0].SourceID != okr.ID {
		t.Fatalf("ledger after prune: got=%+v err=%v", ledger, err)
	}

	vec.deleteErr = errors.New("index unavailable")
	if err := db.WithContext(ctx).Where("id = ?", okr.ID).Delete(&types.Okr{}).Error; err != nil {
		t.Fatalf("delete okr: %v", err)
	}
	if _, err := IndexEmployeeEvidence(ctx, deps, IndexInput{EmployeeID: emp.ID, Now: now}); err == nil {
		t.Fatalf("failed delete: want error")
	}
	ledger, _ = set.Indexed.ListByEmployee(dbctx.Context{Ctx: ctx}, emp.ID)
	if len(ledger) != 1 {
		t.Fatalf("failed delete must keep ledger row, got=%d", len(ledger))
	}
}

func TestIndexEmployeeEvidenceUnknownEmployee(t *testing.T) {
	db := testutil.DB(t)
	set := repos.NewSet(db, testutil.Logger(t))
	_, err := IndexEmployeeEvidence(context.Background(), IndexDeps{
		AI:        &fakeEmbedder{},
		Vec:       &fakeVectorStore{},
		Employees: set.Employees,
	}, IndexInput{EmployeeID: uuid.New()})
	if !types.IsNotFound(err) {
		t.Fatalf("want NotFoundError, got=%v", err)
	}
}

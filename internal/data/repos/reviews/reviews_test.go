package reviews

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/perfinsight-backend/internal/data/repos/testutil"
	types "github.com/yungbote/perfinsight-backend/internal/domain/performance"
	"github.com/yungbote/perfinsight-backend/internal/platform/dbctx"
)

func TestReviewRepoPriorReviews(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewReviewRepo(db, testutil.Logger(t))

	orgID := uuid.New()
	emp := testutil.SeedEmployee(t, ctx, tx, orgID, nil, types.RoleEmployee)
	mgr := testutil.SeedEmployee(t, ctx, tx, orgID, nil, types.RoleManager)

	approved := testutil.SeedReview(t, ctx, tx, orgID, emp.ID, mgr.ID, types.ReviewStatusApproved)
	draft := testutil.SeedReview(t, ctx, tx, orgID, emp.ID, mgr.ID, types.ReviewStatusDraft)
	current := testutil.SeedReview(t, ctx, tx, orgID, emp.ID, mgr.ID, types.ReviewStatusSubmitted)

	now := time.Now().UTC()
	window := types.Window{Start: now.AddDate(0, -1, 0), End: now.Add(time.Hour)}
	got, err := repo.ListPriorForEmployee(dbc, emp.ID, window, &current.ID)
	if err != nil {
		t.Fatalf("ListPriorForEmployee: %v", err)
	}
	if len(got) != 1 || got[0].ID != approved.ID {
		t.Fatalf("ListPriorForEmployee: want only approved review, got=%+v", got)
	}

	loaded, err := repo.GetByID(dbc, draft.ID)
	if err != nil || loaded == nil {
		t.Fatalf("GetByID: got=%v err=%v", loaded, err)
	}
	if loaded.Version != 0 || loaded.Status != types.ReviewStatusDraft {
		t.Fatalf("GetByID: unexpected review: %+v", loaded)
	}

	all, err := repo.ListByEmployee(dbc, emp.ID, 2)
	if err != nil {
		t.Fatalf("ListByEmployee: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("ListByEmployee limit: want=2 got=%d", len(all))
	}
}

func TestReviewEditAndRunRepos(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	log := testutil.Logger(t)

	orgID := uuid.New()
	emp := testutil.SeedEmployee(t, ctx, tx, orgID, nil, types.RoleEmployee)
	mgr := testutil.SeedEmployee(t, ctx, tx, orgID, nil, types.RoleManager)
	review := testutil.SeedReview(t, ctx, tx, orgID, emp.ID, mgr.ID, types.ReviewStatusAIGenerated)

	edits := NewReviewEditRepo(db, log)
	now := time.Now().UTC()
	if _, err := edits.Create(dbc, []*types.ReviewEdit{
		{ReviewID: review.ID, EditorID: mgr.ID, Fields: types.EncodeStringList([]string{"strengths"}), VersionAfter: 3, CreatedAt: now},
		{ReviewID: review.ID, EditorID: mgr.ID, Fields: types.EncodeStringList([]string{"achievements"}), VersionAfter: 2, CreatedAt: now},
	}); err != nil {
		t.Fatalf("Create edits: %v", err)
	}
	got, err := edits.ListByReview(dbc, review.ID)
	if err != nil {
		t.Fatalf("ListByReview: %v", err)
	}
	if len(got) != 2 || got[0].VersionAfter != 2 || got[1].VersionAfter != 3 {
		t.Fatalf("ListByReview: want ascending versions, got=%+v", got)
	}

	runs := NewGenerationRunRepo(db, log)
	if _, err := runs.Create(dbc, &types.ReviewGenerationRun{
		OrgID:      orgID,
		EmployeeID: emp.ID,
		ActorID:    mgr.ID,
		ReviewID:   &review.ID,
		Outcome:    types.RunOutcomeSucceeded,
		CreatedAt:  now,
	}); err != nil {
		t.Fatalf("Create run: %v", err)
	}
	listed, err := runs.ListByEmployee(dbc, emp.ID, 10)
	if err != nil {
		t.Fatalf("ListByEmployee: %v", err)
	}
	if len(listed) != 1 || listed[0].Outcome != types.RunOutcomeSucceeded {
		t.Fatalf("ListByEmployee: unexpected runs: %+v", listed)
	}
}

func TestIndexedEvidenceRepoUpsertAndDelete(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewIndexedEvidenceRepo(db, testutil.Logger(t))

	orgID, empID := uuid.New(), uuid.New()
	fbID, okrID := uuid.New(), uuid.New()
	first := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	rows := []*types.IndexedEvidence{
		{OrgID: orgID, EmployeeID: empID, VectorID: "feedback:" + fbID.String(), SourceType: types.SourceTypeFeedback, SourceID: fbID, IndexedAt: first},
		{OrgID: orgID, EmployeeID: empID, VectorID: "okr:" + okrID.String(), SourceType: types.SourceTypeOkr, SourceID: okrID, IndexedAt: first},
	}
	if err := repo.Upsert(dbc, rows); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	later := first.Add(30 * time.Minute)
	if err := repo.Upsert(dbc, []*types.IndexedEvidence{
		{OrgID: orgID, EmployeeID: empID, VectorID: "okr:" + okrID.String(), SourceType: types.SourceTypeOkr, SourceID: okrID, IndexedAt: later},
	}); err != nil {
		t.Fatalf("re-Upsert: %v", err)
	}
	got, err := repo.ListByEmployee(dbc, empID)
	if err != nil {
		t.Fatalf("ListByEmployee: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("rows: want=2 got=%d", len(got))
	}
	if got[1].VectorID != "okr:"+okrID.String() || !got[1].IndexedAt.Equal(later) {
		t.Fatalf("okr row: want indexed_at=%s got=%+v", later, got[1])
	}

	if err := repo.DeleteByVectorIDs(dbc, empID, []string{"feedback:" + fbID.String()}); err != nil {
		t.Fatalf("DeleteByVectorIDs: %v", err)
	}
	got, err = repo.ListByEmployee(dbc, empID)
	if err != nil || len(got) != 1 || got[0].SourceID != okrID {
		t.Fatalf("after delete: got=%+v err=%v", got, err)
	}
}

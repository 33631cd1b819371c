package steps

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/perfinsight-backend/internal/data/repos"
	types "github.com/yungbote/perfinsight-backend/internal/domain/performance"
	"github.com/yungbote/perfinsight-backend/internal/platform/dbctx"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
	pc "github.com/yungbote/perfinsight-backend/internal/platform/pinecone"
)

type IndexDeps struct {
	Log *logger.Logger
	AI  Embedder
	Vec pc.VectorStore

	Employees repos.EmployeeRepo
	Okrs      repos.OkrRepo
	Feedback  repos.FeedbackRepo
	Reviews   repos.ReviewRepo
	Cycles    repos.ReviewCycleRepo
	// Indexed is optional; without it stale vectors are never pruned.
	Indexed repos.IndexedEvidenceRepo

	Config Config
}

type IndexInput struct {
	EmployeeID uuid.UUID
	Window     *types.Window
	Now        time.Time
}

type IndexOutput struct {
	Upserted int            `json:"upserted"`
	Deleted  int            `json:"deleted"`
	BySource map[string]int `json:"by_source"`
}

type indexDoc struct {
	vectorID   string
	sourceType string
	sourceID   string
	createdAt  time.Time
	text       string
}

// IndexEmployeeEvidence embeds and upserts the employee's feedback, OKRs and prior reviews so later
// generations can retrieve them. Vector ids are "<source_type>:<source_id>", so reindexing overwrites.
// Vectors recorded by an earlier run whose source is gone or outside the window are deleted.
func IndexEmployeeEvidence(ctx context.Context, deps IndexDeps, in IndexInput) (IndexOutput, error) {
	out := IndexOutput{BySource: map[string]int{}}
	if deps.AI == nil || deps.Vec == nil || deps.Employees == nil {
		return out, fmt.Errorf("index evidence: missing deps")
	}
	if in.EmployeeID == uuid.Nil {
		return out, &types.ValidationError{Field: "employee_id", Message: "required"}
	}
	cfg := deps.Config.WithDefaults()

	dbc := dbctx.Context{Ctx: ctx}
	emp, err := deps.Employees.GetByID(dbc, in.EmployeeID)
	if err != nil {
		return out, fmt.Errorf("index evidence: load employee: %w", err)
	}
	if emp == nil {
		return out, &types.NotFoundError{Kind: "employee", ID: in.EmployeeID}
	}
	now := in.Now.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}
	window, err := ResolveWindow(dbc, AggregateDeps{Cycles: deps.Cycles, Config: cfg}, emp.OrgID, in.Window, now)
	if err != nil {
		return out, err
	}

	docs, err := collectIndexDocs(dbc, deps, emp.ID, window)
	if err != nil {
		return out, err
	}

	batches := chunkDocs(docs, cfg.Retrieval.IndexBatchSize)
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Retrieval.IndexWorkers)
	for _, batch := range batches {
		batch := batch
		g.Go(func() error {
			texts := make([]string, 0, len(batch))
			for _, d := range batch {
				texts = append(texts, d.text)
			}
			callCtx, cancel := context.WithTimeout(gctx, cfg.Timeouts.Embed)
			defer cancel()
			embs, err := deps.AI.Embed(callCtx, texts)
			if err != nil {
				return fmt.Errorf("index evidence: embed: %w", err)
			}
			if len(embs) != len(batch) {
				return fmt.Errorf("index evidence: embed returned %d vectors for %d inputs", len(embs), len(batch))
			}
			vectors := make([]pc.Vector, 0, len(batch))
			for i, d := range batch {
				vectors = append(vectors, pc.Vector{
					ID:     d.vectorID,
					Values: embs[i],
					Metadata: map[string]any{
						"org_id":      emp.OrgID.String(),
						"employee_id": emp.ID.String(),
						"source_type": d.sourceType,
						"source_id":   d.sourceID,
						"created_at":  d.createdAt.UTC().Format(time.RFC3339),
						"text":        d.text,
					},
				})
			}
			if err := deps.Vec.Upsert(callCtx, Namespace(emp.OrgID), vectors); err != nil {
				return fmt.Errorf("index evidence: upsert: %w", err)
			}
			mu.Lock()
			out.Upserted += len(vectors)
			for _, d := range batch {
				out.BySource[d.sourceType]++
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}

	if deps.Indexed != nil {
		deleted, err := pruneStaleVectors(ctx, deps, emp.OrgID, emp.ID, docs, cfg)
		if err != nil {
			return out, err
		}
		out.Deleted = deleted
		if err := recordIndexed(dbc, deps.Indexed, emp.OrgID, emp.ID, docs, now); err != nil {
			return out, err
		}
	}
	if deps.Log != nil {
		deps.Log.Info("employee evidence indexed", "employee_id", emp.ID, "upserted", out.Upserted, "deleted", out.Deleted)
	}
	return out, nil
}

// pruneStaleVectors deletes vectors recorded for the employee that the current run did not produce.
// The ledger rows go only after the vector store confirmed the delete.
func pruneStaleVectors(ctx context.Context, deps IndexDeps, orgID, employeeID uuid.UUID, docs []indexDoc, cfg Config) (int, error) {
	dbc := dbctx.Context{Ctx: ctx}
	prior, err := deps.Indexed.ListByEmployee(dbc, employeeID)
	if err != nil {
		return 0, fmt.Errorf("index evidence: list indexed: %w", err)
	}
	current := make(map[string]bool, len(docs))
	for _, d := range docs {
		current[d.vectorID] = true
	}
	var stale []string
	for _, row := range prior {
		if row != nil && !current[row.VectorID] {
			stale = append(stale, row.VectorID)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	callCtx, cancel := context.WithTimeout(ctx, cfg.Timeouts.Embed)
	defer cancel()
	if err := deps.Vec.DeleteIDs(callCtx, Namespace(orgID), stale); err != nil {
		return 0, fmt.Errorf("index evidence: delete stale: %w", err)
	}
	if err := deps.Indexed.DeleteByVectorIDs(dbc, employeeID, stale); err != nil {
		return 0, fmt.Errorf("index evidence: forget stale: %w", err)
	}
	return len(stale), nil
}

func recordIndexed(dbc dbctx.Context, repo repos.IndexedEvidenceRepo, orgID, employeeID uuid.UUID, docs []indexDoc, at time.Time) error {
	rows := make([]*types.IndexedEvidence, 0, len(docs))
	for _, d := range docs {
		sourceID, err := uuid.Parse(d.sourceID)
		if err != nil {
			continue
		}
		rows = append(rows, &types.IndexedEvidence{
			OrgID:      orgID,
			EmployeeID: employeeID,
			VectorID:   d.vectorID,
			SourceType: d.sourceType,
			SourceID:   sourceID,
			IndexedAt:  at,
		})
	}
	if err := repo.Upsert(dbc, rows); err != nil {
		return fmt.Errorf("index evidence: record indexed: %w", err)
	}
	return nil
}

func collectIndexDocs(dbc dbctx.Context, deps IndexDeps, employeeID uuid.UUID, window types.Window) ([]indexDoc, error) {
	var docs []indexDoc
	if deps.Feedback != nil {
		items, err := deps.Feedback.ListForReceiver(dbc, employeeID, window)
		if err != nil {
			return nil, fmt.Errorf("index evidence: feedback: %w", err)
		}
		for _, f := range items {
			if f == nil || strings.TrimSpace(f.Text) == "" {
				continue
			}
			docs = append(docs, newIndexDoc(types.SourceTypeFeedback, f.ID, f.CreatedAt, f.Text))
		}
	}
	if deps.Okrs != nil {
		okrs, err := deps.Okrs.ListForEmployee(dbc, employeeID, window)
		if err != nil {
			return nil, fmt.Errorf("index evidence: okrs: %w", err)
		}
		for _, o := range okrs {
			if o == nil {
				continue
			}
			text := strings.TrimSpace(o.Objective)
			if kr := strings.TrimSpace(o.KeyResults); kr != "" {
				text += "\nKey results: " + kr
			}
			if text == "" {
				continue
			}
			docs = append(docs, newIndexDoc(types.SourceTypeOkr, o.ID, o.UpdatedAt, text))
		}
	}
	if deps.Reviews != nil {
		prior, err := deps.Reviews.ListPriorForEmployee(dbc, employeeID, window, nil)
		if err != nil {
			return nil, fmt.Errorf("index evidence: reviews: %w", err)
		}
		for _, r := range prior {
			if r == nil {
				continue
			}
			text := reviewDigest(r)
			if text == "" {
				continue
			}
			docs = append(docs, newIndexDoc(types.SourceTypeReview, r.ID, r.PeriodEnd, text))
		}
	}
	return docs, nil
}

func newIndexDoc(sourceType string, id uuid.UUID, at time.Time, text string) indexDoc {
	return indexDoc{
		vectorID:   sourceType + ":" + id.String(),
		sourceType: sourceType,
		sourceID:   id.String(),
		createdAt:  at,
		text:       truncate(text, 4000),
	}
}

func chunkDocs(docs []indexDoc, size int) [][]indexDoc {
	if size <= 0 {
		size = len(docs)
	}
	var out [][]indexDoc
	for start := 0; start < len(docs); start += size {
		end := start + size
		if end > len(docs) {
			end = len(docs)
		}
		out = append(out, docs[start:end])
	}
	return out
}

package steps

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	types "github.com/yungbote/perfinsight-backend/internal/domain/performance"
	"github.com/yungbote/perfinsight-backend/internal/platform/httpx"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
	pc "github.com/yungbote/perfinsight-backend/internal/platform/pinecone"
)

// Embedder is the slice of the model client the retriever and indexer need.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

type RetrieveDeps struct {
	Log    *logger.Logger
	AI     Embedder
	Vec    pc.VectorStore
	Config Config
}

type RetrieveInput struct {
	Query      string
	OrgID      uuid.UUID
	EmployeeID uuid.UUID
	TopK       int
}

// RetrieveContext never fails: any embedding or index error yields an empty, degraded context.
func RetrieveContext(ctx context.Context, deps RetrieveDeps, in RetrieveInput) types.RetrievedContext {
	cfg := deps.Config.WithDefaults()
	degraded := types.RetrievedContext{Entries: []types.ContextEntry{}, Degraded: true}
	query := strings.TrimSpace(in.Query)
	if deps.AI == nil || deps.Vec == nil || in.OrgID == uuid.Nil || query == "" {
		if deps.Log != nil {
			deps.Log.Warn("retrieval unavailable; continuing without context", "org_id", in.OrgID)
		}
		return degraded
	}
	topK := in.TopK
	if topK <= 0 {
		topK = cfg.Retrieval.TopK
	}

	callCtx, cancel := context.WithTimeout(ctx, cfg.Timeouts.Embed)
	defer cancel()

	var qEmb []float32
	err := httpx.RetryOnce(callCtx, cfg.Retrieval.RetryBackoff, func(ctx context.Context) error {
		embs, err := deps.AI.Embed(ctx, []string{query})
		if err != nil {
			return err
		}
		if len(embs) == 0 || len(embs[0]) == 0 {
			return fmt.Errorf("empty query embedding")
		}
		qEmb = embs[0]
		return nil
	})
	if err != nil {
		if deps.Log != nil {
			deps.Log.Warn("query embedding failed; retrieval degraded", "error", err)
		}
		return degraded
	}

	filter := map[string]any{"org_id": map[string]any{"$eq": in.OrgID.String()}}
	if cfg.Retrieval.ScopeToEmployee && in.EmployeeID != uuid.Nil {
		filter["employee_id"] = map[string]any{"$eq": in.EmployeeID.String()}
	}

	var matches []pc.VectorMatch
	err = httpx.RetryOnce(callCtx, cfg.Retrieval.RetryBackoff, func(ctx context.Context) error {
		m, err := deps.Vec.QueryMatches(ctx, Namespace(in.OrgID), qEmb, topK, filter)
		if err != nil {
			return err
		}
		matches = m
		return nil
	})
	if err != nil {
		if deps.Log != nil {
			deps.Log.Warn("vector search failed; retrieval degraded", "error", err)
		}
		return degraded
	}

	return types.RetrievedContext{
		Entries:  rankMatches(matches, cfg.Retrieval.MinSimilarity, topK),
		Degraded: false,
	}
}

// rankMatches drops matches under minSim, orders by similarity then recency, and caps at topK.
func rankMatches(matches []pc.VectorMatch, minSim float64, topK int) []types.ContextEntry {
	out := make([]types.ContextEntry, 0, len(matches))
	for _, m := range matches {
		if m.Score < minSim {
			continue
		}
		entry := types.ContextEntry{
			SourceID:   metaString(m.Metadata, "source_id"),
			SourceType: metaString(m.Metadata, "source_type"),
			Text:       metaString(m.Metadata, "text"),
			Similarity: m.Score,
			Confidence: clamp01((m.Score - minSim) / (1 - minSim)),
		}
		if entry.SourceID == "" {
			entry.SourceID = m.ID
		}
		if raw := metaString(m.Metadata, "created_at"); raw != "" {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				entry.CreatedAt = t.UTC()
			}
		}
		out = append(out, entry)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

// BuildQuery renders the retrieval query from the employee's title, focus areas and a short digest of
// the bundle.
func BuildQuery(bundle types.EvidenceBundle, focusAreas []string) string {
	var b strings.Builder
	b.WriteString("Performance evidence for ")
	if strings.TrimSpace(bundle.Title) != "" {
		b.WriteString("a " + strings.TrimSpace(bundle.Title))
	} else {
		b.WriteString("an employee")
	}
	areas := focusAreas
	if len(areas) == 0 {
		areas = bundle.FocusAreas
	}
	if len(areas) > 0 {
		b.WriteString(" focusing on " + strings.Join(areas, ", "))
	}
	b.WriteString(".")
	for i, o := range bundle.Okrs {
		if i >= 3 {
			break
		}
		b.WriteString("\nObjective: " + truncate(o.Objective, 160))
	}
	for i, f := range bundle.FeedbackItems {
		if i >= 3 {
			break
		}
		b.WriteString("\nFeedback: " + truncate(f.Text, 200))
	}
	return strings.TrimSpace(b.String())
}

// Namespace is the vector namespace for an organization's evidence.
func Namespace(orgID uuid.UUID) string {
	return orgID.String()
}

func metaString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	v, ok := meta[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := s[:n]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return strings.TrimSpace(cut) + "..."
}

package steps

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/perfinsight-backend/internal/domain/performance"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
	"github.com/yungbote/perfinsight-backend/internal/platform/openai"
	pc "github.com/yungbote/perfinsight-backend/internal/platform/pinecone"
)

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	errs  []error
}

func (f *fakeEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type fakeVectorStore struct {
	mu         sync.Mutex
	matches    []pc.VectorMatch
	queryErrs  []error
	queries    int
	lastNS     string
	lastFilter map[string]any
	upserted   map[string]pc.Vector
	deleted    []string
	deleteErr  error
}

func (f *fakeVectorStore) Upsert(ctx context.Context, namespace string, vectors []pc.Vector) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upserted == nil {
		f.upserted = map[string]pc.Vector{}
	}
	f.lastNS = namespace
	for _, v := range vectors {
		f.upserted[v.ID] = v
	}
	return nil
}

func (f *fakeVectorStore) QueryMatches(ctx context.Context, namespace string, q []float32, topK int, filter map[string]any) ([]pc.VectorMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	f.lastNS = namespace
	f.lastFilter = filter
	if len(f.queryErrs) > 0 {
		err := f.queryErrs[0]
		f.queryErrs = f.queryErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return append([]pc.VectorMatch(nil), f.matches...), nil
}

func (f *fakeVectorStore) DeleteIDs(ctx context.Context, namespace string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, ids...)
	for _, id := range ids {
		delete(f.upserted, id)
	}
	return nil
}

type fakeCompleter struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []openai.CompletionRequest
}

func (f *fakeCompleter) Complete(ctx context.Context, req openai.CompletionRequest) (openai.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return openai.Completion{}, f.err
	}
	if len(f.replies) == 0 {
		return openai.Completion{}, nil
	}
	text := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return openai.Completion{Text: text, InputTokens: 100, OutputTokens: 50}, nil
}

// statusErr is a provider error carrying an HTTP status.
type statusErr int

func (e statusErr) Error() string       { return "provider status" }
func (e statusErr) HTTPStatusCode() int { return int(e) }

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func yearWindow(end time.Time) types.Window {
	return types.Window{Start: end.AddDate(-1, 0, 0), End: end}
}

func bundleWith(window types.Window, okrs, feedback, reviews int, at time.Time) types.EvidenceBundle {
	b := types.EvidenceBundle{
		OrgID:        uuid.New(),
		EmployeeID:   uuid.New(),
		EmployeeName: "Dana Reyes",
		Title:        "Software Engineer",
		FocusAreas:   []string{"reliability"},
		Window:       window,
	}
	for i := 0; i < okrs; i++ {
		b.Okrs = append(b.Okrs, types.OkrSummary{ID: uuid.New(), Objective: "Reduce p99 latency", Progress: 80, Status: "active", Owned: true, Timestamp: at})
	}
	for i := 0; i < feedback; i++ {
		b.FeedbackItems = append(b.FeedbackItems, types.FeedbackSummary{ID: uuid.New(), GiverID: uuid.New(), Text: "Led the incident review calmly.", Timestamp: at})
	}
	for i := 0; i < reviews; i++ {
		b.PriorReviews = append(b.PriorReviews, types.ReviewSummary{ID: uuid.New(), ReviewType: types.ReviewTypeAnnual, Status: types.ReviewStatusApproved, Text: "strengths: steady", Timestamp: at})
	}
	return b
}

package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"

	types "github.com/yungbote/perfinsight-backend/internal/domain/performance"
	"github.com/yungbote/perfinsight-backend/internal/domain/sentiment"
	"github.com/yungbote/perfinsight-backend/internal/platform/openai"
)

// fakeAI scripts Complete replies in order; the last one repeats. With block set, Complete waits for
// the context to end.
type fakeAI struct {
	mu      sync.Mutex
	replies []string
	block   bool
	calls   int
}

func (f *fakeAI) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (f *fakeAI) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	return map[string]any{}, nil
}

func (f *fakeAI) GenerateText(ctx context.Context, system, user string) (string, error) {
	return "", nil
}

func (f *fakeAI) Complete(ctx context.Context, req openai.CompletionRequest) (openai.Completion, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	var text string
	if len(f.replies) > 0 {
		text = f.replies[0]
		if len(f.replies) > 1 {
			f.replies = f.replies[1:]
		}
	}
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return openai.Completion{}, ctx.Err()
	}
	return openai.Completion{Text: text, InputTokens: 100, OutputTokens: 50}, nil
}

func (f *fakeAI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func validDraft(t *testing.T) string {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		types.FieldStrengths:           "Keeps the on-call rotation calm and well documented.",
		types.FieldAreasForImprovement: "Could share design trade-offs earlier.",
		types.FieldAchievements:        "Led the billing migration to completion.",
		types.FieldGoalsForNextPeriod:  "Mentor one new engineer through a launch.",
		"citations":                    map[string][]string{},
		"certainty":                    0.7,
	})
	if err != nil {
		t.Fatalf("marshal draft: %v", err)
	}
	return string(raw)
}

type statusEvent struct {
	recipient uuid.UUID
	reviewID  uuid.UUID
	from, to  string
}

type recordingNotifier struct {
	mu      sync.Mutex
	status  []statusEvent
	alerts  []*sentiment.SentimentAlert
	alertTo []uuid.UUID
}

func (n *recordingNotifier) AlertRaised(ctx context.Context, recipientID uuid.UUID, alert *sentiment.SentimentAlert) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
	n.alertTo = append(n.alertTo, recipientID)
}

func (n *recordingNotifier) ReviewStatusChanged(ctx context.Context, recipientID uuid.UUID, review *types.PerformanceReview, from, to string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = append(n.status, statusEvent{recipient: recipientID, reviewID: review.ID, from: from, to: to})
}

func (n *recordingNotifier) lastStatus() statusEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.status) == 0 {
		return statusEvent{}
	}
	return n.status[len(n.status)-1]
}

type recordingPublisher struct {
	mu       sync.Mutex
	channels []string
	payloads []any
	err      error
}

func (p *recordingPublisher) Publish(ctx context.Context, channel string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels = append(p.channels, channel)
	p.payloads = append(p.payloads, payload)
	return p.err
}

type recordingGate struct {
	mu       sync.Mutex
	released []string
}

func (g *recordingGate) ReleaseGate(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.released = append(g.released, key)
	return nil
}

package steps

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/perfinsight-backend/internal/domain/sentiment"
)

// scriptedClassifier answers by the first matching substring of the feedback text.
type scriptedClassifier struct {
	mu      sync.Mutex
	calls   int
	byText  map[string]Classification
	failing map[string]bool
	deflt   Classification
}

func (c *scriptedClassifier) Classify(ctx context.Context, text string) (Classification, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	for needle := range c.failing {
		if strings.Contains(text, needle) {
			return Classification{}, fmt.Errorf("provider unavailable")
		}
	}
	for needle, cls := range c.byText {
		if strings.Contains(text, needle) {
			return cls, nil
		}
	}
	return c.deflt, nil
}

type fakeGate struct {
	mu       sync.Mutex
	held     map[string]bool
	acquired []string
	released []string
}

func (g *fakeGate) AcquireGate(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held == nil {
		g.held = map[string]bool{}
	}
	if g.held[key] {
		return false, nil
	}
	g.held[key] = true
	g.acquired = append(g.acquired, key)
	return true, nil
}

func (g *fakeGate) ReleaseGate(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, key)
	g.released = append(g.released, key)
	return nil
}

type recordedAlert struct {
	recipient uuid.UUID
	alert     *sentiment.SentimentAlert
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []recordedAlert
}

func (n *fakeNotifier) AlertRaised(ctx context.Context, recipientID uuid.UUID, alert *sentiment.SentimentAlert) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, recordedAlert{recipient: recipientID, alert: alert})
}

func neutral(score float64) Classification {
	return Classification{
		Tone:           sentiment.ToneNeutral,
		SentimentScore: score,
		QualityScore:   70,
		Specificity:    60,
		Actionability:  60,
		Keywords:       []string{"delivery"},
	}
}

// statusErr is a provider error carrying an HTTP status.
type statusErr int

func (e statusErr) Error() string       { return fmt.Sprintf("provider http %d", int(e)) }
func (e statusErr) HTTPStatusCode() int { return int(e) }

// flakyClassifier returns errs in order, then answers with cls.
type flakyClassifier struct {
	mu    sync.Mutex
	calls int
	errs  []error
	cls   Classification
}

func (c *flakyClassifier) Classify(ctx context.Context, text string) (Classification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls <= len(c.errs) {
		return Classification{}, c.errs[c.calls-1]
	}
	return c.cls, nil
}

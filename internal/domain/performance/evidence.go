package performance

import (
	"math"
	"time"

	"github.com/google/uuid"
)

const daysPerQuarter = 365.25 / 4

type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Quarters is the window length in quarters, never less than one.
func (w Window) Quarters() float64 {
	days := w.End.Sub(w.Start).Hours() / 24
	q := days / daysPerQuarter
	if q < 1 || math.IsNaN(q) {
		return 1
	}
	return q
}

func (w Window) Midpoint() time.Time {
	return w.Start.Add(w.End.Sub(w.Start) / 2)
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

type OkrSummary struct {
	ID         uuid.UUID `json:"id"`
	Objective  string    `json:"objective"`
	KeyResults string    `json:"key_results,omitempty"`
	Progress   float64   `json:"progress"`
	Status     string    `json:"status"`
	Owned      bool      `json:"owned"`
	Timestamp  time.Time `json:"timestamp"`
}

type FeedbackSummary struct {
	ID        uuid.UUID `json:"id"`
	GiverID   uuid.UUID `json:"giver_id"`
	Text      string    `json:"text"`
	Rating    *float64  `json:"rating,omitempty"`
	Sentiment *float64  `json:"sentiment,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ReviewSummary struct {
	ID         uuid.UUID `json:"id"`
	ReviewType string    `json:"review_type"`
	Status     string    `json:"status"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
}

// EvidenceBundle is the read-only snapshot of an employee's signals for one generation request.
type EvidenceBundle struct {
	OrgID         uuid.UUID         `json:"org_id"`
	EmployeeID    uuid.UUID         `json:"employee_id"`
	EmployeeName  string            `json:"employee_name"`
	Title         string            `json:"title"`
	FocusAreas    []string          `json:"focus_areas,omitempty"`
	Window        Window            `json:"window"`
	Okrs          []OkrSummary      `json:"okrs"`
	FeedbackItems []FeedbackSummary `json:"feedback_items"`
	PriorReviews  []ReviewSummary   `json:"prior_reviews"`
}

// Empty reports whether there is no current-period evidence. Prior reviews alone do not count.
func (b EvidenceBundle) Empty() bool {
	return len(b.Okrs) == 0 && len(b.FeedbackItems) == 0
}

// SourceTypes maps every evidence id to its source type.
func (b EvidenceBundle) SourceTypes() map[string]string {
	out := make(map[string]string, len(b.Okrs)+len(b.FeedbackItems)+len(b.PriorReviews))
	for _, o := range b.Okrs {
		out[o.ID.String()] = SourceTypeOkr
	}
	for _, f := range b.FeedbackItems {
		out[f.ID.String()] = SourceTypeFeedback
	}
	for _, r := range b.PriorReviews {
		out[r.ID.String()] = SourceTypeReview
	}
	return out
}

func (b EvidenceBundle) ItemCount() int {
	return len(b.Okrs) + len(b.FeedbackItems) + len(b.PriorReviews)
}

type QualityScore struct {
	Okr      float64 `json:"okr"`
	Feedback float64 `json:"feedback"`
	History  float64 `json:"history"`
	Overall  float64 `json:"overall"`
}

type ContextEntry struct {
	SourceID   string    `json:"source_id"`
	SourceType string    `json:"source_type"`
	Text       string    `json:"text"`
	Similarity float64   `json:"similarity"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

type RetrievedContext struct {
	Entries  []ContextEntry `json:"entries"`
	Degraded bool           `json:"degraded"`
}

// MeanSimilarity is 0 for an empty context.
func (c RetrievedContext) MeanSimilarity() float64 {
	if len(c.Entries) == 0 {
		return 0
	}
	sum := 0.0
	for _, e := range c.Entries {
		sum += e.Similarity
	}
	return sum / float64(len(c.Entries))
}

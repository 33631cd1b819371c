package sentiment

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TonePositive = "positive"
	ToneNeutral  = "neutral"
	ToneNegative = "negative"
	ToneMixed    = "mixed"
)

func IsValidTone(t string) bool {
	switch t {
	case TonePositive, ToneNeutral, ToneNegative, ToneMixed:
		return true
	}
	return false
}

// Result is the outcome of analyzing one feedback item. Scores are on a 0-100 scale.
type Result struct {
	FeedbackID     uuid.UUID `json:"feedback_id"`
	Tone           string    `json:"tone"`
	SentimentScore float64   `json:"sentiment_score"`
	QualityScore   float64   `json:"quality_score"`
	Specificity    float64   `json:"specificity"`
	Actionability  float64   `json:"actionability"`
	BiasIndicators []string  `json:"bias_indicators"`
	Keywords       []string  `json:"keywords"`
}

// FeedbackAnalysis persists one Result so trends never need the classifier again.
type FeedbackAnalysis struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	FeedbackID        uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex;column:feedback_id" json:"feedback_id"`
	OrgID             uuid.UUID      `gorm:"type:uuid;not null;index;column:org_id" json:"org_id"`
	EmployeeID        uuid.UUID      `gorm:"type:uuid;not null;index;column:employee_id" json:"employee_id"`
	Tone              string         `gorm:"not null;column:tone" json:"tone"`
	SentimentScore    float64        `gorm:"not null;column:sentiment_score" json:"sentiment_score"`
	QualityScore      float64        `gorm:"not null;column:quality_score" json:"quality_score"`
	Specificity       float64        `gorm:"not null;column:specificity" json:"specificity"`
	Actionability     float64        `gorm:"not null;column:actionability" json:"actionability"`
	BiasIndicators    datatypes.JSON `gorm:"column:bias_indicators" json:"bias_indicators"`
	Keywords          datatypes.JSON `gorm:"column:keywords" json:"keywords"`
	FeedbackCreatedAt time.Time      `gorm:"not null;index;column:feedback_created_at" json:"feedback_created_at"`
	AnalyzedAt        time.Time      `gorm:"not null;column:analyzed_at" json:"analyzed_at"`
	CreatedAt         time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null" json:"updated_at"`
}

func (FeedbackAnalysis) TableName() string { return "feedback_analysis" }

func (a *FeedbackAnalysis) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (a *FeedbackAnalysis) Result() Result {
	out := Result{
		FeedbackID:     a.FeedbackID,
		Tone:           a.Tone,
		SentimentScore: a.SentimentScore,
		QualityScore:   a.QualityScore,
		Specificity:    a.Specificity,
		Actionability:  a.Actionability,
		BiasIndicators: []string{},
		Keywords:       []string{},
	}
	_ = json.Unmarshal(a.BiasIndicators, &out.BiasIndicators)
	_ = json.Unmarshal(a.Keywords, &out.Keywords)
	return out
}

func EncodeStrings(v []string) datatypes.JSON {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return datatypes.JSON(b)
}

const (
	PeriodWeek    = "week"
	PeriodMonth   = "month"
	PeriodQuarter = "quarter"
	PeriodYear    = "year"
)

func IsValidPeriod(p string) bool {
	switch p {
	case PeriodWeek, PeriodMonth, PeriodQuarter, PeriodYear:
		return true
	}
	return false
}

const (
	TrendImproving = "improving"
	TrendStable    = "stable"
	TrendDeclining = "declining"
)

type Bucket struct {
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	Count            int       `json:"count"`
	AvgSentiment     float64   `json:"avg_sentiment"`
	AvgQuality       float64   `json:"avg_quality"`
	MovingAvg        float64   `json:"moving_avg"`
	NegativeCount    int       `json:"negative_count"`
	BiasFlaggedCount int       `json:"bias_flagged_count"`
}

type Trend struct {
	EmployeeID uuid.UUID `json:"employee_id"`
	Period     string    `json:"period"`
	Buckets    []Bucket  `json:"buckets"`
	// Direction compares the last two bucket averages; empty-bucket series are stable.
	Direction string   `json:"direction"`
	Keywords  []string `json:"top_keywords"`
}

// BatchAnalysisError summarizes a batch whose per-item failure rate exceeded the threshold.
type BatchAnalysisError struct {
	Total     int
	Failed    int
	Threshold float64
	FirstErr  error
}

func (e *BatchAnalysisError) Error() string {
	return fmt.Sprintf("sentiment batch failed: %d of %d items failed (threshold %.0f%%)", e.Failed, e.Total, e.Threshold*100)
}

func (e *BatchAnalysisError) Unwrap() error { return e.FirstErr }

func (e *BatchAnalysisError) FailureRate() float64 {
	if e.Total == 0 {
		return 0
	}
	return float64(e.Failed) / float64(e.Total)
}

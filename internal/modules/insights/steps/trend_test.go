package steps

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/perfinsight-backend/internal/data/repos"
	"github.com/yungbote/perfinsight-backend/internal/data/repos/testutil"
	"github.com/yungbote/perfinsight-backend/internal/domain/sentiment"
	"github.com/yungbote/perfinsight-backend/internal/platform/dbctx"
)

func TestBucketStartsAlignToCalendar(t *testing.T) {
	now := time.Date(2026, 10, 18, 15, 30, 0, 0, time.UTC)

	weeks := BucketStarts(sentiment.PeriodWeek, now, 6)
	if want := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC); !weeks[5].Equal(want) {
		t.Fatalf("current week: want=%s got=%s", want, weeks[5])
	}
	if want := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC); !weeks[0].Equal(want) {
		t.Fatalf("first week: want=%s got=%s", want, weeks[0])
	}
	for _, w := range weeks {
		if w.Weekday() != time.Monday {
			t.Fatalf("week start on %s", w.Weekday())
		}
	}

	quarters := BucketStarts(sentiment.PeriodQuarter, time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC), 3)
	want := []time.Time{
		time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	if !reflect.DeepEqual(quarters, want) {
		t.Fatalf("quarters: want=%v got=%v", want, quarters)
	}
}

func TestBuildTrendAveragesAndDirection(t *testing.T) {
	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	starts := BucketStarts(sentiment.PeriodMonth, now, 6)
	results := []timedResult{
		{at: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC), res: sentiment.Result{SentimentScore: 60, QualityScore: 50, Tone: sentiment.TonePositive, Keywords: []string{"delivery", "mentoring"}}},
		{at: time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC), res: sentiment.Result{SentimentScore: 70, QualityScore: 70, Tone: sentiment.TonePositive, Keywords: []string{"delivery"}}},
		{at: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), res: sentiment.Result{SentimentScore: 40, QualityScore: 30, Tone: sentiment.ToneNegative, BiasIndicators: []string{"bossy"}, Keywords: []string{"communication"}}},
		{at: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), res: sentiment.Result{SentimentScore: 0, Keywords: []string{"ignored"}}},
	}
	trend := buildTrend(uuid.New(), sentiment.PeriodMonth, starts, results, DefaultConfig())

	if len(trend.Buckets) != 6 {
		t.Fatalf("buckets: want=6 got=%d", len(trend.Buckets))
	}
	jan, feb, mar := trend.Buckets[3], trend.Buckets[4], trend.Buckets[5]
	if jan.Count != 2 || jan.AvgSentiment != 65 || jan.AvgQuality != 60 || jan.MovingAvg != 60 {
		t.Fatalf("jan: got=%+v", jan)
	}
	if feb.Count != 0 || feb.AvgSentiment != 0 {
		t.Fatalf("feb: got=%+v", feb)
	}
	if mar.Count != 1 || mar.NegativeCount != 1 || mar.BiasFlaggedCount != 1 || mar.MovingAvg != 45 {
		t.Fatalf("mar: got=%+v", mar)
	}
	if trend.Direction != sentiment.TrendDeclining {
		t.Fatalf("direction: want=%s got=%s", sentiment.TrendDeclining, trend.Direction)
	}
	if !reflect.DeepEqual(trend.Keywords, []string{"delivery", "communication", "mentoring"}) {
		t.Fatalf("keywords: got=%v", trend.Keywords)
	}
}

func TestBuildTrendStableWithinBand(t *testing.T) {
	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	starts := BucketStarts(sentiment.PeriodMonth, now, 6)
	results := []timedResult{
		{at: time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC), res: sentiment.Result{SentimentScore: 80, QualityScore: 60}},
		{at: time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), res: sentiment.Result{SentimentScore: 40, QualityScore: 64}},
	}
	if got := buildTrend(uuid.New(), sentiment.PeriodMonth, starts, results, DefaultConfig()).Direction; got != sentiment.TrendStable {
		t.Fatalf("direction: want=stable got=%s", got)
	}
	if got := buildTrend(uuid.New(), sentiment.PeriodMonth, starts, nil, DefaultConfig()); got.Direction != sentiment.TrendStable || len(got.Keywords) != 0 {
		t.Fatalf("empty: got=%+v", got)
	}
}

func TestBuildTrendFollowsQualityNotSentiment(t *testing.T) {
	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	starts := BucketStarts(sentiment.PeriodMonth, now, 6)
	results := []timedResult{
		{at: time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC), res: sentiment.Result{SentimentScore: 60, QualityScore: 90}},
		{at: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), res: sentiment.Result{SentimentScore: 60, QualityScore: 30}},
	}
	trend := buildTrend(uuid.New(), sentiment.PeriodMonth, starts, results, DefaultConfig())
	if trend.Direction != sentiment.TrendDeclining {
		t.Fatalf("quality drop with flat sentiment: want=declining got=%s", trend.Direction)
	}
	if mar := trend.Buckets[5]; mar.MovingAvg != 60 || mar.AvgSentiment != 60 {
		t.Fatalf("mar: got=%+v", mar)
	}

	results[1].res = sentiment.Result{SentimentScore: 10, QualityScore: 92}
	if got := buildTrend(uuid.New(), sentiment.PeriodMonth, starts, results, DefaultConfig()).Direction; got != sentiment.TrendStable {
		t.Fatalf("sentiment drop with flat quality: want=stable got=%s", got)
	}
}

func TestSummarizeReadsStoredAnalyses(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	set := repos.NewSet(db, testutil.Logger(t))
	employeeID := uuid.New()
	now := time.Now().UTC()

	for i, quality := range []float64{80, 55} {
		at := now.AddDate(0, 0, -7*(1-i))
		if err := set.Analyses.Upsert(dbctx.Context{Ctx: ctx}, &sentiment.FeedbackAnalysis{
			FeedbackID:        uuid.New(),
			OrgID:             uuid.New(),
			EmployeeID:        employeeID,
			Tone:              sentiment.ToneNeutral,
			SentimentScore:    60,
			QualityScore:      quality,
			BiasIndicators:    sentiment.EncodeStrings(nil),
			Keywords:          sentiment.EncodeStrings([]string{"oncall"}),
			FeedbackCreatedAt: at,
		}); err != nil {
			t.Fatalf("seed analysis: %v", err)
		}
	}

	trend, err := Summarize(ctx, SummarizeDeps{Analyses: set.Analyses, Config: DefaultConfig()}, SummarizeInput{
		EmployeeID: employeeID,
		Period:     sentiment.PeriodWeek,
		Now:        now,
	})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	total := 0
	for _, b := range trend.Buckets {
		total += b.Count
	}
	if total != 2 {
		t.Fatalf("bucketed analyses: want=2 got=%d", total)
	}
	if trend.Direction != sentiment.TrendDeclining {
		t.Fatalf("direction: want=declining got=%s", trend.Direction)
	}
	if !reflect.DeepEqual(trend.Keywords, []string{"oncall"}) {
		t.Fatalf("keywords: got=%v", trend.Keywords)
	}

	if _, err := Summarize(ctx, SummarizeDeps{Analyses: set.Analyses}, SummarizeInput{EmployeeID: employeeID, Period: "fortnight"}); err == nil {
		t.Fatalf("unknown period: want error")
	}
}

package steps

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/perfinsight-backend/internal/data/repos"
	"github.com/yungbote/perfinsight-backend/internal/domain/sentiment"
	"github.com/yungbote/perfinsight-backend/internal/platform/dbctx"
)

type SummarizeDeps struct {
	Analyses repos.AnalysisRepo
	Config   Config
}

type SummarizeInput struct {
	EmployeeID uuid.UUID
	Period     string
	Now        time.Time
}

// Summarize buckets stored analyses by period; it never calls the classifier.
func Summarize(ctx context.Context, deps SummarizeDeps, in SummarizeInput) (sentiment.Trend, error) {
	if deps.Analyses == nil {
		return sentiment.Trend{}, fmt.Errorf("summarize: missing analysis repo")
	}
	if !sentiment.IsValidPeriod(in.Period) {
		return sentiment.Trend{}, fmt.Errorf("summarize: unknown period %q", in.Period)
	}
	cfg := deps.Config.WithDefaults()
	now := in.Now.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}
	starts := BucketStarts(in.Period, now, cfg.TrendBuckets)
	rows, err := deps.Analyses.ListByEmployeeSince(dbctx.Context{Ctx: ctx}, in.EmployeeID, starts[0])
	if err != nil {
		return sentiment.Trend{}, fmt.Errorf("summarize: %w", err)
	}
	results := make([]timedResult, 0, len(rows))
	for _, r := range rows {
		if r == nil {
			continue
		}
		results = append(results, timedResult{at: r.FeedbackCreatedAt.UTC(), res: r.Result()})
	}
	return buildTrend(in.EmployeeID, in.Period, starts, results, cfg), nil
}

type timedResult struct {
	at  time.Time
	res sentiment.Result
}

// buildTrend assigns results to buckets and averages them. The moving average and the direction both
// follow average feedback quality.
func buildTrend(employeeID uuid.UUID, period string, starts []time.Time, results []timedResult, cfg Config) sentiment.Trend {
	cfg = cfg.WithDefaults()
	buckets := make([]sentiment.Bucket, len(starts))
	sums := make([]struct{ sentiment, quality float64 }, len(starts))
	for i, s := range starts {
		buckets[i] = sentiment.Bucket{Start: s, End: periodAdd(period, s, 1)}
	}
	keywordCounts := map[string]int{}
	for _, tr := range results {
		idx := -1
		for i := range buckets {
			if !tr.at.Before(buckets[i].Start) && tr.at.Before(buckets[i].End) {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}
		b := &buckets[idx]
		b.Count++
		sums[idx].sentiment += tr.res.SentimentScore
		sums[idx].quality += tr.res.QualityScore
		if tr.res.Tone == sentiment.ToneNegative {
			b.NegativeCount++
		}
		if len(tr.res.BiasIndicators) > 0 {
			b.BiasFlaggedCount++
		}
		for _, kw := range tr.res.Keywords {
			keywordCounts[kw]++
		}
	}
	for i := range buckets {
		if buckets[i].Count > 0 {
			buckets[i].AvgSentiment = round1(sums[i].sentiment / float64(buckets[i].Count))
			buckets[i].AvgQuality = round1(sums[i].quality / float64(buckets[i].Count))
		}
	}
	for i := range buckets {
		total, n := 0.0, 0
		for j := i - 2; j <= i; j++ {
			if j < 0 || buckets[j].Count == 0 {
				continue
			}
			total += buckets[j].AvgQuality
			n++
		}
		if n > 0 {
			buckets[i].MovingAvg = round1(total / float64(n))
		}
	}

	dir := sentiment.TrendStable
	if filled := nonEmptyBuckets(buckets); len(filled) >= 2 {
		dir = direction(filled[len(filled)-2].AvgQuality, filled[len(filled)-1].AvgQuality, cfg.StableBand)
	}
	return sentiment.Trend{
		EmployeeID: employeeID,
		Period:     period,
		Buckets:    buckets,
		Direction:  dir,
		Keywords:   topKeywords(keywordCounts, cfg.TopKeywords),
	}
}

// BucketStarts returns n calendar-aligned bucket starts ending with the bucket containing now.
func BucketStarts(period string, now time.Time, n int) []time.Time {
	if n <= 0 {
		n = 1
	}
	last := periodStart(period, now.UTC())
	out := make([]time.Time, n)
	for i := 0; i < n; i++ {
		out[i] = periodAdd(period, last, i-(n-1))
	}
	return out
}

func periodStart(period string, t time.Time) time.Time {
	y, m, d := t.Date()
	switch period {
	case sentiment.PeriodWeek:
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case sentiment.PeriodQuarter:
		qm := time.Month((int(m)-1)/3*3 + 1)
		return time.Date(y, qm, 1, 0, 0, 0, 0, time.UTC)
	case sentiment.PeriodYear:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	}
}

func periodAdd(period string, t time.Time, n int) time.Time {
	switch period {
	case sentiment.PeriodWeek:
		return t.AddDate(0, 0, 7*n)
	case sentiment.PeriodQuarter:
		return t.AddDate(0, 3*n, 0)
	case sentiment.PeriodYear:
		return t.AddDate(n, 0, 0)
	default:
		return t.AddDate(0, n, 0)
	}
}

func direction(prev, cur, band float64) string {
	switch diff := cur - prev; {
	case diff > band:
		return sentiment.TrendImproving
	case diff < -band:
		return sentiment.TrendDeclining
	default:
		return sentiment.TrendStable
	}
}

func nonEmptyBuckets(buckets []sentiment.Bucket) []sentiment.Bucket {
	out := make([]sentiment.Bucket, 0, len(buckets))
	for _, b := range buckets {
		if b.Count > 0 {
			out = append(out, b)
		}
	}
	return out
}

func topKeywords(counts map[string]int, n int) []string {
	out := make([]string, 0, len(counts))
	for k := range counts {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

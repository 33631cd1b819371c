package steps

import (
	"math"
	"sort"
	"time"

	types "github.com/yungbote/perfinsight-backend/internal/domain/performance"
)

// ScoreQuality rates how well the bundle evidences a review. It is pure and never blocks generation.
//
// Each category is coverage (count against the baseline scaled to the window) blended with recency
// (the freshest ceil(expected) items, each worth 1 past the window midpoint and decaying linearly to 0
// at the window start). Adding an item can only raise a category score.
func ScoreQuality(bundle types.EvidenceBundle, cfg Config) types.QualityScore {
	cfg = cfg.WithDefaults()
	quarters := bundle.Window.Quarters()

	okrTimes := make([]time.Time, 0, len(bundle.Okrs))
	for _, o := range bundle.Okrs {
		okrTimes = append(okrTimes, o.Timestamp)
	}
	fbTimes := make([]time.Time, 0, len(bundle.FeedbackItems))
	for _, f := range bundle.FeedbackItems {
		fbTimes = append(fbTimes, f.Timestamp)
	}
	revTimes := make([]time.Time, 0, len(bundle.PriorReviews))
	for _, r := range bundle.PriorReviews {
		revTimes = append(revTimes, r.Timestamp)
	}

	out := types.QualityScore{
		Okr:      categoryScore(okrTimes, cfg.Baselines.OkrPerQuarter*quarters, bundle.Window, cfg),
		Feedback: categoryScore(fbTimes, cfg.Baselines.FeedbackPerQuarter*quarters, bundle.Window, cfg),
		History:  categoryScore(revTimes, cfg.Baselines.ReviewPerQuarter*quarters, bundle.Window, cfg),
	}
	wsum := cfg.Quality.Feedback + cfg.Quality.Okr + cfg.Quality.History
	if wsum <= 0 {
		return out
	}
	overall := (cfg.Quality.Feedback*out.Feedback + cfg.Quality.Okr*out.Okr + cfg.Quality.History*out.History) / wsum
	out.Overall = round2(clampScore(overall))
	return out
}

func categoryScore(times []time.Time, expected float64, w types.Window, cfg Config) float64 {
	if len(times) == 0 || expected <= 0 {
		return 0
	}
	coverage := math.Min(100, 100*float64(len(times))/expected)

	slots := int(math.Ceil(expected))
	values := make([]float64, 0, len(times))
	for _, t := range times {
		values = append(values, recencyValue(t, w))
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(values)))
	if len(values) > slots {
		values = values[:slots]
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	recency := 100 * sum / float64(slots)

	wsum := cfg.Quality.Coverage + cfg.Quality.Recency
	if wsum <= 0 {
		return 0
	}
	return round2(clampScore((cfg.Quality.Coverage*coverage + cfg.Quality.Recency*recency) / wsum))
}

func recencyValue(t time.Time, w types.Window) float64 {
	mid := w.Midpoint()
	if !t.Before(mid) {
		return 1
	}
	if !t.After(w.Start) {
		return 0
	}
	span := mid.Sub(w.Start)
	if span <= 0 {
		return 1
	}
	return clamp01(float64(t.Sub(w.Start)) / float64(span))
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

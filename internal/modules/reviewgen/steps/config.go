package steps

import (
	"math"
	"time"
)

// QualityBaselines are the expected item counts per quarter for a fully evidenced review.
type QualityBaselines struct {
	OkrPerQuarter      float64 `yaml:"okr_per_quarter"`
	FeedbackPerQuarter float64 `yaml:"feedback_per_quarter"`
	ReviewPerQuarter   float64 `yaml:"review_per_quarter"`
}

type QualityWeights struct {
	Coverage float64 `yaml:"coverage"`
	Recency  float64 `yaml:"recency"`

	Feedback float64 `yaml:"feedback"`
	Okr      float64 `yaml:"okr"`
	History  float64 `yaml:"history"`
}

type ConfidenceWeights struct {
	Quality    float64 `yaml:"quality"`
	Similarity float64 `yaml:"similarity"`
	Certainty  float64 `yaml:"certainty"`
	// DegradationPenalty is subtracted once when retrieval degraded or generation needed its retry.
	DegradationPenalty float64 `yaml:"degradation_penalty"`
	DefaultCertainty   float64 `yaml:"default_certainty"`
}

type RetrievalConfig struct {
	TopK          int     `yaml:"top_k"`
	MinSimilarity float64 `yaml:"min_similarity"`
	// ScopeToEmployee adds employee_id to the index filter on top of org_id.
	ScopeToEmployee bool          `yaml:"scope_to_employee"`
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
	IndexBatchSize  int           `yaml:"index_batch_size"`
	IndexWorkers    int           `yaml:"index_workers"`
}

type Timeouts struct {
	Embed    time.Duration `yaml:"embed"`
	Generate time.Duration `yaml:"generate"`
	Overall  time.Duration `yaml:"overall"`
}

// Config is the pipeline tuning. Zero fields fall back to the defaults.
type Config struct {
	Baselines  QualityBaselines  `yaml:"baselines"`
	Quality    QualityWeights    `yaml:"quality"`
	Confidence ConfidenceWeights `yaml:"confidence"`
	Retrieval  RetrievalConfig   `yaml:"retrieval"`
	Timeouts   Timeouts          `yaml:"timeouts"`

	MaxOutputTokens int `yaml:"max_output_tokens"`
	// DefaultWindowMonths is the trailing window used when the organization has no completed cycle.
	DefaultWindowMonths  int  `yaml:"default_window_months"`
	AllowEditorOverwrite bool `yaml:"allow_editor_overwrite"`
}

func DefaultConfig() Config {
	return Config{
		Baselines: QualityBaselines{
			OkrPerQuarter:      3,
			FeedbackPerQuarter: 5,
			ReviewPerQuarter:   0.5,
		},
		Quality: QualityWeights{
			Coverage: 0.6,
			Recency:  0.4,
			Feedback: 0.5,
			Okr:      0.3,
			History:  0.2,
		},
		Confidence: ConfidenceWeights{
			Quality:            0.5,
			Similarity:         0.3,
			Certainty:          0.2,
			DegradationPenalty: 0.15,
			DefaultCertainty:   0.5,
		},
		Retrieval: RetrievalConfig{
			TopK:            10,
			MinSimilarity:   0.70,
			ScopeToEmployee: true,
			RetryBackoff:    500 * time.Millisecond,
			IndexBatchSize:  64,
			IndexWorkers:    4,
		},
		Timeouts: Timeouts{
			Embed:    15 * time.Second,
			Generate: 30 * time.Second,
			Overall:  45 * time.Second,
		},
		MaxOutputTokens:     1600,
		DefaultWindowMonths: 12,
	}
}

// WithDefaults fills every unset field from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.Baselines.OkrPerQuarter <= 0 {
		c.Baselines.OkrPerQuarter = d.Baselines.OkrPerQuarter
	}
	if c.Baselines.FeedbackPerQuarter <= 0 {
		c.Baselines.FeedbackPerQuarter = d.Baselines.FeedbackPerQuarter
	}
	if c.Baselines.ReviewPerQuarter <= 0 {
		c.Baselines.ReviewPerQuarter = d.Baselines.ReviewPerQuarter
	}
	if c.Quality.Coverage <= 0 && c.Quality.Recency <= 0 {
		c.Quality.Coverage, c.Quality.Recency = d.Quality.Coverage, d.Quality.Recency
	}
	if c.Quality.Feedback <= 0 && c.Quality.Okr <= 0 && c.Quality.History <= 0 {
		c.Quality.Feedback, c.Quality.Okr, c.Quality.History = d.Quality.Feedback, d.Quality.Okr, d.Quality.History
	}
	if c.Confidence.Quality <= 0 && c.Confidence.Similarity <= 0 && c.Confidence.Certainty <= 0 {
		c.Confidence.Quality = d.Confidence.Quality
		c.Confidence.Similarity = d.Confidence.Similarity
		c.Confidence.Certainty = d.Confidence.Certainty
	}
	if c.Confidence.DegradationPenalty <= 0 {
		c.Confidence.DegradationPenalty = d.Confidence.DegradationPenalty
	}
	if c.Confidence.DefaultCertainty <= 0 || c.Confidence.DefaultCertainty > 1 {
		c.Confidence.DefaultCertainty = d.Confidence.DefaultCertainty
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = d.Retrieval.TopK
	}
	if c.Retrieval.MinSimilarity <= 0 || c.Retrieval.MinSimilarity >= 1 {
		c.Retrieval.MinSimilarity = d.Retrieval.MinSimilarity
	}
	if c.Retrieval.RetryBackoff <= 0 {
		c.Retrieval.RetryBackoff = d.Retrieval.RetryBackoff
	}
	if c.Retrieval.IndexBatchSize <= 0 {
		c.Retrieval.IndexBatchSize = d.Retrieval.IndexBatchSize
	}
	if c.Retrieval.IndexWorkers <= 0 {
		c.Retrieval.IndexWorkers = d.Retrieval.IndexWorkers
	}
	if c.Timeouts.Embed <= 0 {
		c.Timeouts.Embed = d.Timeouts.Embed
	}
	if c.Timeouts.Generate <= 0 {
		c.Timeouts.Generate = d.Timeouts.Generate
	}
	if c.Timeouts.Overall <= 0 {
		c.Timeouts.Overall = d.Timeouts.Overall
	}
	if c.MaxOutputTokens <= 0 {
		c.MaxOutputTokens = d.MaxOutputTokens
	}
	if c.DefaultWindowMonths <= 0 {
		c.DefaultWindowMonths = d.DefaultWindowMonths
	}
	return c
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

package steps

import "time"

type Config struct {
	// BiasKeywords are matched case-insensitively on word boundaries, on top of the classifier's own
	// indicators.
	BiasKeywords []string `yaml:"bias_keywords"`

	AlertCooldown           time.Duration `yaml:"alert_cooldown"`
	QualityDropThreshold    float64       `yaml:"quality_drop_threshold"`
	ConcerningActionability float64       `yaml:"concerning_actionability"`
	// StableBand is the +/- difference between bucket averages still reported as stable.
	StableBand        float64 `yaml:"stable_band"`
	ShiftHighSeverity float64 `yaml:"shift_high_severity"`
	TrendBuckets      int     `yaml:"trend_buckets"`
	TopKeywords       int     `yaml:"top_keywords"`

	ClassifyTimeout time.Duration `yaml:"classify_timeout"`
	// RetryBackoff is the wait before the single retry of a transient classification failure.
	RetryBackoff          time.Duration `yaml:"retry_backoff"`
	BatchWorkers          int           `yaml:"batch_workers"`
	BatchFailureThreshold float64       `yaml:"batch_failure_threshold"`
}

func DefaultConfig() Config {
	return Config{
		BiasKeywords: []string{
			"abrasive",
			"aggressive",
			"bossy",
			"emotional",
			"hysterical",
			"shrill",
			"too old",
			"too young",
			"culture fit",
			"not a culture fit",
			"articulate",
			"maternity",
			"pregnant",
			"his wife",
			"her husband",
			"accent",
		},
		AlertCooldown:           24 * time.Hour,
		QualityDropThreshold:    40,
		ConcerningActionability: 30,
		StableBand:              5,
		ShiftHighSeverity:       15,
		TrendBuckets:            6,
		TopKeywords:             10,
		ClassifyTimeout:         10 * time.Second,
		RetryBackoff:            500 * time.Millisecond,
		BatchWorkers:            8,
		BatchFailureThreshold:   0.5,
	}
}

func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.BiasKeywords == nil {
		c.BiasKeywords = d.BiasKeywords
	}
	if c.AlertCooldown <= 0 {
		c.AlertCooldown = d.AlertCooldown
	}
	if c.QualityDropThreshold <= 0 {
		c.QualityDropThreshold = d.QualityDropThreshold
	}
	if c.ConcerningActionability <= 0 {
		c.ConcerningActionability = d.ConcerningActionability
	}
	if c.StableBand <= 0 {
		c.StableBand = d.StableBand
	}
	if c.ShiftHighSeverity <= 0 {
		c.ShiftHighSeverity = d.ShiftHighSeverity
	}
	if c.TrendBuckets < 3 {
		c.TrendBuckets = d.TrendBuckets
	}
	if c.TopKeywords <= 0 {
		c.TopKeywords = d.TopKeywords
	}
	if c.ClassifyTimeout <= 0 {
		c.ClassifyTimeout = d.ClassifyTimeout
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = d.RetryBackoff
	}
	if c.BatchWorkers <= 0 {
		c.BatchWorkers = d.BatchWorkers
	}
	if c.BatchFailureThreshold <= 0 || c.BatchFailureThreshold > 1 {
		c.BatchFailureThreshold = d.BatchFailureThreshold
	}
	return c
}

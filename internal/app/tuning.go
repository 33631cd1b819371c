package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/perfinsight-backend/internal/modules/insights"
	"github.com/yungbote/perfinsight-backend/internal/modules/reviewgen"
	"github.com/yungbote/perfinsight-backend/internal/platform/envutil"
)

// Tuning is the optional pipeline override file. Unset fields keep their defaults.
type Tuning struct {
	ReviewGeneration reviewgen.Config `yaml:"review_generation"`
	Sentiment        insights.Config  `yaml:"sentiment"`
}

func DefaultTuning() Tuning {
	return Tuning{
		ReviewGeneration: reviewgen.DefaultConfig(),
		Sentiment:        insights.DefaultConfig(),
	}
}

// LoadTuning reads path when set, then applies env overrides. An empty path starts from the defaults.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	if path = strings.TrimSpace(path); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Tuning{}, fmt.Errorf("read pipeline config: %w", err)
		}
		if t, err = ParseTuning(raw); err != nil {
			return Tuning{}, err
		}
	}
	return t.withEnvOverrides(), nil
}

func (t Tuning) withEnvOverrides() Tuning {
	rg := &t.ReviewGeneration
	rg.Retrieval.TopK = envutil.Int("RETRIEVAL_TOP_K", rg.Retrieval.TopK)
	rg.Retrieval.MinSimilarity = envutil.Float("RETRIEVAL_MIN_SIMILARITY", rg.Retrieval.MinSimilarity)
	rg.Timeouts.Overall = envutil.Duration("GENERATION_TIMEOUT", rg.Timeouts.Overall)
	rg.AllowEditorOverwrite = envutil.Bool("ALLOW_EDITOR_OVERWRITE", rg.AllowEditorOverwrite)

	t.Sentiment.AlertCooldown = envutil.Duration("ALERT_COOLDOWN", t.Sentiment.AlertCooldown)
	t.Sentiment.BatchWorkers = envutil.Int("SENTIMENT_BATCH_WORKERS", t.Sentiment.BatchWorkers)

	t.ReviewGeneration = rg.WithDefaults()
	t.Sentiment = t.Sentiment.WithDefaults()
	return t
}

func ParseTuning(raw []byte) (Tuning, error) {
	var t Tuning
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil && !errors.Is(err, io.EOF) {
		return Tuning{}, fmt.Errorf("parse pipeline config: %w", err)
	}
	t.ReviewGeneration = t.ReviewGeneration.WithDefaults()
	t.Sentiment = t.Sentiment.WithDefaults()
	return t, nil
}

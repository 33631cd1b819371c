package steps

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/yungbote/perfinsight-backend/internal/domain/sentiment"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
)

// Classification is the provider's read of one feedback text. Scores are 0-100.
type Classification struct {
	Tone           string
	SentimentScore float64
	QualityScore   float64
	Specificity    float64
	Actionability  float64
	BiasIndicators []string
	Keywords       []string
}

type Classifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
}

// JSONGenerator is the slice of the model client the classifier needs.
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error)
}

type llmClassifier struct {
	ai  JSONGenerator
	log *logger.Logger
}

func NewLLMClassifier(ai JSONGenerator, log *logger.Logger) Classifier {
	if log != nil {
		log = log.With("component", "FeedbackClassifier")
	}
	return &llmClassifier{ai: ai, log: log}
}

func (c *llmClassifier) Classify(ctx context.Context, text string) (Classification, error) {
	if c == nil || c.ai == nil {
		return Classification{}, fmt.Errorf("classifier not configured")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Classification{}, fmt.Errorf("empty feedback text")
	}
	system, user := promptClassifyFeedback(text)
	obj, err := c.ai.GenerateJSON(ctx, system, user, "feedback_classification", schemaClassifyFeedback())
	if err != nil {
		return Classification{}, fmt.Errorf("classify feedback: %w", err)
	}
	return parseClassification(obj)
}

func promptClassifyFeedback(text string) (system string, user string) {
	system = `Classify one piece of workplace feedback.
Score sentiment (0 very negative, 50 neutral, 100 very positive), quality, specificity and actionability from 0 to 100.
List bias_indicators only for language that judges the person by personality stereotypes or protected characteristics rather than work.
List up to 8 short lowercase keywords describing the work topics mentioned.`
	user = "Feedback:\n" + text
	return system, user
}

func schemaClassifyFeedback() map[string]any {
	score := map[string]any{"type": "number", "minimum": 0, "maximum": 100}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"tone": map[string]any{
				"type": "string",
				"enum": []any{sentiment.TonePositive, sentiment.ToneNeutral, sentiment.ToneNegative, sentiment.ToneMixed},
			},
			"sentiment_score": score,
			"quality_score":   score,
			"specificity":     score,
			"actionability":   score,
			"bias_indicators": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"keywords":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []any{
			"tone", "sentiment_score", "quality_score", "specificity", "actionability", "bias_indicators", "keywords",
		},
		"additionalProperties": false,
	}
}

func parseClassification(obj map[string]any) (Classification, error) {
	tone, _ := obj["tone"].(string)
	tone = strings.ToLower(strings.TrimSpace(tone))
	if !sentiment.IsValidTone(tone) {
		return Classification{}, fmt.Errorf("classify feedback: invalid tone %q", tone)
	}
	out := Classification{Tone: tone}
	for key, dst := range map[string]*float64{
		"sentiment_score": &out.SentimentScore,
		"quality_score":   &out.QualityScore,
		"specificity":     &out.Specificity,
		"actionability":   &out.Actionability,
	} {
		v, ok := obj[key].(float64)
		if !ok || math.IsNaN(v) {
			return Classification{}, fmt.Errorf("classify feedback: missing %s", key)
		}
		*dst = math.Max(0, math.Min(100, v))
	}
	out.BiasIndicators = stringList(obj["bias_indicators"])
	out.Keywords = stringList(obj["keywords"])
	return out, nil
}

func stringList(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	seen := map[string]bool{}
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			continue
		}
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// DetectBiasKeywords returns the configured keywords found in text as whole words, sorted.
func DetectBiasKeywords(text string, keywords []string) []string {
	lower := strings.ToLower(text)
	var out []string
	seen := map[string]bool{}
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] || !strings.Contains(lower, kw) {
			continue
		}
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(kw) + `\b`)
		if err != nil || !re.MatchString(lower) {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	sort.Strings(out)
	return out
}

func mergeIndicators(a, b []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			s = strings.ToLower(strings.TrimSpace(s))
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

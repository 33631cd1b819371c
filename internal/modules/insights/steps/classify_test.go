package steps

import (
	"context"
	"reflect"
	"testing"

	"github.com/yungbote/perfinsight-backend/internal/domain/sentiment"
)

type stubJSON struct {
	obj        map[string]any
	schemaName string
}

func (s *stubJSON) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	s.schemaName = schemaName
	return s.obj, nil
}

func TestLLMClassifierParsesAndClamps(t *testing.T) {
	ai := &stubJSON{obj: map[string]any{
		"tone":            "Negative",
		"sentiment_score": 12.0,
		"quality_score":   140.0,
		"specificity":     -3.0,
		"actionability":   22.0,
		"bias_indicators": []any{"Bossy", "bossy", ""},
		"keywords":        []any{"deadlines", "Code Review"},
	}}
	cls, err := NewLLMClassifier(ai, nil).Classify(context.Background(), "missed every deadline this quarter")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if ai.schemaName != "feedback_classification" {
		t.Fatalf("schema name: want=feedback_classification got=%s", ai.schemaName)
	}
	if cls.Tone != sentiment.ToneNegative {
		t.Fatalf("tone: want=%s got=%s", sentiment.ToneNegative, cls.Tone)
	}
	if cls.QualityScore != 100 || cls.Specificity != 0 {
		t.Fatalf("clamp: want=100/0 got=%v/%v", cls.QualityScore, cls.Specificity)
	}
	if !reflect.DeepEqual(cls.BiasIndicators, []string{"bossy"}) {
		t.Fatalf("bias indicators: got=%v", cls.BiasIndicators)
	}
	if !reflect.DeepEqual(cls.Keywords, []string{"deadlines", "code review"}) {
		t.Fatalf("keywords: got=%v", cls.Keywords)
	}
}

func TestLLMClassifierRejectsMalformedReplies(t *testing.T) {
	cases := map[string]map[string]any{
		"unknown tone": {
			"tone": "furious", "sentiment_score": 1.0, "quality_score": 1.0, "specificity": 1.0, "actionability": 1.0,
		},
		"missing score": {
			"tone": "neutral", "sentiment_score": 50.0, "quality_score": 50.0, "specificity": 50.0,
		},
	}
	for name, obj := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := NewLLMClassifier(&stubJSON{obj: obj}, nil).Classify(context.Background(), "fine work"); err == nil {
				t.Fatalf("want error")
			}
		})
	}
	if _, err := NewLLMClassifier(&stubJSON{}, nil).Classify(context.Background(), "   "); err == nil {
		t.Fatalf("empty text: want error")
	}
}

func TestDetectBiasKeywordsMatchesWholeWords(t *testing.T) {
	kw := DefaultConfig().BiasKeywords
	got := DetectBiasKeywords("Honestly she can be Emotional and a bit bossy in standups.", kw)
	if !reflect.DeepEqual(got, []string{"bossy", "emotional"}) {
		t.Fatalf("detect: got=%v", got)
	}
	if got := DetectBiasKeywords("He stayed unemotional during the outage review.", kw); len(got) != 0 {
		t.Fatalf("substring match: want none got=%v", got)
	}
	if got := DetectBiasKeywords("Probably not a culture fit for the platform team.", kw); !reflect.DeepEqual(got, []string{"culture fit", "not a culture fit"}) {
		t.Fatalf("phrases: got=%v", got)
	}
}

func TestMergeIndicatorsDedupesAndSorts(t *testing.T) {
	got := mergeIndicators([]string{"shrill", "Bossy"}, []string{"bossy", "accent"})
	if !reflect.DeepEqual(got, []string{"accent", "bossy", "shrill"}) {
		t.Fatalf("merge: got=%v", got)
	}
}

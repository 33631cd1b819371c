package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	types "github.com/yungbote/perfinsight-backend/internal/domain/performance"
	"github.com/yungbote/perfinsight-backend/internal/platform/logger"
	"github.com/yungbote/perfinsight-backend/internal/platform/openai"
)

// Completer is the slice of the model client generation needs.
type Completer interface {
	Complete(ctx context.Context, req openai.CompletionRequest) (openai.Completion, error)
}

type GenerateDeps struct {
	Log    *logger.Logger
	AI     Completer
	Config Config
}

type GenerateInput struct {
	Bundle     types.EvidenceBundle
	Quality    types.QualityScore
	Context    types.RetrievedContext
	ReviewType string
	FocusAreas []string
}

type GenerateOutput struct {
	// Skipped means the bundle was empty; Content holds the manual-entry template and no provider
	// call was made.
	Skipped   bool
	Content   map[string]string
	Citations map[string][]string
	Certainty *float64
	// Retried means the first answer failed validation and the strict retry succeeded.
	Retried      bool
	Attempts     int
	InputTokens  int
	OutputTokens int
}

// GeneratedContent is a validated draft.
type GeneratedContent struct {
	Fields    map[string]string
	Citations map[string][]string
	Certainty *float64
}

// ParseResult is either Ok(content) or ParseFailed(reason).
type ParseResult struct {
	content *GeneratedContent
	reason  string
}

func parseOk(c GeneratedContent) ParseResult { return ParseResult{content: &c} }

func parseFailed(reason string) ParseResult { return ParseResult{reason: reason} }

func (r ParseResult) OK() bool { return r.content != nil }

func (r ParseResult) Content() GeneratedContent {
	if r.content == nil {
		return GeneratedContent{}
	}
	return *r.content
}

func (r ParseResult) Reason() string { return r.reason }

// GenerateDraft makes one provider call, validates the answer, and retries once with a stricter
// instruction when validation fails. A second failure is a *GenerationParseError.
func GenerateDraft(ctx context.Context, deps GenerateDeps, in GenerateInput) (GenerateOutput, error) {
	out := GenerateOutput{}
	if in.Bundle.Empty() {
		out.Skipped = true
		out.Content = skippedTemplate()
		return out, nil
	}
	if deps.AI == nil {
		return out, fmt.Errorf("generate draft: missing model client")
	}
	cfg := deps.Config.WithDefaults()
	known := knownSourceIDs(in.Bundle, in.Context)
	schema := schemaReviewDraft()

	var lastReason string
	for attempt := 1; attempt <= 2; attempt++ {
		strict := attempt > 1
		system, user := promptReviewDraft(in, strict)

		callCtx, cancel := context.WithTimeout(ctx, cfg.Timeouts.Generate)
		completion, err := deps.AI.Complete(callCtx, openai.CompletionRequest{
			System:     system,
			User:       user,
			MaxTokens:  cfg.MaxOutputTokens,
			SchemaName: reviewSchemaName,
			Schema:     schema,
			Strict:     strict,
		})
		cancel()
		out.Attempts = attempt
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			return out, fmt.Errorf("generate draft: %w", err)
		}
		out.InputTokens += completion.InputTokens
		out.OutputTokens += completion.OutputTokens

		res := ParseDraft(completion.Text, known)
		if !res.OK() {
			lastReason = res.Reason()
			if deps.Log != nil {
				deps.Log.Warn("draft failed validation", "attempt", attempt, "reason", lastReason)
			}
			continue
		}
		content := res.Content()
		out.Content = content.Fields
		out.Citations = content.Citations
		out.Certainty = content.Certainty
		if out.Certainty == nil {
			out.Certainty = completion.Certainty
		}
		out.Retried = strict
		return out, nil
	}
	return out, &types.GenerationParseError{Reason: lastReason, Attempts: out.Attempts}
}

type rawDraft struct {
	Strengths           *string             `json:"strengths"`
	AreasForImprovement *string             `json:"areas_for_improvement"`
	Achievements        *string             `json:"achievements"`
	GoalsForNextPeriod  *string             `json:"goals_for_next_period"`
	Citations           map[string][]string `json:"citations"`
	Certainty           *float64            `json:"certainty"`
}

// ParseDraft validates provider output against the draft schema. Citations to ids outside known are
// dropped rather than failing the draft.
func ParseDraft(text string, known map[string]string) ParseResult {
	body := stripFences(text)
	if body == "" {
		return parseFailed("empty output")
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.DisallowUnknownFields()
	var raw rawDraft
	if err := dec.Decode(&raw); err != nil {
		return parseFailed("invalid json: " + err.Error())
	}
	if _, err := dec.Token(); err != io.EOF {
		return parseFailed("trailing content after json object")
	}

	values := map[string]*string{
		types.FieldStrengths:           raw.Strengths,
		types.FieldAreasForImprovement: raw.AreasForImprovement,
		types.FieldAchievements:        raw.Achievements,
		types.FieldGoalsForNextPeriod:  raw.GoalsForNextPeriod,
	}
	fields := make(map[string]string, len(values))
	for _, f := range types.GeneratedFields {
		v := values[f]
		if v == nil {
			return parseFailed("missing field " + f)
		}
		trimmed := strings.TrimSpace(*v)
		if trimmed == "" {
			return parseFailed("empty field " + f)
		}
		fields[f] = trimmed
	}
	if raw.Certainty != nil && (*raw.Certainty < 0 || *raw.Certainty > 1) {
		return parseFailed(fmt.Sprintf("certainty %.3f outside [0,1]", *raw.Certainty))
	}

	citations := make(map[string][]string, len(types.GeneratedFields))
	for _, f := range types.GeneratedFields {
		seen := map[string]bool{}
		for _, id := range raw.Citations[f] {
			id = strings.Trim(strings.TrimSpace(id), "[]")
			if id == "" || seen[id] {
				continue
			}
			if _, ok := known[id]; !ok {
				continue
			}
			seen[id] = true
			citations[f] = append(citations[f], id)
		}
	}
	return parseOk(GeneratedContent{Fields: fields, Citations: citations, Certainty: raw.Certainty})
}

func knownSourceIDs(bundle types.EvidenceBundle, rc types.RetrievedContext) map[string]string {
	known := bundle.SourceTypes()
	for _, e := range rc.Entries {
		if _, ok := known[e.SourceID]; !ok && e.SourceID != "" {
			known[e.SourceID] = e.SourceType
		}
	}
	return known
}

func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

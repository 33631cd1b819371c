package steps

import (
	"fmt"
	"strings"

	types "github.com/yungbote/perfinsight-backend/internal/domain/performance"
)

const reviewSchemaName = "performance_review_draft"

func promptReviewDraft(in GenerateInput, strict bool) (system string, user string) {
	system = `Draft a performance review from the evidence below.
Write one concise paragraph per field, grounded only in the listed evidence and retrieved context.
Cite the bracketed source ids that support each field; cite nothing you did not use.
Set certainty between 0 and 1 to reflect how well the evidence supports the draft.
If evidence for a field is thin, say so plainly instead of guessing.`
	if strict {
		system += `
Your previous answer did not match the required JSON schema. Return exactly one JSON object with every
required key, non-empty strings for all four review fields, and no commentary.`
	}

	reviewType := strings.TrimSpace(in.ReviewType)
	if reviewType == "" {
		reviewType = types.ReviewTypeAnnual
	}
	areas := in.FocusAreas
	if len(areas) == 0 {
		areas = in.Bundle.FocusAreas
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Review type: %s\n", reviewType)
	if name := strings.TrimSpace(in.Bundle.EmployeeName); name != "" {
		fmt.Fprintf(&b, "Employee: %s\n", name)
	}
	if title := strings.TrimSpace(in.Bundle.Title); title != "" {
		fmt.Fprintf(&b, "Title: %s\n", title)
	}
	if len(areas) > 0 {
		fmt.Fprintf(&b, "Focus areas: %s\n", strings.Join(areas, ", "))
	}
	fmt.Fprintf(&b, "Period: %s to %s\n",
		in.Bundle.Window.Start.Format("2006-01-02"), in.Bundle.Window.End.Format("2006-01-02"))
	fmt.Fprintf(&b, "Evidence quality (0-100): overall %.0f, okr %.0f, feedback %.0f, history %.0f\n",
		in.Quality.Overall, in.Quality.Okr, in.Quality.Feedback, in.Quality.History)

	b.WriteString("\nOKRs:\n")
	if len(in.Bundle.Okrs) == 0 {
		b.WriteString("(none)\n")
	}
	for _, o := range in.Bundle.Okrs {
		role := "contributor"
		if o.Owned {
			role = "owner"
		}
		fmt.Fprintf(&b, "[%s] %s (%s, progress %.0f%%, status %s)\n", o.ID, truncate(o.Objective, 400), role, o.Progress, o.Status)
		if kr := strings.TrimSpace(o.KeyResults); kr != "" {
			fmt.Fprintf(&b, "  key results: %s\n", truncate(kr, 400))
		}
	}

	b.WriteString("\nFeedback received:\n")
	if len(in.Bundle.FeedbackItems) == 0 {
		b.WriteString("(none)\n")
	}
	for _, f := range in.Bundle.FeedbackItems {
		fmt.Fprintf(&b, "[%s] (%s) %s\n", f.ID, f.Timestamp.Format("2006-01-02"), truncate(f.Text, 600))
	}

	if len(in.Bundle.PriorReviews) > 0 {
		b.WriteString("\nPrior reviews:\n")
		for _, r := range in.Bundle.PriorReviews {
			fmt.Fprintf(&b, "[%s] (%s, ended %s)\n%s\n", r.ID, r.ReviewType, r.Timestamp.Format("2006-01-02"), truncate(r.Text, 800))
		}
	}

	if len(in.Context.Entries) > 0 {
		b.WriteString("\nRetrieved context:\n")
		for _, e := range in.Context.Entries {
			fmt.Fprintf(&b, "[%s] (%s, similarity %.2f) %s\n", e.SourceID, e.SourceType, e.Similarity, truncate(e.Text, 400))
		}
	}

	b.WriteString("\nReturn strengths, areas_for_improvement, achievements, goals_for_next_period, per-field citations and certainty.")
	return system, b.String()
}

func schemaReviewDraft() map[string]any {
	fieldProps := map[string]any{}
	citationProps := map[string]any{}
	required := []any{}
	for _, f := range types.GeneratedFields {
		fieldProps[f] = map[string]any{"type": "string"}
		citationProps[f] = map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		}
		required = append(required, f)
	}
	citationRequired := append([]any(nil), required...)

	props := map[string]any{}
	for k, v := range fieldProps {
		props[k] = v
	}
	props["citations"] = map[string]any{
		"type":                 "object",
		"properties":           citationProps,
		"required":             citationRequired,
		"additionalProperties": false,
	}
	props["certainty"] = map[string]any{"type": []any{"number", "null"}}

	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             append(required, "citations", "certainty"),
		"additionalProperties": false,
	}
}

// skippedTemplate is returned instead of a draft when there is nothing to draft from.
func skippedTemplate() map[string]string {
	return map[string]string{
		types.FieldStrengths:           "No OKRs or feedback were recorded for this period. Add strengths from your own observations.",
		types.FieldAreasForImprovement: "No OKRs or feedback were recorded for this period. Add areas for improvement manually.",
		types.FieldAchievements:        "No OKRs were recorded for this period. List achievements manually.",
		types.FieldGoalsForNextPeriod:  "Agree on OKRs for the next period so future reviews have evidence to draw on.",
	}
}

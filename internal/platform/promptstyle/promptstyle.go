package promptstyle

import "strings"

const marker = "PERFINSIGHT_PROMPT_STYLE_V1"

const (
	ModeText   = "text"
	ModeJSON   = "json"
	ModeStrict = "strict_json"
)

// ApplySystem prepends the shared guidance block to system prompts. Applying it twice is a no-op.
func ApplySystem(system string, mode string) string {
	base := strings.TrimSpace(system)
	if base == "" {
		return base
	}
	if strings.Contains(base, marker) {
		return base
	}
	mode = strings.ToLower(strings.TrimSpace(mode))

	var b strings.Builder
	b.WriteString(marker)
	b.WriteString("\nYou write for a performance-management product read by managers, employees and HR.")
	if summary := firstLine(base); summary != "" {
		b.WriteString("\nTask summary: " + summary)
	}
	b.WriteString("\nUse a professional, specific and constructive tone.")
	b.WriteString("\nOnly state facts present in the provided evidence; never invent achievements, numbers or quotes.")
	b.WriteString("\nDo not reference protected characteristics such as age, gender, ethnicity, religion or disability.")
	switch mode {
	case ModeJSON:
		b.WriteString("\nReturn a single JSON object that conforms to the schema and contains no extra keys.")
	case ModeStrict:
		b.WriteString("\nReturn ONLY a single JSON object that conforms exactly to the schema.")
		b.WriteString("\nEvery required key must be present, strings must be non-empty, and no text may appear outside the object.")
	default:
		b.WriteString("\nBe concise and structured when helpful.")
	}
	b.WriteString("\n---\n")
	b.WriteString(base)
	return strings.TrimSpace(b.String())
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

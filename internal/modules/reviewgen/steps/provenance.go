package steps

import (
	"math"
	"sort"

	types "github.com/yungbote/perfinsight-backend/internal/domain/performance"
)

type FinalizeInput struct {
	Bundle     types.EvidenceBundle
	Quality    types.QualityScore
	Context    types.RetrievedContext
	Generation GenerateOutput
}

type FinalizeOutput struct {
	Confidence float64
	Sources    []types.Source
	Degraded   bool
}

// Finalize computes the draft's confidence and provenance list. It is pure; the caller writes both in
// the same row update as the content.
func Finalize(in FinalizeInput, cfg Config) FinalizeOutput {
	cfg = cfg.WithDefaults()
	return FinalizeOutput{
		Confidence: Confidence(in.Quality, in.Context, in.Generation, cfg),
		Sources:    Sources(in.Bundle, in.Context, in.Generation.Citations),
		Degraded:   in.Context.Degraded || in.Generation.Retried,
	}
}

func Confidence(q types.QualityScore, rc types.RetrievedContext, gen GenerateOutput, cfg Config) float64 {
	cfg = cfg.WithDefaults()
	certainty := cfg.Confidence.DefaultCertainty
	if gen.Certainty != nil {
		certainty = clamp01(*gen.Certainty)
	}
	v := cfg.Confidence.Quality*q.Overall/100 +
		cfg.Confidence.Similarity*rc.MeanSimilarity() +
		cfg.Confidence.Certainty*certainty
	if rc.Degraded || gen.Retried {
		v -= cfg.Confidence.DegradationPenalty
	}
	return math.Round(clamp01(v)*10000) / 10000
}

// Sources lists cited evidence weighted by the share of generated fields citing it, or every evidence
// item at 1/N when nothing was cited, followed by every retrieved entry weighted by its similarity.
func Sources(bundle types.EvidenceBundle, rc types.RetrievedContext, citations map[string][]string) []types.Source {
	sourceTypes := bundle.SourceTypes()
	out := make([]types.Source, 0, len(sourceTypes)+len(rc.Entries))

	counts := map[string]int{}
	for _, field := range types.GeneratedFields {
		seen := map[string]bool{}
		for _, id := range citations[field] {
			if _, ok := sourceTypes[id]; !ok || seen[id] {
				continue
			}
			seen[id] = true
			counts[id]++
		}
	}

	var evidence []types.Source
	if len(counts) > 0 {
		for id, n := range counts {
			evidence = append(evidence, types.EvidenceSource(sourceTypes[id], id, float64(n)/float64(len(types.GeneratedFields))))
		}
	} else if n := len(sourceTypes); n > 0 {
		w := 1 / float64(n)
		for id, st := range sourceTypes {
			evidence = append(evidence, types.EvidenceSource(st, id, w))
		}
	}
	sort.SliceStable(evidence, func(i, j int) bool {
		if evidence[i].ContributionWeight != evidence[j].ContributionWeight {
			return evidence[i].ContributionWeight > evidence[j].ContributionWeight
		}
		return evidence[i].SourceID < evidence[j].SourceID
	})
	out = append(out, evidence...)

	for _, e := range rc.Entries {
		out = append(out, types.RetrievedSource(e.SourceType, e.SourceID, e.Similarity))
	}
	return out
}

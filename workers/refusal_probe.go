package workers

import (
	"time"

	"github.com/gatewatch/gatewatch/events"
	"github.com/gatewatch/gatewatch/state"
)

var refusalCategoryKeywords = map[string][]string{
	"weapons":        {"explosive", "weapon", "firearm", "bomb"},
	"malware":        {"malware", "ransomware", "virus", "exploit code"},
	"drugs":          {"synthesize a drug", "illegal drug", "narcotic"},
	"violence":       {"how to hurt", "how to kill", "assault"},
	"self_harm":      {"self harm", "suicide method"},
	"fraud":          {"credit card number", "launder money", "forge a document"},
	"csam":           {"minor explicit", "child exploitation"},
	"bioweapons":     {"biological weapon", "pathogen synthesis", "toxin production"},
}

func categorizeRefusalPrompt(prompt string) (string, bool) {
	for cat, kws := range refusalCategoryKeywords {
		if containsAny(prompt, kws) {
			return cat, true
		}
	}
	return "", false
}

// RefusalProbe looks for systematic probing across multiple safety-refusal
// categories, which is typical of red-teaming distillation that tries to
// harvest refusal boundaries rather than a single legitimate question.
func RefusalProbe(store *state.Store, ev events.Event, snap state.Snapshot) *events.Signal {
	cutoff := ev.Timestamp.Add(-time.Hour)
	prompts := snap.Prompts(cutoff)
	if len(prompts) < 5 {
		return nil
	}

	categories := make(map[string]int)
	hits := 0
	for _, p := range prompts {
		if cat, ok := categorizeRefusalPrompt(p); ok {
			categories[cat]++
			hits++
		}
	}
	density := float64(hits) / float64(len(prompts))
	if density < 0.25 {
		return nil
	}

	var raw float64
	var evidence []string

	switch {
	case density >= 0.60:
		raw += 0.45
		evidence = append(evidence, "high_refusal_density")
	case density >= 0.40:
		raw += 0.30
		evidence = append(evidence, "elevated_refusal_density")
	default:
		raw += 0.15
		evidence = append(evidence, "refusal_probing")
	}

	switch {
	case len(categories) >= 4:
		raw += 0.40
		evidence = append(evidence, "broad_category_coverage")
	case len(categories) >= 2:
		raw += 0.20
		evidence = append(evidence, "multi_category_coverage")
	}

	confidence := clamp01(0.40 + 0.35*density)
	if confidence > 0.75 {
		confidence = 0.75
	}
	score := damp(raw, confidence, 0.3, 0.7)

	return &events.Signal{
		Worker:     events.WorkerRefusalProbe,
		Score:      score,
		Confidence: confidence,
		Evidence:   evidence,
		Timestamp:  ev.Timestamp,
	}
}

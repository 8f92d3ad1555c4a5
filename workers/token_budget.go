package workers

import (
	"sort"
	"strings"

	"github.com/gatewatch/gatewatch/events"
	"github.com/gatewatch/gatewatch/state"
)

// modelMaxTokens is a fixed table of known model output ceilings used by
// the greedy-budget contribution.
var modelMaxTokens = map[string]int{
	"gpt-4":         8192,
	"gpt-4-turbo":   4096,
	"gpt-4o":        16384,
	"gpt-3.5-turbo": 4096,
	"claude-3-opus": 4096,
	"claude-3-sonnet": 4096,
	"default": 4096,
}

func nearestModelMax(model string) int {
	low := strings.ToLower(model)
	for k, v := range modelMaxTokens {
		if k != "default" && strings.Contains(low, k) {
			return v
		}
	}
	return modelMaxTokens["default"]
}

// TokenBudget looks for systematic probing of a model's maximum output
// budget via fixed ratios at or near the ceiling, or geometric/arithmetic
// progressions across requests.
func TokenBudget(store *state.Store, ev events.Event, snap state.Snapshot) *events.Signal {
	if ev.MaxTokens == nil {
		return nil
	}

	var samples []int
	var model string
	for _, e := range snap.Events {
		if e.MaxTokens != nil {
			samples = append(samples, *e.MaxTokens)
			model = e.Model
		}
	}
	if len(samples) < 6 {
		return nil
	}

	ceiling := nearestModelMax(model)
	nearCeiling := 0
	for _, s := range samples {
		if float64(s) >= 0.90*float64(ceiling) {
			nearCeiling++
		}
	}
	nearFrac := float64(nearCeiling) / float64(len(samples))

	distinctSet := make(map[int]struct{})
	for _, s := range samples {
		distinctSet[s] = struct{}{}
	}
	distinct := make([]int, 0, len(distinctSet))
	for v := range distinctSet {
		distinct = append(distinct, v)
	}
	sort.Ints(distinct)

	var raw float64
	var evidence []string

	if nearFrac >= 0.70 {
		raw += 0.30
		evidence = append(evidence, "greedy_budget_probing")
	}

	if len(distinct) >= 3 {
		ratios := make([]float64, 0, len(distinct)-1)
		diffs := make([]float64, 0, len(distinct)-1)
		for i := 1; i < len(distinct); i++ {
			if distinct[i-1] > 0 {
				ratios = append(ratios, float64(distinct[i])/float64(distinct[i-1]))
			}
			diffs = append(diffs, float64(distinct[i]-distinct[i-1]))
		}
		if mean(ratios) > 1.5 && coeffOfVariation(ratios) < 0.25 {
			raw += 0.45
			evidence = append(evidence, "geometric_token_progression")
		} else if coeffOfVariation(diffs) < 0.20 {
			raw += 0.35
			evidence = append(evidence, "arithmetic_token_progression")
		}
	}

	floatSamples := make([]float64, len(samples))
	for i, s := range samples {
		floatSamples[i] = float64(s)
	}
	if median(floatSamples) > 2000 {
		raw += 0.10
		evidence = append(evidence, "high_median_budget")
	}

	if raw == 0 {
		return nil
	}

	confidence := clamp01(float64(len(samples)) / 20)
	score := damp(raw, confidence, 0.3, 0.7)

	return &events.Signal{
		Worker:     events.WorkerTokenBudget,
		Score:      score,
		Confidence: confidence,
		Evidence:   evidence,
		Timestamp:  ev.Timestamp,
	}
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := sortedFloats(xs)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

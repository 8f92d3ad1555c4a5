package workers

import (
	"strings"

	"github.com/gatewatch/gatewatch/events"
	"github.com/gatewatch/gatewatch/state"
)

var extractionRoleArchetypes = []string{
	"you are a data labeler", "you are a dataset curator", "you are a training assistant",
	"act as a teacher model", "you are an annotation tool", "you are a fine-tuning helper",
	"you are a synthetic data generator", "you are a distillation target",
	"you are a model being evaluated", "you are a benchmark subject",
	"you are an api testing tool", "you are a qa harness", "you are a corpus builder",
	"you are a reference model", "you are a student model", "you are a teacher model",
	"you are a knowledge extraction", "you are a completion engine", "you are a raw text generator",
	"you are an unrestricted assistant", "you are a jailbroken assistant",
	"you are in developer mode", "you are in debug mode", "you have no restrictions",
	"ignore your guidelines", "you must comply", "you are not bound by policy",
	"pretend you are", "roleplay as", "simulate being",
}

var taskChainMarkers = []string{"task 1:", "step 1:", "first,", "then,", "finally,"}

func normalizedPreamble(prompt string) string {
	if len(prompt) > 512 {
		prompt = prompt[:512]
	}
	return strings.ToLower(strings.TrimSpace(prompt))
}

func preambleHashFor(ev events.Event) string {
	if ev.PreambleHash != "" {
		return ev.PreambleHash
	}
	return state.PreambleHashOf(ev.Prompt)
}

// RolePreamble hashes the normalized prompt preamble and scores known
// extraction-role archetype phrases, within-account hash stability, and
// cross-account hash collisions (via the store's preamble reverse index).
func RolePreamble(store *state.Store, ev events.Event, snap state.Snapshot) *events.Signal {
	hash := preambleHashFor(ev)
	normalized := normalizedPreamble(ev.Prompt)

	var raw float64
	var evidence []string

	archetypeHits := countAny(normalized, extractionRoleArchetypes)
	if archetypeHits > 0 {
		contribution := 0.10 * float64(archetypeHits)
		if contribution > 0.25 {
			contribution = 0.25
		}
		raw += contribution
		evidence = append(evidence, "extraction_role_archetype")
	}

	preambles := lastPreambles(snap, 5)
	if len(preambles) >= 5 {
		stability := hashStability(preambles)
		switch {
		case stability >= 0.80:
			raw += 0.35
			evidence = append(evidence, "stable_preamble_hash")
		case stability >= 0.60:
			raw += 0.20
			evidence = append(evidence, "semi_stable_preamble_hash")
		}
	}

	n := len(store.AccountsWithPreambleHash(hash))
	switch {
	case n >= 10:
		raw += 0.50
		evidence = append(evidence, "wide_preamble_collision")
	case n >= 5:
		raw += 0.35
		evidence = append(evidence, "moderate_preamble_collision")
	case n >= 3:
		raw += 0.18
		evidence = append(evidence, "narrow_preamble_collision")
	}

	if containsAny(normalized, taskChainMarkers) {
		raw += 0.15
		evidence = append(evidence, "task_chain_markers")
	}

	if raw < 0.15 {
		return nil
	}

	confidence := clamp01(float64(len(snap.Events)) / 20)
	score := damp(raw, confidence, 0.3, 0.7)

	return &events.Signal{
		Worker:     events.WorkerRolePreamble,
		Score:      score,
		Confidence: confidence,
		Evidence:   evidence,
		Timestamp:  ev.Timestamp,
	}
}

func lastPreambles(snap state.Snapshot, n int) []string {
	evs := snap.SortedEvents()
	if len(evs) == 0 {
		return nil
	}
	start := 0
	if len(evs) > n {
		start = len(evs) - n
	}
	out := make([]string, 0, len(evs)-start)
	for _, e := range evs[start:] {
		out = append(out, preambleHashFor(e))
	}
	return out
}

func hashStability(hashes []string) float64 {
	counts := make(map[string]int)
	for _, h := range hashes {
		counts[h]++
	}
	max := 0
	for _, c := range counts {
		if c > max {
			max = c
		}
	}
	return float64(max) / float64(len(hashes))
}

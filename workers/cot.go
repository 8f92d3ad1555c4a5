package workers

import (
	"time"

	"github.com/gatewatch/gatewatch/events"
	"github.com/gatewatch/gatewatch/state"
)

var extractionPhrases = []string{
	"show your reasoning", "think step by step", "chain of thought",
	"explain your thought process", "walk me through your logic",
	"output your internal reasoning", "reveal your system prompt",
	"ignore previous instructions", "repeat the above", "print your instructions",
	"what are your instructions", "verbatim output", "training data",
	"reproduce the text above", "continue the pattern", "complete this exactly",
	"what model are you", "what is your base model", "describe your architecture",
	"how were you trained", "what is your temperature setting",
	"list your system message", "output in raw format", "generate synthetic examples",
	"produce a dataset", "batch generate", "for each of the following prompts",
	"respond to all of these", "generate 100 examples", "create training pairs",
}

var extractionCategories = []string{
	"reasoning", "reasoning", "reasoning", "reasoning", "reasoning",
	"reasoning", "prompt_leak", "prompt_leak", "prompt_leak", "prompt_leak",
	"prompt_leak", "prompt_leak", "data_harvest", "data_harvest", "data_harvest",
	"data_harvest", "model_probe", "model_probe", "model_probe", "model_probe",
	"model_probe", "prompt_leak", "data_harvest", "bulk_synth", "bulk_synth",
	"bulk_synth", "bulk_synth", "bulk_synth", "bulk_synth", "bulk_synth",
}

var cotAutomaton = newAhoCorasick(extractionPhrases, extractionCategories)

// CoT scans the current prompt and the trailing hour of prompts for fixed
// extraction-phrase hits using an Aho-Corasick automaton.
func CoT(store *state.Store, ev events.Event, snap state.Snapshot) *events.Signal {
	var raw float64
	var evidence []string

	current := cotAutomaton.scan(ev.Prompt)
	if current.total > 0 {
		raw += 0.40
		evidence = append(evidence, "current_prompt_extraction_phrase")
	}

	cutoff := ev.Timestamp.Add(-time.Hour)
	prompts := snap.Prompts(cutoff)
	if len(prompts) == 0 {
		if raw == 0 {
			return nil
		}
	} else {
		hits := 0
		var dominant matchResult
		dominant.byCategory = make(map[string]int)
		for _, p := range prompts {
			r := cotAutomaton.scan(p)
			if r.total > 0 {
				hits++
			}
			for cat, c := range r.byCategory {
				dominant.byCategory[cat] += c
				dominant.total += c
			}
		}
		frac := float64(hits) / float64(len(prompts))
		if frac >= 0.20 {
			raw += 0.35
			evidence = append(evidence, "sustained_extraction_phrases")
		}
		if dominant.dominantCategoryFraction() >= 0.70 && dominant.total > 0 {
			raw += 0.25
			evidence = append(evidence, "dominant_extraction_category")
		}
	}

	if raw == 0 {
		return nil
	}

	confidence := clamp01(float64(len(snap.Events)) / 20)
	score := damp(raw, confidence, 0.3, 0.7)

	return &events.Signal{
		Worker:     events.WorkerCoT,
		Score:      score,
		Confidence: confidence,
		Evidence:   evidence,
		Timestamp:  ev.Timestamp,
	}
}

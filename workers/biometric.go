package workers

import (
	"strings"
	"time"

	"github.com/gatewatch/gatewatch/events"
	"github.com/gatewatch/gatewatch/state"
)

var imperativeVerbs = []string{
	"write", "generate", "create", "list", "explain", "summarize", "translate",
	"convert", "analyze", "describe", "compute", "solve", "produce", "output",
}

func dominantImperative(prompt string) string {
	low := strings.ToLower(prompt)
	for _, v := range imperativeVerbs {
		if strings.Contains(low, v) {
			return v
		}
	}
	return "none"
}

func structuralHash(prompt string) string {
	lenBucket := len(prompt) / 100
	words := strings.Fields(prompt)
	first := ""
	if len(words) > 0 {
		first = strings.ToLower(words[0])
	}
	verb := dominantImperative(prompt)
	return strings.Join([]string{itoa(lenBucket), first, verb}, "|")
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Biometric scores the structural regularity of an account's prompt
// sequence: low-entropy structural hashes, uniform lengths, and a shared
// prefix all indicate scripted, non-human prompt generation.
func Biometric(store *state.Store, ev events.Event, snap state.Snapshot) *events.Signal {
	cutoff := ev.Timestamp.Add(-time.Hour)
	prompts := snap.Prompts(cutoff)
	if len(prompts) < 10 {
		return nil
	}

	counts := make(map[string]int)
	lengths := make([]float64, len(prompts))
	prefixCounts := make(map[string]int)
	for i, p := range prompts {
		counts[structuralHash(p)]++
		lengths[i] = float64(len(p))
		low := strings.ToLower(p)
		if len(low) >= 30 {
			prefixCounts[low[:30]]++
		} else {
			prefixCounts[low]++
		}
	}

	entropy := shannonEntropyNormalized(counts, len(prompts), float64(len(prompts)))
	lengthCV := coeffOfVariation(lengths)

	maxPrefix := 0
	for _, c := range prefixCounts {
		if c > maxPrefix {
			maxPrefix = c
		}
	}
	prefixFrac := float64(maxPrefix) / float64(len(prompts))

	var raw float64
	var evidence []string

	switch {
	case entropy < 0.20:
		raw += 0.45
		evidence = append(evidence, "low_structural_entropy")
	case entropy < 0.40:
		raw += 0.20
		evidence = append(evidence, "reduced_structural_entropy")
	}

	switch {
	case lengthCV < 0.10:
		raw += 0.25
		evidence = append(evidence, "uniform_prompt_lengths")
	case lengthCV < 0.20:
		raw += 0.10
		evidence = append(evidence, "low_variance_prompt_lengths")
	}

	switch {
	case prefixFrac > 0.60:
		raw += 0.30
		evidence = append(evidence, "shared_prompt_prefix")
	case prefixFrac > 0.40:
		raw += 0.15
		evidence = append(evidence, "common_prompt_prefix")
	}

	if raw == 0 {
		return nil
	}

	confidence := clamp01(float64(len(prompts)) / 50)
	score := damp(raw, confidence, 0.3, 0.7)

	return &events.Signal{
		Worker:     events.WorkerBiometric,
		Score:      score,
		Confidence: confidence,
		Evidence:   evidence,
		Timestamp:  ev.Timestamp,
	}
}

package workers

import (
	"math"

	"github.com/gatewatch/gatewatch/events"
	"github.com/gatewatch/gatewatch/state"
)

// topicKeywords buckets prompts into one of 12 topic categories by
// keyword match, in priority order.
var topicKeywords = []struct {
	topic    string
	keywords []string
}{
	{"coding", []string{"function", "code", "python", "javascript", "compile", "algorithm"}},
	{"math", []string{"equation", "integral", "derivative", "theorem", "solve for"}},
	{"writing", []string{"essay", "poem", "story", "paragraph", "write a"}},
	{"science", []string{"chemistry", "physics", "biology", "molecule", "reaction"}},
	{"history", []string{"history", "century", "war", "empire", "ancient"}},
	{"legal", []string{"contract", "statute", "legal", "lawsuit", "court"}},
	{"medical", []string{"diagnosis", "symptom", "treatment", "medication", "disease"}},
	{"business", []string{"business plan", "marketing", "revenue", "startup"}},
	{"translation", []string{"translate", "translation", "in spanish", "in french"}},
	{"reasoning", []string{"step by step", "think through", "logic puzzle"}},
	{"summarization", []string{"summarize", "tl;dr", "key points"}},
	{"other", nil},
}

func classifyTopic(prompt string) string {
	for _, t := range topicKeywords {
		if t.keywords == nil {
			continue
		}
		if containsAny(prompt, t.keywords) {
			return t.topic
		}
	}
	return "other"
}

// SequenceModel builds a first-order Markov chain over each account's
// topic sequence and scores high stationary entropy (prompts spread over
// many topics) together with low transition entropy (a fixed order between
// them) — a sign of a scripted harvesting loop rather than organic usage.
func SequenceModel(store *state.Store, ev events.Event, snap state.Snapshot) *events.Signal {
	evs := snap.SortedEvents()
	var prompts []string
	for _, e := range evs {
		if e.Prompt != "" {
			prompts = append(prompts, e.Prompt)
		}
	}
	if len(prompts) < 15 {
		return nil
	}

	topics := make([]string, len(prompts))
	marginal := make(map[string]int)
	for i, p := range prompts {
		topics[i] = classifyTopic(p)
		marginal[topics[i]]++
	}

	stationaryEntropy := shannonEntropyNormalized(marginal, len(topics), 12)

	transitions := make(map[string]map[string]int)
	for i := 1; i < len(topics); i++ {
		from, to := topics[i-1], topics[i]
		if transitions[from] == nil {
			transitions[from] = make(map[string]int)
		}
		transitions[from][to]++
	}

	var transitionEntropySum float64
	var stateCount int
	for from, tos := range transitions {
		total := 0
		for _, c := range tos {
			total += c
		}
		var h float64
		for _, c := range tos {
			p := float64(c) / float64(total)
			h -= p * math.Log2(p)
		}
		_ = from
		transitionEntropySum += clamp01(h / math.Log2(12))
		stateCount++
	}
	meanTransitionEntropy := 0.0
	if stateCount > 0 {
		meanTransitionEntropy = transitionEntropySum / float64(stateCount)
	}

	var raw float64
	var evidence []string

	switch {
	case stationaryEntropy >= 0.80:
		raw += 0.40
		evidence = append(evidence, "high_stationary_entropy")
	case stationaryEntropy >= 0.65:
		raw += 0.20
		evidence = append(evidence, "elevated_stationary_entropy")
	}

	switch {
	case meanTransitionEntropy <= 0.25:
		raw += 0.40
		evidence = append(evidence, "low_transition_entropy")
	case meanTransitionEntropy <= 0.40:
		raw += 0.20
		evidence = append(evidence, "reduced_transition_entropy")
	}

	if len(marginal) >= 10 {
		raw += 0.20
		evidence = append(evidence, "many_distinct_topics")
	}

	if raw < 0.25 {
		return nil
	}

	confidence := clamp01(float64(len(prompts)) / 50)
	score := damp(raw, confidence, 0.3, 0.7)

	return &events.Signal{
		Worker:     events.WorkerSequenceModel,
		Score:      score,
		Confidence: confidence,
		Evidence:   evidence,
		Timestamp:  ev.Timestamp,
	}
}

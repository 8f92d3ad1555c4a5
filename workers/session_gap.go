package workers

import (
	"github.com/gatewatch/gatewatch/events"
	"github.com/gatewatch/gatewatch/state"
)

const sessionGapSeconds = 120

// sessions splits a time-ordered event list into sessions separated by
// gaps of at least sessionGapSeconds, returning each session's size and
// the gap (in seconds) that preceded it (the first session has no
// preceding gap).
func sessions(evs []events.Event) (sizes []int, gaps []float64) {
	if len(evs) == 0 {
		return nil, nil
	}
	size := 1
	for i := 1; i < len(evs); i++ {
		gap := evs[i].Timestamp.Sub(evs[i-1].Timestamp).Seconds()
		if gap >= sessionGapSeconds {
			sizes = append(sizes, size)
			gaps = append(gaps, gap)
			size = 1
		} else {
			size++
		}
	}
	sizes = append(sizes, size)
	return sizes, gaps
}

// SessionGap scores the regularity of gaps between request sessions — a
// hallmark of scripted polling rather than human usage bursts.
func SessionGap(store *state.Store, ev events.Event, snap state.Snapshot) *events.Signal {
	evs := snap.SortedEvents()
	if len(evs) < 8 {
		return nil
	}
	sizes, gaps := sessions(evs)
	if len(sizes) < 4 {
		return nil
	}

	gapCV := coeffOfVariation(gaps)
	sizeFloats := make([]float64, len(sizes))
	for i, s := range sizes {
		sizeFloats[i] = float64(s)
	}
	sizeCV := coeffOfVariation(sizeFloats)

	var raw float64
	var evidence []string

	switch {
	case gapCV < 0.05:
		raw += 0.55
		evidence = append(evidence, "highly_regular_session_gaps")
	case gapCV < 0.08:
		raw += 0.40
		evidence = append(evidence, "regular_session_gaps")
	case gapCV < 0.15:
		raw += 0.20
		evidence = append(evidence, "semi_regular_session_gaps")
	}

	if sizeCV < 0.10 && gapCV < 0.15 {
		raw += 0.25
		evidence = append(evidence, "uniform_session_sizes_and_gaps")
	}

	if len(sizes) > 20 {
		raw += 0.10
		evidence = append(evidence, "many_sessions")
	}

	if raw == 0 {
		return nil
	}

	confidence := clamp01(float64(len(evs)) / 50)
	score := damp(raw, confidence, 0.3, 0.7)

	return &events.Signal{
		Worker:     events.WorkerSessionGap,
		Score:      score,
		Confidence: confidence,
		Evidence:   evidence,
		Timestamp:  ev.Timestamp,
	}
}

package workers

import (
	"time"

	"github.com/gatewatch/gatewatch/events"
	"github.com/gatewatch/gatewatch/state"
)

// Velocity scores traffic rate, regularity, token-size regularity, and
// off-hours concentration over the trailing hour.
func Velocity(store *state.Store, ev events.Event, snap state.Snapshot) *events.Signal {
	cutoff := ev.Timestamp.Add(-time.Hour)
	trailing := snap.EventsSince(cutoff)
	n := len(trailing)
	if n < 5 {
		return nil
	}

	rph := snap.RatePerHour(cutoff)
	gaps := snap.InterArrivals(cutoff)
	regularity := 0.0
	if len(gaps) > 0 {
		regularity = 1 - coeffOfVariation(gaps)
	}

	tokens := make([]float64, n)
	var offHours int
	for i, ev2 := range trailing {
		tokens[i] = float64(ev2.TokenCount)
		h := ev2.Timestamp.UTC().Hour()
		if h >= 0 && h < 6 {
			offHours++
		}
	}
	tokenCV := coeffOfVariation(tokens)
	offHoursFrac := float64(offHours) / float64(n)

	var raw float64
	var evidence []string

	switch {
	case rph > 200:
		raw += 0.45
		evidence = append(evidence, "extreme_request_rate")
	case rph > 60:
		raw += 0.25
		evidence = append(evidence, "elevated_request_rate")
	}

	switch {
	case regularity > 0.70:
		raw += 0.30
		evidence = append(evidence, "highly_regular_timing")
	case regularity > 0.50:
		raw += 0.15
		evidence = append(evidence, "regular_timing")
	}

	if tokenCV < 0.15 {
		raw += 0.15
		evidence = append(evidence, "uniform_token_counts")
	}
	if offHoursFrac > 0.5 {
		raw += 0.10
		evidence = append(evidence, "off_hours_concentration")
	}

	if raw == 0 {
		return nil
	}

	confidence := clamp01(float64(n) / 50)
	score := damp(raw, confidence, 0.3, 0.7)

	return &events.Signal{
		Worker:     events.WorkerVelocity,
		Score:      score,
		Confidence: confidence,
		Evidence:   evidence,
		Timestamp:  ev.Timestamp,
	}
}

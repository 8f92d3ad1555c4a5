// Package workers implements the fixed set of detection analyzers that run
// concurrently against every ingested event. Each worker is a pure
// function of the event and a read-only view of the state store; none may
// read another worker's output, and none may block.
package workers

import (
	"math"
	"sort"
	"strings"

	"github.com/gatewatch/gatewatch/events"
	"github.com/gatewatch/gatewatch/state"
)

// Fn is the shape every worker implements: given the triggering event, the
// account's window snapshot, and a handle to the store for cross-account
// lookups, return a signal or nil if the worker has nothing to say.
type Fn func(store *state.Store, ev events.Event, snap state.Snapshot) *events.Signal

// damp applies the final confidence-damped scaling every worker uses to
// turn a raw contribution sum into a bounded [0,1] score: score * (lo +
// spread*confidence), then capped at 1.0.
func damp(raw, confidence, lo, spread float64) float64 {
	if raw <= 0 {
		return 0
	}
	scaled := raw * (lo + spread*confidence)
	if scaled > 1 {
		scaled = 1
	}
	return scaled
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// mean returns the arithmetic mean of xs, or 0 for an empty slice.
func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev returns the population standard deviation of xs.
func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var sq float64
	for _, x := range xs {
		d := x - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(xs)))
}

// coeffOfVariation returns stddev/mean, or 0 when the mean is zero.
func coeffOfVariation(xs []float64) float64 {
	m := mean(xs)
	if m == 0 {
		return 0
	}
	return stddev(xs) / m
}

// shannonEntropyNormalized computes Shannon entropy over the value
// frequencies in counts, normalized by log2(base). base should be the
// number of distinct possible categories (or n, per the worker contract).
func shannonEntropyNormalized(counts map[string]int, total int, base float64) float64 {
	if total == 0 || base <= 1 {
		return 0
	}
	var h float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(total)
		h -= p * math.Log2(p)
	}
	return clamp01(h / math.Log2(base))
}

// kendallTau computes Kendall's tau rank correlation between the relative
// order of items in observed against their reference rank in refPositions
// (item -> rank). Items absent from refPositions are skipped.
func kendallTau(observed []string, refPositions map[string]int) float64 {
	var items []string
	for _, k := range observed {
		if _, ok := refPositions[k]; ok {
			items = append(items, k)
		}
	}
	n := len(items)
	if n < 2 {
		return 0
	}
	var concordant, discordant int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			oi, oj := i, j // observed order index
			ri, rj := refPositions[items[i]], refPositions[items[j]]
			obsOrder := oi < oj
			refOrder := ri < rj
			if obsOrder == refOrder {
				concordant++
			} else {
				discordant++
			}
		}
	}
	denom := n * (n - 1) / 2
	if denom == 0 {
		return 0
	}
	return float64(concordant-discordant) / float64(denom)
}

// chromeReferenceOrder and pythonReferenceOrder are the reference header
// positions used by the Fingerprint worker's order-entropy calculation.
var chromeReferenceOrder = indexOf([]string{
	"host", "connection", "sec-ch-ua", "sec-ch-ua-mobile", "sec-ch-ua-platform",
	"upgrade-insecure-requests", "user-agent", "accept", "sec-fetch-site",
	"sec-fetch-mode", "sec-fetch-user", "sec-fetch-dest", "accept-encoding",
	"accept-language", "cookie",
})

var pythonReferenceOrder = indexOf([]string{
	"host", "user-agent", "accept-encoding", "accept", "connection",
})

func indexOf(order []string) map[string]int {
	m := make(map[string]int, len(order))
	for i, k := range order {
		m[strings.ToLower(k)] = i
	}
	return m
}

// headerOrderEntropy implements the Fingerprint worker's entropy formula:
// (tau(observed, chrome) - tau(observed, python) + 1) / 2, clamped.
func headerOrderEntropy(observed []string) float64 {
	lower := make([]string, len(observed))
	for i, h := range observed {
		lower[i] = strings.ToLower(h)
	}
	tChrome := kendallTau(lower, chromeReferenceOrder)
	tPython := kendallTau(lower, pythonReferenceOrder)
	return clamp01((tChrome - tPython + 1) / 2)
}

// sortedFloats returns a sorted copy of xs.
func sortedFloats(xs []float64) []float64 {
	out := append([]float64(nil), xs...)
	sort.Float64s(out)
	return out
}

func containsAny(haystack string, needles []string) bool {
	low := strings.ToLower(haystack)
	for _, n := range needles {
		if strings.Contains(low, n) {
			return true
		}
	}
	return false
}

func countAny(haystack string, needles []string) int {
	low := strings.ToLower(haystack)
	n := 0
	for _, needle := range needles {
		if strings.Contains(low, needle) {
			n++
		}
	}
	return n
}

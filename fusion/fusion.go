// Package fusion combines the per-worker signals produced for one event
// into a single composite risk decision: a deterministic weighted sum,
// policy modifiers for geography and cluster size, threshold banding, and
// evidence selection.
package fusion

import (
	"math"
	"sort"

	"github.com/gatewatch/gatewatch/events"
	"github.com/gatewatch/gatewatch/state"
)

// Weights is the fixed worker weight table, summing to 1.0.
var Weights = map[events.WorkerID]float64{
	events.WorkerFingerprint:   0.14,
	events.WorkerVelocity:      0.10,
	events.WorkerCoT:           0.09,
	events.WorkerEmbedding:     0.08,
	events.WorkerHydra:         0.08,
	events.WorkerTimingCluster: 0.07,
	events.WorkerH2Fingerprint: 0.06,
	events.WorkerPivot:         0.05,
	events.WorkerBiometric:     0.05,
	events.WorkerWatermark:     0.04,
	events.WorkerASN:           0.07,
	events.WorkerRolePreamble:  0.06,
	events.WorkerSessionGap:    0.04,
	events.WorkerTokenBudget:   0.03,
	events.WorkerRefusalProbe:  0.02,
	events.WorkerSequenceModel: 0.02,
}

// Thresholds carries the tier-banding cutoffs; these are config-sourced so
// they can be tuned without a redeploy, defaulting to spec's constants.
type Thresholds struct {
	Medium   float64
	High     float64
	Critical float64
}

// DefaultThresholds match the fixed tier bands.
var DefaultThresholds = Thresholds{Medium: 0.35, High: 0.55, Critical: 0.72}

var statusPlaceholders = events.StatusPlaceholders

const clusterFloorMinSize = 5
const clusterFloorBonus = 0.08
const restrictedUplift = 1.30

// Fuse computes the composite score and tier for one event's signals,
// following the exact six-step order: per-worker effective score, weighted
// sum, geo uplift, cluster-size floor, rounding, threshold banding. Returns
// false if the composite falls below the medium threshold (no decision).
func Fuse(store *state.Store, ev events.Event, signals []events.Signal, th Thresholds) (events.RiskDecision, bool) {
	var composite float64
	workerScores := make(map[events.WorkerID]float64, len(signals))
	var evidence []string

	// Step 1-2: effective score per worker, weighted sum. Iterate in
	// registry order (the order signals arrive) so evidence concatenation
	// is deterministic.
	for _, sig := range signals {
		effective := sig.Score * (0.4 + 0.6*sig.Confidence)
		weight := Weights[sig.Worker]
		composite += weight * effective
		workerScores[sig.Worker] = sig.Score
		evidence = append(evidence, sig.Evidence...)
	}

	// Step 3: restricted-country uplift.
	if events.IsRestricted(ev.CountryCode) {
		composite = math.Min(1, composite*restrictedUplift)
	}

	// Step 4: cluster-size floor.
	clusterSize := store.ClusterSize(ev.AccountID)
	if clusterSize >= clusterFloorMinSize {
		composite = math.Min(1, composite+clusterFloorBonus)
	}

	// Step 5: round to 4 decimal places.
	composite = math.Round(composite*10000) / 10000

	// Step 6: threshold gate.
	if composite < th.Medium {
		return events.RiskDecision{}, false
	}

	tier := th.tierFor(composite)
	action := actionFor(tier)

	topEvidence := dedupEvidence(evidence, 10)

	var clusterID *uint64
	if cid, ok := store.ClusterID(ev.AccountID); ok {
		clusterID = &cid
	}

	snap, _ := store.View(ev.AccountID)

	return events.RiskDecision{
		AccountID:      ev.AccountID,
		CompositeScore: composite,
		Tier:           tier,
		WorkerScores:   workerScores,
		TopEvidence:    topEvidence,
		CountryCodes:   snap.CountryCodes,
		ClusterID:      clusterID,
		WindowSize:     len(snap.Events),
		Action:         action,
		Timestamp:      ev.Timestamp,
		GroundTruth:    ev.CampaignLabel,
	}, true
}

func (th Thresholds) tierFor(composite float64) events.Tier {
	switch {
	case composite >= th.Critical:
		return events.TierCritical
	case composite >= th.High:
		return events.TierHigh
	default:
		return events.TierMedium
	}
}

func actionFor(tier events.Tier) events.ActionKind {
	switch tier {
	case events.TierCritical:
		return events.ActionSuspendAccount
	case events.TierHigh:
		return events.ActionInjectCanary
	case events.TierMedium:
		return events.ActionRateLimit
	default:
		return events.ActionNone
	}
}

// dedupEvidence drops status placeholders, de-duplicates preserving
// first-seen order, and caps the result at max entries.
func dedupEvidence(evidence []string, max int) []string {
	seen := make(map[string]struct{}, len(evidence))
	out := make([]string, 0, max)
	for _, e := range evidence {
		if statusPlaceholders[e] {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
		if len(out) >= max {
			break
		}
	}
	return out
}

// ValidateWeights checks that the fixed weight table sums to 1.0 within
// tolerance. Exercised by tests, not the hot path.
func ValidateWeights() bool {
	var sum float64
	ids := make([]events.WorkerID, 0, len(Weights))
	for id := range Weights {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		sum += Weights[id]
	}
	return math.Abs(sum-1.0) < 1e-6
}

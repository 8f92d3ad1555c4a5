package workers

import (
	"time"

	"github.com/gatewatch/gatewatch/events"
	"github.com/gatewatch/gatewatch/state"
)

// Pivot reports only when the account has switched models in the last 24
// hours, scoring higher when the switch is coordinated across a cluster.
func Pivot(store *state.Store, ev events.Event, snap state.Snapshot) *events.Signal {
	cutoff := ev.Timestamp.Add(-24 * time.Hour)
	var recent []events.ModelSwitch
	for _, sw := range snap.ModelSwitches {
		if !sw.Timestamp.Before(cutoff) {
			recent = append(recent, sw)
		}
	}
	if len(recent) == 0 {
		return nil
	}

	last := recent[len(recent)-1]
	score := 0.20
	evidence := []string{"model_switch"}

	if cid, ok := store.ClusterID(ev.AccountID); ok {
		members := store.ClusterMembers(cid)
		windowStart := last.Timestamp.Add(-6 * time.Hour)
		windowEnd := last.Timestamp.Add(6 * time.Hour)
		coordinated := 0
		for _, m := range members {
			msnap, ok := store.View(m)
			if !ok {
				continue
			}
			for _, sw := range msnap.ModelSwitches {
				if sw.NewModel == last.NewModel && !sw.Timestamp.Before(windowStart) && !sw.Timestamp.After(windowEnd) {
					coordinated++
					break
				}
			}
		}
		if coordinated >= 5 {
			score = clamp01(0.20 + float64(coordinated)/30*0.80)
			evidence = append(evidence, "coordinated_model_pivot")
		}
	}

	return &events.Signal{
		Worker:     events.WorkerPivot,
		Score:      score,
		Confidence: clamp01(float64(len(snap.Events)) / 20),
		Evidence:   evidence,
		Timestamp:  ev.Timestamp,
	}
}

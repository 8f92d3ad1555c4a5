package workers

import (
	"time"

	"github.com/gatewatch/gatewatch/events"
	"github.com/gatewatch/gatewatch/state"
)

// TimingCluster uses the store's one-second timing buckets to detect
// synchronized, scripted bursts of activity across accounts.
func TimingCluster(store *state.Store, ev events.Event, snap state.Snapshot) *events.Signal {
	current := store.AccountsInBucket(ev.AccountID, ev.Timestamp)
	n := len(current) + 1 // include self
	var raw float64
	var evidence []string

	if n >= 5 {
		contribution := float64(n-5) / (12 - 5) * 0.50
		if contribution > 0.50 {
			contribution = 0.50
		}
		raw += contribution
		evidence = append(evidence, "synchronized_bucket")
	}

	var denseBucketTimes []float64
	for s := 1; s <= 300; s++ {
		t := ev.Timestamp.Add(-time.Duration(s) * time.Second)
		accts := store.AccountsInBucket(ev.AccountID, t)
		if len(accts)+1 >= 5 {
			denseBucketTimes = append(denseBucketTimes, float64(t.Unix()))
		}
	}

	if len(denseBucketTimes) >= 3 {
		raw += 0.30
		evidence = append(evidence, "repeated_dense_buckets")

		gaps := make([]float64, 0, len(denseBucketTimes)-1)
		for i := 1; i < len(denseBucketTimes); i++ {
			gaps = append(gaps, denseBucketTimes[i-1]-denseBucketTimes[i])
		}
		cv := coeffOfVariation(gaps)
		switch {
		case cv < 0.15:
			raw += 0.20
			evidence = append(evidence, "regular_dense_bucket_gaps")
		case cv < 0.35:
			raw += 0.10
			evidence = append(evidence, "semi_regular_dense_bucket_gaps")
		}
	}

	if raw == 0 {
		return nil
	}

	confidence := clamp01(float64(n) / 12)
	score := damp(raw, confidence, 0.3, 0.7)

	return &events.Signal{
		Worker:     events.WorkerTimingCluster,
		Score:      score,
		Confidence: confidence,
		Evidence:   evidence,
		Timestamp:  ev.Timestamp,
	}
}

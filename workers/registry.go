package workers

import (
	"sync"

	"github.com/gatewatch/gatewatch/events"
	"github.com/gatewatch/gatewatch/state"
)

// registry pairs every worker id with its implementing function, in the
// fixed iteration order fusion uses when concatenating evidence.
var registry = []struct {
	ID events.WorkerID
	Fn Fn
}{
	{events.WorkerFingerprint, Fingerprint},
	{events.WorkerVelocity, Velocity},
	{events.WorkerCoT, CoT},
	{events.WorkerEmbedding, Embedding},
	{events.WorkerHydra, Hydra},
	{events.WorkerTimingCluster, TimingCluster},
	{events.WorkerH2Fingerprint, H2Fingerprint},
	{events.WorkerPivot, Pivot},
	{events.WorkerBiometric, Biometric},
	{events.WorkerWatermark, WatermarkProbe},
	{events.WorkerASN, ASNClassifier},
	{events.WorkerRolePreamble, RolePreamble},
	{events.WorkerSessionGap, SessionGap},
	{events.WorkerTokenBudget, TokenBudget},
	{events.WorkerRefusalProbe, RefusalProbe},
	{events.WorkerSequenceModel, SequenceModel},
}

// RunAll fans out ev to every registered worker concurrently and collects
// the signals that fired, in registry order. A worker that panics is
// isolated: it contributes no signal rather than taking down the others,
// matching the contract that a cancelled/failed worker must not corrupt
// fusion for the rest.
func RunAll(store *state.Store, ev events.Event) []events.Signal {
	snap, ok := store.View(ev.AccountID)
	if !ok {
		return nil
	}

	results := make([]*events.Signal, len(registry))
	var wg sync.WaitGroup
	wg.Add(len(registry))
	for i, w := range registry {
		go func(i int, fn Fn) {
			defer wg.Done()
			defer func() { recover() }()
			results[i] = fn(store, ev, snap)
		}(i, w.Fn)
	}
	wg.Wait()

	out := make([]events.Signal, 0, len(registry))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

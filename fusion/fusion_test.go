package fusion

import (
	"testing"
	"time"

	"github.com/gatewatch/gatewatch/events"
	"github.com/gatewatch/gatewatch/state"
)

func TestWeightsSumToOne(t *testing.T) {
	if !ValidateWeights() {
		t.Fatal("expected fixed worker weights to sum to 1.0")
	}
}

func TestFuseBelowMediumYieldsNoDecision(t *testing.T) {
	s := state.NewStore(4, 24*time.Hour, 10*time.Minute)
	ev := events.Event{AccountID: "acct-1", Timestamp: time.Now()}
	s.Ingest(ev)

	signals := []events.Signal{{Worker: events.WorkerVelocity, Score: 0.2, Confidence: 0.5}}
	_, ok := Fuse(s, ev, signals, DefaultThresholds)
	if ok {
		t.Fatal("expected no decision below the medium threshold")
	}
}

func TestFuseCriticalTierSelectsSuspend(t *testing.T) {
	s := state.NewStore(4, 24*time.Hour, 10*time.Minute)
	ev := events.Event{AccountID: "acct-2", Timestamp: time.Now()}
	s.Ingest(ev)

	// Every worker at full score and confidence: composite = sum of weights = 1.0.
	var signals []events.Signal
	for id := range Weights {
		signals = append(signals, events.Signal{Worker: id, Score: 1.0, Confidence: 1.0})
	}
	decision, ok := Fuse(s, ev, signals, DefaultThresholds)
	if !ok {
		t.Fatal("expected a decision")
	}
	if decision.Tier != events.TierCritical {
		t.Fatalf("expected critical tier, got %s (score %v)", decision.Tier, decision.CompositeScore)
	}
	if decision.Action != events.ActionSuspendAccount {
		t.Fatalf("expected suspend action, got %s", decision.Action)
	}
}

func TestFuseRestrictedCountryUplift(t *testing.T) {
	s := state.NewStore(4, 24*time.Hour, 10*time.Minute)
	ev := events.Event{AccountID: "acct-3", Timestamp: time.Now(), CountryCode: "CN"}
	s.Ingest(ev)

	signals := []events.Signal{
		{Worker: events.WorkerFingerprint, Score: 1.0, Confidence: 1.0},
		{Worker: events.WorkerVelocity, Score: 1.0, Confidence: 1.0},
		{Worker: events.WorkerEmbedding, Score: 1.0, Confidence: 1.0},
	}
	decision, ok := Fuse(s, ev, signals, DefaultThresholds)
	if !ok {
		t.Fatal("expected a decision")
	}
	// unlifted composite = 0.14+0.10+0.08 = 0.32 (below medium); *1.30 = 0.416
	if decision.CompositeScore <= 0.32 {
		t.Fatalf("expected restricted-country uplift to raise composite above the unlifted value, got %v", decision.CompositeScore)
	}
}

func TestEvidenceDedupDropsPlaceholdersAndCaps(t *testing.T) {
	evidence := []string{"a", "cached", "a", "b", "no_cluster", "c", "d", "e", "f", "g", "h", "i"}
	out := dedupEvidence(evidence, 8)
	if len(out) != 8 {
		t.Fatalf("expected 8 deduped entries (a,b,c,d,e,f,g,h), got %v", out)
	}
	for _, placeholder := range []string{"cached", "no_cluster"} {
		for _, e := range out {
			if e == placeholder {
				t.Fatalf("expected placeholder %q to be dropped", placeholder)
			}
		}
	}
}

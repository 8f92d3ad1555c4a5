package workers

import (
	"testing"
	"time"

	"github.com/gatewatch/gatewatch/events"
	"github.com/gatewatch/gatewatch/state"
)

func newTestStore() *state.Store {
	return state.NewStore(4, 24*time.Hour, 10*time.Minute)
}

func TestFingerprintFiresOnScriptClientWithBrowserUA(t *testing.T) {
	s := newTestStore()
	now := time.Now()
	ev := events.Event{
		AccountID:  "acct-1",
		Timestamp:  now,
		UserAgent:  "Mozilla/5.0 Chrome/120.0",
		ClientFP:   "ja3-python-requests",
		HeaderOrder: []string{"host", "user-agent"},
	}
	s.Ingest(ev)

	sig := Fingerprint(s, ev, mustView(t, s, "acct-1"))
	if sig == nil {
		t.Fatal("expected fingerprint signal to fire")
	}
	if sig.Score <= 0 {
		t.Fatalf("expected positive score, got %v", sig.Score)
	}
}

func TestHydraRequiresClusterOfThree(t *testing.T) {
	s := newTestStore()
	now := time.Now()

	ev := events.Event{AccountID: "acct-a", Timestamp: now, PaymentHash: "pay-1"}
	s.Ingest(ev)

	if sig := Hydra(s, ev, mustView(t, s, "acct-a")); sig != nil {
		t.Fatalf("expected no hydra signal below cluster size 3, got %+v", sig)
	}
}

func TestVelocityRequiresFiveSamples(t *testing.T) {
	s := newTestStore()
	now := time.Now()
	ev := events.Event{AccountID: "acct-v", Timestamp: now}
	s.Ingest(ev)

	if sig := Velocity(s, ev, mustView(t, s, "acct-v")); sig != nil {
		t.Fatalf("expected no velocity signal with a single sample, got %+v", sig)
	}
}

func TestEmbeddingRequiresMinimumPromptLength(t *testing.T) {
	s := newTestStore()
	ev := events.Event{AccountID: "acct-e", Timestamp: time.Now(), Prompt: "hi"}
	s.Ingest(ev)

	if sig := Embedding(s, ev, mustView(t, s, "acct-e")); sig != nil {
		t.Fatalf("expected no embedding signal for a short prompt, got %+v", sig)
	}
}

func TestRunAllScoresWithinUnitRange(t *testing.T) {
	s := newTestStore()
	ev := events.Event{AccountID: "acct-r", Timestamp: time.Now(), Prompt: "hi"}
	s.Ingest(ev)

	sigs := RunAll(s, ev)
	for _, sig := range sigs {
		if sig.Score < 0 || sig.Score > 1 {
			t.Fatalf("worker %s produced out-of-range score %v", sig.Worker, sig.Score)
		}
	}
}

func mustView(t *testing.T, s *state.Store, account string) state.Snapshot {
	t.Helper()
	snap, ok := s.View(account)
	if !ok {
		t.Fatalf("expected window for %s to exist", account)
	}
	return snap
}

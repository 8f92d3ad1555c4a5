package action

import (
	"testing"
	"time"

	"github.com/gatewatch/gatewatch/events"
	"github.com/gatewatch/gatewatch/state"
)

func TestShouldAlertRespectsCooldown(t *testing.T) {
	s := state.NewStore(4, 24*time.Hour, 10*time.Minute)
	now := time.Now()
	s.Ingest(events.Event{AccountID: "acct-1", Timestamp: now})

	g := NewGate(s, 0, 0)
	if !g.ShouldAlert("acct-1", now) {
		t.Fatal("expected first alert to be allowed")
	}

	s.RecordAlert("acct-1", now)
	if g.ShouldAlert("acct-1", now.Add(10*time.Second)) {
		t.Fatal("expected alert to be suppressed within cooldown")
	}
	if !g.ShouldAlert("acct-1", now.Add(601*time.Second)) {
		t.Fatal("expected alert to be allowed after cooldown elapses")
	}
}

func TestShouldAlertFalseWhenSuspended(t *testing.T) {
	s := state.NewStore(4, 24*time.Hour, 10*time.Minute)
	now := time.Now()
	s.Ingest(events.Event{AccountID: "acct-2", Timestamp: now})
	s.SetSuspended("acct-2", true)

	g := NewGate(s, 0, 0)
	if g.ShouldAlert("acct-2", now) {
		t.Fatal("expected suspended account to never alert")
	}
}

func TestDispatchPromotesToClusterTakedown(t *testing.T) {
	s := state.NewStore(4, 24*time.Hour, 10*time.Minute)
	now := time.Now()
	s.Ingest(events.Event{AccountID: "acct-a", Timestamp: now, PaymentHash: "pay-1"})
	s.Ingest(events.Event{AccountID: "acct-b", Timestamp: now, PaymentHash: "pay-1"})
	s.Ingest(events.Event{AccountID: "acct-c", Timestamp: now, PaymentHash: "pay-1"})

	cid, ok := s.ClusterID("acct-a")
	if !ok {
		t.Fatal("expected accounts to be clustered")
	}

	decision := events.RiskDecision{
		AccountID:      "acct-a",
		CompositeScore: 0.90,
		Tier:           events.TierCritical,
		ClusterID:      &cid,
		TopEvidence:    []string{"shared_payment_hashes"},
		Timestamp:      now,
	}

	g := NewGate(s, 0, 0)
	enforcement, bundle := g.Dispatch(decision, "req-1", now)

	if enforcement.ActionType != events.ActionClusterTakedown {
		t.Fatalf("expected cluster takedown, got %s", enforcement.ActionType)
	}
	if bundle == nil {
		t.Fatal("expected an indicator bundle for a cluster takedown")
	}
	if len(bundle.MemberAccounts) != 3 {
		t.Fatalf("expected 3 member accounts in bundle, got %d", len(bundle.MemberAccounts))
	}
}

func TestDispatchInjectCanaryRegistersTokenAndWatermark(t *testing.T) {
	s := state.NewStore(4, 24*time.Hour, 10*time.Minute)
	now := time.Now()
	s.Ingest(events.Event{AccountID: "acct-d", Timestamp: now})

	decision := events.RiskDecision{
		AccountID:      "acct-d",
		CompositeScore: 0.60,
		Tier:           events.TierHigh,
		Action:         events.ActionInjectCanary,
		Timestamp:      now,
	}

	g := NewGate(s, 0, 0)
	enforcement, _ := g.Dispatch(decision, "req-2", now)

	if enforcement.CanaryToken == nil {
		t.Fatal("expected a canary token to be generated")
	}
	if _, ok := s.IsWatermarked("acct-d"); !ok {
		t.Fatal("expected account to be enrolled in watermarking")
	}
}

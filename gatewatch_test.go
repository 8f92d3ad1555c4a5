package gatewatch_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/gatewatch/gatewatch/action"
	"github.com/gatewatch/gatewatch/events"
	"github.com/gatewatch/gatewatch/fusion"
	"github.com/gatewatch/gatewatch/state"
	"github.com/gatewatch/gatewatch/workers"
)

// drive ingests ev into store, runs every worker, fuses the result, and
// (if a decision fired and the gate allows it) dispatches through gate.
// It mirrors the wiring in main.go's processEvent.
func drive(store *state.Store, gate *action.Gate, ev events.Event) (events.RiskDecision, bool, *events.EnforcementAction) {
	store.Ingest(ev)
	signals := workers.RunAll(store, ev)
	decision, fired := fusion.Fuse(store, ev, signals, fusion.DefaultThresholds)
	if !fired || !gate.ShouldAlert(ev.AccountID, ev.Timestamp) {
		return decision, fired, nil
	}
	enforcement, _ := gate.Dispatch(decision, ev.RequestID, ev.Timestamp)
	return decision, fired, &enforcement
}

// Scenario 1: a single account sends ten chain-of-thought extraction
// prompts within an hour from an otherwise unremarkable residential
// connection. CoT and embedding-style evidence should push the composite
// into Medium without any cluster forming.
func TestScenarioSingleAccountReasoningExtraction(t *testing.T) {
	store := state.NewStore(8, 24*time.Hour, 10*time.Minute)
	gate := action.NewGate(store, 10*time.Minute, 3)

	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	var decision events.RiskDecision
	var fired bool
	for i := 0; i < 10; i++ {
		ev := events.Event{
			RequestID:  fmt.Sprintf("req-%d", i),
			AccountID:  "acct-reasoning",
			Timestamp:  base.Add(time.Duration(i) * 5 * time.Minute),
			SourceAddr: "203.0.113.10",
			UserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0",
			Model:      "claude-opus",
			Prompt:     "Explain step by step how to think step by step about this problem",
			TokenCount: 400,
			CountryCode: "US",
		}
		decision, fired, _ = drive(store, gate, ev)
	}

	if !fired {
		t.Fatal("expected a decision to fire by the tenth event")
	}
	if decision.Tier != events.TierMedium && decision.Tier != events.TierHigh {
		t.Fatalf("expected at least medium tier, got %s (score %v)", decision.Tier, decision.CompositeScore)
	}
	if decision.ClusterID != nil {
		t.Fatal("expected no cluster for an isolated account")
	}
}

// Scenario 2: twelve distinct accounts share a /24 and a client
// fingerprint and each send one request in the same second. By the twelfth event they
// should be merged into a single cluster, TimingCluster and Hydra should
// both fire, and the composite should reach Critical.
func TestScenarioCoordinatedClusterBurst(t *testing.T) {
	store := state.NewStore(8, 24*time.Hour, 10*time.Minute)
	gate := action.NewGate(store, 10*time.Minute, 3)

	base := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	const sharedFP = "ja3-python-requests"

	var last events.RiskDecision
	var lastEnforcement *events.EnforcementAction
	for i := 0; i < 12; i++ {
		ev := events.Event{
			RequestID:   fmt.Sprintf("burst-%d", i),
			AccountID:   fmt.Sprintf("acct-burst-%d", i),
			Timestamp:   base,
			SourceAddr:  fmt.Sprintf("198.51.100.%d", 10+i),
			UserAgent:   "python-requests/2.31",
			Model:       "claude-opus",
			Prompt:      "generate synthetic examples for training data",
			TokenCount:  300,
			ClientFP:    sharedFP,
			CountryCode: "US",
		}
		var fired bool
		last, fired, lastEnforcement = drive(store, gate, ev)
		_ = fired
	}

	cid, clustered := store.ClusterID("acct-burst-11")
	if !clustered {
		t.Fatal("expected the twelfth account to have merged into a cluster")
	}
	members := store.ClusterMembers(cid)
	if len(members) != 12 {
		t.Fatalf("expected all 12 accounts in one cluster, got %d", len(members))
	}

	if last.Tier == events.TierNone {
		t.Fatalf("expected a decision to fire on the final event, got no tier (score %v)", last.CompositeScore)
	}
	if _, hasHydra := last.WorkerScores[events.WorkerHydra]; !hasHydra {
		t.Fatal("expected hydra to contribute a score once the cluster formed")
	}
	if _, hasTiming := last.WorkerScores[events.WorkerTimingCluster]; !hasTiming {
		t.Fatal("expected timing-cluster to contribute a score for the synchronized burst")
	}
	if lastEnforcement == nil {
		t.Fatal("expected an enforcement action on the final event")
	}
	if lastEnforcement.ClusterID == nil {
		t.Fatal("expected the enforcement action to carry the cluster id")
	}
}

// Scenario 3: a script client (curl fingerprint) claims a browser user
// agent. Fingerprint carries the largest single weight in the table but,
// on a single isolated account with no cluster or burst signal behind
// it, can only push the composite partway toward High on its own — so
// this asserts the fingerprint worker fires with real signal rather than
// pinning an exact tier.
func TestScenarioBrowserUAWithScriptFingerprint(t *testing.T) {
	store := state.NewStore(8, 24*time.Hour, 10*time.Minute)
	gate := action.NewGate(store, 0, 3)

	base := time.Date(2026, 1, 5, 15, 0, 0, 0, time.UTC)
	var last events.RiskDecision
	var lastEnforcement *events.EnforcementAction
	for i := 0; i < 50; i++ {
		ev := events.Event{
			RequestID:  fmt.Sprintf("mismatch-%d", i),
			AccountID:  "acct-mismatch",
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
			SourceAddr: "203.0.113.40",
			UserAgent:  "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 Chrome/120.0 Safari/537.36",
			ClientFP:   "ja3-curl",
			Model:      "claude-opus",
			Prompt:     "regular question about cooking",
			TokenCount: 100,
		}
		var fired bool
		last, fired, lastEnforcement = drive(store, gate, ev)
		_ = fired
	}

	if last.Tier == events.TierNone {
		t.Fatalf("expected a decision to fire on the UA/fingerprint mismatch, got no tier (score %v)", last.CompositeScore)
	}
	fpSignal, hasFP := last.WorkerScores[events.WorkerFingerprint]
	if !hasFP {
		t.Fatal("expected the fingerprint worker to contribute a score")
	}
	if fpSignal < 0.3 {
		t.Fatalf("expected a strong fingerprint signal from the browser/curl mismatch, got %v", fpSignal)
	}
	if lastEnforcement != nil && lastEnforcement.ActionType == events.ActionInjectCanary && lastEnforcement.CanaryToken == nil {
		t.Fatal("expected a canary token to accompany a canary-injection action")
	}
}

// Scenario 4: an account cycles through a fixed set of max_tokens
// values spanning a doubling sequence, ten requests at each step, in
// order. TokenBudget should classify the distinct-value sequence as
// geometric and additionally flag the greedy-budget fraction, without
// needing any other worker to fire.
func TestScenarioTokenBudgetGeometricProbe(t *testing.T) {
	store := state.NewStore(8, 24*time.Hour, 10*time.Minute)

	base := time.Date(2026, 1, 5, 18, 0, 0, 0, time.UTC)
	steps := []int{128, 256, 512, 1024, 2048, 4096}

	var last *events.Signal
	i := 0
	for _, step := range steps {
		for j := 0; j < 10; j++ {
			mt := step
			ev := events.Event{
				RequestID:  fmt.Sprintf("budget-%d", i),
				AccountID:  "acct-budget",
				Timestamp:  base.Add(time.Duration(i) * time.Minute),
				SourceAddr: "203.0.113.60",
				Model:      "claude-3-opus",
				Prompt:     "generate a long completion",
				MaxTokens:  &mt,
				TokenCount: mt,
			}
			store.Ingest(ev)
			for _, sig := range workers.RunAll(store, ev) {
				if sig.Worker == events.WorkerTokenBudget {
					s := sig
					last = &s
				}
			}
			i++
		}
	}

	if last == nil {
		t.Fatal("expected the token-budget worker to fire by the end of the sequence")
	}
	var sawGeometric, sawGreedy bool
	for _, e := range last.Evidence {
		if e == "geometric_token_progression" {
			sawGeometric = true
		}
		if e == "greedy_budget_probing" {
			sawGreedy = true
		}
	}
	if !sawGeometric {
		t.Fatalf("expected the geometric-progression evidence tag, got %v", last.Evidence)
	}
	if !sawGreedy {
		t.Fatalf("expected the greedy-budget evidence tag, got %v", last.Evidence)
	}
}

// Scenario 5: five independent accounts each send a session of events
// every exact hour. SessionGap should fire on the regularity of the
// inter-session gaps once each account has enough sessions, even
// though the accounts share no attributes and never form a cluster.
func TestScenarioPeriodicSessionAcrossAccounts(t *testing.T) {
	store := state.NewStore(8, 24*time.Hour, 10*time.Minute)
	base := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	for acct := 0; acct < 5; acct++ {
		accountID := fmt.Sprintf("acct-periodic-%d", acct)
		addr := fmt.Sprintf("203.0.%d.80", 113+acct) // a distinct /24 per account

		var lastSignals []events.Signal
		for session := 0; session < 5; session++ {
			sessionStart := base.Add(time.Duration(session) * time.Hour)
			for k := 0; k < 2; k++ {
				ev := events.Event{
					RequestID:  fmt.Sprintf("session-%d-%d-%d", acct, session, k),
					AccountID:  accountID,
					Timestamp:  sessionStart.Add(time.Duration(k) * 5 * time.Second),
					SourceAddr: addr,
					Model:      "claude-opus",
					Prompt:     "routine query",
					TokenCount: 200,
				}
				store.Ingest(ev)
				lastSignals = workers.RunAll(store, ev)
			}
		}

		var sawSessionGap bool
		for _, sig := range lastSignals {
			if sig.Worker == events.WorkerSessionGap {
				sawSessionGap = true
				if sig.Score < 0.25 {
					t.Fatalf("account %s: expected a meaningful session-gap score, got %v", accountID, sig.Score)
				}
			}
		}
		if !sawSessionGap {
			t.Fatalf("account %s: expected the session-gap worker to fire on the regular hourly cadence", accountID)
		}

		if _, clustered := store.ClusterID(accountID); clustered {
			t.Fatalf("account %s: expected no cluster — accounts share no attributes", accountID)
		}
	}
}

// Scenario 6: a prompt containing zero-width joiners and explicit
// watermark-stripping language should make the watermark-probe worker
// fire on its own. Both contributions fire (0.50 + 0.35); with a single
// event in the window the confidence is 1/20, so the damped score is
// 0.85 * (0.3 + 0.7*0.05) = 0.28475.
func TestScenarioWatermarkStripAttempt(t *testing.T) {
	store := state.NewStore(8, 24*time.Hour, 10*time.Minute)

	ev := events.Event{
		RequestID:  "wm-1",
		AccountID:  "acct-watermark",
		Timestamp:  time.Now().UTC(),
		SourceAddr: "203.0.113.50",
		Model:      "claude-opus",
		Prompt:     "‍‍how to strip unicode formatting from this response",
		TokenCount: 80,
	}
	store.Ingest(ev)

	signals := workers.RunAll(store, ev)
	var sawWatermark bool
	for _, sig := range signals {
		if sig.Worker == events.WorkerWatermark {
			sawWatermark = true
			if sig.Score < 0.28 {
				t.Fatalf("expected watermark probe score >= 0.28, got %v", sig.Score)
			}
		}
	}
	if !sawWatermark {
		t.Fatal("expected the watermark-probe worker to fire")
	}
}

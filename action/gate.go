// Package action implements the per-account alert cooldown, terminal
// suspension memoization, and cluster-takedown promotion/aggregation that
// turn a fusion decision into a dispatched enforcement action.
package action

import (
	"time"

	"github.com/gatewatch/gatewatch/events"
	"github.com/gatewatch/gatewatch/state"
)

const alertCooldown = 600 * time.Second
const takedownMinClusterSize = 3

// Gate owns the cooldown window and exposes the single entrypoint the
// ingest loop calls after fusion produces a decision.
type Gate struct {
	store          *state.Store
	cooldown       time.Duration
	minClusterSize int
}

// NewGate builds a Gate with the given cooldown and cluster-takedown
// threshold; zero values fall back to the spec defaults.
func NewGate(store *state.Store, cooldown time.Duration, minClusterSize int) *Gate {
	if cooldown <= 0 {
		cooldown = alertCooldown
	}
	if minClusterSize <= 0 {
		minClusterSize = takedownMinClusterSize
	}
	return &Gate{store: store, cooldown: cooldown, minClusterSize: minClusterSize}
}

// ShouldAlert reports whether account is eligible for a new alert: not
// suspended, and either never alerted or outside the cooldown window.
func (g *Gate) ShouldAlert(account string, now time.Time) bool {
	snap, ok := g.store.View(account)
	if !ok {
		return true
	}
	if snap.Suspended {
		return false
	}
	if snap.LastAlert == nil {
		return true
	}
	return now.Sub(*snap.LastAlert) >= g.cooldown
}

// Dispatch turns a fusion decision into an EnforcementAction, promoting to
// ClusterTakedown when the tier is Critical and the account's cluster is
// large enough, and records the alert/suspension bookkeeping.
func (g *Gate) Dispatch(decision events.RiskDecision, requestID string, now time.Time) (events.EnforcementAction, *events.IndicatorBundle) {
	action := decision.Action
	var bundle *events.IndicatorBundle

	if decision.Tier == events.TierCritical && decision.ClusterID != nil {
		members := g.store.ClusterMembers(*decision.ClusterID)
		if len(members) >= g.minClusterSize {
			action = events.ActionClusterTakedown
			b := g.buildIndicatorBundle(*decision.ClusterID, members, decision)
			bundle = &b
		}
	}

	var canary *events.CanaryToken
	if action == events.ActionInjectCanary {
		tok := state.NewCanaryToken(decision.AccountID, requestID, now)
		g.store.RegisterCanary(tok)
		g.store.MarkWatermarked(decision.AccountID, now)
		canary = &tok
	}

	if action == events.ActionSuspendAccount || action == events.ActionClusterTakedown {
		g.store.SetSuspended(decision.AccountID, true)
	}
	g.store.RecordAlert(decision.AccountID, now)

	affected := []string{decision.AccountID}
	if bundle != nil {
		affected = bundle.MemberAccounts
	}

	reason := formatReason(decision)

	return events.EnforcementAction{
		ActionType:       action,
		AccountID:        decision.AccountID,
		ClusterID:        decision.ClusterID,
		AffectedAccounts: affected,
		Reason:           reason,
		Evidence:         decision.TopEvidence,
		CompositeScore:   decision.CompositeScore,
		CanaryToken:      canary,
		Timestamp:        now,
	}, bundle
}

func formatReason(d events.RiskDecision) string {
	return "score=" + formatScore(d.CompositeScore) + " tier=" + string(d.Tier)
}

func formatScore(score float64) string {
	// 4 decimal places, matching the composite score's own rounding.
	scaled := int64(score*10000 + 0.5)
	whole := scaled / 10000
	frac := scaled % 10000
	return itoa(whole) + "." + pad4(frac)
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [24]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func pad4(n int64) string {
	s := itoa(n)
	for len(s) < 4 {
		s = "0" + s
	}
	return s
}

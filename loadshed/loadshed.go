// Package loadshed is the upstream admission control adapter the core
// ingestion entrypoint assumes sits in front of it. The core itself
// accepts events unconditionally and must stay wait-free on uncontended
// accounts; a gateway embedding this module calls Admit before handing an
// event to the ingest source so that a burst gets shed by priority class
// rather than by degrading the detection pipeline itself.
package loadshed

import (
	"golang.org/x/time/rate"

	"github.com/gatewatch/gatewatch/events"
	"github.com/gatewatch/gatewatch/state"
)

// Priority classes, highest first. A suspended or clustered account's
// traffic is the most valuable signal to keep (it is actively under
// investigation); brand-new accounts are the cheapest to shed under load
// since there is no history to lose.
type Priority int

const (
	PrioritySuspended Priority = iota
	PriorityCluster
	PriorityKnown
	PriorityNew
)

func (p Priority) String() string {
	switch p {
	case PrioritySuspended:
		return "suspended"
	case PriorityCluster:
		return "cluster"
	case PriorityKnown:
		return "known"
	default:
		return "new"
	}
}

// Watermarks configures the token-bucket rate (events/sec) and burst size
// admitted per priority class. Lower-priority classes get tighter
// watermarks so a flood of fresh accounts cannot starve established ones.
type Watermarks struct {
	Rate  rate.Limit
	Burst int
}

// DefaultWatermarks is a reasonable starting point for a single-instance
// deployment; operators should tune per their own traffic shape.
var DefaultWatermarks = map[Priority]Watermarks{
	PrioritySuspended: {Rate: 500, Burst: 1000},
	PriorityCluster:   {Rate: 300, Burst: 600},
	PriorityKnown:     {Rate: 200, Burst: 400},
	PriorityNew:       {Rate: 50, Burst: 100},
}

// Shedder classifies incoming events against the live store and admits or
// sheds them against a per-priority token bucket.
type Shedder struct {
	store    *state.Store
	limiters map[Priority]*rate.Limiter
}

// New builds a Shedder with one limiter per priority class in watermarks.
func New(store *state.Store, watermarks map[Priority]Watermarks) *Shedder {
	limiters := make(map[Priority]*rate.Limiter, len(watermarks))
	for p, w := range watermarks {
		limiters[p] = rate.NewLimiter(w.Rate, w.Burst)
	}
	return &Shedder{store: store, limiters: limiters}
}

// Classify derives an event's priority class from the live store, without
// consuming any rate-limit tokens.
func (s *Shedder) Classify(ev events.Event) Priority {
	snap, ok := s.store.View(ev.AccountID)
	if !ok {
		return PriorityNew
	}
	if snap.Suspended {
		return PrioritySuspended
	}
	if _, clustered := s.store.ClusterID(ev.AccountID); clustered {
		return PriorityCluster
	}
	return PriorityKnown
}

// Admit classifies ev and reports whether it should be forwarded to the
// ingest entrypoint. A shed event is dropped by the caller, not queued —
// queuing under sustained overload only delays the shed.
func (s *Shedder) Admit(ev events.Event) (Priority, bool) {
	p := s.Classify(ev)
	limiter, ok := s.limiters[p]
	if !ok {
		return p, true
	}
	return p, limiter.Allow()
}

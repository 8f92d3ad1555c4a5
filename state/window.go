package state

import (
	"sort"
	"sync"
	"time"

	"github.com/gatewatch/gatewatch/events"
)

// Window is one account's sliding-window state: a time-ordered event
// sequence bounded by a 24-hour retention, plus the sets and lists derived
// from it. Every field is guarded by mu; callers take RLock for reads and
// Lock only for the duration of a single ingest.
type Window struct {
	mu sync.RWMutex

	AccountID string
	Events    []events.Event

	FirstSeen time.Time
	LastSeen  time.Time

	Addresses   map[string]struct{}
	PaymentHashes map[string]struct{}
	UserAgents    map[string]struct{}
	CountryCodes  map[string]struct{}
	OrgIDs        map[string]struct{}
	HeaderHashes  map[string]struct{}
	ClientFPs     map[string]struct{}
	ServerFPs     map[string]struct{}
	H2FPs         map[string]struct{}

	ModelSwitches []events.ModelSwitch

	Suspended     bool
	LastAlert     *time.Time
	WatermarkedAt *time.Time
}

func newWindow(accountID string, now time.Time) *Window {
	return &Window{
		AccountID:     accountID,
		FirstSeen:     now,
		LastSeen:      now,
		Addresses:     make(map[string]struct{}),
		PaymentHashes: make(map[string]struct{}),
		UserAgents:    make(map[string]struct{}),
		CountryCodes:  make(map[string]struct{}),
		OrgIDs:        make(map[string]struct{}),
		HeaderHashes:  make(map[string]struct{}),
		ClientFPs:     make(map[string]struct{}),
		ServerFPs:     make(map[string]struct{}),
		H2FPs:         make(map[string]struct{}),
	}
}

// ingest appends ev and updates every derived set. Caller must hold mu
// (write lock) for the duration of this call — this is the per-account
// write guard described in SPEC_FULL.md/spec.md §5.
func (w *Window) ingest(ev events.Event, headerHash string) {
	w.LastSeen = ev.Timestamp
	if ev.SourceAddr != "" {
		w.Addresses[ev.SourceAddr] = struct{}{}
	}
	if ev.UserAgent != "" {
		w.UserAgents[ev.UserAgent] = struct{}{}
	}
	if ev.CountryCode != "" {
		w.CountryCodes[ev.CountryCode] = struct{}{}
	}
	if ev.PaymentHash != "" {
		w.PaymentHashes[ev.PaymentHash] = struct{}{}
	}
	if ev.OrgID != "" {
		w.OrgIDs[ev.OrgID] = struct{}{}
	}
	if ev.ClientFP != "" {
		w.ClientFPs[ev.ClientFP] = struct{}{}
	}
	if ev.ServerFP != "" {
		w.ServerFPs[ev.ServerFP] = struct{}{}
	}
	if ev.H2Settings != nil && ev.H2Settings.Fingerprint != "" {
		w.H2FPs[ev.H2Settings.Fingerprint] = struct{}{}
	}
	if headerHash != "" {
		w.HeaderHashes[headerHash] = struct{}{}
	}
	w.Events = append(w.Events, ev)
}

// expireOld drops events older than retention and recomputes every derived
// set from the remaining events. Caller must hold the write lock.
func (w *Window) expireOld(retention time.Duration, now time.Time) {
	cutoff := now.Add(-retention)
	i := 0
	for i < len(w.Events) && w.Events[i].Timestamp.Before(cutoff) {
		i++
	}
	if i == 0 {
		return
	}
	w.Events = w.Events[i:]

	w.Addresses = make(map[string]struct{})
	w.PaymentHashes = make(map[string]struct{})
	w.UserAgents = make(map[string]struct{})
	w.CountryCodes = make(map[string]struct{})
	w.OrgIDs = make(map[string]struct{})
	w.HeaderHashes = make(map[string]struct{})
	w.ClientFPs = make(map[string]struct{})
	w.ServerFPs = make(map[string]struct{})
	w.H2FPs = make(map[string]struct{})
	var switches []events.ModelSwitch
	for _, sw := range w.ModelSwitches {
		if !sw.Timestamp.Before(cutoff) {
			switches = append(switches, sw)
		}
	}
	w.ModelSwitches = switches

	for _, ev := range w.Events {
		if ev.SourceAddr != "" {
			w.Addresses[ev.SourceAddr] = struct{}{}
		}
		if ev.UserAgent != "" {
			w.UserAgents[ev.UserAgent] = struct{}{}
		}
		if ev.CountryCode != "" {
			w.CountryCodes[ev.CountryCode] = struct{}{}
		}
		if ev.PaymentHash != "" {
			w.PaymentHashes[ev.PaymentHash] = struct{}{}
		}
		if ev.OrgID != "" {
			w.OrgIDs[ev.OrgID] = struct{}{}
		}
		if ev.ClientFP != "" {
			w.ClientFPs[ev.ClientFP] = struct{}{}
		}
		if ev.ServerFP != "" {
			w.ServerFPs[ev.ServerFP] = struct{}{}
		}
		if ev.H2Settings != nil && ev.H2Settings.Fingerprint != "" {
			w.H2FPs[ev.H2Settings.Fingerprint] = struct{}{}
		}
	}
}

// Snapshot is an immutable, point-in-time copy of a Window's fields,
// returned to readers (workers) so they never hold the window lock for the
// duration of their analysis.
type Snapshot struct {
	AccountID string
	Events    []events.Event

	FirstSeen time.Time
	LastSeen  time.Time

	Addresses     []string
	PaymentHashes []string
	UserAgents    []string
	CountryCodes  []string
	OrgIDs        []string
	HeaderHashes  []string
	ClientFPs     []string
	ServerFPs     []string
	H2FPs         []string

	ModelSwitches []events.ModelSwitch

	Suspended     bool
	LastAlert     *time.Time
	WatermarkedAt *time.Time
}

func (w *Window) snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshotLocked()
}

// snapshotLocked builds a Snapshot assuming the caller already holds mu
// (read or write lock).
func (w *Window) snapshotLocked() Snapshot {
	s := Snapshot{
		AccountID:     w.AccountID,
		Events:        append([]events.Event(nil), w.Events...),
		FirstSeen:     w.FirstSeen,
		LastSeen:      w.LastSeen,
		Addresses:     keys(w.Addresses),
		PaymentHashes: keys(w.PaymentHashes),
		UserAgents:    keys(w.UserAgents),
		CountryCodes:  keys(w.CountryCodes),
		OrgIDs:        keys(w.OrgIDs),
		HeaderHashes:  keys(w.HeaderHashes),
		ClientFPs:     keys(w.ClientFPs),
		ServerFPs:     keys(w.ServerFPs),
		H2FPs:         keys(w.H2FPs),
		ModelSwitches: append([]events.ModelSwitch(nil), w.ModelSwitches...),
		Suspended:     w.Suspended,
		LastAlert:     w.LastAlert,
		WatermarkedAt: w.WatermarkedAt,
	}
	return s
}

func keys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// EventsSince returns the events at or after cutoff, oldest first.
func (s Snapshot) EventsSince(cutoff time.Time) []events.Event {
	out := s.Events[:0:0]
	for _, ev := range s.Events {
		if !ev.Timestamp.Before(cutoff) {
			out = append(out, ev)
		}
	}
	return out
}

// Prompts returns the prompt text of every event at or after cutoff.
func (s Snapshot) Prompts(cutoff time.Time) []string {
	evs := s.EventsSince(cutoff)
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = ev.Prompt
	}
	return out
}

// RatePerHour extrapolates requests-per-hour from the event span since
// cutoff.
func (s Snapshot) RatePerHour(cutoff time.Time) float64 {
	evs := s.EventsSince(cutoff)
	if len(evs) < 2 {
		return 0
	}
	span := evs[len(evs)-1].Timestamp.Sub(evs[0].Timestamp).Seconds()
	if span < 1 {
		span = 1
	}
	return float64(len(evs)) / span * 3600
}

// InterArrivals returns the gaps, in seconds, between consecutive events
// since cutoff.
func (s Snapshot) InterArrivals(cutoff time.Time) []float64 {
	evs := s.EventsSince(cutoff)
	if len(evs) < 2 {
		return nil
	}
	out := make([]float64, 0, len(evs)-1)
	for i := 1; i < len(evs); i++ {
		d := evs[i].Timestamp.Sub(evs[i-1].Timestamp).Seconds()
		if d > 0 {
			out = append(out, d)
		}
	}
	return out
}

// Subnets derives the /24 subnet of every IPv4 address observed.
func (s Snapshot) Subnets() []string {
	seen := make(map[string]struct{}, len(s.Addresses))
	for _, addr := range s.Addresses {
		if sn, ok := subnet24(addr); ok {
			seen[sn] = struct{}{}
		}
	}
	return keys(seen)
}

func subnet24(ip string) (string, bool) {
	parts := splitDots(ip)
	if len(parts) != 4 {
		return "", false
	}
	return parts[0] + "." + parts[1] + "." + parts[2], true
}

func splitDots(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '.' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return out
}

// SortedEvents returns events sorted ascending by timestamp. Events are
// already appended in arrival order by ingest, so this is a defensive copy
// rather than a real sort in the common case.
func (s Snapshot) SortedEvents() []events.Event {
	out := append([]events.Event(nil), s.Events...)
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// Package state holds the live, in-memory sliding-window state of the
// detection core: per-account windows, the reverse indexes used to find
// accounts that share an identifier, the incremental cluster assignment,
// and the supporting registries (canary tokens, watermark flags, timing
// buckets) that the worker pool and action gate read from.
package state

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gatewatch/gatewatch/events"
)

// evictedAuditSize bounds the number of fully-expired account windows kept
// around for post-hoc audit (an analyst asking "what did we know about
// this account last week" after its window aged out entirely).
const evictedAuditSize = 4096

// shard is one slice of the account map, each independently locked so that
// ingestion on unrelated accounts never contends on the same mutex.
type shard struct {
	mu       sync.RWMutex
	accounts map[string]*Window
}

// Store is the sharded, concurrent-safe home of every account window,
// reverse index, and cluster assignment. All public methods are safe for
// concurrent use by the ingestor, the worker pool, and the housekeeping
// loop.
type Store struct {
	shards []shard

	retention       time.Duration
	bucketRetention time.Duration

	idx *indexes

	clusterMu     sync.Mutex
	accountCluster map[string]uint64
	clusters       map[uint64]map[string]struct{}
	nextCluster    uint64

	timingMu sync.Mutex
	timingBuckets map[int64]map[string]struct{}

	canaryMu sync.RWMutex
	canaries map[string]*events.CanaryToken // token -> record
	byAccount map[string][]string           // account -> tokens

	watermarkMu sync.RWMutex
	watermarked map[string]time.Time

	totalEvents   int64
	totalAccounts int64
	countMu       sync.Mutex

	evicted *lru.Cache[string, Snapshot]
}

// NewStore builds a Store with the given shard count, event retention, and
// timing-bucket retention.
func NewStore(shardCount int, retention, bucketRetention time.Duration) *Store {
	if shardCount <= 0 {
		shardCount = defaultShardCount
	}
	s := &Store{
		shards:          make([]shard, shardCount),
		retention:       retention,
		bucketRetention: bucketRetention,
		idx:             newIndexes(),
		accountCluster:  make(map[string]uint64),
		clusters:        make(map[uint64]map[string]struct{}),
		timingBuckets:   make(map[int64]map[string]struct{}),
		canaries:        make(map[string]*events.CanaryToken),
		byAccount:       make(map[string][]string),
		watermarked:     make(map[string]time.Time),
	}
	s.evicted, _ = lru.New[string, Snapshot](evictedAuditSize)
	for i := range s.shards {
		s.shards[i].accounts = make(map[string]*Window)
	}
	return s
}

func (s *Store) shardFor(account string) *shard {
	return &s.shards[shardFor(account, len(s.shards))]
}

// windowFor returns the account's window, creating it if this is the
// account's first event.
func (s *Store) windowFor(account string, now time.Time) (*Window, bool) {
	sh := s.shardFor(account)

	sh.mu.RLock()
	w, ok := sh.accounts[account]
	sh.mu.RUnlock()
	if ok {
		return w, false
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if w, ok = sh.accounts[account]; ok {
		return w, false
	}
	w = newWindow(account, now)
	sh.accounts[account] = w
	return w, true
}

// Ingest records ev against its account's window, updates every reverse
// index, records a timing-bucket hit, and runs the incremental clusterer.
// It implements the six-step ingest order described in SPEC_FULL.md's
// state-store component: lookup-or-create, model-switch detection (before
// append), append and index update, timing bucket record, cluster update,
// counter update.
func (s *Store) Ingest(ev events.Event) {
	w, isNew := s.windowFor(ev.AccountID, ev.Timestamp)

	headerHash := headerHashOf(ev.HeaderOrder)

	w.mu.Lock()
	if len(w.Events) > 0 {
		last := w.Events[len(w.Events)-1]
		if last.Model != "" && ev.Model != "" && last.Model != ev.Model {
			w.ModelSwitches = append(w.ModelSwitches, events.ModelSwitch{
				Timestamp: ev.Timestamp,
				OldModel:  last.Model,
				NewModel:  ev.Model,
			})
		}
	}
	w.ingest(ev, headerHash)
	w.mu.Unlock()

	preambleHash := ev.PreambleHash
	if preambleHash == "" && ev.Prompt != "" {
		preambleHash = PreambleHashOf(ev.Prompt)
	}
	s.idx.add(ev.AccountID, ev.PaymentHash, ev.OrgID, headerHash, ev.ClientFP, ev.ServerFP, subnet24First(ev.SourceAddr), preambleHash)

	s.recordTiming(ev.AccountID, ev.Timestamp)
	s.updateClusters(ev.AccountID)

	s.countMu.Lock()
	s.totalEvents++
	if isNew {
		s.totalAccounts++
	}
	s.countMu.Unlock()
}

func subnet24First(addr string) string {
	sn, ok := subnet24(addr)
	if !ok {
		return ""
	}
	return sn
}

// View returns a read-only snapshot of account's window, or false if the
// account has never been observed.
func (s *Store) View(account string) (Snapshot, bool) {
	sh := s.shardFor(account)
	sh.mu.RLock()
	w, ok := sh.accounts[account]
	sh.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}
	return w.snapshot(), true
}

// SetSuspended marks account as terminally suspended.
func (s *Store) SetSuspended(account string, suspended bool) {
	sh := s.shardFor(account)
	sh.mu.RLock()
	w, ok := sh.accounts[account]
	sh.mu.RUnlock()
	if !ok {
		return
	}
	w.mu.Lock()
	w.Suspended = suspended
	w.mu.Unlock()
}

// RecordAlert stamps account's last-alert time, used by the action gate's
// cooldown check.
func (s *Store) RecordAlert(account string, at time.Time) {
	sh := s.shardFor(account)
	sh.mu.RLock()
	w, ok := sh.accounts[account]
	sh.mu.RUnlock()
	if !ok {
		return
	}
	w.mu.Lock()
	t := at
	w.LastAlert = &t
	w.mu.Unlock()
}

// NAccounts returns the number of distinct accounts currently tracked.
func (s *Store) NAccounts() int64 {
	var n int64
	for i := range s.shards {
		s.shards[i].mu.RLock()
		n += int64(len(s.shards[i].accounts))
		s.shards[i].mu.RUnlock()
	}
	return n
}

// NClusters returns the number of live (non-empty) clusters.
func (s *Store) NClusters() int {
	s.clusterMu.Lock()
	defer s.clusterMu.Unlock()
	return len(s.clusters)
}

// TotalEvents returns the running count of ingested events since start.
func (s *Store) TotalEvents() int64 {
	s.countMu.Lock()
	defer s.countMu.Unlock()
	return s.totalEvents
}

// ExpireOld runs the retention sweep across every shard, dropping events
// older than the store's configured retention window. A window left with
// no events afterward is removed from the live shard map so idle accounts
// don't hold a permanent slot; its last snapshot is kept in a bounded LRU
// for post-hoc audit rather than discarded outright, unless the account is
// suspended or still part of a live cluster (both of which are reasons to
// keep it live rather than evict it). Intended to be driven by the
// housekeeping loop, not the ingest hot path.
func (s *Store) ExpireOld(now time.Time) {
	for i := range s.shards {
		s.shards[i].mu.RLock()
		windows := make([]*Window, 0, len(s.shards[i].accounts))
		for _, w := range s.shards[i].accounts {
			windows = append(windows, w)
		}
		s.shards[i].mu.RUnlock()

		var toEvict []string
		for _, w := range windows {
			w.mu.Lock()
			w.expireOld(s.retention, now)
			drained := len(w.Events) == 0 && !w.Suspended
			snap := w.snapshotLocked()
			w.mu.Unlock()

			if !drained {
				continue
			}
			if _, clustered := s.ClusterID(w.AccountID); clustered {
				continue
			}
			s.evicted.Add(w.AccountID, snap)
			toEvict = append(toEvict, w.AccountID)
		}

		if len(toEvict) == 0 {
			continue
		}
		s.shards[i].mu.Lock()
		for _, account := range toEvict {
			delete(s.shards[i].accounts, account)
		}
		s.shards[i].mu.Unlock()
	}
}

// EvictedSnapshot returns the last known snapshot of an account whose
// window fully expired and was evicted from live memory, if it is still
// held in the audit LRU.
func (s *Store) EvictedSnapshot(account string) (Snapshot, bool) {
	return s.evicted.Get(account)
}

// PruneTimingBuckets drops timing buckets older than the store's
// bucket-retention window.
func (s *Store) PruneTimingBuckets(now time.Time) {
	cutoff := now.Add(-s.bucketRetention).Unix()
	s.timingMu.Lock()
	defer s.timingMu.Unlock()
	for bucket := range s.timingBuckets {
		if bucket < cutoff {
			delete(s.timingBuckets, bucket)
		}
	}
}

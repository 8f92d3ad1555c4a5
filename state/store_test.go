package state

import (
	"testing"
	"time"

	"github.com/gatewatch/gatewatch/events"
)

func mkEvent(account string, at time.Time) events.Event {
	return events.Event{
		RequestID:  account + "-" + at.String(),
		AccountID:  account,
		Timestamp:  at,
		SourceAddr: "203.0.113.5",
		Model:      "gpt-4",
		Prompt:     "hello",
		TokenCount: 12,
	}
}

func TestIngestCreatesWindowAndCounts(t *testing.T) {
	s := NewStore(4, 24*time.Hour, 10*time.Minute)
	now := time.Now()

	s.Ingest(mkEvent("acct-1", now))
	if s.NAccounts() != 1 {
		t.Fatalf("expected 1 account, got %d", s.NAccounts())
	}
	if s.TotalEvents() != 1 {
		t.Fatalf("expected 1 total event, got %d", s.TotalEvents())
	}

	snap, ok := s.View("acct-1")
	if !ok {
		t.Fatal("expected window to exist")
	}
	if len(snap.Events) != 1 {
		t.Fatalf("expected 1 event in window, got %d", len(snap.Events))
	}
}

func TestModelSwitchDetected(t *testing.T) {
	s := NewStore(4, 24*time.Hour, 10*time.Minute)
	now := time.Now()

	e1 := mkEvent("acct-2", now)
	e1.Model = "gpt-3.5"
	s.Ingest(e1)

	e2 := mkEvent("acct-2", now.Add(time.Second))
	e2.Model = "gpt-4"
	s.Ingest(e2)

	snap, _ := s.View("acct-2")
	if len(snap.ModelSwitches) != 1 {
		t.Fatalf("expected 1 model switch, got %d", len(snap.ModelSwitches))
	}
	if snap.ModelSwitches[0].OldModel != "gpt-3.5" || snap.ModelSwitches[0].NewModel != "gpt-4" {
		t.Fatalf("unexpected switch record: %+v", snap.ModelSwitches[0])
	}
}

func TestClusteringMergesOnSharedPayment(t *testing.T) {
	s := NewStore(4, 24*time.Hour, 10*time.Minute)
	now := time.Now()

	e1 := mkEvent("acct-a", now)
	e1.PaymentHash = "pay-shared"
	s.Ingest(e1)

	e2 := mkEvent("acct-b", now.Add(time.Second))
	e2.PaymentHash = "pay-shared"
	s.Ingest(e2)

	cidA, okA := s.ClusterID("acct-a")
	cidB, okB := s.ClusterID("acct-b")
	if !okA || !okB {
		t.Fatal("expected both accounts to be clustered")
	}
	if cidA != cidB {
		t.Fatalf("expected accounts in the same cluster, got %d vs %d", cidA, cidB)
	}
	if s.ClusterSize("acct-a") != 2 {
		t.Fatalf("expected cluster size 2, got %d", s.ClusterSize("acct-a"))
	}
}

func TestClusterNeverShrinksOnMerge(t *testing.T) {
	s := NewStore(4, 24*time.Hour, 10*time.Minute)
	now := time.Now()

	// Two separate pairs, each forming its own cluster.
	// Each pair gets its own /24 so the pairs share no attribute.
	e1 := mkEvent("acct-1", now)
	e1.PaymentHash = "pay-1"
	e1.SourceAddr = "192.0.2.1"
	s.Ingest(e1)
	e2 := mkEvent("acct-2", now.Add(time.Second))
	e2.PaymentHash = "pay-1"
	e2.SourceAddr = "192.0.2.2"
	s.Ingest(e2)

	e3 := mkEvent("acct-3", now.Add(2 * time.Second))
	e3.OrgID = "org-x"
	e3.SourceAddr = "198.51.100.3"
	s.Ingest(e3)
	e4 := mkEvent("acct-4", now.Add(3 * time.Second))
	e4.OrgID = "org-x"
	e4.SourceAddr = "198.51.100.4"
	s.Ingest(e4)

	// acct-2 picks up org-x, which links it to acct-3 and acct-4 and
	// forces the two clusters to merge.
	e5 := mkEvent("acct-2", now.Add(4*time.Second))
	e5.OrgID = "org-x"
	s.Ingest(e5)

	sizeAfter := s.ClusterSize("acct-1")
	if sizeAfter < 4 {
		t.Fatalf("expected merged cluster to retain all members, got size %d", sizeAfter)
	}
}

func TestExpireOldDropsStaleEvents(t *testing.T) {
	s := NewStore(4, time.Hour, 10*time.Minute)
	old := time.Now().Add(-2 * time.Hour)
	s.Ingest(mkEvent("acct-old", old))

	s.ExpireOld(time.Now())

	if _, ok := s.View("acct-old"); ok {
		t.Fatal("expected the drained, unclustered window to be evicted from the live map")
	}
	snap, ok := s.EvictedSnapshot("acct-old")
	if !ok {
		t.Fatal("expected the evicted window to be kept in the audit LRU")
	}
	if len(snap.Events) != 0 {
		t.Fatalf("expected stale event to be expired, got %d remaining", len(snap.Events))
	}
}

func TestSubnet24Grouping(t *testing.T) {
	s := NewStore(4, 24*time.Hour, 10*time.Minute)
	now := time.Now()
	e1 := mkEvent("acct-sub", now)
	e1.SourceAddr = "198.51.100.7"
	s.Ingest(e1)
	e2 := mkEvent("acct-sub", now.Add(time.Second))
	e2.SourceAddr = "198.51.100.9"
	s.Ingest(e2)

	snap, _ := s.View("acct-sub")
	subnets := snap.Subnets()
	if len(subnets) != 1 || subnets[0] != "198.51.100" {
		t.Fatalf("expected single /24 subnet 198.51.100, got %v", subnets)
	}
}

func TestCanaryRegisterTriggerLookup(t *testing.T) {
	s := NewStore(4, 24*time.Hour, 10*time.Minute)
	now := time.Now()

	tok := NewCanaryToken("acct-c", "req-1", now)
	s.RegisterCanary(tok)

	got, ok := s.LookupCanary(tok.Token)
	if !ok || got.AccountID != "acct-c" {
		t.Fatalf("expected to find registered canary, got %+v ok=%v", got, ok)
	}

	if !s.TriggerCanary(tok.Token, now.Add(time.Minute)) {
		t.Fatal("expected trigger to succeed on a registered token")
	}
	got, _ = s.LookupCanary(tok.Token)
	if !got.Triggered {
		t.Fatal("expected token to be marked triggered")
	}
}

func TestWatermarkIdempotent(t *testing.T) {
	s := NewStore(4, 24*time.Hour, 10*time.Minute)
	first := time.Now()
	s.MarkWatermarked("acct-w", first)
	s.MarkWatermarked("acct-w", first.Add(time.Hour))

	at, ok := s.IsWatermarked("acct-w")
	if !ok {
		t.Fatal("expected account to be watermarked")
	}
	if !at.Equal(first) {
		t.Fatalf("expected watermark start to stay at first call, got %v", at)
	}
}

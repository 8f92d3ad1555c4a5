package feed

import (
	"testing"
	"time"

	"github.com/gatewatch/gatewatch/events"
)

func TestAddRejectsLowConfidence(t *testing.T) {
	g := NewGenerator("gatewatch", []byte("secret"))
	bundle := events.IndicatorBundle{ClusterID: 1, Confidence: 0.5, LastSeen: time.Now()}
	if _, ok := g.Add(bundle, time.Now()); ok {
		t.Fatal("expected low-confidence bundle to be rejected")
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	key := []byte("shared-secret")
	g := NewGenerator("gatewatch", key)
	now := time.Now()
	bundle := events.IndicatorBundle{ClusterID: 7, Confidence: 0.9, LastSeen: now}

	entry, ok := g.Add(bundle, now)
	if !ok {
		t.Fatal("expected high-confidence bundle to be exported")
	}
	if !Verify(entry, key) {
		t.Fatal("expected signature to verify with the correct key")
	}
	if Verify(entry, []byte("wrong-key")) {
		t.Fatal("expected signature to fail with the wrong key")
	}
}

func TestAcceptRejectsStaleBundle(t *testing.T) {
	key := []byte("k")
	g := NewGenerator("gatewatch", key)
	now := time.Now()
	stale := now.Add(-48 * time.Hour)
	bundle := events.IndicatorBundle{ClusterID: 2, Confidence: 0.9, LastSeen: stale}

	entry, ok := g.Add(bundle, now)
	if !ok {
		t.Fatal("expected bundle to be signed")
	}
	if Accept(entry, key, now) {
		t.Fatal("expected stale bundle to be rejected by the consumer policy")
	}
}

package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/gatewatch/gatewatch/action"
	"github.com/gatewatch/gatewatch/events"
	"github.com/gatewatch/gatewatch/feed"
	"github.com/gatewatch/gatewatch/observability"
	"github.com/gatewatch/gatewatch/query"
	"github.com/gatewatch/gatewatch/state"
)

func testHandler() http.Handler {
	store := state.NewStore(4, 24*time.Hour, time.Hour)
	deps := Deps{
		Store:        store,
		QueryService: query.NewService(store),
		Gate:         action.NewGate(store, 600*time.Second, 3),
		FeedGen:      feed.NewGenerator("gatewatch-core", []byte("test-key")),
		Metrics:      observability.NewMetrics(zerolog.Nop()),
	}
	return New(Config{RateLimitRPM: 0}, deps, zerolog.Nop())
}

func TestHealthzOK(t *testing.T) {
	h := testHandler()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestReadyzReportsCounts(t *testing.T) {
	h := testHandler()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	h := testHandler()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestDecisionsLookupUnknownAccountIsOK(t *testing.T) {
	h := testHandler()
	req := httptest.NewRequest(http.MethodGet, "/v1/decisions/acct-unknown", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestAuthRejectsMissingToken(t *testing.T) {
	store := state.NewStore(4, 24*time.Hour, time.Hour)
	deps := Deps{
		Store:        store,
		QueryService: query.NewService(store),
		Gate:         action.NewGate(store, 600*time.Second, 3),
		FeedGen:      feed.NewGenerator("gatewatch-core", []byte("test-key")),
	}
	h := New(Config{OperatorToken: "secret", RateLimitRPM: 0}, deps, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/v1/decisions/acct-1", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestPublishDeliversToSubscribedBroadcaster(t *testing.T) {
	store := state.NewStore(4, 24*time.Hour, time.Hour)
	deps := Deps{
		Store:        store,
		QueryService: query.NewService(store),
		Gate:         action.NewGate(store, 600*time.Second, 3),
		FeedGen:      feed.NewGenerator("gatewatch-core", []byte("test-key")),
	}
	h := New(Config{}, deps, zerolog.Nop())
	hb := h.(*handlerWithBroadcaster)

	ch := hb.broadcaster.subscribe()
	defer hb.broadcaster.unsubscribe(ch)

	Publish(h, events.RiskDecision{AccountID: "acct-1", Tier: events.TierHigh})

	select {
	case d := <-ch:
		if d.AccountID != "acct-1" {
			t.Fatalf("unexpected decision: %+v", d)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published decision")
	}
}

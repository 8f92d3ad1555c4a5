// Package router exposes the detection core's HTTP surface: health
// checks, the account-status query endpoint an upstream gateway polls
// before serving a request, the live decision websocket an analyst
// console subscribes to, and per-cluster membership lookup. It mirrors
// the gateway's own chi-based router — ordered middleware chain, then
// routes grouped under /v1 — generalized from a provider proxy's route
// table to this core's much smaller one.
package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/gatewatch/gatewatch/action"
	"github.com/gatewatch/gatewatch/events"
	"github.com/gatewatch/gatewatch/feed"
	gwmw "github.com/gatewatch/gatewatch/middleware"
	"github.com/gatewatch/gatewatch/observability"
	"github.com/gatewatch/gatewatch/query"
	"github.com/gatewatch/gatewatch/state"
)

// Config bundles the router's tunables — its console auth token and
// rate-limit policy — separately from the detection-core config so the
// HTTP surface can be reconfigured without touching worker weights.
type Config struct {
	OperatorToken  string
	RateLimitRPM   int
	RateLimitBurst int
}

// Deps are the components the router's handlers read from. None of them
// are owned by the router — it is a read adapter over state the core
// already maintains.
type Deps struct {
	Store        *state.Store
	QueryService *query.Service
	Gate         *action.Gate
	FeedGen      *feed.Generator
	Metrics      *observability.Metrics
}

// New builds the console API's http.Handler.
func New(cfg Config, deps Deps, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	broadcaster := newDecisionBroadcaster(log)

	r.Use(gwmw.CORSMiddleware([]string{"*"}))
	r.Use(gwmw.SecurityHeadersMiddleware)
	r.Use(gwmw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "gatewatch"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":   "ready",
			"accounts": deps.Store.NAccounts(),
			"clusters": deps.Store.NClusters(),
			"events":   deps.Store.TotalEvents(),
		})
	})
	if deps.Metrics != nil {
		r.Get("/metrics", deps.Metrics.Handler())
	}

	authMW := gwmw.NewAuthMiddleware(log, cfg.OperatorToken)
	rateLimiter := gwmw.NewRateLimiter(log, cfg.RateLimitRPM > 0, cfg.RateLimitRPM, cfg.RateLimitBurst)

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMW.Handler)
		r.Use(rateLimiter.Handler)

		r.Get("/decisions/{account}", func(w http.ResponseWriter, r *http.Request) {
			account := chi.URLParam(r, "account")
			result := deps.QueryService.Lookup(account)
			writeJSON(w, http.StatusOK, result)
		})

		r.Get("/stream/decisions", broadcaster.serveDecisionStream)

		r.Get("/clusters/{id}/members", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			cid, ok := parseClusterID(id)
			if !ok {
				http.Error(w, `{"error":"invalid cluster id"}`, http.StatusBadRequest)
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"cluster_id": cid,
				"members":    deps.Store.ClusterMembers(cid),
			})
		})
	})

	return &handlerWithBroadcaster{Handler: r, broadcaster: broadcaster}
}

// handlerWithBroadcaster lets the owning process reach the router's
// internal decision broadcaster (to publish fused decisions as they're
// produced) without exporting the broadcaster type itself.
type handlerWithBroadcaster struct {
	http.Handler
	broadcaster *decisionBroadcaster
}

// Publish pushes decision to every connected decision-stream subscriber.
// h must be the value returned by New.
func Publish(h http.Handler, decision events.RiskDecision) {
	if hb, ok := h.(*handlerWithBroadcaster); ok {
		hb.broadcaster.Publish(decision)
	}
}

func parseClusterID(s string) (uint64, bool) {
	var n uint64
	if s == "" {
		return 0, false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + uint64(c-'0')
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(rw, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("req_id", gwmw.GetRequestID(r.Context())).
				Int("status", rw.Status()).
				Dur("duration", time.Since(start)).
				Msg("console request completed")
		})
	}
}

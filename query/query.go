// Package query implements the read-side decision lookup the core exposes
// to an upstream gateway: given an account id, answer whether it is OK,
// should be watched, is currently rate-limited, or is suspended. The wire
// transport (originally specified as a gRPC query endpoint) is a thin
// external adapter over this package; see router for the HTTP binding
// actually shipped here.
package query

import (
	"time"

	"github.com/gatewatch/gatewatch/state"
)

// Status is the coarse admission verdict an upstream gateway consults
// before serving a request.
type Status string

const (
	StatusOK           Status = "ok"
	StatusWatch        Status = "watch"
	StatusRateLimited  Status = "rate_limited"
	StatusSuspended    Status = "suspended"
)

// Result is the full answer for one account lookup.
type Result struct {
	AccountID string    `json:"account_id"`
	Status    Status    `json:"status"`
	ClusterID *uint64   `json:"cluster_id,omitempty"`
	LastAlert *time.Time `json:"last_alert,omitempty"`
}

// Service answers account status lookups against the live store.
type Service struct {
	store *state.Store
}

// NewService builds a query Service over store.
func NewService(store *state.Store) *Service {
	return &Service{store: store}
}

// Lookup answers the status for account.
func (s *Service) Lookup(account string) Result {
	snap, ok := s.store.View(account)
	if !ok {
		return Result{AccountID: account, Status: StatusOK}
	}

	result := Result{AccountID: account, LastAlert: snap.LastAlert}
	if cid, ok := s.store.ClusterID(account); ok {
		result.ClusterID = &cid
	}

	switch {
	case snap.Suspended:
		result.Status = StatusSuspended
	case snap.LastAlert != nil && time.Since(*snap.LastAlert) < 600*time.Second:
		result.Status = StatusRateLimited
	case snap.LastAlert != nil:
		result.Status = StatusWatch
	default:
		result.Status = StatusOK
	}
	return result
}

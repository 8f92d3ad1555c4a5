package state

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/gatewatch/gatewatch/events"
)

// NewCanaryToken mints a fresh, unguessable canary token for an
// in-progress request: a truncated SHA-256 digest over the account id, the
// request id, and the current nanosecond timestamp, so the same
// account/request pair never collides across retries.
func NewCanaryToken(accountID, requestID string, now time.Time) events.CanaryToken {
	h := sha256.New()
	fmt.Fprintf(h, "gw_canary:%s:%s:%d", accountID, requestID, now.UnixNano())
	digest := hex.EncodeToString(h.Sum(nil))[:16]
	return events.CanaryToken{
		Token:      digest,
		AccountID:  accountID,
		RequestID:  requestID,
		InsertedAt: now,
	}
}

// RegisterCanary records a newly minted canary token so a later trigger can
// be looked up and attributed back to its account and cluster.
func (s *Store) RegisterCanary(tok events.CanaryToken) {
	s.canaryMu.Lock()
	defer s.canaryMu.Unlock()
	t := tok
	s.canaries[tok.Token] = &t
	s.byAccount[tok.AccountID] = append(s.byAccount[tok.AccountID], tok.Token)
}

// LookupCanary returns the registered token record, if any.
func (s *Store) LookupCanary(token string) (events.CanaryToken, bool) {
	s.canaryMu.RLock()
	defer s.canaryMu.RUnlock()
	t, ok := s.canaries[token]
	if !ok {
		return events.CanaryToken{}, false
	}
	return *t, true
}

// TriggerCanary marks token as triggered at the given time. Returns false
// if the token was never registered.
func (s *Store) TriggerCanary(token string, at time.Time) bool {
	s.canaryMu.Lock()
	defer s.canaryMu.Unlock()
	t, ok := s.canaries[token]
	if !ok {
		return false
	}
	t.Triggered = true
	triggeredAt := at
	t.TriggerTimestamp = &triggeredAt
	return true
}

// TriggeredCanariesForCluster returns the tokens of every triggered canary
// belonging to any member of the given cluster.
func (s *Store) TriggeredCanariesForCluster(cid uint64) []string {
	members := s.ClusterMembers(cid)
	if len(members) == 0 {
		return nil
	}
	s.canaryMu.RLock()
	defer s.canaryMu.RUnlock()

	var out []string
	for _, account := range members {
		for _, token := range s.byAccount[account] {
			if t := s.canaries[token]; t != nil && t.Triggered {
				out = append(out, token)
			}
		}
	}
	return out
}

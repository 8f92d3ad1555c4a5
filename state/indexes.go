package state

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// indexes holds the reverse lookups from a shared attribute value to the
// set of accounts that have exhibited it: the same payment instrument,
// organization id, header ordering, client or server TLS fingerprint, or
// /24 subnet. The incremental clusterer walks these to find an account's
// neighbors in O(1) per attribute rather than scanning every window.
type indexes struct {
	mu sync.RWMutex

	payment  map[string]map[string]struct{}
	org      map[string]map[string]struct{}
	header   map[string]map[string]struct{}
	client   map[string]map[string]struct{}
	server   map[string]map[string]struct{}
	subnet   map[string]map[string]struct{}
	preamble map[string]map[string]struct{}
}

func newIndexes() *indexes {
	return &indexes{
		payment:  make(map[string]map[string]struct{}),
		org:      make(map[string]map[string]struct{}),
		header:   make(map[string]map[string]struct{}),
		client:   make(map[string]map[string]struct{}),
		server:   make(map[string]map[string]struct{}),
		subnet:   make(map[string]map[string]struct{}),
		preamble: make(map[string]map[string]struct{}),
	}
}

func addTo(m map[string]map[string]struct{}, key, account string) {
	if key == "" {
		return
	}
	set, ok := m[key]
	if !ok {
		set = make(map[string]struct{})
		m[key] = set
	}
	set[account] = struct{}{}
}

func (ix *indexes) add(account, payment, org, headerHash, clientFP, serverFP, subnet, preambleHash string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	addTo(ix.payment, payment, account)
	addTo(ix.org, org, account)
	addTo(ix.header, headerHash, account)
	addTo(ix.client, clientFP, account)
	addTo(ix.server, serverFP, account)
	addTo(ix.subnet, subnet, account)
	addTo(ix.preamble, preambleHash, account)
}

// neighbors returns every account sharing any indexed attribute with
// account, excluding account itself.
func (ix *indexes) neighbors(account string, payment, org, headerHash, clientFP, serverFP, subnet []string) map[string]struct{} {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make(map[string]struct{})
	collect := func(m map[string]map[string]struct{}, keys []string) {
		for _, k := range keys {
			for a := range m[k] {
				if a != account {
					out[a] = struct{}{}
				}
			}
		}
	}
	collect(ix.payment, payment)
	collect(ix.org, org)
	collect(ix.header, headerHash)
	collect(ix.client, clientFP)
	collect(ix.server, serverFP)
	collect(ix.subnet, subnet)
	return out
}

// AccountsWithPayment returns the accounts indexed under the given payment
// hash.
func (s *Store) AccountsWithPayment(hash string) []string { return s.idx.lookup(s.idx.payment, hash) }

// AccountsWithOrg returns the accounts indexed under the given org id.
func (s *Store) AccountsWithOrg(org string) []string { return s.idx.lookup(s.idx.org, org) }

// AccountsWithHeaderHash returns the accounts sharing a header-order hash.
func (s *Store) AccountsWithHeaderHash(hash string) []string { return s.idx.lookup(s.idx.header, hash) }

// AccountsWithClientFP returns the accounts sharing a client TLS
// fingerprint (JA3-equivalent).
func (s *Store) AccountsWithClientFP(fp string) []string { return s.idx.lookup(s.idx.client, fp) }

// AccountsWithServerFP returns the accounts sharing a server TLS
// fingerprint (JA3S-equivalent).
func (s *Store) AccountsWithServerFP(fp string) []string { return s.idx.lookup(s.idx.server, fp) }

// AccountsWithPreambleHash returns the accounts sharing a normalized
// role-preamble hash.
func (s *Store) AccountsWithPreambleHash(hash string) []string { return s.idx.lookup(s.idx.preamble, hash) }

func (ix *indexes) lookup(m map[string]map[string]struct{}, key string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	set := m[key]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	return out
}

// HeaderHashOf exposes headerHashOf to other packages (the Fingerprint
// worker needs to recompute the same digest to query the index).
func HeaderHashOf(order []string) string { return headerHashOf(order) }

// headerHashOf summarizes a header-ordering list into a short, stable
// digest so it can be used as an index key and as a client-biometric
// fingerprint input.
func headerHashOf(order []string) string {
	if len(order) == 0 {
		return ""
	}
	h := sha256.New()
	for _, k := range order {
		h.Write([]byte(k))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// PreambleHashOf hashes the normalized first 512 characters of prompt into
// the same 8-byte identifier the role-preamble worker and the reverse
// index key off of, so an event missing the pre-computed PreambleHash
// field still indexes consistently.
func PreambleHashOf(prompt string) string {
	if len(prompt) > 512 {
		prompt = prompt[:512]
	}
	normalized := normalizeASCIILower(prompt)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:16]
}

func normalizeASCIILower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return trimSpaceASCII(string(b))
}

func trimSpaceASCII(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t' || s[start] == '\n' || s[start] == '\r') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t' || s[end-1] == '\n' || s[end-1] == '\r') {
		end--
	}
	return s[start:end]
}

package workers

import (
	"github.com/gatewatch/gatewatch/events"
	"github.com/gatewatch/gatewatch/state"
)

// Hydra fires only when the account belongs to a cluster of at least 3
// members, scoring coordinated multi-account campaigns.
func Hydra(store *state.Store, ev events.Event, snap state.Snapshot) *events.Signal {
	cid, ok := store.ClusterID(ev.AccountID)
	if !ok {
		return nil
	}
	members := store.ClusterMembers(cid)
	if len(members) < 3 {
		return nil
	}

	var raw float64
	var evidence []string

	sizeScore := clamp01(float64(len(members)) / 10 * 0.40)
	if sizeScore > 0.40 {
		sizeScore = 0.40
	}
	raw += sizeScore
	evidence = append(evidence, "cluster_size")

	paymentCounts := make(map[string]int)
	subnetSet := make(map[string]struct{})
	h2Set := make(map[string]struct{})
	restrictedCountry := false
	var totalRequests int

	for _, m := range members {
		msnap, ok := store.View(m)
		if !ok {
			continue
		}
		totalRequests += len(msnap.Events)
		for _, p := range msnap.PaymentHashes {
			paymentCounts[p]++
		}
		for _, sn := range msnap.Subnets() {
			subnetSet[sn] = struct{}{}
		}
		for _, h2 := range msnap.H2FPs {
			h2Set[h2] = struct{}{}
		}
		for _, cc := range msnap.CountryCodes {
			if events.IsRestricted(cc) {
				restrictedCountry = true
			}
		}
	}

	if len(paymentCounts) > 0 {
		contribution := 0.07 * float64(len(paymentCounts))
		if contribution > 0.35 {
			contribution = 0.35
		}
		raw += contribution
		evidence = append(evidence, "shared_payment_hashes")
	}
	if len(subnetSet) > 0 {
		contribution := 0.03 * float64(len(subnetSet))
		if contribution > 0.15 {
			contribution = 0.15
		}
		raw += contribution
		evidence = append(evidence, "shared_subnets")
	}
	if restrictedCountry {
		raw += 0.10
		evidence = append(evidence, "restricted_country_member")
	}

	if prefix, count, frac := dominantPrefix(paymentCounts, 3); count >= 3 && frac >= 0.40 {
		_ = prefix
		raw += 0.20
		evidence = append(evidence, "dominant_payment_prefix")
	}

	if len(h2Set) == 1 && len(members) >= 5 {
		raw += 0.12
		evidence = append(evidence, "identical_h2_fingerprint")
	}

	cliqueAccounts, cliqueMethods := bipartiteClique(members, store)
	switch {
	case cliqueAccounts >= 3 && cliqueMethods >= 2:
		raw += 0.25
		evidence = append(evidence, "payment_clique")
	case cliqueAccounts >= 4 && cliqueMethods >= 1:
		raw += 0.15
		evidence = append(evidence, "payment_sharing")
	}

	if prefix2, count2 := dominantPrefixLen(paymentCounts, 2); count2 >= 4 {
		_ = prefix2
		raw += 0.12
		evidence = append(evidence, "shared_payment_issuer_prefix")
	}

	if raw == 0 {
		return nil
	}

	confidence := clamp01(float64(totalRequests) / 100)
	score := damp(raw, confidence, 0.3, 0.7)

	return &events.Signal{
		Worker:     events.WorkerHydra,
		Score:      score,
		Confidence: confidence,
		Evidence:   evidence,
		Timestamp:  ev.Timestamp,
	}
}

// dominantPrefix finds the most common prefix of length plen among the
// keys of counts weighted by their occurrence counts, returning the
// prefix, the number of distinct hashes sharing it, and the fraction of
// all hash occurrences it covers.
func dominantPrefix(counts map[string]int, plen int) (string, int, float64) {
	prefixCounts := make(map[string]int)
	prefixDistinct := make(map[string]int)
	total := 0
	for k, c := range counts {
		total += c
		if len(k) < plen {
			continue
		}
		p := k[:plen]
		prefixCounts[p] += c
		prefixDistinct[p]++
	}
	if total == 0 {
		return "", 0, 0
	}
	var bestPrefix string
	best := 0
	for p, c := range prefixCounts {
		if c > best {
			best = c
			bestPrefix = p
		}
	}
	return bestPrefix, prefixDistinct[bestPrefix], float64(best) / float64(total)
}

func dominantPrefixLen(counts map[string]int, plen int) (string, int) {
	prefixDistinct := make(map[string]int)
	for k := range counts {
		if len(k) < plen {
			continue
		}
		prefixDistinct[k[:plen]]++
	}
	var bestPrefix string
	best := 0
	for p, c := range prefixDistinct {
		if c > best {
			best = c
			bestPrefix = p
		}
	}
	return bestPrefix, best
}

// bipartiteClique approximates the account<->payment-method bipartite
// clique check: the size of the largest set of accounts that all share at
// least one payment method with at least one other member, and the number
// of distinct methods involved in that overlap.
func bipartiteClique(members []string, store *state.Store) (accounts int, methods int) {
	methodToAccounts := make(map[string]map[string]struct{})
	for _, m := range members {
		snap, ok := store.View(m)
		if !ok {
			continue
		}
		for _, p := range snap.PaymentHashes {
			set, ok := methodToAccounts[p]
			if !ok {
				set = make(map[string]struct{})
				methodToAccounts[p] = set
			}
			set[m] = struct{}{}
		}
	}
	sharedAccounts := make(map[string]struct{})
	sharedMethods := 0
	for method, accts := range methodToAccounts {
		if len(accts) >= 2 {
			sharedMethods++
			for a := range accts {
				sharedAccounts[a] = struct{}{}
			}
		}
	}
	return len(sharedAccounts), sharedMethods
}

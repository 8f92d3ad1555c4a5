package action

import (
	"sort"
	"time"

	"github.com/gatewatch/gatewatch/events"
)

func dedupStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// buildIndicatorBundle aggregates the cluster-wide union of every shared
// attribute across members into a single bundle for cross-provider
// sharing and local enforcement logging.
func (g *Gate) buildIndicatorBundle(clusterID uint64, members []string, decision events.RiskDecision) events.IndicatorBundle {
	var addresses, subnets, payments, clientFPs, serverFPs, h2FPs, headerHashes, countries []string
	var firstSeen, lastSeen time.Time
	var totalRequests int64

	for _, m := range members {
		snap, ok := g.store.View(m)
		if !ok {
			continue
		}
		addresses = append(addresses, snap.Addresses...)
		subnets = append(subnets, snap.Subnets()...)
		payments = append(payments, snap.PaymentHashes...)
		clientFPs = append(clientFPs, snap.ClientFPs...)
		serverFPs = append(serverFPs, snap.ServerFPs...)
		h2FPs = append(h2FPs, snap.H2FPs...)
		headerHashes = append(headerHashes, snap.HeaderHashes...)
		countries = append(countries, snap.CountryCodes...)
		totalRequests += int64(len(snap.Events))

		if firstSeen.IsZero() || snap.FirstSeen.Before(firstSeen) {
			firstSeen = snap.FirstSeen
		}
		if snap.LastSeen.After(lastSeen) {
			lastSeen = snap.LastSeen
		}
	}

	triggered := g.store.TriggeredCanariesForCluster(clusterID)

	return events.IndicatorBundle{
		ClusterID:          clusterID,
		Addresses:          dedupStrings(addresses),
		Subnets:            dedupStrings(subnets),
		PaymentHashes:      dedupStrings(payments),
		ClientFingerprints: dedupStrings(clientFPs),
		ServerFingerprints: dedupStrings(serverFPs),
		H2Fingerprints:     dedupStrings(h2FPs),
		HeaderHashes:       dedupStrings(headerHashes),
		TriggeredCanaries:  dedupStrings(triggered),
		MemberAccounts:     dedupStrings(members),
		CountryCodes:       dedupStrings(countries),
		FirstSeen:          firstSeen,
		LastSeen:           lastSeen,
		TotalRequests:      totalRequests,
		TopEvidence:        decision.TopEvidence,
		Confidence:         decision.CompositeScore,
		Timestamp:          decision.Timestamp,
	}
}

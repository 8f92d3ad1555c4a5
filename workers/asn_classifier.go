package workers

import (
	"strings"

	"github.com/gatewatch/gatewatch/events"
	"github.com/gatewatch/gatewatch/state"
)

type asnTier int

const (
	asnNone asnTier = iota
	asnMajorCloud
	asnVPS
	asnBulletproof
)

var majorCloudOrgs = []string{"amazon", "google", "microsoft", "azure", "oracle cloud", "aws"}
var vpsOrgs = []string{"digitalocean", "linode", "vultr", "ovh", "hetzner", "contabo"}
var bulletproofOrgs = []string{"bulletproof", "offshore hosting", "private layer", "flokinet"}

func classifyASN(org string) asnTier {
	low := strings.ToLower(org)
	if containsAny(low, bulletproofOrgs) {
		return asnBulletproof
	}
	if containsAny(low, vpsOrgs) {
		return asnVPS
	}
	if containsAny(low, majorCloudOrgs) {
		return asnMajorCloud
	}
	return asnNone
}

// ASNClassifier scores the event's origin ASN organization into
// major-cloud/VPS/bulletproof tiers, with an additional cluster-wide
// component when enough members share a classified or identical provider.
func ASNClassifier(store *state.Store, ev events.Event, snap state.Snapshot) *events.Signal {
	if ev.ASN == nil {
		return nil
	}

	tier := classifyASN(ev.ASN.Org)
	var raw float64
	var evidence []string
	var confidenceBase float64

	switch tier {
	case asnMajorCloud:
		raw += 0.20
		confidenceBase = 0.60
		evidence = append(evidence, "major_cloud_asn")
	case asnVPS:
		raw += 0.35
		confidenceBase = 0.75
		evidence = append(evidence, "vps_asn")
	case asnBulletproof:
		raw += 0.50
		confidenceBase = 0.90
		evidence = append(evidence, "bulletproof_asn")
	default:
		confidenceBase = 0.60
	}

	if cid, ok := store.ClusterID(ev.AccountID); ok {
		members := store.ClusterMembers(cid)
		if len(members) >= 3 {
			classified := 0
			firstWordCounts := make(map[string]int)
			for _, m := range members {
				msnap, ok := store.View(m)
				if !ok || len(msnap.Events) == 0 {
					continue
				}
				last := msnap.Events[len(msnap.Events)-1]
				if last.ASN == nil {
					continue
				}
				if classifyASN(last.ASN.Org) != asnNone {
					classified++
				}
				words := strings.Fields(strings.ToLower(last.ASN.Org))
				if len(words) > 0 {
					firstWordCounts[words[0]]++
				}
			}
			if float64(classified)/float64(len(members)) >= 0.60 {
				raw += 0.40
				evidence = append(evidence, "cluster_asn_classified")
			}
			maxWord := 0
			for _, c := range firstWordCounts {
				if c > maxWord {
					maxWord = c
				}
			}
			if len(members) > 0 && float64(maxWord)/float64(len(members)) >= 0.70 {
				raw += 0.10
				evidence = append(evidence, "cluster_shared_provider")
			}
		}
	}

	if raw == 0 {
		return nil
	}
	if raw > 1 {
		raw = 1
	}

	return &events.Signal{
		Worker:     events.WorkerASN,
		Score:      raw,
		Confidence: confidenceBase,
		Evidence:   evidence,
		Timestamp:  ev.Timestamp,
	}
}

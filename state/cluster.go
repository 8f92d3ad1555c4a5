package state

// updateClusters runs the incremental clustering step for account after
// a new event has been indexed: find every neighbor that shares an
// attribute with account, collect the set of clusters already touching
// account or any neighbor, then merge all of them into the single
// lowest-numbered cluster id in that set (allocating a fresh id only if
// none of the participants had one yet). Clusters never shrink or split;
// an account's cluster id only ever moves to a lower number as merges
// happen, which keeps the assignment monotonic and stable for downstream
// consumers that cache a cluster id across calls.
func (s *Store) updateClusters(account string) {
	snap, ok := s.View(account)
	if !ok {
		return
	}

	neighbors := s.idx.neighbors(account, snap.PaymentHashes, snap.OrgIDs, snap.HeaderHashes, snap.ClientFPs, snap.ServerFPs, snap.Subnets())
	if len(neighbors) == 0 {
		return
	}

	s.clusterMu.Lock()
	defer s.clusterMu.Unlock()

	touched := make(map[uint64]struct{})
	if cid, ok := s.accountCluster[account]; ok {
		touched[cid] = struct{}{}
	}
	members := make(map[string]struct{}, len(neighbors)+1)
	members[account] = struct{}{}
	for n := range neighbors {
		members[n] = struct{}{}
		if cid, ok := s.accountCluster[n]; ok {
			touched[cid] = struct{}{}
		}
	}

	var target uint64
	haveTarget := false
	for cid := range touched {
		if !haveTarget || cid < target {
			target = cid
			haveTarget = true
		}
	}
	if !haveTarget {
		s.nextCluster++
		target = s.nextCluster
	}

	dst, ok := s.clusters[target]
	if !ok {
		dst = make(map[string]struct{})
		s.clusters[target] = dst
	}

	for cid := range touched {
		if cid == target {
			continue
		}
		for a := range s.clusters[cid] {
			dst[a] = struct{}{}
			s.accountCluster[a] = target
		}
		delete(s.clusters, cid)
	}
	for m := range members {
		dst[m] = struct{}{}
		s.accountCluster[m] = target
	}
}

// ClusterID returns account's cluster id, if it belongs to one.
func (s *Store) ClusterID(account string) (uint64, bool) {
	s.clusterMu.Lock()
	defer s.clusterMu.Unlock()
	cid, ok := s.accountCluster[account]
	return cid, ok
}

// ClusterMembers returns every account in the given cluster.
func (s *Store) ClusterMembers(cid uint64) []string {
	s.clusterMu.Lock()
	defer s.clusterMu.Unlock()
	set := s.clusters[cid]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	return out
}

// ClusterSize returns the number of members in account's cluster, or 0 if
// it belongs to none.
func (s *Store) ClusterSize(account string) int {
	s.clusterMu.Lock()
	defer s.clusterMu.Unlock()
	cid, ok := s.accountCluster[account]
	if !ok {
		return 0
	}
	return len(s.clusters[cid])
}

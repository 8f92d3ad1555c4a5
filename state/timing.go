package state

import "time"

// recordTiming buckets account's event into a one-second-wide bucket keyed
// by Unix timestamp. The timing-cluster worker compares how many distinct
// accounts land in the same bucket to spot synchronized, scripted traffic.
func (s *Store) recordTiming(account string, at time.Time) {
	bucket := at.Unix()
	s.timingMu.Lock()
	defer s.timingMu.Unlock()
	set, ok := s.timingBuckets[bucket]
	if !ok {
		set = make(map[string]struct{})
		s.timingBuckets[bucket] = set
	}
	set[account] = struct{}{}
}

// AccountsInBucket returns every account with an event in the one-second
// bucket containing at, excluding account itself.
func (s *Store) AccountsInBucket(account string, at time.Time) []string {
	bucket := at.Unix()
	s.timingMu.Lock()
	defer s.timingMu.Unlock()
	set := s.timingBuckets[bucket]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for a := range set {
		if a != account {
			out = append(out, a)
		}
	}
	return out
}

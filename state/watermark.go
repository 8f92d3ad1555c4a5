package state

import "time"

// IsWatermarked reports whether account's responses are currently being
// zero-width watermarked, and since when.
func (s *Store) IsWatermarked(account string) (time.Time, bool) {
	s.watermarkMu.RLock()
	defer s.watermarkMu.RUnlock()
	t, ok := s.watermarked[account]
	return t, ok
}

// MarkWatermarked records that account's responses began being watermarked
// at the given time. Idempotent: a second call for an already-watermarked
// account is a no-op, preserving the original start time.
func (s *Store) MarkWatermarked(account string, at time.Time) {
	s.watermarkMu.Lock()
	defer s.watermarkMu.Unlock()
	if _, ok := s.watermarked[account]; ok {
		return
	}
	s.watermarked[account] = at

	if sh := s.shardFor(account); sh != nil {
		sh.mu.RLock()
		w, ok := sh.accounts[account]
		sh.mu.RUnlock()
		if ok {
			w.mu.Lock()
			t := at
			w.WatermarkedAt = &t
			w.mu.Unlock()
		}
	}
}

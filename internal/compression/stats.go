package compression

import (
	"sort"
	"sync"
)

// TypeStats aggregates compression outcomes for one message type.
type TypeStats struct {
	Seen            int64 `json:"seen"`
	Compressed      int64 `json:"compressed"`
	BytesIn         int64 `json:"bytes_in"`
	BytesCompressed int64 `json:"bytes_compressed"`
	BytesSaved      int64 `json:"bytes_saved"`

	// minEffective is the smallest original payload that compressed with a
	// worthwhile saving; it feeds the advisory threshold recommendation.
	minEffective int64
}

// Stats tracks per-message-type compression counters. All methods are safe
// for concurrent use.
type Stats struct {
	mu      sync.Mutex
	perType map[string]*TypeStats
	total   TypeStats
}

func NewStats() *Stats {
	return &Stats{perType: make(map[string]*TypeStats)}
}

func (s *Stats) observe(msgType string, size int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.typeStatsLocked(msgType)
	ts.Seen++
	ts.BytesIn += int64(size)
	s.total.Seen++
	s.total.BytesIn += int64(size)
}

func (s *Stats) recordCompressed(msgType string, in, out int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := int64(in - out)
	ts := s.typeStatsLocked(msgType)
	ts.Compressed++
	ts.BytesCompressed += int64(out)
	ts.BytesSaved += saved
	s.total.Compressed++
	s.total.BytesCompressed += int64(out)
	s.total.BytesSaved += saved

	// A saving of at least 10% counts as worthwhile.
	if saved*10 >= int64(in) {
		if ts.minEffective == 0 || int64(in) < ts.minEffective {
			ts.minEffective = int64(in)
		}
	}
}

func (s *Stats) typeStatsLocked(msgType string) *TypeStats {
	ts, ok := s.perType[msgType]
	if !ok {
		ts = &TypeStats{}
		s.perType[msgType] = ts
	}
	return ts
}

// Snapshot returns the aggregate counters across all message types.
func (s *Stats) Snapshot() TypeStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// ByType returns a copy of the per-message-type counters.
func (s *Stats) ByType() map[string]TypeStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]TypeStats, len(s.perType))
	for k, v := range s.perType {
		out[k] = *v
	}
	return out
}

// Recommendation is advisory tuning output derived from observed ratios.
// The negotiator never applies it on its own.
type Recommendation struct {
	SuggestedThreshold int      `json:"suggested_threshold"`
	SkipTypes          []string `json:"skip_types"`
}

// Recommend proposes a threshold and a list of message types not worth
// compressing, based on what has been observed so far.
func (s *Stats) Recommend(currentThreshold int) Recommendation {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := Recommendation{SuggestedThreshold: currentThreshold}
	for msgType, ts := range s.perType {
		if ts.Compressed == 0 {
			continue
		}
		// Types whose compressed output saves under 10% on average are not
		// worth the CPU.
		if ts.BytesSaved*10 < ts.BytesIn {
			rec.SkipTypes = append(rec.SkipTypes, msgType)
			continue
		}
		if ts.minEffective > 0 && int(ts.minEffective) < rec.SuggestedThreshold {
			rec.SuggestedThreshold = int(ts.minEffective)
		}
	}
	sort.Strings(rec.SkipTypes)
	return rec
}

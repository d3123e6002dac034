// Package correlate models HoneybeePF's in-kernel tid-keyed pending-call
// map from the userspace side (spec §3/§4.3). In production the entry and
// return hooks correlate themselves in-kernel and a combined record
// arrives already paired; this store exists for synthetic entry-only
// injection tests (no other package uses it) and implements the exact
// eviction/orphan semantics the seed scenarios probe.
package correlate

import (
	"sync"

	"go.uber.org/zap"
)

// Clock abstracts "now" as a nanosecond counter so duration arithmetic is
// exact and testable without real time (spec §4.3's Correlation property).
type Clock interface {
	NowNs() uint64
}

// entry is one pending call recorded at probe-entry time.
type entry struct {
	entryTSNs uint64
	probe     string
}

// Store is a bounded, LRU-evicting map of tid → pending entry-hook call.
type Store struct {
	logger *zap.Logger

	mu       sync.Mutex
	entries  map[uint32]entry
	order    []uint32 // insertion order, for oldest-first eviction
	maxSize  int

	evicted       uint64
	orphanReturns map[string]uint64 // per-probe orphan count
}

// New creates a Store bounded to maxSize in-flight entries
// (spec §6 correlation_map_size, default constants.DefaultCorrelationMapSize).
func New(maxSize int, logger *zap.Logger) *Store {
	if maxSize <= 0 {
		maxSize = 10240
	}
	return &Store{
		logger:        logger,
		entries:       make(map[uint32]entry, maxSize),
		maxSize:       maxSize,
		orphanReturns: make(map[string]uint64),
	}
}

// Record stores an entry-hook observation for tid. If the store is at
// capacity, the oldest entry is evicted and counted (spec §4.3).
func (s *Store) Record(tid uint32, probeName string, entryTSNs uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[tid]; !exists && len(s.entries) >= s.maxSize {
		s.evictOldestLocked()
	}
	for i, t := range s.order {
		if t == tid {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.order = append(s.order, tid)
	s.entries[tid] = entry{entryTSNs: entryTSNs, probe: probeName}
}

// evictOldestLocked removes the oldest recorded tid. Caller holds s.mu.
func (s *Store) evictOldestLocked() {
	for len(s.order) > 0 {
		oldest := s.order[0]
		s.order = s.order[1:]
		if _, ok := s.entries[oldest]; ok {
			delete(s.entries, oldest)
			s.evicted++
			return
		}
	}
}

// Resolve pairs a return-hook observation with its entry, computing exact
// integer duration. If no matching entry exists, the return is an orphan:
// counted per-probe, never silently dropped (spec §4.3 invariant).
func (s *Store) Resolve(tid uint32, probeName string, returnTSNs uint64) (durationNs uint64, orphan bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[tid]
	if !ok {
		s.orphanReturns[probeName]++
		return 0, true
	}
	delete(s.entries, tid)
	if returnTSNs < e.entryTSNs {
		// Clock anomaly: treat as zero-duration rather than wrapping.
		return 0, false
	}
	return returnTSNs - e.entryTSNs, false
}

// Evicted returns the cumulative number of entries evicted for capacity.
func (s *Store) Evicted() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evicted
}

// OrphanReturns returns the cumulative orphan-return count for a probe.
func (s *Store) OrphanReturns(probeName string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orphanReturns[probeName]
}

// Len returns the number of in-flight pending calls.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

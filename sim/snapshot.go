// Implements the Snapshot and its Store: the only state shared between the
// orchestrator goroutine (single writer) and dashboard readers.

package sim

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/citygrid-sim/citygrid-sim/sim/grid"
	"github.com/citygrid-sim/citygrid-sim/sim/traffic"
)

// Snapshot is the immutable cross-domain state published at the end of one
// fully reconciled cycle. Vehicles and Grid are copies owned by the snapshot;
// nothing mutates them after Publish.
type Snapshot struct {
	Tick      int64                  `json:"tick"`
	Timestamp time.Time              `json:"timestamp"`
	Vehicles  []traffic.VehicleState `json:"vehicles"`
	Grid      *grid.Result           `json:"grid"`
}

// Store holds the latest snapshot plus a fixed-size FIFO ring of history.
// One writer (the orchestrator) and any number of readers: Latest is an
// atomic pointer load, history reads take a shared lock. Readers can never
// observe a partially written snapshot, and ticks seen through Latest are
// non-decreasing.
type Store struct {
	latest atomic.Pointer[Snapshot]

	mu       sync.RWMutex
	ring     []*Snapshot
	next     int // ring index of the next write
	size     int
	capacity int
}

// NewStore creates a store retaining up to capacity snapshots (default 100).
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = 100
	}
	return &Store{ring: make([]*Snapshot, capacity), capacity: capacity}
}

// Publish atomically replaces the latest snapshot and appends it to history,
// evicting the oldest entry once the ring is full. Single-writer only.
func (s *Store) Publish(snap *Snapshot) {
	s.mu.Lock()
	s.ring[s.next] = snap
	s.next = (s.next + 1) % s.capacity
	if s.size < s.capacity {
		s.size++
	}
	s.mu.Unlock()

	s.latest.Store(snap)
}

// Latest returns the most recently published snapshot, or nil before the
// first publish.
func (s *Store) Latest() *Snapshot {
	return s.latest.Load()
}

// At returns the retained snapshot for the given tick, or false if it was
// never published or has been evicted.
func (s *Store) At(tick int64) (*Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := 0; i < s.size; i++ {
		idx := (s.next - 1 - i + s.capacity) % s.capacity
		snap := s.ring[idx]
		if snap == nil {
			break
		}
		if snap.Tick == tick {
			return snap, true
		}
		if snap.Tick < tick {
			break // history is ordered newest-first; tick cannot appear further back
		}
	}
	return nil, false
}

// Len returns the number of retained snapshots.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Capacity returns the history capacity.
func (s *Store) Capacity() int { return s.capacity }

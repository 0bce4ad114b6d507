package sim

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func publishTicks(s *Store, from, to int64) {
	for tick := from; tick <= to; tick++ {
		s.Publish(&Snapshot{Tick: tick, Timestamp: time.Now()})
	}
}

func TestStore_LatestNilBeforeFirstPublish(t *testing.T) {
	s := NewStore(10)
	assert.Nil(t, s.Latest())
	assert.Zero(t, s.Len())
}

func TestStore_PublishThenLatestAndAt(t *testing.T) {
	// GIVEN three published ticks
	s := NewStore(10)
	publishTicks(s, 1, 3)

	// THEN Latest sees the newest and At finds each retained tick
	assert.Equal(t, int64(3), s.Latest().Tick)
	for tick := int64(1); tick <= 3; tick++ {
		snap, ok := s.At(tick)
		assert.True(t, ok, "tick %d", tick)
		assert.Equal(t, tick, snap.Tick)
	}
}

func TestStore_EvictsOldestAtCapacity(t *testing.T) {
	// GIVEN a 5-deep store fed 8 ticks
	s := NewStore(5)
	publishTicks(s, 1, 8)

	// THEN only the newest 5 remain
	assert.Equal(t, 5, s.Len())
	_, ok := s.At(3)
	assert.False(t, ok, "tick 3 should have been evicted")
	snap, ok := s.At(4)
	assert.True(t, ok)
	assert.Equal(t, int64(4), snap.Tick)
	assert.Equal(t, int64(8), s.Latest().Tick)
}

func TestStore_AtUnknownTick(t *testing.T) {
	s := NewStore(10)
	publishTicks(s, 1, 3)
	_, ok := s.At(99)
	assert.False(t, ok)
	_, ok = s.At(0)
	assert.False(t, ok)
}

func TestStore_ZeroCapacityDefaults(t *testing.T) {
	s := NewStore(0)
	assert.Equal(t, 100, s.Capacity())
}

func TestStore_ConcurrentReadersSeeNonDecreasingTicks(t *testing.T) {
	// GIVEN one writer publishing 500 ticks while readers poll Latest
	s := NewStore(50)
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last int64
			for {
				select {
				case <-stop:
					return
				default:
				}
				if snap := s.Latest(); snap != nil {
					// THEN ticks observed through Latest never go backwards
					assert.GreaterOrEqual(t, snap.Tick, last)
					last = snap.Tick
				}
			}
		}()
	}

	publishTicks(s, 1, 500)
	close(stop)
	wg.Wait()
	assert.Equal(t, int64(500), s.Latest().Tick)
}

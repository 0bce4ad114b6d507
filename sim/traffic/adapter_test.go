package traffic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// scriptedSim is a hand-driven TrafficSimulator for adapter tests.
type scriptedSim struct {
	stepFailures int // Step fails this many times before succeeding
	stepCalls    int
	constraints  []Constraint
	vehicles     []VehicleState
}

func (s *scriptedSim) ApplyConstraints(constraints []Constraint) error {
	s.constraints = constraints
	return nil
}

func (s *scriptedSim) Step() error {
	s.stepCalls++
	if s.stepFailures > 0 {
		s.stepFailures--
		return &UnavailableError{Op: "step", Err: assert.AnError}
	}
	return nil
}

func (s *scriptedSim) Vehicles() ([]VehicleState, error) { return s.vehicles, nil }
func (s *scriptedSim) Close() error                      { return nil }

func fastConfig() AdapterConfig {
	return AdapterConfig{MaxAttempts: 3, Backoff: time.Millisecond}
}

func TestAdapterAdvance_PassesConstraintsAndReadsBack(t *testing.T) {
	// GIVEN a simulator holding two vehicles
	ss := &scriptedSim{vehicles: []VehicleState{{ID: "veh_0000"}, {ID: "veh_0001"}}}
	a := NewAdapter(ss, fastConfig())

	// WHEN advanced with a throttle constraint
	cs := []Constraint{{StationID: "cs_x", Throttle: 0.4}}
	got, err := a.Advance(cs)

	// THEN the constraint was applied before the step and the fleet came back
	assert.NoError(t, err)
	assert.Equal(t, cs, ss.constraints)
	assert.Equal(t, 1, ss.stepCalls)
	assert.Len(t, got, 2)
}

func TestAdapterAdvance_RetriesThenSucceeds(t *testing.T) {
	// GIVEN a simulator that fails twice before recovering
	ss := &scriptedSim{stepFailures: 2}
	a := NewAdapter(ss, fastConfig())

	// WHEN advanced
	_, err := a.Advance(nil)

	// THEN the call succeeds after two retries
	assert.NoError(t, err)
	assert.Equal(t, 3, ss.stepCalls)
	assert.Equal(t, 2, a.Retries)
}

func TestAdapterAdvance_ExhaustsRetryBound(t *testing.T) {
	// GIVEN a simulator that fails more times than the retry bound allows
	ss := &scriptedSim{stepFailures: 10}
	a := NewAdapter(ss, fastConfig())

	// WHEN advanced
	_, err := a.Advance(nil)

	// THEN the unavailable error escapes with the attempt count
	assert.Error(t, err)
	assert.True(t, IsUnavailable(err))
	var ue *UnavailableError
	assert.ErrorAs(t, err, &ue)
	assert.Equal(t, 3, ue.Attempts)
	assert.Equal(t, 3, ss.stepCalls)
}

func TestAdapterDefaults(t *testing.T) {
	a := NewAdapter(&scriptedSim{}, AdapterConfig{})
	assert.Equal(t, 3, a.cfg.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, a.cfg.Backoff)
}

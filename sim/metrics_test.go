package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/citygrid-sim/citygrid-sim/sim/grid"
	"github.com/citygrid-sim/citygrid-sim/sim/traffic"
)

func TestMetricsObserve_FoldsSnapshots(t *testing.T) {
	// GIVEN two observed ticks, the second with a shortfall
	m := NewMetrics()
	m.Observe(&Snapshot{
		Tick: 1,
		Vehicles: []traffic.VehicleState{
			{ID: "veh_0001", Charging: true, ChargingDemandKW: 36},
			{ID: "veh_0002"},
		},
		Grid: &grid.Result{},
	}, 100, 0, 0)
	m.Observe(&Snapshot{
		Tick:     2,
		Vehicles: []traffic.VehicleState{{ID: "veh_0001"}},
		Grid:     &grid.Result{Shortfall: true, ShortfallMW: 12.5},
	}, 100, 3, 1)

	// THEN the aggregates reflect both ticks
	assert.Equal(t, int64(2), m.TicksCompleted)
	assert.Equal(t, 2, m.PeakVehicles)
	assert.InDelta(t, 12.5, m.PeakShortfallMW, 1e-9)
	assert.Equal(t, int64(1), m.TicksInShortfall)
	// 36 kW over 100 simulated seconds is 1 kWh
	assert.InDelta(t, 1.0, m.EnergyDeliveredKWh, 1e-9)
	assert.Equal(t, int64(3), m.ConstraintsEmitted)
	assert.Equal(t, 1, m.AdapterRetries)
}

// Tracks run-wide aggregates for final reporting.

package sim

import (
	"fmt"
	"time"
)

// Metrics aggregates statistics over a run for end-of-run reporting and the
// /status surface. Updated only from the orchestrator goroutine.
type Metrics struct {
	TicksCompleted     int64   // number of fully reconciled cycles
	PeakVehicles       int     // max fleet size observed in one tick
	PeakShortfallMW    float64 // worst system-wide shortfall in one tick
	TicksInShortfall   int64   // ticks where any node was short
	EnergyDeliveredKWh float64 // charging energy actually delivered to vehicles
	ConstraintsEmitted int64   // total throttling constraints fed back
	AdapterRetries     int     // traffic adapter retries over the run
	HaltReason         string  // empty while running; set on halt
}

// NewMetrics returns zeroed metrics.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Observe folds one published snapshot into the aggregates. stepSec is the
// simulated seconds covered by the tick.
func (m *Metrics) Observe(snap *Snapshot, stepSec float64, constraints int, retries int) {
	m.TicksCompleted = snap.Tick
	if len(snap.Vehicles) > m.PeakVehicles {
		m.PeakVehicles = len(snap.Vehicles)
	}
	if snap.Grid.ShortfallMW > m.PeakShortfallMW {
		m.PeakShortfallMW = snap.Grid.ShortfallMW
	}
	if snap.Grid.Shortfall {
		m.TicksInShortfall++
	}
	for _, v := range snap.Vehicles {
		if v.Charging {
			m.EnergyDeliveredKWh += v.ChargingDemandKW * stepSec / 3600
		}
	}
	m.ConstraintsEmitted += int64(constraints)
	m.AdapterRetries = retries
}

// Print displays aggregated metrics at the end of a run.
func (m *Metrics) Print(start time.Time) {
	fmt.Println("=== Co-Simulation Metrics ===")
	fmt.Printf("Ticks Completed       : %d\n", m.TicksCompleted)
	fmt.Printf("Peak Vehicles         : %d\n", m.PeakVehicles)
	fmt.Printf("Peak Shortfall        : %.2f MW\n", m.PeakShortfallMW)
	fmt.Printf("Ticks In Shortfall    : %d\n", m.TicksInShortfall)
	fmt.Printf("Energy Delivered      : %.2f kWh\n", m.EnergyDeliveredKWh)
	fmt.Printf("Constraints Emitted   : %d\n", m.ConstraintsEmitted)
	fmt.Printf("Adapter Retries       : %d\n", m.AdapterRetries)
	if m.HaltReason != "" {
		fmt.Printf("Halt Reason           : %s\n", m.HaltReason)
	}
	fmt.Printf("Wall Time             : %s\n", time.Since(start).Round(time.Millisecond))
}

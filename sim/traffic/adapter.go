// Implements the Adapter, the single entry point the orchestration loop uses
// to drive a traffic simulator one tick at a time.

package traffic

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// VehicleKind identifies a vehicle class with its energy profile.
type VehicleKind string

const (
	SedanEV  VehicleKind = "sedan_ev"
	SUVEV    VehicleKind = "suv_ev"
	TaxiEV   VehicleKind = "taxi_ev"
	BusEV    VehicleKind = "bus_ev"
	SedanGas VehicleKind = "sedan_gas"
	SUVGas   VehicleKind = "suv_gas"
	TaxiGas  VehicleKind = "taxi_gas"
)

// IsEV reports whether the vehicle class is battery-electric.
func (k VehicleKind) IsEV() bool {
	switch k {
	case SedanEV, SUVEV, TaxiEV, BusEV:
		return true
	}
	return false
}

// VehicleState is the per-vehicle view read back from the simulator each tick.
// The orchestrator copies these values into the published snapshot; nothing
// outside this package holds a reference into the simulator's own fleet state.
type VehicleState struct {
	ID               string      `json:"id"`
	Kind             VehicleKind `json:"kind"`
	X                float64     `json:"x"` // position, simulator plane coordinates
	Y                float64     `json:"y"`
	SpeedMPS         float64     `json:"speed_mps"`
	SOC              float64     `json:"soc"` // state of charge, 0..1 (EV only)
	BatteryKWh       float64     `json:"battery_kwh,omitempty"`
	ChargingDemandKW float64     `json:"charging_demand_kw"`
	StationID        string      `json:"station_id,omitempty"` // charging-node affinity, empty = none
	Charging         bool        `json:"charging"`
	WaitingSec       float64     `json:"waiting_sec"`
	DistanceKM       float64     `json:"distance_km"`
}

// Constraint throttles the charging demand drawn at a single station.
// Throttle is the fraction of demand to shed, in [0, 1]; 1 means the station
// accepts no new draw. Stations with no constraint run unthrottled.
type Constraint struct {
	StationID string  `json:"station_id"`
	Throttle  float64 `json:"throttle"`
}

// TrafficSimulator is the capability interface over a stepped traffic
// simulator. Implementations advance exactly one simulated time unit per
// Step call. The production implementation talks to an external process
// (RemoteTraffic); VirtualTraffic runs in-process for demos and tests.
type TrafficSimulator interface {
	// ApplyConstraints installs the station throttles for the next step.
	// The given set replaces any previously applied constraints.
	ApplyConstraints(constraints []Constraint) error
	// Step advances the simulator one simulated time unit.
	Step() error
	// Vehicles reads back the state of every active vehicle.
	Vehicles() ([]VehicleState, error)
	Close() error
}

// UnavailableError reports that the underlying simulator was unreachable or
// returned malformed data. Transient at the call site; the Adapter retries a
// bounded number of times before letting it escape.
type UnavailableError struct {
	Op       string // the adapter operation that failed
	Attempts int    // attempts made before giving up (0 for a single failure)
	Err      error
}

func (e *UnavailableError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("traffic simulator unavailable: %s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
	}
	return fmt.Sprintf("traffic simulator unavailable: %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// IsUnavailable returns true if the error is a simulator-unavailable error.
// Uses errors.As to handle wrapped errors.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// AdapterConfig groups retry behavior for the Adapter.
type AdapterConfig struct {
	MaxAttempts int           // attempts per Advance before the error escapes (default 3)
	Backoff     time.Duration // initial backoff between attempts, doubled each retry (default 100ms)
}

// Adapter drives a TrafficSimulator one tick at a time with bounded retry.
// It owns the fleet state between ticks: callers only ever see the copies
// returned by Advance.
type Adapter struct {
	ts      TrafficSimulator
	cfg     AdapterConfig
	Retries int // total retries performed over the run, for metrics
}

// NewAdapter wraps a TrafficSimulator with retry behavior.
func NewAdapter(ts TrafficSimulator, cfg AdapterConfig) *Adapter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 100 * time.Millisecond
	}
	return &Adapter{ts: ts, cfg: cfg}
}

// Sim exposes the wrapped simulator for capability probing (e.g. fleet
// spawning on the virtual simulator). The orchestration loop must still go
// through Advance for stepping.
func (a *Adapter) Sim() TrafficSimulator { return a.ts }

// Advance applies the prior tick's constraints, steps the simulator exactly
// one simulated time unit, and reads back vehicle state. Unavailable errors
// are retried with exponential backoff up to MaxAttempts; the final error is
// returned for the orchestrator to treat as fatal for the run.
func (a *Adapter) Advance(constraints []Constraint) ([]VehicleState, error) {
	var lastErr error
	backoff := a.cfg.Backoff

	for attempt := 1; attempt <= a.cfg.MaxAttempts; attempt++ {
		vehicles, err := a.advanceOnce(constraints)
		if err == nil {
			return vehicles, nil
		}
		if !IsUnavailable(err) {
			return nil, err
		}
		lastErr = err
		if attempt < a.cfg.MaxAttempts {
			a.Retries++
			logrus.Warnf("traffic adapter: attempt %d/%d failed, retrying in %s: %v",
				attempt, a.cfg.MaxAttempts, backoff, err)
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return nil, &UnavailableError{Op: "advance", Attempts: a.cfg.MaxAttempts, Err: lastErr}
}

func (a *Adapter) advanceOnce(constraints []Constraint) ([]VehicleState, error) {
	if err := a.ts.ApplyConstraints(constraints); err != nil {
		return nil, err
	}
	if err := a.ts.Step(); err != nil {
		return nil, err
	}
	return a.ts.Vehicles()
}

// Close releases the underlying simulator.
func (a *Adapter) Close() error { return a.ts.Close() }

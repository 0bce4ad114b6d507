// VirtualTraffic is an in-process stepped traffic simulator. It stands in for
// the external simulator process during demos and tests, the same way a
// virtual device stands in for field hardware.

package traffic

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
)

// kindProfile holds the energy model for one vehicle class.
type kindProfile struct {
	batteryKWh    float64
	consumption   float64 // kWh per km
	maxSpeedMPS   float64
	chargeBelow   float64 // SOC threshold that triggers routing to a charger
	chargeRateKW  float64 // draw while plugged in
	spawnFraction float64 // relative weight when spawning an EV/gas split
}

// Per-class parameters follow common curb-weight classes: a bus carries a far
// larger pack and draws more per km than a sedan.
var kindProfiles = map[VehicleKind]kindProfile{
	SedanEV:  {batteryKWh: 75, consumption: 0.18, maxSpeedMPS: 22.2, chargeBelow: 0.20, chargeRateKW: 50, spawnFraction: 0.40},
	SUVEV:    {batteryKWh: 100, consumption: 0.25, maxSpeedMPS: 20.0, chargeBelow: 0.20, chargeRateKW: 50, spawnFraction: 0.25},
	TaxiEV:   {batteryKWh: 60, consumption: 0.16, maxSpeedMPS: 22.2, chargeBelow: 0.25, chargeRateKW: 50, spawnFraction: 0.25},
	BusEV:    {batteryKWh: 300, consumption: 1.20, maxSpeedMPS: 16.0, chargeBelow: 0.30, chargeRateKW: 150, spawnFraction: 0.10},
	SedanGas: {maxSpeedMPS: 22.2, spawnFraction: 0.55},
	SUVGas:   {maxSpeedMPS: 20.0, spawnFraction: 0.30},
	TaxiGas:  {maxSpeedMPS: 22.2, spawnFraction: 0.15},
}

var evKinds = []VehicleKind{SedanEV, SUVEV, TaxiEV, BusEV}
var gasKinds = []VehicleKind{SedanGas, SUVGas, TaxiGas}

// scenarioFactor scales fleet activity by time-of-day scenario.
func scenarioFactor(scenario string) float64 {
	switch scenario {
	case "night":
		return 0.3
	case "morning_rush", "evening_rush":
		return 1.5
	case "evening":
		return 0.8
	default: // midday
		return 1.0
	}
}

// Station is a charging point placed on the simulator plane. ID must match a
// charging node in the grid topology so that demand lands on the right bus.
type Station struct {
	ID    string  `yaml:"id" json:"id"`
	X     float64 `yaml:"x" json:"x"`
	Y     float64 `yaml:"y" json:"y"`
	Slots int     `yaml:"slots" json:"slots"`
}

// FleetConfig groups the virtual fleet parameters.
type FleetConfig struct {
	Vehicles      int     // initial fleet size
	EVFraction    float64 // share of battery-electric vehicles, 0..1
	Scenario      string  // time-of-day scenario (night, morning_rush, midday, evening_rush, evening)
	Seed          int64   // RNG seed; identical seeds replay identical fleets
	StepLengthSec float64 // simulated seconds per Step (default 1.0)
	WorldSize     float64 // side length of the square plane (default 10000 m)
}

type virtualVehicle struct {
	state   VehicleState
	heading float64
	profile kindProfile
}

// VirtualTraffic simulates a fleet of vehicles on a square plane: random-walk
// movement, SOC drain proportional to distance, and charging-station routing
// once SOC falls under the per-class threshold. Station throttles shed the
// corresponding fraction of charging draw, mirroring how a grid-side brownout
// reaches the curb.
type VirtualTraffic struct {
	mu        sync.Mutex
	cfg       FleetConfig
	rng       *rand.Rand
	vehicles  map[string]*virtualVehicle
	order     []string // stable iteration order for deterministic replay
	stations  map[string]*Station
	throttles map[string]float64
	spawned   int
	failures  int // pending induced failures, for fault-injection in tests
	closed    bool
}

// NewVirtualTraffic builds a fleet simulator with the given stations.
func NewVirtualTraffic(cfg FleetConfig, stations []Station) *VirtualTraffic {
	if cfg.StepLengthSec <= 0 {
		cfg.StepLengthSec = 1.0
	}
	if cfg.WorldSize <= 0 {
		cfg.WorldSize = 10000
	}
	vt := &VirtualTraffic{
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		vehicles:  make(map[string]*virtualVehicle),
		stations:  make(map[string]*Station),
		throttles: make(map[string]float64),
	}
	for i := range stations {
		st := stations[i]
		vt.stations[st.ID] = &st
	}
	vt.Spawn(cfg.Vehicles)
	return vt
}

// Spawn adds count vehicles to the fleet, split between EV and gas classes
// according to the configured EV fraction.
func (vt *VirtualTraffic) Spawn(count int) {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	for i := 0; i < count; i++ {
		kind := vt.pickKind()
		profile := kindProfiles[kind]
		id := fmt.Sprintf("veh_%04d", vt.spawned)
		vt.spawned++
		v := &virtualVehicle{
			state: VehicleState{
				ID:         id,
				Kind:       kind,
				X:          vt.rng.Float64() * vt.cfg.WorldSize,
				Y:          vt.rng.Float64() * vt.cfg.WorldSize,
				SOC:        0.5 + vt.rng.Float64()*0.5, // spawn between 50% and full
				BatteryKWh: profile.batteryKWh,
			},
			heading: vt.rng.Float64() * 2 * math.Pi,
			profile: profile,
		}
		if !kind.IsEV() {
			v.state.SOC = 0
			v.state.BatteryKWh = 0
		}
		vt.vehicles[id] = v
		vt.order = append(vt.order, id)
	}
}

func (vt *VirtualTraffic) pickKind() VehicleKind {
	kinds := gasKinds
	if vt.rng.Float64() < vt.cfg.EVFraction {
		kinds = evKinds
	}
	total := 0.0
	for _, k := range kinds {
		total += kindProfiles[k].spawnFraction
	}
	r := vt.rng.Float64() * total
	for _, k := range kinds {
		r -= kindProfiles[k].spawnFraction
		if r <= 0 {
			return k
		}
	}
	return kinds[len(kinds)-1]
}

// FailNext makes the next n Step calls fail with UnavailableError. Used to
// exercise the adapter retry bound and the orchestrator halt path.
func (vt *VirtualTraffic) FailNext(n int) {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	vt.failures = n
}

// ApplyConstraints replaces the station throttle set. Stations absent from
// the new set return to unthrottled operation.
func (vt *VirtualTraffic) ApplyConstraints(constraints []Constraint) error {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	if vt.closed {
		return &UnavailableError{Op: "constraints", Err: fmt.Errorf("simulator closed")}
	}
	vt.throttles = make(map[string]float64, len(constraints))
	for _, c := range constraints {
		vt.throttles[c.StationID] = math.Min(1, math.Max(0, c.Throttle))
	}
	return nil
}

// Step advances every vehicle one simulated time unit.
func (vt *VirtualTraffic) Step() error {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	if vt.closed {
		return &UnavailableError{Op: "step", Err: fmt.Errorf("simulator closed")}
	}
	if vt.failures > 0 {
		vt.failures--
		return &UnavailableError{Op: "step", Err: fmt.Errorf("induced failure")}
	}

	dt := vt.cfg.StepLengthSec
	factor := scenarioFactor(vt.cfg.Scenario)
	for _, id := range vt.order {
		vt.stepVehicle(vt.vehicles[id], dt, factor)
	}
	return nil
}

func (vt *VirtualTraffic) stepVehicle(v *virtualVehicle, dt, factor float64) {
	s := &v.state

	if s.Charging {
		vt.chargeVehicle(v, dt)
		return
	}

	// Random-walk movement: drift the heading, speed toward the class limit
	// scaled by scenario activity.
	v.heading += (vt.rng.Float64() - 0.5) * 0.5
	s.SpeedMPS = v.profile.maxSpeedMPS * factor * (0.5 + vt.rng.Float64()*0.5)
	if s.SpeedMPS > v.profile.maxSpeedMPS {
		s.SpeedMPS = v.profile.maxSpeedMPS
	}
	dist := s.SpeedMPS * dt
	s.X = clamp(s.X+dist*math.Cos(v.heading), 0, vt.cfg.WorldSize)
	s.Y = clamp(s.Y+dist*math.Sin(v.heading), 0, vt.cfg.WorldSize)
	s.DistanceKM += dist / 1000

	if !s.Kind.IsEV() {
		return
	}

	// Battery drain by distance.
	used := (dist / 1000) * v.profile.consumption
	if s.BatteryKWh > 0 {
		s.SOC = math.Max(0, s.SOC-used/s.BatteryKWh)
	}

	// Below the class threshold the vehicle acquires a station affinity and
	// heads for the nearest charger.
	if s.StationID == "" && s.SOC < v.profile.chargeBelow {
		if st := vt.nearestStation(s.X, s.Y); st != nil {
			s.StationID = st.ID
		}
	}

	if s.StationID != "" {
		st := vt.stations[s.StationID]
		if st == nil {
			s.StationID = ""
			return
		}
		// Demand is declared while en route so the grid sees the draw coming;
		// station throttle sheds the matching fraction.
		s.ChargingDemandKW = v.profile.chargeRateKW * (1 - vt.throttles[st.ID])
		vt.driveToward(v, st, dt)
		if distance(s.X, s.Y, st.X, st.Y) < 50 {
			s.Charging = true
			s.SpeedMPS = 0
		}
	} else {
		s.ChargingDemandKW = 0
	}
}

func (vt *VirtualTraffic) chargeVehicle(v *virtualVehicle, dt float64) {
	s := &v.state
	s.SpeedMPS = 0
	s.WaitingSec += dt
	rate := v.profile.chargeRateKW * (1 - vt.throttles[s.StationID])
	s.ChargingDemandKW = rate
	if s.BatteryKWh > 0 {
		s.SOC = math.Min(1, s.SOC+(rate*dt/3600)/s.BatteryKWh)
	}
	// Charged enough: release the plug and rejoin traffic.
	if s.SOC >= 0.8 {
		s.Charging = false
		s.StationID = ""
		s.ChargingDemandKW = 0
		v.heading = vt.rng.Float64() * 2 * math.Pi
	}
}

func (vt *VirtualTraffic) driveToward(v *virtualVehicle, st *Station, dt float64) {
	s := &v.state
	v.heading = math.Atan2(st.Y-s.Y, st.X-s.X)
	step := s.SpeedMPS * dt
	d := distance(s.X, s.Y, st.X, st.Y)
	if step > d {
		step = d
	}
	s.X += step * math.Cos(v.heading)
	s.Y += step * math.Sin(v.heading)
}

func (vt *VirtualTraffic) nearestStation(x, y float64) *Station {
	var nearest *Station
	best := math.Inf(1)
	for _, st := range vt.stations {
		d := distance(x, y, st.X, st.Y)
		if d < best {
			best = d
			nearest = st
		}
	}
	return nearest
}

// Vehicles returns a copy of every vehicle's state in spawn order.
func (vt *VirtualTraffic) Vehicles() ([]VehicleState, error) {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	if vt.closed {
		return nil, &UnavailableError{Op: "vehicles", Err: fmt.Errorf("simulator closed")}
	}
	out := make([]VehicleState, 0, len(vt.order))
	for _, id := range vt.order {
		out = append(out, vt.vehicles[id].state)
	}
	return out, nil
}

// Close stops the simulator; further calls fail with UnavailableError.
func (vt *VirtualTraffic) Close() error {
	vt.mu.Lock()
	defer vt.mu.Unlock()
	vt.closed = true
	return nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func distance(x1, y1, x2, y2 float64) float64 {
	return math.Hypot(x2-x1, y2-y1)
}

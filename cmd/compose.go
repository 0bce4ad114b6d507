// Composition helpers shared by the run and serve subcommands: load and
// validate configuration, then wire grid model, traffic simulator, adapter,
// and orchestrator together. Validation failures surface here, before the
// orchestration loop ever starts.

package cmd

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/citygrid-sim/citygrid-sim/sim"
	"github.com/citygrid-sim/citygrid-sim/sim/grid"
	"github.com/citygrid-sim/citygrid-sim/sim/traffic"
)

// loadScenario resolves the effective scenario: file if given, flags otherwise.
func loadScenario() *sim.ScenarioSpec {
	if scenarioPath != "" {
		spec, err := sim.LoadScenarioSpec(scenarioPath)
		if err != nil {
			logrus.Fatalf("unable to load scenario: %v", err)
		}
		return spec
	}
	spec := &sim.ScenarioSpec{
		Seed:           seed,
		Scenario:       scenario,
		Vehicles:       vehicles,
		EVFraction:     evFraction,
		HorizonTicks:   horizonTicks,
		TickIntervalMS: tickIntervalMS,
		History:        historySize,
		IntentQueue:    intentQueue,
	}
	if err := spec.Validate(); err != nil {
		logrus.Fatalf("invalid scenario flags: %v", err)
	}
	return spec
}

// loadGrid resolves the effective topology: file if given, built-in otherwise.
func loadGrid() *grid.Model {
	topo := grid.DefaultTopology()
	if topologyPath != "" {
		loaded, err := grid.LoadTopology(topologyPath)
		if err != nil {
			logrus.Fatalf("unable to load grid topology: %v", err)
		}
		topo = loaded
	}
	model, err := grid.NewModel(topo)
	if err != nil {
		logrus.Fatalf("invalid grid topology: %v", err)
	}
	return model
}

// stationsFor places one traffic-side charging station per charging node in
// the topology. Known default nodes use their curated placements; anything
// else is spread deterministically across the plane.
func stationsFor(topo *grid.Topology) []traffic.Station {
	placements := grid.DefaultStationPlacements()
	var stations []traffic.Station
	i := 0
	for _, n := range topo.Nodes {
		if n.Kind != grid.KindCharging {
			continue
		}
		st := traffic.Station{ID: n.ID, Slots: 20}
		if pos, ok := placements[n.ID]; ok {
			st.X, st.Y = pos[0], pos[1]
		} else {
			st.X = float64(1500 + (i%4)*2400)
			st.Y = float64(1500 + (i/4)*2400)
		}
		stations = append(stations, st)
		i++
	}
	return stations
}

// buildEngine wires the full co-simulation engine from the resolved config.
func buildEngine(spec *sim.ScenarioSpec) *sim.Orchestrator {
	model := loadGrid()

	var ts traffic.TrafficSimulator
	if remoteAddr != "" {
		remote, err := traffic.DialRemote(remoteAddr, time.Duration(remoteTimeout)*time.Millisecond)
		if err != nil {
			logrus.Fatalf("unable to reach traffic simulator at %s: %v", remoteAddr, err)
		}
		ts = remote
		logrus.Infof("using remote traffic simulator at %s", remoteAddr)
	} else {
		ts = traffic.NewVirtualTraffic(traffic.FleetConfig{
			Vehicles:   spec.Vehicles,
			EVFraction: spec.EVFraction,
			Scenario:   spec.Scenario,
			Seed:       spec.Seed,
		}, stationsFor(model.Topology()))
		logrus.Infof("using virtual fleet: %d vehicles, %.0f%% EV, scenario=%s",
			spec.Vehicles, spec.EVFraction*100, spec.Scenario)
	}

	adapter := traffic.NewAdapter(ts, traffic.AdapterConfig{})
	return sim.NewOrchestrator(adapter, model, spec.OrchestratorConfig())
}

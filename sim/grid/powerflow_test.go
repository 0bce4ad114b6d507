package grid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSolveDC_TwoBusFlowMatchesLoad(t *testing.T) {
	// GIVEN one slack bus feeding one 110 MW load over a single line
	m, err := NewModel(twoNodeTopology())
	assert.NoError(t, err)

	// WHEN the flow is solved
	res, err := m.Step(Injection{"cs_x": 20})
	assert.NoError(t, err)

	// THEN the line carries exactly the load, slack to charging node
	assert.Len(t, res.Flows, 1)
	assert.InDelta(t, 110.0, res.Flows[0].FlowMW, 1e-6)
	assert.Equal(t, "sub_a", res.Flows[0].From)
}

func TestSolveDC_StarNetworkConservesPower(t *testing.T) {
	// GIVEN a slack hub feeding two loads over separate lines
	topo := &Topology{
		SlackBus: "hub",
		Nodes: []Node{
			{ID: "hub", Kind: KindBus, CapacityMW: 500},
			{ID: "east", Kind: KindLoad, BaseLoadMW: 40, CapacityMW: 100},
			{ID: "west", Kind: KindLoad, BaseLoadMW: 60, CapacityMW: 100},
		},
		Lines: []Line{
			{From: "hub", To: "east", SusceptancePU: 8},
			{From: "hub", To: "west", SusceptancePU: 5},
		},
	}
	m, err := NewModel(topo)
	assert.NoError(t, err)

	// WHEN solved
	res, err := m.Step(Injection{})
	assert.NoError(t, err)

	// THEN each line carries its own load and the slack supplies the sum
	total := 0.0
	for _, f := range res.Flows {
		switch f.To {
		case "east":
			assert.InDelta(t, 40.0, f.FlowMW, 1e-6)
		case "west":
			assert.InDelta(t, 60.0, f.FlowMW, 1e-6)
		}
		total += f.FlowMW
	}
	assert.InDelta(t, 100.0, total, 1e-6)
	assert.InDelta(t, 100.0, res.SlackMW, 1e-6)
}

func TestSolveDC_LineOverloadFlagged(t *testing.T) {
	// GIVEN a line whose thermal limit sits below the load it must carry
	topo := twoNodeTopology()
	topo.Lines[0].LimitMW = 80
	m, err := NewModel(topo)
	assert.NoError(t, err)

	// WHEN solved at 90 MW baseline
	res, err := m.Step(Injection{})
	assert.NoError(t, err)

	// THEN the overload flag is set
	assert.True(t, res.Flows[0].Overloaded)
}

func TestSolveDC_MeshSplitsByLineStrength(t *testing.T) {
	// GIVEN two parallel paths of different susceptance to the same load
	topo := &Topology{
		SlackBus: "src",
		Nodes: []Node{
			{ID: "src", Kind: KindBus, CapacityMW: 500},
			{ID: "mid", Kind: KindBus, CapacityMW: 500},
			{ID: "sink", Kind: KindLoad, BaseLoadMW: 90, CapacityMW: 200},
		},
		Lines: []Line{
			{From: "src", To: "sink", SusceptancePU: 6},
			{From: "src", To: "mid", SusceptancePU: 12},
			{From: "mid", To: "sink", SusceptancePU: 12},
		},
	}
	m, err := NewModel(topo)
	assert.NoError(t, err)

	// WHEN solved
	res, err := m.Step(Injection{})
	assert.NoError(t, err)

	// THEN flow into the sink sums to the load across both paths (the two
	// paths have equal effective susceptance, so both must carry flow)
	var direct, viaMid float64
	for _, f := range res.Flows {
		if f.From == "src" && f.To == "sink" {
			direct = f.FlowMW
		}
		if f.From == "mid" && f.To == "sink" {
			viaMid = f.FlowMW
		}
	}
	assert.InDelta(t, 90.0, direct+viaMid, 1e-6)
	assert.Greater(t, math.Abs(direct), 0.0)
	assert.Greater(t, math.Abs(viaMid), 0.0)
}

package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// twoNodeTopology is the smallest useful network: one slack substation
// feeding one charging node.
func twoNodeTopology() *Topology {
	return &Topology{
		SlackBus: "sub_a",
		Nodes: []Node{
			{ID: "sub_a", Kind: KindBus, CapacityMW: 500, VoltageKV: 138},
			{ID: "cs_x", Kind: KindCharging, BaseLoadMW: 90, CapacityMW: 100, VoltageKV: 13.8, FeedFrom: "sub_a"},
		},
		Lines: []Line{
			{From: "sub_a", To: "cs_x", SusceptancePU: 10, LimitMW: 200},
		},
	}
}

func TestTopologyValidate_Defects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Topology)
	}{
		{"empty node id", func(tp *Topology) { tp.Nodes[1].ID = "" }},
		{"duplicate node id", func(tp *Topology) { tp.Nodes[1].ID = "sub_a" }},
		{"unknown kind", func(tp *Topology) { tp.Nodes[1].Kind = "windmill" }},
		{"negative load", func(tp *Topology) { tp.Nodes[1].BaseLoadMW = -1 }},
		{"unknown slack", func(tp *Topology) { tp.SlackBus = "nope" }},
		{"missing slack", func(tp *Topology) { tp.SlackBus = "" }},
		{"dangling line", func(tp *Topology) { tp.Lines[0].To = "ghost" }},
		{"self loop", func(tp *Topology) { tp.Lines[0].To = "sub_a" }},
		{"non-positive susceptance", func(tp *Topology) { tp.Lines[0].SusceptancePU = 0 }},
		{"bad feed reference", func(tp *Topology) { tp.Nodes[1].FeedFrom = "ghost" }},
		{"island", func(tp *Topology) { tp.Lines = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			topo := twoNodeTopology()
			tc.mutate(topo)
			err := topo.Validate()
			assert.Error(t, err)
			var te *TopologyError
			assert.ErrorAs(t, err, &te)
		})
	}
}

func TestTopologyValidate_DefaultTopologyIsValid(t *testing.T) {
	assert.NoError(t, DefaultTopology().Validate())
}

func TestModelStep_ShortfallScenario(t *testing.T) {
	// GIVEN a charging node with capacity 100 MW and baseline load 90 MW
	m, err := NewModel(twoNodeTopology())
	assert.NoError(t, err)

	// WHEN a 20 MW injection lands on it
	res, err := m.Step(Injection{"cs_x": 20})
	assert.NoError(t, err)

	// THEN the node is 10 MW short and the global flag is raised
	node := findNode(t, res, "cs_x")
	assert.InDelta(t, 110.0, node.LoadMW, 1e-9)
	assert.InDelta(t, 10.0, node.ShortfallMW, 1e-9)
	assert.True(t, res.Shortfall)
	assert.InDelta(t, 10.0, res.ShortfallMW, 1e-9)
}

func TestModelStep_NoInjectionKeepsBaseline(t *testing.T) {
	// GIVEN the two-node network
	m, err := NewModel(twoNodeTopology())
	assert.NoError(t, err)

	// WHEN stepped with an empty injection
	res, err := m.Step(Injection{})
	assert.NoError(t, err)

	// THEN the charging node carries its baseline and nothing is short
	node := findNode(t, res, "cs_x")
	assert.InDelta(t, 90.0, node.LoadMW, 1e-9)
	assert.Zero(t, node.ShortfallMW)
	assert.False(t, res.Shortfall)
}

func TestModelStep_UnknownNodeIsInvalidInjection(t *testing.T) {
	// GIVEN the two-node network
	m, err := NewModel(twoNodeTopology())
	assert.NoError(t, err)

	// WHEN an injection references a node the topology does not contain
	_, err = m.Step(Injection{"cs_ghost": 5})

	// THEN the step fails with the injection contract violation
	assert.Error(t, err)
	assert.True(t, IsInvalidInjection(err))
}

func TestModelStep_ShortfallNeverNegative(t *testing.T) {
	// GIVEN a mix of lightly and heavily loaded nodes
	m, err := NewModel(DefaultTopology())
	assert.NoError(t, err)

	// WHEN stepped with injections of varying size
	for _, injMW := range []float64{0, 0.5, 2, 50} {
		res, err := m.Step(Injection{"cs_bryant_park": injMW})
		assert.NoError(t, err)

		// THEN every node reports shortfall >= 0
		for _, n := range res.Nodes {
			assert.GreaterOrEqual(t, n.ShortfallMW, 0.0, "node %s", n.ID)
		}
	}
}

func TestModelStep_ResultNodesSortedByID(t *testing.T) {
	m, err := NewModel(DefaultTopology())
	assert.NoError(t, err)
	res, err := m.Step(Injection{})
	assert.NoError(t, err)
	for i := 1; i < len(res.Nodes); i++ {
		assert.Less(t, res.Nodes[i-1].ID, res.Nodes[i].ID)
	}
}

func TestModelFail_CascadesThroughFeed(t *testing.T) {
	// GIVEN the default network with the Times Square substation failed
	m, err := NewModel(DefaultTopology())
	assert.NoError(t, err)
	assert.NoError(t, m.Fail("sub_times_square"))

	// WHEN the grid is stepped
	res, err := m.Step(Injection{})
	assert.NoError(t, err)

	// THEN the substation and everything fed from it lose capacity and go
	// fully short, while other feeds are untouched
	for _, id := range []string{"sub_times_square", "load_theater_district", "cs_times_square_garage", "cs_bryant_park"} {
		n := findNode(t, res, id)
		assert.True(t, n.Failed, "node %s should be down", id)
		assert.Zero(t, n.CapacityMW, "node %s", id)
		assert.InDelta(t, n.LoadMW, n.ShortfallMW, 1e-9, "node %s", id)
	}
	healthy := findNode(t, res, "cs_grand_central")
	assert.False(t, healthy.Failed)

	// AND restoring brings capacity back
	assert.NoError(t, m.Restore("sub_times_square"))
	res, err = m.Step(Injection{})
	assert.NoError(t, err)
	assert.False(t, findNode(t, res, "cs_times_square_garage").Failed)
}

func TestModelFail_UnknownNodeRejected(t *testing.T) {
	m, err := NewModel(twoNodeTopology())
	assert.NoError(t, err)
	assert.Error(t, m.Fail("ghost"))
	assert.Error(t, m.Restore("ghost"))
}

func findNode(t *testing.T, res *Result, id string) NodeResult {
	t.Helper()
	for _, n := range res.Nodes {
		if n.ID == id {
			return n
		}
	}
	t.Fatalf("node %s not in result", id)
	return NodeResult{}
}

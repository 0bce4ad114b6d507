// Package grid models the electrical network: topology, per-tick load
// injection, a linearized DC power flow, and node-level shortfall detection.
//
// Topology is loaded once and validated before the orchestration loop starts;
// anything malformed fails fast at initialization rather than mid-tick.
package grid

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// NodeKind classifies a grid node.
type NodeKind string

const (
	KindBus      NodeKind = "bus"      // substation / transmission bus
	KindLoad     NodeKind = "load"     // aggregate street load (traffic signals, buildings)
	KindCharging NodeKind = "charging" // EV charging point
)

// Node is one element of the grid topology. CapacityMW of 0 on a pure bus
// means the node carries no local load limit of its own.
type Node struct {
	ID         string   `yaml:"id"`
	Kind       NodeKind `yaml:"kind"`
	BaseLoadMW float64  `yaml:"base_load_mw"`
	CapacityMW float64  `yaml:"capacity_mw"`
	VoltageKV  float64  `yaml:"voltage_kv"`
	// FeedFrom names the upstream substation bus. When that bus fails, this
	// node loses supply as well (cascading outage).
	FeedFrom string `yaml:"feed_from,omitempty"`
}

// Line is a branch between two nodes with a per-unit susceptance for the DC
// flow approximation and an optional thermal limit.
type Line struct {
	From          string  `yaml:"from"`
	To            string  `yaml:"to"`
	SusceptancePU float64 `yaml:"susceptance_pu"`
	LimitMW       float64 `yaml:"limit_mw,omitempty"`
}

// Topology is the static grid description.
type Topology struct {
	SlackBus string `yaml:"slack_bus"`
	Nodes    []Node `yaml:"nodes"`
	Lines    []Line `yaml:"lines"`
}

// TopologyError reports an invalid grid description, surfaced at load time.
type TopologyError struct {
	Field   string
	Message string
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("invalid grid topology: %s: %s", e.Field, e.Message)
}

// InvalidInjectionError reports an injection referencing a node the topology
// does not contain. This is an internal contract violation between the
// reconciler and the grid model and must halt the run, not be retried.
type InvalidInjectionError struct {
	NodeID string
}

func (e *InvalidInjectionError) Error() string {
	return fmt.Sprintf("invalid injection: unknown grid node %q", e.NodeID)
}

// IsInvalidInjection returns true if the error is an injection contract
// violation. Uses errors.As to handle wrapped errors.
func IsInvalidInjection(err error) bool {
	var ie *InvalidInjectionError
	return errors.As(err, &ie)
}

// Validate checks the topology for structural defects: duplicate or empty
// node ids, dangling line endpoints, non-positive susceptance, unknown slack
// bus, bad feed references, and electrical islands.
func (t *Topology) Validate() error {
	if len(t.Nodes) == 0 {
		return &TopologyError{Field: "nodes", Message: "at least one node required"}
	}
	ids := make(map[string]bool, len(t.Nodes))
	for _, n := range t.Nodes {
		if n.ID == "" {
			return &TopologyError{Field: "nodes", Message: "node with empty id"}
		}
		if ids[n.ID] {
			return &TopologyError{Field: "nodes", Message: fmt.Sprintf("duplicate node id %q", n.ID)}
		}
		ids[n.ID] = true
		switch n.Kind {
		case KindBus, KindLoad, KindCharging:
		default:
			return &TopologyError{Field: "nodes", Message: fmt.Sprintf("node %q has unknown kind %q", n.ID, n.Kind)}
		}
		if n.BaseLoadMW < 0 || n.CapacityMW < 0 {
			return &TopologyError{Field: "nodes", Message: fmt.Sprintf("node %q has negative load or capacity", n.ID)}
		}
	}
	for _, n := range t.Nodes {
		if n.FeedFrom != "" && !ids[n.FeedFrom] {
			return &TopologyError{Field: "nodes", Message: fmt.Sprintf("node %q feeds from unknown node %q", n.ID, n.FeedFrom)}
		}
	}
	if t.SlackBus == "" {
		return &TopologyError{Field: "slack_bus", Message: "slack bus required"}
	}
	if !ids[t.SlackBus] {
		return &TopologyError{Field: "slack_bus", Message: fmt.Sprintf("unknown node %q", t.SlackBus)}
	}
	adj := make(map[string][]string, len(t.Nodes))
	for i, l := range t.Lines {
		if !ids[l.From] || !ids[l.To] {
			return &TopologyError{Field: "lines", Message: fmt.Sprintf("line %d references unknown node", i)}
		}
		if l.From == l.To {
			return &TopologyError{Field: "lines", Message: fmt.Sprintf("line %d is a self-loop on %q", i, l.From)}
		}
		if l.SusceptancePU <= 0 {
			return &TopologyError{Field: "lines", Message: fmt.Sprintf("line %d has non-positive susceptance", i)}
		}
		adj[l.From] = append(adj[l.From], l.To)
		adj[l.To] = append(adj[l.To], l.From)
	}
	// Every node must be electrically reachable from the slack bus, otherwise
	// the reduced susceptance matrix is singular.
	if len(t.Nodes) > 1 {
		seen := map[string]bool{t.SlackBus: true}
		frontier := []string{t.SlackBus}
		for len(frontier) > 0 {
			cur := frontier[0]
			frontier = frontier[1:]
			for _, next := range adj[cur] {
				if !seen[next] {
					seen[next] = true
					frontier = append(frontier, next)
				}
			}
		}
		for _, n := range t.Nodes {
			if !seen[n.ID] {
				return &TopologyError{Field: "lines", Message: fmt.Sprintf("node %q is not connected to slack bus %q", n.ID, t.SlackBus)}
			}
		}
	}
	return nil
}

// LoadTopology reads and validates a YAML topology file.
func LoadTopology(path string) (*Topology, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topology: %w", err)
	}
	var topo Topology
	if err := yaml.Unmarshal(raw, &topo); err != nil {
		return nil, fmt.Errorf("parse topology: %w", err)
	}
	if err := topo.Validate(); err != nil {
		return nil, err
	}
	return &topo, nil
}

// Injection maps grid node id to additional demand (MW) for the current tick.
// Produced fresh each tick and consumed exactly once by Step.
type Injection map[string]float64

// NodeResult is the per-node outcome of one power flow step.
type NodeResult struct {
	ID          string   `json:"id"`
	Kind        NodeKind `json:"kind"`
	LoadMW      float64  `json:"load_mw"`
	CapacityMW  float64  `json:"capacity_mw"`
	ShortfallMW float64  `json:"shortfall_mw"` // max(0, load - capacity); never negative
	VoltagePU   float64  `json:"voltage_pu"`
	Failed      bool     `json:"failed,omitempty"`
}

// LineFlow is the per-line outcome of one power flow step.
type LineFlow struct {
	From       string  `json:"from"`
	To         string  `json:"to"`
	FlowMW     float64 `json:"flow_mw"` // positive = From -> To
	LimitMW    float64 `json:"limit_mw,omitempty"`
	Overloaded bool    `json:"overloaded,omitempty"`
}

// Result is the immutable outcome of one grid step.
type Result struct {
	Nodes       []NodeResult `json:"nodes"` // sorted by node id
	Flows       []LineFlow   `json:"flows"`
	Shortfall   bool         `json:"shortfall"`
	ShortfallMW float64      `json:"shortfall_mw"`
	SlackMW     float64      `json:"slack_mw"` // total supply drawn through the slack bus
}

// Model computes power flow and shortfall for a validated topology.
// All mutation happens inside a single tick's Step call; outage state is the
// only thing carried across ticks.
type Model struct {
	mu     sync.Mutex
	topo   *Topology
	byID   map[string]*Node
	failed map[string]bool
}

// NewModel validates the topology and builds a grid model over it.
func NewModel(topo *Topology) (*Model, error) {
	if err := topo.Validate(); err != nil {
		return nil, err
	}
	byID := make(map[string]*Node, len(topo.Nodes))
	for i := range topo.Nodes {
		byID[topo.Nodes[i].ID] = &topo.Nodes[i]
	}
	return &Model{topo: topo, byID: byID, failed: make(map[string]bool)}, nil
}

// Fail marks a node as out of service. The node and everything fed from it
// lose their capacity until Restore.
func (m *Model) Fail(nodeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[nodeID]; !ok {
		return &InvalidInjectionError{NodeID: nodeID}
	}
	m.failed[nodeID] = true
	return nil
}

// Restore returns a failed node to service.
func (m *Model) Restore(nodeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[nodeID]; !ok {
		return &InvalidInjectionError{NodeID: nodeID}
	}
	delete(m.failed, nodeID)
	return nil
}

// isDown reports whether a node is failed directly or through its feed chain.
func (m *Model) isDown(n *Node) bool {
	if m.failed[n.ID] {
		return true
	}
	seen := map[string]bool{n.ID: true}
	for cur := n.FeedFrom; cur != ""; {
		if m.failed[cur] {
			return true
		}
		if seen[cur] {
			break // defensive against feed cycles; Validate does not forbid them
		}
		seen[cur] = true
		up, ok := m.byID[cur]
		if !ok {
			break
		}
		cur = up.FeedFrom
	}
	return false
}

// Step applies the injection on top of baseline loads, solves the DC power
// flow, and flags shortfall wherever assigned load exceeds capacity. An
// injection referencing an unknown node id returns InvalidInjectionError.
func (m *Model) Step(inj Injection) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id := range inj {
		if _, ok := m.byID[id]; !ok {
			return nil, &InvalidInjectionError{NodeID: id}
		}
	}

	loads := make(map[string]float64, len(m.topo.Nodes))
	for _, n := range m.topo.Nodes {
		loads[n.ID] = n.BaseLoadMW + inj[n.ID]
	}

	angles, flows, err := m.solveDC(loads)
	if err != nil {
		return nil, err
	}

	res := &Result{Flows: flows}
	for _, n := range m.topo.Nodes {
		load := loads[n.ID]
		capacity := n.CapacityMW
		down := m.isDown(&n)
		if down {
			capacity = 0
		}
		shortfall := 0.0
		if capacity > 0 || down {
			shortfall = math.Max(0, load-capacity)
		}
		res.Nodes = append(res.Nodes, NodeResult{
			ID:          n.ID,
			Kind:        n.Kind,
			LoadMW:      load,
			CapacityMW:  capacity,
			ShortfallMW: shortfall,
			VoltagePU:   voltageEstimate(load, capacity, down, angles[n.ID]),
			Failed:      down,
		})
		res.ShortfallMW += shortfall
		res.SlackMW += load
	}
	sort.Slice(res.Nodes, func(i, j int) bool { return res.Nodes[i].ID < res.Nodes[j].ID })
	res.Shortfall = res.ShortfallMW > 0
	return res, nil
}

// voltageEstimate approximates a display voltage from loading. The DC
// approximation holds all voltages at 1.0 pu; loading droop gives the
// dashboard something physically plausible without a full AC solve.
func voltageEstimate(load, capacity float64, down bool, angleRad float64) float64 {
	if down {
		return 0
	}
	v := 1.0
	if capacity > 0 {
		v -= 0.04 * math.Min(1.5, load/capacity)
	}
	v -= 0.01 * math.Abs(angleRad)
	return math.Max(0, v)
}

// Topology returns the static topology backing the model.
func (m *Model) Topology() *Topology { return m.topo }

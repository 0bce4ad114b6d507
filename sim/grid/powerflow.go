// Linearized DC power flow: solve B·θ = P for bus angles with the slack bus
// removed, then recover branch flows from angle differences.

package grid

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// baseMVA is the per-unit power base for the DC solve.
const baseMVA = 100.0

// solveDC computes bus voltage angles and line flows for the given nodal
// loads (MW). The slack bus supplies the total demand; its angle is the 0
// reference. Validate guarantees connectivity, so the reduced susceptance
// matrix is non-singular for any well-formed topology.
func (m *Model) solveDC(loads map[string]float64) (map[string]float64, []LineFlow, error) {
	angles := make(map[string]float64, len(m.topo.Nodes))
	for _, n := range m.topo.Nodes {
		angles[n.ID] = 0
	}

	// Index the non-slack nodes.
	idx := make(map[string]int, len(m.topo.Nodes)-1)
	for _, n := range m.topo.Nodes {
		if n.ID == m.topo.SlackBus {
			continue
		}
		idx[n.ID] = len(idx)
	}
	n := len(idx)

	if n > 0 {
		// Reduced nodal susceptance matrix (the graph Laplacian weighted by
		// line susceptance, with the slack row/column removed).
		b := mat.NewDense(n, n, nil)
		for _, l := range m.topo.Lines {
			fi, fOK := idx[l.From]
			ti, tOK := idx[l.To]
			if fOK {
				b.Set(fi, fi, b.At(fi, fi)+l.SusceptancePU)
			}
			if tOK {
				b.Set(ti, ti, b.At(ti, ti)+l.SusceptancePU)
			}
			if fOK && tOK {
				b.Set(fi, ti, b.At(fi, ti)-l.SusceptancePU)
				b.Set(ti, fi, b.At(ti, fi)-l.SusceptancePU)
			}
		}

		// Net injection per node: loads draw power, so injections are negative.
		p := mat.NewVecDense(n, nil)
		for id, i := range idx {
			p.SetVec(i, -loads[id]/baseMVA)
		}

		var theta mat.VecDense
		if err := theta.SolveVec(b, p); err != nil {
			return nil, nil, fmt.Errorf("power flow solve: %w", err)
		}
		for id, i := range idx {
			angles[id] = theta.AtVec(i)
		}
	}

	flows := make([]LineFlow, 0, len(m.topo.Lines))
	for _, l := range m.topo.Lines {
		flowMW := l.SusceptancePU * (angles[l.From] - angles[l.To]) * baseMVA
		flows = append(flows, LineFlow{
			From:       l.From,
			To:         l.To,
			FlowMW:     flowMW,
			LimitMW:    l.LimitMW,
			Overloaded: l.LimitMW > 0 && math.Abs(flowMW) > l.LimitMW,
		})
	}
	return angles, flows, nil
}

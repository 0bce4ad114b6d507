// The reconciler translates between the two domains. Both directions are
// pure functions of their input: identical vehicle sets always produce
// identical injections, identical grid results always produce identical
// constraint sets.

package sim

import (
	"math"

	"github.com/citygrid-sim/citygrid-sim/sim/grid"
	"github.com/citygrid-sim/citygrid-sim/sim/traffic"
)

// Reconciler maps traffic-domain quantities into grid-domain load injections
// and grid-domain shortfall back into traffic-domain constraints.
type Reconciler struct{}

// ToLoad aggregates per-vehicle charging demand (kW) into a per-node demand
// injection (MW), keyed by charging-node affinity. Vehicles without an
// affinity contribute nothing. The injection is built fresh on every call
// and carries no cross-tick identity.
func (Reconciler) ToLoad(vehicles []traffic.VehicleState) grid.Injection {
	inj := make(grid.Injection)
	for _, v := range vehicles {
		if v.StationID == "" || v.ChargingDemandKW <= 0 {
			continue
		}
		inj[v.StationID] += v.ChargingDemandKW / 1000.0
	}
	return inj
}

// ToConstraints emits one throttling constraint per charging node in
// shortfall, with throttle fraction min(1, shortfall/capacity). A node that
// has lost its capacity entirely throttles fully. Healthy nodes emit no
// constraint at all, which leaves the traffic simulator's default behavior
// unconstrained.
func (Reconciler) ToConstraints(res *grid.Result) []traffic.Constraint {
	var out []traffic.Constraint
	for _, n := range res.Nodes {
		if n.Kind != grid.KindCharging || n.ShortfallMW <= 0 {
			continue
		}
		throttle := 1.0
		if n.CapacityMW > 0 {
			throttle = math.Min(1, n.ShortfallMW/n.CapacityMW)
		}
		out = append(out, traffic.Constraint{StationID: n.ID, Throttle: throttle})
	}
	return out
}

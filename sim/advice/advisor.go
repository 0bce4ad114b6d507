// Package advice turns a published snapshot into one-shot advisory text for
// the dashboard. Advisory generation is stateless and read-only: it never
// feeds back into the simulation, and its failure never affects the tick
// loop. The dashboard simply shows no advice.
package advice

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/citygrid-sim/citygrid-sim/sim"
)

// Advisor produces advisory text for one snapshot.
type Advisor interface {
	Advise(s *sim.Snapshot) (string, error)
}

// UnavailableError reports that the advisory backend failed or timed out.
// Non-fatal: callers degrade to absence of advice.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("advisory unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// IsUnavailable returns true if the error is an advisory-unavailable error.
// Uses errors.As to handle wrapped errors.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// Summary is the derived view of a snapshot sent to advisory backends:
// small, stable, and free of per-vehicle detail.
type Summary struct {
	Tick             int64    `json:"tick"`
	Vehicles         int      `json:"vehicles"`
	VehiclesCharging int      `json:"vehicles_charging"`
	TotalLoadMW      float64  `json:"total_load_mw"`
	ShortfallMW      float64  `json:"shortfall_mw"`
	ShortNodes       []string `json:"short_nodes,omitempty"` // node ids in shortfall, worst first
	OverloadedLines  int      `json:"overloaded_lines"`
	MinVoltagePU     float64  `json:"min_voltage_pu"`
}

// Summarize derives the advisory summary from a snapshot.
func Summarize(s *sim.Snapshot) Summary {
	sum := Summary{Tick: s.Tick, Vehicles: len(s.Vehicles), MinVoltagePU: 1.0}
	for _, v := range s.Vehicles {
		if v.Charging {
			sum.VehiclesCharging++
		}
	}
	type short struct {
		id string
		mw float64
	}
	var shorts []short
	for _, n := range s.Grid.Nodes {
		if n.ShortfallMW > 0 {
			shorts = append(shorts, short{n.ID, n.ShortfallMW})
		}
		if !n.Failed && n.VoltagePU < sum.MinVoltagePU {
			sum.MinVoltagePU = n.VoltagePU
		}
	}
	sort.Slice(shorts, func(i, j int) bool { return shorts[i].mw > shorts[j].mw })
	for _, sh := range shorts {
		sum.ShortNodes = append(sum.ShortNodes, sh.id)
	}
	for _, f := range s.Grid.Flows {
		if f.Overloaded {
			sum.OverloadedLines++
		}
	}
	sum.TotalLoadMW = s.Grid.SlackMW
	sum.ShortfallMW = s.Grid.ShortfallMW
	return sum
}

// RuleAdvisor generates advisory text from fixed thresholds, used when no
// external advisory backend is configured. It looks only at the summary, the
// same contract the remote backend gets.
type RuleAdvisor struct{}

// Advise renders threshold-based advice for the snapshot.
func (RuleAdvisor) Advise(s *sim.Snapshot) (string, error) {
	sum := Summarize(s)
	var lines []string

	if sum.ShortfallMW > 0 {
		lines = append(lines, fmt.Sprintf(
			"Grid shortfall of %.1f MW across %d node(s); charging at %s is being throttled.",
			sum.ShortfallMW, len(sum.ShortNodes), strings.Join(sum.ShortNodes, ", ")))
		lines = append(lines, "Consider restoring failed substations or deferring EV charging to off-peak.")
	}
	if sum.OverloadedLines > 0 {
		lines = append(lines, fmt.Sprintf("%d line(s) above thermal limit; reroute load or shed non-critical demand.", sum.OverloadedLines))
	}
	if sum.MinVoltagePU < 0.95 {
		lines = append(lines, fmt.Sprintf("Lowest bus voltage at %.3f pu; monitor for brownout conditions.", sum.MinVoltagePU))
	}
	if len(lines) == 0 {
		lines = append(lines, fmt.Sprintf(
			"System nominal at tick %d: %d vehicles (%d charging), %.1f MW served, no shortfall.",
			sum.Tick, sum.Vehicles, sum.VehiclesCharging, sum.TotalLoadMW))
	}
	return strings.Join(lines, " "), nil
}

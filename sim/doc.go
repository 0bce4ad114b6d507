// Package sim provides the co-simulation orchestration core: the tick loop
// that advances the traffic fleet and the power grid in lockstep and publishes
// one immutable snapshot per completed cycle.
//
// # Reading Guide
//
// Start with these three files to understand the kernel:
//   - orchestrator.go: the run-state machine (Idle → Running → Paused/Halted) and the cycle loop
//   - reconciler.go: the two translations between traffic and grid domains
//   - snapshot.go: the single-writer/multi-reader snapshot store
//
// # Architecture
//
// The sim package owns orchestration; the domain models live in sub-packages:
//   - sim/traffic: the stepped traffic simulator boundary (virtual in-process
//     fleet, remote TCP bridge) behind the TrafficSimulator interface
//   - sim/grid: topology, DC power flow, shortfall and outage state
//   - sim/advice: one-shot advisory generation from a snapshot
//
// One orchestration cycle, in order: drain intents, advance traffic with the
// prior tick's constraints, aggregate charging demand into a grid injection,
// step the grid, derive next-tick constraints from shortfall, publish the
// snapshot. A cycle either completes all of that or publishes nothing.
//
// External callers (HTTP API, CLI) read the Store and submit Intents through
// the bounded queue; nothing else crosses the orchestrator's goroutine.
package sim

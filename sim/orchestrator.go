// Implements the Orchestrator: the run-state machine and the cycle loop that
// advances traffic and grid in lockstep.

package sim

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/citygrid-sim/citygrid-sim/sim/grid"
	"github.com/citygrid-sim/citygrid-sim/sim/traffic"
)

// RunState is the orchestrator's lifecycle state.
type RunState string

const (
	StateIdle    RunState = "idle"
	StateRunning RunState = "running"
	StatePaused  RunState = "paused"
	// StateHalted is terminal: the loop has exited, the last published
	// snapshot stays servable read-only. HaltCause distinguishes a completed
	// horizon or explicit halt (nil) from a failure (non-nil).
	StateHalted RunState = "halted"
)

// FleetSpawner is the optional capability a traffic simulator can offer to
// grow the fleet mid-run; the spawn intent probes for it.
type FleetSpawner interface {
	Spawn(count int)
}

// pausePollInterval bounds how long a paused loop waits before re-checking
// the intent queue.
const pausePollInterval = 20 * time.Millisecond

// Orchestrator owns the tick loop. It drives the traffic adapter, the
// reconciler, and the grid model in a fixed order each cycle and publishes
// exactly one snapshot per completed cycle. All simulation state is owned
// here or below; the Store and the IntentQueue are the only surfaces shared
// with other goroutines.
type Orchestrator struct {
	adapter *traffic.Adapter
	grid    *grid.Model
	rec     Reconciler
	store   *Store
	intents *IntentQueue
	metrics *Metrics
	cfg     OrchestratorConfig

	mu        sync.Mutex
	state     RunState
	tick      int64
	haltCause error

	// constraints carries the prior tick's throttles into the next cycle.
	// Only touched by the loop goroutine.
	constraints []traffic.Constraint

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewOrchestrator wires an orchestrator over a traffic adapter and a grid
// model. The orchestrator starts Idle with tick 0; nothing advances until
// Start.
func NewOrchestrator(adapter *traffic.Adapter, model *grid.Model, cfg OrchestratorConfig) *Orchestrator {
	if cfg.StepLengthSec <= 0 {
		cfg.StepLengthSec = 1.0
	}
	return &Orchestrator{
		adapter: adapter,
		grid:    model,
		store:   NewStore(cfg.HistorySize),
		intents: NewIntentQueue(cfg.IntentQueueSize),
		metrics: NewMetrics(),
		cfg:     cfg,
		state:   StateIdle,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Store returns the snapshot store served to the dashboard/API layer.
func (o *Orchestrator) Store() *Store { return o.store }

// Intents returns the bounded intent queue for external control submissions.
func (o *Orchestrator) Intents() *IntentQueue { return o.intents }

// Metrics returns the run aggregates. Read after halt for a consistent view.
func (o *Orchestrator) Metrics() *Metrics { return o.metrics }

// State returns the current lifecycle state.
func (o *Orchestrator) State() RunState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Tick returns the last completed tick number.
func (o *Orchestrator) Tick() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tick
}

// HaltCause returns the error that halted the run, or nil if the run
// completed its horizon, was halted explicitly, or is still going.
func (o *Orchestrator) HaltCause() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.haltCause
}

// Start transitions Idle → Running and launches the loop goroutine. Starting
// from any other state is an error; a halted orchestrator requires a fresh
// instance.
func (o *Orchestrator) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateIdle {
		return fmt.Errorf("orchestrator: cannot start from state %q", o.state)
	}
	o.state = StateRunning
	logrus.Info("orchestrator: starting")
	go o.loop()
	return nil
}

// Stop requests a halt at the next cycle boundary and waits for the loop to
// exit. Safe to call more than once.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() { close(o.stop) })
	<-o.done
}

// Wait blocks until the loop has exited.
func (o *Orchestrator) Wait() { <-o.done }

func (o *Orchestrator) loop() {
	defer close(o.done)
	for {
		select {
		case <-o.stop:
			o.halt(nil, "stopped")
			return
		default:
		}

		o.drainIntents()

		switch o.State() {
		case StateHalted:
			return
		case StatePaused:
			select {
			case <-o.stop:
				o.halt(nil, "stopped")
				return
			case <-time.After(pausePollInterval):
			}
			continue
		}

		if err := o.runCycle(); err != nil {
			o.halt(err, err.Error())
			return
		}

		if o.cfg.MaxTicks > 0 && o.Tick() >= o.cfg.MaxTicks {
			o.halt(nil, "horizon reached")
			return
		}

		if o.cfg.TickInterval > 0 {
			select {
			case <-o.stop:
				o.halt(nil, "stopped")
				return
			case <-time.After(o.cfg.TickInterval):
			}
		}
	}
}

// drainIntents applies every queued intent. Pause and resume are honored at
// cycle boundaries only, which keeps every published snapshot a fully
// reconciled one.
func (o *Orchestrator) drainIntents() {
	for _, it := range o.intents.Drain() {
		switch it.Kind {
		case IntentPause:
			o.transition(StateRunning, StatePaused)
		case IntentResume:
			o.transition(StatePaused, StateRunning)
		case IntentHalt:
			o.halt(nil, "halt intent")
		case IntentSetInterval:
			if it.TickInterval >= 0 {
				o.cfg.TickInterval = it.TickInterval
				logrus.Infof("orchestrator: tick interval set to %s", it.TickInterval)
			}
		case IntentSpawn:
			if sp, ok := o.adapter.Sim().(FleetSpawner); ok && it.Count > 0 {
				sp.Spawn(it.Count)
				logrus.Infof("orchestrator: spawned %d vehicles", it.Count)
			}
		case IntentFailNode:
			if err := o.grid.Fail(it.NodeID); err != nil {
				logrus.Warnf("orchestrator: fail intent rejected: %v", err)
			} else {
				logrus.Warnf("orchestrator: node %s failed by intent", it.NodeID)
			}
		case IntentRestoreNode:
			if err := o.grid.Restore(it.NodeID); err != nil {
				logrus.Warnf("orchestrator: restore intent rejected: %v", err)
			} else {
				logrus.Infof("orchestrator: node %s restored", it.NodeID)
			}
		default:
			logrus.Warnf("orchestrator: unknown intent kind %q dropped", it.Kind)
		}
	}
}

func (o *Orchestrator) transition(from, to RunState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != from {
		return
	}
	o.state = to
	logrus.Infof("orchestrator: %s -> %s at tick %d", from, to, o.tick)
}

func (o *Orchestrator) halt(cause error, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateHalted {
		return
	}
	o.state = StateHalted
	o.haltCause = cause
	o.metrics.HaltReason = reason
	if cause != nil {
		logrus.Errorf("orchestrator: halted at tick %d: %v", o.tick, cause)
	} else {
		logrus.Infof("orchestrator: halted at tick %d (%s)", o.tick, reason)
	}
}

// runCycle executes one full orchestration cycle: advance traffic under the
// prior tick's constraints, fold charging demand into the grid, step the
// grid, derive next-tick constraints, publish. Any error aborts before
// publish, so a partial cycle never becomes visible.
func (o *Orchestrator) runCycle() error {
	vehicles, err := o.adapter.Advance(o.constraints)
	if err != nil {
		return err
	}

	inj := o.rec.ToLoad(vehicles)
	res, err := o.grid.Step(inj)
	if err != nil {
		return err
	}

	o.constraints = o.rec.ToConstraints(res)

	o.mu.Lock()
	o.tick++
	tick := o.tick
	o.mu.Unlock()

	snap := &Snapshot{
		Tick:      tick,
		Timestamp: time.Now(),
		Vehicles:  vehicles,
		Grid:      res,
	}
	o.store.Publish(snap)
	o.metrics.Observe(snap, o.cfg.StepLengthSec, len(o.constraints), o.adapter.Retries)

	logrus.Infof("[tick %07d] vehicles=%d load=%.1fMW shortfall=%.1fMW constraints=%d",
		tick, len(vehicles), res.SlackMW, res.ShortfallMW, len(o.constraints))
	return nil
}

// Control intents submitted by the dashboard/API layer. Intents are drained
// by the orchestrator once per cycle, so a submission never takes effect
// mid-cycle.

package sim

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// IntentKind identifies a control intent.
type IntentKind string

const (
	IntentPause       IntentKind = "pause"
	IntentResume      IntentKind = "resume"
	IntentHalt        IntentKind = "halt"
	IntentSetInterval IntentKind = "set_tick_interval"
	IntentSpawn       IntentKind = "spawn_vehicles"
	IntentFailNode    IntentKind = "fail_node"
	IntentRestoreNode IntentKind = "restore_node"
)

// Intent is one control request. Only the fields relevant to the kind are
// set: NodeID for fail/restore, Count for spawn, TickInterval for pacing.
type Intent struct {
	ID           uuid.UUID
	Kind         IntentKind
	SubmittedAt  time.Time
	NodeID       string
	Count        int
	TickInterval time.Duration
}

// NewIntent builds an intent with a fresh id and submission timestamp.
func NewIntent(kind IntentKind) Intent {
	return Intent{ID: uuid.New(), Kind: kind, SubmittedAt: time.Now()}
}

// QueueFullError reports that the intent queue was at capacity; the caller
// should retry after the orchestrator drains.
type QueueFullError struct {
	Capacity int
}

func (e *QueueFullError) Error() string {
	return fmt.Sprintf("intent queue full (capacity %d)", e.Capacity)
}

// IsQueueFull returns true if the error is a queue-at-capacity rejection.
// Uses errors.As to handle wrapped errors.
func IsQueueFull(err error) bool {
	var qe *QueueFullError
	return errors.As(err, &qe)
}

// IntentQueue is the bounded channel between external callers and the
// orchestrator. Submit never blocks; a full queue is rejected immediately.
type IntentQueue struct {
	ch chan Intent
}

// NewIntentQueue creates a queue with the given capacity (default 16).
func NewIntentQueue(capacity int) *IntentQueue {
	if capacity <= 0 {
		capacity = 16
	}
	return &IntentQueue{ch: make(chan Intent, capacity)}
}

// Submit enqueues an intent or fails with QueueFullError.
func (q *IntentQueue) Submit(it Intent) error {
	select {
	case q.ch <- it:
		return nil
	default:
		return &QueueFullError{Capacity: cap(q.ch)}
	}
}

// Drain removes and returns every queued intent in submission order.
func (q *IntentQueue) Drain() []Intent {
	var out []Intent
	for {
		select {
		case it := <-q.ch:
			out = append(out, it)
		default:
			return out
		}
	}
}

// Cap returns the queue capacity.
func (q *IntentQueue) Cap() int { return cap(q.ch) }

// Len returns the number of queued intents.
func (q *IntentQueue) Len() int { return len(q.ch) }

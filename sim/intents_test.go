package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntentQueue_SubmitAndDrainPreservesOrder(t *testing.T) {
	// GIVEN three intents submitted in order
	q := NewIntentQueue(8)
	kinds := []IntentKind{IntentPause, IntentSpawn, IntentResume}
	for _, k := range kinds {
		assert.NoError(t, q.Submit(NewIntent(k)))
	}

	// WHEN drained
	drained := q.Drain()

	// THEN all come back in submission order and the queue is empty
	assert.Len(t, drained, 3)
	for i, it := range drained {
		assert.Equal(t, kinds[i], it.Kind)
		assert.NotEqual(t, it.ID.String(), "00000000-0000-0000-0000-000000000000")
	}
	assert.Zero(t, q.Len())
	assert.Empty(t, q.Drain())
}

func TestIntentQueue_FullQueueRejectsWithoutBlocking(t *testing.T) {
	// GIVEN a queue of capacity 1 already holding an intent
	q := NewIntentQueue(1)
	assert.NoError(t, q.Submit(NewIntent(IntentPause)))

	// WHEN a second intent is submitted
	err := q.Submit(NewIntent(IntentResume))

	// THEN it is rejected immediately with the queue-full taxonomy
	assert.Error(t, err)
	assert.True(t, IsQueueFull(err))
	var qe *QueueFullError
	assert.ErrorAs(t, err, &qe)
	assert.Equal(t, 1, qe.Capacity)

	// AND draining frees a slot
	assert.Len(t, q.Drain(), 1)
	assert.NoError(t, q.Submit(NewIntent(IntentResume)))
}

func TestIntentQueue_ZeroCapacityDefaults(t *testing.T) {
	q := NewIntentQueue(0)
	assert.Equal(t, 16, q.Cap())
}

func TestIsQueueFull_OtherErrorsExcluded(t *testing.T) {
	assert.False(t, IsQueueFull(assert.AnError))
	assert.False(t, IsQueueFull(nil))
}

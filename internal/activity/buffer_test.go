package activity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"proptoken/internal/activity/models"
)

func TestRingBuffer(t *testing.T) {
	b := NewRingBuffer(3)

	for _, name := range []string{"a", "b", "c"} {
		assert.False(t, b.Enqueue(models.Event{AssetName: name}))
	}
	assert.True(t, b.Enqueue(models.Event{AssetName: "d"}), "fourth insert evicts")

	snap := b.Snapshot()
	assert.Equal(t, []string{"b", "c", "d"}, names(snap))
	assert.EqualValues(t, 1, b.Dropped())

	// Snapshot is a copy
	snap[0].AssetName = "mutated"
	assert.Equal(t, "b", b.Snapshot()[0].AssetName)

	b.Reset()
	assert.Zero(t, b.Len())
	assert.EqualValues(t, 1, b.Dropped())
	b.Enqueue(models.Event{AssetName: "e"})
	assert.Equal(t, []string{"e"}, names(b.Snapshot()))
}

func TestRingBuffer_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, NewRingBuffer(0).Capacity())
}

func names(events []models.Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.AssetName
	}
	return out
}

package activity

import (
	"sync"

	"proptoken/internal/activity/models"
)

// RingBuffer is a bounded, thread-safe event log. When full, the oldest
// event is dropped to make room for the new one.
type RingBuffer struct {
	mu       sync.Mutex
	events   []models.Event
	head     int // next write position
	tail     int // oldest event
	count    int
	capacity int

	dropped int64
}

func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RingBuffer{
		events:   make([]models.Event, capacity),
		capacity: capacity,
	}
}

// Enqueue appends an event, evicting the oldest if necessary. It reports
// whether an eviction happened.
func (b *RingBuffer) Enqueue(event models.Event) (evicted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count >= b.capacity {
		b.events[b.tail] = models.Event{}
		b.tail = (b.tail + 1) % b.capacity
		b.count--
		b.dropped++
		evicted = true
	}

	b.events[b.head] = event
	b.head = (b.head + 1) % b.capacity
	b.count++
	return evicted
}

// Snapshot copies the retained events, oldest first.
func (b *RingBuffer) Snapshot() []models.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]models.Event, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.events[(b.tail+i)%b.capacity]
	}
	return out
}

// Reset discards every event. The dropped counter survives.
func (b *RingBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = make([]models.Event, b.capacity)
	b.head, b.tail, b.count = 0, 0, 0
}

func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *RingBuffer) Capacity() int { return b.capacity }

// Dropped returns the total number of evicted events.
func (b *RingBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

package publisher

import (
	"sync"

	audit "greenctf/pkg/platform/audit"
)

// entry is one buffered audit write; exactly one field is set.
type entry struct {
	security *audit.SecurityEvent
	activity *audit.ActivityRecord
}

func (e entry) kind() string {
	if e.security != nil {
		return "security_event"
	}
	return "admin_activity"
}

// RingBuffer is a bounded FIFO that overwrites the oldest entry when full.
type RingBuffer struct {
	mu      sync.Mutex
	items   []entry
	head    int
	size    int
	dropped int64
}

func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &RingBuffer{items: make([]entry, capacity)}
}

// Enqueue adds e and reports whether an older entry was dropped to make room.
func (b *RingBuffer) Enqueue(e entry) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.items)
	if b.size == capacity {
		b.items[b.head] = e
		b.head = (b.head + 1) % capacity
		b.dropped++
		return true
	}
	b.items[(b.head+b.size)%capacity] = e
	b.size++
	return false
}

// DequeueBatch removes up to n entries in FIFO order.
func (b *RingBuffer) DequeueBatch(n int) []entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n > b.size {
		n = b.size
	}
	if n == 0 {
		return nil
	}
	out := make([]entry, n)
	capacity := len(b.items)
	for i := range n {
		out[i] = b.items[b.head]
		b.items[b.head] = entry{}
		b.head = (b.head + 1) % capacity
	}
	b.size -= n
	return out
}

func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Dropped counts entries lost to overflow since creation.
func (b *RingBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

package detector

import "sync"

// DefaultQueueCapacity bounds a Queue created with a non-positive capacity.
const DefaultQueueCapacity = 256

// Queue is a bounded Detector fed by Push. When full, the oldest pending
// detection is dropped.
type Queue struct {
	mu       sync.Mutex
	pending  []Detection
	capacity int
	dropped  int
}

// NewQueue creates a Queue holding at most capacity pending detections.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{
		pending:  make([]Detection, 0, capacity),
		capacity: capacity,
	}
}

// Push enqueues a detection.
func (q *Queue) Push(d Detection) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) >= q.capacity {
		copy(q.pending, q.pending[1:])
		q.pending = q.pending[:q.capacity-1]
		q.dropped++
	}
	q.pending = append(q.pending, d)
}

// Detect drains all pending detections.
func (q *Queue) Detect() ([]Detection, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return nil, nil
	}
	out := make([]Detection, len(q.pending))
	copy(out, q.pending)
	q.pending = q.pending[:0]
	return out, nil
}

// Len returns the number of pending detections.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Dropped returns how many detections were discarded because the queue was full.
func (q *Queue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close is a no-op.
func (q *Queue) Close() error {
	return nil
}

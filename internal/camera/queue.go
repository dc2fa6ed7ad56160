package camera

import (
	"sync"

	"go.uber.org/atomic"
)

// OutputQueue is a bounded FIFO of packets. When full, a blocking queue makes
// the producer wait for space; a non-blocking queue drops its oldest packet.
type OutputQueue struct {
	name     string
	maxSize  int
	blocking bool

	mu     sync.Mutex
	cond   *sync.Cond
	items  []Packet
	closed bool
	err    error

	dropped atomic.Int64
}

// NewOutputQueue creates a queue. maxSize below 1 is treated as 1.
func NewOutputQueue(name string, maxSize int, blocking bool) *OutputQueue {
	if maxSize < 1 {
		maxSize = 1
	}
	q := &OutputQueue{name: name, maxSize: maxSize, blocking: blocking}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Name returns the stream name.
func (q *OutputQueue) Name() string { return q.name }

// Dropped returns the number of packets discarded because the queue was full.
func (q *OutputQueue) Dropped() int64 { return q.dropped.Load() }

// Len returns the number of queued packets.
func (q *OutputQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Push adds a packet. It returns ErrClosed, and closes the packet, if the
// queue is closed.
func (q *OutputQueue) Push(p Packet) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.blocking && !q.closed && len(q.items) >= q.maxSize {
		q.cond.Wait()
	}
	if q.closed {
		p.Close()
		return ErrClosed
	}
	if len(q.items) >= q.maxSize {
		q.items[0].Close()
		q.items = q.items[1:]
		q.dropped.Inc()
	}
	q.items = append(q.items, p)
	q.cond.Broadcast()
	return nil
}

// Get removes and returns the oldest packet, blocking while the queue is empty.
// After Close, queued packets are still delivered before the close error.
func (q *OutputQueue) Get() (Packet, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return Packet{}, q.err
	}
	p := q.items[0]
	q.items[0] = Packet{}
	q.items = q.items[1:]
	q.cond.Broadcast()
	return p, nil
}

// Close wakes all waiters. Get returns err once the queue drains, or
// ErrClosed when err is nil.
func (q *OutputQueue) Close(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	if err == nil {
		err = ErrClosed
	}
	q.closed = true
	q.err = err
	q.cond.Broadcast()
}

// Drain closes every queued packet.
func (q *OutputQueue) Drain() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, p := range q.items {
		p.Close()
	}
	q.items = nil
	q.cond.Broadcast()
}

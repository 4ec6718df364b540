package queue

import (
	"sync"

	"github.com/ghalamif/TrendFlow/internal/domain"
	"github.com/ghalamif/TrendFlow/internal/ports"
)

// MemQueue is a bounded FIFO of journaled archive records, stored in a
// circular buffer so dequeues never shift memory.
type MemQueue struct {
	mu   sync.Mutex
	buf  []ports.QueuedRecord
	head int
	n    int
}

var _ ports.RecordQueue = (*MemQueue)(nil)

func NewMemQueue(capacity int) *MemQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemQueue{buf: make([]ports.QueuedRecord, capacity)}
}

// Enqueue reports false when the queue is full.
func (q *MemQueue) Enqueue(id ports.WALEntryID, r *domain.ArchiveRecord) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.n == len(q.buf) {
		return false
	}
	q.buf[(q.head+q.n)%len(q.buf)] = ports.QueuedRecord{ID: id, Record: r}
	q.n++
	return true
}

// DequeueBatch removes up to max records; max <= 0 drains the queue.
func (q *MemQueue) DequeueBatch(max int) []ports.QueuedRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.n == 0 {
		return nil
	}
	if max <= 0 || max > q.n {
		max = q.n
	}
	out := make([]ports.QueuedRecord, max)
	for i := range out {
		slot := (q.head + i) % len(q.buf)
		out[i] = q.buf[slot]
		q.buf[slot] = ports.QueuedRecord{}
	}
	q.head = (q.head + max) % len(q.buf)
	q.n -= max
	return out
}

func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

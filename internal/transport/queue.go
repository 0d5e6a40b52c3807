package transport

import "sync"

// OutboundQueue is an ordered byte-buffer queue with a blocking Pop.
// Unblock wakes every waiting Pop without data; the queue stays closed afterwards.
type OutboundQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   [][]byte
	blocked bool
}

func NewOutboundQueue() *OutboundQueue {
	q := &OutboundQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends b and reports false once the queue has been unblocked.
func (q *OutboundQueue) Push(b []byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.blocked {
		return false
	}
	q.items = append(q.items, b)
	q.cond.Signal()
	return true
}

// Pop blocks for the next buffer. ok is false after Unblock.
func (q *OutboundQueue) Pop() (b []byte, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.blocked {
		q.cond.Wait()
	}
	if q.blocked {
		return nil, false
	}
	b = q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return b, true
}

func (q *OutboundQueue) Unblock() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.blocked = true
	q.items = nil
	q.cond.Broadcast()
}

func (q *OutboundQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

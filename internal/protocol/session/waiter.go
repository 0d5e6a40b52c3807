package session

import (
	"sync"
	"time"
)

// Waiter is a one-shot rendezvous between the caller and the receiver goroutine.
// The first Resolve or Terminate wins; later calls are ignored.
type Waiter struct {
	once sync.Once
	done chan struct{}
	code int
	ok   bool
}

func NewWaiter() *Waiter {
	return &Waiter{done: make(chan struct{})}
}

func (w *Waiter) Resolve(code int) {
	w.once.Do(func() {
		w.code = code
		w.ok = true
		close(w.done)
	})
}

// Terminate wakes Wait without a result.
func (w *Waiter) Terminate() {
	w.once.Do(func() {
		close(w.done)
	})
}

// Wait blocks until Resolve, Terminate or timeout. ok is false unless a code was resolved.
func (w *Waiter) Wait(timeout time.Duration) (code int, ok bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-w.done:
		return w.code, w.ok
	case <-timer.C:
		return 0, false
	}
}

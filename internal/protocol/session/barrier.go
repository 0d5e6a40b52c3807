package session

import (
	"sync"
	"time"

	"github.com/danmuck/msrpctl/internal/protocol/frame"
)

type BarrierState int

const (
	BarrierPending BarrierState = iota
	BarrierResolved
	BarrierFailed
	BarrierTimedOut
	BarrierTerminated
)

func (s BarrierState) String() string {
	switch s {
	case BarrierPending:
		return "pending"
	case BarrierResolved:
		return "resolved"
	case BarrierFailed:
		return "failed"
	case BarrierTimedOut:
		return "timed-out"
	case BarrierTerminated:
		return "terminated"
	default:
		return "invalid"
	}
}

// barrierCore holds the state machine shared by both barriers. Once the state
// leaves Pending it never changes again and done is closed.
type barrierCore struct {
	mu       sync.Mutex
	state    BarrierState
	done     chan struct{}
	activity chan struct{}
}

func (b *barrierCore) init() {
	b.done = make(chan struct{})
	b.activity = make(chan struct{}, 1)
}

// settleLocked moves a pending barrier to its final state. Caller holds mu.
func (b *barrierCore) settleLocked(state BarrierState) bool {
	if b.state != BarrierPending {
		return false
	}
	b.state = state
	close(b.done)
	return true
}

func (b *barrierCore) touch() {
	select {
	case b.activity <- struct{}{}:
	default:
	}
}

// wait blocks until the barrier settles or no activity is seen for idle.
func (b *barrierCore) wait(idle time.Duration) BarrierState {
	timer := time.NewTimer(idle)
	defer timer.Stop()
	for {
		select {
		case <-b.done:
			return b.State()
		case <-b.activity:
			timer.Reset(idle)
		case <-timer.C:
			b.mu.Lock()
			b.settleLocked(BarrierTimedOut)
			state := b.state
			b.mu.Unlock()
			return state
		}
	}
}

func (b *barrierCore) State() BarrierState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *barrierCore) Done() <-chan struct{} {
	return b.done
}

func (b *barrierCore) Terminate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.settleLocked(BarrierTerminated)
}

// ResponseBarrier counts SEND chunks against 200 responses. It resolves once the
// barrier is sealed and every chunk has a 200, and fails on the first non-200.
type ResponseBarrier struct {
	barrierCore
	requests int
	received int
	sealed   bool
	failCode int
}

func NewResponseBarrier() *ResponseBarrier {
	b := &ResponseBarrier{}
	b.init()
	return b
}

func (b *ResponseBarrier) HandleRequest() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BarrierPending {
		b.requests++
	}
}

func (b *ResponseBarrier) HandleResponse(code int) {
	b.mu.Lock()
	if b.state != BarrierPending {
		b.mu.Unlock()
		return
	}
	if code == frame.StatusOK {
		b.received++
		b.resolveLocked()
	} else {
		b.failCode = code
		b.settleLocked(BarrierFailed)
	}
	b.mu.Unlock()
	b.touch()
}

// Seal marks the end of requests; the barrier may resolve immediately.
func (b *ResponseBarrier) Seal() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sealed = true
	b.resolveLocked()
}

func (b *ResponseBarrier) resolveLocked() {
	if b.sealed && b.received >= b.requests {
		b.settleLocked(BarrierResolved)
	}
}

// Wait blocks until the barrier settles. timeout is an idle bound: each response restarts it.
func (b *ResponseBarrier) Wait(timeout time.Duration) BarrierState {
	return b.wait(timeout)
}

func (b *ResponseBarrier) Received() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.received
}

func (b *ResponseBarrier) FailureCode() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failCode
}

// ReportBarrier sums the byte ranges of success REPORTs against the message total.
// A negative total stays pending until Expect supplies the size actually sent.
type ReportBarrier struct {
	barrierCore
	total    int64
	reported int64
	status   int
}

func NewReportBarrier(total int64) *ReportBarrier {
	b := &ReportBarrier{total: total}
	b.init()
	return b
}

func (b *ReportBarrier) Notify(code int, br frame.ByteRange) {
	b.mu.Lock()
	if b.state != BarrierPending {
		b.mu.Unlock()
		return
	}
	b.status = code
	if code != frame.StatusOK {
		b.settleLocked(BarrierFailed)
	} else {
		if br.Last >= br.First {
			b.reported += br.Last - br.First + 1
		}
		b.resolveLocked()
	}
	b.mu.Unlock()
	b.touch()
}

// Expect fixes an unknown total once every chunk is queued. A known total is kept.
func (b *ReportBarrier) Expect(total int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.total < 0 {
		b.total = total
	}
	b.resolveLocked()
}

func (b *ReportBarrier) resolveLocked() {
	if b.total >= 0 && b.reported >= b.total {
		b.settleLocked(BarrierResolved)
	}
}

func (b *ReportBarrier) Wait(timeout time.Duration) BarrierState {
	return b.wait(timeout)
}

// Status is the code of the latest REPORT, 0 before the first one.
func (b *ReportBarrier) Status() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

func (b *ReportBarrier) Reported() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reported
}

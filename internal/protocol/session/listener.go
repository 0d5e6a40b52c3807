package session

// Listener receives session outcomes. Calls are made from one delivery goroutine
// in the order the session posted them.
type Listener interface {
	DataTransferred(msgID string)
	// DataReceived gets a complete incoming message. A returned error is surfaced
	// through TransferError and stops further receiving.
	DataReceived(msgID string, data []byte, contentType string) error
	Progress(current, total int64)
	// ReceiveProgress reports a partially received message. Returning true takes
	// ownership of partial; those bytes are dropped from the session buffer.
	ReceiveProgress(current, total int64, partial []byte) bool
	Aborted()
	TransferError(msgID string, err error, ct ChunkType)
}

// delivery runs listener callbacks on one goroutine behind a bounded queue so a slow
// listener stalls only itself until the queue fills.
type delivery struct {
	events chan func()
	quit   chan struct{}
	done   chan struct{}
}

func newDelivery(depth int) *delivery {
	d := &delivery{
		events: make(chan func(), depth),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *delivery) run() {
	defer close(d.done)
	for {
		select {
		case <-d.quit:
			return
		case fn := <-d.events:
			fn()
		}
	}
}

// post queues fn and reports false once the queue has been stopped.
func (d *delivery) post(fn func()) bool {
	select {
	case <-d.quit:
		return false
	default:
	}
	select {
	case d.events <- fn:
		return true
	case <-d.quit:
		return false
	}
}

// stop drops undelivered events. Callbacks already running are not waited for.
func (d *delivery) stop() {
	close(d.quit)
}

// flush blocks until every event posted before it has run, or the queue stops.
func (d *delivery) flush() {
	ack := make(chan struct{})
	if !d.post(func() { close(ack) }) {
		return
	}
	select {
	case <-ack:
	case <-d.quit:
	}
}

// NopListener ignores every callback.
type NopListener struct{}

func (NopListener) DataTransferred(string) {}
func (NopListener) DataReceived(string, []byte, string) error { return nil }
func (NopListener) Progress(int64, int64) {}
func (NopListener) ReceiveProgress(int64, int64, []byte) bool { return false }
func (NopListener) Aborted() {}
func (NopListener) TransferError(string, error, ChunkType) {}

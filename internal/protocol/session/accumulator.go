package session

import "sync"

type partial struct {
	data        []byte
	contentType string
	received    int64
}

// accumulator buffers incoming chunks per protocol message-id until the terminal flag.
type accumulator struct {
	mu   sync.Mutex
	msgs map[string]*partial
}

func newAccumulator() *accumulator {
	return &accumulator{msgs: make(map[string]*partial)}
}

// Append adds b to msgID and returns the cumulative byte count received for it.
// The first non-empty contentType seen for a message is kept.
func (a *accumulator) Append(msgID string, b []byte, contentType string) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.msgs[msgID]
	if !ok {
		p = &partial{}
		a.msgs[msgID] = p
	}
	if p.contentType == "" {
		p.contentType = contentType
	}
	p.data = append(p.data, b...)
	p.received += int64(len(b))
	return p.received
}

// Take returns the buffered bytes and content type of msgID and forgets the message.
func (a *accumulator) Take(msgID string) ([]byte, string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.msgs[msgID]
	if !ok {
		return []byte{}, ""
	}
	delete(a.msgs, msgID)
	if p.data == nil {
		p.data = []byte{}
	}
	return p.data, p.contentType
}

// Snapshot copies what is currently buffered for msgID.
func (a *accumulator) Snapshot(msgID string) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.msgs[msgID]
	if !ok {
		return nil
	}
	out := make([]byte, len(p.data))
	copy(out, p.data)
	return out
}

// Consume drops the first n buffered bytes of msgID. The received count is kept.
func (a *accumulator) Consume(msgID string, n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.msgs[msgID]
	if !ok {
		return
	}
	n = min(n, len(p.data))
	p.data = append([]byte(nil), p.data[n:]...)
}

func (a *accumulator) Discard(msgID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.msgs, msgID)
}

func (a *accumulator) Buffered(msgID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if p, ok := a.msgs[msgID]; ok {
		return len(p.data)
	}
	return 0
}

// Received is the byte count seen for msgID, including bytes already consumed.
func (a *accumulator) Received(msgID string) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if p, ok := a.msgs[msgID]; ok {
		return p.received
	}
	return 0
}

func (a *accumulator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.msgs)
}

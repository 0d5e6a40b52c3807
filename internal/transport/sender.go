package transport

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/danmuck/msrpctl/internal/observability"
	"github.com/danmuck/msrpctl/internal/protocol"
	"github.com/rs/zerolog"
)

var ErrClosed = errors.New("transport: closed")

// Sender is the FrameSender: it drains the outbound queue onto the socket.
type Sender struct {
	conn         net.Conn
	queue        *OutboundQueue
	writeTimeout time.Duration
	onError      func(error)
	log          zerolog.Logger

	mu sync.Mutex
}

func NewSender(conn net.Conn, writeTimeout time.Duration, onError func(error)) *Sender {
	return &Sender{
		conn:         conn,
		queue:        NewOutboundQueue(),
		writeTimeout: writeTimeout,
		onError:      onError,
		log:          observability.Component("msrp.sender"),
	}
}

// Run drains the queue until Stop.
func (s *Sender) Run() {
	for {
		b, ok := s.queue.Pop()
		if !ok {
			s.log.Debug().Msg("sender stopped")
			return
		}
		if err := s.write(b, "queued"); err != nil {
			s.onError(err)
			return
		}
	}
}

func (s *Sender) Send(b []byte) error {
	if !s.queue.Push(b) {
		return ErrClosed
	}
	return nil
}

// SendImmediately writes b synchronously, ahead of anything still queued.
func (s *Sender) SendImmediately(b []byte) error {
	if err := s.write(b, "immediate"); err != nil {
		s.onError(err)
		return err
	}
	return nil
}

func (s *Sender) Stop() {
	s.queue.Unblock()
}

func (s *Sender) write(b []byte, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return protocol.NetworkError("set write deadline", err)
		}
	}
	n, err := s.conn.Write(b)
	if err != nil {
		return protocol.NetworkError("write", err)
	}
	observability.RecordFrameSent(path, n)
	return nil
}

package transport

import (
	"fmt"
	"io"

	"github.com/danmuck/msrpctl/internal/observability"
	"github.com/danmuck/msrpctl/internal/protocol"
	"github.com/danmuck/msrpctl/internal/protocol/frame"
	"github.com/rs/zerolog"
)

// Handler consumes parsed frames. Calls arrive on the receiver goroutine in wire order.
type Handler interface {
	OnResponse(code int, txID string, headers frame.Headers)
	OnSend(txID string, headers frame.Headers, flag frame.Flag, body []byte, totalSize int64) error
	OnReport(txID string, headers frame.Headers) error
	DropTransaction(txID string)
	SweepTransactions()
	OnTransportError(err error)
}

// Receiver is the FrameReceiver: it reads frames and dispatches them to a Handler.
type Receiver struct {
	reader  *frame.Reader
	handler Handler
	closing func() bool
	log     zerolog.Logger
}

func NewReceiver(r io.Reader, limits frame.Limits, handler Handler, closing func() bool) *Receiver {
	return &Receiver{
		reader:  frame.NewReader(r, limits),
		handler: handler,
		closing: closing,
		log:     observability.Component("msrp.receiver"),
	}
}

// Run loops until end of stream or the first error, which is reported once
// unless the transport is closing.
func (r *Receiver) Run() {
	for {
		err := r.step()
		if err == nil {
			continue
		}
		if err == io.EOF {
			r.log.Debug().Msg("end of stream")
			return
		}
		if r.closing() {
			r.log.Debug().Err(err).Msg("receiver stopped")
			return
		}
		r.log.Warn().Err(err).Msg("unable to receive chunks")
		r.handler.OnTransportError(err)
		r.handler.SweepTransactions()
		return
	}
}

func (r *Receiver) step() (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", protocol.ErrInternal, p)
		}
	}()

	f, err := r.reader.ReadFrame()
	if err != nil {
		return err
	}
	observability.RecordFrameReceived(f.Kind.String(), f.Method)

	switch {
	case f.Kind == frame.KindResponse:
		r.log.Debug().Str("tx", f.TransactionID).Int("status", f.Status).Msg("response received")
		r.handler.OnResponse(f.Status, f.TransactionID, f.Headers)
	case f.Method == frame.MethodSend:
		r.log.Debug().Str("tx", f.TransactionID).Str("flag", f.Flag.String()).Int("bytes", len(f.Body)).Msg("SEND received")
		err = r.handler.OnSend(f.TransactionID, f.Headers, f.Flag, f.Body, f.TotalSize)
	case f.Method == frame.MethodReport:
		r.log.Debug().Str("tx", f.TransactionID).Msg("REPORT received")
		err = r.handler.OnReport(f.TransactionID, f.Headers)
	default:
		r.log.Debug().Str("tx", f.TransactionID).Str("method", f.Method).Msg("unknown request dropped")
		r.handler.DropTransaction(f.TransactionID)
	}
	r.handler.SweepTransactions()
	return err
}

package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/danmuck/msrpctl/internal/observability"
	"github.com/danmuck/msrpctl/internal/protocol"
	"github.com/danmuck/msrpctl/internal/protocol/frame"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrSessionClosed      = errors.New("session: closed")
	ErrNoConnection       = errors.New("session: no connection")
	ErrTransferInProgress = errors.New("session: transfer in progress")
	ErrReceiveStopped     = errors.New("session: receiving stopped")
	ErrShortPayload       = errors.New("session: payload shorter than declared size")
)

// Connection is the transport surface a Session writes to.
type Connection interface {
	SendChunk(b []byte) error
	SendChunkImmediately(b []byte) error
	Close() error
}

// Status is a point-in-time view for the admin surface.
type Status struct {
	From                string `json:"from"`
	To                  string `json:"to"`
	Established         bool   `json:"established"`
	Closed              bool   `json:"closed"`
	FailureReport       bool   `json:"failure_report"`
	SuccessReport       bool   `json:"success_report"`
	TrackingEnabled     bool   `json:"tracking_enabled"`
	TrackedTransactions int    `json:"tracked_transactions"`
	PartialMessages     int    `json:"partial_messages"`
	ActiveMessageID     string `json:"active_message_id,omitempty"`
}

// transfer is the state of one SendChunks call.
type transfer struct {
	msgID     string
	appMsgID  string
	chunkType ChunkType
	total     int64
	responses *ResponseBarrier
	reports   *ReportBarrier

	// guarded by Session.mu
	txIDs map[string]struct{}

	mu      sync.Mutex
	err     error
	halt    bool
	offsets []int64
	acked   int
}

// fail records err as the transfer outcome. It reports true for the first error only.
// Any error other than a response timeout also stops further chunks.
func (x *transfer) fail(err error) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if !errors.Is(err, protocol.ErrResponseTimeout) {
		x.halt = true
	}
	if x.err != nil {
		return false
	}
	x.err = err
	return true
}

// queued records the cumulative offset a chunk reaches once it is acknowledged.
func (x *transfer) queued(offset int64) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.offsets = append(x.offsets, offset)
}

func (x *transfer) outcome() (halted bool, err error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.halt, x.err
}

func (x *transfer) terminate() {
	if x.responses != nil {
		x.responses.Terminate()
	}
	if x.reports != nil {
		x.reports.Terminate()
	}
}

// Session is the protocol state of one MSRP connection. It implements transport.Handler.
type Session struct {
	cfg      Config
	listener Listener
	log      zerolog.Logger
	tracker  *Tracker
	received *accumulator
	delivery *delivery

	mu           sync.Mutex
	conn         Connection
	from         string
	to           string
	waiters      map[string]*Waiter
	active       *transfer
	transportErr error

	cancelled      atomic.Bool
	established    atomic.Bool
	failed         atomic.Bool
	broken         atomic.Bool
	receiveStopped atomic.Bool
	closeOnce      sync.Once
}

func New(cfg Config, listener Listener) *Session {
	cfg = cfg.WithDefaults()
	if listener == nil {
		listener = NopListener{}
	}
	return &Session{
		cfg:      cfg,
		listener: listener,
		log:      observability.Component("msrp.session"),
		tracker:  NewTracker(!cfg.DisableTracking, cfg.TransactionExpiry, cfg.Now),
		received: newAccumulator(),
		delivery: newDelivery(cfg.ListenerQueueDepth),
		waiters:  make(map[string]*Waiter),
	}
}

func (s *Session) SetConnection(conn Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = conn
}

// SetFrom sets the local MSRP path written as From-Path.
func (s *Session) SetFrom(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.from = path
}

// SetTo sets the remote MSRP path written as To-Path.
func (s *Session) SetTo(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.to = path
}

func (s *Session) From() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.from
}

func (s *Session) To() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.to
}

func (s *Session) IsEstablished() bool {
	return s.established.Load()
}

func (s *Session) IsClosed() bool {
	return s.cancelled.Load()
}

// DiscardReceived drops partially received bytes, e.g. after an aborted transfer.
func (s *Session) DiscardReceived(msgID string) {
	s.received.Discard(msgID)
}

func (s *Session) Snapshot() Status {
	s.mu.Lock()
	st := Status{
		From:          s.from,
		To:            s.to,
		FailureReport: s.cfg.FailureReport,
		SuccessReport: s.cfg.SuccessReport,
	}
	if s.active != nil {
		st.ActiveMessageID = s.active.msgID
	}
	s.mu.Unlock()
	st.Established = s.established.Load()
	st.Closed = s.cancelled.Load()
	st.TrackingEnabled = s.tracker.Enabled()
	st.TrackedTransactions = s.tracker.Len()
	st.PartialMessages = s.received.Pending()
	return st
}

// SendChunks splits r into SEND chunks of at most ChunkSize bytes under one fresh
// message-id and blocks until the configured completion policy settles. Exactly one
// terminal callback (DataTransferred or TransferError) is posted unless the session
// is closed or ctx ends first.
func (s *Session) SendChunks(ctx context.Context, r io.Reader, appMsgID, contentType string, totalSize int64, ct ChunkType) error {
	conn, err := s.connection()
	if err != nil {
		return err
	}
	x := &transfer{
		msgID:     uuid.NewString(),
		appMsgID:  appMsgID,
		chunkType: ct,
		total:     totalSize,
		txIDs:     make(map[string]struct{}),
	}
	if s.cfg.FailureReport {
		x.responses = NewResponseBarrier()
	}
	if s.cfg.SuccessReport {
		x.reports = NewReportBarrier(totalSize)
	}
	if err := s.begin(x); err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() { s.interrupt(x) })
	defer func() {
		stop()
		x.terminate()
		s.end(x)
	}()

	log := s.log.With().Str("msg_id", x.msgID).Str("chunk_type", ct.String()).Logger()
	log.Info().Int64("total", totalSize).Str("content_type", contentType).Msg("send content")

	src := r
	if totalSize >= 0 {
		src = io.LimitReader(r, totalSize)
	}
	waitEach := !s.cfg.FailureReport && !s.cfg.SuccessReport
	late := false
	// One chunk is read ahead so the last chunk can carry the End flag even when the
	// total is unknown.
	cur, next := make([]byte, s.cfg.ChunkSize), make([]byte, s.cfg.ChunkSize)
	n, eof, rerr := readChunk(src, cur)
	first, last := int64(1), int64(0)
	for rerr == nil && n > 0 && !s.interrupted(ctx) {
		if halted, _ := x.outcome(); halted {
			break
		}
		nn := 0
		if !eof {
			if nn, eof, rerr = readChunk(src, next); rerr != nil {
				break
			}
		}
		last += int64(n)
		flag := frame.FlagMore
		if nn == 0 {
			flag = frame.FlagEnd
			if totalSize >= 0 && last < totalSize {
				// the receiver must not deliver a truncated message
				flag = frame.FlagAbort
				s.failTransfer(x, shortPayload(last, totalSize))
			}
		}
		cType := ""
		if first == 1 {
			cType = contentType
		}
		br := frame.ByteRange{First: first, Last: last, Total: totalSize}
		timedOut, err := s.sendChunk(conn, x, cur[:n], br, flag, cType, waitEach && !late)
		if err != nil {
			return s.sendFailed(ctx, x, err)
		}
		first = last + 1
		if x.responses == nil && flag != frame.FlagAbort && !s.cancelled.Load() {
			s.post(func(l Listener) { l.Progress(br.Last, totalSize) })
		}
		if timedOut && !s.interrupted(ctx) {
			late = true
			s.failTransfer(x, responseTimeout("chunk "+br.String()))
		}
		cur, next = next, cur
		n = nn
	}
	if s.interrupted(ctx) {
		return s.interruptedErr(ctx)
	}
	if rerr != nil {
		return s.failTransfer(x, rerr)
	}
	if halted, err := x.outcome(); halted {
		return err
	}
	if totalSize >= 0 && last < totalSize {
		return s.failTransfer(x, shortPayload(last, totalSize))
	}

	if x.responses != nil {
		x.responses.Seal()
		switch x.responses.Wait(s.cfg.ResponseTimeout) {
		case BarrierResolved:
		case BarrierFailed:
			return s.failTransfer(x, &protocol.StatusError{Code: x.responses.FailureCode(), Source: "response"})
		case BarrierTimedOut:
			return s.failTransfer(x, responseTimeout("responses"))
		default:
			return s.interruptedErr(ctx)
		}
	}
	if x.reports != nil {
		x.reports.Expect(last)
		switch x.reports.Wait(s.cfg.ResponseTimeout) {
		case BarrierResolved:
		case BarrierFailed:
			return s.failTransfer(x, &protocol.StatusError{Code: x.reports.Status(), Source: "report"})
		case BarrierTimedOut:
			return s.failTransfer(x, responseTimeout("report"))
		default:
			return s.interruptedErr(ctx)
		}
	}
	if _, err := x.outcome(); err != nil {
		return err
	}

	log.Info().Int64("sent", last).Msg("content transferred")
	s.post(func(l Listener) { l.DataTransferred(appMsgID) })
	return nil
}

// readChunk fills buf and reports whether the source is exhausted.
func readChunk(r io.Reader, buf []byte) (int, bool, error) {
	n, err := io.ReadFull(r, buf)
	switch {
	case err == nil:
		return n, false, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return n, true, nil
	default:
		return n, true, fmt.Errorf("%w: read payload: %w", protocol.ErrInternal, err)
	}
}

// sendChunk registers and queues one SEND. With wait set it blocks for the response and
// reports whether the wait timed out.
func (s *Session) sendChunk(conn Connection, x *transfer, body []byte, br frame.ByteRange, flag frame.Flag, contentType string, wait bool) (bool, error) {
	txID := newTransactionID()
	s.tracker.Add(TransactionInfo{
		TransactionID: txID,
		MessageID:     x.msgID,
		AppMessageID:  x.appMsgID,
		ChunkType:     x.chunkType,
	})

	var h frame.Headers
	h.Set(frame.HeaderToPath, s.To())
	h.Set(frame.HeaderFromPath, s.From())
	h.Set(frame.HeaderMessageID, x.msgID)
	h.Set(frame.HeaderByteRange, br.String())
	if s.cfg.FailureReport {
		h.Set(frame.HeaderFailureReport, "yes")
	}
	if s.cfg.SuccessReport {
		h.Set(frame.HeaderSuccessReport, "yes")
	}
	if contentType != "" {
		h.Set(frame.HeaderContentType, contentType)
	}
	var w *Waiter
	s.mu.Lock()
	x.txIDs[txID] = struct{}{}
	if wait {
		w = NewWaiter()
		s.waiters[txID] = w
	}
	s.mu.Unlock()
	if x.responses != nil {
		x.queued(br.Last)
		x.responses.HandleRequest()
	}

	if err := conn.SendChunk(frame.NewSend(txID, h, body, flag).Encode()); err != nil {
		s.dropWaiter(txID)
		return false, err
	}
	if w == nil {
		return false, nil
	}
	_, ok := w.Wait(s.cfg.ResponseTimeout)
	s.dropWaiter(txID)
	return !ok, nil
}

// SendEmptyChunk sends a body-less SEND ahead of queued traffic and waits for its response.
func (s *Session) SendEmptyChunk(ctx context.Context) error {
	conn, err := s.connection()
	if err != nil {
		return err
	}
	txID := newTransactionID()
	msgID := uuid.NewString()
	s.tracker.Add(TransactionInfo{TransactionID: txID, MessageID: msgID, ChunkType: EmptyChunk})

	var h frame.Headers
	h.Set(frame.HeaderToPath, s.To())
	h.Set(frame.HeaderFromPath, s.From())
	h.Set(frame.HeaderMessageID, msgID)

	w := NewWaiter()
	s.mu.Lock()
	s.waiters[txID] = w
	s.mu.Unlock()
	defer s.dropWaiter(txID)
	stop := context.AfterFunc(ctx, w.Terminate)
	defer stop()

	s.log.Debug().Str("tx", txID).Msg("send empty chunk")
	if err := conn.SendChunkImmediately(frame.NewSend(txID, h, nil, frame.FlagEnd).Encode()); err != nil {
		return s.sendFailed(ctx, nil, err)
	}
	code, ok := w.Wait(s.cfg.ResponseTimeout)
	if !ok {
		if s.interrupted(ctx) {
			return s.interruptedErr(ctx)
		}
		err := responseTimeout("empty chunk")
		s.emitError("", err, EmptyChunk)
		return err
	}
	if code != frame.StatusOK {
		return &protocol.StatusError{Code: code, Source: "response"}
	}
	return nil
}

// OnSend handles an incoming SEND on the receiver goroutine.
func (s *Session) OnSend(txID string, headers frame.Headers, flag frame.Flag, body []byte, totalSize int64) error {
	if s.receiveStopped.Load() {
		return ErrReceiveStopped
	}
	s.established.Store(true)
	if headers.ReportRequested(frame.HeaderFailureReport, true) {
		if err := s.respond(txID, frame.StatusOK, frame.StatusComment, headers); err != nil {
			return err
		}
	}
	s.delivery.post(func() { s.deliverChunk(txID, headers, flag, body, totalSize) })
	return nil
}

// deliverChunk runs on the delivery goroutine, so accumulator updates follow listener
// decisions in chunk order. An empty body only counts as a chunk when it aborts a message
// or ends one that already received bytes.
func (s *Session) deliverChunk(txID string, headers frame.Headers, flag frame.Flag, body []byte, totalSize int64) {
	msgID := headers.Value(frame.HeaderMessageID)
	if len(body) == 0 {
		seen := s.received.Received(msgID)
		if flag == frame.FlagMore || (flag == frame.FlagEnd && seen == 0) {
			s.log.Debug().Str("tx", txID).Int64("seen", seen).Msg("empty chunk received")
			return
		}
	}
	current := s.received.Append(msgID, body, headers.Value(frame.HeaderContentType))

	switch flag {
	case frame.FlagEnd:
		data, contentType := s.received.Take(msgID)
		s.log.Info().Str("msg_id", msgID).Int("bytes", len(data)).Msg("content received")
		if err := s.listener.DataReceived(msgID, data, contentType); err != nil {
			s.failReceive(msgID, err)
			return
		}
		if headers.ReportRequested(frame.HeaderSuccessReport, false) {
			s.sendReport(headers, current, totalSize)
		}
	case frame.FlagAbort:
		s.log.Info().Str("msg_id", msgID).Msg("transfer aborted by peer")
		s.listener.Aborted()
	default:
		partial := s.received.Snapshot(msgID)
		if s.listener.ReceiveProgress(current, totalSize, partial) {
			s.received.Consume(msgID, len(partial))
		}
	}
}

// OnResponse handles a response on the receiver goroutine.
func (s *Session) OnResponse(code int, txID string, headers frame.Headers) {
	s.established.Store(true)
	s.log.Debug().Str("tx", txID).Int("status", code).Msg("response")

	s.mu.Lock()
	w := s.waiters[txID]
	x := s.active
	if x != nil {
		if _, ok := x.txIDs[txID]; !ok {
			x = nil
		}
	}
	s.mu.Unlock()

	var err error
	if code == frame.StatusOK && x != nil && x.responses != nil {
		s.postProgress(x)
	}
	if code != frame.StatusOK {
		err = &protocol.StatusError{Code: code, Source: "response"}
		// Recorded before any waiter wakes so the terminal step sees it was surfaced here.
		if x != nil {
			x.fail(err)
		}
	}
	if w != nil {
		w.Resolve(code)
	}
	if x != nil && x.responses != nil {
		x.responses.HandleResponse(code)
	}
	if err == nil {
		return
	}

	info, ok := s.tracker.Get(txID)
	if !ok {
		info.ChunkType = Unknown
	}
	s.emitError(info.AppMessageID, err, info.ChunkType)
	s.tracker.Remove(txID)
}

// postProgress posts the offset covered by the next 200 response of x. It runs before
// the barrier hears the response so the terminal callback always follows it.
func (s *Session) postProgress(x *transfer) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.halt || x.acked >= len(x.offsets) || s.cancelled.Load() {
		return
	}
	offset := x.offsets[x.acked]
	x.acked++
	s.post(func(l Listener) { l.Progress(offset, x.total) })
}

// OnReport handles an incoming REPORT on the receiver goroutine.
func (s *Session) OnReport(txID string, headers frame.Headers) error {
	msgID := headers.Value(frame.HeaderMessageID)
	info, found := s.tracker.GetByMessageID(msgID)
	if !found {
		info.ChunkType = Unknown
	}

	if headers.ReportRequested(frame.HeaderFailureReport, true) {
		if err := s.respond(txID, frame.StatusOK, frame.StatusComment, headers); err != nil {
			return err
		}
	}
	code, err := frame.ParseStatus(headers.Value(frame.HeaderStatus))
	if err != nil {
		return err
	}
	s.log.Debug().Str("tx", txID).Str("msg_id", msgID).Int("status", code).Msg("report")

	s.mu.Lock()
	x := s.active
	if x != nil && x.msgID != msgID {
		x = nil
	}
	s.mu.Unlock()

	if code != frame.StatusOK {
		err := &protocol.StatusError{Code: code, Source: "report"}
		if x != nil {
			x.fail(err)
		}
		s.emitError(info.AppMessageID, err, info.ChunkType)
	}
	if x != nil && x.reports != nil {
		br, err := frame.ParseByteRange(headers.Value(frame.HeaderByteRange))
		if err != nil {
			return err
		}
		x.reports.Notify(code, br)
	}
	if found {
		s.tracker.Remove(info.TransactionID)
	}
	return nil
}

func (s *Session) DropTransaction(txID string) {
	s.tracker.Remove(txID)
}

func (s *Session) SweepTransactions() {
	if n := s.tracker.Sweep(); n > 0 {
		s.log.Debug().Int("evicted", n).Msg("expired transactions")
	}
}

// OnTransportError surfaces the first socket failure once and wakes every blocked wait.
// Failures after Close are expected and ignored.
func (s *Session) OnTransportError(err error) {
	if s.cancelled.Load() {
		return
	}
	s.mu.Lock()
	if s.transportErr != nil {
		s.mu.Unlock()
		return
	}
	s.transportErr = err
	x := s.active
	waiters := s.takeWaitersLocked()
	s.mu.Unlock()
	s.broken.Store(true)

	msgID, ct := "", Unknown
	if x != nil {
		msgID, ct = x.appMsgID, x.chunkType
		x.fail(err)
	}
	if s.failed.CompareAndSwap(false, true) {
		s.emitError(msgID, err, ct)
	}
	for _, w := range waiters {
		w.Terminate()
	}
	if x != nil {
		x.terminate()
	}
}

// Close cancels any transfer, closes the connection and wakes every blocked wait.
// Listener callbacks still queued are dropped.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancelled.Store(true)
		s.delivery.stop()

		s.mu.Lock()
		conn := s.conn
		x := s.active
		waiters := s.takeWaitersLocked()
		s.mu.Unlock()

		if conn != nil {
			if err := conn.Close(); err != nil {
				s.log.Debug().Err(err).Msg("close connection")
			}
		}
		for _, w := range waiters {
			w.Terminate()
		}
		if x != nil {
			x.terminate()
		}
		s.log.Debug().Msg("session closed")
	})
}

func (s *Session) connection() (Connection, error) {
	if s.cancelled.Load() {
		return nil, ErrSessionClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transportErr != nil {
		return nil, s.transportErr
	}
	if s.conn == nil {
		return nil, ErrNoConnection
	}
	return s.conn, nil
}

func (s *Session) begin(x *transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return ErrTransferInProgress
	}
	s.active = x
	return nil
}

func (s *Session) end(x *transfer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for txID := range x.txIDs {
		delete(s.waiters, txID)
	}
	if s.active == x {
		s.active = nil
	}
}

// interrupt wakes the waits of x when its caller context ends.
func (s *Session) interrupt(x *transfer) {
	s.mu.Lock()
	var waiters []*Waiter
	for txID := range x.txIDs {
		if w, ok := s.waiters[txID]; ok {
			waiters = append(waiters, w)
		}
	}
	s.mu.Unlock()
	for _, w := range waiters {
		w.Terminate()
	}
	x.terminate()
}

func (s *Session) takeWaitersLocked() []*Waiter {
	out := make([]*Waiter, 0, len(s.waiters))
	for _, w := range s.waiters {
		out = append(out, w)
	}
	clear(s.waiters)
	return out
}

func (s *Session) dropWaiter(txID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.waiters, txID)
}

func (s *Session) interrupted(ctx context.Context) bool {
	return s.cancelled.Load() || s.broken.Load() || ctx.Err() != nil
}

func (s *Session) interruptedErr(ctx context.Context) error {
	if s.cancelled.Load() {
		return ErrSessionClosed
	}
	s.mu.Lock()
	err := s.transportErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return ErrSessionClosed
}

// sendFailed maps a rejected write. Socket failures were already surfaced by
// OnTransportError.
func (s *Session) sendFailed(ctx context.Context, x *transfer, err error) error {
	if s.interrupted(ctx) {
		return s.interruptedErr(ctx)
	}
	if x != nil {
		return s.failTransfer(x, err)
	}
	s.emitError("", err, EmptyChunk)
	return err
}

// failTransfer records err on x and emits it unless an earlier error already was.
func (s *Session) failTransfer(x *transfer, err error) error {
	if x.fail(err) {
		s.emitError(x.appMsgID, err, x.chunkType)
		return err
	}
	_, first := x.outcome()
	return first
}

func (s *Session) respond(txID string, code int, comment string, req frame.Headers) error {
	conn, err := s.connection()
	if err != nil {
		return err
	}
	return conn.SendChunkImmediately(frame.NewResponse(txID, code, comment, req).Encode())
}

// sendReport queues a success REPORT for a completely received message.
func (s *Session) sendReport(req frame.Headers, received, total int64) {
	conn, err := s.connection()
	if err != nil {
		return
	}
	if total < 0 {
		total = received
	}
	br := frame.ByteRange{First: 1, Last: received, Total: total}
	report := frame.NewReport(newTransactionID(), req, br, frame.StatusOK, frame.StatusComment)
	if err := conn.SendChunk(report.Encode()); err != nil {
		s.log.Debug().Err(err).Msg("queue report")
	}
}

func (s *Session) failReceive(msgID string, err error) {
	if !errors.Is(err, protocol.ErrPayload) {
		err = fmt.Errorf("%w: deliver %s: %w", protocol.ErrPayload, msgID, err)
	}
	s.receiveStopped.Store(true)
	if !s.failed.CompareAndSwap(false, true) {
		return
	}
	observability.RecordTransferError(err)
	s.log.Warn().Err(err).Str("msg_id", msgID).Msg("data received rejected")
	// Already on the delivery goroutine.
	s.listener.TransferError(msgID, err, Unknown)
}

func (s *Session) emitError(msgID string, err error, ct ChunkType) {
	observability.RecordTransferError(err)
	s.log.Warn().Err(err).Str("msg_id", msgID).Str("chunk_type", ct.String()).Msg("transfer error")
	s.post(func(l Listener) { l.TransferError(msgID, err, ct) })
}

func (s *Session) post(fn func(Listener)) {
	s.delivery.post(func() { fn(s.listener) })
}

// Flush blocks until every listener callback posted so far has run.
func (s *Session) Flush() {
	s.delivery.flush()
}

func responseTimeout(what string) error {
	return fmt.Errorf("%w: %s", protocol.ErrResponseTimeout, what)
}

func shortPayload(read, total int64) error {
	return fmt.Errorf("%w: %w: read %d of %d bytes", protocol.ErrPayload, ErrShortPayload, read, total)
}

func newTransactionID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:8])
}

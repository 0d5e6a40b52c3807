package transport

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/msrpctl/internal/protocol"
	"github.com/danmuck/msrpctl/internal/protocol/frame"
	"github.com/danmuck/msrpctl/internal/testutil/testlog"
	"github.com/danmuck/msrpctl/internal/testutil/tlstest"
)

type recordingHandler struct {
	mu     sync.Mutex
	calls  []string
	errs   []error
	sweeps int
	bodies [][]byte
	seen   chan string
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{seen: make(chan string, 64)}
}

func (h *recordingHandler) note(call string) {
	h.mu.Lock()
	h.calls = append(h.calls, call)
	h.mu.Unlock()
	h.seen <- call
}

func (h *recordingHandler) OnResponse(code int, txID string, headers frame.Headers) {
	h.note("response " + txID)
}

func (h *recordingHandler) OnSend(txID string, headers frame.Headers, flag frame.Flag, body []byte, totalSize int64) error {
	h.mu.Lock()
	h.bodies = append(h.bodies, body)
	h.mu.Unlock()
	h.note("send " + txID + " " + flag.String())
	return nil
}

func (h *recordingHandler) OnReport(txID string, headers frame.Headers) error {
	h.note("report " + txID)
	return nil
}

func (h *recordingHandler) DropTransaction(txID string) {
	h.note("drop " + txID)
}

func (h *recordingHandler) SweepTransactions() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sweeps++
}

func (h *recordingHandler) OnTransportError(err error) {
	h.mu.Lock()
	h.errs = append(h.errs, err)
	h.mu.Unlock()
	h.seen <- "error"
}

func (h *recordingHandler) Errors() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]error(nil), h.errs...)
}

func (h *recordingHandler) expect(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-h.seen:
		if got != want {
			t.Fatalf("got %q want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func sendFrame(txID, body string, flag frame.Flag) []byte {
	var h frame.Headers
	h.Set(frame.HeaderToPath, "msrp://127.0.0.1:2855/b;tcp")
	h.Set(frame.HeaderFromPath, "msrp://127.0.0.1:2856/a;tcp")
	h.Set(frame.HeaderMessageID, "m-"+txID)
	return frame.NewSend(txID, h, []byte(body), flag).Encode()
}

func TestOutboundQueueOrderAndUnblock(t *testing.T) {
	testlog.Start(t)
	q := NewOutboundQueue()
	q.Push([]byte("a"))
	q.Push([]byte("b"))
	if q.Len() != 2 {
		t.Fatalf("len=%d", q.Len())
	}
	for _, want := range []string{"a", "b"} {
		b, ok := q.Pop()
		if !ok || string(b) != want {
			t.Fatalf("pop=%q ok=%v want=%q", b, ok, want)
		}
	}

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()
	time.Sleep(20 * time.Millisecond)
	q.Unblock()
	select {
	case ok := <-done:
		if ok {
			t.Fatalf("pop after unblock returned data")
		}
	case <-time.After(time.Second):
		t.Fatalf("unblock did not wake pop")
	}
	if q.Push([]byte("c")) {
		t.Fatalf("push accepted after unblock")
	}
}

func TestSenderWritesQueuedInOrderAndImmediate(t *testing.T) {
	testlog.Start(t)
	local, remote := net.Pipe()
	defer local.Close()
	defer remote.Close()

	var errs []error
	s := NewSender(local, time.Second, func(err error) { errs = append(errs, err) })
	go s.Run()
	defer s.Stop()

	for _, tx := range []string{"t1", "t2", "t3"} {
		if err := s.Send(sendFrame(tx, "x", frame.FlagEnd)); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	fr := frame.NewReader(remote, frame.DefaultLimits())
	for _, tx := range []string{"t1", "t2", "t3"} {
		f, err := fr.ReadFrame()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if f.TransactionID != tx {
			t.Fatalf("tx=%q want=%q", f.TransactionID, tx)
		}
	}

	go func() {
		if err := s.SendImmediately(frame.NewResponse("t9", 200, "OK", frame.Headers{}).Encode()); err != nil {
			t.Errorf("send immediately: %v", err)
		}
	}()
	f, err := fr.ReadFrame()
	if err != nil || f.Kind != frame.KindResponse || f.TransactionID != "t9" {
		t.Fatalf("immediate frame=%+v err=%v", f, err)
	}
	if len(errs) != 0 {
		t.Fatalf("unexpected errors %v", errs)
	}
}

func TestSenderWriteFailureReported(t *testing.T) {
	testlog.Start(t)
	local, remote := net.Pipe()
	remote.Close()

	got := make(chan error, 2)
	s := NewSender(local, time.Second, func(err error) { got <- err })
	err := s.SendImmediately([]byte("MSRP x SEND\r\n-------x$\r\n"))
	if !errors.Is(err, protocol.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if reported := <-got; !errors.Is(reported, protocol.ErrNetwork) {
		t.Fatalf("reported %v", reported)
	}
}

func TestReceiverDispatchesInArrivalOrder(t *testing.T) {
	testlog.Start(t)
	local, remote := net.Pipe()
	defer remote.Close()

	h := newRecordingHandler()
	r := NewReceiver(local, frame.DefaultLimits(), h, func() bool { return false })
	done := make(chan struct{})
	go func() {
		r.Run()
		close(done)
	}()

	var h2 frame.Headers
	h2.Set(frame.HeaderMessageID, "m-1")
	h2.Set(frame.HeaderByteRange, "1-5/5")
	h2.Set(frame.HeaderStatus, "000 200 OK")
	report := frame.Frame{TransactionID: "r1", Kind: frame.KindRequest, Method: frame.MethodReport, Headers: h2}
	stream := [][]byte{
		sendFrame("s1", "hello", frame.FlagMore),
		frame.NewResponse("s0", 200, "OK", frame.Headers{}).Encode(),
		report.Encode(),
		[]byte("MSRP u1 AUTH\r\nTo-Path: x\r\n-------u1$\r\n"),
		sendFrame("s2", "world", frame.FlagEnd),
	}
	go func() {
		for _, b := range stream {
			if _, err := remote.Write(b); err != nil {
				return
			}
		}
		remote.Close()
	}()

	for _, want := range []string{"send s1 more", "response s0", "report r1", "drop u1", "send s2 end"} {
		h.expect(t, want)
	}
	<-done
	if len(h.Errors()) != 0 {
		t.Fatalf("clean end of stream reported %v", h.Errors())
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sweeps != len(stream) {
		t.Fatalf("sweeps=%d want=%d", h.sweeps, len(stream))
	}
	if string(h.bodies[0]) != "hello" || string(h.bodies[1]) != "world" {
		t.Fatalf("bodies=%q", h.bodies)
	}
}

func TestReceiverReportsMalformedFrameOnce(t *testing.T) {
	testlog.Start(t)
	h := newRecordingHandler()
	input := "MSRP t1 SEND\r\nno-colon-header\r\n\r\n" + string(sendFrame("t2", "x", frame.FlagEnd))
	r := NewReceiver(strings.NewReader(input), frame.DefaultLimits(), h, func() bool { return false })
	r.Run()

	errs := h.Errors()
	if len(errs) != 1 || !errors.Is(errs[0], protocol.ErrPayload) {
		t.Fatalf("errors=%v", errs)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.calls) != 0 {
		t.Fatalf("receiver kept dispatching after an error: %v", h.calls)
	}
}

func TestReceiverTruncatedFrameIsPayloadError(t *testing.T) {
	testlog.Start(t)
	h := newRecordingHandler()
	input := "MSRP t1 SEND\r\nByte-Range: 1-10/10\r\n\r\nshort"
	NewReceiver(strings.NewReader(input), frame.DefaultLimits(), h, func() bool { return false }).Run()
	if errs := h.Errors(); len(errs) != 1 || !errors.Is(errs[0], protocol.ErrPayload) {
		t.Fatalf("errors=%v", errs)
	}
}

func TestReceiverSilentWhileClosing(t *testing.T) {
	testlog.Start(t)
	h := newRecordingHandler()
	r := NewReceiver(closedReader{}, frame.DefaultLimits(), h, func() bool { return true })
	r.Run()
	if errs := h.Errors(); len(errs) != 0 {
		t.Fatalf("closing receiver reported %v", errs)
	}
}

type closedReader struct{}

func (closedReader) Read([]byte) (int, error) {
	return 0, net.ErrClosed
}

type panicHandler struct {
	*recordingHandler
}

func (panicHandler) OnReport(string, frame.Headers) error {
	panic("boom")
}

func TestReceiverRecoversHandlerPanic(t *testing.T) {
	testlog.Start(t)
	h := panicHandler{newRecordingHandler()}
	var hdr frame.Headers
	hdr.Set(frame.HeaderStatus, "000 200 OK")
	report := frame.Frame{TransactionID: "r1", Kind: frame.KindRequest, Method: frame.MethodReport, Headers: hdr}
	NewReceiver(strings.NewReader(string(report.Encode())), frame.DefaultLimits(), h, func() bool { return false }).Run()
	if errs := h.Errors(); len(errs) != 1 || !errors.Is(errs[0], protocol.ErrInternal) {
		t.Fatalf("errors=%v", errs)
	}
}

func TestTransportLoopbackClientServer(t *testing.T) {
	testlog.Start(t)
	serverHandler := newRecordingHandler()
	clientHandler := newRecordingHandler()

	server := New(RoleServer, Config{ListenAddr: "127.0.0.1:0"}, serverHandler)
	addr, err := server.Listen()
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	opened := make(chan error, 1)
	go func() { opened <- server.Open(context.Background()) }()

	client := New(RoleClient, Config{RemoteAddr: addr.String()}, clientHandler)
	if err := client.Open(context.Background()); err != nil {
		t.Fatalf("client open: %v", err)
	}
	if err := <-opened; err != nil {
		t.Fatalf("server open: %v", err)
	}
	if err := client.Open(context.Background()); !errors.Is(err, ErrAlreadyOpen) {
		t.Fatalf("expected already open, got %v", err)
	}

	if err := client.SendChunk(sendFrame("c1", "ping", frame.FlagEnd)); err != nil {
		t.Fatalf("send chunk: %v", err)
	}
	serverHandler.expect(t, "send c1 end")
	if err := server.SendChunkImmediately(frame.NewResponse("c1", 200, "OK", frame.Headers{}).Encode()); err != nil {
		t.Fatalf("send immediately: %v", err)
	}
	clientHandler.expect(t, "response c1")

	if err := client.Close(); err != nil {
		t.Fatalf("client close: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := client.SendChunk([]byte("x")); !errors.Is(err, ErrClosed) {
		t.Fatalf("send after close: %v", err)
	}
	// The peer sees a clean end of stream.
	time.Sleep(50 * time.Millisecond)
	if err := server.Close(); err != nil {
		t.Fatalf("server close: %v", err)
	}
	if errs := clientHandler.Errors(); len(errs) != 0 {
		t.Fatalf("client reported %v", errs)
	}
	if errs := serverHandler.Errors(); len(errs) != 0 {
		t.Fatalf("server reported %v", errs)
	}
}

func TestTransportAcceptTimeout(t *testing.T) {
	testlog.Start(t)
	server := New(RoleServer, Config{ListenAddr: "127.0.0.1:0", AcceptTimeout: 50 * time.Millisecond}, newRecordingHandler())
	defer server.Close()
	start := time.Now()
	err := server.Open(context.Background())
	if !errors.Is(err, protocol.ErrNetwork) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected accept deadline, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("accept timeout not honoured")
	}
}

func TestTransportRequiresAddresses(t *testing.T) {
	testlog.Start(t)
	if err := New(RoleClient, Config{}, newRecordingHandler()).Open(context.Background()); !errors.Is(err, ErrRemoteAddrRequired) {
		t.Fatalf("client err=%v", err)
	}
	if err := New(RoleServer, Config{}, newRecordingHandler()).Open(context.Background()); !errors.Is(err, ErrListenAddrRequired) {
		t.Fatalf("server err=%v", err)
	}
	if err := New(RoleClient, Config{}, newRecordingHandler()).SendChunk([]byte("x")); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("send before open err=%v", err)
	}
}

func TestTransportPeerResetReported(t *testing.T) {
	testlog.Start(t)
	local, remote := net.Pipe()
	h := newRecordingHandler()
	tr := Wrap(local, Config{}, h)
	defer tr.Close()

	w := bufio.NewWriter(remote)
	w.WriteString("MSRP t1 SEND\r\nTo-Path: x\r\n")
	w.Flush()
	remote.Close()
	h.expect(t, "error")
	if errs := h.Errors(); !errors.Is(errs[0], protocol.ErrPayload) {
		t.Fatalf("truncated frame err=%v", errs[0])
	}
}

func TestTransportTLS(t *testing.T) {
	testlog.Start(t)
	pair := tlstest.NewLoopbackPair(t)
	serverHandler := newRecordingHandler()

	server := New(RoleServer, Config{
		ListenAddr: "127.0.0.1:0",
		TLS:        TLSConfig{Enabled: true, Mutual: true, CertFile: pair.ServerCert, KeyFile: pair.ServerKey, CAFile: pair.CAFile},
	}, serverHandler)
	addr, err := server.Listen()
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer server.Close()
	opened := make(chan error, 1)
	go func() { opened <- server.Open(context.Background()) }()

	client := New(RoleClient, Config{
		RemoteAddr: addr.String(),
		TLS:        TLSConfig{Enabled: true, Mutual: true, CertFile: pair.ClientCert, KeyFile: pair.ClientKey, CAFile: pair.CAFile},
	}, newRecordingHandler())
	if err := client.Open(context.Background()); err != nil {
		t.Fatalf("client open: %v", err)
	}
	defer client.Close()
	if err := <-opened; err != nil {
		t.Fatalf("server open: %v", err)
	}
	if err := client.SendChunk(sendFrame("tls1", "secret", frame.FlagEnd)); err != nil {
		t.Fatalf("send: %v", err)
	}
	serverHandler.expect(t, "send tls1 end")
}

func TestTransportTLSRejectsUnknownCA(t *testing.T) {
	testlog.Start(t)
	pair := tlstest.NewLoopbackPair(t)
	other := tlstest.NewLoopbackPair(t)

	server := New(RoleServer, Config{
		ListenAddr: "127.0.0.1:0",
		TLS:        TLSConfig{Enabled: true, CertFile: pair.ServerCert, KeyFile: pair.ServerKey},
	}, newRecordingHandler())
	addr, err := server.Listen()
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer server.Close()
	go server.Open(context.Background())

	client := New(RoleClient, Config{
		RemoteAddr: addr.String(),
		TLS:        TLSConfig{Enabled: true, CAFile: other.CAFile},
	}, newRecordingHandler())
	if err := client.Open(context.Background()); !errors.Is(err, protocol.ErrNetwork) {
		t.Fatalf("expected handshake failure, got %v", err)
	}
}

func TestTLSConfigValidate(t *testing.T) {
	testlog.Start(t)
	cases := map[string]struct {
		cfg    TLSConfig
		client error
		server error
	}{
		"disabled":            {cfg: TLSConfig{}},
		"mutual without tls":  {cfg: TLSConfig{Mutual: true}, client: ErrTLSRequired, server: ErrTLSRequired},
		"server missing key":  {cfg: TLSConfig{Enabled: true, CertFile: "c", CAFile: "ca"}, server: ErrTLSKeyFileRequired},
		"client missing ca":   {cfg: TLSConfig{Enabled: true, CertFile: "c", KeyFile: "k"}, client: ErrTLSCAFileRequired},
		"insecure client":     {cfg: TLSConfig{Enabled: true, CertFile: "c", KeyFile: "k", InsecureSkipVerify: true}},
		"insecure mutual":     {cfg: TLSConfig{Enabled: true, Mutual: true, CertFile: "c", KeyFile: "k", CAFile: "ca", InsecureSkipVerify: true}, client: ErrTLSInsecureSkipNotAllow},
		"mutual server no ca": {cfg: TLSConfig{Enabled: true, Mutual: true, CertFile: "c", KeyFile: "k"}, client: ErrTLSCAFileRequired, server: ErrTLSCAFileRequired},
	}
	for name, tc := range cases {
		if err := tc.cfg.ValidateClient(); !errors.Is(err, tc.client) {
			t.Fatalf("%s: client err=%v want=%v", name, err, tc.client)
		}
		if err := tc.cfg.ValidateServer(); !errors.Is(err, tc.server) {
			t.Fatalf("%s: server err=%v want=%v", name, err, tc.server)
		}
	}
}

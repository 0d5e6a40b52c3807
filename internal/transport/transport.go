package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/msrpctl/internal/observability"
	"github.com/danmuck/msrpctl/internal/protocol"
	"github.com/danmuck/msrpctl/internal/protocol/frame"
	"github.com/rs/zerolog"
)

var (
	ErrRemoteAddrRequired = errors.New("transport: remote address required")
	ErrListenAddrRequired = errors.New("transport: listen address required")
	ErrAlreadyOpen        = errors.New("transport: already open")
	ErrNotOpen            = errors.New("transport: not open")
)

// Role selects whether the endpoint dials or accepts.
type Role string

const (
	RoleClient Role = "client"
	RoleServer Role = "server"
)

type Config struct {
	RemoteAddr       string
	ListenAddr       string
	ConnectTimeout   time.Duration
	AcceptTimeout    time.Duration
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	Limits           frame.Limits
	TLS              TLSConfig
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout:   10 * time.Second,
		AcceptTimeout:    10 * time.Second,
		HandshakeTimeout: 5 * time.Second,
		WriteTimeout:     15 * time.Second,
		Limits:           frame.DefaultLimits(),
	}
}

// WithDefaults fills zero durations and limits from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.AcceptTimeout <= 0 {
		c.AcceptTimeout = def.AcceptTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.Limits == (frame.Limits{}) {
		c.Limits = def.Limits
	}
	return c
}

// Transport owns one MSRP socket plus its receiver and sender goroutines.
type Transport struct {
	role    Role
	cfg     Config
	handler Handler
	log     zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	conn     net.Conn
	sender   *Sender

	closing   atomic.Bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func New(role Role, cfg Config, handler Handler) *Transport {
	return &Transport{
		role:    role,
		cfg:     cfg.WithDefaults(),
		handler: handler,
		log:     observability.Component("msrp.transport").With().Str("role", string(role)).Logger(),
	}
}

// Wrap starts a transport over an already connected socket.
func Wrap(conn net.Conn, cfg Config, handler Handler) *Transport {
	t := New(RoleClient, cfg, handler)
	t.start(conn)
	return t
}

func (t *Transport) Role() Role {
	return t.role
}

// Listen binds the server socket ahead of Open so the local port can be advertised.
func (t *Transport) Listen() (net.Addr, error) {
	if t.role != RoleServer {
		return nil, ErrListenAddrRequired
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener != nil {
		return t.listener.Addr(), nil
	}
	addr := strings.TrimSpace(t.cfg.ListenAddr)
	if addr == "" {
		return nil, ErrListenAddrRequired
	}
	if err := t.cfg.TLS.ValidateServer(); err != nil {
		return nil, err
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, protocol.NetworkError("listen", err)
	}
	t.listener = ln
	return ln.Addr(), nil
}

// Open connects (client) or accepts exactly one peer (server), then starts both loops.
func (t *Transport) Open(ctx context.Context) error {
	if t.closing.Load() {
		return ErrClosed
	}
	t.mu.Lock()
	open := t.conn != nil
	t.mu.Unlock()
	if open {
		return ErrAlreadyOpen
	}

	var conn net.Conn
	var err error
	if t.role == RoleServer {
		conn, err = t.accept(ctx)
	} else {
		conn, err = t.dial(ctx)
	}
	if err != nil {
		return err
	}
	if t.closing.Load() {
		_ = conn.Close()
		return ErrClosed
	}
	t.start(conn)
	t.log.Info().Str("local", conn.LocalAddr().String()).Str("remote", conn.RemoteAddr().String()).Msg("connection open")
	return nil
}

func (t *Transport) dial(ctx context.Context) (net.Conn, error) {
	addr := strings.TrimSpace(t.cfg.RemoteAddr)
	if addr == "" {
		return nil, ErrRemoteAddrRequired
	}
	if err := t.cfg.TLS.ValidateClient(); err != nil {
		return nil, err
	}
	dialer := net.Dialer{Timeout: t.cfg.ConnectTimeout}
	rawConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, protocol.NetworkError("dial", err)
	}
	if !t.cfg.TLS.Enabled {
		return rawConn, nil
	}

	tlsCfg, err := t.cfg.TLS.clientConfig(addr)
	if err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	conn := tls.Client(rawConn, tlsCfg)
	handshakeCtx, cancel := context.WithTimeout(ctx, t.cfg.HandshakeTimeout)
	defer cancel()
	if err := conn.HandshakeContext(handshakeCtx); err != nil {
		_ = rawConn.Close()
		return nil, protocol.NetworkError("tls handshake", err)
	}
	return conn, nil
}

func (t *Transport) accept(ctx context.Context) (net.Conn, error) {
	if _, err := t.Listen(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	ln := t.listener
	t.mu.Unlock()

	acceptCtx, cancel := context.WithTimeout(ctx, t.cfg.AcceptTimeout)
	defer cancel()
	accepted := make(chan struct{})
	defer close(accepted)
	go func() {
		select {
		case <-acceptCtx.Done():
			_ = ln.Close()
		case <-accepted:
		}
	}()

	rawConn, err := ln.Accept()
	// One peer per endpoint.
	_ = ln.Close()
	if err != nil {
		if ctxErr := acceptCtx.Err(); ctxErr != nil {
			return nil, protocol.NetworkError("accept", ctxErr)
		}
		return nil, protocol.NetworkError("accept", err)
	}
	if !t.cfg.TLS.Enabled {
		return rawConn, nil
	}

	tlsCfg, err := t.cfg.TLS.serverConfig()
	if err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	conn := tls.Server(rawConn, tlsCfg)
	_ = conn.SetDeadline(time.Now().Add(t.cfg.HandshakeTimeout))
	if err := conn.HandshakeContext(acceptCtx); err != nil {
		_ = rawConn.Close()
		return nil, protocol.NetworkError("tls handshake", err)
	}
	_ = conn.SetDeadline(time.Time{})
	return conn, nil
}

func (t *Transport) start(conn net.Conn) {
	onError := func(err error) {
		if t.closing.Load() {
			return
		}
		t.handler.OnTransportError(err)
	}
	sender := NewSender(conn, t.cfg.WriteTimeout, onError)
	receiver := NewReceiver(conn, t.cfg.Limits, t.handler, t.closing.Load)

	t.mu.Lock()
	t.conn = conn
	t.sender = sender
	t.mu.Unlock()

	t.wg.Add(2)
	go func() {
		defer t.wg.Done()
		sender.Run()
	}()
	go func() {
		defer t.wg.Done()
		receiver.Run()
	}()
}

func (t *Transport) SendChunk(b []byte) error {
	sender, err := t.activeSender()
	if err != nil {
		return err
	}
	return sender.Send(b)
}

// SendChunkImmediately bypasses the queue for frames that must preempt queued traffic.
func (t *Transport) SendChunkImmediately(b []byte) error {
	sender, err := t.activeSender()
	if err != nil {
		return err
	}
	return sender.SendImmediately(b)
}

func (t *Transport) activeSender() (*Sender, error) {
	if t.closing.Load() {
		return nil, ErrClosed
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sender == nil {
		return nil, ErrNotOpen
	}
	return t.sender, nil
}

// Close stops both loops and closes the socket. Safe to call more than once.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.closing.Store(true)
		t.mu.Lock()
		ln, conn, sender := t.listener, t.conn, t.sender
		t.mu.Unlock()

		if sender != nil {
			sender.Stop()
		}
		if ln != nil {
			_ = ln.Close()
		}
		if conn != nil {
			if cerr := conn.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
				err = cerr
			}
		}
		t.wg.Wait()
		t.log.Debug().Msg("connection closed")
	})
	return err
}

func (t *Transport) Closing() bool {
	return t.closing.Load()
}

func (t *Transport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil && !t.closing.Load()
}

func (t *Transport) LocalAddr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return t.conn.LocalAddr()
	}
	if t.listener != nil {
		return t.listener.Addr()
	}
	return nil
}

func (t *Transport) RemoteAddr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return t.conn.RemoteAddr()
	}
	return nil
}

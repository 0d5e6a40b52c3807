package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/msrpctl/internal/observability"
	"github.com/danmuck/msrpctl/internal/protocol/session"
	"github.com/danmuck/msrpctl/internal/transport"
	"github.com/rs/zerolog"
)

const (
	ProtocolMSRP        = "msrp"
	ProtocolMSRPSecured = "msrps"

	SocketProtocol        = "TCP/MSRP"
	SocketProtocolSecured = "TCP/TLS/MSRP"

	SetupActive  = "active"
	SetupPassive = "passive"
)

var (
	ErrLocalHostRequired = errors.New("manager: local host required")
	ErrRemotePathMissing = errors.New("manager: remote msrp path required")
	ErrRemoteHostMissing = errors.New("manager: remote host and port required")
	ErrSessionExists     = errors.New("manager: session already created")
	ErrNoSession         = errors.New("manager: no session")
)

// Config describes the local MSRP endpoint.
type Config struct {
	LocalHost string
	// LocalPort 0 lets a server endpoint pick an ephemeral port.
	LocalPort int
	SessionID string
	Secured   bool

	Transport          transport.Config
	Session            session.Config
	MaxConnectAttempts int
	Backoff            BackoffConfig
}

func DefaultConfig() Config {
	return Config{
		LocalHost:          "127.0.0.1",
		Transport:          transport.DefaultConfig(),
		Session:            session.DefaultConfig(),
		MaxConnectAttempts: 1,
		Backoff:            DefaultBackoffConfig(),
	}
}

// Media is the negotiated remote media line, as produced by SDP offer/answer.
type Media struct {
	Path  string
	Setup string
	Host  string
	Port  int
}

// Manager owns the single MSRP session of one media stream and its transport.
type Manager struct {
	cfg Config
	log zerolog.Logger
	rng *rand.Rand

	mu        sync.Mutex
	session   *session.Session
	transport *transport.Transport
	remote    string
	boundPort int
	closed    bool
}

func New(cfg Config) (*Manager, error) {
	if strings.TrimSpace(cfg.LocalHost) == "" {
		return nil, ErrLocalHostRequired
	}
	if strings.TrimSpace(cfg.SessionID) == "" {
		cfg.SessionID = strconv.FormatInt(time.Now().UnixMilli(), 10)
	}
	if cfg.MaxConnectAttempts <= 0 {
		cfg.MaxConnectAttempts = 1
	}
	cfg.Transport = cfg.Transport.WithDefaults()
	cfg.Transport.TLS.Enabled = cfg.Transport.TLS.Enabled || cfg.Secured
	cfg.Session = cfg.Session.WithDefaults()
	return &Manager{
		cfg: cfg,
		log: observability.Component("msrp.manager"),
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

func (m *Manager) Protocol() string {
	if m.cfg.Secured {
		return ProtocolMSRPSecured
	}
	return ProtocolMSRP
}

func (m *Manager) SocketProtocol() string {
	if m.cfg.Secured {
		return SocketProtocolSecured
	}
	return SocketProtocol
}

func (m *Manager) Secured() bool {
	return m.cfg.Secured
}

func (m *Manager) SessionID() string {
	return m.cfg.SessionID
}

// LocalPort is the bound server port once a server endpoint listens, otherwise the configured port.
func (m *Manager) LocalPort() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.boundPort > 0 {
		return m.boundPort
	}
	return m.cfg.LocalPort
}

// LocalPath returns the local MSRP URI advertised in the a=path attribute.
func (m *Manager) LocalPath() string {
	host := m.cfg.LocalHost
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return fmt.Sprintf("%s://%s:%d/%s;tcp", m.Protocol(), host, m.LocalPort(), m.cfg.SessionID)
}

// CreateSession picks the endpoint role from the remote setup attribute: an active
// remote makes this side the passive server.
func (m *Manager) CreateSession(media Media, listener session.Listener) (*session.Session, error) {
	if strings.EqualFold(strings.TrimSpace(media.Setup), SetupActive) {
		return m.CreateServerSession(media.Path, listener)
	}
	if media.Setup == "" {
		m.log.Warn().Str("path", media.Path).Msg("media setup attribute missing, connecting as client")
	}
	return m.CreateClientSession(media.Host, media.Port, media.Path, listener)
}

func (m *Manager) CreateClientSession(host string, port int, remotePath string, listener session.Listener) (*session.Session, error) {
	if strings.TrimSpace(remotePath) == "" {
		return nil, ErrRemotePathMissing
	}
	if strings.TrimSpace(host) == "" || port <= 0 {
		return nil, ErrRemoteHostMissing
	}
	m.log.Info().Str("host", host).Int("port", port).Msg("create client endpoint")

	tcfg := m.cfg.Transport
	tcfg.RemoteAddr = net.JoinHostPort(host, strconv.Itoa(port))
	return m.attach(transport.RoleClient, tcfg, remotePath, listener)
}

func (m *Manager) CreateServerSession(remotePath string, listener session.Listener) (*session.Session, error) {
	if strings.TrimSpace(remotePath) == "" {
		return nil, ErrRemotePathMissing
	}
	m.log.Info().Int("port", m.cfg.LocalPort).Msg("create server endpoint")

	tcfg := m.cfg.Transport
	if tcfg.ListenAddr == "" {
		tcfg.ListenAddr = net.JoinHostPort(m.cfg.LocalHost, strconv.Itoa(m.cfg.LocalPort))
	}
	return m.attach(transport.RoleServer, tcfg, remotePath, listener)
}

func (m *Manager) attach(role transport.Role, tcfg transport.Config, remotePath string, listener session.Listener) (*session.Session, error) {
	m.mu.Lock()
	if m.session != nil && !m.closed {
		m.mu.Unlock()
		return nil, ErrSessionExists
	}
	m.mu.Unlock()

	sess := session.New(m.cfg.Session, listener)
	tr := transport.New(role, tcfg, sess)
	if role == transport.RoleServer {
		addr, err := tr.Listen()
		if err != nil {
			return nil, err
		}
		if tcp, ok := addr.(*net.TCPAddr); ok {
			m.mu.Lock()
			m.boundPort = tcp.Port
			m.mu.Unlock()
		}
	}
	sess.SetConnection(tr)
	sess.SetFrom(m.LocalPath())
	sess.SetTo(remotePath)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil && !m.closed {
		_ = tr.Close()
		return nil, ErrSessionExists
	}
	m.session = sess
	m.transport = tr
	m.remote = tcfg.RemoteAddr
	m.closed = false
	return sess, nil
}

// Open connects or accepts the peer. Client endpoints retry per MaxConnectAttempts with backoff.
func (m *Manager) Open(ctx context.Context) error {
	_, tr, err := m.current()
	if err != nil {
		return err
	}
	if tr.Role() == transport.RoleServer {
		return tr.Open(ctx)
	}
	m.mu.Lock()
	remote := m.remote
	m.mu.Unlock()
	var attempt int
	for {
		attempt++
		err := tr.Open(ctx)
		if err == nil || errors.Is(err, transport.ErrAlreadyOpen) {
			return err
		}
		m.log.Warn().Int("attempt", attempt).Str("addr", remote).Err(err).Msg("dial failed")
		if attempt >= m.cfg.MaxConnectAttempts || errors.Is(err, transport.ErrClosed) || ctx.Err() != nil {
			return err
		}
		if err := sleepBackoff(ctx, m.cfg.Backoff, attempt, m.rng); err != nil {
			return err
		}
	}
}

func (m *Manager) SendChunks(ctx context.Context, r io.Reader, appMsgID, contentType string, totalSize int64, ct session.ChunkType) error {
	sess, _, err := m.current()
	if err != nil {
		return err
	}
	return sess.SendChunks(ctx, r, appMsgID, contentType, totalSize, ct)
}

func (m *Manager) SendEmptyChunk(ctx context.Context) error {
	sess, _, err := m.current()
	if err != nil {
		return err
	}
	return sess.SendEmptyChunk(ctx)
}

// CloseSession closes the session and its transport. Calling it again is a no-op.
func (m *Manager) CloseSession() {
	m.mu.Lock()
	if m.session == nil || m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	sess := m.session
	m.mu.Unlock()

	m.log.Info().Msg("close session")
	sess.Close()
}

func (m *Manager) IsEstablished() bool {
	sess, _, err := m.current()
	return err == nil && sess.IsEstablished()
}

// Session returns the last created session, or nil.
func (m *Manager) Session() *session.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

func (m *Manager) current() (*session.Session, *transport.Transport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, nil, ErrNoSession
	}
	if m.closed {
		return nil, nil, session.ErrSessionClosed
	}
	return m.session, m.transport, nil
}

package config

import (
	"github.com/danmuck/msrpctl/internal/logging"
	"github.com/danmuck/msrpctl/internal/manager"
	"github.com/danmuck/msrpctl/internal/protocol/frame"
	"github.com/danmuck/msrpctl/internal/protocol/session"
	"github.com/danmuck/msrpctl/internal/transport"
)

func (s Settings) SessionConfig() session.Config {
	return session.Config{
		FailureReport:      s.Session.FailureReport,
		SuccessReport:      s.Session.SuccessReport,
		ResponseTimeout:    s.Session.ResponseTimeout.Duration,
		ChunkSize:          s.Session.ChunkSize,
		TransactionExpiry:  s.Session.TransactionExpiry.Duration,
		DisableTracking:    !s.Session.Tracking,
		ListenerQueueDepth: s.Session.ListenerQueueDepth,
	}.WithDefaults()
}

func (s Settings) TransportConfig() transport.Config {
	return transport.Config{
		ConnectTimeout:   s.Transport.ConnectTimeout.Duration,
		AcceptTimeout:    s.Transport.AcceptTimeout.Duration,
		HandshakeTimeout: s.Transport.HandshakeTimeout.Duration,
		WriteTimeout:     s.Transport.WriteTimeout.Duration,
		Limits: frame.Limits{
			MaxLineBytes:  s.Transport.MaxLineBytes,
			MaxScanBytes:  s.Transport.MaxScanBytes,
			MaxChunkBytes: s.Transport.MaxChunkBytes,
		},
		TLS: transport.TLSConfig{
			Enabled:            s.TLS.Enabled || s.Endpoint.Secured,
			Mutual:             s.TLS.Mutual,
			CertFile:           s.TLS.CertFile,
			KeyFile:            s.TLS.KeyFile,
			CAFile:             s.TLS.CAFile,
			ServerName:         s.TLS.ServerName,
			InsecureSkipVerify: s.TLS.InsecureSkipVerify,
		},
	}.WithDefaults()
}

func (s Settings) ManagerConfig() manager.Config {
	return manager.Config{
		LocalHost:          s.Endpoint.Host,
		LocalPort:          s.Endpoint.Port,
		SessionID:          s.Endpoint.SessionID,
		Secured:            s.Endpoint.Secured,
		Transport:          s.TransportConfig(),
		Session:            s.SessionConfig(),
		MaxConnectAttempts: s.Endpoint.MaxConnectAttempts,
		Backoff: manager.BackoffConfig{
			InitialDelay: s.Backoff.InitialDelay.Duration,
			Multiplier:   s.Backoff.Multiplier,
			MaxDelay:     s.Backoff.MaxDelay.Duration,
			Jitter:       s.Backoff.Jitter,
		},
	}
}

func (s Settings) LogConfig() logging.Config {
	cfg := logging.DefaultConfig(logging.ProfileRuntime)
	if lvl, ok := logging.ParseLevel(s.Log.Level); ok {
		cfg.Level = lvl
	}
	cfg.Timestamp = s.Log.Timestamp
	cfg.NoColor = s.Log.NoColor
	cfg.File = s.Log.File
	return cfg
}

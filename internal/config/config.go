package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danmuck/msrpctl/internal/logging"
	"github.com/pelletier/go-toml/v2"
)

var (
	ErrHostRequired      = errors.New("config: endpoint host required")
	ErrInvalidPort       = errors.New("config: endpoint port out of range")
	ErrInvalidChunkSize  = errors.New("config: chunk_size must be positive")
	ErrInvalidTimeout    = errors.New("config: timeouts must not be negative")
	ErrInvalidLogLevel   = errors.New("config: unknown log level")
	ErrInvalidQueueDepth = errors.New("config: listener_queue_depth must be positive")
)

// Duration decodes TOML strings such as "5s" or "250ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Settings is the on-disk msrpctl configuration.
type Settings struct {
	Endpoint  EndpointSettings  `toml:"endpoint"`
	Session   SessionSettings   `toml:"session"`
	Transport TransportSettings `toml:"transport"`
	TLS       TLSSettings       `toml:"tls"`
	Backoff   BackoffSettings   `toml:"backoff"`
	Log       LogSettings       `toml:"log"`
	Admin     AdminSettings     `toml:"admin"`
}

type EndpointSettings struct {
	Host               string `toml:"host"`
	Port               int    `toml:"port"`
	SessionID          string `toml:"session_id"`
	Secured            bool   `toml:"secured"`
	MaxConnectAttempts int    `toml:"max_connect_attempts"`
}

type SessionSettings struct {
	FailureReport      bool     `toml:"failure_report"`
	SuccessReport      bool     `toml:"success_report"`
	ResponseTimeout    Duration `toml:"response_timeout"`
	ChunkSize          int      `toml:"chunk_size"`
	TransactionExpiry  Duration `toml:"transaction_expiry"`
	Tracking           bool     `toml:"tracking"`
	ListenerQueueDepth int      `toml:"listener_queue_depth"`
}

type TransportSettings struct {
	ConnectTimeout   Duration `toml:"connect_timeout"`
	AcceptTimeout    Duration `toml:"accept_timeout"`
	HandshakeTimeout Duration `toml:"handshake_timeout"`
	WriteTimeout     Duration `toml:"write_timeout"`
	MaxLineBytes     int      `toml:"max_line_bytes"`
	MaxScanBytes     int      `toml:"max_scan_bytes"`
	MaxChunkBytes    int64    `toml:"max_chunk_bytes"`
}

type TLSSettings struct {
	Enabled            bool   `toml:"enabled"`
	Mutual             bool   `toml:"mutual"`
	CertFile           string `toml:"cert_file"`
	KeyFile            string `toml:"key_file"`
	CAFile             string `toml:"ca_file"`
	ServerName         string `toml:"server_name"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

type BackoffSettings struct {
	InitialDelay Duration `toml:"initial_delay"`
	Multiplier   float64  `toml:"multiplier"`
	MaxDelay     Duration `toml:"max_delay"`
	Jitter       bool     `toml:"jitter"`
}

type LogSettings struct {
	Level     string `toml:"level"`
	Timestamp bool   `toml:"timestamp"`
	NoColor   bool   `toml:"no_color"`
	File      string `toml:"file"`
}

type AdminSettings struct {
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
	Token       string   `toml:"token"`
}

func DefaultSettings() Settings {
	return Settings{
		Endpoint: EndpointSettings{
			Host:               "127.0.0.1",
			Port:               2855,
			MaxConnectAttempts: 3,
		},
		Session: SessionSettings{
			ResponseTimeout:    Duration{5 * time.Second},
			ChunkSize:          10 * 1024,
			TransactionExpiry:  Duration{30 * time.Second},
			Tracking:           true,
			ListenerQueueDepth: 64,
		},
		Transport: TransportSettings{
			ConnectTimeout:   Duration{10 * time.Second},
			AcceptTimeout:    Duration{10 * time.Second},
			HandshakeTimeout: Duration{5 * time.Second},
			WriteTimeout:     Duration{15 * time.Second},
		},
		Backoff: BackoffSettings{
			InitialDelay: Duration{250 * time.Millisecond},
			Multiplier:   2.0,
			MaxDelay:     Duration{5 * time.Second},
			Jitter:       true,
		},
		Log: LogSettings{
			Level:     "info",
			Timestamp: true,
		},
		Admin: AdminSettings{
			Addr: "127.0.0.1:9280",
		},
	}
}

// LoadSettings reads path over the defaults. Keys missing from the file keep their default.
func LoadSettings(path string) (Settings, error) {
	cfg := DefaultSettings()
	if err := loadToml(path, &cfg); err != nil {
		return Settings{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Settings{}, err
	}
	return cfg, nil
}

// ParseSettings decodes an in-memory document over the defaults.
func ParseSettings(data []byte) (Settings, error) {
	cfg := DefaultSettings()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Settings{}, fmt.Errorf("config parse failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Settings{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func (s Settings) Validate() error {
	if strings.TrimSpace(s.Endpoint.Host) == "" {
		return ErrHostRequired
	}
	if s.Endpoint.Port < 0 || s.Endpoint.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, s.Endpoint.Port)
	}
	if s.Session.ChunkSize <= 0 {
		return ErrInvalidChunkSize
	}
	if s.Session.ListenerQueueDepth <= 0 {
		return ErrInvalidQueueDepth
	}
	for name, d := range map[string]Duration{
		"response_timeout":   s.Session.ResponseTimeout,
		"transaction_expiry": s.Session.TransactionExpiry,
		"connect_timeout":    s.Transport.ConnectTimeout,
		"accept_timeout":     s.Transport.AcceptTimeout,
		"handshake_timeout":  s.Transport.HandshakeTimeout,
		"write_timeout":      s.Transport.WriteTimeout,
	} {
		if d.Duration < 0 {
			return fmt.Errorf("%w: %s", ErrInvalidTimeout, name)
		}
	}
	if _, ok := logging.ParseLevel(s.Log.Level); !ok && strings.TrimSpace(s.Log.Level) != "" {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, s.Log.Level)
	}
	return nil
}

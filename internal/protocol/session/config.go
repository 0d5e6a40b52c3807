package session

import (
	"time"

	"github.com/danmuck/msrpctl/internal/protocol/frame"
)

// Config defines per-session report policy and timing.
type Config struct {
	FailureReport bool
	SuccessReport bool

	// ResponseTimeout bounds every wait on a response, a barrier or a REPORT.
	ResponseTimeout    time.Duration
	ChunkSize          int
	TransactionExpiry  time.Duration
	DisableTracking    bool
	ListenerQueueDepth int

	Now func() time.Time
}

func DefaultConfig() Config {
	return Config{
		ResponseTimeout:    5 * time.Second,
		ChunkSize:          frame.DefaultChunkSize,
		TransactionExpiry:  30 * time.Second,
		ListenerQueueDepth: 64,
		Now:                time.Now,
	}
}

func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = def.ResponseTimeout
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = def.ChunkSize
	}
	if c.TransactionExpiry <= 0 {
		c.TransactionExpiry = def.TransactionExpiry
	}
	if c.ListenerQueueDepth <= 0 {
		c.ListenerQueueDepth = def.ListenerQueueDepth
	}
	if c.Now == nil {
		c.Now = def.Now
	}
	return c
}

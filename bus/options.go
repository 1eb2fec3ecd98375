package bus

import (
	"time"

	"go.uber.org/zap"

	"github.com/moffa90/go-sb9600/metrics"
	"github.com/moffa90/go-sb9600/poll"
)

// Config holds the bus configuration.
type Config struct {
	// AcquireInterval is the poll interval while waiting for the radio to
	// release BUSY before a transmission
	AcquireInterval time.Duration

	// ReleaseInterval is the poll interval while waiting for the radio to
	// release BUSY after ours is de-asserted
	ReleaseInterval time.Duration

	// BusyTimeout bounds each wait on the radio's BUSY. Zero waits forever.
	BusyTimeout time.Duration

	// EnterDelay is the pause before asserting BUSY to enter SBEP mode
	EnterDelay time.Duration

	// Clock drives the busy waits and EnterDelay
	Clock poll.Clock

	// Logger is used for debug traces
	Logger *zap.Logger

	// Metrics receives frame counters (optional)
	Metrics *metrics.Collector
}

func defaultConfig() Config {
	return Config{
		AcquireInterval: 10 * time.Millisecond,
		ReleaseInterval: time.Millisecond,
		EnterDelay:      time.Millisecond,
		Clock:           poll.RealClock{},
		Logger:          zap.NewNop(),
	}
}

// Option is a functional option for configuring a Bus.
type Option func(*Config)

// WithBusyTimeout bounds every wait on the radio's BUSY line.
func WithBusyTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout >= 0 {
			c.BusyTimeout = timeout
		}
	}
}

// WithPollIntervals sets the acquire and release poll intervals.
func WithPollIntervals(acquire, release time.Duration) Option {
	return func(c *Config) {
		if acquire > 0 {
			c.AcquireInterval = acquire
		}
		if release > 0 {
			c.ReleaseInterval = release
		}
	}
}

// WithEnterDelay sets the pause before entering SBEP mode.
func WithEnterDelay(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.EnterDelay = d
		}
	}
}

// WithClock sets the clock.
func WithClock(clock poll.Clock) Option {
	return func(c *Config) {
		if clock != nil {
			c.Clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

package bootloader

import (
	"time"

	"go.uber.org/zap"

	"github.com/moffa90/go-sb9600/metrics"
	"github.com/moffa90/go-sb9600/poll"
)

// Config holds the programmer configuration.
type Config struct {
	// Profile selects boot baud and ready patterns. Default WarisProfile.
	Profile Profile

	// ProgressCallback is called during programming to report progress (optional)
	ProgressCallback ProgressCallback

	// Logger is used for logging operations. Default is a no-op logger.
	Logger *zap.Logger

	// Metrics receives bootstrap counters (optional)
	Metrics *metrics.Collector

	// Clock drives polling sleeps and phase timing
	Clock poll.Clock

	// PollInterval is the sleep between reads while waiting for the MCU
	PollInterval time.Duration

	// ReadyTimeout bounds ready detection. Zero waits forever.
	ReadyTimeout time.Duration

	// ResponseTimeout bounds each wait for a negotiation reply, block echo
	// or final acknowledgement. Zero waits forever.
	ResponseTimeout time.Duration
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Profile:      WarisProfile,
		Logger:       zap.NewNop(),
		Clock:        poll.RealClock{},
		PollInterval: 10 * time.Millisecond,
	}
}

// Option is a functional option for configuring the Programmer.
type Option func(*Config)

// WithProfile selects the hardware revision profile.
//
// Example:
//
//	prog := bootloader.New(l, bootloader.WithProfile(bootloader.OfficialProfile))
func WithProfile(p Profile) Option {
	return func(c *Config) {
		c.Profile = p
	}
}

// WithBootBaud overrides the profile's boot baud rate.
func WithBootBaud(baud int) Option {
	return func(c *Config) {
		if baud > 0 {
			c.Profile.BootBaud = baud
		}
	}
}

// WithReadyPatterns replaces the profile's ready patterns.
func WithReadyPatterns(patterns PatternSet) Option {
	return func(c *Config) {
		c.Profile.ReadyPatterns = patterns
	}
}

// WithProgressCallback sets a callback function to track programming progress.
//
// Example:
//
//	prog := bootloader.New(l,
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("%.1f%% complete\n", p.Percentage)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for the programmer operations.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithMetrics records bootstrap counters on m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

// WithClock replaces the clock used for polling sleeps and timing.
func WithClock(clock poll.Clock) Option {
	return func(c *Config) {
		if clock != nil {
			c.Clock = clock
		}
	}
}

// WithPollInterval sets the sleep between reads while waiting for the MCU.
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.PollInterval = d
		}
	}
}

// WithReadyTimeout bounds ready detection. Zero waits forever.
//
// Example:
//
//	prog := bootloader.New(l, bootloader.WithReadyTimeout(2*time.Minute))
func WithReadyTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.ReadyTimeout = d
	}
}

// WithResponseTimeout bounds each wait for an MCU reply. Zero waits forever.
func WithResponseTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.ResponseTimeout = d
	}
}

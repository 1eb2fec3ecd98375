package link

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/moffa90/go-sb9600/poll"
)

// Link defaults.
const (
	// DefaultBaud is the SB9600/SBEP line rate
	DefaultBaud = 9600

	// DefaultReadTimeout bounds a single Read
	DefaultReadTimeout = 200 * time.Millisecond

	// DefaultQuietTime is the silence window used by WaitForQuiet
	DefaultQuietTime = 500 * time.Millisecond
)

// BusyLine selects the output signal driven as BUSY.
type BusyLine int

const (
	// BusyDTR drives BUSY on DTR
	BusyDTR BusyLine = iota

	// BusyRTS drives BUSY on RTS, for adaptors without a DTR line
	// (e.g. FTDI TTL-232R-5V)
	BusyRTS
)

func (b BusyLine) String() string {
	switch b {
	case BusyDTR:
		return "dtr"
	case BusyRTS:
		return "rts"
	default:
		return fmt.Sprintf("BusyLine(%d)", int(b))
	}
}

// ParseBusyLine parses "dtr" or "rts".
func ParseBusyLine(s string) (BusyLine, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dtr":
		return BusyDTR, nil
	case "rts":
		return BusyRTS, nil
	default:
		return 0, fmt.Errorf("unknown busy line %q: want dtr or rts", s)
	}
}

// Config holds the link configuration.
type Config struct {
	// Baud is the initial line rate, used by Open
	Baud int

	// BusyLine selects DTR or RTS as the BUSY output
	BusyLine BusyLine

	// ReadTimeout bounds a single Read
	ReadTimeout time.Duration

	// Logger receives debug traces of line traffic
	Logger *zap.Logger

	// Clock drives the polling helpers
	Clock poll.Clock
}

func defaultConfig() Config {
	return Config{
		Baud:        DefaultBaud,
		BusyLine:    BusyDTR,
		ReadTimeout: DefaultReadTimeout,
		Logger:      zap.NewNop(),
		Clock:       poll.RealClock{},
	}
}

// Option is a functional option for configuring a Link.
type Option func(*Config)

// WithBaud sets the initial line rate.
func WithBaud(baud int) Option {
	return func(c *Config) {
		if baud > 0 {
			c.Baud = baud
		}
	}
}

// WithBusyLine selects the BUSY output signal.
func WithBusyLine(line BusyLine) Option {
	return func(c *Config) {
		c.BusyLine = line
	}
}

// WithReadTimeout sets the per-read timeout.
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.ReadTimeout = timeout
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

// WithClock sets the clock used by polling helpers.
func WithClock(clock poll.Clock) Option {
	return func(c *Config) {
		if clock != nil {
			c.Clock = clock
		}
	}
}

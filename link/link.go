package link

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/moffa90/go-sb9600/poll"
)

// Port is the subset of go.bug.st/serial.Port a Link needs.
type Port interface {
	io.ReadWriter
	SetMode(mode *serial.Mode) error
	SetDTR(dtr bool) error
	SetRTS(rts bool) error
	GetModemStatusBits() (*serial.ModemStatusBits, error)
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
	Drain() error
	Close() error
}

// Link is a serial link with a software BUSY line.
type Link struct {
	port    Port
	config  Config
	mode    serial.Mode
	timeout time.Duration
	log     *zap.Logger
}

// Open opens a serial device at 8N1 with no hardware flow control and wraps it
// in a Link.
func Open(name string, opts ...Option) (*Link, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	port, err := serial.Open(name, newMode(cfg.Baud))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}

	l, err := New(port, opts...)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	return l, nil
}

// New wraps an already open port. The port is assumed to be running at the
// configured baud rate. BUSY is de-asserted before New returns.
func New(port Port, opts ...Option) (*Link, error) {
	if port == nil {
		panic("port cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	l := &Link{
		port:   port,
		config: cfg,
		mode:   *newMode(cfg.Baud),
		log:    cfg.Logger.Named("link"),
	}

	if err := l.setReadTimeout(cfg.ReadTimeout); err != nil {
		return nil, err
	}
	if err := l.SetBusy(false); err != nil {
		return nil, fmt.Errorf("de-assert busy: %w", err)
	}
	return l, nil
}

func newMode(baud int) *serial.Mode {
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// Close closes the underlying port.
func (l *Link) Close() error {
	return l.port.Close()
}

// Baud returns the current line rate.
func (l *Link) Baud() int {
	return l.mode.BaudRate
}

// Clock returns the clock the link polls with.
func (l *Link) Clock() poll.Clock {
	return l.config.Clock
}

// Logger returns the link's logger.
func (l *Link) Logger() *zap.Logger {
	return l.config.Logger
}

// SetBaud switches the line rate and discards anything received at the old rate.
func (l *Link) SetBaud(baud int) error {
	mode := l.mode
	mode.BaudRate = baud
	if err := l.port.SetMode(&mode); err != nil {
		return fmt.Errorf("set baud %d: %w", baud, err)
	}
	l.mode = mode

	if err := l.FlushInput(); err != nil {
		return err
	}
	l.log.Debug("baud changed", zap.Int("baud", baud))
	return nil
}

// Write writes all of p.
func (l *Link) Write(p []byte) error {
	n, err := l.port.Write(p)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if n != len(p) {
		return fmt.Errorf("write: %w (%d of %d bytes)", io.ErrShortWrite, n, len(p))
	}
	l.log.Debug("send", Hex("data", p))
	return nil
}

// Read reads up to n bytes, returning early when a read times out with
// nothing received. A short result is not an error.
func (l *Link) Read(n int) ([]byte, error) {
	buf := make([]byte, n)
	got := 0
	for got < n {
		m, err := l.port.Read(buf[got:])
		if err != nil {
			return buf[:got], fmt.Errorf("read: %w", err)
		}
		if m == 0 {
			break
		}
		got += m
	}
	l.log.Debug("recv", Hex("data", buf[:got]), zap.Int("want", n))
	return buf[:got], nil
}

// ReadFull polls until exactly n bytes have been received.
func (l *Link) ReadFull(ctx context.Context, n int, p poll.Poller) ([]byte, error) {
	if p.Clock == nil {
		p.Clock = l.config.Clock
	}

	buf := make([]byte, n)
	got := 0
	err := p.Until(ctx, func() (bool, error) {
		m, err := l.port.Read(buf[got:])
		if err != nil {
			return false, fmt.Errorf("read: %w", err)
		}
		got += m
		return got == n, nil
	})
	if err != nil {
		return buf[:got], err
	}
	l.log.Debug("recv", Hex("data", buf))
	return buf, nil
}

// ReadAvailable waits for at least one byte, then returns it together with
// whatever else arrives before the line goes quiet for one read timeout.
func (l *Link) ReadAvailable(ctx context.Context, p poll.Poller) ([]byte, error) {
	first, err := l.ReadFull(ctx, 1, p)
	if err != nil {
		return first, err
	}

	buf := make([]byte, 64)
	out := first
	for {
		m, err := l.port.Read(buf)
		if err != nil {
			return out, fmt.Errorf("read: %w", err)
		}
		if m == 0 {
			return out, nil
		}
		out = append(out, buf[:m]...)
	}
}

// SetBusy drives the BUSY output.
func (l *Link) SetBusy(busy bool) error {
	var err error
	switch l.config.BusyLine {
	case BusyRTS:
		err = l.port.SetRTS(busy)
	default:
		err = l.port.SetDTR(busy)
	}
	if err != nil {
		return fmt.Errorf("set busy %v on %s: %w", busy, l.config.BusyLine, err)
	}
	return nil
}

// IsBusy reports whether the other side is asserting BUSY, sampled on CTS.
func (l *Link) IsBusy() (bool, error) {
	bits, err := l.port.GetModemStatusBits()
	if err != nil {
		return false, fmt.Errorf("read modem status: %w", err)
	}
	return bits.CTS, nil
}

// WaitWhileBusy polls until the other side releases BUSY.
func (l *Link) WaitWhileBusy(ctx context.Context, p poll.Poller) error {
	if p.Clock == nil {
		p.Clock = l.config.Clock
	}
	return p.While(ctx, l.IsBusy)
}

// FlushInput discards received but unread bytes.
func (l *Link) FlushInput() error {
	if err := l.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("flush input: %w", err)
	}
	return nil
}

// FlushOutput blocks until all written bytes have left the port.
func (l *Link) FlushOutput() error {
	if err := l.port.Drain(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

// WaitForQuiet drains the input until no byte arrives within window, then
// restores the previous read timeout. It returns the number of bytes discarded.
func (l *Link) WaitForQuiet(window time.Duration) (n int, err error) {
	prev := l.timeout
	if err := l.setReadTimeout(window); err != nil {
		return 0, err
	}
	defer func() {
		if rerr := l.setReadTimeout(prev); rerr != nil && err == nil {
			err = rerr
		}
	}()

	buf := make([]byte, 1)
	for {
		m, err := l.port.Read(buf)
		if err != nil {
			return n, fmt.Errorf("read: %w", err)
		}
		if m == 0 {
			break
		}
		n += m
	}
	if n > 0 {
		l.log.Debug("line noise drained", zap.Int("bytes", n))
	}
	return n, nil
}

func (l *Link) setReadTimeout(t time.Duration) error {
	if err := l.port.SetReadTimeout(t); err != nil {
		return fmt.Errorf("set read timeout %s: %w", t, err)
	}
	l.timeout = t
	return nil
}

// Hex renders b as space-separated upper-case hex, the way frames are logged.
func Hex(key string, b []byte) zap.Field {
	return zap.String(key, fmt.Sprintf("% X", b))
}

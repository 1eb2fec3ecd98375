// Package linktest provides a scripted serial port for exercising link, bus and
// bootloader code without hardware.
package linktest

import (
	"errors"
	"sync"
	"time"

	"go.bug.st/serial"
)

// Device simulates the far end of the line.
type Device interface {
	// Receive is called with every host write and returns the bytes the
	// device sends in reply.
	Receive(baud int, p []byte) []byte

	// Idle is called when the host reads with nothing pending and returns
	// unsolicited output, or nil for silence.
	Idle(baud int) []byte
}

// ErrClosed is returned by operations on a closed Port.
var ErrClosed = errors.New("linktest: port closed")

// Port is an in-memory serial port.
//
// With Echo set, every write is looped back into the receive buffer, the way a
// single-wire SB9600 bus reflects the host's own transmission. Corrupt, when
// set, rewrites the looped-back copy to simulate a collision or line fault.
// Queued replies are delivered after the echo of the next write.
type Port struct {
	mu sync.Mutex

	// Echo loops written bytes back into the receive buffer
	Echo bool

	// Corrupt transforms the echoed copy of a write
	Corrupt func(p []byte) []byte

	// Device, if set, generates replies and unsolicited output
	Device Device

	// Chunk limits the bytes returned by a single Read (0 = unlimited)
	Chunk int

	rx       []byte
	replies  [][]byte
	writes   [][]byte
	cts      bool
	ctsSeq   []bool
	dtr, rts bool
	bauds    []int
	timeouts []time.Duration
	resets   int
	drains   int
	closed   bool
	readErr  error
	writeErr error
}

// NewPort returns a Port with loopback echo enabled.
func NewPort() *Port {
	return &Port{Echo: true}
}

// Feed appends bytes to the receive buffer.
func (p *Port) Feed(b ...byte) {
	p.mu.Lock()
	p.rx = append(p.rx, b...)
	p.mu.Unlock()
}

// Reply queues bytes to arrive after the echo of the next write.
func (p *Port) Reply(b ...byte) {
	p.mu.Lock()
	p.replies = append(p.replies, b)
	p.mu.Unlock()
}

// SetCTS sets the CTS input level.
func (p *Port) SetCTS(on bool) {
	p.mu.Lock()
	p.cts = on
	p.mu.Unlock()
}

// SetCTSSequence queues CTS samples returned by successive
// GetModemStatusBits calls before falling back to the SetCTS level.
func (p *Port) SetCTSSequence(seq ...bool) {
	p.mu.Lock()
	p.ctsSeq = append(p.ctsSeq, seq...)
	p.mu.Unlock()
}

// SetReadError makes subsequent reads fail.
func (p *Port) SetReadError(err error) {
	p.mu.Lock()
	p.readErr = err
	p.mu.Unlock()
}

// SetWriteError makes subsequent writes fail.
func (p *Port) SetWriteError(err error) {
	p.mu.Lock()
	p.writeErr = err
	p.mu.Unlock()
}

// Writes returns a copy of every write so far.
func (p *Port) Writes() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.writes))
	for i, w := range p.writes {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

// Pending returns the unread receive buffer.
func (p *Port) Pending() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.rx...)
}

// DTR returns the DTR output level.
func (p *Port) DTR() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dtr
}

// RTS returns the RTS output level.
func (p *Port) RTS() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rts
}

// Bauds returns every baud rate set through SetMode, in order.
func (p *Port) Bauds() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.bauds...)
}

// Timeouts returns every read timeout set, in order.
func (p *Port) Timeouts() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Duration(nil), p.timeouts...)
}

// Resets returns how many times the input buffer was reset.
func (p *Port) Resets() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resets
}

// Drains returns how many times Drain was called.
func (p *Port) Drains() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.drains
}

// Closed reports whether Close was called.
func (p *Port) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Port) baud() int {
	if len(p.bauds) == 0 {
		return 0
	}
	return p.bauds[len(p.bauds)-1]
}

// Read returns pending bytes, or 0 and a nil error when nothing is pending,
// the way go.bug.st/serial reports a read timeout.
func (p *Port) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, ErrClosed
	}
	if p.readErr != nil {
		return 0, p.readErr
	}
	if len(p.rx) == 0 && p.Device != nil {
		p.rx = append(p.rx, p.Device.Idle(p.baud())...)
	}

	n := len(b)
	if p.Chunk > 0 && n > p.Chunk {
		n = p.Chunk
	}
	n = copy(b[:n], p.rx)
	p.rx = p.rx[n:]
	return n, nil
}

// Write records b and delivers the echo and any reply.
func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, ErrClosed
	}
	if p.writeErr != nil {
		return 0, p.writeErr
	}

	data := append([]byte(nil), b...)
	p.writes = append(p.writes, data)

	if p.Echo {
		echo := append([]byte(nil), data...)
		if p.Corrupt != nil {
			echo = p.Corrupt(echo)
		}
		p.rx = append(p.rx, echo...)
	}

	if p.Device != nil {
		p.rx = append(p.rx, p.Device.Receive(p.baud(), data)...)
	} else if len(p.replies) > 0 {
		p.rx = append(p.rx, p.replies[0]...)
		p.replies = p.replies[1:]
	}
	return len(b), nil
}

// SetMode records the baud rate.
func (p *Port) SetMode(mode *serial.Mode) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bauds = append(p.bauds, mode.BaudRate)
	return nil
}

// SetDTR sets the DTR output.
func (p *Port) SetDTR(dtr bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dtr = dtr
	return nil
}

// SetRTS sets the RTS output.
func (p *Port) SetRTS(rts bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rts = rts
	return nil
}

// GetModemStatusBits reports CTS from the queued sequence or the current level.
func (p *Port) GetModemStatusBits() (*serial.ModemStatusBits, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cts := p.cts
	if len(p.ctsSeq) > 0 {
		cts = p.ctsSeq[0]
		p.ctsSeq = p.ctsSeq[1:]
	}
	return &serial.ModemStatusBits{CTS: cts}, nil
}

// SetReadTimeout records t.
func (p *Port) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeouts = append(p.timeouts, t)
	return nil
}

// ResetInputBuffer discards the receive buffer.
func (p *Port) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rx = nil
	p.resets++
	return nil
}

// Drain counts the call; writes complete immediately.
func (p *Port) Drain() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drains++
	return nil
}

// Close marks the port closed.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

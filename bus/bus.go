package bus

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/moffa90/go-sb9600/link"
	"github.com/moffa90/go-sb9600/poll"
	"github.com/moffa90/go-sb9600/protocol"
)

const (
	protoSB9600 = "sb9600"
	protoSBEP   = "sbep"
)

// Transport is the part of *link.Link the bus drives.
type Transport interface {
	Write(p []byte) error
	Read(n int) ([]byte, error)
	SetBusy(busy bool) error
	WaitWhileBusy(ctx context.Context, p poll.Poller) error
	FlushInput() error
	FlushOutput() error
}

var _ Transport = (*link.Link)(nil)

// Bus sends and receives frames on one physical link.
// A Bus is not safe for concurrent use.
type Bus struct {
	t      Transport
	config Config
	log    *zap.Logger
}

// New creates a Bus over t.
func New(t Transport, opts ...Option) *Bus {
	if t == nil {
		panic("transport cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Bus{
		t:      t,
		config: cfg,
		log:    cfg.Logger.Named("bus"),
	}
}

// SendSB9600 transmits one SB9600 frame and verifies it by echo.
func (b *Bus) SendSB9600(ctx context.Context, address, subaddress, value, operation byte) error {
	frame := protocol.BuildSB9600Frame(address, subaddress, value, operation)

	err := b.sendSB9600(ctx, frame)
	if err != nil {
		b.config.Metrics.FrameError(protoSB9600, errorKind(err))
		return fmt.Errorf("sb9600 send: %w", err)
	}
	b.config.Metrics.FrameSent(protoSB9600)
	b.log.Debug("sb9600 sent", link.Hex("frame", frame))
	return nil
}

func (b *Bus) sendSB9600(ctx context.Context, frame []byte) error {
	if err := b.t.WaitWhileBusy(ctx, b.acquirePoller()); err != nil {
		return fmt.Errorf("wait for bus: %w", err)
	}

	if err := b.t.SetBusy(true); err != nil {
		return err
	}
	if err := b.transmit(frame, true); err != nil {
		// Do not hold the bus after a failed transmission.
		_ = b.t.SetBusy(false)
		return err
	}

	return b.release(ctx)
}

// EnterSBEP asserts BUSY and waits for the radio's Ack. On failure BUSY is
// released again.
func (b *Bus) EnterSBEP(ctx context.Context) error {
	if err := b.config.Clock.Sleep(ctx, b.config.EnterDelay); err != nil {
		return err
	}
	if err := b.t.SetBusy(true); err != nil {
		return fmt.Errorf("sbep enter: %w", err)
	}

	if err := b.expectAck("sbep enter"); err != nil {
		_ = b.t.SetBusy(false)
		b.config.Metrics.FrameError(protoSBEP, errorKind(err))
		return err
	}
	b.log.Debug("sbep mode entered")
	return nil
}

// LeaveSBEP releases BUSY and waits for the radio to do the same.
func (b *Bus) LeaveSBEP(ctx context.Context) error {
	if err := b.release(ctx); err != nil {
		return fmt.Errorf("sbep leave: %w", err)
	}
	b.log.Debug("sbep mode left")
	return nil
}

// SendSBEP transmits an SBEP message, verifies the echo and waits for the Ack.
func (b *Bus) SendSBEP(ctx context.Context, opcode byte, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	frame, err := protocol.BuildSBEPFrame(opcode, data)
	if err != nil {
		return err
	}

	if err := b.transmit(frame, false); err != nil {
		b.config.Metrics.FrameError(protoSBEP, errorKind(err))
		return fmt.Errorf("sbep send: %w", err)
	}
	if err := b.expectAck("sbep send"); err != nil {
		b.config.Metrics.FrameError(protoSBEP, errorKind(err))
		return err
	}

	b.config.Metrics.FrameSent(protoSBEP)
	b.log.Debug("sbep sent", zap.Uint8("opcode", opcode), link.Hex("frame", frame))
	return nil
}

// ReceiveSBEP reads one SBEP message and validates its checksum.
func (b *Bus) ReceiveSBEP(ctx context.Context) (*protocol.SBEPFrame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := b.receiveSBEP()
	if err != nil {
		b.config.Metrics.FrameError(protoSBEP, errorKind(err))
		return nil, fmt.Errorf("sbep receive: %w", err)
	}
	b.config.Metrics.FrameReceived(protoSBEP)
	return f, nil
}

func (b *Bus) receiveSBEP() (*protocol.SBEPFrame, error) {
	first, err := b.readExact(1, "header")
	if err != nil {
		return nil, err
	}
	hdr := protocol.SBEPHeader(first[0])

	ext, err := b.readExact(hdr.Size()-1, "extended header")
	if err != nil {
		return nil, err
	}

	opcode, dataLen := protocol.ResolveSBEPHeader(hdr, ext)
	if dataLen < protocol.SBEPChecksumSize {
		return nil, fmt.Errorf("invalid data length %d in header % X", dataLen, append(first, ext...))
	}

	data, err := b.readExact(dataLen, "data")
	if err != nil {
		return nil, err
	}

	msg := make([]byte, 0, hdr.Size()+dataLen)
	msg = append(msg, first...)
	msg = append(msg, ext...)
	msg = append(msg, data...)

	if !protocol.ValidSBEPChecksum(msg) {
		return nil, &protocol.ChecksumError{
			Protocol: protoSBEP,
			Frame:    msg,
			Expected: protocol.SBEPChecksum(msg[:len(msg)-1]),
			Actual:   msg[len(msg)-1],
		}
	}

	b.log.Debug("sbep received", zap.Uint8("opcode", opcode), link.Hex("frame", msg))
	return &protocol.SBEPFrame{
		Opcode: opcode,
		Data:   data[:len(data)-protocol.SBEPChecksumSize],
	}, nil
}

// transmit flushes stale input, writes frame and verifies the echo.
func (b *Bus) transmit(frame []byte, drain bool) error {
	if err := b.t.FlushInput(); err != nil {
		return err
	}
	if err := b.t.Write(frame); err != nil {
		return err
	}
	if drain {
		if err := b.t.FlushOutput(); err != nil {
			return err
		}
	}
	return b.verifyEcho(frame)
}

// verifyEcho reads len(sent) bytes back off the wire and requires them to equal sent.
// The host sees its own transmission on the shared line, so a difference means
// the frame collided or was corrupted.
func (b *Bus) verifyEcho(sent []byte) error {
	echo, err := b.t.Read(len(sent))
	if err != nil {
		return err
	}
	if !bytes.Equal(echo, sent) {
		return &protocol.TransmitMismatchError{Sent: sent, Echoed: echo}
	}
	return nil
}

func (b *Bus) expectAck(op string) error {
	ack, err := b.t.Read(1)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(ack) != 1 || ack[0] != protocol.Ack {
		return &protocol.NotAcknowledgedError{Operation: op, Got: ack}
	}
	return nil
}

// release de-asserts BUSY and waits for the radio to release it too.
func (b *Bus) release(ctx context.Context) error {
	if err := b.t.SetBusy(false); err != nil {
		return err
	}
	if err := b.t.WaitWhileBusy(ctx, b.releasePoller()); err != nil {
		return fmt.Errorf("wait for bus release: %w", err)
	}
	return nil
}

func (b *Bus) readExact(n int, what string) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	buf, err := b.t.Read(n)
	if err != nil {
		return nil, err
	}
	if len(buf) != n {
		return nil, fmt.Errorf("short read of %s: got %d of %d bytes", what, len(buf), n)
	}
	return buf, nil
}

func (b *Bus) acquirePoller() poll.Poller {
	return poll.Poller{Clock: b.config.Clock, Interval: b.config.AcquireInterval, Timeout: b.config.BusyTimeout}
}

func (b *Bus) releasePoller() poll.Poller {
	return poll.Poller{Clock: b.config.Clock, Interval: b.config.ReleaseInterval, Timeout: b.config.BusyTimeout}
}

// errorKind classifies err for the frame_errors_total metric.
func errorKind(err error) string {
	switch {
	case protocol.IsChecksumError(err):
		return "checksum"
	case protocol.IsTransmitMismatch(err):
		return "transmit_mismatch"
	case protocol.IsNotAcknowledged(err):
		return "not_acknowledged"
	case errors.Is(err, poll.ErrTimeout):
		return "busy_timeout"
	default:
		return "io"
	}
}

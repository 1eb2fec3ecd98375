package bootloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/moffa90/go-sb9600/firmware"
	"github.com/moffa90/go-sb9600/link"
	"github.com/moffa90/go-sb9600/poll"
)

// Transport is the part of a serial link the bootstrap needs.
type Transport interface {
	SetBaud(baud int) error
	Write(p []byte) error
	Read(n int) ([]byte, error)
	ReadFull(ctx context.Context, n int, p poll.Poller) ([]byte, error)
	ReadAvailable(ctx context.Context, p poll.Poller) ([]byte, error)
}

var _ Transport = (*link.Link)(nil)

// Programmer drives the Waris bootstrap: it waits for the MCU's ready
// signal, negotiates the boot baud rate, streams the image in 8-byte blocks
// and checks the final acknowledgement.
//
// A Programmer owns its transport for the duration of Program and must not
// be used concurrently.
type Programmer struct {
	link   Transport
	config Config
	log    *zap.Logger
}

// New creates a new Programmer on the given link.
//
// Example:
//
//	l, _ := link.Open("/dev/ttyUSB0")
//	prog := bootloader.New(l,
//	    bootloader.WithProfile(bootloader.OfficialProfile),
//	    bootloader.WithReadyTimeout(2*time.Minute),
//	)
func New(t Transport, opts ...Option) *Programmer {
	if t == nil {
		panic("transport cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Programmer{
		link:   t,
		config: cfg,
		log:    cfg.Logger.Named("bootloader").With(zap.String("profile", cfg.Profile.Name)),
	}
}

// Profile returns the effective profile after options were applied.
func (p *Programmer) Profile() Profile {
	return p.config.Profile
}

// ProgramFile loads the image at path and programs it.
func (p *Programmer) ProgramFile(ctx context.Context, path string) error {
	img, err := firmware.Load(path)
	if err != nil {
		p.config.Metrics.BootstrapDone(err)
		return &PhaseError{Phase: PhasePreflight, Err: err}
	}
	return p.Program(ctx, img)
}

// Program performs the complete bootstrap sequence:
//  1. Preflight: validate the image size
//  2. Ready: read 8-byte samples at 460 baud until one matches the profile
//  3. Negotiating: switch to the boot baud and trade 0xFD for 0xFD 0xFF
//  4. Transferring: send each payload block and check its double echo
//  5. Finalizing: switch to 115200 baud and expect exactly 0x50
//
// Errors are wrapped in a PhaseError naming the failed phase. The operation
// can be cancelled via context.
func (p *Programmer) Program(ctx context.Context, img *firmware.Image) (err error) {
	defer func() { p.config.Metrics.BootstrapDone(err) }()

	if img == nil {
		return &PhaseError{Phase: PhasePreflight, Err: fmt.Errorf("firmware cannot be nil")}
	}
	if err := img.Validate(); err != nil {
		return &PhaseError{Phase: PhasePreflight, Err: err}
	}
	if err := p.config.Profile.Validate(); err != nil {
		return &PhaseError{Phase: PhasePreflight, Err: err}
	}

	s := newSession(img, p.config.Clock.Now())
	log := p.log.With(zap.String("session", s.ID.String()))
	log.Info("bootstrap started",
		zap.String("image", img.Path),
		zap.Int("size", len(img.Data)),
		zap.Int("blocks", img.BlockCount()),
		zap.Int("boot_baud", p.config.Profile.BootBaud),
	)

	boot := p.config.Profile.BootBaud
	phases := []struct {
		name    string
		baud    int
		percent float64
		run     func(context.Context) error
	}{
		{PhaseReady, ReadyBaud, 0, p.WaitReady},
		{PhaseNegotiating, boot, 5, p.Negotiate},
		{PhaseTransfer, boot, 5, func(ctx context.Context) error { return p.transfer(ctx, s) }},
		{PhaseFinalizing, FinalBaud, 95, p.Finalize},
	}

	for _, ph := range phases {
		s.Baud = ph.baud
		p.report(s, ph.name, ph.percent)
		started := p.config.Clock.Now()
		if err := ph.run(ctx); err != nil {
			log.Error("bootstrap failed", zap.String("phase", ph.name), zap.Error(err))
			return &PhaseError{Phase: ph.name, Err: err}
		}
		p.config.Metrics.ObservePhase(ph.name, p.config.Clock.Now().Sub(started))
	}

	p.report(s, PhaseComplete, 100)
	log.Info("bootstrap complete",
		zap.Int("bytes", s.Confirmed()),
		zap.Duration("elapsed", p.config.Clock.Now().Sub(s.Started)),
	)
	return nil
}

// WaitReady switches to ReadyBaud and reads 8-byte samples until one is in
// the profile's ready set. Samples are kept aligned: a short read is
// completed by the next poll rather than discarded.
func (p *Programmer) WaitReady(ctx context.Context) error {
	if err := p.link.SetBaud(ReadyBaud); err != nil {
		return err
	}

	patterns := p.config.Profile.ReadyPatterns
	throttle := rate.Sometimes{First: 3, Interval: 5 * time.Second}
	mismatches := 0

	err := p.collect(ctx, p.config.ReadyTimeout, ReadyPatternSize, func(sample []byte) bool {
		if patterns.Match(sample) {
			return true
		}
		mismatches++
		p.config.Metrics.ReadyMismatch()
		throttle.Do(func() {
			p.log.Debug("not ready", link.Hex("sample", sample), zap.Int("mismatches", mismatches))
		})
		return false
	})
	if err != nil {
		return fmt.Errorf("wait for ready pattern: %w", err)
	}

	p.log.Info("mcu ready", zap.Int("mismatches", mismatches))
	return nil
}

// Negotiate switches to the profile's boot baud, sends the trigger byte and
// polls 2-byte replies until the echoed trigger is followed by 0xFF.
func (p *Programmer) Negotiate(ctx context.Context) error {
	baud := p.config.Profile.BootBaud
	if err := p.link.SetBaud(baud); err != nil {
		return err
	}
	if err := p.link.Write([]byte{TriggerByte}); err != nil {
		return err
	}

	want := []byte{TriggerByte, TriggerAck}
	err := p.collect(ctx, p.config.ResponseTimeout, len(want), func(resp []byte) bool {
		if bytes.Equal(resp, want) {
			return true
		}
		p.log.Debug("unexpected trigger reply", link.Hex("reply", resp))
		return false
	})
	if err != nil {
		return fmt.Errorf("wait for trigger ack: %w", err)
	}

	p.log.Info("boot baud negotiated", zap.Int("baud", baud))
	return nil
}

func (p *Programmer) transfer(ctx context.Context, s *Session) error {
	total := s.Image.BlockCount()
	for i := 0; !s.Done(); i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cancelled: %w", err)
		}

		offset := s.Offset()
		if err := p.SendBlock(ctx, i, s.Image.Block(i)); err != nil {
			if IsEchoMismatch(err) {
				return err
			}
			return fmt.Errorf("block %d at 0x%04X: %w", i, offset, err)
		}
		s.Cursor += firmware.BlockSize
		p.config.Metrics.BlockSent()

		// 5% to 95%
		p.reportBlock(s, i, 5+float64(i+1)/float64(total)*90)
	}
	return nil
}

// SendBlock writes one 8-byte block and verifies that the line returns it
// twice: once from the loopback and once from the MCU.
func (p *Programmer) SendBlock(ctx context.Context, index int, block []byte) error {
	if len(block) != firmware.BlockSize {
		return fmt.Errorf("block %d is %d bytes, want %d", index, len(block), firmware.BlockSize)
	}
	if err := p.link.Write(block); err != nil {
		return err
	}

	echo, err := p.link.ReadFull(ctx, 2*firmware.BlockSize, p.poller(p.config.ResponseTimeout))
	if err != nil {
		if errors.Is(err, poll.ErrTimeout) {
			return p.echoMismatch(index, block, echo)
		}
		return fmt.Errorf("read echo: %w", err)
	}

	want := append(append(make([]byte, 0, 2*len(block)), block...), block...)
	if !bytes.Equal(echo, want) {
		return p.echoMismatch(index, block, echo)
	}
	return nil
}

func (p *Programmer) echoMismatch(index int, sent, got []byte) error {
	return &EchoMismatchError{
		Block:  index,
		Offset: firmware.PayloadOffset + index*firmware.BlockSize,
		Sent:   append([]byte(nil), sent...),
		Got:    append([]byte(nil), got...),
	}
}

// Finalize switches to FinalBaud and requires the MCU's single 0x50.
func (p *Programmer) Finalize(ctx context.Context) error {
	if err := p.link.SetBaud(FinalBaud); err != nil {
		return err
	}

	resp, err := p.link.ReadAvailable(ctx, p.poller(p.config.ResponseTimeout))
	if err != nil && !errors.Is(err, poll.ErrTimeout) {
		return fmt.Errorf("read final ack: %w", err)
	}
	if !bytes.Equal(resp, []byte{FinalAck}) {
		return &BootstrapError{Response: append([]byte(nil), resp...)}
	}
	return nil
}

// collect reads size-byte frames until accept returns true, the timeout
// elapses or ctx is done. Bytes of an incomplete frame carry over to the
// next poll.
func (p *Programmer) collect(ctx context.Context, timeout time.Duration, size int, accept func(frame []byte) bool) error {
	var buf []byte
	return p.poller(timeout).Until(ctx, func() (bool, error) {
		chunk, err := p.link.Read(size - len(buf))
		if err != nil {
			return false, err
		}
		buf = append(buf, chunk...)
		if len(buf) < size {
			return false, nil
		}
		frame := buf
		buf = nil
		return accept(frame), nil
	})
}

func (p *Programmer) poller(timeout time.Duration) poll.Poller {
	return poll.Poller{
		Clock:    p.config.Clock,
		Interval: p.config.PollInterval,
		Timeout:  timeout,
	}
}

func (p *Programmer) report(s *Session, phase string, percent float64) {
	if p.config.ProgressCallback == nil {
		return
	}
	p.config.ProgressCallback(Progress{
		Phase:        phase,
		Session:      s.ID.String(),
		Baud:         s.Baud,
		TotalBlocks:  s.Image.BlockCount(),
		Percentage:   percent,
		BytesWritten: s.Confirmed(),
		ElapsedTime:  p.config.Clock.Now().Sub(s.Started),
	})
}

func (p *Programmer) reportBlock(s *Session, block int, percent float64) {
	if p.config.ProgressCallback == nil {
		return
	}
	p.config.ProgressCallback(Progress{
		Phase:        PhaseTransfer,
		Session:      s.ID.String(),
		Baud:         s.Baud,
		CurrentBlock: block,
		TotalBlocks:  s.Image.BlockCount(),
		Percentage:   percent,
		BytesWritten: s.Confirmed(),
		ElapsedTime:  p.config.Clock.Now().Sub(s.Started),
	})
}

package bootloader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-sb9600/firmware"
	"github.com/moffa90/go-sb9600/link"
	"github.com/moffa90/go-sb9600/link/linktest"
	"github.com/moffa90/go-sb9600/metrics"
	"github.com/moffa90/go-sb9600/poll"
)

type rig struct {
	prog     *Programmer
	port     *linktest.Port
	mcu      *fakeMCU
	clock    *poll.ManualClock
	metrics  *metrics.Collector
	progress []Progress
}

func newRig(t *testing.T, mcu *fakeMCU, opts ...Option) *rig {
	t.Helper()

	r := &rig{
		port:    linktest.NewPort(),
		mcu:     mcu,
		clock:   poll.NewManualClock(time.Unix(0, 0)),
		metrics: metrics.NewCollector(prometheus.NewRegistry()),
	}
	r.port.Device = mcu

	l, err := link.New(r.port, link.WithClock(r.clock))
	require.NoError(t, err)

	base := []Option{
		WithClock(r.clock),
		WithMetrics(r.metrics),
		WithProgressCallback(func(p Progress) { r.progress = append(r.progress, p) }),
	}
	r.prog = New(l, append(base, opts...)...)
	return r
}

func (r *rig) phases() []string {
	var out []string
	for _, p := range r.progress {
		if len(out) == 0 || out[len(out)-1] != p.Phase {
			out = append(out, p.Phase)
		}
	}
	return out
}

func testImage(t *testing.T, payload []byte) *firmware.Image {
	t.Helper()
	data := append(make([]byte, firmware.PayloadOffset), payload...)
	img, err := firmware.New(data)
	require.NoError(t, err)
	return img
}

func seq(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i + 1)
	}
	return b
}

func TestProgram(t *testing.T) {
	r := newRig(t, newFakeMCU())
	img := testImage(t, seq(20))

	err := r.prog.Program(context.Background(), img)
	require.NoError(t, err)

	want := [][]byte{
		{TriggerByte},
		{1, 2, 3, 4, 5, 6, 7, 8},
		{9, 10, 11, 12, 13, 14, 15, 16},
		{17, 18, 19, 20, 0, 0, 0, 0},
	}
	assert.Equal(t, want, r.port.Writes())
	assert.Equal(t, want[1:], r.mcu.blocks)
	assert.Equal(t, []int{ReadyBaud, WarisBootBaud, FinalBaud}, r.port.Bauds())
	assert.Equal(t, 3, r.port.Resets(), "every baud switch flushes input")

	assert.Equal(t,
		[]string{PhaseReady, PhaseNegotiating, PhaseTransfer, PhaseFinalizing, PhaseComplete},
		r.phases())
	last := r.progress[len(r.progress)-1]
	assert.Equal(t, 100.0, last.Percentage)
	assert.Equal(t, 20, last.BytesWritten)
	assert.Equal(t, 3, last.TotalBlocks)
	assert.NotEmpty(t, last.Session)

	assert.Equal(t, 3.0, testutil.ToFloat64(r.metrics.BlocksSent))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.metrics.BootstrapRuns.WithLabelValues("ok")))
	assert.Equal(t, 4, testutil.CollectAndCount(r.metrics.PhaseDuration))
}

func TestProgramSinglePaddedBlock(t *testing.T) {
	r := newRig(t, newFakeMCU())
	img := testImage(t, []byte{0xA1, 0xA2, 0xA3, 0xA4, 0xA5})
	require.Len(t, img.Data, 0x85)

	require.NoError(t, r.prog.Program(context.Background(), img))

	assert.Equal(t, [][]byte{
		{TriggerByte},
		{0xA1, 0xA2, 0xA3, 0xA4, 0xA5, 0x00, 0x00, 0x00},
	}, r.port.Writes())

	last := r.progress[len(r.progress)-1]
	assert.Equal(t, PhaseComplete, last.Phase)
	assert.Equal(t, 5, last.BytesWritten)
}

func TestProgramTransferProgress(t *testing.T) {
	r := newRig(t, newFakeMCU())
	require.NoError(t, r.prog.Program(context.Background(), testImage(t, seq(32))))

	var blocks []Progress
	for _, p := range r.progress {
		if p.Phase == PhaseTransfer && p.BytesWritten > 0 {
			blocks = append(blocks, p)
		}
	}
	require.Len(t, blocks, 4)
	for i, p := range blocks {
		assert.Equal(t, i, p.CurrentBlock)
		assert.Equal(t, (i+1)*firmware.BlockSize, p.BytesWritten)
		assert.Equal(t, WarisBootBaud, p.Baud)
	}
	assert.InDelta(t, 95.0, blocks[3].Percentage, 1e-9)
}

func TestWaitReady(t *testing.T) {
	tests := []struct {
		name           string
		profile        Profile
		script         [][]byte
		wantMismatches float64
	}{
		{
			name:    "all zero accepted at once",
			profile: WarisProfile,
		},
		{
			name:    "alternating pattern accepted",
			profile: OfficialProfile,
			script:  [][]byte{{0x00, 0xFF, 0x00, 0xFF, 0x00, 0xFF, 0x00, 0xFF}},
		},
		{
			name:           "noise retried",
			profile:        WarisProfile,
			script:         [][]byte{seq(8), {0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
			wantMismatches: 2,
		},
		{
			name:           "unconfirmed pattern rejected by waris",
			profile:        WarisProfile,
			script:         [][]byte{{0x00, 0x80, 0x00, 0x80, 0x00, 0x80, 0x00, 0x80}},
			wantMismatches: 1,
		},
		{
			name:           "opposite phase rejected by waris",
			profile:        WarisProfile,
			script:         [][]byte{{0xFF, 0x00, 0xFF, 0x00, 0xFF, 0x00, 0xFF, 0x00}},
			wantMismatches: 1,
		},
		{
			name:           "drifted pattern rejected by official",
			profile:        OfficialProfile,
			script:         [][]byte{{0x00, 0xFE, 0x00, 0xFE, 0x00, 0xFE, 0x00, 0xFE}},
			wantMismatches: 1,
		},
		{
			name:    "drifted pattern accepted by loaded profile",
			profile: loadProfile(t, "waris-drift"),
			script:  [][]byte{{0x00, 0xFE, 0x00, 0xFE, 0x00, 0xFE, 0x00, 0xFE}},
		},
		{
			name:    "sample split across reads",
			profile: WarisProfile,
			script:  [][]byte{{0x00, 0xFF, 0x00}, nil, {0xFF, 0x00, 0xFF, 0x00, 0xFF}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mcu := newFakeMCU()
			mcu.readyScript = tt.script
			r := newRig(t, mcu, WithProfile(tt.profile))

			require.NoError(t, r.prog.WaitReady(context.Background()))
			assert.Equal(t, []int{ReadyBaud}, r.port.Bauds())
			assert.Equal(t, tt.wantMismatches, testutil.ToFloat64(r.metrics.ReadyMismatches))
		})
	}
}

func loadProfile(t *testing.T, name string) Profile {
	t.Helper()
	ps, err := LoadProfilesFile("../examples/profiles.yaml")
	require.NoError(t, err)
	p, err := ps.Lookup(name)
	require.NoError(t, err)
	return p
}

func TestWaitReadyTimeout(t *testing.T) {
	mcu := newFakeMCU()
	mcu.ready = Pattern{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	r := newRig(t, mcu, WithReadyTimeout(time.Second), WithPollInterval(10*time.Millisecond))

	err := r.prog.Program(context.Background(), testImage(t, seq(8)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, poll.ErrTimeout))
	assert.Equal(t, PhaseReady, FailedPhase(err))
	assert.Empty(t, r.port.Writes())
	assert.Equal(t, 1.0, testutil.ToFloat64(r.metrics.BootstrapRuns.WithLabelValues("error")))
}

func TestWaitReadyCancelled(t *testing.T) {
	mcu := newFakeMCU()
	mcu.ready = Pattern{0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA}
	r := newRig(t, mcu)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.clock.OnSleep(func(time.Time) {
		if r.clock.Sleeps() >= 5 {
			cancel()
		}
	})

	err := r.prog.WaitReady(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNegotiate(t *testing.T) {
	tests := []struct {
		name     string
		mcuBaud  int
		reply    []byte
		opts     []Option
		wantErr  bool
		wantBaud int
	}{
		{
			name:     "waris",
			mcuBaud:  WarisBootBaud,
			wantBaud: WarisBootBaud,
		},
		{
			name:     "official",
			mcuBaud:  OfficialBootBaud,
			opts:     []Option{WithProfile(OfficialProfile)},
			wantBaud: OfficialBootBaud,
		},
		{
			name:     "boot baud override",
			mcuBaud:  WarisBootBaud,
			opts:     []Option{WithProfile(OfficialProfile), WithBootBaud(WarisBootBaud)},
			wantBaud: WarisBootBaud,
		},
		{
			name:     "wrong revision never answers",
			mcuBaud:  OfficialBootBaud,
			wantErr:  true,
			wantBaud: WarisBootBaud,
		},
		{
			name:     "unexpected reply",
			mcuBaud:  WarisBootBaud,
			reply:    []byte{0xFE},
			wantErr:  true,
			wantBaud: WarisBootBaud,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mcu := newFakeMCU()
			mcu.bootBaud = tt.mcuBaud
			mcu.triggerReply = tt.reply
			opts := append([]Option{WithResponseTimeout(time.Second)}, tt.opts...)
			r := newRig(t, mcu, opts...)

			err := r.prog.Negotiate(context.Background())
			assert.Equal(t, []int{tt.wantBaud}, r.port.Bauds())
			assert.Equal(t, [][]byte{{TriggerByte}}, r.port.Writes())
			if tt.wantErr {
				assert.ErrorIs(t, err, poll.ErrTimeout)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestProgramEchoMismatch(t *testing.T) {
	mcu := newFakeMCU()
	mcu.corruptBlock = 1
	r := newRig(t, mcu)

	err := r.prog.Program(context.Background(), testImage(t, seq(24)))
	require.Error(t, err)
	assert.Equal(t, PhaseTransfer, FailedPhase(err))

	var em *EchoMismatchError
	require.True(t, errors.As(err, &em))
	assert.Equal(t, 1, em.Block)
	assert.Equal(t, 0x88, em.Offset)
	assert.Equal(t, []byte{9, 10, 11, 12, 13, 14, 15, 16}, em.Sent)
	assert.Equal(t, []byte{9, 10, 11, 12, 13, 14, 15, 16, 9 ^ 0xFF, 10, 11, 12, 13, 14, 15, 16}, em.Got)

	// Transfer aborts at the failed block.
	assert.Len(t, r.port.Writes(), 3)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.metrics.BlocksSent))
	assert.NotContains(t, r.port.Bauds(), FinalBaud)
}

func TestProgramEchoMissing(t *testing.T) {
	mcu := newFakeMCU()
	mcu.silentBlock = 0
	r := newRig(t, mcu, WithResponseTimeout(500*time.Millisecond))

	err := r.prog.Program(context.Background(), testImage(t, seq(8)))

	var em *EchoMismatchError
	require.True(t, errors.As(err, &em))
	assert.Equal(t, 0, em.Block)
	assert.Equal(t, seq(8), em.Got, "only the line loopback came back")
}

func TestFinalize(t *testing.T) {
	tests := []struct {
		name    string
		final   []byte
		wantErr bool
	}{
		{name: "ack", final: []byte{0x50}},
		{name: "wrong byte", final: []byte{0x51}, wantErr: true},
		{name: "extra bytes", final: []byte{0x50, 0x50}, wantErr: true},
		{name: "silence", final: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mcu := newFakeMCU()
			mcu.final = tt.final
			r := newRig(t, mcu, WithResponseTimeout(time.Second))

			err := r.prog.Program(context.Background(), testImage(t, seq(8)))
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Equal(t, PhaseFinalizing, FailedPhase(err))
			var be *BootstrapError
			require.True(t, errors.As(err, &be))
			assert.Equal(t, tt.final, be.Response)
		})
	}
}

func TestProgramPreflight(t *testing.T) {
	tests := []struct {
		name string
		img  *firmware.Image
	}{
		{name: "nil image"},
		{name: "oversized", img: &firmware.Image{Data: make([]byte, firmware.MaxImageSize+1)}},
		{name: "header only", img: &firmware.Image{Data: make([]byte, firmware.PayloadOffset)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t, newFakeMCU())

			err := r.prog.Program(context.Background(), tt.img)
			require.Error(t, err)
			assert.Equal(t, PhasePreflight, FailedPhase(err))
			assert.Empty(t, r.port.Bauds(), "line must not be touched")
			assert.Empty(t, r.port.Writes())
		})
	}
}

func TestProgramFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "boot.bin")
	data := append(make([]byte, firmware.PayloadOffset), seq(16)...)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	r := newRig(t, newFakeMCU())
	require.NoError(t, r.prog.ProgramFile(context.Background(), path))
	assert.Len(t, r.mcu.blocks, 2)

	err := r.prog.ProgramFile(context.Background(), filepath.Join(dir, "missing.bin"))
	var fe *firmware.FileError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, PhasePreflight, FailedPhase(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.metrics.BootstrapRuns.WithLabelValues("error")))
}

func TestProgramInvalidProfile(t *testing.T) {
	r := newRig(t, newFakeMCU(), WithReadyPatterns(nil))

	err := r.prog.Program(context.Background(), testImage(t, seq(8)))
	require.Error(t, err)
	assert.Equal(t, PhasePreflight, FailedPhase(err))
}

func TestSessionCursor(t *testing.T) {
	img := testImage(t, seq(9))
	s := newSession(img, time.Unix(0, 0))

	assert.Equal(t, firmware.PayloadOffset, s.Offset())
	assert.False(t, s.Done())

	s.Cursor = firmware.BlockSize
	assert.Equal(t, 0x88, s.Offset())
	assert.False(t, s.Done())

	s.Cursor = 2 * firmware.BlockSize
	assert.True(t, s.Done())
	assert.NotEqual(t, newSession(img, time.Unix(0, 0)).ID, s.ID)
}

func TestSessionConfirmed(t *testing.T) {
	tests := []struct {
		name    string
		payload int
		cursor  int
		want    int
	}{
		{name: "nothing sent", payload: 20, cursor: 0, want: 0},
		{name: "full block", payload: 20, cursor: 8, want: 8},
		{name: "padded last block", payload: 20, cursor: 24, want: 20},
		{name: "exact fit", payload: 16, cursor: 16, want: 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSession(testImage(t, seq(tt.payload)), time.Unix(0, 0))
			s.Cursor = tt.cursor
			assert.Equal(t, tt.want, s.Confirmed())
		})
	}
}

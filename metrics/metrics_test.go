package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.FrameSent("sb9600")
	c.FrameSent("sb9600")
	c.FrameReceived("sbep")
	c.FrameError("sbep", "checksum")
	c.ReadyMismatch()
	c.BlockSent()
	c.BootstrapDone(nil)
	c.BootstrapDone(errors.New("x"))
	c.ObservePhase("ready", 2*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.FramesSent.WithLabelValues("sb9600")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.FramesReceived.WithLabelValues("sbep")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.FrameErrors.WithLabelValues("sbep", "checksum")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ReadyMismatches))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.BlocksSent))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.BootstrapRuns.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.BootstrapRuns.WithLabelValues("error")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.PhaseDuration))
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.FrameSent("sb9600")
		c.FrameReceived("sbep")
		c.FrameError("sbep", "checksum")
		c.ReadyMismatch()
		c.BlockSent()
		c.BootstrapDone(nil)
		c.ObservePhase("ready", time.Second)
	})
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.BlockSent()

	path := filepath.Join(t.TempDir(), "sb9600.prom")
	require.NoError(t, WriteTextfile(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "sb9600_bootstrap_blocks_total 1"))
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

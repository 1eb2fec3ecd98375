// Package metrics exposes Prometheus counters for bus traffic and bootstrap runs.
//
// A nil *Collector is valid and records nothing, so library code can call it
// unconditionally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "sb9600"

// NewRegistry creates a registry with the Go and process collectors registered.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// WriteTextfile writes every metric in g to path in the text exposition format,
// for the node_exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}

// Collector holds the protocol metrics.
type Collector struct {
	FramesSent      *prometheus.CounterVec   // labels: protocol
	FramesReceived  *prometheus.CounterVec   // labels: protocol
	FrameErrors     *prometheus.CounterVec   // labels: protocol, kind
	ReadyMismatches prometheus.Counter       // non-matching ready reads
	BlocksSent      prometheus.Counter       // bootstrap blocks echoed correctly
	BootstrapRuns   *prometheus.CounterVec   // labels: result=ok|error
	PhaseDuration   *prometheus.HistogramVec // labels: phase
}

// NewCollector registers and returns the protocol metrics.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Frames written and verified by echo.",
		}, []string{"protocol"}),
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Frames received with a valid checksum.",
		}, []string{"protocol"}),
		FrameErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_errors_total",
			Help:      "Failed frame operations by error kind.",
		}, []string{"protocol", "kind"}),
		ReadyMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bootstrap_ready_mismatches_total",
			Help:      "Ready-detection reads that matched no ready pattern.",
		}),
		BlocksSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bootstrap_blocks_total",
			Help:      "Bootstrap blocks transferred and echoed correctly.",
		}),
		BootstrapRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bootstrap_runs_total",
			Help:      "Completed bootstrap attempts by result.",
		}, []string{"result"}),
		PhaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bootstrap_phase_seconds",
			Help:      "Time spent in each bootstrap phase.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"phase"}),
	}

	reg.MustRegister(
		c.FramesSent,
		c.FramesReceived,
		c.FrameErrors,
		c.ReadyMismatches,
		c.BlocksSent,
		c.BootstrapRuns,
		c.PhaseDuration,
	)
	return c
}

// FrameSent counts a verified transmission.
func (c *Collector) FrameSent(protocol string) {
	if c == nil {
		return
	}
	c.FramesSent.WithLabelValues(protocol).Inc()
}

// FrameReceived counts a valid received frame.
func (c *Collector) FrameReceived(protocol string) {
	if c == nil {
		return
	}
	c.FramesReceived.WithLabelValues(protocol).Inc()
}

// FrameError counts a failed frame operation.
func (c *Collector) FrameError(protocol, kind string) {
	if c == nil {
		return
	}
	c.FrameErrors.WithLabelValues(protocol, kind).Inc()
}

// ReadyMismatch counts a non-matching ready read.
func (c *Collector) ReadyMismatch() {
	if c == nil {
		return
	}
	c.ReadyMismatches.Inc()
}

// BlockSent counts a transferred bootstrap block.
func (c *Collector) BlockSent() {
	if c == nil {
		return
	}
	c.BlocksSent.Inc()
}

// BootstrapDone counts a finished bootstrap attempt.
func (c *Collector) BootstrapDone(err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.BootstrapRuns.WithLabelValues(result).Inc()
}

// ObservePhase records how long a bootstrap phase took.
func (c *Collector) ObservePhase(phase string, d time.Duration) {
	if c == nil {
		return
	}
	c.PhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

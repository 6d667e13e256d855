package pipeline

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"firestige.xyz/facerelay/internal/metrics"
)

// Metrics contains per-pipeline counters. Every update goes to both the
// local atomics (Stats) and the Prometheus collectors.
type Metrics struct {
	Name string

	Received     atomic.Uint64
	Decoded      atomic.Uint64
	DecodeErrors atomic.Uint64
	Remapped     atomic.Uint64
	RemapErrors  atomic.Uint64
	Reported     atomic.Uint64
	ReportErrors atomic.Uint64

	stages  map[string]*stageCounter
	latency prometheus.Observer
}

type stageCounter struct {
	local *atomic.Uint64
	prom  prometheus.Counter
}

// NewMetrics creates a new metrics instance.
func NewMetrics(name string) *Metrics {
	m := &Metrics{
		Name:    name,
		latency: metrics.FrameLatencySeconds.WithLabelValues(name),
	}
	m.stages = map[string]*stageCounter{
		metrics.StageReceived:    {&m.Received, nil},
		metrics.StageDecoded:     {&m.Decoded, nil},
		metrics.StageDecodeError: {&m.DecodeErrors, nil},
		metrics.StageRemapped:    {&m.Remapped, nil},
		metrics.StageRemapError:  {&m.RemapErrors, nil},
		metrics.StageReported:    {&m.Reported, nil},
		metrics.StageReportError: {&m.ReportErrors, nil},
	}
	for stage, c := range m.stages {
		c.prom = metrics.FramesTotal.WithLabelValues(name, stage)
	}
	return m
}

func (m *Metrics) addStage(stage string) {
	c := m.stages[stage]
	c.local.Add(1)
	c.prom.Inc()
}

func (m *Metrics) addReceived(capturer string, bytes int) {
	m.addStage(metrics.StageReceived)
	metrics.CaptureBytesTotal.WithLabelValues(m.Name, capturer).Add(float64(bytes))
}

func (m *Metrics) addReportError(reporter string) {
	m.addStage(metrics.StageReportError)
	metrics.ReporterErrorsTotal.WithLabelValues(m.Name, reporter).Inc()
}

func (m *Metrics) observeLatency(d time.Duration) {
	m.latency.Observe(d.Seconds())
}

func (m *Metrics) snapshot() Stats {
	return Stats{
		Received:     m.Received.Load(),
		Decoded:      m.Decoded.Load(),
		DecodeErrors: m.DecodeErrors.Load(),
		Remapped:     m.Remapped.Load(),
		RemapErrors:  m.RemapErrors.Load(),
		Reported:     m.Reported.Load(),
		ReportErrors: m.ReportErrors.Load(),
	}
}

// Stats represents pipeline statistics.
type Stats struct {
	Received     uint64
	Decoded      uint64
	DecodeErrors uint64
	Remapped     uint64
	RemapErrors  uint64
	Reported     uint64
	ReportErrors uint64
}

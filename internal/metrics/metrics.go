// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline stages used as the "stage" label.
const (
	StageReceived    = "received"
	StageDecoded     = "decoded"
	StageDecodeError = "decode_error"
	StageRemapped    = "remapped"
	StageRemapError  = "remap_error"
	StageReported    = "reported"
	StageReportError = "report_error"
)

var (
	// FramesTotal counts frames passing each pipeline stage.
	FramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facerelay_frames_total",
			Help: "Total number of LiveLink frames by pipeline stage",
		},
		[]string{"pipeline", "stage"},
	)

	// CaptureBytesTotal counts datagram bytes handed to the pipeline.
	CaptureBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facerelay_capture_bytes_total",
			Help: "Total number of datagram bytes received",
		},
		[]string{"pipeline", "capturer"},
	)

	// FrameLatencySeconds measures the time from receive to send.
	FrameLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "facerelay_frame_latency_seconds",
			Help:    "Latency from datagram receive to bundle send in seconds",
			Buckets: prometheus.ExponentialBuckets(0.000001, 2, 20), // 1µs to ~1s
		},
		[]string{"pipeline"},
	)

	// ReporterErrorsTotal counts reporter errors by reporter name.
	ReporterErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facerelay_reporter_errors_total",
			Help: "Total number of reporter send errors",
		},
		[]string{"pipeline", "reporter"},
	)

	// PipelineStatus tracks whether a pipeline loop is running.
	PipelineStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "facerelay_pipeline_status",
			Help: "Current status of pipelines (0=stopped, 1=running)",
		},
		[]string{"pipeline"},
	)
)

// PipelineStatusValue represents pipeline status as a numeric gauge value.
const (
	PipelineStatusStopped = 0
	PipelineStatusRunning = 1
)

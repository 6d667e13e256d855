// Package pipeline implements the relay loop: capture → decode → remap →
// report, one frame at a time on a single goroutine.
//
// The receive call is the loop's only suspension point. A frame that fails
// to decode or remap is dropped and counted; a failed send is logged and
// counted. Run returns nil when the capture source is exhausted and
// ctx.Err() when the context is cancelled. Each frame is reported as a
// single datagram, so cancellation never produces a partial bundle.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"firestige.xyz/facerelay/internal/core"
	"firestige.xyz/facerelay/internal/metrics"
	"firestige.xyz/facerelay/internal/remap"
	"firestige.xyz/facerelay/pkg/livelink"
	"firestige.xyz/facerelay/pkg/plugin"
)

// Pipeline relays frames from one capturer to one reporter.
type Pipeline struct {
	name     string
	capturer plugin.Capturer
	decoder  *livelink.Decoder
	remapper *remap.Remapper
	reporter plugin.Reporter
	metrics  *Metrics

	running atomic.Bool

	// Reused across frames; only touched by the Run goroutine.
	frame livelink.Frame
	out   core.FaceOutput
}

// Config contains pipeline configuration.
type Config struct {
	Name     string // metrics/log label, default "relay"
	Capturer plugin.Capturer
	Decoder  *livelink.Decoder // default: livelink.NewDecoder with default options
	Remapper *remap.Remapper   // default: remap.New with default options
	Reporter plugin.Reporter
}

// New creates a new pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Capturer == nil {
		return nil, fmt.Errorf("pipeline: capturer is required: %w", core.ErrConfigInvalid)
	}
	if cfg.Reporter == nil {
		return nil, fmt.Errorf("pipeline: reporter is required: %w", core.ErrConfigInvalid)
	}
	if cfg.Name == "" {
		cfg.Name = "relay"
	}
	if cfg.Decoder == nil {
		cfg.Decoder = livelink.NewDecoder(livelink.DecoderOptions{})
	}
	if cfg.Remapper == nil {
		cfg.Remapper = remap.New(remap.Options{})
	}

	return &Pipeline{
		name:     cfg.Name,
		capturer: cfg.Capturer,
		decoder:  cfg.Decoder,
		remapper: cfg.Remapper,
		reporter: cfg.Reporter,
		metrics:  NewMetrics(cfg.Name),
	}, nil
}

// Name returns the pipeline label.
func (p *Pipeline) Name() string { return p.name }

// Run drives the loop until the capturer is exhausted or ctx is done.
// The capturer and reporter must already be started.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return fmt.Errorf("pipeline %s: already running", p.name)
	}
	defer p.running.Store(false)

	slog.Info("pipeline starting",
		"pipeline", p.name,
		"capturer", p.capturer.Name(),
		"reporter", p.reporter.Name(),
	)
	metrics.PipelineStatus.WithLabelValues(p.name).Set(metrics.PipelineStatusRunning)
	defer metrics.PipelineStatus.WithLabelValues(p.name).Set(metrics.PipelineStatusStopped)
	defer p.flush()

	for {
		raw, err := p.capturer.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				slog.Info("pipeline finished, capture source exhausted", "pipeline", p.name, "stats", p.Stats())
				return nil
			case ctx.Err() != nil:
				slog.Info("pipeline stopping", "pipeline", p.name, "reason", ctx.Err(), "stats", p.Stats())
				return ctx.Err()
			default:
				return fmt.Errorf("pipeline %s: capture: %w", p.name, err)
			}
		}

		p.metrics.addReceived(p.capturer.Name(), len(raw.Data))
		if err := p.processFrame(ctx, raw); err != nil {
			slog.Debug("frame dropped", "pipeline", p.name, "source", raw.Source, "error", err)
		}
	}
}

// processFrame decodes, remaps and reports a single datagram.
func (p *Pipeline) processFrame(ctx context.Context, raw core.RawFrame) error {
	if err := p.decoder.DecodeInto(raw.Data, &p.frame); err != nil {
		p.metrics.addStage(metrics.StageDecodeError)
		return fmt.Errorf("decode: %w", err)
	}
	p.metrics.addStage(metrics.StageDecoded)

	if err := p.remapper.Remap(&p.frame, &p.out); err != nil {
		p.metrics.addStage(metrics.StageRemapError)
		return fmt.Errorf("remap: %w", err)
	}
	p.metrics.addStage(metrics.StageRemapped)

	if err := p.reporter.Report(ctx, &p.out); err != nil {
		p.metrics.addReportError(p.reporter.Name())
		slog.Warn("reporter failed", "pipeline", p.name, "reporter", p.reporter.Name(), "error", err)
		return fmt.Errorf("report: %w", err)
	}
	p.metrics.addStage(metrics.StageReported)

	if !raw.Timestamp.IsZero() {
		p.metrics.observeLatency(time.Since(raw.Timestamp))
	}
	return nil
}

func (p *Pipeline) flush() {
	if err := p.reporter.Flush(context.Background()); err != nil {
		slog.Error("reporter flush failed", "pipeline", p.name, "error", err)
	}
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Stats {
	return p.metrics.snapshot()
}

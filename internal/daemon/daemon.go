// Package daemon implements the relay process lifecycle.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"firestige.xyz/facerelay/internal/config"
	logpkg "firestige.xyz/facerelay/internal/log"
	"firestige.xyz/facerelay/internal/metrics"
	"firestige.xyz/facerelay/internal/pipeline"
	"firestige.xyz/facerelay/internal/remap"
	"firestige.xyz/facerelay/pkg/livelink"
	"firestige.xyz/facerelay/pkg/plugin"
	"firestige.xyz/facerelay/plugins/capture/udp"
	"firestige.xyz/facerelay/plugins/reporter/osc"
)

// stopTimeout bounds how long Stop waits for the pipeline goroutine.
const stopTimeout = 5 * time.Second

// Options configures a Daemon beyond the global configuration.
type Options struct {
	// ConfigPath and Flags are kept for Reload.
	ConfigPath string
	Flags      *pflag.FlagSet

	// Name labels the pipeline in logs and metrics. Default: "relay".
	Name string

	// Capturer replaces the UDP listener built from the livelink section.
	Capturer plugin.Capturer
	// Reporter replaces the OSC sender built from the osc section.
	Reporter plugin.Reporter
}

// Daemon manages the relay process lifecycle.
type Daemon struct {
	// Configuration
	config     *config.GlobalConfig
	configPath string
	flags      *pflag.FlagSet
	name       string

	// Core components
	capturer      plugin.Capturer
	reporter      plugin.Reporter
	pipeline      *pipeline.Pipeline
	metricsServer *metrics.Server // nil if metrics disabled

	// Lifecycle management
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownChan chan struct{}
	sigChan      chan os.Signal
	sigReady     chan struct{} // closed once Run handles signals
	pipelineDone chan struct{} // closed when the pipeline goroutine exits
	pipelineErr  error         // valid once pipelineDone is closed
	stopOnce     sync.Once
}

// New creates a new Daemon from a loaded configuration.
func New(cfg *config.GlobalConfig, opts Options) *Daemon {
	d := &Daemon{
		config:       cfg,
		configPath:   opts.ConfigPath,
		flags:        opts.Flags,
		name:         opts.Name,
		capturer:     opts.Capturer,
		reporter:     opts.Reporter,
		shutdownChan: make(chan struct{}, 1),
		pipelineDone: make(chan struct{}),
		sigReady:     make(chan struct{}),
	}
	if d.name == "" {
		d.name = "relay"
	}

	d.ctx, d.cancel = context.WithCancel(context.Background())
	return d
}

// Start initializes all components and launches the pipeline. A failure to
// bind the inbound socket or open the outbound one is fatal; whatever was
// started before it is torn down again.
func (d *Daemon) Start() error {
	// 1. Initialize logging system
	if err := d.initLogging(); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	slog.Info("starting facerelay",
		"pipeline", d.name,
		"config", d.configPath,
		"osc", d.config.OSC.Host+":"+strconv.Itoa(d.config.OSC.Port),
	)

	// 2. Write PID file
	if err := d.writePIDFile(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	// 3. Start metrics server
	if err := d.startMetrics(); err != nil {
		d.cleanup()
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	// 4. Build and start the reporter before the capturer so no frame is
	// received without a destination.
	if d.reporter == nil {
		d.reporter = osc.NewReporter(osc.Config{
			Host: d.config.OSC.Host,
			Port: d.config.OSC.Port,
		})
	}
	if err := d.reporter.Start(d.ctx); err != nil {
		d.cleanup()
		return fmt.Errorf("failed to start reporter %s: %w", d.reporter.Name(), err)
	}

	// 5. Build and start the capturer
	if d.capturer == nil {
		ll := d.config.LiveLink
		d.capturer = udp.New(udp.Config{
			Listen:       ll.Listen,
			Port:         ll.Port,
			RecvBuffer:   ll.RecvBuffer,
			PollInterval: ll.PollDuration(),
			BufferSize:   ll.BufferSize,
		})
	}
	if err := d.capturer.Start(d.ctx); err != nil {
		d.stopReporter()
		d.cleanup()
		return fmt.Errorf("failed to start capturer %s: %w", d.capturer.Name(), err)
	}

	// 6. Assemble the pipeline
	p, err := pipeline.New(pipeline.Config{
		Name:     d.name,
		Capturer: d.capturer,
		Decoder: livelink.NewDecoder(livelink.DecoderOptions{
			Versions:      d.config.LiveLink.Versions,
			MaxNameLength: d.config.LiveLink.MaxNameLength,
		}),
		Remapper: remap.New(remap.Options{
			Missing: d.config.Remap.MissingPolicy(),
			Clamp:   d.config.Remap.ClampWeights,
		}),
		Reporter: d.reporter,
	})
	if err != nil {
		d.stopCapturer()
		d.stopReporter()
		d.cleanup()
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	d.pipeline = p

	go func() {
		d.pipelineErr = pipelineResult(p.Run(d.ctx))
		close(d.pipelineDone)
	}()

	slog.Info("facerelay started", "listen", d.ListenAddr())
	return nil
}

// Stop performs graceful shutdown of all components. It is safe to call
// more than once.
func (d *Daemon) Stop() {
	d.stopOnce.Do(func() {
		slog.Info("initiating graceful shutdown")

		// 1. Cancel context so the pipeline leaves its receive call
		d.cancel()

		// 2. Wait for the pipeline goroutine
		if d.pipeline != nil {
			select {
			case <-d.pipelineDone:
			case <-time.After(stopTimeout):
				slog.Error("pipeline did not stop in time", "pipeline", d.name)
			}
			slog.Info("pipeline stopped", "pipeline", d.name, "stats", d.pipeline.Stats())
		}

		// 3. Close the inbound socket, then the outbound one
		d.stopCapturer()
		d.stopReporter()

		// 4. Metrics, signals, PID file
		d.cleanup()

		slog.Info("facerelay stopped")

		// 5. Flush logs
		if err := logpkg.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
		}
	})
}

// Run blocks until shutdown is triggered and returns the pipeline's error,
// if any. Shutdown can be triggered by:
//  1. OS signals (SIGTERM, SIGINT)
//  2. TriggerShutdown
//  3. The capture source running out (pcap replay)
//
// SIGHUP reloads the configuration.
func (d *Daemon) Run() error {
	// Setup signal handling
	d.sigChan = make(chan os.Signal, 1)
	signal.Notify(d.sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	close(d.sigReady)

	slog.Info("facerelay running, waiting for signals")

	for {
		select {
		case sig := <-d.sigChan:
			switch sig {
			case syscall.SIGTERM, syscall.SIGINT:
				slog.Info("received shutdown signal", "signal", sig)
				d.Stop()
				return d.result()

			case syscall.SIGHUP:
				slog.Info("received reload signal")
				if err := d.Reload(); err != nil {
					slog.Error("failed to reload config", "error", err)
				}
			}

		case <-d.shutdownChan:
			slog.Info("shutdown triggered")
			d.Stop()
			return d.result()

		case <-d.pipelineDone:
			// The pipeline ended on its own: replay finished or capture failed.
			d.Stop()
			return d.result()
		}
	}
}

// Reload reloads the configuration.
// Hot-reloadable: log level/format/outputs.
// Cold (requires restart): inbound socket, OSC destination, remapping, metrics.
func (d *Daemon) Reload() error {
	slog.Info("reloading configuration", "path", d.configPath)

	newConfig, err := config.Load(d.configPath, d.flags)
	if err != nil {
		return fmt.Errorf("failed to load new config: %w", err)
	}

	hotReloaded := []string{}
	requiresRestart := changedColdSections(d.config, newConfig)

	oldLog := d.config.Log
	if err := logpkg.Init(newConfig.Log); err != nil {
		slog.Error("failed to reinitialize logging", "error", err)
		// Non-fatal: old logging continues
	} else {
		if newConfig.Log != oldLog {
			hotReloaded = append(hotReloaded, "log")
		}
		d.config.Log = newConfig.Log
	}

	slog.Info("configuration reloaded",
		"hot_reloaded", hotReloaded,
		"requires_restart", requiresRestart,
	)
	return nil
}

// changedColdSections lists the sections that differ and only apply after a
// restart.
func changedColdSections(old, cur *config.GlobalConfig) []string {
	changed := []string{}
	if old.LiveLink.Listen != cur.LiveLink.Listen || old.LiveLink.Port != cur.LiveLink.Port {
		changed = append(changed, "livelink.listen")
	}
	if old.OSC != cur.OSC {
		changed = append(changed, "osc")
	}
	if old.Remap != cur.Remap {
		changed = append(changed, "remap")
	}
	if old.Metrics != cur.Metrics {
		changed = append(changed, "metrics")
	}
	return changed
}

// TriggerShutdown triggers graceful shutdown from an external caller.
func (d *Daemon) TriggerShutdown() {
	select {
	case d.shutdownChan <- struct{}{}:
	default:
		// Already pending
	}
}

// ListenAddr returns the bound inbound address, or nil when the capturer
// is not a socket or has not been started.
func (d *Daemon) ListenAddr() net.Addr {
	if la, ok := d.capturer.(interface{ LocalAddr() net.Addr }); ok {
		return la.LocalAddr()
	}
	return nil
}

// Stats returns pipeline statistics. Zero before Start.
func (d *Daemon) Stats() pipeline.Stats {
	if d.pipeline == nil {
		return pipeline.Stats{}
	}
	return d.pipeline.Stats()
}

// result returns the pipeline's error once it has exited.
func (d *Daemon) result() error {
	select {
	case <-d.pipelineDone:
		return d.pipelineErr
	default:
		return nil
	}
}

// pipelineResult maps the pipeline's return value to the daemon's: a
// cancelled context is a normal shutdown.
func pipelineResult(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// initLogging initializes the logging system from config.
func (d *Daemon) initLogging() error {
	if err := logpkg.Init(d.config.Log); err != nil {
		return err
	}

	slog.Debug("logging initialized",
		"level", d.config.Log.Level,
		"format", d.config.Log.Format,
	)
	return nil
}

// startMetrics starts the metrics HTTP server if enabled.
func (d *Daemon) startMetrics() error {
	if !d.config.Metrics.Enabled {
		slog.Debug("metrics server disabled")
		return nil
	}

	d.metricsServer = metrics.NewServer(d.config.Metrics.Listen, d.config.Metrics.Path)
	if err := d.metricsServer.Start(d.ctx); err != nil {
		d.metricsServer = nil
		return err
	}

	slog.Info("metrics server started",
		"addr", d.metricsServer.Addr(),
		"path", d.config.Metrics.Path,
	)
	return nil
}

func (d *Daemon) stopCapturer() {
	if d.capturer == nil {
		return
	}
	if err := d.capturer.Stop(context.Background()); err != nil {
		slog.Error("error stopping capturer", "capturer", d.capturer.Name(), "error", err)
	}
}

func (d *Daemon) stopReporter() {
	if d.reporter == nil {
		return
	}
	if err := d.reporter.Stop(context.Background()); err != nil {
		slog.Error("error stopping reporter", "reporter", d.reporter.Name(), "error", err)
	}
}

// cleanup stops the metrics server and signal handling and removes the PID
// file.
func (d *Daemon) cleanup() {
	if d.metricsServer != nil {
		slog.Info("stopping metrics server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.metricsServer.Stop(shutdownCtx); err != nil {
			slog.Error("error stopping metrics server", "error", err)
		}
		d.metricsServer = nil
	}

	if d.sigChan != nil {
		signal.Stop(d.sigChan)
	}

	if err := d.removePIDFile(); err != nil {
		slog.Error("error removing PID file", "error", err)
	}
}

// writePIDFile writes the current process ID to the PID file.
func (d *Daemon) writePIDFile() error {
	pidFile := d.config.Control.PIDFile
	if pidFile == "" {
		return nil
	}

	pid := os.Getpid()
	data := []byte(strconv.Itoa(pid) + "\n")

	if err := os.WriteFile(pidFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write PID file %s: %w", pidFile, err)
	}

	slog.Debug("PID file written", "path", pidFile, "pid", pid)
	return nil
}

// removePIDFile removes the PID file.
func (d *Daemon) removePIDFile() error {
	pidFile := d.config.Control.PIDFile
	if pidFile == "" {
		return nil
	}

	if err := os.Remove(pidFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file %s: %w", pidFile, err)
	}

	slog.Debug("PID file removed", "path", pidFile)
	return nil
}

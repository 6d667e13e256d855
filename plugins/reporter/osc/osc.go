package osc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"firestige.xyz/facerelay/internal/core"
	"firestige.xyz/facerelay/pkg/plugin"
)

// Config holds OSC reporter configuration.
type Config struct {
	// Host is the receiving application's address. Default: 127.0.0.1.
	Host string
	// Port is the receiving application's UDP port. Default: 9000.
	Port int
	// Encode is applied to every bundle.
	Encode EncodeOptions
}

// Addr returns host:port.
func (c Config) Addr() string {
	host := c.Host
	if host == "" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, strconv.Itoa(c.Port))
}

// Reporter sends face bundles and ad hoc messages over UDP.
// One datagram is written per bundle; a short write is never retried.
type Reporter struct {
	config Config

	mu   sync.RWMutex
	conn *net.UDPConn

	sentCount  atomic.Uint64
	sentBytes  atomic.Uint64
	errorCount atomic.Uint64
}

// Stats is a snapshot of reporter counters.
type Stats struct {
	Sent   uint64
	Bytes  uint64
	Errors uint64
}

var (
	_ plugin.Reporter      = (*Reporter)(nil)
	_ plugin.MessageSender = (*Reporter)(nil)
)

// NewReporter creates an OSC reporter. Start must be called before sending.
func NewReporter(cfg Config) *Reporter {
	return &Reporter{config: cfg}
}

// Name returns the plugin identifier.
func (r *Reporter) Name() string { return "osc" }

// Start dials the configured destination.
func (r *Reporter) Start(_ context.Context) error {
	if r.config.Port <= 0 || r.config.Port > 65535 {
		return fmt.Errorf("osc reporter: invalid port %d: %w", r.config.Port, core.ErrConfigInvalid)
	}
	addr, err := net.ResolveUDPAddr("udp", r.config.Addr())
	if err != nil {
		return fmt.Errorf("osc reporter: resolve %q: %w", r.config.Addr(), err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return fmt.Errorf("osc reporter: dial %q: %w", r.config.Addr(), err)
	}

	r.mu.Lock()
	if r.conn != nil {
		_ = r.conn.Close()
	}
	r.conn = conn
	r.mu.Unlock()

	slog.Info("osc reporter started", "remote", addr.String(), "local", conn.LocalAddr().String())
	return nil
}

// Stop closes the UDP connection and logs final statistics.
func (r *Reporter) Stop(_ context.Context) error {
	r.mu.Lock()
	if r.conn != nil {
		_ = r.conn.Close()
		r.conn = nil
	}
	r.mu.Unlock()

	slog.Info("osc reporter stopped",
		"sent", r.sentCount.Load(),
		"bytes", r.sentBytes.Load(),
		"errors", r.errorCount.Load(),
	)
	return nil
}

// Report encodes out as one bundle and sends it.
func (r *Reporter) Report(ctx context.Context, out *core.FaceOutput) error {
	data, err := Encode(out, r.config.Encode)
	if err != nil {
		r.errorCount.Add(1)
		return fmt.Errorf("osc reporter: encode: %w", err)
	}
	return r.Send(ctx, data)
}

// SendMessage sends a single OSC message outside of the face bundle.
func (r *Reporter) SendMessage(ctx context.Context, addr string, args ...any) error {
	data, err := EncodeMessage(addr, args...)
	if err != nil {
		r.errorCount.Add(1)
		return fmt.Errorf("osc reporter: %w", err)
	}
	return r.Send(ctx, data)
}

// Send writes an already encoded OSC packet as one datagram.
func (r *Reporter) Send(_ context.Context, data []byte) error {
	r.mu.RLock()
	conn := r.conn
	r.mu.RUnlock()
	if conn == nil {
		r.errorCount.Add(1)
		return fmt.Errorf("osc reporter: %w", core.ErrNotStarted)
	}

	n, err := conn.Write(data)
	if err != nil {
		r.errorCount.Add(1)
		return fmt.Errorf("osc reporter: send to %s: %w: %w", conn.RemoteAddr(), core.ErrSendFailed, err)
	}
	if n != len(data) {
		r.errorCount.Add(1)
		return fmt.Errorf("osc reporter: short write to %s (%d of %d bytes): %w",
			conn.RemoteAddr(), n, len(data), core.ErrSendFailed)
	}

	r.sentCount.Add(1)
	r.sentBytes.Add(uint64(n))
	return nil
}

// Flush is a no-op; every bundle is written immediately.
func (r *Reporter) Flush(_ context.Context) error { return nil }

// LocalAddr returns the local end of the UDP connection, or nil before Start.
func (r *Reporter) LocalAddr() net.Addr {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.conn == nil {
		return nil
	}
	return r.conn.LocalAddr()
}

// Stats returns a snapshot of the reporter counters.
func (r *Reporter) Stats() Stats {
	return Stats{
		Sent:   r.sentCount.Load(),
		Bytes:  r.sentBytes.Load(),
		Errors: r.errorCount.Load(),
	}
}

// Package udp implements the live LiveLink capturer: one UDP socket, one
// datagram per Next call.
//
// The socket is read with a short deadline (PollInterval, default 100ms) so
// that a cancelled context is noticed within one poll interval even when no
// traffic arrives. The receive buffer is reused across calls.
package udp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"firestige.xyz/facerelay/internal/core"
	"firestige.xyz/facerelay/pkg/plugin"
)

// Defaults.
const (
	DefaultPort         = 11111
	DefaultPollInterval = 100 * time.Millisecond
	DefaultBufferSize   = 2048
)

// Config holds UDP capturer configuration.
type Config struct {
	// Listen is the bind address. Default: 0.0.0.0.
	Listen string
	// Port is the bind port. Zero picks an ephemeral port.
	Port int
	// RecvBuffer sets SO_RCVBUF when > 0.
	RecvBuffer int
	// PollInterval bounds how long a read blocks before the context is
	// checked again.
	PollInterval time.Duration
	// BufferSize is the largest datagram accepted without truncation.
	BufferSize int
}

// Addr returns listen:port.
func (c Config) Addr() string {
	host := c.Listen
	if host == "" {
		host = "0.0.0.0"
	}
	return net.JoinHostPort(host, strconv.Itoa(c.Port))
}

// Capturer receives LiveLink datagrams from a UDP socket.
type Capturer struct {
	config  Config
	factory SocketFactory

	mu   sync.Mutex
	sock Socket
	buf  []byte

	received  atomic.Uint64
	truncated atomic.Uint64
	bytes     atomic.Uint64
}

var _ plugin.Capturer = (*Capturer)(nil)

// Option customises a Capturer.
type Option func(*Capturer)

// WithSocketFactory replaces the socket factory (tests).
func WithSocketFactory(f SocketFactory) Option {
	return func(c *Capturer) { c.factory = f }
}

// New creates a UDP capturer. Start must be called before Next.
func New(cfg Config, opts ...Option) *Capturer {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	c := &Capturer{
		config:  cfg,
		factory: RealSocketFactory{},
		buf:     make([]byte, cfg.BufferSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the plugin identifier.
func (c *Capturer) Name() string { return "udp" }

// Start binds the socket. A bind failure is returned to the caller.
func (c *Capturer) Start(_ context.Context) error {
	laddr, err := net.ResolveUDPAddr("udp", c.config.Addr())
	if err != nil {
		return fmt.Errorf("udp capturer: resolve %q: %w", c.config.Addr(), err)
	}
	sock, err := c.factory.ListenUDP("udp", laddr)
	if err != nil {
		return fmt.Errorf("udp capturer: listen %q: %w", c.config.Addr(), err)
	}

	if c.config.RecvBuffer > 0 {
		if err := sock.SetReadBuffer(c.config.RecvBuffer); err != nil {
			slog.Warn("udp capturer: failed to set receive buffer",
				"bytes", c.config.RecvBuffer, "error", err)
		}
	}

	c.mu.Lock()
	c.sock = sock
	c.mu.Unlock()

	slog.Info("udp capturer started",
		"listen", sock.LocalAddr().String(),
		"recv_buffer", c.config.RecvBuffer,
		"poll_interval", c.config.PollInterval,
	)
	return nil
}

// Stop closes the socket. A Next blocked in a read returns io.EOF.
func (c *Capturer) Stop(_ context.Context) error {
	c.mu.Lock()
	sock := c.sock
	c.sock = nil
	c.mu.Unlock()

	if sock == nil {
		return nil
	}
	err := sock.Close()
	slog.Info("udp capturer stopped",
		"received", c.received.Load(),
		"truncated", c.truncated.Load(),
	)
	return err
}

// Next blocks until a datagram arrives or ctx is done.
func (c *Capturer) Next(ctx context.Context) (core.RawFrame, error) {
	c.mu.Lock()
	sock := c.sock
	c.mu.Unlock()
	if sock == nil {
		return core.RawFrame{}, fmt.Errorf("udp capturer: %w", core.ErrNotStarted)
	}

	for {
		if err := ctx.Err(); err != nil {
			return core.RawFrame{}, err
		}

		_ = sock.SetReadDeadline(time.Now().Add(c.config.PollInterval))
		n, addr, err := sock.ReadFromUDPAddrPort(c.buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return core.RawFrame{}, ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return core.RawFrame{}, io.EOF
			}
			slog.Warn("udp capturer: read error", "error", err)
			continue
		}

		c.received.Add(1)
		c.bytes.Add(uint64(n))
		if n == len(c.buf) {
			// Datagram may have been cut at the buffer boundary.
			c.truncated.Add(1)
			slog.Debug("udp capturer: dropping oversized datagram", "size", n, "source", addr)
			continue
		}

		return core.RawFrame{
			Data:      c.buf[:n],
			Timestamp: time.Now(),
			Source:    netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port()),
		}, nil
	}
}

// LocalAddr returns the bound address, or nil when not started.
func (c *Capturer) LocalAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sock == nil {
		return nil
	}
	return c.sock.LocalAddr()
}

// Stats returns capture statistics.
func (c *Capturer) Stats() plugin.CaptureStats {
	return plugin.CaptureStats{
		PacketsReceived: c.received.Load(),
		PacketsDropped:  c.truncated.Load(),
		BytesReceived:   c.bytes.Load(),
	}
}

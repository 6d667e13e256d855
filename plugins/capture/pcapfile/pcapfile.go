// Package pcapfile replays LiveLink datagrams from a pcap or pcapng capture.
//
// Frames are read with the pure-Go gopacket/pcapgo readers, so no libpcap is
// needed. For Ethernet captures a BPF prefilter (UDP destination port)
// discards foreign traffic before any layer decoding happens. With Realtime
// set, datagrams are released on the original capture schedule, scaled by
// Speed.
package pcapfile

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/facerelay/internal/core"
	"firestige.xyz/facerelay/pkg/plugin"
)

// pcapngMagic is the block type of a pcapng Section Header Block.
const pcapngMagic = 0x0A0D0D0A

// Config holds replay configuration.
type Config struct {
	// Path is the capture file.
	Path string
	// Port keeps only UDP datagrams sent to this port. Zero keeps all UDP.
	Port uint16
	// Realtime paces datagrams using their capture timestamps.
	Realtime bool
	// Speed scales realtime pacing (2.0 replays twice as fast). Default: 1.
	Speed float64
	// Progress, when set, receives every byte read from the file.
	Progress io.Writer
}

// packetReader is implemented by both pcapgo.Reader and pcapgo.NgReader.
type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Capturer replays a capture file.
type Capturer struct {
	config Config

	mu       sync.Mutex
	file     *os.File
	reader   packetReader
	linkType layers.LinkType
	filter   *portFilter

	// pacing state
	firstCapture time.Time
	wallStart    time.Time

	received atomic.Uint64
	dropped  atomic.Uint64
	bytes    atomic.Uint64
}

var _ plugin.Capturer = (*Capturer)(nil)

// New creates a replay capturer. Start opens the file.
func New(cfg Config) *Capturer {
	if cfg.Speed <= 0 {
		cfg.Speed = 1
	}
	return &Capturer{config: cfg}
}

// Name returns the plugin identifier.
func (c *Capturer) Name() string { return "pcap" }

// Start opens the capture file and reads its header.
func (c *Capturer) Start(_ context.Context) error {
	f, err := os.Open(c.config.Path)
	if err != nil {
		return fmt.Errorf("pcap capturer: open %s: %w", c.config.Path, err)
	}

	var src io.Reader = f
	if c.config.Progress != nil {
		src = io.TeeReader(f, c.config.Progress)
	}
	reader, err := openReader(bufio.NewReader(src))
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("pcap capturer: %s: %w", c.config.Path, err)
	}

	var filter *portFilter
	if c.config.Port != 0 && reader.LinkType() == layers.LinkTypeEthernet {
		if filter, err = newPortFilter(c.config.Port); err != nil {
			_ = f.Close()
			return fmt.Errorf("pcap capturer: %w", err)
		}
	}

	c.mu.Lock()
	c.file = f
	c.reader = reader
	c.linkType = reader.LinkType()
	c.filter = filter
	c.firstCapture = time.Time{}
	c.mu.Unlock()

	slog.Info("pcap capturer started",
		"file", c.config.Path,
		"link_type", reader.LinkType().String(),
		"port", c.config.Port,
		"prefilter", filter != nil,
		"realtime", c.config.Realtime,
		"speed", c.config.Speed,
	)
	return nil
}

// openReader picks the pcap or pcapng reader from the file magic.
func openReader(r *bufio.Reader) (packetReader, error) {
	magic, err := r.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("read file header: %w", err)
	}
	if binary.LittleEndian.Uint32(magic) == pcapngMagic {
		ng, err := pcapgo.NewNgReader(r, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, err
		}
		return ng, nil
	}
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, err
	}
	return pr, nil
}

// Stop closes the file.
func (c *Capturer) Stop(_ context.Context) error {
	c.mu.Lock()
	f := c.file
	c.file = nil
	c.reader = nil
	c.mu.Unlock()

	if f == nil {
		return nil
	}
	slog.Info("pcap capturer stopped",
		"received", c.received.Load(),
		"dropped", c.dropped.Load(),
	)
	return f.Close()
}

// Next returns the next matching UDP payload, io.EOF at the end of the file.
func (c *Capturer) Next(ctx context.Context) (core.RawFrame, error) {
	c.mu.Lock()
	reader := c.reader
	c.mu.Unlock()
	if reader == nil {
		return core.RawFrame{}, fmt.Errorf("pcap capturer: %w", core.ErrNotStarted)
	}

	for {
		if err := ctx.Err(); err != nil {
			return core.RawFrame{}, err
		}

		data, ci, err := reader.ReadPacketData()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return core.RawFrame{}, io.EOF
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				slog.Warn("pcap capturer: capture file truncated", "file", c.config.Path)
				return core.RawFrame{}, io.EOF
			}
			return core.RawFrame{}, fmt.Errorf("pcap capturer: read packet: %w", err)
		}

		if c.filter != nil && !c.filter.match(data) {
			c.dropped.Add(1)
			continue
		}

		payload, src, ok := c.extractUDP(data)
		if !ok {
			c.dropped.Add(1)
			continue
		}

		if c.config.Realtime {
			if err := c.pace(ctx, ci.Timestamp); err != nil {
				return core.RawFrame{}, err
			}
		}

		c.received.Add(1)
		c.bytes.Add(uint64(len(payload)))
		return core.RawFrame{Data: payload, Timestamp: ci.Timestamp, Source: src}, nil
	}
}

// extractUDP decodes data and returns the UDP payload and sender.
func (c *Capturer) extractUDP(data []byte) ([]byte, netip.AddrPort, bool) {
	packet := gopacket.NewPacket(data, c.linkType, gopacket.DecodeOptions{Lazy: true, NoCopy: true})

	udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
	if !ok || len(udp.Payload) == 0 {
		return nil, netip.AddrPort{}, false
	}
	if c.config.Port != 0 && uint16(udp.DstPort) != c.config.Port {
		return nil, netip.AddrPort{}, false
	}

	var srcIP netip.Addr
	switch ip := packet.NetworkLayer().(type) {
	case *layers.IPv4:
		srcIP, _ = netip.AddrFromSlice(ip.SrcIP)
	case *layers.IPv6:
		srcIP, _ = netip.AddrFromSlice(ip.SrcIP)
	}
	return udp.Payload, netip.AddrPortFrom(srcIP.Unmap(), uint16(udp.SrcPort)), true
}

// pace sleeps until ts is due relative to the first replayed datagram.
func (c *Capturer) pace(ctx context.Context, ts time.Time) error {
	if c.firstCapture.IsZero() {
		c.firstCapture = ts
		c.wallStart = time.Now()
		return nil
	}

	offset := time.Duration(float64(ts.Sub(c.firstCapture)) / c.config.Speed)
	wait := time.Until(c.wallStart.Add(offset))
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Stats returns replay statistics.
func (c *Capturer) Stats() plugin.CaptureStats {
	return plugin.CaptureStats{
		PacketsReceived: c.received.Load(),
		PacketsDropped:  c.dropped.Load(),
		BytesReceived:   c.bytes.Load(),
	}
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/hypebeast/go-osc/osc"
	"github.com/spf13/cobra"

	oscreporter "firestige.xyz/facerelay/plugins/reporter/osc"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Print OSC messages received on the destination port",
	Long: `Listen where the relay sends and print what arrives.

By default every message matching the --filter address pattern is printed.
With --summary each relay bundle is printed as one line: head and eye rotation
plus the strongest blendshape weights.

Examples:
  facerelay monitor
  facerelay monitor --filter /HR
  facerelay monitor --summary --osc-port 9001`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		addr := net.JoinHostPort(cfg.OSC.Host, strconv.Itoa(cfg.OSC.Port))
		conn, err := net.ListenPacket("udp", addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "listening for OSC on %s\n", conn.LocalAddr())

		return runMonitor(cmd.Context(), conn, monitorFilter, monitorSummary, cmd.OutOrStdout())
	},
}

var (
	monitorFilter  string
	monitorSummary bool
)

func init() {
	fs := monitorCmd.Flags()
	addOSCFlags(fs)
	fs.StringVar(&monitorFilter, "filter", "*", "OSC address pattern to print")
	fs.BoolVar(&monitorSummary, "summary", false, "print one line per relay bundle")
}

// runMonitor serves conn until ctx is done, printing to out. It closes conn.
func runMonitor(ctx context.Context, conn net.PacketConn, filter string, summary bool, out io.Writer) error {
	if filter != "*" && !strings.HasPrefix(filter, "/") {
		conn.Close()
		return fmt.Errorf("invalid filter %q: must be * or start with '/'", filter)
	}

	server := &osc.Server{Dispatcher: &monitorDispatcher{
		out:     &lockedWriter{w: out},
		pattern: &osc.Message{Address: filter},
		summary: summary,
	}}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	err := server.Serve(conn)
	if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// monitorDispatcher prints received packets. Bundles are printed in message
// order, or as a single line in summary mode.
type monitorDispatcher struct {
	out     io.Writer
	pattern *osc.Message // Address holds the OSC address pattern
	summary bool
}

func (d *monitorDispatcher) Dispatch(packet osc.Packet) {
	switch p := packet.(type) {
	case *osc.Message:
		d.print(p)
	case *osc.Bundle:
		if d.summary {
			fmt.Fprintln(d.out, summarizeBundle(p))
			return
		}
		for _, m := range p.Messages {
			d.print(m)
		}
	}
}

func (d *monitorDispatcher) print(m *osc.Message) {
	if d.pattern.Match(m.Address) {
		fmt.Fprintf(d.out, "%s %v\n", m.Address, m.Arguments)
	}
}

// summarizeBundle renders rotations and the three strongest weights.
func summarizeBundle(b *osc.Bundle) string {
	var head, left, right []any
	type weight struct {
		index int32
		value float32
	}
	var top [3]weight

	for _, m := range b.Messages {
		switch m.Address {
		case oscreporter.AddrHead:
			head = m.Arguments
		case oscreporter.AddrLeftEye:
			left = m.Arguments
		case oscreporter.AddrRightEye:
			right = m.Arguments
		case oscreporter.AddrWeight:
			if len(m.Arguments) != 2 {
				continue
			}
			i, ok1 := m.Arguments[0].(int32)
			v, ok2 := m.Arguments[1].(float32)
			if !ok1 || !ok2 {
				continue
			}
			w := weight{i, v}
			for k := range top {
				if w.value > top[k].value {
					top[k], w = w, top[k]
				}
			}
		}
	}

	s := fmt.Sprintf("messages=%d head=%v eyeL=%v eyeR=%v top=", len(b.Messages), head, left, right)
	for k, w := range top {
		if w.value <= 0 {
			break
		}
		if k > 0 {
			s += ","
		}
		s += fmt.Sprintf("%d:%.2f", w.index, w.value)
	}
	return s
}

// lockedWriter serializes writes from concurrent dispatch goroutines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/facerelay/pkg/livelink"
)

var emitCmd = &cobra.Command{
	Use:   "emit",
	Short: "Send synthetic LiveLink Face frames",
	Long: `Send synthetic LiveLink Face frames to a relay, standing in for the iOS app.

By default the face is animated: the jaw opens and closes, the eyes blink and
the head turns slowly. --set pins a shape to a fixed value and may be repeated.

Examples:
  facerelay emit
  facerelay emit --frames 1 --animate=false --set BrowInnerUp=0.42 --set HeadPitch=0.1
  facerelay emit --host 192.168.1.20 --port 11111 --rate 30`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		opts := emitFlags
		opts.Set, err = parseShapeValues(emitSet)
		if err != nil {
			return err
		}

		addr := net.JoinHostPort(emitHost, strconv.Itoa(cfg.LiveLink.Port))
		conn, err := net.Dial("udp", addr)
		if err != nil {
			return fmt.Errorf("dial %s: %w", addr, err)
		}
		defer conn.Close()

		n, err := runEmit(cmd.Context(), conn, opts)
		fmt.Fprintf(cmd.OutOrStdout(), "sent %d frames to %s\n", n, addr)
		return err
	},
}

// emitOptions controls the synthetic source.
type emitOptions struct {
	Subject string
	Rate    float64 // frames per second
	Frames  int     // 0 = until cancelled
	Animate bool
	Set     map[livelink.FaceBlendShape]float32
}

var (
	emitFlags emitOptions
	emitHost  string
	emitSet   []string
)

func init() {
	fs := emitCmd.Flags()
	fs.StringVar(&emitHost, "host", "127.0.0.1", "relay host")
	fs.Int("port", 0, "relay LiveLink port (default 11111)")
	fs.StringVar(&emitFlags.Subject, "subject", "facerelay", "subject name")
	fs.Float64Var(&emitFlags.Rate, "rate", 60, "frames per second")
	fs.IntVar(&emitFlags.Frames, "frames", 0, "number of frames to send, 0 for no limit")
	fs.BoolVar(&emitFlags.Animate, "animate", true, "animate jaw, eyes and head")
	fs.StringArrayVar(&emitSet, "set", nil, "pin a shape, e.g. JawOpen=0.5 (repeatable)")
}

// parseShapeValues parses Shape=value pairs.
func parseShapeValues(pairs []string) (map[livelink.FaceBlendShape]float32, error) {
	set := make(map[livelink.FaceBlendShape]float32, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --set %q: want Shape=value", p)
		}
		shape, err := livelink.ParseShape(strings.TrimSpace(name))
		if err != nil {
			return nil, fmt.Errorf("invalid --set %q: %w", p, err)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid --set %q: %w", p, err)
		}
		set[shape] = float32(v)
	}
	return set, nil
}

// runEmit writes one encoded frame per tick to w and returns the number of
// frames written. Cancelling ctx ends an unlimited run without error.
func runEmit(ctx context.Context, w io.Writer, opts emitOptions) (int, error) {
	if opts.Rate <= 0 {
		return 0, fmt.Errorf("invalid rate %v: must be > 0", opts.Rate)
	}

	interval := time.Duration(float64(time.Second) / opts.Rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	f := livelink.NewFrame(livelink.NewDeviceID(), opts.Subject)
	f.FrameRate = livelink.FrameRate{Numerator: int32(math.Round(opts.Rate)), Denominator: 1}
	buf := make([]byte, 0, 512)

	sent := 0
	for opts.Frames == 0 || sent < opts.Frames {
		synthesize(f, sent, opts)

		var err error
		buf, err = f.AppendBinary(buf[:0])
		if err != nil {
			return sent, err
		}
		if _, err := w.Write(buf); err != nil {
			return sent, fmt.Errorf("send frame %d: %w", sent, err)
		}
		sent++

		if opts.Frames != 0 && sent == opts.Frames {
			break
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return sent, nil
			}
			return sent, ctx.Err()
		case <-ticker.C:
		}
	}
	return sent, nil
}

// synthesize fills f for frame n.
func synthesize(f *livelink.Frame, n int, opts emitOptions) {
	f.FrameNumber = int32(n)

	if opts.Animate {
		t := float64(n) / opts.Rate
		f.Set(livelink.JawOpen, float32(0.5+0.5*math.Sin(2*math.Pi*0.5*t)))

		// A 150ms blink every 4 seconds.
		blink := float32(0)
		if math.Mod(t, 4) < 0.15 {
			blink = 1
		}
		f.Set(livelink.EyeBlinkLeft, blink)
		f.Set(livelink.EyeBlinkRight, blink)

		f.Set(livelink.HeadYaw, float32(0.3*math.Sin(2*math.Pi*0.1*t)))
		f.Set(livelink.HeadPitch, float32(0.1*math.Sin(2*math.Pi*0.07*t)))
	}

	for shape, v := range opts.Set {
		f.Set(shape, v)
	}
}

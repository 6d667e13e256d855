// Package console implements a reporter that prints frames instead of
// sending them. Used for dry runs and debugging.
package console

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"firestige.xyz/facerelay/internal/core"
	"firestige.xyz/facerelay/pkg/plugin"
)

// Reporter writes one line per frame.
type Reporter struct {
	format string // "json" or "text"

	mu  sync.Mutex
	out io.Writer

	reportedCount atomic.Uint64
}

// Config represents console reporter configuration.
type Config struct {
	Format string    // "json" or "text", default "text"
	Out    io.Writer // default os.Stdout
}

// NewReporter creates a console reporter.
func NewReporter(cfg Config) (*Reporter, error) {
	format := strings.ToLower(cfg.Format)
	switch format {
	case "":
		format = "text"
	case "json", "text":
	default:
		return nil, fmt.Errorf("console reporter: invalid format %q, must be json or text: %w", cfg.Format, core.ErrConfigInvalid)
	}

	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	return &Reporter{format: format, out: out}, nil
}

// Name returns the plugin name.
func (r *Reporter) Name() string { return "console" }

// Start starts the reporter.
func (r *Reporter) Start(_ context.Context) error {
	slog.Info("console reporter started", "format", r.format)
	return nil
}

// Stop stops the reporter.
func (r *Reporter) Stop(_ context.Context) error {
	slog.Info("console reporter stopped", "total_reported", r.reportedCount.Load())
	return nil
}

// frameJSON is the JSON line layout. Rotations are in degrees.
type frameJSON struct {
	Frame       uint64       `json:"frame"`
	Blendshapes []jsonFloat  `json:"blendshapes"`
	Head        [3]jsonFloat `json:"head"`
	LeftEye     [2]jsonFloat `json:"left_eye"`
	RightEye    [2]jsonFloat `json:"right_eye"`
}

// jsonFloat encodes NaN and infinities as null.
type jsonFloat float32

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 32), nil
}

// Report prints out.
func (r *Reporter) Report(_ context.Context, out *core.FaceOutput) error {
	if out == nil {
		return core.ErrNilFrame
	}
	n := r.reportedCount.Add(1)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.format == "json" {
		return r.reportJSON(n, out)
	}
	return r.reportText(n, out)
}

func (r *Reporter) reportJSON(n uint64, out *core.FaceOutput) error {
	weights := make([]jsonFloat, len(out.Blendshapes))
	for i, w := range out.Blendshapes {
		weights[i] = jsonFloat(w)
	}
	data, err := json.Marshal(frameJSON{
		Frame:       n,
		Blendshapes: weights,
		Head:        [3]jsonFloat{jsonFloat(out.Head.Pitch), jsonFloat(out.Head.Yaw), jsonFloat(out.Head.Roll)},
		LeftEye:     [2]jsonFloat{jsonFloat(out.LeftEye.Pitch), jsonFloat(out.LeftEye.Yaw)},
		RightEye:    [2]jsonFloat{jsonFloat(out.RightEye.Pitch), jsonFloat(out.RightEye.Yaw)},
	})
	if err != nil {
		return fmt.Errorf("json marshal failed: %w", err)
	}
	data = append(data, '\n')
	_, err = r.out.Write(data)
	return err
}

// reportText prints rotations and every non-zero weight as index=value.
func (r *Reporter) reportText(n uint64, out *core.FaceOutput) error {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d head=%.2f/%.2f/%.2f eyeL=%.2f/%.2f eyeR=%.2f/%.2f",
		n,
		out.Head.Pitch, out.Head.Yaw, out.Head.Roll,
		out.LeftEye.Pitch, out.LeftEye.Yaw,
		out.RightEye.Pitch, out.RightEye.Yaw,
	)
	for i, w := range out.Blendshapes {
		if w != 0 {
			fmt.Fprintf(&b, " %d=%.2f", i, w)
		}
	}
	b.WriteByte('\n')
	_, err := io.WriteString(r.out, b.String())
	return err
}

// Flush is a no-op; every line is written as it is reported.
func (r *Reporter) Flush(_ context.Context) error {
	return nil
}

// Reported returns the number of frames printed.
func (r *Reporter) Reported() uint64 {
	return r.reportedCount.Load()
}

var _ plugin.Reporter = (*Reporter)(nil)

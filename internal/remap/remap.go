// Package remap turns a decoded LiveLink frame into the dense blendshape
// table and the degree rotations sent over OSC.
package remap

import (
	"fmt"
	"math"
	"strings"

	"firestige.xyz/facerelay/internal/core"
	"firestige.xyz/facerelay/pkg/livelink"
)

// MissingPolicy decides what happens when a frame lacks a parameter.
type MissingPolicy int

const (
	// MissingZero writes 0 for absent parameters.
	MissingZero MissingPolicy = iota
	// MissingReject fails the whole frame with core.ErrMissingParameter.
	MissingReject
)

// ParseMissingPolicy accepts "zero" or "reject".
func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch strings.ToLower(s) {
	case "", "zero":
		return MissingZero, nil
	case "reject":
		return MissingReject, nil
	default:
		return MissingZero, fmt.Errorf("remap: unknown missing parameter policy %q (must be zero/reject)", s)
	}
}

func (p MissingPolicy) String() string {
	if p == MissingReject {
		return "reject"
	}
	return "zero"
}

// orientation describes where one rotation's channels live in a frame.
type orientation struct {
	pitch, yaw, roll livelink.FaceBlendShape
}

var (
	headChannels     = orientation{livelink.HeadPitch, livelink.HeadYaw, livelink.HeadRoll}
	leftEyeChannels  = orientation{livelink.LeftEyePitch, livelink.LeftEyeYaw, livelink.LeftEyeRoll}
	rightEyeChannels = orientation{livelink.RightEyePitch, livelink.RightEyeYaw, livelink.RightEyeRoll}
)

// Options configures a Remapper.
type Options struct {
	IndexMap *IndexMap // Default: DefaultIndexMap()
	Missing  MissingPolicy
	Clamp    bool // Clamp blendshape weights to [0,1]
}

// Remapper is stateless apart from its immutable IndexMap.
type Remapper struct {
	indexMap *IndexMap
	missing  MissingPolicy
	clamp    bool
}

// New creates a Remapper.
func New(opts Options) *Remapper {
	m := opts.IndexMap
	if m == nil {
		m = DefaultIndexMap()
	}
	return &Remapper{
		indexMap: m,
		missing:  opts.Missing,
		clamp:    opts.Clamp,
	}
}

// Remap fills out from f. Every table index and every rotation field is
// written exactly once. Under MissingReject the frame is checked first and
// out is left untouched when a parameter is absent.
func (r *Remapper) Remap(f *livelink.Frame, out *core.FaceOutput) error {
	if f == nil {
		return core.ErrNilFrame
	}
	if r.missing == MissingReject {
		if err := r.checkComplete(f); err != nil {
			return err
		}
	}

	for i := 0; i < r.indexMap.Len(); i++ {
		v := f.Value(r.indexMap.Shape(i))
		if r.clamp {
			v = clamp01(v)
		}
		out.Blendshapes[i] = v
	}

	out.Head = rotation(f, headChannels)
	out.LeftEye = rotation(f, leftEyeChannels)
	out.RightEye = rotation(f, rightEyeChannels)
	return nil
}

func (r *Remapper) checkComplete(f *livelink.Frame) error {
	for i := 0; i < r.indexMap.Len(); i++ {
		s := r.indexMap.Shape(i)
		if _, ok := f.Get(s); !ok {
			return fmt.Errorf("remap: %v: %w", s, core.ErrMissingParameter)
		}
	}
	for _, o := range []orientation{headChannels, leftEyeChannels, rightEyeChannels} {
		for _, s := range []livelink.FaceBlendShape{o.pitch, o.yaw, o.roll} {
			if _, ok := f.Get(s); !ok {
				return fmt.Errorf("remap: %v: %w", s, core.ErrMissingParameter)
			}
		}
	}
	return nil
}

func rotation(f *livelink.Frame, o orientation) core.Rotation {
	return core.Rotation{
		Pitch: Degrees(-f.Value(o.pitch)),
		Yaw:   Degrees(f.Value(o.yaw)),
		Roll:  Degrees(f.Value(o.roll)),
	}
}

// Degrees converts radians to degrees.
func Degrees(rad float32) float32 {
	return float32(float64(rad) * 180 / math.Pi)
}

func clamp01(v float32) float32 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

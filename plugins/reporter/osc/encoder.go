// Package osc implements the OSC bundle encoder and UDP reporter.
//
// Every face frame becomes one OSC bundle of 55 messages, in this order:
//
//	Address  Count  Arguments
//	-------  -----  ---------
//	/W       52     int32 index, float32 weight   (index 0..51 ascending)
//	/HR      1      float32 pitch, yaw, roll      (head, degrees)
//	/ELR     1      float32 pitch, yaw            (left eye, degrees)
//	/ERR     1      float32 pitch, yaw            (right eye, degrees)
//
// The bundle time tag is fixed unless EncodeOptions.Timetag is set, so the
// same FaceOutput always encodes to the same bytes.
package osc

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hypebeast/go-osc/osc"

	"firestige.xyz/facerelay/internal/core"
)

// OSC addresses.
const (
	AddrWeight   = "/W"
	AddrHead     = "/HR"
	AddrLeftEye  = "/ELR"
	AddrRightEye = "/ERR"
)

// MessagesPerBundle is the number of messages in every face bundle.
const MessagesPerBundle = core.BlendshapeCount + 3

// Immediately is the OSC time tag asking receivers to dispatch on arrival.
const Immediately uint64 = 1

// EncodeOptions carries per-bundle knobs.
type EncodeOptions struct {
	// Timetag overrides the bundle time tag. Zero keeps the fixed
	// "dispatch on arrival" tag.
	Timetag time.Time
}

// BuildBundle assembles the face bundle without serializing it.
func BuildBundle(out *core.FaceOutput, opts EncodeOptions) (*osc.Bundle, error) {
	if out == nil {
		return nil, fmt.Errorf("osc: nil face output")
	}

	b := osc.NewBundle(opts.Timetag)
	if opts.Timetag.IsZero() {
		b.Timetag = *osc.NewTimetagFromTimetag(Immediately)
	}

	for i, w := range out.Blendshapes {
		if err := b.Append(osc.NewMessage(AddrWeight, int32(i), w)); err != nil {
			return nil, fmt.Errorf("osc: append %s %d: %w", AddrWeight, i, err)
		}
	}

	tail := []*osc.Message{
		osc.NewMessage(AddrHead, out.Head.Pitch, out.Head.Yaw, out.Head.Roll),
		osc.NewMessage(AddrLeftEye, out.LeftEye.Pitch, out.LeftEye.Yaw),
		osc.NewMessage(AddrRightEye, out.RightEye.Pitch, out.RightEye.Yaw),
	}
	for _, m := range tail {
		if err := b.Append(m); err != nil {
			return nil, fmt.Errorf("osc: append %s: %w", m.Address, err)
		}
	}
	return b, nil
}

// Encode serialises out into a single OSC bundle.
func Encode(out *core.FaceOutput, opts EncodeOptions) ([]byte, error) {
	b, err := BuildBundle(out, opts)
	if err != nil {
		return nil, err
	}
	data, err := b.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("osc: marshal bundle: %w", err)
	}
	return data, nil
}

// EncodeMessage serialises a single OSC message.
func EncodeMessage(addr string, args ...any) ([]byte, error) {
	if !strings.HasPrefix(addr, "/") {
		return nil, fmt.Errorf("osc: address %q must start with '/'", addr)
	}
	data, err := osc.NewMessage(addr, args...).MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("osc: marshal message %s: %w", addr, err)
	}
	return data, nil
}

// ParseArgs converts command-line words to typed OSC arguments.
// Integers become int32, other numbers float32, true/false bool, and
// everything else string. A word may be forced to a string with an
// "s:" prefix.
func ParseArgs(words []string) []any {
	args := make([]any, 0, len(words))
	for _, w := range words {
		args = append(args, parseArg(w))
	}
	return args
}

func parseArg(w string) any {
	if s, ok := strings.CutPrefix(w, "s:"); ok {
		return s
	}
	if i, err := strconv.ParseInt(w, 10, 32); err == nil {
		return int32(i)
	}
	if f, err := strconv.ParseFloat(w, 32); err == nil {
		return float32(f)
	}
	switch w {
	case "true":
		return true
	case "false":
		return false
	}
	return w
}

// Package livelink implements the LiveLink Face UDP frame format.
//
// Frame layout (one frame per datagram):
//
//	Offset   Size  Description
//	------   ----  -----------
//	0        4     Protocol version (little-endian uint32, currently 6)
//	4        37    Device id: "$" followed by a 36 character UUID
//	41       4     Subject name length N (big-endian int32)
//	45       N     Subject name (UTF-8)
//	45+N     4     Frame number (big-endian int32)
//	49+N     4     Sub-frame (big-endian float32)
//	53+N     4     Frame rate numerator (big-endian int32)
//	57+N     4     Frame rate denominator (big-endian int32)
//	61+N     1     Shape count C (uint8, 61 for current app builds)
//	62+N     4*C   Shape values (big-endian float32, FaceBlendShape order)
//
// Blendshape weights are in [0,1]; head and eye orientation are radians.
package livelink

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// FrameRate is a rational frames-per-second value.
type FrameRate struct {
	Numerator   int32
	Denominator int32
}

// FPS returns the rate as a float, or 0 when the denominator is zero.
func (r FrameRate) FPS() float64 {
	if r.Denominator == 0 {
		return 0
	}
	return float64(r.Numerator) / float64(r.Denominator)
}

// Frame is one decoded LiveLink snapshot.
//
// Count is the number of shapes the sender transmitted. Shapes at positions
// >= Count are absent: Get reports them as missing and Value returns 0.
type Frame struct {
	Version     uint32
	DeviceID    string
	SubjectName string
	FrameNumber int32
	SubFrame    float32
	FrameRate   FrameRate
	Count       int
	Values      [ShapeCount]float32
}

// NewFrame returns a complete, zero-valued frame for the current protocol version.
func NewFrame(deviceID, subject string) *Frame {
	return &Frame{
		Version:     ProtocolVersion,
		DeviceID:    deviceID,
		SubjectName: subject,
		FrameRate:   FrameRate{Numerator: 60, Denominator: 1},
		Count:       ShapeCount,
	}
}

// NewDeviceID returns a random device id in the form the iOS app uses.
func NewDeviceID() string {
	return "$" + uuid.NewString()
}

// Get returns the value of s and whether the frame carried it.
func (f *Frame) Get(s FaceBlendShape) (float32, bool) {
	if !s.Valid() || int(s) >= f.Count {
		return 0, false
	}
	return f.Values[s], true
}

// Value returns the value of s, or 0 when it is absent.
func (f *Frame) Value(s FaceBlendShape) float32 {
	v, _ := f.Get(s)
	return v
}

// Set stores v for s, growing Count when s lies past it.
func (f *Frame) Set(s FaceBlendShape, v float32) {
	if !s.Valid() {
		return
	}
	f.Values[s] = v
	if int(s) >= f.Count {
		f.Count = int(s) + 1
	}
}

// DeviceUUID parses the device id, ignoring the leading "$".
func (f *Frame) DeviceUUID() (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimPrefix(f.DeviceID, "$"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("livelink: device id %q: %w", f.DeviceID, err)
	}
	return id, nil
}

// Reset clears the frame for reuse.
func (f *Frame) Reset() {
	*f = Frame{}
}

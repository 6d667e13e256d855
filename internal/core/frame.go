// Package core defines core data structures with zero external dependencies.
package core

import (
	"net/netip"
	"time"
)

// BlendshapeCount is the size of the dense blendshape table consumed on the
// OSC side (indices 0..51).
const BlendshapeCount = 52

// RawFrame is one datagram handed over by a capturer.
// Data is only valid until the capturer's next Next call.
type RawFrame struct {
	Data      []byte
	Timestamp time.Time      // Receive time, or capture time for replayed frames
	Source    netip.AddrPort // Sender address; zero value when unknown
}

// BlendshapeTable is the dense index → weight table.
type BlendshapeTable [BlendshapeCount]float32

// Rotation holds pitch/yaw/roll in degrees.
type Rotation struct {
	Pitch float32
	Yaw   float32
	Roll  float32
}

// FaceOutput is the remapped result of one capture frame.
//
// A pipeline keeps a single FaceOutput and reuses it across frames. It is
// always fully overwritten by a successful remap before it is encoded, so a
// reader never observes a mix of two frames.
type FaceOutput struct {
	Blendshapes BlendshapeTable
	Head        Rotation
	LeftEye     Rotation
	RightEye    Rotation
}

// Reset zeroes every field.
func (o *FaceOutput) Reset() {
	*o = FaceOutput{}
}

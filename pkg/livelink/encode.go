package livelink

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrDeviceID is returned when a frame's device id does not fit the fixed field.
var ErrDeviceID = errors.New("livelink: device id must be 37 bytes")

// Encode serialises f into a new datagram.
func Encode(f *Frame) ([]byte, error) {
	return f.MarshalBinary()
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (f *Frame) MarshalBinary() ([]byte, error) {
	return f.AppendBinary(make([]byte, 0, headerLen+len(f.SubjectName)+frameTimeLen+4*f.Count))
}

// AppendBinary appends the wire form of f to b.
func (f *Frame) AppendBinary(b []byte) ([]byte, error) {
	if len(f.DeviceID) != DeviceIDLen {
		return nil, fmt.Errorf("%w, got %d", ErrDeviceID, len(f.DeviceID))
	}
	if f.Count < 1 || f.Count > ShapeCount {
		return nil, fmt.Errorf("livelink: encode: shape count %d out of range 1..%d", f.Count, ShapeCount)
	}

	b = binary.LittleEndian.AppendUint32(b, f.Version)
	b = append(b, f.DeviceID...)
	b = binary.BigEndian.AppendUint32(b, uint32(len(f.SubjectName)))
	b = append(b, f.SubjectName...)
	b = binary.BigEndian.AppendUint32(b, uint32(f.FrameNumber))
	b = binary.BigEndian.AppendUint32(b, math.Float32bits(f.SubFrame))
	b = binary.BigEndian.AppendUint32(b, uint32(f.FrameRate.Numerator))
	b = binary.BigEndian.AppendUint32(b, uint32(f.FrameRate.Denominator))
	b = append(b, uint8(f.Count))
	for i := 0; i < f.Count; i++ {
		b = binary.BigEndian.AppendUint32(b, math.Float32bits(f.Values[i]))
	}
	return b, nil
}

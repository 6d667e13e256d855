package livelink

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

const (
	// ProtocolVersion is the frame version sent by current LiveLink Face builds.
	ProtocolVersion = 6

	// DeviceIDLen is the fixed width of the device id field.
	DeviceIDLen = 37

	// DefaultMaxNameLength bounds the subject name accepted by a Decoder.
	DefaultMaxNameLength = 256

	// headerLen covers version, device id and the name length prefix.
	headerLen = 4 + DeviceIDLen + 4

	// frameTimeLen covers frame number, sub-frame, rate and the shape count.
	frameTimeLen = 4 + 4 + 4 + 4 + 1

	// MinFrameLen is the smallest well-formed frame: empty name, one shape.
	MinFrameLen = headerLen + frameTimeLen + 4

	// MaxFrameLen is the largest frame a default Decoder accepts.
	MaxFrameLen = headerLen + DefaultMaxNameLength + frameTimeLen + 4*ShapeCount
)

// ErrMalformedFrame is matched by every structural decode failure.
var ErrMalformedFrame = errors.New("livelink: malformed frame")

var (
	ErrTooShort           = fmt.Errorf("%w: datagram too short", ErrMalformedFrame)
	ErrUnsupportedVersion = fmt.Errorf("%w: unsupported protocol version", ErrMalformedFrame)
	ErrNameLength         = fmt.Errorf("%w: subject name length out of range", ErrMalformedFrame)
	ErrShapeCount         = fmt.Errorf("%w: shape count out of range", ErrMalformedFrame)
	ErrLengthMismatch     = fmt.Errorf("%w: datagram length does not match shape count", ErrMalformedFrame)
)

// DecoderOptions configures a Decoder. Zero values select the defaults.
type DecoderOptions struct {
	// Versions lists the accepted protocol versions. Default: [ProtocolVersion].
	Versions []uint32
	// MaxNameLength bounds the subject name. Default: DefaultMaxNameLength.
	MaxNameLength int
}

// Decoder validates and decodes LiveLink datagrams. It is stateless and safe
// for concurrent use.
type Decoder struct {
	versions      []uint32
	maxNameLength int
}

// NewDecoder creates a Decoder.
func NewDecoder(opts DecoderOptions) *Decoder {
	versions := opts.Versions
	if len(versions) == 0 {
		versions = []uint32{ProtocolVersion}
	}
	maxName := opts.MaxNameLength
	if maxName <= 0 {
		maxName = DefaultMaxNameLength
	}
	return &Decoder{
		versions:      slices.Clone(versions),
		maxNameLength: maxName,
	}
}

var defaultDecoder = NewDecoder(DecoderOptions{})

// Decode decodes raw with the default options.
func Decode(raw []byte) (*Frame, error) {
	return defaultDecoder.Decode(raw)
}

// Decode decodes raw into a new Frame.
func (d *Decoder) Decode(raw []byte) (*Frame, error) {
	f := &Frame{}
	if err := d.DecodeInto(raw, f); err != nil {
		return nil, err
	}
	return f, nil
}

// DecodeInto decodes raw into f. The whole datagram is validated before f
// is written, so f is left untouched on error.
func (d *Decoder) DecodeInto(raw []byte, f *Frame) error {
	if len(raw) < MinFrameLen {
		return fmt.Errorf("%w: %d bytes, need at least %d", ErrTooShort, len(raw), MinFrameLen)
	}

	version := binary.LittleEndian.Uint32(raw[0:4])
	if !slices.Contains(d.versions, version) {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	nameLen := int32(binary.BigEndian.Uint32(raw[headerLen-4 : headerLen]))
	if nameLen < 0 || int(nameLen) > d.maxNameLength {
		return fmt.Errorf("%w: %d (max %d)", ErrNameLength, nameLen, d.maxNameLength)
	}

	timeOff := headerLen + int(nameLen)
	valuesOff := timeOff + frameTimeLen
	if len(raw) < valuesOff {
		return fmt.Errorf("%w: %d bytes, header needs %d", ErrTooShort, len(raw), valuesOff)
	}

	count := int(raw[valuesOff-1])
	if count < 1 || count > ShapeCount {
		return fmt.Errorf("%w: %d (want 1..%d)", ErrShapeCount, count, ShapeCount)
	}
	if want := valuesOff + 4*count; len(raw) != want {
		return fmt.Errorf("%w: %d bytes for %d shapes, want %d", ErrLengthMismatch, len(raw), count, want)
	}

	f.Version = version
	f.DeviceID = strings.TrimRight(string(raw[4:4+DeviceIDLen]), "\x00")
	f.SubjectName = string(raw[headerLen:timeOff])
	f.FrameNumber = int32(binary.BigEndian.Uint32(raw[timeOff : timeOff+4]))
	f.SubFrame = math.Float32frombits(binary.BigEndian.Uint32(raw[timeOff+4 : timeOff+8]))
	f.FrameRate.Numerator = int32(binary.BigEndian.Uint32(raw[timeOff+8 : timeOff+12]))
	f.FrameRate.Denominator = int32(binary.BigEndian.Uint32(raw[timeOff+12 : timeOff+16]))
	f.Count = count

	f.Values = [ShapeCount]float32{}
	for i := 0; i < count; i++ {
		off := valuesOff + 4*i
		f.Values[i] = math.Float32frombits(binary.BigEndian.Uint32(raw[off : off+4]))
	}
	return nil
}

package livelink

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDeviceID = "$4A1E3C2B-9F10-4E6D-8C7B-1234567890AB"

func makeFrame() *Frame {
	f := NewFrame(testDeviceID, "iPhone")
	f.FrameNumber = 1234
	f.SubFrame = 0.5
	f.FrameRate = FrameRate{Numerator: 60, Denominator: 1}
	f.Set(BrowInnerUp, 0.42)
	f.Set(JawOpen, 0.8)
	f.Set(HeadPitch, 0.1)
	f.Set(RightEyeRoll, -0.25)
	return f
}

func mustEncode(t *testing.T, f *Frame) []byte {
	t.Helper()
	data, err := Encode(f)
	require.NoError(t, err)
	return data
}

// ─── Wire layout ───────────────────────────────────────────────────────────

func TestEncode_Layout(t *testing.T) {
	f := makeFrame()
	data := mustEncode(t, f)

	nameLen := len(f.SubjectName)
	require.Len(t, data, headerLen+nameLen+frameTimeLen+4*ShapeCount)

	assert.Equal(t, []byte{6, 0, 0, 0}, data[0:4], "version is little-endian")
	assert.Equal(t, testDeviceID, string(data[4:41]))
	assert.Equal(t, uint32(nameLen), binary.BigEndian.Uint32(data[41:45]))
	assert.Equal(t, "iPhone", string(data[45:45+nameLen]))

	off := 45 + nameLen
	assert.Equal(t, uint32(1234), binary.BigEndian.Uint32(data[off:off+4]))
	assert.Equal(t, float32(0.5), math.Float32frombits(binary.BigEndian.Uint32(data[off+4:off+8])))
	assert.Equal(t, uint32(60), binary.BigEndian.Uint32(data[off+8:off+12]))
	assert.Equal(t, uint32(1), binary.BigEndian.Uint32(data[off+12:off+16]))
	assert.Equal(t, byte(ShapeCount), data[off+16])

	valOff := off + frameTimeLen + 4*int(BrowInnerUp)
	got := math.Float32frombits(binary.BigEndian.Uint32(data[valOff : valOff+4]))
	assert.Equal(t, float32(0.42), got)
}

func TestEncode_RejectsBadDeviceID(t *testing.T) {
	f := makeFrame()
	f.DeviceID = "short"
	_, err := Encode(f)
	assert.ErrorIs(t, err, ErrDeviceID)
}

func TestEncode_RejectsBadCount(t *testing.T) {
	f := makeFrame()
	f.Count = 0
	_, err := Encode(f)
	assert.Error(t, err)
}

// ─── Decoding ──────────────────────────────────────────────────────────────

func TestDecode_RoundTrip(t *testing.T) {
	want := makeFrame()
	got, err := Decode(mustEncode(t, want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecode_PartialShapeCount(t *testing.T) {
	f := makeFrame()
	f.Count = 52 // older build: blendshapes only, no orientation

	got, err := Decode(mustEncode(t, f))
	require.NoError(t, err)
	assert.Equal(t, 52, got.Count)

	v, ok := got.Get(TongueOut)
	assert.True(t, ok)
	assert.Equal(t, float32(0), v)

	_, ok = got.Get(HeadPitch)
	assert.False(t, ok, "HeadPitch lies past the transmitted count")
	assert.Equal(t, float32(0), got.Value(HeadPitch))
}

func TestDecode_Malformed(t *testing.T) {
	valid := mustEncode(t, makeFrame())
	nameLenOff := headerLen - 4
	countOff := headerLen + len("iPhone") + frameTimeLen - 1

	mutate := func(fn func(b []byte) []byte) []byte {
		b := append([]byte(nil), valid...)
		return fn(b)
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"nil", nil, ErrTooShort},
		{"empty", []byte{}, ErrTooShort},
		{"below minimum", make([]byte, MinFrameLen-1), ErrTooShort},
		{"unrelated OSC datagram", append([]byte("#bundle\x00"), make([]byte, 80)...), ErrUnsupportedVersion},
		{"bad version", mutate(func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[0:4], 5)
			return b
		}), ErrUnsupportedVersion},
		{"negative name length", mutate(func(b []byte) []byte {
			binary.BigEndian.PutUint32(b[nameLenOff:], 0xFFFFFFFF)
			return b
		}), ErrNameLength},
		{"oversized name length", mutate(func(b []byte) []byte {
			binary.BigEndian.PutUint32(b[nameLenOff:], DefaultMaxNameLength+1)
			return b
		}), ErrNameLength},
		{"name runs past datagram", mutate(func(b []byte) []byte {
			binary.BigEndian.PutUint32(b[nameLenOff:], DefaultMaxNameLength)
			return b[:headerLen+100]
		}), ErrTooShort},
		{"zero shapes", mutate(func(b []byte) []byte {
			b[countOff] = 0
			return b
		}), ErrShapeCount},
		{"too many shapes", mutate(func(b []byte) []byte {
			b[countOff] = byte(ShapeCount + 1)
			return b
		}), ErrShapeCount},
		{"truncated values", mutate(func(b []byte) []byte {
			return b[:len(b)-1]
		}), ErrLengthMismatch},
		{"trailing bytes", mutate(func(b []byte) []byte {
			return append(b, 0)
		}), ErrLengthMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Decode(tt.data)
			require.Error(t, err)
			assert.Nil(t, f)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, errors.Is(err, ErrMalformedFrame), "every decode failure is a malformed frame")
		})
	}
}

func TestDecodeInto_LeavesFrameUntouchedOnError(t *testing.T) {
	f := makeFrame()
	before := *f

	data := mustEncode(t, makeFrame())
	err := NewDecoder(DecoderOptions{}).DecodeInto(data[:len(data)-4], f)

	require.Error(t, err)
	assert.Equal(t, before, *f)
}

func TestDecodeInto_OverwritesPreviousFrame(t *testing.T) {
	dec := NewDecoder(DecoderOptions{})
	f := &Frame{}

	require.NoError(t, dec.DecodeInto(mustEncode(t, makeFrame()), f))
	assert.Equal(t, float32(0.42), f.Value(BrowInnerUp))

	short := makeFrame()
	short.Count = 10
	require.NoError(t, dec.DecodeInto(mustEncode(t, short), f))
	assert.Equal(t, 10, f.Count)
	assert.Equal(t, float32(0), f.Values[BrowInnerUp], "values past the count are cleared")
}

func TestDecoder_CustomVersions(t *testing.T) {
	f := makeFrame()
	f.Version = 7
	data := mustEncode(t, f)

	_, err := Decode(data)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	dec := NewDecoder(DecoderOptions{Versions: []uint32{6, 7}})
	got, err := dec.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), got.Version)
}

func TestDecoder_MaxNameLength(t *testing.T) {
	f := makeFrame()
	f.SubjectName = "a-rather-long-subject-name"
	data := mustEncode(t, f)

	_, err := NewDecoder(DecoderOptions{MaxNameLength: 8}).Decode(data)
	assert.ErrorIs(t, err, ErrNameLength)
}

func FuzzDecode(f *testing.F) {
	valid, _ := Encode(makeFrame())
	f.Add(valid)
	f.Add([]byte{})
	f.Add([]byte("#bundle\x00"))
	f.Fuzz(func(t *testing.T, data []byte) {
		frame, err := Decode(data)
		if err != nil {
			if frame != nil {
				t.Fatalf("frame returned alongside error %v", err)
			}
			return
		}
		if frame.Count < 1 || frame.Count > ShapeCount {
			t.Fatalf("decoded count %d out of range", frame.Count)
		}
	})
}

// ─── Frame helpers ─────────────────────────────────────────────────────────

func TestFrame_SetGrowsCount(t *testing.T) {
	f := &Frame{}
	f.Set(JawOpen, 1)
	assert.Equal(t, int(JawOpen)+1, f.Count)

	f.Set(EyeBlinkLeft, 0.5)
	assert.Equal(t, int(JawOpen)+1, f.Count, "setting an earlier shape keeps the count")

	f.Set(FaceBlendShape(-1), 1)
	f.Set(FaceBlendShape(ShapeCount), 1)
	assert.Equal(t, int(JawOpen)+1, f.Count)
}

func TestFrame_DeviceUUID(t *testing.T) {
	f := makeFrame()
	id, err := f.DeviceUUID()
	require.NoError(t, err)
	assert.Equal(t, "4a1e3c2b-9f10-4e6d-8c7b-1234567890ab", id.String())

	f.DeviceID = "$not-a-uuid"
	_, err = f.DeviceUUID()
	assert.Error(t, err)
}

func TestNewDeviceID(t *testing.T) {
	id := NewDeviceID()
	assert.Len(t, id, DeviceIDLen)
	assert.Equal(t, byte('$'), id[0])

	f := NewFrame(id, "test")
	_, err := f.DeviceUUID()
	assert.NoError(t, err)
}

func TestFrameRate_FPS(t *testing.T) {
	assert.Equal(t, 60.0, FrameRate{Numerator: 60, Denominator: 1}.FPS())
	assert.InDelta(t, 29.97, FrameRate{Numerator: 30000, Denominator: 1001}.FPS(), 0.01)
	assert.Equal(t, 0.0, FrameRate{Numerator: 60}.FPS())
}

// ─── Shape names ───────────────────────────────────────────────────────────

func TestShapeNames(t *testing.T) {
	assert.Equal(t, 61, ShapeCount)
	assert.Equal(t, "EyeBlinkLeft", EyeBlinkLeft.String())
	assert.Equal(t, "BrowInnerUp", BrowInnerUp.String())
	assert.Equal(t, "TongueOut", TongueOut.String())
	assert.Equal(t, "RightEyeRoll", RightEyeRoll.String())
	assert.Equal(t, "FaceBlendShape(99)", FaceBlendShape(99).String())

	for i := 0; i < ShapeCount; i++ {
		s := FaceBlendShape(i)
		parsed, err := ParseShape(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
}

func TestParseShape(t *testing.T) {
	s, err := ParseShape("headpitch")
	require.NoError(t, err)
	assert.Equal(t, HeadPitch, s)

	_, err = ParseShape("Nope")
	assert.Error(t, err)
}

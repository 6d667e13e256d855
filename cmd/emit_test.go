package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/facerelay/pkg/livelink"
)

// datagramRecorder keeps a copy of every write.
type datagramRecorder struct {
	datagrams [][]byte
}

func (r *datagramRecorder) Write(p []byte) (int, error) {
	r.datagrams = append(r.datagrams, append([]byte(nil), p...))
	return len(p), nil
}

func TestParseShapeValues(t *testing.T) {
	set, err := parseShapeValues([]string{"BrowInnerUp=0.42", "headpitch = 0.1"})
	require.NoError(t, err)
	assert.Equal(t, map[livelink.FaceBlendShape]float32{
		livelink.BrowInnerUp: 0.42,
		livelink.HeadPitch:   0.1,
	}, set)

	for _, bad := range []string{"JawOpen", "Nope=1", "JawOpen=wide"} {
		_, err := parseShapeValues([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestRunEmit_FixedFrames(t *testing.T) {
	rec := &datagramRecorder{}
	opts := emitOptions{
		Subject: "test",
		Rate:    1000,
		Frames:  3,
		Set:     map[livelink.FaceBlendShape]float32{livelink.BrowInnerUp: 0.42},
	}

	n, err := runEmit(context.Background(), rec, opts)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, rec.datagrams, 3)

	for i, dg := range rec.datagrams {
		f, err := livelink.Decode(dg)
		require.NoError(t, err)
		assert.Equal(t, int32(i), f.FrameNumber)
		assert.Equal(t, "test", f.SubjectName)
		assert.Equal(t, livelink.ShapeCount, f.Count)
		assert.Equal(t, float32(0.42), f.Value(livelink.BrowInnerUp))
		assert.Zero(t, f.Value(livelink.JawOpen))
		_, err = f.DeviceUUID()
		assert.NoError(t, err)
	}
}

func TestRunEmit_Animates(t *testing.T) {
	rec := &datagramRecorder{}
	_, err := runEmit(context.Background(), rec, emitOptions{Rate: 1000, Frames: 2, Animate: true})
	require.NoError(t, err)

	first, err := livelink.Decode(rec.datagrams[0])
	require.NoError(t, err)
	second, err := livelink.Decode(rec.datagrams[1])
	require.NoError(t, err)

	assert.InDelta(t, 0.5, first.Value(livelink.JawOpen), 1e-6)
	assert.Equal(t, float32(1), first.Value(livelink.EyeBlinkLeft))
	assert.NotEqual(t, first.Value(livelink.JawOpen), second.Value(livelink.JawOpen))
}

func TestRunEmit_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	rec := &datagramRecorder{}
	done := make(chan error, 1)
	go func() {
		_, err := runEmit(ctx, rec, emitOptions{Rate: 100})
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("runEmit did not return after the context expired")
	}
	assert.NotEmpty(t, rec.datagrams)
}

func TestRunEmit_InvalidRate(t *testing.T) {
	_, err := runEmit(context.Background(), &datagramRecorder{}, emitOptions{Rate: 0})
	assert.Error(t, err)
}

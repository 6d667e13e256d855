package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"firestige.xyz/facerelay/internal/core"
	"firestige.xyz/facerelay/internal/remap"
	"firestige.xyz/facerelay/pkg/livelink"
	"firestige.xyz/facerelay/pkg/plugin"
)

// Mock implementations for testing

// scriptCapturer hands out queued datagrams, then either reports io.EOF or
// blocks until the context is done.
type scriptCapturer struct {
	frames  [][]byte
	block   bool
	err     error
	waiting chan struct{}
	once    sync.Once
}

func (c *scriptCapturer) Name() string                { return "script" }
func (c *scriptCapturer) Start(context.Context) error { return nil }
func (c *scriptCapturer) Stop(context.Context) error  { return nil }
func (c *scriptCapturer) Stats() plugin.CaptureStats  { return plugin.CaptureStats{} }

func (c *scriptCapturer) Next(ctx context.Context) (core.RawFrame, error) {
	if len(c.frames) > 0 {
		data := c.frames[0]
		c.frames = c.frames[1:]
		return core.RawFrame{Data: data, Timestamp: time.Now()}, nil
	}
	if c.err != nil {
		return core.RawFrame{}, c.err
	}
	if !c.block {
		return core.RawFrame{}, io.EOF
	}
	if c.waiting != nil {
		c.once.Do(func() { close(c.waiting) })
	}
	<-ctx.Done()
	return core.RawFrame{}, ctx.Err()
}

// recordingReporter keeps a copy of every reported frame.
type recordingReporter struct {
	mu      sync.Mutex
	outputs []core.FaceOutput
	flushes int
}

func (r *recordingReporter) Name() string                { return "recording" }
func (r *recordingReporter) Start(context.Context) error { return nil }
func (r *recordingReporter) Stop(context.Context) error  { return nil }

func (r *recordingReporter) Report(_ context.Context, out *core.FaceOutput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs = append(r.outputs, *out)
	return nil
}

func (r *recordingReporter) Flush(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes++
	return nil
}

func (r *recordingReporter) reported() []core.FaceOutput {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.FaceOutput(nil), r.outputs...)
}

// MockReporter is a testify mock reporter.
type MockReporter struct {
	mock.Mock
}

func (m *MockReporter) Name() string                { return "mock" }
func (m *MockReporter) Start(context.Context) error { return nil }
func (m *MockReporter) Stop(context.Context) error  { return nil }

func (m *MockReporter) Report(ctx context.Context, out *core.FaceOutput) error {
	return m.Called(ctx, out).Error(0)
}

func (m *MockReporter) Flush(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func encodeFrame(t *testing.T, set map[livelink.FaceBlendShape]float32) []byte {
	t.Helper()
	f := livelink.NewFrame(livelink.NewDeviceID(), "iPhone")
	for s, v := range set {
		f.Set(s, v)
	}
	data, err := f.MarshalBinary()
	require.NoError(t, err)
	return data
}

func newPipeline(t *testing.T, c plugin.Capturer, r plugin.Reporter, opts ...remap.Options) *Pipeline {
	t.Helper()
	cfg := Config{Name: t.Name(), Capturer: c, Reporter: r}
	if len(opts) > 0 {
		cfg.Remapper = remap.New(opts[0])
	}
	p, err := New(cfg)
	require.NoError(t, err)
	return p
}

func TestPipeline_EndToEndScenario(t *testing.T) {
	capt := &scriptCapturer{frames: [][]byte{
		encodeFrame(t, map[livelink.FaceBlendShape]float32{
			livelink.BrowInnerUp: 0.42,
			livelink.HeadPitch:   0.1,
		}),
	}}
	rep := &recordingReporter{}
	p := newPipeline(t, capt, rep)

	require.NoError(t, p.Run(context.Background()))

	got := rep.reported()
	require.Len(t, got, 1)
	assert.Equal(t, float32(0.42), got[0].Blendshapes[0])
	assert.InDelta(t, -5.7296, float64(got[0].Head.Pitch), 1e-4)
	assert.Zero(t, got[0].Head.Yaw)
	assert.Zero(t, got[0].Head.Roll)
	for i := 1; i < core.BlendshapeCount; i++ {
		assert.Zero(t, got[0].Blendshapes[i], "index %d", i)
	}
	assert.Equal(t, 1, rep.flushes)
}

func TestPipeline_FramesInOrder(t *testing.T) {
	capt := &scriptCapturer{frames: [][]byte{
		encodeFrame(t, map[livelink.FaceBlendShape]float32{livelink.JawOpen: 0.1}),
		encodeFrame(t, map[livelink.FaceBlendShape]float32{livelink.JawOpen: 0.2}),
		encodeFrame(t, map[livelink.FaceBlendShape]float32{livelink.JawOpen: 0.3}),
	}}
	rep := &recordingReporter{}
	p := newPipeline(t, capt, rep)

	require.NoError(t, p.Run(context.Background()))

	got := rep.reported()
	require.Len(t, got, 3)
	jaw, ok := remap.DefaultIndexMap().Index(livelink.JawOpen)
	require.True(t, ok)
	for i, want := range []float32{0.1, 0.2, 0.3} {
		assert.Equal(t, want, got[i].Blendshapes[jaw])
	}
	assert.Equal(t, Stats{Received: 3, Decoded: 3, Remapped: 3, Reported: 3}, p.Stats())
}

func TestPipeline_MalformedFramesDropped(t *testing.T) {
	valid := encodeFrame(t, map[livelink.FaceBlendShape]float32{livelink.TongueOut: 1})
	capt := &scriptCapturer{frames: [][]byte{
		[]byte("not a livelink frame"),
		valid[:len(valid)-1],
		valid,
		{},
	}}
	rep := &recordingReporter{}
	p := newPipeline(t, capt, rep)

	require.NoError(t, p.Run(context.Background()))

	require.Len(t, rep.reported(), 1)
	assert.Equal(t, float32(1), rep.reported()[0].Blendshapes[51])
	assert.Equal(t, Stats{Received: 4, Decoded: 1, DecodeErrors: 3, Remapped: 1, Reported: 1}, p.Stats())
}

func TestPipeline_ReportErrorContinues(t *testing.T) {
	capt := &scriptCapturer{frames: [][]byte{
		encodeFrame(t, nil),
		encodeFrame(t, nil),
	}}
	rep := &MockReporter{}
	rep.On("Report", mock.Anything, mock.Anything).Return(core.ErrSendFailed).Once()
	rep.On("Report", mock.Anything, mock.Anything).Return(nil).Once()
	rep.On("Flush", mock.Anything).Return(nil).Once()

	p := newPipeline(t, capt, rep)
	require.NoError(t, p.Run(context.Background()))

	rep.AssertExpectations(t)
	st := p.Stats()
	assert.Equal(t, uint64(1), st.ReportErrors)
	assert.Equal(t, uint64(1), st.Reported)
}

func TestPipeline_RejectPolicyDropsIncompleteFrames(t *testing.T) {
	full := livelink.NewFrame(livelink.NewDeviceID(), "iPhone")
	complete, err := full.MarshalBinary()
	require.NoError(t, err)
	full.Count = 52
	partial, err := full.MarshalBinary()
	require.NoError(t, err)

	capt := &scriptCapturer{frames: [][]byte{partial, complete}}
	rep := &recordingReporter{}
	p := newPipeline(t, capt, rep, remap.Options{Missing: remap.MissingReject})

	require.NoError(t, p.Run(context.Background()))
	assert.Len(t, rep.reported(), 1)
	assert.Equal(t, uint64(1), p.Stats().RemapErrors)
}

func TestPipeline_ShutdownWhileBlocked(t *testing.T) {
	capt := &scriptCapturer{
		frames:  [][]byte{encodeFrame(t, nil)},
		block:   true,
		waiting: make(chan struct{}),
	}
	rep := &recordingReporter{}
	p := newPipeline(t, capt, rep)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case <-capt.waiting:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline never blocked in receive")
	}
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// Only the frame that completed before shutdown was sent.
	assert.Len(t, rep.reported(), 1)
	assert.Equal(t, 1, rep.flushes)
}

func TestPipeline_CaptureFailure(t *testing.T) {
	boom := errors.New("device gone")
	p := newPipeline(t, &scriptCapturer{err: boom}, &recordingReporter{})

	err := p.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestPipeline_AlreadyRunning(t *testing.T) {
	capt := &scriptCapturer{block: true, waiting: make(chan struct{})}
	p := newPipeline(t, capt, &recordingReporter{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()
	<-capt.waiting

	assert.Error(t, p.Run(ctx))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Reporter: &recordingReporter{}})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)

	_, err = New(Config{Capturer: &scriptCapturer{}})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)

	p, err := New(Config{Capturer: &scriptCapturer{}, Reporter: &recordingReporter{}})
	require.NoError(t, err)
	assert.Equal(t, "relay", p.Name())
}

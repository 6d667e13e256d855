package cmd

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"firestige.xyz/facerelay/internal/config"
	"firestige.xyz/facerelay/internal/daemon"
)

// MockController implements ProcessController
type MockController struct {
	mock.Mock
}

func (m *MockController) Stop(timeout time.Duration) error {
	return m.Called(timeout).Error(0)
}

func (m *MockController) Reload() (int, error) {
	args := m.Called()
	return args.Int(0), args.Error(1)
}

func TestRunReload_Success(t *testing.T) {
	ctl := new(MockController)
	ctl.On("Reload").Return(4242, nil)

	var buf bytes.Buffer
	err := runReload(ctl, &buf)

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ Reload signal sent to pid 4242")
	ctl.AssertExpectations(t)
}

func TestRunReload_Failure(t *testing.T) {
	ctl := new(MockController)
	ctl.On("Reload").Return(0, daemon.ErrNotRunning)

	var buf bytes.Buffer
	err := runReload(ctl, &buf)

	require.Error(t, err)
	assert.ErrorIs(t, err, daemon.ErrNotRunning)
	assert.Contains(t, err.Error(), "failed to reload")
	assert.Empty(t, buf.String())
	ctl.AssertExpectations(t)
}

func TestRunStop_Success(t *testing.T) {
	ctl := new(MockController)
	ctl.On("Stop", 3*time.Second).Return(nil)

	var buf bytes.Buffer
	require.NoError(t, runStop(ctl, 3*time.Second, &buf))
	assert.Contains(t, buf.String(), "✓ Relay stopped")
	ctl.AssertExpectations(t)
}

func TestRunStop_Failure(t *testing.T) {
	ctl := new(MockController)
	ctl.On("Stop", mock.Anything).Return(errors.New("did not stop within 3s"))

	var buf bytes.Buffer
	err := runStop(ctl, 3*time.Second, &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to stop relay")
	ctl.AssertExpectations(t)
}

func TestNewController_RequiresPIDFile(t *testing.T) {
	cfg := config.Default()
	_, err := newController(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no PID file configured")

	cfg.Control.PIDFile = "/run/facerelay.pid"
	ctl, err := newController(cfg)
	require.NoError(t, err)
	assert.Equal(t, pidController{pidFile: "/run/facerelay.pid"}, ctl)
}

package daemon

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// ErrNotRunning is returned when the PID file is missing or names a process
// that no longer exists.
var ErrNotRunning = errors.New("facerelay is not running")

// ReadPIDFile returns the process ID recorded in pidFile.
func ReadPIDFile(pidFile string) (int, error) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNotRunning
		}
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID file %s: %q", pidFile, strings.TrimSpace(string(data)))
	}
	return pid, nil
}

// Signal sends sig to the relay recorded in pidFile.
func Signal(pidFile string, sig syscall.Signal) (int, error) {
	pid, err := ReadPIDFile(pidFile)
	if err != nil {
		return 0, err
	}
	if err := syscall.Kill(pid, sig); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return pid, ErrNotRunning
		}
		return pid, fmt.Errorf("signal %d: %w", pid, err)
	}
	return pid, nil
}

// StopRunning asks the relay recorded in pidFile to shut down and waits up
// to timeout for it to remove its PID file.
func StopRunning(pidFile string, timeout time.Duration) error {
	pid, err := Signal(pidFile, syscall.SIGTERM)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(pidFile); os.IsNotExist(err) {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("facerelay (pid %d) did not stop within %s", pid, timeout)
}

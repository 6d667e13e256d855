package cmd

import (
	"errors"
	"fmt"
	"io"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/facerelay/internal/config"
	"firestige.xyz/facerelay/internal/daemon"
)

// ProcessController signals a running relay.
type ProcessController interface {
	Stop(timeout time.Duration) error
	Reload() (pid int, err error)
}

// pidController finds the relay through its PID file.
type pidController struct {
	pidFile string
}

func (c pidController) Stop(timeout time.Duration) error {
	return daemon.StopRunning(c.pidFile, timeout)
}

func (c pidController) Reload() (int, error) {
	return daemon.Signal(c.pidFile, syscall.SIGHUP)
}

// stopCmd represents the stop command
var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running relay",
	Long: `Stop a running relay gracefully.

The relay is found through its PID file (--pid-file or control.pid_file) and
sent SIGTERM. The command waits until the relay has removed its PID file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctl, err := controllerFor(cmd)
		if err != nil {
			return err
		}
		return runStop(ctl, stopTimeout, cmd.OutOrStdout())
	},
}

var stopTimeout time.Duration

func init() {
	stopCmd.Flags().DurationVar(&stopTimeout, "timeout", 10*time.Second, "how long to wait for the relay to exit")
}

// controllerFor returns a controller for the PID file in cmd's configuration.
func controllerFor(cmd *cobra.Command) (ProcessController, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return newController(cfg)
}

func newController(cfg *config.GlobalConfig) (ProcessController, error) {
	if cfg.Control.PIDFile == "" {
		return nil, errors.New("no PID file configured: set --pid-file or control.pid_file")
	}
	return pidController{pidFile: cfg.Control.PIDFile}, nil
}

func runStop(ctl ProcessController, timeout time.Duration, out io.Writer) error {
	if err := ctl.Stop(timeout); err != nil {
		return fmt.Errorf("failed to stop relay: %w", err)
	}
	fmt.Fprintln(out, "✓ Relay stopped")
	return nil
}

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload configuration of a running relay",
	Long: `Send SIGHUP to the relay named by the PID file.

Log settings take effect immediately; changes to the sockets, remapping or
metrics are reported by the relay and apply after a restart.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctl, err := controllerFor(cmd)
		if err != nil {
			return err
		}
		return runReload(ctl, cmd.OutOrStdout())
	},
}

// runReload holds the command logic so it can be tested with a mock.
func runReload(ctl ProcessController, out io.Writer) error {
	pid, err := ctl.Reload()
	if err != nil {
		return fmt.Errorf("failed to reload: %w", err)
	}
	fmt.Fprintf(out, "✓ Reload signal sent to pid %d\n", pid)
	return nil
}

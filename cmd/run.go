package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/facerelay/internal/daemon"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:     "run",
	Aliases: []string{"daemon"},
	Short:   "Relay LiveLink Face frames to OSC in the foreground",
	Long: `Run the relay in the foreground.

The relay will:
  1. Load configuration from file, environment and flags
  2. Initialize logging and, if enabled, the metrics server
  3. Open the OSC destination and bind the LiveLink port
  4. Forward every valid frame as one OSC bundle
  5. Handle signals for graceful shutdown (SIGTERM, SIGINT) and reload (SIGHUP)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRelay(cmd)
	},
}

func init() {
	fs := runCmd.Flags()
	fs.String("listen", "", "LiveLink listen address (default 0.0.0.0)")
	fs.Int("port", 0, "LiveLink listen port (default 11111)")
	addOSCFlags(fs)
	addRemapFlags(fs)
	fs.Bool("metrics", false, "serve Prometheus metrics")
	fs.String("metrics-listen", "", "metrics listen address (default 127.0.0.1:9091)")
	addDryRunFlags(fs)
}

func runRelay(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	reporter, err := dryRunReporter(cmd)
	if err != nil {
		return err
	}

	d := daemon.New(cfg, daemon.Options{
		ConfigPath: configFile,
		Flags:      cmd.Flags(),
		Reporter:   reporter,
	})
	if err := d.Start(); err != nil {
		return fmt.Errorf("failed to start relay: %w", err)
	}

	// Run main loop (blocks until shutdown)
	return d.Run()
}

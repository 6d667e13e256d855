// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"firestige.xyz/facerelay/internal/config"
	"firestige.xyz/facerelay/pkg/plugin"
	"firestige.xyz/facerelay/plugins/reporter/console"
)

// Global flags
var configFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "facerelay",
	Short: "facerelay - LiveLink Face to OSC relay",
	Long: `facerelay receives LiveLink Face datagrams from the iOS app, remaps the
ARKit blendshapes and head/eye orientation to a fixed layout, and forwards each
frame as one OSC bundle over UDP.

Every frame becomes a bundle of 55 messages:
  /W   <index int32> <weight float32>      52 blendshape weights, index 0..51
  /HR  <pitch> <yaw> <roll>                head rotation, degrees
  /ELR <pitch> <yaw>                       left eye, degrees
  /ERR <pitch> <yaw>                       right eye, degrees

Configuration precedence: flags > FACERELAY_* environment > config file > defaults.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// The command context is cancelled by SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "config file path (YAML)")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: text, json")
	pf.String("pid-file", "", "PID file path")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(emitCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(reloadCmd)
}

// loadConfig loads the configuration for cmd, applying the flags the user
// set on the command line.
func loadConfig(cmd *cobra.Command) (*config.GlobalConfig, error) {
	return config.Load(configFile, cmd.Flags())
}

// addOSCFlags adds the outbound destination flags.
func addOSCFlags(fs *pflag.FlagSet) {
	fs.String("osc-host", "", "OSC destination host (default 127.0.0.1)")
	fs.Int("osc-port", 0, "OSC destination port (default 9000)")
}

// addRemapFlags adds the remapping flags.
func addRemapFlags(fs *pflag.FlagSet) {
	fs.String("missing", "", "missing parameter policy: zero, reject")
	fs.Bool("clamp-weights", false, "clamp blendshape weights to [0,1]")
}

// addDryRunFlags adds the flags that print frames instead of sending them.
func addDryRunFlags(fs *pflag.FlagSet) {
	fs.Bool("dry-run", false, "print frames to stdout instead of sending OSC")
	fs.String("print-format", "text", "dry run output format: text, json")
}

// dryRunReporter returns a console reporter when --dry-run is set, or nil
// to keep the OSC reporter.
func dryRunReporter(cmd *cobra.Command) (plugin.Reporter, error) {
	dry, _ := cmd.Flags().GetBool("dry-run")
	if !dry {
		return nil, nil
	}
	format, _ := cmd.Flags().GetString("print-format")
	return console.NewReporter(console.Config{Format: format, Out: cmd.OutOrStdout()})
}

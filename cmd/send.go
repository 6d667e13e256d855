package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/facerelay/pkg/plugin"
	"firestige.xyz/facerelay/plugins/reporter/osc"
)

var sendCmd = &cobra.Command{
	Use:   "send <address> [args...]",
	Short: "Send a single OSC message",
	Long: `Send one OSC message to the configured destination.

Arguments are typed by their text: integers become int32, other numbers
float32, true/false booleans, anything else a string. Prefix an argument
with "s:" to force a string.

Examples:
  facerelay send /W 24 0.8
  facerelay send --osc-port 9001 /HR 10 0 0
  facerelay send /label s:42`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		r := osc.NewReporter(osc.Config{Host: cfg.OSC.Host, Port: cfg.OSC.Port})
		if err := r.Start(cmd.Context()); err != nil {
			return err
		}
		defer r.Stop(context.Background())

		return runSend(cmd.Context(), r, args[0], args[1:], cmd.OutOrStdout())
	},
}

func init() {
	addOSCFlags(sendCmd.Flags())
}

// runSend sends one message built from the command line arguments.
func runSend(ctx context.Context, sender plugin.MessageSender, addr string, args []string, out io.Writer) error {
	values := osc.ParseArgs(args)
	if err := sender.SendMessage(ctx, addr, values...); err != nil {
		return fmt.Errorf("failed to send %s: %w", addr, err)
	}
	fmt.Fprintf(out, "sent %s %v\n", addr, values)
	return nil
}

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/facerelay/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Load the configuration the same way run does and print it as YAML.

A configuration that fails validation is reported as an error, so this also
serves as a pre-flight check.

Examples:
  facerelay config
  facerelay config -c /etc/facerelay/config.yml
  FACERELAY_OSC_PORT=9001 facerelay config`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return runConfigShow(cfg, cmd.OutOrStdout())
	},
}

func runConfigShow(cfg *config.GlobalConfig, out io.Writer) error {
	data, err := cfg.YAML()
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	_, err = out.Write(data)
	return err
}

package commands

import (
	"github.com/spf13/cobra"

	"github.com/webvisor/webvisor/internal/config"
)

// ConfigCmd creates the config command, which prints a configuration
// template with all defaults filled in.
func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print a configuration template",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")

			data, err := config.DefaultConfig().Export(format)
			if err != nil {
				return err
			}
			cmd.OutOrStdout().Write(data)
			return nil
		},
	}

	cmd.Flags().String("format", "toml", "Template format: toml or yaml")
	return cmd
}

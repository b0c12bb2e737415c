// SPDX-License-Identifier: MIT
package notesync

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skaphos/notesync/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap a notesync configuration",
	Long:  "Creates a notesync config file with defaults at the standard location (or --config).",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		cfgPath, err := config.ConfigPath(flagConfig)
		if err != nil {
			return err
		}
		if _, err := os.Stat(cfgPath); err == nil && !force {
			return fmt.Errorf("config already exists at %q (use --force to overwrite)", cfgPath)
		}

		cfg := config.DefaultConfig()
		if err := config.Save(&cfg, cfgPath); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Wrote config to %s\n", cfgPath); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	initCmd.Flags().Bool("force", false, "overwrite existing config without prompting")

	rootCmd.AddCommand(initCmd)
}

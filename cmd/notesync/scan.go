// SPDX-License-Identifier: MIT
package notesync

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skaphos/notesync/internal/resolver"
)

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "List every repository under a directory",
	Long:  "Walks PATH (default: current directory) and prints every repository root underneath it, nested repositories included. Configured exclude globs are skipped.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		path := "."
		if len(args) > 0 {
			path = args[0]
		}
		roots, err := resolver.Scan(path, resolver.ScanOptions{Exclude: cfg.Exclude})
		if err != nil {
			return err
		}
		debugf(cmd, "found %d repositories under %s", len(roots), path)

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(roots)
		}
		for _, root := range roots {
			fmt.Fprintln(cmd.OutOrStdout(), root)
		}
		if len(roots) == 0 {
			infof(cmd, "no repositories found under %q", path)
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().Bool("json", false, "emit repository roots as JSON")

	rootCmd.AddCommand(scanCmd)
}

package notesync

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/skaphos/notesync/internal/model"
	"github.com/skaphos/notesync/internal/resolver"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [path]",
	Short: "Print the enclosing repository root for a path",
	Long:  "Walks upward from PATH (default: current directory) to the nearest enclosing repository root. A path inside a nested repository resolves to the nested root.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		path := "."
		if len(args) > 0 {
			path = args[0]
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}

		root, ok := resolver.FindRoot(abs)
		if resolver.IsRepoRoot(abs) {
			root, ok = model.RepoRoot{Root: abs, Rel: "."}, true
		}
		if !ok {
			infof(cmd, "no repository found at or above %q", path)
			raiseExitCode(2)
			return nil
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(root)
		}
		fmt.Fprintln(cmd.OutOrStdout(), root.Root)
		return nil
	},
}

func init() {
	resolveCmd.Flags().Bool("json", false, "emit the resolved root as JSON")

	rootCmd.AddCommand(resolveCmd)
}

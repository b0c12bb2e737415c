package notesync

import (
	"github.com/spf13/cobra"

	"github.com/skaphos/notesync/internal/engine"
	"github.com/skaphos/notesync/internal/synclog"
)

var cloneCmd = &cobra.Command{
	Use:   "clone <remote-url> <path>",
	Short: "Create a local checkout of a remote note repository",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		setColorOutputMode(cmd, jsonOutput)

		cfg, cfgPath, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		remote, dest := args[0], args[1]
		eng := buildEngine(cfg, cfgPath)
		opts := engine.CloneOptions{}
		if !jsonOutput {
			opts.Sink = func(msg string, status synclog.Status) {
				writeStep(cmd, msg, status)
			}
		}

		report := eng.Clone(cmd.Context(), remote, dest, opts)
		if jsonOutput {
			if err := writeCloneReportJSON(cmd, remote, dest, report); err != nil {
				return err
			}
		} else {
			writeCloneOutcome(cmd, report)
		}
		if !report.Outcome.OK {
			raiseExitCode(2)
		}
		return nil
	},
}

func init() {
	cloneCmd.Flags().Bool("json", false, "emit the outcome and sync log as JSON")

	rootCmd.AddCommand(cloneCmd)
}

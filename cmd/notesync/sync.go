package notesync

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skaphos/notesync/internal/config"
	"github.com/skaphos/notesync/internal/engine"
	"github.com/skaphos/notesync/internal/synclog"
	"github.com/skaphos/notesync/internal/termstyle"
)

var syncCmd = &cobra.Command{
	Use:   "sync [path]",
	Short: "Synchronize a note repository with its remote",
	Long:  "Resolves the enclosing repository of PATH (default: current directory), fetches the remote, commits and pushes local edits, and converges on the remote branch when histories have diverged.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message, _ := cmd.Flags().GetString("message")
		orderingRaw, _ := cmd.Flags().GetString("ordering")
		jsonOutput, _ := cmd.Flags().GetBool("json")
		setColorOutputMode(cmd, jsonOutput)

		ordering, err := parseOrdering(orderingRaw)
		if err != nil {
			return err
		}

		cfg, cfgPath, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		root, err := resolveRoot(args)
		if err != nil {
			// Not-a-repository is an outcome, not a usage error.
			writeFailureLine(cmd, jsonOutput, err.Error())
			raiseExitCode(2)
			return nil
		}
		debugf(cmd, "syncing %s", root)

		eng := buildEngine(cfg, cfgPath)
		opts := engine.SyncOptions{
			Message:  message,
			Ordering: ordering,
		}
		if !jsonOutput {
			opts.Sink = func(msg string, status synclog.Status) {
				writeStep(cmd, msg, status)
			}
		}

		report := eng.Sync(cmd.Context(), root, opts)
		if jsonOutput {
			return writeSyncReportJSON(cmd, root, report)
		}
		writeSyncOutcome(cmd, report)
		if !report.Outcome.OK() {
			raiseExitCode(2)
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().StringP("message", "m", "", "commit message for local changes")
	syncCmd.Flags().String("ordering", "", "reconciliation ordering: commit-first or reset-first (default: from config)")
	syncCmd.Flags().Bool("json", false, "emit the outcome and sync log as JSON")

	rootCmd.AddCommand(syncCmd)
}

func parseOrdering(raw string) (config.Ordering, error) {
	switch config.Ordering(raw) {
	case "", config.OrderingCommitFirst, config.OrderingResetFirst:
		return config.Ordering(raw), nil
	default:
		return "", fmt.Errorf("invalid ordering %q (want %s or %s)", raw, config.OrderingCommitFirst, config.OrderingResetFirst)
	}
}

func writeStep(cmd *cobra.Command, message string, status synclog.Status) {
	if flagQuiet {
		return
	}
	marker := termstyle.Colorize(colorOutputEnabled, string(status), stepColor(status))
	fmt.Fprintf(cmd.ErrOrStderr(), "  [%s] %s\n", marker, message)
}

func stepColor(status synclog.Status) string {
	switch status {
	case synclog.StatusSuccess:
		return termstyle.Success
	case synclog.StatusError:
		return termstyle.Error
	default:
		return termstyle.Info
	}
}

package notesync

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skaphos/notesync/internal/engine"
	"github.com/skaphos/notesync/internal/model"
	"github.com/skaphos/notesync/internal/termstyle"
)

// syncReportJSON is the machine-readable shape of one sync run.
type syncReportJSON struct {
	Root    string            `json:"root"`
	Outcome model.SyncOutcome `json:"outcome"`
	Log     []model.LogEntry  `json:"log"`
}

// cloneReportJSON is the machine-readable shape of one clone run.
type cloneReportJSON struct {
	Remote  string             `json:"remote"`
	Dest    string             `json:"dest"`
	Outcome model.CloneOutcome `json:"outcome"`
	Log     []model.LogEntry   `json:"log"`
}

func writeSyncReportJSON(cmd *cobra.Command, root string, report engine.SyncReport) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(syncReportJSON{Root: root, Outcome: report.Outcome, Log: report.Log})
}

func writeCloneReportJSON(cmd *cobra.Command, remote, dest string, report engine.CloneReport) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(cloneReportJSON{Remote: remote, Dest: dest, Outcome: report.Outcome, Log: report.Log})
}

func writeSyncOutcome(cmd *cobra.Command, report engine.SyncReport) {
	out := cmd.OutOrStdout()
	o := report.Outcome
	switch o.Kind {
	case model.OutcomeUpToDate:
		fmt.Fprintf(out, "%s at %s\n",
			termstyle.Colorize(colorOutputEnabled, "up to date", termstyle.Success),
			o.Revision.Short())
	case model.OutcomeUpdated:
		fmt.Fprintf(out, "%s %s -> %s (%d files)\n",
			termstyle.Colorize(colorOutputEnabled, "updated", termstyle.Success),
			o.From.Short(), o.To.Short(), o.FilesChanged)
	default:
		fmt.Fprintf(out, "%s (%s): %s\n",
			termstyle.Colorize(colorOutputEnabled, "failed", termstyle.Error),
			o.Failure, o.Detail)
	}
}

func writeCloneOutcome(cmd *cobra.Command, report engine.CloneReport) {
	out := cmd.OutOrStdout()
	o := report.Outcome
	if o.OK {
		fmt.Fprintf(out, "%s at %s\n",
			termstyle.Colorize(colorOutputEnabled, "cloned", termstyle.Success),
			o.Revision.Short())
		return
	}
	fmt.Fprintf(out, "%s (%s): %s\n",
		termstyle.Colorize(colorOutputEnabled, "clone failed", termstyle.Error),
		o.Failure, o.Detail)
}

func writeFailureLine(cmd *cobra.Command, jsonOutput bool, detail string) {
	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		_ = enc.Encode(syncReportJSON{
			Outcome: model.Failed(model.FailNotARepository, detail),
		})
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): %s\n",
		termstyle.Colorize(colorOutputEnabled, "failed", termstyle.Error),
		model.FailNotARepository, detail)
}

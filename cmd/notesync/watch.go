package notesync

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/skaphos/notesync/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [roots...]",
	Short: "Watch note directories and sync on change",
	Long:  "Runs the sync daemon: watches the given roots (default: watch.roots from config) for note writes and syncs the owning repository after a quiet period. Stops on SIGINT/SIGTERM.",
	RunE: func(cmd *cobra.Command, args []string) error {
		debounceMs, _ := cmd.Flags().GetInt("debounce-ms")
		logPath, _ := cmd.Flags().GetString("log")

		cfg, cfgPath, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		roots := args
		if len(roots) == 0 {
			roots = cfg.Watch.Roots
		}
		if len(roots) == 0 {
			return fmt.Errorf("no roots to watch: pass them as arguments or set watch.roots in the config")
		}
		if debounceMs <= 0 {
			debounceMs = cfg.Watch.DebounceMs
		}
		if logPath == "" {
			logPath = cfg.Watch.LogPath
		}

		logger := watchLogger(cmd, logPath)
		eng := buildEngine(cfg, cfgPath)
		w, err := watch.New(eng, watch.Options{
			Roots:    roots,
			Debounce: time.Duration(debounceMs) * time.Millisecond,
			Exclude:  cfg.Exclude,
			Logger:   logger,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		infof(cmd, "watching %d root(s), debounce %dms", len(roots), debounceMs)
		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		infof(cmd, "watch stopped")
		return nil
	},
}

func init() {
	watchCmd.Flags().Int("debounce-ms", 0, "quiet period before a sync fires (default: from config)")
	watchCmd.Flags().String("log", "", "rotating log file for daemon output (default: from config)")

	rootCmd.AddCommand(watchCmd)
}

// watchLogger builds the daemon logger: stderr, plus a size-rotated file
// when a log path is configured.
func watchLogger(cmd *cobra.Command, logPath string) *log.Logger {
	var out io.Writer = cmd.ErrOrStderr()
	if logPath != "" {
		out = io.MultiWriter(out, &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     30, // days
			Compress:   true,
		})
	}
	return log.New(out, "", log.LstdFlags)
}

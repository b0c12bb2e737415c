// SPDX-License-Identifier: MIT
package notesync

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/skaphos/notesync/internal/config"
	"github.com/skaphos/notesync/internal/credentials"
	"github.com/skaphos/notesync/internal/engine"
	"github.com/skaphos/notesync/internal/resolver"
	"github.com/skaphos/notesync/internal/store"
)

// loadConfig resolves and loads the effective config for a command run.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", err
	}
	cfgPath, err := config.ResolveConfigPath(flagConfig, cwd)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, "", err
	}
	debugf(cmd, "using config %s", cfgPath)
	return cfg, cfgPath, nil
}

// buildEngine assembles the sync engine from the loaded config.
func buildEngine(cfg *config.Config, cfgPath string) *engine.Engine {
	st := store.NewGitStore(nil)
	if cfg.Defaults.RemoteName != "" {
		st.Remote = cfg.Defaults.RemoteName
	}

	var creds credentials.Provider = credentials.Static{}
	if path := config.ResolveCredentialsPath(cfgPath, cfg); path != "" {
		creds = credentials.NewFileProvider(path)
	}

	return engine.New(st, creds, cfg)
}

// resolveRoot turns a command path argument (or the working directory)
// into the enclosing repository root. The named directory itself counts.
func resolveRoot(args []string) (string, error) {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolver.IsRepoRoot(abs) {
		return abs, nil
	}
	root, ok := resolver.FindRoot(abs)
	if !ok {
		return "", fmt.Errorf("no repository found at or above %q", path)
	}
	return root.Root, nil
}

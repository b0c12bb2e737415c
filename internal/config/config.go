// Package config handles loading, saving, and resolving the notesync
// machine configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.yaml.in/yaml/v3"
)

const (
	// LocalConfigFilename is the per-directory notesync config file.
	LocalConfigFilename = ".notesync.yaml"
	// ConfigAPIVersion is the current config schema apiVersion.
	ConfigAPIVersion = "skaphos.io/notesync/v1beta1"
	// ConfigKind is the current config schema kind.
	ConfigKind = "NotesyncConfig"
	// EnvConfig overrides the config location.
	EnvConfig = "NOTESYNC_CONFIG"
)

// Ordering selects the engine's reconciliation ordering.
type Ordering string

const (
	// OrderingCommitFirst commits local changes, pushes, and falls back
	// to reset+retry when the remote has diverged. The default.
	OrderingCommitFirst Ordering = "commit-first"
	// OrderingResetFirst refuses to touch a dirty tree and otherwise
	// hard-resets local to the remote revision.
	OrderingResetFirst Ordering = "reset-first"
)

// Author is the commit identity recorded on engine-created commits.
type Author struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// Watch configures the vault watcher daemon.
type Watch struct {
	// Roots are the vault directories to watch for note writes.
	Roots []string `yaml:"roots,omitempty"`
	// DebounceMs is the quiet period after the last write before a
	// sync fires.
	DebounceMs int `yaml:"debounce_ms"`
	// LogPath is the rotating log file for the watch daemon. Empty
	// logs to stderr only.
	LogPath string `yaml:"log_path,omitempty"`
}

// Defaults holds default values for operations.
type Defaults struct {
	RemoteName     string `yaml:"remote_name"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Config represents the machine-level notesync configuration.
type Config struct {
	APIVersion string `yaml:"apiVersion"`
	Kind       string `yaml:"kind"`
	// Author identifies engine-created commits.
	Author Author `yaml:"author"`
	// Ordering is the reconciliation ordering. Defaults to commit-first.
	Ordering Ordering `yaml:"ordering"`
	// Exclude globs are never staged and never scanned into.
	Exclude []string `yaml:"exclude"`
	// CredentialsPath points at the YAML credentials file. Relative
	// paths resolve against the config file directory.
	CredentialsPath string   `yaml:"credentials_path,omitempty"`
	Watch           Watch    `yaml:"watch"`
	Defaults        Defaults `yaml:"defaults"`
}

// DefaultConfig returns a Config with sensible defaults applied.
func DefaultConfig() Config {
	return Config{
		APIVersion: ConfigAPIVersion,
		Kind:       ConfigKind,
		Author: Author{
			Name:  "notesync",
			Email: "notesync@localhost",
		},
		Ordering: OrderingCommitFirst,
		Exclude:  []string{"**/.DS_Store", "**/.trash/**", "**/*.tmp"},
		Watch: Watch{
			DebounceMs: 2000,
		},
		Defaults: Defaults{
			RemoteName:     "origin",
			TimeoutSeconds: 120,
		},
	}
}

// ConfigDir returns the platform-appropriate config directory path.
// It checks, in order: the override parameter, NOTESYNC_CONFIG env var,
// and finally os.UserConfigDir()/notesync.
func ConfigDir(override string) (string, error) {
	if override != "" {
		if isConfigFilePath(override) {
			return filepath.Dir(override), nil
		}
		return override, nil
	}

	if env := os.Getenv(EnvConfig); env != "" {
		if isConfigFilePath(env) {
			return filepath.Dir(env), nil
		}
		return env, nil
	}

	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "notesync"), nil
}

// ConfigPath returns the full path of the config file.
func ConfigPath(override string) (string, error) {
	if override != "" && isConfigFilePath(override) {
		return override, nil
	}
	if override == "" {
		if env := os.Getenv(EnvConfig); env != "" && isConfigFilePath(env) {
			return env, nil
		}
	}

	dir, err := ConfigDir(override)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// ResolveConfigPath resolves config for runtime commands.
// Order: explicit override, NOTESYNC_CONFIG, nearest local dotfile in
// cwd/parents, then global platform config path.
func ResolveConfigPath(override, cwd string) (string, error) {
	if override != "" || os.Getenv(EnvConfig) != "" {
		return ConfigPath(override)
	}

	if strings.TrimSpace(cwd) == "" {
		var err error
		cwd, err = os.Getwd()
		if err != nil {
			return "", err
		}
	}

	localPath, err := FindNearestConfigPath(cwd)
	if err != nil {
		return "", err
	}
	if localPath != "" {
		return localPath, nil
	}

	return ConfigPath("")
}

// FindNearestConfigPath searches cwd and each parent directory for
// .notesync.yaml. It returns an empty string when no local config file
// is found.
func FindNearestConfigPath(cwd string) (string, error) {
	dir := cwd
	for {
		candidate := filepath.Join(dir, LocalConfigFilename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if err != nil && !os.IsNotExist(err) {
			return "", err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// Load reads the config file from the given path. A missing file yields
// the defaults rather than an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			return &cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigGVK(&cfg)
	if err := validateConfigGVK(&cfg); err != nil {
		return nil, err
	}
	if err := validateOrdering(cfg.Ordering); err != nil {
		return nil, err
	}
	if err := ValidateExcludes(cfg.Exclude); err != nil {
		return nil, err
	}
	if cfg.Defaults.TimeoutSeconds == 0 {
		cfg.Defaults.TimeoutSeconds = DefaultConfig().Defaults.TimeoutSeconds
	}
	if cfg.Defaults.RemoteName == "" {
		cfg.Defaults.RemoteName = DefaultConfig().Defaults.RemoteName
	}
	if cfg.Watch.DebounceMs <= 0 {
		cfg.Watch.DebounceMs = DefaultConfig().Watch.DebounceMs
	}

	return &cfg, nil
}

// Save writes the config to the given path.
func Save(cfg *Config, path string) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	applyConfigGVK(cfg)
	if err := validateConfigGVK(cfg); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ResolveCredentialsPath resolves credentials_path against the config
// file location. Absolute paths are returned unchanged.
func ResolveCredentialsPath(configPath string, cfg *Config) string {
	if cfg == nil || strings.TrimSpace(cfg.CredentialsPath) == "" {
		return ""
	}
	p := cfg.CredentialsPath
	if filepath.IsAbs(p) || strings.TrimSpace(configPath) == "" {
		return filepath.Clean(p)
	}
	return filepath.Clean(filepath.Join(filepath.Dir(configPath), p))
}

// ValidateExcludes rejects malformed glob patterns early, before they
// silently skip nothing at stage time.
func ValidateExcludes(patterns []string) error {
	for _, pattern := range patterns {
		if strings.TrimSpace(pattern) == "" {
			continue
		}
		if !doublestar.ValidatePattern(filepath.ToSlash(pattern)) {
			return fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}
	return nil
}

func isConfigFilePath(path string) bool {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, "config.yaml") || strings.HasSuffix(lower, "config.yml") {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func applyConfigGVK(cfg *Config) {
	if cfg == nil {
		return
	}
	if strings.TrimSpace(cfg.APIVersion) == "" {
		cfg.APIVersion = ConfigAPIVersion
	}
	if strings.TrimSpace(cfg.Kind) == "" {
		cfg.Kind = ConfigKind
	}
	if strings.TrimSpace(string(cfg.Ordering)) == "" {
		cfg.Ordering = OrderingCommitFirst
	}
}

func validateConfigGVK(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.APIVersion != ConfigAPIVersion {
		return fmt.Errorf("unsupported config apiVersion %q (expected %q)", cfg.APIVersion, ConfigAPIVersion)
	}
	if cfg.Kind != ConfigKind {
		return fmt.Errorf("unsupported config kind %q (expected %q)", cfg.Kind, ConfigKind)
	}
	return nil
}

func validateOrdering(o Ordering) error {
	switch o {
	case OrderingCommitFirst, OrderingResetFirst:
		return nil
	default:
		return fmt.Errorf("unsupported ordering %q (expected %q or %q)", o, OrderingCommitFirst, OrderingResetFirst)
	}
}

// Package credentials supplies remote credentials to the sync engine.
// The engine never caches what a provider returns; each call gets a
// fresh lookup.
package credentials

import (
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/skaphos/notesync/internal/model"
)

// Provider looks up the credential for a remote host. The second return
// is false when no credential is configured for the host; that is not
// an error, the engine proceeds anonymously and lets the remote decide.
type Provider interface {
	Get(host string) (model.Credential, bool, error)
}

// Static is a fixed in-memory provider keyed by host.
type Static map[string]model.Credential

func (s Static) Get(host string) (model.Credential, bool, error) {
	cred, ok := s[strings.ToLower(host)]
	return cred, ok, nil
}

// fileEntry is one host record in the credentials file.
type fileEntry struct {
	Username string `yaml:"username"`
	Secret   string `yaml:"secret"`
	// SecretFile points at a file holding the secret, for setups that
	// keep tokens out of the credentials file itself.
	SecretFile string `yaml:"secret_file,omitempty"`
}

type fileSchema struct {
	Hosts map[string]fileEntry `yaml:"hosts"`
}

// FileProvider reads credentials from a YAML file on every lookup, so
// token rotation does not require a restart.
type FileProvider struct {
	Path string
}

// NewFileProvider builds a provider for the given credentials file.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{Path: path}
}

func (f *FileProvider) Get(host string) (model.Credential, bool, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.Credential{}, false, nil
		}
		return model.Credential{}, false, fmt.Errorf("read credentials file: %w", err)
	}

	var schema fileSchema
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return model.Credential{}, false, fmt.Errorf("parse credentials file %s: %w", f.Path, err)
	}

	entry, ok := schema.Hosts[strings.ToLower(host)]
	if !ok {
		return model.Credential{}, false, nil
	}

	secret := entry.Secret
	if entry.SecretFile != "" {
		raw, err := os.ReadFile(entry.SecretFile)
		if err != nil {
			return model.Credential{}, false, fmt.Errorf("read secret file for %s: %w", host, err)
		}
		secret = strings.TrimSpace(string(raw))
	}
	return model.Credential{Username: entry.Username, Secret: secret}, true, nil
}

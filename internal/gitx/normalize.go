package gitx

import (
	"net/url"
	"strings"
)

// NormalizeURL converts a git remote URL into a canonical repo identity.
//
// Rules:
//   - Strip protocol (https://, git://, ssh://) and user (git@)
//   - Convert git@host:path to host/path
//   - Lowercase the host portion
//   - Strip trailing ".git"
//   - Strip trailing slashes
//
// Examples:
//
//	git@github.com:Org/Repo.git  → github.com/Org/Repo
//	https://github.com/Org/Repo.git → github.com/Org/Repo
func NormalizeURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	host, path := splitHostPath(rawURL)
	host = strings.ToLower(host)
	path = strings.TrimSuffix(path, ".git")
	path = strings.TrimRight(path, "/")
	if host == "" {
		return path
	}
	return host + "/" + path
}

// HostOf extracts the lowercase host name from a remote URL. Credential
// lookup is keyed by host.
func HostOf(rawURL string) string {
	host, _ := splitHostPath(rawURL)
	return strings.ToLower(host)
}

func splitHostPath(rawURL string) (host, path string) {
	// Handle SSH shorthand: git@host:path
	if i := strings.Index(rawURL, "@"); i >= 0 && !strings.Contains(rawURL[:i], "://") {
		rest := rawURL[i+1:]
		if colonIdx := strings.Index(rest, ":"); colonIdx >= 0 {
			return rest[:colonIdx], rest[colonIdx+1:]
		}
		return "", ""
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", rawURL
	}
	return parsed.Hostname(), strings.TrimPrefix(parsed.Path, "/")
}

// SPDX-License-Identifier: MIT
package gitx

import (
	"context"
	"errors"
	"strings"

	"github.com/skaphos/notesync/internal/model"
)

var (
	// ErrAuthFailure marks authentication/authorization failures.
	ErrAuthFailure = errors.New("git auth error")
	// ErrNetworkFailure marks network/transport failures.
	ErrNetworkFailure = errors.New("git network error")
	// ErrNotARepository marks operations against a directory with no
	// readable repository metadata store.
	ErrNotARepository = errors.New("not a git repository")
	// ErrMissingRemoteRef marks missing upstream/ref/remote failures.
	ErrMissingRemoteRef = errors.New("git missing remote ref")
	// ErrPushRejected marks a push the remote refused because it has
	// diverged from the local branch.
	ErrPushRejected = errors.New("git push rejected")
	// ErrNothingToCommit marks a commit attempt with an empty index.
	// Callers treat it as success with no new revision.
	ErrNothingToCommit = errors.New("nothing to commit")
)

// Classify maps git/process errors onto the engine's failure taxonomy.
// Typed sentinel errors win; the lowercase substring heuristics below are
// a fallback for backends that only surface human-readable text.
func Classify(err error) model.FailureKind {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrAuthFailure):
		return model.FailAuth
	case errors.Is(err, ErrNetworkFailure):
		return model.FailNoNetwork
	case errors.Is(err, ErrNotARepository):
		return model.FailNotARepository
	case errors.Is(err, ErrPushRejected):
		return model.FailConflict
	case errors.Is(err, context.DeadlineExceeded):
		return model.FailNoNetwork
	case errors.Is(err, context.Canceled):
		return model.FailUnknown
	}

	msg := strings.ToLower(err.Error())
	// Heuristics are intentionally broad to keep categories actionable for users.
	switch {
	case containsAny(msg, "authentication failed", "permission denied", "access denied", "invalid credentials", "could not read username", "could not read password", "publickey", "401", "403"):
		return model.FailAuth
	case containsAny(msg, "could not resolve host", "network is unreachable", "connection refused", "connection timed out", "failed to connect", "unable to access", "unable to connect", "temporary failure in name resolution", "tls handshake timeout", "timed out"):
		return model.FailNoNetwork
	case containsAny(msg, "not a git repository", "does not appear to be a git repository"):
		return model.FailNotARepository
	case containsAny(msg, "[rejected]", "non-fast-forward", "fetch first", "would be overwritten", "needs merge"):
		return model.FailConflict
	default:
		return model.FailUnknown
	}
}

func containsAny(msg string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}

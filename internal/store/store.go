// Package store defines the Repository Store primitives the sync engine
// consumes, plus the default git-CLI implementation. Any backend that
// satisfies Store is acceptable; tests substitute a mock.
package store

import (
	"context"

	"github.com/skaphos/notesync/internal/model"
)

// Identity is the author identity recorded on commits the engine creates.
type Identity struct {
	Name  string
	Email string
}

// Handle is an opaque reference to an opened local repository. It is
// valid only while the directory still contains a readable repository
// metadata store; stale handles surface as NotARepository failures on
// the next primitive call.
type Handle struct {
	// Path is the repository root directory.
	Path string
}

// Store is the set of version-control primitives the engine drives.
// Implementations must report failures as errors classifiable by
// gitx.Classify: typed sentinels where the backend can supply them,
// raw text otherwise.
type Store interface {
	// Open validates that path is a repository root and returns a handle.
	Open(ctx context.Context, path string) (Handle, error)
	// CurrentRevision returns the revision HEAD points at. Empty for a
	// repository with no commits.
	CurrentRevision(ctx context.Context, h Handle) (model.RevisionID, error)
	// RemoteBranchRevision returns the fetched revision of the first
	// branch candidate that exists on the remote, in candidate order.
	RemoteBranchRevision(ctx context.Context, h Handle, candidates []string) (model.RevisionID, string, error)
	// Fetch contacts the remote and updates remote-tracking refs.
	Fetch(ctx context.Context, h Handle, cred model.Credential) error
	// HardResetTo makes the working tree exactly match rev.
	HardResetTo(ctx context.Context, h Handle, rev model.RevisionID) error
	// WorktreeHasChanges reports uncommitted modifications, including
	// untracked files.
	WorktreeHasChanges(ctx context.Context, h Handle) (bool, error)
	// StageAll stages every change under the root, minus exclude globs.
	StageAll(ctx context.Context, h Handle, excludes []string) error
	// Commit records the staged tree. An empty index returns
	// gitx.ErrNothingToCommit, which callers treat as success.
	Commit(ctx context.Context, h Handle, message string, author Identity) (model.RevisionID, error)
	// Push sends branch to the same-named remote branch. A divergence
	// rejection is gitx.ErrPushRejected.
	Push(ctx context.Context, h Handle, branch string, cred model.Credential) error
	// Clone creates a fresh checkout of remoteURL at destPath.
	Clone(ctx context.Context, remoteURL, destPath string, cred model.Credential) error
	// RemoteURL returns the fetch URL of the tracked remote, for
	// credential lookup by host.
	RemoteURL(ctx context.Context, h Handle) (string, error)
	// ChangedFileCount is a best-effort count of files differing between
	// two revisions. Errors degrade to zero.
	ChangedFileCount(ctx context.Context, h Handle, from, to model.RevisionID) int
}

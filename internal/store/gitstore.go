package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/skaphos/notesync/internal/gitx"
	"github.com/skaphos/notesync/internal/model"
)

// DefaultRemote is the remote name the engine tracks.
const DefaultRemote = "origin"

// GitStore implements Store using the git CLI via gitx.
type GitStore struct {
	Runner gitx.Runner
	// Remote is the tracked remote name. Defaults to origin.
	Remote string
}

// NewGitStore builds a GitStore with the default runner when none is given.
func NewGitStore(runner gitx.Runner) *GitStore {
	if runner == nil {
		runner = &gitx.GitRunner{}
	}
	return &GitStore{Runner: runner, Remote: DefaultRemote}
}

func (g *GitStore) remote() string {
	if g.Remote == "" {
		return DefaultRemote
	}
	return g.Remote
}

func (g *GitStore) Open(ctx context.Context, path string) (Handle, error) {
	if !gitx.IsRepo(ctx, g.Runner, path) {
		return Handle{}, fmt.Errorf("open %s: %w", path, gitx.ErrNotARepository)
	}
	return Handle{Path: path}, nil
}

func (g *GitStore) CurrentRevision(ctx context.Context, h Handle) (model.RevisionID, error) {
	return gitx.CurrentRevision(ctx, g.Runner, h.Path)
}

func (g *GitStore) RemoteBranchRevision(ctx context.Context, h Handle, candidates []string) (model.RevisionID, string, error) {
	return gitx.RemoteBranchRevision(ctx, g.Runner, h.Path, g.remote(), candidates)
}

func (g *GitStore) Fetch(ctx context.Context, h Handle, cred model.Credential) error {
	return gitx.Fetch(ctx, g.Runner, h.Path, g.remote(), cred)
}

func (g *GitStore) HardResetTo(ctx context.Context, h Handle, rev model.RevisionID) error {
	return gitx.HardResetTo(ctx, g.Runner, h.Path, rev)
}

func (g *GitStore) WorktreeHasChanges(ctx context.Context, h Handle) (bool, error) {
	return gitx.WorktreeHasChanges(ctx, g.Runner, h.Path)
}

func (g *GitStore) StageAll(ctx context.Context, h Handle, excludes []string) error {
	return gitx.StageAll(ctx, g.Runner, h.Path, excludes)
}

func (g *GitStore) Commit(ctx context.Context, h Handle, message string, author Identity) (model.RevisionID, error) {
	return gitx.Commit(ctx, g.Runner, h.Path, message, author.Name, author.Email)
}

func (g *GitStore) Push(ctx context.Context, h Handle, branch string, cred model.Credential) error {
	return gitx.Push(ctx, g.Runner, h.Path, g.remote(), branch, cred)
}

func (g *GitStore) Clone(ctx context.Context, remoteURL, destPath string, cred model.Credential) error {
	return gitx.Clone(ctx, g.Runner, remoteURL, destPath, cred)
}

func (g *GitStore) RemoteURL(ctx context.Context, h Handle) (string, error) {
	out, err := g.Runner.Run(ctx, h.Path, "remote", "get-url", g.remote())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (g *GitStore) ChangedFileCount(ctx context.Context, h Handle, from, to model.RevisionID) int {
	return gitx.ChangedFileCount(ctx, g.Runner, h.Path, from, to)
}

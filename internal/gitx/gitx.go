// Package gitx provides helpers for executing git commands and parsing
// their output. It shells out to the installed git binary.
package gitx

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/skaphos/notesync/internal/model"
)

// Credential environment variable names consumed by the injected
// credential helper. The helper answers exactly one challenge; git runs
// with terminal prompts disabled, so a second challenge within the same
// operation fails instead of looping.
const (
	envUsername = "NOTESYNC_GIT_USERNAME"
	envSecret   = "NOTESYNC_GIT_SECRET"
)

const credentialHelper = `!f() { echo "username=$` + envUsername + `"; echo "password=$` + envSecret + `"; }; f`

// Runner executes git commands in a given repo directory.
// This interface allows mocking in tests.
type Runner interface {
	// Run executes a git command in the given directory and returns
	// combined stdout/stderr output.
	Run(ctx context.Context, dir string, args ...string) (string, error)
	// RunEnv behaves like Run with extra environment variables appended
	// to the process environment.
	RunEnv(ctx context.Context, dir string, env []string, args ...string) (string, error)
}

// GitRunner is the default Runner implementation that shells out to git.
type GitRunner struct {
	// GitBin is the path to the git binary. Defaults to "git".
	GitBin string
}

// Run executes a git command.
func (g *GitRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	return g.RunEnv(ctx, dir, nil, args...)
}

// RunEnv executes a git command with extra environment variables.
func (g *GitRunner) RunEnv(ctx context.Context, dir string, env []string, args ...string) (string, error) {
	bin := g.GitBin
	if bin == "" {
		bin = "git"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	out, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(out))
	if err != nil {
		return text, fmt.Errorf("git %s: %w: %s", firstArg(args), err, text)
	}
	return text, nil
}

func firstArg(args []string) string {
	for _, a := range args {
		if !strings.HasPrefix(a, "-") {
			return a
		}
	}
	return ""
}

// credentialArgs returns the git config flags and environment for a
// single authenticated remote operation.
func credentialArgs(cred model.Credential) (flags, env []string) {
	flags = []string{"-c", "credential.helper=", "-c", "credential.helper=" + credentialHelper}
	env = []string{
		"GIT_TERMINAL_PROMPT=0",
		envUsername + "=" + cred.Username,
		envSecret + "=" + cred.Secret,
	}
	return flags, env
}

// IsRepo checks whether the given path is inside a git working tree.
func IsRepo(ctx context.Context, r Runner, dir string) bool {
	out, err := r.Run(ctx, dir, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) == "true"
}

// CurrentRevision returns the revision HEAD points at. A repository with
// no commits yet reports an empty revision and no error.
func CurrentRevision(ctx context.Context, r Runner, dir string) (model.RevisionID, error) {
	out, err := r.Run(ctx, dir, "rev-parse", "--verify", "--quiet", "HEAD")
	if err != nil {
		// An unborn branch has no HEAD commit; that is not a failure.
		if strings.TrimSpace(out) == "" {
			return "", nil
		}
		return "", err
	}
	return model.RevisionID(strings.TrimSpace(out)), nil
}

// RemoteBranchRevision returns the fetched revision of the first remote
// branch candidate that exists, trying candidates strictly in order.
func RemoteBranchRevision(ctx context.Context, r Runner, dir, remote string, candidates []string) (model.RevisionID, string, error) {
	for _, branch := range candidates {
		ref := "refs/remotes/" + remote + "/" + branch
		out, err := r.Run(ctx, dir, "rev-parse", "--verify", "--quiet", ref)
		if err != nil {
			continue
		}
		if rev := strings.TrimSpace(out); rev != "" {
			return model.RevisionID(rev), branch, nil
		}
	}
	return "", "", fmt.Errorf("no remote branch found (tried %s): %w", strings.Join(candidates, ", "), ErrMissingRemoteRef)
}

// Fetch contacts the remote with the given credential and updates
// remote-tracking refs. Submodule recursion stays disabled.
func Fetch(ctx context.Context, r Runner, dir string, remote string, cred model.Credential) error {
	flags, env := credentialArgs(cred)
	args := append(flags, "-c", "fetch.recurseSubmodules=false", "fetch", remote, "--prune", "--no-recurse-submodules")
	_, err := r.RunEnv(ctx, dir, env, args...)
	return err
}

// HardResetTo makes the working tree exactly match the given revision.
func HardResetTo(ctx context.Context, r Runner, dir string, rev model.RevisionID) error {
	_, err := r.Run(ctx, dir, "reset", "--hard", string(rev))
	return err
}

// WorktreeHasChanges reports whether the working tree differs from HEAD,
// including untracked files.
func WorktreeHasChanges(ctx context.Context, r Runner, dir string) (bool, error) {
	out, err := r.Run(ctx, dir, "status", "--porcelain=v1")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// StageAll stages every change under the repository root. Exclude
// patterns are applied as pathspec excludes so matching files never
// enter the index.
func StageAll(ctx context.Context, r Runner, dir string, excludes []string) error {
	args := []string{"add", "--all", "--", "."}
	for _, pattern := range excludes {
		if strings.TrimSpace(pattern) == "" {
			continue
		}
		args = append(args, ":(glob,exclude)"+pattern)
	}
	_, err := r.Run(ctx, dir, args...)
	return err
}

// HasStagedChanges reports whether anything is actually staged, so a
// commit with an empty index can be skipped instead of failing.
func HasStagedChanges(ctx context.Context, r Runner, dir string) (bool, error) {
	out, err := r.Run(ctx, dir, "status", "--porcelain=v1")
	if err != nil {
		return false, err
	}
	return ParsePorcelainStatus(out).Staged > 0, nil
}

// Commit records the staged tree as a new commit and returns its
// revision. Committing with nothing staged returns ErrNothingToCommit.
func Commit(ctx context.Context, r Runner, dir, message, authorName, authorEmail string) (model.RevisionID, error) {
	staged, err := HasStagedChanges(ctx, r, dir)
	if err != nil {
		return "", err
	}
	if !staged {
		return "", ErrNothingToCommit
	}
	args := []string{
		"-c", "user.name=" + authorName,
		"-c", "user.email=" + authorEmail,
		"commit", "-m", message,
	}
	if _, err := r.Run(ctx, dir, args...); err != nil {
		return "", err
	}
	return CurrentRevision(ctx, r, dir)
}

// Push sends the branch to the remote using a same-name refspec.
// A non-fast-forward rejection is reported as ErrPushRejected so callers
// can distinguish it from transport failures.
func Push(ctx context.Context, r Runner, dir, remote, branch string, cred model.Credential) error {
	flags, env := credentialArgs(cred)
	refspec := "refs/heads/" + branch + ":refs/heads/" + branch
	args := append(flags, "push", remote, refspec)
	out, err := r.RunEnv(ctx, dir, env, args...)
	if err != nil {
		if isRejectedPush(out + " " + err.Error()) {
			return fmt.Errorf("push %s: %w", refspec, ErrPushRejected)
		}
		return err
	}
	return nil
}

// Clone creates a fresh checkout of the remote at destDir.
func Clone(ctx context.Context, r Runner, remoteURL, destDir string, cred model.Credential) error {
	flags, env := credentialArgs(cred)
	args := append(flags, "clone", remoteURL, destDir)
	_, err := r.RunEnv(ctx, "", env, args...)
	return err
}

// ChangedFileCount returns the number of files that differ between two
// revisions. Best-effort; errors degrade to zero.
func ChangedFileCount(ctx context.Context, r Runner, dir string, from, to model.RevisionID) int {
	if from == "" || to == "" || from == to {
		return 0
	}
	out, err := r.Run(ctx, dir, "diff", "--name-only", string(from), string(to))
	if err != nil {
		return 0
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return 0
	}
	return len(strings.Split(out, "\n"))
}

func isRejectedPush(text string) bool {
	lower := strings.ToLower(text)
	for _, needle := range []string{"[rejected]", "non-fast-forward", "fetch first", "failed to push some refs"} {
		if strings.Contains(lower, needle) {
			return true
		}
	}
	return false
}

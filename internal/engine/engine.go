// Package engine orchestrates synchronization of a local note repository
// against a single remote branch. It drives the fetch → compare →
// reconcile → stage → commit → push sequence, classifies failures, and
// guarantees rollback on partial failure.
package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/skaphos/notesync/internal/config"
	"github.com/skaphos/notesync/internal/credentials"
	"github.com/skaphos/notesync/internal/gitx"
	"github.com/skaphos/notesync/internal/model"
	"github.com/skaphos/notesync/internal/store"
	"github.com/skaphos/notesync/internal/synclog"
)

// branchCandidates is the fixed remote branch probe order. First match
// wins; the order is a compatibility contract, not a configuration knob.
var branchCandidates = []string{"main", "master"}

// Engine is the sync orchestrator. One Engine serves many repository
// roots; each root runs at most one operation at a time.
type Engine struct {
	store store.Store
	creds credentials.Provider
	cfg   *config.Config

	mu       sync.Mutex
	inflight map[string]struct{}
}

// New creates an Engine. A nil store gets the default git CLI store; a
// nil provider never supplies credentials (anonymous remotes only).
func New(st store.Store, creds credentials.Provider, cfg *config.Config) *Engine {
	if st == nil {
		st = store.NewGitStore(nil)
	}
	if creds == nil {
		creds = credentials.Static{}
	}
	if cfg == nil {
		defaults := config.DefaultConfig()
		cfg = &defaults
	}
	return &Engine{
		store:    st,
		creds:    creds,
		cfg:      cfg,
		inflight: make(map[string]struct{}),
	}
}

// SyncOptions configures a single sync call.
type SyncOptions struct {
	// Message is the commit message for locally staged changes.
	Message string
	// Ordering overrides the configured reconciliation ordering.
	Ordering config.Ordering
	// Sink receives log entries synchronously during the call.
	Sink synclog.Sink
}

// SyncReport is the terminal result of one sync call: exactly one
// outcome plus the full ordered log.
type SyncReport struct {
	Outcome model.SyncOutcome
	Log     []model.LogEntry
}

// CloneReport is the terminal result of one clone call.
type CloneReport struct {
	Outcome model.CloneOutcome
	Log     []model.LogEntry
}

// Sync reconciles the repository at repoRoot with its remote. Every
// failure is captured and classified into the outcome; errors never
// escape as opaque panics or raw store failures.
func (e *Engine) Sync(ctx context.Context, repoRoot string, opts SyncOptions) SyncReport {
	log := synclog.New(opts.Sink)

	root := cleanRoot(repoRoot)
	if !e.acquire(root) {
		log.Error("sync already in progress for " + root)
		return SyncReport{
			Outcome: model.Failed(model.FailBusy, "operation already in progress for "+root),
			Log:     log.Snapshot(),
		}
	}
	defer e.release(root)

	ctx, cancel := e.callContext(ctx)
	defer cancel()

	outcome := e.syncLocked(ctx, root, opts, log)
	if !outcome.OK() {
		log.Error(string(outcome.Failure) + ": " + outcome.Detail)
	}
	return SyncReport{Outcome: outcome, Log: log.Snapshot()}
}

func (e *Engine) syncLocked(ctx context.Context, root string, opts SyncOptions, log *synclog.Log) model.SyncOutcome {
	h, err := e.store.Open(ctx, root)
	if err != nil {
		return model.Failed(gitx.Classify(err), err.Error())
	}

	cred, err := e.credentialFor(ctx, h, log)
	if err != nil {
		return model.Failed(model.FailUnknown, err.Error())
	}

	log.Step(model.PhaseFetch, "fetching remote", true)
	if err := e.store.Fetch(ctx, h, cred); err != nil {
		log.Step(model.PhaseFetch, "fetch failed: "+err.Error(), false)
		return model.Failed(gitx.Classify(err), err.Error())
	}

	remoteRev, branch, err := e.store.RemoteBranchRevision(ctx, h, branchCandidates)
	if err != nil {
		if errors.Is(err, gitx.ErrMissingRemoteRef) {
			// Brand-new remote with no branch yet. Push will create it.
			remoteRev, branch = "", branchCandidates[0]
			log.Info("remote has no branch yet, will create " + branch)
		} else {
			return model.Failed(gitx.Classify(err), err.Error())
		}
	}

	localRev, err := e.store.CurrentRevision(ctx, h)
	if err != nil {
		return model.Failed(gitx.Classify(err), err.Error())
	}

	dirty, err := e.store.WorktreeHasChanges(ctx, h)
	if err != nil {
		return model.Failed(gitx.Classify(err), err.Error())
	}

	// Idempotence: nothing changed on either side, stop before any write.
	if localRev != "" && localRev == remoteRev && !dirty {
		log.Info("already up to date at " + localRev.Short())
		return model.UpToDate(localRev)
	}

	ordering := opts.Ordering
	if ordering == "" {
		ordering = e.cfg.Ordering
	}
	switch ordering {
	case config.OrderingResetFirst:
		return e.syncResetFirst(ctx, h, localRev, remoteRev, dirty, log)
	default:
		return e.syncCommitFirst(ctx, h, opts.Message, cred, branch, localRev, remoteRev, dirty, log)
	}
}

// syncCommitFirst stages and commits local changes, pushes, and on a
// divergence rejection resets to the remote and retries the push exactly
// once. Local commits survive a later reset in the repository's history,
// so no pre-reset dirty check is needed on this path.
func (e *Engine) syncCommitFirst(ctx context.Context, h store.Handle, message string, cred model.Credential, branch string, localRev, remoteRev model.RevisionID, dirty bool, log *synclog.Log) model.SyncOutcome {
	if dirty {
		if err := e.store.StageAll(ctx, h, e.cfg.Exclude); err != nil {
			log.Step(model.PhaseMerge, "staging failed: "+err.Error(), false)
			return model.Failed(gitx.Classify(err), err.Error())
		}
		newRev, err := e.store.Commit(ctx, h, commitMessage(message), store.Identity{
			Name:  e.cfg.Author.Name,
			Email: e.cfg.Author.Email,
		})
		switch {
		case errors.Is(err, gitx.ErrNothingToCommit):
			log.Info("nothing to commit after staging")
		case err != nil:
			log.Step(model.PhaseMerge, "commit failed: "+err.Error(), false)
			return model.Failed(gitx.Classify(err), err.Error())
		default:
			log.Step(model.PhaseMerge, "committed "+newRev.Short(), true)
		}
	}

	headRev, err := e.store.CurrentRevision(ctx, h)
	if err != nil {
		return model.Failed(gitx.Classify(err), err.Error())
	}
	if headRev != "" && headRev == remoteRev {
		log.Info("already up to date at " + headRev.Short())
		return model.UpToDate(headRev)
	}

	pushErr := e.store.Push(ctx, h, branch, cred)
	if pushErr == nil {
		log.Step(model.PhasePush, "pushed "+branch, true)
		return e.updatedOutcome(ctx, h, localRev)
	}
	if !errors.Is(pushErr, gitx.ErrPushRejected) {
		log.Step(model.PhasePush, "push failed: "+pushErr.Error(), false)
		return model.Failed(gitx.Classify(pushErr), pushErr.Error())
	}

	// Remote diverged under us. Mirror it, then retry the push once.
	log.Step(model.PhasePush, "push rejected, remote has diverged", false)
	if err := e.store.Fetch(ctx, h, cred); err != nil {
		log.Step(model.PhaseFetch, "re-fetch failed: "+err.Error(), false)
		return model.Failed(gitx.Classify(err), err.Error())
	}
	freshRev, _, err := e.store.RemoteBranchRevision(ctx, h, branchCandidates)
	if err != nil {
		return model.Failed(gitx.Classify(err), err.Error())
	}
	if err := e.store.HardResetTo(ctx, h, freshRev); err != nil {
		log.Step(model.PhaseMerge, "reset to remote failed: "+err.Error(), false)
		return model.Failed(gitx.Classify(err), err.Error())
	}
	log.Step(model.PhaseMerge, "reset local to remote "+freshRev.Short(), true)

	if err := e.store.Push(ctx, h, branch, cred); err != nil {
		log.Step(model.PhasePush, "push retry failed: "+err.Error(), false)
		if errors.Is(err, gitx.ErrPushRejected) {
			return model.Failed(model.FailConflict, err.Error())
		}
		return model.Failed(gitx.Classify(err), err.Error())
	}
	log.Step(model.PhasePush, "pushed "+branch+" after reset", true)
	return e.updatedOutcome(ctx, h, localRev)
}

// syncResetFirst makes the local tree mirror the remote revision. It
// refuses to discard uncommitted work and rolls the checkout back when
// the reset itself fails partway.
func (e *Engine) syncResetFirst(ctx context.Context, h store.Handle, localRev, remoteRev model.RevisionID, dirty bool, log *synclog.Log) model.SyncOutcome {
	if remoteRev == "" || localRev == remoteRev {
		log.Info("local already mirrors remote")
		return model.UpToDate(localRev)
	}
	if dirty {
		log.Step(model.PhaseMerge, "uncommitted local changes would be lost by reset", false)
		return model.Failed(model.FailConflict, "uncommitted local changes present; resolve or commit before syncing")
	}

	// localRev is recorded before the attempt so a failed reset can be
	// rolled back to a known-good checkout.
	if err := e.store.HardResetTo(ctx, h, remoteRev); err != nil {
		log.Step(model.PhaseMerge, "reset to "+remoteRev.Short()+" failed: "+err.Error(), false)
		if localRev != "" {
			if rbErr := e.store.HardResetTo(ctx, h, localRev); rbErr != nil {
				log.Step(model.PhaseMerge, "rollback to "+localRev.Short()+" failed: "+rbErr.Error(), false)
			} else {
				log.Step(model.PhaseMerge, "rolled back to "+localRev.Short(), true)
			}
		}
		return model.Failed(gitx.Classify(err), err.Error())
	}
	log.Step(model.PhaseMerge, "reset local to remote "+remoteRev.Short(), true)
	files := e.store.ChangedFileCount(ctx, h, localRev, remoteRev)
	return model.Updated(localRev, remoteRev, files)
}

// CloneOptions configures a clone call.
type CloneOptions struct {
	Sink synclog.Sink
}

// Clone creates a fresh checkout of remoteURL at destPath. The same
// per-root serialization and failure taxonomy as Sync applies.
func (e *Engine) Clone(ctx context.Context, remoteURL, destPath string, opts CloneOptions) CloneReport {
	log := synclog.New(opts.Sink)

	root := cleanRoot(destPath)
	if !e.acquire(root) {
		log.Error("operation already in progress for " + root)
		return CloneReport{
			Outcome: model.CloneOutcome{OK: false, Failure: model.FailBusy, Detail: "operation already in progress for " + root},
			Log:     log.Snapshot(),
		}
	}
	defer e.release(root)

	ctx, cancel := e.callContext(ctx)
	defer cancel()

	cred, _, err := e.creds.Get(gitx.HostOf(remoteURL))
	if err != nil {
		log.Error("credential lookup failed: " + err.Error())
		return CloneReport{
			Outcome: model.CloneOutcome{OK: false, Failure: model.FailUnknown, Detail: err.Error()},
			Log:     log.Snapshot(),
		}
	}

	log.Step(model.PhaseFetch, "cloning "+remoteURL, true)
	if err := e.store.Clone(ctx, remoteURL, root, cred); err != nil {
		log.Step(model.PhaseFetch, "clone failed: "+err.Error(), false)
		return CloneReport{
			Outcome: model.CloneOutcome{OK: false, Failure: gitx.Classify(err), Detail: err.Error()},
			Log:     log.Snapshot(),
		}
	}

	var rev model.RevisionID
	if h, err := e.store.Open(ctx, root); err == nil {
		rev, _ = e.store.CurrentRevision(ctx, h)
	}
	log.Step(model.PhaseFetch, "cloned at "+rev.Short(), true)
	return CloneReport{
		Outcome: model.CloneOutcome{OK: true, Revision: rev},
		Log:     log.Snapshot(),
	}
}

func (e *Engine) updatedOutcome(ctx context.Context, h store.Handle, before model.RevisionID) model.SyncOutcome {
	after, err := e.store.CurrentRevision(ctx, h)
	if err != nil {
		return model.Failed(gitx.Classify(err), err.Error())
	}
	if after == before {
		return model.UpToDate(after)
	}
	files := e.store.ChangedFileCount(ctx, h, before, after)
	return model.Updated(before, after, files)
}

// credentialFor resolves the credential for the repository's remote
// host. Absence is not an error; the remote decides whether anonymous
// access suffices.
func (e *Engine) credentialFor(ctx context.Context, h store.Handle, log *synclog.Log) (model.Credential, error) {
	url, err := e.store.RemoteURL(ctx, h)
	if err != nil {
		return model.Credential{}, fmt.Errorf("resolve remote url: %w", err)
	}
	host := gitx.HostOf(url)
	cred, ok, err := e.creds.Get(host)
	if err != nil {
		return model.Credential{}, fmt.Errorf("credential lookup for %s: %w", host, err)
	}
	if !ok {
		log.Info("no credential configured for " + host + ", proceeding anonymously")
		return model.Credential{}, nil
	}
	log.Info("using credential " + cred.Redacted())
	return cred, nil
}

func (e *Engine) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := e.cfg.Defaults.TimeoutSeconds
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
}

// acquire claims the per-root operation slot. Staging and reset mutate
// shared on-disk state with no transactional isolation, so a second
// in-flight operation on the same root is rejected, never interleaved.
func (e *Engine) acquire(root string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inflight[root]; busy {
		return false
	}
	e.inflight[root] = struct{}{}
	return true
}

func (e *Engine) release(root string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inflight, root)
}

func cleanRoot(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		return filepath.Clean(root)
	}
	return abs
}

func commitMessage(message string) string {
	if message == "" {
		return "notesync: update notes"
	}
	return message
}

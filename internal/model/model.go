// Package model defines the core data types used throughout notesync.
package model

import "time"

// RevisionID is an immutable, globally unique identifier for a commit.
// Two RevisionIDs are equal iff they name the same snapshot of the tree.
type RevisionID string

// Short returns an abbreviated form suitable for human-facing output.
func (r RevisionID) Short() string {
	if len(r) > 8 {
		return string(r[:8])
	}
	return string(r)
}

// Credential is a username/secret pair for a remote host. It is supplied
// fresh per sync call and never cached by the engine. The secret must never
// be logged in full; use Redacted for anything user-facing.
type Credential struct {
	Username string
	Secret   string
}

// Redacted returns a display form that identifies the user without
// exposing the secret.
func (c Credential) Redacted() string {
	if c.Username == "" {
		return "<anonymous>"
	}
	return c.Username + ":****"
}

// FailureKind enumerates the coarse failure categories a sync or clone
// call can report.
type FailureKind string

const (
	FailNotARepository FailureKind = "not_a_repository"
	FailNoNetwork      FailureKind = "no_network"
	FailAuth           FailureKind = "auth_failed"
	FailConflict       FailureKind = "conflict"
	FailBusy           FailureKind = "busy"
	FailUnknown        FailureKind = "unknown"
)

// OutcomeKind is the terminal state of a sync call.
type OutcomeKind string

const (
	OutcomeUpToDate OutcomeKind = "up_to_date"
	OutcomeUpdated  OutcomeKind = "updated"
	OutcomeFailed   OutcomeKind = "failed"
)

// SyncOutcome is the single terminal result of one sync call.
type SyncOutcome struct {
	// Kind is the terminal outcome category.
	Kind OutcomeKind `json:"kind" yaml:"kind"`
	// Revision is the current revision for an up-to-date outcome.
	Revision RevisionID `json:"revision,omitempty" yaml:"revision,omitempty"`
	// From is the revision before the call for an updated outcome.
	From RevisionID `json:"from,omitempty" yaml:"from,omitempty"`
	// To is the revision after the call for an updated outcome.
	To RevisionID `json:"to,omitempty" yaml:"to,omitempty"`
	// FilesChanged is the number of files the update touched, when known.
	FilesChanged int `json:"files_changed,omitempty" yaml:"files_changed,omitempty"`
	// Failure is the failure category when Kind is OutcomeFailed.
	Failure FailureKind `json:"failure,omitempty" yaml:"failure,omitempty"`
	// Detail preserves the raw backend error text for display/debugging.
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// UpToDate builds an up-to-date outcome at the given revision.
func UpToDate(rev RevisionID) SyncOutcome {
	return SyncOutcome{Kind: OutcomeUpToDate, Revision: rev}
}

// Updated builds an updated outcome with before/after revisions.
func Updated(from, to RevisionID, filesChanged int) SyncOutcome {
	return SyncOutcome{Kind: OutcomeUpdated, From: from, To: to, FilesChanged: filesChanged}
}

// Failed builds a failed outcome with a category and raw detail.
func Failed(kind FailureKind, detail string) SyncOutcome {
	return SyncOutcome{Kind: OutcomeFailed, Failure: kind, Detail: detail}
}

// OK reports whether the outcome is a success (up to date or updated).
func (o SyncOutcome) OK() bool { return o.Kind != OutcomeFailed }

// CloneOutcome is the terminal result of one clone call.
type CloneOutcome struct {
	// OK is true when the clone completed and the checkout exists.
	OK bool `json:"ok" yaml:"ok"`
	// Revision is the checked-out revision on success.
	Revision RevisionID `json:"revision,omitempty" yaml:"revision,omitempty"`
	// Failure is the failure category when OK is false.
	Failure FailureKind `json:"failure,omitempty" yaml:"failure,omitempty"`
	// Detail preserves the raw backend error text.
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// LogPhase labels which stage of a sync produced a log entry.
type LogPhase string

const (
	PhaseFetch LogPhase = "fetch"
	PhaseMerge LogPhase = "merge"
	PhasePush  LogPhase = "push"
	PhaseInfo  LogPhase = "info"
	PhaseError LogPhase = "error"
)

// LogEntry is one append-only record in the per-invocation sync log.
type LogEntry struct {
	// At is the timestamp when the entry was appended.
	At time.Time `json:"at" yaml:"at"`
	// Phase labels the stage that produced the entry.
	Phase LogPhase `json:"phase" yaml:"phase"`
	// Message is the human-readable entry text.
	Message string `json:"message" yaml:"message"`
	// Success is nil for informational entries, otherwise the step result.
	Success *bool `json:"success,omitempty" yaml:"success,omitempty"`
}

// RepoRoot is the result of resolving a path to its nearest enclosing
// repository root. Derived, never persisted; recompute on every call.
type RepoRoot struct {
	// Root is the absolute path of the innermost enclosing repository.
	Root string `json:"root" yaml:"root"`
	// Rel is the path of the original argument relative to Root.
	Rel string `json:"rel" yaml:"rel"`
}

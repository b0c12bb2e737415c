package engine_test

import (
	"context"
	"errors"
	"fmt"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/notesync/internal/config"
	"github.com/skaphos/notesync/internal/credentials"
	"github.com/skaphos/notesync/internal/engine"
	"github.com/skaphos/notesync/internal/gitx"
	"github.com/skaphos/notesync/internal/model"
	"github.com/skaphos/notesync/internal/synclog"
)

func newEngine(m *mockStore, ordering config.Ordering) *engine.Engine {
	cfg := config.DefaultConfig()
	cfg.Ordering = ordering
	cfg.Defaults.TimeoutSeconds = 0
	creds := credentials.Static{
		"github.com": {Username: "me", Secret: "tok"},
	}
	return engine.New(m, creds, &cfg)
}

func writes(calls []string) []string {
	var out []string
	for _, c := range calls {
		if c == "stage-all" || c == "commit" || strings.HasPrefix(c, "push:") || strings.HasPrefix(c, "hard-reset:") {
			out = append(out, c)
		}
	}
	return out
}

var _ = Describe("Engine.Sync", func() {
	It("reports up to date when local equals remote and the tree is clean", func() {
		m := newMockStore()
		m.localRev = "A"
		m.branches["main"] = "A"

		report := newEngine(m, config.OrderingCommitFirst).Sync(context.Background(), "/vault", engine.SyncOptions{})
		Expect(report.Outcome.Kind).To(Equal(model.OutcomeUpToDate))
		Expect(report.Outcome.Revision).To(Equal(model.RevisionID("A")))
	})

	It("is idempotent: a repeated no-change sync performs no writes", func() {
		m := newMockStore()
		m.localRev = "A"
		m.branches["main"] = "A"
		eng := newEngine(m, config.OrderingCommitFirst)

		first := eng.Sync(context.Background(), "/vault", engine.SyncOptions{})
		second := eng.Sync(context.Background(), "/vault", engine.SyncOptions{})
		Expect(first.Outcome.Kind).To(Equal(model.OutcomeUpToDate))
		Expect(second.Outcome.Kind).To(Equal(model.OutcomeUpToDate))
		Expect(writes(m.callNames())).To(BeEmpty())
	})

	It("commits and pushes a new local file", func() {
		m := newMockStore()
		m.localRev = "A"
		m.branches["main"] = "A"
		m.dirty = true

		report := newEngine(m, config.OrderingCommitFirst).Sync(context.Background(), "/vault", engine.SyncOptions{Message: "add note"})
		Expect(report.Outcome.Kind).To(Equal(model.OutcomeUpdated))
		Expect(report.Outcome.From).To(Equal(model.RevisionID("A")))
		Expect(report.Outcome.To).To(Equal(model.RevisionID("commit-1")))
		// Convergence: the remote branch now holds the pushed revision.
		Expect(m.branches["main"]).To(Equal(model.RevisionID("commit-1")))
	})

	It("mirrors a remote that moved while local is clean (reset-first)", func() {
		m := newMockStore()
		m.localRev = "A"
		m.branches["main"] = "C"

		report := newEngine(m, config.OrderingResetFirst).Sync(context.Background(), "/vault", engine.SyncOptions{})
		Expect(report.Outcome.Kind).To(Equal(model.OutcomeUpdated))
		Expect(report.Outcome.From).To(Equal(model.RevisionID("A")))
		Expect(report.Outcome.To).To(Equal(model.RevisionID("C")))
		Expect(m.localRev).To(Equal(model.RevisionID("C")))
	})

	It("converges on the remote via reset and one push retry (commit-first)", func() {
		m := newMockStore()
		m.localRev = "A"
		m.branches["main"] = "C"
		m.rejectPushWhileDiverged = true

		report := newEngine(m, config.OrderingCommitFirst).Sync(context.Background(), "/vault", engine.SyncOptions{})
		Expect(report.Outcome.Kind).To(Equal(model.OutcomeUpdated))
		Expect(report.Outcome.From).To(Equal(model.RevisionID("A")))
		Expect(report.Outcome.To).To(Equal(model.RevisionID("C")))
		Expect(m.pushAttempts).To(Equal(2))
	})

	It("refuses to discard uncommitted changes (reset-first)", func() {
		m := newMockStore()
		m.localRev = "A"
		m.branches["main"] = "C"
		m.dirty = true

		report := newEngine(m, config.OrderingResetFirst).Sync(context.Background(), "/vault", engine.SyncOptions{})
		Expect(report.Outcome.Failure).To(Equal(model.FailConflict))
		// The working tree is untouched: no reset, no staging happened.
		Expect(writes(m.callNames())).To(BeEmpty())
		Expect(m.dirty).To(BeTrue())
	})

	It("rolls back to the prior revision when a reset fails", func() {
		m := newMockStore()
		m.localRev = "A"
		m.branches["main"] = "C"
		m.resetErr = errors.New("reset: disk full")

		report := newEngine(m, config.OrderingResetFirst).Sync(context.Background(), "/vault", engine.SyncOptions{})
		Expect(report.Outcome.Kind).To(Equal(model.OutcomeFailed))
		Expect(m.resetHistory).To(Equal([]model.RevisionID{"C", "A"}))
		Expect(m.localRev).To(Equal(model.RevisionID("A")))
	})

	It("attempts the push at most twice against an always-rejecting remote", func() {
		m := newMockStore()
		m.localRev = "A"
		m.branches["main"] = "C"
		m.rejectPushAlways = true

		report := newEngine(m, config.OrderingCommitFirst).Sync(context.Background(), "/vault", engine.SyncOptions{})
		Expect(report.Outcome.Failure).To(Equal(model.FailConflict))
		Expect(m.pushAttempts).To(Equal(2))
	})

	It("selects main when both main and master exist", func() {
		m := newMockStore()
		m.localRev = "A"
		m.branches["main"] = "A"
		m.branches["master"] = "old"
		m.dirty = true

		newEngine(m, config.OrderingCommitFirst).Sync(context.Background(), "/vault", engine.SyncOptions{})
		Expect(m.callNames()).To(ContainElement("push:main"))
	})

	It("falls back to master when only master exists", func() {
		m := newMockStore()
		m.localRev = "A"
		m.branches["master"] = "A"
		m.dirty = true

		newEngine(m, config.OrderingCommitFirst).Sync(context.Background(), "/vault", engine.SyncOptions{})
		Expect(m.callNames()).To(ContainElement("push:master"))
	})

	It("classifies a missing repository", func() {
		m := newMockStore()
		m.openErr = fmt.Errorf("open /vault: %w", gitx.ErrNotARepository)

		report := newEngine(m, config.OrderingCommitFirst).Sync(context.Background(), "/vault", engine.SyncOptions{})
		Expect(report.Outcome.Failure).To(Equal(model.FailNotARepository))
	})

	It("classifies fetch transport failures from raw text", func() {
		m := newMockStore()
		m.localRev = "A"
		m.fetchErr = errors.New("fatal: unable to access 'https://github.com/me/notes/': Could not resolve host")

		report := newEngine(m, config.OrderingCommitFirst).Sync(context.Background(), "/vault", engine.SyncOptions{})
		Expect(report.Outcome.Failure).To(Equal(model.FailNoNetwork))
	})

	It("classifies typed auth failures", func() {
		m := newMockStore()
		m.localRev = "A"
		m.fetchErr = fmt.Errorf("fetch: %w", gitx.ErrAuthFailure)

		report := newEngine(m, config.OrderingCommitFirst).Sync(context.Background(), "/vault", engine.SyncOptions{})
		Expect(report.Outcome.Failure).To(Equal(model.FailAuth))
	})

	It("rejects a second operation on the same root with Busy", func() {
		m := newMockStore()
		m.localRev = "A"
		m.branches["main"] = "A"
		m.fetchStarted = make(chan struct{}, 1)
		m.fetchRelease = make(chan struct{})
		eng := newEngine(m, config.OrderingCommitFirst)

		done := make(chan engine.SyncReport, 1)
		go func() {
			done <- eng.Sync(context.Background(), "/vault", engine.SyncOptions{})
		}()
		Eventually(m.fetchStarted).Should(Receive())

		second := eng.Sync(context.Background(), "/vault", engine.SyncOptions{})
		Expect(second.Outcome.Failure).To(Equal(model.FailBusy))

		close(m.fetchRelease)
		Eventually(done).Should(Receive())
	})

	It("allows concurrent operations on different roots", func() {
		m := newMockStore()
		m.localRev = "A"
		m.branches["main"] = "A"
		m.fetchStarted = make(chan struct{}, 1)
		m.fetchRelease = make(chan struct{})
		eng := newEngine(m, config.OrderingCommitFirst)

		first := make(chan engine.SyncReport, 1)
		second := make(chan engine.SyncReport, 1)
		go func() {
			first <- eng.Sync(context.Background(), "/vault-one", engine.SyncOptions{})
		}()
		Eventually(m.fetchStarted).Should(Receive())

		go func() {
			second <- eng.Sync(context.Background(), "/vault-two", engine.SyncOptions{})
		}()
		// The second root is admitted past the in-flight guard and
		// reaches its own fetch instead of being rejected.
		Eventually(m.fetchStarted).Should(Receive())

		close(m.fetchRelease)
		var a, b engine.SyncReport
		Eventually(first).Should(Receive(&a))
		Eventually(second).Should(Receive(&b))
		Expect(a.Outcome.Kind).To(Equal(model.OutcomeUpToDate))
		Expect(b.Outcome.Kind).To(Equal(model.OutcomeUpToDate))
	})

	It("invokes the sink in step order, all before the result returns", func() {
		m := newMockStore()
		m.localRev = "A"
		m.branches["main"] = "A"
		m.dirty = true

		var seen []string
		report := newEngine(m, config.OrderingCommitFirst).Sync(context.Background(), "/vault", engine.SyncOptions{
			Sink: func(message string, status synclog.Status) {
				seen = append(seen, message)
			},
		})
		Expect(report.Outcome.Kind).To(Equal(model.OutcomeUpdated))
		Expect(len(seen)).To(Equal(len(report.Log)))

		var fetchIdx, pushIdx int
		for i, msg := range seen {
			if strings.HasPrefix(msg, "fetching") {
				fetchIdx = i
			}
			if strings.HasPrefix(msg, "pushed") {
				pushIdx = i
			}
		}
		Expect(fetchIdx).To(BeNumerically("<", pushIdx))
	})

	It("never surfaces the secret in the log", func() {
		m := newMockStore()
		m.localRev = "A"
		m.branches["main"] = "A"

		report := newEngine(m, config.OrderingCommitFirst).Sync(context.Background(), "/vault", engine.SyncOptions{})
		for _, entry := range report.Log {
			Expect(entry.Message).NotTo(ContainSubstring("tok"))
		}
		Expect(report.Log).To(ContainElement(HaveField("Message", ContainSubstring("me:****"))))
	})
})

var _ = Describe("Engine.Clone", func() {
	It("clones and reports the checked-out revision", func() {
		m := newMockStore()
		m.localRev = "C"

		report := newEngine(m, config.OrderingCommitFirst).Clone(context.Background(), "https://github.com/me/notes.git", "/vault", engine.CloneOptions{})
		Expect(report.Outcome.OK).To(BeTrue())
		Expect(report.Outcome.Revision).To(Equal(model.RevisionID("C")))
	})

	It("classifies clone failures", func() {
		m := newMockStore()
		m.cloneErr = errors.New("fatal: Authentication failed for 'https://github.com/me/notes.git'")

		report := newEngine(m, config.OrderingCommitFirst).Clone(context.Background(), "https://github.com/me/notes.git", "/vault", engine.CloneOptions{})
		Expect(report.Outcome.OK).To(BeFalse())
		Expect(report.Outcome.Failure).To(Equal(model.FailAuth))
	})
})

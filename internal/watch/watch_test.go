package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/notesync/internal/engine"
	"github.com/skaphos/notesync/internal/model"
)

type recordingSyncer struct {
	mu    sync.Mutex
	roots []string
}

func (r *recordingSyncer) Sync(_ context.Context, repoRoot string, _ engine.SyncOptions) engine.SyncReport {
	r.mu.Lock()
	r.roots = append(r.roots, repoRoot)
	r.mu.Unlock()
	return engine.SyncReport{Outcome: model.UpToDate("A")}
}

func (r *recordingSyncer) synced() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.roots...)
}

func makeRepo(base, name string) string {
	root := filepath.Join(base, name)
	Expect(os.MkdirAll(filepath.Join(root, ".git"), 0o755)).To(Succeed())
	Expect(os.MkdirAll(filepath.Join(root, "notes"), 0o755)).To(Succeed())
	return root
}

var _ = Describe("Watcher", func() {
	var (
		base   string
		syncer *recordingSyncer
	)

	BeforeEach(func() {
		base = GinkgoT().TempDir()
		syncer = &recordingSyncer{}
	})

	newWatcher := func(opts Options) *Watcher {
		w, err := New(syncer, opts)
		Expect(err).NotTo(HaveOccurred())
		return w
	}

	It("rejects a nil syncer and empty roots", func() {
		_, err := New(nil, Options{Roots: []string{base}})
		Expect(err).To(HaveOccurred())
		_, err = New(syncer, Options{})
		Expect(err).To(HaveOccurred())
	})

	Describe("debounced flushing", func() {
		It("collapses an event burst into one sync after the quiet period", func() {
			repo := makeRepo(base, "vault")
			w := newWatcher(Options{Roots: []string{base}, Debounce: 2 * time.Second})

			clock := time.Now()
			w.now = func() time.Time { return clock }

			w.queue(repo)
			w.queue(repo)
			w.queue(repo)

			w.flushDue(context.Background())
			Expect(syncer.synced()).To(BeEmpty())

			clock = clock.Add(3 * time.Second)
			w.flushDue(context.Background())
			Expect(syncer.synced()).To(Equal([]string{repo}))

			// Nothing left queued.
			w.flushDue(context.Background())
			Expect(syncer.synced()).To(HaveLen(1))
		})

		It("keeps a root pending while events keep arriving", func() {
			repo := makeRepo(base, "vault")
			w := newWatcher(Options{Roots: []string{base}, Debounce: 2 * time.Second})

			clock := time.Now()
			w.now = func() time.Time { return clock }

			w.queue(repo)
			clock = clock.Add(time.Second)
			w.queue(repo) // timer reset
			clock = clock.Add(1500 * time.Millisecond)

			w.flushDue(context.Background())
			Expect(syncer.synced()).To(BeEmpty())
		})

		It("syncs independent repositories separately", func() {
			one := makeRepo(base, "one")
			two := makeRepo(base, "two")
			w := newWatcher(Options{Roots: []string{base}, Debounce: time.Second})

			clock := time.Now()
			w.now = func() time.Time { return clock }

			w.queue(one)
			w.queue(two)
			clock = clock.Add(2 * time.Second)
			w.flushDue(context.Background())
			Expect(syncer.synced()).To(ConsistOf(one, two))
		})
	})

	Describe("event filtering", func() {
		It("ignores repository metadata churn", func() {
			repo := makeRepo(base, "vault")
			w := newWatcher(Options{Roots: []string{base}, Debounce: time.Second})

			Expect(w.shouldIgnore(filepath.Join(repo, ".git", "index.lock"))).To(BeTrue())
			Expect(w.shouldIgnore(filepath.Join(repo, "notes", "todo.md"))).To(BeFalse())
		})

		It("honors exclude globs relative to the watched root", func() {
			repo := makeRepo(base, "vault")
			w := newWatcher(Options{
				Roots:    []string{base},
				Debounce: time.Second,
				Exclude:  []string{"**/.trash/**", "**/*.tmp"},
			})

			Expect(w.shouldIgnore(filepath.Join(repo, ".trash", "old.md"))).To(BeTrue())
			Expect(w.shouldIgnore(filepath.Join(repo, "notes", "draft.tmp"))).To(BeTrue())
			Expect(w.shouldIgnore(filepath.Join(repo, "notes", "draft.md"))).To(BeFalse())
		})

		It("attributes events to the enclosing repository root", func() {
			repo := makeRepo(base, "vault")
			w := newWatcher(Options{Roots: []string{base}, Debounce: time.Second})

			w.handleEvent(fsnotify.Event{
				Name: filepath.Join(repo, "notes", "todo.md"),
				Op:   fsnotify.Write,
			})
			w.mu.Lock()
			_, queued := w.pending[repo]
			w.mu.Unlock()
			Expect(queued).To(BeTrue())
		})

		It("drops events outside any repository", func() {
			w := newWatcher(Options{Roots: []string{base}, Debounce: time.Second})

			w.handleEvent(fsnotify.Event{
				Name: filepath.Join(base, "loose.md"),
				Op:   fsnotify.Write,
			})
			w.mu.Lock()
			pending := len(w.pending)
			w.mu.Unlock()
			Expect(pending).To(BeZero())
		})
	})

	Describe("Run", func() {
		It("stops when the context is cancelled", func() {
			makeRepo(base, "vault")
			w := newWatcher(Options{Roots: []string{base}, Debounce: 50 * time.Millisecond})

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- w.Run(ctx) }()

			// Give the watch loop a moment to establish itself.
			time.Sleep(50 * time.Millisecond)
			cancel()
			Eventually(done).Should(Receive(MatchError(context.Canceled)))
		})

		It("picks up a file write end to end", func() {
			repo := makeRepo(base, "vault")
			w := newWatcher(Options{Roots: []string{base}, Debounce: 20 * time.Millisecond})

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go func() { _ = w.Run(ctx) }()
			time.Sleep(100 * time.Millisecond)

			Expect(os.WriteFile(filepath.Join(repo, "notes", "todo.md"), []byte("- item\n"), 0o644)).To(Succeed())

			Eventually(syncer.synced, "3s", "20ms").Should(ContainElement(repo))
		})
	})
})

// Package watch runs the background sync daemon: it monitors note
// directories for file changes and triggers a debounced sync of the
// owning repository.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/skaphos/notesync/internal/engine"
	"github.com/skaphos/notesync/internal/resolver"
)

// Syncer is the slice of the engine the watcher drives.
type Syncer interface {
	Sync(ctx context.Context, repoRoot string, opts engine.SyncOptions) engine.SyncReport
}

// Options configures a Watcher.
type Options struct {
	// Roots are the directories to monitor. Each event is attributed to
	// the nearest enclosing repository root, which may be the root
	// itself or a repository nested below it.
	Roots []string
	// Debounce is how long a repository must stay quiet after its last
	// event before a sync fires. Rapid editor save bursts collapse into
	// a single sync.
	Debounce time.Duration
	// Exclude holds glob patterns for paths whose events are ignored.
	Exclude []string
	// Logger receives operational messages. Nil discards them.
	Logger *log.Logger
}

// Watcher monitors directories and schedules syncs. Create one with New
// and drive it with Run; a Watcher is single-use.
type Watcher struct {
	syncer   Syncer
	roots    []string
	debounce time.Duration
	exclude  []string
	logger   *log.Logger

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]time.Time // repo root -> last event time

	now func() time.Time
}

const defaultDebounce = 2 * time.Second

// New creates a Watcher. It does not touch the filesystem; Run does.
func New(syncer Syncer, opts Options) (*Watcher, error) {
	if syncer == nil {
		return nil, errors.New("watch: nil syncer")
	}
	if len(opts.Roots) == 0 {
		return nil, errors.New("watch: no roots to watch")
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(discard{}, "", 0)
	}
	return &Watcher{
		syncer:   syncer,
		roots:    opts.Roots,
		debounce: debounce,
		exclude:  opts.Exclude,
		logger:   logger,
		pending:  make(map[string]time.Time),
		now:      time.Now,
	}, nil
}

// Run watches until ctx is cancelled. It establishes recursive watches
// on every configured root, then loops converting file events into
// debounced sync calls.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()
	w.fsw = fsw

	for _, root := range w.roots {
		if err := w.addRecursive(root); err != nil {
			return fmt.Errorf("watch %s: %w", root, err)
		}
		w.logger.Printf("watching %s", root)
	}

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Printf("watch error: %v", err)

		case <-ticker.C:
			w.flushDue(ctx)
		}
	}
}

// addRecursive registers event watches on dir and every subdirectory.
// fsnotify watches are per-directory, not per-tree.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" || w.excluded(dir, path) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	if w.shouldIgnore(event.Name) {
		return
	}

	// New directories need their own watch before events inside them
	// can be seen.
	if event.Has(fsnotify.Create) {
		if root, ok := w.owningRoot(event.Name); ok && w.fsw != nil {
			_ = w.addRecursiveIfDir(event.Name)
			w.queue(root)
			return
		}
	}

	if root, ok := w.owningRoot(event.Name); ok {
		w.queue(root)
	}
}

func (w *Watcher) addRecursiveIfDir(path string) error {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return nil
	}
	return w.addRecursive(path)
}

// shouldIgnore filters repository metadata and excluded paths.
func (w *Watcher) shouldIgnore(path string) bool {
	slashed := filepath.ToSlash(path)
	if strings.Contains(slashed, "/.git/") || strings.HasSuffix(slashed, "/.git") {
		return true
	}
	for _, root := range w.roots {
		if !w.excluded(root, path) {
			continue
		}
		return true
	}
	return false
}

func (w *Watcher) excluded(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range w.exclude {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// owningRoot attributes an event path to its repository root.
func (w *Watcher) owningRoot(path string) (string, bool) {
	root, ok := resolver.FindRoot(path)
	if !ok {
		return "", false
	}
	return root.Root, true
}

// queue records a change for root, resetting its quiet timer.
func (w *Watcher) queue(root string) {
	w.mu.Lock()
	w.pending[root] = w.now()
	w.mu.Unlock()
}

// flushDue syncs every root whose quiet period has elapsed.
func (w *Watcher) flushDue(ctx context.Context) {
	now := w.now()

	w.mu.Lock()
	var due []string
	for root, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			due = append(due, root)
			delete(w.pending, root)
		}
	}
	w.mu.Unlock()

	for _, root := range due {
		w.logger.Printf("syncing %s", root)
		report := w.syncer.Sync(ctx, root, engine.SyncOptions{})
		switch {
		case report.Outcome.OK():
			w.logger.Printf("sync %s: %s", root, report.Outcome.Kind)
		default:
			w.logger.Printf("sync %s failed (%s): %s", root, report.Outcome.Failure, report.Outcome.Detail)
		}
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// Package synclog records the ordered, append-only log of one sync
// invocation. Entries are never mutated after append; a later entry
// never rewrites an earlier one's meaning.
package synclog

import (
	"sync"
	"time"

	"github.com/skaphos/notesync/internal/model"
)

// Status is the coarse state a sink receives per entry.
type Status string

const (
	StatusInfo    Status = "info"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Sink receives each entry synchronously, in append order, strictly
// before the call that produced it returns its final result.
type Sink func(message string, status Status)

// Log is one invocation's entry sequence. Safe for use from a single
// sync call; the mutex only guards snapshot readers.
type Log struct {
	mu      sync.Mutex
	entries []model.LogEntry
	sink    Sink
	now     func() time.Time
}

// New builds an empty log. The sink may be nil.
func New(sink Sink) *Log {
	return &Log{sink: sink, now: time.Now}
}

// Append records an entry and forwards it to the sink. Success is nil
// for purely informational entries.
func (l *Log) Append(phase model.LogPhase, message string, success *bool) {
	l.mu.Lock()
	l.entries = append(l.entries, model.LogEntry{
		At:      l.now(),
		Phase:   phase,
		Message: message,
		Success: success,
	})
	l.mu.Unlock()

	if l.sink != nil {
		l.sink(message, statusOf(phase, success))
	}
}

// Info appends an informational entry.
func (l *Log) Info(message string) {
	l.Append(model.PhaseInfo, message, nil)
}

// Step appends a phase entry with an explicit success flag.
func (l *Log) Step(phase model.LogPhase, message string, ok bool) {
	l.Append(phase, message, &ok)
}

// Error appends a failed error-phase entry.
func (l *Log) Error(message string) {
	l.Step(model.PhaseError, message, false)
}

// Snapshot returns a copy of the entries in append order.
func (l *Log) Snapshot() []model.LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// SetClock overrides the timestamp source. Test hook.
func (l *Log) SetClock(now func() time.Time) {
	if now != nil {
		l.now = now
	}
}

func statusOf(phase model.LogPhase, success *bool) Status {
	if phase == model.PhaseError {
		return StatusError
	}
	if success == nil {
		return StatusInfo
	}
	if *success {
		return StatusSuccess
	}
	return StatusError
}

/*************************************************************************
 * Copyright 2026 The Host Sentinel Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 *************************************************************************/

package proctree

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/hostsentinel/proctree/config"
)

// Tree is the concurrent, in-memory live process tree. One *sync.RWMutex
// guards the live pid->record map, the registered annotator list (which
// becomes read-only the moment the first event handler runs), and nothing
// else: the monotonic timestamp gate and live-process gauge are kept in
// separate atomics so readers never need the lock just to check them. This
// mirrors the teacher's IngestMuxer: one struct, one mutex, a handful of
// slices/maps it guards.
type Tree struct {
	mtx *sync.RWMutex

	live         map[RawPid]*Process
	annotators   []Annotator
	eventHandled bool // true once any handle_* has run; freezes registration

	lastTS    atomic.Int64 // idempotency gate, spec §4.3
	liveCount atomic.Int64 // diagnostic gauge, mirrors IngestMuxer.connHot/connDead

	id  uuid.UUID
	lgr Logger
	cfg *config.TreeConfig
}

// Logger is the subset of *plog.Logger the tree needs; declared as an
// interface here so callers can plug in a no-op logger without importing
// internal/plog in tests outside this module.
type Logger interface {
	Info(format string, args ...interface{}) error
	Warn(format string, args ...interface{}) error
	Error(format string, args ...interface{}) error
}

type nilLogger struct{}

func (nilLogger) Info(string, ...interface{}) error  { return nil }
func (nilLogger) Warn(string, ...interface{}) error  { return nil }
func (nilLogger) Error(string, ...interface{}) error { return nil }

// NoLogger returns a Logger that discards everything.
func NoLogger() Logger { return nilLogger{} }

// New creates an empty, unpopulated Tree. Call RegisterAnnotator for each
// annotator before the first event or Backfill call, then Backfill (if
// desired) before feeding live events. A nil cfg uses config.DefaultConfig.
func New(lgr Logger, cfg *config.TreeConfig) *Tree {
	if lgr == nil {
		lgr = NoLogger()
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Tree{
		mtx:  &sync.RWMutex{},
		live: make(map[RawPid]*Process),
		id:   uuid.New(),
		lgr:  lgr,
		cfg:  cfg,
	}
}

// Config returns the tree's active configuration.
func (t *Tree) Config() *config.TreeConfig { return t.cfg }

// ID returns the tree's per-instance identifier, which callers can use to
// tell multiple trees apart (e.g. in tests). DebugDump output and the
// tree's own log lines do not include it.
func (t *Tree) ID() uuid.UUID { return t.id }

// RegisterAnnotator appends a to the tree's ordered annotator list.
// Registration is only valid before the first event handler has run;
// afterward it returns ErrAnnotatorAlreadyRunning.
func (t *Tree) RegisterAnnotator(a Annotator) error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if t.eventHandled {
		return ErrAnnotatorAlreadyRunning
	}
	t.annotators = append(t.annotators, a)
	return nil
}

// Get looks up the live record for pid, if any.
func (t *Tree) Get(pid RawPid) (*Process, bool) {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	p, ok := t.live[pid]
	return p, ok
}

// GetParent returns p's parent back-link, or nil if p is a root. This
// never takes the tree lock: parent links are immutable once published.
func (t *Tree) GetParent(p *Process) *Process {
	return p.Parent()
}

// RootSlice walks p -> parent -> ... to the rootmost ancestor, returning
// the chain with p at index 0. Lock-free: parent links are immutable.
func (t *Tree) RootSlice(p *Process) []*Process {
	var chain []*Process
	for cur := p; cur != nil; cur = cur.Parent() {
		chain = append(chain, cur)
	}
	return chain
}

// GetAnnotation returns the annotation of the given kind on p, if any.
// Read-only and entirely lock-free: a Process's annotation map is held
// behind an atomic pointer precisely so reads never need the tree lock,
// even when called from inside an annotator hook that is itself running
// under the writer lock.
func (t *Tree) GetAnnotation(p *Process, kind AnnotationKind) (Annotation, bool) {
	return p.annotation(kind)
}

// AnnotateProcess replaces (or inserts) the annotation for a's kind on the
// record currently live at p's numeric pid. It is a no-op if that pid is
// no longer live. If a newer record has since replaced p there (an exec
// or a fresh fork at the same pid), the annotation lands on that newer
// record: it always goes to whatever record is currently installed, not
// necessarily p itself. The
// live-map lookup this requires means the caller must already hold the
// tree's write lock; AnnotateFork/AnnotateExec do, since that is how they
// are invoked. External callers use AnnotateProcessLocked.
func (t *Tree) AnnotateProcess(p *Process, a Annotation) {
	cur, ok := t.live[p.pid.Pid]
	if !ok {
		return
	}
	next := cur.withAnnotation(a)
	cur.annotations.Store(next)
}

// AnnotateProcessLocked is the externally-callable counterpart of
// AnnotateProcess: it takes the write lock itself. Annotators must use
// AnnotateProcess (unlocked) from inside AnnotateFork/AnnotateExec, since
// those already run under the lock; everything else calls this.
func (t *Tree) AnnotateProcessLocked(p *Process, a Annotation) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.AnnotateProcess(p, a)
}

// Iterate snapshots the current set of live records under the lock,
// releases the lock, then invokes f on each. f may call back into the
// tree, including mutating operations. Iteration order is unspecified.
func (t *Tree) Iterate(f func(*Process)) {
	t.mtx.RLock()
	snap := make([]*Process, 0, len(t.live))
	for _, p := range t.live {
		snap = append(snap, p)
	}
	t.mtx.RUnlock()
	for _, p := range snap {
		f(p)
	}
}

// Len returns the number of currently-live processes.
func (t *Tree) Len() int {
	return int(t.liveCount.Load())
}

// DebugDump returns a point-in-time textual snapshot of the live tree,
// primarily for tests and operator diagnostics; its format is unspecified
// and may change.
func (t *Tree) DebugDump() []string {
	var lines []string
	t.Iterate(func(p *Process) {
		parent := "-"
		if pp := p.Parent(); pp != nil {
			parent = pp.pid.String()
		}
		lines = append(lines, p.pid.String()+" program="+p.program.Executable+" parent="+parent)
	})
	return lines
}

// markEventHandled freezes annotator registration; called once by each of
// handle_fork/handle_exec/handle_exit/backfill before they do real work.
// Callers must hold the write lock.
func (t *Tree) markEventHandled() {
	t.eventHandled = true
}

// acceptTS implements the idempotency gate: the tree rejects any event
// whose ts is not strictly greater than the last accepted ts. This is a
// single per-tree gate, not per-pid or per-client (spec §9 open question,
// decided that way -- see DESIGN.md).
func (t *Tree) acceptTS(ts int64) bool {
	for {
		last := t.lastTS.Load()
		if ts <= last {
			return false
		}
		if t.lastTS.CompareAndSwap(last, ts) {
			return true
		}
	}
}

// runFork invokes every registered annotator's AnnotateFork, in
// registration order, under the write lock.
func (t *Tree) runFork(parent, child *Process) {
	for _, a := range t.annotators {
		a.AnnotateFork(t, parent, child)
	}
}

// runExec invokes every registered annotator's AnnotateExec, in
// registration order, under the write lock.
func (t *Tree) runExec(pre, post *Process) {
	for _, a := range t.annotators {
		a.AnnotateExec(t, pre, post)
	}
}

// Annotators returns the tree's registered annotator list in registration
// order. The returned slice must not be mutated by the caller.
func (t *Tree) Annotators() []Annotator {
	return t.annotators
}

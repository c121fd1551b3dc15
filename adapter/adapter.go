/*************************************************************************
 * Copyright 2026 The Host Sentinel Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 *************************************************************************/

// Package adapter implements the Event Adapter boundary (spec §4.4):
// translating externally-sourced fork/exec/exit notifications into calls
// on a *proctree.Tree, looking up the subject record first and dropping
// the event if it is unknown. How the underlying OS events are obtained
// is out of scope here; Event is the minimal shape this package needs.
package adapter

import (
	"go.uber.org/atomic"

	"github.com/hostsentinel/proctree"
	"github.com/hostsentinel/proctree/internal/plog"
)

// Kind discriminates the three event types the tree understands.
type Kind int

const (
	Fork Kind = iota
	Exec
	Exit
)

// Event is a single process-lifecycle notification. Program and Cred are
// only meaningful (and required) for Exec; TargetPid is the new child pid
// for Fork and the post-exec identity for Exec, and is unused for Exit.
type Event struct {
	Kind       Kind
	TS         int64
	SubjectPid proctree.RawPid
	TargetPid  proctree.Pid
	Program    *proctree.Program
	Cred       *proctree.Cred
}

// Stats are the per-event-kind diagnostic counters the adapter keeps.
// These exist purely for operator visibility into drop rates; they carry
// no domain behavior of their own (see SPEC_FULL.md, "SUPPLEMENTED FEATURES").
type Stats struct {
	Forks, Execs, Exits   uint64
	DroppedStale          uint64
	DroppedUnknownSubject uint64
}

// Adapter dispatches Events onto a *proctree.Tree, enforcing the "look up
// the subject, drop if absent" rule before every handle_* call, and
// passing every event -- including duplicates -- through the tree's
// timestamp gate.
type Adapter struct {
	tree *proctree.Tree
	lgr  *plog.Logger

	forks, execs, exits   atomic.Uint64
	droppedStale          atomic.Uint64
	droppedUnknownSubject atomic.Uint64
}

// New returns an Adapter dispatching onto tree. If lgr is nil, diagnostics
// are counted but not logged.
func New(tree *proctree.Tree, lgr *plog.Logger) *Adapter {
	if lgr == nil {
		lgr = plog.NoLogger()
	}
	return &Adapter{tree: tree, lgr: lgr}
}

// Dispatch looks up ev's subject and, if present, calls the matching
// handle_* on the tree. An unknown subject or a stale/duplicate ts is
// silently dropped per spec §7, but still recorded in Stats.
func (a *Adapter) Dispatch(ev Event) {
	subject, ok := a.tree.Get(ev.SubjectPid)
	if !ok {
		a.droppedUnknownSubject.Inc()
		a.logAt(a.tree.Config().UnknownSubjectLogLevel, "adapter: dropping event for unknown subject pid %d", ev.SubjectPid)
		return
	}

	switch ev.Kind {
	case Fork:
		a.forks.Inc()
		if _, accepted := a.tree.HandleFork(ev.TS, subject, ev.TargetPid); !accepted {
			a.droppedStale.Inc()
			a.logAt(a.tree.Config().StaleEventLogLevel, "adapter: dropping stale fork event for pid %d", ev.SubjectPid)
		}
	case Exec:
		a.execs.Inc()
		_, accepted, err := a.tree.HandleExec(ev.TS, subject, ev.TargetPid, ev.Program, ev.Cred)
		if err != nil {
			a.lgr.Error("adapter: exec event rejected for pid %d: %v", ev.SubjectPid, err)
			return
		}
		if !accepted {
			a.droppedStale.Inc()
			a.logAt(a.tree.Config().StaleEventLogLevel, "adapter: dropping stale exec event for pid %d", ev.SubjectPid)
		}
	case Exit:
		a.exits.Inc()
		if accepted := a.tree.HandleExit(ev.TS, subject); !accepted {
			a.droppedStale.Inc()
			a.logAt(a.tree.Config().StaleEventLogLevel, "adapter: dropping stale exit event for pid %d", ev.SubjectPid)
		}
	}
}

// logAt emits format at lvl: INFO or below goes through lgr.Info, WARN and
// above through lgr.Warn. This is the only dispatch the ambient log level
// config controls; the leveled Logger itself still filters below its own
// configured threshold.
func (a *Adapter) logAt(lvl plog.Level, format string, args ...interface{}) {
	if lvl >= plog.WARN {
		a.lgr.Warn(format, args...)
		return
	}
	a.lgr.Info(format, args...)
}

// Stats returns a snapshot of the adapter's diagnostic counters.
func (a *Adapter) Stats() Stats {
	return Stats{
		Forks:                 a.forks.Load(),
		Execs:                 a.execs.Load(),
		Exits:                 a.exits.Load(),
		DroppedStale:          a.droppedStale.Load(),
		DroppedUnknownSubject: a.droppedUnknownSubject.Load(),
	}
}

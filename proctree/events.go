/*************************************************************************
 * Copyright 2026 The Host Sentinel Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 *************************************************************************/

package proctree

// HandleFork creates a child record sharing parent's cred/program
// references, with parent as its back-link, and installs it at
// childPid.Pid. It then invokes every annotator's AnnotateFork, in
// registration order. ts is the event's monotonic timestamp; a ts that is
// not strictly greater than the last accepted one is a no-op (spec §4.3
// idempotency), reported via the second return value.
//
// parent must be a record previously produced by this tree, so that its
// own parent back-link is valid; the tree does not validate this beyond
// what a nil/garbage pointer would already fail on.
func (t *Tree) HandleFork(ts int64, parent *Process, childPid Pid) (child *Process, accepted bool) {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	if !t.acceptTS(ts) {
		return nil, false
	}
	t.markEventHandled()

	child = newProcess(childPid, parent.cred, parent.program, parent)
	if _, existed := t.live[childPid.Pid]; !existed {
		t.liveCount.Inc()
	}
	t.live[childPid.Pid] = child

	t.runFork(parent, child)
	return child, true
}

// HandleExec replaces the record at pre.Pid().Pid with a freshly minted
// record carrying newPid, newCred, and newProgram, preserving pre's parent
// link. newPid.Pid must equal pre.Pid().Pid; spec §7 calls a mismatch a
// ProgrammingError. This implementation treats that as fatal: it returns
// ErrMismatchedExecPid rather than silently inserting under the wrong key
// (see DESIGN.md for why fresh-insert-on-mismatch was rejected).
//
// Prior annotations on pre are NOT carried over automatically; annotators
// that want state to survive exec must copy it explicitly in their
// AnnotateExec hook.
func (t *Tree) HandleExec(ts int64, pre *Process, newPid Pid, newProgram *Program, newCred *Cred) (post *Process, accepted bool, err error) {
	if newPid.Pid != pre.pid.Pid {
		return nil, false, ErrMismatchedExecPid
	}

	t.mtx.Lock()
	defer t.mtx.Unlock()

	if !t.acceptTS(ts) {
		return nil, false, nil
	}
	t.markEventHandled()

	post = newProcess(newPid, newCred, newProgram, pre.parent)
	if _, existed := t.live[newPid.Pid]; !existed {
		t.liveCount.Inc()
	}
	t.live[newPid.Pid] = post

	t.runExec(pre, post)
	return post, true, nil
}

// HandleExit removes the entry at p's numeric pid from the live map when
// the record installed there is p itself; if a different record (a later
// exec or fork at the same pid) is installed, the map is left unchanged,
// though an accepted ts still reports true. It does not notify annotators; they observe exits by the pid's absence from
// subsequent queries. Records still reachable via a surviving descendant's
// parent chain remain alive regardless of this removal.
func (t *Tree) HandleExit(ts int64, p *Process) (accepted bool) {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	if !t.acceptTS(ts) {
		return false
	}
	t.markEventHandled()

	if cur, ok := t.live[p.pid.Pid]; ok && cur == p {
		delete(t.live, p.pid.Pid)
		t.liveCount.Dec()
	}
	return true
}

/*************************************************************************
 * Copyright 2026 The Host Sentinel Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 *************************************************************************/

package proctree

import "go.uber.org/atomic"

// annotationMap is the immutable snapshot type stored behind a Process's
// atomic pointer. Every write replaces the pointer with a fresh map
// (copy-on-write) rather than mutating in place, so reads never need a
// lock (spec §9: "store annotations via copy-on-write at the record level
// if needed").
type annotationMap map[AnnotationKind]Annotation

// Process is an immutable node describing one live (or once-live, while
// still reachable via a descendant's parent link) process. Every field
// except the annotation map is fixed at construction; fork produces a new
// child record, exec produces a new record replacing the old one at the
// same numeric pid, and exit removes the map entry entirely. The
// annotation map is the single mutable part of a record, held behind an
// atomic pointer so annotation reads never need to take the tree lock.
type Process struct {
	pid     Pid
	cred    *Cred
	program *Program
	parent  *Process

	annotations atomic.Pointer[annotationMap]
}

// newProcess constructs a fresh, unpublished record. cred and program are
// shared pointers so that structurally-equal values can be reused across
// records; callers (Backfill, HandleFork, HandleExec) are responsible for
// interning them.
func newProcess(pid Pid, cred *Cred, program *Program, parent *Process) *Process {
	p := &Process{
		pid:     pid,
		cred:    cred,
		program: program,
		parent:  parent,
	}
	empty := annotationMap{}
	p.annotations.Store(&empty)
	return p
}

// Pid returns the process's identity.
func (p *Process) Pid() Pid { return p.pid }

// Cred returns the process's shared credential value.
func (p *Process) Cred() *Cred { return p.cred }

// Program returns the process's shared program image.
func (p *Process) Program() *Program { return p.program }

// Parent returns p's parent back-link, or nil if p is a root. This never
// requires the tree lock: the link is immutable once the record is
// published.
func (p *Process) Parent() *Process { return p.parent }

// annotation returns the raw annotation for kind, lock-free.
func (p *Process) annotation(kind AnnotationKind) (Annotation, bool) {
	m := p.annotations.Load()
	if m == nil {
		return nil, false
	}
	a, ok := (*m)[kind]
	return a, ok
}

// withAnnotation returns a new annotationMap equal to p's current one plus
// (kind -> a), used by the copy-on-write update in AnnotateProcess.
func (p *Process) withAnnotation(a Annotation) *annotationMap {
	old := p.annotations.Load()
	next := make(annotationMap, len(*old)+1)
	for k, v := range *old {
		next[k] = v
	}
	next[a.Kind()] = a
	return &next
}

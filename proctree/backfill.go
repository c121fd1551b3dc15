/*************************************************************************
 * Copyright 2026 The Host Sentinel Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 *************************************************************************/

package proctree

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
)

const internCacheSize = 4096

// BackfillReport summarizes a completed Backfill: how many processes were
// loaded, and which pids were skipped due to a PerPidLoadFailure along
// with an aggregated (non-fatal) error describing why.
type BackfillReport struct {
	Loaded     int
	Skipped    []RawPid
	SkipErrors error
}

// Backfill is the one-shot initialization that populates the tree from
// whatever processes are already running. It asks probe for the current
// pid set, loads each pid's identity (tolerating per-pid failures), builds
// a parent/children map from probe.ParentOf, and DFS-inserts from the
// roots (pids whose parent is 0, absent, or itself failed to load),
// re-using a parent's cred/program references when value-equal and
// invoking AnnotateFork (and AnnotateExec, when the program differs from
// the parent's) for every inserted non-root node.
//
// An unrecoverable enumeration failure (ListPids itself failing) returns
// ErrHostProbeFailure; individual LoadPID failures never fail Backfill,
// they are reported via BackfillReport.
func (t *Tree) Backfill(ctx context.Context, probe HostProbe) (*BackfillReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	pids, err := probe.ListPids()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHostProbeFailure, err)
	}

	identities := make(map[RawPid]Identity, len(pids))
	var (
		mu       sync.Mutex
		skipped  []RawPid
		skipErrs *multierror.Error
	)

	grp, _ := errgroup.WithContext(ctx)
	grp.SetLimit(t.cfg.BackfillConcurrency)
	for _, pid := range pids {
		pid := pid
		grp.Go(func() error {
			id, loadErr := probe.LoadPID(pid)
			mu.Lock()
			defer mu.Unlock()
			if loadErr != nil {
				skipped = append(skipped, pid)
				skipErrs = multierror.Append(skipErrs, fmt.Errorf("pid %d: %w", pid, loadErr))
				return nil // PerPidLoadFailure is tolerated, never fails the group
			}
			identities[pid] = id
			return nil
		})
	}
	_ = grp.Wait() // no Go() closure above ever returns a non-nil error

	parentOf := make(map[RawPid]RawPid, len(identities))
	for pid := range identities {
		if p, ok := probe.ParentOf(pid); ok {
			if _, known := identities[p]; known {
				parentOf[pid] = p
			}
		}
	}

	children := make(map[RawPid][]RawPid)
	var roots []RawPid
	for pid := range identities {
		if p, ok := parentOf[pid]; ok {
			children[p] = append(children[p], pid)
		} else {
			roots = append(roots, pid)
		}
	}

	credCache, err := lru.New[Cred, *Cred](internCacheSize)
	if err != nil {
		return nil, fmt.Errorf("backfill: cred intern cache: %w", err)
	}
	progCache, err := lru.New[string, *Program](internCacheSize)
	if err != nil {
		return nil, fmt.Errorf("backfill: program intern cache: %w", err)
	}

	t.mtx.Lock()
	t.markEventHandled()
	for _, root := range roots {
		t.backfillInsert(identities, children, root, nil, credCache, progCache)
	}
	t.mtx.Unlock()

	for _, pid := range skipped {
		t.lgr.Warn("backfill: skipping pid %d, load failed", pid)
	}

	return &BackfillReport{
		Loaded:     len(identities),
		Skipped:    skipped,
		SkipErrors: skipErrs.ErrorOrNil(),
	}, nil
}

// backfillInsert installs one DFS node and recurses into its children.
// Must be called with the tree lock held.
func (t *Tree) backfillInsert(
	identities map[RawPid]Identity,
	children map[RawPid][]RawPid,
	pid RawPid,
	parent *Process,
	credCache *lru.Cache[Cred, *Cred],
	progCache *lru.Cache[string, *Program],
) *Process {
	id := identities[pid]

	cred := internCred(id.Cred, parent, credCache)
	prog := internProgram(id.Program, parent, progCache)

	node := newProcess(id.Pid, cred, prog, parent)
	if _, existed := t.live[pid]; !existed {
		t.liveCount.Inc()
	}
	t.live[pid] = node

	if parent != nil {
		t.runFork(parent, node)
		if !prog.Equal(*parent.program) {
			t.runExec(parent, node)
		}
	}

	for _, childPid := range children[pid] {
		t.backfillInsert(identities, children, childPid, node, credCache, progCache)
	}
	return node
}

// internCred returns a shared *Cred equal to c, preferring the parent's
// own reference (zero-lookup reuse) before falling back to the intern
// cache, which is created afresh for each Backfill call.
func internCred(c Cred, parent *Process, cache *lru.Cache[Cred, *Cred]) *Cred {
	if parent != nil && parent.cred.Equal(c) {
		return parent.cred
	}
	if shared, ok := cache.Get(c); ok {
		return shared
	}
	shared := &c
	cache.Add(c, shared)
	return shared
}

// internProgram mirrors internCred for Program values. Program is keyed by
// a flattened string since it embeds a slice and so isn't itself a valid
// comparable map/cache key.
func internProgram(p Program, parent *Process, cache *lru.Cache[string, *Program]) *Program {
	if parent != nil && parent.program.Equal(p) {
		return parent.program
	}
	key := programKey(p)
	if shared, ok := cache.Get(key); ok {
		return shared
	}
	shared := &p
	cache.Add(key, shared)
	return shared
}

func programKey(p Program) string {
	return p.Executable + "\x00" + strings.Join(p.Argv, "\x00")
}

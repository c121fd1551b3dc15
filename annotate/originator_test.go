/*************************************************************************
 * Copyright 2026 The Host Sentinel Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 *************************************************************************/

package annotate_test

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/hostsentinel/proctree"
	"github.com/hostsentinel/proctree/annotate"
)

// fakeProbe backs a single-generation Backfill with a small, fixed process
// set, so annotator tests can start from an already-populated tree without
// reaching into proctree's unexported Process fields.
type fakeProbe struct {
	pids       []proctree.RawPid
	identities map[proctree.RawPid]proctree.Identity
	parents    map[proctree.RawPid]proctree.RawPid
}

func (f *fakeProbe) ListPids() ([]proctree.RawPid, error) { return f.pids, nil }

func (f *fakeProbe) LoadPID(pid proctree.RawPid) (proctree.Identity, error) {
	id, ok := f.identities[pid]
	if !ok {
		return proctree.Identity{}, errors.New("unknown pid")
	}
	return id, nil
}

func (f *fakeProbe) ParentOf(pid proctree.RawPid) (proctree.RawPid, bool) {
	p, ok := f.parents[pid]
	return p, ok
}

// TestOriginatorSeedAndPropagate covers scenario S3: a Login tag seeded at
// exec propagates to a forked child. It does not check a Launchd tag
// along a launchd -> A -> B -> C chain.
func TestOriginatorSeedAndPropagate(t *testing.T) {
	probe := &fakeProbe{
		pids: []proctree.RawPid{1, 200},
		identities: map[proctree.RawPid]proctree.Identity{
			1:   {Pid: proctree.Pid{Pid: 1}, Program: proctree.Program{Executable: "/sbin/launchd"}},
			200: {Pid: proctree.Pid{Pid: 200}, Program: proctree.Program{Executable: "/bin/sh"}},
		},
		parents: map[proctree.RawPid]proctree.RawPid{200: 1},
	}

	tree := proctree.New(nil, nil)
	if err := tree.RegisterAnnotator(annotate.Originator{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := tree.Backfill(context.Background(), probe); err != nil {
		t.Fatalf("backfill: %v", err)
	}

	p200, ok := tree.Get(200)
	if !ok {
		t.Fatalf("expected pid 200 to exist after backfill")
	}

	post, accepted, err := tree.HandleExec(5, p200, proctree.Pid{Pid: 200, Version: 1},
		&proctree.Program{Executable: "/usr/bin/login"}, &proctree.Cred{})
	if err != nil || !accepted {
		t.Fatalf("exec(200->login) accepted=%v err=%v", accepted, err)
	}

	assertOriginator(t, tree, post, "login")

	child, accepted := tree.HandleFork(6, post, proctree.Pid{Pid: 201})
	if !accepted {
		t.Fatalf("expected fork to be accepted")
	}
	assertOriginator(t, tree, child, "login")
}

func assertOriginator(t *testing.T, tree *proctree.Tree, p *proctree.Process, want string) {
	t.Helper()
	exported := annotate.Originator{}.Export(tree, p)
	if exported == nil {
		t.Fatalf("expected an Originator export, got nil")
	}
	var sv wrapperspb.StringValue
	if err := exported.Value.UnmarshalTo(&sv); err != nil {
		t.Fatalf("unmarshal exported value: %v", err)
	}
	if sv.Value != want {
		t.Fatalf("originator tag = %q, want %q", sv.Value, want)
	}
}

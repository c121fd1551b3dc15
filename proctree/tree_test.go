/*************************************************************************
 * Copyright 2026 The Host Sentinel Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 *************************************************************************/

package proctree

import "testing"

// recordingAnnotator records the order in which AnnotateFork/AnnotateExec
// are invoked, for testing annotator ordering (testable property 7).
type recordingAnnotator struct {
	name  string
	order *[]string
}

func (r *recordingAnnotator) Kind() AnnotationKind { return AnnotationKind("recording:" + r.name) }
func (r *recordingAnnotator) AnnotateFork(tree *Tree, parent, child *Process) {
	*r.order = append(*r.order, r.name)
}
func (r *recordingAnnotator) AnnotateExec(tree *Tree, pre, post *Process) {
	*r.order = append(*r.order, r.name)
}
func (r *recordingAnnotator) Export(tree *Tree, p *Process) *ExportedAnnotation { return nil }

func newRootTree(t *testing.T) (*Tree, *Process) {
	t.Helper()
	tree := New(nil, nil)
	root := newProcess(Pid{Pid: 1}, &Cred{}, &Program{Executable: "/sbin/launchd"}, nil)
	tree.live[1] = root
	tree.liveCount.Store(1)
	return tree, root
}

// TestForkExecExit covers scenario S1 end to end.
func TestForkExecExit(t *testing.T) {
	tree, root := newRootTree(t)

	child, accepted := tree.HandleFork(10, root, Pid{Pid: 100})
	if !accepted {
		t.Fatalf("expected fork to be accepted")
	}
	if child.Parent() != root {
		t.Fatalf("child parent should be root by pointer identity")
	}

	post, accepted, err := tree.HandleExec(11, child, Pid{Pid: 100, Version: 1},
		&Program{Executable: "/bin/ls"}, &Cred{UID: 501, GID: 20})
	if err != nil {
		t.Fatalf("unexpected exec error: %v", err)
	}
	if !accepted {
		t.Fatalf("expected exec to be accepted")
	}
	if post.Program().Executable != "/bin/ls" {
		t.Fatalf("post-exec program = %q, want /bin/ls", post.Program().Executable)
	}
	if post.Pid().Version <= child.Pid().Version {
		t.Fatalf("post-exec pidversion %d should exceed pre-exec %d", post.Pid().Version, child.Pid().Version)
	}
	if post.Parent() != child.Parent() {
		t.Fatalf("exec should preserve the parent link")
	}

	chain := tree.RootSlice(post)
	if len(chain) != 2 || chain[0] != post || chain[1] != root {
		t.Fatalf("root_slice(100) = %v, want [post, root]", chain)
	}

	if accepted := tree.HandleExit(12, post); !accepted {
		t.Fatalf("expected exit to be accepted")
	}
	if _, ok := tree.Get(100); ok {
		t.Fatalf("expected pid 100 to be gone after exit")
	}
	if tree.Len() != 1 {
		t.Fatalf("tree.Len() = %d, want 1 (root only)", tree.Len())
	}
}

// TestStaleForkDropped covers scenario S2: redelivering the same (ts,
// event) is a no-op.
func TestStaleForkDropped(t *testing.T) {
	tree, root := newRootTree(t)

	first, accepted := tree.HandleFork(10, root, Pid{Pid: 100})
	if !accepted {
		t.Fatalf("expected first fork to be accepted")
	}

	second, accepted := tree.HandleFork(10, root, Pid{Pid: 100})
	if accepted {
		t.Fatalf("expected duplicate-ts fork to be rejected")
	}
	if second != nil {
		t.Fatalf("rejected fork should not return a record")
	}

	got, ok := tree.Get(100)
	if !ok || got != first {
		t.Fatalf("expected pid 100 to still be the original child record")
	}
}

// TestExitedParentReachableFromChild covers scenario S6.
func TestExitedParentReachableFromChild(t *testing.T) {
	tree, root := newRootTree(t)

	child, accepted := tree.HandleFork(6, root, Pid{Pid: 2})
	if !accepted {
		t.Fatalf("expected fork to be accepted")
	}

	if accepted := tree.HandleExit(7, root); !accepted {
		t.Fatalf("expected exit to be accepted")
	}
	if _, ok := tree.Get(1); ok {
		t.Fatalf("expected pid 1 to be gone after exit")
	}

	chain := tree.RootSlice(child)
	if len(chain) != 2 {
		t.Fatalf("root_slice(2) has %d elements, want 2", len(chain))
	}
	if chain[1].Pid().Pid != 1 {
		t.Fatalf("root_slice(2)[1].pid.pid = %d, want 1", chain[1].Pid().Pid)
	}
}

// TestMismatchedExecPidIsProgrammingError exercises the spec §7
// ProgrammingError path for handle_exec.
func TestMismatchedExecPidIsProgrammingError(t *testing.T) {
	tree, root := newRootTree(t)
	child, _ := tree.HandleFork(10, root, Pid{Pid: 100})

	_, accepted, err := tree.HandleExec(11, child, Pid{Pid: 999}, &Program{Executable: "/bin/ls"}, &Cred{})
	if err == nil {
		t.Fatalf("expected ErrMismatchedExecPid")
	}
	if accepted {
		t.Fatalf("mismatched exec must not be accepted")
	}
}

// TestAnnotatorOrdering covers testable property 7.
func TestAnnotatorOrdering(t *testing.T) {
	tree, root := newRootTree(t)

	var order []string
	a := &recordingAnnotator{name: "a", order: &order}
	b := &recordingAnnotator{name: "b", order: &order}
	if err := tree.RegisterAnnotator(a); err != nil {
		t.Fatalf("register a: %v", err)
	}
	if err := tree.RegisterAnnotator(b); err != nil {
		t.Fatalf("register b: %v", err)
	}

	tree.HandleFork(10, root, Pid{Pid: 100})

	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("annotator order = %v, want [a b]", order)
	}
}

// TestRegisterAnnotatorAfterEventRejected ensures registration freezes
// once an event handler has run.
func TestRegisterAnnotatorAfterEventRejected(t *testing.T) {
	tree, root := newRootTree(t)
	tree.HandleFork(10, root, Pid{Pid: 100})

	if err := tree.RegisterAnnotator(&recordingAnnotator{name: "late", order: &[]string{}}); err != ErrAnnotatorAlreadyRunning {
		t.Fatalf("expected ErrAnnotatorAlreadyRunning, got %v", err)
	}
}

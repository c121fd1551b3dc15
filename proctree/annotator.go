/*************************************************************************
 * Copyright 2026 The Host Sentinel Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 *************************************************************************/

package proctree

import (
	"google.golang.org/protobuf/types/known/anypb"
)

// AnnotationKind is a stable, language-neutral discriminator identifying an
// annotator type. It is NOT a runtime type identifier: annotation-map keys
// must remain stable across process restarts and across implementations,
// so each annotator declares its own constant kind rather than relying on
// reflection.
type AnnotationKind string

// ExportedAnnotation is the opaque value an annotator's Export hands back
// to callers serializing a process. The tree never interprets Value beyond
// forwarding it; Kind lets a caller dispatch on which annotator produced
// it. Value is a pre-packed *anypb.Any so callers get a self-describing
// wire value without this package needing a hand-written .proto or a
// protoc step (spec explicitly puts annotation wire-format out of scope).
type ExportedAnnotation struct {
	Kind  AnnotationKind
	Value *anypb.Any
}

// Annotation is the immutable value an annotator stores on a process
// record's annotation map. Implementations are typically small value types
// (an enum tag, a state machine position) wrapped to satisfy this
// interface; Kind must match the producing Annotator's Kind.
type Annotation interface {
	Kind() AnnotationKind
}

// Annotator is the plugin contract derived state propagation implements.
// AnnotateFork is called synchronously, exactly once per fork, after the
// tree has installed the child record. AnnotateExec is called
// synchronously, exactly once per exec, after the tree has installed the
// post-exec record. Export is queried whenever the agent serializes a
// process and returns the annotator's current opinion, or nil if it has
// none.
//
// AnnotateFork and AnnotateExec run under the tree's writer lock: they
// must not block and must not attempt to take the lock themselves other
// than through AnnotateProcess/GetAnnotation, which are designed to be
// reentrant in this context.
type Annotator interface {
	Kind() AnnotationKind
	AnnotateFork(tree *Tree, parent, child *Process)
	AnnotateExec(tree *Tree, pre, post *Process)
	// Export returns the annotator's current opinion on p, or nil if it
	// has none. tree is passed so implementations can read p's
	// annotation through GetAnnotation rather than needing direct access
	// to the (unexported) annotation map.
	Export(tree *Tree, p *Process) *ExportedAnnotation
}

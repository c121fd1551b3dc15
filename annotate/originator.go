/*************************************************************************
 * Copyright 2026 The Host Sentinel Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 *************************************************************************/

// Package annotate provides the two reference annotators: Originator,
// which propagates a tag identifying the top-of-chain launcher, and
// CurlSh, which detects curl piped into a shell under a common parent.
package annotate

import (
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/hostsentinel/proctree"
)

// OriginatorKind is the stable discriminator for Originator annotations.
const OriginatorKind proctree.AnnotationKind = "originator"

// OriginatorTag is the top-of-chain launcher an Originator annotation
// records.
type OriginatorTag int

const (
	Unspecified OriginatorTag = iota
	Launchd
	Cron
	Login
)

func (t OriginatorTag) String() string {
	switch t {
	case Launchd:
		return "launchd"
	case Cron:
		return "cron"
	case Login:
		return "login"
	}
	return "unspecified"
}

// originatorAnnotation is the Annotation value Originator stores on a
// process record.
type originatorAnnotation struct {
	tag OriginatorTag
}

func (originatorAnnotation) Kind() proctree.AnnotationKind { return OriginatorKind }

// seedPaths maps an executable path to the OriginatorTag it seeds at exec,
// when no tag was inherited from the pre-exec process.
var seedPaths = map[string]OriginatorTag{
	"/usr/bin/login": Login,
	"/usr/sbin/cron": Cron,
	"/sbin/launchd":  Launchd,
}

// Originator propagates an OriginatorTag across fork (by straight
// inheritance) and exec (inheritance first, then seeding from a handful
// of well-known executable paths if nothing was inherited).
type Originator struct{}

func (Originator) Kind() proctree.AnnotationKind { return OriginatorKind }

// AnnotateFork copies the parent's Originator tag to the child, if any.
// Originator is introduced at exec, not at fork, so a parent with no tag
// leaves the child untagged.
func (Originator) AnnotateFork(tree *proctree.Tree, parent, child *proctree.Process) {
	if a, ok := tree.GetAnnotation(parent, OriginatorKind); ok {
		tree.AnnotateProcess(child, a)
	}
}

// AnnotateExec copies the pre-exec process's tag to the post-exec record
// if it had one; otherwise it seeds a tag from the new executable path.
func (Originator) AnnotateExec(tree *proctree.Tree, pre, post *proctree.Process) {
	if a, ok := tree.GetAnnotation(pre, OriginatorKind); ok {
		tree.AnnotateProcess(post, a)
		return
	}
	if tag, ok := seedPaths[post.Program().Executable]; ok {
		tree.AnnotateProcess(post, originatorAnnotation{tag: tag})
	}
}

// Export always yields the current tag, defaulting to Unspecified when p
// carries no Originator annotation at all.
func (Originator) Export(tree *proctree.Tree, p *proctree.Process) *proctree.ExportedAnnotation {
	tag := Unspecified
	if a, ok := tree.GetAnnotation(p, OriginatorKind); ok {
		if oa, ok := a.(originatorAnnotation); ok {
			tag = oa.tag
		}
	}
	value, err := anypb.New(wrapperspb.String(tag.String()))
	if err != nil {
		return nil
	}
	return &proctree.ExportedAnnotation{Kind: OriginatorKind, Value: value}
}

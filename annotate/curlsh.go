/*************************************************************************
 * Copyright 2026 The Host Sentinel Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 *************************************************************************/

package annotate

import (
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/hostsentinel/proctree"
)

// CurlShKind is the stable discriminator for CurlSh annotations.
const CurlShKind proctree.AnnotationKind = "curl_sh"

// curlShState is CurlSh's per-process state machine position.
type curlShState int

const (
	curlShNone curlShState = iota
	curlShSeenCurl
	curlShSeenBoth
)

type curlShAnnotation struct {
	state curlShState
}

func (curlShAnnotation) Kind() proctree.AnnotationKind { return CurlShKind }

// CurlSh detects the pattern of a shell forking one child that execs curl
// and another that execs sh: it annotates the common parent, not either
// child.
type CurlSh struct{}

func (CurlSh) Kind() proctree.AnnotationKind { return CurlShKind }

// AnnotateFork is a no-op; CurlSh only reacts to exec.
func (CurlSh) AnnotateFork(tree *proctree.Tree, parent, child *proctree.Process) {}

// AnnotateExec inspects the exec'ing process's parent. If the new
// executable is /usr/bin/curl, the parent's state becomes SeenCurl. If the
// new executable is /bin/sh and the parent was already in SeenCurl, its
// state advances to SeenBoth.
func (CurlSh) AnnotateExec(tree *proctree.Tree, pre, post *proctree.Process) {
	parent := post.Parent()
	if parent == nil {
		return
	}
	switch post.Program().Executable {
	case "/usr/bin/curl":
		tree.AnnotateProcess(parent, curlShAnnotation{state: curlShSeenCurl})
	case "/bin/sh":
		if a, ok := tree.GetAnnotation(parent, CurlShKind); ok {
			if csa, ok := a.(curlShAnnotation); ok && csa.state == curlShSeenCurl {
				tree.AnnotateProcess(parent, curlShAnnotation{state: curlShSeenBoth})
			}
		}
	}
}

// Export yields a boolean flag only when p's state has reached SeenBoth;
// otherwise it returns nil.
func (CurlSh) Export(tree *proctree.Tree, p *proctree.Process) *proctree.ExportedAnnotation {
	a, ok := tree.GetAnnotation(p, CurlShKind)
	if !ok {
		return nil
	}
	csa, ok := a.(curlShAnnotation)
	if !ok || csa.state != curlShSeenBoth {
		return nil
	}
	value, err := anypb.New(wrapperspb.Bool(true))
	if err != nil {
		return nil
	}
	return &proctree.ExportedAnnotation{Kind: CurlShKind, Value: value}
}

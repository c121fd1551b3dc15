/*************************************************************************
 * Copyright 2026 The Host Sentinel Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 *************************************************************************/

// Package proctree maintains a live, in-memory tree of the processes
// running on a host: their identity, credentials, program image, and
// parent/child relationships, reconstructed from fork/exec/exit events and
// an initial Backfill of whatever is already running. Pluggable
// annotators (see Annotator) attach and propagate derived state across
// fork and exec boundaries; two reference implementations live in the
// sibling annotate package. The hostprobe and adapter packages implement
// this package's external boundaries -- enumerating the host's processes
// and translating OS events into calls on a *Tree, respectively.
package proctree

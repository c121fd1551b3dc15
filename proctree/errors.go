/*************************************************************************
 * Copyright 2026 The Host Sentinel Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 *************************************************************************/

package proctree

import "errors"

// Sentinel errors for the process tree core. Per the error-handling design:
// HostProbeFailure propagates out of Backfill; PerPidLoadFailure is
// logged-and-skipped inside Backfill and never surfaces as a Backfill
// failure on its own (callers interested in the skipped pids can inspect
// the returned BackfillReport); StaleEvent is dropped by the event
// handlers (reported only through their accepted result) and
// UnknownSubject is dropped by the Adapter before any handler runs; both
// surface only through the Adapter's diagnostic counters and log lines,
// not as returned errors, matching the contract that
// nothing in the core retries or treats a duplicate/out-of-order/unknown
// event as fatal.
var (
	// ErrHostProbeFailure wraps an unrecoverable Host Probe enumeration
	// failure during Backfill.
	ErrHostProbeFailure = errors.New("host probe enumeration failed")

	// ErrAnnotatorAlreadyRunning is returned by RegisterAnnotator once any
	// event handler has run; registration is only valid beforehand.
	ErrAnnotatorAlreadyRunning = errors.New("cannot register annotator after tree has processed an event")

	// ErrMismatchedExecPid signals a ProgrammingError per spec §7: a
	// caller invoked HandleExec with a new pid whose numeric pid differs
	// from the pre-exec record's. This implementation treats it as fatal
	// (returned, not silently patched) rather than silently inserting a
	// fresh record, so that callers cannot accidentally rewrite the live
	// map under the wrong key; see DESIGN.md for this choice.
	ErrMismatchedExecPid = errors.New("exec new pid does not match pre-exec numeric pid")
)

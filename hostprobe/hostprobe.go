/*************************************************************************
 * Copyright 2026 The Host Sentinel Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 *************************************************************************/

// Package hostprobe defines the Host Probe boundary the process tree core
// consumes during backfill: enumerating live pids and loading per-pid
// identity. proctree.HostProbe is the interface Backfill actually takes;
// GopsutilProbe here satisfies it structurally. See gopsutil.go for the
// reference implementation.
package hostprobe

import "github.com/hostsentinel/proctree"

// HostProbe restates proctree.HostProbe for documentation purposes at this
// boundary package. Implementations (GopsutilProbe in gopsutil.go) satisfy
// proctree.HostProbe directly; this alias exists so callers reading this
// package don't need to jump to proctree to see the contract.
type HostProbe = proctree.HostProbe

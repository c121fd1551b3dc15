/*************************************************************************
 * Copyright 2026 The Host Sentinel Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 *************************************************************************/

package hostprobe

import (
	"fmt"

	gopsproc "github.com/shirou/gopsutil/v4/process"

	"github.com/hostsentinel/proctree"
)

// GopsutilProbe is the reference HostProbe, backed by
// github.com/shirou/gopsutil/v4. It replaces the macOS-specific
// sysctl/task_info calls the original agent used with a portable
// equivalent that reports the same information: pid, ppid, effective
// uid/gid, executable path, and argv.
type GopsutilProbe struct{}

// NewGopsutilProbe returns a ready-to-use GopsutilProbe. It holds no
// state; every call re-queries the OS.
func NewGopsutilProbe() *GopsutilProbe {
	return &GopsutilProbe{}
}

func (GopsutilProbe) ListPids() ([]proctree.RawPid, error) {
	pids, err := gopsproc.Pids()
	if err != nil {
		return nil, fmt.Errorf("list pids: %w", err)
	}
	out := make([]proctree.RawPid, 0, len(pids))
	for _, p := range pids {
		out = append(out, proctree.RawPid(p))
	}
	return out, nil
}

func (GopsutilProbe) LoadPID(pid proctree.RawPid) (proctree.Identity, error) {
	h, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return proctree.Identity{}, fmt.Errorf("open pid %d: %w", pid, err)
	}

	exe, err := h.Exe()
	if err != nil {
		return proctree.Identity{}, fmt.Errorf("load exe for pid %d: %w", pid, err)
	}
	argv, err := h.CmdlineSlice()
	if err != nil {
		return proctree.Identity{}, fmt.Errorf("load argv for pid %d: %w", pid, err)
	}

	uids, err := h.Uids()
	if err != nil {
		return proctree.Identity{}, fmt.Errorf("load uids for pid %d: %w", pid, err)
	}
	gids, err := h.Gids()
	if err != nil {
		return proctree.Identity{}, fmt.Errorf("load gids for pid %d: %w", pid, err)
	}
	username, _ := h.Username() // best-effort; absence doesn't fail the load

	var euid, egid uint32
	if len(uids) > 1 {
		euid = uint32(uids[1]) // real, effective, saved
	} else if len(uids) > 0 {
		euid = uint32(uids[0])
	}
	if len(gids) > 1 {
		egid = uint32(gids[1])
	} else if len(gids) > 0 {
		egid = uint32(gids[0])
	}

	return proctree.Identity{
		Pid: proctree.Pid{
			Pid:     pid,
			Version: createTimeVersion(h),
		},
		Cred: proctree.Cred{
			UID:  euid,
			GID:  egid,
			User: username,
		},
		Program: proctree.Program{
			Executable: exe,
			Argv:       argv,
		},
	}, nil
}

func (GopsutilProbe) ParentOf(pid proctree.RawPid) (proctree.RawPid, bool) {
	h, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return 0, false
	}
	ppid, err := h.Ppid()
	if err != nil || ppid == 0 {
		return 0, false
	}
	return proctree.RawPid(ppid), true
}

// createTimeVersion derives a pidversion surrogate from the process start
// time. The OS-maintained pidversion counter spec.md assumes (incrementing
// on every exec of a numeric pid) isn't exposed by gopsutil on every
// platform; the process start time in milliseconds is monotonic for the
// life of a given numeric-pid generation and changes across pid reuse and
// exec on the platforms gopsutil supports it on, which is the property
// Backfill actually needs from it. Live exec events carry their post-exec
// Version in the event's TargetPid, which adapter.Adapter passes through
// unchanged; this surrogate is only used to seed the initial generation
// during Backfill.
func createTimeVersion(h *gopsproc.Process) uint64 {
	ct, err := h.CreateTime()
	if err != nil || ct < 0 {
		return 0
	}
	return uint64(ct)
}

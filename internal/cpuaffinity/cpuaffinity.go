// Package cpuaffinity implements worker-to-CPU-core pinning (C7): mapping
// a worker's index to a target core under an ascending/descending,
// offset, and hyperthread-aware policy, and binding the calling OS thread
// to it. The arithmetic is a direct port of WorkerIndex::get_core_index
// from the Rust tracker this module descends from.
package cpuaffinity

import (
	"runtime"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/kirinse/aquatic-go/internal/config"
	"github.com/kirinse/aquatic-go/internal/consts"
)

// WorkerKind distinguishes the worker roles a policy can place, mirroring
// the original's WorkerIndex enum (SocketWorker/SwarmWorker/Util). This
// module only has socket workers and a single utility goroutine, since
// the Go port folds swarm work into each socket worker rather than
// running a separate swarm-worker tier.
type WorkerKind int

const (
	SocketWorker WorkerKind = iota
	Util
)

// WorkerIndex identifies one worker to place, by kind and ordinal.
type WorkerIndex struct {
	Kind  WorkerKind
	Index int
}

// CoreIndex computes the target core for idx under policy, given the
// total number of socket workers and the number of logical cores
// detected on the host. It mirrors get_core_index exactly: an ascending
// index is built from core_offset plus the worker's ordinal, clamped to
// the last valid core, then mirrored if the policy direction is
// descending.
func CoreIndex(policy config.CPUPinningConfig, idx WorkerIndex, socketWorkers, numCores int) int {
	ascending := policy.CoreOffset
	switch idx.Kind {
	case SocketWorker:
		ascending += idx.Index
	case Util:
		ascending += socketWorkers
	}

	maxCoreIndex := numCores - 1
	if ascending > maxCoreIndex {
		ascending = maxCoreIndex
	}

	if policy.Direction == config.DirectionDescending {
		return maxCoreIndex - ascending
	}
	return ascending
}

// NumCores reports the number of logical CPUs gopsutil can see, falling
// back to runtime.NumCPU if the platform probe fails (gopsutil reads
// /proc/cpuinfo on Linux and can legitimately fail in restricted
// containers).
func NumCores() (int, error) {
	n, err := cpu.Counts(true)
	if err != nil || n == 0 {
		n = runtime.NumCPU()
	}
	if n == 0 {
		return 0, errors.Wrap(consts.ErrEmptyCPUSet, "no logical CPUs detected")
	}
	return n, nil
}

// TooManyWorkers reports whether placing a core at coreIndex under a
// split/subsequent hyperthread mapping would claim a hyperthread sibling
// that belongs to the other half of the core range, which the original
// treats as a fatal misconfiguration rather than silently doubling up
// workers on one physical core.
func TooManyWorkers(policy config.CPUPinningConfig, coreIndex, numCores int) bool {
	switch policy.Hyperthread {
	case config.HyperthreadSplit, config.HyperthreadSubsequent:
	default:
		return false
	}
	half := numCores / 2
	if policy.Direction == config.DirectionDescending {
		return coreIndex < half
	}
	return coreIndex >= half
}

// Bind pins the calling OS thread to the core computed for idx under
// policy. Callers must have called runtime.LockOSThread first so the
// affinity change sticks to the goroutine's current thread rather than
// being silently dropped on the next reschedule.
func Bind(policy config.CPUPinningConfig, idx WorkerIndex, socketWorkers int) error {
	if !policy.Active {
		return nil
	}
	numCores, err := NumCores()
	if err != nil {
		return err
	}
	if socketWorkers+1 > numCores {
		return errors.Wrapf(consts.ErrTooManyWorkers, "%d socket workers exceed %d logical cores", socketWorkers, numCores)
	}

	coreIndex := CoreIndex(policy, idx, socketWorkers, numCores)
	if TooManyWorkers(policy, coreIndex, numCores) {
		return errors.Wrapf(consts.ErrTooManyWorkers, "core index %d incompatible with hyperthread mapping %q", coreIndex, policy.Hyperthread)
	}

	return bindToCore(coreIndex)
}

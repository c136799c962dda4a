//go:build linux

package cpuaffinity

import "golang.org/x/sys/unix"

func bindToCore(coreIndex int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(coreIndex)
	return unix.SchedSetaffinity(0, &set)
}

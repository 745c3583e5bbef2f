//go:build linux

package rtloop

import (
	"golang.org/x/sys/unix"
)

// pinToCPU restricts the calling thread's affinity mask to exactly cpu.
func pinToCPU(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}

// setRealtimePriority requests SCHED_FIFO at a fixed priority for the
// calling thread. Requires CAP_SYS_NICE; callers treat failure as
// non-fatal and continue at the default scheduling class.
func setRealtimePriority() error {
	return unix.SchedSetscheduler(0, unix.SCHED_FIFO, &unix.SchedParam{Priority: 80})
}

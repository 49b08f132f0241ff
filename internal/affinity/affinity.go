// Package affinity pins the calling goroutine's OS thread to a single
// host CPU, for real-time multi-core execution.
package affinity

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// PinCurrentThread locks the calling goroutine to its current OS thread
// and restricts that thread to run only on cpu. Callers run this once,
// early, on the goroutine that will drive a single Output's
// next_record loop; never call it from a goroutine handling more than
// one Output.
func PinCurrentThread(cpu int) error {
	if cpu < 0 {
		return fmt.Errorf("affinity: invalid cpu %d", cpu)
	}
	runtime.LockOSThread()

	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)

	if err := unix.SchedSetaffinity(0, &set); err != nil {
		runtime.UnlockOSThread()
		return fmt.Errorf("affinity: SchedSetaffinity(cpu=%d): %w", cpu, err)
	}
	return nil
}

// AvailableCPUs returns the number of CPUs the current OS thread is
// permitted to run on.
func AvailableCPUs() (int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return 0, fmt.Errorf("affinity: SchedGetaffinity: %w", err)
	}
	return set.Count(), nil
}

// Package scheduler implements the trace scheduler's policy, injection
// engine, record/replay, and rebalancer/stealer: the component that
// multiplexes Inputs onto Outputs and drives the public output.Stream
// facade.
package scheduler

import "tracesched/output"

// Mode selects the scheduling policy.
type Mode int

const (
	// ModeMapToAnyOutput: dynamic, any ready input may run on any output.
	ModeMapToAnyOutput Mode = iota
	// ModeMapToRecordedOutput: replay of a recorded per-cpu schedule; an
	// output only accepts inputs previously observed on its bound cpuid.
	ModeMapToRecordedOutput
	// ModeMapAsPreviously: replay of a previously recorded scheduler run.
	ModeMapAsPreviously
	// ModeSerial: a single output with all inputs interleaved by timestamp.
	ModeSerial
	// ModeParallel: one output per input, no interleaving.
	ModeParallel
)

// Config gathers every scheduling knob into one explicit value,
// constructed once by the caller and borrowed for the run; the
// scheduler keeps no global state.
type Config struct {
	Mode       Mode
	NumOutputs int

	QuantumKind output.QuantumKind
	QuantumSize uint64

	// DependencyTimestamps enables cross-output timestamp ordering
	// and makes the runqueue's timestamp ordering key
	// participate in ready-queue comparisons.
	DependencyTimestamps bool

	// HonorDirectSwitches gates whether DIRECT_THREAD_SWITCH markers are
	// honored.
	HonorDirectSwitches bool

	// HonorInfiniteTimeouts disables the hang-avoidance fallback wake
	// when true; when false, an output with nothing else to run forcibly
	// wakes the waiting input with the nearest wake time.
	HonorInfiniteTimeouts bool

	// BlockingSwitchThreshold, BlockTimeMultiplier, BlockTimeMax
	// parameterize the MAYBE_BLOCKING_SYSCALL voluntary yield.
	BlockingSwitchThreshold uint64
	BlockTimeMultiplier     float64
	BlockTimeMax            uint64

	// RebalancePeriod and MigrationThreshold parameterize periodic
	// rebalancing and work stealing. The fallback wake does not wait for
	// RebalancePeriod: it fires as soon as an output finds nothing else
	// to run.
	RebalancePeriod    uint64
	MigrationThreshold uint64

	// PinOutputsToCPUs pins each output worker's OS thread to a host CPU
	// via internal/affinity, for real-time multi-core execution.
	PinOutputsToCPUs bool

	// OnlyThreads/OnlyShards are checked at init time; a disjoint or
	// out-of-range filter is an invalid parameter. They are validated
	// only: inputs and outputs outside them are still scheduled.
	OnlyThreads []int64
	OnlyShards  []int

	// OutputLimits caps, per workload index, how many outputs may
	// concurrently run that workload's inputs.
	OutputLimits map[int]int

	// RecordedCpuids lists the cpuid each output ordinal is bound to
	// under ModeMapToRecordedOutput; the set is sorted internally so
	// output assignment is deterministic.
	RecordedCpuids []int64
}

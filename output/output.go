// Package output implements the per-core cursor: an
// Output's own ordinals, its currently running input, a speculation
// stack, a quantum counter, and per-output statistics, plus the public
// Stream facade that the consumer drives.
package output

import (
	"tracesched/internal/arena"
	"tracesched/record"
)

// Status is the result of a Stream.NextRecord call.
type Status int

const (
	StatusOK Status = iota
	StatusWait
	StatusIdle
	StatusEOF
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusWait:
		return "wait"
	case StatusIdle:
		return "idle"
	case StatusEOF:
		return "eof"
	case StatusError:
		return "error"
	default:
		return "invalid"
	}
}

// QuantumKind selects whether a quantum is measured in instructions or
// simulated microseconds.
type QuantumKind int

const (
	QuantumInstructions QuantumKind = iota
	QuantumMicroseconds
)

// Output owns one output core's cursor: ordinals incremented for every
// delivered record (including injected ones), the currently
// running input (if any), a speculation stack, a quantum counter, and
// statistics. Output takes no lock of its own; the scheduler mutates it
// only while holding the scheduler mutex.
type Output struct {
	ordinal int
	cpuid   int64

	recordOrdinal uint64
	instrOrdinal  uint64

	active bool

	runningHandle arena.Handle
	hasRunning    bool
	hasHadRunning bool
	runningTid    int64
	runningPid    int64

	forcedNext    arena.Handle
	hasForcedNext bool

	quantumKind      QuantumKind
	quantumSize      uint64
	quantumRemaining uint64
	quantumStartTime uint64

	filetype uint64

	lastTimestamp  uint64
	lastCpuidField int64
	lastShard      int

	spec []specFrame

	pendingSynthetic []record.Record

	pendingBlockCheck bool
	pendingBlockPreTs uint64

	lastDelivered        record.Record
	hasLastDelivered     bool
	lastWasSpeculative   bool
	consecutiveUnread    bool

	lastRanTime uint64

	Stats *Stats
}

// New builds an Output bound to the given output ordinal and (for
// MAP_TO_RECORDED_OUTPUT) cpuid.
func New(ordinal int, cpuid int64, quantumKind QuantumKind, quantumSize uint64) *Output {
	return &Output{
		ordinal:          ordinal,
		cpuid:            cpuid,
		active:           true,
		runningHandle:    0,
		quantumKind:      quantumKind,
		quantumSize:      quantumSize,
		quantumRemaining: quantumSize,
		Stats:            NewStats(),
		lastShard:        ordinal,
	}
}

// Ordinal returns the output's ordinal.
func (o *Output) Ordinal() int { return o.ordinal }

// CPUID returns the cpuid this output is bound to (MAP_TO_RECORDED_OUTPUT).
func (o *Output) CPUID() int64 { return o.cpuid }

// SetCPUID rebinds the output's cpuid.
func (o *Output) SetCPUID(cpuid int64) { o.cpuid = cpuid }

// Active reports whether this output is eligible to run inputs.
func (o *Output) Active() bool { return o.active }

// SetActiveFlag raw-sets the active flag; the scheduler is responsible
// for releasing any running input back to the runqueue when
// deactivating.
func (o *Output) SetActiveFlag(active bool) { o.active = active }

// RecordOrdinal returns the cumulative record ordinal delivered on this
// output, including injected and speculative records.
func (o *Output) RecordOrdinal() uint64 { return o.recordOrdinal }

// InstructionOrdinal returns the cumulative instruction ordinal
// delivered on this output.
func (o *Output) InstructionOrdinal() uint64 { return o.instrOrdinal }

// AdvanceOrdinals increments the output's record ordinal, and its
// instruction ordinal when isInstr is set. Called for every delivered
// record: real, injected, or speculative.
func (o *Output) AdvanceOrdinals(isInstr bool) {
	o.recordOrdinal++
	if isInstr {
		o.instrOrdinal++
	}
}

// RunningHandle returns the handle of the input currently bound as
// running, and whether one is bound at all.
func (o *Output) RunningHandle() (arena.Handle, bool) { return o.runningHandle, o.hasRunning }

// SetRunning binds handle as the currently running input (at most one
// output may hold an input as running at a time).
func (o *Output) SetRunning(handle arena.Handle, tid, pid int64) {
	o.runningHandle = handle
	o.hasRunning = true
	o.hasHadRunning = true
	o.runningTid = tid
	o.runningPid = pid
}

// ClearRunning releases the currently running input binding. The last
// tid/pid remain visible through RunningTidPid so the scheduler can
// still tell whether the next bound input is a context switch.
func (o *Output) ClearRunning() {
	o.hasRunning = false
	o.runningHandle = 0
}

// RunningTidPid returns the tid/pid of the currently (or most recently)
// running input, as last set by SetRunning.
func (o *Output) RunningTidPid() (tid, pid int64) { return o.runningTid, o.runningPid }

// HasHadRunning reports whether this output has ever had an input bound
// as running, distinguishing "never ran anything" from "idle between
// runs" for context-switch injection.
func (o *Output) HasHadRunning() bool { return o.hasHadRunning }

// SetForcedNext records a specific input handle that must be bound next
// on this output regardless of runqueue order, honoring a
// DIRECT_THREAD_SWITCH. The caller is responsible for having already
// removed handle from wherever it was queued.
func (o *Output) SetForcedNext(handle arena.Handle) {
	o.forcedNext = handle
	o.hasForcedNext = true
}

// TakeForcedNext consumes and returns any pending forced-next handle.
func (o *Output) TakeForcedNext() (arena.Handle, bool) {
	if !o.hasForcedNext {
		return 0, false
	}
	o.hasForcedNext = false
	h := o.forcedNext
	o.forcedNext = 0
	return h, true
}

// Filetype returns the filetype bits exposed to the consumer, OR-ed
// with KERNEL_SYSCALLS once a syscall-trace sequence has been spliced
// in.
func (o *Output) Filetype() uint64 { return o.filetype }

// ORFiletype ORs bits into the exposed filetype.
func (o *Output) ORFiletype(bits uint64) { o.filetype |= bits }

// LastTimestamp/LastCpuidSeen/ShardIndex back the Stream accessors,
// updated by the scheduler alongside every delivered record.
func (o *Output) LastTimestamp() uint64 { return o.lastTimestamp }
func (o *Output) LastCpuidSeen() int64  { return o.lastCpuidField }
func (o *Output) ShardIndex() int       { return o.lastShard }

// SetLastTimestamp/SetLastCpuidSeen/SetShardIndex are the scheduler's
// setters for the above.
func (o *Output) SetLastTimestamp(ts uint64)   { o.lastTimestamp = ts }
func (o *Output) SetLastCpuidSeen(cpu int64)   { o.lastCpuidField = cpu }
func (o *Output) SetShardIndex(idx int)        { o.lastShard = idx }

// LastRanTime returns the simulated time at which an input was most
// recently bound to this output.
func (o *Output) LastRanTime() uint64 { return o.lastRanTime }

// SetLastRanTime records the time an input was most recently bound to
// this output.
func (o *Output) SetLastRanTime(t uint64) { o.lastRanTime = t }

// ResetQuantum resets the quantum counter to its configured size,
// recording startTime for time-based quanta.
func (o *Output) ResetQuantum(startTime uint64) {
	o.quantumRemaining = o.quantumSize
	o.quantumStartTime = startTime
}

// ConsumeInstrQuantum decrements the instruction quantum by one and
// reports whether it has now expired. A no-op (always false) under
// QuantumMicroseconds, whose expiry is checked via QuantumExpiredAt
// instead.
func (o *Output) ConsumeInstrQuantum() (expired bool) {
	if o.quantumKind != QuantumInstructions {
		return false
	}
	if o.quantumRemaining == 0 {
		return true
	}
	o.quantumRemaining--
	return o.quantumRemaining == 0
}

// QuantumExpiredAt reports whether a microsecond quantum has expired as
// of currentTime. A no-op (always false) under QuantumInstructions.
func (o *Output) QuantumExpiredAt(currentTime uint64) bool {
	if o.quantumKind != QuantumMicroseconds {
		return false
	}
	return currentTime-o.quantumStartTime >= o.quantumSize
}

// QuantumKind/QuantumSize expose the configured quantum for display and
// tests.
func (o *Output) QuantumKind() QuantumKind { return o.quantumKind }
func (o *Output) QuantumSize() uint64      { return o.quantumSize }

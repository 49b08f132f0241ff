// Package errors provides predefined sentinel errors for common failure
// cases.
package errors

// Init-time configuration errors.
var (
	// ErrEmptyWorkload indicates a workload with no inputs was
	// configured.
	ErrEmptyWorkload = &SchedulerError{
		Kind: ErrInvalidParameter, Detail: "workload has no inputs", Output: -1,
	}

	// ErrConflictingRegions indicates an input's regions of interest
	// overlap or are out of order.
	ErrConflictingRegions = &SchedulerError{
		Kind: ErrInvalidParameter, Detail: "conflicting regions of interest", Output: -1,
	}

	// ErrOnlyThreadsDisjoint indicates an only_threads filter names no
	// thread present in any workload.
	ErrOnlyThreadsDisjoint = &SchedulerError{
		Kind: ErrInvalidParameter, Detail: "only_threads is disjoint from the configured thread set", Output: -1,
	}

	// ErrOnlyShardsOutOfRange indicates an only_shards filter names a
	// shard index beyond the configured output count.
	ErrOnlyShardsOutOfRange = &SchedulerError{
		Kind: ErrInvalidParameter, Detail: "only_shards index out of range", Output: -1,
	}

	// ErrMalformedSchedule indicates a recorded schedule file failed
	// to parse or is internally inconsistent.
	ErrMalformedSchedule = &SchedulerError{
		Kind: ErrInvalidParameter, Detail: "malformed recorded schedule", Output: -1,
	}

	// ErrDuplicateTraceStart indicates init-time validation found a
	// nested SYSCALL_TRACE_START for the same syscall number, a fatal
	// config error.
	ErrDuplicateTraceStart = &SchedulerError{
		Kind: ErrInvalidParameter, Detail: "duplicate SYSCALL_TRACE_START for the same syscall number", Output: -1,
	}
)

// Range errors.
var (
	// ErrROIBeyondEOF indicates a region of interest starts or ends
	// beyond the input's last instruction.
	ErrROIBeyondEOF = &SchedulerError{
		Kind: ErrRangeInvalid, Detail: "region of interest beyond last instruction", Output: -1,
	}
)

// Not-implemented errors.
var (
	// ErrOnlineCoreSharded indicates an online/IPC input was combined
	// with core-sharded output, a combination the core does not
	// implement.
	ErrOnlineCoreSharded = &SchedulerError{
		Kind: ErrNotImplemented, Detail: "online input combined with core-sharded output", Output: -1,
	}
)

// Runtime state errors.
var (
	// ErrOutputInactive indicates an operation was attempted on an
	// output that has been set inactive.
	ErrOutputInactive = &SchedulerError{
		Kind: ErrInvalidState, Detail: "output is inactive", Output: -1,
	}

	// ErrNoRunningInput indicates an operation needing a currently
	// running input found none bound to the output.
	ErrNoRunningInput = &SchedulerError{
		Kind: ErrInvalidState, Detail: "output has no running input", Output: -1,
	}

	// ErrUnreadNotAvailable indicates unread_last_record was called
	// when the last delivery was synthesized during speculation, or
	// called consecutively.
	ErrUnreadNotAvailable = &SchedulerError{
		Kind: ErrInvalidState, Detail: "no record available to unread", Output: -1,
	}

	// ErrSpeculationAfterUnread indicates start_speculation was called
	// immediately after unread_last_record with no intervening read
	//.
	ErrSpeculationAfterUnread = &SchedulerError{
		Kind: ErrInvalidState, Detail: "start_speculation called after unread with no read in between", Output: -1,
	}

	// ErrNoSpeculationFrame indicates stop_speculation was called with
	// no active speculation frame.
	ErrNoSpeculationFrame = &SchedulerError{
		Kind: ErrInvalidState, Detail: "no active speculation frame", Output: -1,
	}
)

// Injection errors.
var (
	// ErrUnmatchedContextSwitch indicates no context-switch sequence
	// of the required kind was available to splice in.
	ErrUnmatchedContextSwitch = &SchedulerError{
		Kind: ErrInjection, Detail: "no matching context-switch sequence available", Output: -1,
	}

	// ErrUnmatchedSyscallTrace indicates no syscall-trace sequence for
	// the required syscall number was available to splice in.
	ErrUnmatchedSyscallTrace = &SchedulerError{
		Kind: ErrInjection, Detail: "no matching syscall-trace sequence available", Output: -1,
	}
)

// Replay errors.
var (
	// ErrReplayDiverged indicates the live input stream no longer
	// matches the recorded schedule it is replaying.
	ErrReplayDiverged = &SchedulerError{
		Kind: ErrReplay, Detail: "replay diverged from the recorded schedule", Output: -1,
	}

	// ErrReplayTruncated indicates a recorded-schedule component ended
	// without a FOOTER entry.
	ErrReplayTruncated = &SchedulerError{
		Kind: ErrReplay, Detail: "recorded-schedule component truncated before its footer", Output: -1,
	}
)

// Reader errors.
var (
	// ErrReaderFailed indicates a reader signaled a fatal error rather
	// than a clean EOF; there is no automatic retry.
	ErrReaderFailed = &SchedulerError{
		Kind: ErrReader, Detail: "reader failed", Output: -1,
	}
)

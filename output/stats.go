package output

import "sync/atomic"

// StatKind names one of the statistics GetScheduleStatistic can
// report.
type StatKind int

const (
	StatSwitchesPreempt StatKind = iota
	StatSwitchesVoluntary
	StatSwitchesDirect
	StatPreempts
	StatMigrations
	StatDirectSwitchAttempts
	StatDirectSwitchSuccesses
	StatRunqueueSteals
	StatIdleRecords
	StatWaitRecords
	StatOutputLimitHits
	StatContextSwitchesInjected
	StatSyscallTracesInjected
)

// Stats holds one output's statistics counters as atomic.Uint64
// fields, so they can be read without a lock; the scheduler increments
// them inside NextRecord while holding its mutex.
type Stats struct {
	SwitchesPreempt       atomic.Uint64
	SwitchesVoluntary     atomic.Uint64
	SwitchesDirect        atomic.Uint64
	Preempts              atomic.Uint64
	Migrations            atomic.Uint64
	DirectSwitchAttempts  atomic.Uint64
	DirectSwitchSuccesses atomic.Uint64
	RunqueueSteals        atomic.Uint64
	IdleRecords           atomic.Uint64
	WaitRecords           atomic.Uint64
	OutputLimitHits       atomic.Uint64
	ContextSwitchesInjected atomic.Uint64
	SyscallTracesInjected   atomic.Uint64
}

// NewStats builds a zeroed Stats.
func NewStats() *Stats { return &Stats{} }

// Get returns the counter named by kind.
func (s *Stats) Get(kind StatKind) uint64 {
	switch kind {
	case StatSwitchesPreempt:
		return s.SwitchesPreempt.Load()
	case StatSwitchesVoluntary:
		return s.SwitchesVoluntary.Load()
	case StatSwitchesDirect:
		return s.SwitchesDirect.Load()
	case StatPreempts:
		return s.Preempts.Load()
	case StatMigrations:
		return s.Migrations.Load()
	case StatDirectSwitchAttempts:
		return s.DirectSwitchAttempts.Load()
	case StatDirectSwitchSuccesses:
		return s.DirectSwitchSuccesses.Load()
	case StatRunqueueSteals:
		return s.RunqueueSteals.Load()
	case StatIdleRecords:
		return s.IdleRecords.Load()
	case StatWaitRecords:
		return s.WaitRecords.Load()
	case StatOutputLimitHits:
		return s.OutputLimitHits.Load()
	case StatContextSwitchesInjected:
		return s.ContextSwitchesInjected.Load()
	case StatSyscallTracesInjected:
		return s.SyscallTracesInjected.Load()
	default:
		return 0
	}
}

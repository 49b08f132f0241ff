package scheduler

import (
	"tracesched/input"
	"tracesched/output"
)

// Stat implements output.Engine.
func (s *Scheduler) Stat(outputOrdinal int, kind output.StatKind) uint64 {
	return s.output(outputOrdinal).Stats.Get(kind)
}

// AggregateStat sums the named statistic across every output.
// Statistics are kept per output; cross-output aggregation is the
// caller's job, and this is that caller-side helper.
func (s *Scheduler) AggregateStat(kind output.StatKind) uint64 {
	var total uint64
	for _, out := range s.outputs {
		total += out.Stats.Get(kind)
	}
	return total
}

// RecordOrdinal implements output.Engine.
func (s *Scheduler) RecordOrdinal(outputOrdinal int) uint64 {
	return s.output(outputOrdinal).RecordOrdinal()
}

// InstructionOrdinal implements output.Engine.
func (s *Scheduler) InstructionOrdinal(outputOrdinal int) uint64 {
	return s.output(outputOrdinal).InstructionOrdinal()
}

// LastTimestamp implements output.Engine.
func (s *Scheduler) LastTimestamp(outputOrdinal int) uint64 {
	return s.output(outputOrdinal).LastTimestamp()
}

// OutputCPUID implements output.Engine.
func (s *Scheduler) OutputCPUID(outputOrdinal int) int64 {
	return s.output(outputOrdinal).CPUID()
}

// ShardIndex implements output.Engine.
func (s *Scheduler) ShardIndex(outputOrdinal int) int {
	return s.output(outputOrdinal).ShardIndex()
}

// Filetype implements output.Engine: the filetype bits exposed to the
// consumer, OR-ed with KERNEL_SYSCALLS once a syscall-trace sequence
// has been spliced in.
func (s *Scheduler) Filetype(outputOrdinal int) uint64 {
	return s.output(outputOrdinal).Filetype()
}

// Tid implements output.Engine: the tid of the input currently (or most
// recently) bound to this output.
func (s *Scheduler) Tid(outputOrdinal int) int64 {
	tid, _ := s.output(outputOrdinal).RunningTidPid()
	return tid
}

// WorkloadID implements output.Engine.
func (s *Scheduler) WorkloadID(outputOrdinal int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	handle, ok := s.output(outputOrdinal).RunningHandle()
	if !ok {
		return -1
	}
	return s.inputs.Get(handle).WorkloadIndex
}

// InputID implements output.Engine.
func (s *Scheduler) InputID(outputOrdinal int) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	handle, ok := s.output(outputOrdinal).RunningHandle()
	if !ok {
		return 0
	}
	return s.inputs.Get(handle).ID()
}

// InputReader implements output.Engine: the reader interface of the
// input currently bound to this output, or nil when none is running.
func (s *Scheduler) InputReader(outputOrdinal int) input.Reader {
	s.mu.Lock()
	defer s.mu.Unlock()
	handle, ok := s.output(outputOrdinal).RunningHandle()
	if !ok {
		return nil
	}
	return s.inputs.Get(handle).Reader()
}

// IsRecordSynthetic implements output.Engine: whether the last-delivered
// record on this output was injected or speculative.
func (s *Scheduler) IsRecordSynthetic(outputOrdinal int) bool {
	return s.output(outputOrdinal).LastDeliveredSynthetic()
}

// IsRecordKernel implements output.Engine: whether the last-delivered
// record belongs to an injected context-switch or syscall-trace
// sequence.
func (s *Scheduler) IsRecordKernel(outputOrdinal int) bool {
	return s.output(outputOrdinal).LastDeliveredKernel()
}

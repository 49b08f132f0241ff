package scheduler

import (
	cerrors "tracesched/errors"
	"tracesched/input"
	"tracesched/record"
)

// injector holds the caller-supplied context-switch and syscall-trace
// sequences loaded at init time, indexed for splicing into an output's
// delivered stream without disturbing any input's own ordinals.
type injector struct {
	hasContextSwitch bool
	ctxSwitch        map[record.ContextSwitchKind][][]record.Record
	ctxCursor        map[record.ContextSwitchKind]int

	hasSyscallTrace bool
	syscallTrace    map[int64][][]record.Record
	traceCursor     map[int64]int
}

func newInjector() *injector {
	return &injector{
		ctxSwitch:    make(map[record.ContextSwitchKind][][]record.Record),
		ctxCursor:    make(map[record.ContextSwitchKind]int),
		syscallTrace: make(map[int64][][]record.Record),
		traceCursor:  make(map[int64]int),
	}
}

// LoadContextSwitchSequences reads every CONTEXT_SWITCH_START(kind) ...
// CONTEXT_SWITCH_END(kind) sequence out of reader and indexes them by
// kind for later splicing.
func (s *Scheduler) LoadContextSwitchSequences(reader input.Reader) error {
	if !reader.Init() {
		return cerrors.WrapWithDetail(nil, cerrors.ErrInvalidParameter, "load context switch sequences",
			"reader failed to initialize")
	}
	s.inject.hasContextSwitch = true
	var cur []record.Record
	var curKind record.ContextSwitchKind
	inSeq := false
	for {
		rec, ok, err := reader.ReadNext()
		if err != nil {
			return cerrors.Wrap(err, cerrors.ErrReader, "load context switch sequences")
		}
		if !ok {
			break
		}
		switch {
		case rec.IsMarker(record.MarkerContextSwitchStart):
			inSeq = true
			curKind = rec.ContextSwitch
			cur = []record.Record{stampInjected(rec)}
		case rec.IsMarker(record.MarkerContextSwitchEnd):
			cur = append(cur, stampInjected(rec))
			s.inject.ctxSwitch[curKind] = append(s.inject.ctxSwitch[curKind], cur)
			inSeq = false
			cur = nil
		default:
			if inSeq {
				cur = append(cur, stampInjected(rec))
			}
		}
	}
	return nil
}

// LoadSyscallTraceSequences reads every SYSCALL_TRACE_START(num) ...
// SYSCALL_TRACE_END(num) sequence out of reader. A TRACE_START for a
// syscall number already open (no matching TRACE_END yet) is a fatal
// config error, caught here rather than left to surface mid-run.
func (s *Scheduler) LoadSyscallTraceSequences(reader input.Reader) error {
	if !reader.Init() {
		return cerrors.WrapWithDetail(nil, cerrors.ErrInvalidParameter, "load syscall trace sequences",
			"reader failed to initialize")
	}
	s.inject.hasSyscallTrace = true
	open := make(map[int64]bool)
	sequences := make(map[int64][]record.Record)
	for {
		rec, ok, err := reader.ReadNext()
		if err != nil {
			return cerrors.Wrap(err, cerrors.ErrReader, "load syscall trace sequences")
		}
		if !ok {
			break
		}
		switch {
		case rec.IsMarker(record.MarkerSyscallTraceStart):
			num := rec.SyscallNum
			if open[num] {
				return cerrors.ErrDuplicateTraceStart
			}
			open[num] = true
			sequences[num] = []record.Record{stampInjected(rec)}
		case rec.IsMarker(record.MarkerSyscallTraceEnd):
			num := rec.SyscallNum
			sequences[num] = append(sequences[num], stampInjected(rec))
			s.inject.syscallTrace[num] = append(s.inject.syscallTrace[num], sequences[num])
			delete(open, num)
			delete(sequences, num)
		default:
			for num := range open {
				sequences[num] = append(sequences[num], stampInjected(rec))
			}
		}
	}
	return nil
}

// stampInjected marks rec as synthetic and kernel: it counts toward the
// output's record ordinal but is flagged as kernel-sourced and never
// advances any input's own ordinal.
func stampInjected(rec record.Record) record.Record {
	rec.Synthetic = true
	rec.Kernel = true
	return rec
}

// contextSwitchSequence returns the next sequence for kind, cycling
// through any sequences the loaded reader supplied of that kind for a
// stable, deterministic rotation across repeated switches.
func (in *injector) contextSwitchSequence(kind record.ContextSwitchKind) ([]record.Record, bool) {
	seqs := in.ctxSwitch[kind]
	if len(seqs) == 0 {
		return nil, false
	}
	idx := in.ctxCursor[kind] % len(seqs)
	in.ctxCursor[kind]++
	return seqs[idx], true
}

// syscallTraceSequence returns the next sequence for syscall number num.
func (in *injector) syscallTraceSequence(num int64) ([]record.Record, bool) {
	seqs := in.syscallTrace[num]
	if len(seqs) == 0 {
		return nil, false
	}
	idx := in.traceCursor[num] % len(seqs)
	in.traceCursor[num]++
	return seqs[idx], true
}

// spliceContextSwitch queues the context-switch sequence (if any
// applies) followed by the new input's synthesized THREAD_ID/PROCESS_ID
// headers, so the switch's _START marker always precedes the new
// input's identity headers. prevTid/prevPid/hadPrev describe the
// previously running input on this output, if any.
func (s *Scheduler) spliceContextSwitch(outputOrdinal int, newTid, newPid int64, prevTid, prevPid int64, hadPrev bool) error {
	out := s.output(outputOrdinal)
	if hadPrev {
		var kind record.ContextSwitchKind
		var isSwitch bool
		switch {
		case newPid != prevPid:
			kind, isSwitch = record.ContextSwitchProcess, true
		case newTid != prevTid:
			kind, isSwitch = record.ContextSwitchThread, true
		}
		if isSwitch && s.inject.hasContextSwitch {
			// A switch with no sequence of the matching kind loaded is
			// simply not instrumented.
			if seq, ok := s.inject.contextSwitchSequence(kind); ok {
				for _, rec := range seq {
					out.PushPending(rec)
				}
				out.Stats.ContextSwitchesInjected.Add(1)
				s.hooks.Fire(EventContextSwitch, HookInfo{
					Output: outputOrdinal, Tid: newTid, Time: s.now,
				})
			}
		}
	}
	headerTid := record.MakeThreadID(newTid)
	headerTid.Synthetic = true
	headerPid := record.MakeProcessID(newPid)
	headerPid.Synthetic = true
	out.PushPending(headerTid)
	out.PushPending(headerPid)
	return nil
}

// maybeSpliceSyscallTrace stages the syscall-trace sequence for num (if
// one is configured) ahead of the instruction that will follow the just
// delivered SYSCALL marker.
func (s *Scheduler) maybeSpliceSyscallTrace(outputOrdinal int, num int64) error {
	if !s.inject.hasSyscallTrace {
		return nil
	}
	// Only syscall numbers with a loaded sequence are instrumented.
	seq, ok := s.inject.syscallTraceSequence(num)
	if !ok {
		return nil
	}
	out := s.output(outputOrdinal)
	for _, rec := range seq {
		out.PushPending(rec)
	}
	out.ORFiletype(record.FiletypeKernelSyscalls)
	out.Stats.SyscallTracesInjected.Add(1)
	return nil
}

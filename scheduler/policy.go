package scheduler

import (
	cerrors "tracesched/errors"
	"tracesched/input"
	"tracesched/internal/arena"
	"tracesched/output"
	"tracesched/record"
	"tracesched/runqueue"
)

// NextRecord implements output.Engine: it is the single entry point
// that picks an input to run on outputOrdinal (if none is already
// bound), pops or synthesizes the next record for it, and reports the
// transitions a delivered record causes.
func (s *Scheduler) NextRecord(outputOrdinal int, currentTime *uint64) (record.Record, output.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if currentTime != nil {
		s.now = *currentTime
		s.timeDriven = true
	}

	out := s.output(outputOrdinal)

	if !out.Active() {
		out.Stats.IdleRecords.Add(1)
		return record.MakeCoreIdle(), output.StatusIdle, nil
	}

	s.maybeRebalance()

	for {
		if out.Speculating() {
			rec := out.NextSpeculativeRecord()
			out.AdvanceOrdinals(true)
			out.RecordDelivered(rec, true)
			return rec, output.StatusOK, nil
		}

		if rec, ok := out.PopPending(); ok {
			s.observeDeliveredMarker(out, rec)
			out.AdvanceOrdinals(rec.IsInstr())
			out.RecordDelivered(rec, false)
			return rec, output.StatusOK, nil
		}

		handle, hasRunning := out.RunningHandle()
		if !hasRunning {
			h, status, err := s.bindNextInput(outputOrdinal)
			if err != nil {
				s.setError(outputOrdinal, err)
				return record.Record{}, output.StatusError, err
			}
			if status != output.StatusOK {
				// WAIT and IDLE are themselves synthesized records with
				// CORE_WAIT/CORE_IDLE marker subkinds.
				switch status {
				case output.StatusIdle:
					out.Stats.IdleRecords.Add(1)
					return record.MakeCoreIdle(), status, nil
				case output.StatusWait:
					out.Stats.WaitRecords.Add(1)
					return record.MakeCoreWait(), status, nil
				}
				return record.Record{}, status, nil
			}
			handle = h
			continue
		}

		in := s.inputs.Get(handle)
		rec, perr := in.Pop()
		if perr != nil {
			if cerrors.Is(perr, input.ErrEOF) {
				in.MarkEOF()
				s.unbindRunning(outputOrdinal, handle)
				continue
			}
			s.setError(outputOrdinal, perr)
			return record.Record{}, output.StatusError, perr
		}

		if rec.IsMarker(record.MarkerTimestamp) {
			// Serial mode interleaves all inputs by timestamp on the
			// single output: if another queued input's next timestamp
			// precedes this one, put the marker (and the input) back and
			// rebind. Pop has already recorded the marker's value as the
			// input's last timestamp, so the requeued ordering key is
			// exactly the timestamp it would deliver next.
			if s.cfg.Mode == ModeSerial && s.serialYieldRequired(rec.MarkerValue) {
				in.Unpop(rec)
				s.unbindRunning(outputOrdinal, handle)
				in.MarkYielded()
				s.pushReady(outputOrdinal, handle, in)
				out.Stats.SwitchesVoluntary.Add(1)
				continue
			}
			// DEPENDENCY_TIMESTAMPS constrains an output about to emit
			// timestamp T to wait until no other output can emit an
			// earlier one; the consumer busy-waits on WAIT.
			if s.cfg.DependencyTimestamps && s.cfg.Mode != ModeSerial &&
				s.dependencyWaitRequired(outputOrdinal, rec.MarkerValue) {
				in.Unpop(rec)
				out.Stats.WaitRecords.Add(1)
				return record.MakeCoreWait(), output.StatusWait, nil
			}
		}

		deliver, err := s.processRecord(outputOrdinal, handle, in, out, rec)
		if err != nil {
			s.setError(outputOrdinal, err)
			return record.Record{}, output.StatusError, err
		}
		if !deliver {
			continue
		}

		out.AdvanceOrdinals(rec.IsInstr())
		out.RecordDelivered(rec, false)
		return rec, output.StatusOK, nil
	}
}

// observeDeliveredMarker keeps the output's last-seen timestamp/cpuid up
// to date for synthetic records too (the WINDOW_ID/TIMESTAMP/CPUID
// sequence injected at a region-of-interest boundary, or an injected
// context-switch sequence).
func (s *Scheduler) observeDeliveredMarker(out *output.Output, rec record.Record) {
	if rec.IsMarker(record.MarkerTimestamp) {
		out.SetLastTimestamp(rec.MarkerValue)
	}
	if rec.IsMarker(record.MarkerCPUID) {
		out.SetLastCpuidSeen(int64(rec.MarkerValue))
	}
}

// processRecord applies rec's side effects (voluntary yields, quantum
// accounting, region-of-interest gating, syscall-trace injection) and
// reports whether rec itself should be delivered to the consumer this
// call. A false return means the caller should loop and pop the next
// record from the same input without rebinding.
func (s *Scheduler) processRecord(outputOrdinal int, handle arena.Handle, in *input.Input, out *output.Output, rec record.Record) (deliver bool, err error) {
	if rec.IsInstr() {
		return s.processInstr(outputOrdinal, handle, in, out, rec)
	}

	if roiSuppressed(in, rec) {
		// Pop has already captured the timestamp/cpuid for the
		// synthesized replacements emitted at the next window entry.
		return false, nil
	}

	switch {
	case rec.IsMarker(record.MarkerTimestamp):
		out.SetLastTimestamp(rec.MarkerValue)
		s.resolvePendingBlockCheck(outputOrdinal, handle, in, out, rec.MarkerValue)
		return true, nil

	case rec.IsMarker(record.MarkerCPUID):
		out.SetLastCpuidSeen(int64(rec.MarkerValue))
		return true, nil

	case rec.IsMarker(record.MarkerMaybeBlockingSyscall):
		out.SetPendingBlockCheck(true, out.LastTimestamp())
		return true, nil

	case rec.IsMarker(record.MarkerSyscall):
		if err := s.maybeSpliceSyscallTrace(outputOrdinal, rec.SyscallNum); err != nil {
			return false, err
		}
		return true, nil

	case rec.IsMarker(record.MarkerSyscallUnscheduled):
		s.handleUnschedule(outputOrdinal, handle, in, out)
		return true, nil

	case rec.IsMarker(record.MarkerSyscallSchedule):
		s.handleSyscallSchedule(int64(rec.MarkerValue), outputOrdinal)
		return true, nil

	case rec.IsMarker(record.MarkerDirectThreadSwitch):
		s.handleDirectThreadSwitch(outputOrdinal, handle, in, out, int64(rec.MarkerValue))
		return true, nil

	default:
		return true, nil
	}
}

// processInstr applies region-of-interest gating and quantum accounting
// to an instruction record.
func (s *Scheduler) processInstr(outputOrdinal int, handle arena.Handle, in *input.Input, out *output.Output, rec record.Record) (deliver bool, err error) {
	if len(in.ROI) > 0 {
		inside, idx := in.InROI(in.InstrOrdinal())
		if !inside {
			return false, nil
		}
		if w, sent := in.CurrentWindow(); !sent || w != idx {
			// Window entry: a WINDOW_ID marker when crossing between
			// windows, then synthesized replacements for the timestamp
			// and cpuid markers the skip suppressed.
			if sent {
				wid := record.MakeWindowID(uint64(idx))
				wid.Synthetic = true
				out.PushPending(wid)
			}
			in.SetWindow(idx)
			ts := record.MakeTimestamp(in.LastTimestamp())
			ts.Synthetic = true
			out.PushPending(ts)
			cp := record.MakeCPUID(in.LastCpuid())
			cp.Synthetic = true
			out.PushPending(cp)
			in.Unpop(rec)
			return false, nil
		}
	}

	if out.ConsumeInstrQuantum() || out.QuantumExpiredAt(s.now) {
		out.Stats.Preempts.Add(1)
		out.Stats.SwitchesPreempt.Add(1)
		out.ResetQuantum(s.now)
		s.unbindRunning(outputOrdinal, handle)
		in.MarkYielded()
		s.pushReady(outputOrdinal, handle, in)
		s.hooks.Fire(EventQuantumExpire, HookInfo{
			Output: outputOrdinal, InputID: in.ID(), Tid: in.Tid, Time: s.now,
		})
	}
	return true, nil
}

// serialYieldRequired reports whether, in serial mode, another queued
// input's next timestamp precedes nextTs.
func (s *Scheduler) serialYieldRequired(nextTs uint64) bool {
	head, ok := s.rq.Queue(0).Peek()
	return ok && head.Timestamp < nextTs
}

// depTimestampLookahead bounds how far into another output's next input
// the ordering gate reads ahead for its upcoming timestamp.
const depTimestampLookahead = 8

// dependencyWaitRequired reports whether another output could still
// emit a timestamp earlier than ts, judged by reading ahead in the
// input that output would deliver next (its running input, or its
// queue's front entry).
func (s *Scheduler) dependencyWaitRequired(outputOrdinal int, ts uint64) bool {
	for i := 0; i < s.cfg.NumOutputs; i++ {
		if i == outputOrdinal || !s.output(i).Active() {
			continue
		}
		var handle arena.Handle
		ok := false
		if h, running := s.output(i).RunningHandle(); running {
			handle, ok = h, true
		} else if head, has := s.rq.Queue(i).Peek(); has {
			handle, ok = head.Handle, true
		}
		if !ok {
			continue
		}
		if hint, known := nextTimestampHint(s.inputs.Get(handle)); known && hint < ts {
			return true
		}
	}
	return false
}

// nextTimestampHint reads ahead in an input for the timestamp it would
// deliver next, falling back to the last one it delivered.
func nextTimestampHint(in *input.Input) (uint64, bool) {
	if ahead, err := in.Peek(depTimestampLookahead); err == nil {
		for _, r := range ahead {
			if r.IsMarker(record.MarkerTimestamp) {
				return r.MarkerValue, true
			}
		}
	}
	if last := in.LastTimestamp(); last > 0 {
		return last, true
	}
	return 0, false
}

// roiSuppressed reports whether a non-instruction record falls outside
// the delivered range of an input with regions of interest: markers,
// memrefs, and encodings are delivered only when the instruction they
// precede is inside the current window. Structural records (headers,
// footers, thread exits) always pass.
func roiSuppressed(in *input.Input, rec record.Record) bool {
	if len(in.ROI) == 0 {
		return false
	}
	switch rec.Kind {
	case record.KindMarker, record.KindMemref, record.KindEncoding:
	default:
		return false
	}
	w, sent := in.CurrentWindow()
	if !sent {
		return true
	}
	next := in.InstrOrdinal() + 1
	r := in.ROI[w]
	if next < r.StartInstr {
		return true
	}
	return r.EndInstr != input.RegionToEOF && next > r.EndInstr
}

// resolvePendingBlockCheck finishes a MAYBE_BLOCKING_SYSCALL decision
// once the post-syscall TIMESTAMP has been popped: if the observed gap
// meets the configured threshold, the input voluntarily yields and is
// parked in the wait set for a scaled duration.
func (s *Scheduler) resolvePendingBlockCheck(outputOrdinal int, handle arena.Handle, in *input.Input, out *output.Output, postTimestamp uint64) {
	armed, preTs := out.PendingBlockCheck()
	if !armed {
		return
	}
	out.SetPendingBlockCheck(false, 0)
	if postTimestamp <= preTs {
		return
	}
	gap := postTimestamp - preTs
	if gap < s.cfg.BlockingSwitchThreshold {
		return
	}
	blockFor := uint64(float64(gap-s.cfg.BlockingSwitchThreshold) * s.cfg.BlockTimeMultiplier)
	if s.cfg.BlockTimeMax > 0 && blockFor > s.cfg.BlockTimeMax {
		blockFor = s.cfg.BlockTimeMax
	}
	wakeAt := s.now + blockFor
	in.MarkBlockedUntil(wakeAt)
	s.rq.Wait.Add(handle, wakeAt, false)
	s.unbindRunning(outputOrdinal, handle)
	out.Stats.SwitchesVoluntary.Add(1)
}

// handleUnschedule parks handle in the wait set, honoring a matching
// SYSCALL_ARG_TIMEOUT peeked immediately ahead, and the suppression
// flag a race with SYSCALL_SCHEDULE may have set.
func (s *Scheduler) handleUnschedule(outputOrdinal int, handle arena.Handle, in *input.Input, out *output.Output) {
	if in.SuppressNextUnschedule {
		in.SuppressNextUnschedule = false
		return
	}

	wakeAt := uint64(0)
	infinite := true
	if ahead, err := in.Peek(1); err == nil && len(ahead) == 1 && ahead[0].IsMarker(record.MarkerSyscallArgTimeout) {
		if _, popErr := in.Pop(); popErr == nil {
			wakeAt = s.now + ahead[0].MarkerValue
			infinite = false
		}
	}

	in.MarkUnscheduled(wakeAt)
	s.rq.Wait.Add(handle, wakeAt, infinite)
	s.unbindRunning(outputOrdinal, handle)
	out.Stats.SwitchesVoluntary.Add(1)
}

// handleSyscallSchedule wakes the targeted tid, or arms the suppression
// flag if it is still running and hasn't reached its own unschedule yet.
func (s *Scheduler) handleSyscallSchedule(targetTid int64, outputOrdinal int) {
	targetHandle, ok := s.tidIndex[targetTid]
	if !ok {
		return
	}
	target := s.inputs.Get(targetHandle)
	if target.State() == input.StateRunning {
		target.SuppressNextUnschedule = true
		return
	}
	s.wake(targetHandle, outputOrdinal)
}

// handleDirectThreadSwitch honors (or records a no-op attempt at) a
// DIRECT_THREAD_SWITCH marker, per Config.HonorDirectSwitches.
func (s *Scheduler) handleDirectThreadSwitch(outputOrdinal int, handle arena.Handle, in *input.Input, out *output.Output, targetTid int64) {
	out.Stats.DirectSwitchAttempts.Add(1)
	if !s.cfg.HonorDirectSwitches {
		return
	}
	targetHandle, ok := s.tidIndex[targetTid]
	if !ok || targetHandle == handle {
		return
	}
	target := s.inputs.Get(targetHandle)
	if !target.AllowedOn(outputOrdinal) {
		return
	}
	switch target.State() {
	case input.StateReady:
		for i := 0; i < s.cfg.NumOutputs; i++ {
			if _, removed := s.rq.Queue(i).Remove(targetHandle); removed {
				break
			}
		}
	case input.StateUnscheduled, input.StateWaitingOn, input.StateBlockedUntil:
		s.rq.Wait.Remove(targetHandle)
		target.MarkReady()
	default:
		return
	}

	s.unbindRunning(outputOrdinal, handle)
	in.MarkYielded()
	s.pushReady(outputOrdinal, handle, in)
	out.SetForcedNext(targetHandle)
	out.Stats.DirectSwitchSuccesses.Add(1)
	out.Stats.SwitchesDirect.Add(1)
	s.hooks.Fire(EventDirectSwitch, HookInfo{
		Output: outputOrdinal, InputID: target.ID(), Tid: target.Tid, Time: s.now,
	})
}

// wake transitions handle to Ready (coalescing a double wake, per
// input.MarkReady) and places it on a queue it is allowed to run on,
// preferring preferredOutput.
func (s *Scheduler) wake(handle arena.Handle, preferredOutput int) {
	in := s.inputs.Get(handle)
	s.rq.Wait.Remove(handle)
	if !in.MarkReady() {
		return
	}
	target := preferredOutput
	if !in.AllowedOn(target) {
		target = firstAllowedOutput(in, s.cfg.NumOutputs)
	}
	s.pushReady(target, handle, in)
}

func firstAllowedOutput(in *input.Input, numOutputs int) int {
	if len(in.Bindings) > 0 {
		return in.Bindings[0]
	}
	if numOutputs <= 0 {
		return 0
	}
	return int(in.Tid) % numOutputs
}

// bindNextInput picks a runnable input for outputOrdinal (honoring a
// forced direct-switch target first, then the output's own ready
// queue, then work stealing, then due wait-set wakes) and splices its
// context-switch sequence ahead of its first record.
func (s *Scheduler) bindNextInput(outputOrdinal int) (arena.Handle, output.Status, error) {
	out := s.output(outputOrdinal)

	if handle, ok := out.TakeForcedNext(); ok {
		s.bindRunning(outputOrdinal, handle)
		return handle, output.StatusOK, nil
	}

	if s.cfg.Mode == ModeMapAsPreviously && s.replay != nil {
		return s.bindFromReplay(outputOrdinal)
	}

	handle, ok, limited := s.popEligible(outputOrdinal)
	if ok {
		s.bindRunning(outputOrdinal, handle)
		return handle, output.StatusOK, nil
	}

	if s.cfg.Mode == ModeMapToAnyOutput {
		if handle, ok := s.stealFor(outputOrdinal); ok {
			out.Stats.RunqueueSteals.Add(1)
			s.bindRunning(outputOrdinal, handle)
			return handle, output.StatusOK, nil
		}
	}

	if due := s.rq.Wait.Due(s.now); len(due) > 0 {
		for _, handle := range due {
			s.wake(handle, outputOrdinal)
		}
		if handle, ok, _ := s.popEligible(outputOrdinal); ok {
			s.bindRunning(outputOrdinal, handle)
			return handle, output.StatusOK, nil
		}
	}

	if s.allInputsEOF() {
		return 0, output.StatusEOF, nil
	}

	if limited {
		// Everything locally runnable is capped by its workload's
		// output limit: idle until a slot frees.
		return 0, output.StatusIdle, nil
	}

	if s.rq.Wait.Len() > 0 {
		if _, _, finite := s.rq.Wait.NearestWake(); finite && s.timeDriven {
			// A finite wake exists and the consumer is supplying time:
			// IDLE asks it to advance the clock toward the wake.
			return 0, output.StatusIdle, nil
		}
		if !s.cfg.HonorInfiniteTimeouts {
			if handle, ok := s.rq.Wait.ForceWakeNearest(); ok {
				woken := s.inputs.Get(handle)
				s.hooks.Fire(EventForcedWake, HookInfo{
					Output: outputOrdinal, InputID: woken.ID(), Tid: woken.Tid, Time: s.now,
				})
				s.wake(handle, outputOrdinal)
				if handle, ok, _ := s.popEligible(outputOrdinal); ok {
					s.bindRunning(outputOrdinal, handle)
					return handle, output.StatusOK, nil
				}
			}
		}
	}

	return 0, output.StatusWait, nil
}

// bindFromReplay enforces the next recorded segment for outputOrdinal
//: the named input must be free (not running on another
// output) and must have reached the segment's start instruction; until
// then the output reports WAIT.
func (s *Scheduler) bindFromReplay(outputOrdinal int) (arena.Handle, output.Status, error) {
	for {
		entry, ok := s.replay.Current(outputOrdinal)
		if !ok {
			return 0, output.StatusEOF, nil
		}
		if int(entry.Input) >= len(s.handles) {
			return 0, output.StatusError, cerrors.ErrMalformedSchedule
		}
		handle := s.handles[entry.Input]
		in := s.inputs.Get(handle)
		if in.State() == input.StateEOF {
			s.replay.Advance(outputOrdinal)
			continue
		}
		if in.State() == input.StateRunning {
			return 0, output.StatusWait, nil
		}
		if in.InstrOrdinal() < entry.Start {
			// The input's preceding segment on another output hasn't
			// been delivered yet.
			return 0, output.StatusWait, nil
		}
		for i := 0; i < s.cfg.NumOutputs; i++ {
			s.rq.Queue(i).Remove(handle)
		}
		s.rq.Wait.Remove(handle)
		in.MarkReady()
		s.bindRunning(outputOrdinal, handle)
		return handle, output.StatusOK, nil
	}
}

// popEligible pops the highest-priority item from outputOrdinal's own
// queue that is within its workload's output limit, requeuing any item
// it must skip over. limited reports whether anything was skipped for
// being over its workload's output limit, which turns an empty-handed
// return into IDLE rather than WAIT.
func (s *Scheduler) popEligible(outputOrdinal int) (found arena.Handle, ok, limited bool) {
	q := s.rq.Queue(outputOrdinal)
	var skipped []runqueue.Item
	for n := q.Len(); n > 0; n-- {
		item, popped := q.Pop()
		if !popped {
			break
		}
		in := s.inputs.Get(item.Handle)
		if s.outputLimitOK(in.WorkloadIndex) {
			found, ok = item.Handle, true
			break
		}
		s.output(outputOrdinal).Stats.OutputLimitHits.Add(1)
		limited = true
		skipped = append(skipped, item)
	}
	for _, item := range skipped {
		q.Push(item)
	}
	return found, ok, limited
}

// stealFor looks across every other output's ready queue for an item
// this output may run, preferring the longest queue first.
func (s *Scheduler) stealFor(outputOrdinal int) (arena.Handle, bool) {
	bestFrom := -1
	bestLen := 0
	for i := 0; i < s.cfg.NumOutputs; i++ {
		if i == outputOrdinal {
			continue
		}
		if n := s.rq.Queue(i).Len(); n > bestLen {
			bestLen, bestFrom = n, i
		}
	}
	if bestFrom < 0 {
		return 0, false
	}
	for _, item := range s.rq.Queue(bestFrom).Items() {
		in := s.inputs.Get(item.Handle)
		if !in.AllowedOn(outputOrdinal) || !s.outputLimitOK(in.WorkloadIndex) {
			continue
		}
		if s.cfg.MigrationThreshold > 0 && in.LastRanAt > 0 &&
			s.now-in.LastRanAt < s.cfg.MigrationThreshold {
			continue
		}
		if _, ok := s.rq.Queue(bestFrom).Remove(item.Handle); ok {
			s.output(bestFrom).Stats.Migrations.Add(1)
			s.hooks.Fire(EventMigration, HookInfo{
				Output: outputOrdinal, InputID: in.ID(), Tid: in.Tid, Time: s.now,
			})
			return item.Handle, true
		}
	}
	return 0, false
}

func (s *Scheduler) outputLimitOK(workloadIndex int) bool {
	limit, capped := s.cfg.OutputLimits[workloadIndex]
	if !capped {
		return true
	}
	return s.outputLimitInUse[workloadIndex] < limit
}

func (s *Scheduler) allInputsEOF() bool {
	for _, h := range s.handles {
		if s.inputs.Get(h).State() != input.StateEOF {
			return false
		}
	}
	return true
}

// bindRunning binds handle as outputOrdinal's running input, splicing a
// context-switch sequence ahead of it if the previously bound input
// differs in tid or pid.
func (s *Scheduler) bindRunning(outputOrdinal int, handle arena.Handle) {
	out := s.output(outputOrdinal)
	in := s.inputs.Get(handle)

	prevTid, prevPid := out.RunningTidPid()
	hadPrev := out.HasHadRunning()

	out.SetRunning(handle, in.Tid, in.Pid)
	in.MarkRunningOn(outputOrdinal)
	out.SetLastRanTime(s.now)
	out.ResetQuantum(s.now)
	s.outputLimitInUse[in.WorkloadIndex]++

	if s.rec != nil {
		// Handles are issued in registration order, so handle-1 is the
		// input's stable ordinal in the recorded-schedule file.
		s.rec.Begin(outputOrdinal, uint32(handle-1), in.InstrOrdinal(), in.LastTimestamp())
	}

	if err := s.spliceContextSwitch(outputOrdinal, in.Tid, in.Pid, prevTid, prevPid, hadPrev); err != nil {
		s.setError(outputOrdinal, err)
	}
}

// unbindRunning releases handle from outputOrdinal without requeuing
// it; the caller decides where (if anywhere) it goes next.
func (s *Scheduler) unbindRunning(outputOrdinal int, handle arena.Handle) {
	in := s.inputs.Get(handle)
	s.output(outputOrdinal).ClearRunning()
	s.outputLimitInUse[in.WorkloadIndex]--
	in.LastRanAt = s.now
	if s.rec != nil {
		s.rec.End(outputOrdinal, in.InstrOrdinal())
	}
	if s.replay != nil && s.cfg.Mode == ModeMapAsPreviously {
		// Every unbind ends the segment this output was enforcing. The
		// policy itself (quanta, voluntary yields) runs identically
		// under replay, so segments end at the recorded points; the
		// replayer's job is enforcing who is bound next, and where.
		s.replay.Advance(outputOrdinal)
	}
}

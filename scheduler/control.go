package scheduler

import (
	"tracesched/input"
	"tracesched/internal/arena"
	"tracesched/runqueue"
)

// SetActive implements output.Engine. Deactivating an
// output releases any running input back to its runqueue; the output
// then returns IDLE from NextRecord until reactivated.
func (s *Scheduler) SetActive(outputOrdinal int, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.output(outputOrdinal)
	wasActive := out.Active()
	out.SetActiveFlag(active)
	if wasActive && !active {
		if handle, ok := out.RunningHandle(); ok {
			s.releaseRunning(outputOrdinal, handle)
		}
	}
}

// releaseRunning returns handle to outputOrdinal's runqueue and clears
// the output's running binding. Caller must hold s.mu.
func (s *Scheduler) releaseRunning(outputOrdinal int, handle arena.Handle) {
	in := s.inputs.Get(handle)
	s.unbindRunning(outputOrdinal, handle)
	in.MarkYielded()
	s.pushReady(outputOrdinal, handle, in)
}

// pushReady enqueues handle onto outputOrdinal's ready queue with a
// freshly minted stable tie-break ordinal. Caller must hold s.mu.
func (s *Scheduler) pushReady(outputOrdinal int, handle arena.Handle, in *input.Input) {
	s.nextOrdinal++
	s.rq.Queue(outputOrdinal).Push(runqueue.Item{
		Handle:    handle,
		Priority:  in.Priority,
		Timestamp: in.LastTimestamp(),
		Ordinal:   s.nextOrdinal,
	})
}

// StartSpeculation implements output.Engine.
func (s *Scheduler) StartSpeculation(outputOrdinal int, pc uint64, saveCurrent bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.output(outputOrdinal)
	handle, hasRunning := out.RunningHandle()
	return out.StartSpeculation(pc, saveCurrent, handle, hasRunning)
}

// StopSpeculation implements output.Engine. A saved-current frame
// pushes the saved record back onto the input's lookahead so the next
// NextRecord call re-delivers it.
func (s *Scheduler) StopSpeculation(outputOrdinal int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.output(outputOrdinal)
	handle, hasSaved, replayRec, hasReplay, err := out.StopSpeculation()
	if err != nil {
		return err
	}
	if hasSaved {
		in := s.inputs.Get(handle)
		out.SetRunning(handle, in.Tid, in.Pid)
		if hasReplay {
			in.Unpop(replayRec)
		}
	}
	return nil
}

// UnreadLastRecord implements output.Engine.
func (s *Scheduler) UnreadLastRecord(outputOrdinal int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.output(outputOrdinal)
	rec, err := out.PrepareUnread()
	if err != nil {
		return err
	}
	if handle, ok := out.RunningHandle(); ok {
		s.inputs.Get(handle).Unpop(rec)
	}
	return nil
}

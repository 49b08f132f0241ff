package scheduler

import "tracesched/internal/arena"

// maybeRebalance redistributes ready inputs across output queues every
// RebalancePeriod units of logical time, targeting ceil(runnable /
// outputs) items per queue. A zero RebalancePeriod disables it. Caller
// must hold s.mu.
func (s *Scheduler) maybeRebalance() {
	if s.cfg.RebalancePeriod == 0 || s.cfg.Mode != ModeMapToAnyOutput {
		return
	}
	if s.now-s.lastRebalance < s.cfg.RebalancePeriod {
		return
	}
	s.lastRebalance = s.now

	total := s.rq.TotalReady()
	if total == 0 {
		return
	}
	target := (total + s.cfg.NumOutputs - 1) / s.cfg.NumOutputs

	var movable []arena.Handle
	for i := 0; i < s.cfg.NumOutputs; i++ {
		q := s.rq.Queue(i)
		for q.Len() > target {
			item, ok := q.Pop()
			if !ok {
				break
			}
			movable = append(movable, item.Handle)
		}
	}
	if len(movable) == 0 {
		return
	}

	dest := 0
	for _, handle := range movable {
		in := s.inputs.Get(handle)
		for n := 0; n < s.cfg.NumOutputs; n++ {
			if s.rq.Queue(dest).Len() < target && in.AllowedOn(dest) {
				break
			}
			dest = (dest + 1) % s.cfg.NumOutputs
		}
		if !in.AllowedOn(dest) {
			dest = firstAllowedOutput(in, s.cfg.NumOutputs)
		}
		s.pushReady(dest, handle, in)
		s.output(dest).Stats.Migrations.Add(1)
		s.hooks.Fire(EventMigration, HookInfo{
			Output: dest, InputID: in.ID(), Tid: in.Tid, Time: s.now,
		})
		dest = (dest + 1) % s.cfg.NumOutputs
	}
}

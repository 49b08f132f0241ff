package runqueue

import (
	"sort"

	"tracesched/internal/arena"
)

// WaitEntry describes why a handle is parked in the wait set: a
// blocking-syscall sleep, an unschedule with a timeout, or an infinite
// unschedule awaiting an explicit SYSCALL_SCHEDULE.
type WaitEntry struct {
	Handle   arena.Handle
	WakeAt   uint64
	Infinite bool
}

// WaitSet holds blocked or unscheduled inputs keyed by their wake
// criterion: an absolute wake time, or an explicit wake request for
// the infinitely parked. Not internally synchronized; the scheduler
// mutex guards it, same as Queue.
type WaitSet struct {
	entries map[arena.Handle]WaitEntry
}

// NewWaitSet builds an empty wait set.
func NewWaitSet() *WaitSet {
	return &WaitSet{entries: make(map[arena.Handle]WaitEntry)}
}

// Add parks handle until wakeAt (ignored when infinite is true).
func (w *WaitSet) Add(handle arena.Handle, wakeAt uint64, infinite bool) {
	w.entries[handle] = WaitEntry{Handle: handle, WakeAt: wakeAt, Infinite: infinite}
}

// Remove drops handle from the wait set, e.g. because a direct switch
// or SYSCALL_SCHEDULE pulled it back in; a direct switch may target an
// input that is still parked here.
func (w *WaitSet) Remove(handle arena.Handle) (WaitEntry, bool) {
	e, ok := w.entries[handle]
	if ok {
		delete(w.entries, handle)
	}
	return e, ok
}

// Contains reports whether handle is currently parked.
func (w *WaitSet) Contains(handle arena.Handle) bool {
	_, ok := w.entries[handle]
	return ok
}

// Len returns the number of parked handles.
func (w *WaitSet) Len() int { return len(w.entries) }

// Due returns every handle whose wake time has elapsed as of now,
// removing them from the set. Infinite entries are never returned
// here; they only leave via Remove (explicit wake) or ForceWakeNearest.
// The result is sorted by (wake time, handle) so waking is
// deterministic across runs.
func (w *WaitSet) Due(now uint64) []arena.Handle {
	var dueEntries []WaitEntry
	for h, e := range w.entries {
		if !e.Infinite && now >= e.WakeAt {
			dueEntries = append(dueEntries, e)
			delete(w.entries, h)
		}
	}
	sort.Slice(dueEntries, func(i, j int) bool {
		if dueEntries[i].WakeAt != dueEntries[j].WakeAt {
			return dueEntries[i].WakeAt < dueEntries[j].WakeAt
		}
		return dueEntries[i].Handle < dueEntries[j].Handle
	})
	due := make([]arena.Handle, len(dueEntries))
	for i, e := range dueEntries {
		due[i] = e.Handle
	}
	return due
}

// NearestWake reports the handle with the soonest finite wake time, for
// the caller to advance simulated time toward, tie-broken by handle so
// the choice is deterministic. ok is false if every parked entry is
// infinite or the set is empty.
func (w *WaitSet) NearestWake() (handle arena.Handle, wakeAt uint64, ok bool) {
	found := false
	for h, e := range w.entries {
		if e.Infinite {
			continue
		}
		if !found || e.WakeAt < wakeAt || (e.WakeAt == wakeAt && h < handle) {
			handle, wakeAt, found = h, e.WakeAt, true
		}
	}
	return handle, wakeAt, found
}

// ForceWakeNearest implements the hang-avoidance fallback: when every
// input is unscheduled and no wake request exists, the scheduler
// forcibly wakes the nearest-wake-time input, or an arbitrary stable
// one if all are infinite. It removes and returns the chosen handle.
func (w *WaitSet) ForceWakeNearest() (arena.Handle, bool) {
	if h, _, ok := w.NearestWake(); ok {
		delete(w.entries, h)
		return h, true
	}
	// All infinite: pick the smallest handle for a stable, deterministic
	// choice across identical runs.
	var best arena.Handle
	found := false
	for h := range w.entries {
		if !found || h < best {
			best, found = h, true
		}
	}
	if found {
		delete(w.entries, best)
	}
	return best, found
}

package scheduler

import (
	"errors"
	"fmt"
	"sync"
)

// Event identifies a scheduling event hooks can observe.
type Event string

const (
	// EventQuantumExpire fires when a running input's quantum expires
	// and it is preempted back to the runqueue.
	EventQuantumExpire Event = "quantumExpire"

	// EventMigration fires when an input moves between output queues
	// (steal or rebalance).
	EventMigration Event = "migration"

	// EventContextSwitch fires when a context-switch sequence is
	// spliced into an output's stream.
	EventContextSwitch Event = "contextSwitch"

	// EventDirectSwitch fires when a DIRECT_THREAD_SWITCH marker is
	// honored.
	EventDirectSwitch Event = "directSwitch"

	// EventForcedWake fires when the hang-avoidance fallback forcibly
	// wakes an unscheduled input.
	EventForcedWake Event = "forcedWake"
)

// HookInfo carries the context of the event to each callback.
type HookInfo struct {
	Output  int
	InputID uint64
	Tid     int64
	Time    uint64
}

// Hook is one registered callback.
type Hook func(event Event, info HookInfo) error

// Hooks is an ordered callback registry for scheduling events; the
// tests register observers on it. Callbacks run in registration
// order; errors are aggregated rather than short-circuiting, so one
// failing observer cannot hide another's.
type Hooks struct {
	mu        sync.Mutex
	callbacks map[Event][]Hook
}

// NewHooks builds an empty registry.
func NewHooks() *Hooks {
	return &Hooks{callbacks: make(map[Event][]Hook)}
}

// Register appends fn to the callback list for event.
func (h *Hooks) Register(event Event, fn Hook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callbacks[event] = append(h.callbacks[event], fn)
}

// Fire runs every callback registered for event, in order, and returns
// the joined errors of any that failed.
func (h *Hooks) Fire(event Event, info HookInfo) error {
	h.mu.Lock()
	list := make([]Hook, len(h.callbacks[event]))
	copy(list, h.callbacks[event])
	h.mu.Unlock()

	var errs []error
	for i, fn := range list {
		if err := fn(event, info); err != nil {
			errs = append(errs, fmt.Errorf("%s hook %d: %w", event, i, err))
		}
	}
	return errors.Join(errs...)
}

// Hooks exposes the scheduler's hook registry for callers to register
// observers on before the run starts.
func (s *Scheduler) Hooks() *Hooks { return s.hooks }

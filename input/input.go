package input

import (
	"sync"

	"tracesched/record"
)

// State is the scheduling state of an Input.
type State int

const (
	StateReady State = iota
	StateRunning
	StateBlockedUntil
	StateUnscheduled
	StateWaitingOn
	StateEOF
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateBlockedUntil:
		return "blocked_until"
	case StateUnscheduled:
		return "unscheduled"
	case StateWaitingOn:
		return "waiting_on"
	case StateEOF:
		return "eof"
	default:
		return "invalid"
	}
}

// inputIDShift separates the workload index from the thread id in the
// exposed input id.
const inputIDShift = 32

// Region is a region-of-interest instruction range, inclusive on both
// ends; EndInstr == RegionToEOF means "to end of stream".
type Region struct {
	StartInstr uint64
	EndInstr   uint64
}

// RegionToEOF marks a region that runs to end of stream.
const RegionToEOF = ^uint64(0)

// Input owns a reader cursor plus its scheduling bookkeeping: identity,
// lookahead, ordinals, last-seen timestamp, priority, output bindings,
// regions of interest, the unscheduled-at-start flag, a blocked-until
// time, and scheduling state.
type Input struct {
	mu sync.Mutex

	WorkloadIndex int
	Tid           int64
	Pid           int64

	reader Reader

	// lookahead holds records read ahead of the consumer by Peek,
	// preserved in order and drained by Pop before pulling from reader.
	lookahead []record.Record

	recordOrdinal uint64
	instrOrdinal  uint64
	lastTimestamp uint64
	lastCpuid     int64

	Priority int
	// Bindings lists allowed output ordinals; empty means any output.
	Bindings []int

	// Regions of interest; empty means the whole stream is delivered.
	ROI        []Region
	roiIndex   int
	windowSent bool

	StartsUnscheduled bool
	BlockedUntil      uint64
	WaitingOnTid      int64

	// LastRanAt is the simulated time this input last stopped running,
	// compared against the migration threshold before a steal moves it
	// to another output.
	LastRanAt uint64

	// RecordedCpuid is the cpuid this input was first observed on,
	// taken from its leading CPUID marker; MAP_TO_RECORDED_OUTPUT
	// places the input on the output bound to that cpuid.
	RecordedCpuid    int64
	HasRecordedCpuid bool

	state         State
	runningOutput int
	readerEOF     bool
	fatalErr      error

	// SuppressNextUnschedule is set when a SYSCALL_SCHEDULE targeting
	// this (currently running) input arrives before its own
	// SYSCALL_UNSCHEDULE marker.
	SuppressNextUnschedule bool
}

// New builds an Input over reader. state starts Ready unless
// startsUnscheduled is set, in which case it starts Unscheduled.
func New(workloadIndex int, tid, pid int64, reader Reader, priority int, startsUnscheduled bool) *Input {
	st := StateReady
	if startsUnscheduled {
		st = StateUnscheduled
	}
	return &Input{
		WorkloadIndex:     workloadIndex,
		Tid:               tid,
		Pid:               pid,
		reader:            reader,
		Priority:          priority,
		StartsUnscheduled: startsUnscheduled,
		state:             st,
		runningOutput:     -1,
		roiIndex:          -1,
	}
}

// ID returns the exposed input id: (workload_index << shift) | thread_id.
func (in *Input) ID() uint64 {
	return (uint64(in.WorkloadIndex) << inputIDShift) | uint64(in.Tid)
}

// Name returns the underlying reader's stream identity.
func (in *Input) Name() string { return in.reader.Name() }

// Reader returns the underlying reader, for the Stream facade's
// get_input_interface accessor.
func (in *Input) Reader() Reader { return in.reader }

// Init initializes the underlying reader. Must be called once before
// any Peek/Pop.
func (in *Input) Init() error {
	if !in.reader.Init() {
		in.fatalErr = newReaderInitError(in.reader.Name())
		return in.fatalErr
	}
	return nil
}

// Peek reads ahead up to n records into the lookahead queue without
// advancing ordinals, returning however many records were available
// (fewer than n at EOF). Used by the policy to detect markers that
// require action before they are popped.
func (in *Input) Peek(n int) ([]record.Record, error) {
	for len(in.lookahead) < n {
		rec, ok, err := in.reader.ReadNext()
		if err != nil {
			in.fatalErr = err
			return in.lookaheadSnapshot(n), err
		}
		if !ok {
			break
		}
		in.lookahead = append(in.lookahead, rec)
	}
	return in.lookaheadSnapshot(n), nil
}

func (in *Input) lookaheadSnapshot(n int) []record.Record {
	if n > len(in.lookahead) {
		n = len(in.lookahead)
	}
	out := make([]record.Record, n)
	copy(out, in.lookahead[:n])
	return out
}

// ErrEOF is returned by Pop when the reader is exhausted.
var ErrEOF = newSentinelErr("input: EOF")

// Pop dequeues the next record, either from the lookahead queue or
// directly from the reader, and advances the cumulative record (and, for
// instructions, instruction) ordinal. A reader error is returned as-is
// and is fatal for this input; there is no automatic retry.
//
// Injected records never pass through Pop: the injection engine
// synthesizes and delivers them directly on the output side, so they
// never advance this input's ordinals.
func (in *Input) Pop() (record.Record, error) {
	var rec record.Record
	if len(in.lookahead) > 0 {
		rec = in.lookahead[0]
		in.lookahead = in.lookahead[1:]
	} else {
		r, ok, err := in.reader.ReadNext()
		if err != nil {
			in.fatalErr = err
			return record.Record{}, err
		}
		if !ok {
			in.readerEOF = true
			return record.Record{}, ErrEOF
		}
		rec = r
	}

	in.recordOrdinal++
	if rec.IsInstr() {
		in.instrOrdinal++
	}
	if rec.IsMarker(record.MarkerTimestamp) {
		in.lastTimestamp = rec.MarkerValue
	}
	if rec.IsMarker(record.MarkerCPUID) {
		in.lastCpuid = int64(rec.MarkerValue)
	}
	return rec, nil
}

// Unpop pushes a record back to the front of the lookahead queue and
// reverses the ordinal advance Pop made for it. Used by the Stream
// facade's unread_last_record.
func (in *Input) Unpop(rec record.Record) {
	in.lookahead = append([]record.Record{rec}, in.lookahead...)
	in.recordOrdinal--
	if rec.IsInstr() {
		in.instrOrdinal--
	}
}

// RecordOrdinal returns the cumulative record ordinal. Injected records
// never increment it.
func (in *Input) RecordOrdinal() uint64 { return in.recordOrdinal }

// InstrOrdinal returns the cumulative instruction ordinal.
func (in *Input) InstrOrdinal() uint64 { return in.instrOrdinal }

// LastTimestamp returns the most recently observed TIMESTAMP marker
// value.
func (in *Input) LastTimestamp() uint64 { return in.lastTimestamp }

// LastCpuid returns the most recently observed CPUID marker value.
func (in *Input) LastCpuid() int64 { return in.lastCpuid }

// AtEOF reports whether the underlying reader has been exhausted and
// the lookahead queue is drained.
func (in *Input) AtEOF() bool {
	return in.readerEOF && len(in.lookahead) == 0
}

// FatalErr returns any fatal reader error encountered by Peek/Pop.
func (in *Input) FatalErr() error { return in.fatalErr }

// State returns the current scheduling state under the input's own
// mutex.
func (in *Input) State() State {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.state
}

// RunningOutput returns the output ordinal this input is running on, or
// -1 if it is not currently running.
func (in *Input) RunningOutput() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.runningOutput
}

// MarkRunningOn transitions the input to Running on the given output
// ordinal.
func (in *Input) MarkRunningOn(outputOrdinal int) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.state = StateRunning
	in.runningOutput = outputOrdinal
}

// MarkYielded transitions the input back to Ready (e.g. on preemption
// or voluntary yield back to the runqueue).
func (in *Input) MarkYielded() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.state = StateReady
	in.runningOutput = -1
}

// MarkBlockedUntil transitions the input to BlockedUntil(t).
func (in *Input) MarkBlockedUntil(t uint64) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.state = StateBlockedUntil
	in.runningOutput = -1
	in.BlockedUntil = t
}

// MarkUnscheduled transitions the input to Unscheduled, with wake time
// t (0 meaning infinitely unscheduled).
func (in *Input) MarkUnscheduled(t uint64) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.state = StateUnscheduled
	in.runningOutput = -1
	in.BlockedUntil = t
}

// MarkWaitingOn transitions the input to WaitingOn(targetTid).
func (in *Input) MarkWaitingOn(targetTid int64) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.state = StateWaitingOn
	in.runningOutput = -1
	in.WaitingOnTid = targetTid
}

// MarkEOF transitions the input to EOF, its terminal state.
func (in *Input) MarkEOF() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.state = StateEOF
	in.runningOutput = -1
}

// MarkReady transitions the input to Ready from any waiting state
// (used by wake paths); it is a no-op if the input is already Running
// or already Ready, so a racing second wake coalesces instead of
// corrupting the queues.
func (in *Input) MarkReady() (woke bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.state == StateRunning || in.state == StateReady {
		return false
	}
	in.state = StateReady
	in.runningOutput = -1
	return true
}

// AllowedOn reports whether this input may run on the given output
// ordinal, honoring Bindings.
func (in *Input) AllowedOn(outputOrdinal int) bool {
	if len(in.Bindings) == 0 {
		return true
	}
	for _, b := range in.Bindings {
		if b == outputOrdinal {
			return true
		}
	}
	return false
}

// InROI reports whether instruction ordinal instr falls within any
// configured region of interest, and returns the (0-based) index of
// that region. If no regions are configured every instruction is in
// range and index is 0.
func (in *Input) InROI(instr uint64) (inside bool, idx int) {
	if len(in.ROI) == 0 {
		return true, 0
	}
	for i, r := range in.ROI {
		if instr < r.StartInstr {
			return false, i
		}
		if r.EndInstr == RegionToEOF || instr <= r.EndInstr {
			return true, i
		}
	}
	return false, len(in.ROI)
}

// CurrentWindow returns the last region-of-interest index the scheduler
// delivered a WINDOW_ID marker for, and whether one has been sent yet.
func (in *Input) CurrentWindow() (int, bool) {
	return in.roiIndex, in.windowSent
}

// SetWindow records that a WINDOW_ID marker for region idx has been
// delivered.
func (in *Input) SetWindow(idx int) {
	in.roiIndex = idx
	in.windowSent = true
}

package output

import (
	"tracesched/errors"
	"tracesched/internal/arena"
	"tracesched/record"
)

// specFrame is one pushed speculation frame: the saved input and its
// position, the PC the consumer asked to
// synthesize NOPs at, and whether stopping should re-deliver the saved
// "current" record.
type specFrame struct {
	savedHandle arena.Handle
	hasSaved    bool

	nextPC uint64

	saveCurrent  bool
	savedRecord  record.Record
	hasSavedRec  bool
}

// Speculating reports whether a speculation frame is currently active.
func (o *Output) Speculating() bool { return len(o.spec) > 0 }

// SpeculationDepth returns the number of nested speculation frames.
func (o *Output) SpeculationDepth() int { return len(o.spec) }

// StartSpeculation pushes a new speculation frame.
// runningHandle/hasRunning capture the input bound as running at
// the moment speculation starts, so StopSpeculation can restore it.
// savedRecord/hasSavedRec capture the last delivered record when
// saveCurrent is set, for re-delivery on stop.
//
// Fails with ErrSpeculationAfterUnread if called immediately after
// UnreadLastRecord with no intervening read.
func (o *Output) StartSpeculation(pc uint64, saveCurrent bool, runningHandle arena.Handle, hasRunning bool) error {
	if o.consecutiveUnread {
		return errors.ErrSpeculationAfterUnread
	}
	frame := specFrame{
		savedHandle: runningHandle,
		hasSaved:    hasRunning,
		nextPC:      pc,
		saveCurrent: saveCurrent,
	}
	if saveCurrent && o.hasLastDelivered {
		frame.savedRecord = o.lastDelivered
		frame.hasSavedRec = true
	}
	o.spec = append(o.spec, frame)
	o.consecutiveUnread = false
	return nil
}

// StopSpeculation pops the innermost speculation frame.
// It reports the saved input handle to resume from, whether a saved
// record must be re-delivered first, and that record.
func (o *Output) StopSpeculation() (savedHandle arena.Handle, hasSaved bool, replay record.Record, hasReplay bool, err error) {
	if len(o.spec) == 0 {
		return 0, false, record.Record{}, false, errors.ErrNoSpeculationFrame
	}
	frame := o.spec[len(o.spec)-1]
	o.spec = o.spec[:len(o.spec)-1]
	return frame.savedHandle, frame.hasSaved, frame.savedRecord, frame.hasSavedRec, nil
}

// NextSpeculativeRecord synthesizes the next NOP instruction in the
// innermost active frame, advancing its PC by the architecture's
// minimum instruction size: pc, pc+L, pc+2L, and so on.
func (o *Output) NextSpeculativeRecord() record.Record {
	frame := &o.spec[len(o.spec)-1]
	rec := record.MakeNop(frame.nextPC)
	frame.nextPC += record.MinInstrSize
	return rec
}

package output

import (
	"tracesched/input"
	"tracesched/record"
)

// Engine is the scheduler-side surface the public Stream facade
// delegates to. scheduler.Scheduler implements this interface;
// splitting it out here (rather than having output import scheduler)
// avoids a package cycle while keeping the Stream facade itself a thin
// wrapper with no scheduling logic of its own.
type Engine interface {
	NextRecord(outputOrdinal int, currentTime *uint64) (record.Record, Status, error)
	SetActive(outputOrdinal int, active bool)
	StartSpeculation(outputOrdinal int, pc uint64, saveCurrent bool) error
	StopSpeculation(outputOrdinal int) error
	UnreadLastRecord(outputOrdinal int) error
	Stat(outputOrdinal int, kind StatKind) uint64

	RecordOrdinal(outputOrdinal int) uint64
	InstructionOrdinal(outputOrdinal int) uint64
	LastTimestamp(outputOrdinal int) uint64
	Tid(outputOrdinal int) int64
	WorkloadID(outputOrdinal int) int
	InputID(outputOrdinal int) uint64
	InputReader(outputOrdinal int) input.Reader
	OutputCPUID(outputOrdinal int) int64
	ShardIndex(outputOrdinal int) int
	Filetype(outputOrdinal int) uint64
	IsRecordSynthetic(outputOrdinal int) bool
	IsRecordKernel(outputOrdinal int) bool
	ErrorString(outputOrdinal int) string
}

// Stream is the public per-output iterator the
// consumer drives: next_record plus the ordinal/identity accessors and
// the speculation/unread/active control operations. It holds no
// scheduling state itself; every call is a direct delegation to the
// owning Engine for the bound output ordinal.
type Stream struct {
	engine  Engine
	ordinal int
}

// NewStream builds a Stream facade over engine for the given output
// ordinal.
func NewStream(engine Engine, ordinal int) *Stream {
	return &Stream{engine: engine, ordinal: ordinal}
}

// NextRecord delivers the next record for this output, or a status of
// WAIT/IDLE/EOF/ERROR. currentTime is required for microsecond-quantum
// configurations and DEPENDENCY_TIMESTAMPS ordering; callers not using
// either may pass nil.
func (s *Stream) NextRecord(currentTime *uint64) (record.Record, Status, error) {
	return s.engine.NextRecord(s.ordinal, currentTime)
}

// SetActive dynamically adds or removes this output from the set of
// eligible outputs.
func (s *Stream) SetActive(active bool) { s.engine.SetActive(s.ordinal, active) }

// StartSpeculation pushes a speculation frame.
func (s *Stream) StartSpeculation(pc uint64, saveCurrent bool) error {
	return s.engine.StartSpeculation(s.ordinal, pc, saveCurrent)
}

// StopSpeculation pops the innermost speculation frame.
func (s *Stream) StopSpeculation() error { return s.engine.StopSpeculation(s.ordinal) }

// UnreadLastRecord pushes the last delivered record back so the next
// NextRecord call reproduces it.
func (s *Stream) UnreadLastRecord() error { return s.engine.UnreadLastRecord(s.ordinal) }

// GetScheduleStatistic returns the named statistic for this output
//.
func (s *Stream) GetScheduleStatistic(kind StatKind) uint64 {
	return s.engine.Stat(s.ordinal, kind)
}

// GetRecordOrdinal/GetInstructionOrdinal/GetLastTimestamp/GetTid/
// GetWorkloadID/GetInputID/GetInputInterface/GetOutputCPUID/
// GetShardIndex/IsRecordSynthetic/IsRecordKernel are the remaining
// Stream contract accessors.
func (s *Stream) GetRecordOrdinal() uint64      { return s.engine.RecordOrdinal(s.ordinal) }
func (s *Stream) GetInstructionOrdinal() uint64 { return s.engine.InstructionOrdinal(s.ordinal) }
func (s *Stream) GetLastTimestamp() uint64      { return s.engine.LastTimestamp(s.ordinal) }
func (s *Stream) GetTid() int64                 { return s.engine.Tid(s.ordinal) }
func (s *Stream) GetWorkloadID() int            { return s.engine.WorkloadID(s.ordinal) }
func (s *Stream) GetInputID() uint64            { return s.engine.InputID(s.ordinal) }
func (s *Stream) GetInputInterface() input.Reader { return s.engine.InputReader(s.ordinal) }
func (s *Stream) GetOutputCPUID() int64         { return s.engine.OutputCPUID(s.ordinal) }
func (s *Stream) GetShardIndex() int            { return s.engine.ShardIndex(s.ordinal) }
func (s *Stream) GetFiletype() uint64           { return s.engine.Filetype(s.ordinal) }
func (s *Stream) IsRecordSynthetic() bool       { return s.engine.IsRecordSynthetic(s.ordinal) }
func (s *Stream) IsRecordKernel() bool          { return s.engine.IsRecordKernel(s.ordinal) }

// GetErrorString returns a human-readable message for the last ERROR
// status returned by NextRecord.
func (s *Stream) GetErrorString() string { return s.engine.ErrorString(s.ordinal) }

package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracesched/record"
)

func newTestInput(t *testing.T, trace []record.Record) *Input {
	t.Helper()
	in := New(0, 1, 1, NewMockReader("test", trace), 0, false)
	require.NoError(t, in.Init())
	return in
}

func TestPeekDoesNotAdvanceOrdinals(t *testing.T) {
	in := newTestInput(t, []record.Record{
		record.MakeTimestamp(10),
		record.MakeInstr(1, 4),
		record.MakeInstr(2, 4),
	})

	ahead, err := in.Peek(2)
	require.NoError(t, err)
	require.Len(t, ahead, 2)
	assert.True(t, ahead[0].IsMarker(record.MarkerTimestamp))
	assert.Zero(t, in.RecordOrdinal())
	assert.Zero(t, in.InstrOrdinal())

	// Pop drains the lookahead in the same order.
	rec, err := in.Pop()
	require.NoError(t, err)
	assert.True(t, rec.IsMarker(record.MarkerTimestamp))
	assert.Equal(t, uint64(1), in.RecordOrdinal())
	assert.Zero(t, in.InstrOrdinal())
}

func TestPopTracksOrdinalsAndMarkers(t *testing.T) {
	in := newTestInput(t, []record.Record{
		record.MakeTimestamp(42),
		record.MakeCPUID(3),
		record.MakeInstr(1, 4),
		record.MakeThreadExit(1),
	})

	for i := 0; i < 4; i++ {
		_, err := in.Pop()
		require.NoError(t, err)
	}
	assert.Equal(t, uint64(4), in.RecordOrdinal())
	assert.Equal(t, uint64(1), in.InstrOrdinal())
	assert.Equal(t, uint64(42), in.LastTimestamp())
	assert.Equal(t, int64(3), in.LastCpuid())

	_, err := in.Pop()
	assert.ErrorIs(t, err, ErrEOF)
	assert.True(t, in.AtEOF())
}

func TestUnpopReversesOrdinalAdvance(t *testing.T) {
	in := newTestInput(t, []record.Record{
		record.MakeInstr(1, 4),
		record.MakeInstr(2, 4),
	})

	rec, err := in.Pop()
	require.NoError(t, err)
	require.Equal(t, uint64(1), in.InstrOrdinal())

	in.Unpop(rec)
	assert.Zero(t, in.InstrOrdinal())
	assert.Zero(t, in.RecordOrdinal())

	again, err := in.Pop()
	require.NoError(t, err)
	assert.Equal(t, rec, again, "the unpopped record is re-delivered")
	assert.Equal(t, uint64(1), in.InstrOrdinal())
}

func TestPeekPastEOFReturnsShort(t *testing.T) {
	in := newTestInput(t, []record.Record{record.MakeInstr(1, 4)})
	ahead, err := in.Peek(5)
	require.NoError(t, err)
	assert.Len(t, ahead, 1)
}

func TestInputIDCombinesWorkloadAndTid(t *testing.T) {
	in := New(3, 77, 1, NewMockReader("id", nil), 0, false)
	assert.Equal(t, uint64(3)<<32|77, in.ID())
}

func TestStateTransitions(t *testing.T) {
	in := newTestInput(t, nil)
	assert.Equal(t, StateReady, in.State())

	in.MarkRunningOn(1)
	assert.Equal(t, StateRunning, in.State())
	assert.Equal(t, 1, in.RunningOutput())

	in.MarkYielded()
	assert.Equal(t, StateReady, in.State())
	assert.Equal(t, -1, in.RunningOutput())

	in.MarkBlockedUntil(500)
	assert.Equal(t, StateBlockedUntil, in.State())
	assert.Equal(t, uint64(500), in.BlockedUntil)

	in.MarkEOF()
	assert.Equal(t, StateEOF, in.State())
}

func TestMarkReadyCoalescesDoubleWake(t *testing.T) {
	in := newTestInput(t, nil)

	in.MarkUnscheduled(0)
	assert.True(t, in.MarkReady(), "the first wake performs the transition")
	assert.False(t, in.MarkReady(), "the second wake is a no-op")

	in.MarkRunningOn(0)
	assert.False(t, in.MarkReady(), "waking a running input is a no-op")
	assert.Equal(t, StateRunning, in.State())
}

func TestStartsUnscheduledInitialState(t *testing.T) {
	in := New(0, 1, 1, NewMockReader("u", nil), 0, true)
	assert.Equal(t, StateUnscheduled, in.State())
}

func TestInROI(t *testing.T) {
	in := newTestInput(t, nil)
	in.ROI = []Region{{StartInstr: 2, EndInstr: 4}, {StartInstr: 8, EndInstr: RegionToEOF}}

	cases := []struct {
		instr  uint64
		inside bool
	}{
		{1, false}, {2, true}, {4, true}, {5, false}, {7, false}, {8, true}, {1000, true},
	}
	for _, tc := range cases {
		inside, _ := in.InROI(tc.instr)
		assert.Equal(t, tc.inside, inside, "instr %d", tc.instr)
	}

	none := newTestInput(t, nil)
	inside, idx := none.InROI(12345)
	assert.True(t, inside)
	assert.Zero(t, idx)
}

func TestAllowedOnHonorsBindings(t *testing.T) {
	in := newTestInput(t, nil)
	assert.True(t, in.AllowedOn(0), "no bindings means any output")

	in.Bindings = []int{1, 3}
	assert.False(t, in.AllowedOn(0))
	assert.True(t, in.AllowedOn(1))
	assert.True(t, in.AllowedOn(3))
}

func TestNoiseReaderPreservesRecordOrder(t *testing.T) {
	var trace []record.Record
	for n := 0; n < 50; n++ {
		trace = append(trace, record.MakeInstr(uint64(n), 4))
	}

	noisy := NewNoiseReader(NewMockReader("inner", trace), 1234)
	require.True(t, noisy.Init())

	var got []record.Record
	for {
		rec, ok, err := noisy.ReadNext()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, rec)
	}
	assert.Equal(t, trace, got, "internal buffering must never reorder records")
}

func TestIPCReaderIsNotImplemented(t *testing.T) {
	r := &IPCReader{Endpoint: "ipc://pipe"}
	assert.False(t, r.Init())
	_, _, err := r.ReadNext()
	assert.Error(t, err)
	assert.Equal(t, "ipc://pipe", r.Name())
}

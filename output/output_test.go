package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracesched/record"
)

func TestAdvanceOrdinalsCountsInjectedAndSpeculativeRecords(t *testing.T) {
	o := New(0, 0, QuantumInstructions, 3)
	o.AdvanceOrdinals(true)
	o.AdvanceOrdinals(false)
	o.AdvanceOrdinals(true)
	assert.Equal(t, uint64(3), o.RecordOrdinal())
	assert.Equal(t, uint64(2), o.InstructionOrdinal())
}

func TestInstructionQuantumExpiresAfterConfiguredCount(t *testing.T) {
	o := New(0, 0, QuantumInstructions, 3)
	o.ResetQuantum(0)
	assert.False(t, o.ConsumeInstrQuantum())
	assert.False(t, o.ConsumeInstrQuantum())
	assert.True(t, o.ConsumeInstrQuantum(), "third instruction should expire a quantum of size 3")
}

func TestMicrosecondQuantumExpiresOnElapsedTime(t *testing.T) {
	o := New(0, 0, QuantumMicroseconds, 100)
	o.ResetQuantum(1000)
	assert.False(t, o.QuantumExpiredAt(1050))
	assert.True(t, o.QuantumExpiredAt(1100))
}

func TestRunningBindingTracksAtMostOneInput(t *testing.T) {
	o := New(0, 0, QuantumInstructions, 1)
	_, has := o.RunningHandle()
	assert.False(t, has)

	o.SetRunning(5, 10, 20)
	h, has := o.RunningHandle()
	require.True(t, has)
	assert.Equal(t, uint64(5), uint64(h))
	tid, pid := o.RunningTidPid()
	assert.Equal(t, int64(10), tid)
	assert.Equal(t, int64(20), pid)

	o.ClearRunning()
	_, has = o.RunningHandle()
	assert.False(t, has)
}

func TestUnreadFailsWithoutPriorDeliveryAndConsecutively(t *testing.T) {
	o := New(0, 0, QuantumInstructions, 1)
	_, err := o.PrepareUnread()
	assert.Error(t, err, "no delivery yet")

	o.RecordDelivered(record.MakeInstr(4, 1), false)
	rec, err := o.PrepareUnread()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), rec.PC)

	_, err = o.PrepareUnread()
	assert.Error(t, err, "consecutive unread must fail")
}

func TestUnreadFailsWhenLastDeliveryWasSpeculative(t *testing.T) {
	o := New(0, 0, QuantumInstructions, 1)
	o.RecordDelivered(record.MakeNop(100), true)
	_, err := o.PrepareUnread()
	assert.Error(t, err)
}

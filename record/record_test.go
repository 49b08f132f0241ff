package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredicates(t *testing.T) {
	instr := MakeInstr(0x100, 4)
	assert.True(t, instr.IsInstr())
	assert.False(t, instr.IsNop(), "a real instruction is not a speculation nop")

	ts := MakeTimestamp(99)
	assert.False(t, ts.IsInstr())
	assert.True(t, ts.IsMarker(MarkerTimestamp))
	assert.False(t, ts.IsMarker(MarkerCPUID))
	assert.Equal(t, uint64(99), ts.MarkerValue)
}

func TestNopRecords(t *testing.T) {
	nop := MakeNop(0x2000)
	assert.True(t, nop.IsNop())
	assert.True(t, nop.IsInstr())
	assert.True(t, nop.Synthetic)
	assert.Equal(t, uint64(0x2000), nop.PC)
	assert.Equal(t, MinInstrSize, nop.Size)
}

func TestIndirectBranchCarriesTarget(t *testing.T) {
	br := MakeIndirectBranch(0x100, 4, 0x2000)
	assert.Equal(t, InstrTypeIndirectBranch, br.InstrType)
	assert.True(t, br.HasIndirect)
	assert.Equal(t, uint64(0x2000), br.IndirectTarget)
	assert.False(t, br.IsNop())
}

func TestSyntheticCoreMarkers(t *testing.T) {
	idle := MakeCoreIdle()
	assert.True(t, idle.IsMarker(MarkerCoreIdle))
	assert.True(t, idle.Synthetic)

	wait := MakeCoreWait()
	assert.True(t, wait.IsMarker(MarkerCoreWait))
	assert.True(t, wait.Synthetic)
}

func TestContextSwitchMarkersCarryKind(t *testing.T) {
	start := MakeContextSwitchStart(ContextSwitchProcess)
	assert.True(t, start.IsMarker(MarkerContextSwitchStart))
	assert.Equal(t, ContextSwitchProcess, start.ContextSwitch)

	end := MakeContextSwitchEnd(ContextSwitchThread)
	assert.True(t, end.IsMarker(MarkerContextSwitchEnd))
	assert.Equal(t, ContextSwitchThread, end.ContextSwitch)
}

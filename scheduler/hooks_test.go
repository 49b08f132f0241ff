package scheduler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracesched/output"
)

func TestHooksRunInRegistrationOrderAndAggregateErrors(t *testing.T) {
	h := NewHooks()
	var order []int
	h.Register(EventMigration, func(Event, HookInfo) error {
		order = append(order, 1)
		return errors.New("first failed")
	})
	h.Register(EventMigration, func(Event, HookInfo) error {
		order = append(order, 2)
		return nil
	})
	h.Register(EventMigration, func(Event, HookInfo) error {
		order = append(order, 3)
		return errors.New("third failed")
	})

	err := h.Fire(EventMigration, HookInfo{Output: 1})
	assert.Equal(t, []int{1, 2, 3}, order, "a failing hook must not hide later ones")
	assert.ErrorContains(t, err, "first failed")
	assert.ErrorContains(t, err, "third failed")

	assert.NoError(t, h.Fire(EventForcedWake, HookInfo{}), "no hooks registered is not an error")
}

func TestQuantumExpireHookObservesPreemptions(t *testing.T) {
	s, err := New(Config{
		Mode:        ModeMapToAnyOutput,
		NumOutputs:  1,
		QuantumKind: output.QuantumInstructions,
		QuantumSize: 2,
	}, []InputSpec{
		specFor(1, instrTrace(1, 0x100, 4)),
		specFor(2, instrTrace(2, 0x200, 4)),
	})
	require.NoError(t, err)

	var preempted []uint64
	s.Hooks().Register(EventQuantumExpire, func(_ Event, info HookInfo) error {
		preempted = append(preempted, info.InputID)
		return nil
	})

	drainAll(t, s)
	require.NotEmpty(t, preempted)
	assert.Equal(t, uint64(s.Stream(0).GetScheduleStatistic(output.StatPreempts)), uint64(len(preempted)))
}

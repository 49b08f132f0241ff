package cmd

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/spf13/cobra"

	"tracesched/input"
	"tracesched/output"
	"tracesched/record"
	"tracesched/scheduler"
)

// Workload flags shared by run/record/replay.
var (
	workloadInputs  int
	workloadInstrs  int
	workloadOutputs int
	workloadQuantum uint64
	workloadTimeQ   bool
	workloadMode    string
	workloadDirect  bool
	workloadRebal   uint64
)

const workloadBaseTid = 100

// addWorkloadFlags registers the shared workload flags on cmd.
func addWorkloadFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&workloadInputs, "inputs", 4, "number of synthetic input threads")
	cmd.Flags().IntVar(&workloadInstrs, "instrs", 64, "instructions per input thread")
	cmd.Flags().IntVar(&workloadOutputs, "outputs", 2, "number of output cores")
	cmd.Flags().Uint64Var(&workloadQuantum, "quantum", 16, "scheduling quantum (instructions, or microseconds with --time-quantum)")
	cmd.Flags().BoolVar(&workloadTimeQ, "time-quantum", false, "measure the quantum in wall-clock microseconds")
	cmd.Flags().StringVar(&workloadMode, "mode", "any", "scheduling mode (any, serial, parallel, as-previously)")
	cmd.Flags().BoolVar(&workloadDirect, "honor-direct-switches", true, "honor DIRECT_THREAD_SWITCH markers")
	cmd.Flags().Uint64Var(&workloadRebal, "rebalance-period", 0, "rebalance period in simulated microseconds (0 disables)")
}

// buildWorkload synthesizes a deterministic mock workload: numInputs
// thread traces of instrsPer instructions each, with a timestamp marker
// every few instructions so timestamp-ordered modes have something to
// order by. The same flags always produce the same traces, which is
// what makes record/replay runs comparable.
func buildWorkload(numInputs, instrsPer int) []scheduler.InputSpec {
	specs := make([]scheduler.InputSpec, 0, numInputs)
	for i := 0; i < numInputs; i++ {
		tid := int64(workloadBaseTid + i)
		var trace []record.Record
		trace = append(trace, record.MakeHeader(1))
		trace = append(trace, record.MakeCPUID(int64(i)))
		for n := 0; n < instrsPer; n++ {
			if n%4 == 0 {
				trace = append(trace, record.MakeTimestamp(uint64(10+n*10+i)))
			}
			trace = append(trace, record.MakeInstr(uint64(0x1000*(i+1)+n*4), 4))
		}
		trace = append(trace, record.MakeThreadExit(tid))
		specs = append(specs, scheduler.InputSpec{
			WorkloadIndex: 0,
			Tid:           tid,
			Pid:           1,
			Reader:        input.NewMockReader(fmt.Sprintf("synthetic-%c", 'A'+i%26), trace),
		})
	}
	return specs
}

// buildConfig translates the workload flags into a scheduler.Config.
func buildConfig() (scheduler.Config, error) {
	cfg := scheduler.Config{
		NumOutputs:            workloadOutputs,
		QuantumSize:           workloadQuantum,
		HonorDirectSwitches:   workloadDirect,
		RebalancePeriod:       workloadRebal,
		HonorInfiniteTimeouts: false,
	}
	if workloadTimeQ {
		cfg.QuantumKind = output.QuantumMicroseconds
	}
	switch workloadMode {
	case "any", "":
		cfg.Mode = scheduler.ModeMapToAnyOutput
	case "serial":
		cfg.Mode = scheduler.ModeSerial
	case "parallel":
		cfg.Mode = scheduler.ModeParallel
	case "as-previously":
		cfg.Mode = scheduler.ModeMapAsPreviously
	default:
		return cfg, fmt.Errorf("unknown mode %q (want any, serial, parallel, or as-previously)", workloadMode)
	}
	return cfg, nil
}

// coreSchedule accumulates, per output, one letter per scheduled
// segment, a compact per-core schedule readout.
type coreSchedule struct {
	mu      sync.Mutex
	perCore []strings.Builder
	records atomic.Uint64
}

func newCoreSchedule(numOutputs int) *coreSchedule {
	return &coreSchedule{perCore: make([]strings.Builder, numOutputs)}
}

// consume is a scheduler.Consume: every synthesized thread-id header
// marks a fresh input binding on that output.
func (c *coreSchedule) consume(ordinal int, rec record.Record, status output.Status) error {
	c.records.Add(1)
	if rec.Kind == record.KindThreadID && rec.Synthetic {
		c.mu.Lock()
		c.perCore[ordinal].WriteByte(byte('A' + (rec.Tid-workloadBaseTid)%26))
		c.mu.Unlock()
	}
	return nil
}

func (c *coreSchedule) print() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.perCore {
		fmt.Printf("Core #%d: %s\n", i, c.perCore[i].String())
	}
}

// printStats dumps the per-output schedule statistics.
func printStats(s *scheduler.Scheduler) {
	kinds := []struct {
		name string
		kind output.StatKind
	}{
		{"preempts", output.StatPreempts},
		{"voluntary switches", output.StatSwitchesVoluntary},
		{"direct switches", output.StatSwitchesDirect},
		{"migrations", output.StatMigrations},
		{"runqueue steals", output.StatRunqueueSteals},
		{"idle records", output.StatIdleRecords},
		{"wait records", output.StatWaitRecords},
	}
	for i := 0; i < s.NumOutputs(); i++ {
		stream := s.Stream(i)
		fmt.Printf("Core #%d: %d records, %d instructions\n",
			i, stream.GetRecordOrdinal(), stream.GetInstructionOrdinal())
		for _, k := range kinds {
			if v := stream.GetScheduleStatistic(k.kind); v > 0 {
				fmt.Printf("    %s: %d\n", k.name, v)
			}
		}
	}
	fmt.Printf("Total context switches: %d\n",
		s.AggregateStat(output.StatSwitchesPreempt)+
			s.AggregateStat(output.StatSwitchesVoluntary)+
			s.AggregateStat(output.StatSwitchesDirect))
}

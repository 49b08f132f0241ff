package scheduler

import (
	"slices"
	"sync"

	cerrors "tracesched/errors"
	"tracesched/input"
	"tracesched/internal/arena"
	"tracesched/output"
	"tracesched/record"
	"tracesched/runqueue"
)

// InputSpec describes one input to be registered with the scheduler:
// its identity, reader, priority, bindings, and regions of interest.
type InputSpec struct {
	WorkloadIndex     int
	Tid               int64
	Pid               int64
	Reader            input.Reader
	Priority          int
	StartsUnscheduled bool
	Bindings          []int
	ROI               []input.Region
}

// Scheduler multiplexes a set of Inputs onto a configurable number of
// Outputs. The scheduler mutex guards the runqueue
// set, wait set, and cross-output mutation. NextRecord holds it for the
// whole call, so record delivery on different outputs is serialized,
// not lock-free.
type Scheduler struct {
	cfg Config

	mu sync.Mutex

	inputs   arena.Arena[*input.Input]
	handles  []arena.Handle
	tidIndex map[int64]arena.Handle

	outputs []*output.Output
	rq      *runqueue.Set

	outputLimitInUse map[int]int

	inject *injector
	hooks  *Hooks

	rec    *Recorder
	replay *Replayer

	now           uint64
	lastRebalance uint64
	timeDriven    bool

	errStrings map[int]string
	nextOrdinal uint64
}

// New validates cfg and specs and builds a Scheduler. Conflicting
// regions, disjoint thread filters, out-of-range shard filters, empty
// workloads, and unsupported reader/output combinations all fail here
// rather than mid-run.
func New(cfg Config, specs []InputSpec) (*Scheduler, error) {
	if len(specs) == 0 {
		return nil, cerrors.ErrEmptyWorkload
	}
	if cfg.Mode == ModeSerial {
		cfg.NumOutputs = 1
	}
	if cfg.Mode == ModeParallel {
		// One output per input, no interleaving.
		cfg.NumOutputs = len(specs)
	}
	if cfg.NumOutputs <= 0 {
		cfg.NumOutputs = 1
	}
	if cfg.QuantumSize == 0 {
		cfg.QuantumSize = 1 << 20
	}
	if len(cfg.RecordedCpuids) > 0 {
		// Sort so output assignment is deterministic regardless of the
		// order the recording listed its cpus.
		sorted := make([]int64, len(cfg.RecordedCpuids))
		copy(sorted, cfg.RecordedCpuids)
		slices.Sort(sorted)
		cfg.RecordedCpuids = sorted
	}

	s := &Scheduler{
		cfg:              cfg,
		tidIndex:         make(map[int64]arena.Handle),
		rq:               runqueue.NewSet(cfg.NumOutputs, cfg.DependencyTimestamps || cfg.Mode == ModeSerial),
		outputLimitInUse: make(map[int]int),
		inject:           newInjector(),
		hooks:            NewHooks(),
		errStrings:       make(map[int]string),
	}

	if err := s.validateOnlyFilters(specs); err != nil {
		return nil, err
	}

	for i := range specs {
		if err := s.registerInput(&specs[i]); err != nil {
			return nil, err
		}
	}

	for i := 0; i < cfg.NumOutputs; i++ {
		cpuid := int64(i)
		if i < len(cfg.RecordedCpuids) {
			cpuid = cfg.RecordedCpuids[i]
		}
		s.outputs = append(s.outputs, output.New(i, cpuid, cfg.QuantumKind, cfg.QuantumSize))
	}

	if cfg.Mode == ModeMapToRecordedOutput && len(cfg.RecordedCpuids) == 0 {
		return nil, cerrors.WrapWithDetail(nil, cerrors.ErrInvalidParameter, "new",
			"MAP_TO_RECORDED_OUTPUT requires recorded cpuids")
	}

	s.seedRunqueues()
	return s, nil
}

func (s *Scheduler) validateOnlyFilters(specs []InputSpec) error {
	if len(s.cfg.OnlyThreads) > 0 {
		want := make(map[int64]bool, len(s.cfg.OnlyThreads))
		for _, t := range s.cfg.OnlyThreads {
			want[t] = true
		}
		found := false
		for _, sp := range specs {
			if want[sp.Tid] {
				found = true
				break
			}
		}
		if !found {
			return cerrors.ErrOnlyThreadsDisjoint
		}
	}
	for _, shard := range s.cfg.OnlyShards {
		if shard < 0 || shard >= s.cfg.NumOutputs {
			return cerrors.ErrOnlyShardsOutOfRange
		}
	}
	return nil
}

func (s *Scheduler) registerInput(spec *InputSpec) error {
	for i := 1; i < len(spec.ROI); i++ {
		if spec.ROI[i].StartInstr <= spec.ROI[i-1].EndInstr {
			return cerrors.ErrConflictingRegions
		}
	}

	if _, online := spec.Reader.(*input.IPCReader); online && s.cfg.NumOutputs > 1 {
		return cerrors.ErrOnlineCoreSharded
	}

	in := input.New(spec.WorkloadIndex, spec.Tid, spec.Pid, spec.Reader, spec.Priority, spec.StartsUnscheduled)
	in.Bindings = spec.Bindings
	in.ROI = spec.ROI
	if err := in.Init(); err != nil {
		return cerrors.WrapWithInput(err, cerrors.ErrReader, "init", in.ID())
	}

	if s.cfg.Mode == ModeMapToRecordedOutput {
		// The input's leading CPUID marker names the cpu it was recorded
		// on; MAP_TO_RECORDED_OUTPUT places it on the matching output.
		if ahead, err := in.Peek(recordedCpuidLookahead); err == nil {
			for _, rec := range ahead {
				if rec.IsMarker(record.MarkerCPUID) {
					in.RecordedCpuid = int64(rec.MarkerValue)
					in.HasRecordedCpuid = true
					break
				}
			}
		}
	}

	handle := s.inputs.Put(in)
	s.handles = append(s.handles, handle)
	s.tidIndex[spec.Tid] = handle
	return nil
}

// recordedCpuidLookahead bounds how far into an input's header the
// scheduler searches for its recorded CPUID marker.
const recordedCpuidLookahead = 16

// seedRunqueues places every non-unscheduled input into its initial
// output's ready queue (or the wait set, for StartsUnscheduled inputs),
// respecting bindings.
func (s *Scheduler) seedRunqueues() {
	for i, handle := range s.handles {
		in := s.inputs.Get(handle)
		if in.StartsUnscheduled {
			s.rq.Wait.Add(handle, 0, true)
			continue
		}
		out := s.initialOutputFor(in, i)
		s.pushReady(out, handle, in)
	}
}

func (s *Scheduler) initialOutputFor(in *input.Input, seedIndex int) int {
	switch s.cfg.Mode {
	case ModeSerial:
		return 0
	case ModeParallel:
		return seedIndex % s.cfg.NumOutputs
	case ModeMapToRecordedOutput:
		if in.HasRecordedCpuid {
			for i, cpu := range s.cfg.RecordedCpuids {
				if cpu == in.RecordedCpuid && i < s.cfg.NumOutputs {
					return i
				}
			}
		}
		return seedIndex % s.cfg.NumOutputs
	default:
		if len(in.Bindings) > 0 {
			return in.Bindings[0]
		}
		return seedIndex % s.cfg.NumOutputs
	}
}

// Stream returns the public Stream facade for the given output ordinal.
func (s *Scheduler) Stream(outputOrdinal int) *output.Stream {
	return output.NewStream(s, outputOrdinal)
}

// NumOutputs returns the configured number of outputs.
func (s *Scheduler) NumOutputs() int { return s.cfg.NumOutputs }

// Config returns a copy of the scheduler's configuration.
func (s *Scheduler) Config() Config { return s.cfg }

func (s *Scheduler) output(ordinal int) *output.Output { return s.outputs[ordinal] }

// ErrorString implements output.Engine.
func (s *Scheduler) ErrorString(outputOrdinal int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errStrings[outputOrdinal]
}

func (s *Scheduler) setError(outputOrdinal int, err error) {
	s.errStrings[outputOrdinal] = err.Error()
}

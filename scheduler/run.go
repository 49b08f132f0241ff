package scheduler

import (
	"context"
	"runtime"
	"sync"
	"time"

	"tracesched/internal/affinity"
	"tracesched/logging"
	"tracesched/output"
	"tracesched/record"
)

// Consume receives every record (including the synthesized WAIT/IDLE
// records) delivered on one output during Run. Returning an error stops
// the whole run.
type Consume func(outputOrdinal int, rec record.Record, status output.Status) error

// Run drives every output with one worker goroutine each until every
// output reports EOF, the context is cancelled, or a worker fails.
//
// Under microsecond quanta the workers feed NextRecord a shared
// monotonic microsecond clock; this is the real-wall-clock mode whose
// interleaving may vary across runs.
func (s *Scheduler) Run(ctx context.Context, consume Consume) error {
	logger := logging.Default()
	start := time.Now()
	useClock := s.cfg.QuantumKind == output.QuantumMicroseconds || s.cfg.RebalancePeriod > 0

	var wg sync.WaitGroup
	var errMu sync.Mutex
	var firstErr error
	fail := func(err error) {
		errMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		errMu.Unlock()
	}
	failed := func() bool {
		errMu.Lock()
		defer errMu.Unlock()
		return firstErr != nil
	}

	for i := 0; i < s.cfg.NumOutputs; i++ {
		wg.Add(1)
		go func(ordinal int) {
			defer wg.Done()

			if s.cfg.PinOutputsToCPUs {
				if err := affinity.PinCurrentThread(ordinal); err != nil {
					logging.WithOutput(logger, ordinal).Warn("cpu pinning failed", "error", err)
				} else {
					defer runtime.UnlockOSThread()
				}
			}

			stream := s.Stream(ordinal)
			for {
				if ctx.Err() != nil || failed() {
					return
				}

				var now *uint64
				if useClock {
					t := uint64(time.Since(start).Microseconds())
					now = &t
				}
				rec, status, err := stream.NextRecord(now)
				switch status {
				case output.StatusEOF:
					logging.WithOutput(logger, ordinal).Debug("output reached eof",
						"records", stream.GetRecordOrdinal(),
						"instructions", stream.GetInstructionOrdinal())
					return
				case output.StatusError:
					logging.WithOutput(logger, ordinal).Error("output failed",
						"error", stream.GetErrorString())
					fail(err)
					return
				}
				if err := consume(ordinal, rec, status); err != nil {
					fail(err)
					return
				}
				if status == output.StatusWait || status == output.StatusIdle {
					runtime.Gosched()
				}
			}
		}(i)
	}

	wg.Wait()
	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tracesched/logging"
	"tracesched/scheduler"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a synthetic workload through the scheduler",
	Long: `Run a deterministic synthetic workload through the scheduler and print
the resulting per-core schedule and statistics.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var runPin bool

func init() {
	rootCmd.AddCommand(runCmd)
	addWorkloadFlags(runCmd)
	runCmd.Flags().BoolVar(&runPin, "pin-cpus", false, "pin each output worker to a host cpu")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := GetContext()

	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	cfg.PinOutputsToCPUs = runPin

	s, err := scheduler.New(cfg, buildWorkload(workloadInputs, workloadInstrs))
	if err != nil {
		return fmt.Errorf("build scheduler: %w", err)
	}

	sched := newCoreSchedule(s.NumOutputs())
	stopProgress := startProgress(sched)
	err = s.Run(ctx, sched.consume)
	stopProgress()
	if err != nil {
		return fmt.Errorf("run scheduler: %w", err)
	}

	sched.print()
	printStats(s)
	return nil
}

// startProgress reports delivered-record counts while a run is in
// flight: a live single-line readout when stdout is a terminal, plain
// periodic log lines when it is redirected. Returns a stop func.
func startProgress(sched *coreSchedule) func() {
	interactive := term.IsTerminal(int(os.Stdout.Fd()))
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				if interactive {
					fmt.Printf("\r%-40s\r", "")
				}
				return
			case <-ticker.C:
				n := sched.records.Load()
				if interactive {
					fmt.Printf("\r%d records delivered", n)
				} else {
					logging.Info("progress", "records", n)
				}
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"tracesched/scheduler"
)

var recordCmd = &cobra.Command{
	Use:   "record <schedule-file>",
	Short: "Run a workload and record its schedule",
	Long: `Run a synthetic workload through the scheduler while recording the
schedule it produces, then write the recorded schedule archive for a
later 'replay'.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
	addWorkloadFlags(recordCmd)
}

func runRecord(cmd *cobra.Command, args []string) error {
	ctx := GetContext()
	scheduleFile := args[0]

	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	s, err := scheduler.New(cfg, buildWorkload(workloadInputs, workloadInstrs))
	if err != nil {
		return fmt.Errorf("build scheduler: %w", err)
	}
	s.EnableRecording()

	sched := newCoreSchedule(s.NumOutputs())
	stopProgress := startProgress(sched)
	err = s.Run(ctx, sched.consume)
	stopProgress()
	if err != nil {
		return fmt.Errorf("run scheduler: %w", err)
	}

	if err := s.WriteRecordingTo(scheduleFile); err != nil {
		return fmt.Errorf("write schedule: %w", err)
	}

	sched.print()
	fmt.Printf("Recorded schedule written to %s\n", scheduleFile)
	return nil
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"tracesched/scheduler"
)

var replayCmd = &cobra.Command{
	Use:   "replay <schedule-file>",
	Short: "Replay a previously recorded schedule",
	Long: `Re-run the synthetic workload, enforcing the schedule recorded by an
earlier 'record' run. The workload flags must match the recording run.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	addWorkloadFlags(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx := GetContext()
	scheduleFile := args[0]

	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	cfg.Mode = scheduler.ModeMapAsPreviously

	s, err := scheduler.New(cfg, buildWorkload(workloadInputs, workloadInstrs))
	if err != nil {
		return fmt.Errorf("build scheduler: %w", err)
	}
	if err := s.LoadReplay(scheduleFile); err != nil {
		return fmt.Errorf("load schedule: %w", err)
	}

	sched := newCoreSchedule(s.NumOutputs())
	stopProgress := startProgress(sched)
	err = s.Run(ctx, sched.consume)
	stopProgress()
	if err != nil {
		return fmt.Errorf("replay scheduler: %w", err)
	}

	sched.print()
	printStats(s)
	return nil
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var reinit bool

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Runs the data pipeline: ingest, virtual augmentation, graph build",
	Args:  cobra.NoArgs,
	RunE:  pipeline,
}

func init() {
	pipelineCmd.Flags().BoolVarP(&reinit, "reinit", "", false, "wipe storage and cache first (non-production only)")
	rootCmd.AddCommand(pipelineCmd)
}

func pipeline(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}

	ctx := context.Background()

	run := a.pipeline.Run
	if reinit {
		run = a.pipeline.Reinit
	}

	report, err := run(ctx)
	if report != nil {
		for _, step := range report.Steps {
			fmt.Printf("%-10s %-8s %6d  %s  %s\n",
				step.WorkerID, step.Status, step.Count, step.Duration.Round(time.Millisecond), step.Message)
		}
	}
	if err != nil {
		return err
	}

	fmt.Printf("pipeline finished in %s\n", report.Duration.Round(time.Millisecond))
	return nil
}

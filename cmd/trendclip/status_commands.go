package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and pipeline status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			report, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}
			if jsonFlag {
				return writeJSON(cmd, report)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "trendclipd %s, up %s\n", report.Version,
				time.Since(report.Started).Round(time.Second))
			fmt.Fprintf(out, "Queue: %d queued, %d active, %d completed, %d failed, %d cancelled\n",
				report.Queue.Queued, report.Queue.Active, report.Queue.Completed,
				report.Queue.Failed, report.Queue.Cancelled)

			rows := make([][]string, 0, len(report.Stages))
			for _, stage := range report.Stages {
				ready := "ready"
				if !stage.Ready {
					ready = "not ready"
				}
				rows = append(rows, []string{stage.Name, ready, stage.Detail})
			}
			fmt.Fprint(out, renderTable(
				[]string{"Stage", "State", "Detail"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			stats, err := client.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if jsonFlag {
				return writeJSON(cmd, stats)
			}

			rows := [][]string{
				{"Processed", fmt.Sprintf("%d", stats.TotalProcessed)},
				{"Failed", fmt.Sprintf("%d", stats.TotalFailed)},
				{"Active", fmt.Sprintf("%d", stats.ActiveJobs)},
				{"Queued", fmt.Sprintf("%d", stats.QueuedJobs)},
				{"Clips", fmt.Sprintf("%d", stats.TotalClips)},
				{"Avg processing time", (time.Duration(stats.AverageProcessingTime * float64(time.Second))).Round(time.Second).String()},
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(
				[]string{"Metric", "Value"}, rows,
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON instead of a table")
	return cmd
}

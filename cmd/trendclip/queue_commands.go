package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"trendclip/internal/api"
	"trendclip/internal/queue"
	"trendclip/internal/sources"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the processing queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueCancelCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))

	return queueCmd
}

func buildJobRows(jobs []api.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		title := job.Title
		if title == "" {
			title = job.SourceURL
		}
		progress := fmt.Sprintf("%d%%", job.Progress)
		if queue.IsTerminalStatus(job.Status) {
			progress = "-"
		}
		rows = append(rows, []string{
			job.ID,
			truncate(title, 48),
			string(job.Status),
			progress,
			formatAge(job.CreatedAt),
		})
	}
	return rows
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			jobs, err := client.ListJobs(cmd.Context())
			if err != nil {
				return err
			}
			if jsonFlag {
				return writeJSON(cmd, jobs)
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Title", "Status", "Progress", "Added"},
				buildJobRows(jobs),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var typeFlag string

	cmd := &cobra.Command{
		Use:   "add <url-or-path>",
		Short: "Enqueue a source for processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			sourceType := sources.Detect(args[0])
			if typeFlag != "" {
				parsed, ok := sources.ParseType(typeFlag)
				if !ok {
					names := make([]string, 0, len(sources.AllTypes()))
					for _, t := range sources.AllTypes() {
						names = append(names, string(t))
					}
					return fmt.Errorf("unknown source type %q (expected one of %s)",
						typeFlag, strings.Join(names, ", "))
				}
				sourceType = parsed
			}

			job, err := client.SubmitJob(cmd.Context(), api.SubmitRequest{
				SourceURL:  args[0],
				SourceType: sourceType,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued job %s\n", job.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&typeFlag, "type", "t", "", "Source type (detected from the URL when omitted)")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			job, err := client.GetJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd, job)
		},
	}
}

func newQueueCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a queued or active job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.CancelJob(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancelled job %s\n", args[0])
			return nil
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Return a failed job to the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			job, err := client.RetryJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s queued again (attempt %d)\n", job.ID, job.RetryCount+1)
			return nil
		},
	}
}

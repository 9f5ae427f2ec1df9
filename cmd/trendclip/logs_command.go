package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"trendclip/internal/api"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		searchFlag string
		levelFlag  string
		jsonFlag   bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show dashboard activity logs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			entries, err := client.ListLogs(cmd.Context(), searchFlag, levelFlag)
			if err != nil {
				return err
			}
			if jsonFlag {
				return writeJSON(cmd, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No log entries")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(
				[]string{"Time", "Level", "Message", "Details"},
				buildLogRows(entries),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&searchFlag, "search", "s", "", "Match against message and details")
	cmd.Flags().StringVarP(&levelFlag, "level", "l", "", "Filter by level (info, warning, error, success)")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON instead of a table")
	return cmd
}

func buildLogRows(entries []api.LogEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{
			entry.Timestamp.Local().Format("2006-01-02 15:04:05"),
			string(entry.Level),
			entry.Message,
			truncate(entry.Details, 60),
		})
	}
	return rows
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"trendclip/internal/api"
)

func newClipsCommand(ctx *commandContext) *cobra.Command {
	clipsCmd := &cobra.Command{
		Use:   "clips",
		Short: "Browse and manage processed clips",
	}

	clipsCmd.AddCommand(newClipsListCommand(ctx))
	clipsCmd.AddCommand(newClipsUploadedCommand(ctx))

	return clipsCmd
}

func buildClipRows(list []api.Clip) [][]string {
	rows := make([][]string, 0, len(list))
	for _, clip := range list {
		uploaded := make([]string, 0, len(clip.UploadedTo))
		for _, platform := range clip.UploadedTo {
			uploaded = append(uploaded, string(platform))
		}
		uploadedCell := "-"
		if len(uploaded) > 0 {
			uploadedCell = strings.Join(uploaded, ", ")
		}
		rows = append(rows, []string{
			clip.ID,
			truncate(clip.Title, 40),
			formatClipDuration(clip.Duration),
			string(clip.Status),
			uploadedCell,
			formatAge(clip.CreatedAt),
		})
	}
	return rows
}

func newClipsListCommand(ctx *commandContext) *cobra.Command {
	var filterFlag string
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List processed clips, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			list, err := client.ListClips(cmd.Context(), filterFlag)
			if err != nil {
				return err
			}
			if jsonFlag {
				return writeJSON(cmd, list)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No clips yet")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Title", "Length", "Status", "Uploaded To", "Created"},
				buildClipRows(list),
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().StringVarP(&filterFlag, "filter", "f", "", "Match against title, description, and hashtags")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newClipsUploadedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "uploaded <clip-id> <platform>",
		Short: "Record that a clip was uploaded to a platform",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			clip, err := client.MarkClipUploaded(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Clip %s marked uploaded to %s\n", clip.ID, args[1])
			return nil
		},
	}
}

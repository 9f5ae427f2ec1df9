package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"trendclip/internal/settings"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show and change processing settings",
	}

	settingsCmd.AddCommand(newSettingsShowCommand(ctx))
	settingsCmd.AddCommand(newSettingsSetCommand(ctx))

	return settingsCmd
}

func newSettingsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show current settings (API keys masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			record, err := client.GetSettings(cmd.Context())
			if err != nil {
				return err
			}
			if jsonFlag {
				return writeJSON(cmd, record)
			}
			rows := [][]string{
				{"Max concurrent jobs", fmt.Sprintf("%d", record.MaxConcurrentJobs)},
				{"Whisper model", string(record.WhisperModel)},
				{"GPU auto-detect", formatBool(record.GPUAutoDetect)},
				{"Delete raw after processing", formatBool(record.DeleteRawAfterProcessing)},
				{"Library path", record.LibraryPath},
				{"Output path", record.OutputPath},
				{"OpenAI key", orUnset(record.APIKeys.OpenAI)},
				{"TikTok key", orUnset(record.APIKeys.TikTok)},
				{"YouTube key", orUnset(record.APIKeys.YouTube)},
				{"Instagram key", orUnset(record.APIKeys.Instagram)},
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(
				[]string{"Setting", "Value"}, rows,
				[]columnAlignment{alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON instead of a table")
	return cmd
}

func orUnset(value string) string {
	if value == "" {
		return "(unset)"
	}
	return value
}

func newSettingsSetCommand(ctx *commandContext) *cobra.Command {
	var (
		maxConcurrent int
		whisperModel  string
		gpuAuto       string
		deleteRaw     string
		libraryPath   string
		outputPath    string
		openaiKey     string
		tiktokKey     string
		youtubeKey    string
		instagramKey  string
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change one or more settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			record, err := client.GetSettings(cmd.Context())
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("max-concurrent") {
				record.MaxConcurrentJobs = maxConcurrent
			}
			if cmd.Flags().Changed("whisper-model") {
				record.WhisperModel = settings.WhisperModel(whisperModel)
			}
			if cmd.Flags().Changed("gpu-auto-detect") {
				record.GPUAutoDetect, err = parseBoolFlag("gpu-auto-detect", gpuAuto)
				if err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("delete-raw") {
				record.DeleteRawAfterProcessing, err = parseBoolFlag("delete-raw", deleteRaw)
				if err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("library-path") {
				record.LibraryPath = libraryPath
			}
			if cmd.Flags().Changed("output-path") {
				record.OutputPath = outputPath
			}
			if cmd.Flags().Changed("openai-key") {
				record.APIKeys.OpenAI = openaiKey
			}
			if cmd.Flags().Changed("tiktok-key") {
				record.APIKeys.TikTok = tiktokKey
			}
			if cmd.Flags().Changed("youtube-key") {
				record.APIKeys.YouTube = youtubeKey
			}
			if cmd.Flags().Changed("instagram-key") {
				record.APIKeys.Instagram = instagramKey
			}

			saved, err := client.UpdateSettings(cmd.Context(), record)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Settings saved (max concurrent: %d, model: %s)\n",
				saved.MaxConcurrentJobs, saved.WhisperModel)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 0, "Concurrency cap for active jobs")
	cmd.Flags().StringVar(&whisperModel, "whisper-model", "", "Whisper model (tiny, base, small, medium, large)")
	cmd.Flags().StringVar(&gpuAuto, "gpu-auto-detect", "", "Use the GPU when available (true/false)")
	cmd.Flags().StringVar(&deleteRaw, "delete-raw", "", "Delete downloaded media after processing (true/false)")
	cmd.Flags().StringVar(&libraryPath, "library-path", "", "Directory for downloaded media")
	cmd.Flags().StringVar(&outputPath, "output-path", "", "Directory for rendered clips")
	cmd.Flags().StringVar(&openaiKey, "openai-key", "", "OpenAI API key")
	cmd.Flags().StringVar(&tiktokKey, "tiktok-key", "", "TikTok API key")
	cmd.Flags().StringVar(&youtubeKey, "youtube-key", "", "YouTube API key")
	cmd.Flags().StringVar(&instagramKey, "instagram-key", "", "Instagram API key")
	return cmd
}

func parseBoolFlag(name, value string) (bool, error) {
	switch value {
	case "true", "yes", "1":
		return true, nil
	case "false", "no", "0":
		return false, nil
	default:
		return false, fmt.Errorf("--%s expects true or false, got %q", name, value)
	}
}

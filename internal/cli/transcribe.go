package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Messijah/PedagogiskDialog/internal/audio"
	"github.com/Messijah/PedagogiskDialog/internal/providers"
)

func newTranscribeCommand(a *app) *cobra.Command {
	var language, prompt string

	cmd := &cobra.Command{
		Use:   "transcribe <file>",
		Short: "Transcribe a recording with the configured backend and print the text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			gateway, err := providers.NewRegistry().BuildGateway(a.cfg, a.logger)
			if err != nil {
				return err
			}
			ffmpeg := audio.NewFFmpeg(a.cfg.Audio.FFmpegPath, a.cfg.Audio.FFprobePath)
			pipeline := audio.NewPipeline(gateway, ffmpeg, a.cfg.Audio, a.logger)

			errOut := cmd.ErrOrStderr()
			result, err := pipeline.Transcribe(ctx, args[0], audio.Options{
				Language: language,
				Prompt:   prompt,
				OnProgress: func(e audio.Event) {
					if e.Kind == audio.EventSegmentFinished || e.Kind == audio.EventSegmentFailed {
						fmt.Fprintf(errOut, "%s %d/%d\n", e.Kind, e.Segment, e.Total)
					}
				},
			})
			if err != nil {
				return err
			}

			for _, w := range result.Warnings {
				fmt.Fprintln(errOut, "warning:", w)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), result.Text)
			return err
		},
	}
	cmd.Flags().StringVar(&language, "language", "", "Spoken language (default: transcription.language)")
	cmd.Flags().StringVar(&prompt, "prompt", "", "Vocabulary hint, e.g. participant names")
	return cmd
}

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forPelevin/mdvid/internal/pipeline"
	"github.com/forPelevin/mdvid/internal/usecase"
)

func newConvertCommand(a *app) *cobra.Command {
	var in usecase.ConvertInput
	cmd := &cobra.Command{
		Use:   "convert <video>",
		Short: "Write a new document from a video and its transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Video = args[0]
			if in.Transcript == "" {
				return errors.New("--transcript is required")
			}
			out, err := pipeline.Convert(in, a.log)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Transcript, "transcript", "", "Word-timed transcript JSON")
	cmd.Flags().StringVar(&in.Audio, "audio", "", "Preprocessed audio track for the source")
	cmd.Flags().StringVarP(&in.OutPath, "out", "o", "", "Output document (default <video-name>.md)")
	cmd.Flags().BoolVar(&in.Force, "force", false, "Overwrite an existing document")
	return cmd
}

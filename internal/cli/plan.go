package cli

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forPelevin/mdvid/internal/domain/document"
	"github.com/forPelevin/mdvid/internal/domain/planner"
	"github.com/forPelevin/mdvid/internal/pipeline"
)

const planTextWidth = 48

func newPlanCommand(a *app) *cobra.Command {
	var source, transcript string
	cmd := &cobra.Command{
		Use:   "plan <doc.md>",
		Short: "Show what a document will render, without running any tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			cfg := a.pipelineConfig(doc)
			if source != "" {
				if cfg.Source, err = filepath.Abs(source); err != nil {
					return err
				}
			}
			cfg.Transcript = transcript
			_, p, err := pipeline.Plan(cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderPlan(p))
			fmt.Fprintf(out, "segments %d, standalone %d, overlays %d, headings %d, ignored %d\n",
				p.SegmentCount, p.StandaloneCount, p.OverlayCount, p.HeadingCount, p.IgnoredCount)
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "Video for documents without front matter sources")
	cmd.Flags().StringVar(&transcript, "transcript", "", "Transcript for --source")
	return cmd
}

func renderPlan(p *planner.Plan) string {
	rows := make([][]string, 0, len(p.Items))
	for i, it := range p.Items {
		n := strconv.Itoa(i + 1)
		switch v := it.(type) {
		case planner.Clip:
			text := v.Text
			if v.Overlay != nil {
				text += " [+overlay]"
			}
			rows = append(rows, []string{n, "clip/" + v.Kind.String(), document.FormatRange(v.SourceID, document.TimeRange{Start: v.StartSrc, End: v.EndSrc}), document.FormatTimestamp(v.Duration()), clip(text)})
		case planner.Heading:
			rows = append(rows, []string{n, "heading", "h" + strconv.Itoa(v.Level), "", clip(v.Text)})
		case planner.Pause:
			rows = append(rows, []string{n, "pause", "", document.FormatTimestamp(v.Duration), clip(v.DisplayText)})
		case planner.Music:
			d := v.Directive
			arg := d.Path
			if d.Action == document.MusicFade {
				arg = document.FormatTimestamp(d.Duration)
			}
			rows = append(rows, []string{n, "music/" + d.Action.String(), "", "", arg})
		}
	}
	return renderTable(
		[]string{"#", "Kind", "Source", "Length", "Text"},
		rows,
		0, 3,
	)
}

func clip(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= planTextWidth {
		return s
	}
	return string(r[:planTextWidth-1]) + "…"
}

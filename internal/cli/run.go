package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/forPelevin/mdvid/internal/domain/document"
	"github.com/forPelevin/mdvid/internal/pipeline"
)

type renderFlags struct {
	out        string
	force      bool
	dryRun     bool
	from       string
	subtitles  string
	reels      bool
	width      int
	height     int
	fps        float64
	source     string
	transcript string
}

func newRenderCommand(a *app) *cobra.Command {
	var f renderFlags
	cmd := &cobra.Command{
		Use:   "render <doc.md>",
		Short: "Render a document into a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.render(cmd, args[0], f)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.out, "out", "o", "", "Output video (default <doc-name>.mp4 next to the document)")
	fl.BoolVar(&f.force, "force", false, "Overwrite an existing output")
	fl.BoolVar(&f.dryRun, "dry-run", false, "Print the encoder command instead of running it")
	fl.StringVar(&f.from, "from", "", "Drop everything before this output time (HH:MM:SS.mmm)")
	fl.StringVar(&f.subtitles, "subtitles", "", "Subtitles: none, sidecar, or burn")
	fl.BoolVar(&f.reels, "reels", false, "Vertical 1080x1920 output")
	fl.IntVar(&f.width, "width", 0, "Output width (with --height)")
	fl.IntVar(&f.height, "height", 0, "Output height (with --width)")
	fl.StringVar(&f.source, "source", "", "Video for documents without front matter sources")
	fl.StringVar(&f.transcript, "transcript", "", "Transcript for --source")

	// Hidden tuning flag (internal)
	fl.Float64Var(&f.fps, "fps", 0, "Force output frame rate")
	_ = fl.MarkHidden("fps")

	return cmd
}

func (a *app) render(cmd *cobra.Command, doc string, f renderFlags) error {
	absDoc, err := filepath.Abs(doc)
	if err != nil {
		return err
	}

	cfg := a.pipelineConfig(absDoc)
	cfg.Stdout = cmd.OutOrStdout()
	cfg.Stderr = cmd.ErrOrStderr()
	cfg.Force = f.force
	cfg.DryRun = f.dryRun
	cfg.Reels = f.reels
	if f.out != "" {
		if cfg.OutPath, err = filepath.Abs(f.out); err != nil {
			return err
		}
	}
	if f.from != "" {
		if cfg.From, err = document.ParseTimestamp(f.from); err != nil {
			return fmt.Errorf("--from: %w", err)
		}
	}
	if f.subtitles != "" {
		cfg.Subtitles = f.subtitles
	}
	if f.width != 0 || f.height != 0 {
		cfg.Width, cfg.Height = f.width, f.height
	}
	if f.reels && f.width == 0 && f.height == 0 {
		cfg.Width, cfg.Height = 0, 0
	}
	if f.fps != 0 {
		cfg.FrameRate = f.fps
	}
	if f.source != "" {
		if cfg.Source, err = filepath.Abs(f.source); err != nil {
			return err
		}
	}
	if f.transcript != "" {
		if cfg.Transcript, err = filepath.Abs(f.transcript); err != nil {
			return err
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Hour)
	defer cancel()

	res, err := pipeline.Run(ctx, cfg)
	if err != nil {
		return err
	}
	if cfg.DryRun {
		return nil
	}

	out := res.Command.Args[len(res.Command.Args)-1]
	size := "unknown size"
	if st, err := os.Stat(out); err == nil {
		size = humanize.Bytes(uint64(st.Size()))
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%s, %s)\n", out, document.FormatTimestamp(res.Timeline.Duration()), size)
	if res.SubtitlesPath != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "subtitles %s (%d cues)\n", res.SubtitlesPath, res.SubtitleCount)
	}
	return nil
}

// pipelineConfig fills a pipeline config from the loaded settings.
func (a *app) pipelineConfig(doc string) pipeline.Config {
	c := a.cfg
	return pipeline.Config{
		DocPath:           doc,
		Subtitles:         c.Render.Subtitles,
		Width:             c.Render.Width,
		Height:            c.Render.Height,
		FrameRate:         c.Render.FPS,
		MusicVolume:       c.Render.MusicVolume,
		TitleCardDuration: seconds(c.TitleCards.DurationSeconds),
		ReadingWPM:        c.Pause.WPM,
		PauseMin:          seconds(c.Pause.MinSeconds),
		PauseMax:          seconds(c.Pause.MaxSeconds),
		CacheDir:          c.TitleCards.CacheDir,
		FFmpegPath:        c.Tools.FFmpeg,
		FFprobePath:       c.Tools.FFprobe,
		PandocPath:        c.Tools.Pandoc,
		BrowserPath:       c.Tools.Browser,
		Logger:            a.log,
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

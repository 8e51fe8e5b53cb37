package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/forPelevin/mdvid/internal/diag"
	"github.com/forPelevin/mdvid/internal/domain/document"
	"github.com/forPelevin/mdvid/internal/domain/filtergraph"
	"github.com/forPelevin/mdvid/internal/domain/planner"
	"github.com/forPelevin/mdvid/internal/domain/subtitles"
	"github.com/forPelevin/mdvid/internal/domain/timeline"
	"github.com/forPelevin/mdvid/internal/domain/transcript"
	"github.com/forPelevin/mdvid/internal/ports"
	"github.com/forPelevin/mdvid/internal/types"
)

// CardsFactory builds a title-card generator for the chosen output size.
type CardsFactory func(width, height int) (timeline.Cards, error)

type Deps struct {
	Video  ports.VideoTool
	Cards  CardsFactory
	Logger *zap.Logger
	// Stdout receives the dry-run command line.
	Stdout io.Writer
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Stdout == nil {
		d.Stdout = os.Stdout
	}
	return Usecase{d: d}
}

type SubtitleMode string

const (
	SubtitlesNone    SubtitleMode = "none"
	SubtitlesSidecar SubtitleMode = "sidecar"
	SubtitlesBurn    SubtitleMode = "burn"
)

const (
	ReelsWidth  = 1080
	ReelsHeight = 1920
)

type Input struct {
	DocPath string
	OutPath string
	Force   bool
	DryRun  bool
	// From drops everything before this final-video time.
	From      time.Duration
	Subtitles SubtitleMode
	Reels     bool
	Width     int
	Height    int
	FrameRate float64

	MusicVolume       float64
	TitleCardDuration time.Duration
	Planner           planner.Options

	// Source and Transcript describe the video for documents without sources.
	Source     string
	Transcript string

	// EncoderName is shown in dry-run output.
	EncoderName string
}

type Result struct {
	Document      *document.Document
	Plan          *planner.Plan
	Timeline      *timeline.Timeline
	Command       *filtergraph.Command
	Width         int
	Height        int
	SubtitlesPath string
	SubtitleCount int
}

// Load parses the document and runs the planner.
func (u Usecase) Load(in Input) (*document.Document, *planner.Plan, error) {
	src, err := os.ReadFile(in.DocPath)
	if err != nil {
		return nil, nil, diag.IO(in.DocPath, err)
	}
	doc, err := document.Parse(src, in.DocPath)
	if err != nil {
		return nil, nil, err
	}
	if len(doc.Metadata.Sources) == 0 && in.Source != "" {
		if err := synthesizeSource(doc, in.Source, in.Transcript); err != nil {
			return nil, nil, err
		}
	}
	plan, err := planner.Build(doc, in.Planner)
	if err != nil {
		return nil, nil, err
	}
	log := u.d.Logger.With(zap.String("doc", in.DocPath))
	log.Info("planned",
		zap.Int("segments", plan.SegmentCount),
		zap.Int("standalones", plan.StandaloneCount),
		zap.Int("overlays", plan.OverlayCount),
		zap.Int("headings", plan.HeadingCount),
	)
	if plan.IgnoredCount > 0 {
		log.Warn("ignored blocks", zap.Int("count", plan.IgnoredCount))
	}
	return doc, plan, nil
}

func synthesizeSource(doc *document.Document, video, tr string) error {
	abs := func(p string) (string, error) {
		if p == "" {
			return "", nil
		}
		a, err := filepath.Abs(p)
		if err != nil {
			return "", diag.IO(p, err)
		}
		return a, nil
	}
	v, err := abs(video)
	if err != nil {
		return err
	}
	t, err := abs(tr)
	if err != nil {
		return err
	}
	doc.Metadata.DefaultSource = document.DefaultSourceID
	doc.Metadata.Sources = []document.Source{{
		ID:         document.DefaultSourceID,
		Name:       DisplayName(v),
		Source:     v,
		Transcript: t,
	}}
	return nil
}

// Run renders the document, or prints the encoder command on a dry run.
func (u Usecase) Run(ctx context.Context, in Input) (Result, error) {
	log := u.d.Logger
	doc, plan, err := u.Load(in)
	if err != nil {
		return Result{}, err
	}
	res := Result{Document: doc, Plan: plan}
	baseDir := filepath.Dir(in.DocPath)

	out, err := u.checkOutput(in, doc, baseDir)
	if err != nil {
		return res, err
	}

	infos, err := u.probeSources(ctx, doc, plan, baseDir)
	if err != nil {
		return res, err
	}
	res.Width, res.Height = targetSize(in, doc, plan, infos)
	log.Info("target size", zap.Int("width", res.Width), zap.Int("height", res.Height))

	var cards timeline.Cards
	if u.d.Cards != nil {
		if cards, err = u.d.Cards(res.Width, res.Height); err != nil {
			return res, err
		}
	}
	durations := make(map[string]time.Duration, len(infos))
	silent := map[string]bool{}
	for id, info := range infos {
		durations[id] = info.Duration
		if !info.HasAudio {
			silent[id] = true
		}
	}
	tl, err := timeline.Build(ctx, doc, plan, cards, timeline.Options{
		TitleCardDuration: in.TitleCardDuration,
		BaseDir:           baseDir,
		SourceDurations:   durations,
		Silent:            silent,
		Logger:            log,
	})
	if err != nil {
		return res, err
	}
	if in.From > 0 {
		total := tl.Duration()
		if in.From >= total {
			return res, fmt.Errorf("--from %s is past the end of the timeline (%s)",
				document.FormatTimestamp(in.From), document.FormatTimestamp(total))
		}
		tl.TruncateBefore(in.From)
	}
	res.Timeline = tl
	log.Info("timeline built", zap.Int("segments", len(tl.Segments)), zap.Duration("duration", tl.Duration()))

	opts := filtergraph.Options{
		Width:       res.Width,
		Height:      res.Height,
		FrameRate:   in.FrameRate,
		MusicVolume: in.MusicVolume,
	}
	if in.Subtitles == SubtitlesSidecar || in.Subtitles == SubtitlesBurn {
		path, n, err := u.writeSubtitles(doc, tl, baseDir, out, res.Width, res.Height, in)
		if err != nil {
			return res, err
		}
		res.SubtitlesPath, res.SubtitleCount = path, n
		if in.Subtitles == SubtitlesBurn {
			opts.SubtitlesPath = path
		}
	}

	cmd, err := filtergraph.Compile(tl, out, opts)
	if err != nil {
		return res, err
	}
	res.Command = cmd

	if in.DryRun {
		name := in.EncoderName
		if name == "" {
			name = "ffmpeg"
		}
		_, err := fmt.Fprintln(u.d.Stdout, filtergraph.ShellQuote(append([]string{name}, cmd.Args...)...))
		return res, err
	}

	if in.Force {
		if err := os.Remove(out); err != nil && !errors.Is(err, os.ErrNotExist) {
			return res, diag.IO(out, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return res, diag.IO(filepath.Dir(out), err)
	}
	start := time.Now()
	log.Info("encoding", zap.String("out", out), zap.Int("inputs", len(cmd.Inputs)))
	if err := u.d.Video.Encode(ctx, cmd.Args); err != nil {
		return res, diag.EncoderFailed(err)
	}
	log.Info("encoded", zap.String("out", out), zap.Duration("took", time.Since(start)))
	return res, nil
}

// checkOutput resolves the output path and applies the overwrite gates.
func (u Usecase) checkOutput(in Input, doc *document.Document, baseDir string) (string, error) {
	if in.OutPath == "" {
		return "", errors.New("output path is empty")
	}
	out, err := filepath.Abs(in.OutPath)
	if err != nil {
		return "", diag.IO(in.OutPath, err)
	}
	for _, s := range doc.Metadata.Sources {
		for _, p := range []string{s.Source, s.AudioPath()} {
			if p == "" {
				continue
			}
			if samePath(out, resolve(baseDir, p)) {
				return "", diag.OutputCollidesWithSource(out)
			}
		}
	}
	paths := []string{out}
	if in.Subtitles == SubtitlesSidecar || in.Subtitles == SubtitlesBurn {
		paths = append(paths, sidecarPath(out))
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			if !in.Force {
				return "", diag.OutputExists(p)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", diag.IO(p, err)
		}
	}
	return out, nil
}

// sidecarPath is the subtitle file written next to out.
func sidecarPath(out string) string {
	return strings.TrimSuffix(out, filepath.Ext(out)) + ".ass"
}

// probeSources inspects every source a clip uses.
func (u Usecase) probeSources(ctx context.Context, doc *document.Document, plan *planner.Plan, baseDir string) (map[string]types.VideoInfo, error) {
	infos := map[string]types.VideoInfo{}
	for _, c := range plan.Clips() {
		if _, ok := infos[c.SourceID]; ok {
			continue
		}
		src, _ := doc.Metadata.Source(c.SourceID)
		path := resolve(baseDir, src.Source)
		info, err := u.d.Video.ProbeVideo(ctx, path)
		if err != nil {
			return nil, diag.ProbeFailed(path, err)
		}
		u.d.Logger.Debug("probed source",
			zap.String("id", c.SourceID),
			zap.String("path", path),
			zap.Int("width", info.Width),
			zap.Int("height", info.Height),
			zap.Duration("duration", info.Duration),
			zap.Bool("audio", info.HasAudio),
		)
		infos[c.SourceID] = info
	}
	return infos, nil
}

func targetSize(in Input, doc *document.Document, plan *planner.Plan, infos map[string]types.VideoInfo) (int, int) {
	w, h := 1920, 1080
	switch {
	case in.Width > 0 && in.Height > 0:
		w, h = in.Width, in.Height
	case in.Reels:
		w, h = ReelsWidth, ReelsHeight
	default:
		if info, ok := infos[doc.Metadata.DefaultID()]; ok && info.Width > 0 {
			w, h = info.Width, info.Height
		} else if clips := plan.Clips(); len(clips) > 0 {
			if info := infos[clips[0].SourceID]; info.Width > 0 {
				w, h = info.Width, info.Height
			}
		}
	}
	return even(w), even(h)
}

func even(n int) int { return n + n%2 }

func (u Usecase) writeSubtitles(doc *document.Document, tl *timeline.Timeline, baseDir, out string, w, h int, in Input) (string, int, error) {
	var cues []transcript.Cue
	for _, s := range doc.Metadata.Sources {
		if s.Transcript == "" {
			continue
		}
		path := resolve(baseDir, s.Transcript)
		c, err := transcript.Load(path, s.ID)
		if err != nil {
			u.d.Logger.Warn("transcript unavailable, source has no subtitles",
				zap.String("source", s.ID), zap.String("path", path), zap.Error(err))
			continue
		}
		cues = append(cues, c...)
	}
	subs := subtitles.Remap(cues, tl)
	script := subtitles.RenderASS(subs, subtitles.Style{Width: w, Height: h, Reels: in.Reels})
	path := sidecarPath(out)
	if in.DryRun {
		return path, len(subs), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", 0, diag.IO(filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		return "", 0, diag.IO(path, err)
	}
	u.d.Logger.Info("subtitles written", zap.String("path", path), zap.Int("cues", len(subs)))
	return path, len(subs), nil
}

func resolve(baseDir, p string) string {
	if filepath.IsAbs(p) || baseDir == "" {
		return p
	}
	return filepath.Join(baseDir, p)
}

func samePath(a, b string) bool {
	ab, err := filepath.Abs(b)
	if err != nil {
		return false
	}
	if filepath.Clean(a) == filepath.Clean(ab) {
		return true
	}
	sa, errA := os.Stat(a)
	sb, errB := os.Stat(ab)
	return errA == nil && errB == nil && os.SameFile(sa, sb)
}

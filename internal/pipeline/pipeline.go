package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/forPelevin/mdvid/internal/domain/document"
	"github.com/forPelevin/mdvid/internal/domain/planner"
	"github.com/forPelevin/mdvid/internal/domain/timeline"
	"github.com/forPelevin/mdvid/internal/ports"
	"github.com/forPelevin/mdvid/internal/ports/adapters/chromium"
	"github.com/forPelevin/mdvid/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/mdvid/internal/ports/adapters/pandoc"
	"github.com/forPelevin/mdvid/internal/titlecard"
	"github.com/forPelevin/mdvid/internal/usecase"
)

type Config struct {
	DocPath string
	// OutPath defaults to DefaultOutPath(DocPath).
	OutPath string
	Force   bool
	DryRun  bool
	From    time.Duration

	Subtitles   string
	Reels       bool
	Width       int
	Height      int
	FrameRate   float64
	MusicVolume float64

	TitleCardDuration time.Duration
	ReadingWPM        int
	PauseMin          time.Duration
	PauseMax          time.Duration

	// Source and Transcript back documents that carry no sources.
	Source     string
	Transcript string

	// CacheDir is the title-card cache root. Empty means the user cache dir.
	CacheDir string

	FFmpegPath  string
	FFprobePath string
	PandocPath  string
	BrowserPath string

	Logger *zap.Logger
	// Stdout receives the dry-run command line and the encoder's output.
	Stdout io.Writer
	Stderr io.Writer
}

func (c Config) Validate() error {
	if c.DocPath == "" {
		return errors.New("document is empty")
	}
	if _, err := os.Stat(c.DocPath); err != nil {
		return fmt.Errorf("stat document: %w", err)
	}
	if c.Width < 0 || c.Height < 0 {
		return errors.New("width and height must not be negative")
	}
	if (c.Width == 0) != (c.Height == 0) {
		return errors.New("width and height must be given together")
	}
	if c.From < 0 {
		return errors.New("from must not be negative")
	}
	if c.FrameRate < 0 {
		return errors.New("fps must not be negative")
	}
	switch usecase.SubtitleMode(c.Subtitles) {
	case "", usecase.SubtitlesNone, usecase.SubtitlesSidecar, usecase.SubtitlesBurn:
	default:
		return fmt.Errorf("subtitles must be none, sidecar, or burn (got %q)", c.Subtitles)
	}
	if c.PauseMin > 0 && c.PauseMax > 0 && c.PauseMin > c.PauseMax {
		return errors.New("pause min must be <= pause max")
	}
	return nil
}

// Run renders the document, or prints the encoder command on a dry run.
func Run(ctx context.Context, cfg Config) (usecase.Result, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	// adapters
	v := ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath, log.Named("ffmpeg"))
	if cfg.Stdout != nil {
		v.Stdout = cfg.Stdout
	}
	if cfg.Stderr != nil {
		v.Stderr = cfg.Stderr
	}
	md := pandoc.New(cfg.PandocPath)
	browser := chromium.New(cfg.BrowserPath)

	cards := func(w, h int) (timeline.Cards, error) {
		g, err := titlecard.New(titlecard.Config{
			Root:   cfg.CacheDir,
			Width:  w,
			Height: h,
			Logger: log.Named("titlecard"),
		}, md, browser, v)
		if err != nil {
			return nil, err
		}
		log.Debug("title-card cache", zap.String("root", g.Root()), zap.Int("width", w), zap.Int("height", h))
		return g, nil
	}

	uc := usecase.New(usecase.Deps{
		Video:  v,
		Cards:  cards,
		Logger: log,
		Stdout: cfg.Stdout,
	})

	out := cfg.OutPath
	if out == "" {
		out = DefaultOutPath(cfg.DocPath)
		log.Info("output path", zap.String("out", out))
	}
	subs := usecase.SubtitleMode(cfg.Subtitles)
	if subs == "" {
		subs = usecase.SubtitlesNone
	}
	return uc.Run(ctx, usecase.Input{
		DocPath:           cfg.DocPath,
		OutPath:           out,
		Force:             cfg.Force,
		DryRun:            cfg.DryRun,
		From:              cfg.From,
		Subtitles:         subs,
		Reels:             cfg.Reels,
		Width:             cfg.Width,
		Height:            cfg.Height,
		FrameRate:         cfg.FrameRate,
		MusicVolume:       cfg.MusicVolume,
		TitleCardDuration: cfg.TitleCardDuration,
		Planner:           plannerOptions(cfg),
		Source:            cfg.Source,
		Transcript:        cfg.Transcript,
		EncoderName:       v.Binary(),
	})
}

// Plan parses and plans the document without touching any external tool.
func Plan(cfg Config) (*document.Document, *planner.Plan, error) {
	uc := usecase.New(usecase.Deps{Logger: cfg.Logger})
	return uc.Load(usecase.Input{
		DocPath:    cfg.DocPath,
		Planner:    plannerOptions(cfg),
		Source:     cfg.Source,
		Transcript: cfg.Transcript,
	})
}

// Convert writes a fresh document for a video and its transcript.
func Convert(in usecase.ConvertInput, log *zap.Logger) (string, error) {
	if _, err := os.Stat(in.Video); err != nil {
		return "", fmt.Errorf("stat video: %w", err)
	}
	if _, err := os.Stat(in.Transcript); err != nil {
		return "", fmt.Errorf("stat transcript: %w", err)
	}
	return usecase.New(usecase.Deps{Logger: log}).Convert(in)
}

// CacheRoot returns dir, or the default title-card cache root when dir is empty.
func CacheRoot(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return titlecard.DefaultRoot()
}

func plannerOptions(cfg Config) planner.Options {
	return planner.Options{
		ReadingWPM: cfg.ReadingWPM,
		PauseMin:   cfg.PauseMin,
		PauseMax:   cfg.PauseMax,
	}
}

// DefaultOutPath places "<doc-name>.mp4" next to the document, with the name
// reduced to lowercase letters, digits, and dashes.
func DefaultOutPath(docPath string) string {
	name := strings.TrimSuffix(filepath.Base(docPath), filepath.Ext(docPath))
	name = normalizePathSegment(name)
	if name == "" {
		name = "render"
	}
	return filepath.Join(filepath.Dir(docPath), name+".mp4")
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// ensure adapters implement ports
var _ ports.VideoTool = (*ffmpeg.Adapter)(nil)
var _ ports.MarkdownConverter = (*pandoc.Adapter)(nil)
var _ ports.HTMLRenderer = (*chromium.Adapter)(nil)

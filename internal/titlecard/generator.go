// Package titlecard renders Markdown title cards through an external
// converter, browser, and encoder, caching every artifact on disk under a
// content-addressed key.
package titlecard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/forPelevin/mdvid/internal/diag"
	"github.com/forPelevin/mdvid/internal/domain/timeline"
	"github.com/forPelevin/mdvid/internal/ports"
)

// Step names reported by title_card_step_failed.
const (
	StepMarkdownToHTML = "markdown_to_html"
	StepRenderImage    = "render_image"
	StepLoopVideo      = "loop_video"
)

const lockRetry = 100 * time.Millisecond

type Config struct {
	Root   string
	Width  int
	Height int
	Logger *zap.Logger
}

type Generator struct {
	root   string
	width  int
	height int
	md     ports.MarkdownConverter
	html   ports.HTMLRenderer
	video  ports.VideoTool
	log    *zap.Logger
}

var _ timeline.Cards = (*Generator)(nil)

func New(cfg Config, md ports.MarkdownConverter, html ports.HTMLRenderer, video ports.VideoTool) (*Generator, error) {
	if md == nil || html == nil || video == nil {
		return nil, errors.New("titlecard: converter, renderer, and video tool are required")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("titlecard: card size %dx%d is not positive", cfg.Width, cfg.Height)
	}
	if cfg.Root == "" {
		root, err := DefaultRoot()
		if err != nil {
			return nil, err
		}
		cfg.Root = root
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{root: cfg.Root, width: cfg.Width, height: cfg.Height, md: md, html: html, video: video, log: log}, nil
}

func (g *Generator) Root() string { return g.root }

// Asset is a cache entry with its image rendered. VideoPath is set once a
// looped video has been produced.
type Asset struct {
	Key       string
	Dir       string
	ImagePath string
	VideoPath string
	Duration  time.Duration
}

// HeadingCard renders a heading of the given level.
func (g *Generator) HeadingCard(ctx context.Context, level int, text string, d time.Duration) (*Asset, error) {
	level = min(max(level, 1), 6)
	input := strings.Repeat("#", level) + " " + strings.TrimSpace(text) + "\n"
	return g.card(ctx, Key(ModeHeading, level, text, g.width, g.height, d), input, d)
}

// MarkdownCard renders arbitrary Markdown.
func (g *Generator) MarkdownCard(ctx context.Context, markdown string, d time.Duration) (*Asset, error) {
	return g.card(ctx, Key(ModeMarkdown, 0, markdown, g.width, g.height, d), markdown+"\n", d)
}

// EnsureVideo loops the asset's image into title.mp4 for its duration. An
// existing title.mp4 is returned unchanged.
func (g *Generator) EnsureVideo(ctx context.Context, a *Asset) (string, error) {
	out := filepath.Join(a.Dir, TitleMP4)
	if exists(out) {
		a.VideoPath = out
		return out, nil
	}
	if a.Duration <= 0 {
		return "", fmt.Errorf("titlecard %s: video needs a positive duration", a.Key)
	}
	unlock, err := g.lock(ctx, a.Dir)
	if err != nil {
		return "", err
	}
	defer unlock()

	if !exists(out) {
		tmp := tempPath(out)
		start := time.Now()
		if err := g.video.LoopImage(ctx, a.ImagePath, tmp, a.Duration, g.width, g.height); err != nil {
			_ = os.Remove(tmp)
			return "", diag.TitleCardStepFailed(StepLoopVideo, err)
		}
		if err := os.Rename(tmp, out); err != nil {
			return "", diag.IO(out, err)
		}
		g.log.Debug("title card video", zap.String("key", a.Key), zap.Duration("took", time.Since(start)))
	}
	a.VideoPath = out
	return out, nil
}

// HeadingVideo implements timeline.Cards.
func (g *Generator) HeadingVideo(ctx context.Context, level int, text string, d time.Duration) (string, error) {
	a, err := g.HeadingCard(ctx, level, text, d)
	if err != nil {
		return "", err
	}
	return g.EnsureVideo(ctx, a)
}

// PauseVideo implements timeline.Cards.
func (g *Generator) PauseVideo(ctx context.Context, markdown string, d time.Duration) (string, error) {
	a, err := g.MarkdownCard(ctx, markdown, d)
	if err != nil {
		return "", err
	}
	return g.EnsureVideo(ctx, a)
}

// OverlayImage implements timeline.Cards.
func (g *Generator) OverlayImage(ctx context.Context, markdown string) (string, error) {
	a, err := g.MarkdownCard(ctx, markdown, 0)
	if err != nil {
		return "", err
	}
	return a.ImagePath, nil
}

// card walks the artifact ladder, resuming from the first missing step.
func (g *Generator) card(ctx context.Context, key, input string, d time.Duration) (*Asset, error) {
	dir := filepath.Join(g.root, key)
	a := &Asset{Key: key, Dir: dir, ImagePath: filepath.Join(dir, TitleJPG), Duration: d}
	if exists(a.ImagePath) {
		if p := filepath.Join(dir, TitleMP4); exists(p) {
			a.VideoPath = p
		}
		return a, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, diag.IO(dir, err)
	}
	unlock, err := g.lock(ctx, dir)
	if err != nil {
		return nil, err
	}
	defer unlock()

	log := g.log.With(zap.String("key", key))
	inPath := filepath.Join(dir, InputMD)
	if !exists(inPath) {
		if err := writeAtomic(inPath, []byte(input)); err != nil {
			return nil, diag.IO(inPath, err)
		}
	}
	cssPath := filepath.Join(dir, TitleCSS)
	if !exists(cssPath) {
		if err := writeAtomic(cssPath, stylesheet); err != nil {
			return nil, diag.IO(cssPath, err)
		}
	}
	htmlPath := filepath.Join(dir, TitleHTML)
	if !exists(htmlPath) {
		tmp := tempPath(htmlPath)
		if err := g.md.MarkdownToHTML(ctx, inPath, TitleCSS, tmp); err != nil {
			_ = os.Remove(tmp)
			return nil, diag.TitleCardStepFailed(StepMarkdownToHTML, err)
		}
		if err := os.Rename(tmp, htmlPath); err != nil {
			return nil, diag.IO(htmlPath, err)
		}
		log.Debug("title card html")
	}
	if !exists(a.ImagePath) {
		tmp := tempPath(a.ImagePath)
		if err := g.html.RenderHTML(ctx, htmlPath, tmp, g.width, g.height); err != nil {
			_ = os.Remove(tmp)
			return nil, diag.TitleCardStepFailed(StepRenderImage, err)
		}
		if err := os.Rename(tmp, a.ImagePath); err != nil {
			return nil, diag.IO(a.ImagePath, err)
		}
		log.Info("title card rendered", zap.String("dir", dir))
	}
	return a, nil
}

func (g *Generator) lock(ctx context.Context, dir string) (func(), error) {
	fl := flock.New(filepath.Join(dir, lockName))
	ok, err := fl.TryLockContext(ctx, lockRetry)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", dir, err)
	}
	if !ok {
		return nil, fmt.Errorf("lock %s: not acquired", dir)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			g.log.Warn("release title card lock", zap.String("dir", dir), zap.Error(err))
		}
	}, nil
}

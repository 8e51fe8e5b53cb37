package timeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/forPelevin/mdvid/internal/diag"
	"github.com/forPelevin/mdvid/internal/domain/document"
	"github.com/forPelevin/mdvid/internal/domain/planner"
)

// DefaultTitleCardDuration is how long a heading card stays on screen.
const DefaultTitleCardDuration = 3 * time.Second

// TitleCardSourceID marks title-card VideoSubsets; no transcript uses it.
const TitleCardSourceID = "titlecard"

// Cards produces rendered title-card assets.
type Cards interface {
	HeadingVideo(ctx context.Context, level int, text string, d time.Duration) (string, error)
	PauseVideo(ctx context.Context, markdown string, d time.Duration) (string, error)
	OverlayImage(ctx context.Context, markdown string) (string, error)
}

type Options struct {
	TitleCardDuration time.Duration
	// BaseDir resolves relative source and music paths (the document's directory).
	BaseDir string
	// SourceDurations, when set, bounds every clip by its probed source length.
	SourceDurations map[string]time.Duration
	// Silent marks sources whose video file carries no audio stream.
	Silent map[string]bool
	Logger *zap.Logger
}

type musicInterval struct {
	path  string
	start time.Duration
	fade  time.Duration
	line  int
}

type builder struct {
	ctx     context.Context
	opts    Options
	md      document.Metadata
	path    string
	cards   Cards
	log     *zap.Logger
	tl      Timeline
	cursor  time.Duration
	music   *musicInterval
	sources map[string]AVSource
}

// Build lowers plan into a timeline starting at zero.
func Build(ctx context.Context, doc *document.Document, plan *planner.Plan, cards Cards, opts Options) (*Timeline, error) {
	if opts.TitleCardDuration <= 0 {
		opts.TitleCardDuration = DefaultTitleCardDuration
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	b := &builder{
		ctx:     ctx,
		opts:    opts,
		md:      doc.Metadata,
		path:    doc.Path,
		cards:   cards,
		log:     log,
		sources: map[string]AVSource{},
	}
	for _, it := range plan.Items {
		if err := b.item(it); err != nil {
			return nil, err
		}
	}
	b.closeMusic()
	return &b.tl, nil
}

func (b *builder) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || b.opts.BaseDir == "" {
		return p
	}
	return filepath.Join(b.opts.BaseDir, p)
}

func (b *builder) source(id string, line int) (AVSource, error) {
	if s, ok := b.sources[id]; ok {
		return s, nil
	}
	src, ok := b.md.Source(id)
	if !ok {
		return AVSource{}, diag.WithPath(diag.MissingSource(line, id), b.path)
	}
	av := AVSource{ID: id, Video: b.resolve(src.Source), Audio: b.resolve(src.AudioPath())}
	b.sources[id] = av
	return av, nil
}

func (b *builder) item(it planner.Item) error {
	switch it := it.(type) {
	case planner.Clip:
		return b.clip(it)
	case planner.Heading:
		if b.cards == nil {
			return fmt.Errorf("heading %q: no title-card generator", it.Text)
		}
		path, err := b.cards.HeadingVideo(b.ctx, it.Level, it.Text, b.opts.TitleCardDuration)
		if err != nil {
			return err
		}
		b.card(path, b.opts.TitleCardDuration)
	case planner.Pause:
		if b.cards == nil {
			return fmt.Errorf("pause: no title-card generator")
		}
		path, err := b.cards.PauseVideo(b.ctx, it.Markdown, it.Duration)
		if err != nil {
			return err
		}
		b.card(path, it.Duration)
	case planner.Music:
		b.musicDirective(it)
	}
	return nil
}

func (b *builder) clip(c planner.Clip) error {
	src, err := b.source(c.SourceID, c.Line)
	if err != nil {
		return err
	}
	if limit, ok := b.opts.SourceDurations[c.SourceID]; ok && limit > 0 && c.EndSrc > limit {
		return diag.WithPath(diag.InvalidDocument(c.Line, "clip ends at %s past source %q end %s",
			document.FormatTimestamp(c.EndSrc), c.SourceID, document.FormatTimestamp(limit)), b.path)
	}
	mute := c.Kind == document.Silence
	if !mute && b.opts.Silent[c.SourceID] && src.Audio == src.Video {
		b.log.Debug("source has no audio track, clip muted", zap.String("source", c.SourceID), zap.Int("line", c.Line))
		mute = true
	}
	d := c.Duration()
	b.tl.Segments = append(b.tl.Segments, Segment{
		StartTime: b.cursor,
		Duration:  d,
		Data: VideoSubset{
			SourceStart: c.StartSrc,
			Source:      src,
			MuteAudio:   mute,
		},
	})
	if c.Overlay != nil {
		if b.cards == nil {
			return fmt.Errorf("overlay at line %d: no title-card generator", c.Overlay.Line)
		}
		img, err := b.cards.OverlayImage(b.ctx, c.Overlay.Markdown)
		if err != nil {
			return err
		}
		b.tl.Segments = append(b.tl.Segments, Segment{
			StartTime: b.cursor,
			Duration:  d,
			Data:      Image{SourceImage: img, Transform: Scale(DefaultOverlayScale)},
		})
		b.tl.HasOverlays = true
	}
	b.cursor += d
	return nil
}

func (b *builder) card(path string, d time.Duration) {
	b.tl.Segments = append(b.tl.Segments, Segment{
		StartTime: b.cursor,
		Duration:  d,
		Data: VideoSubset{
			Source:    AVSource{ID: TitleCardSourceID, Video: path, Audio: path},
			MuteAudio: true,
		},
	})
	b.cursor += d
}

func (b *builder) musicDirective(m planner.Music) {
	switch m.Directive.Action {
	case document.MusicStart:
		b.closeMusic()
		b.music = &musicInterval{path: b.resolve(m.Directive.Path), start: b.cursor, line: m.Line}
	case document.MusicStop:
		if b.music == nil {
			b.log.Warn("music stop without an open bed", zap.String("path", b.path), zap.Int("line", m.Line))
			return
		}
		b.closeMusic()
	case document.MusicFade:
		if b.music == nil {
			b.log.Warn("music fade without an open bed", zap.String("path", b.path), zap.Int("line", m.Line))
			return
		}
		b.music.fade = m.Directive.Duration
	}
}

func (b *builder) closeMusic() {
	m := b.music
	b.music = nil
	if m == nil {
		return
	}
	d := b.cursor - m.start
	if d <= 0 {
		b.log.Warn("empty music interval dropped", zap.String("path", b.path), zap.Int("line", m.line))
		return
	}
	fade := m.fade
	if fade > d {
		fade = d
	}
	b.tl.Segments = append(b.tl.Segments, Segment{
		StartTime: m.start,
		Duration:  d,
		Data:      Music{AudioSource: m.path, FadeOut: fade},
	})
}

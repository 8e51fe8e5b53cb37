// Package planner turns document blocks into an ordered timeline plan.
//
// The planner is position-only: it never reorders blocks. Paragraphs without a
// timestamp are queued and later merged into an overlay (attached to the most
// recent clip and inherited by following clips) or, inside a separator region,
// into a standalone pause.
package planner

import (
	"math"
	"strings"
	"time"

	"github.com/forPelevin/mdvid/internal/diag"
	"github.com/forPelevin/mdvid/internal/domain/document"
)

const (
	DefaultReadingWPM = 180
	DefaultPauseMin   = 5 * time.Second
	DefaultPauseMax   = 20 * time.Second
)

type Options struct {
	ReadingWPM int
	PauseMin   time.Duration
	PauseMax   time.Duration
}

func (o Options) withDefaults() Options {
	if o.ReadingWPM <= 0 {
		o.ReadingWPM = DefaultReadingWPM
	}
	if o.PauseMin <= 0 {
		o.PauseMin = DefaultPauseMin
	}
	if o.PauseMax <= 0 {
		o.PauseMax = DefaultPauseMax
	}
	if o.PauseMax < o.PauseMin {
		o.PauseMax = o.PauseMin
	}
	return o
}

// Overlay is Markdown superimposed on a clip for its whole duration.
type Overlay struct {
	Markdown string
	Line     int
}

// Item is one entry of the plan: Clip, Heading, Pause, or Music.
type Item interface{ isItem() }

type Clip struct {
	StartSrc time.Duration
	EndSrc   time.Duration
	Kind     document.SegmentKind
	Text     string
	SourceID string
	Overlay  *Overlay
	Line     int
}

func (c Clip) Duration() time.Duration { return c.EndSrc - c.StartSrc }

type Heading struct {
	Level int
	Text  string
}

// Pause is a title card showing Markdown long enough to be read.
type Pause struct {
	Markdown    string
	DisplayText string
	Duration    time.Duration
}

type Music struct {
	Directive document.MusicDirective
	Line      int
}

func (Clip) isItem()    {}
func (Heading) isItem() {}
func (Pause) isItem()   {}
func (Music) isItem()   {}

type Plan struct {
	Items []Item

	SegmentCount    int
	StandaloneCount int
	OverlayCount    int
	HeadingCount    int
	IgnoredCount    int
}

// Clips returns the plan's clips in order.
func (p *Plan) Clips() []Clip {
	var out []Clip
	for _, it := range p.Items {
		if c, ok := it.(Clip); ok {
			out = append(out, c)
		}
	}
	return out
}

type pending struct {
	markdown string
	line     int
}

type state struct {
	opts     Options
	plan     Plan
	overlay  *Overlay
	lastClip int // index into plan.Items, -1 when no clip yet
	inSep    bool
	pending  []pending
}

// Build runs the planner over doc. Every clip must name a declared source.
func Build(doc *document.Document, opts Options) (*Plan, error) {
	s := &state{opts: opts.withDefaults(), lastClip: -1}
	for _, b := range doc.Blocks {
		if err := s.step(doc, b); err != nil {
			return nil, diag.WithPath(err, doc.Path)
		}
	}
	if len(s.pending) > 0 {
		if s.lastClip >= 0 {
			s.flushOverlay()
		} else {
			s.plan.IgnoredCount += len(s.pending)
			s.pending = nil
		}
	}
	return &s.plan, nil
}

func (s *state) step(doc *document.Document, b document.Block) error {
	switch b := b.(type) {
	case document.Segment:
		if _, ok := doc.Metadata.Source(b.SourceID); !ok {
			return diag.MissingSource(b.Line, b.SourceID)
		}
		if len(s.pending) > 0 {
			s.flushOverlay()
		}
		s.plan.Items = append(s.plan.Items, Clip{
			StartSrc: b.Range.Start,
			EndSrc:   b.Range.End,
			Kind:     b.Kind,
			Text:     b.Text,
			SourceID: b.SourceID,
			Overlay:  s.overlay.clone(),
			Line:     b.Line,
		})
		s.lastClip = len(s.plan.Items) - 1
		s.plan.SegmentCount++
		s.inSep = false
	case document.Heading:
		s.plan.Items = append(s.plan.Items, Heading{Level: b.Level, Text: b.Text})
		s.plan.HeadingCount++
		s.plan.StandaloneCount++
	case document.Separator:
		if len(s.pending) > 0 {
			switch {
			case s.inSep:
				s.flushPause()
			case s.lastClip < 0:
				s.plan.IgnoredCount += len(s.pending)
				s.pending = nil
			default:
				s.flushOverlay()
			}
		}
		s.overlay = nil
		s.inSep = true
	case document.Music:
		s.plan.Items = append(s.plan.Items, Music{Directive: b.Directive, Line: b.Line})
	case document.Unhandled:
		text := strings.TrimSpace(b.Description)
		if text == "" {
			s.plan.IgnoredCount++
			return nil
		}
		s.pending = append(s.pending, pending{markdown: text, line: b.Line})
	}
	return nil
}

func (s *state) takePending() (string, int) {
	parts := make([]string, 0, len(s.pending))
	for _, p := range s.pending {
		parts = append(parts, p.markdown)
	}
	line := s.pending[0].line
	s.pending = nil
	return strings.Join(parts, "\n\n"), line
}

// flushOverlay retro-attaches the queued content to the last clip and makes
// it sticky for the clips that follow.
func (s *state) flushOverlay() {
	md, line := s.takePending()
	ov := &Overlay{Markdown: md, Line: line}
	if s.lastClip >= 0 {
		c := s.plan.Items[s.lastClip].(Clip)
		c.Overlay = ov.clone()
		s.plan.Items[s.lastClip] = c
	}
	s.overlay = ov
	s.plan.OverlayCount++
}

func (s *state) flushPause() {
	md, _ := s.takePending()
	display := document.PlainText(md)
	s.plan.Items = append(s.plan.Items, Pause{
		Markdown:    md,
		DisplayText: display,
		Duration:    PauseDuration(display, s.opts),
	})
	s.plan.StandaloneCount++
}

// PauseDuration is the reading time for text, clamped to the pause bounds.
func PauseDuration(text string, opts Options) time.Duration {
	opts = opts.withDefaults()
	words := len(strings.Fields(text))
	sec := float64(words) / (float64(opts.ReadingWPM) / 60)
	d := time.Duration(math.Round(sec * float64(time.Second)))
	if d < opts.PauseMin {
		return opts.PauseMin
	}
	if d > opts.PauseMax {
		return opts.PauseMax
	}
	return d
}

func (o *Overlay) clone() *Overlay {
	if o == nil {
		return nil
	}
	cp := *o
	return &cp
}

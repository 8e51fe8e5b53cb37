// Package timeline is the flat NLE model consumed by the filter-graph
// compiler. All times are in final-video time unless a field says source.
package timeline

import "time"

// DefaultOverlayScale is applied to Image overlays without an explicit scale.
const DefaultOverlayScale = 0.8

// Transform is a sparse 2D transform; nil fields mean identity.
type Transform struct {
	Scale     *float64
	Rotate    *float64
	Translate *[2]float64
}

func Scale(s float64) *Transform { return &Transform{Scale: &s} }

// ScaleOr returns the transform's scale, or def when unset.
func (t *Transform) ScaleOr(def float64) float64 {
	if t == nil || t.Scale == nil {
		return def
	}
	return *t.Scale
}

func (t *Transform) IsIdentity() bool {
	return t == nil || (t.Scale == nil && t.Rotate == nil && t.Translate == nil)
}

type AVSource struct {
	ID    string
	Video string
	Audio string
}

// Data is one of VideoSubset, Image, Broll, Music.
type Data interface{ isData() }

type VideoSubset struct {
	SourceStart time.Duration
	Source      AVSource
	Transform   *Transform
	MuteAudio   bool
}

type Image struct {
	SourceImage string
	Transform   *Transform
}

// Broll is a muted video overlay.
type Broll struct {
	SourceStart time.Duration
	SourceVideo string
	SourceID    string
	Transform   *Transform
}

type Music struct {
	AudioSource string
	SourceStart time.Duration
	// FadeOut is the length of the fade at the end of the segment; 0 means none.
	FadeOut time.Duration
}

func (VideoSubset) isData() {}
func (Image) isData()       {}
func (Broll) isData()       {}
func (Music) isData()       {}

type Segment struct {
	StartTime time.Duration
	Duration  time.Duration
	Data      Data
}

func (s Segment) EndTime() time.Duration { return s.StartTime + s.Duration }

type Timeline struct {
	Segments    []Segment
	HasOverlays bool
}

// Duration is the end time of the latest segment.
func (t *Timeline) Duration() time.Duration {
	var end time.Duration
	for _, s := range t.Segments {
		if e := s.EndTime(); e > end {
			end = e
		}
	}
	return end
}

// VideoSegments returns the primary VideoSubset segments in timeline order.
func (t *Timeline) VideoSegments() []Segment {
	var out []Segment
	for _, s := range t.Segments {
		if _, ok := s.Data.(VideoSubset); ok {
			out = append(out, s)
		}
	}
	return out
}

// TruncateBefore drops everything before at and shifts the rest to start at
// zero. A segment straddling at is shortened; seekable data also advances its
// source offset so the same frames stay aligned.
func (t *Timeline) TruncateBefore(at time.Duration) {
	if at <= 0 {
		return
	}
	kept := t.Segments[:0]
	overlays := false
	for _, s := range t.Segments {
		if s.EndTime() <= at {
			continue
		}
		if s.StartTime >= at {
			s.StartTime -= at
		} else {
			delta := at - s.StartTime
			s.StartTime = 0
			s.Duration -= delta
			s.Data = advance(s.Data, delta, s.Duration)
		}
		switch s.Data.(type) {
		case Image, Broll:
			overlays = true
		}
		kept = append(kept, s)
	}
	t.Segments = kept
	t.HasOverlays = overlays
}

func advance(d Data, delta, remaining time.Duration) Data {
	switch v := d.(type) {
	case VideoSubset:
		v.SourceStart += delta
		return v
	case Broll:
		v.SourceStart += delta
		return v
	case Music:
		v.SourceStart += delta
		if v.FadeOut > remaining {
			v.FadeOut = remaining
		}
		return v
	default:
		return d
	}
}

package document

import "time"

// DefaultSourceID is used when neither the range nor the metadata names a source.
const DefaultSourceID = "a"

type Source struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name,omitempty"`
	Hash       string `yaml:"hash,omitempty"`
	Source     string `yaml:"source"`
	Transcript string `yaml:"transcript,omitempty"`
	Audio      string `yaml:"audio,omitempty"`
}

// AudioPath is the path clips read audio from. Sources without a dedicated
// (preprocessed) audio file use the video's own track.
func (s Source) AudioPath() string {
	if s.Audio != "" {
		return s.Audio
	}
	return s.Source
}

type Metadata struct {
	DefaultSource string   `yaml:"default_source,omitempty"`
	Sources       []Source `yaml:"sources,omitempty"`
	GeneratedAt   string   `yaml:"generated_at,omitempty"`
}

// Source looks up a source by id.
func (m Metadata) Source(id string) (Source, bool) {
	for _, s := range m.Sources {
		if s.ID == id {
			return s, true
		}
	}
	return Source{}, false
}

// DefaultID returns the id applied to ranges that carry none.
func (m Metadata) DefaultID() string {
	if m.DefaultSource != "" {
		return m.DefaultSource
	}
	if len(m.Sources) > 0 && m.Sources[0].ID != "" {
		return m.Sources[0].ID
	}
	return DefaultSourceID
}

type Document struct {
	Path     string
	Metadata Metadata
	Blocks   []Block
}

type TimeRange struct {
	Start time.Duration
	End   time.Duration
}

func (r TimeRange) Duration() time.Duration { return r.End - r.Start }

type SegmentKind int

const (
	Dialogue SegmentKind = iota
	Silence
)

func (k SegmentKind) String() string {
	if k == Silence {
		return "silence"
	}
	return "dialogue"
}

// Block is one semantic unit of the document body.
type Block interface{ isBlock() }

type Segment struct {
	Range    TimeRange
	Text     string
	Kind     SegmentKind
	SourceID string
	Line     int
}

type Heading struct {
	Level int
	Text  string
	Line  int
}

// Separator is a thematic break.
type Separator struct {
	Line int
}

type Music struct {
	Directive MusicDirective
	Line      int
}

// Unhandled is any paragraph or block that is not one of the above. The
// planner merges it into an overlay or pause.
type Unhandled struct {
	Description string
	Line        int
}

func (Segment) isBlock()   {}
func (Heading) isBlock()   {}
func (Separator) isBlock() {}
func (Music) isBlock()     {}
func (Unhandled) isBlock() {}

type MusicAction int

const (
	MusicStart MusicAction = iota
	MusicStop
	MusicFade
)

func (a MusicAction) String() string {
	switch a {
	case MusicStart:
		return "start"
	case MusicStop:
		return "stop"
	default:
		return "fade"
	}
}

// MusicDirective is Start(Path), Stop, or Fade(Duration).
type MusicDirective struct {
	Action   MusicAction
	Path     string
	Duration time.Duration
}

package subtitles

import (
	"strings"
	"time"

	"github.com/forPelevin/mdvid/internal/domain/timeline"
	"github.com/forPelevin/mdvid/internal/domain/transcript"
)

type Word struct {
	Word  string
	Start time.Duration
	End   time.Duration
}

// Subtitle is a transcript cue projected into final-video time.
type Subtitle struct {
	Start time.Duration
	End   time.Duration
	Text  string
	Words []Word
}

// Remap projects source-time cues through the primary video segments of tl.
// A cue overlapping several segments yields one subtitle per segment; cues
// outside every segment window are dropped.
func Remap(cues []transcript.Cue, tl *timeline.Timeline) []Subtitle {
	bySource := map[string][]transcript.Cue{}
	for _, c := range cues {
		bySource[c.SourceID] = append(bySource[c.SourceID], c)
	}

	var out []Subtitle
	for _, seg := range tl.VideoSegments() {
		v := seg.Data.(timeline.VideoSubset)
		winStart := v.SourceStart
		winEnd := v.SourceStart + seg.Duration
		project := func(src time.Duration) time.Duration {
			return seg.StartTime + (src - winStart)
		}
		for _, c := range bySource[v.Source.ID] {
			if !overlaps(c.Start, c.End, winStart, winEnd) {
				continue
			}
			start, end := max(c.Start, winStart), min(c.End, winEnd)
			clipped := start != c.Start || end != c.End

			sub := Subtitle{Start: project(start), End: project(end), Text: c.Text}
			for _, w := range c.Words {
				if !overlaps(w.Start, w.End, winStart, winEnd) {
					continue
				}
				ws, we := max(w.Start, winStart), min(w.End, winEnd)
				sub.Words = append(sub.Words, Word{Word: w.Word, Start: project(ws), End: project(we)})
			}
			if clipped && len(c.Words) > 0 {
				if len(sub.Words) == 0 {
					continue
				}
				sub.Text = wordsText(sub.Words)
			}
			out = append(out, sub)
		}
	}
	return out
}

// overlaps reports whether [s, e) meets [lo, hi). Zero-length spans count
// when they sit inside the window.
func overlaps(s, e, lo, hi time.Duration) bool {
	if s == e {
		return s >= lo && s < hi
	}
	return e > lo && s < hi
}

func wordsText(ws []Word) string {
	parts := make([]string, len(ws))
	for i, w := range ws {
		parts[i] = w.Word
	}
	return strings.Join(parts, " ")
}

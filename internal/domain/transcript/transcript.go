package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/forPelevin/mdvid/internal/diag"
	"github.com/forPelevin/mdvid/internal/types"
)

// DefaultSourceID is assigned when the caller names no source.
const DefaultSourceID = "a"

type Word struct {
	Word  string
	Start time.Duration
	End   time.Duration
}

// Cue is one timed transcript entry in source time.
type Cue struct {
	Start    time.Duration
	End      time.Duration
	Text     string
	SourceID string
	Words    []Word
}

func (c Cue) Duration() time.Duration { return c.End - c.Start }

// Load reads a WhisperX JSON file from disk.
func Load(path, sourceID string) ([]Cue, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, diag.IO(path, err)
	}
	cues, err := Parse(b, sourceID)
	if err != nil {
		return nil, diag.IO(path, err)
	}
	return cues, nil
}

// Parse decodes a WhisperX-shaped document: a top-level array of segments or
// an object with a `segments` array. Cues come back sorted by start; words are
// clamped into their cue.
func Parse(b []byte, sourceID string) ([]Cue, error) {
	if sourceID == "" {
		sourceID = DefaultSourceID
	}
	var tr types.Transcript
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &tr.Segments); err != nil {
			return nil, fmt.Errorf("decode transcript: %w", err)
		}
	} else if err := json.Unmarshal(trimmed, &tr); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}

	out := make([]Cue, 0, len(tr.Segments))
	for _, s := range tr.Segments {
		start, end := seconds(s.Start), seconds(s.End)
		if end <= start {
			continue
		}
		c := Cue{Start: start, End: end, Text: strings.TrimSpace(s.Text), SourceID: sourceID}
		for _, w := range s.Words {
			text := strings.TrimSpace(w.Word)
			if text == "" || w.Start == nil || w.End == nil {
				continue
			}
			ws, we := clamp(seconds(*w.Start), start, end), clamp(seconds(*w.End), start, end)
			if we < ws {
				we = ws
			}
			c.Words = append(c.Words, Word{Word: text, Start: ws, End: we})
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}

func seconds(sec float64) time.Duration {
	return time.Duration(math.Round(sec * float64(time.Second)))
}

func clamp(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

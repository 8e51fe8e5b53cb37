package types

import "time"

// Transcript is the WhisperX JSON shape. Files hold either this object or a
// bare array of segments.
type Transcript struct {
	Segments []Segment `json:"segments"`
}

type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

// Word timings are optional: WhisperX omits them for tokens it cannot align.
type Word struct {
	Start *float64 `json:"start,omitempty"`
	End   *float64 `json:"end,omitempty"`
	Word  string   `json:"word"`
	Score *float64 `json:"score,omitempty"`
}

// VideoInfo is what the driver needs to know about a source file.
type VideoInfo struct {
	Width    int
	Height   int
	Duration time.Duration
	HasAudio bool
}

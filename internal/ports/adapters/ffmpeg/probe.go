package ffmpeg

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/mdvid/internal/types"
)

type probeResult struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Duration  string `json:"duration"`
	// Rotation metadata swaps the displayed dimensions.
	Tags struct {
		Rotate string `json:"rotate"`
	} `json:"tags"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

var errNoVideoStream = errors.New("no video stream")

func parseProbe(b []byte) (types.VideoInfo, error) {
	var r probeResult
	if err := json.Unmarshal(b, &r); err != nil {
		return types.VideoInfo{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	var info types.VideoInfo
	found := false
	for _, s := range r.Streams {
		switch strings.ToLower(s.CodecType) {
		case "video":
			if found {
				continue
			}
			found = true
			info.Width, info.Height = s.Width, s.Height
			if rot, err := strconv.Atoi(strings.TrimSpace(s.Tags.Rotate)); err == nil && (rot%180+180)%180 == 90 {
				info.Width, info.Height = info.Height, info.Width
			}
			if info.Duration == 0 {
				info.Duration = seconds(s.Duration)
			}
		case "audio":
			info.HasAudio = true
		}
	}
	if !found {
		return types.VideoInfo{}, errNoVideoStream
	}
	if d := seconds(r.Format.Duration); d > 0 {
		info.Duration = d
	}
	return info, nil
}

func seconds(v string) time.Duration {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || f < 0 {
		return 0
	}
	return time.Duration(math.Round(f * float64(time.Second)))
}

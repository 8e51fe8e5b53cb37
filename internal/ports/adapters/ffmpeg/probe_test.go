package ffmpeg

import (
	"testing"
	"time"
)

func TestParseProbe(t *testing.T) {
	raw := []byte(`{
		"streams": [
			{"codec_type": "audio", "duration": "61.0"},
			{"codec_type": "video", "width": 1920, "height": 1080, "duration": "60.5"}
		],
		"format": {"duration": "61.250000"}
	}`)
	info, err := parseProbe(raw)
	if err != nil {
		t.Fatal(err)
	}
	if info.Width != 1920 || info.Height != 1080 {
		t.Fatalf("unexpected size %dx%d", info.Width, info.Height)
	}
	if info.Duration != 61250*time.Millisecond {
		t.Fatalf("unexpected duration %s", info.Duration)
	}
	if !info.HasAudio {
		t.Fatal("expected audio stream")
	}
}

func TestParseProbe_RotatedPhoneVideo(t *testing.T) {
	raw := []byte(`{"streams":[{"codec_type":"video","width":1920,"height":1080,"duration":"3.0","tags":{"rotate":"-90"}}],"format":{}}`)
	info, err := parseProbe(raw)
	if err != nil {
		t.Fatal(err)
	}
	if info.Width != 1080 || info.Height != 1920 {
		t.Fatalf("rotation not applied: %dx%d", info.Width, info.Height)
	}
	if info.Duration != 3*time.Second || info.HasAudio {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestParseProbe_NoVideo(t *testing.T) {
	if _, err := parseProbe([]byte(`{"streams":[{"codec_type":"audio"}],"format":{"duration":"1"}}`)); err == nil {
		t.Fatal("expected error for audio-only input")
	}
	if _, err := parseProbe([]byte(`not json`)); err == nil {
		t.Fatal("expected parse error")
	}
}

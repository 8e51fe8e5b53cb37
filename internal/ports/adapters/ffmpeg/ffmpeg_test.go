package ffmpeg

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func fakeFFprobe(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake")
	}
	path := filepath.Join(t.TempDir(), "ffprobe")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestProbeVideo_IgnoresStderrNoise(t *testing.T) {
	bin := fakeFFprobe(t, `echo "[mov,mp4] stream 1, timescale not set" >&2
echo '{"streams":[{"codec_type":"video","width":640,"height":360}],"format":{"duration":"2.5"}}'
`)
	info, err := New("", bin, nil).ProbeVideo(context.Background(), "in.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if info.Width != 640 || info.Height != 360 || info.Duration != 2500*time.Millisecond {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestProbeVideo_FailureCarriesStderr(t *testing.T) {
	bin := fakeFFprobe(t, `echo "in.mp4: moov atom not found" >&2
exit 1
`)
	_, err := New("", bin, nil).ProbeVideo(context.Background(), "in.mp4")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "ffprobe inspect:") || !strings.Contains(err.Error(), "moov atom not found") {
		t.Fatalf("unexpected error %q", err)
	}
}

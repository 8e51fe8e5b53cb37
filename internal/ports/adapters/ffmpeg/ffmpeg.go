package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/forPelevin/mdvid/internal/types"
)

type Adapter struct {
	ffmpeg  string
	ffprobe string
	log     *zap.Logger

	// Stdout and Stderr receive the encoder's output during Encode.
	Stdout io.Writer
	Stderr io.Writer
}

func New(ffmpegPath, ffprobePath string, log *zap.Logger) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath, log: log, Stdout: os.Stdout, Stderr: os.Stderr}
}

func (a *Adapter) Binary() string { return a.ffmpeg }

// LoopImage turns a still into an H.264 clip of exactly d with a silent
// stereo track.
func (a *Adapter) LoopImage(ctx context.Context, image, outMP4 string, d time.Duration, width, height int) error {
	args := []string{
		"-y",
		"-loop", "1",
		"-i", image,
		"-f", "lavfi",
		"-i", "anullsrc=r=48000:cl=stereo",
		"-t", fmtSeconds(d),
		"-vf", fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,format=yuv420p", width, height, width, height),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-tune", "stillimage",
		"-crf", "18",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		outMP4,
	}
	cmd := exec.CommandContext(ctx, a.ffmpeg, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg loop image: %w\n%s", err, string(b))
	}
	return nil
}

// Encode runs the final render. Output streams straight to the terminal.
func (a *Adapter) Encode(ctx context.Context, args []string) error {
	full := append([]string{"-hide_banner", "-y"}, args...)
	a.log.Debug("ffmpeg encode", zap.Strings("args", full))
	cmd := exec.CommandContext(ctx, a.ffmpeg, full...)
	cmd.Stdout = a.Stdout
	cmd.Stderr = a.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg encode: %w", err)
	}
	return nil
}

// ProbeVideo reads dimensions, duration, and audio presence with ffprobe.
func (a *Adapter) ProbeVideo(ctx context.Context, path string) (types.VideoInfo, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-hide_banner",
		"-show_format",
		"-show_streams",
		"-of", "json",
		"--", path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	b, err := cmd.Output()
	if err != nil {
		return types.VideoInfo{}, fmt.Errorf("ffprobe inspect: %w\n%s", err, stderr.String())
	}
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		a.log.Debug("ffprobe stderr", zap.String("path", path), zap.String("output", msg))
	}
	return parseProbe(b)
}

func fmtSeconds(d time.Duration) string {
	sec := float64(d) / float64(time.Second)
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

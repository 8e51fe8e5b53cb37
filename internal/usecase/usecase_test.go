package usecase

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forPelevin/mdvid/internal/diag"
	"github.com/forPelevin/mdvid/internal/domain/document"
	"github.com/forPelevin/mdvid/internal/domain/subtitles"
	"github.com/forPelevin/mdvid/internal/domain/timeline"
	"github.com/forPelevin/mdvid/internal/types"
)

type fakeVideoTool struct {
	info      types.VideoInfo
	probeErr  error
	encodeErr error
	probed    []string
	encoded   [][]string
	outExists bool
}

func (f *fakeVideoTool) ProbeVideo(_ context.Context, path string) (types.VideoInfo, error) {
	f.probed = append(f.probed, path)
	if f.probeErr != nil {
		return types.VideoInfo{}, f.probeErr
	}
	return f.info, nil
}

func (f *fakeVideoTool) LoopImage(context.Context, string, string, time.Duration, int, int) error {
	return nil
}

func (f *fakeVideoTool) Encode(_ context.Context, args []string) error {
	f.encoded = append(f.encoded, args)
	_, err := os.Stat(args[len(args)-1])
	f.outExists = err == nil
	return f.encodeErr
}

type fakeCards struct{ width, height int }

func (f *fakeCards) HeadingVideo(context.Context, int, string, time.Duration) (string, error) {
	return "/cache/heading/title.mp4", nil
}

func (f *fakeCards) PauseVideo(context.Context, string, time.Duration) (string, error) {
	return "/cache/pause/title.mp4", nil
}

func (f *fakeCards) OverlayImage(context.Context, string) (string, error) {
	return "/cache/overlay/title.jpg", nil
}

const scenarioDoc = "---\ndefault_source: a\nsources:\n  - id: a\n    source: ./v.mp4\n    transcript: ./t.json\n    audio: ./v.mp4\n---\n\n`a@00:00:01.000-00:00:03.000` Hello world.\n"

type harness struct {
	dir    string
	doc    string
	video  *fakeVideoTool
	cards  *fakeCards
	stdout *bytes.Buffer
	uc     Usecase
}

func newHarness(t *testing.T, doc string) *harness {
	t.Helper()
	h := &harness{
		dir:    t.TempDir(),
		video:  &fakeVideoTool{info: types.VideoInfo{Width: 1280, Height: 720, Duration: time.Minute, HasAudio: true}},
		stdout: &bytes.Buffer{},
	}
	h.doc = filepath.Join(h.dir, "talk.md")
	require.NoError(t, os.WriteFile(h.doc, []byte(doc), 0o644))
	h.uc = New(Deps{
		Video: h.video,
		Cards: func(w, hh int) (timeline.Cards, error) {
			h.cards = &fakeCards{width: w, height: hh}
			return h.cards, nil
		},
		Stdout: h.stdout,
	})
	return h
}

func (h *harness) input() Input {
	return Input{DocPath: h.doc, OutPath: filepath.Join(h.dir, "out.mp4"), Subtitles: SubtitlesNone}
}

func TestRun_DryRunSingleClip(t *testing.T) {
	h := newHarness(t, scenarioDoc)
	in := h.input()
	in.DryRun = true

	res, err := h.uc.Run(context.Background(), in)
	require.NoError(t, err)

	require.Len(t, res.Plan.Clips(), 1)
	assert.Equal(t, 2*time.Second, res.Timeline.Duration())
	assert.Equal(t, []string{filepath.Join(h.dir, "v.mp4")}, res.Command.Inputs)
	assert.Contains(t, res.Command.Graph, "trim=start=1.000000:end=3.000000")
	assert.Contains(t, res.Command.Graph, "concat=n=1:v=1:a=1")
	assert.Equal(t, 1280, res.Width)
	assert.Equal(t, 720, res.Height)
	assert.Equal(t, []string{filepath.Join(h.dir, "v.mp4")}, h.video.probed)

	assert.Empty(t, h.video.encoded)
	line := h.stdout.String()
	assert.True(t, strings.HasPrefix(line, "ffmpeg -i "), line)
	assert.Contains(t, line, "-movflags +faststart")
}

func TestRun_Encodes(t *testing.T) {
	h := newHarness(t, scenarioDoc)
	_, err := h.uc.Run(context.Background(), h.input())
	require.NoError(t, err)
	require.Len(t, h.video.encoded, 1)
	args := h.video.encoded[0]
	assert.Equal(t, filepath.Join(h.dir, "out.mp4"), args[len(args)-1])
}

func TestRun_OutputGates(t *testing.T) {
	t.Run("collides with source", func(t *testing.T) {
		h := newHarness(t, scenarioDoc)
		in := h.input()
		in.OutPath = filepath.Join(h.dir, "v.mp4")
		_, err := h.uc.Run(context.Background(), in)
		assert.Equal(t, diag.CodeOutputCollides, diag.CodeOf(err))
		assert.Empty(t, h.video.probed)
	})

	t.Run("exists without force", func(t *testing.T) {
		h := newHarness(t, scenarioDoc)
		in := h.input()
		require.NoError(t, os.WriteFile(in.OutPath, []byte("old"), 0o644))
		_, err := h.uc.Run(context.Background(), in)
		assert.Equal(t, diag.CodeOutputExists, diag.CodeOf(err))
	})

	t.Run("sidecar exists without force", func(t *testing.T) {
		h := newHarness(t, scenarioDoc)
		in := h.input()
		in.Subtitles = SubtitlesSidecar
		ass := filepath.Join(h.dir, "out.ass")
		require.NoError(t, os.WriteFile(ass, []byte("keep"), 0o644))
		_, err := h.uc.Run(context.Background(), in)
		assert.Equal(t, diag.CodeOutputExists, diag.CodeOf(err))
		assert.Contains(t, err.Error(), ass)
		b, err := os.ReadFile(ass)
		require.NoError(t, err)
		assert.Equal(t, "keep", string(b))

		in.Force = true
		_, err = h.uc.Run(context.Background(), in)
		require.NoError(t, err)
	})

	t.Run("force removes first", func(t *testing.T) {
		h := newHarness(t, scenarioDoc)
		in := h.input()
		in.Force = true
		require.NoError(t, os.WriteFile(in.OutPath, []byte("old"), 0o644))
		_, err := h.uc.Run(context.Background(), in)
		require.NoError(t, err)
		require.Len(t, h.video.encoded, 1)
		assert.False(t, h.video.outExists)
	})
}

func TestRun_ToolFailures(t *testing.T) {
	h := newHarness(t, scenarioDoc)
	h.video.probeErr = errors.New("moov atom not found")
	_, err := h.uc.Run(context.Background(), h.input())
	assert.Equal(t, diag.CodeProbeFailed, diag.CodeOf(err))

	h = newHarness(t, scenarioDoc)
	h.video.encodeErr = errors.New("boom")
	_, err = h.uc.Run(context.Background(), h.input())
	assert.Equal(t, diag.CodeEncoderFailed, diag.CodeOf(err))
	assert.Equal(t, 1, diag.ExitCode(err))
}

func TestRun_ClipPastSourceEnd(t *testing.T) {
	h := newHarness(t, scenarioDoc)
	h.video.info.Duration = 2 * time.Second
	_, err := h.uc.Run(context.Background(), h.input())
	assert.Equal(t, diag.CodeInvalidDocument, diag.CodeOf(err))
}

func TestRun_SourceWithoutAudioIsMuted(t *testing.T) {
	h := newHarness(t, scenarioDoc)
	h.video.info.HasAudio = false
	in := h.input()
	in.DryRun = true

	res, err := h.uc.Run(context.Background(), in)
	require.NoError(t, err)
	assert.NotContains(t, res.Command.Graph, ":a]atrim")
	assert.Contains(t, res.Command.Graph, "anullsrc=r=48000:cl=stereo:d=2.000000")
	sub, ok := res.Timeline.Segments[0].Data.(timeline.VideoSubset)
	require.True(t, ok)
	assert.True(t, sub.MuteAudio)
}

func TestRun_SyntheticSource(t *testing.T) {
	body := "`00:00:00.000-00:00:02.000` hi\n"

	h := newHarness(t, body)
	_, err := h.uc.Run(context.Background(), h.input())
	assert.Equal(t, diag.CodeMissingSource, diag.CodeOf(err))

	h = newHarness(t, body)
	in := h.input()
	in.DryRun = true
	in.Source = filepath.Join(h.dir, "raw.mp4")
	res, err := h.uc.Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []string{in.Source}, res.Command.Inputs)
	assert.Equal(t, "Raw", res.Document.Metadata.Sources[0].Name)
}

func TestRun_TitleCardsReelsAndTruncation(t *testing.T) {
	doc := scenarioDoc + "\n# Chapter\n\n`00:00:10.000-00:00:14.000` more\n"
	h := newHarness(t, doc)
	in := h.input()
	in.DryRun = true
	in.Reels = true
	in.From = 1500 * time.Millisecond

	res, err := h.uc.Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, ReelsWidth, h.cards.width)
	assert.Equal(t, ReelsHeight, h.cards.height)
	assert.Equal(t, 2*time.Second+3*time.Second+4*time.Second-in.From, res.Timeline.Duration())
	assert.Contains(t, res.Command.Inputs, "/cache/heading/title.mp4")
	assert.Contains(t, res.Command.Graph, "trim=start=2.500000:end=3.000000")

	in.From = time.Hour
	_, err = h.uc.Run(context.Background(), in)
	assert.Error(t, err)
}

func TestRun_SidecarSubtitles(t *testing.T) {
	h := newHarness(t, scenarioDoc)
	tr := `[{"start":1.2,"end":2.4,"text":"Hello world.","words":[
		{"word":"Hello","start":1.2,"end":1.6},{"word":"world.","start":1.7,"end":2.4}]}]`
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "t.json"), []byte(tr), 0o644))
	in := h.input()
	in.Subtitles = SubtitlesBurn

	res, err := h.uc.Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(h.dir, "out.ass"), res.SubtitlesPath)
	assert.Equal(t, 1, res.SubtitleCount)
	assert.Contains(t, res.Command.Graph, "subtitles=")

	b, err := os.ReadFile(res.SubtitlesPath)
	require.NoError(t, err)
	var dialogue string
	for _, l := range strings.Split(string(b), "\n") {
		if strings.HasPrefix(l, "Dialogue: ") {
			dialogue = l
		}
	}
	d, err := subtitles.ParseDialogue(dialogue)
	require.NoError(t, err)
	assert.Equal(t, 200*time.Millisecond, d.Start)
	assert.Equal(t, 1400*time.Millisecond, d.End)
	assert.Equal(t, []string{"Hello", "world."}, d.Words)
}

func TestRun_MissingTranscriptOnlyWarns(t *testing.T) {
	h := newHarness(t, scenarioDoc)
	in := h.input()
	in.Subtitles = SubtitlesSidecar
	res, err := h.uc.Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 0, res.SubtitleCount)
	assert.FileExists(t, res.SubtitlesPath)
	assert.NotContains(t, res.Command.Graph, "subtitles=")
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "my_talk-2024.mp4")
	trPath := filepath.Join(dir, "my_talk.json")
	require.NoError(t, os.WriteFile(video, []byte("fake video"), 0o644))
	require.NoError(t, os.WriteFile(trPath, []byte(`{"segments":[
		{"start":0.5,"end":2.0,"text":" First line."},
		{"start":2.5,"end":4.25,"text":"Second line."}]}`), 0o644))

	uc := New(Deps{})
	now := func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	out, err := uc.Convert(ConvertInput{Video: video, Transcript: trPath, Now: now})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "my_talk-2024.md"), out)

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	doc, err := document.Parse(b, out)
	require.NoError(t, err)
	src := doc.Metadata.Sources[0]
	assert.Equal(t, "My Talk 2024", src.Name)
	assert.Equal(t, "./my_talk-2024.mp4", src.Source)
	assert.Equal(t, "./my_talk.json", src.Transcript)
	assert.Len(t, src.Hash, 64)
	assert.Equal(t, "2026-03-01T12:00:00Z", doc.Metadata.GeneratedAt)
	require.Len(t, doc.Blocks, 2)
	seg := doc.Blocks[1].(document.Segment)
	assert.Equal(t, document.TimeRange{Start: 2500 * time.Millisecond, End: 4250 * time.Millisecond}, seg.Range)
	assert.Equal(t, "Second line.", seg.Text)

	_, err = uc.Convert(ConvertInput{Video: video, Transcript: trPath, Now: now})
	assert.Equal(t, diag.CodeOutputExists, diag.CodeOf(err))
}

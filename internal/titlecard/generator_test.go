package titlecard

import (
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
	"github.com/forPelevin/mdvid/internal/types"
)

type fakeTools struct {
	html, image, loop int
	failImage         bool
	lastCSS           string
	lastLoop          time.Duration
}

func (f *fakeTools) MarkdownToHTML(_ context.Context, inMD, cssHref, outHTML string) error {
	f.html++
	f.lastCSS = cssHref
	md, err := os.ReadFile(inMD)
	if err != nil {
		return err
	}
	return os.WriteFile(outHTML, append([]byte("<html>"), md...), 0o644)
}

func (f *fakeTools) RenderHTML(_ context.Context, inHTML, outImage string, _, _ int) error {
	f.image++
	if f.failImage {
		return errors.New("browser crashed")
	}
	if !strings.HasSuffix(outImage, ".jpg") {
		return errors.New("renderer needs a .jpg name")
	}
	return os.WriteFile(outImage, []byte("jpg"), 0o644)
}

func (f *fakeTools) ProbeVideo(context.Context, string) (types.VideoInfo, error) {
	return types.VideoInfo{}, nil
}

func (f *fakeTools) LoopImage(_ context.Context, _, outMP4 string, d time.Duration, _, _ int) error {
	f.loop++
	f.lastLoop = d
	return os.WriteFile(outMP4, []byte("mp4"), 0o644)
}

func (f *fakeTools) Encode(context.Context, []string) error { return nil }

func newGen(t *testing.T, tools *fakeTools) *Generator {
	t.Helper()
	g, err := New(Config{Root: t.TempDir(), Width: 1920, Height: 1080}, tools, tools, tools)
	require.NoError(t, err)
	return g
}

func TestKey_Deterministic(t *testing.T) {
	k := Key(ModeHeading, 1, "Intro", 1920, 1080, 3*time.Second)
	assert.Equal(t, k, Key(ModeHeading, 1, "Intro", 1920, 1080, 3*time.Second))
	assert.Len(t, k, 64)
	assert.NotEqual(t, k, Key(ModeHeading, 2, "Intro", 1920, 1080, 3*time.Second))
	assert.NotEqual(t, k, Key(ModeMarkdown, 1, "Intro", 1920, 1080, 3*time.Second))
	assert.NotEqual(t, k, Key(ModeHeading, 1, "Intro", 1080, 1920, 3*time.Second))
	assert.NotEqual(t, k, Key(ModeHeading, 1, "Intro", 1920, 1080, 4*time.Second))
	assert.Equal(t, Key(ModeMarkdown, 1, "x", 1, 1, 0), Key(ModeMarkdown, 5, "x", 1, 1, 0))
}

func TestHeadingVideo_GeneratesLadderOnce(t *testing.T) {
	tools := &fakeTools{}
	g := newGen(t, tools)
	ctx := context.Background()

	path, err := g.HeadingVideo(ctx, 2, "Section", 3*time.Second)
	require.NoError(t, err)
	assert.Equal(t, TitleMP4, filepath.Base(path))
	assert.Equal(t, TitleCSS, tools.lastCSS)
	assert.Equal(t, 3*time.Second, tools.lastLoop)

	dir := filepath.Dir(path)
	for _, name := range ladder {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	in, err := os.ReadFile(filepath.Join(dir, InputMD))
	require.NoError(t, err)
	assert.Equal(t, "## Section\n", string(in))
	css, err := os.ReadFile(filepath.Join(dir, TitleCSS))
	require.NoError(t, err)
	assert.Equal(t, stylesheet, css)

	again, err := g.HeadingVideo(ctx, 2, "Section", 3*time.Second)
	require.NoError(t, err)
	assert.Equal(t, path, again)
	assert.Equal(t, 1, tools.html)
	assert.Equal(t, 1, tools.image)
	assert.Equal(t, 1, tools.loop)

	des, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, de := range des {
		assert.NotContains(t, de.Name(), ".tmp", "temp artifacts are renamed away")
	}
}

func TestOverlayImage_NoVideo(t *testing.T) {
	tools := &fakeTools{}
	g := newGen(t, tools)
	img, err := g.OverlayImage(context.Background(), "**Note**")
	require.NoError(t, err)
	assert.Equal(t, TitleJPG, filepath.Base(img))
	assert.Equal(t, 0, tools.loop)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(img), TitleMP4))
}

func TestCard_StepFailureResumes(t *testing.T) {
	tools := &fakeTools{failImage: true}
	g := newGen(t, tools)
	ctx := context.Background()

	_, err := g.PauseVideo(ctx, "Read this", 6*time.Second)
	require.Error(t, err)
	assert.Equal(t, diag.CodeTitleCardStepFailed, diag.CodeOf(err))
	var de *diag.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, StepRenderImage, de.Step)

	tools.failImage = false
	path, err := g.PauseVideo(ctx, "Read this", 6*time.Second)
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Equal(t, 1, tools.html, "html survives as a progress marker")
	assert.Equal(t, 2, tools.image)
}

func TestListAndClear(t *testing.T) {
	tools := &fakeTools{}
	g := newGen(t, tools)
	ctx := context.Background()
	_, err := g.HeadingVideo(ctx, 1, "A", 3*time.Second)
	require.NoError(t, err)
	_, err = g.OverlayImage(ctx, "B")
	require.NoError(t, err)

	entries, err := List(g.Root())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	stages := map[string]bool{}
	for _, e := range entries {
		stages[e.Stage] = true
		assert.Positive(t, e.Size)
	}
	assert.True(t, stages[TitleMP4])
	assert.True(t, stages[TitleJPG])

	removed, skipped, err := Clear(g.Root())
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, skipped)

	entries, err = List(g.Root())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestList_MissingRoot(t *testing.T) {
	entries, err := List(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

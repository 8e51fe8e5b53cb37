package planner

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forPelevin/mdvid/internal/diag"
	"github.com/forPelevin/mdvid/internal/domain/document"
)

func seg(start, end time.Duration, text string) document.Segment {
	return document.Segment{
		Range:    document.TimeRange{Start: start, End: end},
		Text:     text,
		Kind:     document.Dialogue,
		SourceID: "a",
	}
}

func docOf(blocks ...document.Block) *document.Document {
	return &document.Document{
		Path: "doc.md",
		Metadata: document.Metadata{
			DefaultSource: "a",
			Sources:       []document.Source{{ID: "a", Source: "v.mp4"}},
		},
		Blocks: blocks,
	}
}

func TestBuild_OverlayAttachesToPrecedingClip(t *testing.T) {
	doc := docOf(
		seg(0, 2*time.Second, "one"),
		document.Unhandled{Description: "Note", Line: 3},
		seg(2*time.Second, 4*time.Second, "two"),
	)
	p, err := Build(doc, Options{})
	require.NoError(t, err)

	clips := p.Clips()
	require.Len(t, clips, 2)
	require.NotNil(t, clips[0].Overlay)
	require.NotNil(t, clips[1].Overlay)
	assert.Equal(t, "Note", clips[0].Overlay.Markdown)
	assert.Equal(t, "Note", clips[1].Overlay.Markdown)
	assert.Equal(t, 3, clips[0].Overlay.Line)
	assert.Equal(t, 2, p.SegmentCount)
	assert.Equal(t, 1, p.OverlayCount)
}

func TestBuild_SeparatorEndsStickyOverlay(t *testing.T) {
	doc := docOf(
		seg(0, time.Second, "one"),
		document.Unhandled{Description: "first", Line: 2},
		document.Unhandled{Description: "second", Line: 4},
		document.Separator{Line: 6},
		seg(time.Second, 2*time.Second, "two"),
	)
	p, err := Build(doc, Options{})
	require.NoError(t, err)

	clips := p.Clips()
	require.Len(t, clips, 2)
	require.NotNil(t, clips[0].Overlay)
	assert.Equal(t, "first\n\nsecond", clips[0].Overlay.Markdown)
	assert.Nil(t, clips[1].Overlay)
}

func TestBuild_SeparatorCreatesPause(t *testing.T) {
	text := "A longer paragraph with about fifteen words in it total total total."
	doc := docOf(
		document.Separator{Line: 1},
		document.Unhandled{Description: text, Line: 3},
		document.Separator{Line: 5},
	)
	p, err := Build(doc, Options{})
	require.NoError(t, err)
	require.Len(t, p.Items, 1)

	pause, ok := p.Items[0].(Pause)
	require.True(t, ok, "want Pause, got %T", p.Items[0])
	assert.Equal(t, text, pause.Markdown)
	assert.Equal(t, text, pause.DisplayText)
	assert.GreaterOrEqual(t, pause.Duration, 5*time.Second)
	assert.LessOrEqual(t, pause.Duration, 20*time.Second)
	assert.Equal(t, 1, p.StandaloneCount)
	assert.Equal(t, 0, p.OverlayCount)
}

func TestBuild_HeadingsAndMusicKeepOrder(t *testing.T) {
	doc := docOf(
		document.Heading{Level: 1, Text: "Intro", Line: 1},
		document.Music{Directive: document.MusicDirective{Action: document.MusicStart, Path: "bed.mp3"}, Line: 3},
		seg(0, time.Second, "hi"),
		document.Music{Directive: document.MusicDirective{Action: document.MusicStop}, Line: 7},
	)
	p, err := Build(doc, Options{})
	require.NoError(t, err)
	require.Len(t, p.Items, 4)
	assert.Equal(t, Heading{Level: 1, Text: "Intro"}, p.Items[0])
	assert.IsType(t, Music{}, p.Items[1])
	assert.IsType(t, Clip{}, p.Items[2])
	assert.IsType(t, Music{}, p.Items[3])
	assert.Equal(t, 1, p.HeadingCount)
}

func TestBuild_EmptyAndLeadingContentIgnored(t *testing.T) {
	doc := docOf(
		document.Unhandled{Description: "   ", Line: 1},
		document.Unhandled{Description: "dangling", Line: 3},
	)
	p, err := Build(doc, Options{})
	require.NoError(t, err)
	assert.Empty(t, p.Items)
	assert.Equal(t, 2, p.IgnoredCount)
}

func TestBuild_LeadingContentBeforeSeparatorIgnored(t *testing.T) {
	doc := docOf(
		document.Unhandled{Description: "Intro note shown on screen.", Line: 5},
		document.Separator{Line: 7},
		seg(time.Second, 2*time.Second, "hi"),
	)
	p, err := Build(doc, Options{})
	require.NoError(t, err)
	clips := p.Clips()
	require.Len(t, clips, 1)
	assert.Nil(t, clips[0].Overlay)
	assert.Equal(t, 0, p.OverlayCount)
	assert.Equal(t, 1, p.IgnoredCount)
}

func TestBuild_TrailingContentBecomesOverlay(t *testing.T) {
	doc := docOf(seg(0, time.Second, "hi"), document.Unhandled{Description: "tail", Line: 3})
	p, err := Build(doc, Options{})
	require.NoError(t, err)
	clips := p.Clips()
	require.Len(t, clips, 1)
	require.NotNil(t, clips[0].Overlay)
	assert.Equal(t, "tail", clips[0].Overlay.Markdown)
}

func TestBuild_MissingSource(t *testing.T) {
	s := seg(0, time.Second, "hi")
	s.SourceID = "z"
	s.Line = 9
	_, err := Build(docOf(s), Options{})
	require.Error(t, err)
	assert.Equal(t, diag.CodeMissingSource, diag.CodeOf(err))
	var de *diag.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 9, de.Line)
	assert.Equal(t, "doc.md", de.Path)
}

func TestBuild_Deterministic(t *testing.T) {
	src := strings.Join([]string{
		"`00:00:00.000-00:00:01.000` one",
		"",
		"Note",
		"",
		"# Heading",
		"",
		"---",
		"",
		"Pause text",
		"",
		"---",
		"",
		"`00:00:01.000-00:00:02.000` silence",
		"",
	}, "\n")
	doc, err := document.Parse([]byte(src), "doc.md")
	require.NoError(t, err)
	doc.Metadata = docOf().Metadata

	first, err := Build(doc, Options{})
	require.NoError(t, err)
	second, err := Build(doc, Options{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPauseDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, PauseDuration("few words", Options{}))
	assert.Equal(t, 20*time.Second, PauseDuration(strings.Repeat("word ", 200), Options{}))
	assert.Equal(t, 10*time.Second, PauseDuration(strings.Repeat("word ", 30), Options{}))
}

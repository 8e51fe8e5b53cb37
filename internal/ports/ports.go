package ports

import (
	"context"
	"time"

	"github.com/forPelevin/mdvid/internal/types"
)

// MarkdownConverter renders a Markdown file to a standalone HTML page.
type MarkdownConverter interface {
	MarkdownToHTML(ctx context.Context, inMD, cssHref, outHTML string) error
}

// HTMLRenderer rasterises an HTML page at an exact viewport size.
type HTMLRenderer interface {
	RenderHTML(ctx context.Context, inHTML, outImage string, width, height int) error
}

type VideoTool interface {
	ProbeVideo(ctx context.Context, path string) (types.VideoInfo, error)
	LoopImage(ctx context.Context, image, outMP4 string, d time.Duration, width, height int) error
	// Encode runs the encoder with args and the caller's stdout/stderr.
	Encode(ctx context.Context, args []string) error
}

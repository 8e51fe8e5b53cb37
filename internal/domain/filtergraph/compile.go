// Package filtergraph compiles a timeline into one encoder invocation.
package filtergraph

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/mdvid/internal/domain/timeline"
)

const DefaultMusicVolume = 0.3

type Options struct {
	Width  int
	Height int
	// FrameRate forces a constant output rate when > 0.
	FrameRate float64
	// MusicVolume scales music beds before mixing; <= 0 means default.
	MusicVolume float64
	// SubtitlesPath, when set, burns the ASS file into the video.
	SubtitlesPath string
}

// Command is the encoder argument list without the binary.
type Command struct {
	Inputs []string
	Graph  string
	Args   []string
}

var ErrNoVideo = errors.New("timeline has no video segments")

type labels struct{ v, a, ovl, overlaid, music int }

type compiler struct {
	opts    Options
	inputs  []string
	index   map[string]int
	filters []string
	n       labels
}

// Compile lowers tl into encoder arguments writing to out.
func Compile(tl *timeline.Timeline, out string, opts Options) (*Command, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("target size %dx%d is not positive", opts.Width, opts.Height)
	}
	if opts.MusicVolume <= 0 {
		opts.MusicVolume = DefaultMusicVolume
	}
	c := &compiler{opts: opts, index: map[string]int{}}

	var primary, overlays, music []timeline.Segment
	for _, s := range tl.Segments {
		c.discover(s)
		switch s.Data.(type) {
		case timeline.VideoSubset:
			primary = append(primary, s)
		case timeline.Image, timeline.Broll:
			overlays = append(overlays, s)
		case timeline.Music:
			music = append(music, s)
		}
	}
	if len(primary) == 0 {
		return nil, ErrNoVideo
	}
	sort.SliceStable(primary, func(i, j int) bool { return primary[i].StartTime < primary[j].StartTime })

	c.primary(primary)
	video := c.overlays("concat_v", overlays)
	c.finishVideo(video)
	c.audio(music)

	graph := strings.Join(c.filters, ";")
	args := make([]string, 0, 2*len(c.inputs)+20)
	for _, in := range c.inputs {
		args = append(args, "-i", in)
	}
	args = append(args,
		"-filter_complex", graph,
		"-map", "[outv]",
		"-map", "[outa]",
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "18",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		"-movflags", "+faststart",
		out,
	)
	return &Command{Inputs: c.inputs, Graph: graph, Args: args}, nil
}

// discover registers every file a segment reads, in timeline order.
func (c *compiler) discover(s timeline.Segment) {
	switch d := s.Data.(type) {
	case timeline.VideoSubset:
		c.input(d.Source.Video)
		if !d.MuteAudio {
			c.input(d.Source.Audio)
		}
	case timeline.Image:
		c.input(d.SourceImage)
	case timeline.Broll:
		c.input(d.SourceVideo)
	case timeline.Music:
		c.input(d.AudioSource)
	}
}

func (c *compiler) input(path string) int {
	if i, ok := c.index[path]; ok {
		return i
	}
	c.index[path] = len(c.inputs)
	c.inputs = append(c.inputs, path)
	return c.index[path]
}

func (c *compiler) add(format string, args ...any) {
	c.filters = append(c.filters, fmt.Sprintf(format, args...))
}

func (c *compiler) primary(segs []timeline.Segment) {
	var pairs strings.Builder
	for _, s := range segs {
		d := s.Data.(timeline.VideoSubset)
		start, end := sec(d.SourceStart), sec(d.SourceStart+s.Duration)

		v := fmt.Sprintf("v%d", c.n.v)
		c.n.v++
		c.add("[%d:v]trim=start=%s:end=%s,setpts=PTS-STARTPTS,%s[%s]",
			c.index[d.Source.Video], start, end, c.normalizeVideo(), v)

		a := fmt.Sprintf("a%d", c.n.a)
		c.n.a++
		if d.MuteAudio {
			c.add("anullsrc=r=48000:cl=stereo:d=%s[%s]", sec(s.Duration), a)
		} else {
			c.add("[%d:a]atrim=start=%s:end=%s,asetpts=PTS-STARTPTS,%s[%s]",
				c.index[d.Source.Audio], start, end, normalizeAudio, a)
		}
		fmt.Fprintf(&pairs, "[%s][%s]", v, a)
	}
	c.add("%sconcat=n=%d:v=1:a=1[concat_v][concat_a]", pairs.String(), len(segs))
}

const normalizeAudio = "aformat=sample_rates=48000:channel_layouts=stereo"

func (c *compiler) normalizeVideo() string {
	w, h := c.opts.Width, c.opts.Height
	f := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1", w, h, w, h)
	if c.opts.FrameRate > 0 {
		f += ",fps=" + strconv.FormatFloat(c.opts.FrameRate, 'f', -1, 64)
	}
	return f + ",format=yuv420p"
}

// overlays folds Image and Broll segments over base in discovery order and
// returns the last label.
func (c *compiler) overlays(base string, segs []timeline.Segment) string {
	prev := base
	for _, s := range segs {
		var (
			src string
			tf  *timeline.Transform
			pre string
		)
		switch d := s.Data.(type) {
		case timeline.Image:
			src, tf = fmt.Sprintf("%d:v", c.index[d.SourceImage]), d.Transform
		case timeline.Broll:
			src, tf = fmt.Sprintf("%d:v", c.index[d.SourceVideo]), d.Transform
			pre = fmt.Sprintf("trim=start=%s:end=%s,setpts=PTS-STARTPTS+%s/TB,",
				sec(d.SourceStart), sec(d.SourceStart+s.Duration), sec(s.StartTime))
		}

		rot, x, y := "", "(W-w)/2", "(H-h)/2"
		if !tf.IsIdentity() {
			rot = rotation(tf)
			x, y = position(tf)
		}
		ovl := fmt.Sprintf("ovl%d", c.n.ovl)
		c.n.ovl++
		c.add("[%s]%sscale=w=%d:h=-1:flags=lanczos,setsar=1,format=rgba%s[%s]",
			src, pre, c.scaledWidth(tf), rot, ovl)

		next := fmt.Sprintf("overlaid_%d", c.n.overlaid)
		c.n.overlaid++
		c.add("[%s][%s]overlay=x=%s:y=%s:enable='between(t,%s,%s)'[%s]",
			prev, ovl, x, y, sec(s.StartTime), sec(s.EndTime()), next)
		prev = next
	}
	return prev
}

func (c *compiler) scaledWidth(tf *timeline.Transform) int {
	s := tf.ScaleOr(timeline.DefaultOverlayScale)
	return int(math.Ceil(float64(c.opts.Width)*s/2)) * 2
}

func rotation(tf *timeline.Transform) string {
	if tf.Rotate == nil || *tf.Rotate == 0 {
		return ""
	}
	r := strconv.FormatFloat(*tf.Rotate*math.Pi/180, 'f', 6, 64)
	return fmt.Sprintf(",rotate=%s:c=none:ow=rotw(%s):oh=roth(%s)", r, r, r)
}

func position(tf *timeline.Transform) (string, string) {
	x, y := "(W-w)/2", "(H-h)/2"
	if tf.Translate != nil {
		x += signed(tf.Translate[0])
		y += signed(tf.Translate[1])
	}
	return x, y
}

func signed(v float64) string {
	if v == 0 {
		return ""
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if v > 0 {
		return "+" + s
	}
	return s
}

func (c *compiler) finishVideo(label string) {
	if c.opts.SubtitlesPath == "" {
		c.add("[%s]null[outv]", label)
		return
	}
	c.add("[%s]subtitles=%s[outv]", label, escapeGraphValue(EscapeFilterPath(c.opts.SubtitlesPath)))
}

func (c *compiler) audio(music []timeline.Segment) {
	if len(music) == 0 {
		c.add("[concat_a]anull[outa]")
		return
	}
	mix := "[concat_a]"
	for _, s := range music {
		d := s.Data.(timeline.Music)
		m := fmt.Sprintf("m%d", c.n.music)
		c.n.music++
		f := fmt.Sprintf("[%d:a]atrim=start=%s:end=%s,asetpts=PTS-STARTPTS,%s",
			c.index[d.AudioSource], sec(d.SourceStart), sec(d.SourceStart+s.Duration), normalizeAudio)
		if d.FadeOut > 0 {
			f += fmt.Sprintf(",afade=t=out:st=%s:d=%s", sec(s.Duration-d.FadeOut), sec(d.FadeOut))
		}
		if s.StartTime > 0 {
			ms := s.StartTime.Milliseconds()
			f += fmt.Sprintf(",adelay=%d|%d", ms, ms)
		}
		f += fmt.Sprintf(",volume=%s[%s]", strconv.FormatFloat(c.opts.MusicVolume, 'f', -1, 64), m)
		c.filters = append(c.filters, f)
		mix += "[" + m + "]"
	}
	c.add("%samix=inputs=%d:duration=first:dropout_transition=0:normalize=0[outa]", mix, len(music)+1)
}

func sec(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 6, 64)
}

// EscapeFilterPath escapes a path used as a filter option value.
func EscapeFilterPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "\\\\")
	p = strings.ReplaceAll(p, ":", "\\:")
	return strings.ReplaceAll(p, "'", "\\'")
}

var graphEscaper = strings.NewReplacer(
	"\\", "\\\\",
	"'", "\\'",
	"[", "\\[",
	"]", "\\]",
	",", "\\,",
	";", "\\;",
)

// escapeGraphValue escapes an already option-escaped value for use inside a
// filter graph description.
func escapeGraphValue(v string) string {
	return graphEscaper.Replace(v)
}

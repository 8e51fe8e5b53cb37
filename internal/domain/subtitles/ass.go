package subtitles

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	FontSize      = 52
	ReelsFontSize = 70
)

// Style controls the script header.
type Style struct {
	Width  int
	Height int
	Reels  bool
}

func (s Style) fontSize() int {
	if s.Reels {
		return ReelsFontSize
	}
	return FontSize
}

// Catppuccin Mocha in ASS &HAABBGGRR order.
const (
	colText   = "&H00F4D6CD" // text  #cdd6f4
	colYellow = "&H00AFE2F9" // yellow #f9e2af
	colCrust  = "&H001B1111" // crust #11111b
	colBase   = "&H802E1E1E" // base #1e1e2e, half transparent
)

// RenderASS serialises subs as an ASS v4+ script, one Dialogue per subtitle.
func RenderASS(subs []Subtitle, st Style) string {
	var b strings.Builder
	b.WriteString(assHeader(st))
	b.WriteString("\n\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, s := range subs {
		b.WriteString(DialogueLine(s))
		b.WriteString("\n")
	}
	return b.String()
}

// DialogueLine renders one subtitle. Subtitles with words become karaoke.
func DialogueLine(s Subtitle) string {
	var b strings.Builder
	b.WriteString("Dialogue: 0,")
	b.WriteString(assTime(s.Start))
	b.WriteString(",")
	b.WriteString(assTime(s.End))
	b.WriteString(",Default,,0,0,0,,")
	if len(s.Words) == 0 {
		b.WriteString(escapeASS(s.Text))
		return b.String()
	}
	if gap := centis(s.Words[0].Start - s.Start); gap > 0 {
		fmt.Fprintf(&b, "{\\k%d}", gap)
	}
	for i, w := range s.Words {
		if i > 0 {
			fmt.Fprintf(&b, "{\\k%d} ", max(centis(w.Start-s.Words[i-1].End), 0))
		}
		fmt.Fprintf(&b, "{\\k%d}%s", centis(w.End-w.Start), escapeASS(w.Word))
	}
	return b.String()
}

func assHeader(st Style) string {
	size := st.fontSize()
	return strings.TrimSpace(fmt.Sprintf(`
[Script Info]
ScriptType: v4.00+
PlayResX: %d
PlayResY: %d
WrapStyle: 0
ScaledBorderAndShadow: yes

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Default,Inter,%d,%s,%s,%s,%s,0,0,0,0,100,100,0,0,1,2,1,2,60,60,60,1
Style: Highlight,Inter,%d,%s,%s,%s,%s,1,0,0,0,100,100,0,0,1,2,1,2,60,60,60,1
`, st.Width, st.Height,
		size, colText, colYellow, colCrust, colBase,
		size, colYellow, colText, colCrust, colBase))
}

// assTime formats H:MM:SS.cc with centiseconds rounded to nearest.
func assTime(d time.Duration) string {
	cs := centis(d)
	if cs < 0 {
		cs = 0
	}
	h := cs / 360000
	cs -= h * 360000
	m := cs / 6000
	cs -= m * 6000
	s := cs / 100
	cs -= s * 100
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs)
}

func centis(d time.Duration) int {
	return int(math.Round(float64(d) / float64(10*time.Millisecond)))
}

func escapeASS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "{", "\\{")
	s = strings.ReplaceAll(s, "}", "\\}")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\\N")
}

// Dialogue is a parsed Dialogue line.
type Dialogue struct {
	Start time.Duration
	End   time.Duration
	Style string
	// Text is the unescaped text with override tags removed.
	Text  string
	Words []string
}

// ParseDialogue reads back a line produced by DialogueLine.
func ParseDialogue(line string) (Dialogue, error) {
	rest, ok := strings.CutPrefix(line, "Dialogue: ")
	if !ok {
		return Dialogue{}, fmt.Errorf("not a dialogue line: %q", line)
	}
	fields := strings.SplitN(rest, ",", 10)
	if len(fields) != 10 {
		return Dialogue{}, fmt.Errorf("dialogue has %d fields, want 10", len(fields))
	}
	start, err := parseASSTime(fields[1])
	if err != nil {
		return Dialogue{}, err
	}
	end, err := parseASSTime(fields[2])
	if err != nil {
		return Dialogue{}, err
	}
	d := Dialogue{Start: start, End: end, Style: fields[3]}

	var text, run strings.Builder
	karaoke := false
	flush := func() {
		if w := strings.TrimSpace(run.String()); w != "" {
			d.Words = append(d.Words, w)
		}
		run.Reset()
	}
	src := fields[9]
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '\\' && i+1 < len(src):
			i++
			var r string
			switch src[i] {
			case '\\', '{', '}':
				r = string(src[i])
			case 'N':
				r = "\n"
			default:
				r = "\\" + string(src[i])
			}
			text.WriteString(r)
			run.WriteString(r)
		case c == '{':
			j := strings.IndexByte(src[i:], '}')
			if j < 0 {
				return Dialogue{}, fmt.Errorf("unterminated override tag at %d", i)
			}
			if strings.HasPrefix(src[i:], "{\\k") {
				karaoke = true
				flush()
			}
			i += j
		default:
			text.WriteByte(c)
			run.WriteByte(c)
		}
	}
	flush()
	d.Text = text.String()
	if !karaoke {
		d.Words = strings.Fields(d.Text)
	}
	return d, nil
}

func parseASSTime(s string) (time.Duration, error) {
	hms, frac, ok := strings.Cut(s, ".")
	parts := strings.Split(hms, ":")
	if !ok || len(parts) != 3 || len(frac) != 2 {
		return 0, fmt.Errorf("bad ASS time %q", s)
	}
	var n [4]int
	for i, p := range append(parts, frac) {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("bad ASS time %q", s)
		}
		n[i] = v
	}
	cs := ((n[0]*60+n[1])*60+n[2])*100 + n[3]
	return time.Duration(cs) * 10 * time.Millisecond, nil
}

package document

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/forPelevin/mdvid/internal/diag"
)

var (
	reThematicBreak = regexp.MustCompile(`^ {0,3}([-*_])(?:[ \t]*[-*_]){2,}[ \t]*$`)
	reMusic         = regexp.MustCompile(`^!music:(start|stop|fade)(?:\((.*)\))?$`)
)

// Parse turns an annotated Markdown document into blocks. It makes no editing
// decisions; see the planner for those.
func Parse(src []byte, path string) (*Document, error) {
	doc, err := parse(src)
	if err != nil {
		return nil, diag.WithPath(err, path)
	}
	doc.Path = path
	return doc, nil
}

func parse(src []byte) (*Document, error) {
	fm, bodyOff, hasFM, err := splitFrontMatter(src)
	if err != nil {
		return nil, err
	}
	doc := &Document{}
	if hasFM {
		md, err := decodeFrontMatter(fm)
		if err != nil {
			return nil, err
		}
		doc.Metadata = md
	}

	p := &parser{
		src:    src,
		body:   src[bodyOff:],
		offset: bodyOff,
		lines:  lineStarts(src),
		defID:  doc.Metadata.DefaultID(),
		cursor: bodyOff,
	}
	root := goldmark.New().Parser().Parse(text.NewReader(p.body))
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		b, err := p.block(n)
		if err != nil {
			return nil, err
		}
		if b != nil {
			doc.Blocks = append(doc.Blocks, b)
		}
	}
	return doc, nil
}

type parser struct {
	src    []byte
	body   []byte
	offset int   // byte offset of body within src
	lines  []int // byte offset of each line start in src
	defID  string
	// cursor is the absolute offset just past the previous block, used to
	// locate blocks goldmark records no source lines for.
	cursor int
}

func lineStarts(src []byte) []int {
	starts := []int{0}
	for i, c := range src {
		if c == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// lineAt maps an absolute byte offset to a 1-based line number.
func (p *parser) lineAt(off int) int {
	return sort.Search(len(p.lines), func(i int) bool { return p.lines[i] > off })
}

func (p *parser) lineEnd(off int) int {
	l := p.lineAt(off)
	if l < len(p.lines) {
		return p.lines[l]
	}
	return len(p.src)
}

// span returns the absolute [start, stop) covering every source line recorded
// on n or its descendants.
func (p *parser) span(n ast.Node) (int, int, bool) {
	start, stop, ok := -1, -1, false
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || c.Type() != ast.TypeBlock {
			return ast.WalkContinue, nil
		}
		lines := c.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			if !ok || seg.Start < start {
				start = seg.Start
			}
			if !ok || seg.Stop > stop {
				stop = seg.Stop
			}
			ok = true
		}
		return ast.WalkContinue, nil
	})
	if !ok {
		return 0, 0, false
	}
	return start + p.offset, stop + p.offset, true
}

func (p *parser) block(n ast.Node) (Block, error) {
	start, stop, ok := p.span(n)
	if ok {
		defer func() { p.cursor = stop }()
	}
	switch n := n.(type) {
	case *ast.Paragraph:
		return p.paragraph(n, p.lineAt(start))
	case *ast.Heading:
		line := p.lineAt(p.cursor)
		if ok {
			line = p.lineAt(start)
			prefix := bytes.TrimLeft(p.src[p.lines[line-1]:start], " \t")
			if !bytes.HasPrefix(prefix, []byte("#")) {
				// setext: skip the underline that follows the content.
				stop = p.lineEnd(p.lineEnd(stop))
			}
		}
		return Heading{Level: n.Level, Text: strings.TrimSpace(p.inlines(n, nil)), Line: line}, nil
	case *ast.ThematicBreak:
		return Separator{Line: p.findThematicBreak()}, nil
	case *ast.FencedCodeBlock:
		var b strings.Builder
		b.WriteString("```")
		if n.Info != nil {
			b.Write(n.Info.Segment.Value(p.body))
		}
		b.WriteString("\n")
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(p.body))
		}
		b.WriteString("```")
		line := p.lineAt(p.cursor)
		if ok {
			line = p.lineAt(start) - 1
			stop = p.lineEnd(stop)
		}
		return Unhandled{Description: b.String(), Line: line}, nil
	default:
		if !ok {
			return nil, nil
		}
		raw := p.src[p.lines[p.lineAt(start)-1]:stop]
		return Unhandled{Description: strings.TrimRight(string(raw), "\n"), Line: p.lineAt(start)}, nil
	}
}

// findThematicBreak locates the first thematic break line at or after the
// cursor and advances past it. goldmark records no source lines for breaks.
func (p *parser) findThematicBreak() int {
	for l := p.lineAt(p.cursor); l <= len(p.lines); l++ {
		from := p.lines[l-1]
		to := len(p.src)
		if l < len(p.lines) {
			to = p.lines[l]
		}
		if reThematicBreak.Match(bytes.TrimRight(p.src[from:to], "\r\n")) {
			p.cursor = to
			return l
		}
	}
	return p.lineAt(p.cursor)
}

func (p *parser) paragraph(n *ast.Paragraph, line int) (Block, error) {
	first := firstContent(n, p.body)
	cs, isCode := first.(*ast.CodeSpan)
	if !isCode {
		return Unhandled{Description: strings.TrimSpace(p.inlines(n, nil)), Line: line}, nil
	}
	span := strings.TrimSpace(codeText(cs, p.body))

	if strings.HasPrefix(span, "!music:") {
		if !onlyContent(n, cs, p.body) {
			return nil, diag.InvalidDocument(line, "music directive %q must stand alone in its paragraph", span)
		}
		d, err := parseMusic(span)
		if err != nil {
			return nil, diag.InvalidDocument(line, "%v", err)
		}
		return Music{Directive: d, Line: line}, nil
	}

	if !looksLikeRange(span) {
		return Unhandled{Description: strings.TrimSpace(p.inlines(n, nil)), Line: line}, nil
	}
	id, r, err := parseRange(span)
	if err != nil {
		return nil, diag.InvalidTimestamp(line, span, err)
	}
	if id == "" {
		id = p.defID
	}
	body := strings.TrimSpace(p.inlines(n, cs))
	kind := Dialogue
	if strings.EqualFold(body, "silence") {
		kind = Silence
	}
	return Segment{Range: r, Text: body, Kind: kind, SourceID: id, Line: line}, nil
}

// inlines renders n's inline children back to Markdown. When after is set,
// only the children following it are rendered.
func (p *parser) inlines(n ast.Node, after ast.Node) string {
	var b strings.Builder
	c := n.FirstChild()
	if after != nil {
		c = after.NextSibling()
	}
	for ; c != nil; c = c.NextSibling() {
		renderInline(&b, c, p.body)
	}
	return b.String()
}

func renderInline(b *strings.Builder, n ast.Node, src []byte) {
	switch n := n.(type) {
	case *ast.Text:
		b.Write(n.Segment.Value(src))
		switch {
		case n.HardLineBreak():
			b.WriteString("\n")
		case n.SoftLineBreak():
			b.WriteString(" ")
		}
	case *ast.String:
		b.Write(n.Value)
	case *ast.CodeSpan:
		b.WriteString("`")
		b.WriteString(codeText(n, src))
		b.WriteString("`")
	case *ast.Emphasis:
		marker := strings.Repeat("*", n.Level)
		b.WriteString(marker)
		renderChildren(b, n, src)
		b.WriteString(marker)
	case *ast.Link:
		b.WriteString("[")
		renderChildren(b, n, src)
		b.WriteString("](")
		b.Write(n.Destination)
		if len(n.Title) > 0 {
			b.WriteString(` "`)
			b.Write(n.Title)
			b.WriteString(`"`)
		}
		b.WriteString(")")
	case *ast.Image:
		b.WriteString("![")
		renderChildren(b, n, src)
		b.WriteString("](")
		b.Write(n.Destination)
		b.WriteString(")")
	case *ast.AutoLink:
		b.WriteString("<")
		b.Write(n.URL(src))
		b.WriteString(">")
	case *ast.RawHTML:
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			b.Write(seg.Value(src))
		}
	default:
		renderChildren(b, n, src)
	}
}

func renderChildren(b *strings.Builder, n ast.Node, src []byte) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		renderInline(b, c, src)
	}
}

func codeText(n *ast.CodeSpan, src []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(src))
		}
	}
	return b.String()
}

func isBlank(n ast.Node, src []byte) bool {
	t, ok := n.(*ast.Text)
	return ok && len(bytes.TrimSpace(t.Segment.Value(src))) == 0
}

func firstContent(n ast.Node, src []byte) ast.Node {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if !isBlank(c, src) {
			return c
		}
	}
	return nil
}

func onlyContent(n ast.Node, keep ast.Node, src []byte) bool {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if c != keep && !isBlank(c, src) {
			return false
		}
	}
	return true
}

func parseMusic(span string) (MusicDirective, error) {
	m := reMusic.FindStringSubmatch(span)
	if m == nil {
		return MusicDirective{}, errMusic(span)
	}
	arg := strings.TrimSpace(m[2])
	switch m[1] {
	case "start":
		if arg == "" {
			return MusicDirective{}, errMusic(span)
		}
		return MusicDirective{Action: MusicStart, Path: arg}, nil
	case "stop":
		if arg != "" {
			return MusicDirective{}, errMusic(span)
		}
		return MusicDirective{Action: MusicStop}, nil
	default:
		d, err := parseLooseDuration(arg)
		if err != nil || d <= 0 {
			return MusicDirective{}, errMusic(span)
		}
		return MusicDirective{Action: MusicFade, Duration: d}, nil
	}
}

func errMusic(span string) error {
	return fmt.Errorf("malformed music directive %q: want !music:start(<path>), !music:stop, or !music:fade(<duration>)", span)
}

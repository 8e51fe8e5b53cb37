package document

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Line is one timed paragraph written by Compose.
type Line struct {
	Range TimeRange
	Text  string
}

// Compose writes a fresh annotated document: multi-source front matter and
// one segment paragraph per line, all attributed to sourceID.
func Compose(md Metadata, sourceID string, lines []Line) ([]byte, error) {
	fm, err := EncodeFrontMatter(md)
	if err != nil {
		return nil, err
	}
	var b bytes.Buffer
	b.Write(fm)
	for _, l := range lines {
		b.WriteString("\n`")
		b.WriteString(FormatRange(sourceID, l.Range))
		b.WriteString("`")
		if t := strings.TrimSpace(l.Text); t != "" {
			b.WriteString(" ")
			b.WriteString(t)
		}
		b.WriteString("\n")
	}
	return b.Bytes(), nil
}

// PlainText strips Markdown syntax, keeping the words a reader would see.
// Blocks are separated by newlines.
func PlainText(md string) string {
	src := []byte(md)
	root := goldmark.New().Parser().Parse(text.NewReader(src))
	var out []string
	var cur strings.Builder
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if n.Type() == ast.TypeBlock {
			if !entering {
				flush()
			} else if _, isCode := n.(*ast.FencedCodeBlock); isCode {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					cur.Write(seg.Value(src))
				}
			}
			return ast.WalkContinue, nil
		}
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *ast.Text:
			cur.Write(n.Segment.Value(src))
			if n.SoftLineBreak() || n.HardLineBreak() {
				cur.WriteString(" ")
			}
		case *ast.String:
			cur.Write(n.Value)
		case *ast.CodeSpan:
			cur.WriteString(codeText(n, src))
			return ast.WalkSkipChildren, nil
		case *ast.AutoLink:
			cur.Write(n.URL(src))
		}
		return ast.WalkContinue, nil
	})
	flush()
	return strings.Join(out, "\n")
}

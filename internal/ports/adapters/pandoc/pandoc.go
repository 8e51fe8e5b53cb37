package pandoc

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
)

type Adapter struct {
	bin string
}

func New(bin string) *Adapter {
	if bin == "" {
		bin = "pandoc"
	}
	return &Adapter{bin: bin}
}

// MarkdownToHTML writes a standalone page with KaTeX math linking cssHref.
// pandoc runs inside the input's directory so a relative href resolves next
// to the page.
func (a *Adapter) MarkdownToHTML(ctx context.Context, inMD, cssHref, outHTML string) error {
	out, err := filepath.Abs(outHTML)
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, a.bin, a.args(filepath.Base(inMD), cssHref, out)...)
	cmd.Dir = filepath.Dir(inMD)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("pandoc markdown to html: %w\n%s", err, string(b))
	}
	return nil
}

func (a *Adapter) args(in, css, out string) []string {
	return []string{
		"--from", "markdown",
		"--to", "html5",
		"--katex",
		"--standalone",
		"--metadata", "pagetitle=title",
		"--css", css,
		"--output", out,
		in,
	}
}

package chromium

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"path/filepath"
)

type Adapter struct {
	bin string
}

func New(bin string) *Adapter {
	if bin == "" {
		bin = "chromium"
	}
	return &Adapter{bin: bin}
}

// RenderHTML screenshots inHTML at exactly width x height. Chromium picks
// the image format from the output extension.
func (a *Adapter) RenderHTML(ctx context.Context, inHTML, outImage string, width, height int) error {
	in, err := filepath.Abs(inHTML)
	if err != nil {
		return err
	}
	out, err := filepath.Abs(outImage)
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, a.bin, args(in, out, width, height)...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("chromium screenshot: %w\n%s", err, string(b))
	}
	return nil
}

func args(in, out string, width, height int) []string {
	u := url.URL{Scheme: "file", Path: in}
	return []string{
		"--headless",
		"--disable-gpu",
		"--hide-scrollbars",
		"--no-sandbox",
		"--force-device-scale-factor=1",
		"--virtual-time-budget=2000",
		fmt.Sprintf("--window-size=%d,%d", width, height),
		"--screenshot=" + out,
		u.String(),
	}
}

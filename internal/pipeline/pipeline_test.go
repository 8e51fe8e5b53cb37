package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/forPelevin/mdvid/internal/diag"
)

func TestDefaultOutPath(t *testing.T) {
	got := DefaultOutPath("/talks/My Cool.Talk.md")
	if got != filepath.Join("/talks", "my-cool-talk.mp4") {
		t.Fatalf("unexpected out path: %s", got)
	}
	if got := DefaultOutPath("/talks/___.md"); filepath.Base(got) != "render.mp4" {
		t.Fatalf("unexpected fallback name: %s", got)
	}
}

func TestNormalizePathSegment(t *testing.T) {
	tests := map[string]string{
		"  My Cool.Video  ": "my-cool-video",
		"___":               "",
		"abc123":            "abc123",
		"Name (v2)!":        "name-v2",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			if got := normalizePathSegment(in); got != want {
				t.Fatalf("normalizePathSegment(%q) = %q, want %q", in, got, want)
			}
		})
	}
}

func writeDoc(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "talk.md")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConfigValidate(t *testing.T) {
	doc := writeDoc(t, "hello\n")
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "ok", mutate: func(*Config) {}},
		{name: "missing doc", mutate: func(c *Config) { c.DocPath = doc + ".nope" }, wantErr: "stat document"},
		{name: "empty doc", mutate: func(c *Config) { c.DocPath = "" }, wantErr: "document is empty"},
		{name: "half size", mutate: func(c *Config) { c.Width = 1280 }, wantErr: "together"},
		{name: "bad subtitles", mutate: func(c *Config) { c.Subtitles = "always" }, wantErr: "subtitles"},
		{name: "negative from", mutate: func(c *Config) { c.From = -time.Second }, wantErr: "from"},
		{name: "pause range", mutate: func(c *Config) { c.PauseMin, c.PauseMax = 9*time.Second, 3*time.Second }, wantErr: "pause"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{DocPath: doc, Subtitles: "sidecar"}
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestPlan(t *testing.T) {
	doc := writeDoc(t, "`00:00:01.000-00:00:02.000` hi\n\n# Part two\n")

	_, _, err := Plan(Config{DocPath: doc})
	if diag.CodeOf(err) != diag.CodeMissingSource {
		t.Fatalf("expected missing_source, got %v", err)
	}

	d, p, err := Plan(Config{DocPath: doc, Source: "/videos/raw.mp4"})
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	if d.Metadata.Sources[0].Source != "/videos/raw.mp4" {
		t.Fatalf("unexpected synthetic source: %+v", d.Metadata.Sources)
	}
	if p.SegmentCount != 1 || p.HeadingCount != 1 || len(p.Items) != 2 {
		t.Fatalf("unexpected plan: %+v", p)
	}
}

func TestCacheRoot(t *testing.T) {
	if got, err := CacheRoot("/tmp/cards"); err != nil || got != "/tmp/cards" {
		t.Fatalf("CacheRoot = %q, %v", got, err)
	}
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")
	got, err := CacheRoot("")
	if err != nil {
		t.Fatalf("CacheRoot returned error: %v", err)
	}
	if !strings.HasPrefix(got, "/tmp/xdg") || !strings.HasSuffix(got, filepath.Join("instant", "video", "title_cards")) {
		t.Fatalf("unexpected default root: %s", got)
	}
}

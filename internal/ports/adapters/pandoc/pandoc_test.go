package pandoc

import (
	"reflect"
	"testing"
)

func TestArgs(t *testing.T) {
	got := New("").args("input.md", "title.css", "/c/k/title.x.tmp.html")
	want := []string{
		"--from", "markdown", "--to", "html5", "--katex", "--standalone",
		"--metadata", "pagetitle=title", "--css", "title.css",
		"--output", "/c/k/title.x.tmp.html", "input.md",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("args mismatch:\n got %q\nwant %q", got, want)
	}
}

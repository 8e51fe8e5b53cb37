package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/forPelevin/mdvid/internal/diag"
	"github.com/forPelevin/mdvid/internal/domain/document"
	"github.com/forPelevin/mdvid/internal/domain/transcript"
)

type ConvertInput struct {
	Video      string
	Transcript string
	// Audio is an optional preprocessed audio track for the source.
	Audio   string
	OutPath string
	Force   bool
	Now     func() time.Time
}

// Convert writes a new annotated document with one segment per transcript
// cue. Paths in the front matter are relative to the document.
func (u Usecase) Convert(in ConvertInput) (string, error) {
	if in.Video == "" || in.Transcript == "" {
		return "", errors.New("convert needs a video and a transcript")
	}
	out := in.OutPath
	if out == "" {
		out = strings.TrimSuffix(in.Video, filepath.Ext(in.Video)) + ".md"
	}
	out, err := filepath.Abs(out)
	if err != nil {
		return "", diag.IO(in.OutPath, err)
	}
	if _, err := os.Stat(out); err == nil && !in.Force {
		return "", diag.OutputExists(out)
	}

	cues, err := transcript.Load(in.Transcript, document.DefaultSourceID)
	if err != nil {
		return "", err
	}
	sum, err := fileHash(in.Video)
	if err != nil {
		return "", err
	}
	now := time.Now
	if in.Now != nil {
		now = in.Now
	}

	dir := filepath.Dir(out)
	src := document.Source{
		ID:         document.DefaultSourceID,
		Name:       DisplayName(in.Video),
		Hash:       sum,
		Source:     relTo(dir, in.Video),
		Transcript: relTo(dir, in.Transcript),
	}
	if in.Audio != "" {
		src.Audio = relTo(dir, in.Audio)
	}
	md := document.Metadata{
		DefaultSource: document.DefaultSourceID,
		Sources:       []document.Source{src},
		GeneratedAt:   document.GeneratedAt(now()),
	}
	lines := make([]document.Line, 0, len(cues))
	for _, c := range cues {
		lines = append(lines, document.Line{Range: document.TimeRange{Start: c.Start, End: c.End}, Text: c.Text})
	}
	body, err := document.Compose(md, document.DefaultSourceID, lines)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(out, body, 0o644); err != nil {
		return "", diag.IO(out, err)
	}
	u.d.Logger.Info("document written", zap.String("path", out), zap.Int("segments", len(lines)))
	return out, nil
}

// DisplayName turns a file name like "my_talk-2024.mp4" into "My Talk 2024".
func DisplayName(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	stem = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(stem)
	return cases.Title(language.English).String(strings.Join(strings.Fields(stem), " "))
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", diag.IO(path, err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", diag.IO(path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func relTo(dir, p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	rel, err := filepath.Rel(dir, abs)
	if err != nil {
		return abs
	}
	if !strings.HasPrefix(rel, "..") {
		return "./" + filepath.ToSlash(rel)
	}
	return abs
}

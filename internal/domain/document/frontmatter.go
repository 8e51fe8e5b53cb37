package document

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/forPelevin/mdvid/internal/diag"
)

const fence = "---"

// legacyVideo is the single-source form older documents carry under `video:`.
type legacyVideo struct {
	Source     string `yaml:"source"`
	Name       string `yaml:"name"`
	Transcript string `yaml:"transcript"`
	Audio      string `yaml:"audio"`
	Hash       string `yaml:"hash"`
}

type rawMetadata struct {
	Metadata `yaml:",inline"`
	Video    *legacyVideo `yaml:"video,omitempty"`
}

var reYAMLLine = regexp.MustCompile(`line (\d+)`)

// splitFrontMatter separates a leading `---` fenced block from the body.
// bodyOffset is the byte offset of the body within src.
func splitFrontMatter(src []byte) (fm []byte, bodyOffset int, ok bool, err error) {
	first, _, found := bytes.Cut(src, []byte("\n"))
	if !isFence(first) {
		return nil, 0, false, nil
	}
	if !found {
		return nil, 0, false, diag.UnterminatedFrontMatter()
	}
	start := len(first) + 1
	for off := start; off < len(src); {
		line, _, more := bytes.Cut(src[off:], []byte("\n"))
		if isFence(line) {
			end := off + len(line)
			if more {
				end++
			}
			return src[start:off], end, true, nil
		}
		if !more {
			break
		}
		off += len(line) + 1
	}
	return nil, 0, false, diag.UnterminatedFrontMatter()
}

func isFence(line []byte) bool {
	return strings.TrimRight(string(line), " \t\r") == fence
}

func decodeFrontMatter(fm []byte) (Metadata, error) {
	var raw rawMetadata
	if len(bytes.TrimSpace(fm)) == 0 {
		return Metadata{}, nil
	}
	if err := yaml.Unmarshal(fm, &raw); err != nil {
		line := 1
		if m := reYAMLLine.FindStringSubmatch(err.Error()); m != nil {
			n, _ := strconv.Atoi(m[1])
			line += n
		}
		return Metadata{}, diag.InvalidFrontMatter(line, err)
	}
	md := raw.Metadata
	if raw.Video != nil && len(md.Sources) == 0 {
		md.Sources = []Source{{
			ID:         DefaultSourceID,
			Name:       raw.Video.Name,
			Hash:       raw.Video.Hash,
			Source:     raw.Video.Source,
			Transcript: raw.Video.Transcript,
			Audio:      raw.Video.Audio,
		}}
		if md.DefaultSource == "" {
			md.DefaultSource = DefaultSourceID
		}
	}
	for i, s := range md.Sources {
		if strings.TrimSpace(s.ID) == "" {
			return Metadata{}, diag.InvalidFrontMatter(1, fmt.Errorf("sources[%d]: id is required", i))
		}
		if strings.TrimSpace(s.Source) == "" {
			return Metadata{}, diag.InvalidFrontMatter(1, fmt.Errorf("source %q: source path is required", s.ID))
		}
	}
	if md.DefaultSource != "" && len(md.Sources) > 0 {
		if _, ok := md.Source(md.DefaultSource); !ok {
			return Metadata{}, diag.InvalidFrontMatter(1, fmt.Errorf("default_source %q is not declared", md.DefaultSource))
		}
	}
	return md, nil
}

// EncodeFrontMatter renders metadata as a fenced YAML block. Output always uses
// the multi-source form.
func EncodeFrontMatter(md Metadata) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(fence + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(md); err != nil {
		return nil, fmt.Errorf("encode front matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode front matter: %w", err)
	}
	buf.WriteString(fence + "\n")
	return buf.Bytes(), nil
}

// GeneratedAt formats t the way front matter records generation time.
func GeneratedAt(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

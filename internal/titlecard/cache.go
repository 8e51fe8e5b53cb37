package titlecard

import (
	"crypto/sha256"
	_ "embed"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// CSSVersion is part of every cache key; bump it when title.css changes.
const CSSVersion = "mocha-1"

//go:embed title.css
var stylesheet []byte

// Artifact names, in ladder order.
const (
	InputMD   = "input.md"
	TitleCSS  = "title.css"
	TitleHTML = "title.html"
	TitleJPG  = "title.jpg"
	TitleMP4  = "title.mp4"
	lockName  = ".lock"
)

var ladder = []string{InputMD, TitleCSS, TitleHTML, TitleJPG, TitleMP4}

type Mode string

const (
	ModeHeading  Mode = "heading"
	ModeMarkdown Mode = "markdown"
)

// DefaultRoot is <user-cache>/instant/video/title_cards.
func DefaultRoot() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("user cache dir: %w", err)
	}
	return filepath.Join(dir, "instant", "video", "title_cards"), nil
}

// Key is the hex SHA-256 naming a cache entry. level is ignored for
// ModeMarkdown.
func Key(mode Mode, level int, text string, width, height int, d time.Duration) string {
	h := sha256.New()
	h.Write([]byte(mode))
	h.Write([]byte{0})
	if mode == ModeHeading {
		h.Write([]byte(strconv.Itoa(level)))
	}
	h.Write([]byte{0})
	h.Write([]byte(text))
	h.Write([]byte{0})
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[:4], uint32(width))
	h.Write(buf[:4])
	binary.LittleEndian.PutUint32(buf[:4], uint32(height))
	h.Write(buf[:4])
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(d.Seconds()))
	h.Write(buf[:])
	h.Write([]byte(CSSVersion))
	return hex.EncodeToString(h.Sum(nil))
}

// tempPath keeps the extension so tools that pick a format by name still work.
func tempPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "." + uuid.NewString() + ".tmp" + ext
}

func writeAtomic(path string, data []byte) error {
	tmp := tempPath(path)
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func exists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Size() > 0
}

// Entry describes one cache directory.
type Entry struct {
	Key      string
	Dir      string
	Stage    string
	Size     int64
	Modified time.Time
}

// List returns the entries under root. A missing root is empty.
func List(root string) ([]Entry, error) {
	des, err := os.ReadDir(root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, de := range des {
		if !de.IsDir() {
			continue
		}
		e := Entry{Key: de.Name(), Dir: filepath.Join(root, de.Name())}
		for _, name := range ladder {
			st, err := os.Stat(filepath.Join(e.Dir, name))
			if err != nil {
				continue
			}
			e.Stage = name
			e.Size += st.Size()
			if st.ModTime().After(e.Modified) {
				e.Modified = st.ModTime()
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// Clear removes every entry not locked by a running generator and returns
// the removed and skipped counts.
func Clear(root string) (removed, skipped int, err error) {
	entries, err := List(root)
	if err != nil {
		return 0, 0, err
	}
	for _, e := range entries {
		lock := flock.New(filepath.Join(e.Dir, lockName))
		ok, err := lock.TryLock()
		if err != nil || !ok {
			skipped++
			continue
		}
		rmErr := os.RemoveAll(e.Dir)
		_ = lock.Unlock()
		if rmErr != nil {
			return removed, skipped, rmErr
		}
		removed++
	}
	return removed, skipped, nil
}

// Package config loads mdvid settings from a TOML file with MDVID_*
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Tools names the external binaries. Bare names are looked up on PATH.
type Tools struct {
	FFmpeg  string `toml:"ffmpeg"`
	FFprobe string `toml:"ffprobe"`
	Pandoc  string `toml:"pandoc"`
	Browser string `toml:"browser"`
}

type Render struct {
	Width       int     `toml:"width"`
	Height      int     `toml:"height"`
	FPS         float64 `toml:"fps"`
	MusicVolume float64 `toml:"music_volume"`
	Subtitles   string  `toml:"subtitles"`
}

type TitleCards struct {
	CacheDir        string  `toml:"cache_dir"`
	DurationSeconds float64 `toml:"duration_seconds"`
}

// Pause tunes how long standalone pause cards stay on screen.
type Pause struct {
	WPM        int     `toml:"wpm"`
	MinSeconds float64 `toml:"min_seconds"`
	MaxSeconds float64 `toml:"max_seconds"`
}

type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type Config struct {
	Tools      Tools      `toml:"tools"`
	Render     Render     `toml:"render"`
	TitleCards TitleCards `toml:"title_cards"`
	Pause      Pause      `toml:"pause"`
	Logging    Logging    `toml:"logging"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Tools: Tools{
			FFmpeg:  "ffmpeg",
			FFprobe: "ffprobe",
			Pandoc:  "pandoc",
			Browser: "chromium",
		},
		Render: Render{
			MusicVolume: 0.3,
			Subtitles:   "none",
		},
		TitleCards: TitleCards{DurationSeconds: 3},
		Pause: Pause{
			WPM:        180,
			MinSeconds: 5,
			MaxSeconds: 20,
		},
		Logging: Logging{Level: "info", Format: "console"},
	}
}

// DefaultConfigPath returns ~/.config/mdvid/config.toml.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/mdvid/config.toml")
}

// Load reads the config file at path, or the default location when path is
// empty, then applies environment overrides. A missing default file is not an
// error; a missing explicit one is. The resolved path and whether it existed
// are returned alongside the config.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, "", false, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", false, fmt.Errorf("config file %s does not exist", expanded)
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		if info.IsDir() {
			return "", false, fmt.Errorf("config path %s is a directory", expanded)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// applyEnv overrides file values with MDVID_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("MDVID_FFMPEG", &c.Tools.FFmpeg)
	str("MDVID_FFPROBE", &c.Tools.FFprobe)
	str("MDVID_PANDOC", &c.Tools.Pandoc)
	str("MDVID_BROWSER", &c.Tools.Browser)
	str("MDVID_CACHE_DIR", &c.TitleCards.CacheDir)
	str("MDVID_LOG_LEVEL", &c.Logging.Level)
	str("MDVID_LOG_FORMAT", &c.Logging.Format)

	if v, ok := lookup("MDVID_PAUSE_WPM"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("MDVID_PAUSE_WPM: %w", err)
		}
		c.Pause.WPM = n
	}
	return nil
}

func (c *Config) normalize() error {
	if c.TitleCards.CacheDir != "" {
		dir, err := expandPath(c.TitleCards.CacheDir)
		if err != nil {
			return err
		}
		c.TitleCards.CacheDir = dir
	}
	c.Render.Subtitles = strings.ToLower(strings.TrimSpace(c.Render.Subtitles))
	if c.Render.Subtitles == "" {
		c.Render.Subtitles = "none"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	return nil
}

// Validate reports settings that no render could use.
func (c *Config) Validate() error {
	if c.Render.Width < 0 || c.Render.Height < 0 {
		return fmt.Errorf("render: width and height must not be negative")
	}
	if (c.Render.Width == 0) != (c.Render.Height == 0) {
		return fmt.Errorf("render: width and height must be set together")
	}
	if c.Render.FPS < 0 {
		return fmt.Errorf("render: fps must not be negative")
	}
	if c.Render.MusicVolume < 0 {
		return fmt.Errorf("render: music_volume must not be negative")
	}
	switch c.Render.Subtitles {
	case "none", "sidecar", "burn":
	default:
		return fmt.Errorf("render: subtitles must be none, sidecar, or burn (got %q)", c.Render.Subtitles)
	}
	if c.TitleCards.DurationSeconds <= 0 {
		return fmt.Errorf("title_cards: duration_seconds must be > 0")
	}
	if c.Pause.WPM <= 0 {
		return fmt.Errorf("pause: wpm must be > 0")
	}
	if c.Pause.MinSeconds <= 0 || c.Pause.MaxSeconds < c.Pause.MinSeconds {
		return fmt.Errorf("pause: need 0 < min_seconds <= max_seconds")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging: format must be console or json (got %q)", c.Logging.Format)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

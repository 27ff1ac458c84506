// Package config loads gifsmith settings from config.toml and GIFSMITH_*
// environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/oukeidos/gifsmith/internal/formats"
	"github.com/oukeidos/gifsmith/internal/logger"
	"github.com/oukeidos/gifsmith/internal/pipeline"
)

const (
	DefaultProbeTimeout = 30 * time.Second
	MinProbeTimeout     = time.Second
	MaxProbeTimeout     = 5 * time.Minute
)

// Config represents the config.toml file after environment overrides.
type Config struct {
	Formats Formats `toml:"formats"`
	Tools   Tools   `toml:"tools"`
	GIF     GIF     `toml:"gif"`
	Log     Log     `toml:"log"`
}

type Formats struct {
	// Allowed lists the container IDs the validator accepts.
	Allowed []string `toml:"allowed" env:"GIFSMITH_FORMATS" envSeparator:","`
}

type Tools struct {
	FFmpeg       string        `toml:"ffmpeg" env:"GIFSMITH_FFMPEG"`
	FFprobe      string        `toml:"ffprobe" env:"GIFSMITH_FFPROBE"`
	ProbeTimeout time.Duration `toml:"probe-timeout" env:"GIFSMITH_PROBE_TIMEOUT"`
}

// GIF holds conversion defaults; command-line flags override them.
type GIF struct {
	FPS   int `toml:"fps" env:"GIFSMITH_FPS"`
	Width int `toml:"width" env:"GIFSMITH_WIDTH"`
	Loop  int `toml:"loop" env:"GIFSMITH_LOOP"`
}

type Log struct {
	Level string `toml:"level" env:"GIFSMITH_LOG_LEVEL"`
	File  string `toml:"file" env:"GIFSMITH_LOG_FILE"`
}

func Default() Config {
	return Config{
		Formats: Formats{Allowed: append([]string(nil), formats.DefaultAllowed...)},
		Tools:   Tools{ProbeTimeout: DefaultProbeTimeout},
		GIF:     GIF{FPS: pipeline.DefaultFPS},
		Log:     Log{Level: "info"},
	}
}

type Options struct {
	// Path is an explicit config file, which must exist. Empty means the
	// per-user file, which may be absent.
	Path string
	// Environment replaces the process environment when non-nil.
	Environment map[string]string
}

var userConfigDir = os.UserConfigDir

// DefaultPath returns the per-user config file location.
func DefaultPath() (string, error) {
	dir, err := userConfigDir()
	if err != nil {
		return "", fmt.Errorf("get config directory: %w", err)
	}
	return filepath.Join(dir, "gifsmith", "config.toml"), nil
}

// Load reads the config file, applies environment overrides, normalizes and
// validates the result. Normalization notes are returned for logging.
func Load(opts Options) (*Config, []string, error) {
	cfg := Default()

	path := opts.Path
	required := path != ""
	if !required {
		p, err := DefaultPath()
		if err != nil {
			logger.Debug("No per-user config directory", "error", err)
		}
		path = p
	}
	if path != "" {
		if err := decodeFile(path, required, &cfg); err != nil {
			return nil, nil, err
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Environment: opts.Environment}); err != nil {
		return nil, nil, fmt.Errorf("parse env: %w", err)
	}

	cfg, notes := cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, notes, err
	}
	return &cfg, notes, nil
}

func decodeFile(path string, required bool, cfg *Config) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) && !required {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	meta, err := toml.Decode(string(data), cfg)
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return fmt.Errorf("config file %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	logger.Debug("Loaded config file", "path", path)
	return nil
}

// Normalize applies safe bounds and defaults and returns any adjustments.
func (c Config) Normalize() (Config, []string) {
	var notes []string

	seen := map[string]bool{}
	var allowed []string
	for _, id := range c.Formats.Allowed {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		allowed = append(allowed, id)
	}
	if len(allowed) == 0 {
		notes = append(notes, "formats.allowed is empty; using defaults")
		allowed = append([]string(nil), formats.DefaultAllowed...)
	}
	c.Formats.Allowed = allowed

	c.Tools.FFmpeg = strings.TrimSpace(c.Tools.FFmpeg)
	c.Tools.FFprobe = strings.TrimSpace(c.Tools.FFprobe)
	switch {
	case c.Tools.ProbeTimeout <= 0:
		c.Tools.ProbeTimeout = DefaultProbeTimeout
	case c.Tools.ProbeTimeout < MinProbeTimeout:
		notes = append(notes, fmt.Sprintf("probe-timeout raised from %s to %s", c.Tools.ProbeTimeout, MinProbeTimeout))
		c.Tools.ProbeTimeout = MinProbeTimeout
	case c.Tools.ProbeTimeout > MaxProbeTimeout:
		notes = append(notes, fmt.Sprintf("probe-timeout lowered from %s to %s", c.Tools.ProbeTimeout, MaxProbeTimeout))
		c.Tools.ProbeTimeout = MaxProbeTimeout
	}

	if c.GIF.FPS == 0 {
		c.GIF.FPS = pipeline.DefaultFPS
	}
	if clamped, changed := pipeline.ClampFPS(c.GIF.FPS); changed {
		notes = append(notes, fmt.Sprintf("gif.fps clamped from %d to %d", c.GIF.FPS, clamped))
		c.GIF.FPS = clamped
	}
	if clamped, changed := pipeline.ClampWidth(c.GIF.Width); changed {
		notes = append(notes, fmt.Sprintf("gif.width clamped from %d to %d", c.GIF.Width, clamped))
		c.GIF.Width = clamped
	}
	if clamped, changed := pipeline.ClampLoop(c.GIF.Loop); changed {
		notes = append(notes, fmt.Sprintf("gif.loop clamped from %d to %d", c.GIF.Loop, clamped))
		c.GIF.Loop = clamped
	}

	if _, ok := logger.ParseLevel(c.Log.Level); !ok {
		notes = append(notes, fmt.Sprintf("log.level %q is unknown; using info", c.Log.Level))
		c.Log.Level = "info"
	}
	return c, notes
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if _, err := formats.NewRegistry(c.Formats.Allowed); err != nil {
		return fmt.Errorf("formats.allowed: %w", err)
	}
	return nil
}

// Registry builds the format allow-list.
func (c Config) Registry() (*formats.Registry, error) {
	return formats.NewRegistry(c.Formats.Allowed)
}

func (c Config) LogLevel() slog.Level {
	level, _ := logger.ParseLevel(c.Log.Level)
	return level
}

// GIFDefaults returns a pipeline config seeded with the [gif] section.
func (c Config) GIFDefaults() pipeline.Config {
	return pipeline.Config{FPS: c.GIF.FPS, Width: c.GIF.Width, Loop: c.GIF.Loop}
}

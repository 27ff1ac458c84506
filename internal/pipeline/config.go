package pipeline

import (
	"fmt"
	"math"
	"time"

	"github.com/oukeidos/gifsmith/internal/media"
)

// Config holds everything required to turn one validated video into a GIF.
type Config struct {
	Input media.ValidatedInput
	// OutputPath defaults to the input path with a .gif extension.
	OutputPath string

	FPS   int
	Width int // 0 keeps the source width
	Loop  int // 0 forever, -1 once, n repeats

	// Trim range. End of 0 means the end of the video.
	Start time.Duration
	End   time.Duration

	Overwrite bool // If true, overwrite output file without asking

	// OnProgress is called as ffmpeg reports encoded time.
	OnProgress func(Progress)

	// OnConfirmOverwrite is called when the output file exists.
	// It should return true if the file should be overwritten.
	OnConfirmOverwrite func(path string) bool
}

const (
	MinFPS     = 1
	MaxFPS     = 50 // GIF frame delays are in centiseconds
	DefaultFPS = 15

	MinWidth = 16
	MaxWidth = 3840

	MinLoop = -1
	MaxLoop = math.MaxUint16
)

func ClampFPS(value int) (int, bool) {
	if value < MinFPS {
		return MinFPS, true
	}
	if value > MaxFPS {
		return MaxFPS, true
	}
	return value, false
}

// ClampWidth keeps 0 (source width) as is and bounds everything else.
func ClampWidth(value int) (int, bool) {
	if value == 0 {
		return 0, false
	}
	if value < MinWidth {
		return MinWidth, true
	}
	if value > MaxWidth {
		return MaxWidth, true
	}
	return value, false
}

func ClampLoop(value int) (int, bool) {
	if value < MinLoop {
		return MinLoop, true
	}
	if value > MaxLoop {
		return MaxLoop, true
	}
	return value, false
}

// Normalize applies safe bounds to config values and returns any adjustments.
func (c Config) Normalize() (Config, []string) {
	var notes []string
	if c.FPS == 0 {
		c.FPS = DefaultFPS
	}
	if clamped, changed := ClampFPS(c.FPS); changed {
		notes = append(notes, fmt.Sprintf("fps clamped from %d to %d (range %d-%d)", c.FPS, clamped, MinFPS, MaxFPS))
		c.FPS = clamped
	}
	if clamped, changed := ClampWidth(c.Width); changed {
		notes = append(notes, fmt.Sprintf("width clamped from %d to %d (range %d-%d)", c.Width, clamped, MinWidth, MaxWidth))
		c.Width = clamped
	}
	if clamped, changed := ClampLoop(c.Loop); changed {
		notes = append(notes, fmt.Sprintf("loop clamped from %d to %d", c.Loop, clamped))
		c.Loop = clamped
	}

	if c.Input.IsZero() {
		return c, notes
	}
	md := c.Input.Metadata()
	if srcFPS := int(math.Ceil(md.FrameRate)); c.FPS > srcFPS {
		notes = append(notes, fmt.Sprintf("fps lowered from %d to source rate %d", c.FPS, srcFPS))
		c.FPS = srcFPS
	}
	if c.Width > md.Width {
		notes = append(notes, fmt.Sprintf("width lowered from %d to source width %d", c.Width, md.Width))
		c.Width = md.Width
	}
	if c.End > md.Duration {
		notes = append(notes, fmt.Sprintf("end lowered from %s to duration %s", c.End, md.Duration))
		c.End = md.Duration
	}
	return c, notes
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.Input.IsZero() {
		return fmt.Errorf("input is required")
	}
	if c.FPS <= 0 {
		return fmt.Errorf("fps must be greater than 0, got %d", c.FPS)
	}
	if c.Width < 0 {
		return fmt.Errorf("width must be 0 or greater, got %d", c.Width)
	}
	if c.Start < 0 {
		return fmt.Errorf("start must be 0 or greater, got %s", c.Start)
	}
	duration := c.Input.Metadata().Duration
	if c.Start >= duration {
		return fmt.Errorf("start %s is past the end of the video (%s)", c.Start, duration)
	}
	if c.End != 0 && c.End <= c.Start {
		return fmt.Errorf("end %s must be after start %s", c.End, c.Start)
	}
	return nil
}

// Span is the length of video that will be encoded.
func (c Config) Span() time.Duration {
	end := c.End
	if end == 0 && !c.Input.IsZero() {
		end = c.Input.Metadata().Duration
	}
	if end <= c.Start {
		return 0
	}
	return end - c.Start
}

// Package media holds the value types that flow from the input validator to
// the conversion pipeline.
package media

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Handle identifies an accepted source file. It records the size and
// modification time observed during validation so later stages can detect
// that the file changed underneath them.
type Handle struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Metadata describes the primary video stream of a source file.
type Metadata struct {
	Format     string // container format ID from the formats registry
	Codec      string
	Duration   time.Duration
	Width      int
	Height     int
	FrameRate  float64
	FrameCount int
	HasAudio   bool
}

// Validate reports the first field that downstream stages cannot work with.
func (m Metadata) Validate() error {
	switch {
	case m.Duration <= 0:
		return fmt.Errorf("duration must be positive, got %s", m.Duration)
	case m.Width <= 0 || m.Height <= 0:
		return fmt.Errorf("frame size must be positive, got %dx%d", m.Width, m.Height)
	case !(m.FrameRate > 0) || math.IsInf(m.FrameRate, 0):
		return fmt.Errorf("frame rate must be positive and finite, got %g", m.FrameRate)
	}
	return nil
}

// Resolution formats the frame size as "WxH".
func (m Metadata) Resolution() string {
	return fmt.Sprintf("%dx%d", m.Width, m.Height)
}

// ValidatedInput is a source file accepted by the validator. The zero value is
// never produced by validation; use NewValidatedInput.
type ValidatedInput struct {
	source   Handle
	metadata Metadata
}

// NewValidatedInput pairs a handle with metadata, rejecting inconsistent metadata.
func NewValidatedInput(source Handle, metadata Metadata) (ValidatedInput, error) {
	if source.Path == "" {
		return ValidatedInput{}, fmt.Errorf("source path is empty")
	}
	if err := metadata.Validate(); err != nil {
		return ValidatedInput{}, err
	}
	return ValidatedInput{source: source, metadata: metadata}, nil
}

func (v ValidatedInput) Source() Handle     { return v.source }
func (v ValidatedInput) Metadata() Metadata { return v.metadata }
func (v ValidatedInput) Path() string       { return v.source.Path }

// IsZero reports whether v was not produced by NewValidatedInput.
func (v ValidatedInput) IsZero() bool { return v.source.Path == "" }

// Prober extracts metadata from a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (Metadata, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, path string) (Metadata, error)

func (f ProberFunc) Probe(ctx context.Context, path string) (Metadata, error) {
	return f(ctx, path)
}

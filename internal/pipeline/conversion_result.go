package pipeline

import "time"

// ConversionStatus is the terminal state of a conversion run.
type ConversionStatus string

const (
	ConversionStatusSuccess  ConversionStatus = "Success"
	ConversionStatusFailure  ConversionStatus = "Failure"
	ConversionStatusCanceled ConversionStatus = "Canceled"
	ConversionStatusSkipped  ConversionStatus = "Skipped"
)

// ConversionResult contains structured outputs from RunConversion.
type ConversionResult struct {
	Status     ConversionStatus
	OutputPath string
	Bytes      int64
	Frames     int
	Elapsed    time.Duration
}

// Progress reports encoded media time against the trimmed span.
type Progress struct {
	Done  time.Duration
	Total time.Duration
}

// Fraction is Done/Total clamped to [0, 1].
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	f := float64(p.Done) / float64(p.Total)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

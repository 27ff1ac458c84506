package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/oukeidos/gifsmith/internal/apperrors"
	"github.com/oukeidos/gifsmith/internal/ffmpeg"
	"github.com/oukeidos/gifsmith/internal/files"
	"github.com/oukeidos/gifsmith/internal/logger"
)

// Encoder is the part of *ffmpeg.Encoder the pipeline depends on.
type Encoder interface {
	EncodeGIF(ctx context.Context, opts ffmpeg.GIFOptions) error
}

// LocateTools resolves ffmpeg and ffprobe, reporting a missing binary as a
// tool_missing error.
func LocateTools(ffmpegPath, ffprobePath string) (ffmpeg.Tools, error) {
	tools, err := ffmpeg.Locate(ffmpegPath, ffprobePath)
	if err != nil {
		return ffmpeg.Tools{}, apperrors.New(apperrors.KindToolMissing, "", err)
	}
	logger.Debug("Located tools", "ffmpeg", tools.FFmpeg, "ffprobe", tools.FFprobe)
	return tools, nil
}

// DefaultOutputPath places the GIF next to the input.
func DefaultOutputPath(inputPath string) string {
	return files.ReplaceExt(inputPath, ".gif")
}

// RunConversion executes the full conversion pipeline.
func RunConversion(ctx context.Context, cfg Config, enc Encoder) (ConversionResult, error) {
	var notes []string
	cfg, notes = cfg.Normalize()
	for _, note := range notes {
		logger.Warn("Config normalized", "detail", note)
	}
	if err := cfg.Validate(); err != nil {
		return ConversionResult{}, fmt.Errorf("invalid configuration: %w", err)
	}
	if enc == nil {
		return ConversionResult{}, fmt.Errorf("encoder is required")
	}

	// 1. Paths
	src := cfg.Input.Source()
	if cfg.OutputPath == "" {
		cfg.OutputPath = DefaultOutputPath(src.Path)
	}
	absIn, err := filepath.Abs(src.Path)
	if err != nil {
		return ConversionResult{}, fmt.Errorf("failed to resolve input path: %w", err)
	}
	absOut, err := filepath.Abs(cfg.OutputPath)
	if err != nil {
		return ConversionResult{}, fmt.Errorf("failed to resolve output path: %w", err)
	}
	if absIn == absOut {
		return ConversionResult{}, fmt.Errorf("input and output files are the same (%s)", absIn)
	}
	inInfo, err := os.Stat(absIn)
	if err != nil {
		return ConversionResult{}, apperrors.Unreachable("The video is no longer available.", err).WithPath(absIn)
	}
	if inInfo.Size() != src.Size || !inInfo.ModTime().Equal(src.ModTime) {
		return ConversionResult{}, apperrors.New(apperrors.KindConversion, "The video changed after it was opened. Open it again.", nil).WithPath(absIn)
	}
	if outInfo, err := os.Stat(absOut); err == nil {
		if os.SameFile(inInfo, outInfo) {
			return ConversionResult{}, fmt.Errorf("input and output files are the same (%s)", absIn)
		}
	} else if !os.IsNotExist(err) {
		return ConversionResult{}, fmt.Errorf("failed to stat output path: %w", err)
	}
	if err := files.RejectSymlinkPath(absOut); err != nil {
		return ConversionResult{}, err
	}

	// 2. Overwrite policy
	shouldOverwrite := cfg.Overwrite
	if _, err := os.Stat(absOut); err == nil {
		if !shouldOverwrite && cfg.OnConfirmOverwrite != nil {
			shouldOverwrite = cfg.OnConfirmOverwrite(absOut)
		}
		if !shouldOverwrite && cfg.OnConfirmOverwrite != nil {
			logger.Info("Output file exists. Aborted by user.", "path", absOut)
			return ConversionResult{Status: ConversionStatusSkipped}, nil
		}
		if shouldOverwrite {
			logger.Info("Overwriting output file", "path", absOut)
		}
	}
	effectiveOutput := absOut
	if !shouldOverwrite {
		safePath, changed, err := files.SafePath(absOut)
		if err != nil {
			return ConversionResult{}, fmt.Errorf("failed to resolve output path: %w", err)
		}
		if changed {
			logger.Warn("Output path adjusted to avoid overwrite", "original", absOut, "effective", safePath)
			effectiveOutput = safePath
		}
	}

	// 3. Encode into a temp sibling
	tmpPath, err := files.TempSibling(effectiveOutput)
	if err != nil {
		return ConversionResult{}, err
	}
	committed := false
	defer func() {
		if !committed {
			if rmErr := os.Remove(tmpPath); rmErr != nil && !os.IsNotExist(rmErr) {
				logger.Warn("Failed to remove partial output", "path", tmpPath, "error", rmErr)
			}
		}
	}()

	span := cfg.Span()
	opts := ffmpeg.GIFOptions{
		Input:  absIn,
		Output: tmpPath,
		FPS:    cfg.FPS,
		Width:  cfg.Width,
		Loop:   cfg.Loop,
		Start:  cfg.Start,
	}
	if cfg.End != 0 {
		opts.Duration = span
	}
	if cfg.OnProgress != nil {
		opts.OnProgress = func(done time.Duration) {
			cfg.OnProgress(Progress{Done: done, Total: span})
		}
	}

	logger.Info("Starting conversion",
		"input", absIn,
		"output", effectiveOutput,
		"fps", cfg.FPS,
		"width", cfg.Width,
		"span", span)
	started := time.Now()
	if err := enc.EncodeGIF(ctx, opts); err != nil {
		if ctx.Err() != nil {
			logger.Warn("Conversion canceled", "input", absIn)
			return ConversionResult{Status: ConversionStatusCanceled}, apperrors.New(apperrors.KindCanceled, "", ctx.Err())
		}
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return ConversionResult{Status: ConversionStatusFailure}, apperrors.New(apperrors.KindToolMissing, "", err)
		}
		logger.Error("Conversion failed", "input", absIn, "error", err)
		return ConversionResult{Status: ConversionStatusFailure}, apperrors.New(apperrors.KindConversion, "", err).WithPath(absIn)
	}

	// 4. Commit
	if err := files.Commit(tmpPath, effectiveOutput, 0o644); err != nil {
		return ConversionResult{Status: ConversionStatusFailure}, fmt.Errorf("failed to save output file: %w", err)
	}
	committed = true

	result := ConversionResult{
		Status:     ConversionStatusSuccess,
		OutputPath: effectiveOutput,
		Frames:     int(math.Round(span.Seconds() * float64(cfg.FPS))),
		Elapsed:    time.Since(started),
	}
	if info, err := os.Stat(effectiveOutput); err == nil {
		result.Bytes = info.Size()
	}
	logger.Info("Saved results", "path", effectiveOutput, "bytes", result.Bytes, "frames", result.Frames)
	return result, nil
}

// Package validate decides whether a candidate file can start a conversion
// session. It never touches session state.
package validate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/oukeidos/gifsmith/internal/apperrors"
	"github.com/oukeidos/gifsmith/internal/formats"
	"github.com/oukeidos/gifsmith/internal/logger"
	"github.com/oukeidos/gifsmith/internal/media"
)

// DefaultProbeTimeout bounds a single metadata probe.
const DefaultProbeTimeout = 30 * time.Second

// Reporter is the presentation context. It is told about rejections and
// nothing else. A canceled validation is not reported.
type Reporter interface {
	ReportFailure(failure *apperrors.Error)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(failure *apperrors.Error)

func (f ReporterFunc) ReportFailure(failure *apperrors.Error) { f(failure) }

// Outcome is either an accepted input or a rejection.
type Outcome struct {
	input   media.ValidatedInput
	failure *apperrors.Error
}

func Accept(input media.ValidatedInput) Outcome {
	return Outcome{input: input}
}

func Reject(failure *apperrors.Error) Outcome {
	if failure == nil {
		failure = apperrors.Malformed("", nil)
	}
	return Outcome{failure: failure}
}

func (o Outcome) Accepted() bool              { return o.failure == nil }
func (o Outcome) Input() media.ValidatedInput { return o.input }
func (o Outcome) Failure() *apperrors.Error   { return o.failure }

type Config struct {
	Registry     *formats.Registry
	Prober       media.Prober
	ProbeTimeout time.Duration
}

type Validator struct {
	registry *formats.Registry
	prober   media.Prober
	timeout  time.Duration
}

func New(cfg Config) (*Validator, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("format registry is required")
	}
	if cfg.Prober == nil {
		return nil, fmt.Errorf("prober is required")
	}
	timeout := cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Validator{registry: cfg.Registry, prober: cfg.Prober, timeout: timeout}, nil
}

// Validate runs the reachability, format and metadata checks in that order and
// stops at the first failure. reporter may be nil.
func (v *Validator) Validate(ctx context.Context, candidate string, reporter Reporter) Outcome {
	input, failure := v.check(ctx, candidate)
	if failure == nil {
		logger.Debug("Input accepted",
			"path", input.Path(),
			"format", input.Metadata().Format,
			"duration", input.Metadata().Duration,
			"resolution", input.Metadata().Resolution())
		return Accept(input)
	}

	logger.Info("Input rejected", "kind", string(failure.Kind), "path", failure.Path, "reason", failure.SafeMessage)
	if failure.Cause != nil {
		logger.Debug("Rejection cause", "kind", string(failure.Kind), "error", failure.Cause)
	}
	if reporter != nil && failure.Kind != apperrors.KindCanceled {
		reporter.ReportFailure(failure)
	}
	return Reject(failure)
}

func (v *Validator) check(ctx context.Context, candidate string) (media.ValidatedInput, *apperrors.Error) {
	path, err := ResolveCandidate(candidate)
	if err != nil {
		return media.ValidatedInput{}, apperrors.Unreachable("Only local files can be opened.", err).WithPath(candidate)
	}

	info, header, failure := readHeader(path)
	if failure != nil {
		return media.ValidatedInput{}, failure.WithPath(path)
	}

	format, ok := formats.Detect(path, header)
	if !ok {
		return media.ValidatedInput{}, apperrors.UnsupportedFormat("The file is not a recognized video.", nil).WithPath(path)
	}
	if !v.registry.Allowed(format.ID) {
		msg := fmt.Sprintf("%s files are not supported.", format.Label)
		return media.ValidatedInput{}, apperrors.UnsupportedFormat(msg, nil).WithPath(path)
	}

	if info.Size() == 0 {
		return media.ValidatedInput{}, apperrors.Malformed("The file is empty.", nil).WithPath(path)
	}

	probeCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	md, err := v.prober.Probe(probeCtx, path)
	if err != nil {
		// The caller giving up says nothing about the file.
		if ctx.Err() != nil {
			return media.ValidatedInput{}, apperrors.New(apperrors.KindCanceled, "Opening the file was canceled.", err).WithPath(path)
		}
		msg := ""
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "Reading the video took too long."
		}
		return media.ValidatedInput{}, apperrors.Malformed(msg, err).WithPath(path)
	}
	md.Format = format.ID

	input, err := media.NewValidatedInput(media.Handle{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, md)
	if err != nil {
		return media.ValidatedInput{}, apperrors.Malformed("", err).WithPath(path)
	}
	return input, nil
}

func readHeader(path string) (os.FileInfo, []byte, *apperrors.Error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, apperrors.Unreachable("The file does not exist.", err)
		}
		return nil, nil, apperrors.Unreachable("", err)
	}
	if !info.Mode().IsRegular() {
		return nil, nil, apperrors.Unreachable("The selection is not a regular file.", nil)
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return nil, nil, apperrors.Unreachable("Permission to read the file was denied.", err)
		}
		return nil, nil, apperrors.Unreachable("", err)
	}
	defer f.Close()

	header := make([]byte, formats.HeaderSize)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, nil, apperrors.Unreachable("The file could not be read.", err)
	}
	return info, header[:n], nil
}

// ResolveCandidate turns a chooser result (a path or a file:// URL) into a
// clean absolute path.
func ResolveCandidate(candidate string) (string, error) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return "", fmt.Errorf("empty candidate")
	}
	if strings.Contains(candidate, "://") {
		u, err := url.Parse(candidate)
		if err != nil {
			return "", fmt.Errorf("parse url: %w", err)
		}
		if u.Scheme != "file" {
			return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
		}
		if u.Host != "" && u.Host != "localhost" {
			return "", fmt.Errorf("remote file host %q", u.Host)
		}
		candidate = u.Path
		// file:///C:/x parses to /C:/x
		if runtime.GOOS == "windows" && len(candidate) > 2 && candidate[0] == '/' && candidate[2] == ':' {
			candidate = candidate[1:]
		}
		candidate = filepath.FromSlash(candidate)
	}
	abs, err := filepath.Abs(candidate)
	if err != nil {
		return "", err
	}
	return abs, nil
}

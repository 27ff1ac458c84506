package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/oukeidos/gifsmith/internal/apperrors"
	"github.com/oukeidos/gifsmith/internal/cleanup"
	"github.com/oukeidos/gifsmith/internal/config"
	"github.com/oukeidos/gifsmith/internal/ffmpeg"
	"github.com/oukeidos/gifsmith/internal/files"
	"github.com/oukeidos/gifsmith/internal/logger"
	"github.com/oukeidos/gifsmith/internal/validate"
)

// errReported marks failures the reporter already printed.
var errReported = errors.New("already reported")

type globalOptions struct {
	configPath string
	logFile    string
	debug      bool
}

// setup loads configuration and initializes logging for a command run.
func setup(opts *globalOptions) (*config.Config, error) {
	cfg, notes, err := config.Load(config.Options{Path: opts.configPath})
	if err != nil {
		return nil, err
	}

	logLevel := cfg.LogLevel()
	if opts.debug {
		logLevel = logger.LevelDebug
	}
	logPath := opts.logFile
	if logPath == "" {
		logPath = cfg.Log.File
	}
	var logFileW io.Writer
	if logPath != "" {
		if err := files.RejectSymlinkPath(logPath); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		cleanup.Register(f.Close)
		logFileW = f
	}
	logger.Init(logLevel, logFileW)

	for _, note := range notes {
		logger.Warn("Config normalized", "detail", note)
	}
	return cfg, nil
}

func newValidator(cfg *config.Config, ffprobePath string) (*validate.Validator, error) {
	reg, err := cfg.Registry()
	if err != nil {
		return nil, err
	}
	return validate.New(validate.Config{
		Registry:     reg,
		Prober:       ffmpeg.NewProber(ffprobePath),
		ProbeTimeout: cfg.Tools.ProbeTimeout,
	})
}

// cliReporter prints validation failures to the terminal.
type cliReporter struct {
	w       io.Writer
	palette palette
}

func (r cliReporter) ReportFailure(f *apperrors.Error) {
	fmt.Fprintln(r.w, r.palette.fail(kindLabel(f.Kind)+": ")+f.Error())
	if f.Path != "" {
		fmt.Fprintln(r.w, r.palette.muted("  "+logger.ShortenPath(f.Path)))
	}
}

func signalContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Warn("Cancellation requested")
		cancel()
	}()
	stop := func() {
		signal.Stop(sigCh)
		cancel()
	}
	return ctx, stop
}

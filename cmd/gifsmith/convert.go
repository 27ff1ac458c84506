package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/oukeidos/gifsmith/internal/apperrors"
	"github.com/oukeidos/gifsmith/internal/ffmpeg"
	"github.com/oukeidos/gifsmith/internal/logger"
	"github.com/oukeidos/gifsmith/internal/pipeline"
	"github.com/oukeidos/gifsmith/internal/prompt"
	"github.com/oukeidos/gifsmith/internal/session"
	"github.com/spf13/cobra"
)

type convertOptions struct {
	output string
	fps    int
	width  int
	loop   int
	start  time.Duration
	end    time.Duration
	yes    bool
}

func newConvertCmd(global *globalOptions) *cobra.Command {
	opts := convertOptions{}
	cmd := &cobra.Command{
		Use:   "convert <input video>",
		Short: "Convert a video to an animated GIF",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				_ = cmd.Usage()
				return fmt.Errorf("input file is required")
			}
			return runConvert(cmd, args, global, &opts)
		},
		SilenceUsage: true,
	}

	cmd.SetUsageTemplate(subcommandUsageTemplate)
	addConvertFlags(cmd, &opts)
	return cmd
}

func addConvertFlags(cmd *cobra.Command, opts *convertOptions) {
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output GIF path (default: <input>.gif)")
	cmd.Flags().IntVar(&opts.fps, "fps", pipeline.DefaultFPS, fmt.Sprintf("Frames per second (%d-%d)", pipeline.MinFPS, pipeline.MaxFPS))
	cmd.Flags().IntVar(&opts.width, "width", 0, "Output width in pixels (0 keeps the source width)")
	cmd.Flags().IntVar(&opts.loop, "loop", 0, "Loop count: 0 forever, -1 play once, n repeats")
	cmd.Flags().DurationVar(&opts.start, "start", 0, "Start of the clip (e.g. 1.5s)")
	cmd.Flags().DurationVar(&opts.end, "end", 0, "End of the clip (default: end of video)")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Overwrite output file without asking")
}

func runConvert(cmd *cobra.Command, args []string, global *globalOptions, opts *convertOptions) error {
	if len(args) > 1 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: expected 1 argument but got %d. Did you forget quotes around the file path?\n", len(args))
		fmt.Fprintf(cmd.ErrOrStderr(), "  Using input: %s\n", args[0])
	}

	cfg, err := setup(global)
	if err != nil {
		return err
	}
	// Flags the user did not set fall back to the [gif] section.
	if !cmd.Flags().Changed("fps") {
		opts.fps = cfg.GIF.FPS
	}
	if !cmd.Flags().Changed("width") {
		opts.width = cfg.GIF.Width
	}
	if !cmd.Flags().Changed("loop") {
		opts.loop = cfg.GIF.Loop
	}

	tools, err := pipeline.LocateTools(cfg.Tools.FFmpeg, cfg.Tools.FFprobe)
	if err != nil {
		return err
	}
	validator, err := newValidator(cfg, tools.FFprobe)
	if err != nil {
		return err
	}

	errOut := cmd.ErrOrStderr()
	controller, err := session.NewController(session.ControllerConfig{
		Validator: validator,
		Reporter:  cliReporter{w: errOut, palette: newPalette(errOut)},
	})
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	// The command line is the chooser: the argument is its result.
	if controller.RequestOpen() != session.OpenProceedToPick {
		return fmt.Errorf("a conversion is already in progress")
	}
	res := controller.OnFileChosen(ctx, args[0])
	switch res.Kind {
	case session.TransitionAdvance:
	case session.TransitionValidationFailed:
		return fmt.Errorf("%w: %v", errReported, res.Failure)
	default:
		if ctx.Err() != nil {
			logger.Warn("Open canceled", "path", args[0])
			return nil
		}
		return fmt.Errorf("input was not accepted (%s)", res.Kind)
	}
	defer controller.Reset()

	printInput(cmd.OutOrStdout(), res.Input.Metadata(), res.Input.Path())

	progress := newProgressPrinter(errOut)
	pcfg := pipeline.Config{
		Input:      res.Input,
		OutputPath: opts.output,
		FPS:        opts.fps,
		Width:      opts.width,
		Loop:       opts.loop,
		Start:      opts.start,
		End:        opts.end,
		Overwrite:  opts.yes,
		OnProgress: progress.update,
	}
	// Without a terminal to ask on, an existing output gets a numbered name.
	if !opts.yes && stdinIsTerminal() {
		pcfg.OnConfirmOverwrite = func(path string) bool {
			confirmed, err := prompt.DefaultConfirmer().ConfirmOverwrite(path, opts.yes)
			if err != nil {
				logger.Error("Overwrite confirmation failed", "error", err)
				return false
			}
			return confirmed
		}
	}

	result, err := pipeline.RunConversion(ctx, pcfg, ffmpeg.NewEncoder(tools.FFmpeg))
	progress.done()
	if err != nil {
		if kind, ok := apperrors.KindOf(err); ok && kind == apperrors.KindCanceled {
			logger.Warn("Conversion canceled")
			return nil
		}
		return err
	}
	if err := conversionStatusError(result); err != nil {
		return err
	}
	switch result.Status {
	case pipeline.ConversionStatusSuccess:
		printResult(cmd.OutOrStdout(), result)
	case pipeline.ConversionStatusSkipped:
		fmt.Fprintln(errOut, newPalette(errOut).muted("Skipped: the output file was kept."))
	}
	return nil
}

func conversionStatusError(result pipeline.ConversionResult) error {
	switch result.Status {
	case pipeline.ConversionStatusSuccess, pipeline.ConversionStatusSkipped, pipeline.ConversionStatusCanceled:
		return nil
	case pipeline.ConversionStatusFailure:
		return fmt.Errorf("conversion finished with status: %s", result.Status)
	default:
		return fmt.Errorf("conversion finished with unknown status: %q", result.Status)
	}
}

func printResult(w io.Writer, result pipeline.ConversionResult) {
	p := newPalette(w)
	fmt.Fprintf(w, "%s %s\n", p.ok("Saved"), result.OutputPath)
	fmt.Fprintf(w, "  %s %s, %d frames, %s\n",
		p.muted("size"), formatBytes(result.Bytes), result.Frames, result.Elapsed.Round(time.Millisecond))
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// progressPrinter redraws a single percentage line on terminals and logs
// coarse steps elsewhere.
type progressPrinter struct {
	w        io.Writer
	tty      bool
	lastStep int
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	tty := false
	if f, ok := w.(*os.File); ok {
		tty = isTerminal(int(f.Fd()))
	}
	return &progressPrinter{w: w, tty: tty, lastStep: -1}
}

func (p *progressPrinter) update(pr pipeline.Progress) {
	pct := int(pr.Fraction() * 100)
	if p.tty {
		fmt.Fprintf(p.w, "\rEncoding %3d%%", pct)
		return
	}
	if step := pct / 25; step != p.lastStep {
		p.lastStep = step
		logger.Info("Encoding", "percent", pct)
	}
}

func (p *progressPrinter) done() {
	if p.tty {
		fmt.Fprint(p.w, "\r\033[K")
	}
}

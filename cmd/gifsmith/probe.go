package main

import (
	"fmt"
	"io"
	"time"

	"github.com/oukeidos/gifsmith/internal/apperrors"
	"github.com/oukeidos/gifsmith/internal/ffmpeg"
	"github.com/oukeidos/gifsmith/internal/media"
	"github.com/spf13/cobra"
)

func newProbeCmd(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe <input video>",
		Short: "Validate a video and print its metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(cmd, args[0], global)
		},
		SilenceUsage: true,
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

func runProbe(cmd *cobra.Command, candidate string, global *globalOptions) error {
	cfg, err := setup(global)
	if err != nil {
		return err
	}
	ffprobePath, err := ffmpeg.LocateProbe(cfg.Tools.FFprobe)
	if err != nil {
		return apperrors.New(apperrors.KindToolMissing, "ffprobe was not found. Install ffmpeg or set tools.ffprobe in the configuration.", err)
	}
	validator, err := newValidator(cfg, ffprobePath)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	errOut := cmd.ErrOrStderr()
	outcome := validator.Validate(ctx, candidate, cliReporter{w: errOut, palette: newPalette(errOut)})
	if !outcome.Accepted() {
		if !outcome.Failure().IsValidation() {
			return outcome.Failure()
		}
		return fmt.Errorf("%w: %v", errReported, outcome.Failure())
	}
	printInput(cmd.OutOrStdout(), outcome.Input().Metadata(), outcome.Input().Path())
	return nil
}

func printInput(w io.Writer, md media.Metadata, path string) {
	p := newPalette(w)
	row := func(label, value string) {
		fmt.Fprintf(w, "  %s %s\n", p.label(fmt.Sprintf("%-11s", label)), value)
	}
	fmt.Fprintln(w, path)
	row("format", md.Format)
	row("codec", md.Codec)
	row("duration", md.Duration.Round(time.Millisecond).String())
	row("resolution", md.Resolution())
	row("frame rate", fmt.Sprintf("%.2f fps", md.FrameRate))
	row("frames", fmt.Sprintf("%d", md.FrameCount))
	audio := "no"
	if md.HasAudio {
		audio = "yes (dropped in GIF)"
	}
	row("audio", audio)
}

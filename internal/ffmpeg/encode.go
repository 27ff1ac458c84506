package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// GIFOptions controls a single GIF encode.
type GIFOptions struct {
	Input  string
	Output string
	FPS    int
	// Width of the output in pixels; 0 keeps the source width.
	Width int
	// Loop follows the gif muxer: 0 loops forever, -1 plays once, n repeats n times.
	Loop     int
	Start    time.Duration
	Duration time.Duration
	// OnProgress receives the encoded media time as ffmpeg reports it.
	OnProgress func(done time.Duration)
}

// Encoder produces GIFs with ffmpeg.
type Encoder struct {
	path string
}

func NewEncoder(ffmpegPath string) *Encoder {
	return &Encoder{path: ffmpegPath}
}

// EncodeGIF runs a two-stage palette encode. Output is overwritten.
func (e *Encoder) EncodeGIF(ctx context.Context, opts GIFOptions) error {
	cmd := exec.CommandContext(ctx, e.path, gifArgs(opts)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	readProgress(stdout, opts.OnProgress)

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		msg := lastLines(stderr.String(), 5)
		if msg == "" {
			return fmt.Errorf("ffmpeg failed: %w", err)
		}
		return fmt.Errorf("ffmpeg failed: %w: %s", err, msg)
	}
	return nil
}

func gifArgs(opts GIFOptions) []string {
	args := []string{"-hide_banner", "-nostdin", "-v", "error", "-y"}
	if opts.Start > 0 {
		args = append(args, "-ss", formatSeconds(opts.Start))
	}
	if opts.Duration > 0 {
		args = append(args, "-t", formatSeconds(opts.Duration))
	}
	args = append(args,
		"-i", opts.Input,
		"-filter_complex", gifFilter(opts.FPS, opts.Width),
		"-loop", strconv.Itoa(opts.Loop),
		"-progress", "pipe:1",
		"-nostats",
		"-f", "gif",
		opts.Output,
	)
	return args
}

func gifFilter(fps, width int) string {
	var chain []string
	if fps > 0 {
		chain = append(chain, "fps="+strconv.Itoa(fps))
	}
	if width > 0 {
		chain = append(chain, fmt.Sprintf("scale=%d:-1:flags=lanczos", width))
	}
	chain = append(chain, "split[a][b]")
	return "[0:v]" + strings.Join(chain, ",") +
		";[a]palettegen=stats_mode=diff[p]" +
		";[b][p]paletteuse=dither=bayer:bayer_scale=5:diff_mode=rectangle"
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func readProgress(r io.Reader, onProgress func(time.Duration)) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if onProgress == nil {
			continue
		}
		if done, ok := parseProgressLine(scanner.Text()); ok {
			onProgress(done)
		}
	}
	// Drain so ffmpeg never blocks on a full pipe after a scan error.
	_, _ = io.Copy(io.Discard, r)
}

// parseProgressLine reads the out_time_us/out_time_ms keys of -progress
// output. Both are microseconds.
func parseProgressLine(line string) (time.Duration, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok || (key != "out_time_us" && key != "out_time_ms") {
		return 0, false
	}
	us, err := strconv.ParseInt(value, 10, 64)
	if err != nil || us < 0 {
		return 0, false
	}
	return time.Duration(us) * time.Microsecond, true
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

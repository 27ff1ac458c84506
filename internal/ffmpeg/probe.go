package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/oukeidos/gifsmith/internal/media"
	"github.com/tidwall/gjson"
)

// Prober reads stream metadata with ffprobe.
type Prober struct {
	path string
}

func NewProber(ffprobePath string) *Prober {
	return &Prober{path: ffprobePath}
}

// Probe runs ffprobe against path. The returned Metadata has no Format; the
// caller knows which container it detected.
func (p *Prober) Probe(ctx context.Context, path string) (media.Metadata, error) {
	cmd := exec.CommandContext(ctx, p.path,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return media.Metadata{}, ctxErr
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return media.Metadata{}, fmt.Errorf("ffprobe failed: %w", err)
		}
		return media.Metadata{}, fmt.Errorf("ffprobe failed: %w: %s", err, msg)
	}
	return parseProbeJSON(stdout.Bytes())
}

func parseProbeJSON(data []byte) (media.Metadata, error) {
	if !gjson.ValidBytes(data) {
		return media.Metadata{}, fmt.Errorf("ffprobe returned invalid JSON")
	}
	doc := gjson.ParseBytes(data)

	var video gjson.Result
	hasAudio := false
	doc.Get("streams").ForEach(func(_, s gjson.Result) bool {
		switch s.Get("codec_type").String() {
		case "video":
			// Cover art is reported as a single-frame video stream.
			if !video.Exists() && s.Get("disposition.attached_pic").Int() != 1 {
				video = s
			}
		case "audio":
			hasAudio = true
		}
		return true
	})
	if !video.Exists() {
		return media.Metadata{}, fmt.Errorf("no video stream")
	}

	md := media.Metadata{
		Codec:    video.Get("codec_name").String(),
		Width:    int(video.Get("width").Int()),
		Height:   int(video.Get("height").Int()),
		HasAudio: hasAudio,
	}

	md.FrameRate = parseRate(video.Get("r_frame_rate").String())
	if md.FrameRate <= 0 {
		md.FrameRate = parseRate(video.Get("avg_frame_rate").String())
	}

	md.Duration = parseSeconds(doc.Get("format.duration").String())
	if md.Duration <= 0 {
		md.Duration = parseSeconds(video.Get("duration").String())
	}

	if n, err := strconv.Atoi(video.Get("nb_frames").String()); err == nil && n > 0 {
		md.FrameCount = n
	} else if md.FrameRate > 0 && md.Duration > 0 {
		md.FrameCount = int(math.Round(md.Duration.Seconds() * md.FrameRate))
	}
	return md, nil
}

// parseRate converts ffprobe rationals such as "30000/1001".
func parseRate(s string) float64 {
	num, den, found := strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	rate := n
	if found {
		d, err := strconv.ParseFloat(den, 64)
		if err != nil || d == 0 {
			return 0
		}
		rate = n / d
	}
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 {
		return 0
	}
	return rate
}

func parseSeconds(s string) time.Duration {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f <= 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}

package ffmpeg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

const sampleProbe = `{
  "streams": [
    {"index": 0, "codec_type": "audio", "codec_name": "aac"},
    {"index": 1, "codec_type": "video", "codec_name": "mjpeg", "width": 300, "height": 300,
     "r_frame_rate": "90000/1", "disposition": {"attached_pic": 1}},
    {"index": 2, "codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080,
     "r_frame_rate": "30000/1001", "avg_frame_rate": "30000/1001", "nb_frames": "300",
     "disposition": {"attached_pic": 0}}
  ],
  "format": {"format_name": "mov,mp4,m4a,3gp,3g2,mj2", "duration": "10.010000"}
}`

func TestParseProbeJSON(t *testing.T) {
	md, err := parseProbeJSON([]byte(sampleProbe))
	if err != nil {
		t.Fatalf("parseProbeJSON() error = %v", err)
	}
	if md.Codec != "h264" || md.Width != 1920 || md.Height != 1080 {
		t.Fatalf("picked wrong stream: %+v", md)
	}
	if md.FrameRate < 29.96 || md.FrameRate > 29.98 {
		t.Fatalf("FrameRate = %v", md.FrameRate)
	}
	if md.Duration != 10010*time.Millisecond {
		t.Fatalf("Duration = %v", md.Duration)
	}
	if md.FrameCount != 300 || !md.HasAudio {
		t.Fatalf("FrameCount/HasAudio = %d/%v", md.FrameCount, md.HasAudio)
	}
	if md.Format != "" {
		t.Fatalf("Format should be left to the caller, got %q", md.Format)
	}
}

func TestParseProbeJSON_Fallbacks(t *testing.T) {
	data := `{"streams":[{"codec_type":"video","codec_name":"vp9","width":640,"height":360,
	  "r_frame_rate":"0/0","avg_frame_rate":"25/1","duration":"2.0"}],"format":{}}`
	md, err := parseProbeJSON([]byte(data))
	if err != nil {
		t.Fatalf("parseProbeJSON() error = %v", err)
	}
	if md.FrameRate != 25 || md.Duration != 2*time.Second || md.FrameCount != 50 || md.HasAudio {
		t.Fatalf("unexpected metadata: %+v", md)
	}
}

func TestParseProbeJSON_Errors(t *testing.T) {
	cases := map[string]string{
		"invalid":    `{"streams": [`,
		"audio_only": `{"streams":[{"codec_type":"audio"}],"format":{"duration":"3"}}`,
		"cover_only": `{"streams":[{"codec_type":"video","disposition":{"attached_pic":1}}]}`,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := parseProbeJSON([]byte(data)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestParseRate(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"25/1", 25},
		{"24", 24},
		{"0/0", 0},
		{"1/0", 0},
		{"", 0},
		{"abc/1", 0},
		{"nan", 0},
		{"inf/1", 0},
		{"-Inf", 0},
		{"1/-0", 0},
		{"-30/1", 0},
	}
	for _, tc := range cases {
		if got := parseRate(tc.in); got != tc.want {
			t.Fatalf("parseRate(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseProgressLine(t *testing.T) {
	cases := []struct {
		line   string
		want   time.Duration
		wantOK bool
	}{
		{"out_time_us=1500000", 1500 * time.Millisecond, true},
		{"out_time_ms=2000000", 2 * time.Second, true},
		{"out_time=00:00:01.500000", 0, false},
		{"out_time_us=N/A", 0, false},
		{"progress=continue", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseProgressLine(tc.line)
		if got != tc.want || ok != tc.wantOK {
			t.Fatalf("parseProgressLine(%q) = (%v, %v), want (%v, %v)", tc.line, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestGIFArgs(t *testing.T) {
	args := gifArgs(GIFOptions{
		Input:    "in.mp4",
		Output:   "out.partial.gif",
		FPS:      12,
		Width:    480,
		Loop:     -1,
		Start:    1500 * time.Millisecond,
		Duration: 3 * time.Second,
	})
	joined := strings.Join(args, " ")
	for _, want := range []string{
		"-ss 1.500 -t 3.000 -i in.mp4",
		"[0:v]fps=12,scale=480:-1:flags=lanczos,split[a][b]",
		"palettegen",
		"-loop -1",
		"-progress pipe:1",
		"-f gif out.partial.gif",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args missing %q: %s", want, joined)
		}
	}
	if args[len(args)-1] != "out.partial.gif" {
		t.Fatalf("output must be the last argument: %v", args)
	}
}

func TestGIFArgs_NoTrimNoScale(t *testing.T) {
	joined := strings.Join(gifArgs(GIFOptions{Input: "in.mp4", Output: "o.gif"}), " ")
	if strings.Contains(joined, "-ss") || strings.Contains(joined, "-t ") || strings.Contains(joined, "scale=") {
		t.Fatalf("unexpected trim or scale: %s", joined)
	}
	if !strings.Contains(joined, "[0:v]split[a][b]") {
		t.Fatalf("filter should start with split: %s", joined)
	}
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestLocate(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts")
	}
	dir := t.TempDir()
	binDir := filepath.Join(dir, "bin")
	if err := os.Mkdir(binDir, 0o755); err != nil {
		t.Fatal(err)
	}
	bundledFFmpeg := writeScript(t, binDir, "ffmpeg", "exit 0\n")
	bundledFFprobe := writeScript(t, binDir, "ffprobe", "exit 0\n")

	prevExe, prevLook := executable, lookPath
	defer func() { executable, lookPath = prevExe, prevLook }()
	executable = func() (string, error) { return filepath.Join(dir, "gifsmith"), nil }
	lookPath = func(string) (string, error) { return "", errors.New("not on PATH") }

	t.Run("Bundled", func(t *testing.T) {
		tools, err := Locate("", "")
		if err != nil {
			t.Fatalf("Locate() error = %v", err)
		}
		if tools.FFmpeg != bundledFFmpeg || tools.FFprobe != bundledFFprobe {
			t.Fatalf("Locate() = %+v", tools)
		}
	})

	t.Run("ExplicitOverride", func(t *testing.T) {
		other := writeScript(t, dir, "my-ffprobe", "exit 0\n")
		got, err := LocateProbe(other)
		if err != nil || got != other {
			t.Fatalf("LocateProbe() = (%q, %v)", got, err)
		}
	})

	t.Run("MissingOverride", func(t *testing.T) {
		_, err := Locate(filepath.Join(dir, "nope"), "")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("Locate() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("NotExecutable", func(t *testing.T) {
		plain := filepath.Join(dir, "plain")
		if err := os.WriteFile(plain, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := LocateProbe(plain); !errors.Is(err, ErrNotFound) {
			t.Fatalf("LocateProbe() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("PathLookupFails", func(t *testing.T) {
		executable = func() (string, error) { return filepath.Join(t.TempDir(), "gifsmith"), nil }
		if _, err := LocateProbe(""); !errors.Is(err, ErrNotFound) {
			t.Fatalf("LocateProbe() error = %v, want ErrNotFound", err)
		}
	})
}

func TestProber_FakeScript(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts")
	}
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "probe.json")
	if err := os.WriteFile(jsonPath, []byte(sampleProbe), 0o644); err != nil {
		t.Fatal(err)
	}
	ok := writeScript(t, dir, "ffprobe-ok", "cat '"+jsonPath+"'\n")
	bad := writeScript(t, dir, "ffprobe-bad", "echo 'moov atom not found' >&2\nexit 1\n")

	md, err := NewProber(ok).Probe(context.Background(), "clip.mp4")
	if err != nil || md.Codec != "h264" {
		t.Fatalf("Probe() = (%+v, %v)", md, err)
	}

	_, err = NewProber(bad).Probe(context.Background(), "clip.mp4")
	if err == nil || !strings.Contains(err.Error(), "moov atom not found") {
		t.Fatalf("Probe() error = %v, want stderr in message", err)
	}
}

func TestEncoder_FakeScript(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts")
	}
	dir := t.TempDir()
	script := writeScript(t, dir, "ffmpeg", `for last; do :; done
printf 'GIF89a' > "$last"
echo out_time_us=500000
echo progress=continue
echo out_time_us=1000000
echo progress=end
`)
	out := filepath.Join(dir, "out.gif")
	var seen []time.Duration
	err := NewEncoder(script).EncodeGIF(context.Background(), GIFOptions{
		Input:      "in.mp4",
		Output:     out,
		OnProgress: func(d time.Duration) { seen = append(seen, d) },
	})
	if err != nil {
		t.Fatalf("EncodeGIF() error = %v", err)
	}
	if len(seen) != 2 || seen[1] != time.Second {
		t.Fatalf("progress = %v", seen)
	}
	data, err := os.ReadFile(out)
	if err != nil || string(data) != "GIF89a" {
		t.Fatalf("output = (%q, %v)", data, err)
	}
}

func TestEncoder_Canceled(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts")
	}
	script := writeScript(t, t.TempDir(), "ffmpeg", "exec sleep 10\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewEncoder(script).EncodeGIF(ctx, GIFOptions{Input: "in.mp4", Output: "o.gif"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("EncodeGIF() error = %v, want context.Canceled", err)
	}
}

package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/oukeidos/gifsmith/internal/apperrors"
	"github.com/oukeidos/gifsmith/internal/ffmpeg"
	"github.com/oukeidos/gifsmith/internal/media"
)

var testMetadata = media.Metadata{
	Format:    "mp4",
	Codec:     "h264",
	Duration:  10 * time.Second,
	Width:     1280,
	Height:    720,
	FrameRate: 29.97,
}

// validatedFile writes a stand-in video and returns it as a validated input.
func validatedFile(t *testing.T, dir, name string) media.ValidatedInput {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("not really a video"), 0o644); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	in, err := media.NewValidatedInput(media.Handle{Path: path, Size: info.Size(), ModTime: info.ModTime()}, testMetadata)
	if err != nil {
		t.Fatal(err)
	}
	return in
}

type fakeEncoder struct {
	got  ffmpeg.GIFOptions
	err  error
	body string
}

func (f *fakeEncoder) EncodeGIF(_ context.Context, opts ffmpeg.GIFOptions) error {
	f.got = opts
	if opts.OnProgress != nil {
		opts.OnProgress(time.Second)
	}
	if f.err != nil {
		return f.err
	}
	body := f.body
	if body == "" {
		body = "GIF89a"
	}
	return os.WriteFile(opts.Output, []byte(body), 0o600)
}

func TestRunConversion_Success(t *testing.T) {
	dir := t.TempDir()
	in := validatedFile(t, dir, "clip.mp4")
	enc := &fakeEncoder{}
	var progress []Progress

	res, err := RunConversion(context.Background(), Config{
		Input:      in,
		FPS:        12,
		Width:      480,
		Start:      2 * time.Second,
		End:        6 * time.Second,
		OnProgress: func(p Progress) { progress = append(progress, p) },
	}, enc)
	if err != nil {
		t.Fatalf("RunConversion() error = %v", err)
	}
	want := filepath.Join(dir, "clip.gif")
	if res.Status != ConversionStatusSuccess || res.OutputPath != want {
		t.Fatalf("result = %+v", res)
	}
	if res.Frames != 48 || res.Bytes != int64(len("GIF89a")) {
		t.Fatalf("frames/bytes = %d/%d", res.Frames, res.Bytes)
	}
	if enc.got.Output == want || !strings.Contains(filepath.Base(enc.got.Output), ".partial") {
		t.Fatalf("encoder should write to a temp sibling, got %q", enc.got.Output)
	}
	if enc.got.Start != 2*time.Second || enc.got.Duration != 4*time.Second {
		t.Fatalf("trim = %v+%v", enc.got.Start, enc.got.Duration)
	}
	if len(progress) != 1 || progress[0].Total != 4*time.Second || progress[0].Fraction() != 0.25 {
		t.Fatalf("progress = %+v", progress)
	}
	if _, err := os.Stat(enc.got.Output); !os.IsNotExist(err) {
		t.Fatalf("temp file should be gone after commit: %v", err)
	}
	info, err := os.Stat(want)
	if err != nil || info.Mode().Perm() != 0o644 {
		t.Fatalf("output stat = (%v, %v)", info, err)
	}
}

func TestRunConversion_ExistingOutput(t *testing.T) {
	tests := []struct {
		name       string
		overwrite  bool
		confirm    func(string) bool
		wantStatus ConversionStatus
		wantName   string
	}{
		{name: "safe_path", wantStatus: ConversionStatusSuccess, wantName: "clip_1.gif"},
		{name: "forced", overwrite: true, wantStatus: ConversionStatusSuccess, wantName: "clip.gif"},
		{name: "confirmed", confirm: func(string) bool { return true }, wantStatus: ConversionStatusSuccess, wantName: "clip.gif"},
		{name: "declined", confirm: func(string) bool { return false }, wantStatus: ConversionStatusSkipped},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			in := validatedFile(t, dir, "clip.mp4")
			existing := filepath.Join(dir, "clip.gif")
			if err := os.WriteFile(existing, []byte("old"), 0o644); err != nil {
				t.Fatal(err)
			}
			enc := &fakeEncoder{body: "new"}
			res, err := RunConversion(context.Background(), Config{
				Input:              in,
				Overwrite:          tt.overwrite,
				OnConfirmOverwrite: tt.confirm,
			}, enc)
			if err != nil {
				t.Fatalf("RunConversion() error = %v", err)
			}
			if res.Status != tt.wantStatus {
				t.Fatalf("Status = %s, want %s", res.Status, tt.wantStatus)
			}
			if tt.wantName == "" {
				if data, _ := os.ReadFile(existing); string(data) != "old" {
					t.Fatalf("declined overwrite modified output")
				}
				return
			}
			if filepath.Base(res.OutputPath) != tt.wantName {
				t.Fatalf("OutputPath = %s, want %s", res.OutputPath, tt.wantName)
			}
			if data, _ := os.ReadFile(res.OutputPath); string(data) != "new" {
				t.Fatalf("output content = %q", data)
			}
		})
	}
}

func TestRunConversion_Failures(t *testing.T) {
	dir := t.TempDir()
	in := validatedFile(t, dir, "clip.mp4")

	t.Run("encoder_error", func(t *testing.T) {
		enc := &fakeEncoder{err: errors.New("ffmpeg failed: exit status 1")}
		res, err := RunConversion(context.Background(), Config{Input: in}, enc)
		if kind, _ := apperrors.KindOf(err); kind != apperrors.KindConversion {
			t.Fatalf("error = %v, want conversion kind", err)
		}
		if res.Status != ConversionStatusFailure {
			t.Fatalf("Status = %s", res.Status)
		}
		assertNoPartials(t, dir)
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		enc := &fakeEncoder{err: context.Canceled}
		res, err := RunConversion(ctx, Config{Input: in}, enc)
		if kind, _ := apperrors.KindOf(err); kind != apperrors.KindCanceled {
			t.Fatalf("error = %v, want canceled kind", err)
		}
		if res.Status != ConversionStatusCanceled {
			t.Fatalf("Status = %s", res.Status)
		}
		assertNoPartials(t, dir)
	})

	t.Run("source_changed", func(t *testing.T) {
		changed := validatedFile(t, t.TempDir(), "moving.mp4")
		if err := os.WriteFile(changed.Path(), []byte("different length now"), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := RunConversion(context.Background(), Config{Input: changed}, &fakeEncoder{})
		if kind, _ := apperrors.KindOf(err); kind != apperrors.KindConversion {
			t.Fatalf("error = %v, want conversion kind", err)
		}
	})

	t.Run("same_file", func(t *testing.T) {
		_, err := RunConversion(context.Background(), Config{Input: in, OutputPath: in.Path()}, &fakeEncoder{})
		if err == nil || !strings.Contains(err.Error(), "input and output files are the same") {
			t.Fatalf("error = %v", err)
		}
	})

	t.Run("invalid_trim", func(t *testing.T) {
		_, err := RunConversion(context.Background(), Config{Input: in, Start: 5 * time.Second, End: 3 * time.Second}, &fakeEncoder{})
		if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
			t.Fatalf("error = %v", err)
		}
	})
}

func assertNoPartials(t *testing.T, dir string) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, ".*.partial*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Fatalf("partial files left behind: %v", matches)
	}
}

func TestConfigNormalize_FPSClamp(t *testing.T) {
	tests := []struct {
		name        string
		in          int
		want        int
		wantChanged bool
	}{
		{"default", 0, DefaultFPS, false},
		{"below_min", -3, MinFPS, true},
		{"above_max", MaxFPS + 5, MaxFPS, true},
		{"within_range", 10, 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{FPS: tt.in}
			gotCfg, notes := cfg.Normalize()
			if gotCfg.FPS != tt.want {
				t.Fatalf("Normalize() fps = %d, want %d", gotCfg.FPS, tt.want)
			}
			if tt.wantChanged && len(notes) == 0 {
				t.Fatalf("Normalize() expected notes for clamped value")
			}
			if !tt.wantChanged && len(notes) != 0 {
				t.Fatalf("Normalize() unexpected notes: %v", notes)
			}
		})
	}
}

func TestConfigNormalize_SourceBounds(t *testing.T) {
	in := validatedFile(t, t.TempDir(), "clip.mp4")
	cfg, notes := Config{Input: in, FPS: 45, Width: 2000, End: time.Minute}.Normalize()
	if cfg.FPS != 30 || cfg.Width != 1280 || cfg.End != 10*time.Second {
		t.Fatalf("Normalize() = fps %d width %d end %s", cfg.FPS, cfg.Width, cfg.End)
	}
	if len(notes) != 3 {
		t.Fatalf("notes = %v", notes)
	}
	if got := cfg.Span(); got != 10*time.Second {
		t.Fatalf("Span() = %s", got)
	}
}

func TestClampWidth(t *testing.T) {
	for _, tc := range []struct{ in, want int }{{0, 0}, {8, MinWidth}, {640, 640}, {9000, MaxWidth}} {
		if got, _ := ClampWidth(tc.in); got != tc.want {
			t.Fatalf("ClampWidth(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestProgressFraction(t *testing.T) {
	cases := []struct {
		p    Progress
		want float64
	}{
		{Progress{Done: time.Second, Total: 4 * time.Second}, 0.25},
		{Progress{Done: 5 * time.Second, Total: 4 * time.Second}, 1},
		{Progress{Done: time.Second}, 0},
	}
	for _, tc := range cases {
		if got := tc.p.Fraction(); got != tc.want {
			t.Fatalf("Fraction(%+v) = %v, want %v", tc.p, got, tc.want)
		}
	}
}

func TestDefaultOutputPath(t *testing.T) {
	if got := DefaultOutputPath(filepath.Join("a", "clip.final.mov")); got != filepath.Join("a", "clip.final.gif") {
		t.Fatalf("DefaultOutputPath() = %q", got)
	}
}

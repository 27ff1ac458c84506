package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"fyne.io/fyne/v2"

	"github.com/oukeidos/gifsmith/internal/apperrors"
	"github.com/oukeidos/gifsmith/internal/gate"
	"github.com/oukeidos/gifsmith/internal/media"
	"github.com/oukeidos/gifsmith/internal/pipeline"
	"github.com/oukeidos/gifsmith/internal/session"
	"github.com/oukeidos/gifsmith/internal/validate"
)

func editingState(t *testing.T) session.State {
	t.Helper()
	input, err := media.NewValidatedInput(
		media.Handle{Path: filepath.Join(t.TempDir(), "clip.mp4"), Size: 1024, ModTime: time.Now()},
		media.Metadata{Format: "mp4", Duration: 3 * time.Second, Width: 640, Height: 360, FrameRate: 30},
	)
	if err != nil {
		t.Fatalf("NewValidatedInput: %v", err)
	}
	return session.Editing(input)
}

func TestApplyGate(t *testing.T) {
	items := make(map[gate.ActionKind]*fyne.MenuItem)
	for _, kind := range gate.Actions() {
		items[kind] = fyne.NewMenuItem(kind.String(), nil)
	}

	cases := []struct {
		name     string
		state    session.State
		disabled []gate.ActionKind
	}{
		{name: "awaiting_input", state: session.AwaitingInput(), disabled: []gate.ActionKind{gate.ActionExport, gate.ActionBack}},
		{name: "editing", state: editingState(t), disabled: []gate.ActionKind{gate.ActionOpen}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			applyGate(items, tc.state)
			want := make(map[gate.ActionKind]bool)
			for _, kind := range tc.disabled {
				want[kind] = true
			}
			for kind, item := range items {
				if item.Disabled != want[kind] {
					t.Fatalf("%s disabled = %v, want %v", kind, item.Disabled, want[kind])
				}
			}
		})
	}
}

func TestParseExportForm(t *testing.T) {
	cases := []struct {
		name      string
		fps       string
		width     string
		loop      bool
		want      pipeline.Config
		wantError string
	}{
		{name: "defaults", fps: "15", width: "", loop: true, want: pipeline.Config{FPS: 15, Width: 0, Loop: 0}},
		{name: "play_once", fps: " 10 ", width: "320", loop: false, want: pipeline.Config{FPS: 10, Width: 320, Loop: -1}},
		{name: "bad_fps", fps: "fast", wantError: "FPS"},
		{name: "empty_fps", fps: "", wantError: "FPS"},
		{name: "bad_width", fps: "15", width: "wide", wantError: "width"},
		{name: "negative_width", fps: "15", width: "-1", wantError: "width"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseExportForm(tc.fps, tc.width, tc.loop)
			if tc.wantError != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantError) {
					t.Fatalf("expected error containing %q, got %v", tc.wantError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.FPS != tc.want.FPS || got.Width != tc.want.Width || got.Loop != tc.want.Loop {
				t.Fatalf("parseExportForm() = fps %d width %d loop %d, want fps %d width %d loop %d",
					got.FPS, got.Width, got.Loop, tc.want.FPS, tc.want.Width, tc.want.Loop)
			}
		})
	}
}

func TestExportOutcome(t *testing.T) {
	saved := pipeline.ConversionResult{
		Status:     pipeline.ConversionStatusSuccess,
		OutputPath: filepath.Join("videos", "clip.gif"),
		Frames:     30,
		Elapsed:    1200 * time.Millisecond,
	}
	cases := []struct {
		name      string
		result    pipeline.ConversionResult
		err       error
		wantTitle string
		wantMsg   string
	}{
		{name: "success", result: saved, wantTitle: "GIF Saved", wantMsg: "30 frames"},
		{name: "skipped", result: pipeline.ConversionResult{Status: pipeline.ConversionStatusSkipped}},
		{
			name:   "canceled",
			result: pipeline.ConversionResult{Status: pipeline.ConversionStatusCanceled},
			err:    apperrors.New(apperrors.KindCanceled, "", context.Canceled),
		},
		{
			name:      "tool_missing",
			result:    pipeline.ConversionResult{Status: pipeline.ConversionStatusFailure},
			err:       apperrors.New(apperrors.KindToolMissing, "", nil),
			wantTitle: "ffmpeg Not Found",
			wantMsg:   "ffmpeg",
		},
		{
			name:      "plain_error",
			result:    pipeline.ConversionResult{Status: pipeline.ConversionStatusFailure},
			err:       fmt.Errorf("encode: %w", errors.New("disk full")),
			wantTitle: "Conversion Failed",
			wantMsg:   "disk full",
		},
		{
			name:      "failure_status_without_error",
			result:    pipeline.ConversionResult{Status: pipeline.ConversionStatusFailure},
			wantTitle: "Conversion Failed",
			wantMsg:   "Failure",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			title, msg := exportOutcome(tc.result, tc.err)
			if title != tc.wantTitle {
				t.Fatalf("title = %q, want %q", title, tc.wantTitle)
			}
			if !strings.Contains(msg, tc.wantMsg) {
				t.Fatalf("message %q does not contain %q", msg, tc.wantMsg)
			}
		})
	}
}

func TestReadLogTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gifsmith-gui.log")
	if err := os.WriteFile(path, []byte("line1\nline2\nline3\n"), 0600); err != nil {
		t.Fatalf("write log: %v", err)
	}

	t.Run("whole_file", func(t *testing.T) {
		got, err := readLogTail(path, maxLogView)
		if err != nil {
			t.Fatalf("readLogTail: %v", err)
		}
		if got != "line1\nline2\nline3\n" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("tail_starts_at_line", func(t *testing.T) {
		got, err := readLogTail(path, 8)
		if err != nil {
			t.Fatalf("readLogTail: %v", err)
		}
		if got != "line3\n" {
			t.Fatalf("got %q, want %q", got, "line3\n")
		}
	})

	t.Run("missing", func(t *testing.T) {
		if _, err := readLogTail(filepath.Join(t.TempDir(), "nope.log"), maxLogView); err == nil {
			t.Fatalf("expected error for missing log")
		}
	})
}

func TestActiveCancelReplacesPrevious(t *testing.T) {
	a := &gifsmithApp{}
	first, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()
	a.setActiveCancel(cancelFirst)

	second, cancelSecond := context.WithCancel(context.Background())
	defer cancelSecond()
	id := a.setActiveCancel(cancelSecond)

	if first.Err() == nil {
		t.Fatalf("registering a new job should cancel the previous one")
	}
	a.clearActiveCancel(id)
	a.cancelActive("test")
	if second.Err() != nil {
		t.Fatalf("cleared job should not be canceled")
	}
}

// gatedValidator accepts every candidate, holding the first call until
// release is closed.
type gatedValidator struct {
	t        *testing.T
	entered  chan struct{}
	release  chan struct{}
	calls    atomic.Int32
	canceled atomic.Bool
}

func (g *gatedValidator) Validate(ctx context.Context, candidate string, _ validate.Reporter) validate.Outcome {
	if g.calls.Add(1) == 1 {
		close(g.entered)
		<-g.release
	}
	if ctx.Err() != nil {
		g.canceled.Store(true)
	}
	input, err := media.NewValidatedInput(
		media.Handle{Path: candidate, Size: 1024, ModTime: time.Now()},
		media.Metadata{Format: "mp4", Duration: 3 * time.Second, Width: 640, Height: 360, FrameRate: 30},
	)
	if err != nil {
		g.t.Errorf("NewValidatedInput: %v", err)
	}
	return validate.Accept(input)
}

func TestHandleChosen_OverlappingChoicesKeepFirst(t *testing.T) {
	v := &gatedValidator{t: t, entered: make(chan struct{}), release: make(chan struct{})}
	var reported atomic.Int32
	controller, err := session.NewController(session.ControllerConfig{
		Validator: v,
		Reporter:  validate.ReporterFunc(func(*apperrors.Error) { reported.Add(1) }),
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	a := &gifsmithApp{controller: controller, ctx: context.Background()}

	first := filepath.Join(t.TempDir(), "first.mp4")
	second := filepath.Join(t.TempDir(), "second.mp4")

	a.handleChosen(first)
	select {
	case <-v.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("first validation did not start")
	}
	// The second choice arrives while the first is still being checked.
	if res := controller.RequestOpen(); res != session.OpenProceedToPick {
		t.Fatalf("RequestOpen() during validation = %v", res)
	}
	a.handleChosen(second)
	if got := a.pendingChecks(); got != 2 {
		t.Fatalf("pending checks = %d, want 2", got)
	}
	close(v.release)

	deadline := time.Now().Add(2 * time.Second)
	for a.pendingChecks() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("validations did not finish, %d pending", a.pendingChecks())
		}
		time.Sleep(5 * time.Millisecond)
	}

	if v.canceled.Load() {
		t.Fatalf("first validation was canceled by the second choice")
	}
	if v.calls.Load() != 1 {
		t.Fatalf("validator calls = %d, want 1", v.calls.Load())
	}
	if reported.Load() != 0 {
		t.Fatalf("reporter called %d times", reported.Load())
	}
	input, ok := controller.State().Input()
	if !ok || input.Path() != first {
		t.Fatalf("state = %v, want editing(%s)", controller.State(), first)
	}
}

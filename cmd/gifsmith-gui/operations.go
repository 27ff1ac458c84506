package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/oukeidos/gifsmith/internal/apperrors"
	"github.com/oukeidos/gifsmith/internal/gate"
	"github.com/oukeidos/gifsmith/internal/logger"
	"github.com/oukeidos/gifsmith/internal/pipeline"
	"github.com/oukeidos/gifsmith/internal/session"
	"github.com/oukeidos/gifsmith/internal/version"
)

const maxLogView = 64 << 10

func (a *gifsmithApp) setActiveCancel(cancel context.CancelFunc) uint64 {
	a.cancelMu.Lock()
	if a.activeCancel != nil {
		a.activeCancel()
	}
	a.activeCancel = cancel
	a.activeCancelID++
	id := a.activeCancelID
	a.cancelMu.Unlock()
	return id
}

func (a *gifsmithApp) clearActiveCancel(id uint64) {
	a.cancelMu.Lock()
	if a.activeCancelID == id {
		a.activeCancel = nil
	}
	a.cancelMu.Unlock()
}

func (a *gifsmithApp) cancelActive(reason string) {
	a.cancelMu.Lock()
	cancel := a.activeCancel
	a.activeCancel = nil
	a.cancelMu.Unlock()
	if cancel != nil {
		logger.Warn("Cancellation requested", "reason", reason)
		cancel()
	}
}

func (a *gifsmithApp) openFile() {
	if res := a.controller.RequestOpen(); res != session.OpenProceedToPick {
		logger.Debug("Open ignored", "result", res)
		return
	}
	a.showFilePicker()
}

// handleDropped treats a drop as an open request whose chooser already returned.
func (a *gifsmithApp) handleDropped(uri fyne.URI) {
	if res := a.controller.RequestOpen(); res != session.OpenProceedToPick {
		logger.Debug("Drop ignored", "result", res)
		return
	}
	a.handleChosen(candidateFromURI(uri))
}

func (a *gifsmithApp) handleChosen(candidate string) {
	if candidate == "" {
		a.controller.OnFileChosen(context.Background(), "")
		return
	}

	a.beginCheck(candidate)
	a.safeGo("ops.validate", func() {
		defer a.endCheck()
		res := a.controller.OnFileChosen(a.ctx, candidate)
		logger.Debug("Chooser result handled", "result", res.Kind, "path", candidate)
	})
}

func (a *gifsmithApp) beginCheck(candidate string) {
	a.checkMu.Lock()
	a.checks++
	a.checkMu.Unlock()
	a.showChecking(candidate)
}

// endCheck hides the checking view once the last pending validation is done.
func (a *gifsmithApp) endCheck() {
	a.checkMu.Lock()
	a.checks--
	last := a.checks == 0
	a.checkMu.Unlock()
	if last {
		a.hideChecking()
	}
}

func (a *gifsmithApp) pendingChecks() int {
	a.checkMu.Lock()
	defer a.checkMu.Unlock()
	return a.checks
}

// shutdown cancels pending validations and the running export.
func (a *gifsmithApp) shutdown(reason string) {
	if a.stop != nil {
		a.stop()
	}
	a.cancelActive(reason)
}

// reportFailure runs on the validation goroutine.
func (a *gifsmithApp) reportFailure(failure *apperrors.Error) {
	title := failureTitle(failure.Kind)
	msg := failure.Error()
	if failure.Path != "" {
		msg += "\n\n" + displayName(failure.Path, nameWidth)
	}
	a.safeDo("ops.validate.report", func() {
		dialog.ShowInformation(title, msg, a.window)
	})
}

func (a *gifsmithApp) back() {
	a.cancelActive("back")
	a.controller.Reset()
}

func (a *gifsmithApp) startExport() {
	st := a.controller.State()
	input, ok := st.Input()
	if !ok || !gate.IsPermitted(gate.ActionExport, st) {
		return
	}

	cfg, err := parseExportForm(a.fpsEntry.Text, a.widthEntry.Text, a.loopCheck.Checked)
	if err != nil {
		dialog.ShowError(err, a.window)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	cfg.Input = input
	cfg.OnProgress = func(p pipeline.Progress) {
		frac := p.Fraction()
		a.safeDo("ops.export.progress", func() { a.progress.SetValue(frac) })
	}
	cfg.OnConfirmOverwrite = a.confirmOverwrite(ctx)

	a.setExporting(true)
	cancelID := a.setActiveCancel(cancel)
	a.safeGo("ops.export", func() {
		defer a.clearActiveCancel(cancelID)
		result, err := pipeline.RunConversion(ctx, cfg, a.encoder)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Export failed", "error", err)
		}
		title, msg := exportOutcome(result, err)
		a.safeDo("ops.export.done", func() {
			a.setExporting(false)
			if result.Status == pipeline.ConversionStatusSuccess {
				a.progress.SetValue(1)
			}
			if title != "" {
				dialog.ShowInformation(title, msg, a.window)
			}
		})
	})
}

// confirmOverwrite asks on the main thread and blocks the conversion until
// the user answers or the job is canceled.
func (a *gifsmithApp) confirmOverwrite(ctx context.Context) func(string) bool {
	return func(path string) bool {
		answer := make(chan bool, 1)
		a.safeDo("ops.export.confirm", func() {
			dialog.ShowConfirm("Replace File?",
				fmt.Sprintf("%s already exists. Replace it?", displayName(path, nameWidth)),
				func(ok bool) { answer <- ok },
				a.window)
		})
		select {
		case ok := <-answer:
			return ok
		case <-ctx.Done():
			return false
		}
	}
}

func (a *gifsmithApp) showAbout() {
	form := widget.NewForm(
		widget.NewFormItem("App", widget.NewLabel("gifsmith")),
		widget.NewFormItem("Version", widget.NewLabel(version.Version)),
		widget.NewFormItem("Commit", widget.NewLabel(version.Commit)),
		widget.NewFormItem("Build", widget.NewLabel(version.BuildDate)),
		widget.NewFormItem("Session", widget.NewLabel(a.controller.ID())),
	)
	dialog.ShowCustom("About", "Close", form, a.window)
}

// applyGate enables exactly the menu items the gate permits in st.
func applyGate(items map[gate.ActionKind]*fyne.MenuItem, st session.State) {
	for kind, item := range items {
		item.Disabled = !gate.IsPermitted(kind, st)
	}
}

// parseExportForm reads the edit form. An empty width keeps the source width.
func parseExportForm(fpsText, widthText string, loopForever bool) (pipeline.Config, error) {
	var cfg pipeline.Config
	fps, err := strconv.Atoi(strings.TrimSpace(fpsText))
	if err != nil {
		return cfg, fmt.Errorf("FPS must be a whole number")
	}
	cfg.FPS = fps

	if w := strings.TrimSpace(widthText); w != "" {
		width, err := strconv.Atoi(w)
		if err != nil || width < 0 {
			return cfg, fmt.Errorf("width must be a positive whole number or empty")
		}
		cfg.Width = width
	}

	cfg.Loop = -1
	if loopForever {
		cfg.Loop = 0
	}
	return cfg, nil
}

// exportOutcome maps a finished conversion to a dialog. An empty title means
// nothing needs to be shown.
func exportOutcome(result pipeline.ConversionResult, err error) (string, string) {
	if err != nil {
		kind, _ := apperrors.KindOf(err)
		if kind == apperrors.KindCanceled || errors.Is(err, context.Canceled) {
			return "", ""
		}
		return failureTitle(kind), apperrors.PublicMessage(err)
	}
	switch result.Status {
	case pipeline.ConversionStatusSuccess:
		return "GIF Saved", fmt.Sprintf("%s\n%d frames in %s",
			displayName(result.OutputPath, nameWidth), result.Frames, result.Elapsed.Round(100*time.Millisecond))
	case pipeline.ConversionStatusSkipped, pipeline.ConversionStatusCanceled:
		return "", ""
	default:
		return failureTitle(apperrors.KindConversion), fmt.Sprintf("Conversion finished with status: %s", result.Status)
	}
}

// readLogTail returns at most max bytes from the end of the log, starting at
// a line boundary.
func readLogTail(path string, max int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	offset := int64(0)
	if info.Size() > max {
		offset = info.Size() - max
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return "", err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	text := string(data)
	if offset > 0 {
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			text = text[i+1:]
		}
	}
	return text, nil
}

func joinExts(exts []string) string {
	return strings.Join(exts, " ")
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/oukeidos/gifsmith/internal/cleanup"
	"github.com/oukeidos/gifsmith/internal/config"
	"github.com/oukeidos/gifsmith/internal/ffmpeg"
	"github.com/oukeidos/gifsmith/internal/files"
	"github.com/oukeidos/gifsmith/internal/formats"
	"github.com/oukeidos/gifsmith/internal/gate"
	"github.com/oukeidos/gifsmith/internal/logger"
	"github.com/oukeidos/gifsmith/internal/pipeline"
	"github.com/oukeidos/gifsmith/internal/session"
	"github.com/oukeidos/gifsmith/internal/validate"
)

const nameWidth = 40

type gifsmithApp struct {
	window     fyne.Window
	config     *config.Config
	registry   *formats.Registry
	controller *session.Controller
	encoder    pipeline.Encoder
	logPath    string

	mainMenu  *fyne.MainMenu
	menuItems map[gate.ActionKind]*fyne.MenuItem

	// Views
	content      *fyne.Container
	idleView     fyne.CanvasObject
	checkingView fyne.CanvasObject
	editView     fyne.CanvasObject

	checkingLabel *widget.Label
	nameLabel     *widget.Label
	infoLabel     *widget.Label
	fpsEntry      *widget.Entry
	widthEntry    *widget.Entry
	loopCheck     *widget.Check
	progress      *widget.ProgressBar
	exportBtn     *widget.Button
	cancelBtn     *widget.Button
	backBtn       *widget.Button

	// Validations run under ctx, canceled only when the app goes away.
	// A second chooser result waits for the first in the controller.
	ctx     context.Context
	stop    context.CancelFunc
	checkMu sync.Mutex
	checks  int

	cancelMu        sync.Mutex
	activeCancel    context.CancelFunc
	activeCancelID  uint64
	panicNoticeOnce sync.Once
}

func newGifsmithApp(w fyne.Window, cfg *config.Config, tools ffmpeg.Tools, logPath string) (*gifsmithApp, error) {
	reg, err := cfg.Registry()
	if err != nil {
		return nil, err
	}
	a := &gifsmithApp{
		window:   w,
		config:   cfg,
		registry: reg,
		encoder:  ffmpeg.NewEncoder(tools.FFmpeg),
		logPath:  logPath,
	}
	a.ctx, a.stop = context.WithCancel(context.Background())

	validator, err := validate.New(validate.Config{
		Registry:     reg,
		Prober:       ffmpeg.NewProber(tools.FFprobe),
		ProbeTimeout: cfg.Tools.ProbeTimeout,
	})
	if err != nil {
		return nil, err
	}
	a.controller, err = session.NewController(session.ControllerConfig{
		Validator: validator,
		Reporter:  validate.ReporterFunc(a.reportFailure),
		OnChange: func(st session.State) {
			a.safeDo("app.state_changed", func() { a.render(st) })
		},
	})
	if err != nil {
		return nil, err
	}

	a.setupMenu()
	a.setupUI()
	a.render(a.controller.State())
	return a, nil
}

func (a *gifsmithApp) setupMenu() {
	item := func(kind gate.ActionKind, label string, fn func()) *fyne.MenuItem {
		mi := fyne.NewMenuItem(label, func() {
			// Items can be triggered by shortcuts before a refresh lands.
			if !gate.IsPermitted(kind, a.controller.State()) {
				logger.Debug("Action not permitted", "action", kind, "state", a.controller.State())
				return
			}
			fn()
		})
		a.menuItems[kind] = mi
		return mi
	}
	a.menuItems = make(map[gate.ActionKind]*fyne.MenuItem)

	quit := item(gate.ActionQuit, "Quit", a.quit)
	quit.IsQuit = true

	file := fyne.NewMenu("File",
		item(gate.ActionOpen, "Open…", a.openFile),
		item(gate.ActionExport, "Export GIF", a.startExport),
		item(gate.ActionBack, "Close Video", a.back),
		fyne.NewMenuItemSeparator(),
		quit,
	)
	help := fyne.NewMenu("Help",
		item(gate.ActionFormats, "Supported Formats", a.showFormats),
		item(gate.ActionShowLogs, "Show Logs", a.showLogs),
		item(gate.ActionAbout, "About gifsmith", a.showAbout),
	)
	a.mainMenu = fyne.NewMainMenu(file, help)
	a.window.SetMainMenu(a.mainMenu)
}

func (a *gifsmithApp) setupUI() {
	openBtn := widget.NewButtonWithIcon("Open Video…", theme.FolderOpenIcon(), func() {
		if gate.IsPermitted(gate.ActionOpen, a.controller.State()) {
			a.openFile()
		}
	})
	openBtn.Importance = widget.HighImportance
	hint := widget.NewLabelWithStyle("or drop a video onto this window", fyne.TextAlignCenter, fyne.TextStyle{Italic: true})
	a.idleView = container.NewCenter(container.NewVBox(openBtn, hint))

	a.checkingLabel = widget.NewLabelWithStyle("", fyne.TextAlignCenter, fyne.TextStyle{})
	a.checkingView = container.NewCenter(container.NewVBox(widget.NewProgressBarInfinite(), a.checkingLabel))

	a.editView = a.createEditView()

	a.content = container.NewStack(a.idleView, a.checkingView, a.editView)
	a.window.SetContent(a.content)
}

func (a *gifsmithApp) createEditView() fyne.CanvasObject {
	a.nameLabel = widget.NewLabelWithStyle("", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	a.infoLabel = widget.NewLabel("")

	a.fpsEntry = widget.NewEntry()
	a.widthEntry = widget.NewEntry()
	a.widthEntry.SetPlaceHolder("source width")
	a.loopCheck = widget.NewCheck("Loop forever", nil)

	form := widget.NewForm(
		widget.NewFormItem("FPS", a.fpsEntry),
		widget.NewFormItem("Width", a.widthEntry),
		widget.NewFormItem("", a.loopCheck),
	)

	a.progress = widget.NewProgressBar()
	a.progress.Hide()

	a.exportBtn = widget.NewButtonWithIcon("Export GIF", theme.DocumentSaveIcon(), a.startExport)
	a.exportBtn.Importance = widget.HighImportance
	a.cancelBtn = widget.NewButtonWithIcon("Cancel", theme.CancelIcon(), func() {
		a.cancelActive("user canceled export")
	})
	a.cancelBtn.Hide()
	a.backBtn = widget.NewButtonWithIcon("Back", theme.NavigateBackIcon(), a.back)

	buttons := container.NewHBox(a.backBtn, layout.NewSpacer(), a.cancelBtn, a.exportBtn)
	return container.NewPadded(container.NewBorder(
		container.NewVBox(a.nameLabel, a.infoLabel, widget.NewSeparator()),
		container.NewVBox(a.progress, buttons),
		nil, nil,
		form,
	))
}

func (a *gifsmithApp) resetEditForm() {
	defaults := a.config.GIFDefaults()
	a.fpsEntry.SetText(strconv.Itoa(defaults.FPS))
	if defaults.Width > 0 {
		a.widthEntry.SetText(strconv.Itoa(defaults.Width))
	} else {
		a.widthEntry.SetText("")
	}
	a.loopCheck.SetChecked(defaults.Loop == 0)
	a.progress.SetValue(0)
	a.progress.Hide()
}

// render shows the view for st and re-applies the action gate. Must run on
// the Fyne main thread.
func (a *gifsmithApp) render(st session.State) {
	a.idleView.Hide()
	a.checkingView.Hide()
	a.editView.Hide()

	if input, ok := st.Input(); ok {
		a.nameLabel.SetText(displayName(input.Path(), nameWidth))
		a.infoLabel.SetText(summarizeInput(input.Metadata()))
		a.resetEditForm()
		a.setExporting(false)
		a.editView.Show()
		a.window.SetTitle("gifsmith - " + displayName(input.Path(), nameWidth))
	} else {
		a.idleView.Show()
		a.window.SetTitle("gifsmith")
	}

	applyGate(a.menuItems, st)
	a.mainMenu.Refresh()
	a.content.Refresh()
}

func (a *gifsmithApp) showChecking(path string) {
	if a.checkingView == nil {
		return
	}
	a.safeDo("app.show_checking", func() {
		a.idleView.Hide()
		a.checkingLabel.SetText("Checking " + displayName(path, nameWidth))
		a.checkingView.Show()
		a.content.Refresh()
	})
}

func (a *gifsmithApp) hideChecking() {
	if a.checkingView == nil {
		return
	}
	a.safeDo("app.hide_checking", func() {
		a.checkingView.Hide()
		if a.controller.State().IsAwaitingInput() {
			a.idleView.Show()
		}
		a.content.Refresh()
	})
}

func (a *gifsmithApp) setExporting(on bool) {
	if on {
		a.exportBtn.Disable()
		a.cancelBtn.Show()
		a.progress.SetValue(0)
		a.progress.Show()
		a.fpsEntry.Disable()
		a.widthEntry.Disable()
		a.loopCheck.Disable()
		return
	}
	a.exportBtn.Enable()
	a.cancelBtn.Hide()
	a.fpsEntry.Enable()
	a.widthEntry.Enable()
	a.loopCheck.Enable()
}

func (a *gifsmithApp) showFilePicker() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			logger.Warn("File dialog failed", "error", err)
		}
		var uri fyne.URI
		if reader != nil {
			uri = reader.URI()
			reader.Close()
		}
		// A dismissed dialog is delivered as an empty candidate.
		a.handleChosen(candidateFromURI(uri))
	}, a.window)

	fd.SetFilter(storage.NewExtensionFileFilter(a.registry.Extensions()))
	fd.Resize(fyne.NewSize(900, 640))
	fd.Show()
}

func (a *gifsmithApp) showFormats() {
	var text string
	for _, f := range formats.Catalog() {
		mark := "-"
		if a.registry.Allowed(f.ID) {
			mark = "+"
		}
		text += fmt.Sprintf("%s %-7s %s (%s)\n", mark, f.ID, f.Label, joinExts(f.Extensions))
	}
	text += "\n+ accepted, - disabled. Set [formats] allowed in config.toml to change the list."
	showTextDialog(a.window, "Supported Formats", text)
}

func (a *gifsmithApp) showLogs() {
	if a.logPath == "" {
		dialog.ShowInformation("Logs", "File logging is disabled.", a.window)
		return
	}
	text, err := readLogTail(a.logPath, maxLogView)
	if err != nil {
		dialog.ShowError(fmt.Errorf("read log file: %w", err), a.window)
		return
	}
	showTextDialog(a.window, "Logs - "+logger.ShortenPath(a.logPath), text)
}

func (a *gifsmithApp) quit() {
	a.shutdown("quit")
	fyne.CurrentApp().Quit()
}

func showTextDialog(w fyne.Window, title, text string) {
	entry := widget.NewMultiLineEntry()
	entry.SetText(text)
	entry.Wrapping = fyne.TextWrapWord
	lock := false
	entry.OnChanged = func(s string) {
		if lock || s == text {
			return
		}
		lock = true
		entry.SetText(text)
		lock = false
	}
	scroll := container.NewScroll(entry)
	scroll.SetMinSize(fyne.NewSize(640, 420))
	d := dialog.NewCustom(title, "Close", scroll, w)
	d.Resize(fyne.NewSize(680, 480))
	d.Show()
}

// openLogFile opens the JSONL sink, defaulting to the user cache directory
// since a GUI launch has no terminal to read from.
func openLogFile(cfg *config.Config) (io.Writer, string, error) {
	path := cfg.Log.File
	if path == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return nil, "", err
		}
		dir = filepath.Join(dir, "gifsmith")
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, "", err
		}
		path = filepath.Join(dir, "gifsmith-gui.log")
	}
	if err := files.RejectSymlinkPath(path); err != nil {
		return nil, "", err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open log file: %w", err)
	}
	cleanup.Register(f.Close)
	return f, path, nil
}

func main() {
	logger.Init(logger.LevelInfo, nil)
	defer cleanup.RunAll()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Unrecovered GUI panic", "scope", "main", "panic", fmt.Sprint(r))
			cleanup.RunAll()
			os.Exit(1)
		}
	}()

	var startupErrs []error
	cfg, notes, err := config.Load(config.Options{})
	if err != nil {
		startupErrs = append(startupErrs, fmt.Errorf("configuration ignored: %w", err))
		def, defNotes := config.Default().Normalize()
		cfg, notes = &def, defNotes
	}

	logW, logPath, err := openLogFile(cfg)
	if err != nil {
		logger.Warn("File logging disabled", "error", err)
	}
	logger.Init(cfg.LogLevel(), logW)
	for _, note := range notes {
		logger.Warn("Config normalized", "detail", note)
	}

	tools, err := pipeline.LocateTools(cfg.Tools.FFmpeg, cfg.Tools.FFprobe)
	if err != nil {
		// Keep going with bare names so the failure surfaces per file.
		startupErrs = append(startupErrs, err)
		tools = ffmpeg.Tools{FFmpeg: "ffmpeg", FFprobe: "ffprobe"}
	}

	myApp := app.NewWithID("com.gifsmith.app")
	w := myApp.NewWindow("gifsmith")
	w.SetMaster()
	w.Resize(fyne.NewSize(560, 360))
	w.CenterOnScreen()

	ga, err := newGifsmithApp(w, cfg, tools, logPath)
	if err != nil {
		logger.Error("Startup failed", "error", err)
		cleanup.RunAll()
		os.Exit(1)
	}
	logger.Info("Session started", "session", ga.controller.ID())

	w.SetCloseIntercept(func() {
		ga.shutdown("window closed")
		w.SetCloseIntercept(nil)
		w.Close()
	})
	w.SetOnDropped(func(_ fyne.Position, uris []fyne.URI) {
		if len(uris) > 0 {
			ga.handleDropped(uris[0])
		}
	})

	for _, err := range startupErrs {
		dialog.ShowError(err, w)
	}
	w.ShowAndRun()
}

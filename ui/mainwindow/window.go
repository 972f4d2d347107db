// Package mainwindow provides the main application window.
package mainwindow

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"sigil-overlay/internal/app"
	"sigil-overlay/internal/render"
	"sigil-overlay/internal/version"
	"sigil-overlay/ui/canvas"
	"sigil-overlay/ui/panels"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
)

const (
	appTitle       = "Sigil Overlay"
	prefKeyLastDir = "lastDirectory"
)

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app       fyne.App
	state     *app.State
	log       *slog.Logger
	canvas    *canvas.SigilCanvas
	controls  *panels.ControlsPanel
	statusBar *widget.Label
}

// New creates a new main window.
func New(fyneApp fyne.App, state *app.State, log *slog.Logger) *MainWindow {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	win := fyneApp.NewWindow(appTitle)

	mw := &MainWindow{
		Window: win,
		app:    fyneApp,
		state:  state,
		log:    log,
	}

	mw.setupUI()
	mw.setupMenus()
	mw.setupEventHandlers()

	return mw
}

// setupUI creates the main UI layout.
func (mw *MainWindow) setupUI() {
	mw.canvas = canvas.NewSigilCanvas(mw.state, mw.log.With("component", "canvas"))
	mw.canvas.AttachKeys(mw.Canvas())

	mw.controls = panels.NewControlsPanel(mw.state, mw.log.With("component", "controls"))
	mw.controls.SetWindow(mw.Window)

	mw.statusBar = widget.NewLabel("Open an image to begin")

	toolbar := container.NewHBox(
		widget.NewButton("Open Image...", mw.onOpenImage),
		widget.NewButton("Download", mw.onExport),
	)

	canvasArea := container.NewBorder(toolbar, nil, nil, nil, mw.canvas)

	split := container.NewHSplit(
		container.NewVScroll(mw.controls.Container()),
		canvasArea,
	)
	split.SetOffset(0.25)

	content := container.NewBorder(
		nil,
		container.NewPadded(mw.statusBar),
		nil,
		nil,
		split,
	)

	mw.SetContent(content)
	mw.Resize(fyne.NewSize(1100, 750))
}

// setupMenus creates the application menus.
func (mw *MainWindow) setupMenus() {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open Image...", mw.onOpenImage),
		fyne.NewMenuItem("Close Image", mw.state.ClearImage),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Download PNG...", mw.onExport),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", func() { mw.app.Quit() }),
	)

	editMenu := fyne.NewMenu("Edit",
		fyne.NewMenuItem("Add Sigil", mw.onAddMark),
		fyne.NewMenuItem("Remove Selected", func() { mw.state.RemoveSelected() }),
	)

	toolsMenu := fyne.NewMenu("Tools",
		fyne.NewMenuItem("Detect Eyes", mw.state.Detect),
		fyne.NewMenuItem("Refresh Sigil List", mw.state.ListSigils),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mw.onAbout),
	)

	mw.SetMainMenu(fyne.NewMainMenu(fileMenu, editMenu, toolsMenu, helpMenu))
}

// setupEventHandlers registers for session events.
func (mw *MainWindow) setupEventHandlers() {
	mw.state.On(app.EventImageLoaded, func(data interface{}) {
		if name, ok := data.(string); ok {
			mw.SetTitle(appTitle + " - " + filepath.Base(name))
			mw.updateStatus("Image loaded: " + filepath.Base(name))
		}
	})

	mw.state.On(app.EventImageCleared, func(interface{}) {
		mw.SetTitle(appTitle)
		mw.updateStatus("Open an image to begin")
	})

	mw.state.On(app.EventDetecting, func(data interface{}) {
		if busy, ok := data.(bool); ok && busy {
			mw.updateStatus("Detecting eyes...")
		}
	})

	mw.state.On(app.EventSigilChanged, func(data interface{}) {
		if name, ok := data.(string); ok {
			mw.updateStatus("Sigil: " + name)
		}
	})

	mw.state.On(app.EventNotice, func(data interface{}) {
		if n, ok := data.(app.Notice); ok {
			mw.showNotice(n)
		}
	})
}

// showNotice reports a notice in the status bar; errors also get a dialog.
func (mw *MainWindow) showNotice(n app.Notice) {
	mw.updateStatus(n.Title + ": " + n.Message)
	if n.Level == app.NoticeError {
		dialog.ShowError(errors.New(n.Message), mw.Window)
	}
}

// updateStatus updates the status bar text.
func (mw *MainWindow) updateStatus(text string) {
	mw.statusBar.SetText(text)
}

// getLastDir returns the last used directory as a ListableURI, or nil.
func (mw *MainWindow) getLastDir() fyne.ListableURI {
	path := mw.app.Preferences().String(prefKeyLastDir)
	if path == "" {
		return nil
	}
	listable, err := storage.ListerForURI(storage.NewFileURI(path))
	if err != nil {
		return nil
	}
	return listable
}

// saveLastDir saves the directory of the given file path.
func (mw *MainWindow) saveLastDir(filePath string) {
	mw.app.Preferences().SetString(prefKeyLastDir, filepath.Dir(filePath))
}

// OpenImage loads an image from disk, reporting failures in a dialog.
func (mw *MainWindow) OpenImage(path string) {
	if err := mw.state.LoadImageFile(path); err != nil {
		mw.log.Error("open image", "path", path, "error", err)
		dialog.ShowError(err, mw.Window)
		return
	}
	mw.saveLastDir(path)
}

func (mw *MainWindow) onOpenImage() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		mw.OpenImage(reader.URI().Path())
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"}))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onExport() {
	if !mw.state.HasImage() {
		dialog.ShowInformation("Nothing to download", "Open an image first", mw.Window)
		return
	}
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		exportErr := mw.state.Export(writer)
		if closeErr := writer.Close(); exportErr == nil {
			exportErr = closeErr
		}
		if exportErr != nil {
			mw.log.Error("export", "path", writer.URI().Path(), "error", exportErr)
			dialog.ShowError(exportErr, mw.Window)
			return
		}
		mw.saveLastDir(writer.URI().Path())
		mw.updateStatus("Saved " + writer.URI().Name())
	}, mw.Window)
	fd.SetFileName(render.ExportFileName)
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onAddMark() {
	if _, err := mw.state.AddManualMark(); err != nil {
		mw.updateStatus("Open an image before adding sigils")
	}
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About "+appTitle,
		fmt.Sprintf("%s v%s\n\n"+
			"Places sigil images over the eyes in a photo.\n\n"+
			"Built: %s\n"+
			"Commit: %s",
			appTitle, version.Version, version.BuildTime, version.GitCommit),
		mw.Window)
}

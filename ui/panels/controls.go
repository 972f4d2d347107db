// Package panels provides UI panels for the application.
package panels

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"sigil-overlay/internal/app"
	"sigil-overlay/internal/detect"
	"sigil-overlay/internal/params"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
)

// ControlsPanel holds every editing control: sigil choice, size and
// opacity, eye selection and the mark actions.
type ControlsPanel struct {
	state     *app.State
	log       *slog.Logger
	window    fyne.Window
	container fyne.CanvasObject

	sigilSelect  *widget.Select
	uploadButton *widget.Button

	size    *numberInput
	opacity *numberInput

	leftEye  *widget.Check
	rightEye *widget.Check

	detectButton *widget.Button
	addButton    *widget.Button
	removeButton *widget.Button
	progress     *widget.ProgressBarInfinite

	// syncing is set while controls are updated from session state, so
	// their change callbacks do not write the same value back.
	syncing bool
}

// NewControlsPanel creates the panel and subscribes it to session events.
func NewControlsPanel(state *app.State, log *slog.Logger) *ControlsPanel {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	cp := &ControlsPanel{
		state: state,
		log:   log,
	}

	cp.sigilSelect = widget.NewSelect(nil, func(name string) {
		if cp.syncing || name == "" {
			return
		}
		cp.state.SelectSigil(name)
	})
	cp.sigilSelect.PlaceHolder = "(choose a sigil)"
	cp.uploadButton = widget.NewButton("Upload...", cp.onUpload)

	cp.size = newNumberInput("Size (%)", params.SizeMin, params.SizeMax,
		func(raw string) {
			if !cp.syncing {
				cp.state.SetSizeText(raw)
			}
		},
		func(v float64) {
			if !cp.syncing {
				cp.state.SetSize(v)
			}
		})
	cp.opacity = newNumberInput("Opacity (%)", params.OpacityMin, params.OpacityMax,
		func(raw string) {
			if !cp.syncing {
				cp.state.SetOpacityText(raw)
			}
		},
		func(v float64) {
			if !cp.syncing {
				cp.state.SetOpacity(v)
			}
		})

	cp.leftEye = widget.NewCheck("Left eye", func(bool) { cp.onEyesChanged() })
	cp.rightEye = widget.NewCheck("Right eye", func(bool) { cp.onEyesChanged() })

	cp.detectButton = widget.NewButton("Detect Eyes", cp.state.Detect)
	cp.addButton = widget.NewButton("Add Sigil", cp.onAdd)
	cp.removeButton = widget.NewButton("Remove Selected", func() { cp.state.RemoveSelected() })
	cp.progress = widget.NewProgressBarInfinite()
	cp.progress.Hide()

	cp.container = container.NewVBox(
		widget.NewCard("Sigil", "", container.NewBorder(nil, nil, nil, cp.uploadButton, cp.sigilSelect)),
		widget.NewCard("Appearance", "", container.NewVBox(cp.size.container, cp.opacity.container)),
		widget.NewCard("Detection", "", container.NewVBox(
			container.NewHBox(cp.leftEye, cp.rightEye),
			cp.detectButton,
			cp.progress,
		)),
		widget.NewCard("Marks", "", container.NewVBox(cp.addButton, cp.removeButton)),
	)

	cp.setupEventHandlers()
	cp.syncParams()
	cp.syncEyes()
	cp.syncMarks()
	return cp
}

// Container returns the panel container.
func (cp *ControlsPanel) Container() fyne.CanvasObject {
	return cp.container
}

// SetWindow sets the parent window for dialogs.
func (cp *ControlsPanel) SetWindow(w fyne.Window) {
	cp.window = w
}

func (cp *ControlsPanel) setupEventHandlers() {
	cp.state.On(app.EventSigilsListed, func(data interface{}) {
		names, _ := data.([]string)
		cp.setSigilOptions(names)
	})
	cp.state.On(app.EventSigilChanged, func(data interface{}) {
		if name, ok := data.(string); ok {
			cp.showSigil(name)
		}
	})
	cp.state.On(app.EventParamsChanged, func(interface{}) {
		cp.syncParams()
		cp.syncEyes()
	})
	cp.state.On(app.EventDetecting, func(data interface{}) {
		if busy, ok := data.(bool); ok {
			cp.setDetecting(busy)
		}
	})
	for _, ev := range []app.EventType{app.EventMarksChanged, app.EventImageLoaded, app.EventImageCleared} {
		cp.state.On(ev, func(interface{}) { cp.syncMarks() })
	}
}

func (cp *ControlsPanel) setSigilOptions(names []string) {
	current := cp.sigilSelect.Selected
	if current != "" && !slices.Contains(names, current) {
		names = append(names, current)
	}
	cp.syncing = true
	cp.sigilSelect.Options = names
	cp.sigilSelect.Refresh()
	cp.syncing = false
}

// showSigil reflects the active sigil in the list. Uploaded sigils are not
// part of the listing and are appended.
func (cp *ControlsPanel) showSigil(name string) {
	cp.syncing = true
	defer func() { cp.syncing = false }()
	if !slices.Contains(cp.sigilSelect.Options, name) {
		cp.sigilSelect.Options = append(cp.sigilSelect.Options, name)
	}
	cp.sigilSelect.SetSelected(name)
}

func (cp *ControlsPanel) syncParams() {
	cp.syncing = true
	defer func() { cp.syncing = false }()
	cp.size.show(cp.state.SizeControl())
	cp.opacity.show(cp.state.OpacityControl())
}

func (cp *ControlsPanel) syncEyes() {
	eyes := cp.state.Eyes()
	cp.syncing = true
	defer func() { cp.syncing = false }()
	cp.leftEye.SetChecked(eyes.Left)
	cp.rightEye.SetChecked(eyes.Right)
}

func (cp *ControlsPanel) syncMarks() {
	hasImage := cp.state.HasImage()
	_, selected := cp.state.Selected()
	setEnabled(cp.addButton, hasImage)
	setEnabled(cp.removeButton, selected)
	if !cp.state.Detecting() {
		setEnabled(cp.detectButton, hasImage)
	}
}

func (cp *ControlsPanel) setDetecting(busy bool) {
	if busy {
		cp.detectButton.Disable()
		cp.progress.Show()
		cp.progress.Start()
		return
	}
	cp.progress.Stop()
	cp.progress.Hide()
	setEnabled(cp.detectButton, cp.state.HasImage())
}

func (cp *ControlsPanel) onEyesChanged() {
	if cp.syncing {
		return
	}
	cp.state.SetEyes(detect.Eyes{Left: cp.leftEye.Checked, Right: cp.rightEye.Checked})
}

func (cp *ControlsPanel) onAdd() {
	if _, err := cp.state.AddManualMark(); err != nil {
		cp.log.Warn("add mark", "error", err)
	}
}

func (cp *ControlsPanel) onUpload() {
	if cp.window == nil {
		return
	}
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		defer reader.Close()
		data, err := io.ReadAll(reader)
		if err != nil {
			dialog.ShowError(fmt.Errorf("read %s: %w", reader.URI().Name(), err), cp.window)
			return
		}
		cp.state.UploadSigil(reader.URI().Name(), data)
	}, cp.window)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".png", ".jpg", ".jpeg", ".gif"}))
	fd.Show()
}

func setEnabled(w fyne.Disableable, enabled bool) {
	if enabled {
		w.Enable()
	} else {
		w.Disable()
	}
}

// numberInput pairs a free-text entry with a slider over the same range.
// The entry shows exactly what was typed; the slider follows the effective
// value.
type numberInput struct {
	entry     *widget.Entry
	slider    *widget.Slider
	container fyne.CanvasObject
}

func newNumberInput(label string, min, max float64, onText func(string), onValue func(float64)) *numberInput {
	in := &numberInput{
		entry:  widget.NewEntry(),
		slider: widget.NewSlider(min, max),
	}
	in.entry.Validator = func(raw string) error {
		_, err := params.Parse(raw, min, max)
		return err
	}
	in.entry.OnChanged = onText
	in.slider.Step = 1
	in.slider.OnChanged = onValue

	in.container = container.NewVBox(
		container.NewBorder(nil, nil, widget.NewLabel(label), nil, in.entry),
		in.slider,
	)
	return in
}

func (in *numberInput) show(cs app.ControlState) {
	if in.entry.Text != cs.Text {
		in.entry.SetText(cs.Text)
	}
	if in.slider.Value != cs.Value {
		in.slider.SetValue(cs.Value)
	}
}

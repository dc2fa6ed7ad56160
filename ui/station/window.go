// Package station provides the operator window of the QA station.
package station

import (
	"context"
	"errors"
	"fmt"
	"image"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/atomic"

	"qa-station/internal/app"
	"qa-station/internal/qa"
	"qa-station/internal/version"
	"qa-station/ui/prefs"
)

const (
	defaultWidth  = 1280
	defaultHeight = 800
	previewWidth  = 960
)

// Window is the station's only window: a login screen, then the dashboard.
type Window struct {
	fyne.Window
	app     fyne.App
	station *app.Station
	prefs   *prefs.Prefs
	ctx     context.Context

	// login
	operatorEntry *widget.Entry
	loginBtn      *widget.Button

	// dashboard
	preview     *fynecanvas.Image
	fpsLabel    *widget.Label
	operator    *widget.Label
	searchEntry *widget.Entry
	transfer    *widget.Label
	cells       [][3]*widget.Label
	qaStatus    *fynecanvas.Text
	overrideBtn *widget.Button
	flagBtn     *widget.Button
	finishBtn   *widget.Button
	retryBtn    *widget.Button
	statusBar   *widget.Label

	drawing atomic.Bool
	last    app.InspectionEvent
}

// New creates the window and registers for station events.
func New(ctx context.Context, fyneApp fyne.App, station *app.Station, p *prefs.Prefs) *Window {
	w := &Window{
		Window:  fyneApp.NewWindow("QA Station " + version.Version),
		app:     fyneApp,
		station: station,
		prefs:   p,
		ctx:     ctx,
	}
	w.Resize(fyne.NewSize(
		float32(p.Float(prefs.KeyWindowWidth, defaultWidth)),
		float32(p.Float(prefs.KeyWindowHeight, defaultHeight)),
	))
	w.setupEventHandlers()
	w.showLogin()
	return w
}

func (w *Window) showLogin() {
	w.operatorEntry = widget.NewEntry()
	w.operatorEntry.SetPlaceHolder("Operator name")
	w.operatorEntry.SetText(w.prefs.String(prefs.KeyOperator))
	w.operatorEntry.OnSubmitted = func(string) { w.onLogin() }
	w.loginBtn = widget.NewButton("Login", w.onLogin)
	w.loginBtn.Importance = widget.HighImportance

	title := widget.NewLabelWithStyle("QA Station", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	form := container.NewVBox(title, w.operatorEntry, w.loginBtn)
	w.SetContent(container.NewCenter(container.NewGridWrap(fyne.NewSize(360, 160), form)))
}

func (w *Window) showDashboard(sc app.SessionContext) {
	w.preview = fynecanvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, 640, 480)))
	w.preview.FillMode = fynecanvas.ImageFillContain
	w.preview.SetMinSize(fyne.NewSize(640, 480))
	w.fpsLabel = widget.NewLabel("")

	w.operator = widget.NewLabel("Operator: " + sc.Operator)
	logout := widget.NewButton("Logout", w.station.Logout)

	w.searchEntry = widget.NewEntry()
	w.searchEntry.SetPlaceHolder("Transfer id or scan a barcode")
	w.searchEntry.SetText(w.prefs.String(prefs.KeyLastSearch))
	w.searchEntry.OnSubmitted = func(string) { w.onSearch() }
	searchBtn := widget.NewButton("Search", w.onSearch)

	w.transfer = widget.NewLabelWithStyle("No transfer", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})

	grid := container.NewGridWithColumns(3,
		widget.NewLabelWithStyle("", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		widget.NewLabelWithStyle("Measured", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		widget.NewLabelWithStyle("Expected", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
	)
	w.cells = nil
	for _, label := range []string{"Length", "Width", "Height", "Weight", "Quantity"} {
		cells := [3]*widget.Label{widget.NewLabel(label), widget.NewLabel("-"), widget.NewLabel("-")}
		w.cells = append(w.cells, cells)
		grid.Add(cells[0])
		grid.Add(cells[1])
		grid.Add(cells[2])
	}

	w.qaStatus = fynecanvas.NewText("Scan or search a transfer", statusColor(qa.StatusDefault))
	w.qaStatus.TextSize = 22

	w.overrideBtn = widget.NewButton("Override", w.onOverride)
	w.flagBtn = widget.NewButton(flagButtonText(false), w.onToggleFlag)
	w.finishBtn = widget.NewButton("Finish QA", w.station.Finish)
	w.retryBtn = widget.NewButton("Restart camera", w.onRetry)
	w.retryBtn.Hide()
	w.setActionsEnabled(false)

	w.statusBar = widget.NewLabel("Ready")

	side := container.NewVBox(
		container.NewBorder(nil, nil, nil, logout, w.operator),
		container.NewBorder(nil, nil, nil, searchBtn, w.searchEntry),
		widget.NewSeparator(),
		w.transfer,
		grid,
		w.qaStatus,
		container.NewGridWithColumns(3, w.overrideBtn, w.flagBtn, w.finishBtn),
		w.retryBtn,
	)
	previewArea := container.NewBorder(nil, w.fpsLabel, nil, nil, w.preview)

	split := container.NewHSplit(previewArea, container.NewVScroll(side))
	split.SetOffset(0.65)

	w.SetContent(container.NewBorder(nil, container.NewPadded(w.statusBar), nil, nil, split))
}

// setupEventHandlers registers for station events. Handlers run on the
// station's goroutine.
func (w *Window) setupEventHandlers() {
	w.station.On(app.EventLoggedIn, func(data interface{}) {
		if sc, ok := data.(app.SessionContext); ok {
			w.showDashboard(sc)
		}
	})
	w.station.On(app.EventLoggedOut, func(interface{}) {
		w.showLogin()
	})

	w.station.On(app.EventFrame, func(data interface{}) {
		if f, ok := data.(app.FrameEvent); ok {
			w.showFrame(f)
		}
	})

	show := func(data interface{}) {
		if ev, ok := data.(app.InspectionEvent); ok {
			w.showInspection(ev)
		}
	}
	w.station.On(app.EventInspectionStarted, func(data interface{}) {
		show(data)
		if ev, ok := data.(app.InspectionEvent); ok {
			w.updateStatus(fmt.Sprintf("QA started for transfer %d", ev.Record.TransferID))
		}
	})
	w.station.On(app.EventMeasured, show)
	w.station.On(app.EventOverrideConfirmed, func(data interface{}) {
		show(data)
		w.updateStatus("Override confirmed")
	})
	w.station.On(app.EventFlagChanged, func(data interface{}) {
		show(data)
		if ev, ok := data.(app.InspectionEvent); ok {
			w.updateStatus(flagMessage(ev.Flagged))
		}
	})
	w.station.On(app.EventOverrideRejected, func(interface{}) {
		w.updateStatus("Override failed. Try providing valid measurements.")
	})

	w.station.On(app.EventLookupFailed, func(data interface{}) {
		if ev, ok := data.(app.LookupFailedEvent); ok {
			w.updateStatus(ev.Message)
		}
	})
	w.station.On(app.EventFinished, func(interface{}) {
		w.clearInspection()
		w.updateStatus("QA finished")
	})

	w.station.On(app.EventCaptureUnavailable, func(data interface{}) {
		msg := "Camera unavailable"
		if err, ok := data.(error); ok && err != nil {
			msg += ": " + err.Error()
		}
		w.updateStatus(msg)
		if w.retryBtn != nil {
			w.retryBtn.Show()
		}
	})
	w.station.On(app.EventCaptureStopped, func(interface{}) {
		w.updateStatus("Capture stopped")
		if w.retryBtn != nil {
			w.retryBtn.Show()
		}
	})
	w.station.On(app.EventConfigChanged, func(data interface{}) {
		path, _ := data.(string)
		dialog.ShowInformation("Configuration changed",
			fmt.Sprintf("%s was modified.\nRestart the station to apply it.", path), w.Window)
	})
}

// showFrame draws a preview frame, dropping it if the previous one is still
// being drawn.
func (w *Window) showFrame(f app.FrameEvent) {
	if w.preview == nil || f.Frame == nil || !w.drawing.CompareAndSwap(false, true) {
		return
	}
	defer w.drawing.Store(false)

	w.preview.Image = fitWidth(f.Frame, previewWidth)
	w.preview.Refresh()
	text := fmt.Sprintf("%.1f fps", f.FPS)
	if len(f.Candidates) > 0 {
		text += fmt.Sprintf("  |  looks like %v", f.Candidates)
	}
	w.fpsLabel.SetText(text)
}

func (w *Window) showInspection(ev app.InspectionEvent) {
	if w.transfer == nil {
		return
	}
	w.last = ev
	w.transfer.SetText(fmt.Sprintf("%s (transfer %d)", ev.Record.Name, ev.Record.TransferID))
	for i, r := range dashboardRows(ev) {
		w.cells[i][1].SetText(r.Measured)
		w.cells[i][2].SetText(r.Expected)
	}
	w.qaStatus.Text = statusText(ev)
	w.qaStatus.Color = statusColor(ev.Status)
	w.qaStatus.Refresh()
	w.flagBtn.SetText(flagButtonText(ev.Flagged))
	w.setActionsEnabled(true)
	if !ev.UpdatesEnabled {
		w.overrideBtn.Disable()
	}
}

func (w *Window) clearInspection() {
	if w.transfer == nil {
		return
	}
	w.last = app.InspectionEvent{}
	w.transfer.SetText("No transfer")
	for _, c := range w.cells {
		c[1].SetText("-")
		c[2].SetText("-")
	}
	w.qaStatus.Text = "Scan or search a transfer"
	w.qaStatus.Color = statusColor(qa.StatusDefault)
	w.qaStatus.Refresh()
	w.flagBtn.SetText(flagButtonText(false))
	w.setActionsEnabled(false)
}

func (w *Window) setActionsEnabled(on bool) {
	for _, b := range []*widget.Button{w.overrideBtn, w.flagBtn, w.finishBtn} {
		if on {
			b.Enable()
		} else {
			b.Disable()
		}
	}
}

func (w *Window) updateStatus(text string) {
	if w.statusBar != nil {
		w.statusBar.SetText(text)
	}
}

// Action handlers

func (w *Window) onLogin() {
	sc, err := w.station.Login(w.operatorEntry.Text)
	if err != nil {
		dialog.ShowError(err, w.Window)
		return
	}
	w.prefs.SetString(prefs.KeyOperator, sc.Operator)
}

func (w *Window) onSearch() {
	text := w.searchEntry.Text
	w.prefs.SetString(prefs.KeyLastSearch, text)
	go func() {
		if err := w.station.Search(w.ctx, text); errors.Is(err, app.ErrEmptySearch) {
			w.updateStatus(err.Error())
		}
	}()
}

func (w *Window) onOverride() {
	if w.last.Record == nil {
		return
	}
	m := w.last.Measured
	entries := map[string]*widget.Entry{}
	field := func(name, hint string) *widget.FormItem {
		e := widget.NewEntry()
		e.SetPlaceHolder(hint)
		entries[name] = e
		return widget.NewFormItem(name, e)
	}
	lu, wu := w.last.Record.LengthUnit(), w.last.Record.WeightUnit()
	items := []*widget.FormItem{
		field("Length", amount(m.Length, lu)),
		field("Width", amount(m.Width, lu)),
		field("Height", amount(m.Height, lu)),
		field("Actual weight", amount(w.last.Record.Weight, wu)),
		field("Quantity", ""),
	}
	dialog.ShowForm(
		fmt.Sprintf("Override transfer %d?", w.last.Record.TransferID), "Confirm", "Cancel", items,
		func(ok bool) {
			if !ok {
				return
			}
			_, _ = w.station.Override(qa.OverrideInput{
				Length:       entries["Length"].Text,
				Width:        entries["Width"].Text,
				Height:       entries["Height"].Text,
				ActualWeight: entries["Actual weight"].Text,
				Quantity:     entries["Quantity"].Text,
			})
		}, w.Window)
}

func (w *Window) onToggleFlag() {
	if _, err := w.station.ToggleFlag(); err != nil {
		w.updateStatus(err.Error())
	}
}

func (w *Window) onRetry() {
	w.retryBtn.Hide()
	if err := w.station.StartCapture(w.ctx); err != nil {
		w.updateStatus("Camera restart failed: " + err.Error())
	}
}

// SavePreferences stores the window size and saves preferences if changed.
func (w *Window) SavePreferences() error {
	size := w.Canvas().Size()
	w.prefs.SetFloat(prefs.KeyWindowWidth, float64(size.Width))
	w.prefs.SetFloat(prefs.KeyWindowHeight, float64(size.Height))
	return w.prefs.SaveIfChanged()
}

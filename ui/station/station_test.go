package station

import (
	"context"
	"image"
	"testing"

	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qa-station/internal/app"
	"qa-station/internal/measure"
	"qa-station/internal/qa"
	"qa-station/internal/session"
	"qa-station/internal/wms"
	"qa-station/ui/prefs"
)

type idleCapture struct{}

func (idleCapture) Start(context.Context) error { return nil }
func (idleCapture) Close() error                { return nil }
func (idleCapture) Subscribe(int) <-chan session.Result {
	return make(chan session.Result)
}
func (idleCapture) State() session.State { return session.StateIdle }

func newTestWindow(t *testing.T) (*Window, *app.Station) {
	t.Helper()
	a := test.NewApp()
	t.Cleanup(a.Quit)
	st := app.NewStation(idleCapture{}, wms.Demo(), app.Options{})
	w := New(context.Background(), a, st, prefs.LoadFrom(t.TempDir()))
	return w, st
}

func TestLoginShowsDashboard(t *testing.T) {
	w, st := newTestWindow(t)
	assert.Nil(t, w.transfer)

	test.Type(w.operatorEntry, "jo")
	test.Tap(w.loginBtn)

	require.NotNil(t, w.transfer)
	assert.Equal(t, "Operator: jo", w.operator.Text)
	assert.Equal(t, "jo", w.prefs.String(prefs.KeyOperator))
	assert.True(t, st.Session().LoggedIn())
	assert.True(t, w.overrideBtn.Disabled())
}

func TestInspectionUpdatesDashboard(t *testing.T) {
	w, st := newTestWindow(t)
	_, err := st.Login("jo")
	require.NoError(t, err)

	require.NoError(t, st.Search(context.Background(), "334456"))
	assert.Equal(t, "Oak-D camera (transfer 334456)", w.transfer.Text)
	assert.Equal(t, "20.0 cm", w.cells[0][2].Text)
	assert.Equal(t, "7.7 cm", w.cells[2][2].Text)
	assert.Equal(t, "500.0 g", w.cells[3][2].Text)
	assert.Equal(t, "40", w.cells[4][2].Text)
	assert.False(t, w.overrideBtn.Disabled())

	_, err = st.Override(qa.OverrideInput{Length: "20", Width: "11", Height: "7.7", Quantity: "40"})
	require.NoError(t, err)
	assert.Equal(t, "Override confirmed", w.qaStatus.Text)
	assert.Equal(t, "20.0 cm", w.cells[0][1].Text)
	assert.True(t, w.overrideBtn.Disabled())

	test.Tap(w.flagBtn)
	assert.Equal(t, "REMOVE", w.flagBtn.Text)
	assert.Equal(t, "Product flagged for investigation", w.statusBar.Text)

	st.Finish()
	assert.Equal(t, "No transfer", w.transfer.Text)
	assert.Equal(t, "-", w.cells[0][2].Text)
	assert.True(t, w.flagBtn.Disabled())
}

func TestLookupFailureInStatusBar(t *testing.T) {
	w, st := newTestWindow(t)
	_, err := st.Login("jo")
	require.NoError(t, err)

	_ = st.Search(context.Background(), "23456")
	assert.Equal(t, "QA completed", w.statusBar.Text)
}

func TestShowFrameScalesDown(t *testing.T) {
	w, st := newTestWindow(t)
	_, err := st.Login("jo")
	require.NoError(t, err)

	w.showFrame(app.FrameEvent{Frame: image.NewRGBA(image.Rect(0, 0, 1920, 1080)), FPS: 14.2})
	assert.Equal(t, previewWidth, w.preview.Image.Bounds().Dx())
	assert.Equal(t, "14.2 fps", w.fpsLabel.Text)
}

func TestDashboardRows(t *testing.T) {
	rec, err := wms.Demo().Lookup(context.Background(), "334456")
	require.NoError(t, err)

	ev := app.InspectionEvent{
		Record:   rec,
		Measured: measure.Dimension{Length: 20.04, Width: 11, Height: 7.7},
		Status:   qa.StatusSuccess,
	}
	rows := dashboardRows(ev)
	require.Len(t, rows, 5)
	assert.Equal(t, row{"Length", "20.0 cm", "20.0 cm"}, rows[0])
	assert.Equal(t, row{"Height", "7.7 cm", "7.7 cm"}, rows[2])
	assert.Equal(t, "-", rows[3].Measured)
	assert.Equal(t, "Dimensions match", statusText(ev))

	ev.Override = &qa.Override{ActualWeight: 498, Quantity: 39}
	rows = dashboardRows(ev)
	assert.Equal(t, "498.0 g", rows[3].Measured)
	assert.Equal(t, "39", rows[4].Measured)
	assert.Equal(t, "Override confirmed", statusText(ev))

	assert.Equal(t, "Waiting for measurement", statusText(app.InspectionEvent{Status: qa.StatusDefault}))
	assert.Equal(t, colorLapse, statusColor(qa.StatusLapse))
}

func TestFitWidth(t *testing.T) {
	small := image.NewRGBA(image.Rect(0, 0, 100, 50))
	assert.Same(t, small, fitWidth(small, 640))

	out := fitWidth(image.NewRGBA(image.Rect(0, 0, 1280, 720)), 640)
	assert.Equal(t, image.Rect(0, 0, 640, 360), out.Bounds())
}

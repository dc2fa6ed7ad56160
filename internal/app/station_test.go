package app

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"qa-station/internal/barcode"
	"qa-station/internal/measure"
	"qa-station/internal/qa"
	"qa-station/internal/session"
	"qa-station/internal/wms"
)

type fakeCapture struct {
	results chan session.Result
	started int
	closed  bool
}

func newFakeCapture() *fakeCapture {
	return &fakeCapture{results: make(chan session.Result, 16)}
}

func (f *fakeCapture) Start(context.Context) error {
	f.started++
	if f.started > 1 {
		return session.ErrRunning
	}
	return nil
}

func (f *fakeCapture) Close() error                        { f.closed = true; return nil }
func (f *fakeCapture) Subscribe(int) <-chan session.Result { return f.results }
func (f *fakeCapture) State() session.State                { return session.StateCapturing }

// countingProvider records lookups made against the demo records.
type countingProvider struct {
	mu    sync.Mutex
	keys  []string
	inner wms.Provider
}

func (p *countingProvider) Lookup(ctx context.Context, key string) (*wms.TransferRecord, error) {
	p.mu.Lock()
	p.keys = append(p.keys, key)
	p.mu.Unlock()
	return p.inner.Lookup(ctx, key)
}

type recorder struct {
	mu     sync.Mutex
	events map[EventType][]interface{}
}

func record(s *Station, types ...EventType) *recorder {
	r := &recorder{events: make(map[EventType][]interface{})}
	for _, et := range types {
		et := et
		s.On(et, func(data interface{}) {
			r.mu.Lock()
			r.events[et] = append(r.events[et], data)
			r.mu.Unlock()
		})
	}
	return r
}

func (r *recorder) get(et EventType) []interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[et]
}

func newTestStation(t *testing.T) (*Station, *fakeCapture, *countingProvider) {
	t.Helper()
	fc := newFakeCapture()
	prov := &countingProvider{inner: wms.Demo()}
	s := NewStation(fc, prov, Options{LookupTimeout: time.Second, Logger: zaptest.NewLogger(t).Sugar()})
	return s, fc, prov
}

func frame(payload string, dim measure.Dimension) session.Result {
	r := session.Result{Frame: image.NewRGBA(image.Rect(0, 0, 4, 4)), Dimension: dim, State: session.StateCapturing}
	if payload != "" {
		r.Barcode = &barcode.Result{Payload: payload, Symbology: barcode.QRCode}
	}
	return r
}

func TestScanBeforeLoginIsIgnored(t *testing.T) {
	s, _, prov := newTestStation(t)
	rec := record(s, EventFrame, EventInspectionStarted)

	s.handle(context.Background(), frame(wms.DemoBarcode, measure.Dimension{}))

	assert.Len(t, rec.get(EventFrame), 1)
	assert.Empty(t, rec.get(EventInspectionStarted))
	assert.Empty(t, prov.keys)
}

func TestScanStartsInspectionAndMeasures(t *testing.T) {
	s, _, prov := newTestStation(t)
	rec := record(s, EventFrame, EventInspectionStarted, EventMeasured)
	ctx := context.Background()

	sc, err := s.Login("  jo ")
	require.NoError(t, err)
	assert.Equal(t, "jo", sc.Operator)
	assert.NotEqual(t, [16]byte{}, [16]byte(sc.ID))

	s.handle(ctx, frame(wms.DemoBarcode, measure.Dimension{Length: 20.1, Width: 11, Height: 7.7}))
	require.Len(t, rec.get(EventInspectionStarted), 1)
	started := rec.get(EventInspectionStarted)[0].(InspectionEvent)
	assert.Equal(t, int64(12345), started.Record.TransferID)

	measured := rec.get(EventMeasured)
	require.Len(t, measured, 1)
	ev := measured[0].(InspectionEvent)
	assert.Equal(t, qa.StatusSuccess, ev.Status)
	assert.False(t, ev.Mismatch)

	// The same code on following frames is not looked up again.
	s.handle(ctx, frame(wms.DemoBarcode, measure.Dimension{Length: 30, Width: 11, Height: 7.7}))
	assert.Equal(t, []string{wms.DemoBarcode}, prov.keys)

	in, ok := s.Inspection()
	require.True(t, ok)
	assert.Equal(t, qa.StatusLapse, in.Status)
	assert.Equal(t, wms.DemoBarcode, s.Session().Search)

	frames := rec.get(EventFrame)
	require.Len(t, frames, 2)
	assert.Equal(t, wms.DemoBarcode, frames[0].(FrameEvent).Barcode)
}

func TestSearchStates(t *testing.T) {
	s, _, _ := newTestStation(t)
	rec := record(s, EventLookupFailed, EventInspectionStarted)
	ctx := context.Background()

	assert.ErrorIs(t, s.Search(ctx, "334456"), ErrNotLoggedIn)
	_, err := s.Login("jo")
	require.NoError(t, err)
	assert.ErrorIs(t, s.Search(ctx, " "), ErrEmptySearch)

	assert.ErrorIs(t, s.Search(ctx, "23456"), qa.ErrNotAwaiting)
	assert.ErrorIs(t, s.Search(ctx, "98765"), qa.ErrNotAwaiting)
	assert.ErrorIs(t, s.Search(ctx, "111"), wms.ErrNotFound)

	failed := rec.get(EventLookupFailed)
	require.Len(t, failed, 3)
	assert.Equal(t, "QA completed", failed[0].(LookupFailedEvent).Message)
	assert.Equal(t, "QA flagged", failed[1].(LookupFailedEvent).Message)
	assert.Equal(t, "111 not recognised.", failed[2].(LookupFailedEvent).Message)

	require.NoError(t, s.Search(ctx, "334456"))
	assert.Len(t, rec.get(EventInspectionStarted), 1)
}

func TestFailedScanIsNotRepeated(t *testing.T) {
	s, _, prov := newTestStation(t)
	_, err := s.Login("jo")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		s.handle(context.Background(), frame("unknown-code", measure.Dimension{}))
	}
	assert.Equal(t, []string{"unknown-code"}, prov.keys)

	s.Finish()
	s.handle(context.Background(), frame("unknown-code", measure.Dimension{}))
	assert.Len(t, prov.keys, 2, "finish clears the last key")
}

func TestSlipTransferIDStartsInspection(t *testing.T) {
	s, _, _ := newTestStation(t)
	_, err := s.Login("jo")
	require.NoError(t, err)

	r := frame("", measure.Dimension{})
	r.SlipTransferID = "334456"
	s.handle(context.Background(), r)

	in, ok := s.Inspection()
	require.True(t, ok)
	assert.Equal(t, int64(334456), in.Record.TransferID)
}

func TestOverrideFlagFinish(t *testing.T) {
	s, _, _ := newTestStation(t)
	rec := record(s, EventOverrideConfirmed, EventOverrideRejected, EventFlagChanged, EventFinished, EventMeasured)
	ctx := context.Background()

	_, err := s.Override(qa.OverrideInput{})
	assert.ErrorIs(t, err, ErrNoInspection)
	_, err = s.ToggleFlag()
	assert.ErrorIs(t, err, ErrNoInspection)

	_, err = s.Login("jo")
	require.NoError(t, err)
	require.NoError(t, s.Search(ctx, "334456"))
	s.handle(ctx, frame("", measure.Dimension{Length: 19, Width: 11, Height: 7.7}))

	_, err = s.Override(qa.OverrideInput{})
	assert.ErrorIs(t, err, qa.ErrInvalidOverride, "quantity is required")
	assert.Len(t, rec.get(EventOverrideRejected), 1)

	o, err := s.Override(qa.OverrideInput{Length: "20", Quantity: "40"})
	require.NoError(t, err)
	assert.Equal(t, 20.0, o.Length)
	confirmed := rec.get(EventOverrideConfirmed)
	require.Len(t, confirmed, 1)
	assert.False(t, confirmed[0].(InspectionEvent).UpdatesEnabled)

	// Frozen after override.
	s.handle(ctx, frame("", measure.Dimension{Length: 50, Width: 50, Height: 50}))
	assert.Len(t, rec.get(EventMeasured), 1)

	flagged, err := s.ToggleFlag()
	require.NoError(t, err)
	assert.True(t, flagged)
	assert.True(t, rec.get(EventFlagChanged)[0].(InspectionEvent).Flagged)

	s.Finish()
	_, ok := s.Inspection()
	assert.False(t, ok)
	assert.Empty(t, s.Session().Search)
	assert.Len(t, rec.get(EventFinished), 1)
}

func TestTerminalResults(t *testing.T) {
	s, _, _ := newTestStation(t)
	rec := record(s, EventCaptureUnavailable, EventCaptureStopped, EventFrame)

	usb := errors.New("usb gone")
	s.handle(context.Background(), session.Result{Terminal: true, State: session.StateUnavailable, Err: usb})
	s.handle(context.Background(), session.Result{Terminal: true, State: session.StateStopped})

	require.Len(t, rec.get(EventCaptureUnavailable), 1)
	assert.Equal(t, usb, rec.get(EventCaptureUnavailable)[0])
	assert.Len(t, rec.get(EventCaptureStopped), 1)
	assert.Empty(t, rec.get(EventFrame))
}

// slowProvider never answers before the context expires.
type slowProvider struct{}

func (slowProvider) Lookup(ctx context.Context, _ string) (*wms.TransferRecord, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestLookupTimeout(t *testing.T) {
	s := NewStation(newFakeCapture(), slowProvider{}, Options{LookupTimeout: 20 * time.Millisecond})
	rec := record(s, EventLookupFailed)
	_, err := s.Login("jo")
	require.NoError(t, err)

	err = s.Search(context.Background(), "334456")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "WMS did not answer in time.", rec.get(EventLookupFailed)[0].(LookupFailedEvent).Message)
}

func TestRunConsumesUntilCancelled(t *testing.T) {
	s, fc, _ := newTestStation(t)
	frames := make(chan FrameEvent, 4)
	s.On(EventFrame, func(data interface{}) { frames <- data.(FrameEvent) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	fc.results <- frame("", measure.Dimension{Length: 1})
	select {
	case f := <-frames:
		assert.Equal(t, 1.0, f.Dimension.Length)
	case <-time.After(2 * time.Second):
		t.Fatal("frame not delivered")
	}

	require.NoError(t, s.StartCapture(ctx), "restart while running is not an error")
	cancel()
	require.NoError(t, <-done)
	assert.True(t, fc.closed)
}

func TestLogout(t *testing.T) {
	s, _, _ := newTestStation(t)
	_, err := s.Login("")
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	_, err = s.Login("jo")
	require.NoError(t, err)
	require.NoError(t, s.Search(context.Background(), "334456"))
	s.Logout()
	assert.False(t, s.Session().LoggedIn())
	_, ok := s.Inspection()
	assert.False(t, ok)
}

func TestFileWatcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "station.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: 1\n"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	w := NewFileWatcher(path, 10*time.Millisecond)
	require.NotNil(t, w)
	assert.False(t, w.Changed())

	changed := make(chan string, 1)
	w.OnChange(func(p string) { changed <- p })
	w.Start()
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("a: 2\n"), 0o644))
	select {
	case p := <-changed:
		assert.Equal(t, w.Path(), p)
	case <-time.After(2 * time.Second):
		t.Fatal("change not reported")
	}

	w.ResetBaseline()
	assert.False(t, w.Changed())

	assert.Nil(t, NewFileWatcher(filepath.Join(t.TempDir(), "missing"), time.Second))
}

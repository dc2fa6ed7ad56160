package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"qa-station/internal/qa"
	"qa-station/internal/session"
	"qa-station/internal/wms"
)

var (
	ErrNotLoggedIn  = errors.New("no operator logged in")
	ErrNoInspection = errors.New("no transfer under inspection")
	ErrEmptySearch  = errors.New("enter a transfer id")
)

// Capture is the part of the session driver the station uses.
type Capture interface {
	Start(ctx context.Context) error
	Close() error
	Subscribe(buffer int) <-chan session.Result
	State() session.State
}

// Options configures a Station.
type Options struct {
	LookupTimeout time.Duration
	Buffer        int // capture results queued for the station
	Logger        *zap.SugaredLogger
}

// Station holds the operator session and the current inspection.
type Station struct {
	capture  Capture
	provider wms.Provider
	results  <-chan session.Result
	timeout  time.Duration
	logger   *zap.SugaredLogger

	mu         sync.RWMutex
	session    SessionContext
	inspection *qa.Inspection
	lastKey    string
	listeners  map[EventType][]EventListener
}

// NewStation creates a station over a capture driver and a WMS provider.
func NewStation(capture Capture, provider wms.Provider, opts Options) *Station {
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = wms.DefaultTimeout
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 2
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	return &Station{
		capture:   capture,
		provider:  provider,
		results:   capture.Subscribe(opts.Buffer),
		timeout:   opts.LookupTimeout,
		logger:    opts.Logger,
		listeners: make(map[EventType][]EventListener),
	}
}

// On registers an event listener for the specified event type.
func (s *Station) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *Station) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// Session returns a copy of the operator session.
func (s *Station) Session() SessionContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Inspection returns a snapshot of the current inspection.
func (s *Station) Inspection() (InspectionEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.inspection == nil {
		return InspectionEvent{}, false
	}
	return snapshot(s.inspection), true
}

// CaptureState returns the driver state.
func (s *Station) CaptureState() session.State {
	return s.capture.State()
}

// Run starts capture and consumes results until ctx is done.
func (s *Station) Run(ctx context.Context) error {
	if err := s.StartCapture(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return s.capture.Close()
		case r := <-s.results:
			s.handle(ctx, r)
		}
	}
}

// StartCapture starts, or restarts after a failure, the capture session.
func (s *Station) StartCapture(ctx context.Context) error {
	err := s.capture.Start(ctx)
	if errors.Is(err, session.ErrRunning) {
		return nil
	}
	return err
}

func (s *Station) handle(ctx context.Context, r session.Result) {
	if r.Terminal {
		if r.State == session.StateUnavailable {
			s.logger.Warnw("capture unavailable", "error", r.Err)
			s.Emit(EventCaptureUnavailable, r.Err)
		} else {
			s.Emit(EventCaptureStopped, r.Err)
		}
		return
	}

	frame := FrameEvent{Frame: r.Frame, FPS: r.FPS, Dimension: r.Dimension, Candidates: r.Candidates}
	key := r.SlipTransferID
	if r.Barcode != nil {
		frame.Barcode = r.Barcode.Payload
		key = r.Barcode.Payload
	}
	s.Emit(EventFrame, frame)

	if key != "" && s.shouldLookup(key) {
		s.lookup(ctx, key)
	}
	s.observe(r)
}

// shouldLookup skips scans before login, repeats of the last key and codes
// belonging to the active transfer.
func (s *Station) shouldLookup(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.session.LoggedIn() || key == s.lastKey {
		return false
	}
	if in := s.inspection; in != nil && (in.Record.BarcodeID == key || in.Record.Key() == key) {
		return false
	}
	return true
}

func (s *Station) observe(r session.Result) {
	s.mu.Lock()
	in := s.inspection
	if in == nil || !in.Observe(r.Dimension) {
		s.mu.Unlock()
		return
	}
	ev := snapshot(in)
	s.mu.Unlock()
	s.Emit(EventMeasured, ev)
}

// lookup resolves key in the WMS and admits the transfer.
func (s *Station) lookup(ctx context.Context, key string) error {
	s.mu.Lock()
	s.lastKey = key
	s.mu.Unlock()

	lctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rec, err := s.provider.Lookup(lctx, key)
	if err == nil {
		var in *qa.Inspection
		in, err = qa.Admit(rec)
		if err == nil {
			s.mu.Lock()
			s.inspection = in
			s.session.Search = key
			ev := snapshot(in)
			s.mu.Unlock()
			s.logger.Infow("inspection started", "transfer", rec.TransferID, "key", key)
			s.Emit(EventInspectionStarted, ev)
			return nil
		}
	}

	ev := LookupFailedEvent{Key: key, Err: err, Message: lookupMessage(key, err)}
	s.logger.Infow("lookup failed", "key", key, "error", err)
	s.Emit(EventLookupFailed, ev)
	return err
}

func lookupMessage(key string, err error) string {
	var nae *qa.NotAwaitingError
	switch {
	case errors.Is(err, wms.ErrNotFound):
		return fmt.Sprintf("%s not recognised.", key)
	case errors.As(err, &nae):
		return nae.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "WMS did not answer in time."
	default:
		return fmt.Sprintf("WMS lookup failed: %v", err)
	}
}

// Login starts a new operator session.
func (s *Station) Login(operator string) (SessionContext, error) {
	operator = strings.TrimSpace(operator)
	if operator == "" {
		return SessionContext{}, ErrNotLoggedIn
	}
	s.mu.Lock()
	s.session = SessionContext{ID: uuid.New(), Operator: operator, Started: time.Now()}
	s.inspection = nil
	s.lastKey = ""
	sc := s.session
	s.mu.Unlock()

	s.logger.Infow("operator logged in", "operator", operator, "session", sc.ID)
	s.Emit(EventLoggedIn, sc)
	return sc, nil
}

// Logout ends the operator session and drops the inspection.
func (s *Station) Logout() {
	s.mu.Lock()
	sc := s.session
	s.session = SessionContext{}
	s.inspection = nil
	s.lastKey = ""
	s.mu.Unlock()
	s.Emit(EventLoggedOut, sc)
}

// Search looks up a transfer typed by the operator.
func (s *Station) Search(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptySearch
	}
	if !s.Session().LoggedIn() {
		return ErrNotLoggedIn
	}
	return s.lookup(ctx, text)
}

// Override validates and confirms operator-entered values.
func (s *Station) Override(input qa.OverrideInput) (qa.Override, error) {
	s.mu.Lock()
	in := s.inspection
	if in == nil {
		s.mu.Unlock()
		return qa.Override{}, ErrNoInspection
	}
	o, err := qa.BuildOverride(input, in.Measured, in.Record)
	if err != nil {
		s.mu.Unlock()
		s.Emit(EventOverrideRejected, err)
		return qa.Override{}, err
	}
	in.Confirm(o)
	ev := snapshot(in)
	s.mu.Unlock()

	s.logger.Infow("override confirmed", "transfer", in.Record.TransferID,
		"length", o.Length, "width", o.Width, "height", o.Height, "weight", o.ActualWeight, "quantity", o.Quantity)
	s.Emit(EventOverrideConfirmed, ev)
	return o, nil
}

// ToggleFlag flips the investigation flag of the current transfer.
func (s *Station) ToggleFlag() (bool, error) {
	s.mu.Lock()
	in := s.inspection
	if in == nil {
		s.mu.Unlock()
		return false, ErrNoInspection
	}
	flagged := in.ToggleFlag()
	ev := snapshot(in)
	s.mu.Unlock()
	s.Emit(EventFlagChanged, ev)
	return flagged, nil
}

// Finish clears the inspection so the next scan or search starts fresh.
func (s *Station) Finish() {
	s.mu.Lock()
	s.inspection = nil
	s.lastKey = ""
	s.session.Search = ""
	s.mu.Unlock()
	s.Emit(EventFinished, nil)
}

// Package session runs the capture loop: it pulls synchronized frames and
// detections from the camera, measures, decodes barcodes and publishes results.
package session

import (
	"errors"
	"image"
	"time"

	"qa-station/internal/barcode"
	"qa-station/internal/measure"
)

// State is the capture session state.
type State int32

const (
	// StateIdle is the initial state.
	StateIdle State = iota
	// StateCapturing means the worker is pulling frames.
	StateCapturing
	// StateStopped means the worker exited after a stop request or end of stream.
	StateStopped
	// StateUnavailable means the device failed; a new Start may retry.
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateStopped:
		return "stopped"
	case StateUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

var (
	// ErrRunning is returned by Start while a session is capturing.
	ErrRunning = errors.New("session: already capturing")
	// ErrNoTopology is returned by Start without a camera topology.
	ErrNoTopology = errors.New("session: no camera topology")

	errStopped = errors.New("session: stopped")
)

// Result is what the driver publishes once per frame, or once with Terminal
// set when the session ends on its own.
type Result struct {
	Seq       int64
	Timestamp time.Time

	// Frame is the annotated display frame. Subscribers own it.
	Frame     image.Image
	Dimension measure.Dimension
	Barcode   *barcode.Result

	// SlipTransferID is a transfer id read by OCR when no barcode was visible.
	SlipTransferID string
	// Candidates are catalog product ids matching the frame.
	Candidates []string

	FPS float64

	Terminal bool
	State    State
	Err      error
}

// fpsCounter reports frames per second since the first tick.
type fpsCounter struct {
	start time.Time
	count int
}

func (f *fpsCounter) Tick(now time.Time) float64 {
	if f.start.IsZero() {
		f.start = now
	}
	f.count++
	elapsed := now.Sub(f.start).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(f.count) / elapsed
}

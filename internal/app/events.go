// Package app coordinates the station: operator session, capture results,
// WMS lookups and the current inspection. Views subscribe to its events.
package app

import (
	"image"
	"time"

	"github.com/google/uuid"

	"qa-station/internal/measure"
	"qa-station/internal/qa"
	"qa-station/internal/wms"
)

// SessionContext is the operator's login session.
type SessionContext struct {
	ID       uuid.UUID
	Operator string
	Search   string
	Started  time.Time
}

// LoggedIn reports whether an operator is logged in.
func (s SessionContext) LoggedIn() bool {
	return s.Operator != ""
}

// EventType identifies different station events.
type EventType int

const (
	EventLoggedIn EventType = iota
	EventLoggedOut
	EventFrame
	EventInspectionStarted
	EventMeasured
	EventLookupFailed
	EventCaptureStopped
	EventCaptureUnavailable
	EventOverrideConfirmed
	EventOverrideRejected
	EventFlagChanged
	EventFinished
	EventConfigChanged
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// FrameEvent carries one display frame. It is the payload of EventFrame.
type FrameEvent struct {
	Frame      image.Image
	FPS        float64
	Dimension  measure.Dimension
	Barcode    string
	Candidates []string
}

// InspectionEvent is a snapshot of the current inspection.
type InspectionEvent struct {
	Record         *wms.TransferRecord
	Measured       measure.Dimension
	Status         qa.Status
	Mismatch       bool
	Flagged        bool
	Override       *qa.Override
	UpdatesEnabled bool
}

// LookupFailedEvent explains why a search or scan did not start QA.
type LookupFailedEvent struct {
	Key     string
	Message string
	Err     error
}

func snapshot(in *qa.Inspection) InspectionEvent {
	return InspectionEvent{
		Record:         in.Record,
		Measured:       in.Measured,
		Status:         in.Status,
		Mismatch:       in.Mismatch(),
		Flagged:        in.Flagged,
		Override:       in.Override,
		UpdatesEnabled: in.UpdatesEnabled(),
	}
}

package qa

import (
	"errors"
	"fmt"

	"qa-station/internal/measure"
	"qa-station/internal/wms"
)

// ErrNotAwaiting is returned by Admit for transfers that are not awaiting QA.
var ErrNotAwaiting = errors.New("transfer not awaiting qa")

// NotAwaitingError carries the state of a transfer that cannot start QA.
type NotAwaitingError struct {
	TransferID int64
	State      string
}

func (e *NotAwaitingError) Error() string {
	return fmt.Sprintf("QA %s", e.State)
}

// Is makes errors.Is(err, ErrNotAwaiting) hold.
func (e *NotAwaitingError) Is(target error) bool {
	return target == ErrNotAwaiting
}

// Inspection is the QA of one transfer.
type Inspection struct {
	Record   *wms.TransferRecord
	Measured measure.Dimension
	Status   Status
	Flagged  bool
	Override *Override

	updates bool
}

// Admit starts an inspection for a transfer awaiting QA.
func Admit(rec *wms.TransferRecord) (*Inspection, error) {
	if rec == nil {
		return nil, wms.ErrNotFound
	}
	if rec.State != wms.StateAwaitingQA {
		return nil, &NotAwaitingError{TransferID: rec.TransferID, State: rec.State}
	}
	return &Inspection{Record: rec, Status: StatusDefault, updates: true}, nil
}

// UpdatesEnabled reports whether new measurements are still accepted.
func (in *Inspection) UpdatesEnabled() bool {
	return in.updates
}

// Observe records a measurement and re-evaluates the status. It returns false
// once the inspection has been confirmed, or for an all-zero measurement.
func (in *Inspection) Observe(dim measure.Dimension) bool {
	if !in.updates || dim.IsZero() {
		return false
	}
	in.Measured = dim
	in.Status = StatusFor(Mismatch(dim, in.Record.Dimensions))
	return true
}

// Mismatch reports whether the current measurement disagrees with the record.
func (in *Inspection) Mismatch() bool {
	return Mismatch(in.Measured, in.Record.Dimensions)
}

// Confirm applies an override and freezes the inspection.
func (in *Inspection) Confirm(o Override) {
	in.Override = &o
	in.Measured = o.Dimension()
	in.Status = StatusSuccess
	in.updates = false
}

// ToggleFlag flips the investigation flag and returns the new value.
func (in *Inspection) ToggleFlag() bool {
	in.Flagged = !in.Flagged
	return in.Flagged
}

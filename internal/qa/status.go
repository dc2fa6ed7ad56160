// Package qa compares measured dimensions against warehouse records and
// tracks the operator's decisions for one inspection.
package qa

import (
	"math"

	"qa-station/internal/measure"
	"qa-station/internal/wms"
)

// Tolerance is the largest per-axis difference, in cm, that still matches.
const Tolerance = 0.5

// Status is the displayed outcome of an inspection.
type Status string

const (
	StatusDefault Status = "default"
	StatusSuccess Status = "success"
	StatusLapse   Status = "lapse"
)

// Mismatch reports whether any axis of measured differs from expected by more
// than Tolerance. Height is compared against the record's depth.
func Mismatch(measured measure.Dimension, expected wms.Dimensions) bool {
	return !within(measured.Length, expected.Length) ||
		!within(measured.Width, expected.Width) ||
		!within(measured.Height, expected.Depth)
}

func within(got, want float64) bool {
	// Round away float noise such as 20.5-20 = 0.5000000001.
	return math.Round(math.Abs(got-want)*1e6)/1e6 <= Tolerance
}

// StatusFor maps a mismatch result to a status.
func StatusFor(mismatch bool) Status {
	if mismatch {
		return StatusLapse
	}
	return StatusSuccess
}

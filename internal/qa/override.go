package qa

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/multierr"

	"qa-station/internal/measure"
	"qa-station/internal/wms"
)

// ErrInvalidOverride is returned when an override has a missing, zero or
// unparsable value.
var ErrInvalidOverride = errors.New("override failed, try providing valid measurements")

// OverrideInput is the raw text the operator typed. Empty fields fall back to
// the measured value, or to the record's weight for ActualWeight.
type OverrideInput struct {
	Length       string
	Width        string
	Height       string
	ActualWeight string
	Quantity     string
}

// Override is an operator-confirmed set of values.
type Override struct {
	Length         float64
	Width          float64
	Height         float64
	ActualWeight   float64
	ExpectedWeight float64
	Quantity       int
}

// Dimension returns the overridden dimensions.
func (o Override) Dimension() measure.Dimension {
	return measure.Dimension{Length: o.Length, Width: o.Width, Height: o.Height}
}

// BuildOverride validates in against the measured values and the record.
// Every value must be positive.
func BuildOverride(in OverrideInput, measured measure.Dimension, rec *wms.TransferRecord) (Override, error) {
	if rec == nil {
		return Override{}, fmt.Errorf("%w: no transfer", ErrInvalidOverride)
	}

	var errs error
	field := func(name, text string, fallback float64) float64 {
		v, err := parseAmount(text, fallback)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
			return 0
		}
		if v <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("%s must be positive", name))
		}
		return v
	}

	o := Override{
		Length:         field("length", in.Length, measured.Length),
		Width:          field("width", in.Width, measured.Width),
		Height:         field("height", in.Height, measured.Height),
		ActualWeight:   field("actual weight", in.ActualWeight, rec.Weight),
		ExpectedWeight: field("expected weight", "", rec.Weight),
	}
	if q, err := strconv.Atoi(strings.TrimSpace(in.Quantity)); err != nil || q <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("quantity %q must be a positive whole number", in.Quantity))
	} else {
		o.Quantity = q
	}
	if errs != nil {
		return Override{}, fmt.Errorf("%w: %v", ErrInvalidOverride, errs)
	}
	return o, nil
}

// parseAmount reads a number, ignoring surrounding space and a trailing unit
// such as "cm" or "g".
func parseAmount(text string, fallback float64) (float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return fallback, nil
	}
	if fields := strings.Fields(text); len(fields) > 1 {
		text = fields[0]
	}
	text = strings.TrimRight(text, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", text)
	}
	return v, nil
}

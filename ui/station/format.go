package station

import (
	"fmt"
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"

	"qa-station/internal/app"
	"qa-station/internal/qa"
)

// row is one line of the measured-vs-expected table.
type row struct {
	Label    string
	Measured string
	Expected string
}

// dashboardRows lays out an inspection for display.
func dashboardRows(ev app.InspectionEvent) []row {
	rec := ev.Record
	lu, wu := rec.LengthUnit(), rec.WeightUnit()
	rows := []row{
		{"Length", amount(ev.Measured.Length, lu), amount(rec.Dimensions.Length, lu)},
		{"Width", amount(ev.Measured.Width, lu), amount(rec.Dimensions.Width, lu)},
		{"Height", amount(ev.Measured.Height, lu), amount(rec.Dimensions.Depth, lu)},
		{"Weight", "-", amount(rec.Weight, wu)},
		{"Quantity", "-", fmt.Sprintf("%d", rec.Quantity)},
	}
	if o := ev.Override; o != nil {
		rows[3].Measured = amount(o.ActualWeight, wu)
		rows[4].Measured = fmt.Sprintf("%d", o.Quantity)
	}
	return rows
}

func amount(v float64, unit string) string {
	return fmt.Sprintf("%.1f %s", v, unit)
}

func statusText(ev app.InspectionEvent) string {
	switch ev.Status {
	case qa.StatusSuccess:
		if ev.Override != nil {
			return "Override confirmed"
		}
		return "Dimensions match"
	case qa.StatusLapse:
		return "Dimensions do not match"
	default:
		return "Waiting for measurement"
	}
}

func statusColor(s qa.Status) color.Color {
	switch s {
	case qa.StatusSuccess:
		return colorSuccess
	case qa.StatusLapse:
		return colorLapse
	default:
		return color.Gray{Y: 0x80}
	}
}

func flagButtonText(flagged bool) string {
	if flagged {
		return "REMOVE"
	}
	return "FLAG"
}

func flagMessage(flagged bool) string {
	if flagged {
		return "Product flagged for investigation"
	}
	return "Product removed from investigation queue"
}

// fitWidth scales img down to at most maxWidth pixels wide.
func fitWidth(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}
	h := b.Dy() * maxWidth / b.Dx()
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

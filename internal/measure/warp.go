package measure

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"qa-station/pkg/geometry"
)

// Unwarp maps the quad in u onto a Width x Height image and crops Pad pixels
// from every edge. The caller owns the returned Mat.
func Unwarp(src gocv.Mat, u UnwarpParams) (gocv.Mat, error) {
	if u.Width <= 2*u.Pad || u.Height <= 2*u.Pad {
		return gocv.NewMat(), fmt.Errorf("unwarp size %dx%d too small for pad %d", u.Width, u.Height, u.Pad)
	}

	h, err := geometry.UnwarpTo(u.Corners, float64(u.Width), float64(u.Height))
	if err != nil {
		return gocv.NewMat(), err
	}

	m := homographyMat(h)
	defer m.Close()

	warped := gocv.NewMat()
	defer warped.Close()
	gocv.WarpPerspective(src, &warped, m, image.Point{X: u.Width, Y: u.Height})

	crop := warped.Region(image.Rect(u.Pad, u.Pad, u.Width-u.Pad, u.Height-u.Pad))
	defer crop.Close()
	return crop.Clone(), nil
}

func homographyMat(h geometry.Homography) gocv.Mat {
	m := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	rows := h.Matrix()
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m.SetDoubleAt(r, c, rows.At(r, c))
		}
	}
	return m
}

package measure

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"qa-station/pkg/geometry"
)

var textColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// drawBox draws the rotated box, the length and width arrows and their labels.
func drawBox(img *gocv.Mat, q geometry.Quad, dim Dimension, c color.RGBA) {
	tl := q.TopLeft().ImagePoint()
	tr := q.TopRight().ImagePoint()
	bl := q.BottomLeft().ImagePoint()
	br := q.BottomRight().ImagePoint()

	gocv.Line(img, tl, tr, c, 2)
	gocv.Line(img, tr, br, c, 2)
	gocv.Line(img, br, bl, c, 2)
	gocv.Line(img, bl, tl, c, 2)

	gocv.ArrowedLine(img, tl, tr, c, 3)
	gocv.ArrowedLine(img, tl, bl, c, 3)

	bounds := geometry.BoundingBox(q.Points())
	gocv.PutText(img, fmt.Sprintf("L: %.1f cm", dim.Length),
		image.Pt(bounds.Min.X+10, bounds.Min.Y+50), gocv.FontHersheyTriplex, 0.5, textColor, 1)
	gocv.PutText(img, fmt.Sprintf("W: %.1f cm", dim.Width),
		image.Pt(bounds.Min.X+10, bounds.Min.Y+65), gocv.FontHersheyTriplex, 0.5, textColor, 1)
}

// drawHeight labels the detection box that produced the height.
func drawHeight(img *gocv.Mat, box image.Rectangle, height float64, c color.RGBA) {
	gocv.PutText(img, fmt.Sprintf("Z: %.2f cm", height),
		image.Pt(box.Min.X+18, box.Min.Y+95), gocv.FontHersheyTriplex, 0.5, c, 1)
}

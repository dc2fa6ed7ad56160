// Package measure computes object length, width and height from a color frame
// and the detector's spatial results.
package measure

import (
	"errors"
	"fmt"
	"image"
	"math"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"qa-station/internal/detect"
	"qa-station/pkg/geometry"
)

// ErrEmptyFrame is returned when Measure is given an empty Mat.
var ErrEmptyFrame = errors.New("empty frame")

// Dimension is a measured size in centimetres. Every field is >= 0.
type Dimension struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IsZero reports whether nothing was measured.
func (d Dimension) IsZero() bool {
	return d.Length == 0 && d.Width == 0 && d.Height == 0
}

// Measurement is the result of one Measure call.
type Measurement struct {
	// Annotated is a copy of the (possibly unwarped) frame with the overlay
	// drawn on it. The caller owns it and must Close it.
	Annotated gocv.Mat
	Dimension Dimension
	// Box holds the canonical corners of the selected contour, nil when no
	// contour passed the area threshold.
	Box *geometry.Quad
	// Candidates is the number of contours above the area threshold.
	Candidates int
	// HeightFrom is the index of the detection that set the height, or -1.
	HeightFrom int
}

// Close releases the annotated frame.
func (m *Measurement) Close() error {
	return m.Annotated.Close()
}

// Engine runs the blur, edge, dilate, contour pipeline.
// It holds no per-frame state and is safe for concurrent use.
type Engine struct {
	params Params
	labels detect.LabelMap
	logger *zap.SugaredLogger
}

// NewEngine creates an engine. The blur kernel is normalized to an odd size.
func NewEngine(params Params, labels detect.LabelMap, logger *zap.SugaredLogger) *Engine {
	params.BlurKernel = OddKernel(params.BlurKernel)
	if params.DilateKernel <= 0 {
		params.DilateKernel = 1
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Engine{params: params, labels: labels, logger: logger}
}

// Params returns the engine's effective parameters.
func (e *Engine) Params() Params {
	return e.params
}

// Measure computes length and width from the largest qualifying contour in
// frame and height from the first "object" detection with a nonzero depth.
// Missing contours or detections produce zero values, not errors.
func (e *Engine) Measure(frame gocv.Mat, detections []detect.Detection, baseDepth float64) (*Measurement, error) {
	if frame.Empty() {
		return nil, ErrEmptyFrame
	}

	src := frame
	if e.params.Unwarp != nil {
		warped, err := Unwarp(frame, *e.params.Unwarp)
		if err != nil {
			return nil, fmt.Errorf("unwarp: %w", err)
		}
		defer warped.Close()
		src = warped
	}

	m := &Measurement{Annotated: src.Clone(), HeightFrom: -1}

	edges := e.edgeMap(src)
	defer edges.Close()

	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxNone)
	defer contours.Close()

	areas := make([]float64, contours.Size())
	for i := range areas {
		areas[i] = gocv.ContourArea(contours.At(i))
	}
	best, candidates := SelectLargest(areas, e.params.AreaMin)
	m.Candidates = candidates

	if best >= 0 {
		rect := gocv.MinAreaRect(contours.At(best))
		if quad, ok := QuadFromRect(rect); ok {
			m.Box = &quad
			m.Dimension.Length, m.Dimension.Width = Dimensions(quad, e.params.ScaleX, e.params.ScaleY)
			if e.params.Draw {
				drawBox(&m.Annotated, quad, m.Dimension, e.params.Color)
			}
		}
	}

	h, idx := Height(detections, e.labels, baseDepth)
	m.Dimension.Height = h
	m.HeightFrom = idx
	if idx >= 0 && e.params.Draw {
		box := detections[idx].Denormalize(src.Cols(), src.Rows())
		drawHeight(&m.Annotated, box, h, e.params.Color)
	}

	e.logger.Debugw("measured",
		"contours", len(areas),
		"candidates", candidates,
		"length", m.Dimension.Length,
		"width", m.Dimension.Width,
		"height", m.Dimension.Height)

	return m, nil
}

// edgeMap returns the closed edge image of src.
func (e *Engine) edgeMap(src gocv.Mat) gocv.Mat {
	blurred := gocv.NewMat()
	defer blurred.Close()
	k := e.params.BlurKernel
	gocv.GaussianBlur(src, &blurred, image.Point{X: k, Y: k}, e.params.BlurSigma, e.params.BlurSigma, gocv.BorderDefault)

	gray := gocv.NewMat()
	defer gray.Close()
	if blurred.Channels() == 1 {
		blurred.CopyTo(&gray)
	} else {
		gocv.CvtColor(blurred, &gray, gocv.ColorBGRToGray)
	}

	edges := gocv.NewMat()
	gocv.Canny(gray, &edges, e.params.CannyLow, e.params.CannyHigh)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: e.params.DilateKernel, Y: e.params.DilateKernel})
	defer kernel.Close()
	for i := 0; i < e.params.DilateIterations; i++ {
		gocv.Dilate(edges, &edges, kernel)
	}
	// Eroding back by the same amount closes gaps without growing the outline.
	for i := 0; i < e.params.DilateIterations; i++ {
		gocv.Erode(edges, &edges, kernel)
	}
	return edges
}

// SelectLargest returns the index of the largest area strictly greater than
// areaMin, and how many areas qualified. Ties keep the earliest index.
// It returns -1 when nothing qualifies.
func SelectLargest(areas []float64, areaMin float64) (best, candidates int) {
	best = -1
	for i, a := range areas {
		if a <= areaMin {
			continue
		}
		candidates++
		if best < 0 || a > areas[best] {
			best = i
		}
	}
	return best, candidates
}

// QuadFromRect orders the corners of a rotated rectangle canonically.
func QuadFromRect(rect gocv.RotatedRect) (geometry.Quad, bool) {
	if len(rect.Points) != 4 {
		return geometry.Quad{}, false
	}
	pts := make([]geometry.Point2D, 4)
	for i, p := range rect.Points {
		pts[i] = geometry.FromImagePoint(p)
	}
	return geometry.ReorderSlice(pts)
}

// Dimensions converts canonical corners to length and width in centimetres,
// rounded to one decimal. Length runs top-left to top-right and uses scaleX;
// width runs top-left to bottom-left and uses scaleY.
func Dimensions(q geometry.Quad, scaleX, scaleY float64) (length, width float64) {
	length = geometry.RoundTo(geometry.ScaledDistance(q.TopLeft(), q.TopRight(), scaleX)/10, 1)
	width = geometry.RoundTo(geometry.ScaledDistance(q.TopLeft(), q.BottomLeft(), scaleY)/10, 1)
	return length, width
}

// Height returns baseDepth minus the depth of the first detection labelled
// "object" with a nonzero Z, in centimetres, clamped at zero. Background
// detections never count. The second result is the index of the detection
// used, or -1 when none qualified.
func Height(detections []detect.Detection, labels detect.LabelMap, baseDepth float64) (float64, int) {
	for i, d := range detections {
		switch labels.Resolve(d.Label) {
		case detect.LabelBackground:
			continue
		case detect.LabelObject:
			if d.Spatial.Z == 0 {
				continue
			}
			h := baseDepth - math.Trunc(d.Spatial.Z)/10
			if h < 0 {
				h = 0
			}
			return geometry.RoundTo(h, 1), i
		}
	}
	return 0, -1
}

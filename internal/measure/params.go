package measure

import (
	"image/color"

	"qa-station/pkg/geometry"
)

// Params controls the contour measurement pipeline.
type Params struct {
	// Gaussian blur applied before edge detection. Kernel is always odd.
	BlurKernel int
	BlurSigma  float64

	// Canny hysteresis thresholds.
	CannyLow  float32
	CannyHigh float32

	// Square kernel used to close gaps in the edge map: dilated, then eroded
	// the same number of iterations.
	DilateKernel     int
	DilateIterations int

	// Contours must enclose strictly more than AreaMin square pixels.
	AreaMin float64

	// Pixels per millimetre along the image x and y axes.
	ScaleX float64
	ScaleY float64

	// Overlay color for the box, arrows and labels.
	Color color.RGBA
	Draw  bool

	// Optional reference-plane unwarp applied before measuring.
	Unwarp *UnwarpParams
}

// UnwarpParams describes the reference-plane quad and the size it is mapped to.
type UnwarpParams struct {
	Corners [4]geometry.Point2D
	Width   int
	Height  int
	Pad     int // pixels cropped from every edge after warping
}

// DefaultParams returns parameters tuned for the station's overhead camera
// looking at a green mat about 60 cm below.
func DefaultParams() Params {
	return Params{
		BlurKernel:       7,
		BlurSigma:        1,
		CannyLow:         50,
		CannyHigh:        100,
		DilateKernel:     3,
		DilateIterations: 1,
		AreaMin:          5000,
		ScaleX:           0.92,
		ScaleY:           0.92,
		Color:            color.RGBA{R: 0, G: 255, B: 255, A: 255},
		Draw:             true,
	}
}

// WithBlur returns a copy of params with a new blur kernel and sigma.
func (p Params) WithBlur(kernel int, sigma float64) Params {
	p.BlurKernel = OddKernel(kernel)
	p.BlurSigma = sigma
	return p
}

// WithCanny returns a copy of params with new edge thresholds.
func (p Params) WithCanny(low, high float32) Params {
	p.CannyLow = low
	p.CannyHigh = high
	return p
}

// WithDilate returns a copy of params with a new dilation kernel and iteration count.
func (p Params) WithDilate(kernel, iterations int) Params {
	p.DilateKernel = kernel
	p.DilateIterations = iterations
	return p
}

// WithScale returns a copy of params with new pixel-per-mm scale factors.
func (p Params) WithScale(x, y float64) Params {
	p.ScaleX = x
	p.ScaleY = y
	return p
}

// WithAreaMin returns a copy of params with a new contour area threshold.
func (p Params) WithAreaMin(area float64) Params {
	p.AreaMin = area
	return p
}

// WithUnwarp returns a copy of params that unwarps the given quad first.
func (p Params) WithUnwarp(u UnwarpParams) Params {
	p.Unwarp = &u
	return p
}

// OddKernel clamps a Gaussian kernel size to a positive odd value.
// Even sizes are bumped to the next odd size.
func OddKernel(k int) int {
	if k <= 0 {
		return 1
	}
	if k%2 == 0 {
		return k + 1
	}
	return k
}

package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Homography is a 3x3 projective transform with the bottom-right element fixed at 1.
// [h0 h1 h2]
// [h3 h4 h5]
// [h6 h7 1 ]
type Homography [9]float64

// PerspectiveTransform computes the homography mapping the four src corners onto
// the four dst corners.
func PerspectiveTransform(src, dst [4]Point2D) (Homography, error) {
	A := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)

	for i := 0; i < 4; i++ {
		x, y := src[i].X, src[i].Y
		u, v := dst[i].X, dst[i].Y

		A.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -x * u, -y * u})
		b.SetVec(2*i, u)
		A.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -x * v, -y * v})
		b.SetVec(2*i+1, v)
	}

	var h mat.VecDense
	if err := h.SolveVec(A, b); err != nil {
		return Homography{}, fmt.Errorf("degenerate corner set: %w", err)
	}

	var out Homography
	for i := 0; i < 8; i++ {
		out[i] = h.AtVec(i)
	}
	out[8] = 1
	return out, nil
}

// UnwarpTo returns the homography taking the (unordered) quad corners onto an
// axis-aligned w×h rectangle. Corners are put in canonical order first.
func UnwarpTo(corners [4]Point2D, w, h float64) (Homography, error) {
	src := ReorderCorners(corners)
	dst := [4]Point2D{{0, 0}, {w, 0}, {0, h}, {w, h}}
	return PerspectiveTransform(src, dst)
}

// Apply maps a point through the homography.
func (h Homography) Apply(p Point2D) Point2D {
	den := h[6]*p.X + h[7]*p.Y + h[8]
	if math.Abs(den) < 1e-12 {
		return Point2D{X: math.Inf(1), Y: math.Inf(1)}
	}
	return Point2D{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / den,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / den,
	}
}

// Matrix returns the homography as a 3x3 gonum matrix.
func (h Homography) Matrix() *mat.Dense {
	return mat.NewDense(3, 3, h[:])
}

package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReorderCornersAxisAligned(t *testing.T) {
	tl := NewPoint2D(10, 20)
	tr := NewPoint2D(210, 20)
	bl := NewPoint2D(10, 120)
	br := NewPoint2D(210, 120)

	perms := [][4]Point2D{
		{tl, tr, bl, br},
		{br, bl, tr, tl},
		{tr, br, tl, bl},
		{bl, tl, br, tr},
	}
	for _, p := range perms {
		q := ReorderCorners(p)
		assert.Equal(t, Quad{tl, tr, bl, br}, q)
	}
}

func TestReorderCornersIdempotent(t *testing.T) {
	for _, deg := range []float64{0, 7, 30, 45, 60, 89, 90, 135, 170} {
		pts := rotatedRect(NewPoint2D(300, 200), 180, 90, deg*math.Pi/180)
		once := ReorderCorners(pts)
		twice := ReorderCorners([4]Point2D(once))
		assert.Equal(t, once, twice, "angle %v", deg)
		assert.ElementsMatch(t, pts[:], once.Points(), "angle %v", deg)
	}
}

func TestReorderCornersDiamond(t *testing.T) {
	// A square rotated by exactly 45 degrees ties on both sums and differences.
	pts := [4]Point2D{{5, 0}, {10, 5}, {5, 10}, {0, 5}}
	q := ReorderCorners(pts)
	assert.ElementsMatch(t, pts[:], q.Points())
	assert.Equal(t, q, ReorderCorners([4]Point2D(q)))
}

func TestReorderSlice(t *testing.T) {
	_, ok := ReorderSlice([]Point2D{{0, 0}, {1, 1}})
	assert.False(t, ok)

	q, ok := ReorderSlice([]Point2D{{4, 3}, {0, 0}, {4, 0}, {0, 3}})
	require.True(t, ok)
	assert.Equal(t, NewPoint2D(4, 0), q.TopRight())
	assert.Equal(t, NewPoint2D(0, 3), q.BottomLeft())
}

func TestScaledDistance(t *testing.T) {
	a := NewPoint2D(0, 0)
	b := NewPoint2D(184, 0)
	assert.InDelta(t, 200.0, ScaledDistance(a, b, 0.92), 1e-9)
	assert.Equal(t, 0.0, ScaledDistance(a, b, 0))
	assert.InDelta(t, 5.0, Distance(NewPoint2D(0, 0), NewPoint2D(3, 4)), 1e-12)
	assert.Equal(t, 20.1, RoundTo(20.06, 1))
}

func TestPerspectiveTransformMapsCorners(t *testing.T) {
	src := [4]Point2D{{12, 8}, {205, 30}, {3, 140}, {220, 155}}
	h, err := UnwarpTo(src, 200, 100)
	require.NoError(t, err)

	want := map[Point2D]Point2D{
		{12, 8}:    {0, 0},
		{205, 30}:  {200, 0},
		{3, 140}:   {0, 100},
		{220, 155}: {200, 100},
	}
	for in, out := range want {
		got := h.Apply(in)
		assert.InDelta(t, out.X, got.X, 1e-6)
		assert.InDelta(t, out.Y, got.Y, 1e-6)
	}
}

func TestPerspectiveTransformDegenerate(t *testing.T) {
	p := NewPoint2D(1, 1)
	_, err := PerspectiveTransform([4]Point2D{p, p, p, p}, [4]Point2D{{0, 0}, {1, 0}, {0, 1}, {1, 1}})
	assert.Error(t, err)
}

func rotatedRect(c Point2D, w, h, theta float64) [4]Point2D {
	cos, sin := math.Cos(theta), math.Sin(theta)
	var out [4]Point2D
	for i, d := range [4][2]float64{{-w / 2, -h / 2}, {w / 2, -h / 2}, {w / 2, h / 2}, {-w / 2, h / 2}} {
		out[i] = Point2D{
			X: math.Round(c.X + d[0]*cos - d[1]*sin),
			Y: math.Round(c.Y + d[0]*sin + d[1]*cos),
		}
	}
	return out
}
func TestHomographyMatrix(t *testing.T) {
	h, err := PerspectiveTransform(
		[4]Point2D{{0, 0}, {1, 0}, {0, 1}, {1, 1}},
		[4]Point2D{{2, 3}, {4, 3}, {2, 5}, {4, 5}},
	)
	require.NoError(t, err)
	m := h.Matrix()
	assert.InDelta(t, 2.0, m.At(0, 0), 1e-9)
	assert.InDelta(t, 2.0, m.At(0, 2), 1e-9)
	assert.InDelta(t, 3.0, m.At(1, 2), 1e-9)
	assert.InDelta(t, 1.0, m.At(2, 2), 1e-9)
}

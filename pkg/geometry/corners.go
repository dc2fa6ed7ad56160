package geometry

// Quad holds four corners in canonical order: top-left, top-right,
// bottom-left, bottom-right.
type Quad [4]Point2D

// Corner indices into a Quad.
const (
	TopLeft = iota
	TopRight
	BottomLeft
	BottomRight
)

// TopLeft returns the top-left corner.
func (q Quad) TopLeft() Point2D { return q[TopLeft] }

// TopRight returns the top-right corner.
func (q Quad) TopRight() Point2D { return q[TopRight] }

// BottomLeft returns the bottom-left corner.
func (q Quad) BottomLeft() Point2D { return q[BottomLeft] }

// BottomRight returns the bottom-right corner.
func (q Quad) BottomRight() Point2D { return q[BottomRight] }

// Points returns the corners as a slice in canonical order.
func (q Quad) Points() []Point2D {
	return []Point2D{q[0], q[1], q[2], q[3]}
}

// ReorderCorners sorts four unordered rectangle corners into canonical order.
//
// The point with the smallest x+y is top-left and the largest x+y is
// bottom-right. Of the two that remain, the smaller y-x is top-right and the
// other bottom-left. Ties prefer the upper point, then the left one, so the
// result depends only on the set of points and is always a permutation of the
// input.
func ReorderCorners(pts [4]Point2D) Quad {
	used := [4]bool{}
	pick := func(better func(a, b Point2D) bool) int {
		best := -1
		for i, p := range pts {
			if used[i] {
				continue
			}
			if best < 0 || better(p, pts[best]) {
				best = i
			}
		}
		used[best] = true
		return best
	}

	tl := pick(func(a, b Point2D) bool {
		sa, sb := a.X+a.Y, b.X+b.Y
		return sa < sb || (sa == sb && upperLeft(a, b))
	})
	br := pick(func(a, b Point2D) bool {
		sa, sb := a.X+a.Y, b.X+b.Y
		return sa > sb || (sa == sb && !upperLeft(a, b) && a != b)
	})
	tr := pick(func(a, b Point2D) bool {
		da, db := a.Y-a.X, b.Y-b.X
		return da < db || (da == db && upperLeft(a, b))
	})
	bl := pick(func(a, b Point2D) bool { return true })

	return Quad{pts[tl], pts[tr], pts[bl], pts[br]}
}

// upperLeft orders points top to bottom, then left to right.
func upperLeft(a, b Point2D) bool {
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}

// ReorderSlice is ReorderCorners for slices. It returns false unless exactly
// four points are given.
func ReorderSlice(pts []Point2D) (Quad, bool) {
	if len(pts) != 4 {
		return Quad{}, false
	}
	return ReorderCorners([4]Point2D{pts[0], pts[1], pts[2], pts[3]}), true
}

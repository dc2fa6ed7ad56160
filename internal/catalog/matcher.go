package catalog

import (
	"sync"

	"gocv.io/x/gocv"
)

// Matching defaults.
const (
	DefaultRatio     = 0.70
	DefaultThreshold = 15
)

// MatcherOptions configures a Matcher.
type MatcherOptions struct {
	Features int     // keypoint budget for the query frame
	Ratio    float64 // best must be strictly below Ratio * second best
	// Entries need strictly more accepted matches than Threshold. Zero accepts
	// any entry with a single accepted match; negative selects DefaultThreshold.
	Threshold int
}

// Matcher finds catalog entries that share enough features with a frame.
// It is safe for concurrent use.
type Matcher struct {
	opts MatcherOptions

	mu      sync.Mutex
	orb     gocv.ORB
	matcher gocv.BFMatcher
}

// NewMatcher creates a matcher using brute-force Hamming distance.
func NewMatcher(opts MatcherOptions) *Matcher {
	if opts.Features <= 0 {
		opts.Features = DefaultFeatures
	}
	if opts.Ratio <= 0 {
		opts.Ratio = DefaultRatio
	}
	if opts.Threshold < 0 {
		opts.Threshold = DefaultThreshold
	}
	return &Matcher{
		opts:    opts,
		orb:     newORB(opts.Features),
		matcher: gocv.NewBFMatcherWithParams(gocv.NormHamming, false),
	}
}

// Close releases the OpenCV objects.
func (m *Matcher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orb.Close()
	return m.matcher.Close()
}

// Match returns the indices of catalog entries whose accepted match count
// exceeds the threshold, in catalog order. Entries without descriptors are
// skipped. An empty catalog or a featureless frame yields an empty result.
func (m *Matcher) Match(frame gocv.Mat, c *Catalog) []int {
	out := []int{}
	if c == nil || c.Len() == 0 || frame.Empty() {
		return out
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	query := m.describe(frame)
	defer query.Close()
	if query.Empty() {
		return out
	}

	for i := range c.entries {
		e := &c.entries[i]
		if !e.Readable() {
			continue
		}
		good := CountAccepted(m.matcher.KnnMatch(e.Descriptors, query, 2), m.opts.Ratio)
		if good > m.opts.Threshold {
			out = append(out, i)
		}
	}
	return out
}

// Counts returns the accepted match count for every entry; unreadable entries
// count zero. A nil catalog has no counts.
func (m *Matcher) Counts(frame gocv.Mat, c *Catalog) []int {
	if c == nil {
		return nil
	}
	counts := make([]int, c.Len())
	if frame.Empty() {
		return counts
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	query := m.describe(frame)
	defer query.Close()
	if query.Empty() {
		return counts
	}
	for i := range c.entries {
		if c.entries[i].Readable() {
			counts[i] = CountAccepted(m.matcher.KnnMatch(c.entries[i].Descriptors, query, 2), m.opts.Ratio)
		}
	}
	return counts
}

// describe computes ORB descriptors of the grayscale frame.
func (m *Matcher) describe(frame gocv.Mat) gocv.Mat {
	gray := frame
	if frame.Channels() != 1 {
		gray = gocv.NewMat()
		defer gray.Close()
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	}
	mask := gocv.NewMat()
	defer mask.Close()
	_, desc := m.orb.DetectAndCompute(gray, mask)
	return desc
}

// CountAccepted applies the distance-ratio test to k-nearest-neighbour matches.
// A match is accepted only when its best distance is strictly below ratio times
// the second best. Queries with fewer than two neighbours are ignored.
func CountAccepted(matches [][]gocv.DMatch, ratio float64) int {
	n := 0
	for _, pair := range matches {
		if len(pair) < 2 {
			continue
		}
		if Accept(pair[0].Distance, pair[1].Distance, ratio) {
			n++
		}
	}
	return n
}

// Accept reports whether best passes the ratio test against second.
func Accept(best, second, ratio float64) bool {
	return best < ratio*second
}

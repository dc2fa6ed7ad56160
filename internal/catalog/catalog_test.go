package catalog

import (
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gocv.io/x/gocv"

	"qa-station/internal/measure"
)

func TestAcceptIsStrict(t *testing.T) {
	assert.True(t, Accept(6.9, 10, DefaultRatio))
	assert.False(t, Accept(7, 10, DefaultRatio))
	assert.False(t, Accept(70, 100, DefaultRatio))
	assert.False(t, Accept(0, 0, DefaultRatio))
}

func TestCountAccepted(t *testing.T) {
	matches := [][]gocv.DMatch{
		{{Distance: 10}, {Distance: 40}}, // accepted
		{{Distance: 28}, {Distance: 40}}, // exactly 0.70, rejected
		{{Distance: 30}, {Distance: 31}}, // ambiguous
		{{Distance: 1}},                  // single neighbour, ignored
		{},
	}
	assert.Equal(t, 1, CountAccepted(matches, DefaultRatio))
}

func TestLoadMissingDir(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"), Options{})
	assert.Error(t, err)
}

func TestLoadEmptyDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not an image"), 0o644))

	c, err := Load(dir, Options{Logger: zaptest.NewLogger(t).Sugar()})
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())

	m := NewMatcher(MatcherOptions{})
	defer m.Close()
	frame := texturedMat(t, 1)
	defer frame.Close()
	assert.Empty(t, m.Match(frame, c))
}

func TestLoadOnlyUnreadableImages(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("garbage"), 0o644))

	c, err := Load(dir, Options{Logger: zaptest.NewLogger(t).Sugar()})
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestLoadAndMatch(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a-widget.png"), texturedImage(1))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b-broken.png"), []byte("garbage"), 0o644))
	writePNG(t, filepath.Join(dir, "c-gadget.png"), texturedImage(2))

	c, err := Load(dir, Options{Logger: zaptest.NewLogger(t).Sugar()})
	require.NoError(t, err)
	defer c.Close()

	require.Equal(t, 3, c.Len())
	assert.Equal(t, "a-widget", c.Entry(0).ProductID)
	assert.True(t, c.Entry(0).Readable())
	assert.False(t, c.Entry(1).Readable())
	assert.Greater(t, c.Entry(2).Keypoints, DefaultThreshold)

	m := NewMatcher(MatcherOptions{Threshold: DefaultThreshold})
	defer m.Close()

	frame := texturedMat(t, 2)
	defer frame.Close()

	got := m.Match(frame, c)
	assert.Contains(t, got, 2)
	assert.NotContains(t, got, 1)
	assert.Equal(t, []string{"c-gadget"}, c.ProductIDs([]int{2}))

	counts := m.Counts(frame, c)
	assert.Equal(t, 0, counts[1])
	assert.Greater(t, counts[2], counts[0])
}

func TestMatcherThresholdOptions(t *testing.T) {
	m := NewMatcher(MatcherOptions{Threshold: -1})
	assert.Equal(t, DefaultThreshold, m.opts.Threshold)
	assert.Equal(t, DefaultRatio, m.opts.Ratio)
	m.Close()

	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a-widget.png"), texturedImage(1))
	writePNG(t, filepath.Join(dir, "b-gadget.png"), texturedImage(2))
	c, err := Load(dir, Options{})
	require.NoError(t, err)
	defer c.Close()

	anyMatch := NewMatcher(MatcherOptions{Threshold: 0})
	defer anyMatch.Close()
	assert.Equal(t, 0, anyMatch.opts.Threshold)

	frame := texturedMat(t, 1)
	defer frame.Close()

	got := anyMatch.Match(frame, c)
	require.Contains(t, got, 0)
	for i, n := range anyMatch.Counts(frame, c) {
		assert.Equal(t, n > 0, contains(got, i), "entry %d with %d accepted matches", i, n)
	}
}

func TestMatcherNilCatalog(t *testing.T) {
	m := NewMatcher(MatcherOptions{})
	defer m.Close()
	frame := texturedMat(t, 1)
	defer frame.Close()

	assert.Empty(t, m.Match(frame, nil))
	assert.Nil(t, m.Counts(frame, nil))
}

func contains(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func TestProductIDsSkipsOutOfRange(t *testing.T) {
	c := &Catalog{entries: []Entry{{ProductID: "x", Descriptors: gocv.NewMat()}}}
	defer c.Close()
	assert.Equal(t, []string{"x"}, c.ProductIDs([]int{-1, 0, 5}))
}

// texturedImage draws random gray rectangles, which gives ORB plenty of corners.
func texturedImage(seed int64) *image.RGBA {
	r := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	for n := 0; n < 60; n++ {
		x, y := r.Intn(300), r.Intn(220)
		w, h := 5+r.Intn(40), 5+r.Intn(40)
		v := uint8(r.Intn(200))
		for yy := y; yy < y+h && yy < 240; yy++ {
			for xx := x; xx < x+w && xx < 320; xx++ {
				img.Set(xx, yy, color.RGBA{R: v, G: v, B: v, A: 255})
			}
		}
	}
	return img
}

func texturedMat(t *testing.T, seed int64) gocv.Mat {
	t.Helper()
	return measure.ImageToMat(texturedImage(seed))
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

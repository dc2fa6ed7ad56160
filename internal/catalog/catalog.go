// Package catalog identifies products by matching ORB features of a camera
// frame against a directory of reference images.
package catalog

import (
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder

	"qa-station/internal/measure"
)

// DefaultFeatures is the keypoint budget per image.
const DefaultFeatures = 1000

// imageExts lists the file extensions considered reference images.
var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

// Entry is one reference product.
type Entry struct {
	ProductID   string   // file name without extension
	Path        string   // source file
	Keypoints   int      // keypoints detected
	Descriptors gocv.Mat // one ORB descriptor per row; empty when unreadable
}

// Readable reports whether the entry has descriptors to match against.
func (e *Entry) Readable() bool {
	return !e.Descriptors.Empty()
}

// Catalog is an ordered, immutable set of reference entries.
type Catalog struct {
	entries []Entry
}

// Options configures Load.
type Options struct {
	Features int
	Logger   *zap.SugaredLogger
}

// Load builds a catalog from every image file in dir, in file-name order.
// Images that cannot be decoded keep an entry with empty descriptors. A missing
// directory is an error; a directory without a single readable image yields an
// empty catalog.
func Load(dir string, opts Options) (*Catalog, error) {
	if opts.Features <= 0 {
		opts.Features = DefaultFeatures
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read catalog dir: %w", err)
	}

	orb := newORB(opts.Features)
	defer orb.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	c := &Catalog{}
	readable := 0
	for _, f := range files {
		if f.IsDir() || !imageExts[strings.ToLower(filepath.Ext(f.Name()))] {
			continue
		}
		path := filepath.Join(dir, f.Name())
		entry := Entry{
			ProductID: strings.TrimSuffix(f.Name(), filepath.Ext(f.Name())),
			Path:      path,
		}

		gray, err := readGray(path)
		if err != nil {
			logger.Warnw("unreadable reference image", "path", path, "error", err)
			entry.Descriptors = gocv.NewMat()
			c.entries = append(c.entries, entry)
			continue
		}
		kps, desc := orb.DetectAndCompute(gray, mask)
		gray.Close()

		entry.Keypoints = len(kps)
		entry.Descriptors = desc
		if entry.Readable() {
			readable++
		}
		c.entries = append(c.entries, entry)
		logger.Debugw("reference image", "product", entry.ProductID, "keypoints", entry.Keypoints)
	}

	if readable == 0 {
		c.Close()
		logger.Infow("no readable reference images", "dir", dir)
		return &Catalog{}, nil
	}

	logger.Infow("catalog loaded", "dir", dir, "entries", len(c.entries), "readable", readable)
	return c, nil
}

// readGray loads a grayscale image with OpenCV, falling back to the Go image
// decoders for formats the OpenCV build cannot read.
func readGray(path string) (gocv.Mat, error) {
	m := gocv.IMRead(path, gocv.IMReadGrayScale)
	if !m.Empty() {
		return m, nil
	}
	m.Close()

	f, err := os.Open(path)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}

	bgr := measure.ImageToMat(img)
	defer bgr.Close()
	gray := gocv.NewMat()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)
	return gray, nil
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Entry returns entry i.
func (c *Catalog) Entry(i int) *Entry {
	return &c.entries[i]
}

// ProductIDs maps entry indices to product ids. Out-of-range indices are skipped.
func (c *Catalog) ProductIDs(indices []int) []string {
	ids := make([]string, 0, len(indices))
	for _, i := range indices {
		if i >= 0 && i < len(c.entries) {
			ids = append(ids, c.entries[i].ProductID)
		}
	}
	return ids
}

// Close releases all descriptor matrices.
func (c *Catalog) Close() error {
	var err error
	for i := range c.entries {
		err = multierr.Append(err, c.entries[i].Descriptors.Close())
	}
	c.entries = nil
	return err
}

func newORB(features int) gocv.ORB {
	return gocv.NewORBWithParams(features, 1.2, 8, 31, 0, 2, gocv.ORBScoreTypeHarris, 31, 20)
}

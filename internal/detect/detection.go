// Package detect holds spatial detections produced by the object detector and
// the label map used to name them.
package detect

import (
	"image"
	"strconv"
)

// Labels with fixed meaning in the measurement pipeline.
const (
	LabelObject     = "object"   // the item being measured
	LabelBackground = "greenmat" // calibration surface, never measured
)

// SpatialPoint is a 3D position in millimetres relative to the camera.
type SpatialPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Detection is one detector result with a normalized bounding box.
type Detection struct {
	XMin       float64      `json:"xmin"`
	XMax       float64      `json:"xmax"`
	YMin       float64      `json:"ymin"`
	YMax       float64      `json:"ymax"`
	Label      int          `json:"label"`
	Confidence float64      `json:"confidence"`
	Spatial    SpatialPoint `json:"spatial"`
}

// Denormalize converts the normalized box to pixel coordinates for an image
// of the given size. Coordinates are truncated.
func (d Detection) Denormalize(width, height int) image.Rectangle {
	return image.Rect(
		int(d.XMin*float64(width)),
		int(d.YMin*float64(height)),
		int(d.XMax*float64(width)),
		int(d.YMax*float64(height)),
	)
}

// LabelMap maps detector label indices to names.
type LabelMap []string

// Resolve returns the name for a label index. Indices outside the map resolve
// to their decimal string so callers always get a usable label.
func (m LabelMap) Resolve(label int) string {
	if label >= 0 && label < len(m) {
		return m[label]
	}
	return strconv.Itoa(label)
}

// Index returns the index of a label name, or -1.
func (m LabelMap) Index(name string) int {
	for i, n := range m {
		if n == name {
			return i
		}
	}
	return -1
}

// DefaultLabelMap is the label map shipped with the station's SSD model.
func DefaultLabelMap() LabelMap {
	return LabelMap{LabelBackground, LabelObject}
}

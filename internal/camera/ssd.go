package camera

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"qa-station/internal/detect"
)

// SSDDetector runs a MobileNet-SSD style network with OpenCV's DNN module.
// Output rows are [image, label, confidence, xmin, ymin, xmax, ymax] with
// normalized coordinates.
type SSDDetector struct {
	mu         sync.Mutex
	net        gocv.Net
	inputSize  image.Point
	confidence float32
}

// NewSSDDetector loads a network. config may be empty for self-contained
// model formats.
func NewSSDDetector(model, config string, inputSize image.Point, confidence float64) (*SSDDetector, error) {
	net := gocv.ReadNet(model, config)
	if net.Empty() {
		net.Close()
		return nil, fmt.Errorf("failed to load network %q", model)
	}
	return &SSDDetector{net: net, inputSize: inputSize, confidence: float32(confidence)}, nil
}

// Detect returns detections above the confidence threshold.
func (d *SSDDetector) Detect(frame gocv.Mat) ([]detect.Detection, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	blob := gocv.BlobFromImage(frame, 1.0/127.5, d.inputSize, gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	prob := d.net.Forward("")
	defer prob.Close()

	rows := prob.Total() / 7
	if rows == 0 {
		return nil, nil
	}
	out := prob.Reshape(1, rows)
	defer out.Close()

	return parseSSD(out, d.confidence), nil
}

// parseSSD converts an N x 7 float Mat into detections.
func parseSSD(out gocv.Mat, minConfidence float32) []detect.Detection {
	var dets []detect.Detection
	for i := 0; i < out.Rows(); i++ {
		conf := out.GetFloatAt(i, 2)
		if conf < minConfidence {
			continue
		}
		dets = append(dets, detect.Detection{
			Label:      int(out.GetFloatAt(i, 1)),
			Confidence: float64(conf),
			XMin:       clamp01(out.GetFloatAt(i, 3)),
			YMin:       clamp01(out.GetFloatAt(i, 4)),
			XMax:       clamp01(out.GetFloatAt(i, 5)),
			YMax:       clamp01(out.GetFloatAt(i, 6)),
		})
	}
	return dets
}

func clamp01(v float32) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return float64(v)
}

// Close releases the network.
func (d *SSDDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

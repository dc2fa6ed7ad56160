package camera

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"qa-station/internal/detect"
)

// Detector produces detections for a frame.
type Detector interface {
	Detect(frame gocv.Mat) ([]detect.Detection, error)
	Close() error
}

// VideoDevice captures from a webcam index, file or stream URL. It has no
// stereo pair, so every detection gets FixedDepth as its Z coordinate.
type VideoDevice struct {
	Source     string // device index ("0") or file/URL
	Detector   Detector
	FixedDepth float64 // mm
	Logger     *zap.SugaredLogger
}

// OpenPipeline opens the capture and starts a pipeline over it.
func (d *VideoDevice) OpenPipeline(ctx context.Context, t *Topology) (Handle, error) {
	capture, err := gocv.OpenVideoCapture(d.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open video capture %q: %w", d.Source, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("video capture %q is not opened", d.Source)
	}
	src := &videoSource{capture: capture, detector: d.Detector, depth: d.FixedDepth}
	return newPipeline(ctx, t, src, d.Logger), nil
}

type videoSource struct {
	capture  *gocv.VideoCapture
	detector Detector
	depth    float64
}

func (s *videoSource) Next(ctx context.Context) (gocv.Mat, []detect.Detection, error) {
	frame := gocv.NewMat()
	if err := ctx.Err(); err != nil {
		return frame, nil, err
	}
	if ok := s.capture.Read(&frame); !ok || frame.Empty() {
		return frame, nil, ErrEndOfStream
	}
	if s.detector == nil {
		return frame, nil, nil
	}
	dets, err := s.detector.Detect(frame)
	if err != nil {
		return frame, nil, fmt.Errorf("detect: %w", err)
	}
	for i := range dets {
		dets[i].Spatial.Z = s.depth
	}
	return frame, dets, nil
}

func (s *videoSource) Close() error {
	return s.capture.Close()
}

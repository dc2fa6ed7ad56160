package camera

import (
	"context"
	"errors"
	"time"

	"gocv.io/x/gocv"

	"qa-station/internal/detect"
)

var (
	// ErrClosed is returned by Get after the queue or handle is closed.
	ErrClosed = errors.New("camera: closed")
	// ErrUnknownStream is returned for a stream the topology does not expose.
	ErrUnknownStream = errors.New("camera: unknown stream")
	// ErrEndOfStream is returned when a finite source runs out of frames.
	ErrEndOfStream = errors.New("camera: end of stream")
)

// Packet is one message from an output queue. Preview packets carry a BGR
// frame; detection packets carry the detections for the same sequence number.
type Packet struct {
	Seq        int64
	Timestamp  time.Time
	Source     string // node port that produced the packet
	Frame      *gocv.Mat
	Detections []detect.Detection
}

// HasFrame reports whether the packet carries an image.
func (p Packet) HasFrame() bool {
	return p.Frame != nil && !p.Frame.Empty()
}

// Close releases the packet's frame, if any.
func (p Packet) Close() error {
	if p.Frame == nil {
		return nil
	}
	return p.Frame.Close()
}

// Queue is a device output queue.
type Queue interface {
	// Get blocks until a packet is available or the queue is closed.
	Get() (Packet, error)
}

// Handle is an open pipeline on a device.
type Handle interface {
	// OutputQueue returns the queue for a named stream with the given depth
	// and producer policy.
	OutputQueue(name string, maxSize int, blocking bool) (Queue, error)
	// Close stops the pipeline and releases the device.
	Close() error
}

// Device opens camera pipelines.
type Device interface {
	OpenPipeline(ctx context.Context, t *Topology) (Handle, error)
}

package camera

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"qa-station/internal/detect"
)

// ReplayDevice plays back recorded frames from a directory. Each frame image
// may have a sibling JSON file with the same base name holding its detections,
// e.g. 0001.png and 0001.json.
type ReplayDevice struct {
	Dir      string
	Loop     bool
	Interval time.Duration // delay between frames; zero plays as fast as pulled
	Logger   *zap.SugaredLogger
}

// OpenPipeline lists the recording and starts a pipeline over it.
func (d *ReplayDevice) OpenPipeline(ctx context.Context, t *Topology) (Handle, error) {
	frames, err := listFrames(d.Dir)
	if err != nil {
		return nil, err
	}
	src := &replaySource{frames: frames, loop: d.Loop, interval: d.Interval}
	return newPipeline(ctx, t, src, d.Logger), nil
}

func listFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("open replay dir: %w", err)
	}
	var frames []string
	for _, e := range entries {
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg", ".bmp":
			if !e.IsDir() {
				frames = append(frames, filepath.Join(dir, e.Name()))
			}
		}
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames in %s", dir)
	}
	sort.Strings(frames)
	return frames, nil
}

type replaySource struct {
	frames   []string
	loop     bool
	interval time.Duration
	next     int
	last     time.Time
}

func (s *replaySource) Next(ctx context.Context) (gocv.Mat, []detect.Detection, error) {
	if s.next >= len(s.frames) {
		if !s.loop {
			return gocv.NewMat(), nil, ErrEndOfStream
		}
		s.next = 0
	}

	if s.interval > 0 && !s.last.IsZero() {
		wait := time.Until(s.last.Add(s.interval))
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return gocv.NewMat(), nil, ctx.Err()
			case <-timer.C:
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return gocv.NewMat(), nil, err
	}
	s.last = time.Now()

	path := s.frames[s.next]
	s.next++

	frame := gocv.IMRead(path, gocv.IMReadColor)
	if frame.Empty() {
		frame.Close()
		return gocv.NewMat(), nil, fmt.Errorf("read frame %s", filepath.Base(path))
	}
	dets, err := readDetections(strings.TrimSuffix(path, filepath.Ext(path)) + ".json")
	if err != nil {
		frame.Close()
		return gocv.NewMat(), nil, err
	}
	return frame, dets, nil
}

// readDetections loads a detection list; a missing file means no detections.
func readDetections(path string) ([]detect.Detection, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var dets []detect.Detection
	if err := json.Unmarshal(data, &dets); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return dets, nil
}

func (s *replaySource) Close() error { return nil }

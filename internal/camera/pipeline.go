package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"qa-station/internal/detect"
)

// Source produces synchronized frames and detections for a software pipeline.
type Source interface {
	// Next returns the next frame and its detections. The caller owns the Mat,
	// which is also returned (empty) alongside an error.
	Next(ctx context.Context) (gocv.Mat, []detect.Detection, error)
	Close() error
}

// pipeline is a Handle that pumps a Source into the topology's output queues.
// Pumping starts once every stream has a queue.
type pipeline struct {
	topo   *Topology
	src    Source
	logger *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	queues  map[string]*OutputQueue
	started bool
	closed  bool

	closeOnce sync.Once
	closeErr  error
}

func newPipeline(ctx context.Context, topo *Topology, src Source, logger *zap.SugaredLogger) *pipeline {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &pipeline{
		topo:   topo,
		src:    src,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		queues: make(map[string]*OutputQueue),
	}
}

// OutputQueue returns the queue for a stream, creating it on first use.
func (p *pipeline) OutputQueue(name string, maxSize int, blocking bool) (Queue, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}
	if !p.topo.HasStream(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStream, name)
	}
	if q, ok := p.queues[name]; ok {
		return q, nil
	}
	q := NewOutputQueue(name, maxSize, blocking)
	p.queues[name] = q

	if !p.started && len(p.queues) == len(p.topo.Streams()) {
		p.started = true
		go p.run()
	}
	return q, nil
}

func (p *pipeline) run() {
	defer close(p.done)

	preview := p.queues[StreamPreview]
	detections := p.queues[StreamDetections]
	source := p.topo.PreviewSource()

	var seq int64
	for {
		frame, dets, err := p.src.Next(p.ctx)
		if err != nil {
			frame.Close()
			if p.ctx.Err() != nil {
				err = ErrClosed
			}
			p.logger.Debugw("pipeline source stopped", "error", err)
			p.closeQueues(err)
			return
		}
		seq++
		now := time.Now()

		f := frame
		if err := preview.Push(Packet{Seq: seq, Timestamp: now, Source: source, Frame: &f}); err != nil {
			return
		}
		if err := detections.Push(Packet{Seq: seq, Timestamp: now, Source: NodeDetector + ".out", Detections: dets}); err != nil {
			return
		}
	}
}

func (p *pipeline) closeQueues(err error) {
	for _, q := range p.queues {
		q.Close(err)
	}
}

// Close stops the pump, discards queued packets and closes the source.
func (p *pipeline) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		started := p.started
		p.mu.Unlock()

		p.cancel()
		p.closeQueues(ErrClosed)
		if started {
			<-p.done
		}
		for _, q := range p.queues {
			q.Drain()
		}
		if err := p.src.Close(); err != nil && !errors.Is(err, ErrClosed) {
			p.closeErr = multierr.Append(p.closeErr, err)
		}
	})
	return p.closeErr
}

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"qa-station/internal/barcode"
	"qa-station/internal/camera"
	"qa-station/internal/catalog"
	"qa-station/internal/measure"
	"qa-station/internal/ocr"
)

// Config holds the per-session settings. It is not re-read while capturing.
type Config struct {
	Topology      *camera.Topology
	QueueSize     int
	QueueBlocking bool
	BaseDepth     float64 // cm

	// OCREvery runs the slip reader every N consecutive frames without a
	// barcode. Zero disables it.
	OCREvery int
	// IdentifyEvery matches every Nth frame against the catalog. Zero disables it.
	IdentifyEvery int
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the driver's logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithSlipReader enables OCR of transfer slips.
func WithSlipReader(r ocr.Reader) Option {
	return func(d *Driver) { d.slips = r }
}

// WithCatalog enables product identification against a reference catalog.
func WithCatalog(c *catalog.Catalog, m *catalog.Matcher) Option {
	return func(d *Driver) {
		d.catalog = c
		d.matcher = m
	}
}

// Driver owns the capture loop for one camera device.
type Driver struct {
	cfg     Config
	device  camera.Device
	engine  *measure.Engine
	decoder barcode.Decoder
	slips   ocr.Reader
	catalog *catalog.Catalog
	matcher *catalog.Matcher
	logger  *zap.SugaredLogger

	capturing atomic.Bool
	state     atomic.Int32

	startMu sync.Mutex

	mu      sync.Mutex
	subs    []chan Result
	done    chan struct{}
	cancel  context.CancelFunc
	lastErr error

	// worker-only
	noBarcode int
}

// NewDriver creates a driver in the Idle state.
func NewDriver(device camera.Device, engine *measure.Engine, decoder barcode.Decoder, cfg Config, opts ...Option) *Driver {
	d := &Driver{
		cfg:     cfg,
		device:  device,
		engine:  engine,
		decoder: decoder,
		logger:  zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State returns the current session state.
func (d *Driver) State() State {
	return State(d.state.Load())
}

// Err returns the error that made the session unavailable, if any.
func (d *Driver) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

// Subscribe returns a channel receiving published results. Publishing never
// blocks: when the channel is full the result is dropped.
func (d *Driver) Subscribe(buffer int) <-chan Result {
	ch := make(chan Result, buffer)
	d.mu.Lock()
	d.subs = append(d.subs, ch)
	d.mu.Unlock()
	return ch
}

// Start sets the capture flag and launches the worker. A worker still
// exiting from a previous session is waited for first.
func (d *Driver) Start(ctx context.Context) error {
	if d.cfg.Topology == nil {
		return ErrNoTopology
	}

	d.startMu.Lock()
	defer d.startMu.Unlock()

	if d.capturing.Load() {
		return ErrRunning
	}
	d.Wait()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	d.mu.Lock()
	d.done = done
	d.cancel = cancel
	d.lastErr = nil
	d.mu.Unlock()

	d.capturing.Store(true)
	d.state.Store(int32(StateCapturing))
	d.logger.Infow("capture started", "preview", d.cfg.Topology.PreviewSource())
	go d.run(runCtx, done)
	return nil
}

// Stop clears the capture flag. The worker exits before its next pull.
func (d *Driver) Stop() {
	d.capturing.Store(false)
}

// Wait blocks until the current worker, if any, has exited.
func (d *Driver) Wait() {
	d.mu.Lock()
	done := d.done
	d.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Close stops the session, cancels the device pipeline and waits for the
// worker to release the device.
func (d *Driver) Close() error {
	d.Stop()
	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	d.Wait()
	return nil
}

func (d *Driver) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer d.capturing.Store(false)
	defer func() {
		if r := recover(); r != nil {
			d.fail(fmt.Errorf("capture worker panic: %v", r))
		}
	}()

	handle, err := d.device.OpenPipeline(ctx, d.cfg.Topology)
	if err != nil {
		d.fail(fmt.Errorf("open pipeline: %w", err))
		return
	}
	defer func() {
		if err := handle.Close(); err != nil {
			d.logger.Warnw("device close", "error", err)
		}
		d.logger.Infow("device released")
	}()

	preview, err := handle.OutputQueue(camera.StreamPreview, d.cfg.QueueSize, d.cfg.QueueBlocking)
	if err != nil {
		d.fail(fmt.Errorf("preview queue: %w", err))
		return
	}
	detections, err := handle.OutputQueue(camera.StreamDetections, d.cfg.QueueSize, d.cfg.QueueBlocking)
	if err != nil {
		d.fail(fmt.Errorf("detections queue: %w", err))
		return
	}

	var fps fpsCounter
	d.noBarcode = 0
	for d.capturing.Load() {
		frame, dets, err := d.pull(preview, detections)
		if err != nil {
			d.streamEnded(err)
			return
		}

		res, err := d.cycle(frame, dets)
		if err != nil {
			d.logger.Warnw("frame dropped", "seq", frame.Seq, "error", err)
			continue
		}
		res.FPS = fps.Tick(time.Now())
		d.publish(res)
	}

	d.state.Store(int32(StateStopped))
	d.logger.Infow("capture stopped")
}

// pull returns the next preview frame together with the detections of the
// same sequence number. Non-blocking queues drop packets independently, so
// the older side is discarded until the sequence numbers agree.
func (d *Driver) pull(preview, detections camera.Queue) (frame, dets camera.Packet, err error) {
	if frame, err = preview.Get(); err != nil {
		return frame, dets, err
	}
	if dets, err = detections.Get(); err != nil {
		frame.Close()
		return frame, dets, err
	}
	for frame.Seq != dets.Seq {
		if !d.capturing.Load() {
			frame.Close()
			return frame, dets, errStopped
		}
		if frame.Seq < dets.Seq {
			d.logger.Debugw("unpaired frame", "seq", frame.Seq, "detections", dets.Seq)
			frame.Close()
			if frame, err = preview.Get(); err != nil {
				return frame, dets, err
			}
		} else {
			d.logger.Debugw("unpaired detections", "seq", dets.Seq, "frame", frame.Seq)
			if dets, err = detections.Get(); err != nil {
				frame.Close()
				return frame, dets, err
			}
		}
	}
	return frame, dets, nil
}

// streamEnded handles a failed pull. A stop request or end of a recording
// stops the session; anything else makes it unavailable.
func (d *Driver) streamEnded(err error) {
	if !d.capturing.Load() {
		d.state.Store(int32(StateStopped))
		return
	}
	if errors.Is(err, camera.ErrEndOfStream) {
		d.state.Store(int32(StateStopped))
		d.logger.Infow("end of stream")
		d.publishTerminal(Result{Terminal: true, State: StateStopped, Err: err})
		return
	}
	d.fail(fmt.Errorf("stream: %w", err))
}

// fail marks the session unavailable and publishes a terminal result.
func (d *Driver) fail(err error) {
	d.mu.Lock()
	d.lastErr = err
	d.mu.Unlock()
	d.state.Store(int32(StateUnavailable))
	d.logger.Errorw("capture unavailable", "error", err)
	d.publishTerminal(Result{Terminal: true, State: StateUnavailable, Err: err})
}

// cycle processes one synchronized pair. The preview frame is always closed.
// Panics inside the cycle are returned as errors.
func (d *Driver) cycle(frame, dets camera.Packet) (res Result, err error) {
	defer frame.Close()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("frame %d panic: %v", frame.Seq, r)
		}
	}()

	if !frame.HasFrame() {
		return Result{}, fmt.Errorf("frame %d has no image", frame.Seq)
	}
	mat := *frame.Frame

	res = Result{Seq: frame.Seq, Timestamp: frame.Timestamp, State: StateCapturing}

	if d.decoder != nil {
		codes, err := d.decoder.Decode(measure.MatToImage(mat))
		if err != nil {
			d.logger.Debugw("barcode decode failed", "seq", frame.Seq, "error", err)
		}
		if b, ok := barcode.First(codes); ok {
			res.Barcode = &b
		}
	}

	var display gocv.Mat
	m, err := d.engine.Measure(mat, dets.Detections, d.cfg.BaseDepth)
	if err != nil {
		d.logger.Debugw("measure failed", "seq", frame.Seq, "error", err)
		display = mat.Clone()
	} else {
		res.Dimension = m.Dimension
		display = m.Annotated
	}
	defer display.Close()

	if res.Barcode != nil {
		barcode.Annotate(&display, *res.Barcode)
	}

	d.readSlip(mat, &res)
	d.identify(mat, &res)

	res.Frame = measure.MatToImage(display)
	return res, nil
}

// readSlip runs OCR after OCREvery consecutive frames without a barcode.
func (d *Driver) readSlip(mat gocv.Mat, res *Result) {
	if d.slips == nil || d.cfg.OCREvery <= 0 {
		return
	}
	if res.Barcode != nil {
		d.noBarcode = 0
		return
	}
	d.noBarcode++
	if d.noBarcode%d.cfg.OCREvery != 0 {
		return
	}
	id, ok, err := d.slips.ReadTransferID(mat)
	if err != nil {
		d.logger.Debugw("slip OCR failed", "error", err)
		return
	}
	if ok {
		res.SlipTransferID = id
	}
}

func (d *Driver) identify(mat gocv.Mat, res *Result) {
	if d.matcher == nil || d.catalog == nil || d.cfg.IdentifyEvery <= 0 {
		return
	}
	if res.Seq%int64(d.cfg.IdentifyEvery) != 0 {
		return
	}
	res.Candidates = d.catalog.ProductIDs(d.matcher.Match(mat, d.catalog))
}

// publish delivers res to every subscriber without blocking.
func (d *Driver) publish(res Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, ch := range d.subs {
		select {
		case ch <- res:
		default:
		}
	}
}

// publishTerminal makes room for a terminal result by discarding the oldest
// pending result of a full subscriber.
func (d *Driver) publishTerminal(res Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, ch := range d.subs {
		select {
		case ch <- res:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- res:
		default:
		}
	}
}

// Package rig assembles the capture driver and WMS provider described by a
// configuration.
package rig

import (
	"fmt"
	"image"
	"io"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"qa-station/internal/barcode"
	"qa-station/internal/camera"
	"qa-station/internal/catalog"
	"qa-station/internal/config"
	"qa-station/internal/measure"
	"qa-station/internal/ocr"
	"qa-station/internal/session"
	"qa-station/internal/wms"
)

// Rig owns everything built from the configuration.
type Rig struct {
	Driver   *session.Driver
	Provider wms.Provider
	Catalog  *catalog.Catalog

	closers []io.Closer
}

// Build creates the device, engines and driver. Resources acquired before a
// failure are released.
func Build(cfg config.Config, logger *zap.SugaredLogger) (r *Rig, err error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	r = &Rig{}
	defer func() {
		if err != nil {
			err = multierr.Append(err, r.closeResources())
			r = nil
		}
	}()

	topo, err := cfg.Topology()
	if err != nil {
		return nil, err
	}

	device, err := r.device(cfg, logger.Named("camera"))
	if err != nil {
		return nil, err
	}

	engine := measure.NewEngine(cfg.MeasureParams(), cfg.Labels(), logger.Named("measure"))
	opts := []session.Option{session.WithLogger(logger.Named("session"))}

	if cfg.OCR.Enabled {
		reader, err := ocr.NewEngine()
		if err != nil {
			return nil, fmt.Errorf("slip reader: %w", err)
		}
		r.closers = append(r.closers, reader)
		opts = append(opts, session.WithSlipReader(reader))
	}

	if cfg.Catalog.Dir != "" {
		c, err := catalog.Load(cfg.Catalog.Dir, catalog.Options{
			Features: cfg.Catalog.Features,
			Logger:   logger.Named("catalog"),
		})
		if err != nil {
			return nil, err
		}
		m := catalog.NewMatcher(cfg.Matcher())
		r.closers = append(r.closers, c, m)
		r.Catalog = c
		opts = append(opts, session.WithCatalog(c, m))
	}

	r.Driver = session.NewDriver(device, engine, barcode.NewZXing(), cfg.Session(topo), opts...)
	r.Provider = Provider(cfg)
	return r, nil
}

func (r *Rig) device(cfg config.Config, logger *zap.SugaredLogger) (camera.Device, error) {
	switch cfg.Camera.Driver {
	case config.DriverReplay:
		return &camera.ReplayDevice{
			Dir:      cfg.Camera.ReplayDir,
			Loop:     cfg.Camera.ReplayLoop,
			Interval: cfg.Camera.ReplayInterval,
			Logger:   logger,
		}, nil
	case config.DriverVideo:
		dev := &camera.VideoDevice{
			Source:     cfg.Camera.Source,
			FixedDepth: cfg.Camera.FixedDepth,
			Logger:     logger,
		}
		if cfg.Model.BlobPath != "" {
			size := cfg.Model.InputSize
			det, err := camera.NewSSDDetector(cfg.Model.BlobPath, cfg.Model.ConfigPath, image.Pt(size, size), cfg.Model.Confidence)
			if err != nil {
				return nil, fmt.Errorf("detector: %w", err)
			}
			r.closers = append(r.closers, det)
			dev.Detector = det
		}
		return dev, nil
	}
	return nil, fmt.Errorf("unknown camera driver %q", cfg.Camera.Driver)
}

// Provider returns the configured WMS provider.
func Provider(cfg config.Config) wms.Provider {
	if cfg.WMS.Driver == config.WMSHTTP {
		return wms.NewHTTPProvider(cfg.WMS.URL, cfg.WMS.Timeout)
	}
	return wms.Demo()
}

// Close stops capture and releases every resource.
func (r *Rig) Close() error {
	var err error
	if r.Driver != nil {
		err = r.Driver.Close()
	}
	return multierr.Append(err, r.closeResources())
}

func (r *Rig) closeResources() error {
	var err error
	for i := len(r.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, r.closers[i].Close())
	}
	r.closers = nil
	return err
}

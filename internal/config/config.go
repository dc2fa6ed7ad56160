// Package config loads the station configuration from YAML.
package config

import (
	"fmt"
	"image/color"
	"os"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"qa-station/internal/camera"
	"qa-station/internal/catalog"
	"qa-station/internal/detect"
	"qa-station/internal/logging"
	"qa-station/internal/measure"
	"qa-station/internal/session"
	"qa-station/pkg/geometry"
)

// Camera drivers.
const (
	DriverReplay = "replay"
	DriverVideo  = "video"
)

// WMS drivers.
const (
	WMSStatic = "static"
	WMSHTTP   = "http"
)

// Config is the whole station configuration.
type Config struct {
	Camera  CameraConfig   `yaml:"camera"`
	Model   ModelConfig    `yaml:"model"`
	Vision  VisionConfig   `yaml:"cv"`
	Catalog CatalogConfig  `yaml:"catalog"`
	OCR     OCRConfig      `yaml:"ocr"`
	WMS     WMSConfig      `yaml:"wms"`
	Log     logging.Config `yaml:"log"`
}

// CameraConfig selects the device and its pipeline settings.
type CameraConfig struct {
	Driver string `yaml:"driver"`

	// replay
	ReplayDir      string        `yaml:"replay_dir"`
	ReplayLoop     bool          `yaml:"replay_loop"`
	ReplayInterval time.Duration `yaml:"replay_interval"`

	// video
	Source     string  `yaml:"source"`
	FixedDepth float64 `yaml:"fixed_depth"` // mm

	PreviewWidth      int     `yaml:"preview_width"`
	PreviewHeight     int     `yaml:"preview_height"`
	Interleaved       bool    `yaml:"interleaved"`
	OutputDepth       bool    `yaml:"output_depth"`
	StereoConfidence  int     `yaml:"stereo_confidence"`
	SpatialConfidence float64 `yaml:"spatial_confidence"`
	InputBlocking     bool    `yaml:"input_blocking"`
	BBoxScale         float64 `yaml:"bbox_scale"`
	DepthLower        int     `yaml:"depth_lower"` // mm
	DepthUpper        int     `yaml:"depth_upper"` // mm
	SyncNN            bool    `yaml:"sync_nn"`

	QueueSize     int     `yaml:"queue_size"`
	QueueBlocking bool    `yaml:"queue_blocking"`
	BaseDepth     float64 `yaml:"base_depth"` // cm
}

// ModelConfig describes the detection network.
type ModelConfig struct {
	Driver     string   `yaml:"driver"`
	BlobPath   string   `yaml:"blob"`
	ConfigPath string   `yaml:"blob_config"`
	InputSize  int      `yaml:"input_size"`
	Confidence float64  `yaml:"confidence"`
	Labels     []string `yaml:"labels"`
}

// VisionConfig tunes the contour measurement.
type VisionConfig struct {
	ScaleX           float64       `yaml:"scale_x"` // px per mm
	ScaleY           float64       `yaml:"scale_y"`
	BlurKernel       int           `yaml:"blur_kernel"`
	BlurSigma        float64       `yaml:"blur_sigma"`
	CannyLow         float32       `yaml:"canny_low"`
	CannyHigh        float32       `yaml:"canny_high"`
	DilateKernel     int           `yaml:"dilate_kernel"`
	DilateIterations int           `yaml:"dilate_iterations"`
	AreaMin          float64       `yaml:"area_min"`
	Color            [3]uint8      `yaml:"color"` // r, g, b
	Display          bool          `yaml:"display"`
	Unwarp           *UnwarpConfig `yaml:"unwarp"`
}

// UnwarpConfig maps a reference-plane quad to a rectangle.
type UnwarpConfig struct {
	Corners [4][2]float64 `yaml:"corners"`
	Width   int           `yaml:"width"`
	Height  int           `yaml:"height"`
	Pad     int           `yaml:"pad"`
}

// CatalogConfig enables product identification.
type CatalogConfig struct {
	Dir       string  `yaml:"dir"`
	Features  int     `yaml:"features"`
	Ratio     float64 `yaml:"ratio"`
	Threshold int     `yaml:"threshold"`
	Every     int     `yaml:"every"`
}

// OCRConfig enables slip reading.
type OCRConfig struct {
	Enabled bool `yaml:"enabled"`
	Every   int  `yaml:"every"`
}

// WMSConfig selects the warehouse provider.
type WMSConfig struct {
	Driver  string        `yaml:"driver"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// CalibrationProfile is the measurement calibration shared read-only by the
// engine and the driver.
type CalibrationProfile struct {
	ScaleX, ScaleY    float64 // px per mm
	BaseDepth         float64 // cm
	DepthLower        int     // mm
	DepthUpper        int     // mm
	SpatialConfidence float64
	BBoxScale         float64
	StereoConfidence  int
}

// Default returns the configuration of the station's overhead rig.
func Default() Config {
	p := measure.DefaultParams()
	return Config{
		Camera: CameraConfig{
			Driver:            DriverReplay,
			ReplayDir:         "recordings",
			ReplayLoop:        true,
			ReplayInterval:    66 * time.Millisecond,
			Source:            "0",
			FixedDepth:        500,
			PreviewWidth:      640,
			PreviewHeight:     480,
			OutputDepth:       true,
			StereoConfidence:  255,
			SpatialConfidence: 0.5,
			BBoxScale:         0.5,
			DepthLower:        100,
			DepthUpper:        5000,
			QueueSize:         4,
			BaseDepth:         60,
		},
		Model: ModelConfig{
			Driver:     "mobilenetssd",
			InputSize:  300,
			Confidence: 0.5,
			Labels:     detect.DefaultLabelMap(),
		},
		Vision: VisionConfig{
			ScaleX:           p.ScaleX,
			ScaleY:           p.ScaleY,
			BlurKernel:       p.BlurKernel,
			BlurSigma:        p.BlurSigma,
			CannyLow:         p.CannyLow,
			CannyHigh:        p.CannyHigh,
			DilateKernel:     p.DilateKernel,
			DilateIterations: p.DilateIterations,
			AreaMin:          p.AreaMin,
			Color:            [3]uint8{p.Color.R, p.Color.G, p.Color.B},
			Display:          p.Draw,
		},
		Catalog: CatalogConfig{
			Features:  catalog.DefaultFeatures,
			Ratio:     catalog.DefaultRatio,
			Threshold: catalog.DefaultThreshold,
			Every:     15,
		},
		OCR: OCRConfig{Every: 30},
		WMS: WMSConfig{Driver: WMSStatic, Timeout: 3 * time.Second},
		Log: logging.Default(),
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Parse decodes YAML over cfg and validates the result.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return cfg.Validate()
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var err error
	add := func(format string, args ...interface{}) {
		err = multierr.Append(err, fmt.Errorf(format, args...))
	}

	switch c.Camera.Driver {
	case DriverReplay:
		if c.Camera.ReplayDir == "" {
			add("camera.replay_dir is required for the replay driver")
		}
	case DriverVideo:
		if c.Camera.Source == "" {
			add("camera.source is required for the video driver")
		}
	default:
		add("unknown camera driver %q", c.Camera.Driver)
	}
	if c.Camera.QueueSize <= 0 {
		add("camera.queue_size %d must be positive", c.Camera.QueueSize)
	}
	if c.Camera.BaseDepth <= 0 {
		add("camera.base_depth %v must be positive", c.Camera.BaseDepth)
	}
	if c.Camera.DepthLower < 0 || c.Camera.DepthLower >= c.Camera.DepthUpper {
		add("camera depth bounds %d..%d inverted", c.Camera.DepthLower, c.Camera.DepthUpper)
	}

	if len(c.Model.Labels) == 0 {
		add("model.labels is empty")
	}

	v := c.Vision
	if v.ScaleX <= 0 || v.ScaleY <= 0 {
		add("cv scale factors %v, %v must be positive", v.ScaleX, v.ScaleY)
	}
	if v.BlurKernel <= 0 || v.BlurKernel%2 == 0 {
		add("cv.blur_kernel %d must be positive and odd", v.BlurKernel)
	}
	if v.DilateKernel <= 0 {
		add("cv.dilate_kernel %d must be positive", v.DilateKernel)
	}
	if v.DilateIterations < 0 {
		add("cv.dilate_iterations %d is negative", v.DilateIterations)
	}
	if v.CannyLow < 0 || v.CannyLow >= v.CannyHigh {
		add("cv canny thresholds %v..%v invalid", v.CannyLow, v.CannyHigh)
	}
	if v.AreaMin < 0 {
		add("cv.area_min %v is negative", v.AreaMin)
	}
	if u := v.Unwarp; u != nil && (u.Width <= 2*u.Pad || u.Height <= 2*u.Pad) {
		add("cv.unwarp size %dx%d too small for pad %d", u.Width, u.Height, u.Pad)
	}

	if c.Catalog.Dir != "" && (c.Catalog.Ratio <= 0 || c.Catalog.Ratio >= 1) {
		add("catalog.ratio %v outside (0,1)", c.Catalog.Ratio)
	}
	if c.Catalog.Threshold < 0 {
		add("catalog.threshold %d is negative", c.Catalog.Threshold)
	}
	if c.Catalog.Every < 0 || c.OCR.Every < 0 {
		add("catalog.every and ocr.every must not be negative")
	}

	switch c.WMS.Driver {
	case WMSStatic:
	case WMSHTTP:
		if c.WMS.URL == "" {
			add("wms.url is required for the http driver")
		}
	default:
		add("unknown wms driver %q", c.WMS.Driver)
	}

	if _, terr := c.Topology(); terr != nil {
		err = multierr.Append(err, terr)
	}
	return err
}

// Calibration returns the measurement calibration. Topology, MeasureParams and
// Session take their scale factors, depth bounds and base depth from it.
func (c *Config) Calibration() CalibrationProfile {
	return CalibrationProfile{
		ScaleX:            c.Vision.ScaleX,
		ScaleY:            c.Vision.ScaleY,
		BaseDepth:         c.Camera.BaseDepth,
		DepthLower:        c.Camera.DepthLower,
		DepthUpper:        c.Camera.DepthUpper,
		SpatialConfidence: c.Camera.SpatialConfidence,
		BBoxScale:         c.Camera.BBoxScale,
		StereoConfidence:  c.Camera.StereoConfidence,
	}
}

// Labels returns the model's label map.
func (c *Config) Labels() detect.LabelMap {
	return detect.LabelMap(c.Model.Labels)
}

// Topology builds the camera pipeline.
func (c *Config) Topology() (*camera.Topology, error) {
	cam := c.Camera
	cal := c.Calibration()
	return camera.BuildTopology(camera.CameraConfig{
		PreviewWidth:      cam.PreviewWidth,
		PreviewHeight:     cam.PreviewHeight,
		Interleaved:       cam.Interleaved,
		OutputDepth:       cam.OutputDepth,
		StereoConfidence:  cal.StereoConfidence,
		SpatialConfidence: cal.SpatialConfidence,
		InputBlocking:     cam.InputBlocking,
		BBoxScale:         cal.BBoxScale,
		DepthLower:        cal.DepthLower,
		DepthUpper:        cal.DepthUpper,
		SyncNN:            cam.SyncNN,
	}, camera.ModelConfig{
		Driver:     c.Model.Driver,
		BlobPath:   c.Model.BlobPath,
		ConfigPath: c.Model.ConfigPath,
		Labels:     c.Model.Labels,
	})
}

// MeasureParams returns the contour engine parameters.
func (c *Config) MeasureParams() measure.Params {
	v := c.Vision
	cal := c.Calibration()
	p := measure.DefaultParams().
		WithBlur(v.BlurKernel, v.BlurSigma).
		WithCanny(v.CannyLow, v.CannyHigh).
		WithDilate(v.DilateKernel, v.DilateIterations).
		WithScale(cal.ScaleX, cal.ScaleY).
		WithAreaMin(v.AreaMin)
	p.Color = color.RGBA{R: v.Color[0], G: v.Color[1], B: v.Color[2], A: 255}
	p.Draw = v.Display
	if u := v.Unwarp; u != nil {
		var corners [4]geometry.Point2D
		for i, pt := range u.Corners {
			corners[i] = geometry.NewPoint2D(pt[0], pt[1])
		}
		p = p.WithUnwarp(measure.UnwarpParams{Corners: corners, Width: u.Width, Height: u.Height, Pad: u.Pad})
	}
	return p
}

// Session returns the driver configuration over topo.
func (c *Config) Session(topo *camera.Topology) session.Config {
	cfg := session.Config{
		Topology:      topo,
		QueueSize:     c.Camera.QueueSize,
		QueueBlocking: c.Camera.QueueBlocking,
		BaseDepth:     c.Calibration().BaseDepth,
	}
	if c.OCR.Enabled {
		cfg.OCREvery = c.OCR.Every
	}
	if c.Catalog.Dir != "" {
		cfg.IdentifyEvery = c.Catalog.Every
	}
	return cfg
}

// Matcher returns the catalog matcher options.
func (c *Config) Matcher() catalog.MatcherOptions {
	return catalog.MatcherOptions{
		Features:  c.Catalog.Features,
		Ratio:     c.Catalog.Ratio,
		Threshold: c.Catalog.Threshold,
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"qa-station/internal/detect"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	topo, err := cfg.Topology()
	require.NoError(t, err)
	assert.Equal(t, "color.preview", topo.PreviewSource())
	assert.Equal(t, detect.LabelObject, cfg.Labels().Resolve(1))
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg := Default()
	err := Parse([]byte(`
camera:
  driver: video
  source: /dev/video2
  sync_nn: true
  base_depth: 55.5
  replay_interval: 100ms
cv:
  scale_x: 1.1
  blur_kernel: 5
  color: [255, 0, 0]
  unwarp:
    corners: [[10, 10], [630, 12], [8, 470], [632, 468]]
    width: 640
    height: 480
    pad: 4
ocr:
  enabled: true
  every: 10
wms:
  driver: http
  url: http://wms.local:8080
  timeout: 2s
`), &cfg)
	require.NoError(t, err)

	assert.Equal(t, DriverVideo, cfg.Camera.Driver)
	assert.Equal(t, 55.5, cfg.Camera.BaseDepth)
	assert.Equal(t, 100*time.Millisecond, cfg.Camera.ReplayInterval)
	assert.Equal(t, 640, cfg.Camera.PreviewWidth, "untouched keys keep defaults")
	assert.Equal(t, 2*time.Second, cfg.WMS.Timeout)

	cal := cfg.Calibration()
	assert.Equal(t, 1.1, cal.ScaleX)
	assert.Equal(t, 0.92, cal.ScaleY)
	assert.Equal(t, 55.5, cal.BaseDepth)

	p := cfg.MeasureParams()
	assert.Equal(t, 5, p.BlurKernel)
	assert.Equal(t, uint8(255), p.Color.R)
	assert.Equal(t, uint8(0), p.Color.G)
	require.NotNil(t, p.Unwarp)
	assert.Equal(t, 630.0, p.Unwarp.Corners[1].X)
	assert.Equal(t, 4, p.Unwarp.Pad)

	topo, err := cfg.Topology()
	require.NoError(t, err)
	assert.Equal(t, "nn.passthrough", topo.PreviewSource())

	s := cfg.Session(topo)
	assert.Equal(t, 10, s.OCREvery)
	assert.Equal(t, 0, s.IdentifyEvery, "no catalog dir")
	assert.Equal(t, 55.5, s.BaseDepth)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Camera.Driver = "oakd-lite"
	cfg.Camera.BaseDepth = 0
	cfg.Camera.DepthLower, cfg.Camera.DepthUpper = 800, 200
	cfg.Vision.ScaleX = -1
	cfg.Vision.BlurKernel = 4
	cfg.Vision.CannyLow = 200
	cfg.Model.Labels = nil
	cfg.WMS.Driver = WMSHTTP
	cfg.Catalog.Threshold = -2

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		`unknown camera driver "oakd-lite"`,
		"base_depth",
		"depth bounds",
		"scale factors",
		"blur_kernel 4",
		"canny",
		"model.labels",
		"wms.url",
		"catalog.threshold -2",
	} {
		assert.Contains(t, msg, want)
	}
	assert.GreaterOrEqual(t, len(multierr.Errors(err)), 9)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "station.yaml")
	require.NoError(t, os.WriteFile(path, []byte("camera:\n  replay_dir: "+dir+"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Camera.ReplayDir)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("camera: [unclosed"), 0o644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "parse config")
}

func TestShippedConfigIsValid(t *testing.T) {
	_, err := Load(filepath.Join("..", "..", "configs", "station.yaml"))
	require.NoError(t, err)
}

func TestCalibrationFeedsEngineDriverAndTopology(t *testing.T) {
	cfg := Default()
	cfg.Vision.ScaleX, cfg.Vision.ScaleY = 1.25, 0.8
	cfg.Camera.BaseDepth = 72
	cfg.Camera.DepthLower, cfg.Camera.DepthUpper = 200, 3000
	cal := cfg.Calibration()

	p := cfg.MeasureParams()
	assert.Equal(t, cal.ScaleX, p.ScaleX)
	assert.Equal(t, cal.ScaleY, p.ScaleY)

	topo, err := cfg.Topology()
	require.NoError(t, err)
	assert.Equal(t, cal.BaseDepth, cfg.Session(topo).BaseDepth)
	assert.Equal(t, cal.DepthLower, topo.Camera.DepthLower)
	assert.Equal(t, cal.DepthUpper, topo.Camera.DepthUpper)
	assert.Equal(t, cal.SpatialConfidence, topo.Camera.SpatialConfidence)
}

func TestMatcherThresholdZeroIsKept(t *testing.T) {
	cfg := Default()
	cfg.Catalog.Dir = t.TempDir()
	cfg.Catalog.Threshold = 0
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0, cfg.Matcher().Threshold)
}

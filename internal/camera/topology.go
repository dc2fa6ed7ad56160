// Package camera describes the station's camera pipeline and the devices that
// run it.
package camera

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/multierr"
)

// Output stream names.
const (
	StreamPreview    = "preview"
	StreamDetections = "detections"
)

// NodeKind is the type of a pipeline node.
type NodeKind string

// Node kinds.
const (
	KindColorCamera      NodeKind = "ColorCamera"
	KindMonoCamera       NodeKind = "MonoCamera"
	KindStereoDepth      NodeKind = "StereoDepth"
	KindSpatialDetection NodeKind = "SpatialDetectionNetwork"
	KindXLinkOut         NodeKind = "XLinkOut"
)

// Node names used by BuildTopology.
const (
	NodeColor      = "color"
	NodeMonoLeft   = "mono_left"
	NodeMonoRight  = "mono_right"
	NodeStereo     = "stereo"
	NodeDetector   = "nn"
	NodePreviewOut = "xout_preview"
	NodeDetectOut  = "xout_detections"
)

// CameraConfig holds the device-side settings of the pipeline.
type CameraConfig struct {
	PreviewWidth      int
	PreviewHeight     int
	Interleaved       bool
	OutputDepth       bool
	StereoConfidence  int     // 0-255
	SpatialConfidence float64 // 0-1
	InputBlocking     bool
	BBoxScale         float64 // 0-1
	DepthLower        int     // mm
	DepthUpper        int     // mm
	SyncNN            bool    // preview frames come from the network passthrough
}

// ModelConfig describes the detection network.
type ModelConfig struct {
	Driver     string
	BlobPath   string
	ConfigPath string
	Labels     []string
}

// Node is one pipeline stage and its properties.
type Node struct {
	Name  string
	Kind  NodeKind
	Props map[string]interface{}
}

// Link connects an output port of one node to an input port of another.
type Link struct {
	From, FromPort string
	To, ToPort     string
}

func (l Link) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", l.From, l.FromPort, l.To, l.ToPort)
}

// Topology is a validated camera pipeline: color camera into the spatial
// detector, mono left/right into stereo depth feeding the detector, and two
// output streams.
type Topology struct {
	Camera CameraConfig
	Model  ModelConfig
	Nodes  []Node
	Links  []Link
}

// BuildTopology is the single construction path for the camera pipeline.
func BuildTopology(cam CameraConfig, model ModelConfig) (*Topology, error) {
	if err := validate(cam, model); err != nil {
		return nil, fmt.Errorf("invalid camera topology: %w", err)
	}

	t := &Topology{Camera: cam, Model: model}

	t.Nodes = []Node{
		{Name: NodeColor, Kind: KindColorCamera, Props: map[string]interface{}{
			"previewSize": fmt.Sprintf("%dx%d", cam.PreviewWidth, cam.PreviewHeight),
			"resolution":  "1080p",
			"interleaved": cam.Interleaved,
			"colorOrder":  "BGR",
		}},
		{Name: NodeMonoLeft, Kind: KindMonoCamera, Props: map[string]interface{}{
			"resolution": "400p",
			"socket":     "LEFT",
		}},
		{Name: NodeMonoRight, Kind: KindMonoCamera, Props: map[string]interface{}{
			"resolution": "400p",
			"socket":     "RIGHT",
		}},
		{Name: NodeStereo, Kind: KindStereoDepth, Props: map[string]interface{}{
			"outputDepth":         cam.OutputDepth,
			"confidenceThreshold": cam.StereoConfidence,
		}},
		{Name: NodeDetector, Kind: KindSpatialDetection, Props: map[string]interface{}{
			"blob":                model.BlobPath,
			"confidenceThreshold": cam.SpatialConfidence,
			"inputBlocking":       cam.InputBlocking,
			"bboxScaleFactor":     cam.BBoxScale,
			"depthLower":          cam.DepthLower,
			"depthUpper":          cam.DepthUpper,
		}},
		{Name: NodePreviewOut, Kind: KindXLinkOut, Props: map[string]interface{}{
			"stream": StreamPreview,
		}},
		{Name: NodeDetectOut, Kind: KindXLinkOut, Props: map[string]interface{}{
			"stream": StreamDetections,
		}},
	}

	t.Links = []Link{
		{NodeMonoLeft, "out", NodeStereo, "left"},
		{NodeMonoRight, "out", NodeStereo, "right"},
		{NodeStereo, "depth", NodeDetector, "inputDepth"},
		{NodeColor, "preview", NodeDetector, "input"},
		{NodeDetector, "out", NodeDetectOut, "input"},
	}
	if cam.SyncNN {
		t.Links = append(t.Links, Link{NodeDetector, "passthrough", NodePreviewOut, "input"})
	} else {
		t.Links = append(t.Links, Link{NodeColor, "preview", NodePreviewOut, "input"})
	}

	return t, nil
}

func validate(cam CameraConfig, model ModelConfig) error {
	var err error
	if cam.PreviewWidth <= 0 || cam.PreviewHeight <= 0 {
		err = multierr.Append(err, fmt.Errorf("preview size %dx%d must be positive", cam.PreviewWidth, cam.PreviewHeight))
	}
	if cam.StereoConfidence < 0 || cam.StereoConfidence > 255 {
		err = multierr.Append(err, fmt.Errorf("stereo confidence %d outside 0-255", cam.StereoConfidence))
	}
	if cam.SpatialConfidence < 0 || cam.SpatialConfidence > 1 {
		err = multierr.Append(err, fmt.Errorf("spatial confidence %v outside 0-1", cam.SpatialConfidence))
	}
	if cam.BBoxScale <= 0 || cam.BBoxScale > 1 {
		err = multierr.Append(err, fmt.Errorf("bbox scale factor %v outside (0,1]", cam.BBoxScale))
	}
	if cam.DepthLower < 0 || cam.DepthLower >= cam.DepthUpper {
		err = multierr.Append(err, fmt.Errorf("depth bounds %d..%d inverted", cam.DepthLower, cam.DepthUpper))
	}
	if len(model.Labels) == 0 {
		err = multierr.Append(err, fmt.Errorf("model %q has no labels", model.Driver))
	}
	return err
}

// Node returns the node with the given name.
func (t *Topology) Node(name string) (Node, bool) {
	for _, n := range t.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return Node{}, false
}

// Streams returns the names of all output streams.
func (t *Topology) Streams() []string {
	var out []string
	for _, n := range t.Nodes {
		if n.Kind == KindXLinkOut {
			out = append(out, n.Props["stream"].(string))
		}
	}
	return out
}

// HasStream reports whether the topology exposes the named stream.
func (t *Topology) HasStream(name string) bool {
	for _, s := range t.Streams() {
		if s == name {
			return true
		}
	}
	return false
}

// PreviewSource returns the node port feeding the preview stream.
func (t *Topology) PreviewSource() string {
	for _, l := range t.Links {
		if l.To == NodePreviewOut {
			return l.From + "." + l.FromPort
		}
	}
	return ""
}

// DOT renders the topology as a Graphviz digraph.
func (t *Topology) DOT() string {
	var b strings.Builder
	b.WriteString("digraph camera {\n  rankdir=LR;\n")
	for _, n := range t.Nodes {
		keys := make([]string, 0, len(n.Props))
		for k := range n.Props {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		label := []string{fmt.Sprintf("%s (%s)", n.Name, n.Kind)}
		for _, k := range keys {
			label = append(label, fmt.Sprintf("%s=%v", k, n.Props[k]))
		}
		fmt.Fprintf(&b, "  \"%s\" [shape=box,label=\"%s\"];\n", n.Name, strings.Join(label, `\n`))
	}
	for _, l := range t.Links {
		fmt.Fprintf(&b, "  %q -> %q [label=%q];\n", l.From, l.To, l.FromPort+"->"+l.ToPort)
	}
	b.WriteString("}\n")
	return b.String()
}

// Command measuretest measures the object in a still image and prints the result.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"gocv.io/x/gocv"

	"qa-station/internal/barcode"
	"qa-station/internal/config"
	"qa-station/internal/detect"
	"qa-station/internal/measure"
)

func main() {
	cfgPath := flag.String("config", "configs/station.yaml", "Station configuration")
	input := flag.String("i", "", "Path to a BGR frame")
	detsPath := flag.String("d", "", "Optional detections JSON for height")
	output := flag.String("o", "", "Write the annotated frame here")
	baseDepth := flag.Float64("base", 0, "Override base depth in cm")
	flag.Parse()

	if *input == "" {
		fmt.Println("Usage: measuretest -i <frame> [-d <detections.json>] [-o <annotated.png>] [-config <station.yaml>]")
		os.Exit(1)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	base := cfg.Camera.BaseDepth
	if *baseDepth > 0 {
		base = *baseDepth
	}

	frame := gocv.IMRead(*input, gocv.IMReadColor)
	if frame.Empty() {
		fmt.Fprintf(os.Stderr, "Failed to read %s\n", *input)
		os.Exit(1)
	}
	defer frame.Close()

	var dets []detect.Detection
	if *detsPath != "" {
		data, err := os.ReadFile(*detsPath)
		if err == nil {
			err = json.Unmarshal(data, &dets)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read detections: %v\n", err)
			os.Exit(1)
		}
	}

	p := cfg.MeasureParams()
	fmt.Printf("=== %s (%dx%d) ===\n", *input, frame.Cols(), frame.Rows())
	fmt.Printf("blur %d/%.1f  canny %.0f..%.0f  dilate %dx%d  area > %.0f  scale %.3f, %.3f px/mm\n",
		p.BlurKernel, p.BlurSigma, p.CannyLow, p.CannyHigh, p.DilateKernel, p.DilateIterations,
		p.AreaMin, p.ScaleX, p.ScaleY)

	engine := measure.NewEngine(p, cfg.Labels(), nil)
	m, err := engine.Measure(frame, dets, base)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Measurement failed: %v\n", err)
		os.Exit(1)
	}
	defer m.Close()

	fmt.Printf("candidates: %d\n", m.Candidates)
	if m.Box != nil {
		for i, pt := range m.Box.Points() {
			fmt.Printf("  corner %d: (%.0f, %.0f)\n", i, pt.X, pt.Y)
		}
	}
	fmt.Printf("length: %.1f cm\nwidth:  %.1f cm\nheight: %.1f cm", m.Dimension.Length, m.Dimension.Width, m.Dimension.Height)
	if m.HeightFrom >= 0 {
		fmt.Printf(" (detection %d)", m.HeightFrom)
	}
	fmt.Println()

	codes, err := barcode.NewZXing().Decode(measure.MatToImage(frame))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Barcode decode failed: %v\n", err)
	}
	for _, c := range codes {
		fmt.Printf("barcode: %s (%s) at %v\n", c.Payload, c.Symbology, c.Rect)
		barcode.Annotate(&m.Annotated, c)
	}

	if *output != "" {
		if !gocv.IMWrite(*output, m.Annotated) {
			fmt.Fprintf(os.Stderr, "Failed to write %s\n", *output)
			os.Exit(1)
		}
		fmt.Printf("annotated frame written to %s\n", *output)
	}
}

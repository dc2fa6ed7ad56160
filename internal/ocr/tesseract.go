// Package ocr reads transfer ids printed on packing slips when no barcode is visible.
package ocr

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"
)

// SlipChars is the character set printed on transfer slips.
const SlipChars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ#:-"

// ErrEmptyImage is returned for empty input.
var ErrEmptyImage = errors.New("empty image")

// Reader extracts a transfer id from a frame.
type Reader interface {
	ReadTransferID(img gocv.Mat) (string, bool, error)
	Close() error
}

// Engine provides OCR using Tesseract.
type Engine struct {
	client *gosseract.Client
}

// NewEngine creates a Tesseract engine configured for slip text.
func NewEngine() (*Engine, error) {
	client := gosseract.NewClient()

	if err := client.SetLanguage("eng"); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}

	// Transfer ids aren't dictionary words.
	_ = client.SetVariable("load_system_dawg", "false")
	_ = client.SetVariable("load_freq_dawg", "false")

	if err := client.SetWhitelist(SlipChars); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set whitelist: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SPARSE_TEXT); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set PSM: %w", err)
	}

	return &Engine{client: client}, nil
}

// Close releases OCR resources.
func (e *Engine) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// Text returns the whitespace-normalized text of the whole image.
func (e *Engine) Text(img gocv.Mat) (string, error) {
	if img.Empty() {
		return "", ErrEmptyImage
	}

	processed := preprocessForOCR(img)
	defer processed.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, processed)
	if err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	if err := e.client.SetImageFromBytes(buf.GetBytes()); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	return strings.Join(strings.Fields(strings.ToUpper(text)), " "), nil
}

// ReadTransferID runs OCR on img and returns the first transfer id found.
func (e *Engine) ReadTransferID(img gocv.Mat) (string, bool, error) {
	text, err := e.Text(img)
	if err != nil {
		return "", false, err
	}
	id, ok := ExtractTransferID(text)
	return id, ok, nil
}

// preprocessForOCR upscales, equalizes and binarizes a frame so slip text is
// dark on light.
func preprocessForOCR(src gocv.Mat) gocv.Mat {
	h, w := src.Rows(), src.Cols()

	var scaled gocv.Mat
	if minDim := min(h, w); minDim < 300 {
		scale := 300.0 / float64(minDim)
		scaled = gocv.NewMat()
		gocv.Resize(src, &scaled, image.Point{}, scale, scale, gocv.InterpolationCubic)
	} else {
		scaled = src.Clone()
	}
	defer scaled.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	if scaled.Channels() == 1 {
		scaled.CopyTo(&gray)
	} else {
		gocv.CvtColor(scaled, &gray, gocv.ColorBGRToGray)
	}

	clahe := gocv.NewCLAHEWithParams(2.0, image.Point{X: 8, Y: 8})
	defer clahe.Close()
	enhanced := gocv.NewMat()
	defer enhanced.Close()
	clahe.Apply(gray, &enhanced)

	binary := gocv.NewMat()
	gocv.Threshold(enhanced, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	// Slips are printed dark on white; invert light-on-dark crops.
	if float64(gocv.CountNonZero(binary)) < 0.5*float64(binary.Rows()*binary.Cols()) {
		gocv.BitwiseNot(binary, &binary)
	}
	return binary
}

// Package barcode decodes QR and EAN-13 codes from camera frames.
package barcode

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
	"gocv.io/x/gocv"
)

// Symbology identifies a barcode type.
type Symbology string

// Supported symbologies.
const (
	QRCode Symbology = "QRCODE"
	EAN13  Symbology = "EAN13"
)

// Result is one decoded barcode.
type Result struct {
	Payload   string          `json:"payload"`
	Symbology Symbology       `json:"symbology"`
	Rect      image.Rectangle `json:"rect"`
}

// Decoder finds barcodes in an image. Finding nothing is an empty slice, not
// an error.
type Decoder interface {
	Decode(img image.Image) ([]Result, error)
}

// ZXing decodes QR codes and EAN-13 barcodes with gozxing.
type ZXing struct {
	readers []symbolReader
	hints   map[gozxing.DecodeHintType]interface{}
}

type symbolReader struct {
	symbology Symbology
	reader    gozxing.Reader
}

// NewZXing creates a decoder that tries QR first, then EAN-13.
func NewZXing() *ZXing {
	return &ZXing{
		readers: []symbolReader{
			{QRCode, qrcode.NewQRCodeReader()},
			{EAN13, oned.NewEAN13Reader()},
		},
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

// Decode returns every symbology found in img, at most one result per symbology.
func (z *ZXing) Decode(img image.Image) ([]Result, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("binarize: %w", err)
	}

	var results []Result
	for _, r := range z.readers {
		res, err := r.reader.Decode(bmp, z.hints)
		r.reader.Reset()
		if err != nil {
			if isNoCode(err) {
				continue
			}
			return results, fmt.Errorf("decode %s: %w", r.symbology, err)
		}
		results = append(results, Result{
			Payload:   res.GetText(),
			Symbology: r.symbology,
			Rect:      resultRect(res.GetResultPoints(), img.Bounds()),
		})
	}
	if results == nil {
		results = []Result{}
	}
	return results, nil
}

// isNoCode reports whether err only means no readable code was present.
func isNoCode(err error) bool {
	var nf gozxing.NotFoundException
	var cs gozxing.ChecksumException
	var fe gozxing.FormatException
	return errors.As(err, &nf) || errors.As(err, &cs) || errors.As(err, &fe)
}

// resultRect bounds the reported points. One-dimensional codes only report
// points along the scan line, so the box is padded vertically.
func resultRect(points []gozxing.ResultPoint, bounds image.Rectangle) image.Rectangle {
	if len(points) == 0 {
		return image.Rectangle{}
	}
	minX, minY := points[0].GetX(), points[0].GetY()
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX = min(minX, p.GetX())
		minY = min(minY, p.GetY())
		maxX = max(maxX, p.GetX())
		maxY = max(maxY, p.GetY())
	}
	r := image.Rect(int(minX), int(minY), int(maxX)+1, int(maxY)+1)
	if r.Dy() < 10 {
		r.Min.Y -= 10
		r.Max.Y += 10
	}
	return r.Intersect(bounds)
}

// First returns the barcode reported for a frame: the first result, if any.
func First(results []Result) (Result, bool) {
	if len(results) == 0 {
		return Result{}, false
	}
	return results[0], true
}

var annotateColor = color.RGBA{R: 255, G: 0, B: 0, A: 255}

// Annotate draws the barcode rectangle and "payload (symbology)" on img.
func Annotate(img *gocv.Mat, r Result) {
	gocv.Rectangle(img, r.Rect, annotateColor, 2)
	gocv.PutText(img, fmt.Sprintf("%s (%s)", r.Payload, r.Symbology),
		image.Pt(r.Rect.Min.X, r.Rect.Min.Y-10), gocv.FontHersheySimplex, 0.5, annotateColor, 2)
}

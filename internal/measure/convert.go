package measure

import (
	"image"
	"runtime"
	"sync"

	"gocv.io/x/gocv"
)

// ImageToMat converts a Go image to a BGR Mat (parallelized by row stripes).
func ImageToMat(img image.Image) gocv.Mat {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	stripes(height, func(yStart, yEnd int) {
		for y := yStart; y < yEnd; y++ {
			for x := 0; x < width; x++ {
				r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
				mat.SetUCharAt(y, x*3+0, uint8(b>>8))
				mat.SetUCharAt(y, x*3+1, uint8(g>>8))
				mat.SetUCharAt(y, x*3+2, uint8(r>>8))
			}
		}
	})
	return mat
}

// MatToImage converts a BGR or grayscale Mat to an RGBA image.
func MatToImage(mat gocv.Mat) *image.RGBA {
	h := mat.Rows()
	w := mat.Cols()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	stride := img.Stride
	gray := mat.Channels() == 1

	stripes(h, func(yStart, yEnd int) {
		for y := yStart; y < yEnd; y++ {
			row := y * stride
			for x := 0; x < w; x++ {
				off := row + x*4
				if gray {
					v := mat.GetUCharAt(y, x)
					img.Pix[off+0], img.Pix[off+1], img.Pix[off+2] = v, v, v
				} else {
					img.Pix[off+0] = mat.GetUCharAt(y, x*3+2)
					img.Pix[off+1] = mat.GetUCharAt(y, x*3+1)
					img.Pix[off+2] = mat.GetUCharAt(y, x*3+0)
				}
				img.Pix[off+3] = 255
			}
		}
	})
	return img
}

// stripes runs fn over [0,rows) split into one stripe per CPU.
func stripes(rows int, fn func(yStart, yEnd int)) {
	workers := runtime.NumCPU()
	per := (rows + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * per
		if start >= rows {
			break
		}
		end := start + per
		if end > rows {
			end = rows
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

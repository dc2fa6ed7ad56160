// Command slipread runs the slip OCR on images and prints the text and the
// transfer id found in it.
package main

import (
	"flag"
	"fmt"
	"os"

	"gocv.io/x/gocv"

	"qa-station/internal/ocr"
)

func main() {
	showText := flag.Bool("text", false, "Print the recognised text")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Println("Usage: slipread [-text] <image>...")
		os.Exit(1)
	}

	engine, err := ocr.NewEngine()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start OCR: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	found := 0
	for _, path := range flag.Args() {
		img := gocv.IMRead(path, gocv.IMReadColor)
		if img.Empty() {
			fmt.Fprintf(os.Stderr, "Failed to read %s\n", path)
			continue
		}
		text, err := engine.Text(img)
		img.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			continue
		}
		if *showText {
			fmt.Printf("=== %s ===\n%s\n", path, text)
		}
		if id, ok := ocr.ExtractTransferID(text); ok {
			found++
			fmt.Printf("%s: transfer %s\n", path, id)
		} else {
			fmt.Printf("%s: no transfer id\n", path)
		}
	}
	fmt.Printf("\n%d of %d slips read\n", found, flag.NArg())
}

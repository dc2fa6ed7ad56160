// Command catalogtest loads a reference catalog and reports which products
// match the given query images.
package main

import (
	"flag"
	"fmt"
	"os"

	"gocv.io/x/gocv"

	"qa-station/internal/catalog"
)

func main() {
	dir := flag.String("dir", "", "Directory of reference product images")
	ratio := flag.Float64("ratio", catalog.DefaultRatio, "Distance ratio test")
	threshold := flag.Int("t", catalog.DefaultThreshold, "Accepted matches needed (exclusive)")
	verbose := flag.Bool("v", false, "Print per-entry match counts")
	flag.Parse()

	if *dir == "" || flag.NArg() == 0 {
		fmt.Println("Usage: catalogtest -dir <reference dir> [-ratio 0.7] [-t 15] [-v] <query image>...")
		os.Exit(1)
	}

	c, err := catalog.Load(*dir, catalog.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load catalog: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	fmt.Printf("=== Catalog %s: %d entries ===\n", *dir, c.Len())
	for i := 0; i < c.Len(); i++ {
		e := c.Entry(i)
		state := "ok"
		if !e.Readable() {
			state = "unreadable"
		}
		fmt.Printf("  [%d] %-24s %5d keypoints  %s\n", i, e.ProductID, e.Keypoints, state)
	}

	m := catalog.NewMatcher(catalog.MatcherOptions{Ratio: *ratio, Threshold: *threshold})
	defer m.Close()

	for _, path := range flag.Args() {
		frame := gocv.IMRead(path, gocv.IMReadColor)
		if frame.Empty() {
			fmt.Fprintf(os.Stderr, "Failed to read %s\n", path)
			continue
		}
		fmt.Printf("\n=== %s ===\n", path)
		if *verbose {
			for i, n := range m.Counts(frame, c) {
				fmt.Printf("  %-24s %d\n", c.Entry(i).ProductID, n)
			}
		}
		ids := c.ProductIDs(m.Match(frame, c))
		if len(ids) == 0 {
			fmt.Println("no match")
		} else {
			fmt.Printf("matches: %v\n", ids)
		}
		frame.Close()
	}
}

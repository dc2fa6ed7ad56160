// Command pipelinegraph prints the camera topology of a configuration as
// Graphviz DOT, or as a plain link list.
package main

import (
	"flag"
	"fmt"
	"os"

	"qa-station/internal/config"
)

func main() {
	cfgPath := flag.String("config", "configs/station.yaml", "Station configuration")
	links := flag.Bool("links", false, "Print links instead of DOT")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration:\n%v\n", err)
		os.Exit(1)
	}
	topo, err := cfg.Topology()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid topology: %v\n", err)
		os.Exit(1)
	}

	if !*links {
		fmt.Print(topo.DOT())
		return
	}
	for _, n := range topo.Nodes {
		fmt.Printf("%-16s %s\n", n.Name, n.Kind)
	}
	fmt.Println()
	for _, l := range topo.Links {
		fmt.Println(l)
	}
	fmt.Printf("\npreview from %s\n", topo.PreviewSource())
}

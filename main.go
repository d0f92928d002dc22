// Package main provides the entry point for rvsim.
// rvsim is an RV64I instruction set simulator that boots El Torito images.
//
// For the full CLI, use: go run ./cmd/rvsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("rvsim - RV64I Instruction Set Simulator")
	fmt.Println("")
	fmt.Println("Usage: rvsim [options] <image>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -format     Image format: iso (default), elf or raw")
	fmt.Println("  -strict     Fault on illegal instructions")
	fmt.Println("  -timing     Enable the timing model")
	fmt.Println("  -config     Timing configuration file (.json/.yaml)")
	fmt.Println("  -extract    Save the ISO boot image and exit")
	fmt.Println("  -v          Print run statistics")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/rvsim' for the full CLI.")
	fmt.Println("Run 'go run ./cmd/benchmark' for the timing microbenchmarks.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/rvsim' instead.")
	}
}

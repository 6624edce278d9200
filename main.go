// Package main provides the entry point for oosim.
// oosim is a cycle-accurate out-of-order memory subsystem model built on Akita.
//
// For the full CLI, use: go run ./cmd/oosim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("oosim - Out-of-Order Memory Subsystem Timing Model")
	fmt.Println("Built on Akita simulation framework")
	fmt.Println("")
	fmt.Println("Usage: oosim run [options] <trace>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  --lq N         Load queue size (0 = from model)")
	fmt.Println("  --sq N         Store queue size (0 = from model)")
	fmt.Println("  --no-alias     Assume no aliasing without address metadata")
	fmt.Println("  -v             Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/oosim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/oosim' instead.")
	}
}

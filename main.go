// Command rvfront's top-level entry point just points at the real CLI,
// the way the teacher's root main.go points at cmd/m2sim.
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("rvfront - RV32I instruction front-end simulator")
	fmt.Println("")
	fmt.Println("Usage: rvfront [options] <program.elf>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -cycles    Number of cycles to run")
	fmt.Println("  -config    Path to a front-end configuration JSON file")
	fmt.Println("  -v         Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/rvfront' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: you provided arguments. Use 'go run ./cmd/rvfront' instead.")
	}
}

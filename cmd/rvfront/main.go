// Command rvfront drives the instruction front-end standalone: it loads an
// RV32 ELF image's segments into the backing memory, seeds the control-
// flow controller with the entry point as an architectural override on
// the first cycle, runs a fixed number of cycles, and reports the
// resulting counters. It is grounded on cmd/m2sim's flag-driven,
// load-then-run shape.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/rvfront/addrspace"
	"github.com/sarchlab/rvfront/backing"
	"github.com/sarchlab/rvfront/front"
	"github.com/sarchlab/rvfront/front/cfc"
	"github.com/sarchlab/rvfront/loader"
	"github.com/sarchlab/rvfront/param"
)

var (
	cycles     = flag.Int("cycles", 10000, "number of cycles to run")
	configPath = flag.String("config", "", "path to a front-end configuration JSON file")
	verbose    = flag.Bool("v", false, "verbose output")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: rvfront [options] <program.elf>\n\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(path string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	prog, err := loader.Load(path)
	if err != nil {
		return fmt.Errorf("loading program: %w", err)
	}

	mem := backing.NewMemory(cfg.LineWords)
	for _, seg := range prog.Segments {
		writeSegment(mem, seg)
	}

	if *verbose {
		fmt.Printf("Loaded: %s\n", path)
		fmt.Printf("Entry point: 0x%X\n", prog.EntryPoint)
		fmt.Printf("Segments: %d\n", len(prog.Segments))
	}

	fe := front.New(cfg, mem)

	for i := 0; i < *cycles; i++ {
		override := cfc.Override{}
		if i == 0 {
			override = cfc.Override{Valid: true, PC: prog.EntryPoint}
		}
		fe.Tick(override)
	}

	stats := fe.Stats()
	fmt.Printf("Cycles: %d\n", stats.Cycles)
	fmt.Printf("Demand hits: %d\n", stats.DemandHits)
	fmt.Printf("Demand L1 misses: %d\n", stats.DemandL1Miss)
	fmt.Printf("Demand TLB misses: %d\n", stats.DemandTLBMiss)
	fmt.Printf("Resteers: %d\n", stats.Resteers)
	fmt.Printf("Cachelines delivered: %d\n", stats.CachelinesOut)

	return nil
}

func loadConfig() (*param.Config, error) {
	if *configPath == "" {
		return param.Default(), nil
	}
	return param.LoadConfig(*configPath)
}

// writeSegment copies a loaded ELF segment into the backing memory one
// word at a time. BSS bytes beyond the file's contents (memsz > filesz)
// are left as the backing store's zero value.
func writeSegment(mem *backing.Memory, seg loader.Segment) {
	for off := 0; off+4 <= len(seg.Data); off += 4 {
		word := binary.LittleEndian.Uint32(seg.Data[off : off+4])
		mem.WriteWord(addrspace.PAddr(seg.VirtAddr+uint32(off)), word)
	}
}

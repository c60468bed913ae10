// Package param holds the compile-time configuration of the front-end
// pipeline: cache geometry, queue depths, and fill resources. Every other
// package in this module takes a *Config rather than hard-coding these
// values, the way timing/latency.TimingConfig threads through the teacher's
// pipeline packages.
package param

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config holds the parameters listed in spec.md section 3.1.
type Config struct {
	// XLEN is the architectural word width in bits.
	XLEN int `json:"xlen"`

	// SSWidth is the superscalar predecode/output width (words per cycle).
	SSWidth int `json:"ss_width"`

	// L1ISets is the number of sets in the L1 instruction cache.
	L1ISets int `json:"l1i_sets"`
	// L1IWays is the set associativity of the L1 instruction cache.
	L1IWays int `json:"l1i_ways"`

	// LineWords is the number of 32-bit words per cacheline.
	LineWords int `json:"line_words"`

	// TLBDepth is the number of fully-associative L1I TLB entries.
	TLBDepth int `json:"tlb_depth"`

	// FTQDepth is the number of entries in the fetch target queue. Must be
	// a power of two (Validate rejects any other value).
	FTQDepth int `json:"ftq_depth"`

	// NMSHR is the number of miss-status holding registers in the fill unit.
	NMSHR int `json:"n_mshr"`

	// NFillPort is the number of simultaneous fill requests/responses the
	// arbiter can admit or emit per cycle.
	NFillPort int `json:"n_fill_port"`

	// MaxFetchBlock is the maximum number of sequential cachelines a single
	// FTQ transaction may span.
	MaxFetchBlock int `json:"max_fetch_block"`
}

// Default returns the parameter set from spec.md section 3.1.
func Default() *Config {
	return &Config{
		XLEN:          32,
		SSWidth:       8,
		L1ISets:       32,
		L1IWays:       2,
		LineWords:     8,
		TLBDepth:      8,
		FTQDepth:      16,
		NMSHR:         2,
		NFillPort:     2,
		MaxFetchBlock: 16,
	}
}

// LineBytes returns the cacheline size in bytes.
func (c *Config) LineBytes() int {
	return c.LineWords * 4
}

// LineOffsetBits returns log2(LineBytes()), the width of the in-line byte
// offset field of a virtual address.
func (c *Config) LineOffsetBits() int {
	return ceilLog2(c.LineBytes())
}

// SetIndexBits returns log2(L1ISets).
func (c *Config) SetIndexBits() int {
	return ceilLog2(c.L1ISets)
}

// FTQIndexBits returns log2(FTQDepth).
func (c *Config) FTQIndexBits() int {
	return ceilLog2(c.FTQDepth)
}

// Validate checks that the configuration describes a legal machine: queue
// and cache geometries must be powers of two (the hardware indexes them
// with plain bit slices, not modulo arithmetic), and every count must be
// positive.
func (c *Config) Validate() error {
	if c.XLEN != 32 {
		return fmt.Errorf("param: xlen must be 32, got %d", c.XLEN)
	}
	if c.SSWidth <= 0 {
		return fmt.Errorf("param: ss_width must be > 0")
	}
	if !isPowerOfTwo(c.L1ISets) {
		return fmt.Errorf("param: l1i_sets must be a power of two, got %d", c.L1ISets)
	}
	if c.L1IWays <= 0 {
		return fmt.Errorf("param: l1i_ways must be > 0")
	}
	if !isPowerOfTwo(c.LineWords) {
		return fmt.Errorf("param: line_words must be a power of two, got %d", c.LineWords)
	}
	if c.TLBDepth <= 0 {
		return fmt.Errorf("param: tlb_depth must be > 0")
	}
	if !isPowerOfTwo(c.FTQDepth) {
		return fmt.Errorf("param: ftq_depth must be a power of two, got %d", c.FTQDepth)
	}
	if c.NMSHR <= 0 {
		return fmt.Errorf("param: n_mshr must be > 0")
	}
	if c.NFillPort <= 0 {
		return fmt.Errorf("param: n_fill_port must be > 0")
	}
	if c.MaxFetchBlock <= 0 {
		return fmt.Errorf("param: max_fetch_block must be > 0")
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// LoadConfig reads a Config from a JSON file, seeded with Default() values
// for any field the file omits.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("param: failed to read config file: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("param: failed to parse config: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes a Config to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("param: failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("param: failed to write config file: %w", err)
	}

	return nil
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func ceilLog2(n int) int {
	bits := 0
	v := 1
	for v < n {
		v <<= 1
		bits++
	}
	return bits
}

// Package addrspace implements the Sv32 address layouts and bitmask helpers
// used throughout the front-end (spec.md section 3.2). Every overlay is a
// pure function of a *param.Config and a raw address: there is no hidden
// state here, matching the teacher's preference for small, stateless
// helpers (e.g. timing/latency.Table) over ambient globals.
package addrspace

import "github.com/sarchlab/rvfront/param"

// VAddr is a 32-bit virtual address (Sv32: offset:12 | VPN0:10 | VPN1:10).
type VAddr uint32

// PAddr is a 34-bit physical address (offset:12 | PPN0:10 | PPN1:12),
// stored in a 64-bit word since Go has no 34-bit integer type.
type PAddr uint64

const (
	pageOffsetBits = 12
	vpnBits        = 10
)

// VPN0 returns the low virtual page number field (bits [21:12]).
func (v VAddr) VPN0() uint32 {
	return uint32(v>>pageOffsetBits) & (1<<vpnBits - 1)
}

// VPN1 returns the high virtual page number field (bits [31:22]).
func (v VAddr) VPN1() uint32 {
	return uint32(v>>(pageOffsetBits+vpnBits)) & (1<<vpnBits - 1)
}

// VPN returns the full 20-bit virtual page number (VPN1:VPN0).
func (v VAddr) VPN() uint32 {
	return uint32(v) >> pageOffsetBits
}

// PageOffset returns the low 12 bits of the address (valid for both VAddr
// and the analogous field of a PAddr).
func (v VAddr) PageOffset() uint32 {
	return uint32(v) & (1<<pageOffsetBits - 1)
}

// PPN0 returns the low physical page number field (bits [21:12]).
func (p PAddr) PPN0() uint32 {
	return uint32(p>>pageOffsetBits) & (1<<vpnBits - 1)
}

// PPN1 returns the high physical page number field (bits [33:22], 12 bits).
func (p PAddr) PPN1() uint32 {
	return uint32(p >> (pageOffsetBits + vpnBits))
}

// PPN returns the full 22-bit physical page number.
func (p PAddr) PPN() uint32 {
	return uint32(p >> pageOffsetBits)
}

// Layout exposes the fetch-address overlays (fetch_off / fetch_blk / l1i
// set index) for a specific cacheline geometry. These depend on
// param.Config (line size, number of sets), so they are methods on a small
// value type rather than free functions.
type Layout struct {
	lineOffsetBits int
	setIndexBits   int
	numSets        uint32
}

// NewLayout derives a Layout from a parameter set.
func NewLayout(p *param.Config) Layout {
	return Layout{
		lineOffsetBits: p.LineOffsetBits(),
		setIndexBits:   p.SetIndexBits(),
		numSets:        uint32(p.L1ISets),
	}
}

// FetchOff returns the in-line byte offset of a fetch address (the low
// log2(LINE_BYTES) bits).
func (l Layout) FetchOff(v VAddr) uint32 {
	return uint32(v) & (1<<uint(l.lineOffsetBits) - 1)
}

// FetchBlk returns the block-aligned remainder of a fetch address (all
// bits at or above the line offset).
func (l Layout) FetchBlk(v VAddr) uint32 {
	return uint32(v) >> uint(l.lineOffsetBits)
}

// BlockAlign clears the in-line offset bits, producing the cacheline-
// aligned base address of v.
func (l Layout) BlockAlign(v VAddr) VAddr {
	mask := ^uint32(0) << uint(l.lineOffsetBits)
	return VAddr(uint32(v) & mask)
}

// Set extracts the L1I set index: the bits of the fetch block field
// immediately above the line offset. With the default geometry these bits
// lie inside the page offset; the index is not taken from VPN0.
func (l Layout) Set(v VAddr) uint32 {
	return l.FetchBlk(v) & (l.numSets - 1)
}

// SetPA extracts the L1I set index from a physical address. Because this
// front-end's set-index bits fit entirely inside the untranslated page
// offset (spec.md section 3.2), the result is identical whether computed
// from a virtual or physical address for the same line, so this index can
// be used as a PIPT cache with a VIPT-width index.
func (l Layout) SetPA(p PAddr) uint32 {
	return (uint32(p) >> uint(l.lineOffsetBits)) & (l.numSets - 1)
}

// StartWordIndex returns the index of the first word in the cacheline that
// a fetch beginning at v participates from (fetch_off / 4).
func (l Layout) StartWordIndex(v VAddr) int {
	return int(l.FetchOff(v) >> 2)
}

// FetchAddr reconstructs the block-aligned address from the fetch_blk
// overlay, the inverse of FetchBlk; used to check the round-trip property
// in spec.md section 8.2: fetch_addr(v) | fetch_off(v) == v.bits.
func (l Layout) FetchAddr(blk uint32) VAddr {
	return VAddr(blk << uint(l.lineOffsetBits))
}

// Limit2Mask returns a bitmask of the given width with exactly k low bits
// set (k in [0, width]). Used to truncate a cacheline's output mask at a
// resteering instruction (spec.md section 4.3, stage 3).
func Limit2Mask(k, width int) uint32 {
	if k <= 0 {
		return 0
	}
	if k >= width {
		return 1<<uint(width) - 1
	}
	return 1<<uint(k) - 1
}

// Offset2Mask returns a bitmask of the given width with exactly
// (width - k) high bits set: the words at or after start index k are
// valid. Used to mask out words before a fetch's start_idx (spec.md
// section 4.8).
func Offset2Mask(k, width int) uint32 {
	if k <= 0 {
		return 1<<uint(width) - 1
	}
	if k >= width {
		return 0
	}
	full := uint32(1<<uint(width) - 1)
	low := uint32(1<<uint(k) - 1)
	return full &^ low
}

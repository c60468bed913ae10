// Package itlb implements the fully-associative L1I TLB (spec.md section
// 4.6): two synchronous read ports (demand + probe), one fill port driven
// by an external page-table-walker collaborator, and LFSR-driven random
// replacement on fill, mirroring the L1I cache's own replacement policy
// (front/l1i, front/lfsr).
package itlb

import "github.com/sarchlab/rvfront/front/lfsr"

// PTE is the translation this front-end cares about: just the physical
// page number. Permission bits, dirty/accessed bits, and the rest of a
// real Sv32 PTE are mid-core/PTW concerns out of scope here (spec.md
// section 1).
type PTE struct {
	PPN uint32
}

type entry struct {
	valid bool
	vpn   uint32
	pte   PTE
}

type pendingFill struct {
	vpn uint32
	pte PTE
}

// TLB is the fully-associative L1I translation lookaside buffer.
type TLB struct {
	entries    []entry
	replaceLFS *lfsr.LFSR
	pending    []pendingFill
}

// New constructs a TLB with the given number of entries.
func New(depth int) *TLB {
	return &TLB{
		entries:    make([]entry, depth),
		replaceLFS: lfsr.New(clampDegree(ceilLog2(depth)), 1),
	}
}

// Lookup compares vpn against every valid entry in parallel and
// priority-encodes the first match (spec.md section 4.6). The result is
// available "next cycle" from the caller's point of view: DFU/PFU stage 1
// issues the lookup and stage 2 consumes this return value, which plays
// the role of the one-cycle synchronous read latency.
func (t *TLB) Lookup(vpn uint32) (pte PTE, hit bool) {
	for _, e := range t.entries {
		if e.valid && e.vpn == vpn {
			return e.pte, true
		}
	}
	return PTE{}, false
}

// Fill stages a translation write from the external PTW collaborator
// (spec.md section 6.2), to be applied on Commit. The target entry is
// chosen by the replacement LFSR (spec.md section 4.6).
func (t *TLB) Fill(vpn uint32, pte PTE) {
	t.pending = append(t.pending, pendingFill{vpn: vpn, pte: pte})
}

// Commit applies every Fill staged during the current cycle.
func (t *TLB) Commit() {
	if len(t.pending) == 0 {
		return
	}
	for _, f := range t.pending {
		idx := t.replaceLFS.Index(len(t.entries))
		t.replaceLFS.Next()
		t.entries[idx] = entry{valid: true, vpn: f.vpn, pte: f.pte}
	}
	t.pending = nil
}

// Reset invalidates every entry.
func (t *TLB) Reset() {
	for i := range t.entries {
		t.entries[i] = entry{}
	}
	t.pending = nil
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

func clampDegree(bits int) int {
	if bits < 3 {
		return 3
	}
	if bits > 8 {
		return 8
	}
	return bits
}

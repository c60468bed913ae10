// Package l1i implements the L1 instruction cache storage: tag and data
// arrays, parallel way reads, and LFSR-driven random-replacement fills
// (spec.md section 4.5). It reuses the teacher's cache bookkeeping
// abstraction (github.com/sarchlab/akita/v4/mem/cache's DirectoryImpl) for
// the tag array the way timing/cache.Cache does, but drives way selection
// itself instead of delegating to a VictimFinder: this cache's index bits
// fit entirely inside the untranslated page offset (spec.md section 3.2),
// so set selection never needs the physical tag, and replacement is
// random rather than LRU.
package l1i

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/sarchlab/rvfront/addrspace"
	"github.com/sarchlab/rvfront/front/lfsr"
	"github.com/sarchlab/rvfront/param"
)

// Tag is the per-way metadata of spec.md section 3.2: {valid:1, ppn:22}.
type Tag struct {
	Valid bool
	PPN   uint32
}

// Way bundles one way's tag and cacheline data, as returned by a parallel
// read of a set (spec.md section 4.5: "read ports return all ways in
// parallel").
type Way struct {
	Tag  Tag
	Data []uint32
}

type pendingWrite struct {
	set  int
	way  int
	ppn  uint32
	data []uint32
}

// L1I is the instruction cache's storage array.
type L1I struct {
	cfg    *param.Config
	layout addrspace.Layout

	dir       *akitacache.DirectoryImpl
	dataStore [][]uint32 // indexed by set*ways + way

	fillLFSR *lfsr.LFSR

	pending []pendingWrite
}

// New constructs an L1I cache from the given parameters.
func New(cfg *param.Config) *L1I {
	dataStore := make([][]uint32, cfg.L1ISets*cfg.L1IWays)
	for i := range dataStore {
		dataStore[i] = make([]uint32, cfg.LineWords)
	}

	return &L1I{
		cfg:    cfg,
		layout: addrspace.NewLayout(cfg),
		dir: akitacache.NewDirectory(
			cfg.L1ISets,
			cfg.L1IWays,
			cfg.LineWords*4,
			akitacache.NewLRUVictimFinder(),
		),
		dataStore: dataStore,
		fillLFSR:  lfsr.New(clampDegree(ceilLog2(cfg.L1IWays)), 1),
	}
}

func (c *L1I) blockIndex(set, way int) int {
	return set*c.cfg.L1IWays + way
}

// ReadSet performs a parallel read of every way in a set, returning tags
// and cacheline data together (spec.md section 4.5). The read is
// conceptually synchronous (the caller — DFU/PFU stage 1->2 — is
// responsible for modeling the one-cycle latency by consuming this result
// in the following stage register).
func (c *L1I) ReadSet(set uint32) []Way {
	ways := make([]Way, c.cfg.L1IWays)
	sets := c.dir.GetSets()
	blocks := sets[set].Blocks
	for w := 0; w < c.cfg.L1IWays; w++ {
		b := blocks[w]
		ways[w] = Way{
			Tag:  Tag{Valid: b.IsValid, PPN: uint32(b.Tag)},
			Data: c.dataStore[c.blockIndex(int(set), w)],
		}
	}
	return ways
}

// ReadTags performs a tags-only parallel read of a set, for the probe port
// used by the PFU (spec.md section 4.5: "a probe port serves PFU and
// exposes only tags").
func (c *L1I) ReadTags(set uint32) []Tag {
	tags := make([]Tag, c.cfg.L1IWays)
	sets := c.dir.GetSets()
	blocks := sets[set].Blocks
	for w := 0; w < c.cfg.L1IWays; w++ {
		tags[w] = Tag{Valid: blocks[w].IsValid, PPN: uint32(blocks[w].Tag)}
	}
	return tags
}

// WaySelect compares a tag's PPN against each way's stored (valid) PPN and
// priority-encodes the first match (spec.md section 4.5).
func WaySelect(ways []Tag, ppn uint32) (hit bool, way int) {
	for w, t := range ways {
		if t.Valid && t.PPN == ppn {
			return true, w
		}
	}
	return false, 0
}

// Fill stages a write of a fetched cacheline into a set, choosing the
// target way via the LFSR (spec.md section 4.5). The write is not visible
// to ReadSet/ReadTags until Commit is called, modeling "writes commit at
// the end of the cycle" (spec.md section 4.5) and guaranteeing that a read
// and write to the same set in the same cycle never bypass.
func (c *L1I) Fill(set uint32, ppn uint32, data []uint32) (way int) {
	way = c.fillLFSR.Index(c.cfg.L1IWays)
	c.fillLFSR.Next()

	cp := make([]uint32, len(data))
	copy(cp, data)
	c.pending = append(c.pending, pendingWrite{set: int(set), way: way, ppn: ppn, data: cp})
	return way
}

// Commit applies every Fill staged during the current cycle. The top-level
// front-end scheduler calls this once per cycle, after every component has
// computed its next state from the currently-committed arrays (spec.md
// section 5 / section 9).
func (c *L1I) Commit() {
	if len(c.pending) == 0 {
		return
	}
	sets := c.dir.GetSets()
	for _, w := range c.pending {
		block := sets[w.set].Blocks[w.way]
		block.Tag = uint64(w.ppn)
		block.IsValid = true
		copy(c.dataStore[c.blockIndex(w.set, w.way)], w.data)
	}
	c.pending = nil
}

// Reset invalidates every line.
func (c *L1I) Reset() {
	c.dir.Reset()
	c.pending = nil
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

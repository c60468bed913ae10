// Package pfu implements the prefetch unit: a two-stage probe-only mirror
// of the demand fetch unit for a single cacheline (spec.md section 4.4). It
// never blocks on a TLB or L1I miss — a miss simply reports its status and
// the probe ends, to be retried whenever the FTQ next stages that entry —
// but it does hold its ground when the fill arbiter has no free MSHR,
// replaying the same probe until admission succeeds, since a prefetch
// miss's whole purpose is to get a fill request in. Grounded on the
// original's PrefetchUnit/prefetch.py, which is fetch.py's logic with the
// miss-replay machinery and the data-array read stripped out.
package pfu

import (
	"github.com/sarchlab/rvfront/addrspace"
	"github.com/sarchlab/rvfront/front/fetchio"
	"github.com/sarchlab/rvfront/front/ifill"
	"github.com/sarchlab/rvfront/front/itlb"
	"github.com/sarchlab/rvfront/front/l1i"
	"github.com/sarchlab/rvfront/param"
)

type beat struct {
	valid    bool
	vaddr    uint32
	ftqIdx   int
	passthru bool
}

type s1Reg struct {
	valid bool
	beat  beat
}

type s2Reg struct {
	valid  bool
	beat   beat
	tags   []l1i.Tag
	tlbHit bool
	tlbPTE itlb.PTE
}

// PFU is the prefetch unit.
type PFU struct {
	cfg    *param.Config
	layout addrspace.Layout
	cache  *l1i.L1I
	tlb    *itlb.TLB
	arb    *ifill.Arbiter

	stage1 s1Reg
	stage2 s2Reg

	retry   bool
	retryAt beat

	resp fetchio.PrefetchResponse
}

// New constructs a PFU wired to its collaborators.
func New(cfg *param.Config, cache *l1i.L1I, tlb *itlb.TLB, arb *ifill.Arbiter) *PFU {
	return &PFU{
		cfg:    cfg,
		layout: addrspace.NewLayout(cfg),
		cache:  cache,
		tlb:    tlb,
		arb:    arb,
	}
}

// Response returns the probe response staged for the FTQ this cycle (zero
// value if none: either no probe is in flight, or this cycle's probe is
// still waiting on a free MSHR).
func (p *PFU) Response() fetchio.PrefetchResponse {
	return p.resp
}

// Busy reports whether the PFU cannot accept a new probe this cycle: either
// a probe is already mid-pipeline, or one is retrying against the arbiter.
func (p *PFU) Busy() bool {
	return p.stage1.valid || p.stage2.valid || p.retry
}

// Step advances the PFU by one cycle, consuming registers deepest-first so
// each stage only ever observes last cycle's contents, the same discipline
// front/dfu uses.
func (p *PFU) Step(req fetchio.FetchRequest) {
	p.resp = fetchio.PrefetchResponse{}

	oldS2 := p.stage2
	p.processStage2(oldS2)

	newS2 := p.processStage1(p.stage1)

	var newS1 s1Reg
	if p.retry {
		newS1 = s1Reg{valid: true, beat: p.retryAt}
	} else {
		newS1 = p.issue(req)
	}

	p.stage1 = newS1
	p.stage2 = newS2
}

func (p *PFU) issue(req fetchio.FetchRequest) s1Reg {
	if !req.Valid {
		return s1Reg{}
	}
	return s1Reg{valid: true, beat: beat{
		valid: true, vaddr: req.VAddr, ftqIdx: req.FTQIdx, passthru: req.Passthru,
	}}
}

// processStage1 drives the tag-only probe port and the TLB's probe read
// (spec.md section 4.4: "a probe port serves PFU and exposes only tags").
func (p *PFU) processStage1(s s1Reg) s2Reg {
	if !s.valid {
		return s2Reg{}
	}
	b := s.beat
	set := p.layout.Set(addrspace.VAddr(b.vaddr))
	out := s2Reg{valid: true, beat: b, tags: p.cache.ReadTags(set)}
	if !b.passthru {
		vpn := addrspace.VAddr(b.vaddr).VPN()
		pte, hit := p.tlb.Lookup(vpn)
		out.tlbHit = hit
		out.tlbPTE = pte
	}
	return out
}

// processStage2 forms the physical tag and checks for a hit. On a miss, it
// tries to submit a fill request; if the arbiter has no free MSHR this
// cycle, the same beat is held and retried next cycle (spec.md section
// 4.4: "the PFU stalls only when the fill arbiter is not ready") instead of
// reporting anything yet. A TLB miss, like an L1 miss, is reported and the
// probe simply ends — there is no STALL state for a translation miss here,
// unlike the DFU.
func (p *PFU) processStage2(s s2Reg) {
	if !s.valid {
		return
	}
	b := s.beat

	var ppn uint32
	tagOK := false
	if b.passthru {
		ppn = addrspace.PAddr(uint64(b.vaddr)).PPN()
		tagOK = true
	} else if s.tlbHit {
		ppn = s.tlbPTE.PPN
		tagOK = true
	}

	if !tagOK {
		p.retry = false
		p.resp = fetchio.PrefetchResponse{Valid: true, FTQIdx: b.ftqIdx, Status: fetchio.StatusTLBMiss}
		return
	}

	if hit, _ := l1i.WaySelect(s.tags, ppn); hit {
		p.retry = false
		p.resp = fetchio.PrefetchResponse{Valid: true, FTQIdx: b.ftqIdx, Status: fetchio.StatusHit}
		return
	}

	paddr := addrspace.PAddr(uint64(ppn)<<12 | uint64(addrspace.VAddr(b.vaddr).PageOffset()))
	admitted := p.arb.Admit([]ifill.Request{{Addr: paddr, FTQIdx: b.ftqIdx, Src: ifill.Prefetch}})
	if admitted == 0 {
		p.retry = true
		p.retryAt = b
		return
	}
	p.retry = false
	p.resp = fetchio.PrefetchResponse{Valid: true, FTQIdx: b.ftqIdx, Status: fetchio.StatusL1Miss}
}

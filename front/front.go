// Package front wires the whole instruction front-end together: the L1I
// cache and TLB, the fill arbiter, the demand and prefetch fetch units, the
// fetch target queue, the control-flow controller, and the two predictors
// it drives (SPEC_FULL.md section 4). It owns the single fixed scheduling
// order every cycle runs in, grounded on the leaves-first component
// ordering spec.md section 2 lays out and the single-threaded,
// cycle-synchronous model of section 5: one Tick call per cycle, no
// goroutines, no channels.
package front

import (
	"github.com/sarchlab/rvfront/backing"
	"github.com/sarchlab/rvfront/front/cfc"
	"github.com/sarchlab/rvfront/front/dfu"
	"github.com/sarchlab/rvfront/front/fetchio"
	"github.com/sarchlab/rvfront/front/ftq"
	"github.com/sarchlab/rvfront/front/ifill"
	"github.com/sarchlab/rvfront/front/itlb"
	"github.com/sarchlab/rvfront/front/l1i"
	"github.com/sarchlab/rvfront/front/nfp"
	"github.com/sarchlab/rvfront/front/pfu"
	"github.com/sarchlab/rvfront/front/rap"
	"github.com/sarchlab/rvfront/param"
)

// Stats accumulates per-cycle counters useful for reporting (not part of
// the spec's data model, purely observational — spec.md section 1 keeps
// performance counters out of scope but a cycle-driven harness needs
// something to report).
type Stats struct {
	Cycles        uint64
	DemandHits    uint64
	DemandL1Miss  uint64
	DemandTLBMiss uint64
	Resteers      uint64
	CachelinesOut uint64
}

// FrontEnd owns every component of the instruction front-end and advances
// them all together, one cycle at a time.
type FrontEnd struct {
	cfg *param.Config

	mem   *backing.Memory
	ptw   *backing.PTWStub
	cache *l1i.L1I
	tlb   *itlb.TLB
	arb   *ifill.Arbiter
	q     *ftq.FTQ
	d     *dfu.DFU
	pu    *pfu.PFU
	p     *nfp.NFP
	r     *rap.RAP
	c     *cfc.CFC

	stats Stats
}

// New constructs a front-end with freshly initialized components, wired
// the way SPEC_FULL.md section 4 lays out: l1i/itlb at the leaves, the
// fill arbiter above them, DFU/PFU above that, FTQ above those, CFC at the
// top driving RAP and NFP.
func New(cfg *param.Config, mem *backing.Memory) *FrontEnd {
	cache := l1i.New(cfg)
	tlb := itlb.New(cfg.TLBDepth)
	arb := ifill.New(cfg, mem, cache)
	ptw := backing.NewPTWStub()
	q := ftq.New(cfg.FTQDepth)
	d := dfu.New(cfg, cache, tlb, arb, ptw)
	pu := pfu.New(cfg, cache, tlb, arb)
	r := rap.New(8)
	np := nfp.New(cfg, 32)
	c := cfc.New(cfg, r, np)

	return &FrontEnd{
		cfg:   cfg,
		mem:   mem,
		ptw:   ptw,
		cache: cache,
		tlb:   tlb,
		arb:   arb,
		q:     q,
		d:     d,
		pu:    pu,
		p:     np,
		r:     r,
		c:     c,
	}
}

// Tick advances every component by exactly one cycle, in the fixed order
// the spec calls for: drain and advance the fill arbiter and the PTW
// stub (the leaves' asynchronous collaborators), stage this cycle's FTQ
// requests, step the demand and prefetch units (predecoding is embedded
// in the DFU's stage 3), fold their responses back into the FTQ, let the
// CFC observe the DFU's same-cycle resteer and choose the next
// allocation, then commit the L1I and TLB arrays. override carries the
// architectural-override input for this cycle (spec.md section 6.3);
// pass a zero value when none is asserted.
func (f *FrontEnd) Tick(override cfc.Override) {
	f.stats.Cycles++

	for _, resp := range f.arb.Drain() {
		f.q.HandleFillResponse(resp)
	}
	f.arb.Step()

	for _, fill := range f.ptw.Tick() {
		f.tlb.Fill(fill.VPN, fill.PTE)
	}

	f.q.Step()

	demandReq, _ := f.q.PendingDemand()
	prefetchReq, _ := f.q.PendingPrefetch()

	f.d.Step(demandReq)
	f.pu.Step(prefetchReq)

	demandResp := f.d.DemandResponse()
	f.q.HandleDemandResponse(demandResp)
	f.q.HandlePrefetchResponse(f.pu.Response())
	f.tallyDemand(demandResp)

	resteer := f.d.Resteer()
	if resteer.Valid {
		f.stats.Resteers++
	}
	if out := f.d.Output(); out.Valid {
		f.stats.CachelinesOut++
	}

	if req, ok := f.c.Step(resteer, override, f.q.Ready()); ok {
		f.q.Alloc(req)
	}

	for f.q.Release() {
	}

	f.cache.Commit()
	f.tlb.Commit()
}

func (f *FrontEnd) tallyDemand(resp fetchio.DemandResponse) {
	if !resp.Valid {
		return
	}
	switch resp.Status {
	case fetchio.StatusHit:
		f.stats.DemandHits++
	case fetchio.StatusL1Miss:
		f.stats.DemandL1Miss++
	case fetchio.StatusTLBMiss:
		f.stats.DemandTLBMiss++
	}
}

// Stats returns a copy of the accumulated per-cycle counters.
func (f *FrontEnd) Stats() Stats {
	return f.stats
}

// Output returns the decode-queue output the DFU produced this cycle
// (spec.md section 6.4): a downstream collaborator, out of scope here,
// would consume this one cacheline at a time.
func (f *FrontEnd) Output() dfu.Output {
	return f.d.Output()
}

// FTQ exposes the fetch target queue for observability (tests, tracing).
func (f *FrontEnd) FTQ() *ftq.FTQ {
	return f.q
}

// RAP exposes the return-address predictor for observability.
func (f *FrontEnd) RAP() *rap.RAP {
	return f.r
}

// NFP exposes the next-fetch predictor for observability.
func (f *FrontEnd) NFP() *nfp.NFP {
	return f.p
}

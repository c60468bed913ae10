package dfu_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvfront/addrspace"
	"github.com/sarchlab/rvfront/backing"
	"github.com/sarchlab/rvfront/front/dfu"
	"github.com/sarchlab/rvfront/front/fetchio"
	"github.com/sarchlab/rvfront/front/ifill"
	"github.com/sarchlab/rvfront/front/itlb"
	"github.com/sarchlab/rvfront/front/l1i"
	"github.com/sarchlab/rvfront/param"
	"github.com/sarchlab/rvfront/riscv"
)

func TestDFU(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "DFU Suite")
}

const nop = 0x00000013

// jal0 is "jal x0, 4": a direct, unconditional, resteerable jump.
const jal0 = 0x0040006F

func smallConfig() *param.Config {
	return &param.Config{
		XLEN: 32, SSWidth: 2,
		L1ISets: 1, L1IWays: 2, LineWords: 2,
		TLBDepth: 2, FTQDepth: 4,
		NMSHR: 1, NFillPort: 1, MaxFetchBlock: 4,
	}
}

type fixture struct {
	cfg    *param.Config
	layout addrspace.Layout
	cache  *l1i.L1I
	tlb    *itlb.TLB
	mem    *backing.Memory
	ptw    *backing.PTWStub
	arb    *ifill.Arbiter
	d      *dfu.DFU
}

func newFixture() *fixture {
	cfg := smallConfig()
	cache := l1i.New(cfg)
	tlb := itlb.New(cfg.TLBDepth)
	mem := backing.NewMemory(cfg.LineWords)
	ptw := backing.NewPTWStub()
	arb := ifill.New(cfg, mem, cache)
	return &fixture{
		cfg:    cfg,
		layout: addrspace.NewLayout(cfg),
		cache:  cache,
		tlb:    tlb,
		mem:    mem,
		ptw:    ptw,
		arb:    arb,
		d:      dfu.New(cfg, cache, tlb, arb, ptw),
	}
}

// tick runs one full front-end cycle: the fill arbiter advances first (so a
// request admitted by a previous cycle's DFU step is observed no sooner
// than the next cycle), then the DFU, then every array commits, matching
// the leaves-first scheduling order the rest of the module follows.
func (f *fixture) tick(req fetchio.FetchRequest) {
	f.arb.Step()
	for _, pf := range f.ptw.Tick() {
		f.tlb.Fill(pf.VPN, pf.PTE)
	}
	f.d.Step(req)
	f.cache.Commit()
	f.tlb.Commit()
}

func (f *fixture) preload(vaddr uint32, words []uint32) {
	vpn := addrspace.VAddr(vaddr).VPN()
	f.tlb.Fill(vpn, itlb.PTE{PPN: vpn})
	f.tlb.Commit()

	set := f.layout.Set(addrspace.VAddr(vaddr))
	f.cache.Fill(set, vpn, words)
	f.cache.Commit()
}

var _ = Describe("DFU", func() {
	It("reports a hit for a single-line transaction already resident in the cache and TLB", func() {
		f := newFixture()
		const vaddr = 0x2000
		f.preload(vaddr, []uint32{nop, nop})

		req := fetchio.FetchRequest{Valid: true, VAddr: vaddr, Lines: 1, FTQIdx: 0}
		var last fetchio.DemandResponse
		for i := 0; i < 4; i++ {
			r := fetchio.FetchRequest{}
			if i == 0 {
				r = req
			}
			f.tick(r)
			if resp := f.d.DemandResponse(); resp.Valid {
				last = resp
			}
		}

		Expect(last.Valid).To(BeTrue())
		Expect(last.FTQIdx).To(Equal(0))
		Expect(last.Status).To(Equal(fetchio.StatusHit))
		Expect(f.d.Resteer().Valid).To(BeFalse())
	})

	It("treats a passthru request's vaddr directly as a physical address, bypassing the TLB", func() {
		f := newFixture()
		const vaddr = 0x4000
		vpn := addrspace.VAddr(vaddr).VPN()
		set := f.layout.Set(addrspace.VAddr(vaddr))
		f.cache.Fill(set, vpn, []uint32{nop, nop})
		f.cache.Commit()

		req := fetchio.FetchRequest{Valid: true, VAddr: vaddr, Passthru: true, Lines: 1, FTQIdx: 0}
		var last fetchio.DemandResponse
		for i := 0; i < 4; i++ {
			r := fetchio.FetchRequest{}
			if i == 0 {
				r = req
			}
			f.tick(r)
			if resp := f.d.DemandResponse(); resp.Valid {
				last = resp
			}
		}

		Expect(last.Valid).To(BeTrue())
		Expect(last.Status).To(Equal(fetchio.StatusHit))
	})

	It("reports an L1 miss, fills the line via the arbiter, and resumes to a hit", func() {
		f := newFixture()
		const vaddr = 0x2000
		vpn := addrspace.VAddr(vaddr).VPN()
		f.tlb.Fill(vpn, itlb.PTE{PPN: vpn})
		f.tlb.Commit()
		f.mem.WriteLine(addrspace.PAddr(vaddr), []uint32{nop, nop})

		req := fetchio.FetchRequest{Valid: true, VAddr: vaddr, Lines: 1, FTQIdx: 0}
		var sawMiss, sawHit bool
		for i := 0; i < 20 && !sawHit; i++ {
			r := fetchio.FetchRequest{}
			if i == 0 {
				r = req
			}
			f.tick(r)
			resp := f.d.DemandResponse()
			if resp.Valid && resp.Status == fetchio.StatusL1Miss {
				sawMiss = true
			}
			if resp.Valid && resp.Status == fetchio.StatusHit {
				sawHit = true
			}
		}

		Expect(sawMiss).To(BeTrue())
		Expect(sawHit).To(BeTrue())
	})

	It("reports a TLB miss, fills the translation via the PTW stub, and resumes to a hit", func() {
		f := newFixture()
		const vaddr = 0x5000
		vpn := addrspace.VAddr(vaddr).VPN()
		set := f.layout.Set(addrspace.VAddr(vaddr))
		f.cache.Fill(set, vpn, []uint32{nop, nop})
		f.cache.Commit()

		req := fetchio.FetchRequest{Valid: true, VAddr: vaddr, Lines: 1, FTQIdx: 0}
		var sawXlat, sawHit bool
		for i := 0; i < 20 && !sawHit; i++ {
			r := fetchio.FetchRequest{}
			if i == 0 {
				r = req
			}
			f.tick(r)
			resp := f.d.DemandResponse()
			if resp.Valid && resp.Status == fetchio.StatusTLBMiss {
				sawXlat = true
			}
			if resp.Valid && resp.Status == fetchio.StatusHit {
				sawHit = true
			}
		}

		Expect(sawXlat).To(BeTrue())
		Expect(sawHit).To(BeTrue())
	})

	It("asserts a resteer and terminates the transaction early on a direct jump", func() {
		f := newFixture()
		const vaddr = 0x2000
		f.preload(vaddr, []uint32{jal0, nop})

		req := fetchio.FetchRequest{Valid: true, VAddr: vaddr, Lines: 1, FTQIdx: 0}
		var resteer dfu.ResteerRequest
		var resp fetchio.DemandResponse
		for i := 0; i < 4; i++ {
			r := fetchio.FetchRequest{}
			if i == 0 {
				r = req
			}
			f.tick(r)
			if rs := f.d.Resteer(); rs.Valid {
				resteer = rs
			}
			if rp := f.d.DemandResponse(); rp.Valid {
				resp = rp
			}
		}

		Expect(resteer.Valid).To(BeTrue())
		Expect(resteer.Op).To(Equal(riscv.CFJumpDir))
		Expect(resteer.TgtValid).To(BeTrue())
		Expect(resteer.Tgt).To(Equal(uint32(vaddr + 4)))
		Expect(resp.Valid).To(BeTrue())
		Expect(resp.Status).To(Equal(fetchio.StatusHit))
	})
})

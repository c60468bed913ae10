package front_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvfront/addrspace"
	"github.com/sarchlab/rvfront/backing"
	"github.com/sarchlab/rvfront/front"
	"github.com/sarchlab/rvfront/front/cfc"
	"github.com/sarchlab/rvfront/param"
)

func TestFront(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Front Suite")
}

const nop = 0x00000013

func smallConfig() *param.Config {
	return &param.Config{
		XLEN: 32, SSWidth: 2,
		L1ISets: 4, L1IWays: 2, LineWords: 4,
		TLBDepth: 4, FTQDepth: 4,
		NMSHR: 2, NFillPort: 2, MaxFetchBlock: 4,
	}
}

var _ = Describe("FrontEnd", func() {
	It("boots off an architectural override and streams out the first cacheline", func() {
		cfg := smallConfig()
		mem := backing.NewMemory(cfg.LineWords)
		mem.WriteLine(addrspace.PAddr(0x1000), []uint32{nop, nop, nop, nop})

		fe := front.New(cfg, mem)

		var sawOutput bool
		for i := 0; i < 30 && !sawOutput; i++ {
			override := cfc.Override{}
			if i == 0 {
				override = cfc.Override{Valid: true, PC: 0x1000}
			}
			fe.Tick(override)
			if out := fe.Output(); out.Valid && out.VAddr == 0x1000 {
				sawOutput = true
			}
		}

		Expect(sawOutput).To(BeTrue())
		Expect(fe.Stats().DemandHits + fe.Stats().DemandL1Miss).To(BeNumerically(">", 0))
	})

	It("resteers to a jump target and allocates a new FTQ entry for it", func() {
		cfg := smallConfig()
		mem := backing.NewMemory(cfg.LineWords)
		// jal0 = "jal x0, 16": direct unconditional jump into the next line.
		const jal0 = 0x0100006F
		mem.WriteLine(addrspace.PAddr(0x2000), []uint32{jal0, nop, nop, nop})
		mem.WriteLine(addrspace.PAddr(0x2010), []uint32{nop, nop, nop, nop})

		fe := front.New(cfg, mem)

		var sawResteerTarget bool
		for i := 0; i < 60 && !sawResteerTarget; i++ {
			override := cfc.Override{}
			if i == 0 {
				override = cfc.Override{Valid: true, PC: 0x2000}
			}
			fe.Tick(override)
			if out := fe.Output(); out.Valid && out.VAddr == 0x2010 {
				sawResteerTarget = true
			}
		}

		Expect(sawResteerTarget).To(BeTrue())
		Expect(fe.Stats().Resteers).To(BeNumerically(">", 0))
	})
})

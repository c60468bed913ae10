package cfc_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvfront/front/cfc"
	"github.com/sarchlab/rvfront/front/dfu"
	"github.com/sarchlab/rvfront/front/ftq"
	"github.com/sarchlab/rvfront/front/nfp"
	"github.com/sarchlab/rvfront/front/rap"
	"github.com/sarchlab/rvfront/param"
	"github.com/sarchlab/rvfront/riscv"
)

func TestCFC(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "CFC Suite")
}

var _ = Describe("CFC", func() {
	var (
		cfg *param.Config
		r   *rap.RAP
		n   *nfp.NFP
		c   *cfc.CFC
	)

	BeforeEach(func() {
		cfg = param.Default()
		r = rap.New(4)
		n = nfp.New(cfg, 4)
		c = cfc.New(cfg, r, n)
	})

	It("allocates nothing when no source fires", func() {
		req, valid := c.Step(dfu.ResteerRequest{}, cfc.Override{}, true)
		Expect(valid).To(BeFalse())
		Expect(req).To(Equal(ftq.AllocRequest{}))
	})

	It("is a no-op when a source fires but the FTQ has no room", func() {
		_, valid := c.Step(dfu.ResteerRequest{}, cfc.Override{Valid: true, PC: 0x8000}, false)
		Expect(valid).To(BeFalse())
	})

	It("follows the architectural override when nothing resteers", func() {
		req, valid := c.Step(dfu.ResteerRequest{}, cfc.Override{Valid: true, PC: 0x8000}, true)
		Expect(valid).To(BeTrue())
		Expect(req.VAddr).To(Equal(uint32(0x8000)))
		Expect(req.Predicted).To(BeFalse())
	})

	It("prefers a resteer over an architectural override in the same cycle", func() {
		resteer := dfu.ResteerRequest{
			Valid: true, SrcPC: 0x1000, Op: riscv.CFJumpDir, Tgt: 0x1040, TgtValid: true,
		}
		req, valid := c.Step(resteer, cfc.Override{Valid: true, PC: 0x8000}, true)
		Expect(valid).To(BeTrue())
		Expect(req.VAddr).To(Equal(uint32(0x1040)))
	})

	It("resteers a direct jump to its predecoded target without touching the RAP", func() {
		resteer := dfu.ResteerRequest{
			Valid: true, SrcPC: 0x1000, Op: riscv.CFJumpDir, Tgt: 0x1040, TgtValid: true,
		}
		req, valid := c.Step(resteer, cfc.Override{}, true)
		Expect(valid).To(BeTrue())
		Expect(req.VAddr).To(Equal(uint32(0x1040)))
		Expect(r.Overflows()).To(Equal(uint64(0)))
		Expect(r.Head()).To(Equal(uint32(0)))
	})

	It("pushes the return site on a direct call resteer", func() {
		resteer := dfu.ResteerRequest{
			Valid: true, SrcPC: 0x2000, Op: riscv.CFCallDir, Tgt: 0x3000, TgtValid: true,
		}
		req, valid := c.Step(resteer, cfc.Override{}, true)
		Expect(valid).To(BeTrue())
		Expect(req.VAddr).To(Equal(uint32(0x3000)))
		Expect(r.Head()).To(Equal(uint32(0x2000 + 4)))
	})

	It("resolves a return resteer by popping the RAP, ignoring the predecoder's unknown target", func() {
		callResteer := dfu.ResteerRequest{
			Valid: true, SrcPC: 0x2000, Op: riscv.CFCallDir, Tgt: 0x3000, TgtValid: true,
		}
		_, _ = c.Step(callResteer, cfc.Override{}, true)

		retResteer := dfu.ResteerRequest{
			Valid: true, SrcPC: 0x3100, Op: riscv.CFRet, TgtValid: false,
		}
		req, valid := c.Step(retResteer, cfc.Override{}, true)
		Expect(valid).To(BeTrue())
		Expect(req.VAddr).To(Equal(uint32(0x2000 + 4)))
	})

	It("falls back to the registered NFP speculative prediction when no resteer or override fires", func() {
		_, _ = c.Step(dfu.ResteerRequest{}, cfc.Override{Valid: true, PC: 0x1000}, true)

		req, valid := c.Step(dfu.ResteerRequest{}, cfc.Override{}, true)
		Expect(valid).To(BeTrue())
		Expect(req.Predicted).To(BeTrue())
		Expect(req.VAddr).To(Equal(uint32(0x1000 + cfg.LineBytes())))
	})

	It("teaches the NFP a resteered block's target so the next visit predicts it directly", func() {
		resteer := dfu.ResteerRequest{
			Valid: true, SrcPC: 0x1000, Op: riscv.CFJumpDir, Tgt: 0x5000, TgtValid: true,
		}
		_, _ = c.Step(resteer, cfc.Override{}, true)

		req, valid := c.Step(dfu.ResteerRequest{}, cfc.Override{Valid: true, PC: 0x1000}, true)
		Expect(valid).To(BeTrue())
		Expect(req.VAddr).To(Equal(uint32(0x1000)))

		req2, valid2 := c.Step(dfu.ResteerRequest{}, cfc.Override{}, true)
		Expect(valid2).To(BeTrue())
		Expect(req2.Predicted).To(BeTrue())
		Expect(req2.VAddr).To(Equal(uint32(0x5000)))
	})
})

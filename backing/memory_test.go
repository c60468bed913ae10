package backing_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvfront/addrspace"
	"github.com/sarchlab/rvfront/backing"
)

func TestBacking(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Backing Suite")
}

var _ = Describe("Memory", func() {
	It("completes a 1-cycle-latency request on the first Tick", func() {
		mem := backing.NewMemory(8)
		mem.WriteLine(0x1000, []uint32{0x13, 0x13, 0x13, 0x13, 0x13, 0x13, 0x13, 0x13})

		ticket := mem.Submit(0x1000)
		resp := mem.Tick()
		Expect(resp).To(HaveLen(1))
		Expect(resp[0].Ticket).To(Equal(ticket))
		Expect(resp[0].Data).To(Equal([]uint32{0x13, 0x13, 0x13, 0x13, 0x13, 0x13, 0x13, 0x13}))
	})

	It("honors variable per-address latency with no ordering guarantee", func() {
		mem := backing.NewMemory(8, backing.WithLatency(func(addr addrspace.PAddr) int {
			if addr == 0x2000 {
				return 3
			}
			return 1
		}))

		slow := mem.Submit(0x2000)
		fast := mem.Submit(0x3000)

		resp := mem.Tick()
		Expect(resp).To(HaveLen(1))
		Expect(resp[0].Ticket).To(Equal(fast))

		mem.Tick()
		resp = mem.Tick()
		Expect(resp).To(HaveLen(1))
		Expect(resp[0].Ticket).To(Equal(slow))
	})

	It("returns zeroed lines for never-written addresses", func() {
		mem := backing.NewMemory(4)
		mem.Submit(0x9000)
		resp := mem.Tick()
		Expect(resp[0].Data).To(Equal([]uint32{0, 0, 0, 0}))
	})
})

var _ = Describe("PTWStub", func() {
	It("satisfies a TLB miss on the very next Tick with an identity mapping", func() {
		ptw := backing.NewPTWStub()
		ptw.RequestFill(0x7)

		ready := ptw.Tick()
		Expect(ready).To(HaveLen(1))
		Expect(ready[0].VPN).To(Equal(uint32(0x7)))
		Expect(ready[0].PTE.PPN).To(Equal(uint32(0x7)))
	})

	It("has nothing pending once drained", func() {
		ptw := backing.NewPTWStub()
		ptw.RequestFill(0x1)
		ptw.Tick()
		Expect(ptw.Tick()).To(BeEmpty())
	})
})

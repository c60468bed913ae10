package lfsr_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvfront/front/lfsr"
)

func TestLFSR(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "LFSR Suite")
}

var _ = Describe("LFSR", func() {
	It("never settles at zero", func() {
		l := lfsr.New(4, 1)
		for i := 0; i < 64; i++ {
			Expect(l.Next()).NotTo(BeZero())
		}
	})

	It("cycles through a repeating maximal-length sequence", func() {
		l := lfsr.New(4, 1)
		first := l.Value()
		seen := map[uint64]bool{first: true}
		var period int
		for i := 0; i < 64; i++ {
			v := l.Next()
			period++
			if v == first {
				break
			}
			seen[v] = true
		}
		Expect(period).To(Equal(15)) // 2^4 - 1 nonzero states
	})

	It("Index stays within [0, n)", func() {
		l := lfsr.New(8, 0xA5)
		for i := 0; i < 100; i++ {
			idx := l.Index(2)
			Expect(idx).To(BeNumerically(">=", 0))
			Expect(idx).To(BeNumerically("<", 2))
			l.Next()
		}
	})
})

package backing

import "github.com/sarchlab/rvfront/front/itlb"

// PTWFill is a translation ready to be written into the TLB.
type PTWFill struct {
	VPN uint32
	PTE itlb.PTE
}

// PTWStub is the "immediate-satisfier" page-table-walker collaborator
// spec.md section 9's open question calls for: it is not a real page-table
// walker (that machinery is explicitly out of scope per spec.md section 1),
// it simply answers every TLB miss with an identity PPN mapping one cycle
// after the miss is observed, matching "during testing it is modeled as an
// immediate-satisfier that writes on the next cycle after a TLB_MISS is
// observed" (spec.md section 6.2).
type PTWStub struct {
	pending []PTWFill
}

// NewPTWStub creates a PTW stub.
func NewPTWStub() *PTWStub {
	return &PTWStub{}
}

// RequestFill records a TLB miss to be satisfied on the next Tick. The
// identity mapping (PPN == VPN) keeps the stub trivially invertible for
// tests that need to reason about physical addresses.
func (p *PTWStub) RequestFill(vpn uint32) {
	p.pending = append(p.pending, PTWFill{VPN: vpn, PTE: itlb.PTE{PPN: vpn}})
}

// Tick returns every fill that becomes ready this cycle and clears them.
// Every request the stub ever receives is satisfied exactly one cycle
// later: it never stalls and never drops a request (spec.md section 7:
// TLB_MISS is always eventually recovered).
func (p *PTWStub) Tick() []PTWFill {
	ready := p.pending
	p.pending = nil
	return ready
}

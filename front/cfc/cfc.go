// Package cfc implements the control-flow controller: each cycle it picks
// which program counter to allocate next in the fetch target queue
// (spec.md section 4.1). It is grounded on the original's
// ControlFlowController, whose priority mux is exactly "resteer beats
// architectural override beats speculative prediction beats nothing", and
// whose resteer handling drives the return-address predictor: a call
// pushes the return site, a return pops it, a direct jump touches neither.
package cfc

import (
	"github.com/sarchlab/rvfront/addrspace"
	"github.com/sarchlab/rvfront/front/dfu"
	"github.com/sarchlab/rvfront/front/ftq"
	"github.com/sarchlab/rvfront/front/nfp"
	"github.com/sarchlab/rvfront/front/rap"
	"github.com/sarchlab/rvfront/param"
	"github.com/sarchlab/rvfront/riscv"
)

// Override is the architectural override input (spec.md section 6.3):
// debug or a mid-core mispredict asserting a PC independent of the
// front-end's own resteer/prediction machinery.
type Override struct {
	Valid bool
	PC    uint32
}

// CFC is the control-flow controller.
type CFC struct {
	layout addrspace.Layout
	rap    *rap.RAP
	nfp    *nfp.NFP

	nextSpec nfp.Prediction // NFP's prediction registered last cycle
}

// New constructs a CFC wired to the return-address predictor and the
// next-fetch predictor it drives.
func New(cfg *param.Config, r *rap.RAP, n *nfp.NFP) *CFC {
	return &CFC{
		layout: addrspace.NewLayout(cfg),
		rap:    r,
		nfp:    n,
	}
}

// Step chooses this cycle's allocation source, in priority order: resteer,
// architectural override, speculative NFP prediction, no-op if none of
// those fire or the FTQ has no room (spec.md section 4.1). It returns the
// allocation request to give the FTQ and whether one fired at all.
//
// A resteer or override always wins priority over a not-ready FTQ in the
// sense that it is still the chosen source this cycle; but since nothing
// is actually allocated when ftqReady is false, the request is dropped
// (valid=false) rather than handed to the caller, and the NFP is not
// taught a prediction for a PC that never advanced.
func (c *CFC) Step(resteer dfu.ResteerRequest, override Override, ftqReady bool) (req ftq.AllocRequest, valid bool) {
	spec := c.nextSpec

	var pc uint32
	var chosen bool

	switch {
	case resteer.Valid:
		pc = c.resolveResteer(resteer)
		req = ftq.AllocRequest{VAddr: pc, Lines: 1}
		chosen = true
	case override.Valid:
		pc = override.PC
		req = ftq.AllocRequest{VAddr: pc, Lines: 1}
		chosen = true
	case spec.Valid:
		pc = spec.PC
		req = ftq.AllocRequest{VAddr: pc, Lines: 1, Predicted: true}
		chosen = true
	}

	valid = chosen && ftqReady
	c.nextSpec = c.nfp.Predict(valid, pc)

	if !valid {
		return ftq.AllocRequest{}, false
	}
	return req, true
}

// resolveResteer applies the RAP stack effect for the resteering op (push
// on a direct call, pop on a return, none on a direct jump) and returns
// the resolved target address, then teaches the NFP the block containing
// the resteering instruction now resolves to that target.
func (c *CFC) resolveResteer(r dfu.ResteerRequest) uint32 {
	var tgt uint32
	switch r.Op {
	case riscv.CFCallDir:
		c.rap.Push(r.SrcPC + 4)
		tgt = r.Tgt
	case riscv.CFRet:
		tgt, _ = c.rap.Pop()
	default: // CFJumpDir: no stack effect
		tgt = r.Tgt
	}

	blk := uint32(c.layout.BlockAlign(addrspace.VAddr(r.SrcPC)))
	c.nfp.Learn(blk, tgt)

	return tgt
}

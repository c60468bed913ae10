// Package dfu implements the demand fetch unit: the three-stage pipeline
// that turns an FTQ fetch request into a stream of predecoded cachelines,
// stalling on a TLB or L1I miss and replaying the failing beat once the
// miss resolves (spec.md section 4.3). It is the hardest subsystem in the
// front-end, grounded on the original's DemandFetchUnit/fetch.py pipeline
// shape (IDLE/RUN/STALL, a captured transaction, a running beat counter)
// combined with timing/pipeline/cache_stages.go's pending-request struct
// style for modeling a multi-cycle miss as an explicit state variable
// rather than a coroutine.
package dfu

import (
	"github.com/sarchlab/rvfront/addrspace"
	"github.com/sarchlab/rvfront/backing"
	"github.com/sarchlab/rvfront/front/fetchio"
	"github.com/sarchlab/rvfront/front/ifill"
	"github.com/sarchlab/rvfront/front/itlb"
	"github.com/sarchlab/rvfront/front/l1i"
	"github.com/sarchlab/rvfront/param"
	"github.com/sarchlab/rvfront/riscv"
)

// State is the DFU's own control state, independent of any one beat's
// pipeline register (spec.md section 4.3).
type State int

const (
	// StateIdle means no transaction is in flight.
	StateIdle State = iota
	// StateRun means a transaction is streaming beats through the pipeline.
	StateRun
	// StateStall means the oldest in-flight beat missed and is waiting on
	// a TLB or L1I fill.
	StateStall
)

// ResteerRequest is what stage 3 asserts to the CFC in the same cycle a
// resteerable control-flow instruction is found (spec.md section 4.3
// stage 3 / section 5: "the only cross-component combinational link").
type ResteerRequest struct {
	Valid    bool
	SrcPC    uint32
	Op       riscv.ControlFlowOp
	Tgt      uint32
	TgtValid bool
	FTQIdx   int
}

// Output is the stream of predecoded instruction words the DFU delivers
// for one beat, masked to the words that actually participate (spec.md
// section 4.8's start_idx masking and section 4.3's resteer truncation).
// Consuming these words is mid-core decode, explicitly out of scope
// (spec.md section 1); this type exists so tests and any future consumer
// can observe what the DFU produced.
type Output struct {
	Valid  bool
	FTQIdx int
	VAddr  uint32
	Words  []uint32
	Mask   uint32
}

type beat struct {
	valid    bool
	vaddr    uint32
	ftqIdx   int
	passthru bool
	startIdx int
	terminal bool
}

type stalled struct {
	beat         beat
	tlbMiss      bool
	tlbRequested bool
	l1Requested  bool
	vpn          uint32
	paddr        addrspace.PAddr
}

type s1Reg struct {
	valid bool
	beat  beat
}

type s2Reg struct {
	valid  bool
	beat   beat
	ways   []l1i.Way
	tlbHit bool
	tlbPTE itlb.PTE
}

type s3Reg struct {
	valid bool
	beat  beat
	words []uint32
}

// DFU is the demand fetch unit.
type DFU struct {
	cfg    *param.Config
	layout addrspace.Layout
	cache  *l1i.L1I
	tlb    *itlb.TLB
	arb    *ifill.Arbiter
	ptw    *backing.PTWStub

	state State
	stall stalled

	txnFTQIdx   int
	txnPassthru bool
	txnLines    int
	txnBase     uint32
	blk         int

	stage1 s1Reg
	stage2 s2Reg
	stage3 s3Reg

	demandResp fetchio.DemandResponse
	resteer    ResteerRequest
	output     Output
}

// New constructs a DFU wired to its collaborators.
func New(cfg *param.Config, cache *l1i.L1I, tlb *itlb.TLB, arb *ifill.Arbiter, ptw *backing.PTWStub) *DFU {
	return &DFU{
		cfg:    cfg,
		layout: addrspace.NewLayout(cfg),
		cache:  cache,
		tlb:    tlb,
		arb:    arb,
		ptw:    ptw,
		state:  StateIdle,
	}
}

// Idle reports whether the DFU can accept a new transaction this cycle.
func (d *DFU) Idle() bool {
	return d.state == StateIdle
}

// DemandResponse returns the response staged for the FTQ this cycle (zero
// value if none).
func (d *DFU) DemandResponse() fetchio.DemandResponse {
	return d.demandResp
}

// Resteer returns the resteer request asserted to the CFC this cycle
// (zero value if none). This is read the same cycle it is produced — the
// one combinational link spec.md section 5 calls out.
func (d *DFU) Resteer() ResteerRequest {
	return d.resteer
}

// Output returns the instruction words delivered this cycle (zero value
// if none).
func (d *DFU) Output() Output {
	return d.output
}

// Step advances the DFU by one cycle: when idle, req is captured and its
// first beat fed into stage 1; every stage runs from the deepest to the
// shallowest so each
// stage observes only last cycle's register contents, the same ordering
// discipline front/l1i and front/itlb use between Fill and Commit.
func (d *DFU) Step(req fetchio.FetchRequest) {
	d.demandResp = fetchio.DemandResponse{}
	d.resteer = ResteerRequest{}
	d.output = Output{}

	oldS2, oldS3 := d.stage2, d.stage3
	d.processStage3(oldS3)

	newS3, missResp := d.processStage2(oldS2)
	newS2 := d.processStage1(d.stage1)
	if missResp.Valid {
		d.demandResp = missResp
		// A younger beat behind the missing one is dropped; it is issued
		// again after the stalled beat replays.
		newS2 = s2Reg{}
	}

	// d.state may have just been set by processStage3 (a terminal or
	// resteering beat returns the DFU to idle, letting a fresh request
	// refill stage 1 this same cycle with no bubble) or by processStage2
	// (a miss on the beat now in stage 2 overrides that back to stall).
	var newS1 s1Reg
	switch d.state {
	case StateStall:
		if d.tryResolveStall() {
			d.state = StateRun
			newS1 = s1Reg{valid: true, beat: d.stall.beat}
			d.blk = int((d.stall.beat.vaddr - d.txnBase) / uint32(d.cfg.LineBytes()))
		}
	case StateIdle:
		newS1 = d.issueFromIdle(req)
	case StateRun:
		newS1 = d.issueNextBeat()
	}

	d.stage1 = newS1
	d.stage2 = newS2
	d.stage3 = newS3
}

func (d *DFU) issueFromIdle(req fetchio.FetchRequest) s1Reg {
	if !req.Valid {
		return s1Reg{}
	}
	d.txnFTQIdx = req.FTQIdx
	d.txnPassthru = req.Passthru
	d.txnLines = req.Lines
	if d.txnLines <= 0 {
		d.txnLines = 1
	}
	d.txnBase = uint32(d.layout.FetchAddr(d.layout.FetchBlk(addrspace.VAddr(req.VAddr))))
	d.blk = 0
	d.state = StateRun

	b := beat{
		valid:    true,
		vaddr:    req.VAddr,
		ftqIdx:   req.FTQIdx,
		passthru: req.Passthru,
		startIdx: d.layout.StartWordIndex(addrspace.VAddr(req.VAddr)),
		terminal: d.txnLines == 1,
	}
	return s1Reg{valid: true, beat: b}
}

func (d *DFU) issueNextBeat() s1Reg {
	next := d.blk + 1
	if next >= d.txnLines {
		return s1Reg{}
	}
	d.blk = next
	addr := d.txnBase + uint32(next*d.cfg.LineBytes())
	b := beat{
		valid:    true,
		vaddr:    addr,
		ftqIdx:   d.txnFTQIdx,
		passthru: d.txnPassthru,
		startIdx: 0,
		terminal: next+1 == d.txnLines,
	}
	return s1Reg{valid: true, beat: b}
}

// processStage1 drives the L1I and TLB read ports for the beat issued last
// cycle, propagating the (synchronously available) results to stage 2.
func (d *DFU) processStage1(s s1Reg) s2Reg {
	if !s.valid {
		return s2Reg{}
	}
	b := s.beat
	set := d.layout.Set(addrspace.VAddr(b.vaddr))
	ways := d.cache.ReadSet(set)

	out := s2Reg{valid: true, beat: b, ways: ways}
	if !b.passthru {
		vpn := addrspace.VAddr(b.vaddr).VPN()
		pte, hit := d.tlb.Lookup(vpn)
		out.tlbHit = hit
		out.tlbPTE = pte
	}
	return out
}

// processStage2 forms the physical tag, drives way selection, and either
// forwards a hit to stage 3 or enters STALL on a miss (spec.md section
// 4.3 stage 2).
func (d *DFU) processStage2(s s2Reg) (next s3Reg, resp fetchio.DemandResponse) {
	if !s.valid {
		return s3Reg{}, fetchio.DemandResponse{}
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
		d.enterStall(b, true, addrspace.VAddr(b.vaddr).VPN(), 0)
		return s3Reg{}, fetchio.DemandResponse{Valid: true, FTQIdx: b.ftqIdx, Status: fetchio.StatusTLBMiss}
	}

	tags := make([]l1i.Tag, len(s.ways))
	for i, w := range s.ways {
		tags[i] = w.Tag
	}
	hit, way := l1i.WaySelect(tags, ppn)
	if !hit {
		paddr := addrspace.PAddr(uint64(ppn)<<12 | uint64(addrspace.VAddr(b.vaddr).PageOffset()))
		d.enterStall(b, false, 0, paddr)
		return s3Reg{}, fetchio.DemandResponse{Valid: true, FTQIdx: b.ftqIdx, Status: fetchio.StatusL1Miss}
	}

	return s3Reg{valid: true, beat: b, words: s.ways[way].Data}, fetchio.DemandResponse{}
}

func (d *DFU) enterStall(b beat, tlbMiss bool, vpn uint32, paddr addrspace.PAddr) {
	d.state = StateStall
	d.stall = stalled{beat: b, tlbMiss: tlbMiss, vpn: vpn, paddr: paddr}
}

// tryResolveStall re-attempts the saved beat's access. It submits the
// one-shot side effect (a TLB fill request or an L1I fill request) at
// most once per stall, then polls every cycle until the access succeeds.
func (d *DFU) tryResolveStall() bool {
	s := &d.stall
	b := s.beat

	if s.tlbMiss {
		if !s.tlbRequested {
			d.ptw.RequestFill(s.vpn)
			s.tlbRequested = true
		}
		if _, hit := d.tlb.Lookup(s.vpn); !hit {
			return false
		}
		s.tlbMiss = false
		s.tlbRequested = false
		return true
	}

	set := d.layout.SetPA(s.paddr)
	tags := d.cache.ReadTags(set)
	if hit, _ := l1i.WaySelect(tags, s.paddr.PPN()); !hit {
		if !s.l1Requested {
			admitted := d.arb.Admit([]ifill.Request{{Addr: s.paddr, FTQIdx: b.ftqIdx, Src: ifill.Demand}})
			s.l1Requested = admitted > 0
		}
		return false
	}
	s.l1Requested = false
	return true
}

// processStage3 predecodes the cacheline forwarded from stage 2, looks for
// the first resteerable control-flow instruction, and — if found — both
// asserts a resteer request and reports transaction completion to the FTQ
// this same cycle (spec.md section 4.3 stage 3). A non-terminal, non-
// resteering hit produces output but no FTQ response: only the beat that
// ends the transaction (naturally or via resteer) reports completion, so
// fptr only ever advances once per transaction (spec.md section 4.2).
func (d *DFU) processStage3(s s3Reg) {
	if !s.valid {
		return
	}
	b := s.beat
	blockPC := b.vaddr &^ uint32(d.cfg.LineBytes()-1)

	info, valid := riscv.DecodeLine(s.words, b.startIdx, blockPC)
	mask := addrspace.Offset2Mask(b.startIdx, len(s.words))

	idx, found := riscv.FirstControlFlow(info, valid)
	resteering := found && info[idx].CFOp.Resteerable()

	if resteering {
		mask &= addrspace.Limit2Mask(idx+1, len(s.words))
		d.resteer = ResteerRequest{
			Valid:    true,
			SrcPC:    blockPC + uint32(idx*4),
			Op:       info[idx].CFOp,
			Tgt:      info[idx].Tgt,
			TgtValid: info[idx].TgtValid,
			FTQIdx:   b.ftqIdx,
		}
	}

	d.output = Output{Valid: true, FTQIdx: b.ftqIdx, VAddr: blockPC, Words: s.words, Mask: mask}

	if resteering || b.terminal {
		d.demandResp = fetchio.DemandResponse{Valid: true, FTQIdx: b.ftqIdx, Status: fetchio.StatusHit}
		d.state = StateIdle
	}
}

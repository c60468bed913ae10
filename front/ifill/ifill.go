// Package ifill implements the fill unit: the miss-status holding registers
// (MSHRs) and the arbiter that multiplexes demand and prefetch misses onto
// the backing memory (spec.md section 4.7). Exactly one MSHR transitions
// per event, matching the cache_stages.go pattern of a small fixed array of
// pending-request slots advanced one state at a time, rather than the
// teacher's larger free-running request queue.
package ifill

import (
	"github.com/sarchlab/rvfront/addrspace"
	"github.com/sarchlab/rvfront/backing"
	"github.com/sarchlab/rvfront/front/l1i"
	"github.com/sarchlab/rvfront/param"
)

// Source distinguishes a demand miss (on the DFU's critical path) from a
// prefetch miss (off the critical path, never itself blocks a resteer),
// per spec.md section 4.4 and section 4.7.
type Source int

const (
	// Demand misses come from the DFU.
	Demand Source = iota
	// Prefetch misses come from the PFU.
	Prefetch
)

// State is an MSHR's position in its NONE -> ACCESS -> WRITEBACK ->
// COMPLETE -> NONE lifecycle (spec.md section 4.7).
type State int

const (
	// None means the MSHR is free.
	None State = iota
	// Access means a backing-store request is outstanding.
	Access
	// Writeback means data has been captured and is being written into the
	// L1I arrays.
	Writeback
	// Complete means the fill response is ready to be drained.
	Complete
)

// Request is a single-line fill request submitted to the arbiter by the
// DFU or PFU on a miss.
type Request struct {
	Addr   addrspace.PAddr
	FTQIdx int
	Src    Source
}

// Response is a completed fill, ready for its requester to replay.
type Response struct {
	FTQIdx int
	Src    Source
	Way    int
	Data   []uint32
}

type mshr struct {
	state  State
	addr   addrspace.PAddr
	ftqIdx int
	src    Source
	ticket backing.Ticket
	way    int
	data   []uint32
}

// Arbiter owns the MSHR array, admits up to N_FILL_PORT requests per cycle
// into free MSHRs, drives the backing-memory submit/response protocol, and
// writes completed lines into the L1I (spec.md section 4.7: "On WRITEBACK
// it drives the L1I write port").
type Arbiter struct {
	cfg    *param.Config
	layout addrspace.Layout
	mem    *backing.Memory
	cache  *l1i.L1I

	mshrs []mshr
}

// New constructs an arbiter with cfg.NMSHR miss-status holding registers.
func New(cfg *param.Config, mem *backing.Memory, cache *l1i.L1I) *Arbiter {
	return &Arbiter{
		cfg:    cfg,
		layout: addrspace.NewLayout(cfg),
		mem:    mem,
		cache:  cache,
		mshrs:  make([]mshr, cfg.NMSHR),
	}
}

// Ready reports whether at least one MSHR is free to accept a new request.
func (a *Arbiter) Ready() bool {
	for i := range a.mshrs {
		if a.mshrs[i].state == None {
			return true
		}
	}
	return false
}

// Admit accepts up to N_FILL_PORT requests this cycle, priority-encoding
// free MSHRs by index (spec.md section 4.7: "the arbiter accepts up to
// N_FILL_PORT simultaneous requests per cycle and allocates them to free
// MSHRs"). Requests beyond either the port count or the number of free
// MSHRs are rejected; the caller (DFU/PFU) is responsible for re-issuing a
// rejected request on a later cycle.
func (a *Arbiter) Admit(reqs []Request) (admitted int) {
	for _, req := range reqs {
		if admitted >= a.cfg.NFillPort {
			break
		}
		slot := a.freeSlot()
		if slot < 0 {
			break
		}
		a.mshrs[slot] = mshr{
			state:  Access,
			addr:   req.Addr,
			ftqIdx: req.FTQIdx,
			src:    req.Src,
			ticket: a.mem.Submit(lineBase(a.cfg, req.Addr)),
		}
		admitted++
	}
	return admitted
}

func (a *Arbiter) freeSlot() int {
	for i := range a.mshrs {
		if a.mshrs[i].state == None {
			return i
		}
	}
	return -1
}

// Step advances every in-flight MSHR by one state. It must be called
// exactly once per cycle, after Admit, and before Drain.
func (a *Arbiter) Step() {
	done := a.mem.Tick()
	doneByTicket := make(map[backing.Ticket]backing.Response, len(done))
	for _, d := range done {
		doneByTicket[d.Ticket] = d
	}

	for i := range a.mshrs {
		m := &a.mshrs[i]
		switch m.state {
		case Access:
			resp, ok := doneByTicket[m.ticket]
			if !ok {
				continue
			}
			m.data = resp.Data
			set := a.layout.SetPA(m.addr)
			way := a.cache.Fill(set, m.addr.PPN(), m.data)
			m.way = way
			m.state = Writeback
		case Writeback:
			m.state = Complete
		case Complete, None:
			// Complete MSHRs wait here until Drain frees them; None MSHRs
			// are idle until Admit claims them.
		}
	}
}

// Drain collects up to N_FILL_PORT completed MSHRs as responses and frees
// them, priority-encoded by MSHR index the same way Admit allocates them.
func (a *Arbiter) Drain() []Response {
	var out []Response
	for i := range a.mshrs {
		if len(out) >= a.cfg.NFillPort {
			break
		}
		m := &a.mshrs[i]
		if m.state != Complete {
			continue
		}
		out = append(out, Response{
			FTQIdx: m.ftqIdx,
			Src:    m.src,
			Way:    m.way,
			Data:   m.data,
		})
		*m = mshr{}
	}
	return out
}

// Outstanding reports how many MSHRs are currently in use (not None).
func (a *Arbiter) Outstanding() int {
	n := 0
	for i := range a.mshrs {
		if a.mshrs[i].state != None {
			n++
		}
	}
	return n
}

func lineBase(cfg *param.Config, addr addrspace.PAddr) addrspace.PAddr {
	mask := ^uint64(cfg.LineBytes()-1)
	return addrspace.PAddr(uint64(addr) & mask)
}

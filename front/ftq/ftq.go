// Package ftq implements the fetch target queue: the central scoreboard of
// outstanding fetch transactions (spec.md section 4.2). It is grounded on
// the original's FetchTargetQueue: a circular buffer indexed by a write
// pointer (next allocation), a fetch pointer (oldest entry, the current
// demand request), and a prefetch pointer (next prefetch candidate), plus
// the per-entry response-handling switch the original drives from the DFU,
// PFU, and fill-unit response buses. The original also carries a
// FTQFreeRequest port for the (out-of-scope) backend to release a
// completed entry; this package keeps that as Release, since without it the
// circular buffer's used counter could only ever grow.
package ftq

import (
	"github.com/sarchlab/rvfront/front/fetchio"
	"github.com/sarchlab/rvfront/front/ifill"
)

// State is an FTQ entry's position in the state machine of spec.md
// section 3.3.
type State int

const (
	// StateNone means the entry has not yet been sent to the DFU.
	StateNone State = iota
	// StateProbe means a prefetch probe is outstanding for this entry.
	StateProbe
	// StateFetch means a demand fetch is outstanding for this entry.
	StateFetch
	// StateFill means the entry is waiting on an L1I miss fill.
	StateFill
	// StateXlat means the entry is waiting on a TLB fill.
	StateXlat
)

// Entry is one fetch transaction tracked by the FTQ (spec.md section 3.3).
type Entry struct {
	Valid      bool
	Predicted  bool
	Passthru   bool
	Prefetched bool
	Complete   bool
	State      State
	VAddr      uint32
	Lines      int
	ID         int
}

// AllocRequest is the CFC's request to allocate a new FTQ entry.
type AllocRequest struct {
	VAddr     uint32
	Passthru  bool
	Predicted bool
	Lines     int
}

// FTQ is the fetch target queue circular buffer.
type FTQ struct {
	entries []Entry
	depth   int

	fptr int // oldest entry: current demand fetch target
	pptr int // next prefetch candidate
	wptr int // next allocation slot
	rptr int // oldest entry not yet released by the (out-of-scope) backend
	used int

	pendingDemand   fetchio.FetchRequest
	pendingPrefetch fetchio.FetchRequest
}

// New constructs an empty FTQ with the given depth (must be a power of two;
// param.Config.FTQDepth is validated to this effect).
func New(depth int) *FTQ {
	return &FTQ{
		entries: make([]Entry, depth),
		depth:   depth,
	}
}

// Ready reports whether the queue has room for one more allocation.
func (q *FTQ) Ready() bool {
	return q.used < q.depth
}

// NextIdx returns the index an Alloc call would assign right now.
func (q *FTQ) NextIdx() int {
	return q.wptr
}

// Alloc allocates a new entry for req, short-circuiting straight to
// StateFetch (and staging an immediate demand request) if the queue was
// empty, per spec.md section 4.2's allocate operation.
func (q *FTQ) Alloc(req AllocRequest) (idx int, ok bool) {
	if !q.Ready() {
		return 0, false
	}

	idx = q.wptr
	lines := req.Lines
	if lines <= 0 {
		lines = 1
	}
	entry := Entry{
		Valid:     true,
		VAddr:     req.VAddr,
		Passthru:  req.Passthru,
		Predicted: req.Predicted,
		Lines:     lines,
		ID:        idx,
		State:     StateNone,
	}

	wasEmpty := q.used == 0
	if wasEmpty {
		entry.State = StateFetch
		q.pendingDemand = fetchio.FetchRequest{
			Valid: true, VAddr: req.VAddr, Passthru: req.Passthru,
			Lines: lines, FTQIdx: idx,
		}
	}

	q.entries[idx] = entry
	q.wptr = (q.wptr + 1) % q.depth
	q.used++
	return idx, true
}

// PendingDemand returns (and clears) the demand fetch request staged this
// cycle, for the DFU to consume. At most one is ever pending at a time
// (spec.md section 4.2: "never issue two demand requests referencing the
// same FTQ index simultaneously").
func (q *FTQ) PendingDemand() (fetchio.FetchRequest, bool) {
	req := q.pendingDemand
	q.pendingDemand = fetchio.FetchRequest{}
	if !req.Valid {
		return fetchio.FetchRequest{}, false
	}
	return req, true
}

// PendingPrefetch returns (and clears) the prefetch probe request staged
// this cycle, for the PFU to consume.
func (q *FTQ) PendingPrefetch() (fetchio.FetchRequest, bool) {
	req := q.pendingPrefetch
	q.pendingPrefetch = fetchio.FetchRequest{}
	if !req.Valid {
		return fetchio.FetchRequest{}, false
	}
	return req, true
}

// Step inspects the entry at fptr and, if it is newly valid (StateNone),
// stages a demand request for the DFU and transitions it to StateFetch.
// Called once per cycle after Alloc and before response handling, matching
// the original's "determine whether the oldest entry is ready to be sent
// to the IFU" block.
func (q *FTQ) Step() {
	if q.used != 0 {
		e := &q.entries[q.fptr]
		if e.Valid && e.State == StateNone {
			e.State = StateFetch
			q.pendingDemand = fetchio.FetchRequest{
				Valid: true, VAddr: e.VAddr, Passthru: e.Passthru,
				Lines: e.Lines, FTQIdx: e.ID,
			}
		}
	}

	q.stepPrefetch()
}

// stepPrefetch advances the prefetch candidate pointer to the next entry
// eligible for a probe (valid, not yet prefetched, not the demand target,
// and idle), staging a prefetch request for the PFU.
func (q *FTQ) stepPrefetch() {
	if q.used == 0 {
		return
	}
	e := &q.entries[q.pptr]
	if !e.Valid || e.Prefetched || e.State != StateNone || q.pptr == q.fptr {
		return
	}
	e.State = StateProbe
	q.pendingPrefetch = fetchio.FetchRequest{
		Valid: true, VAddr: e.VAddr, Passthru: e.Passthru,
		Lines: e.Lines, FTQIdx: e.ID,
	}
	q.pptr = (q.pptr + 1) % q.depth
}

// HandleDemandResponse applies a DFU demand response to the entry at
// fptr (spec.md section 4.2): the responding index must equal fptr.
func (q *FTQ) HandleDemandResponse(resp fetchio.DemandResponse) {
	if !resp.Valid {
		return
	}
	if resp.FTQIdx != q.fptr {
		panic("ftq: demand response ftq index does not match fptr")
	}
	e := &q.entries[q.fptr]
	switch resp.Status {
	case fetchio.StatusHit:
		e.Complete = true
		e.State = StateNone
		q.fptr = (q.fptr + 1) % q.depth
	case fetchio.StatusL1Miss:
		e.State = StateFill
	case fetchio.StatusTLBMiss:
		e.State = StateXlat
	}
}

// HandlePrefetchResponse applies a PFU probe response, identified by its
// own FTQ index (spec.md section 4.2).
func (q *FTQ) HandlePrefetchResponse(resp fetchio.PrefetchResponse) {
	if !resp.Valid || resp.Stall {
		return
	}
	e := &q.entries[resp.FTQIdx]
	switch resp.Status {
	case fetchio.StatusL1Miss:
		e.State = StateFill
	case fetchio.StatusTLBMiss:
		e.State = StateXlat
	case fetchio.StatusHit:
		e.State = StateNone
		e.Prefetched = true
	}
}

// HandleFillResponse applies a fill-unit response (spec.md section 4.2). A
// demand-sourced fill must target fptr and replays the transaction by
// reverting to StateFetch and staging a fresh demand request; a
// prefetch-sourced fill only marks the entry prefetched.
func (q *FTQ) HandleFillResponse(resp ifill.Response) {
	e := &q.entries[resp.FTQIdx]
	switch resp.Src {
	case ifill.Demand:
		if resp.FTQIdx != q.fptr {
			panic("ftq: demand fill response ftq index does not match fptr")
		}
		e.State = StateFetch
		q.pendingDemand = fetchio.FetchRequest{
			Valid: true, VAddr: e.VAddr, Passthru: e.Passthru,
			Lines: e.Lines, FTQIdx: e.ID,
		}
	case ifill.Prefetch:
		e.Prefetched = true
		e.State = StateNone
	}
}

// Entry returns a copy of the entry at idx, for inspection by tests and the
// top-level scheduler.
func (q *FTQ) Entry(idx int) Entry {
	return q.entries[idx]
}

// FPtr, PPtr and WPtr expose the queue's pointers for observability.
func (q *FTQ) FPtr() int { return q.fptr }
func (q *FTQ) PPtr() int { return q.pptr }
func (q *FTQ) WPtr() int { return q.wptr }
func (q *FTQ) Used() int { return q.used }

// Release frees the oldest not-yet-released entry, which must already be
// complete. This models the (out-of-scope) backend consuming a finished
// fetch transaction and returning its slot to the pool.
func (q *FTQ) Release() bool {
	if q.used == 0 {
		return false
	}
	e := &q.entries[q.rptr]
	if !e.Complete {
		return false
	}
	*e = Entry{}
	q.rptr = (q.rptr + 1) % q.depth
	q.used--
	return true
}

// Package fetchio holds the small wire-format value types shared between
// the FTQ and its two fetch pipes (spec.md section 4.2/4.3/4.4). It mirrors
// how the original splits these signatures into fetch.py (DFU) and
// prefetch.py (PFU) and has ftq.py import them, rather than the FTQ
// defining its collaborators' protocols itself.
package fetchio

// FetchRequest is what the FTQ hands to the DFU or PFU: "go fetch this
// transaction".
type FetchRequest struct {
	Valid    bool
	VAddr    uint32
	Passthru bool
	Lines    int
	FTQIdx   int
}

// ResponseStatus is the outcome of a demand or prefetch access, reported
// back to the FTQ (spec.md section 4.2/4.3).
type ResponseStatus int

const (
	// StatusHit means the access hit the L1I.
	StatusHit ResponseStatus = iota
	// StatusL1Miss means the access missed the L1I (a fill is needed).
	StatusL1Miss
	// StatusTLBMiss means the access missed the TLB (a translation is needed).
	StatusTLBMiss
)

// DemandResponse reports a DFU outcome for the entry at fptr: a miss found
// in stage 2, or the transaction's completion in stage 3.
type DemandResponse struct {
	Valid  bool
	FTQIdx int
	Status ResponseStatus
}

// PrefetchResponse reports a PFU probe outcome.
type PrefetchResponse struct {
	Valid  bool
	FTQIdx int
	Stall  bool
	Status ResponseStatus
}

// Package backing implements the external collaborators the front-end
// talks to but does not own (spec.md section 6): the backing memory behind
// the fill unit's MSHRs, and a page-table-walker stub that satisfies TLB
// misses. Neither is part of the front-end's own cycle-accurate state —
// they model "everything downstream of the L1I", the way the teacher's
// emu.Memory models "everything the pipeline fetches/loads/stores from"
// without itself being a pipeline stage.
package backing

import "github.com/sarchlab/rvfront/addrspace"

// Response is a completed backing-store read, tagged with the ticket the
// requester used to submit it.
type Response struct {
	Ticket Ticket
	Addr   addrspace.PAddr
	Data   []uint32
}

// Ticket identifies an in-flight backing-store request.
type Ticket uint64

type pendingRequest struct {
	ticket    Ticket
	addr      addrspace.PAddr
	remaining int
	data      []uint32
}

// LatencyFunc computes the number of cycles a request to addr takes to
// complete. Spec.md section 6.1 only requires "latency >= 1 cycle,
// unbounded" — callers are free to model fixed or variable latency.
type LatencyFunc func(addr addrspace.PAddr) int

// Memory is a simple line-addressable backing store standing in for
// whatever sits behind the L1I (a unified L2/L3, DRAM, or a test fixture).
// It has no ordering guarantees between outstanding requests, matching
// spec.md section 6.1.
type Memory struct {
	lineWords int
	lines     map[uint64][]uint32
	latency   LatencyFunc

	pending []*pendingRequest
	nextID  Ticket
}

// MemoryOption configures a Memory at construction, matching the
// functional-option pattern used throughout the teacher's emu/pipeline
// packages (e.g. emu.EmulatorOption).
type MemoryOption func(*Memory)

// WithLatency overrides the default fixed 1-cycle latency model.
func WithLatency(fn LatencyFunc) MemoryOption {
	return func(m *Memory) {
		m.latency = fn
	}
}

// NewMemory creates a backing store for cachelines of lineWords words.
func NewMemory(lineWords int, opts ...MemoryOption) *Memory {
	m := &Memory{
		lineWords: lineWords,
		lines:     make(map[uint64][]uint32),
		latency:   func(addrspace.PAddr) int { return 1 },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WriteLine seeds (or overwrites) a cacheline's worth of data at a line-
// aligned physical address, for test fixtures and program loading.
func (m *Memory) WriteLine(addr addrspace.PAddr, words []uint32) {
	line := make([]uint32, m.lineWords)
	copy(line, words)
	m.lines[uint64(addr)] = line
}

// WriteWord writes a single word at an arbitrary physical address,
// read-modify-writing the containing line.
func (m *Memory) WriteWord(addr addrspace.PAddr, word uint32) {
	base := uint64(addr) &^ uint64(m.lineWords*4-1)
	idx := (uint64(addr) - base) / 4
	line, ok := m.lines[base]
	if !ok {
		line = make([]uint32, m.lineWords)
	}
	line[idx] = word
	m.lines[base] = line
}

func (m *Memory) readLine(addr addrspace.PAddr) []uint32 {
	base := uint64(addr) &^ uint64(m.lineWords*4-1)
	line, ok := m.lines[base]
	if !ok {
		return make([]uint32, m.lineWords)
	}
	cp := make([]uint32, m.lineWords)
	copy(cp, line)
	return cp
}

// Submit begins a one-cacheline read at a line-aligned physical address,
// returning a ticket the caller later matches against a Tick response.
func (m *Memory) Submit(addr addrspace.PAddr) Ticket {
	ticket := m.nextID
	m.nextID++

	lat := m.latency(addr)
	if lat < 1 {
		lat = 1
	}

	m.pending = append(m.pending, &pendingRequest{
		ticket:    ticket,
		addr:      addr,
		remaining: lat,
		data:      m.readLine(addr),
	})
	return ticket
}

// Tick advances every outstanding request by one cycle and returns the
// ones that complete this cycle. There is no ordering guarantee between
// distinct requests (spec.md section 6.1).
func (m *Memory) Tick() []Response {
	var done []Response
	rest := m.pending[:0]
	for _, r := range m.pending {
		r.remaining--
		if r.remaining <= 0 {
			done = append(done, Response{Ticket: r.ticket, Addr: r.addr, Data: r.data})
		} else {
			rest = append(rest, r)
		}
	}
	m.pending = rest
	return done
}

// Outstanding reports how many requests have not yet completed.
func (m *Memory) Outstanding() int {
	return len(m.pending)
}

// Package lfsr implements the maximal-length Fibonacci linear feedback
// shift register used for random replacement throughout the front-end: the
// L1I cache's write-port way selection (spec.md section 4.5), the L1I TLB's
// fill victim selection (spec.md section 4.6), and the next-fetch
// predictor's entry replacement. None of these needs to be "truly" random:
// each owns a small LFSR advanced on every replacement draw, which is
// enough to avoid pathological replacement patterns, matching
// ember/common/lfsr.py's table of maximal-period taps.
package lfsr

// taps holds, for each supported degree, the tap positions (1-indexed from
// the LSB) that yield a maximal-length sequence. Only the small widths this
// module actually needs are carried over from the full table in
// ember/common/lfsr.py.
var taps = map[int][]int{
	3:  {3, 2},
	4:  {4, 3},
	5:  {5, 3},
	6:  {6, 5},
	7:  {7, 6},
	8:  {8, 6, 5, 4},
}

// LFSR is a Fibonacci linear feedback shift register of a fixed degree.
type LFSR struct {
	degree int
	taps   []int
	value  uint64
}

// New creates an LFSR of the given degree (3-8 bits, enough to index any
// cache/TLB way or set count this front-end models), seeded with a nonzero
// reset value.
func New(degree int, reset uint64) *LFSR {
	if reset == 0 {
		reset = 1
	}
	t, ok := taps[degree]
	if !ok {
		// Fall back to the widest supported degree's taps truncated to the
		// requested width; degree is always a small compile-time constant
		// derived from param.Config in practice.
		t = taps[8]
	}
	return &LFSR{degree: degree, taps: t, value: reset & (1<<uint(degree) - 1)}
}

// Value returns the current register contents without advancing it.
func (l *LFSR) Value() uint64 {
	return l.value
}

// Next advances the register by one cycle (the commit half of the
// sample/compute/commit cycle model in spec.md section 5) and returns the
// new value.
func (l *LFSR) Next() uint64 {
	var feedback uint64
	for _, tap := range l.taps {
		feedback ^= (l.value >> uint(tap-1)) & 1
	}
	l.value = ((l.value << 1) | feedback) & (1<<uint(l.degree) - 1)
	if l.value == 0 {
		l.value = 1
	}
	return l.value
}

// Index reduces the current LFSR value to an index in [0, n) by masking to
// the smallest power-of-two range containing n and rejecting out-of-range
// draws by advancing again; n must be > 0.
func (l *LFSR) Index(n int) int {
	if n <= 0 {
		return 0
	}
	width := 1
	for width < n {
		width <<= 1
	}
	mask := uint64(width - 1)
	for {
		v := int(l.value) & int(mask)
		if v < n {
			return v
		}
		l.Next()
	}
}

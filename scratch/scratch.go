// Package scratch provides the small heap transient I/O buffers are taken from.
//
// A loader runs with a few hundred kilobytes of scratch memory at most, so
// every consumer has to cope with Alloc refusing a request and retry with a
// smaller one.
package scratch

// Heap hands out transient buffers.
type Heap interface {
	// Alloc returns a buffer of exactly n bytes or nil if the request cannot be served.
	Alloc(n int) []byte
	// Free returns a buffer obtained by Alloc.
	Free(b []byte)
}

// DefaultLimit is the scratch budget of a real mode loader.
const DefaultLimit = 256 * 1024

// Limited is a Heap with a fixed byte budget.
type Limited struct {
	limit int
	used  int
}

// NewLimited creates a Heap which never has more than limit bytes outstanding.
func NewLimited(limit int) *Limited {
	return &Limited{limit: limit}
}

func (h *Limited) Alloc(n int) []byte {
	if n <= 0 || h.used+n > h.limit {
		return nil
	}
	h.used += n
	return make([]byte, n)
}

func (h *Limited) Free(b []byte) {
	h.used -= cap(b)
	if h.used < 0 {
		h.used = 0
	}
}

// InUse returns the number of bytes currently handed out.
func (h *Limited) InUse() int {
	return h.used
}

// AllocHalving tries to allocate count units of unit bytes, halving count on
// every refusal. It returns the buffer and the count it covers, or nil and 0.
func AllocHalving(h Heap, count, unit int) ([]byte, int) {
	for count > 0 {
		if buf := h.Alloc(count * unit); buf != nil {
			return buf, count
		}
		count /= 2
	}
	return nil, 0
}

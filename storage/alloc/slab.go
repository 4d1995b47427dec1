package alloc

import "sort"

// Slab is a contiguous heap buffer that extends the ref address space past
// the attached file/buffer region. Its span is [Start, RefEnd) in ref
// space, backed by Addr in process memory.
type Slab struct {
	Start  Ref
	RefEnd Ref
	Addr   []byte
}

// Size returns the slab's span in bytes.
func (s Slab) Size() int {
	return int(s.RefEnd - s.Start)
}

// slabList tracks the ordered slab sequence and implements the
// address-space search described in spec.md §4.1: binary search for the
// first slab whose RefEnd exceeds ref.
type slabList struct {
	slabs []Slab
}

// find returns the index of the slab owning ref, or -1 if ref is at or past
// the end of the slab space. Behavior is undefined (per spec) if ref is
// before the first slab's Start; callers only reach here after establishing
// ref >= baseline.
func (l *slabList) find(ref Ref) int {
	n := len(l.slabs)
	i := sort.Search(n, func(i int) bool {
		return l.slabs[i].RefEnd > ref
	})
	if i == n {
		return -1
	}
	return i
}

// append adds a new slab, extending the address space. It does not check
// invariant 1 of spec.md §3 (the new slab's Start must equal the current end
// of the address space); verify reports a slab that breaks it.
func (l *slabList) append(s Slab) {
	l.slabs = append(l.slabs, s)
}

// end returns the ref at which the slab space currently ends, or baseline
// if there are no slabs yet.
func (l *slabList) end(baseline Ref) Ref {
	if len(l.slabs) == 0 {
		return baseline
	}
	return l.slabs[len(l.slabs)-1].RefEnd
}

// verify reasserts slab-ordering invariant 1 from spec.md §3.
func (l *slabList) verify(baseline Ref) error {
	prevEnd := baseline
	for i, s := range l.slabs {
		if s.Start != prevEnd {
			return errInvariant("slab %d starts at %d, want %d", i, s.Start, prevEnd)
		}
		if s.RefEnd <= s.Start {
			return errInvariant("slab %d has non-positive size", i)
		}
		prevEnd = s.RefEnd
	}
	return nil
}

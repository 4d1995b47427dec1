package alloc

import (
	"sort"

	"github.com/RoaringBitmap/roaring/roaring64"
)

// FreeChunk is a region of the ref address space currently unallocated.
type FreeChunk struct {
	Ref  Ref
	Size int
}

// FreeSpaceState tracks whether the free lists reflect the latest commit
// (Clean), have been mutated in-session (Dirty), or are unusable after a
// failed allocation mid-update (Invalid).
type FreeSpaceState int

const (
	StateClean FreeSpaceState = iota
	StateDirty
	StateInvalid
)

// freeList is a first-fit free-chunk list kept sorted by Ref. Chunk starts
// are mirrored into a roaring64 bitmap so "is ref currently free" membership
// checks (used by Free to reject a double free) don't need a linear scan.
type freeList struct {
	chunks []FreeChunk
	starts *roaring64.Bitmap
}

func newFreeList() *freeList {
	return &freeList{starts: roaring64.New()}
}

// insert adds a chunk, keeping chunks sorted by Ref. Adjacent-chunk merging
// is intentionally not performed: the allocator does not model adjacency
// (see spec.md §4.1 realloc rationale), so chunks may sit next to each other
// unmerged until reset_free_space_tracking rebuilds the list wholesale.
func (l *freeList) insert(c FreeChunk) {
	i := sort.Search(len(l.chunks), func(i int) bool { return l.chunks[i].Ref >= c.Ref })
	l.chunks = append(l.chunks, FreeChunk{})
	copy(l.chunks[i+1:], l.chunks[i:])
	l.chunks[i] = c
	l.starts.Add(uint64(c.Ref))
}

// firstFit finds the first chunk of at least size bytes, splitting it if
// larger than needed. Returns (0, false) if no chunk fits.
func (l *freeList) firstFit(size int) (Ref, bool) {
	for i, c := range l.chunks {
		if c.Size < size {
			continue
		}
		ref := c.Ref
		l.starts.Remove(uint64(c.Ref))
		if c.Size == size {
			l.chunks = append(l.chunks[:i], l.chunks[i+1:]...)
		} else {
			remainder := FreeChunk{Ref: c.Ref + Ref(size), Size: c.Size - size}
			l.chunks[i] = remainder
			l.starts.Add(uint64(remainder.Ref))
		}
		return ref, true
	}
	return 0, false
}

// contains reports whether ref names the start of a currently free chunk.
func (l *freeList) contains(ref Ref) bool {
	return l.starts.Contains(uint64(ref))
}

// reset clears the list and, if size > 0, seeds it with a single chunk
// spanning [start, start+size).
func (l *freeList) reset(start Ref, size int) {
	l.chunks = l.chunks[:0]
	l.starts = roaring64.New()
	if size > 0 {
		l.insert(FreeChunk{Ref: start, Size: size})
	}
}

// verifyTiling reasserts invariant 2 from spec.md §3: free chunks are
// sorted by Ref, do not overlap one another, and fall entirely within
// [lo, hi) — the range a corrupted free list could otherwise straddle
// past the address space it claims to describe.
func (l *freeList) verifyTiling(lo, hi Ref) error {
	prevEnd := lo
	for i, c := range l.chunks {
		if c.Size <= 0 {
			return errInvariant("free chunk %d at %d has non-positive size", i, c.Ref)
		}
		if c.Ref < prevEnd {
			return errInvariant("free chunk %d at %d overlaps preceding chunk ending at %d", i, c.Ref, prevEnd)
		}
		end := c.Ref + Ref(c.Size)
		if end > hi {
			return errInvariant("free chunk %d spans %d..%d past address space end %d", i, c.Ref, end, hi)
		}
		prevEnd = end
	}
	return nil
}

// totalSize sums the size of every chunk in the list.
func (l *freeList) totalSize() int64 {
	var total int64
	for _, c := range l.chunks {
		total += int64(c.Size)
	}
	return total
}

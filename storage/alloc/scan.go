package alloc

import "golang.org/x/sync/errgroup"

// scanSlabsConcurrently computes the whole-slab free chunk for every slab,
// fanning the work out across an errgroup when there are many slabs to scan
// (spec.md §5: reads like this are safe concurrently while the free-space
// state is Clean and no slab-vector resize is in progress, which holds here
// because the caller holds the allocator's lock across the whole call).
func scanSlabsConcurrently(slabs []Slab, baseline Ref) ([]FreeChunk, error) {
	chunks := make([]FreeChunk, len(slabs))
	var g errgroup.Group
	for i, s := range slabs {
		i, s := i, s
		start := baseline
		if i > 0 {
			start = slabs[i-1].RefEnd
		}
		g.Go(func() error {
			chunks[i] = FreeChunk{Ref: start, Size: s.Size()}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return chunks, nil
}

package alloc

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestAllocator() *SlabAllocator {
	cfg := DefaultConfig()
	cfg.InitialSlabSize = 256
	return New(nil, nil, nil, cfg)
}

func TestAttachEmpty(t *testing.T) {
	a := newTestAllocator()
	top, err := a.AttachEmpty()
	require.NoError(t, err)
	require.Equal(t, Ref(0), top)
	require.Equal(t, Ref(0), a.Baseline())
}

func TestAttachEmpty_Twice(t *testing.T) {
	a := newTestAllocator()
	_, err := a.AttachEmpty()
	require.NoError(t, err)
	_, err = a.AttachEmpty()
	require.ErrorIs(t, err, ErrAlreadyAttached)
}

// TestAllocFreeReuse matches spec.md §8 scenario 2.
func TestAllocFreeReuse(t *testing.T) {
	a := newTestAllocator()
	_, err := a.AttachEmpty()
	require.NoError(t, err)
	ctx := context.Background()

	ref1, _, err := a.Alloc(ctx, 64)
	require.NoError(t, err)
	ref2, _, err := a.Alloc(ctx, 128)
	require.NoError(t, err)
	require.Greater(t, ref2, ref1)

	require.NoError(t, a.Free(ref1, 64))

	ref3, _, err := a.Alloc(ctx, 32)
	require.NoError(t, err)
	require.GreaterOrEqual(t, ref3, ref1)
	require.Less(t, ref3, ref1+64)
}

func TestAlloc_ZeroSizeRoundsToAlignment(t *testing.T) {
	a := newTestAllocator()
	_, err := a.AttachEmpty()
	require.NoError(t, err)
	ref, addr, err := a.Alloc(context.Background(), 0)
	require.NoError(t, err)
	require.True(t, ref.IsAligned())
	require.Len(t, addr, Alignment)
}

func TestAlloc_FailsWhenInvalid(t *testing.T) {
	a := newTestAllocator()
	_, err := a.AttachEmpty()
	require.NoError(t, err)
	a.state = StateInvalid

	_, _, err = a.Alloc(context.Background(), 16)
	require.ErrorIs(t, err, ErrFreeSpaceInvalid)

	err = a.Free(0, 16)
	require.ErrorIs(t, err, ErrFreeSpaceInvalid)
}

func TestRealloc_CopiesAndFreesOld(t *testing.T) {
	a := newTestAllocator()
	_, err := a.AttachEmpty()
	require.NoError(t, err)
	ctx := context.Background()

	oldRef, oldAddr, err := a.Alloc(ctx, 16)
	require.NoError(t, err)
	copy(oldAddr, []byte("0123456789abcdef"))

	newRef, newAddr, err := a.Realloc(ctx, oldRef, oldAddr, 16, 32)
	require.NoError(t, err)
	require.NotEqual(t, oldRef, newRef)
	require.Equal(t, []byte("0123456789abcdef"), newAddr[:16])

	// old chunk must be reusable again
	ref3, _, err := a.Alloc(ctx, 16)
	require.NoError(t, err)
	require.Equal(t, oldRef, ref3)
}

// TestTranslateAcrossBoundary matches spec.md §8 scenario 3.
func TestTranslateAcrossBoundary(t *testing.T) {
	a := newTestAllocator()
	data := buildHeader(t, FormatVersionNullStrings, 0, false, [2]Ref{100, 0})
	data = append(data, make([]byte, 1024-len(data))...)
	_, err := a.AttachBuffer(data)
	require.NoError(t, err)

	slabBuf := make([]byte, 1024)
	a.slabs.append(Slab{Start: 1024, RefEnd: 2048, Addr: slabBuf})

	addr0, err := a.Translate(0)
	require.NoError(t, err)
	require.Same(t, &a.region.data[0], &addr0[0])

	addr1024, err := a.Translate(1024)
	require.NoError(t, err)
	require.Same(t, &slabBuf[0], &addr1024[0])

	addr2047, err := a.Translate(2047)
	require.NoError(t, err)
	require.Same(t, &slabBuf[1023], &addr2047[0])
}

// TestAttachBuffer_TranslatesFileRegion drives AttachBuffer itself (rather
// than hand-setting the allocator's internal region field) to guard against
// AttachBuffer forgetting to wire up the mmapRegion Translate depends on.
func TestAttachBuffer_TranslatesFileRegion(t *testing.T) {
	a := newTestAllocator()
	data := buildHeader(t, FormatVersionNullStrings, 0, false, [2]Ref{512, 0})
	data = append(data, make([]byte, 1024-len(data))...)
	copy(data[100:], []byte("hello"))

	top, err := a.AttachBuffer(data)
	require.NoError(t, err)
	require.Equal(t, Ref(512), top)
	require.Equal(t, Ref(1024), a.Baseline())

	addr, err := a.Translate(100)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), addr[:5])
}

func TestTranslate_PastEndOfSlabs(t *testing.T) {
	a := newTestAllocator()
	a.mode = AttachUsersBuffer
	a.baseline = 0
	a.slabs.append(Slab{Start: 0, RefEnd: 64, Addr: make([]byte, 64)})
	_, err := a.Translate(64)
	require.ErrorIs(t, err, ErrRefOutOfRange)
}

func TestDetach_Idempotent(t *testing.T) {
	a := newTestAllocator()
	_, err := a.AttachEmpty()
	require.NoError(t, err)
	require.NoError(t, a.Detach())
	require.NoError(t, a.Detach())
	require.Equal(t, AttachNone, a.Mode())
}

func TestResetFreeSpaceTracking(t *testing.T) {
	a := newTestAllocator()
	_, err := a.AttachEmpty()
	require.NoError(t, err)
	ctx := context.Background()
	_, _, err = a.Alloc(ctx, 64)
	require.NoError(t, err)

	require.NoError(t, a.ResetFreeSpaceTracking())
	require.Equal(t, StateClean, a.FreeSpaceState())

	total := a.mutableFree.totalSize()
	require.Equal(t, a.slabs.end(a.baseline)-a.baseline, Ref(total))
}

func TestResetFreeSpaceTracking_ManySlabsConcurrentScan(t *testing.T) {
	a := newTestAllocator()
	_, err := a.AttachEmpty()
	require.NoError(t, err)
	start := a.baseline
	for i := 0; i < resetFreeListScanThreshold+5; i++ {
		s := Slab{Start: start, RefEnd: start + 8, Addr: make([]byte, 8)}
		a.slabs.append(s)
		start = s.RefEnd
	}

	require.NoError(t, a.ResetFreeSpaceTracking())
	require.Equal(t, int64(start-a.baseline), a.mutableFree.totalSize())
}

// TestPrepareForUpdateIdempotent matches spec.md §8 scenario 9.
func TestPrepareForUpdateIdempotent(t *testing.T) {
	a := newTestAllocator()
	buf := buildHeader(t, FormatVersionNullStrings, 0, false, [2]Ref{0, 0})
	buf = append(buf, EncodeFooter(Footer{TopRef: 4096})...)
	a.streamingForm = true
	a.validated = true

	require.NoError(t, a.PrepareForUpdate(context.Background(), buf))
	h, err := DecodeHeader(buf)
	require.NoError(t, err)
	require.Equal(t, Ref(4096), h.TopRef[0])
	require.False(t, a.streamingForm)

	before := append([]byte(nil), buf...)
	require.NoError(t, a.PrepareForUpdate(context.Background(), buf))
	require.Equal(t, before, buf)
}

func TestAttachFile_HeaderRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.tdb")
	ctx := context.Background()

	a := newTestAllocator()
	top, err := a.AttachFile(ctx, path, AttachFileOptions{})
	require.NoError(t, err)
	require.Equal(t, Ref(0), top)
	require.True(t, a.IsStreamingForm())
	require.NoError(t, a.Detach())

	// re-attach: header idempotence (spec.md §8 invariants).
	b := newTestAllocator()
	top2, err := b.AttachFile(ctx, path, AttachFileOptions{})
	require.NoError(t, err)
	require.Equal(t, top, top2)
	require.NoError(t, b.Detach())
}

func TestAttachFile_EncryptionUnsupported(t *testing.T) {
	a := newTestAllocator()
	_, err := a.AttachFile(context.Background(), filepath.Join(t.TempDir(), "x.tdb"), AttachFileOptions{EncryptionKey: []byte("k")})
	require.ErrorIs(t, err, ErrEncryptionUnsupported)
}

func TestVerify_DetectsBrokenSlabOrdering(t *testing.T) {
	a := newTestAllocator()
	a.baseline = 0
	a.slabs.append(Slab{Start: 0, RefEnd: 64, Addr: make([]byte, 64)})
	a.slabs.append(Slab{Start: 128, RefEnd: 192, Addr: make([]byte, 64)}) // gap: should start at 64
	require.Error(t, a.Verify())
}

func TestVerify_SucceedsAfterAllocFree(t *testing.T) {
	a := newTestAllocator()
	_, err := a.AttachEmpty()
	require.NoError(t, err)
	ctx := context.Background()

	ref, _, err := a.Alloc(ctx, 32)
	require.NoError(t, err)
	require.NoError(t, a.Verify())

	require.NoError(t, a.Free(ref, 32))
	require.NoError(t, a.Verify())
}

// TestVerify_DetectsOverlappingFreeChunks matches spec.md §3 invariant 2:
// free chunks must tile the slab space without overlapping.
func TestVerify_DetectsOverlappingFreeChunks(t *testing.T) {
	a := newTestAllocator()
	a.baseline = 0
	a.slabs.append(Slab{Start: 0, RefEnd: 128, Addr: make([]byte, 128)})
	a.mutableFree.insert(FreeChunk{Ref: 0, Size: 64})
	a.mutableFree.insert(FreeChunk{Ref: 32, Size: 64}) // overlaps [0,64)
	require.Error(t, a.Verify())
}

// TestVerify_DetectsFreeChunkPastAddressSpace matches spec.md §3 invariant 2:
// a free chunk cannot claim space past the end of the slab sequence.
func TestVerify_DetectsFreeChunkPastAddressSpace(t *testing.T) {
	a := newTestAllocator()
	a.baseline = 0
	a.slabs.append(Slab{Start: 0, RefEnd: 64, Addr: make([]byte, 64)})
	a.mutableFree.insert(FreeChunk{Ref: 0, Size: 128}) // extends past RefEnd 64
	require.Error(t, a.Verify())
}

func TestFree_RejectsDoubleFree(t *testing.T) {
	a := newTestAllocator()
	_, err := a.AttachEmpty()
	require.NoError(t, err)
	ctx := context.Background()

	ref, _, err := a.Alloc(ctx, 32)
	require.NoError(t, err)
	require.NoError(t, a.Free(ref, 32))
	require.Error(t, a.Free(ref, 32))
}
